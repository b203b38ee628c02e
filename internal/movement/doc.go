// Package movement summarises body motion within a segment: which joints
// moved most, in which direction, how symmetric and coordinated the movement
// was, and how energetic, smooth, and stable it looked. The summary text is
// what the step generator hands to the language model.
package movement
