// Package steps turns movement segments into learnable step content.
//
// Manual mode renders deterministic templates from each segment's movement
// summary and never leaves the process. Auto mode asks a language model for a
// whole-routine context and then one step per segment. Every request gets a
// fixed retry budget, and requests after the first are paced. When a request
// keeps failing the step falls back to the template, so content generation
// never fails a breakdown.
package steps
