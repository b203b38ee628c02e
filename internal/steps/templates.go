package steps

import (
	"fmt"
	"strings"

	"dancebreak/internal/movement"
	"dancebreak/internal/segment"
	"dancebreak/internal/textutil"
)

const (
	manualLabel   = "Manual mode"
	manualPending = "Manual mode - no AI analysis"
)

var defaultDescription = Description{
	Head:      "Keep your head aligned with your spine",
	Hands:     "Maintain natural hand positioning",
	Shoulders: "Keep shoulders relaxed and level",
	Torso:     "Engage your core for stability",
	Legs:      "Maintain proper stance and balance",
	BodyAngle: "Face forward with good posture",
}

var directionPhrases = map[string]string{
	"left":   "drifting to the left",
	"right":  "drifting to the right",
	"up":     "lifting upward",
	"down":   "sinking downward",
	"center": "staying centred",
}

// ManualContext is the routine context used when no language model is involved.
func ManualContext(bpm *float64, segments int) RoutineContext {
	return RoutineContext{
		BPM:           bpm,
		TotalSegments: segments,
		StyleIndicators: StyleIndicators{
			RhythmConsistency: manualLabel,
			FlowSmoothness:    manualLabel,
			Symmetry:          manualLabel,
		},
		DifficultyLevel: manualLabel,
		EnergyLevel:     manualLabel,
		Characteristics: map[string]string{
			"tempo":              "Manual analysis at " + bpmLabel(bpm),
			"rhythm_consistency": manualPending,
			"flow_smoothness":    manualPending,
			"symmetry":           manualPending,
			"difficulty_level":   manualPending,
			"energy_level":       manualPending,
		},
	}
}

// DefaultContext seeds the auto-mode routine request and stands in for it when
// the language model cannot produce one.
func DefaultContext(bpm *float64, segments int) RoutineContext {
	return RoutineContext{
		BPM:           bpm,
		TotalSegments: segments,
		StyleIndicators: StyleIndicators{
			RhythmConsistency: "High",
			FlowSmoothness:    "Medium",
			Symmetry:          "Balanced",
		},
		DifficultyLevel: "Intermediate",
		EnergyLevel:     "Medium",
		Characteristics: map[string]string{
			"tempo":              "The routine is set to a tempo of " + bpmLabel(bpm),
			"rhythm_consistency": "The routine maintains a steady beat",
			"flow_smoothness":    "Transitions between movements are fluid",
			"symmetry":           "The routine balances left and right movements",
			"difficulty_level":   "Suitable for dancers with some experience",
			"energy_level":       "Engaging and dynamic without being overly exhausting",
		},
	}
}

// TemplateStep builds deterministic step content for a segment. The movement
// summary, when present, flavours the name and narration.
func TemplateStep(number int, seg segment.Segment, summary movement.Summary, style string) Step {
	step := Step{
		StepNumber:        number,
		StartTimestamp:    FormatTimestamp(seg.StartTime),
		EndTimestamp:      FormatTimestamp(seg.EndTime),
		StartSeconds:      seg.StartTime,
		EndSeconds:        seg.EndTime,
		Name:              textutil.Title(fmt.Sprintf("step %d", number)),
		GlobalDescription: fmt.Sprintf("Perform step %d with proper form and timing.", number),
		Description:       defaultDescription,
		StyleAndHistory:   style,
		SpiceItUp:         "Add your personal flair to make it unique",
	}
	if summary.Empty() {
		return step
	}
	lead := leadJoint(summary)
	if lead != "" {
		step.Name = textutil.Title(fmt.Sprintf("step %d: %s %s", number, summary.Direction, lead))
	}
	phrase := directionPhrases[summary.Direction]
	if phrase == "" {
		phrase = "staying centred"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Perform step %d with proper form and timing", number)
	if lead != "" {
		fmt.Fprintf(&b, ", leading with the %s", lead)
	}
	fmt.Fprintf(&b, " while %s.", phrase)
	if summary.CoordinationQuality == "good" {
		b.WriteString(" Keep the upper and lower body moving together.")
	}
	if summary.Balance != "" && summary.Balance != "balanced" {
		b.WriteString(" One side works harder here, so mirror it slowly when practising.")
	}
	step.GlobalDescription = b.String()
	return step
}

func leadJoint(summary movement.Summary) string {
	if len(summary.TopJoints) == 0 {
		return ""
	}
	return strings.ReplaceAll(summary.TopJoints[0], "_", " ")
}

func bpmLabel(bpm *float64) string {
	if bpm == nil {
		return "an unknown BPM"
	}
	return fmt.Sprintf("%.1f BPM", *bpm)
}
