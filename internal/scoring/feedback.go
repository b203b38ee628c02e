package scoring

import (
	"fmt"

	"dancebreak/internal/config"
)

// Feedback is short coaching text derived from the scores.
type Feedback struct {
	Overall    string            `json:"overall"`
	Dimensions map[string]string `json:"dimensions"`
}

var dimensionFocus = map[string]struct{ strong, solid, focus string }{
	config.DimensionTechnique: {
		strong: "Clean technique with steady balance and aligned posture.",
		solid:  "Solid technique; tighten alignment and keep the core stable.",
		focus:  "Focus on balance and posture: keep shoulders level and hips under the shoulders.",
	},
	config.DimensionRhythm: {
		strong: "Movement locks in with the beat.",
		solid:  "Good timing; keep accents consistent through the whole routine.",
		focus:  "Work on timing: count the beat and land each move on it.",
	},
	config.DimensionExpression: {
		strong: "Expressive and fluid performance.",
		solid:  "Nice energy; let transitions flow into each other.",
		focus:  "Add energy and smoother transitions between moves.",
	},
	config.DimensionDifficulty: {
		strong: "Ambitious choreography executed with control.",
		solid:  "Moderate difficulty; add layered arm and leg work to push further.",
		focus:  "Build range: use more of the body and bigger levels.",
	},
}

// BuildFeedback renders per-dimension and overall feedback for a result.
func BuildFeedback(r Result) Feedback {
	fb := Feedback{Dimensions: make(map[string]string, len(config.Dimensions))}
	for _, dim := range config.Dimensions {
		text := dimensionFocus[dim]
		score := r.Score(dim)
		switch {
		case score >= 80:
			fb.Dimensions[dim] = text.strong
		case score >= 60:
			fb.Dimensions[dim] = text.solid
		default:
			fb.Dimensions[dim] = text.focus
		}
	}
	switch {
	case r.Insufficient:
		fb.Overall = "Not enough clear pose data to judge this performance; film the full body in good light."
	case r.Total >= 85:
		fb.Overall = fmt.Sprintf("Outstanding performance (%d/100).", r.Total)
	case r.Total >= 70:
		fb.Overall = fmt.Sprintf("Strong performance (%d/100) with room to polish.", r.Total)
	case r.Total >= 50:
		fb.Overall = fmt.Sprintf("Decent performance (%d/100); keep practising the basics.", r.Total)
	default:
		fb.Overall = fmt.Sprintf("Early stages (%d/100); slow the routine down and drill each step.", r.Total)
	}
	return fb
}
