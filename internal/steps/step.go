package steps

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Description tells the dancer what each body part does during a step.
type Description struct {
	Head      string `json:"head"`
	Hands     string `json:"hands"`
	Shoulders string `json:"shoulders"`
	Torso     string `json:"torso"`
	Legs      string `json:"legs"`
	BodyAngle string `json:"body_angle"`
}

// Step is the learnable content for one movement segment.
type Step struct {
	StepNumber        int         `json:"step_number"`
	StartTimestamp    string      `json:"start_timestamp"`
	EndTimestamp      string      `json:"end_timestamp"`
	StartSeconds      float64     `json:"start_seconds"`
	EndSeconds        float64     `json:"end_seconds"`
	Name              string      `json:"step_name"`
	GlobalDescription string      `json:"global_description"`
	Description       Description `json:"description"`
	StyleAndHistory   string      `json:"style_and_history"`
	SpiceItUp         string      `json:"spice_it_up"`
	// Generated is false when the content came from templates.
	Generated bool `json:"generated"`
}

// StyleIndicators are coarse labels describing the routine as a whole.
type StyleIndicators struct {
	RhythmConsistency string `json:"rhythm_consistency"`
	FlowSmoothness    string `json:"flow_smoothness"`
	Symmetry          string `json:"symmetry"`
}

// RoutineContext is the whole-routine analysis shared by every step.
type RoutineContext struct {
	BPM             *float64          `json:"bpm"`
	TotalSegments   int               `json:"total_segments"`
	StyleIndicators StyleIndicators   `json:"style_indicators"`
	DifficultyLevel string            `json:"difficulty_level"`
	EnergyLevel     string            `json:"energy_level"`
	Characteristics map[string]string `json:"overall_routine_characteristics"`
}

// FormatTimestamp renders seconds as MM:SS.mmm.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	// Round once to whole milliseconds so a carry moves into the minutes.
	millis := int64(math.Round(seconds * 1000))
	minutes := millis / 60000
	millis %= 60000
	return fmt.Sprintf("%02d:%02d.%03d", minutes, millis/1000, millis%1000)
}

// ParseTimestamp reads MM:SS.mmm, MM:SS or plain seconds. Unparseable input yields zero.
func ParseTimestamp(value string) float64 {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if mm, ss, ok := strings.Cut(value, ":"); ok {
		minutes, err := strconv.Atoi(mm)
		if err != nil || minutes < 0 {
			return 0
		}
		secs, err := strconv.ParseFloat(ss, 64)
		if err != nil || secs < 0 {
			return 0
		}
		return float64(minutes)*60 + secs
	}
	secs, err := strconv.ParseFloat(value, 64)
	if err != nil || secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return 0
	}
	return secs
}
