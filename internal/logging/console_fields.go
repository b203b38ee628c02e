package logging

import (
	"log/slog"
	"strings"
	"time"
)

type infoField struct {
	label string
	value string
}

// Keys surfaced first in info output, in this order.
var infoHighlightKeys = []string{
	FieldEventType,
	FieldErrorKind,
	"error",
	FieldErrorHint,
	FieldImpact,
	"mode",
	"strategy",
	"bpm",
	"duration_seconds",
	"frames_sampled",
	"valid_frames",
	"segment_count",
	"step_count",
	"total_score",
	"confidence",
	"cache_decision",
	"stage_duration",
	"removed_count",
}

var infoLabels = map[string]string{
	FieldEventType:     "Event",
	FieldErrorKind:     "Error Kind",
	FieldErrorHint:     "Hint",
	FieldImpact:        "Impact",
	"bpm":              "BPM",
	"duration_seconds": "Duration",
	"stage_duration":   "Took",
	"cache_decision":   "Cache",
	"total_score":      "Score",
}

const maxInfoValueLen = 120

// selectInfoFields orders highlighted keys first and hides debug-only or long values.
func selectInfoFields(attrs []kv) ([]infoField, int) {
	if len(attrs) == 0 {
		return nil, 0
	}
	used := make([]bool, len(attrs))
	result := make([]infoField, 0, len(attrs))
	hidden := 0

	add := func(idx int) {
		used[idx] = true
		attr := attrs[idx]
		if skipInfoKey(attr.key) {
			return
		}
		if isDebugOnlyKey(attr.key) {
			hidden++
			return
		}
		value := formatInfoValue(attr.key, attr.value)
		if attr.key != "error" && len(value) > maxInfoValueLen {
			hidden++
			return
		}
		result = append(result, infoField{label: displayLabel(attr.key), value: value})
	}

	for _, key := range infoHighlightKeys {
		for idx, attr := range attrs {
			if !used[idx] && attr.key == key {
				add(idx)
				break
			}
		}
	}
	for idx := range attrs {
		if !used[idx] {
			add(idx)
		}
	}
	return result, hidden
}

func formatInfoValue(key string, v slog.Value) string {
	v = v.Resolve()
	switch {
	case v.Kind() == slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case v.Kind() == slog.KindBool:
		if v.Bool() {
			return "yes"
		}
		return "no"
	case v.Kind() == slog.KindFloat64 && strings.HasSuffix(key, "_seconds"):
		return formatValue(slog.Float64Value(roundTo(v.Float64(), 2))) + "s"
	case v.Kind() == slog.KindFloat64:
		return formatValue(slog.Float64Value(roundTo(v.Float64(), 3)))
	}
	value := formatValue(v)
	if key == "error" && len(value) > 200 {
		value = value[:200] + "…"
	}
	return value
}

func skipInfoKey(key string) bool {
	switch key {
	case "", FieldComponent, FieldBreakdownID, FieldStage, FieldSourceIdentity:
		return true
	}
	return false
}

func isDebugOnlyKey(key string) bool {
	switch key {
	case FieldCorrelationID, FieldJobID:
		return true
	}
	return strings.HasSuffix(key, "_path") || strings.HasSuffix(key, "_dir") || strings.HasPrefix(key, "ffprobe.")
}

func displayLabel(key string) string {
	if label, ok := infoLabels[key]; ok {
		return label
	}
	parts := strings.FieldsFunc(key, func(r rune) bool { return r == '_' || r == '-' || r == '.' })
	for i, part := range parts {
		if part == "" {
			continue
		}
		lower := strings.ToLower(part)
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func roundTo(v float64, places int) float64 {
	scale := 1.0
	for i := 0; i < places; i++ {
		scale *= 10
	}
	if v < 0 {
		return -float64(int64(-v*scale+0.5)) / scale
	}
	return float64(int64(v*scale+0.5)) / scale
}
