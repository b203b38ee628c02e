package steps

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"dancebreak/internal/segment"
)

type fakeCompleter struct {
	responses []string
	calls     int
	users     []string
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, _ string, user string) (string, error) {
	f.users = append(f.users, user)
	idx := f.calls
	f.calls++
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	if idx < 0 {
		return "", errors.New("no response")
	}
	if f.responses[idx] == "ERR" {
		return "", errors.New("upstream unavailable")
	}
	return f.responses[idx], nil
}

type recordingSleeper struct {
	delays []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

const validContext = `{"bpm": 120, "total_segments": 2, "style_indicators": {"rhythm_consistency": "High", "flow_smoothness": "High", "symmetry": "Balanced"}, "difficulty_level": "Beginner", "energy_level": "High", "overall_routine_characteristics": {"tempo": "Upbeat"}}`

const validStep = `{"stepNumber": 99, "startTimestamp": "09:00.000", "endTimestamp": "09:01.000", "stepName": "Body Roll", "global_description": "Roll through the torso.", "description": {"head": "Follow the roll", "hands": "Relaxed", "shoulders": "Lead the wave", "torso": "Ripple down", "legs": "Soft knees", "bodyAngle": "Facing front"}, "styleAndHistory": "Hip hop groove", "spiceItUp": "Add a head nod"}`

func twoSegments() []segment.Segment {
	return []segment.Segment{
		{StepNumber: 1, StartTime: 0, EndTime: 2, StartIndex: -1, EndIndex: -1},
		{StepNumber: 2, StartTime: 2, EndTime: 4.5, StartIndex: -1, EndIndex: -1},
	}
}

func testOptions() Options {
	return Options{MaxAttempts: 3, RetryDelay: 2 * time.Second, Pacing: 3 * time.Second}
}

func TestFormatAndParseTimestamp(t *testing.T) {
	if got := FormatTimestamp(65.5); got != "01:05.500" {
		t.Fatalf("FormatTimestamp(65.5) = %q", got)
	}
	if got := FormatTimestamp(0); got != "00:00.000" {
		t.Fatalf("FormatTimestamp(0) = %q", got)
	}
	for in, want := range map[float64]string{59.9996: "01:00.000", 119.9999: "02:00.000", 59.9994: "00:59.999"} {
		if got := FormatTimestamp(in); got != want {
			t.Fatalf("FormatTimestamp(%v) = %q, want %q", in, got, want)
		}
	}
	cases := map[string]float64{
		"01:05.500": 65.5,
		"02:03":     123,
		"7.25":      7.25,
		"garbage":   0,
		"":          0,
		"aa:10":     0,
	}
	for in, want := range cases {
		if got := ParseTimestamp(in); got != want {
			t.Fatalf("ParseTimestamp(%q) = %f, want %f", in, got, want)
		}
	}
}

func TestManualModeIsTemplatedAndSkipsInvalidSegments(t *testing.T) {
	completer := &fakeCompleter{}
	gen := NewGenerator(completer, testOptions(), nil)
	bpm := 118.5
	segments := []segment.Segment{
		{StartTime: 0, EndTime: 2},
		{StartTime: 2, EndTime: 2},
		{StartTime: 2, EndTime: 4},
	}
	content, err := gen.Generate(context.Background(), nil, segments, &bpm, "manual")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if completer.calls != 0 {
		t.Fatalf("manual mode called the completer %d times", completer.calls)
	}
	if len(content.Steps) != 2 || content.Steps[0].StepNumber != 1 || content.Steps[1].StepNumber != 3 {
		t.Fatalf("unexpected steps %+v", content.Steps)
	}
	if content.Steps[1].Name != "Step 3" || content.Steps[1].StartTimestamp != "00:02.000" {
		t.Fatalf("unexpected template step %+v", content.Steps[1])
	}
	if content.Context.DifficultyLevel != manualLabel || content.Context.TotalSegments != 3 {
		t.Fatalf("unexpected context %+v", content.Context)
	}
	if !strings.Contains(content.Context.Characteristics["tempo"], "118.5 BPM") {
		t.Fatalf("unexpected tempo text %q", content.Context.Characteristics["tempo"])
	}
}

func TestAutoModeUsesModelOutputWithPacing(t *testing.T) {
	wrapped := `{"step": ` + validStep + `}`
	completer := &fakeCompleter{responses: []string{validContext, validStep, "```json\n" + wrapped + "\n```"}}
	sleeper := &recordingSleeper{}
	gen := NewGenerator(completer, testOptions(), nil, WithSleeper(sleeper.sleep))

	content, err := gen.Generate(context.Background(), nil, twoSegments(), nil, "auto")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if content.Calls != 3 || content.Fallbacks != 0 {
		t.Fatalf("calls=%d fallbacks=%d", content.Calls, content.Fallbacks)
	}
	if content.Context.EnergyLevel != "High" || content.Context.BPM == nil || *content.Context.BPM != 120 {
		t.Fatalf("unexpected context %+v", content.Context)
	}
	for i, step := range content.Steps {
		if !step.Generated || step.Name != "Body Roll" || step.Description.BodyAngle != "Facing front" {
			t.Fatalf("step %d not taken from model: %+v", i, step)
		}
		if step.StepNumber != i+1 {
			t.Fatalf("step number %d, want %d", step.StepNumber, i+1)
		}
	}
	if content.Steps[1].StartTimestamp != "00:02.000" || content.Steps[1].EndTimestamp != "00:04.500" {
		t.Fatalf("timestamps must come from the segment: %+v", content.Steps[1])
	}
	if len(sleeper.delays) != 2 || sleeper.delays[0] != 3*time.Second || sleeper.delays[1] != 3*time.Second {
		t.Fatalf("unexpected delays %v", sleeper.delays)
	}
	if !strings.Contains(completer.users[1], "Step number: 1") || !strings.Contains(completer.users[1], "No pose data") {
		t.Fatalf("unexpected step prompt %q", completer.users[1])
	}
}

func TestAutoModeRetriesMalformedOutput(t *testing.T) {
	missingField := strings.Replace(validStep, `"spiceItUp": "Add a head nod"`, `"spiceItUp": ""`, 1)
	completer := &fakeCompleter{responses: []string{validContext, "not json", missingField, validStep, validStep}}
	sleeper := &recordingSleeper{}
	gen := NewGenerator(completer, testOptions(), nil, WithSleeper(sleeper.sleep))

	content, err := gen.Generate(context.Background(), nil, twoSegments(), nil, "auto")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if content.Fallbacks != 0 || content.Calls != 5 {
		t.Fatalf("calls=%d fallbacks=%d", content.Calls, content.Fallbacks)
	}
	want := []time.Duration{3 * time.Second, 2 * time.Second, 2 * time.Second, 3 * time.Second}
	if len(sleeper.delays) != len(want) {
		t.Fatalf("delays %v, want %v", sleeper.delays, want)
	}
	for i := range want {
		if sleeper.delays[i] != want[i] {
			t.Fatalf("delays %v, want %v", sleeper.delays, want)
		}
	}
}

func TestAutoModeFallsBackAfterExhaustedRetries(t *testing.T) {
	completer := &fakeCompleter{responses: []string{"ERR"}}
	sleeper := &recordingSleeper{}
	gen := NewGenerator(completer, testOptions(), nil, WithSleeper(sleeper.sleep))

	content, err := gen.Generate(context.Background(), nil, twoSegments(), nil, "auto")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if content.Calls != 9 || content.Fallbacks != 3 {
		t.Fatalf("calls=%d fallbacks=%d", content.Calls, content.Fallbacks)
	}
	if content.Context.StyleIndicators.RhythmConsistency != "High" {
		t.Fatalf("expected default context, got %+v", content.Context)
	}
	for _, step := range content.Steps {
		if step.Generated || step.StyleAndHistory != fallbackStyle {
			t.Fatalf("expected templated fallback, got %+v", step)
		}
	}
}

func TestAutoModeWithoutCompleterIsTemplated(t *testing.T) {
	gen := NewGenerator(nil, testOptions(), nil)
	content, err := gen.Generate(context.Background(), nil, twoSegments(), nil, "auto")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if content.Calls != 0 || len(content.Steps) != 2 || content.Steps[0].Generated {
		t.Fatalf("unexpected content %+v", content)
	}
}

func TestGenerateStopsWhenContextCancelled(t *testing.T) {
	completer := &fakeCompleter{responses: []string{validContext, validStep}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := NewGenerator(completer, testOptions(), nil, WithSleeper(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }))
	if _, err := gen.Generate(ctx, nil, twoSegments(), nil, "auto"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
