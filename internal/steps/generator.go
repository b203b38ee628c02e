package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"dancebreak/internal/logging"
	"dancebreak/internal/movement"
	"dancebreak/internal/pose"
	"dancebreak/internal/segment"
	"dancebreak/internal/services"
	"dancebreak/internal/services/llm"
)

// Modes.
const (
	ModeManual = "manual"
	ModeAuto   = "auto"
)

const (
	manualStyle   = "Modern dance fusion (manual mode)"
	fallbackStyle = "Modern dance fusion"
)

// Completer issues one chat completion and returns the raw JSON content.
// *llm.Client satisfies it.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Options tunes auto mode.
type Options struct {
	MaxAttempts int
	RetryDelay  time.Duration
	Pacing      time.Duration
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Content is the generated content for a routine.
type Content struct {
	Mode    string         `json:"mode"`
	Context RoutineContext `json:"routine_context"`
	Steps   []Step         `json:"steps"`
	// Fallbacks counts auto-mode calls that ended in templated content.
	Fallbacks int `json:"fallbacks"`
	// Calls counts language model requests issued, retries included.
	Calls int `json:"calls"`
}

// Generator produces step content in manual or auto mode.
type Generator struct {
	completer Completer
	opts      Options
	logger    *slog.Logger
	sleep     Sleeper
}

// GeneratorOption customises a Generator.
type GeneratorOption func(*Generator)

// WithSleeper replaces the delay function used for retries and pacing.
func WithSleeper(s Sleeper) GeneratorOption {
	return func(g *Generator) {
		if s != nil {
			g.sleep = s
		}
	}
}

// NewGenerator builds a generator. completer may be nil, in which case auto
// mode degrades to templated content.
func NewGenerator(completer Completer, opts Options, logger *slog.Logger, options ...GeneratorOption) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	g := &Generator{completer: completer, opts: opts, logger: logger, sleep: sleepContext}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// run tracks pacing state across the calls of one Generate invocation.
type run struct {
	calls int
}

// Generate builds step content for every segment with end > start. Step
// numbers follow segment position. It only returns an error when ctx ends.
func (g *Generator) Generate(ctx context.Context, track *pose.Track, segments []segment.Segment, bpm *float64, mode string) (Content, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode != ModeAuto {
		mode = ModeManual
	}
	content := Content{Mode: mode}

	auto := mode == ModeAuto
	if auto && g.completer == nil {
		logging.WarnWithContext(g.logger, "llm not configured; using templated step content", "llm_unconfigured",
			logging.String(logging.FieldErrorHint, "set llm.api_key or OPENROUTER_API_KEY"),
			logging.String(logging.FieldImpact, "step content is templated"),
		)
		auto = false
	}

	r := &run{}
	if auto {
		rc, err := g.routineContext(ctx, r, bpm, len(segments))
		if err != nil {
			if ctx.Err() != nil {
				return content, ctx.Err()
			}
			g.logFallback("routine context generation failed; using defaults", err, 0)
			content.Fallbacks++
		}
		content.Context = rc
	} else {
		content.Context = ManualContext(bpm, len(segments))
	}

	for i, seg := range segments {
		number := i + 1
		if seg.EndTime <= seg.StartTime {
			g.logger.Warn("skipping segment with invalid timestamps",
				logging.Int("step_number", number),
				logging.Float64("start_seconds", seg.StartTime),
				logging.Float64("end_seconds", seg.EndTime),
			)
			continue
		}
		summary := movement.AnalyzeWindow(track, seg.StartTime, seg.EndTime)
		if !auto {
			content.Steps = append(content.Steps, TemplateStep(number, seg, summary, manualStyle))
			continue
		}
		step, err := g.step(ctx, r, number, seg, summary, content.Context)
		if err != nil {
			if ctx.Err() != nil {
				return content, ctx.Err()
			}
			g.logFallback("step generation failed; using template", err, number)
			content.Fallbacks++
			step = TemplateStep(number, seg, summary, fallbackStyle)
		}
		content.Steps = append(content.Steps, step)
	}
	content.Calls = r.calls
	return content, nil
}

func (g *Generator) logFallback(msg string, err error, stepNumber int) {
	attrs := []logging.Attr{
		logging.Error(err),
		logging.String(logging.FieldErrorHint, services.Details(err).Hint),
		logging.String(logging.FieldImpact, "templated content used"),
	}
	if stepNumber > 0 {
		attrs = append(attrs, logging.Int("step_number", stepNumber))
	}
	logging.WarnWithContext(g.logger, msg, "content_generation_failed", attrs...)
}

func (g *Generator) routineContext(ctx context.Context, r *run, bpm *float64, segments int) (RoutineContext, error) {
	seed := DefaultContext(bpm, segments)
	prompt, err := json.Marshal(seed)
	if err != nil {
		return seed, services.Wrap(services.ErrContentGenerationFailed, "content", "Encode routine seed", "", err)
	}
	var out RoutineContext
	err = g.complete(ctx, r, "Generate routine context", routineSystemPrompt, string(prompt), func(payload map[string]any) error {
		if missing := missingKeys(payload, routineRequiredFields); len(missing) > 0 {
			return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
		}
		return remarshal(payload, &out)
	})
	if err != nil {
		return seed, err
	}
	if out.Characteristics == nil {
		out.Characteristics = map[string]string{}
	}
	return out, nil
}

func (g *Generator) step(ctx context.Context, r *run, number int, seg segment.Segment, summary movement.Summary, rc RoutineContext) (Step, error) {
	contextJSON, err := json.Marshal(rc)
	if err != nil {
		return Step{}, services.Wrap(services.ErrContentGenerationFailed, "content", "Encode routine context", "", err)
	}
	user := fmt.Sprintf("Step number: %d\nStart time: %s\nEnd time: %s\nMovement summary: %s\nOverall context: %s",
		number, FormatTimestamp(seg.StartTime), FormatTimestamp(seg.EndTime), summary.Text(), contextJSON)

	var generated llmStep
	err = g.complete(ctx, r, "Generate step", stepSystemPrompt, user, func(payload map[string]any) error {
		payload = llm.UnwrapSingleKey(payload)
		var candidate llmStep
		if err := remarshal(payload, &candidate); err != nil {
			return err
		}
		if missing := candidate.missing(); len(missing) > 0 {
			return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
		}
		generated = candidate
		return nil
	})
	if err != nil {
		return Step{}, err
	}
	// Position and timing come from the segment, never from the model.
	step := generated.toStep()
	step.StepNumber = number
	step.StartSeconds = seg.StartTime
	step.EndSeconds = seg.EndTime
	step.StartTimestamp = FormatTimestamp(seg.StartTime)
	step.EndTimestamp = FormatTimestamp(seg.EndTime)
	step.Generated = true
	return step, nil
}

// complete runs one logical request with a fixed retry budget. Malformed JSON
// and failed validation count as failed attempts.
func (g *Generator) complete(ctx context.Context, r *run, op, system, user string, accept func(map[string]any) error) error {
	var lastErr error
	for attempt := 1; attempt <= g.opts.MaxAttempts; attempt++ {
		delay := time.Duration(0)
		switch {
		case attempt > 1:
			delay = g.opts.RetryDelay
		case r.calls > 0:
			delay = g.opts.Pacing
		}
		if delay > 0 {
			if err := g.sleep(ctx, delay); err != nil {
				return err
			}
		}
		r.calls++
		raw, err := g.completer.CompleteJSON(ctx, system, user)
		if err == nil {
			var payload map[string]any
			if err = llm.DecodeLLMJSON(raw, &payload); err == nil {
				err = accept(payload)
			}
		}
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		g.logger.Debug("llm attempt failed",
			logging.String("operation", op),
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", g.opts.MaxAttempts),
			logging.Error(err),
		)
	}
	return services.Wrap(services.ErrContentGenerationFailed, "content", op,
		fmt.Sprintf("%d attempts exhausted", g.opts.MaxAttempts), lastErr)
}

var routineRequiredFields = []string{
	"bpm", "total_segments", "style_indicators",
	"difficulty_level", "energy_level", "overall_routine_characteristics",
}

// llmStep mirrors the field names the prompt asks the model to use.
type llmStep struct {
	StepName          string            `json:"stepName"`
	GlobalDescription string            `json:"global_description"`
	Description       map[string]string `json:"description"`
	StyleAndHistory   string            `json:"styleAndHistory"`
	SpiceItUp         string            `json:"spiceItUp"`
}

var descriptionKeys = []string{"head", "hands", "shoulders", "torso", "legs", "bodyAngle"}

func (s llmStep) missing() []string {
	var out []string
	for name, value := range map[string]string{
		"stepName":           s.StepName,
		"global_description": s.GlobalDescription,
		"styleAndHistory":    s.StyleAndHistory,
		"spiceItUp":          s.SpiceItUp,
	} {
		if strings.TrimSpace(value) == "" {
			out = append(out, name)
		}
	}
	for _, key := range descriptionKeys {
		if strings.TrimSpace(s.Description[key]) == "" {
			out = append(out, "description."+key)
		}
	}
	sort.Strings(out)
	return out
}

func (s llmStep) toStep() Step {
	return Step{
		Name:              strings.TrimSpace(s.StepName),
		GlobalDescription: strings.TrimSpace(s.GlobalDescription),
		Description: Description{
			Head:      strings.TrimSpace(s.Description["head"]),
			Hands:     strings.TrimSpace(s.Description["hands"]),
			Shoulders: strings.TrimSpace(s.Description["shoulders"]),
			Torso:     strings.TrimSpace(s.Description["torso"]),
			Legs:      strings.TrimSpace(s.Description["legs"]),
			BodyAngle: strings.TrimSpace(s.Description["bodyAngle"]),
		},
		StyleAndHistory: strings.TrimSpace(s.StyleAndHistory),
		SpiceItUp:       strings.TrimSpace(s.SpiceItUp),
	}
}

func missingKeys(payload map[string]any, keys []string) []string {
	var out []string
	for _, k := range keys {
		if _, ok := payload[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}

func remarshal(payload map[string]any, target any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unexpected payload shape: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
