package scoring

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/stat"

	"dancebreak/internal/config"
	"dancebreak/internal/logging"
	"dancebreak/internal/pose"
	"dancebreak/internal/services"
)

// Request carries the challenge context for one scoring run.
type Request struct {
	ChallengeType       string
	ChallengeDifficulty string
	TargetBPM           *float64
}

// Result is the score breakdown for a performance.
type Result struct {
	Technique      int                           `json:"technique_score"`
	Rhythm         int                           `json:"rhythm_score"`
	Expression     int                           `json:"expression_score"`
	Difficulty     int                           `json:"difficulty_score"`
	Total          int                           `json:"total_score"`
	Confidence     float64                       `json:"confidence"`
	SubMetrics     map[string]map[string]float64 `json:"sub_metrics"`
	FramesAnalyzed int                           `json:"frames_analyzed"`
	TotalFrames    int                           `json:"total_frames"`
	ChallengeType  string                        `json:"challenge_type"`
	WeightsVersion string                        `json:"weights_version"`
	Insufficient   bool                          `json:"insufficient_data"`
	Feedback       Feedback                      `json:"feedback"`
}

// Score returns the sub-score for a dimension.
func (r Result) Score(dimension string) int {
	switch dimension {
	case config.DimensionTechnique:
		return r.Technique
	case config.DimensionRhythm:
		return r.Rhythm
	case config.DimensionExpression:
		return r.Expression
	case config.DimensionDifficulty:
		return r.Difficulty
	}
	return 0
}

// Engine scores pose tracks against a weight table.
type Engine struct {
	weights config.WeightTable
	logger  *slog.Logger
}

// NewEngine builds a scoring engine.
func NewEngine(weights config.WeightTable, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{weights: weights, logger: logger}
}

// Weights exposes the table the engine scores with.
func (e *Engine) Weights() config.WeightTable {
	return e.weights
}

// Score computes the four sub-scores, the weighted total and the analysis
// confidence. Insufficient pose data never fails: it yields neutral scores
// with capped confidence.
func (e *Engine) Score(track *pose.Track, req Request) Result {
	th := e.weights.Thresholds
	_, challenge := e.weights.ChallengeWeightsFor(req.ChallengeType)

	var all []pose.Frame
	if track != nil {
		all = track.Frames
	}
	valid := make([]pose.Frame, 0, len(all))
	for _, f := range all {
		if f.Confidence > th.FrameConfidence {
			valid = append(valid, f)
		}
	}

	result := Result{
		FramesAnalyzed: len(valid),
		TotalFrames:    len(all),
		ChallengeType:  challenge,
		WeightsVersion: e.weights.Version,
	}
	confidence := blendConfidence(valid, len(all))

	if len(valid) < th.MinValidFrames {
		err := services.Wrap(services.ErrScoringInsufficientData, "score", "Filter frames", "too few confident pose frames", nil)
		logging.WarnWithContext(e.logger, "scoring with neutral defaults", "scoring_insufficient_data",
			logging.Int("valid_frames", len(valid)),
			logging.Int("total_frames", len(all)),
			logging.Int("min_valid_frames", th.MinValidFrames),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Details(err).Hint),
			logging.String(logging.FieldImpact, "scores are neutral and low confidence"),
		)
		neutral := th.NeutralScore
		result.Technique, result.Rhythm, result.Expression, result.Difficulty = neutral, neutral, neutral, neutral
		result.Total = neutral
		result.Confidence = math.Min(confidence, th.InsufficientConfidenceCap)
		result.SubMetrics = neutralMetrics()
		result.Insufficient = true
		result.Feedback = BuildFeedback(result)
		return result
	}

	a := newAnalysis(valid, e.weights)
	metrics := map[string]map[string]float64{
		config.DimensionTechnique:  a.technique(),
		config.DimensionRhythm:     a.rhythm(req.TargetBPM),
		config.DimensionExpression: a.expression(),
		config.DimensionDifficulty: a.difficulty(e.weights.DifficultyMultiplier(req.ChallengeDifficulty)),
	}
	for _, dim := range metrics {
		for name, v := range dim {
			dim[name] = clamp01(v)
		}
	}
	result.SubMetrics = metrics
	result.Technique = e.subScore(config.DimensionTechnique, metrics)
	result.Rhythm = e.subScore(config.DimensionRhythm, metrics)
	result.Expression = e.subScore(config.DimensionExpression, metrics)
	result.Difficulty = e.subScore(config.DimensionDifficulty, metrics)
	result.Total = e.total(result, req.ChallengeType)
	result.Confidence = math.Min(1, confidence)
	result.Feedback = BuildFeedback(result)

	e.logger.Debug("performance scored",
		logging.Int("total_score", result.Total),
		logging.Float64("confidence", result.Confidence),
		logging.Int("valid_frames", len(valid)),
		logging.String("challenge_type", challenge),
	)
	return result
}

func (e *Engine) subScore(dimension string, metrics map[string]map[string]float64) int {
	weights := e.weights.SubMetricWeights[dimension]
	sum := 0.0
	for _, name := range config.SubMetrics[dimension] {
		sum += weights[name] * metrics[dimension][name]
	}
	return clampScore(floorScore(100 * sum))
}

func (e *Engine) total(r Result, challengeType string) int {
	w, _ := e.weights.ChallengeWeightsFor(challengeType)
	sum := float64(r.Technique)*w.Technique +
		float64(r.Rhythm)*w.Rhythm +
		float64(r.Expression)*w.Expression +
		float64(r.Difficulty)*w.Difficulty
	return clampScore(floorScore(sum))
}

func blendConfidence(valid []pose.Frame, total int) float64 {
	if total == 0 {
		return 0
	}
	ratio := float64(len(valid)) / float64(total)
	mean := 0.0
	if len(valid) > 0 {
		conf := make([]float64, len(valid))
		for i, f := range valid {
			conf[i] = f.Confidence
		}
		mean = stat.Mean(conf, nil)
	}
	return (ratio + mean) / 2
}

func neutralMetrics() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(config.SubMetrics))
	for dim, names := range config.SubMetrics {
		m := make(map[string]float64, len(names))
		for _, name := range names {
			m[name] = 0.5
		}
		out[dim] = m
	}
	return out
}

// floorScore truncates while absorbing float noise such as 49.999999999.
func floorScore(v float64) int {
	return int(math.Floor(v + 1e-9))
}

func clampScore(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
