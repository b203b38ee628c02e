package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultWeightsVersion identifies the built-in weight table.
const DefaultWeightsVersion = "2024.1"

// Score dimensions.
const (
	DimensionTechnique  = "technique"
	DimensionRhythm     = "rhythm"
	DimensionExpression = "expression"
	DimensionDifficulty = "difficulty"
)

// Dimensions lists the score dimensions in display order.
var Dimensions = []string{DimensionTechnique, DimensionRhythm, DimensionExpression, DimensionDifficulty}

// SubMetrics lists the metrics blended into each dimension.
var SubMetrics = map[string][]string{
	DimensionTechnique:  {"balance", "alignment", "posture", "precision", "consistency"},
	DimensionRhythm:     {"beat_sync", "timing", "consistency", "tempo", "musicality"},
	DimensionExpression: {"flow", "energy", "style", "performance", "artistic"},
	DimensionDifficulty: {"complexity", "physical_demand", "skill", "coordination", "overall"},
}

// ChallengeWeights blends the four dimension scores into a total.
type ChallengeWeights struct {
	Technique  float64 `toml:"technique" json:"technique"`
	Rhythm     float64 `toml:"rhythm" json:"rhythm"`
	Expression float64 `toml:"expression" json:"expression"`
	Difficulty float64 `toml:"difficulty" json:"difficulty"`
}

// Sum returns the total of all four weights.
func (w ChallengeWeights) Sum() float64 {
	return w.Technique + w.Rhythm + w.Expression + w.Difficulty
}

// Thresholds gate which frames count toward scoring.
type Thresholds struct {
	FrameConfidence           float64 `toml:"frame_confidence"`
	MinKeypoints              int     `toml:"min_keypoints"`
	FullPoseKeypoints         int     `toml:"full_pose_keypoints"`
	MinValidFrames            int     `toml:"min_valid_frames"`
	MinSeries                 int     `toml:"min_series"`
	NeutralScore              int     `toml:"neutral_score"`
	InsufficientConfidenceCap float64 `toml:"insufficient_confidence_cap"`
	MovementEpsilon           float64 `toml:"movement_epsilon"`
	KeypointConfidence        float64 `toml:"keypoint_confidence"`
}

// Scales are the penalty multipliers applied inside individual metrics.
type Scales struct {
	Balance           float64 `toml:"balance"`
	Alignment         float64 `toml:"alignment"`
	Posture           float64 `toml:"posture"`
	Precision         float64 `toml:"precision"`
	Consistency       float64 `toml:"consistency"`
	BeatSync          float64 `toml:"beat_sync"`
	Timing            float64 `toml:"timing"`
	Rhythm            float64 `toml:"rhythm"`
	Flow              float64 `toml:"flow"`
	Artistic          float64 `toml:"artistic"`
	StyleAuthenticity float64 `toml:"style_authenticity"`
	NoTempoNeutral    float64 `toml:"no_tempo_neutral"`
	BalanceNeutral    float64 `toml:"balance_neutral"`
}

// WeightTable is the versioned set of scoring constants.
type WeightTable struct {
	Version               string                        `toml:"version"`
	DefaultChallenge      string                        `toml:"default_challenge"`
	Challenges            map[string]ChallengeWeights   `toml:"challenges"`
	SubMetricWeights      map[string]map[string]float64 `toml:"sub_metric_weights"`
	DifficultyMultipliers map[string]float64            `toml:"difficulty_multipliers"`
	Thresholds            Thresholds                    `toml:"thresholds"`
	Scales                Scales                        `toml:"scales"`
}

// DefaultWeights returns the built-in weight table.
func DefaultWeights() WeightTable {
	sub := make(map[string]map[string]float64, len(SubMetrics))
	for dim, metrics := range SubMetrics {
		w := make(map[string]float64, len(metrics))
		for _, m := range metrics {
			w[m] = 1.0 / float64(len(metrics))
		}
		sub[dim] = w
	}
	return WeightTable{
		Version:          DefaultWeightsVersion,
		DefaultChallenge: "freestyle",
		Challenges: map[string]ChallengeWeights{
			"freestyle": {Technique: 0.25, Rhythm: 0.30, Expression: 0.30, Difficulty: 0.15},
			"static":    {Technique: 0.40, Rhythm: 0.20, Expression: 0.25, Difficulty: 0.15},
			"spin":      {Technique: 0.35, Rhythm: 0.25, Expression: 0.20, Difficulty: 0.20},
			"combo":     {Technique: 0.30, Rhythm: 0.25, Expression: 0.25, Difficulty: 0.20},
		},
		SubMetricWeights: sub,
		DifficultyMultipliers: map[string]float64{
			"beginner":     0.7,
			"intermediate": 1.0,
			"advanced":     1.3,
		},
		Thresholds: Thresholds{
			FrameConfidence:           0.5,
			MinKeypoints:              10,
			FullPoseKeypoints:         17,
			MinValidFrames:            10,
			MinSeries:                 5,
			NeutralScore:              50,
			InsufficientConfidenceCap: 0.25,
			MovementEpsilon:           0.01,
			KeypointConfidence:        0.5,
		},
		Scales: Scales{
			Balance:           10,
			Alignment:         5,
			Posture:           2,
			Precision:         2,
			Consistency:       2,
			BeatSync:          5,
			Timing:            10,
			Rhythm:            5,
			Flow:              5,
			Artistic:          5,
			StyleAuthenticity: 0.7,
			NoTempoNeutral:    0.5,
			BalanceNeutral:    0.5,
		},
	}
}

// ChallengeWeightsFor resolves the weight set for a challenge type, falling back
// to the default challenge when the type is unknown.
func (t WeightTable) ChallengeWeightsFor(challengeType string) (ChallengeWeights, string) {
	key := strings.ToLower(strings.TrimSpace(challengeType))
	if w, ok := t.Challenges[key]; ok {
		return w, key
	}
	return t.Challenges[t.DefaultChallenge], t.DefaultChallenge
}

// DifficultyMultiplier returns the multiplier for a difficulty label (1 when unknown).
func (t WeightTable) DifficultyMultiplier(label string) float64 {
	if m, ok := t.DifficultyMultipliers[strings.ToLower(strings.TrimSpace(label))]; ok {
		return m
	}
	return 1.0
}

// ChallengeTypes returns the configured challenge type names sorted.
func (t WeightTable) ChallengeTypes() []string {
	names := make([]string, 0, len(t.Challenges))
	for name := range t.Challenges {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const weightTolerance = 1e-6

// Validate checks every weight set is non-negative and sums to one.
func (t WeightTable) Validate() error {
	if strings.TrimSpace(t.Version) == "" {
		return errors.New("version must be set")
	}
	if len(t.Challenges) == 0 {
		return errors.New("at least one challenge weight set is required")
	}
	if _, ok := t.Challenges[t.DefaultChallenge]; !ok {
		return fmt.Errorf("default_challenge %q has no weight set", t.DefaultChallenge)
	}
	for _, name := range t.ChallengeTypes() {
		w := t.Challenges[name]
		if w.Technique < 0 || w.Rhythm < 0 || w.Expression < 0 || w.Difficulty < 0 {
			return fmt.Errorf("challenges.%s: weights must be >= 0", name)
		}
		if math.Abs(w.Sum()-1) > weightTolerance {
			return fmt.Errorf("challenges.%s: weights sum to %.4f, want 1", name, w.Sum())
		}
	}
	for _, dim := range Dimensions {
		weights, ok := t.SubMetricWeights[dim]
		if !ok {
			return fmt.Errorf("sub_metric_weights.%s is missing", dim)
		}
		var sum float64
		for _, metric := range SubMetrics[dim] {
			w, ok := weights[metric]
			if !ok {
				return fmt.Errorf("sub_metric_weights.%s.%s is missing", dim, metric)
			}
			if w < 0 {
				return fmt.Errorf("sub_metric_weights.%s.%s must be >= 0", dim, metric)
			}
			sum += w
		}
		if math.Abs(sum-1) > weightTolerance {
			return fmt.Errorf("sub_metric_weights.%s: weights sum to %.4f, want 1", dim, sum)
		}
	}
	for label, m := range t.DifficultyMultipliers {
		if m <= 0 {
			return fmt.Errorf("difficulty_multipliers.%s must be positive", label)
		}
	}
	th := t.Thresholds
	if th.FrameConfidence < 0 || th.FrameConfidence > 1 {
		return errors.New("thresholds.frame_confidence must be between 0 and 1")
	}
	if th.KeypointConfidence < 0 || th.KeypointConfidence > 1 {
		return errors.New("thresholds.keypoint_confidence must be between 0 and 1")
	}
	if th.InsufficientConfidenceCap < 0 || th.InsufficientConfidenceCap > 1 {
		return errors.New("thresholds.insufficient_confidence_cap must be between 0 and 1")
	}
	if th.NeutralScore < 0 || th.NeutralScore > 100 {
		return errors.New("thresholds.neutral_score must be between 0 and 100")
	}
	if th.MinKeypoints < 1 || th.MinValidFrames < 1 || th.MinSeries < 2 || th.FullPoseKeypoints < th.MinKeypoints {
		return errors.New("thresholds: min_keypoints, min_valid_frames >= 1, min_series >= 2, full_pose_keypoints >= min_keypoints")
	}
	return nil
}

// LoadWeights reads a weight table file and overlays it onto the built-in table.
// Sections absent from the file keep their default values.
func LoadWeights(path string) (WeightTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WeightTable{}, fmt.Errorf("read weight table: %w", err)
	}
	return ParseWeights(data)
}

// ParseWeights decodes a TOML weight table and overlays it onto the built-in table.
func ParseWeights(data []byte) (WeightTable, error) {
	var overlay WeightTable
	if err := toml.Unmarshal(data, &overlay); err != nil {
		return WeightTable{}, fmt.Errorf("parse weight table: %w", err)
	}
	base := DefaultWeights()
	if v := strings.TrimSpace(overlay.Version); v != "" {
		base.Version = v
	}
	if d := strings.ToLower(strings.TrimSpace(overlay.DefaultChallenge)); d != "" {
		base.DefaultChallenge = d
	}
	for name, w := range overlay.Challenges {
		base.Challenges[strings.ToLower(strings.TrimSpace(name))] = w
	}
	for dim, metrics := range overlay.SubMetricWeights {
		target, ok := base.SubMetricWeights[dim]
		if !ok {
			return WeightTable{}, fmt.Errorf("parse weight table: unknown dimension %q", dim)
		}
		for metric, w := range metrics {
			target[metric] = w
		}
	}
	for label, m := range overlay.DifficultyMultipliers {
		base.DifficultyMultipliers[strings.ToLower(strings.TrimSpace(label))] = m
	}
	mergeThresholds(&base.Thresholds, overlay.Thresholds)
	mergeScales(&base.Scales, overlay.Scales)
	return base, nil
}

// EncodeWeights renders the table as TOML.
func EncodeWeights(t WeightTable) ([]byte, error) {
	return toml.Marshal(t)
}

func mergeThresholds(dst *Thresholds, src Thresholds) {
	overlayFloat(&dst.FrameConfidence, src.FrameConfidence)
	overlayInt(&dst.MinKeypoints, src.MinKeypoints)
	overlayInt(&dst.FullPoseKeypoints, src.FullPoseKeypoints)
	overlayInt(&dst.MinValidFrames, src.MinValidFrames)
	overlayInt(&dst.MinSeries, src.MinSeries)
	overlayInt(&dst.NeutralScore, src.NeutralScore)
	overlayFloat(&dst.InsufficientConfidenceCap, src.InsufficientConfidenceCap)
	overlayFloat(&dst.MovementEpsilon, src.MovementEpsilon)
	overlayFloat(&dst.KeypointConfidence, src.KeypointConfidence)
}

func mergeScales(dst *Scales, src Scales) {
	overlayFloat(&dst.Balance, src.Balance)
	overlayFloat(&dst.Alignment, src.Alignment)
	overlayFloat(&dst.Posture, src.Posture)
	overlayFloat(&dst.Precision, src.Precision)
	overlayFloat(&dst.Consistency, src.Consistency)
	overlayFloat(&dst.BeatSync, src.BeatSync)
	overlayFloat(&dst.Timing, src.Timing)
	overlayFloat(&dst.Rhythm, src.Rhythm)
	overlayFloat(&dst.Flow, src.Flow)
	overlayFloat(&dst.Artistic, src.Artistic)
	overlayFloat(&dst.StyleAuthenticity, src.StyleAuthenticity)
	overlayFloat(&dst.NoTempoNeutral, src.NoTempoNeutral)
	overlayFloat(&dst.BalanceNeutral, src.BalanceNeutral)
}

// Zero values in an overlay mean "not set".
func overlayFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func overlayInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
