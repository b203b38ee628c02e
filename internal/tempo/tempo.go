package tempo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/wav"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Estimator returns the tempo of a WAV file in beats per minute. A nil result
// with a nil error means no tempo could be detected.
type Estimator interface {
	EstimateBPM(ctx context.Context, wavPath string) (*float64, error)
}

// EstimatorFunc adapts a function to Estimator.
type EstimatorFunc func(ctx context.Context, wavPath string) (*float64, error)

// EstimateBPM calls f.
func (f EstimatorFunc) EstimateBPM(ctx context.Context, wavPath string) (*float64, error) {
	return f(ctx, wavPath)
}

// Defaults for the energy autocorrelation estimator.
const (
	DefaultFrameSize = 1024
	DefaultHopSize   = 512
	DefaultMinBPM    = 60.0
	DefaultMaxBPM    = 200.0
	DefaultPriorBPM  = 120.0
)

// AutocorrelationEstimator finds the dominant periodicity of the onset
// strength envelope. Lags are weighted by a log-normal prior centred on
// PriorBPM so that octave errors favour common dance tempos.
type AutocorrelationEstimator struct {
	FrameSize int
	HopSize   int
	MinBPM    float64
	MaxBPM    float64
	PriorBPM  float64
}

// NewAutocorrelationEstimator returns an estimator with default parameters.
func NewAutocorrelationEstimator() *AutocorrelationEstimator {
	return &AutocorrelationEstimator{
		FrameSize: DefaultFrameSize,
		HopSize:   DefaultHopSize,
		MinBPM:    DefaultMinBPM,
		MaxBPM:    DefaultMaxBPM,
		PriorBPM:  DefaultPriorBPM,
	}
}

// EstimateBPM decodes wavPath and estimates its tempo.
func (e *AutocorrelationEstimator) EstimateBPM(ctx context.Context, wavPath string) (*float64, error) {
	samples, rate, err := ReadMono(wavPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	bpm, ok := e.Estimate(samples, rate)
	if !ok {
		return nil, nil
	}
	return &bpm, nil
}

// Estimate runs the estimator over mono samples in [-1, 1].
func (e *AutocorrelationEstimator) Estimate(samples []float64, sampleRate int) (float64, bool) {
	frame, hop := e.FrameSize, e.HopSize
	if frame <= 0 {
		frame = DefaultFrameSize
	}
	if hop <= 0 {
		hop = DefaultHopSize
	}
	minBPM, maxBPM, prior := e.MinBPM, e.MaxBPM, e.PriorBPM
	if minBPM <= 0 {
		minBPM = DefaultMinBPM
	}
	if maxBPM <= minBPM {
		maxBPM = DefaultMaxBPM
	}
	if prior <= 0 {
		prior = DefaultPriorBPM
	}
	if sampleRate <= 0 {
		return 0, false
	}

	envelope := OnsetEnvelope(samples, frame, hop)
	if len(envelope) < 4 {
		return 0, false
	}
	if floats.Max(envelope) <= 1e-9 {
		return 0, false
	}

	framesPerSecond := float64(sampleRate) / float64(hop)
	minLag := int(math.Floor(60 * framesPerSecond / maxBPM))
	maxLag := int(math.Ceil(60 * framesPerSecond / minBPM))
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(envelope) {
		maxLag = len(envelope) - 1
	}
	if minLag > maxLag {
		return 0, false
	}

	mean := stat.Mean(envelope, nil)
	centered := make([]float64, len(envelope))
	for i, v := range envelope {
		centered[i] = v - mean
	}
	energy := floats.Dot(centered, centered)
	if energy <= 1e-12 {
		return 0, false
	}

	bestLag, bestScore := 0, math.Inf(-1)
	for lag := minLag; lag <= maxLag; lag++ {
		ac := floats.Dot(centered[:len(centered)-lag], centered[lag:]) / energy
		bpm := 60 * framesPerSecond / float64(lag)
		// log-normal prior, one octave standard deviation
		weight := math.Exp(-0.5 * math.Pow(math.Log2(bpm/prior), 2))
		if score := ac * weight; score > bestScore {
			bestScore, bestLag = score, lag
		}
	}
	if bestLag == 0 || bestScore <= 0 {
		return 0, false
	}
	return 60 * framesPerSecond / float64(bestLag), true
}

// OnsetEnvelope returns the half-wave rectified first difference of log frame
// energy, one value per hop.
func OnsetEnvelope(samples []float64, frameSize, hopSize int) []float64 {
	if frameSize <= 0 || hopSize <= 0 || len(samples) < frameSize {
		return nil
	}
	count := 1 + (len(samples)-frameSize)/hopSize
	logEnergy := make([]float64, count)
	for i := 0; i < count; i++ {
		window := samples[i*hopSize : i*hopSize+frameSize]
		logEnergy[i] = math.Log1p(floats.Dot(window, window))
	}
	envelope := make([]float64, count)
	for i := 1; i < count; i++ {
		if d := logEnergy[i] - logEnergy[i-1]; d > 0 {
			envelope[i] = d
		}
	}
	return envelope
}

// ReadMono decodes a PCM WAV file and mixes it down to mono samples in [-1, 1].
func ReadMono(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, errors.New("read wav: not a valid wav file")
	}
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("read wav: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return nil, 0, errors.New("read wav: missing format")
	}
	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}
	bitDepth := int(decoder.BitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := math.Pow(2, float64(bitDepth-1))
	frames := len(buf.Data) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(buf.Data[i*channels+c])
		}
		mono[i] = sum / float64(channels) / scale
	}
	return mono, buf.Format.SampleRate, nil
}

// RoundBPM rounds a tempo to one decimal place. Non-positive or missing values
// become nil.
func RoundBPM(bpm *float64) *float64 {
	if bpm == nil || math.IsNaN(*bpm) || math.IsInf(*bpm, 0) || *bpm <= 0 {
		return nil
	}
	rounded := math.Round(*bpm*10) / 10
	if rounded <= 0 {
		return nil
	}
	return &rounded
}
