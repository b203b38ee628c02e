package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dancebreak/internal/config"
	"dancebreak/internal/fileutil"
	"dancebreak/internal/logging"
	"dancebreak/internal/media/ffmpeg"
	"dancebreak/internal/media/ffprobe"
	"dancebreak/internal/objectstore"
	"dancebreak/internal/services"
	"dancebreak/internal/source"
	"dancebreak/internal/tempo"
)

const (
	mediaFileName = "source.mp4"
	audioFileName = "audio.wav"
)

// likelyCauses is appended to acquisition failures for external sources.
var likelyCauses = []string{
	"private or deleted",
	"age-restricted and requiring sign-in",
	"geo-restricted or region-locked",
	"protected by anti-bot measures",
}

// Request carries per-run ingest options.
type Request struct {
	UserID string
	// Upload stores a playable copy when the ingestor has an object store.
	Upload bool
	// SkipAudio disables audio extraction and tempo estimation.
	SkipAudio bool
}

// Media is an acquired, validated video. It owns its work directory.
type Media struct {
	Source           source.Source
	Path             string
	Dir              string
	Strategy         string
	Title            string
	DurationSeconds  float64
	DurationFallback bool
	BPM              *float64
	AudioPath        string
	PlayableKey      string
	PlayableURL      string
	Probe            ffprobe.Result
}

// Cleanup removes the work directory.
func (m *Media) Cleanup() error {
	if m == nil || m.Dir == "" {
		return nil
	}
	return os.RemoveAll(m.Dir)
}

// Options configures an Ingestor.
type Options struct {
	WorkDir                string
	FFmpegBinary           string
	FFprobeBinary          string
	StrategyTimeout        time.Duration
	MinFileBytes           int64
	DefaultDurationSeconds float64
	KeyPrefix              string
	PresignTTL             time.Duration
}

// OptionsFromConfig maps configuration onto ingest options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		WorkDir:                cfg.Paths.WorkDir,
		FFmpegBinary:           cfg.Ingest.FFmpegBinary,
		FFprobeBinary:          cfg.Ingest.FFprobeBinary,
		StrategyTimeout:        time.Duration(cfg.Ingest.StrategyTimeoutSeconds) * time.Second,
		MinFileBytes:           cfg.Ingest.MinFileBytes,
		DefaultDurationSeconds: cfg.Ingest.DefaultDurationSeconds,
		KeyPrefix:              cfg.ObjectStore.KeyPrefix,
		PresignTTL:             time.Duration(cfg.ObjectStore.PresignTTLSeconds) * time.Second,
	}
}

// Ingestor runs acquisition strategies and gathers media facts.
type Ingestor struct {
	opts       Options
	strategies []Strategy
	store      objectstore.Store
	tempo      tempo.Estimator
	logger     *slog.Logger
	now        func() time.Time
}

// Option customises an Ingestor.
type Option func(*Ingestor)

// WithStrategies replaces the strategy list.
func WithStrategies(strategies ...Strategy) Option {
	return func(i *Ingestor) {
		i.strategies = strategies
	}
}

// WithClock overrides the clock used for object keys.
func WithClock(now func() time.Time) Option {
	return func(i *Ingestor) {
		if now != nil {
			i.now = now
		}
	}
}

// New builds an ingestor. store and estimator may be nil.
func New(opts Options, store objectstore.Store, estimator tempo.Estimator, logger *slog.Logger, options ...Option) *Ingestor {
	if opts.MinFileBytes <= 0 {
		opts.MinFileBytes = 1024
	}
	if opts.DefaultDurationSeconds <= 0 {
		opts.DefaultDurationSeconds = 30
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	i := &Ingestor{
		opts:   opts,
		store:  store,
		tempo:  estimator,
		logger: logger,
		now:    time.Now,
	}
	if store != nil {
		i.strategies = append(i.strategies, ObjectStoreStrategy{Store: store})
	}
	i.strategies = append(i.strategies, LocalFileStrategy{})
	for _, opt := range options {
		opt(i)
	}
	return i
}

// NewFromConfig wires the configured yt-dlp profiles after the built-in
// object and file strategies, with a direct HTTP download last.
func NewFromConfig(cfg *config.Config, store objectstore.Store, estimator tempo.Estimator, logger *slog.Logger) *Ingestor {
	i := New(OptionsFromConfig(cfg), store, estimator, logger)
	profiles, unknown := ProfileStrategies(cfg.Ingest.YTDLPBinary, cfg.Ingest.Profiles, cfg.Ingest.CookiesFile, cfg.Ingest.InstagramCookiesFile)
	if len(unknown) > 0 {
		logging.WarnWithContext(i.logger, "ignoring unknown download profiles", "ingest_profile_unknown",
			logging.String("profiles", strings.Join(unknown, ",")),
			logging.String(logging.FieldErrorHint, "known profiles are ios, android, web_low"),
			logging.String(logging.FieldImpact, "fewer download strategies are tried"),
		)
	}
	i.strategies = append(i.strategies, profiles...)
	i.strategies = append(i.strategies, HTTPStrategy{})
	return i
}

// Ingest acquires src and returns the validated media. Only acquisition
// failure is returned as an error and it is marked ErrIngestionFailed.
func (i *Ingestor) Ingest(ctx context.Context, src source.Source, req Request) (*Media, error) {
	if err := os.MkdirAll(i.opts.WorkDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrIngestionFailed, "ingest", "workdir", "create work directory", err)
	}
	dir, err := os.MkdirTemp(i.opts.WorkDir, "ingest-")
	if err != nil {
		return nil, services.Wrap(services.ErrIngestionFailed, "ingest", "workdir", "create temp directory", err)
	}
	media := &Media{Source: src, Dir: dir, Title: titleFor(src)}

	if err := i.acquire(ctx, media); err != nil {
		_ = media.Cleanup()
		return nil, err
	}

	media.DurationSeconds = media.Probe.DurationSeconds()
	if media.DurationSeconds <= 0 {
		media.DurationSeconds = i.opts.DefaultDurationSeconds
		media.DurationFallback = true
		logging.WarnWithContext(i.logger, "media duration unavailable; using default", "duration_fallback",
			logging.Float64("duration_seconds", media.DurationSeconds),
			logging.String(logging.FieldErrorHint, "ffprobe reported no container duration"),
			logging.String(logging.FieldImpact, "segment grid assumes the default duration"),
		)
	}

	if !req.SkipAudio {
		i.analyzeAudio(ctx, media)
	}
	if req.Upload && i.store != nil {
		i.upload(ctx, media, req.UserID)
	}
	if err := ctx.Err(); err != nil {
		_ = media.Cleanup()
		return nil, err
	}
	return media, nil
}

func (i *Ingestor) acquire(ctx context.Context, media *Media) error {
	src := media.Source
	dst := filepath.Join(media.Dir, mediaFileName)
	var attempts []error
	for _, strategy := range i.strategies {
		if !strategy.Applies(src) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		i.logger.Debug("trying acquisition strategy", logging.String("strategy", strategy.Name()))
		probe, err := i.attempt(ctx, strategy, src, dst)
		if err != nil {
			_ = os.Remove(dst)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			i.logger.Info("acquisition strategy failed",
				logging.String("strategy", strategy.Name()),
				logging.Error(err),
			)
			attempts = append(attempts, attemptError{strategy: strategy.Name(), err: err})
			continue
		}
		media.Path = dst
		media.Strategy = strategy.Name()
		media.Probe = probe
		i.logger.Info("media acquired",
			logging.String("strategy", strategy.Name()),
			logging.Int64("size_bytes", probe.SizeBytes()),
		)
		return nil
	}
	if len(attempts) == 0 {
		attempts = append(attempts, errNoStrategy)
	}
	return services.Wrap(services.ErrIngestionFailed, "ingest", "acquire", failureMessage(src, attempts), errors.Join(attempts...))
}

func (i *Ingestor) attempt(ctx context.Context, strategy Strategy, src source.Source, dst string) (ffprobe.Result, error) {
	attemptCtx := ctx
	if i.opts.StrategyTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, i.opts.StrategyTimeout)
		defer cancel()
	}
	if err := strategy.Fetch(attemptCtx, src, dst); err != nil {
		return ffprobe.Result{}, err
	}
	return i.validate(ctx, dst)
}

// validate checks the file exists, meets the minimum size, and has a video
// stream ffprobe can read.
func (i *Ingestor) validate(ctx context.Context, path string) (ffprobe.Result, error) {
	size, err := fileutil.Size(path)
	if err != nil {
		return ffprobe.Result{}, fmt.Errorf("downloaded file missing: %w", err)
	}
	if size < i.opts.MinFileBytes {
		return ffprobe.Result{}, fmt.Errorf("downloaded file too small: %d bytes (minimum %d)", size, i.opts.MinFileBytes)
	}
	probe, err := ffprobe.Inspect(ctx, i.opts.FFprobeBinary, path)
	if err != nil {
		return ffprobe.Result{}, err
	}
	if probe.VideoStreamCount() == 0 {
		return ffprobe.Result{}, errors.New("no video stream found")
	}
	return probe, nil
}

func (i *Ingestor) analyzeAudio(ctx context.Context, media *Media) {
	audioPath := filepath.Join(media.Dir, audioFileName)
	if err := ffmpeg.ExtractAudio(ctx, i.opts.FFmpegBinary, media.Path, audioPath); err != nil {
		i.softFailure("audio extraction failed; tempo unknown", "audio_unavailable",
			services.Wrap(services.ErrAudioUnavailable, "ingest", "extract_audio", "", err),
			"segmentation falls back to change points and a default grid")
		return
	}
	media.AudioPath = audioPath
	if i.tempo == nil {
		return
	}
	bpm, err := i.tempo.EstimateBPM(ctx, audioPath)
	if err != nil {
		i.softFailure("tempo estimation failed", "tempo_unavailable",
			services.Wrap(services.ErrAudioUnavailable, "ingest", "estimate_tempo", "", err),
			"segments are not split on the beat")
		return
	}
	media.BPM = tempo.RoundBPM(bpm)
	if media.BPM != nil {
		i.logger.Info("tempo estimated", logging.Float64("bpm", *media.BPM))
	}
}

func (i *Ingestor) upload(ctx context.Context, media *Media, userID string) {
	key := objectstore.PlayableKey(i.opts.KeyPrefix, userID, media.Source.Identity, i.now())
	if _, err := i.store.Upload(ctx, media.Path, key); err != nil {
		i.softFailure("playable media upload failed", "playable_upload_failed", err, "breakdown has no playable media url")
		return
	}
	url, err := i.store.PresignedURL(ctx, key, i.opts.PresignTTL)
	if err != nil {
		i.softFailure("presigning playable media failed", "playable_presign_failed", err, "breakdown has no playable media url")
		return
	}
	media.PlayableKey = key
	media.PlayableURL = url
}

func (i *Ingestor) softFailure(msg, eventType string, err error, impact string) {
	attrs := append(logging.Failure(err), logging.String(logging.FieldImpact, impact))
	logging.WarnWithContext(i.logger, msg, eventType, attrs...)
}

func failureMessage(src source.Source, attempts []error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "all %d acquisition strategies failed for %s", len(attempts), src.Original)
	if src.Kind == source.KindExternal {
		b.WriteString("; the video may be ")
		b.WriteString(strings.Join(likelyCauses, ", "))
	}
	return b.String()
}

func titleFor(src source.Source) string {
	switch src.Kind {
	case source.KindFile, source.KindObject:
		base := filepath.Base(src.Locator)
		return strings.TrimSuffix(base, filepath.Ext(base))
	default:
		if src.IsSynthetic() {
			return strings.TrimPrefix(src.Locator, source.ExternalScheme+"://")
		}
		return src.Locator
	}
}
