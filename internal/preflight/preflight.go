package preflight

import (
	"context"

	"dancebreak/internal/config"
	"dancebreak/internal/pipeline"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
	}
	if cfg.Paths.ObjectsDir != "" {
		results = append(results, CheckDirectoryAccess("Object store", cfg.Paths.ObjectsDir))
	}
	if cfg.Ingest.MinFreeGiB > 0 {
		results = append(results, CheckDiskSpace("Work disk space", cfg.Paths.WorkDir, cfg.Ingest.MinFreeGiB))
	}

	if cfg.Lock.Backend == config.LockBackendRedis {
		results = append(results, CheckRedis(ctx, cfg.Redis.URL))
	}
	if cfg.Pose.Endpoint != "" {
		results = append(results, CheckPose(ctx, cfg.Pose))
	}
	if cfg.LLM.APIKey != "" {
		results = append(results, CheckLLM(ctx, "Step LLM", pipeline.LLMConfig(cfg)))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
