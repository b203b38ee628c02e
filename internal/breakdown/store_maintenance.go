package breakdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
)

// Stats aggregates breakdown and cache-hit counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	var counts struct {
		Total      int `db:"total"`
		Successful int `db:"successful"`
		Unique     int `db:"unique_sources"`
	}
	var hits int
	err := retryOnBusy(ctx, func() error {
		if err := s.db.GetContext(ctx, &counts,
			`SELECT COUNT(1) AS total,
                    COALESCE(SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END), 0) AS successful,
                    COUNT(DISTINCT source_identity) AS unique_sources
             FROM breakdowns`); err != nil {
			return err
		}
		return s.db.GetContext(ctx, &hits, `SELECT COUNT(1) FROM cache_hits`)
	})
	if err != nil {
		return Stats{}, fmt.Errorf("breakdown stats: %w", err)
	}
	return computeStats(counts.Total, counts.Successful, counts.Unique, hits), nil
}

func computeStats(total, successful, unique, hits int) Stats {
	stats := Stats{
		Total:         total,
		Successful:    successful,
		Failed:        total - successful,
		UniqueSources: unique,
		CacheHits:     hits,
	}
	if total > 0 {
		stats.CacheEfficiencyPct = float64(total-unique) / float64(total) * 100
		stats.SuccessRatePct = float64(successful) / float64(total) * 100
	}
	return stats
}

// ReconcileDuplicates keeps one breakdown per identity, preferring a success
// and then the newest row, and deletes the rest in a single transaction.
func (s *Store) ReconcileDuplicates(ctx context.Context) (ReconcileResult, error) {
	ctx = ensureContext(ctx)
	var result ReconcileResult
	err := retryOnBusy(ctx, func() error {
		result = ReconcileResult{}
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		var identities []string
		if err := tx.SelectContext(ctx, &identities,
			`SELECT source_identity FROM breakdowns GROUP BY source_identity HAVING COUNT(1) > 1 ORDER BY source_identity`); err != nil {
			return err
		}
		for _, identity := range identities {
			removed, err := reconcileIdentity(ctx, tx, identity)
			if err != nil {
				return err
			}
			result.RemovedCount += removed
			result.SourcesProcessed++
		}
		return tx.Commit()
	})
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("reconcile duplicates: %w", err)
	}
	return result, nil
}

func reconcileIdentity(ctx context.Context, tx *sqlx.Tx, identity string) (int, error) {
	var ids []int64
	if err := tx.SelectContext(ctx, &ids,
		`SELECT id FROM breakdowns WHERE source_identity = ?
         ORDER BY success DESC, created_at DESC, id DESC`, identity); err != nil {
		return 0, err
	}
	if len(ids) < 2 {
		return 0, nil
	}
	query, args, err := sqlx.In(`DELETE FROM breakdowns WHERE id IN (?)`, ids[1:])
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, tx.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

// CheckHealth returns diagnostic information about the breakdown database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("breakdown database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat breakdown database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("breakdown database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("breakdown database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping breakdown database: %w", err)
	}
	health.DatabaseReadable = true

	version, err := s.readSchemaVersion(connCtx)
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	health.SchemaVersion = version

	var columns []struct {
		CID     int     `db:"cid"`
		Name    string  `db:"name"`
		Type    string  `db:"type"`
		NotNull int     `db:"notnull"`
		Default *string `db:"dflt_value"`
		PK      int     `db:"pk"`
	}
	if err := s.db.SelectContext(connCtx, &columns, "PRAGMA table_info(breakdowns)"); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("table info: %w", err)
	}
	health.TableExists = len(columns) > 0
	present := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		present[col.Name] = struct{}{}
		health.ColumnsPresent = append(health.ColumnsPresent, col.Name)
	}
	for _, name := range expectedColumns {
		if _, ok := present[name]; !ok {
			health.MissingColumns = append(health.MissingColumns, name)
		}
	}

	if health.TableExists {
		if err := s.db.GetContext(connCtx, &health.TotalBreakdowns, "SELECT COUNT(1) FROM breakdowns"); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count breakdowns: %w", err)
		}
	}
	return health, nil
}
