package testsupport

import (
	"testing"

	"dancebreak/internal/breakdown"
	"dancebreak/internal/config"
)

// MustOpenStore opens a breakdown.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *breakdown.Store {
	t.Helper()

	store, err := breakdown.Open(cfg)
	if err != nil {
		t.Fatalf("breakdown.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
