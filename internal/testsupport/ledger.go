package testsupport

import (
	"testing"

	"photoferry/internal/config"
	"photoferry/internal/ledger"
)

// MustOpenLedger opens the ledger for cfg and closes it at test cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
