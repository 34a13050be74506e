package main

import (
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/interval-research/internal/catalog"
	"github.com/sells-group/interval-research/internal/dispatch"
	"github.com/sells-group/interval-research/internal/monitoring"
	"github.com/sells-group/interval-research/internal/reconcile"
	"github.com/sells-group/interval-research/internal/research"
	"github.com/sells-group/interval-research/internal/store"
)

// newTestEnv builds an appEnv over a temp-dir SQLite store and the default
// rule catalog, with metrics registered on reg.
func newTestEnv(t *testing.T, reg prometheus.Registerer) *appEnv {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(t.Context()))

	metrics := monitoring.NewMetrics(reg)
	env := &appEnv{
		Store:      st,
		Engine:     research.New(dispatch.New(catalog.NewDefaultRegistry()), research.WithMetrics(metrics)),
		Reconciler: reconcile.New(st),
		Metrics:    metrics,
	}
	t.Cleanup(env.Close)
	return env
}
