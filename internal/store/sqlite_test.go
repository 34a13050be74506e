package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/interval-research/internal/model"
	"github.com/sells-group/interval-research/internal/resilience"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testInterval(userID, carID int64, item string, miles int) *model.ServiceInterval {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &model.ServiceInterval{
		UserID:          userID,
		CarID:           carID,
		ServiceItem:     item,
		IntervalMiles:   model.Int(miles),
		Priority:        model.PriorityMedium,
		CostEstimateLow: model.Float(40),
		Source:          "Industry Standard",
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func insertIntervals(t *testing.T, st *SQLiteStore, ivs ...*model.ServiceInterval) {
	t.Helper()
	err := st.InTx(context.Background(), func(tx IntervalTx) error {
		for _, iv := range ivs {
			if err := tx.InsertInterval(context.Background(), iv); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Ping(context.Background()))
}

func TestSQLite_InsertAndListActive(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	oil := testInterval(1, 10, "Engine Oil & Filter", 5000)
	tires := testInterval(1, 10, "Tire Rotation", 7500)
	other := testInterval(1, 11, "Tire Rotation", 6000)
	insertIntervals(t, st, oil, tires, other)

	assert.NotZero(t, oil.ID)
	assert.NotEqual(t, oil.ID, tires.ID)

	got, err := st.ActiveIntervals(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Engine Oil & Filter", got[0].ServiceItem)
	assert.Equal(t, 5000, *got[0].IntervalMiles)
	assert.Nil(t, got[0].IntervalMonths)
	assert.Nil(t, got[0].CostEstimateHigh)
	assert.InDelta(t, 40.0, *got[0].CostEstimateLow, 0.001)
	assert.Equal(t, model.PriorityMedium, got[0].Priority)
	assert.True(t, got[0].IsActive)
	assert.Equal(t, "Tire Rotation", got[1].ServiceItem)

	none, err := st.ActiveIntervals(ctx, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLite_UpdateInterval(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	iv := testInterval(1, 10, "Tire Rotation", 5000)
	insertIntervals(t, st, iv)

	iv.IntervalMiles = model.Int(6000)
	iv.CostEstimateLow = nil
	iv.Notes = "rotate with spare"
	iv.UpdatedAt = iv.UpdatedAt.Add(time.Hour)
	err := st.InTx(ctx, func(tx IntervalTx) error {
		return tx.UpdateInterval(ctx, iv)
	})
	require.NoError(t, err)

	got, err := st.GetInterval(ctx, 1, iv.ID)
	require.NoError(t, err)
	assert.Equal(t, 6000, *got.IntervalMiles)
	assert.Nil(t, got.CostEstimateLow)
	assert.Equal(t, "rotate with spare", got.Notes)
}

func TestSQLite_UpdateInterval_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	iv := testInterval(1, 10, "Tire Rotation", 5000)
	iv.ID = 999
	err := st.InTx(ctx, func(tx IntervalTx) error {
		return tx.UpdateInterval(ctx, iv)
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_InTx_RollbackOnError(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	err := st.InTx(ctx, func(tx IntervalTx) error {
		if err := tx.InsertInterval(ctx, testInterval(1, 10, "Brake Fluid", 30000)); err != nil {
			return err
		}
		return eris.New("boom")
	})
	require.Error(t, err)

	got, err := st.ActiveIntervals(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLite_UniqueActiveItem(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	insertIntervals(t, st, testInterval(1, 10, "Tire Rotation", 5000))

	err := st.InTx(ctx, func(tx IntervalTx) error {
		return tx.InsertInterval(ctx, testInterval(1, 10, "tire rotation", 6000))
	})
	require.Error(t, err)
	assert.True(t, resilience.IsUniqueViolation(err))

	got, err := st.ActiveIntervals(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 5000, *got[0].IntervalMiles)
}

func TestSQLite_DeactivateInterval(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	iv := testInterval(1, 10, "Tire Rotation", 5000)
	insertIntervals(t, st, iv)

	require.NoError(t, st.DeactivateInterval(ctx, 1, iv.ID))

	active, err := st.ActiveIntervals(ctx, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, active)

	got, err := st.GetInterval(ctx, 1, iv.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	// A deactivated row frees the item name for a new active row.
	insertIntervals(t, st, testInterval(1, 10, "Tire Rotation", 6000))

	err = st.DeactivateInterval(ctx, 1, iv.ID)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_Interval_OtherUser(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	iv := testInterval(1, 10, "Tire Rotation", 5000)
	insertIntervals(t, st, iv)

	_, err := st.GetInterval(ctx, 2, iv.ID)
	assert.True(t, eris.Is(err, ErrNotFound))

	err = st.DeactivateInterval(ctx, 2, iv.ID)
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSQLite_ResearchLogs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	logs := []*model.ResearchLog{
		{ID: "a", UserID: 1, Make: "Toyota", Model: "Camry", Year: 2020, SourcesChecked: []string{"toyota", "base"}, IntervalsFound: 10, Confidence: 9, SuccessRate: 90, CreatedAt: base},
		{ID: "b", UserID: 1, Make: "Ford", Model: "F-250 Super Duty", Year: 2019, EngineType: model.EngineDiesel, SourcesChecked: []string{"ford"}, Confidence: 8, CreatedAt: base.Add(time.Minute)},
		{ID: "c", UserID: 2, Make: "Ford", Model: "Focus", Year: 2014, Error: "research: dispatch: context canceled", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, l := range logs {
		require.NoError(t, st.SaveResearchLog(ctx, l))
	}

	tests := []struct {
		name   string
		filter LogFilter
		want   []string
	}{
		{"all newest first", LogFilter{}, []string{"c", "b", "a"}},
		{"by make case-insensitive", LogFilter{Make: "ford"}, []string{"c", "b"}},
		{"by user", LogFilter{UserID: 1}, []string{"b", "a"}},
		{"only failed", LogFilter{OnlyFailed: true}, []string{"c"}},
		{"since", LogFilter{Since: base.Add(30 * time.Second)}, []string{"c", "b"}},
		{"limit and offset", LogFilter{Limit: 1, Offset: 1}, []string{"b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := st.ListResearchLogs(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, len(got))
			for i, l := range got {
				ids[i] = l.ID
			}
			assert.Equal(t, tt.want, ids)
		})
	}

	got, err := st.ListResearchLogs(ctx, LogFilter{UserID: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.EngineDiesel, got[0].EngineType)
	assert.Equal(t, []string{"ford"}, got[0].SourcesChecked)

	failed, err := st.ListResearchLogs(ctx, LogFilter{OnlyFailed: true})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.True(t, failed[0].Failed())
	assert.Equal(t, []string{}, failed[0].SourcesChecked)
}

func TestListLimit(t *testing.T) {
	assert.Equal(t, defaultListLimit, listLimit(0))
	assert.Equal(t, defaultListLimit, listLimit(-5))
	assert.Equal(t, 20, listLimit(20))
}
