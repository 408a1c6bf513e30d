package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordUpsertsPerTradeDate(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	taken := time.UnixMilli(1_700_000_000_000)
	require.NoError(t, s.Record(ctx, Snapshot{TradeDate: "20240102", Cash: 100, TotalAsset: 100, TakenAt: taken}))
	require.NoError(t, s.Record(ctx, Snapshot{TradeDate: "20240103", Cash: 90, MarketValue: 20, TotalAsset: 110, Positions: 1, TakenAt: taken}))
	require.NoError(t, s.Record(ctx, Snapshot{TradeDate: "20240102", Cash: 95, TotalAsset: 95, TakenAt: taken}))

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "20240103", all[0].TradeDate)
	assert.Equal(t, 1, all[0].Positions)
	assert.Equal(t, 95.0, all[1].Cash)
	assert.True(t, taken.Equal(all[1].TakenAt))

	one, err := s.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestRecordRejectsBadDate(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer s.Close()

	assert.Error(t, s.Record(context.Background(), Snapshot{TradeDate: "2024-01-02"}))
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}
