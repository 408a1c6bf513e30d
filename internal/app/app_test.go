package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"paperledger/internal/config"
	"paperledger/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		App:    config.AppConfig{Env: "test", HTTPAddr: "127.0.0.1:0", LogLevel: "warn"},
		Store:  config.StoreConfig{Driver: "sqlite", Path: filepath.Join(dir, "ledger.db")},
		Ledger: config.LedgerConfig{Timezone: "UTC", InitialCash: 100000},
		Settlement: config.SettlementConfig{
			Enabled: false, Time: "15:30", Timezone: "UTC",
		},
		Pricing: config.PricingConfig{
			Source:          config.PricingSourceStatic,
			RefreshInterval: "1m",
			Static:          []config.StaticQuote{{Code: "600519.sh", Price: 12}},
		},
		History: config.HistoryConfig{Path: filepath.Join(dir, "history.db")},
	}
}

func TestBuildSeedsAccountOnce(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	a, err := NewAppBuilder(cfg).Build(ctx)
	require.NoError(t, err)
	acct, err := a.Stack().Engine.Account(ctx)
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, 100000.0, acct.Cash)

	_, err = a.Stack().Engine.AdjustCash(ctx, -500)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	again, err := NewAppBuilder(cfg).Build(ctx)
	require.NoError(t, err)
	defer again.Close()
	require.NotNil(t, again.Summary)
	assert.Equal(t, "sqlite", again.Summary.Store.Driver)
	assert.Equal(t, int64(0), again.Summary.Store.Orders)
	acct, err = again.Stack().Engine.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, 99500.0, acct.Cash, "an existing account is not reseeded")
}

func TestRefreshAndSettleJobs(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	a, err := NewAppBuilder(cfg).Build(ctx)
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.refresher)

	eng := a.Stack().Engine
	_, err = eng.ApplyOrder(ctx, ledger.OrderRequest{Code: "600519.SH", Action: ledger.ActionBuy, Price: 10, Volume: 100})
	require.NoError(t, err)

	a.refreshPrices(ctx)
	pos, err := eng.Position(ctx, "600519.SH")
	require.NoError(t, err)
	require.NotNil(t, pos.CurrentPrice)
	assert.Equal(t, 12.0, *pos.CurrentPrice)
	assert.Equal(t, int64(0), pos.AvailableVolume)

	a.settle(ctx)
	pos, err = eng.Position(ctx, "600519.SH")
	require.NoError(t, err)
	assert.Equal(t, int64(100), pos.AvailableVolume)

	snaps, err := a.Stack().History.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.InDelta(t, 99000.0+1200.0, snaps[0].TotalAsset, 1e-6)
}

func TestBuildWithoutPricing(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pricing.Source = config.PricingSourceNone
	cfg.History.Path = ""
	a, err := NewAppBuilder(cfg).Build(context.Background())
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.refresher)
	assert.Nil(t, a.Stack().History)
}

func TestBuildRejectsUnknownPricingSource(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pricing.Source = "carrier-pigeon"
	_, err := NewAppBuilder(cfg).Build(context.Background())
	require.Error(t, err)
}

func TestSummaryRedactsPostgresPassword(t *testing.T) {
	assert.Equal(t, "postgres://***@db:5432/ledger", redactDSN("postgres://user:secret@db:5432/ledger"))
	assert.Equal(t, "host=db password=*** dbname=ledger", redactDSN("host=db password=secret dbname=ledger"))

	var buf bytes.Buffer
	s := &StartupSummary{Env: "test", Settlement: SettlementSummary{Enabled: true, At: "15:30", Timezone: "UTC"}}
	s.Fprint(&buf)
	assert.Contains(t, buf.String(), "daily at:  15:30 (UTC)")
	assert.Contains(t, buf.String(), "publisher: -")
	assert.Contains(t, buf.String(), "orders:    0")
}

func TestSummaryCountsOrders(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	a, err := NewAppBuilder(cfg).Build(ctx)
	require.NoError(t, err)
	_, err = a.Stack().Engine.ApplyOrder(ctx, ledger.OrderRequest{Code: "600519.SH", Action: ledger.ActionBuy, Price: 10, Volume: 100})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	again, err := NewAppBuilder(cfg).Build(ctx)
	require.NoError(t, err)
	defer again.Close()
	assert.Equal(t, int64(1), again.Summary.Store.Orders)
	assert.Equal(t, cfg.Store.Path, again.Summary.Store.Target)
}

func TestCloseStopsInstrumentWatcher(t *testing.T) {
	cfg := testConfig(t)
	cfg.Instruments.Path = filepath.Join(t.TempDir(), "instruments.yaml")
	require.NoError(t, os.WriteFile(cfg.Instruments.Path, []byte("instruments:\n  \"600519.SH\": Moutai\n"), 0o644))

	a, err := NewAppBuilder(cfg).Build(context.Background())
	require.NoError(t, err)
	names := a.Stack().Names
	require.NotNil(t, names)
	require.NoError(t, a.Close())

	version := names.Snapshot().Version
	require.NoError(t, os.WriteFile(cfg.Instruments.Path, []byte("instruments:\n  \"600519.SH\": Changed\n"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, version, names.Snapshot().Version)
	name, _ := names.DisplayName("600519.SH")
	assert.Equal(t, "Moutai", name)
}
