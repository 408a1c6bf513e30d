package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
app:
  log_level: debug
store:
  path: data/test.db
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, ":9992", cfg.App.HTTPAddr)
	assert.Equal(t, 100, cfg.App.LogMaxSizeMB)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "data/test.db", cfg.Store.Path)
	assert.Equal(t, "Asia/Shanghai", cfg.Ledger.Timezone)
	assert.Equal(t, 1000000.0, cfg.Ledger.InitialCash)
	assert.True(t, cfg.Settlement.Enabled)
	assert.Equal(t, "15:30", cfg.Settlement.Time)
	assert.Equal(t, "Asia/Shanghai", cfg.Settlement.Timezone)
	assert.Equal(t, PricingSourceNone, cfg.Pricing.Source)
	assert.Equal(t, "5m", cfg.Pricing.RefreshInterval)
	assert.Equal(t, "paperledger.events", cfg.Events.Kafka.Topic)
	assert.Equal(t, "Asia/Shanghai", cfg.Ledger.Location().String())
}

func TestLoadKeepsExplicitZeroValues(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "config.yaml", `
ledger:
  initial_cash: 0
  timezone: UTC
settlement:
  enabled: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Zero(t, cfg.Ledger.InitialCash)
	assert.False(t, cfg.Settlement.Enabled)
	assert.Equal(t, "UTC", cfg.Settlement.Timezone, "settlement inherits the ledger timezone")
}

func TestLoadMergesIncludes(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", `
app:
  http_addr: ":7000"
  env: prod
pricing:
  source: static
  static:
    - code: "600519.SH"
      price: 1688.5
`)
	path := writeConfig(t, dir, "config.yaml", `
include:
  - base.yaml
app:
  env: staging
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.App.HTTPAddr)
	assert.Equal(t, "staging", cfg.App.Env, "the including file wins")
	assert.Equal(t, map[string]float64{"600519.SH": 1688.5}, cfg.Pricing.StaticPrices())
}

func TestLoadRejectsIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "include: [b.yaml]\n")
	writeConfig(t, dir, "b.yaml", "include: [a.yaml]\n")
	_, err := Load(filepath.Join(dir, "a.yaml"))
	assert.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]string{
		"postgres without dsn": "store:\n  driver: postgres\n",
		"unknown driver":       "store:\n  driver: mysql\n",
		"bad timezone":         "ledger:\n  timezone: Mars/Olympus\n",
		"bad settlement time":  "settlement:\n  time: \"25:61\"\n",
		"unknown source":       "pricing:\n  source: bloomberg\n",
		"http missing code":    "pricing:\n  source: http\n  http:\n    url_template: http://q/x\n    price_path: p\n",
		"redis missing addr":   "pricing:\n  source: redis\n",
		"bad interval":         "pricing:\n  source: static\n  refresh_interval: soon\n",
		"negative cash":        "ledger:\n  initial_cash: -5\n",
		"kafka no brokers":     "events:\n  kafka:\n    enabled: true\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), "config.yaml", body)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	assert.Equal(t, DefaultPath, ResolvePath(""))

	t.Setenv(EnvConfigPath, "/etc/paperledger.yaml")
	assert.Equal(t, "/etc/paperledger.yaml", ResolvePath(""))
	assert.Equal(t, "local.yaml", ResolvePath(" local.yaml "))
}

func TestWatchRequiresCallbackAndFile(t *testing.T) {
	assert.Error(t, Watch("config.yaml", nil))
	assert.Error(t, Watch(filepath.Join(t.TempDir(), "missing.yaml"), func(*Config) {}))
}
