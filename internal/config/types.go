package config

import (
	"strings"
	"time"
)

// Config is the root of the paperledger configuration file.
type Config struct {
	App         AppConfig         `toml:"app"`
	Store       StoreConfig       `toml:"store"`
	Ledger      LedgerConfig      `toml:"ledger"`
	Settlement  SettlementConfig  `toml:"settlement"`
	Pricing     PricingConfig     `toml:"pricing"`
	Instruments InstrumentsConfig `toml:"instruments"`
	Events      EventsConfig      `toml:"events"`
	History     HistoryConfig     `toml:"history"`
}

type AppConfig struct {
	Env           string `toml:"env" validate:"nonzero"`
	LogLevel      string `toml:"log_level"`
	HTTPAddr      string `toml:"http_addr" validate:"nonzero"`
	LogPath       string `toml:"log_path"`
	LogMaxSizeMB  int    `toml:"log_max_size_mb" validate:"min=0"`
	LogMaxBackups int    `toml:"log_max_backups" validate:"min=0"`
	LogMaxAgeDays int    `toml:"log_max_age_days" validate:"min=0"`
}

type StoreConfig struct {
	Driver       string `toml:"driver" validate:"nonzero"`
	Path         string `toml:"path"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns" validate:"min=0"`
}

type LedgerConfig struct {
	Timezone    string  `toml:"timezone" validate:"nonzero"`
	InitialCash float64 `toml:"initial_cash" validate:"min=0"`
}

// SettlementConfig controls the daily job that turns pending volume into
// available volume.
type SettlementConfig struct {
	Enabled  bool   `toml:"enabled"`
	Time     string `toml:"time"`
	Timezone string `toml:"timezone"`
}

type PricingConfig struct {
	Source          string             `toml:"source"`
	RefreshInterval string             `toml:"refresh_interval"`
	Static          []StaticQuote      `toml:"static"`
	HTTP            PricingHTTPConfig  `toml:"http"`
	Redis           PricingRedisConfig `toml:"redis"`
}

// StaticQuote is listed rather than keyed by code because codes contain dots.
type StaticQuote struct {
	Code  string  `toml:"code"`
	Price float64 `toml:"price"`
}

type PricingHTTPConfig struct {
	URLTemplate    string `toml:"url_template"`
	PricePath      string `toml:"price_path"`
	Workers        int    `toml:"workers" validate:"min=0"`
	TimeoutSeconds int    `toml:"timeout_seconds" validate:"min=0"`
}

type PricingRedisConfig struct {
	Address  string `toml:"address"`
	Password string `toml:"password"`
	DB       int    `toml:"db" validate:"min=0"`
	Key      string `toml:"key"`
}

type InstrumentsConfig struct {
	Path string `toml:"path"`
}

type EventsConfig struct {
	Kafka KafkaConfig `toml:"kafka"`
}

type KafkaConfig struct {
	Enabled bool     `toml:"enabled"`
	Brokers []string `toml:"brokers"`
	Topic   string   `toml:"topic"`
}

type HistoryConfig struct {
	Path string `toml:"path"`
}

const (
	PricingSourceNone   = "none"
	PricingSourceStatic = "static"
	PricingSourceHTTP   = "http"
	PricingSourceRedis  = "redis"
)

// Location returns the ledger timezone; validation guarantees it loads.
func (l LedgerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(l.Timezone))
	if err != nil {
		return time.Local
	}
	return loc
}

func (s SettlementConfig) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(s.Timezone))
	if err != nil {
		return time.Local
	}
	return loc
}

func (p PricingHTTPConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// StaticPrices returns the configured static quotes as a code -> price map.
func (p PricingConfig) StaticPrices() map[string]float64 {
	out := make(map[string]float64, len(p.Static))
	for _, q := range p.Static {
		code := strings.ToUpper(strings.TrimSpace(q.Code))
		if code == "" {
			continue
		}
		out[code] = q.Price
	}
	return out
}

// keySet tracks the dotted paths explicitly set in the config files.
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault describes how one field gets its default value.
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
