package config

import "strings"

const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppHTTPAddr      = ":9992"
	defaultAppLogPath       = "data/logs/paperledger.log"
	defaultLogMaxSizeMB     = 100
	defaultLogMaxBackups    = 5
	defaultLogMaxAgeDays    = 30
	defaultStoreDriver      = "sqlite"
	defaultStorePath        = "data/paperledger.db"
	defaultLedgerTimezone   = "Asia/Shanghai"
	defaultInitialCash      = 1000000
	defaultSettlementTime   = "15:30"
	defaultPricingSource    = PricingSourceNone
	defaultRefreshInterval  = "5m"
	defaultHTTPWorkers      = 4
	defaultHTTPTimeout      = 5
	defaultRedisKey         = "paperledger:quotes"
	defaultKafkaTopic       = "paperledger.events"
	defaultHistoryPath      = "data/history.db"
)

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Ledger.applyDefaults(keys)
	c.Settlement.applyDefaults(keys, c.Ledger.Timezone)
	c.Pricing.applyDefaults(keys)
	c.Events.applyDefaults(keys)
	c.History.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		intFieldDefault("app.log_max_size_mb", &a.LogMaxSizeMB, defaultLogMaxSizeMB),
		intFieldDefault("app.log_max_backups", &a.LogMaxBackups, defaultLogMaxBackups),
		intFieldDefault("app.log_max_age_days", &a.LogMaxAgeDays, defaultLogMaxAgeDays),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	applyFieldDefaults(keys,
		stringFieldDefault("store.driver", &s.Driver, defaultStoreDriver),
		fieldDefault{
			key:   "store.path",
			need:  func() bool { return s.Driver == defaultStoreDriver && strings.TrimSpace(s.Path) == "" },
			apply: func() { s.Path = defaultStorePath },
		},
	)
}

func (l *LedgerConfig) applyDefaults(keys keySet) {
	if l == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("ledger.timezone", &l.Timezone, defaultLedgerTimezone),
		fieldDefault{
			key:   "ledger.initial_cash",
			need:  func() bool { return l.InitialCash <= 0 },
			apply: func() { l.InitialCash = defaultInitialCash },
		},
	)
}

func (s *SettlementConfig) applyDefaults(keys keySet, ledgerTZ string) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("settlement.enabled", &s.Enabled, true),
		stringFieldDefault("settlement.time", &s.Time, defaultSettlementTime),
		stringFieldDefault("settlement.timezone", &s.Timezone, ledgerTZ),
	)
}

func (p *PricingConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	p.Source = strings.ToLower(strings.TrimSpace(p.Source))
	applyFieldDefaults(keys,
		stringFieldDefault("pricing.source", &p.Source, defaultPricingSource),
		stringFieldDefault("pricing.refresh_interval", &p.RefreshInterval, defaultRefreshInterval),
		intFieldDefault("pricing.http.workers", &p.HTTP.Workers, defaultHTTPWorkers),
		intFieldDefault("pricing.http.timeout_seconds", &p.HTTP.TimeoutSeconds, defaultHTTPTimeout),
		stringFieldDefault("pricing.redis.key", &p.Redis.Key, defaultRedisKey),
	)
}

func (e *EventsConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys, stringFieldDefault("events.kafka.topic", &e.Kafka.Topic, defaultKafkaTopic))
}

func (h *HistoryConfig) applyDefaults(keys keySet) {
	if h == nil {
		return
	}
	applyFieldDefaults(keys, stringFieldDefault("history.path", &h.Path, defaultHistoryPath))
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
