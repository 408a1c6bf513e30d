package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"paperledger/internal/scheduler"

	"gopkg.in/validator.v2"
)

// validate runs the struct tag checks first, then the cross-field ones.
func validate(c *Config) error {
	if err := validator.Validate(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Store.validate(); err != nil {
		return err
	}
	if err := c.Ledger.validate(); err != nil {
		return err
	}
	if err := c.Settlement.validate(); err != nil {
		return err
	}
	if err := c.Pricing.validate(); err != nil {
		return err
	}
	if err := c.Events.validate(); err != nil {
		return err
	}
	return nil
}

func (s *StoreConfig) validate() error {
	switch s.Driver {
	case "sqlite":
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	case "postgres":
		if strings.TrimSpace(s.DSN) == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver must be sqlite or postgres, got %q", s.Driver)
	}
	return nil
}

func (l *LedgerConfig) validate() error {
	if _, err := time.LoadLocation(strings.TrimSpace(l.Timezone)); err != nil {
		return fmt.Errorf("ledger.timezone invalid: %w", err)
	}
	return nil
}

func (s *SettlementConfig) validate() error {
	if !s.Enabled {
		return nil
	}
	if _, err := scheduler.ParseClock(s.Time); err != nil {
		return fmt.Errorf("settlement.time: %w", err)
	}
	if _, err := time.LoadLocation(strings.TrimSpace(s.Timezone)); err != nil {
		return fmt.Errorf("settlement.timezone invalid: %w", err)
	}
	return nil
}

func (p *PricingConfig) validate() error {
	switch p.Source {
	case PricingSourceNone:
		return nil
	case PricingSourceStatic:
		for i, q := range p.Static {
			if strings.TrimSpace(q.Code) == "" {
				return fmt.Errorf("pricing.static[%d] missing code", i)
			}
			if q.Price <= 0 {
				return fmt.Errorf("pricing.static[%d] (%s) price must be > 0", i, q.Code)
			}
		}
	case PricingSourceHTTP:
		tpl := strings.TrimSpace(p.HTTP.URLTemplate)
		if !strings.Contains(tpl, "{code}") {
			return fmt.Errorf("pricing.http.url_template must contain {code}")
		}
		if _, err := url.Parse(strings.ReplaceAll(tpl, "{code}", "X")); err != nil {
			return fmt.Errorf("pricing.http.url_template invalid: %w", err)
		}
		if strings.TrimSpace(p.HTTP.PricePath) == "" {
			return fmt.Errorf("pricing.http.price_path cannot be empty")
		}
	case PricingSourceRedis:
		if strings.TrimSpace(p.Redis.Address) == "" {
			return fmt.Errorf("pricing.redis.address cannot be empty")
		}
	default:
		return fmt.Errorf("pricing.source must be one of none, static, http, redis; got %q", p.Source)
	}
	if _, ok := scheduler.ParseIntervalDuration(p.RefreshInterval); !ok {
		return fmt.Errorf("pricing.refresh_interval invalid: %q", p.RefreshInterval)
	}
	return nil
}

func (e *EventsConfig) validate() error {
	if !e.Kafka.Enabled {
		return nil
	}
	if len(e.Kafka.Brokers) == 0 {
		return fmt.Errorf("events.kafka.brokers cannot be empty when kafka is enabled")
	}
	if strings.TrimSpace(e.Kafka.Topic) == "" {
		return fmt.Errorf("events.kafka.topic cannot be empty")
	}
	return nil
}
