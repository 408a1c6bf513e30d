package app

import (
	"context"
	"fmt"
	"time"

	"paperledger/internal/config"
	"paperledger/internal/logger"
	"paperledger/internal/pricing"
	"paperledger/internal/scheduler"
	ledgerhttp "paperledger/internal/transport/http/ledger"

	"golang.org/x/sync/errgroup"
)

// App wires the ledger HTTP API with the price refresh loop and the daily
// settlement job.
type App struct {
	cfg       *config.Config
	stack     *Stack
	refresher *pricing.Refresher
	http      *ledgerhttp.Server
	Summary   *StartupSummary
}

// NewApp builds the application without starting it.
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run serves until ctx is cancelled or a component fails, then closes the
// ledger stack.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil || a.stack == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	if a.Summary != nil {
		a.Summary.Print()
	}

	group, ctx := errgroup.WithContext(ctx)

	if a.http != nil {
		group.Go(func() error {
			if err := a.http.Start(ctx); err != nil {
				return fmt.Errorf("ledger http server error: %w", err)
			}
			return nil
		})
	}

	if a.refresher != nil {
		interval, ok := scheduler.ParseIntervalDuration(a.cfg.Pricing.RefreshInterval)
		if !ok {
			return fmt.Errorf("invalid pricing.refresh_interval %q", a.cfg.Pricing.RefreshInterval)
		}
		group.Go(func() error {
			s := scheduler.NewAlignedScheduler(ctx, interval, 0)
			s.Name = "price-refresh"
			s.Location = a.cfg.Ledger.Location()
			s.Start(func() { a.refreshPrices(ctx) })
			return nil
		})
	}

	if a.cfg.Settlement.Enabled {
		at, err := scheduler.ParseClock(a.cfg.Settlement.Time)
		if err != nil {
			return fmt.Errorf("invalid settlement.time: %w", err)
		}
		group.Go(func() error {
			s := scheduler.NewDailyScheduler(ctx, at, a.cfg.Settlement.Location())
			s.Name = "settlement"
			s.Start(func() { a.settle(ctx) })
			return nil
		})
	}

	return group.Wait()
}

func (a *App) refreshPrices(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	res, err := a.refresher.Refresh(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warnf("[pricing] refresh failed: %v", err)
		}
		return
	}
	if res.Matched > 0 || len(res.Unmatched) > 0 {
		logger.Infof("[pricing] marked %d positions, %d unmatched, total asset %.2f",
			res.Matched, len(res.Unmatched), res.TotalAsset)
	}
}

func (a *App) settle(ctx context.Context) {
	res, err := a.stack.Engine.Settle(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Errorf("[settlement] daily settlement failed: %v", err)
		}
		return
	}
	logger.Infof("[settlement] %s settled %d positions, released %d shares",
		res.TradeDate, res.Settled, res.Released)
}

// Stack exposes the ledger core, mainly for tests and embedding.
func (a *App) Stack() *Stack {
	if a == nil {
		return nil
	}
	return a.stack
}

func (a *App) Close() error {
	if a == nil || a.stack == nil {
		return nil
	}
	return a.stack.Close()
}
