package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"paperledger/internal/config"
	"paperledger/internal/events"
	"paperledger/internal/history"
	"paperledger/internal/instruments"
	"paperledger/internal/ledger"
	"paperledger/internal/logger"
	"paperledger/internal/pricing"
	"paperledger/internal/store/gormstore"
	ledgerhttp "paperledger/internal/transport/http/ledger"
)

// Stack is the ledger core shared by the server and the CLI.
type Stack struct {
	Config    *config.Config
	Engine    *ledger.Engine
	Store     *gormstore.GormStore
	History   *history.Store
	Names     *instruments.Registry
	Publisher events.Publisher

	closers []func() error
}

// Close releases everything in reverse open order.
func (s *Stack) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

type AppBuilder struct {
	cfg *config.Config

	stackFn     func(*config.Config) (*Stack, error)
	sourceFn    func(config.PricingConfig) (pricing.Source, func() error, error)
	ledgerHTTPF func(config.AppConfig, *Stack, ledgerhttp.Refresher) (*ledgerhttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

// WithStackFactory replaces how the ledger core is opened.
func WithStackFactory(fn func(*config.Config) (*Stack, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.stackFn = fn
		}
	}
}

// WithSourceFactory replaces how the quote source is built.
func WithSourceFactory(fn func(config.PricingConfig) (pricing.Source, func() error, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.sourceFn = fn
		}
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:         cfg,
		stackFn:     OpenStack,
		sourceFn:    buildPriceSource,
		ledgerHTTPF: buildLedgerHTTPServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg

	stack, err := b.stackFn(cfg)
	if err != nil {
		return nil, err
	}
	ok := false
	defer func() {
		if !ok {
			_ = stack.Close()
		}
	}()

	var refresher *pricing.Refresher
	source, closeSource, err := b.sourceFn(cfg.Pricing)
	if err != nil {
		return nil, err
	}
	if closeSource != nil {
		stack.closers = append(stack.closers, closeSource)
	}
	if source != nil {
		refresher = pricing.NewRefresher(source, stack.Engine)
	}

	var httpRefresher ledgerhttp.Refresher
	if refresher != nil {
		httpRefresher = refresher
	}
	server, err := b.ledgerHTTPF(cfg.App, stack, httpRefresher)
	if err != nil {
		return nil, err
	}

	if err := ensureAccount(ctx, stack.Engine, cfg.Ledger.InitialCash); err != nil {
		return nil, err
	}

	ok = true
	return &App{
		cfg:       cfg,
		stack:     stack,
		refresher: refresher,
		http:      server,
		Summary:   buildSummary(ctx, cfg, stack),
	}, nil
}

// ensureAccount seeds the account on first start. An existing account is
// left untouched.
func ensureAccount(ctx context.Context, eng *ledger.Engine, initialCash float64) error {
	if initialCash <= 0 {
		return nil
	}
	acct, err := eng.Account(ctx)
	if err != nil {
		return fmt.Errorf("load account: %w", err)
	}
	if acct != nil {
		return nil
	}
	if _, err := eng.InitializeAccount(ctx, initialCash); err != nil {
		return fmt.Errorf("seed account: %w", err)
	}
	logger.Infof("[ledger] account seeded with %.2f", initialCash)
	return nil
}

// OpenStack opens the ledger store, history, instrument names and event
// publisher, and wires them into an engine.
func OpenStack(cfg *config.Config) (*Stack, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	stack := &Stack{Config: cfg}
	fail := func(err error) (*Stack, error) {
		_ = stack.Close()
		return nil, err
	}

	st, err := gormstore.Open(gormstore.Options{
		Driver:       cfg.Store.Driver,
		Path:         cfg.Store.Path,
		DSN:          cfg.Store.DSN,
		MaxOpenConns: cfg.Store.MaxOpenConns,
	})
	if err != nil {
		return fail(fmt.Errorf("open ledger store: %w", err))
	}
	stack.Store = st
	stack.closers = append(stack.closers, st.Close)

	opts := []ledger.Option{ledger.WithLocation(cfg.Ledger.Location())}

	if path := strings.TrimSpace(cfg.History.Path); path != "" {
		hist, err := history.Open(path)
		if err != nil {
			return fail(fmt.Errorf("open history store: %w", err))
		}
		stack.History = hist
		stack.closers = append(stack.closers, hist.Close)
		opts = append(opts, ledger.WithHistory(hist))
	}

	if path := strings.TrimSpace(cfg.Instruments.Path); path != "" {
		names, err := instruments.NewRegistry(path)
		if err != nil {
			return fail(fmt.Errorf("load instruments: %w", err))
		}
		stack.Names = names
		stack.closers = append(stack.closers, names.Close)
		opts = append(opts, ledger.WithNameResolver(names))
	}

	pub, err := buildPublisher(cfg.Events)
	if err != nil {
		return fail(err)
	}
	stack.Publisher = pub
	stack.closers = append(stack.closers, pub.Close)
	opts = append(opts, ledger.WithPublisher(pub))

	stack.Engine = ledger.NewEngine(st, opts...)
	return stack, nil
}

func buildPublisher(cfg config.EventsConfig) (events.Publisher, error) {
	if !cfg.Kafka.Enabled {
		return events.NopPublisher{}, nil
	}
	pub, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}
	return pub, nil
}

// buildPriceSource returns a nil source when pricing is disabled.
func buildPriceSource(cfg config.PricingConfig) (pricing.Source, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Source)) {
	case "", config.PricingSourceNone:
		return nil, nil, nil
	case config.PricingSourceStatic:
		return pricing.NewStaticSource(cfg.StaticPrices()), nil, nil
	case config.PricingSourceHTTP:
		src, err := pricing.NewHTTPSource(pricing.HTTPOptions{
			URLTemplate: cfg.HTTP.URLTemplate,
			PricePath:   cfg.HTTP.PricePath,
			Workers:     cfg.HTTP.Workers,
			Timeout:     cfg.HTTP.Timeout(),
		})
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	case config.PricingSourceRedis:
		src, err := pricing.NewRedisSource(pricing.RedisOptions{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Key:      cfg.Redis.Key,
		})
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported pricing source %q", cfg.Source)
	}
}

func buildLedgerHTTPServer(cfg config.AppConfig, stack *Stack, refresher ledgerhttp.Refresher) (*ledgerhttp.Server, error) {
	var hist ledgerhttp.HistoryReader
	if stack.History != nil {
		hist = stack.History
	}
	return ledgerhttp.NewServer(ledgerhttp.ServerConfig{
		Addr:      cfg.HTTPAddr,
		Engine:    stack.Engine,
		Refresher: refresher,
		History:   hist,
	})
}

func buildSummary(ctx context.Context, cfg *config.Config, stack *Stack) *StartupSummary {
	dialect := stack.Store.Dialect()
	target := cfg.Store.Path
	if dialect == gormstore.DriverPostgres {
		target = redactDSN(cfg.Store.DSN)
	}
	orders, err := stack.Engine.OrderCount(ctx)
	if err != nil {
		logger.Warnf("[ledger] count orders failed: %v", err)
	}
	s := &StartupSummary{
		Env:      cfg.App.Env,
		HTTPAddr: cfg.App.HTTPAddr,
		Store:    StoreSummary{Driver: dialect, Target: target, Orders: orders},
		Pricing:  PricingSummary{Source: cfg.Pricing.Source},
		Settlement: SettlementSummary{
			Enabled:  cfg.Settlement.Enabled,
			At:       cfg.Settlement.Time,
			Timezone: cfg.Settlement.Location().String(),
		},
		Events: "none",
	}
	if src := strings.ToLower(cfg.Pricing.Source); src != "" && src != config.PricingSourceNone {
		s.Pricing.Interval = cfg.Pricing.RefreshInterval
	}
	if cfg.Events.Kafka.Enabled {
		s.Events = fmt.Sprintf("kafka %s -> %s", strings.Join(cfg.Events.Kafka.Brokers, ","), cfg.Events.Kafka.Topic)
	}
	if stack.History != nil {
		s.History = stack.History.Path()
	}
	if stack.Names != nil {
		snap := stack.Names.Snapshot()
		s.Names = fmt.Sprintf("%s (%d instruments)", cfg.Instruments.Path, len(snap.Names))
	}
	return s
}
