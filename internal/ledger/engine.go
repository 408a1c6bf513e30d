package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"paperledger/internal/events"
	"paperledger/internal/history"
	"paperledger/internal/logger"
	"paperledger/internal/store"
	"paperledger/internal/store/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// HistoryRecorder receives the end-of-day snapshot written by Settle.
type HistoryRecorder interface {
	Record(ctx context.Context, snap history.Snapshot) error
}

// Engine applies every mutation to the ledger. Mutations are serialized by an
// in-process mutex; on Postgres the account row is also locked so several
// processes sharing one database serialize too.
type Engine struct {
	store     store.Store
	mu        sync.Mutex
	publisher events.Publisher
	names     NameResolver
	history   HistoryRecorder
	now       func() time.Time
	loc       *time.Location
	newID     func() string
}

type Option func(*Engine)

func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.publisher = p
		}
	}
}

func WithNameResolver(r NameResolver) Option {
	return func(e *Engine) { e.names = r }
}

func WithHistory(r HistoryRecorder) Option {
	return func(e *Engine) { e.history = r }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the timezone used to derive default trade dates.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func NewEngine(st store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:     st,
		publisher: events.NopPublisher{},
		now:       time.Now,
		loc:       time.Local,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Today returns the current trade date in the engine's location.
func (e *Engine) Today() string {
	return e.now().In(e.loc).Format(TradeDateLayout)
}

// inTx runs fn inside one unit of work and commits when fn succeeds.
func (e *Engine) inTx(ctx context.Context, fn func(uow store.UnitOfWork) error) error {
	uow, err := e.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer uow.Rollback()
	if err := fn(uow); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// refresh recomputes the account aggregates from every stored position and
// saves the account.
func refresh(ctx context.Context, uow store.UnitOfWork, account *model.AccountModel, now time.Time) ([]model.PositionModel, error) {
	positions, err := uow.Positions().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	recomputeAggregates(account, positions)
	account.UpdatedAtUnix = now.UnixMilli()
	if err := uow.Accounts().Save(ctx, account); err != nil {
		return nil, fmt.Errorf("save account: %w", err)
	}
	return positions, nil
}

func loadAccount(ctx context.Context, uow store.UnitOfWork) (*model.AccountModel, error) {
	account, err := uow.Accounts().GetForUpdate(ctx)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	return account, nil
}

func requireAccount(ctx context.Context, uow store.UnitOfWork) (*model.AccountModel, error) {
	account, err := loadAccount(ctx, uow)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotInitialized
	}
	return account, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// InitializeAccount creates the account or resets its cash. Held positions
// are kept and the aggregates are recomputed from them.
func (e *Engine) InitializeAccount(ctx context.Context, initialCash float64) (Account, error) {
	if !finite(initialCash) || initialCash < 0 {
		return Account{}, invalid("initial_cash", "must be a non-negative number, got %v", initialCash)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var out Account
	err := e.inTx(ctx, func(uow store.UnitOfWork) error {
		now := e.now()
		account, err := loadAccount(ctx, uow)
		if err != nil {
			return err
		}
		if account == nil {
			account = &model.AccountModel{ID: model.SingletonAccountID, CreatedAtUnix: now.UnixMilli()}
		}
		account.Cash = initialCash
		account.FrozenCash = 0
		if _, err := refresh(ctx, uow, account, now); err != nil {
			return err
		}
		out = accountFromModel(account)
		return nil
	})
	if err != nil {
		logger.Errorf("[ledger] initialize account failed: %v", err)
		return Account{}, err
	}
	logger.Infof("[ledger] account initialized: cash=%.2f total_asset=%.2f", out.Cash, out.TotalAsset)
	return out, nil
}

// normalizeRequest validates the shape of req before any storage access.
func (e *Engine) normalizeRequest(req OrderRequest) (OrderRequest, error) {
	req.Code = normalizeCode(req.Code)
	if req.Code == "" {
		return req, invalid("code", "cannot be empty")
	}
	req.Action = Action(strings.ToUpper(strings.TrimSpace(string(req.Action))))
	if req.Action != ActionBuy && req.Action != ActionSell {
		return req, invalid("action", "unsupported action %q", req.Action)
	}
	if !finite(req.Price) || req.Price <= 0 {
		return req, invalid("price", "must be positive, got %v", req.Price)
	}
	if req.Volume <= 0 {
		return req, invalid("volume", "must be positive, got %d", req.Volume)
	}
	if !finite(req.Fee) || req.Fee < 0 {
		return req, invalid("fee", "must be non-negative, got %v", req.Fee)
	}
	req.TradeDate = strings.TrimSpace(req.TradeDate)
	if req.TradeDate == "" {
		req.TradeDate = e.Today()
	} else if _, err := time.Parse(TradeDateLayout, req.TradeDate); err != nil || len(req.TradeDate) != 8 {
		return req, invalid("trade_date", "expected YYYYMMDD, got %q", req.TradeDate)
	}
	req.StrategyTag = strings.TrimSpace(req.StrategyTag)
	req.Reason = strings.TrimSpace(req.Reason)
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	return req, nil
}

// ApplyOrder validates and applies a single BUY or SELL fill atomically.
// Either the account, the position and the order log all change, or nothing
// does.
func (e *Engine) ApplyOrder(ctx context.Context, req OrderRequest) (Order, error) {
	norm, err := e.normalizeRequest(req)
	if err != nil {
		logger.Warnf("[ledger] order rejected: %v", err)
		return Order{}, err
	}

	e.mu.Lock()
	order, err := e.applyOrder(ctx, norm)
	e.mu.Unlock()
	if err != nil {
		if IsRejection(err) {
			logger.Warnf("[ledger] %s %s x%d @ %.4f rejected: %v", norm.Action, norm.Code, norm.Volume, norm.Price, err)
		} else {
			logger.Errorf("[ledger] %s %s failed: %v", norm.Action, norm.Code, err)
		}
		return Order{}, err
	}
	logger.Infof("[ledger] %s %s x%d @ %.4f fee=%.2f filled (order=%s)",
		order.Action, order.Code, order.Volume, order.Price, order.Fee, order.OrderID)
	e.publish(ctx, events.Event{
		Type:       events.OrderFilled,
		Key:        order.Code,
		OccurredAt: order.CreatedAt,
		Payload:    order,
	})
	return order, nil
}

func (e *Engine) applyOrder(ctx context.Context, req OrderRequest) (Order, error) {
	var out Order
	err := e.inTx(ctx, func(uow store.UnitOfWork) error {
		now := e.now()
		account, err := requireAccount(ctx, uow)
		if err != nil {
			return err
		}
		pos, err := uow.Positions().Get(ctx, req.Code)
		if err != nil {
			return fmt.Errorf("load position %s: %w", req.Code, err)
		}
		switch req.Action {
		case ActionBuy:
			err = e.applyBuy(ctx, uow, account, pos, req, now)
		case ActionSell:
			err = e.applySell(ctx, uow, account, pos, req, now)
		default:
			err = invalid("action", "unsupported action %q", req.Action)
		}
		if err != nil {
			return err
		}
		// A strategy tag only describes a BUY, a reason only a SELL.
		if req.Action == ActionBuy {
			req.Reason = ""
		} else {
			req.StrategyTag = ""
		}

		order := &model.OrderModel{
			OrderID:       e.newID(),
			TradeDate:     req.TradeDate,
			Code:          req.Code,
			Action:        model.OrderAction(req.Action),
			Price:         req.Price,
			Volume:        req.Volume,
			Fee:           req.Fee,
			Status:        model.OrderStatusFilled,
			StrategyTag:   req.StrategyTag,
			Reason:        req.Reason,
			CreatedAtUnix: now.UnixMilli(),
		}
		if err := uow.Orders().Insert(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if _, err := refresh(ctx, uow, account, now); err != nil {
			return err
		}
		out = orderFromModel(order)
		return nil
	})
	return out, err
}

func (e *Engine) applyBuy(ctx context.Context, uow store.UnitOfWork, account *model.AccountModel, pos *model.PositionModel, req OrderRequest, now time.Time) error {
	if pos != nil && req.Volume > math.MaxInt64-pos.TotalVolume {
		return invalid("volume", "would overflow held volume %d of %s", pos.TotalVolume, req.Code)
	}
	cost := decFromFloat(req.Price).Mul(decimal.NewFromInt(req.Volume)).Add(decFromFloat(req.Fee))
	cash := decFromFloat(account.Cash)
	if cash.LessThan(cost) {
		return &InsufficientFundsError{Required: decToFloat(cost), Available: account.Cash}
	}
	account.Cash = decToFloat(cash.Sub(cost))

	if pos == nil {
		// Bought volume stays pending until the next settlement.
		price := req.Price
		pos = &model.PositionModel{
			Code:            req.Code,
			Name:            e.displayName(req),
			TotalVolume:     req.Volume,
			AvailableVolume: 0,
			AvgPrice:        req.Price,
			CurrentPrice:    &price,
			CreatedAtUnix:   now.UnixMilli(),
		}
	} else {
		pos.AvgPrice = averagePrice(pos.AvgPrice, pos.TotalVolume, req.Price, req.Volume)
		pos.TotalVolume += req.Volume
		if pos.CurrentPrice != nil {
			markPosition(pos, *pos.CurrentPrice)
		}
	}
	pos.UpdatedAtUnix = now.UnixMilli()
	if err := uow.Positions().Save(ctx, pos); err != nil {
		return fmt.Errorf("save position %s: %w", req.Code, err)
	}
	return nil
}

func (e *Engine) applySell(ctx context.Context, uow store.UnitOfWork, account *model.AccountModel, pos *model.PositionModel, req OrderRequest, now time.Time) error {
	if pos == nil {
		return &PositionNotFoundError{Code: req.Code}
	}
	if pos.AvailableVolume < req.Volume {
		return &InsufficientVolumeError{Code: req.Code, Required: req.Volume, Available: pos.AvailableVolume}
	}
	proceeds := decFromFloat(req.Price).Mul(decimal.NewFromInt(req.Volume)).Sub(decFromFloat(req.Fee))
	account.Cash = decToFloat(decFromFloat(account.Cash).Add(proceeds))

	pos.TotalVolume -= req.Volume
	pos.AvailableVolume -= req.Volume
	if pos.TotalVolume == 0 {
		if _, err := uow.Positions().Delete(ctx, pos.ID); err != nil {
			return fmt.Errorf("delete position %s: %w", req.Code, err)
		}
		return nil
	}
	if pos.CurrentPrice != nil {
		markPosition(pos, *pos.CurrentPrice)
	}
	pos.UpdatedAtUnix = now.UnixMilli()
	if err := uow.Positions().Save(ctx, pos); err != nil {
		return fmt.Errorf("save position %s: %w", req.Code, err)
	}
	return nil
}

func (e *Engine) displayName(req OrderRequest) string {
	if req.DisplayName != "" {
		return req.DisplayName
	}
	if e.names != nil {
		if name, ok := e.names.DisplayName(req.Code); ok && strings.TrimSpace(name) != "" {
			return name
		}
	}
	return req.Code
}

// MarkPrices values every held position found in prices and recomputes the
// account. Codes without a position are reported, not rejected.
func (e *Engine) MarkPrices(ctx context.Context, prices map[string]float64) (MarkResult, error) {
	result := MarkResult{Unmatched: []string{}}
	if len(prices) == 0 {
		return result, nil
	}
	snapshot := make(map[string]float64, len(prices))
	for code, price := range prices {
		norm := normalizeCode(code)
		if norm == "" {
			return MarkResult{}, invalid("prices", "empty instrument code")
		}
		if !finite(price) || price <= 0 {
			return MarkResult{}, invalid("prices."+norm, "must be positive, got %v", price)
		}
		snapshot[norm] = price
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.inTx(ctx, func(uow store.UnitOfWork) error {
		now := e.now()
		account, err := loadAccount(ctx, uow)
		if err != nil {
			return err
		}
		positions, err := uow.Positions().List(ctx)
		if err != nil {
			return fmt.Errorf("list positions: %w", err)
		}
		held := make(map[string]struct{}, len(positions))
		for i := range positions {
			pos := &positions[i]
			held[pos.Code] = struct{}{}
			price, ok := snapshot[pos.Code]
			if !ok {
				continue
			}
			markPosition(pos, price)
			pos.UpdatedAtUnix = now.UnixMilli()
			if err := uow.Positions().Save(ctx, pos); err != nil {
				return fmt.Errorf("save position %s: %w", pos.Code, err)
			}
			result.Matched++
		}
		for code := range snapshot {
			if _, ok := held[code]; !ok {
				result.Unmatched = append(result.Unmatched, code)
			}
		}
		sort.Strings(result.Unmatched)

		if account != nil {
			recomputeAggregates(account, positions)
			account.UpdatedAtUnix = now.UnixMilli()
			if err := uow.Accounts().Save(ctx, account); err != nil {
				return fmt.Errorf("save account: %w", err)
			}
			result.AccountUpdated = true
			result.MarketValue = account.MarketValue
			result.TotalAsset = account.TotalAsset
		}
		if result.Matched == 0 {
			return nil
		}
		raw, err := json.Marshal(snapshot)
		if err != nil {
			return fmt.Errorf("encode prices: %w", err)
		}
		event := &model.MarkEventModel{
			Prices:        datatypes.JSON(raw),
			Matched:       result.Matched,
			MarketValue:   result.MarketValue,
			TotalAsset:    result.TotalAsset,
			CreatedAtUnix: now.UnixMilli(),
		}
		if err := uow.Marks().Insert(ctx, event); err != nil {
			return fmt.Errorf("insert mark event: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Errorf("[ledger] mark prices failed: %v", err)
		return MarkResult{}, err
	}
	logger.Debugf("[ledger] marked %d/%d prices, market_value=%.2f total_asset=%.2f",
		result.Matched, len(snapshot), result.MarketValue, result.TotalAsset)
	return result, nil
}

// DeletePosition removes a position by id regardless of its volume. It
// reports false when no such position exists.
func (e *Engine) DeletePosition(ctx context.Context, id int64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var deleted bool
	err := e.inTx(ctx, func(uow store.UnitOfWork) error {
		account, err := loadAccount(ctx, uow)
		if err != nil {
			return err
		}
		deleted, err = uow.Positions().Delete(ctx, id)
		if err != nil {
			return fmt.Errorf("delete position %d: %w", id, err)
		}
		if !deleted || account == nil {
			return nil
		}
		_, err = refresh(ctx, uow, account, e.now())
		return err
	})
	if err != nil {
		logger.Errorf("[ledger] delete position %d failed: %v", id, err)
		return false, err
	}
	if deleted {
		logger.Infof("[ledger] position %d deleted", id)
	}
	return deleted, nil
}

// ClearPositions deletes every position and returns how many were removed.
func (e *Engine) ClearPositions(ctx context.Context) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var removed int64
	err := e.inTx(ctx, func(uow store.UnitOfWork) error {
		account, err := loadAccount(ctx, uow)
		if err != nil {
			return err
		}
		removed, err = uow.Positions().DeleteAll(ctx)
		if err != nil {
			return fmt.Errorf("clear positions: %w", err)
		}
		if account == nil {
			return nil
		}
		_, err = refresh(ctx, uow, account, e.now())
		return err
	})
	if err != nil {
		logger.Errorf("[ledger] clear positions failed: %v", err)
		return 0, err
	}
	logger.Infof("[ledger] cleared %d positions", removed)
	return removed, nil
}

// AdjustCash deposits (delta > 0) or withdraws (delta < 0) cash.
func (e *Engine) AdjustCash(ctx context.Context, delta float64) (Account, error) {
	if !finite(delta) {
		return Account{}, invalid("delta", "must be a finite number")
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	var out Account
	err := e.inTx(ctx, func(uow store.UnitOfWork) error {
		account, err := requireAccount(ctx, uow)
		if err != nil {
			return err
		}
		cash := decFromFloat(account.Cash).Add(decFromFloat(delta))
		if cash.IsNegative() {
			return &InsufficientFundsError{Required: -delta, Available: account.Cash}
		}
		account.Cash = decToFloat(cash)
		if _, err := refresh(ctx, uow, account, e.now()); err != nil {
			return err
		}
		out = accountFromModel(account)
		return nil
	})
	if err != nil {
		if IsRejection(err) {
			logger.Warnf("[ledger] cash adjustment %.2f rejected: %v", delta, err)
		} else {
			logger.Errorf("[ledger] cash adjustment %.2f failed: %v", delta, err)
		}
		return Account{}, err
	}
	logger.Infof("[ledger] cash adjusted by %.2f, cash=%.2f", delta, out.Cash)
	return out, nil
}

// Settle releases pending volume (available = total) for the given codes, or
// for every position when none are given, then records the day's snapshot.
func (e *Engine) Settle(ctx context.Context, codes ...string) (SettleResult, error) {
	var only map[string]bool
	if len(codes) > 0 {
		only = make(map[string]bool, len(codes))
		for _, c := range codes {
			if c = normalizeCode(c); c != "" {
				only[c] = false
			}
		}
	}

	e.mu.Lock()
	result := SettleResult{TradeDate: e.Today()}
	var positionCount int
	err := e.inTx(ctx, func(uow store.UnitOfWork) error {
		now := e.now()
		account, err := requireAccount(ctx, uow)
		if err != nil {
			return err
		}
		positions, err := uow.Positions().List(ctx)
		if err != nil {
			return fmt.Errorf("list positions: %w", err)
		}
		for i := range positions {
			pos := &positions[i]
			if only != nil {
				if _, ok := only[pos.Code]; !ok {
					continue
				}
				only[pos.Code] = true
			}
			pending := pos.TotalVolume - pos.AvailableVolume
			if pending <= 0 {
				continue
			}
			pos.AvailableVolume = pos.TotalVolume
			pos.UpdatedAtUnix = now.UnixMilli()
			if err := uow.Positions().Save(ctx, pos); err != nil {
				return fmt.Errorf("save position %s: %w", pos.Code, err)
			}
			result.Settled++
			result.Released += pending
		}
		for code, seen := range only {
			if !seen {
				result.Unknown = append(result.Unknown, code)
			}
		}
		sort.Strings(result.Unknown)
		if _, err := refresh(ctx, uow, account, now); err != nil {
			return err
		}
		positionCount = len(positions)
		result.Account = accountFromModel(account)
		return nil
	})
	e.mu.Unlock()
	if err != nil {
		if IsRejection(err) {
			logger.Warnf("[ledger] settlement rejected: %v", err)
		} else {
			logger.Errorf("[ledger] settlement failed: %v", err)
		}
		return SettleResult{}, err
	}
	logger.Infof("[ledger] settled %s: %d positions, %d shares released", result.TradeDate, result.Settled, result.Released)

	if e.history != nil {
		snap := history.Snapshot{
			TradeDate:   result.TradeDate,
			Cash:        result.Account.Cash,
			MarketValue: result.Account.MarketValue,
			TotalAsset:  result.Account.TotalAsset,
			Positions:   positionCount,
			TakenAt:     e.now(),
		}
		if err := e.history.Record(ctx, snap); err != nil {
			logger.Errorf("[ledger] record snapshot %s failed: %v", result.TradeDate, err)
		}
	}
	e.publish(ctx, events.Event{
		Type:    events.LedgerSettled,
		Key:     result.TradeDate,
		Payload: result,
	})
	return result, nil
}

// publish never fails the caller; the ledger change is already committed.
func (e *Engine) publish(ctx context.Context, ev events.Event) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = e.now()
	}
	if err := e.publisher.Publish(ctx, ev); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warnf("[ledger] publish %s (%s) failed: %v", ev.Type, ev.Key, err)
	}
}
