package ledger

import (
	"encoding/json"
	"strings"
	"time"

	"paperledger/internal/store/model"
)

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// TradeDateLayout is the YYYYMMDD form used for trade dates.
const TradeDateLayout = "20060102"

// NameResolver maps an instrument code to a display name.
type NameResolver interface {
	DisplayName(code string) (string, bool)
}

type Account struct {
	Cash        float64   `json:"cash"`
	MarketValue float64   `json:"market_value"`
	TotalAsset  float64   `json:"total_asset"`
	FrozenCash  float64   `json:"frozen_cash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Position struct {
	ID              int64     `json:"id"`
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	TotalVolume     int64     `json:"total_volume"`
	AvailableVolume int64     `json:"available_volume"`
	PendingVolume   int64     `json:"pending_volume"`
	AvgPrice        float64   `json:"avg_price"`
	CurrentPrice    *float64  `json:"current_price"`
	Profit          float64   `json:"profit"`
	ProfitPct       float64   `json:"profit_pct"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Order struct {
	ID          int64     `json:"id"`
	OrderID     string    `json:"order_id"`
	TradeDate   string    `json:"trade_date"`
	Code        string    `json:"code"`
	Action      Action    `json:"action"`
	Price       float64   `json:"price"`
	Volume      int64     `json:"volume"`
	Fee         float64   `json:"fee"`
	Status      string    `json:"status"`
	StrategyTag string    `json:"strategy_tag,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// OrderRequest is a fill to apply. Action is matched case-insensitively and
// an empty TradeDate means today in the engine's location.
type OrderRequest struct {
	TradeDate   string  `json:"trade_date"`
	Code        string  `json:"code"`
	Action      Action  `json:"action"`
	Price       float64 `json:"price"`
	Volume      int64   `json:"volume"`
	Fee         float64 `json:"fee"`
	StrategyTag string  `json:"strategy_tag"`
	Reason      string  `json:"reason"`
	DisplayName string  `json:"name"`
}

type MarkEvent struct {
	ID          int64              `json:"id"`
	Prices      map[string]float64 `json:"prices"`
	Matched     int                `json:"matched"`
	MarketValue float64            `json:"market_value"`
	TotalAsset  float64            `json:"total_asset"`
	CreatedAt   time.Time          `json:"created_at"`
}

// MarkResult summarizes one valuation pass. Unmatched lists codes from the
// snapshot with no held position.
type MarkResult struct {
	Matched        int      `json:"matched"`
	Unmatched      []string `json:"unmatched"`
	AccountUpdated bool     `json:"account_updated"`
	MarketValue    float64  `json:"market_value"`
	TotalAsset     float64  `json:"total_asset"`
}

type SettleResult struct {
	TradeDate string   `json:"trade_date"`
	Settled   int      `json:"settled"`
	Released  int64    `json:"released"`
	Unknown   []string `json:"unknown,omitempty"`
	Account   Account  `json:"account"`
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func accountFromModel(m *model.AccountModel) Account {
	return Account{
		Cash:        m.Cash,
		MarketValue: m.MarketValue,
		TotalAsset:  m.TotalAsset,
		FrozenCash:  m.FrozenCash,
		CreatedAt:   fromUnixMilli(m.CreatedAtUnix),
		UpdatedAt:   fromUnixMilli(m.UpdatedAtUnix),
	}
}

func positionFromModel(m *model.PositionModel) Position {
	p := Position{
		ID:              m.ID,
		Code:            m.Code,
		Name:            m.Name,
		TotalVolume:     m.TotalVolume,
		AvailableVolume: m.AvailableVolume,
		PendingVolume:   m.TotalVolume - m.AvailableVolume,
		AvgPrice:        m.AvgPrice,
		Profit:          m.Profit,
		ProfitPct:       m.ProfitPct,
		CreatedAt:       fromUnixMilli(m.CreatedAtUnix),
		UpdatedAt:       fromUnixMilli(m.UpdatedAtUnix),
	}
	if m.CurrentPrice != nil {
		price := *m.CurrentPrice
		p.CurrentPrice = &price
	}
	return p
}

func orderFromModel(m *model.OrderModel) Order {
	return Order{
		ID:          m.ID,
		OrderID:     m.OrderID,
		TradeDate:   m.TradeDate,
		Code:        m.Code,
		Action:      Action(m.Action),
		Price:       m.Price,
		Volume:      m.Volume,
		Fee:         m.Fee,
		Status:      string(m.Status),
		StrategyTag: m.StrategyTag,
		Reason:      m.Reason,
		CreatedAt:   fromUnixMilli(m.CreatedAtUnix),
	}
}

func markEventFromModel(m *model.MarkEventModel) (MarkEvent, error) {
	ev := MarkEvent{
		ID:          m.ID,
		Matched:     m.Matched,
		MarketValue: m.MarketValue,
		TotalAsset:  m.TotalAsset,
		CreatedAt:   fromUnixMilli(m.CreatedAtUnix),
	}
	if len(m.Prices) > 0 {
		if err := json.Unmarshal(m.Prices, &ev.Prices); err != nil {
			return MarkEvent{}, err
		}
	}
	return ev, nil
}
