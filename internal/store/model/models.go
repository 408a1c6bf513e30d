package model

// SingletonAccountID is the only id an account row may carry.
const SingletonAccountID int64 = 1

// All *Unix fields hold unix milliseconds.

type OrderAction string

const (
	ActionBuy  OrderAction = "BUY"
	ActionSell OrderAction = "SELL"
)

type OrderStatus string

const (
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

type AccountModel struct {
	ID            int64   `gorm:"column:id;primaryKey;autoIncrement:false;check:chk_account_singleton,id = 1"`
	Cash          float64 `gorm:"column:cash;not null"`
	MarketValue   float64 `gorm:"column:market_value;not null"`
	TotalAsset    float64 `gorm:"column:total_asset;not null"`
	FrozenCash    float64 `gorm:"column:frozen_cash;not null;default:0"`
	CreatedAtUnix int64   `gorm:"column:created_at"`
	UpdatedAtUnix int64   `gorm:"column:updated_at"`
}

func (AccountModel) TableName() string { return "accounts" }

type PositionModel struct {
	ID              int64    `gorm:"column:id;primaryKey;autoIncrement"`
	Code            string   `gorm:"column:code;size:20;not null;uniqueIndex:idx_positions_code"`
	Name            string   `gorm:"column:name;size:100"`
	TotalVolume     int64    `gorm:"column:total_volume;not null"`
	AvailableVolume int64    `gorm:"column:available_volume;not null"`
	AvgPrice        float64  `gorm:"column:avg_price;not null"`
	CurrentPrice    *float64 `gorm:"column:current_price"`
	Profit          float64  `gorm:"column:profit"`
	ProfitPct       float64  `gorm:"column:profit_pct"`
	CreatedAtUnix   int64    `gorm:"column:created_at"`
	UpdatedAtUnix   int64    `gorm:"column:updated_at"`
}

func (PositionModel) TableName() string { return "positions" }

type OrderModel struct {
	ID            int64       `gorm:"column:id;primaryKey;autoIncrement"`
	OrderID       string      `gorm:"column:order_id;size:36;not null;uniqueIndex:idx_orders_order_id"`
	TradeDate     string      `gorm:"column:trade_date;size:8;not null;index:idx_orders_trade_date"`
	Code          string      `gorm:"column:code;size:20;not null;index:idx_orders_code"`
	Action        OrderAction `gorm:"column:action;size:8;not null"`
	Price         float64     `gorm:"column:price;not null"`
	Volume        int64       `gorm:"column:volume;not null"`
	Fee           float64     `gorm:"column:fee;not null"`
	Status        OrderStatus `gorm:"column:status;size:16;not null"`
	StrategyTag   string      `gorm:"column:strategy_tag;size:32"`
	Reason        string      `gorm:"column:reason;size:255"`
	CreatedAtUnix int64       `gorm:"column:created_at;index:idx_orders_created_at"`
}

func (OrderModel) TableName() string { return "orders" }
