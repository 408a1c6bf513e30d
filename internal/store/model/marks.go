package model

import "gorm.io/datatypes"

// MarkEventModel maps to 'mark_events', the audit trail of valuation runs.
type MarkEventModel struct {
	ID            int64          `gorm:"column:id;primaryKey;autoIncrement"`
	Prices        datatypes.JSON `gorm:"column:prices;type:TEXT"`
	Matched       int            `gorm:"column:matched"`
	MarketValue   float64        `gorm:"column:market_value"`
	TotalAsset    float64        `gorm:"column:total_asset"`
	CreatedAtUnix int64          `gorm:"column:created_at;index:idx_mark_events_created_at"`
}

func (MarkEventModel) TableName() string { return "mark_events" }
