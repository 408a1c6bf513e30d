package ledger

import (
	"paperledger/internal/store/model"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

func decFromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func decToFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// markPosition sets the current price and derives profit from the cost basis.
func markPosition(pos *model.PositionModel, price float64) {
	current := price
	pos.CurrentPrice = &current
	if pos.AvgPrice <= 0 {
		pos.Profit = 0
		pos.ProfitPct = 0
		return
	}
	avg := decFromFloat(pos.AvgPrice)
	diff := decFromFloat(price).Sub(avg)
	pos.Profit = decToFloat(diff.Mul(decimal.NewFromInt(pos.TotalVolume)))
	pos.ProfitPct = decToFloat(diff.Div(avg).Mul(hundred))
}

// marketValue sums current_price * total_volume over positions that have
// been priced at least once.
func marketValue(positions []model.PositionModel) decimal.Decimal {
	total := decimal.Zero
	for i := range positions {
		p := positions[i]
		if p.CurrentPrice == nil {
			continue
		}
		total = total.Add(decFromFloat(*p.CurrentPrice).Mul(decimal.NewFromInt(p.TotalVolume)))
	}
	return total
}

func recomputeAggregates(account *model.AccountModel, positions []model.PositionModel) {
	mv := marketValue(positions)
	account.MarketValue = decToFloat(mv)
	account.TotalAsset = decToFloat(decFromFloat(account.Cash).Add(mv))
}

// averagePrice is the volume-weighted cost after adding volume at price.
func averagePrice(avg float64, held int64, price float64, volume int64) float64 {
	total := held + volume
	if total <= 0 {
		return 0
	}
	cost := decFromFloat(avg).Mul(decimal.NewFromInt(held)).
		Add(decFromFloat(price).Mul(decimal.NewFromInt(volume)))
	return decToFloat(cost.Div(decimal.NewFromInt(total)))
}
