package model

import "github.com/shopspring/decimal"

// Position is derived state: always recomputable from the asset's
// transaction set, never stored.
type Position struct {
	Quantity    decimal.Decimal `json:"quantity"`
	CostBasis   decimal.Decimal `json:"cost_basis"`   // in the asset's quote currency
	RealizedPnL decimal.Decimal `json:"realized_pnl"` // in the asset's quote currency
	Oversold    bool            `json:"oversold"`     // sells drove quantity negative at some point
}

func (p Position) AvgCost() decimal.Decimal {
	if p.Quantity.IsPositive() {
		return p.CostBasis.Div(p.Quantity)
	}
	return decimal.Zero
}
