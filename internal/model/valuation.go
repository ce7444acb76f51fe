package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// WarningKind flags data-quality conditions that are surfaced alongside
// otherwise valid results, never as errors.
type WarningKind string

const (
	WarningPriceUnknown    WarningKind = "price_unknown"
	WarningRateUnavailable WarningKind = "rate_unavailable"
	WarningOversold        WarningKind = "oversold"
)

type Warning struct {
	Symbol string      `json:"symbol"`
	Kind   WarningKind `json:"kind"`
	Detail string      `json:"detail"`
}

// HoldingValuation is a read-only snapshot row for one held asset.
// Money fields are in the home currency. When PriceKnown is false the
// market value and P&L fields are zero-valued and the row is excluded
// from the allocation denominator.
type HoldingValuation struct {
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Class         AssetClass      `json:"class"`
	Platform      string          `json:"platform,omitempty"`
	Quantity      decimal.Decimal `json:"quantity"`
	AvgCost       decimal.Decimal `json:"avg_cost"`      // per unit, in the asset's quote currency
	CurrentPrice  decimal.Decimal `json:"current_price"` // in the asset's quote currency
	QuoteCurrency string          `json:"quote_currency"`
	PriceAsOf     time.Time       `json:"price_as_of"`
	PriceKnown    bool            `json:"price_known"`
	MarketValue   decimal.Decimal `json:"market_value"`
	CostBasis     decimal.Decimal `json:"cost_basis"`
	PnLAbs        decimal.Decimal `json:"pnl_abs"`
	PnLPct        decimal.Decimal `json:"pnl_pct"`
	AllocationPct decimal.Decimal `json:"allocation_pct"`
	Oversold      bool            `json:"oversold"`
}

// PortfolioSummary aggregates over assets with a known price; unknown-price
// holdings are listed but contribute nothing to totals.
type PortfolioSummary struct {
	BookName      string             `json:"book_name"`
	HomeCurrency  string             `json:"home_currency"`
	Holdings      []HoldingValuation `json:"holdings"`
	TotalValue    decimal.Decimal    `json:"total_value"`
	TotalInvested decimal.Decimal    `json:"total_invested"`
	TotalPnL      decimal.Decimal    `json:"total_pnl"`
	HoldingsCount int                `json:"holdings_count"`
	Warnings      []Warning          `json:"warnings,omitempty"`
}
