package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// WatchlistEntry tracks an asset that is not necessarily held. Entries are
// valued like holdings but never participate in portfolio aggregates.
type WatchlistEntry struct {
	AssetID       int64           `json:"asset_id"`
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name"`
	Class         AssetClass      `json:"class"`
	Note          string          `json:"note,omitempty"`
	DtCreate      time.Time       `json:"dt_create"`
	CurrentPrice  decimal.Decimal `json:"current_price"` // in the asset's quote currency
	QuoteCurrency string          `json:"quote_currency"`
	PriceAsOf     time.Time       `json:"price_as_of"`
	PriceKnown    bool            `json:"price_known"`
	HomePrice     decimal.Decimal `json:"home_price"` // converted to the home currency, zero if rate missing
	HomeKnown     bool            `json:"home_known"`
	DayChangePct  decimal.Decimal `json:"day_change_pct"` // vs the latest observation at least 24h older
	DayChangeSet  bool            `json:"day_change_set"`
}
