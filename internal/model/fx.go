package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// FxRate is one multiplicative conversion rate: amount(quote) = amount(base) * Rate.
type FxRate struct {
	Base     string          `json:"base"`
	Quote    string          `json:"quote"`
	Rate     decimal.Decimal `json:"rate"`
	DtUpdate time.Time       `json:"dt_update"`
}
