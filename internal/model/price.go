package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Provenance string

const (
	ProvenanceFetched Provenance = "fetched"
	ProvenanceManual  Provenance = "manual"
)

// PriceObservation is one append-only point of an asset's price series.
// The current price of an asset is the observation with max DtObserve.
type PriceObservation struct {
	ObservationID int64           `json:"observation_id"`
	AssetID       int64           `json:"asset_id"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
	Provenance    Provenance      `json:"provenance"`
	DtObserve     time.Time       `json:"dt_observe"`
	DtCreate      time.Time       `json:"dt_create"`
}

// Quote is what an external price provider returns for a symbol.
type Quote struct {
	Symbol   string          `json:"symbol"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	AsOf     time.Time       `json:"as_of"`
}
