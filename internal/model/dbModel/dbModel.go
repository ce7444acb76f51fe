package dbModel

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Book struct {
	BookID   int64     `db:"book_id"`
	Name     string    `db:"name"`
	DtCreate time.Time `db:"dt_create"`
}

type Asset struct {
	AssetID  int64          `db:"asset_id"`
	BookID   int64          `db:"book_id"`
	Symbol   string         `db:"symbol"`
	Name     string         `db:"name"`
	Class    string         `db:"asset_class"`
	Platform sql.NullString `db:"platform"`
	Currency string         `db:"currency"`
	DtCreate time.Time      `db:"dt_create"`
}

type Transaction struct {
	TransactionID int64           `db:"transaction_id"`
	AssetID       int64           `db:"asset_id"`
	Kind          string          `db:"kind"`
	Quantity      decimal.Decimal `db:"quantity"`
	Price         decimal.Decimal `db:"price"`
	Fee           decimal.Decimal `db:"fee"`
	Note          sql.NullString  `db:"note"`
	DtTrade       time.Time       `db:"dt_trade"`
	DtCreate      time.Time       `db:"dt_create"`
}

type PriceObservation struct {
	ObservationID int64           `db:"observation_id"`
	AssetID       int64           `db:"asset_id"`
	Price         decimal.Decimal `db:"price"`
	Currency      string          `db:"currency"`
	Provenance    string          `db:"provenance"`
	DtObserve     time.Time       `db:"dt_observe"`
	DtCreate      time.Time       `db:"dt_create"`
}

type WatchlistEntry struct {
	BookID   int64          `db:"book_id"`
	AssetID  int64          `db:"asset_id"`
	Symbol   string         `db:"symbol"`
	Name     string         `db:"name"`
	Class    string         `db:"asset_class"`
	Currency string         `db:"currency"`
	Note     sql.NullString `db:"note"`
	DtCreate time.Time      `db:"dt_create"`
}

type FxRate struct {
	Base     string          `db:"base"`
	Quote    string          `db:"quote"`
	Rate     decimal.Decimal `db:"rate"`
	DtUpdate time.Time       `db:"dt_update"`
}
