package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	TransactionBuy      TransactionKind = "buy"
	TransactionSell     TransactionKind = "sell"
	TransactionDividend TransactionKind = "dividend"
	TransactionFee      TransactionKind = "fee"
)

func (k TransactionKind) Valid() bool {
	switch k {
	case TransactionBuy, TransactionSell, TransactionDividend, TransactionFee:
		return true
	}
	return false
}

// Transaction is one append-only ledger row. Cash conventions:
// buy/sell carry Quantity, unit Price and Fee; dividend carries the cash
// amount in Price (Quantity must be 0) reduced by Fee; a standalone fee
// carries the amount in Fee with Quantity and Price 0.
// Rows are never updated, corrections are delete + recreate.
type Transaction struct {
	TransactionID int64           `json:"transaction_id"`
	AssetID       int64           `json:"asset_id"`
	Kind          TransactionKind `json:"kind"`
	Quantity      decimal.Decimal `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Fee           decimal.Decimal `json:"fee"`
	Note          string          `json:"note,omitempty"`
	DtTrade       time.Time       `json:"dt_trade"`
	DtCreate      time.Time       `json:"dt_create"`
}
