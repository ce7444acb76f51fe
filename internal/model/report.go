package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerLine is one ledger row enriched with asset info for report export.
type LedgerLine struct {
	Symbol   string
	Name     string
	Kind     TransactionKind
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Fee      decimal.Decimal
	Currency string
	Note     string
	DtTrade  time.Time
}

// BookReport is everything the report generator needs for one book.
type BookReport struct {
	BookName string
	Summary  PortfolioSummary
	Ledger   []LedgerLine
}
