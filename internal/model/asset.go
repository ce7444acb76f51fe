package model

import "time"

type AssetClass string

const (
	AssetClassStock     AssetClass = "stock"
	AssetClassETF       AssetClass = "etf"
	AssetClassCrypto    AssetClass = "crypto"
	AssetClassBond      AssetClass = "bond"
	AssetClassCommodity AssetClass = "commodity"
)

func (c AssetClass) Valid() bool {
	switch c {
	case AssetClassStock, AssetClassETF, AssetClassCrypto, AssetClassBond, AssetClassCommodity:
		return true
	}
	return false
}

// Asset identity is (BookID, Symbol); symbol is stored uppercase.
// Name and Platform are the only mutable fields.
type Asset struct {
	AssetID  int64      `json:"asset_id"`
	BookID   int64      `json:"book_id"`
	Symbol   string     `json:"symbol"`
	Name     string     `json:"name"`
	Class    AssetClass `json:"class"`
	Platform string     `json:"platform,omitempty"`
	Currency string     `json:"currency"` // quote currency of the asset's prices
	DtCreate time.Time  `json:"dt_create"`
}
