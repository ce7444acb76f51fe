package position

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/vportnov/assetbook/internal/model"
)

// Calculate folds one asset's transactions into a derived position using the
// average-cost method. It is a pure function: the same transaction set always
// produces the same position, and the input slice is not modified.
//
// Fold rules:
//   - buy: quantity += q, cost basis += q*price + fee
//   - sell: proceeds = q*price - fee; the cost of the sold units is the
//     current average cost, capped at the remaining cost basis so an
//     oversell cannot drive the basis negative; realized += proceeds - cost
//   - dividend: realized += price - fee (quantity untouched)
//   - fee: realized -= fee (quantity untouched)
//
// A sell beyond the held quantity is not rejected, it turns the quantity
// negative and sets Oversold.
func Calculate(transactions []model.Transaction) model.Position {
	txs := make([]model.Transaction, len(transactions))
	copy(txs, transactions)
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].DtTrade.Equal(txs[j].DtTrade) {
			return txs[i].DtTrade.Before(txs[j].DtTrade)
		}
		return txs[i].TransactionID < txs[j].TransactionID
	})

	var pos model.Position
	pos.Quantity = decimal.Zero
	pos.CostBasis = decimal.Zero
	pos.RealizedPnL = decimal.Zero

	for _, tx := range txs {
		switch tx.Kind {
		case model.TransactionBuy:
			pos.Quantity = pos.Quantity.Add(tx.Quantity)
			pos.CostBasis = pos.CostBasis.Add(tx.Quantity.Mul(tx.Price)).Add(tx.Fee)
		case model.TransactionSell:
			proceeds := tx.Quantity.Mul(tx.Price).Sub(tx.Fee)
			costOfSold := decimal.Zero
			if pos.Quantity.IsPositive() {
				sold := decimal.Min(tx.Quantity, pos.Quantity)
				costOfSold = pos.CostBasis.Mul(sold).Div(pos.Quantity)
			}
			pos.CostBasis = pos.CostBasis.Sub(costOfSold)
			pos.RealizedPnL = pos.RealizedPnL.Add(proceeds).Sub(costOfSold)
			pos.Quantity = pos.Quantity.Sub(tx.Quantity)
			if pos.Quantity.IsNegative() {
				pos.Oversold = true
			}
		case model.TransactionDividend:
			pos.RealizedPnL = pos.RealizedPnL.Add(tx.Price).Sub(tx.Fee)
		case model.TransactionFee:
			pos.RealizedPnL = pos.RealizedPnL.Sub(tx.Fee)
		}
	}

	return pos
}

// TotalInvested sums every buy's cash outlay (q*price + fee) without any
// netting from sells.
func TotalInvested(transactions []model.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range transactions {
		if tx.Kind == model.TransactionBuy {
			total = total.Add(tx.Quantity.Mul(tx.Price)).Add(tx.Fee)
		}
	}
	return total
}
