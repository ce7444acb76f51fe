package position

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vportnov/assetbook/internal/model"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(n int) time.Time {
	return time.Date(2026, 1, n, 0, 0, 0, 0, time.UTC)
}

func TestCalculateBuyThenSell(t *testing.T) {
	txs := []model.Transaction{
		{TransactionID: 1, Kind: model.TransactionBuy, Quantity: d("10"), Price: d("100"), Fee: d("1"), DtTrade: day(1)},
		{TransactionID: 2, Kind: model.TransactionSell, Quantity: d("4"), Price: d("120"), Fee: d("1"), DtTrade: day(2)},
	}

	pos := Calculate(txs)

	assert.True(t, pos.Quantity.Equal(d("6")), "quantity = %s", pos.Quantity)
	assert.True(t, pos.CostBasis.Equal(d("600.6")), "cost basis = %s", pos.CostBasis)
	assert.True(t, pos.RealizedPnL.Equal(d("78.6")), "realized = %s", pos.RealizedPnL)
	assert.True(t, pos.AvgCost().Equal(d("100.1")), "avg cost = %s", pos.AvgCost())
	assert.False(t, pos.Oversold)
}

func TestCalculateInputOrderIrrelevant(t *testing.T) {
	txs := []model.Transaction{
		{TransactionID: 1, Kind: model.TransactionBuy, Quantity: d("10"), Price: d("100"), Fee: d("1"), DtTrade: day(1)},
		{TransactionID: 2, Kind: model.TransactionBuy, Quantity: d("5"), Price: d("110"), Fee: d("1"), DtTrade: day(2)},
		{TransactionID: 3, Kind: model.TransactionSell, Quantity: d("8"), Price: d("130"), Fee: d("2"), DtTrade: day(3)},
	}
	reversed := []model.Transaction{txs[2], txs[1], txs[0]}

	a := Calculate(txs)
	b := Calculate(reversed)

	assert.True(t, a.Quantity.Equal(b.Quantity))
	assert.True(t, a.CostBasis.Equal(b.CostBasis))
	assert.True(t, a.RealizedPnL.Equal(b.RealizedPnL))
	assert.Equal(t, a.Oversold, b.Oversold)
}

func TestCalculateDoesNotModifyInput(t *testing.T) {
	txs := []model.Transaction{
		{TransactionID: 2, Kind: model.TransactionSell, Quantity: d("1"), Price: d("10"), DtTrade: day(2)},
		{TransactionID: 1, Kind: model.TransactionBuy, Quantity: d("2"), Price: d("10"), DtTrade: day(1)},
	}

	Calculate(txs)

	require.Equal(t, int64(2), txs[0].TransactionID, "input slice was reordered")
}

func TestCalculateSameTimestampOrderedByID(t *testing.T) {
	// buy and sell at the identical instant: insertion order decides
	ts := day(1)
	txs := []model.Transaction{
		{TransactionID: 2, Kind: model.TransactionSell, Quantity: d("5"), Price: d("10"), DtTrade: ts},
		{TransactionID: 1, Kind: model.TransactionBuy, Quantity: d("5"), Price: d("10"), DtTrade: ts},
	}

	pos := Calculate(txs)

	assert.True(t, pos.Quantity.IsZero())
	assert.False(t, pos.Oversold)
}

func TestCalculateSellAllThenRebuy(t *testing.T) {
	txs := []model.Transaction{
		{TransactionID: 1, Kind: model.TransactionBuy, Quantity: d("10"), Price: d("100"), DtTrade: day(1)},
		{TransactionID: 2, Kind: model.TransactionSell, Quantity: d("10"), Price: d("150"), DtTrade: day(2)},
		{TransactionID: 3, Kind: model.TransactionBuy, Quantity: d("3"), Price: d("200"), DtTrade: day(3)},
	}

	pos := Calculate(txs)

	assert.True(t, pos.Quantity.Equal(d("3")))
	assert.True(t, pos.CostBasis.Equal(d("600")), "basis restarts from the rebuy, got %s", pos.CostBasis)
	assert.True(t, pos.RealizedPnL.Equal(d("500")))
}

func TestCalculateOversell(t *testing.T) {
	txs := []model.Transaction{
		{TransactionID: 1, Kind: model.TransactionBuy, Quantity: d("5"), Price: d("10"), DtTrade: day(1)},
		{TransactionID: 2, Kind: model.TransactionSell, Quantity: d("8"), Price: d("10"), DtTrade: day(2)},
	}

	pos := Calculate(txs)

	assert.True(t, pos.Oversold)
	assert.True(t, pos.Quantity.Equal(d("-3")))
	// cost of sold is capped at the remaining basis
	assert.True(t, pos.CostBasis.IsZero(), "basis must not go negative, got %s", pos.CostBasis)
	assert.True(t, pos.RealizedPnL.Equal(d("30")))
	assert.True(t, pos.AvgCost().IsZero(), "no average cost on a non-positive quantity")
}

func TestCalculateSellFromEmptyPosition(t *testing.T) {
	txs := []model.Transaction{
		{TransactionID: 1, Kind: model.TransactionSell, Quantity: d("2"), Price: d("50"), Fee: d("1"), DtTrade: day(1)},
	}

	pos := Calculate(txs)

	assert.True(t, pos.Oversold)
	assert.True(t, pos.Quantity.Equal(d("-2")))
	assert.True(t, pos.CostBasis.IsZero())
	assert.True(t, pos.RealizedPnL.Equal(d("99")), "full proceeds are realized, got %s", pos.RealizedPnL)
}

func TestCalculateDividendAndFee(t *testing.T) {
	txs := []model.Transaction{
		{TransactionID: 1, Kind: model.TransactionBuy, Quantity: d("10"), Price: d("100"), DtTrade: day(1)},
		{TransactionID: 2, Kind: model.TransactionDividend, Price: d("25"), Fee: d("2"), DtTrade: day(2)},
		{TransactionID: 3, Kind: model.TransactionFee, Fee: d("5"), DtTrade: day(3)},
	}

	pos := Calculate(txs)

	assert.True(t, pos.Quantity.Equal(d("10")), "cash flows never move the quantity")
	assert.True(t, pos.CostBasis.Equal(d("1000")))
	assert.True(t, pos.RealizedPnL.Equal(d("18")))
}

func TestCalculateDeleteAndRecreateEquivalence(t *testing.T) {
	// correcting a row by delete + recreate must land on the same position
	// as if the corrected row had been there from the start
	corrected := model.Transaction{TransactionID: 9, Kind: model.TransactionBuy, Quantity: d("7"), Price: d("95"), DtTrade: day(2)}
	rest := []model.Transaction{
		{TransactionID: 1, Kind: model.TransactionBuy, Quantity: d("10"), Price: d("100"), DtTrade: day(1)},
		{TransactionID: 3, Kind: model.TransactionSell, Quantity: d("5"), Price: d("120"), DtTrade: day(3)},
	}

	direct := Calculate(append([]model.Transaction{corrected}, rest...))
	recreated := Calculate(append(rest, corrected))

	assert.True(t, direct.Quantity.Equal(recreated.Quantity))
	assert.True(t, direct.CostBasis.Equal(recreated.CostBasis))
	assert.True(t, direct.RealizedPnL.Equal(recreated.RealizedPnL))
}

func TestTotalInvested(t *testing.T) {
	txs := []model.Transaction{
		{TransactionID: 1, Kind: model.TransactionBuy, Quantity: d("10"), Price: d("100"), Fee: d("1"), DtTrade: day(1)},
		{TransactionID: 2, Kind: model.TransactionSell, Quantity: d("10"), Price: d("200"), Fee: d("1"), DtTrade: day(2)},
		{TransactionID: 3, Kind: model.TransactionBuy, Quantity: d("2"), Price: d("50"), DtTrade: day(3)},
		{TransactionID: 4, Kind: model.TransactionDividend, Price: d("30"), DtTrade: day(4)},
	}

	total := TotalInvested(txs)

	assert.True(t, total.Equal(d("1101")), "only buys count, got %s", total)
}

func TestCalculateEmpty(t *testing.T) {
	pos := Calculate(nil)

	assert.True(t, pos.Quantity.IsZero())
	assert.True(t, pos.CostBasis.IsZero())
	assert.True(t, pos.RealizedPnL.IsZero())
	assert.False(t, pos.Oversold)
}
