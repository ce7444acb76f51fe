package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertIdentity(t *testing.T) {
	amount := decimal.RequireFromString("123.45")

	// identity conversion needs no table at all
	got, err := Convert(amount, "EUR", "EUR", nil)

	require.NoError(t, err)
	assert.True(t, got.Equal(amount))
}

func TestConvertWithRate(t *testing.T) {
	table := RateTable{}
	table.Set("USD", "EUR", decimal.RequireFromString("0.9"))

	got, err := Convert(decimal.NewFromInt(100), "USD", "EUR", table)

	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("90")))
}

func TestConvertMissingRate(t *testing.T) {
	table := RateTable{}
	table.Set("USD", "EUR", decimal.RequireFromString("0.9"))

	// the inverse pair is a separate entry, it is never derived
	_, err := Convert(decimal.NewFromInt(100), "EUR", "USD", table)

	assert.ErrorIs(t, err, ErrRateUnavailable)
}

func TestConvertEmptyTable(t *testing.T) {
	_, err := Convert(decimal.NewFromInt(1), "USD", "JPY", RateTable{})

	assert.ErrorIs(t, err, ErrRateUnavailable)
}
