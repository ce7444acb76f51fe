package currency

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrRateUnavailable reports that the rate table holds no entry for the
// requested pair. from == to never returns it.
var ErrRateUnavailable = errors.New("error fx rate unavailable")

type Pair struct {
	From string
	To   string
}

// RateTable is an exogenous multiplicative rate table. The converter holds
// no caching or network logic; callers load the table from storage.
type RateTable map[Pair]decimal.Decimal

func (t RateTable) Set(from, to string, rate decimal.Decimal) {
	t[Pair{From: from, To: to}] = rate
}

// Convert converts amount from one currency to another. Identity conversion
// succeeds on any table, including an empty one. No rounding is applied;
// rounding happens at display only.
func Convert(amount decimal.Decimal, from, to string, table RateTable) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}

	rate, ok := table[Pair{From: from, To: to}]
	if !ok {
		return decimal.Decimal{}, fmt.Errorf("no rate for %s->%s: %w", from, to, ErrRateUnavailable)
	}

	return amount.Mul(rate), nil
}
