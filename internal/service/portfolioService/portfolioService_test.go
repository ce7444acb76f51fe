package portfolioService

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vportnov/assetbook/config"
	"github.com/vportnov/assetbook/data/repository"
	"github.com/vportnov/assetbook/internal/model"
	"github.com/vportnov/assetbook/internal/service"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// fakeRepo serves from memory what the pg repository serves from postgres.
type fakeRepo struct {
	mu           sync.Mutex
	book         model.Book
	assets       []model.Asset
	txsByAsset   map[int64][]model.Transaction
	priceByAsset map[int64]model.PriceObservation
	fxRates      []model.FxRate
	nextTxID     int64
	inserted     []model.Transaction
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		book:         model.Book{BookID: 1, Name: "main"},
		txsByAsset:   map[int64][]model.Transaction{},
		priceByAsset: map[int64]model.PriceObservation{},
		nextTxID:     100,
	}
}

func (f *fakeRepo) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	return tFunc(ctx)
}

func (f *fakeRepo) CreateBook(ctx context.Context, name string) (int64, error) {
	return 0, errors.New("not implemented")
}
func (f *fakeRepo) GetBook(ctx context.Context, bookID int64) (model.Book, error) {
	if bookID != f.book.BookID {
		return model.Book{}, repository.ErrNotFound
	}
	return f.book, nil
}
func (f *fakeRepo) GetBookByName(ctx context.Context, name string) (model.Book, error) {
	if name != f.book.Name {
		return model.Book{}, repository.ErrNotFound
	}
	return f.book, nil
}
func (f *fakeRepo) ListBooks(ctx context.Context) ([]model.Book, error) {
	return []model.Book{f.book}, nil
}
func (f *fakeRepo) DeleteBook(ctx context.Context, bookID int64) error { return nil }

func (f *fakeRepo) InsertAsset(ctx context.Context, asset model.Asset) (int64, error) {
	return 0, errors.New("not implemented")
}
func (f *fakeRepo) GetAsset(ctx context.Context, bookID int64, symbol string) (model.Asset, error) {
	for _, a := range f.assets {
		if a.BookID == bookID && a.Symbol == symbol {
			return a, nil
		}
	}
	return model.Asset{}, repository.ErrNotFound
}
func (f *fakeRepo) GetAssetByID(ctx context.Context, assetID int64) (model.Asset, error) {
	for _, a := range f.assets {
		if a.AssetID == assetID {
			return a, nil
		}
	}
	return model.Asset{}, repository.ErrNotFound
}
func (f *fakeRepo) GetAssets(ctx context.Context, bookID int64) ([]model.Asset, error) {
	return f.assets, nil
}
func (f *fakeRepo) UpdateAsset(ctx context.Context, bookID int64, symbol string, name *string, platform *string) error {
	return nil
}
func (f *fakeRepo) DeleteAsset(ctx context.Context, bookID int64, symbol string) error { return nil }

func (f *fakeRepo) InsertTransaction(ctx context.Context, tx model.Transaction) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTxID++
	tx.TransactionID = f.nextTxID
	f.inserted = append(f.inserted, tx)
	f.txsByAsset[tx.AssetID] = append(f.txsByAsset[tx.AssetID], tx)
	return tx.TransactionID, nil
}
func (f *fakeRepo) DeleteTransaction(ctx context.Context, transactionID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for assetID, txs := range f.txsByAsset {
		for i, tx := range txs {
			if tx.TransactionID == transactionID {
				f.txsByAsset[assetID] = append(txs[:i], txs[i+1:]...)
				return assetID, nil
			}
		}
	}
	return 0, repository.ErrNotFound
}
func (f *fakeRepo) GetTransactionsByAsset(ctx context.Context, assetID int64) ([]model.Transaction, error) {
	return f.txsByAsset[assetID], nil
}
func (f *fakeRepo) GetTransactionsByBook(ctx context.Context, bookID int64) (map[int64][]model.Transaction, error) {
	return f.txsByAsset, nil
}

func (f *fakeRepo) InsertPriceObservation(ctx context.Context, obs model.PriceObservation) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.priceByAsset[obs.AssetID] = obs
	return 1, nil
}
func (f *fakeRepo) GetLatestPrice(ctx context.Context, assetID int64) (model.PriceObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	obs, ok := f.priceByAsset[assetID]
	if !ok {
		return model.PriceObservation{}, repository.ErrNotFound
	}
	return obs, nil
}
func (f *fakeRepo) GetLatestPricesByBook(ctx context.Context, bookID int64) (map[int64]model.PriceObservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]model.PriceObservation, len(f.priceByAsset))
	for k, v := range f.priceByAsset {
		out[k] = v
	}
	return out, nil
}
func (f *fakeRepo) GetPriceAsOf(ctx context.Context, assetID int64, ts time.Time) (model.PriceObservation, error) {
	return model.PriceObservation{}, repository.ErrNotFound
}
func (f *fakeRepo) GetPriceHistory(ctx context.Context, assetID int64, from, to time.Time) ([]model.PriceObservation, error) {
	return nil, nil
}

func (f *fakeRepo) InsertWatchlistEntry(ctx context.Context, bookID, assetID int64, note string) error {
	return nil
}
func (f *fakeRepo) DeleteWatchlistEntry(ctx context.Context, bookID, assetID int64) error { return nil }
func (f *fakeRepo) GetWatchlist(ctx context.Context, bookID int64) ([]model.WatchlistEntry, error) {
	return nil, nil
}

func (f *fakeRepo) UpsertFxRates(ctx context.Context, rates []model.FxRate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fxRates = rates
	return nil
}
func (f *fakeRepo) GetFxRates(ctx context.Context) ([]model.FxRate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fxRates, nil
}

// fakeCache always misses so the summary is computed from the repo.
type fakeCache struct{}

func (f *fakeCache) GetQuote(ctx context.Context, class model.AssetClass, symbol string) (model.Quote, error) {
	return model.Quote{}, errors.New("cache miss")
}
func (f *fakeCache) SetQuote(ctx context.Context, class model.AssetClass, quote model.Quote) error {
	return nil
}
func (f *fakeCache) GetPortfolioSummary(ctx context.Context, bookID int64) (model.PortfolioSummary, error) {
	return model.PortfolioSummary{}, errors.New("cache miss")
}
func (f *fakeCache) SetPortfolioSummary(ctx context.Context, bookID int64, summary model.PortfolioSummary) error {
	return nil
}
func (f *fakeCache) FlushBookCache(ctx context.Context, bookID int64) error { return nil }

// trackingCache records which books had their valuation cache flushed.
type trackingCache struct {
	fakeCache
	mu      sync.Mutex
	flushed []int64
}

func (c *trackingCache) FlushBookCache(ctx context.Context, bookID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushed = append(c.flushed, bookID)
	return nil
}

type fakeSession struct {
	bookID int64
}

func (f *fakeSession) GetActiveBook(ctx context.Context) (int64, error) {
	if f.bookID == 0 {
		return 0, errors.New("no active book")
	}
	return f.bookID, nil
}
func (f *fakeSession) SetActiveBook(ctx context.Context, bookID int64) error {
	f.bookID = bookID
	return nil
}

func newTestService(repo *fakeRepo) *PortfolioService {
	cfg := &config.Config{HomeCurrency: "EUR"}
	return New(cfg, repo, &fakeCache{}, &fakeSession{bookID: 1}, nil, nil, nil, nil)
}

func TestGetPortfolioSummaryUnknownPriceExcluded(t *testing.T) {
	repo := newFakeRepo()
	repo.assets = []model.Asset{
		{AssetID: 1, BookID: 1, Symbol: "AAA", Name: "Asset A", Class: model.AssetClassStock, Currency: "EUR"},
		{AssetID: 2, BookID: 1, Symbol: "BBB", Name: "Asset B", Class: model.AssetClassStock, Currency: "EUR"},
	}
	repo.txsByAsset[1] = []model.Transaction{{TransactionID: 1, AssetID: 1, Kind: model.TransactionBuy, Quantity: d("10"), Price: d("100")}}
	repo.txsByAsset[2] = []model.Transaction{{TransactionID: 2, AssetID: 2, Kind: model.TransactionBuy, Quantity: d("5"), Price: d("50")}}
	repo.priceByAsset[1] = model.PriceObservation{AssetID: 1, Price: d("120"), Currency: "EUR"}
	// asset 2 has no price observation at all

	srv := newTestService(repo)

	summary, err := srv.GetPortfolioSummary(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, summary.Holdings, 2)
	assert.True(t, summary.TotalValue.Equal(d("1200")), "unknown-price asset must not contribute, got %s", summary.TotalValue)

	var known, unknown model.HoldingValuation
	for _, h := range summary.Holdings {
		if h.Symbol == "AAA" {
			known = h
		} else {
			unknown = h
		}
	}

	assert.True(t, known.PriceKnown)
	assert.True(t, known.AllocationPct.Equal(d("100")), "known allocations sum to 100, got %s", known.AllocationPct)
	assert.False(t, unknown.PriceKnown)
	assert.True(t, unknown.AllocationPct.IsZero())
	assert.True(t, unknown.Quantity.Equal(d("5")), "unknown-price holding still shows its quantity")

	require.Len(t, summary.Warnings, 1)
	assert.Equal(t, model.WarningPriceUnknown, summary.Warnings[0].Kind)
	assert.Equal(t, "BBB", summary.Warnings[0].Symbol)
}

func TestGetPortfolioSummaryAllocationsSumTo100(t *testing.T) {
	repo := newFakeRepo()
	repo.assets = []model.Asset{
		{AssetID: 1, BookID: 1, Symbol: "AAA", Class: model.AssetClassStock, Currency: "EUR"},
		{AssetID: 2, BookID: 1, Symbol: "BBB", Class: model.AssetClassStock, Currency: "EUR"},
	}
	repo.txsByAsset[1] = []model.Transaction{{TransactionID: 1, AssetID: 1, Kind: model.TransactionBuy, Quantity: d("3"), Price: d("100")}}
	repo.txsByAsset[2] = []model.Transaction{{TransactionID: 2, AssetID: 2, Kind: model.TransactionBuy, Quantity: d("1"), Price: d("100")}}
	repo.priceByAsset[1] = model.PriceObservation{AssetID: 1, Price: d("100"), Currency: "EUR"}
	repo.priceByAsset[2] = model.PriceObservation{AssetID: 2, Price: d("100"), Currency: "EUR"}

	srv := newTestService(repo)

	summary, err := srv.GetPortfolioSummary(context.Background(), 1)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, h := range summary.Holdings {
		sum = sum.Add(h.AllocationPct)
	}
	assert.True(t, sum.Equal(d("100")), "allocations sum = %s", sum)
}

func TestGetPortfolioSummaryTotalInvestedCountsUnpricedBuys(t *testing.T) {
	repo := newFakeRepo()
	repo.assets = []model.Asset{
		{AssetID: 1, BookID: 1, Symbol: "AAA", Class: model.AssetClassStock, Currency: "EUR"},
		{AssetID: 2, BookID: 1, Symbol: "BBB", Class: model.AssetClassStock, Currency: "EUR"},
	}
	repo.txsByAsset[1] = []model.Transaction{{TransactionID: 1, AssetID: 1, Kind: model.TransactionBuy, Quantity: d("10"), Price: d("100")}}
	repo.txsByAsset[2] = []model.Transaction{{TransactionID: 2, AssetID: 2, Kind: model.TransactionBuy, Quantity: d("5"), Price: d("50")}}
	repo.priceByAsset[1] = model.PriceObservation{AssetID: 1, Price: d("100"), Currency: "EUR"}
	// asset 2 has no price observation, its buys still count as invested

	srv := newTestService(repo)

	summary, err := srv.GetPortfolioSummary(context.Background(), 1)
	require.NoError(t, err)

	assert.True(t, summary.TotalInvested.Equal(d("1250")),
		"total invested must count all buys (1000 + 250), got %s", summary.TotalInvested)
}

func TestGetPortfolioSummaryRateUnavailable(t *testing.T) {
	repo := newFakeRepo()
	repo.assets = []model.Asset{
		{AssetID: 1, BookID: 1, Symbol: "USD1", Class: model.AssetClassStock, Currency: "USD"},
		{AssetID: 2, BookID: 1, Symbol: "EUR1", Class: model.AssetClassStock, Currency: "EUR"},
	}
	repo.txsByAsset[1] = []model.Transaction{{TransactionID: 1, AssetID: 1, Kind: model.TransactionBuy, Quantity: d("1"), Price: d("100")}}
	repo.txsByAsset[2] = []model.Transaction{{TransactionID: 2, AssetID: 2, Kind: model.TransactionBuy, Quantity: d("1"), Price: d("100")}}
	repo.priceByAsset[1] = model.PriceObservation{AssetID: 1, Price: d("100"), Currency: "USD"}
	repo.priceByAsset[2] = model.PriceObservation{AssetID: 2, Price: d("100"), Currency: "EUR"}
	// no USD->EUR rate loaded

	srv := newTestService(repo)

	summary, err := srv.GetPortfolioSummary(context.Background(), 1)
	require.NoError(t, err, "a missing rate degrades the row, never the whole summary")

	assert.True(t, summary.TotalValue.Equal(d("100")))

	require.Len(t, summary.Warnings, 1)
	assert.Equal(t, model.WarningRateUnavailable, summary.Warnings[0].Kind)
	assert.Equal(t, "USD1", summary.Warnings[0].Symbol)
}

func TestGetPortfolioSummaryConvertsWithRate(t *testing.T) {
	repo := newFakeRepo()
	repo.assets = []model.Asset{
		{AssetID: 1, BookID: 1, Symbol: "USD1", Class: model.AssetClassStock, Currency: "USD"},
	}
	repo.txsByAsset[1] = []model.Transaction{{TransactionID: 1, AssetID: 1, Kind: model.TransactionBuy, Quantity: d("2"), Price: d("100")}}
	repo.priceByAsset[1] = model.PriceObservation{AssetID: 1, Price: d("110"), Currency: "USD"}
	repo.fxRates = []model.FxRate{{Base: "USD", Quote: "EUR", Rate: d("0.5")}}

	srv := newTestService(repo)

	summary, err := srv.GetPortfolioSummary(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, summary.Holdings, 1)
	h := summary.Holdings[0]
	assert.True(t, h.MarketValue.Equal(d("110")), "2 * 110 USD * 0.5, got %s", h.MarketValue)
	// cost basis leg converted at the current rate as well
	assert.True(t, h.CostBasis.Equal(d("100")), "200 USD * 0.5, got %s", h.CostBasis)
	assert.True(t, h.PnLAbs.Equal(d("10")))
	// average cost stays in the quote currency, like the current price
	assert.True(t, h.AvgCost.Equal(d("100")), "200 USD / 2, got %s", h.AvgCost)
}

func TestGetPortfolioSummaryOversoldWarning(t *testing.T) {
	repo := newFakeRepo()
	repo.assets = []model.Asset{
		{AssetID: 1, BookID: 1, Symbol: "AAA", Class: model.AssetClassStock, Currency: "EUR"},
	}
	repo.txsByAsset[1] = []model.Transaction{
		{TransactionID: 1, AssetID: 1, Kind: model.TransactionBuy, Quantity: d("5"), Price: d("10"), DtTrade: time.Unix(1, 0)},
		{TransactionID: 2, AssetID: 1, Kind: model.TransactionSell, Quantity: d("8"), Price: d("10"), DtTrade: time.Unix(2, 0)},
	}
	repo.priceByAsset[1] = model.PriceObservation{AssetID: 1, Price: d("10"), Currency: "EUR"}

	srv := newTestService(repo)

	summary, err := srv.GetPortfolioSummary(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, summary.Warnings, 1)
	assert.Equal(t, model.WarningOversold, summary.Warnings[0].Kind)
	require.Len(t, summary.Holdings, 1)
	assert.True(t, summary.Holdings[0].Oversold)
}

func TestGetPortfolioSummarySkipsClosedPositions(t *testing.T) {
	repo := newFakeRepo()
	repo.assets = []model.Asset{
		{AssetID: 1, BookID: 1, Symbol: "AAA", Class: model.AssetClassStock, Currency: "EUR"},
	}
	repo.txsByAsset[1] = []model.Transaction{
		{TransactionID: 1, AssetID: 1, Kind: model.TransactionBuy, Quantity: d("5"), Price: d("10"), DtTrade: time.Unix(1, 0)},
		{TransactionID: 2, AssetID: 1, Kind: model.TransactionSell, Quantity: d("5"), Price: d("12"), DtTrade: time.Unix(2, 0)},
	}
	repo.priceByAsset[1] = model.PriceObservation{AssetID: 1, Price: d("12"), Currency: "EUR"}

	srv := newTestService(repo)

	summary, err := srv.GetPortfolioSummary(context.Background(), 1)
	require.NoError(t, err)

	assert.Empty(t, summary.Holdings)
	assert.Equal(t, 0, summary.HoldingsCount)
}

func TestRecordTransactionValidation(t *testing.T) {
	repo := newFakeRepo()
	repo.assets = []model.Asset{
		{AssetID: 1, BookID: 1, Symbol: "AAA", Class: model.AssetClassStock, Currency: "EUR"},
	}

	srv := newTestService(repo)
	ctx := context.Background()

	tests := []struct {
		name string
		tx   model.Transaction
	}{
		{"unknown kind", model.Transaction{Kind: "swap", Quantity: d("1"), Price: d("1")}},
		{"buy without quantity", model.Transaction{Kind: model.TransactionBuy, Price: d("1")}},
		{"sell without quantity", model.Transaction{Kind: model.TransactionSell, Price: d("1")}},
		{"dividend with quantity", model.Transaction{Kind: model.TransactionDividend, Quantity: d("1"), Price: d("10")}},
		{"fee with quantity", model.Transaction{Kind: model.TransactionFee, Quantity: d("1"), Fee: d("5")}},
		{"negative price", model.Transaction{Kind: model.TransactionBuy, Quantity: d("1"), Price: d("-1")}},
		{"negative fee", model.Transaction{Kind: model.TransactionBuy, Quantity: d("1"), Price: d("1"), Fee: d("-1")}},
		{"negative quantity", model.Transaction{Kind: model.TransactionBuy, Quantity: d("-1"), Price: d("1")}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := srv.RecordTransaction(ctx, 1, "AAA", tc.tx)
			assert.ErrorIs(t, err, service.ErrValidation)
		})
	}

	assert.Empty(t, repo.inserted, "invalid rows must never reach the ledger")
}

func TestRecordTransactionOversellAccepted(t *testing.T) {
	repo := newFakeRepo()
	repo.assets = []model.Asset{
		{AssetID: 1, BookID: 1, Symbol: "AAA", Class: model.AssetClassStock, Currency: "EUR"},
	}

	srv := newTestService(repo)

	// selling with nothing held is recorded, not rejected
	id, err := srv.RecordTransaction(context.Background(), 1, "AAA", model.Transaction{
		Kind:     model.TransactionSell,
		Quantity: d("3"),
		Price:    d("10"),
	})

	require.NoError(t, err)
	assert.NotZero(t, id)

	pos, err := srv.GetPosition(context.Background(), 1, "AAA")
	require.NoError(t, err)
	assert.True(t, pos.Oversold)
}

func TestDeleteTransactionFlushesOwningBook(t *testing.T) {
	repo := newFakeRepo()
	repo.assets = []model.Asset{
		{AssetID: 1, BookID: 1, Symbol: "AAA", Class: model.AssetClassStock, Currency: "EUR"},
	}
	repo.txsByAsset[1] = []model.Transaction{
		{TransactionID: 5, AssetID: 1, Kind: model.TransactionBuy, Quantity: d("1"), Price: d("10")},
	}

	cache := &trackingCache{}
	cfg := &config.Config{HomeCurrency: "EUR"}
	srv := New(cfg, repo, cache, &fakeSession{bookID: 1}, nil, nil, nil, nil)

	err := srv.DeleteTransaction(context.Background(), 1, 5)
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, cache.flushed, "the owning book's valuation cache must be invalidated")
}

func TestDeleteTransactionScopedToBook(t *testing.T) {
	repo := newFakeRepo()
	repo.assets = []model.Asset{
		{AssetID: 1, BookID: 1, Symbol: "AAA", Class: model.AssetClassStock, Currency: "EUR"},
	}
	repo.txsByAsset[1] = []model.Transaction{
		{TransactionID: 5, AssetID: 1, Kind: model.TransactionBuy, Quantity: d("1"), Price: d("10")},
	}

	cache := &trackingCache{}
	cfg := &config.Config{HomeCurrency: "EUR"}
	srv := New(cfg, repo, cache, &fakeSession{bookID: 1}, nil, nil, nil, nil)

	// the row belongs to book 1, addressing it through book 2 must fail
	err := srv.DeleteTransaction(context.Background(), 2, 5)

	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.Empty(t, cache.flushed, "nothing was deleted, nothing to invalidate")
}

func TestReplaceTransactionScopedToBook(t *testing.T) {
	repo := newFakeRepo()
	repo.assets = []model.Asset{
		{AssetID: 1, BookID: 1, Symbol: "AAA", Class: model.AssetClassStock, Currency: "EUR"},
	}
	repo.txsByAsset[1] = []model.Transaction{
		{TransactionID: 5, AssetID: 1, Kind: model.TransactionBuy, Quantity: d("1"), Price: d("10")},
	}

	srv := newTestService(repo)

	_, err := srv.ReplaceTransaction(context.Background(), 2, 5, model.Transaction{
		Kind:     model.TransactionBuy,
		Quantity: d("1"),
		Price:    d("20"),
	})

	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestReplaceTransaction(t *testing.T) {
	repo := newFakeRepo()
	repo.assets = []model.Asset{
		{AssetID: 1, BookID: 1, Symbol: "AAA", Class: model.AssetClassStock, Currency: "EUR"},
	}
	repo.txsByAsset[1] = []model.Transaction{
		{TransactionID: 5, AssetID: 1, Kind: model.TransactionBuy, Quantity: d("10"), Price: d("90"), DtTrade: time.Unix(1, 0)},
	}

	srv := newTestService(repo)

	newID, err := srv.ReplaceTransaction(context.Background(), 1, 5, model.Transaction{
		Kind:     model.TransactionBuy,
		Quantity: d("10"),
		Price:    d("95"),
		DtTrade:  time.Unix(1, 0),
	})
	require.NoError(t, err)
	assert.NotEqual(t, int64(5), newID, "the corrected row gets a fresh id")

	pos, err := srv.GetPosition(context.Background(), 1, "AAA")
	require.NoError(t, err)
	assert.True(t, pos.CostBasis.Equal(d("950")), "position reflects the corrected row, got %s", pos.CostBasis)

	_, err = srv.ReplaceTransaction(context.Background(), 1, 5, model.Transaction{
		Kind:     model.TransactionBuy,
		Quantity: d("1"),
		Price:    d("1"),
	})
	assert.ErrorIs(t, err, service.ErrNotFound, "the old id is gone after the correction")
}

func TestRecordTransactionUnknownAsset(t *testing.T) {
	repo := newFakeRepo()
	srv := newTestService(repo)

	_, err := srv.RecordTransaction(context.Background(), 1, "NOPE", model.Transaction{
		Kind:     model.TransactionBuy,
		Quantity: d("1"),
		Price:    d("1"),
	})

	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestRefreshFxRatesStoresBothDirections(t *testing.T) {
	repo := newFakeRepo()
	cfg := &config.Config{HomeCurrency: "EUR"}
	srv := New(cfg, repo, &fakeCache{}, &fakeSession{bookID: 1}, nil, fakeFxApi{}, nil, nil)

	err := srv.RefreshFxRates(context.Background())
	require.NoError(t, err)

	rates, err := repo.GetFxRates(context.Background())
	require.NoError(t, err)
	require.Len(t, rates, 2)

	byPair := map[[2]string]decimal.Decimal{}
	for _, r := range rates {
		byPair[[2]string{r.Base, r.Quote}] = r.Rate
	}

	assert.True(t, byPair[[2]string{"EUR", "USD"}].Equal(d("2")))
	assert.True(t, byPair[[2]string{"USD", "EUR"}].Equal(d("0.5")))
}

type fakeFxApi struct{}

func (fakeFxApi) GetRates(ctx context.Context, base string) ([]model.FxRate, error) {
	return []model.FxRate{{Base: base, Quote: "USD", Rate: decimal.NewFromInt(2)}}, nil
}
