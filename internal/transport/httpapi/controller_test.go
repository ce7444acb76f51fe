package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vportnov/assetbook/config"
	"github.com/vportnov/assetbook/internal/model"
	"github.com/vportnov/assetbook/internal/service"
)

// stubService returns canned data for the happy path and sentinel errors on
// demand, so the tests below exercise routing and status mapping only.
type stubService struct {
	err          error
	book         model.Book
	transactions []model.Transaction
}

func (s *stubService) CreateBook(ctx context.Context, name string) (model.Book, error) {
	return s.book, s.err
}
func (s *stubService) OpenBook(ctx context.Context, name string) (model.Book, error) {
	return s.book, s.err
}
func (s *stubService) ActiveBook(ctx context.Context) (model.Book, error) { return s.book, s.err }
func (s *stubService) GetBookByName(ctx context.Context, name string) (model.Book, error) {
	return s.book, s.err
}
func (s *stubService) ListBooks(ctx context.Context) ([]model.Book, error) {
	return []model.Book{s.book}, s.err
}
func (s *stubService) DeleteBook(ctx context.Context, name string) error { return s.err }

func (s *stubService) AddAsset(ctx context.Context, bookID int64, asset model.Asset) (model.Asset, error) {
	return asset, s.err
}
func (s *stubService) GetAssets(ctx context.Context, bookID int64) ([]model.Asset, error) {
	return nil, s.err
}
func (s *stubService) UpdateAsset(ctx context.Context, bookID int64, symbol string, name *string, platform *string) error {
	return s.err
}
func (s *stubService) DeleteAsset(ctx context.Context, bookID int64, symbol string) error {
	return s.err
}

func (s *stubService) RecordTransaction(ctx context.Context, bookID int64, symbol string, tx model.Transaction) (int64, error) {
	return 42, s.err
}
func (s *stubService) ReplaceTransaction(ctx context.Context, bookID, transactionID int64, tx model.Transaction) (int64, error) {
	return 43, s.err
}
func (s *stubService) DeleteTransaction(ctx context.Context, bookID, transactionID int64) error {
	return s.err
}
func (s *stubService) ListTransactions(ctx context.Context, bookID int64, symbol string) ([]model.Transaction, error) {
	return s.transactions, s.err
}
func (s *stubService) GetPosition(ctx context.Context, bookID int64, symbol string) (model.Position, error) {
	return model.Position{}, s.err
}

func (s *stubService) AppendPrice(ctx context.Context, bookID int64, symbol string, obs model.PriceObservation) (int64, error) {
	return 7, s.err
}
func (s *stubService) LatestPrice(ctx context.Context, bookID int64, symbol string) (model.PriceObservation, error) {
	return model.PriceObservation{}, s.err
}
func (s *stubService) PriceAsOf(ctx context.Context, bookID int64, symbol string, ts time.Time) (model.PriceObservation, error) {
	return model.PriceObservation{}, s.err
}
func (s *stubService) PriceHistory(ctx context.Context, bookID int64, symbol string, from, to time.Time) ([]model.PriceObservation, error) {
	return nil, s.err
}

func (s *stubService) GetPortfolioSummary(ctx context.Context, bookID int64) (model.PortfolioSummary, error) {
	return model.PortfolioSummary{BookName: s.book.Name}, s.err
}

func (s *stubService) AddToWatchlist(ctx context.Context, bookID int64, symbol, note string) error {
	return s.err
}
func (s *stubService) RemoveFromWatchlist(ctx context.Context, bookID int64, symbol string) error {
	return s.err
}
func (s *stubService) GetWatchlist(ctx context.Context, bookID int64) ([]model.WatchlistEntry, error) {
	return nil, s.err
}

func (s *stubService) RefreshBookPrices(ctx context.Context, bookID int64) error { return s.err }
func (s *stubService) RefreshFxRates(ctx context.Context) error                  { return s.err }

func (s *stubService) ExportReport(ctx context.Context, bookID int64) ([]byte, string, string, error) {
	return []byte("xlsx"), "main_2026-01-01.xlsx", "", s.err
}

func newTestServer(stub *stubService) *httptest.Server {
	cfg := &config.Config{}
	controller := NewController(stub)
	server := NewServer(cfg, controller)
	return httptest.NewServer(server.server.Handler)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(&stubService{book: model.Book{BookID: 1, Name: "main"}})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateBook(t *testing.T) {
	ts := newTestServer(&stubService{book: model.Book{BookID: 1, Name: "main"}})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/books", "application/json", strings.NewReader(`{"name":"main"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestCreateBookInvalidBody(t *testing.T) {
	ts := newTestServer(&stubService{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/books", "application/json", strings.NewReader("not json"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestErrorStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not found", service.ErrNotFound, http.StatusNotFound},
		{"already exists", service.ErrAlreadyExists, http.StatusConflict},
		{"validation", service.ErrValidation, http.StatusBadRequest},
		{"internal", context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(&stubService{err: tc.err, book: model.Book{BookID: 1, Name: "main"}})
			defer ts.Close()

			resp, err := http.Post(ts.URL+"/api/books", "application/json", strings.NewReader(`{"name":"main"}`))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestDeleteTransactionBadID(t *testing.T) {
	ts := newTestServer(&stubService{book: model.Book{BookID: 1, Name: "main"}})
	defer ts.Close()

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/transactions/abc", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPriceAsOfRequiresTimestamp(t *testing.T) {
	ts := newTestServer(&stubService{book: model.Book{BookID: 1, Name: "main"}})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/assets/AAA/prices/asof")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportReportAttachment(t *testing.T) {
	ts := newTestServer(&stubService{book: model.Book{BookID: 1, Name: "main"}})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/report")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "main_2026-01-01.xlsx")
}
