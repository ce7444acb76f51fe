package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/vportnov/assetbook/internal/model"
	"github.com/vportnov/assetbook/internal/service"
	"github.com/vportnov/assetbook/utils"
)

type PortfolioService interface {
	CreateBook(ctx context.Context, name string) (model.Book, error)
	OpenBook(ctx context.Context, name string) (model.Book, error)
	ActiveBook(ctx context.Context) (model.Book, error)
	GetBookByName(ctx context.Context, name string) (model.Book, error)
	ListBooks(ctx context.Context) ([]model.Book, error)
	DeleteBook(ctx context.Context, name string) error

	AddAsset(ctx context.Context, bookID int64, asset model.Asset) (model.Asset, error)
	GetAssets(ctx context.Context, bookID int64) ([]model.Asset, error)
	UpdateAsset(ctx context.Context, bookID int64, symbol string, name *string, platform *string) error
	DeleteAsset(ctx context.Context, bookID int64, symbol string) error

	RecordTransaction(ctx context.Context, bookID int64, symbol string, tx model.Transaction) (int64, error)
	ReplaceTransaction(ctx context.Context, bookID, transactionID int64, tx model.Transaction) (int64, error)
	DeleteTransaction(ctx context.Context, bookID, transactionID int64) error
	ListTransactions(ctx context.Context, bookID int64, symbol string) ([]model.Transaction, error)
	GetPosition(ctx context.Context, bookID int64, symbol string) (model.Position, error)

	AppendPrice(ctx context.Context, bookID int64, symbol string, obs model.PriceObservation) (int64, error)
	LatestPrice(ctx context.Context, bookID int64, symbol string) (model.PriceObservation, error)
	PriceAsOf(ctx context.Context, bookID int64, symbol string, ts time.Time) (model.PriceObservation, error)
	PriceHistory(ctx context.Context, bookID int64, symbol string, from, to time.Time) ([]model.PriceObservation, error)

	GetPortfolioSummary(ctx context.Context, bookID int64) (model.PortfolioSummary, error)

	AddToWatchlist(ctx context.Context, bookID int64, symbol, note string) error
	RemoveFromWatchlist(ctx context.Context, bookID int64, symbol string) error
	GetWatchlist(ctx context.Context, bookID int64) ([]model.WatchlistEntry, error)

	RefreshBookPrices(ctx context.Context, bookID int64) error
	RefreshFxRates(ctx context.Context) error

	ExportReport(ctx context.Context, bookID int64) (fileBytes []byte, filename string, downloadLink string, err error)
}

type Controller struct {
	service PortfolioService
}

func NewController(service PortfolioService) *Controller {
	return &Controller{service: service}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response failed", slog.String("err", err.Error()))
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	switch {
	case errors.Is(err, service.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, service.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "already exists"})
	case errors.Is(err, service.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		slog.Error("request failed", slog.String("rqID", rqID), slog.String("err", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decodeBody(r *http.Request, v any) error {
	defer io.Copy(io.Discard, r.Body)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", service.ErrValidation)
	}
	return nil
}

// resolveBookID picks the book the request targets: an explicit ?book=<name>
// wins, otherwise the active book from the session.
func (c *Controller) resolveBookID(r *http.Request) (int64, error) {
	if name := r.URL.Query().Get("book"); name != "" {
		book, err := c.service.GetBookByName(r.Context(), name)
		if err != nil {
			return 0, err
		}
		return book.BookID, nil
	}

	book, err := c.service.ActiveBook(r.Context())
	if err != nil {
		return 0, fmt.Errorf("no active book, create or open one first: %w", service.ErrValidation)
	}

	return book.BookID, nil
}

// ---- books ----

type bookRequest struct {
	Name string `json:"name"`
}

func (c *Controller) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	book, err := c.service.CreateBook(r.Context(), req.Name)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, book)
}

func (c *Controller) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := c.service.ListBooks(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, books)
}

func (c *Controller) OpenBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	book, err := c.service.OpenBook(r.Context(), req.Name)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, book)
}

func (c *Controller) ActiveBook(w http.ResponseWriter, r *http.Request) {
	book, err := c.service.ActiveBook(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, book)
}

func (c *Controller) DeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := c.service.DeleteBook(r.Context(), chi.URLParam(r, "name")); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ---- assets ----

type assetRequest struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Class    string `json:"class"`
	Platform string `json:"platform"`
	Currency string `json:"currency"`
}

func (c *Controller) AddAsset(w http.ResponseWriter, r *http.Request) {
	bookID, err := c.resolveBookID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	var req assetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	asset, err := c.service.AddAsset(r.Context(), bookID, model.Asset{
		Symbol:   req.Symbol,
		Name:     req.Name,
		Class:    model.AssetClass(req.Class),
		Platform: req.Platform,
		Currency: req.Currency,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, asset)
}

func (c *Controller) ListAssets(w http.ResponseWriter, r *http.Request) {
	bookID, err := c.resolveBookID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	assets, err := c.service.GetAssets(r.Context(), bookID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, assets)
}

type assetUpdateRequest struct {
	Name     *string `json:"name"`
	Platform *string `json:"platform"`
}

func (c *Controller) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	bookID, err := c.resolveBookID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	var req assetUpdateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	if err := c.service.UpdateAsset(r.Context(), bookID, chi.URLParam(r, "symbol"), req.Name, req.Platform); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	bookID, err := c.resolveBookID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	if err := c.service.DeleteAsset(r.Context(), bookID, chi.URLParam(r, "symbol")); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ---- ledger ----

type transactionRequest struct {
	Kind     string          `json:"kind"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Fee      decimal.Decimal `json:"fee"`
	Note     string          `json:"note"`
	DtTrade  time.Time       `json:"dt_trade"`
}

func (c *Controller) RecordTransaction(w http.ResponseWriter, r *http.Request) {
	bookID, err := c.resolveBookID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	transactionID, err := c.service.RecordTransaction(r.Context(), bookID, chi.URLParam(r, "symbol"), model.Transaction{
		Kind:     model.TransactionKind(req.Kind),
		Quantity: req.Quantity,
		Price:    req.Price,
		Fee:      req.Fee,
		Note:     req.Note,
		DtTrade:  req.DtTrade,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"transaction_id": transactionID})
}

func (c *Controller) ListTransactions(w http.ResponseWriter, r *http.Request) {
	bookID, err := c.resolveBookID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	transactions, err := c.service.ListTransactions(r.Context(), bookID, chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, transactions)
}

func (c *Controller) ReplaceTransaction(w http.ResponseWriter, r *http.Request) {
	bookID, err := c.resolveBookID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	transactionID, err := strconv.ParseInt(chi.URLParam(r, "transactionID"), 10, 64)
	if err != nil {
		writeError(r.Context(), w, fmt.Errorf("invalid transaction id: %w", service.ErrValidation))
		return
	}

	var req transactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	newID, err := c.service.ReplaceTransaction(r.Context(), bookID, transactionID, model.Transaction{
		Kind:     model.TransactionKind(req.Kind),
		Quantity: req.Quantity,
		Price:    req.Price,
		Fee:      req.Fee,
		Note:     req.Note,
		DtTrade:  req.DtTrade,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"transaction_id": newID})
}

func (c *Controller) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	bookID, err := c.resolveBookID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	transactionID, err := strconv.ParseInt(chi.URLParam(r, "transactionID"), 10, 64)
	if err != nil {
		writeError(r.Context(), w, fmt.Errorf("invalid transaction id: %w", service.ErrValidation))
		return
	}

	if err := c.service.DeleteTransaction(r.Context(), bookID, transactionID); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) GetPosition(w http.ResponseWriter, r *http.Request) {
	bookID, err := c.resolveBookID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	position, err := c.service.GetPosition(r.Context(), bookID, chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, position)
}

// ---- prices ----

type priceRequest struct {
	Price     decimal.Decimal `json:"price"`
	Currency  string          `json:"currency"`
	DtObserve time.Time       `json:"dt_observe"`
}

func (c *Controller) AppendPrice(w http.ResponseWriter, r *http.Request) {
	bookID, err := c.resolveBookID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	var req priceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	observationID, err := c.service.AppendPrice(r.Context(), bookID, chi.URLParam(r, "symbol"), model.PriceObservation{
		Price:      req.Price,
		Currency:   req.Currency,
		Provenance: model.ProvenanceManual,
		DtObserve:  req.DtObserve,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]int64{"observation_id": observationID})
}

func (c *Controller) LatestPrice(w http.ResponseWriter, r *http.Request) {
	bookID, err := c.resolveBookID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	obs, err := c.service.LatestPrice(r.Context(), bookID, chi.URLParam(r, "symbol"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, obs)
}

func (c *Controller) PriceAsOf(w http.ResponseWriter, r *http.Request) {
	bookID, err := c.resolveBookID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	ts, err := time.Parse(time.RFC3339, r.URL.Query().Get("ts"))
	if err != nil {
		writeError(r.Context(), w, fmt.Errorf("invalid ts, want RFC3339: %w", service.ErrValidation))
		return
	}

	obs, err := c.service.PriceAsOf(r.Context(), bookID, chi.URLParam(r, "symbol"), ts)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, obs)
}

func (c *Controller) PriceHistory(w http.ResponseWriter, r *http.Request) {
	bookID, err := c.resolveBookID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	from, err := time.Parse(time.RFC3339, r.URL.Query().Get("from"))
	if err != nil {
		writeError(r.Context(), w, fmt.Errorf("invalid from, want RFC3339: %w", service.ErrValidation))
		return
	}

	to := time.Now()
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(r.Context(), w, fmt.Errorf("invalid to, want RFC3339: %w", service.ErrValidation))
			return
		}
	}

	history, err := c.service.PriceHistory(r.Context(), bookID, chi.URLParam(r, "symbol"), from, to)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// ---- portfolio ----

func (c *Controller) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	bookID, err := c.resolveBookID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	summary, err := c.service.GetPortfolioSummary(r.Context(), bookID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// ---- watchlist ----

type watchlistRequest struct {
	Symbol string `json:"symbol"`
	Note   string `json:"note"`
}

func (c *Controller) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	bookID, err := c.resolveBookID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	var req watchlistRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	if err := c.service.AddToWatchlist(r.Context(), bookID, req.Symbol, req.Note); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (c *Controller) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	bookID, err := c.resolveBookID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	if err := c.service.RemoveFromWatchlist(r.Context(), bookID, chi.URLParam(r, "symbol")); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	bookID, err := c.resolveBookID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	entries, err := c.service.GetWatchlist(r.Context(), bookID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// ---- refresh & report ----

func (c *Controller) RefreshPrices(w http.ResponseWriter, r *http.Request) {
	bookID, err := c.resolveBookID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	if err := c.service.RefreshBookPrices(r.Context(), bookID); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) RefreshFxRates(w http.ResponseWriter, r *http.Request) {
	if err := c.service.RefreshFxRates(r.Context()); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) ExportReport(w http.ResponseWriter, r *http.Request) {
	bookID, err := c.resolveBookID(r)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	fileBytes, filename, downloadLink, err := c.service.ExportReport(r.Context(), bookID)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	if downloadLink != "" {
		writeJSON(w, http.StatusOK, map[string]string{"download_link": downloadLink})
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(fileBytes); err != nil {
		slog.Error("writing report response failed", slog.String("err", err.Error()))
	}
}

func (c *Controller) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
