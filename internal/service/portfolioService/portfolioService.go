package portfolioService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vportnov/assetbook/config"
	"github.com/vportnov/assetbook/data/repository"
	"github.com/vportnov/assetbook/internal/currency"
	"github.com/vportnov/assetbook/internal/externalApi"
	"github.com/vportnov/assetbook/internal/model"
	"github.com/vportnov/assetbook/internal/position"
	"github.com/vportnov/assetbook/internal/service"
	"github.com/vportnov/assetbook/utils"
)

type Repository interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error

	CreateBook(ctx context.Context, name string) (bookID int64, err error)
	GetBook(ctx context.Context, bookID int64) (model.Book, error)
	GetBookByName(ctx context.Context, name string) (model.Book, error)
	ListBooks(ctx context.Context) ([]model.Book, error)
	DeleteBook(ctx context.Context, bookID int64) error

	InsertAsset(ctx context.Context, asset model.Asset) (assetID int64, err error)
	GetAsset(ctx context.Context, bookID int64, symbol string) (model.Asset, error)
	GetAssetByID(ctx context.Context, assetID int64) (model.Asset, error)
	GetAssets(ctx context.Context, bookID int64) ([]model.Asset, error)
	UpdateAsset(ctx context.Context, bookID int64, symbol string, name *string, platform *string) error
	DeleteAsset(ctx context.Context, bookID int64, symbol string) error

	InsertTransaction(ctx context.Context, tx model.Transaction) (transactionID int64, err error)
	DeleteTransaction(ctx context.Context, transactionID int64) (assetID int64, err error)
	GetTransactionsByAsset(ctx context.Context, assetID int64) ([]model.Transaction, error)
	GetTransactionsByBook(ctx context.Context, bookID int64) (map[int64][]model.Transaction, error)

	InsertPriceObservation(ctx context.Context, obs model.PriceObservation) (observationID int64, err error)
	GetLatestPrice(ctx context.Context, assetID int64) (model.PriceObservation, error)
	GetLatestPricesByBook(ctx context.Context, bookID int64) (map[int64]model.PriceObservation, error)
	GetPriceAsOf(ctx context.Context, assetID int64, ts time.Time) (model.PriceObservation, error)
	GetPriceHistory(ctx context.Context, assetID int64, from, to time.Time) ([]model.PriceObservation, error)

	InsertWatchlistEntry(ctx context.Context, bookID, assetID int64, note string) error
	DeleteWatchlistEntry(ctx context.Context, bookID, assetID int64) error
	GetWatchlist(ctx context.Context, bookID int64) ([]model.WatchlistEntry, error)

	UpsertFxRates(ctx context.Context, rates []model.FxRate) error
	GetFxRates(ctx context.Context) ([]model.FxRate, error)
}

type Cache interface {
	GetQuote(ctx context.Context, class model.AssetClass, symbol string) (model.Quote, error)
	SetQuote(ctx context.Context, class model.AssetClass, quote model.Quote) error
	GetPortfolioSummary(ctx context.Context, bookID int64) (model.PortfolioSummary, error)
	SetPortfolioSummary(ctx context.Context, bookID int64, summary model.PortfolioSummary) error
	FlushBookCache(ctx context.Context, bookID int64) error
}

type Session interface {
	GetActiveBook(ctx context.Context) (bookID int64, err error)
	SetActiveBook(ctx context.Context, bookID int64) error
}

type QuoteApi interface {
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
}

type FxApi interface {
	GetRates(ctx context.Context, base string) ([]model.FxRate, error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, report model.BookReport) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
}

type PortfolioService struct {
	cfg             *config.Config
	repo            Repository
	cache           Cache
	session         Session
	quoteApis       map[model.AssetClass]QuoteApi
	fxApi           FxApi
	reportGenerator ReportGenerator
	cloudStorage    CloudStorage // nil when drive upload is disabled
}

func New(
	cfg *config.Config,
	repo Repository,
	cache Cache,
	session Session,
	quoteApis map[model.AssetClass]QuoteApi,
	fxApi FxApi,
	reportGenerator ReportGenerator,
	cloudStorage CloudStorage,
) *PortfolioService {
	return &PortfolioService{
		cfg:             cfg,
		repo:            repo,
		cache:           cache,
		session:         session,
		quoteApis:       quoteApis,
		fxApi:           fxApi,
		reportGenerator: reportGenerator,
		cloudStorage:    cloudStorage,
	}
}

// ---- books ----

func (s *PortfolioService) CreateBook(ctx context.Context, name string) (book model.Book, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.CreateBook"

	slog.Debug("CreateBook start", slog.String("rqID", rqID), slog.String("op", op), slog.String("name", name))
	defer func() {
		slog.Debug("CreateBook finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("name", name))
	}()

	name = strings.TrimSpace(name)
	if name == "" {
		return model.Book{}, fmt.Errorf("empty book name: %w", service.ErrValidation)
	}

	bookID, err := s.repo.CreateBook(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return model.Book{}, service.ErrAlreadyExists
		}
		slog.Error("got error from repo.CreateBook", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Book{}, err
	}

	// first book becomes the active one
	if _, sessionErr := s.session.GetActiveBook(ctx); sessionErr != nil {
		if err := s.session.SetActiveBook(ctx, bookID); err != nil {
			slog.Error("got error from session.SetActiveBook", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}

	return s.repo.GetBook(ctx, bookID)
}

// OpenBook makes the named book the active one. The swap is a single
// session write; reads already in flight drain against the book they
// resolved before the switch.
func (s *PortfolioService) OpenBook(ctx context.Context, name string) (book model.Book, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.OpenBook"

	slog.Debug("OpenBook start", slog.String("rqID", rqID), slog.String("op", op), slog.String("name", name))
	defer func() {
		slog.Debug("OpenBook finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("name", name))
	}()

	book, err = s.repo.GetBookByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Book{}, service.ErrNotFound
		}
		slog.Error("got error from repo.GetBookByName", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Book{}, err
	}

	err = s.session.SetActiveBook(ctx, book.BookID)
	if err != nil {
		slog.Error("got error from session.SetActiveBook", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Book{}, err
	}

	return book, nil
}

func (s *PortfolioService) ActiveBook(ctx context.Context) (book model.Book, err error) {
	bookID, err := s.session.GetActiveBook(ctx)
	if err != nil {
		return model.Book{}, service.ErrNotFound
	}

	book, err = s.repo.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Book{}, service.ErrNotFound
		}
		return model.Book{}, err
	}

	return book, nil
}

// GetBookByName resolves a book without touching the active-book session.
func (s *PortfolioService) GetBookByName(ctx context.Context, name string) (model.Book, error) {
	book, err := s.repo.GetBookByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Book{}, service.ErrNotFound
		}
		return model.Book{}, err
	}

	return book, nil
}

func (s *PortfolioService) ListBooks(ctx context.Context) ([]model.Book, error) {
	return s.repo.ListBooks(ctx)
}

func (s *PortfolioService) DeleteBook(ctx context.Context, name string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.DeleteBook"

	slog.Debug("DeleteBook start", slog.String("rqID", rqID), slog.String("op", op), slog.String("name", name))
	defer func() {
		slog.Debug("DeleteBook finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("name", name))
	}()

	book, err := s.repo.GetBookByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		return err
	}

	err = s.repo.DeleteBook(ctx, book.BookID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		return err
	}

	if flushErr := s.cache.FlushBookCache(ctx, book.BookID); flushErr != nil {
		slog.Error("got error from cache.FlushBookCache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", flushErr.Error()))
	}

	return nil
}

// ---- assets ----

func (s *PortfolioService) AddAsset(ctx context.Context, bookID int64, asset model.Asset) (created model.Asset, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.AddAsset"

	slog.Debug("AddAsset start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", asset.Symbol))
	defer func() {
		slog.Debug("AddAsset finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", asset.Symbol))
	}()

	asset.BookID = bookID
	asset.Symbol = strings.ToUpper(strings.TrimSpace(asset.Symbol))
	asset.Currency = strings.ToUpper(strings.TrimSpace(asset.Currency))

	if asset.Symbol == "" {
		return model.Asset{}, fmt.Errorf("empty symbol: %w", service.ErrValidation)
	}
	if asset.Name == "" {
		return model.Asset{}, fmt.Errorf("empty name: %w", service.ErrValidation)
	}
	if !asset.Class.Valid() {
		return model.Asset{}, fmt.Errorf("unknown asset class %q: %w", asset.Class, service.ErrValidation)
	}
	if asset.Currency == "" {
		return model.Asset{}, fmt.Errorf("empty currency: %w", service.ErrValidation)
	}

	_, err = s.repo.InsertAsset(ctx, asset)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return model.Asset{}, service.ErrAlreadyExists
		}
		slog.Error("got error from repo.InsertAsset", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Asset{}, err
	}

	created, err = s.repo.GetAsset(ctx, bookID, asset.Symbol)
	if err != nil {
		return model.Asset{}, err
	}

	// best effort first observation so the asset is valued right away
	go func(asset model.Asset) {
		if refreshErr := s.refreshAssetPrice(context.WithoutCancel(ctx), asset); refreshErr != nil {
			slog.Warn("initial price fetch failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", asset.Symbol), slog.String("err", refreshErr.Error()))
		}
	}(created)

	return created, nil
}

func (s *PortfolioService) GetAssets(ctx context.Context, bookID int64) ([]model.Asset, error) {
	return s.repo.GetAssets(ctx, bookID)
}

func (s *PortfolioService) UpdateAsset(ctx context.Context, bookID int64, symbol string, name *string, platform *string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.UpdateAsset"

	slog.Debug("UpdateAsset start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("UpdateAsset finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	err = s.repo.UpdateAsset(ctx, bookID, strings.ToUpper(symbol), name, platform)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		slog.Error("got error from repo.UpdateAsset", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if flushErr := s.cache.FlushBookCache(ctx, bookID); flushErr != nil {
		slog.Error("got error from cache.FlushBookCache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", flushErr.Error()))
	}

	return nil
}

// DeleteAsset removes the asset together with its transactions, price
// observations and watchlist rows (cascade, no orphans).
func (s *PortfolioService) DeleteAsset(ctx context.Context, bookID int64, symbol string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.DeleteAsset"

	slog.Debug("DeleteAsset start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("DeleteAsset finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	err = s.repo.DeleteAsset(ctx, bookID, strings.ToUpper(symbol))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		slog.Error("got error from repo.DeleteAsset", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if flushErr := s.cache.FlushBookCache(ctx, bookID); flushErr != nil {
		slog.Error("got error from cache.FlushBookCache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", flushErr.Error()))
	}

	return nil
}

// ---- ledger ----

func validateTransaction(tx model.Transaction) error {
	if !tx.Kind.Valid() {
		return fmt.Errorf("unknown transaction kind %q: %w", tx.Kind, service.ErrValidation)
	}
	if tx.Quantity.IsNegative() {
		return fmt.Errorf("negative quantity: %w", service.ErrValidation)
	}
	if tx.Price.IsNegative() {
		return fmt.Errorf("negative price: %w", service.ErrValidation)
	}
	if tx.Fee.IsNegative() {
		return fmt.Errorf("negative fee: %w", service.ErrValidation)
	}

	switch tx.Kind {
	case model.TransactionBuy, model.TransactionSell:
		if tx.Quantity.IsZero() {
			return fmt.Errorf("%s requires a positive quantity: %w", tx.Kind, service.ErrValidation)
		}
	case model.TransactionDividend, model.TransactionFee:
		if !tx.Quantity.IsZero() {
			return fmt.Errorf("%s must not carry a quantity: %w", tx.Kind, service.ErrValidation)
		}
	}

	// oversell is deliberately not rejected: the ledger records what
	// actually happened, the derived position flags it instead
	return nil
}

func (s *PortfolioService) RecordTransaction(ctx context.Context, bookID int64, symbol string, tx model.Transaction) (transactionID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.RecordTransaction"

	slog.Debug("RecordTransaction start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("kind", string(tx.Kind)))
	defer func() {
		slog.Debug("RecordTransaction finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	if err = validateTransaction(tx); err != nil {
		return 0, err
	}

	asset, err := s.repo.GetAsset(ctx, bookID, strings.ToUpper(symbol))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, service.ErrNotFound
		}
		return 0, err
	}

	tx.AssetID = asset.AssetID
	if tx.DtTrade.IsZero() {
		tx.DtTrade = time.Now()
	}

	transactionID, err = s.repo.InsertTransaction(ctx, tx)
	if err != nil {
		slog.Error("got error from repo.InsertTransaction", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, err
	}

	// synchronous flush: a reader right after this call must not get a
	// summary computed from the pre-mutation ledger
	if flushErr := s.cache.FlushBookCache(ctx, bookID); flushErr != nil {
		slog.Error("got error from cache.FlushBookCache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", flushErr.Error()))
	}

	return transactionID, nil
}

func (s *PortfolioService) DeleteTransaction(ctx context.Context, bookID, transactionID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.DeleteTransaction"

	slog.Debug("DeleteTransaction start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("transactionID", transactionID))
	defer func() {
		slog.Debug("DeleteTransaction finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("transactionID", transactionID))
	}()

	// the delete is scoped to the addressed book: a row owned by another
	// book reads as absent and the rollback keeps it in place
	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		assetID, err := s.repo.DeleteTransaction(ctx, transactionID)
		if err != nil {
			return err
		}

		asset, err := s.repo.GetAssetByID(ctx, assetID)
		if err != nil {
			return err
		}

		if asset.BookID != bookID {
			return repository.ErrNotFound
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		slog.Error("got error from repo.DeleteTransaction", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if flushErr := s.cache.FlushBookCache(ctx, bookID); flushErr != nil {
		slog.Error("got error from cache.FlushBookCache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", flushErr.Error()))
	}

	return nil
}

// ReplaceTransaction corrects a ledger row. Rows are immutable, so a
// correction is delete + recreate in one database transaction: no reader
// ever sees the ledger without either version of the row.
func (s *PortfolioService) ReplaceTransaction(ctx context.Context, bookID, transactionID int64, tx model.Transaction) (newTransactionID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.ReplaceTransaction"

	slog.Debug("ReplaceTransaction start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("transactionID", transactionID))
	defer func() {
		slog.Debug("ReplaceTransaction finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("transactionID", transactionID))
	}()

	if err = validateTransaction(tx); err != nil {
		return 0, err
	}

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		assetID, err := s.repo.DeleteTransaction(ctx, transactionID)
		if err != nil {
			return err
		}

		asset, err := s.repo.GetAssetByID(ctx, assetID)
		if err != nil {
			return err
		}

		// same scoping as DeleteTransaction: correcting through the
		// wrong book rolls the delete back
		if asset.BookID != bookID {
			return repository.ErrNotFound
		}

		tx.AssetID = assetID
		if tx.DtTrade.IsZero() {
			tx.DtTrade = time.Now()
		}

		newTransactionID, err = s.repo.InsertTransaction(ctx, tx)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, service.ErrNotFound
		}
		slog.Error("got error from repo.WithinTransaction", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, err
	}

	if flushErr := s.cache.FlushBookCache(ctx, bookID); flushErr != nil {
		slog.Error("got error from cache.FlushBookCache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", flushErr.Error()))
	}

	return newTransactionID, nil
}

func (s *PortfolioService) ListTransactions(ctx context.Context, bookID int64, symbol string) ([]model.Transaction, error) {
	asset, err := s.repo.GetAsset(ctx, bookID, strings.ToUpper(symbol))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, err
	}

	return s.repo.GetTransactionsByAsset(ctx, asset.AssetID)
}

// GetPosition derives the asset's current position from its ledger.
func (s *PortfolioService) GetPosition(ctx context.Context, bookID int64, symbol string) (model.Position, error) {
	transactions, err := s.ListTransactions(ctx, bookID, symbol)
	if err != nil {
		return model.Position{}, err
	}

	return position.Calculate(transactions), nil
}

// ---- price store ----

func (s *PortfolioService) AppendPrice(ctx context.Context, bookID int64, symbol string, obs model.PriceObservation) (observationID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.AppendPrice"

	slog.Debug("AppendPrice start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("AppendPrice finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	if obs.Price.IsNegative() {
		return 0, fmt.Errorf("negative price: %w", service.ErrValidation)
	}

	asset, err := s.repo.GetAsset(ctx, bookID, strings.ToUpper(symbol))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, service.ErrNotFound
		}
		return 0, err
	}

	obs.AssetID = asset.AssetID
	if obs.Currency == "" {
		obs.Currency = asset.Currency
	}
	obs.Currency = strings.ToUpper(obs.Currency)
	if obs.DtObserve.IsZero() {
		obs.DtObserve = time.Now()
	}

	observationID, err = s.repo.InsertPriceObservation(ctx, obs)
	if err != nil {
		slog.Error("got error from repo.InsertPriceObservation", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, err
	}

	if flushErr := s.cache.FlushBookCache(ctx, bookID); flushErr != nil {
		slog.Error("got error from cache.FlushBookCache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", flushErr.Error()))
	}

	return observationID, nil
}

func (s *PortfolioService) LatestPrice(ctx context.Context, bookID int64, symbol string) (model.PriceObservation, error) {
	asset, err := s.repo.GetAsset(ctx, bookID, strings.ToUpper(symbol))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.PriceObservation{}, service.ErrNotFound
		}
		return model.PriceObservation{}, err
	}

	obs, err := s.repo.GetLatestPrice(ctx, asset.AssetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.PriceObservation{}, service.ErrNotFound
		}
		return model.PriceObservation{}, err
	}

	return obs, nil
}

func (s *PortfolioService) PriceAsOf(ctx context.Context, bookID int64, symbol string, ts time.Time) (model.PriceObservation, error) {
	asset, err := s.repo.GetAsset(ctx, bookID, strings.ToUpper(symbol))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.PriceObservation{}, service.ErrNotFound
		}
		return model.PriceObservation{}, err
	}

	obs, err := s.repo.GetPriceAsOf(ctx, asset.AssetID, ts)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.PriceObservation{}, service.ErrNotFound
		}
		return model.PriceObservation{}, err
	}

	return obs, nil
}

func (s *PortfolioService) PriceHistory(ctx context.Context, bookID int64, symbol string, from, to time.Time) ([]model.PriceObservation, error) {
	asset, err := s.repo.GetAsset(ctx, bookID, strings.ToUpper(symbol))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, service.ErrNotFound
		}
		return nil, err
	}

	return s.repo.GetPriceHistory(ctx, asset.AssetID, from, to)
}

// ---- valuation ----

func (s *PortfolioService) loadRateTable(ctx context.Context) (currency.RateTable, error) {
	rates, err := s.repo.GetFxRates(ctx)
	if err != nil {
		return nil, err
	}

	table := currency.RateTable{}
	for _, rate := range rates {
		table.Set(rate.Base, rate.Quote, rate.Rate)
	}

	return table, nil
}

// GetPortfolioSummary values every held asset of the book in the home
// currency. Policy: the cost-basis leg of unrealized P&L is converted at the
// current FX rate, so the figure is recomputable from present state alone.
// Assets whose price or FX rate is missing are reported with PriceKnown
// false, excluded from the allocation denominator and totals, and flagged
// with a warning; known allocation percentages still sum to 100.
func (s *PortfolioService) GetPortfolioSummary(ctx context.Context, bookID int64) (summary model.PortfolioSummary, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.GetPortfolioSummary"

	slog.Debug("GetPortfolioSummary start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("bookID", bookID))
	defer func() {
		slog.Debug("GetPortfolioSummary finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("bookID", bookID))
	}()

	summary, err = s.cache.GetPortfolioSummary(ctx, bookID)
	if err == nil {
		return summary, nil
	}

	summary, err = s.computePortfolioSummary(ctx, bookID)
	if err != nil {
		return model.PortfolioSummary{}, err
	}

	go s.cache.SetPortfolioSummary(context.WithoutCancel(ctx), bookID, summary)

	return summary, nil
}

func (s *PortfolioService) computePortfolioSummary(ctx context.Context, bookID int64) (model.PortfolioSummary, error) {
	book, err := s.repo.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.PortfolioSummary{}, service.ErrNotFound
		}
		return model.PortfolioSummary{}, err
	}

	assets, err := s.repo.GetAssets(ctx, bookID)
	if err != nil {
		return model.PortfolioSummary{}, err
	}

	transactionsByAsset, err := s.repo.GetTransactionsByBook(ctx, bookID)
	if err != nil {
		return model.PortfolioSummary{}, err
	}

	pricesByAsset, err := s.repo.GetLatestPricesByBook(ctx, bookID)
	if err != nil {
		return model.PortfolioSummary{}, err
	}

	rateTable, err := s.loadRateTable(ctx)
	if err != nil {
		return model.PortfolioSummary{}, err
	}

	home := s.cfg.HomeCurrency
	summary := model.PortfolioSummary{
		BookName:      book.Name,
		HomeCurrency:  home,
		TotalValue:    decimal.Zero,
		TotalInvested: decimal.Zero,
		TotalPnL:      decimal.Zero,
	}

	for _, asset := range assets {
		transactions := transactionsByAsset[asset.AssetID]
		pos := position.Calculate(transactions)
		if pos.Quantity.IsZero() {
			continue
		}

		row := model.HoldingValuation{
			Symbol:        asset.Symbol,
			Name:          asset.Name,
			Class:         asset.Class,
			Platform:      asset.Platform,
			Quantity:      pos.Quantity,
			AvgCost:       pos.AvgCost(),
			QuoteCurrency: asset.Currency,
			Oversold:      pos.Oversold,
		}

		if pos.Oversold {
			summary.Warnings = append(summary.Warnings, model.Warning{
				Symbol: asset.Symbol,
				Kind:   model.WarningOversold,
				Detail: "sells exceed recorded buys, derived quantity is negative or understated",
			})
		}

		// one rate warning per missing pair, the price and cost-basis legs
		// can fail on the same currency
		warnedPairs := map[string]bool{}
		warnRate := func(from string) {
			if warnedPairs[from] {
				return
			}
			warnedPairs[from] = true
			summary.Warnings = append(summary.Warnings, model.Warning{
				Symbol: asset.Symbol,
				Kind:   model.WarningRateUnavailable,
				Detail: fmt.Sprintf("no %s->%s rate", from, home),
			})
		}

		// invested capital is computable from the ledger alone, so it
		// accumulates even when the current price is missing
		homeInvested, convErr := currency.Convert(position.TotalInvested(transactions), asset.Currency, home, rateTable)
		if convErr == nil {
			summary.TotalInvested = summary.TotalInvested.Add(homeInvested)
		} else {
			warnRate(asset.Currency)
		}

		obs, hasPrice := pricesByAsset[asset.AssetID]
		if !hasPrice {
			summary.Warnings = append(summary.Warnings, model.Warning{
				Symbol: asset.Symbol,
				Kind:   model.WarningPriceUnknown,
				Detail: "no price observation recorded",
			})
			summary.Holdings = append(summary.Holdings, row)
			continue
		}

		row.CurrentPrice = obs.Price
		row.PriceAsOf = obs.DtObserve

		homePrice, convErr := currency.Convert(obs.Price, obs.Currency, home, rateTable)
		if convErr != nil {
			warnRate(obs.Currency)
			summary.Holdings = append(summary.Holdings, row)
			continue
		}

		homeCostBasis, convErr := currency.Convert(pos.CostBasis, asset.Currency, home, rateTable)
		if convErr != nil {
			warnRate(asset.Currency)
			summary.Holdings = append(summary.Holdings, row)
			continue
		}

		row.PriceKnown = true
		row.MarketValue = pos.Quantity.Mul(homePrice)
		row.CostBasis = homeCostBasis
		row.PnLAbs = row.MarketValue.Sub(row.CostBasis)
		if row.CostBasis.IsPositive() {
			row.PnLPct = row.PnLAbs.Div(row.CostBasis).Mul(decimal.NewFromInt(100))
		}

		summary.TotalValue = summary.TotalValue.Add(row.MarketValue)
		summary.TotalPnL = summary.TotalPnL.Add(row.PnLAbs)
		summary.Holdings = append(summary.Holdings, row)
	}

	// allocation over known-price holdings only, so the shown percentages
	// always sum to 100
	if summary.TotalValue.IsPositive() {
		for i := range summary.Holdings {
			if summary.Holdings[i].PriceKnown {
				summary.Holdings[i].AllocationPct = summary.Holdings[i].MarketValue.Div(summary.TotalValue).Mul(decimal.NewFromInt(100))
			}
		}
	}

	summary.HoldingsCount = len(summary.Holdings)

	return summary, nil
}

// ---- watchlist ----

func (s *PortfolioService) AddToWatchlist(ctx context.Context, bookID int64, symbol, note string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.AddToWatchlist"

	slog.Debug("AddToWatchlist start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("AddToWatchlist finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	asset, err := s.repo.GetAsset(ctx, bookID, strings.ToUpper(symbol))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		return err
	}

	err = s.repo.InsertWatchlistEntry(ctx, bookID, asset.AssetID, note)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return service.ErrAlreadyExists
		}
		slog.Error("got error from repo.InsertWatchlistEntry", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

func (s *PortfolioService) RemoveFromWatchlist(ctx context.Context, bookID int64, symbol string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.RemoveFromWatchlist"

	slog.Debug("RemoveFromWatchlist start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("RemoveFromWatchlist finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	asset, err := s.repo.GetAsset(ctx, bookID, strings.ToUpper(symbol))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		return err
	}

	err = s.repo.DeleteWatchlistEntry(ctx, bookID, asset.AssetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return service.ErrNotFound
		}
		return err
	}

	return nil
}

// GetWatchlist returns tracked assets with their current price, home-currency
// price and day-over-day change. Watchlist entries never contribute to
// portfolio aggregates.
func (s *PortfolioService) GetWatchlist(ctx context.Context, bookID int64) (entries []model.WatchlistEntry, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.GetWatchlist"

	slog.Debug("GetWatchlist start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("bookID", bookID))
	defer func() {
		slog.Debug("GetWatchlist finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("bookID", bookID))
	}()

	entries, err = s.repo.GetWatchlist(ctx, bookID)
	if err != nil {
		return nil, err
	}

	rateTable, err := s.loadRateTable(ctx)
	if err != nil {
		return nil, err
	}

	dayAgo := time.Now().Add(-24 * time.Hour)

	for i := range entries {
		obs, priceErr := s.repo.GetLatestPrice(ctx, entries[i].AssetID)
		if priceErr != nil {
			continue
		}

		entries[i].CurrentPrice = obs.Price
		entries[i].QuoteCurrency = obs.Currency
		entries[i].PriceAsOf = obs.DtObserve
		entries[i].PriceKnown = true

		if homePrice, convErr := currency.Convert(obs.Price, obs.Currency, s.cfg.HomeCurrency, rateTable); convErr == nil {
			entries[i].HomePrice = homePrice
			entries[i].HomeKnown = true
		}

		prev, prevErr := s.repo.GetPriceAsOf(ctx, entries[i].AssetID, dayAgo)
		if prevErr == nil && prev.Price.IsPositive() {
			entries[i].DayChangePct = obs.Price.Sub(prev.Price).Div(prev.Price).Mul(decimal.NewFromInt(100))
			entries[i].DayChangeSet = true
		}
	}

	return entries, nil
}

// ---- price refresh ----

// refreshAssetPrice fetches one quote (cache first) and appends a fetched
// observation. Never called from a valuation read.
func (s *PortfolioService) refreshAssetPrice(ctx context.Context, asset model.Asset) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.refreshAssetPrice"

	quote, err := s.cache.GetQuote(ctx, asset.Class, asset.Symbol)
	if err != nil {
		api, ok := s.quoteApis[asset.Class]
		if !ok {
			return fmt.Errorf("no quote provider for asset class %q", asset.Class)
		}

		quote, err = api.GetQuote(ctx, asset.Symbol)
		if err != nil {
			if errors.Is(err, externalApi.ErrNotFound) {
				slog.Warn("symbol not found at quote provider", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", asset.Symbol))
				return service.ErrNotFound
			}
			return err
		}

		go s.cache.SetQuote(context.WithoutCancel(ctx), asset.Class, quote)
	}

	_, err = s.repo.InsertPriceObservation(ctx, model.PriceObservation{
		AssetID:    asset.AssetID,
		Price:      quote.Price,
		Currency:   quote.Currency,
		Provenance: model.ProvenanceFetched,
		DtObserve:  quote.AsOf,
	})
	if err != nil {
		return err
	}

	return nil
}

// RefreshBookPrices appends a fresh observation for every asset of the
// book. A failing asset is logged and skipped, the rest still refresh; its
// price store rows stay untouched (stale but valid).
func (s *PortfolioService) RefreshBookPrices(ctx context.Context, bookID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.RefreshBookPrices"

	slog.Debug("RefreshBookPrices start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("bookID", bookID))
	defer func() {
		slog.Debug("RefreshBookPrices finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("bookID", bookID))
	}()

	assets, err := s.repo.GetAssets(ctx, bookID)
	if err != nil {
		return err
	}

	failed := 0
	for _, asset := range assets {
		if refreshErr := s.refreshAssetPrice(ctx, asset); refreshErr != nil {
			failed++
			slog.Warn(
				"price refresh failed for asset",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.String("symbol", asset.Symbol),
				slog.String("err", refreshErr.Error()),
			)
		}
	}

	if flushErr := s.cache.FlushBookCache(ctx, bookID); flushErr != nil {
		slog.Error("got error from cache.FlushBookCache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", flushErr.Error()))
	}

	slog.Info("book prices refreshed", slog.String("rqID", rqID), slog.Int64("bookID", bookID), slog.Int("assets", len(assets)), slog.Int("failed", failed))

	return nil
}

// RefreshActiveBookPrices is the scheduler entry point. No active book is
// not an error, there is just nothing to refresh yet.
func (s *PortfolioService) RefreshActiveBookPrices(ctx context.Context) error {
	bookID, err := s.session.GetActiveBook(ctx)
	if err != nil {
		slog.Info("no active book, skipping price refresh")
		return nil
	}

	return s.RefreshBookPrices(ctx, bookID)
}

// RefreshFxRates replaces the rate table with fresh provider rates, both
// directions per pair so quote->home lookups need no triangulation.
func (s *PortfolioService) RefreshFxRates(ctx context.Context) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.RefreshFxRates"

	slog.Debug("RefreshFxRates start", slog.String("rqID", rqID), slog.String("op", op))
	defer func() {
		slog.Debug("RefreshFxRates finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	home := s.cfg.HomeCurrency
	rates, err := s.fxApi.GetRates(ctx, home)
	if err != nil {
		slog.Error("got error from fxApi.GetRates", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	one := decimal.NewFromInt(1)
	all := make([]model.FxRate, 0, 2*len(rates))
	for _, rate := range rates {
		if !rate.Rate.IsPositive() {
			continue
		}
		all = append(all, rate)
		all = append(all, model.FxRate{
			Base:     rate.Quote,
			Quote:    rate.Base,
			Rate:     one.Div(rate.Rate),
			DtUpdate: rate.DtUpdate,
		})
	}

	err = s.repo.UpsertFxRates(ctx, all)
	if err != nil {
		slog.Error("got error from repo.UpsertFxRates", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

// ---- report ----

func (s *PortfolioService) buildBookReport(ctx context.Context, bookID int64) (model.BookReport, error) {
	summary, err := s.computePortfolioSummary(ctx, bookID)
	if err != nil {
		return model.BookReport{}, err
	}

	assets, err := s.repo.GetAssets(ctx, bookID)
	if err != nil {
		return model.BookReport{}, err
	}

	transactionsByAsset, err := s.repo.GetTransactionsByBook(ctx, bookID)
	if err != nil {
		return model.BookReport{}, err
	}

	report := model.BookReport{
		BookName: summary.BookName,
		Summary:  summary,
	}

	for _, asset := range assets {
		for _, tx := range transactionsByAsset[asset.AssetID] {
			report.Ledger = append(report.Ledger, model.LedgerLine{
				Symbol:   asset.Symbol,
				Name:     asset.Name,
				Kind:     tx.Kind,
				Quantity: tx.Quantity,
				Price:    tx.Price,
				Fee:      tx.Fee,
				Currency: asset.Currency,
				Note:     tx.Note,
				DtTrade:  tx.DtTrade,
			})
		}
	}

	return report, nil
}

// ExportReport renders the book as an xlsx workbook and, when cloud storage
// is configured, uploads it and returns a share link.
func (s *PortfolioService) ExportReport(ctx context.Context, bookID int64) (fileBytes []byte, filename string, downloadLink string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PortfolioService.ExportReport"

	slog.Debug("ExportReport start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("bookID", bookID))
	defer func() {
		slog.Debug("ExportReport finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("bookID", bookID))
	}()

	report, err := s.buildBookReport(ctx, bookID)
	if err != nil {
		return nil, "", "", err
	}

	fileBytes, fileExtension, err := s.reportGenerator.Generate(ctx, report)
	if err != nil {
		slog.Error("got error from reportGenerator.Generate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", "", err
	}

	filename = fmt.Sprintf("%s_%s%s", report.BookName, time.Now().Format("2006-01-02"), fileExtension)

	if s.cloudStorage != nil {
		downloadLink, err = s.cloudStorage.UploadFile(ctx, bytes.NewReader(fileBytes), filename)
		if err != nil {
			slog.Error("got error from cloudStorage.UploadFile", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
			return nil, "", "", err
		}
	}

	return fileBytes, filename, downloadLink, nil
}
