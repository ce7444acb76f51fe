package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vportnov/assetbook/config"
	"github.com/vportnov/assetbook/data"
	"github.com/vportnov/assetbook/data/cache"
	"github.com/vportnov/assetbook/data/repository/postgres"
	"github.com/vportnov/assetbook/data/session"
	"github.com/vportnov/assetbook/internal/externalApi/cloudStorageApi/googleDriveApi"
	"github.com/vportnov/assetbook/internal/externalApi/fxApi"
	"github.com/vportnov/assetbook/internal/externalApi/quotes/coingeckoApi"
	"github.com/vportnov/assetbook/internal/externalApi/quotes/yahooApi"
	"github.com/vportnov/assetbook/internal/model"
	"github.com/vportnov/assetbook/internal/reportGenerator/xlsxGenerator"
	"github.com/vportnov/assetbook/internal/scheduler"
	"github.com/vportnov/assetbook/internal/service"
	"github.com/vportnov/assetbook/internal/service/portfolioService"
	"github.com/vportnov/assetbook/internal/transport/httpapi"
)

func main() {
	cfg := config.MustLoad()

	setupLogger(cfg)

	slog.Debug("config", slog.Any("cfg", cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgClient := data.NewPostgresClient(cfg)
	defer pgClient.Close()

	pgRepo := postgres.NewPostgres(cfg, pgClient)

	redisClient := data.NewRedisClient(cfg)
	defer redisClient.Close()

	redisCache := cache.NewRedisCache(redisClient, cfg)
	redisSession := session.NewRedisSession(redisClient, cfg)

	yahooApiClient := yahooApi.New(cfg)
	coingeckoApiClient := coingeckoApi.New(cfg)
	fxApiClient := fxApi.New(cfg)

	// coingecko quotes crypto, yahoo covers everything exchange traded
	quoteApis := map[model.AssetClass]portfolioService.QuoteApi{
		model.AssetClassStock:     yahooApiClient,
		model.AssetClassETF:       yahooApiClient,
		model.AssetClassBond:      yahooApiClient,
		model.AssetClassCommodity: yahooApiClient,
		model.AssetClassCrypto:    coingeckoApiClient,
	}

	reportGenerator := xlsxGenerator.New()

	var cloudStorage portfolioService.CloudStorage
	var googleDrive *googleDriveApi.GoogleDriveApi
	if cfg.GoogleDrive.Enabled {
		googleDrive = googleDriveApi.New(ctx, cfg)
		cloudStorage = googleDrive
	}

	portfolioSrv := portfolioService.New(cfg, pgRepo, redisCache, redisSession, quoteApis, fxApiClient, reportGenerator, cloudStorage)

	bootstrapDefaultBook(ctx, cfg, portfolioSrv)

	sched := scheduler.New()
	sched.NewIntervalJob("refresh fx rates", portfolioSrv.RefreshFxRates, cfg.Jobs.RefreshFxRatesInterval, true)
	sched.NewIntervalJob("refresh prices", portfolioSrv.RefreshActiveBookPrices, cfg.Jobs.RefreshPricesInterval, true)
	if googleDrive != nil {
		sched.NewIntervalJob("drive cleanup", googleDrive.DeleteOldFiles, cfg.Jobs.DriveCleanupInterval, false)
	}
	sched.Start()
	defer sched.Stop()

	controller := httpapi.NewController(portfolioSrv)
	server := httpapi.NewServer(cfg, controller)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server stopped", slog.String("err", err.Error()))
			cancel()
		}
	}()

	// Waiting interruption signal
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case <-interrupt:
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown failed", slog.String("err", err.Error()))
	}
}

// bootstrapDefaultBook makes sure a fresh install has a usable book.
func bootstrapDefaultBook(ctx context.Context, cfg *config.Config, srv *portfolioService.PortfolioService) {
	if cfg.DefaultBook == "" {
		return
	}

	books, err := srv.ListBooks(ctx)
	if err != nil {
		slog.Error("listing books on startup failed", slog.String("err", err.Error()))
		return
	}

	if len(books) > 0 {
		return
	}

	if _, err := srv.CreateBook(ctx, cfg.DefaultBook); err != nil && !errors.Is(err, service.ErrAlreadyExists) {
		slog.Error("creating default book failed", slog.String("err", err.Error()))
	}
}

func setupLogger(cfg *config.Config) {
	var logLevel slog.Level

	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warning":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)
}
