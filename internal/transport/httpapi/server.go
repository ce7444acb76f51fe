package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vportnov/assetbook/config"
)

type Server struct {
	server *http.Server
}

func NewServer(cfg *config.Config, controller *Controller) *Server {
	router := chi.NewRouter()

	router.Use(middleware.Recoverer)
	router.Use(requestIDMiddleware)
	router.Use(loggingMiddleware)

	router.Get("/health", controller.Health)

	router.Route("/api", func(r chi.Router) {
		r.Route("/books", func(r chi.Router) {
			r.Post("/", controller.CreateBook)
			r.Get("/", controller.ListBooks)
			r.Post("/open", controller.OpenBook)
			r.Get("/active", controller.ActiveBook)
			r.Delete("/{name}", controller.DeleteBook)
		})

		r.Route("/assets", func(r chi.Router) {
			r.Post("/", controller.AddAsset)
			r.Get("/", controller.ListAssets)
			r.Patch("/{symbol}", controller.UpdateAsset)
			r.Delete("/{symbol}", controller.DeleteAsset)

			r.Get("/{symbol}/position", controller.GetPosition)

			r.Post("/{symbol}/transactions", controller.RecordTransaction)
			r.Get("/{symbol}/transactions", controller.ListTransactions)

			r.Post("/{symbol}/prices", controller.AppendPrice)
			r.Get("/{symbol}/prices", controller.PriceHistory)
			r.Get("/{symbol}/prices/latest", controller.LatestPrice)
			r.Get("/{symbol}/prices/asof", controller.PriceAsOf)
		})

		r.Put("/transactions/{transactionID}", controller.ReplaceTransaction)
		r.Delete("/transactions/{transactionID}", controller.DeleteTransaction)

		r.Get("/portfolio", controller.GetPortfolio)

		r.Route("/watchlist", func(r chi.Router) {
			r.Post("/", controller.AddToWatchlist)
			r.Get("/", controller.GetWatchlist)
			r.Delete("/{symbol}", controller.RemoveFromWatchlist)
		})

		r.Post("/prices/refresh", controller.RefreshPrices)
		r.Post("/fx/refresh", controller.RefreshFxRates)

		r.Get("/report", controller.ExportReport)
	})

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler:      router,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
	}
}

func (s *Server) Start() error {
	slog.Info("starting http server", slog.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
