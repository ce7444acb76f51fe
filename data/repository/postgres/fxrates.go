package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vportnov/assetbook/internal/converter/dbConverter"
	"github.com/vportnov/assetbook/internal/model"
	"github.com/vportnov/assetbook/internal/model/dbModel"
	"github.com/vportnov/assetbook/utils"
)

// UpsertFxRates replaces the stored rates for the given pairs. The rate
// table is exogenous state owned by the fx refresh job.
func (r *Postgres) UpsertFxRates(ctx context.Context, rates []model.FxRate) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpsertFxRates"
	query := `
		INSERT INTO fx_rates(base, quote, rate, dt_update)
		SELECT u.base, u.quote, u.rate, u.dt_update
		FROM UNNEST($1::text[], $2::text[], $3::decimal[], $4::timestamptz[]) AS u(base, quote, rate, dt_update)
		ON CONFLICT (base, quote) DO UPDATE
		SET rate = EXCLUDED.rate, dt_update = EXCLUDED.dt_update
		`

	bases := make([]string, 0, len(rates))
	quotes := make([]string, 0, len(rates))
	values := make([]decimal.Decimal, 0, len(rates))
	updates := make([]time.Time, 0, len(rates))

	for _, rate := range rates {
		bases = append(bases, rate.Base)
		quotes = append(quotes, rate.Quote)
		values = append(values, rate.Rate)
		updates = append(updates, rate.DtUpdate)
	}

	slog.Debug("UpsertFxRates start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int("rates", len(rates)))
	defer func() {
		if err != nil {
			slog.Error("UpsertFxRates failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpsertFxRates completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, bases, quotes, values, updates)
	if err != nil {
		return err
	}

	return nil
}

func (r *Postgres) GetFxRates(ctx context.Context) (rates []model.FxRate, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetFxRates"
	query := `SELECT base, quote, rate, dt_update FROM fx_rates`

	slog.Debug("GetFxRates start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetFxRates failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetFxRates completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var dbRate dbModel.FxRate
		err = rows.StructScan(&dbRate)
		if err != nil {
			return nil, err
		}
		rates = append(rates, dbConverter.ConvertFxRate(dbRate))
	}

	return rates, nil
}
