package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/vportnov/assetbook/data/repository"
	"github.com/vportnov/assetbook/internal/converter/dbConverter"
	"github.com/vportnov/assetbook/internal/model"
	"github.com/vportnov/assetbook/internal/model/dbModel"
	"github.com/vportnov/assetbook/utils"
)

func (r *Postgres) InsertPriceObservation(ctx context.Context, obs model.PriceObservation) (observationID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertPriceObservation"
	query := `
		INSERT INTO price_observations(asset_id, price, currency, provenance, dt_observe)
		VALUES($1, $2, $3, $4, $5)
		RETURNING observation_id
		`

	slog.Debug(
		"InsertPriceObservation start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.String("query", query),
		slog.Int64("assetID", obs.AssetID),
	)
	defer func() {
		if err != nil {
			slog.Error("InsertPriceObservation failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertPriceObservation completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(
		ctx,
		query,
		obs.AssetID,
		obs.Price,
		obs.Currency,
		string(obs.Provenance),
		obs.DtObserve,
	).Scan(&observationID)
	if err != nil {
		return 0, err
	}

	return observationID, nil
}

func (r *Postgres) GetLatestPrice(ctx context.Context, assetID int64) (obs model.PriceObservation, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetLatestPrice"
	query := `
		SELECT observation_id, asset_id, price, currency, provenance, dt_observe, dt_create
		FROM price_observations
		WHERE asset_id = $1
		ORDER BY dt_observe DESC, observation_id DESC
		LIMIT 1
		`

	slog.Debug("GetLatestPrice start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("assetID", assetID))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("GetLatestPrice failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetLatestPrice completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbObs := dbModel.PriceObservation{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, assetID).StructScan(&dbObs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PriceObservation{}, repository.ErrNotFound
		}
		return model.PriceObservation{}, err
	}

	return dbConverter.ConvertPriceObservation(dbObs), nil
}

// GetLatestPricesByBook returns the max-timestamp observation per asset of a
// book in one query.
func (r *Postgres) GetLatestPricesByBook(ctx context.Context, bookID int64) (pricesByAsset map[int64]model.PriceObservation, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetLatestPricesByBook"
	query := `
		SELECT DISTINCT ON (p.asset_id)
			p.observation_id, p.asset_id, p.price, p.currency, p.provenance, p.dt_observe, p.dt_create
		FROM price_observations p
		JOIN assets a USING(asset_id)
		WHERE a.book_id = $1
		ORDER BY p.asset_id, p.dt_observe DESC, p.observation_id DESC
		`

	slog.Debug("GetLatestPricesByBook start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("bookID", bookID))
	defer func() {
		if err != nil {
			slog.Error("GetLatestPricesByBook failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetLatestPricesByBook completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, bookID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	pricesByAsset = make(map[int64]model.PriceObservation)
	for rows.Next() {
		var dbObs dbModel.PriceObservation
		err = rows.StructScan(&dbObs)
		if err != nil {
			return nil, err
		}
		obs := dbConverter.ConvertPriceObservation(dbObs)
		pricesByAsset[obs.AssetID] = obs
	}

	return pricesByAsset, nil
}

// GetPriceAsOf returns the latest observation at or before ts. No
// extrapolation: missing history is ErrNotFound.
func (r *Postgres) GetPriceAsOf(ctx context.Context, assetID int64, ts time.Time) (obs model.PriceObservation, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetPriceAsOf"
	query := `
		SELECT observation_id, asset_id, price, currency, provenance, dt_observe, dt_create
		FROM price_observations
		WHERE asset_id = $1
		AND dt_observe <= $2
		ORDER BY dt_observe DESC, observation_id DESC
		LIMIT 1
		`

	slog.Debug("GetPriceAsOf start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("assetID", assetID), slog.Time("ts", ts))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("GetPriceAsOf failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPriceAsOf completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbObs := dbModel.PriceObservation{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, assetID, ts).StructScan(&dbObs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PriceObservation{}, repository.ErrNotFound
		}
		return model.PriceObservation{}, err
	}

	return dbConverter.ConvertPriceObservation(dbObs), nil
}

func (r *Postgres) GetPriceHistory(ctx context.Context, assetID int64, from, to time.Time) (history []model.PriceObservation, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetPriceHistory"
	params := map[string]any{
		"assetID": assetID,
		"from":    from,
		"to":      to,
	}
	query := `
		SELECT observation_id, asset_id, price, currency, provenance, dt_observe, dt_create
		FROM price_observations
		WHERE asset_id = $1
		AND dt_observe >= $2
		AND dt_observe <= $3
		ORDER BY dt_observe, observation_id
		`

	slog.Debug("GetPriceHistory start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("GetPriceHistory failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPriceHistory completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, assetID, from, to)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var dbObs dbModel.PriceObservation
		err = rows.StructScan(&dbObs)
		if err != nil {
			return nil, err
		}
		history = append(history, dbConverter.ConvertPriceObservation(dbObs))
	}

	return history, nil
}
