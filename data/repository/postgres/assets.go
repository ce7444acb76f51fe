package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vportnov/assetbook/data/repository"
	"github.com/vportnov/assetbook/internal/converter/dbConverter"
	"github.com/vportnov/assetbook/internal/model"
	"github.com/vportnov/assetbook/internal/model/dbModel"
	"github.com/vportnov/assetbook/utils"
)

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *Postgres) InsertAsset(ctx context.Context, asset model.Asset) (assetID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertAsset"
	query := `
		INSERT INTO assets(book_id, symbol, name, asset_class, platform, currency)
		VALUES($1, $2, $3, $4, $5, $6)
		RETURNING asset_id
		`

	slog.Debug("InsertAsset start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.String("symbol", asset.Symbol))
	defer func() {
		if err != nil {
			slog.Error("InsertAsset failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertAsset completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(
		ctx,
		query,
		asset.BookID,
		asset.Symbol,
		asset.Name,
		string(asset.Class),
		nullString(asset.Platform),
		asset.Currency,
	).Scan(&assetID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return 0, repository.ErrAlreadyExists
			}
		}
		return 0, err
	}

	return assetID, nil
}

func (r *Postgres) GetAsset(ctx context.Context, bookID int64, symbol string) (asset model.Asset, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetAsset"
	query := `
		SELECT asset_id, book_id, symbol, name, asset_class, platform, currency, dt_create
		FROM assets
		WHERE book_id = $1
		AND symbol = $2
		`

	slog.Debug("GetAsset start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.String("symbol", symbol))
	defer func() {
		if err != nil {
			slog.Error("GetAsset failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetAsset completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbAsset := dbModel.Asset{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, bookID, symbol).StructScan(&dbAsset)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Asset{}, repository.ErrNotFound
		}
		return model.Asset{}, err
	}

	return dbConverter.ConvertAsset(dbAsset), nil
}

func (r *Postgres) GetAssetByID(ctx context.Context, assetID int64) (asset model.Asset, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetAssetByID"
	query := `
		SELECT asset_id, book_id, symbol, name, asset_class, platform, currency, dt_create
		FROM assets
		WHERE asset_id = $1
		`

	slog.Debug("GetAssetByID start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("assetID", assetID))
	defer func() {
		if err != nil {
			slog.Error("GetAssetByID failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetAssetByID completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbAsset := dbModel.Asset{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, assetID).StructScan(&dbAsset)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Asset{}, repository.ErrNotFound
		}
		return model.Asset{}, err
	}

	return dbConverter.ConvertAsset(dbAsset), nil
}

func (r *Postgres) GetAssets(ctx context.Context, bookID int64) (assets []model.Asset, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetAssets"
	query := `
		SELECT asset_id, book_id, symbol, name, asset_class, platform, currency, dt_create
		FROM assets
		WHERE book_id = $1
		ORDER BY symbol
		`

	slog.Debug("GetAssets start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("bookID", bookID))
	defer func() {
		if err != nil {
			slog.Error("GetAssets failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetAssets completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, bookID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var dbAsset dbModel.Asset
		err = rows.StructScan(&dbAsset)
		if err != nil {
			return nil, err
		}
		assets = append(assets, dbConverter.ConvertAsset(dbAsset))
	}

	return assets, nil
}

func (r *Postgres) UpdateAsset(ctx context.Context, bookID int64, symbol string, name *string, platform *string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdateAsset"
	params := map[string]any{
		"bookID": bookID,
		"symbol": symbol,
	}

	// identity (symbol, class, currency) is immutable, only display fields change
	query := `
		UPDATE assets
		SET
			name = COALESCE($1, name),
			platform = COALESCE($2, platform)
		WHERE
			book_id = $3
			AND symbol = $4
		`

	slog.Debug("UpdateAsset start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("UpdateAsset failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateAsset completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, name, platform, bookID, symbol)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *Postgres) DeleteAsset(ctx context.Context, bookID int64, symbol string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeleteAsset"
	params := map[string]any{
		"bookID": bookID,
		"symbol": symbol,
	}

	// cascades to transactions, price observations and watchlist rows
	query := `
		DELETE FROM assets
		WHERE
			book_id = $1
			AND symbol = $2
		`

	slog.Debug("DeleteAsset start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("DeleteAsset failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteAsset completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, bookID, symbol)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}
