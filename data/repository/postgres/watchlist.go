package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vportnov/assetbook/data/repository"
	"github.com/vportnov/assetbook/internal/converter/dbConverter"
	"github.com/vportnov/assetbook/internal/model"
	"github.com/vportnov/assetbook/internal/model/dbModel"
	"github.com/vportnov/assetbook/utils"
)

func (r *Postgres) InsertWatchlistEntry(ctx context.Context, bookID, assetID int64, note string) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertWatchlistEntry"
	query := `INSERT INTO watchlist(book_id, asset_id, note) VALUES($1, $2, $3)`

	slog.Debug("InsertWatchlistEntry start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("assetID", assetID))
	defer func() {
		if err != nil {
			slog.Error("InsertWatchlistEntry failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertWatchlistEntry completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, bookID, assetID, nullString(note))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return repository.ErrAlreadyExists
			}
		}
		return err
	}

	return nil
}

func (r *Postgres) DeleteWatchlistEntry(ctx context.Context, bookID, assetID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeleteWatchlistEntry"
	query := `
		DELETE FROM watchlist
		WHERE
			book_id = $1
			AND asset_id = $2
		`

	slog.Debug("DeleteWatchlistEntry start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("assetID", assetID))
	defer func() {
		if err != nil {
			slog.Error("DeleteWatchlistEntry failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteWatchlistEntry completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, bookID, assetID)
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

func (r *Postgres) GetWatchlist(ctx context.Context, bookID int64) (entries []model.WatchlistEntry, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetWatchlist"
	query := `
		SELECT w.book_id, w.asset_id, a.symbol, a.name, a.asset_class, a.currency, w.note, w.dt_create
		FROM watchlist w
		JOIN assets a USING(asset_id)
		WHERE w.book_id = $1
		ORDER BY a.symbol
		`

	slog.Debug("GetWatchlist start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("bookID", bookID))
	defer func() {
		if err != nil {
			slog.Error("GetWatchlist failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetWatchlist completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, bookID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var dbEntry dbModel.WatchlistEntry
		err = rows.StructScan(&dbEntry)
		if err != nil {
			return nil, err
		}
		entries = append(entries, dbConverter.ConvertWatchlistEntry(dbEntry))
	}

	return entries, nil
}
