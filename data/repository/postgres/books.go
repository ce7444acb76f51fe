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

func (r *Postgres) CreateBook(ctx context.Context, name string) (bookID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.CreateBook"
	query := `INSERT INTO books(name) VALUES($1) RETURNING book_id`

	slog.Debug("CreateBook start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.String("name", name))
	defer func() {
		if err != nil {
			slog.Error("CreateBook failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("CreateBook completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(ctx, query, name).Scan(&bookID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23505" { // unique_violation
				return 0, repository.ErrAlreadyExists
			}
		}
		return 0, err
	}

	return bookID, nil
}

func (r *Postgres) GetBookByName(ctx context.Context, name string) (book model.Book, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetBookByName"
	query := `SELECT book_id, name, dt_create FROM books WHERE name = $1`

	slog.Debug("GetBookByName start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.String("name", name))
	defer func() {
		if err != nil {
			slog.Error("GetBookByName failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetBookByName completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbBook := dbModel.Book{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, name).StructScan(&dbBook)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, repository.ErrNotFound
		}
		return model.Book{}, err
	}

	return dbConverter.ConvertBook(dbBook), nil
}

func (r *Postgres) GetBook(ctx context.Context, bookID int64) (book model.Book, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetBook"
	query := `SELECT book_id, name, dt_create FROM books WHERE book_id = $1`

	slog.Debug("GetBook start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("bookID", bookID))
	defer func() {
		if err != nil {
			slog.Error("GetBook failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetBook completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbBook := dbModel.Book{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, bookID).StructScan(&dbBook)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, repository.ErrNotFound
		}
		return model.Book{}, err
	}

	return dbConverter.ConvertBook(dbBook), nil
}

func (r *Postgres) ListBooks(ctx context.Context) (books []model.Book, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.ListBooks"
	query := `SELECT book_id, name, dt_create FROM books ORDER BY name`

	slog.Debug("ListBooks start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("ListBooks failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("ListBooks completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var dbBook dbModel.Book
		err = rows.StructScan(&dbBook)
		if err != nil {
			return nil, err
		}
		books = append(books, dbConverter.ConvertBook(dbBook))
	}

	return books, nil
}

func (r *Postgres) DeleteBook(ctx context.Context, bookID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeleteBook"

	// cascades to assets, transactions, prices and watchlist
	query := `DELETE FROM books WHERE book_id = $1`

	slog.Debug("DeleteBook start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("bookID", bookID))
	defer func() {
		if err != nil {
			slog.Error("DeleteBook failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteBook completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, bookID)
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
