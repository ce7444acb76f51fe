package postgres

import (
	"context"
	"log/slog"

	"github.com/vportnov/assetbook/data/repository"
	"github.com/vportnov/assetbook/internal/converter/dbConverter"
	"github.com/vportnov/assetbook/internal/model"
	"github.com/vportnov/assetbook/internal/model/dbModel"
	"github.com/vportnov/assetbook/utils"
)

func (r *Postgres) InsertTransaction(ctx context.Context, tx model.Transaction) (transactionID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertTransaction"
	query := `
		INSERT INTO transactions(asset_id, kind, quantity, price, fee, note, dt_trade)
		VALUES($1, $2, $3, $4, $5, $6, $7)
		RETURNING transaction_id
		`

	slog.Debug(
		"InsertTransaction start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.String("query", query),
		slog.Int64("assetID", tx.AssetID),
		slog.String("kind", string(tx.Kind)),
	)
	defer func() {
		if err != nil {
			slog.Error("InsertTransaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertTransaction completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowContext(
		ctx,
		query,
		tx.AssetID,
		string(tx.Kind),
		tx.Quantity,
		tx.Price,
		tx.Fee,
		nullString(tx.Note),
		tx.DtTrade,
	).Scan(&transactionID)
	if err != nil {
		return 0, err
	}

	return transactionID, nil
}

func (r *Postgres) DeleteTransaction(ctx context.Context, transactionID int64) (assetID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeleteTransaction"
	query := `DELETE FROM transactions WHERE transaction_id = $1 RETURNING asset_id`

	slog.Debug("DeleteTransaction start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("transactionID", transactionID))
	defer func() {
		if err != nil {
			slog.Error("DeleteTransaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeleteTransaction completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, transactionID)
	if err != nil {
		return 0, err
	}

	defer rows.Close()

	if !rows.Next() {
		return 0, repository.ErrNotFound
	}

	if err = rows.Scan(&assetID); err != nil {
		return 0, err
	}

	return assetID, nil
}

// GetTransactionsByAsset returns the asset's ledger ascending by trade time,
// ties broken by insertion order.
func (r *Postgres) GetTransactionsByAsset(ctx context.Context, assetID int64) (transactions []model.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetTransactionsByAsset"
	query := `
		SELECT transaction_id, asset_id, kind, quantity, price, fee, note, dt_trade, dt_create
		FROM transactions
		WHERE asset_id = $1
		ORDER BY dt_trade, transaction_id
		`

	slog.Debug("GetTransactionsByAsset start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("assetID", assetID))
	defer func() {
		if err != nil {
			slog.Error("GetTransactionsByAsset failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetTransactionsByAsset completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, assetID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	for rows.Next() {
		var dbTx dbModel.Transaction
		err = rows.StructScan(&dbTx)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, dbConverter.ConvertTransaction(dbTx))
	}

	return transactions, nil
}

// GetTransactionsByBook returns the whole book's ledger keyed by asset id,
// one query for valuation and report generation.
func (r *Postgres) GetTransactionsByBook(ctx context.Context, bookID int64) (transactionsByAsset map[int64][]model.Transaction, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetTransactionsByBook"
	query := `
		SELECT t.transaction_id, t.asset_id, t.kind, t.quantity, t.price, t.fee, t.note, t.dt_trade, t.dt_create
		FROM transactions t
		JOIN assets a USING(asset_id)
		WHERE a.book_id = $1
		ORDER BY t.dt_trade, t.transaction_id
		`

	slog.Debug("GetTransactionsByBook start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("bookID", bookID))
	defer func() {
		if err != nil {
			slog.Error("GetTransactionsByBook failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetTransactionsByBook completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, bookID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	transactionsByAsset = make(map[int64][]model.Transaction)
	for rows.Next() {
		var dbTx dbModel.Transaction
		err = rows.StructScan(&dbTx)
		if err != nil {
			return nil, err
		}
		tx := dbConverter.ConvertTransaction(dbTx)
		transactionsByAsset[tx.AssetID] = append(transactionsByAsset[tx.AssetID], tx)
	}

	return transactionsByAsset, nil
}
