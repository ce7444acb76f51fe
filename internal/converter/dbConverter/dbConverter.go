package dbConverter

import (
	"github.com/vportnov/assetbook/internal/model"
	"github.com/vportnov/assetbook/internal/model/dbModel"
)

func ConvertBook(dbBook dbModel.Book) model.Book {
	return model.Book{
		BookID:   dbBook.BookID,
		Name:     dbBook.Name,
		DtCreate: dbBook.DtCreate,
	}
}

func ConvertAsset(dbAsset dbModel.Asset) model.Asset {
	return model.Asset{
		AssetID:  dbAsset.AssetID,
		BookID:   dbAsset.BookID,
		Symbol:   dbAsset.Symbol,
		Name:     dbAsset.Name,
		Class:    model.AssetClass(dbAsset.Class),
		Platform: dbAsset.Platform.String,
		Currency: dbAsset.Currency,
		DtCreate: dbAsset.DtCreate,
	}
}

func ConvertTransaction(dbTx dbModel.Transaction) model.Transaction {
	return model.Transaction{
		TransactionID: dbTx.TransactionID,
		AssetID:       dbTx.AssetID,
		Kind:          model.TransactionKind(dbTx.Kind),
		Quantity:      dbTx.Quantity,
		Price:         dbTx.Price,
		Fee:           dbTx.Fee,
		Note:          dbTx.Note.String,
		DtTrade:       dbTx.DtTrade,
		DtCreate:      dbTx.DtCreate,
	}
}

func ConvertPriceObservation(dbObs dbModel.PriceObservation) model.PriceObservation {
	return model.PriceObservation{
		ObservationID: dbObs.ObservationID,
		AssetID:       dbObs.AssetID,
		Price:         dbObs.Price,
		Currency:      dbObs.Currency,
		Provenance:    model.Provenance(dbObs.Provenance),
		DtObserve:     dbObs.DtObserve,
		DtCreate:      dbObs.DtCreate,
	}
}

func ConvertWatchlistEntry(dbEntry dbModel.WatchlistEntry) model.WatchlistEntry {
	return model.WatchlistEntry{
		AssetID:       dbEntry.AssetID,
		Symbol:        dbEntry.Symbol,
		Name:          dbEntry.Name,
		Class:         model.AssetClass(dbEntry.Class),
		QuoteCurrency: dbEntry.Currency,
		Note:          dbEntry.Note.String,
		DtCreate:      dbEntry.DtCreate,
	}
}

func ConvertFxRate(dbRate dbModel.FxRate) model.FxRate {
	return model.FxRate{
		Base:     dbRate.Base,
		Quote:    dbRate.Quote,
		Rate:     dbRate.Rate,
		DtUpdate: dbRate.DtUpdate,
	}
}
