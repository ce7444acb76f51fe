package xlsxGenerator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vportnov/assetbook/internal/model"
	"github.com/vportnov/assetbook/utils"
	"github.com/xuri/excelize/v2"
)

type XLSXGenerator struct{}

func New() *XLSXGenerator {
	return &XLSXGenerator{}
}

func (g *XLSXGenerator) Generate(ctx context.Context, report model.BookReport) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.Generate"

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err := g.fillHoldingsSheet(ctx, f, report.Summary); err != nil {
		return nil, "", err
	}

	if err := g.fillLedgerSheet(ctx, f, report.Ledger); err != nil {
		return nil, "", err
	}

	// drop the default sheet, only our own sheets should remain
	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func headerStyle(f *excelize.File, color string) (int, error) {
	return f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{color},
		},
	})
}

func (g *XLSXGenerator) fillHoldingsSheet(ctx context.Context, f *excelize.File, summary model.PortfolioSummary) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.fillHoldingsSheet"

	sheetName := "Holdings"
	_, err := f.NewSheet(sheetName)
	if err != nil {
		slog.Error("got error while creating NewSheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if err := f.MergeCell(sheetName, "A1", "J1"); err != nil {
		return err
	}

	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s (%s)", summary.BookName, summary.HomeCurrency))

	styleID, err := headerStyle(f, "#cfe2f3")
	if err != nil {
		return err
	}

	if err := f.SetCellStyle(sheetName, "A1", "A1", styleID); err != nil {
		return fmt.Errorf("applying style: %w", err)
	}

	_ = f.SetCellStr(sheetName, "A2", "symbol")
	_ = f.SetCellStr(sheetName, "B2", "name")
	_ = f.SetCellStr(sheetName, "C2", "class")
	_ = f.SetCellStr(sheetName, "D2", "platform")
	_ = f.SetCellStr(sheetName, "E2", "quantity")
	_ = f.SetCellStr(sheetName, "F2", "price")
	_ = f.SetCellStr(sheetName, "G2", "market value")
	_ = f.SetCellStr(sheetName, "H2", "cost basis")
	_ = f.SetCellStr(sheetName, "I2", "p&l")
	_ = f.SetCellStr(sheetName, "J2", "allocation %")

	for i, holding := range summary.Holdings {
		row := i + 3
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", row), holding.Symbol)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", row), holding.Name)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("C%d", row), string(holding.Class))
		_ = f.SetCellStr(sheetName, fmt.Sprintf("D%d", row), holding.Platform)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), holding.Quantity.InexactFloat64())

		if !holding.PriceKnown {
			_ = f.SetCellStr(sheetName, fmt.Sprintf("F%d", row), "unknown")
			continue
		}

		_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), holding.CurrentPrice.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), holding.MarketValue.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), holding.CostBasis.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), holding.PnLAbs.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("J%d", row), holding.AllocationPct.InexactFloat64())
	}

	totalsRow := len(summary.Holdings) + 4
	_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", totalsRow), "total")
	_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", totalsRow), summary.TotalValue.InexactFloat64())
	_ = f.SetCellValue(sheetName, fmt.Sprintf("I%d", totalsRow), summary.TotalPnL.InexactFloat64())

	warnRow := totalsRow + 2
	for _, warning := range summary.Warnings {
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", warnRow), warning.Symbol)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", warnRow), fmt.Sprintf("%s: %s", warning.Kind, warning.Detail))
		warnRow++
	}

	return nil
}

func (g *XLSXGenerator) fillLedgerSheet(ctx context.Context, f *excelize.File, ledger []model.LedgerLine) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XLSXGenerator.fillLedgerSheet"

	sheetName := "Ledger"
	_, err := f.NewSheet(sheetName)
	if err != nil {
		slog.Error("got error while creating NewSheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	if err := f.MergeCell(sheetName, "A1", "H1"); err != nil {
		return err
	}

	f.SetCellValue(sheetName, "A1", "Transactions")

	styleID, err := headerStyle(f, "#d9ead3")
	if err != nil {
		return err
	}

	if err := f.SetCellStyle(sheetName, "A1", "A1", styleID); err != nil {
		return fmt.Errorf("applying style: %w", err)
	}

	_ = f.SetCellStr(sheetName, "A2", "symbol")
	_ = f.SetCellStr(sheetName, "B2", "kind")
	_ = f.SetCellStr(sheetName, "C2", "quantity")
	_ = f.SetCellStr(sheetName, "D2", "price")
	_ = f.SetCellStr(sheetName, "E2", "fee")
	_ = f.SetCellStr(sheetName, "F2", "currency")
	_ = f.SetCellStr(sheetName, "G2", "note")
	_ = f.SetCellStr(sheetName, "H2", "date")

	for i, line := range ledger {
		row := i + 3
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", row), line.Symbol)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", row), string(line.Kind))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), line.Quantity.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), line.Price.InexactFloat64())
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), line.Fee.InexactFloat64())
		_ = f.SetCellStr(sheetName, fmt.Sprintf("F%d", row), line.Currency)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("G%d", row), line.Note)
		_ = f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), line.DtTrade)
	}

	return nil
}
