package xslsxGenerator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/finance_simulator/internal/model"
	"github.com/KotFed0t/finance_simulator/utils"
	"github.com/xuri/excelize/v2"
)

const (
	PortfolioSheet = "Portfolio"
	HistorySheet   = "History"

	moneyFormat = `"$"#,##0.00`
)

type XSLSXGenerator struct{}

func New() *XSLSXGenerator {
	return &XSLSXGenerator{}
}

// Generate renders the report as a workbook with a Portfolio sheet and a History sheet.
func (g *XSLSXGenerator) Generate(ctx context.Context, report model.PortfolioReport) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XSLSXGenerator.Generate"

	if report.Username == "" {
		return nil, "", errors.New("empty report")
	}

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	styles, err := newStyles(f)
	if err != nil {
		return nil, "", err
	}

	if err = g.fillPortfolio(f, styles, report); err != nil {
		slog.Error("got error while filling portfolio sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	if err = g.fillHistory(f, styles, report.History); err != nil {
		slog.Error("got error while filling history sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	// default sheet
	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while Saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

type styles struct {
	title  int
	header int
	money  int
}

func newStyles(f *excelize.File) (styles, error) {
	title, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Font:      &excelize.Font{Bold: true, Size: 12},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#cfe2f3"}},
	})
	if err != nil {
		return styles{}, err
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#d9ead3"}},
	})
	if err != nil {
		return styles{}, err
	}

	money, err := f.NewStyle(&excelize.Style{CustomNumFmt: strPtr(moneyFormat)})
	if err != nil {
		return styles{}, err
	}

	return styles{title: title, header: header, money: money}, nil
}

func (g *XSLSXGenerator) fillPortfolio(f *excelize.File, st styles, report model.PortfolioReport) error {
	sheet := PortfolioSheet
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	if err := f.MergeCell(sheet, "A1", "E1"); err != nil {
		return err
	}
	_ = f.SetCellStr(sheet, "A1", fmt.Sprintf("Portfolio of %s", report.Username))
	if err := f.SetCellStyle(sheet, "A1", "A1", st.title); err != nil {
		return fmt.Errorf("apply title style: %w", err)
	}

	if err := writeHeader(f, sheet, 2, st.header, "Symbol", "Name", "Shares", "Price", "TOTAL"); err != nil {
		return err
	}

	row := 3
	for _, p := range report.Portfolio.Positions {
		_ = f.SetCellStr(sheet, cell("A", row), p.Symbol)
		_ = f.SetCellStr(sheet, cell("B", row), p.CompanyName)
		_ = f.SetCellInt(sheet, cell("C", row), p.Shares)
		_ = f.SetCellFloat(sheet, cell("D", row), p.LastPrice.InexactFloat64(), 2, 64)
		_ = f.SetCellFloat(sheet, cell("E", row), p.Value.InexactFloat64(), 2, 64)
		row++
	}

	_ = f.SetCellStr(sheet, cell("A", row), "CASH")
	_ = f.SetCellFloat(sheet, cell("E", row), report.Portfolio.Cash.InexactFloat64(), 2, 64)
	row++
	_ = f.SetCellStr(sheet, cell("A", row), "TOTAL")
	_ = f.SetCellFloat(sheet, cell("E", row), report.Portfolio.Total.InexactFloat64(), 2, 64)

	if err := f.SetCellStyle(sheet, "D3", cell("E", row), st.money); err != nil {
		return err
	}

	return f.SetColWidth(sheet, "B", "B", 30)
}

func (g *XSLSXGenerator) fillHistory(f *excelize.File, st styles, history []model.LedgerEntry) error {
	sheet := HistorySheet
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	if err := writeHeader(f, sheet, 1, st.header, "Symbol", "Name", "Side", "Shares", "Price", "Total", "Transacted"); err != nil {
		return err
	}

	row := 2
	for _, e := range history {
		_ = f.SetCellStr(sheet, cell("A", row), e.Symbol)
		_ = f.SetCellStr(sheet, cell("B", row), e.CompanyName)
		_ = f.SetCellStr(sheet, cell("C", row), string(e.Side))
		_ = f.SetCellInt(sheet, cell("D", row), e.Shares)
		_ = f.SetCellFloat(sheet, cell("E", row), e.Price.InexactFloat64(), 2, 64)
		_ = f.SetCellFloat(sheet, cell("F", row), e.Total.InexactFloat64(), 2, 64)
		_ = f.SetCellValue(sheet, cell("G", row), e.CreatedAt)
		row++
	}

	if row > 2 {
		if err := f.SetCellStyle(sheet, "E2", cell("F", row-1), st.money); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(sheet, "B", "B", 30); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "G", "G", 20)
}

func writeHeader(f *excelize.File, sheet string, row, style int, titles ...string) error {
	for i, title := range titles {
		name, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		_ = f.SetCellStr(sheet, name, title)
	}

	last, err := excelize.CoordinatesToCellName(len(titles), row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell("A", row), last, style)
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func strPtr(s string) *string {
	return &s
}
