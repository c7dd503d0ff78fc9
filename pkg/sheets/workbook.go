package sheets

import (
	"context"
	"errors"
	"strings"

	"github.com/Nephrolytics-ai/sheetscribe/pkg/logging"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/model"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/utils"
	"github.com/xuri/excelize/v2"
)

// WorkbookSource is a row source over a local xlsx file. Every write is saved
// to disk before WriteCell returns.
type WorkbookSource struct {
	file  *excelize.File
	sheet string
}

func OpenWorkbook(path, sheet string) (*WorkbookSource, error) {
	if strings.TrimSpace(path) == "" {
		return nil, utils.WrapIfNotNil(errors.New("workbook path is required"))
	}

	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, utils.WrapIfNotNil(err, path)
	}
	if strings.TrimSpace(sheet) == "" {
		sheet = file.GetSheetName(file.GetActiveSheetIndex())
	}
	index, err := file.GetSheetIndex(sheet)
	if err != nil || index < 0 {
		_ = file.Close()
		if err == nil {
			err = errors.New("worksheet " + sheet + " does not exist")
		}
		return nil, utils.WrapIfNotNil(err, path)
	}
	return &WorkbookSource{file: file, sheet: sheet}, nil
}

func (w *WorkbookSource) ReadAllRows(ctx context.Context) ([][]string, error) {
	logging.NewLogger(ctx).Infof("workbook_read_all path=%q sheet=%q", w.file.Path, w.sheet)

	rows, err := w.file.GetRows(w.sheet)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return rows, nil
}

func (w *WorkbookSource) ReadCellFormula(_ context.Context, row, col int) (string, error) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}
	formula, err := w.file.GetCellFormula(w.sheet, cell)
	if err != nil {
		return "", utils.WrapIfNotNil(err, cell)
	}
	if formula != "" {
		return formula, nil
	}
	// Plain cells have no formula; fall back to the stored value.
	value, err := w.file.GetCellValue(w.sheet, cell, excelize.Options{RawCellValue: true})
	if err != nil {
		return "", utils.WrapIfNotNil(err, cell)
	}
	return value, nil
}

func (w *WorkbookSource) WriteCell(_ context.Context, row, col int, text string) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return utils.WrapIfNotNil(err)
	}
	if err := w.file.SetCellStr(w.sheet, cell, text); err != nil {
		return utils.WrapIfNotNil(err, cell)
	}
	return utils.WrapIfNotNil(w.file.Save(), cell)
}

func (w *WorkbookSource) Close() error {
	return utils.WrapIfNotNil(w.file.Close())
}

var _ model.RowSource = (*WorkbookSource)(nil)
