// Package sheets provides row sources backed by Google Sheets and local xlsx
// workbooks. Rows and columns are 1-based throughout.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Nephrolytics-ai/sheetscribe/pkg/logging"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/model"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/utils"
	"github.com/xuri/excelize/v2"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	renderFormatted = "FORMATTED_VALUE"
	renderFormula   = "FORMULA"
	inputRaw        = "RAW"
)

// GoogleSource reads and writes one worksheet of a Google spreadsheet.
type GoogleSource struct {
	service       *gsheets.Service
	spreadsheetID string
	sheetName     string
}

func NewGoogleService(ctx context.Context, opts ...option.ClientOption) (*gsheets.Service, error) {
	service, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return service, nil
}

func NewGoogleSource(service *gsheets.Service, spreadsheetID, sheetName string) (*GoogleSource, error) {
	if service == nil {
		return nil, utils.WrapIfNotNil(errors.New("sheets service is required"))
	}
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, utils.WrapIfNotNil(errors.New("spreadsheet id is required"))
	}
	if strings.TrimSpace(sheetName) == "" {
		return nil, utils.WrapIfNotNil(errors.New("sheet name is required"))
	}
	return &GoogleSource{service: service, spreadsheetID: spreadsheetID, sheetName: sheetName}, nil
}

func (s *GoogleSource) ReadAllRows(ctx context.Context) ([][]string, error) {
	logging.NewLogger(ctx).Infof("sheets_read_all spreadsheet=%q sheet=%q", s.spreadsheetID, s.sheetName)

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, quoteSheetName(s.sheetName)).
		ValueRenderOption(renderFormatted).
		Context(ctx).
		Do()
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return toStringRows(resp.Values), nil
}

func (s *GoogleSource) ReadCellFormula(ctx context.Context, row, col int) (string, error) {
	rng, err := s.cellRange(row, col)
	if err != nil {
		return "", utils.WrapIfNotNil(err)
	}

	resp, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, rng).
		ValueRenderOption(renderFormula).
		Context(ctx).
		Do()
	if err != nil {
		return "", utils.WrapIfNotNil(err, rng)
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return "", nil
	}
	return cellString(resp.Values[0][0]), nil
}

// WriteCell stores text verbatim; RAW input keeps a transcript that happens to
// start with "=" from being parsed as a formula.
func (s *GoogleSource) WriteCell(ctx context.Context, row, col int, text string) error {
	rng, err := s.cellRange(row, col)
	if err != nil {
		return utils.WrapIfNotNil(err)
	}

	_, err = s.service.Spreadsheets.Values.Update(s.spreadsheetID, rng, &gsheets.ValueRange{
		Values: [][]interface{}{{text}},
	}).
		ValueInputOption(inputRaw).
		Context(ctx).
		Do()
	return utils.WrapIfNotNil(err, rng)
}

func (s *GoogleSource) cellRange(row, col int) (string, error) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return "", err
	}
	return quoteSheetName(s.sheetName) + "!" + cell, nil
}

func quoteSheetName(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func toStringRows(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, value := range row {
			cells[j] = cellString(value)
		}
		rows[i] = cells
	}
	return rows
}

func cellString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

var _ model.RowSource = (*GoogleSource)(nil)
