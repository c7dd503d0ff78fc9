package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nephrolytics-ai/sheetscribe/pkg/model"
)

type cellKey struct {
	row int
	col int
}

type fakeSource struct {
	rows        [][]string
	formulas    map[cellKey]string
	readErr     error
	formulaErrs map[cellKey]error
	writeErrs   map[cellKey]error
	writes      []cellWrite
	formulaHits int
}

type cellWrite struct {
	row  int
	col  int
	text string
}

func newFakeSource(rows [][]string) *fakeSource {
	return &fakeSource{
		rows:        rows,
		formulas:    map[cellKey]string{},
		formulaErrs: map[cellKey]error{},
		writeErrs:   map[cellKey]error{},
	}
}

func (f *fakeSource) link(row, col int, assetID string) {
	f.formulas[cellKey{row, col}] = fmt.Sprintf(`=HYPERLINK("https://drive.google.com/file/d/%s/view","Audio")`, assetID)
	f.set(row, col, "Audio")
}

func (f *fakeSource) set(row, col int, value string) {
	for len(f.rows) < row {
		f.rows = append(f.rows, nil)
	}
	for len(f.rows[row-1]) < col {
		f.rows[row-1] = append(f.rows[row-1], "")
	}
	f.rows[row-1][col-1] = value
}

func (f *fakeSource) ReadAllRows(context.Context) ([][]string, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	out := make([][]string, len(f.rows))
	for i, row := range f.rows {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

func (f *fakeSource) ReadCellFormula(_ context.Context, row, col int) (string, error) {
	f.formulaHits++
	if err := f.formulaErrs[cellKey{row, col}]; err != nil {
		return "", err
	}
	if formula, ok := f.formulas[cellKey{row, col}]; ok {
		return formula, nil
	}
	return displayValue(f.rows, row, col), nil
}

func (f *fakeSource) WriteCell(_ context.Context, row, col int, text string) error {
	if err := f.writeErrs[cellKey{row, col}]; err != nil {
		return err
	}
	f.writes = append(f.writes, cellWrite{row: row, col: col, text: text})
	f.set(row, col, text)
	return nil
}

type fakeAssets struct {
	files   map[string][]byte
	fetched []string
}

func (f *fakeAssets) FetchBytes(_ context.Context, assetID string) ([]byte, error) {
	f.fetched = append(f.fetched, assetID)
	data, ok := f.files[assetID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrAssetNotFound, assetID)
	}
	return data, nil
}

type fakeTranscriber struct {
	failOn    map[string]error
	calls     int
	filenames []string
	// beforeCall runs first on every call; a non-nil error is returned as is.
	beforeCall func(audio []byte) error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio []byte, filename string) (string, model.GenerationMetadata, error) {
	f.calls++
	f.filenames = append(f.filenames, filename)
	if f.beforeCall != nil {
		if err := f.beforeCall(audio); err != nil {
			return "", nil, err
		}
	}
	if err := f.failOn[string(audio)]; err != nil {
		return "", nil, err
	}
	return "text of " + string(audio), model.GenerationMetadata{model.MetadataKeyProvider: "fake"}, nil
}

type sentMessage struct {
	subject string
	body    string
}

type fakeNotifier struct {
	sent    []sentMessage
	ctxErrs []error
	err     error
}

func (f *fakeNotifier) Send(ctx context.Context, subject, body string) error {
	f.sent = append(f.sent, sentMessage{subject: subject, body: body})
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	return f.err
}

type fakeCheckpoints struct {
	row     int
	loadErr error
	saveErr error
	saves   []int
}

func newFakeCheckpoints() *fakeCheckpoints {
	return &fakeCheckpoints{row: model.DefaultCheckpoint}
}

func (f *fakeCheckpoints) Load(context.Context) (int, error) {
	if f.loadErr != nil {
		return 0, f.loadErr
	}
	return f.row, nil
}

func (f *fakeCheckpoints) Save(_ context.Context, row int) error {
	f.saves = append(f.saves, row)
	if f.saveErr != nil {
		return f.saveErr
	}
	f.row = row
	return nil
}

var errBoom = errors.New("boom")
