package model

import (
	"context"
	"errors"
)

var (
	ErrAssetNotFound         = errors.New("asset not found")
	ErrAssetAuth             = errors.New("asset access denied")
	ErrAssetIDNotFound       = errors.New("could not parse asset id from cell formula")
	ErrRowSourceUnavailable  = errors.New("row source unavailable")
	ErrCheckpointUnavailable = errors.New("checkpoint unavailable")
)

// RowSource is a tabular store addressed by 1-based row and column numbers.
type RowSource interface {
	// ReadAllRows returns the rendered display value of every cell.
	ReadAllRows(ctx context.Context) ([][]string, error)
	// ReadCellFormula returns the raw (unrendered) content of one cell.
	ReadCellFormula(ctx context.Context, row, col int) (string, error)
	WriteCell(ctx context.Context, row, col int, text string) error
}

// AssetStore fetches audio by id. Implementations wrap ErrAssetNotFound and
// ErrAssetAuth where the backend makes the distinction.
type AssetStore interface {
	FetchBytes(ctx context.Context, assetID string) ([]byte, error)
}

// Notifier delivers the end of run summary. Delivery is best effort.
type Notifier interface {
	Send(ctx context.Context, subject, body string) error
}

type CheckpointStore interface {
	// Load returns the last processed row, or DefaultCheckpoint when none was saved.
	Load(ctx context.Context) (int, error)
	Save(ctx context.Context, row int) error
}

const DefaultCheckpoint = 1

// Checkpoint is the persisted progress document.
type Checkpoint struct {
	LastProcessedRow int `json:"last_processed_row"`
}
