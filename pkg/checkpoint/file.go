// Package checkpoint persists the last fully processed row between runs.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Nephrolytics-ai/sheetscribe/pkg/model"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/utils"
)

// FileStore keeps the checkpoint as a small JSON document on local disk.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, utils.WrapIfNotNil(errors.New("checkpoint path is required"))
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) (int, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return model.DefaultCheckpoint, nil
	}
	if err != nil {
		return 0, utils.WrapIfNotNil(err)
	}
	row, err := decode(data)
	if err != nil {
		return 0, utils.WrapIfNotNil(err, s.path)
	}
	return row, nil
}

// Save replaces the checkpoint atomically so a crash never leaves a torn file.
func (s *FileStore) Save(_ context.Context, row int) error {
	data, err := encode(row)
	if err != nil {
		return utils.WrapIfNotNil(err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return utils.WrapIfNotNil(err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return utils.WrapIfNotNil(err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return utils.WrapIfNotNil(err)
	}
	if err := tmp.Close(); err != nil {
		return utils.WrapIfNotNil(err)
	}
	return utils.WrapIfNotNil(os.Rename(tmpName, s.path))
}

func encode(row int) ([]byte, error) {
	if row < 0 {
		return nil, fmt.Errorf("checkpoint row must not be negative, got %d", row)
	}
	return json.Marshal(model.Checkpoint{LastProcessedRow: row})
}

func decode(data []byte) (int, error) {
	var cp struct {
		LastProcessedRow *int `json:"last_processed_row"`
	}
	if err := json.Unmarshal(data, &cp); err != nil {
		return 0, fmt.Errorf("decode checkpoint: %w", err)
	}
	if cp.LastProcessedRow == nil {
		return 0, errors.New("decode checkpoint: last_processed_row is missing")
	}
	if *cp.LastProcessedRow < 0 {
		return 0, fmt.Errorf("decode checkpoint: negative row %d", *cp.LastProcessedRow)
	}
	return *cp.LastProcessedRow, nil
}

var _ model.CheckpointStore = (*FileStore)(nil)
