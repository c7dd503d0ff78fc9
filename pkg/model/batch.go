package model

import (
	"fmt"
	"time"
)

// ColumnPair maps a column holding an audio link to the column that receives
// its transcript. Both are 1-based.
type ColumnPair struct {
	Source int
	Target int
}

// PendingCell is one unit of work: a linked audio cell whose target is empty.
type PendingCell struct {
	Row       int
	Source    int
	Target    int
	Reference string
}

type CellStatus string

const (
	CellStatusWritten          CellStatus = "written"
	CellStatusReadFailed       CellStatus = "read_failed"
	CellStatusParseFailed      CellStatus = "parse_failed"
	CellStatusFetchFailed      CellStatus = "fetch_failed"
	CellStatusTranscribeFailed CellStatus = "transcribe_failed"
	CellStatusWriteFailed      CellStatus = "write_failed"
)

// CellResult is the terminal state of a pending cell.
type CellResult struct {
	Cell   PendingCell
	Status CellStatus
	Text   string
	Err    error
}

func (r CellResult) Failed() bool {
	return r.Status != CellStatusWritten
}

type RunStats struct {
	RunID          string
	StartedAt      time.Time
	FinishedAt     time.Time
	StartRow       int
	LastRow        int
	TotalProcessed int
	Successful     int
	Failed         int
	Errors         []string
	Fatal          bool
}

// Record folds a cell outcome into the counters.
func (s *RunStats) Record(result CellResult) {
	s.TotalProcessed++
	if !result.Failed() {
		s.Successful++
		return
	}
	s.Failed++
	s.Errors = append(s.Errors, fmt.Sprintf("Row %d: %v", result.Cell.Row, result.Err))
}

// RecordFatal marks the run as aborted before any row was scanned.
func (s *RunStats) RecordFatal(msg string) {
	s.Fatal = true
	s.Errors = append(s.Errors, msg)
}

func (s *RunStats) Duration() time.Duration {
	if s.FinishedAt.IsZero() || s.StartedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
