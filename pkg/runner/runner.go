// Package runner drives one batch pass over a spreadsheet: find linked audio
// cells without a transcript, transcribe them and write the text back.
package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/sheetscribe/pkg/logging"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/model"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/utils"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
)

const defaultAudioFilename = "audio.webm"

type Options struct {
	// ColumnPairs is scanned in order for every row.
	ColumnPairs []model.ColumnPair
	// FirstDataRow is the lowest row a checkpoint may point at. Rows up to and
	// including it are never scanned. Defaults to 1, the header row.
	FirstDataRow int
	// AudioFilename is passed to the transcriber as a container format hint.
	AudioFilename string
	// DryRun classifies pending cells without fetching, writing or saving progress.
	DryRun bool
}

type Runner struct {
	source      model.RowSource
	assets      model.AssetStore
	transcriber model.Transcriber
	notifier    model.Notifier
	checkpoints model.CheckpointStore
	opts        Options
	now         func() time.Time
}

func New(
	source model.RowSource,
	assets model.AssetStore,
	transcriber model.Transcriber,
	notifier model.Notifier,
	checkpoints model.CheckpointStore,
	opts Options,
) (*Runner, error) {
	var errs []error
	if source == nil {
		errs = append(errs, errors.New("row source is required"))
	}
	if assets == nil {
		errs = append(errs, errors.New("asset store is required"))
	}
	if transcriber == nil {
		errs = append(errs, errors.New("transcriber is required"))
	}
	if notifier == nil {
		errs = append(errs, errors.New("notifier is required"))
	}
	if checkpoints == nil {
		errs = append(errs, errors.New("checkpoint store is required"))
	}
	if len(opts.ColumnPairs) == 0 {
		errs = append(errs, errors.New("at least one column pair is required"))
	}
	for _, pair := range opts.ColumnPairs {
		if pair.Source < 1 || pair.Target < 1 {
			errs = append(errs, fmt.Errorf("invalid column pair %d:%d", pair.Source, pair.Target))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	if opts.FirstDataRow < 1 {
		opts.FirstDataRow = model.DefaultCheckpoint
	}
	if strings.TrimSpace(opts.AudioFilename) == "" {
		opts.AudioFilename = defaultAudioFilename
	}
	opts.ColumnPairs = append([]model.ColumnPair(nil), opts.ColumnPairs...)

	return &Runner{
		source:      source,
		assets:      assets,
		transcriber: transcriber,
		notifier:    notifier,
		checkpoints: checkpoints,
		opts:        opts,
		now:         time.Now,
	}, nil
}

// Run performs one pass. Per-cell failures are reported in the returned stats
// only; a non-nil error means the pass was aborted.
func (r *Runner) Run(ctx context.Context) (*model.RunStats, error) {
	stats := &model.RunStats{
		RunID:     uuid.NewString(),
		StartedAt: r.now(),
	}
	log := logging.NewLogger(ctx).WithField("run_id", stats.RunID)
	log.Infof("run_start dry_run=%t pairs=%d", r.opts.DryRun, len(r.opts.ColumnPairs))

	snapshot, err := r.source.ReadAllRows(ctx)
	if err != nil {
		return r.abort(ctx, stats, "Error accessing spreadsheet: "+err.Error(),
			fmt.Errorf("%w: %w", model.ErrRowSourceUnavailable, err))
	}

	start, err := r.checkpoints.Load(ctx)
	if err != nil {
		return r.abort(ctx, stats, "Error loading checkpoint: "+err.Error(),
			fmt.Errorf("%w: %w", model.ErrCheckpointUnavailable, err))
	}
	if start < r.opts.FirstDataRow {
		start = r.opts.FirstDataRow
	}
	stats.StartRow = start
	stats.LastRow = start
	log.Infof("run_scan start_row=%d rows=%d", start, len(snapshot))

	var runErr error
	for row := start + 1; row <= len(snapshot); row++ {
		if err := ctx.Err(); err != nil {
			log.Warnf("run_interrupted row=%d error=%v", row, err)
			runErr = utils.WrapIfNotNil(err)
			break
		}

		if interrupted := r.processRow(ctx, log, snapshot, row, stats); interrupted {
			// The row is retried in full on the next run, so its checkpoint is not saved.
			log.Warnf("run_interrupted row=%d error=%v", row, ctx.Err())
			runErr = utils.WrapIfNotNil(ctx.Err())
			break
		}
		stats.LastRow = row
		if r.opts.DryRun {
			continue
		}
		if err := r.checkpoints.Save(ctx, row); err != nil {
			log.Errorf("checkpoint_save_failed row=%d error=%v", row, err)
		}
	}

	stats.FinishedAt = r.now()
	log.Infof(
		"run_finished processed=%d successful=%d failed=%d last_row=%d",
		stats.TotalProcessed, stats.Successful, stats.Failed, stats.LastRow,
	)
	r.notify(context.WithoutCancel(ctx), stats)
	return stats, runErr
}

// processRow reports whether ctx was cancelled before every pair of the row
// reached a terminal state. Failures caused by the cancellation are not recorded.
func (r *Runner) processRow(ctx context.Context, log logging.Logger, snapshot [][]string, row int, stats *model.RunStats) bool {
	for _, pair := range r.opts.ColumnPairs {
		if ctx.Err() != nil {
			return true
		}
		cellLog := log.WithField("cell", cellName(pair.Source, row))

		reference, err := r.source.ReadCellFormula(ctx, row, pair.Source)
		if err != nil {
			if ctx.Err() != nil {
				return true
			}
			result := model.CellResult{
				Cell:   model.PendingCell{Row: row, Source: pair.Source, Target: pair.Target},
				Status: model.CellStatusReadFailed,
				Err:    withColumn(pair.Source, err),
			}
			stats.Record(result)
			cellLog.Errorf("cell_failed row=%d status=%s error=%v", row, result.Status, result.Err)
			continue
		}
		target := displayValue(snapshot, row, pair.Target)
		cellLog.Debugf("cell_classify reference=%q target=%q", reference, target)
		if !isPending(reference, target) {
			continue
		}

		cell := model.PendingCell{Row: row, Source: pair.Source, Target: pair.Target, Reference: reference}
		if r.opts.DryRun {
			stats.TotalProcessed++
			cellLog.Infof("pending_cell row=%d source=%d target=%d", row, pair.Source, pair.Target)
			continue
		}

		result := r.processCell(ctx, cellLog, cell)
		if result.Failed() && ctx.Err() != nil {
			return true
		}
		stats.Record(result)
		if result.Failed() {
			cellLog.Errorf("cell_failed row=%d status=%s error=%v", row, result.Status, result.Err)
			continue
		}
		cellLog.Infof("cell_written row=%d target=%s preview=%q", row, cellName(pair.Target, row), preview(result.Text))
	}
	return false
}

func (r *Runner) processCell(ctx context.Context, log logging.Logger, cell model.PendingCell) model.CellResult {
	result := r.runCell(ctx, log, cell)
	if result.Err != nil {
		result.Err = withColumn(cell.Source, result.Err)
	}
	return result
}

func (r *Runner) runCell(ctx context.Context, log logging.Logger, cell model.PendingCell) model.CellResult {
	result := model.CellResult{Cell: cell}

	assetID, err := extractAssetID(cell.Reference)
	if err != nil {
		result.Status = model.CellStatusParseFailed
		result.Err = err
		return result
	}

	log.Infof("asset_fetch asset_id=%s", assetID)
	audio, err := r.assets.FetchBytes(ctx, assetID)
	if err != nil {
		result.Status = model.CellStatusFetchFailed
		result.Err = err
		return result
	}

	text, meta, err := r.transcriber.Transcribe(ctx, audio, r.opts.AudioFilename)
	if err != nil {
		result.Status = model.CellStatusTranscribeFailed
		result.Err = err
		return result
	}
	log.Debugf("transcription_done provider=%s model=%s latency_ms=%s",
		meta[model.MetadataKeyProvider], meta[model.MetadataKeyModel], meta[model.MetadataKeyLatencyMs])

	if err := r.source.WriteCell(ctx, cell.Row, cell.Target, text); err != nil {
		result.Status = model.CellStatusWriteFailed
		result.Err = err
		return result
	}

	result.Status = model.CellStatusWritten
	result.Text = text
	return result
}

func (r *Runner) abort(ctx context.Context, stats *model.RunStats, msg string, cause error) (*model.RunStats, error) {
	logging.NewLogger(ctx).WithField("run_id", stats.RunID).Error(msg)
	stats.RecordFatal(msg)
	stats.FinishedAt = r.now()
	r.notify(context.WithoutCancel(ctx), stats)
	return stats, utils.WrapIfNotNil(cause)
}

func (r *Runner) notify(ctx context.Context, stats *model.RunStats) {
	log := logging.NewLogger(ctx).WithField("run_id", stats.RunID)
	body := FormatSummary(stats)
	if r.opts.DryRun {
		log.Infof("dry_run_summary\n%s", body)
		return
	}
	if err := r.notifier.Send(ctx, SummarySubject, body); err != nil {
		log.Errorf("summary_send_failed error=%v", err)
	}
}

func cellName(col, row int) string {
	name, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return fmt.Sprintf("R%dC%d", row, col)
	}
	return name
}

// withColumn prefixes err with the source column letter so a summary line
// reads "Row 5: column L: ...".
func withColumn(col int, err error) error {
	name, nameErr := excelize.ColumnNumberToName(col)
	if nameErr != nil {
		name = fmt.Sprintf("%d", col)
	}
	return fmt.Errorf("column %s: %w", name, err)
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= 50 {
		return text
	}
	return string(runes[:50]) + "..."
}
