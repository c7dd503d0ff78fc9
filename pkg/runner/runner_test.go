package runner

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Nephrolytics-ai/sheetscribe/pkg/model"
	"github.com/stretchr/testify/suite"
)

type RunnerSuite struct {
	suite.Suite
	source      *fakeSource
	assets      *fakeAssets
	transcriber *fakeTranscriber
	notifier    *fakeNotifier
	checkpoints *fakeCheckpoints
	opts        Options
}

func TestRunnerSuite(t *testing.T) {
	suite.Run(t, new(RunnerSuite))
}

func (s *RunnerSuite) SetupTest() {
	s.source = newFakeSource([][]string{{"Name", "Answer 1", "Audio 1", "Answer 2", "Audio 2"}})
	s.assets = &fakeAssets{files: map[string][]byte{}}
	s.transcriber = &fakeTranscriber{failOn: map[string]error{}}
	s.notifier = &fakeNotifier{}
	s.checkpoints = newFakeCheckpoints()
	s.opts = Options{
		ColumnPairs: []model.ColumnPair{{Source: 3, Target: 2}, {Source: 5, Target: 4}},
	}
}

func (s *RunnerSuite) addAudio(row, col int, assetID, content string) {
	s.source.link(row, col, assetID)
	s.assets.files[assetID] = []byte(content)
}

func (s *RunnerSuite) run() (*model.RunStats, error) {
	r, err := New(s.source, s.assets, s.transcriber, s.notifier, s.checkpoints, s.opts)
	s.Require().NoError(err)
	return r.Run(context.Background())
}

func (s *RunnerSuite) TestNewValidatesCollaborators() {
	_, err := New(nil, s.assets, s.transcriber, s.notifier, s.checkpoints, s.opts)
	s.Require().Error(err)
	s.Contains(err.Error(), "row source is required")

	_, err = New(s.source, s.assets, s.transcriber, s.notifier, s.checkpoints, Options{})
	s.Require().Error(err)
	s.Contains(err.Error(), "column pair")

	_, err = New(s.source, s.assets, s.transcriber, s.notifier, s.checkpoints, Options{
		ColumnPairs: []model.ColumnPair{{Source: 0, Target: 2}},
	})
	s.Error(err)
}

func (s *RunnerSuite) TestRunWritesTranscriptsForPendingCells() {
	s.addAudio(2, 3, "file-a", "a")
	s.addAudio(2, 5, "file-b", "b")
	s.addAudio(3, 3, "file-c", "c")
	s.source.set(3, 2, "already answered")

	stats, err := s.run()
	s.Require().NoError(err)

	s.Equal([]cellWrite{{row: 2, col: 2, text: "text of a"}, {row: 2, col: 4, text: "text of b"}}, s.source.writes)
	s.Equal(2, stats.TotalProcessed)
	s.Equal(2, stats.Successful)
	s.Equal(0, stats.Failed)
	s.Empty(stats.Errors)
	s.Equal(1, stats.StartRow)
	s.Equal(3, stats.LastRow)
	s.NotEmpty(stats.RunID)
	s.Equal([]string{"file-a", "file-b"}, s.assets.fetched)
	s.Equal([]string{defaultAudioFilename, defaultAudioFilename}, s.transcriber.filenames)
}

func (s *RunnerSuite) TestRunSavesCheckpointAfterEveryRow() {
	s.addAudio(2, 3, "file-a", "a")
	s.source.set(3, 1, "no audio")
	s.addAudio(4, 5, "file-b", "b")

	_, err := s.run()
	s.Require().NoError(err)

	s.Equal([]int{2, 3, 4}, s.checkpoints.saves)
	s.Equal(4, s.checkpoints.row)
}

func (s *RunnerSuite) TestRunResumesAfterCheckpoint() {
	s.addAudio(2, 3, "file-a", "a")
	s.addAudio(3, 3, "file-b", "b")
	s.addAudio(4, 3, "file-c", "c")
	s.checkpoints.row = 3

	stats, err := s.run()
	s.Require().NoError(err)

	s.Equal([]string{"file-c"}, s.assets.fetched)
	s.Equal(3, stats.StartRow)
	s.Equal(4, stats.LastRow)
	s.Equal([]int{4}, s.checkpoints.saves)
}

func (s *RunnerSuite) TestRunClampsCheckpointToFirstDataRow() {
	s.source.set(2, 1, "second header")
	s.source.link(2, 3, "header-link")
	s.addAudio(3, 3, "file-a", "a")
	s.checkpoints.row = 0
	s.opts.FirstDataRow = 2

	stats, err := s.run()
	s.Require().NoError(err)

	s.Equal(2, stats.StartRow)
	s.Equal([]string{"file-a"}, s.assets.fetched)
}

func (s *RunnerSuite) TestSecondRunIsIdempotent() {
	s.addAudio(2, 3, "file-a", "a")
	s.addAudio(3, 5, "file-b", "b")

	first, err := s.run()
	s.Require().NoError(err)
	s.Equal(2, first.Successful)

	s.checkpoints.row = model.DefaultCheckpoint
	second, err := s.run()
	s.Require().NoError(err)

	s.Equal(0, second.TotalProcessed)
	s.Len(s.source.writes, 2)
	s.Equal(2, s.transcriber.calls)
}

func (s *RunnerSuite) TestRunMatchesMarkerCaseInsensitively() {
	s.source.set(2, 3, "Audio")
	s.source.formulas[cellKey{2, 3}] = `=hyperlink("https://drive.google.com/file/d/lower_case-1/view","Audio")`
	s.assets.files["lower_case-1"] = []byte("a")

	stats, err := s.run()
	s.Require().NoError(err)
	s.Equal(1, stats.Successful)
	s.Equal([]string{"lower_case-1"}, s.assets.fetched)
}

func (s *RunnerSuite) TestRunTreatsWhitespaceTargetAsAnswered() {
	s.addAudio(2, 3, "file-a", "a")
	s.source.set(2, 2, " ")

	stats, err := s.run()
	s.Require().NoError(err)
	s.Equal(0, stats.TotalProcessed)
	s.Empty(s.source.writes)
}

func (s *RunnerSuite) TestRunIgnoresPlainValues() {
	s.source.set(2, 3, "https://drive.google.com/file/d/plain/view")

	stats, err := s.run()
	s.Require().NoError(err)
	s.Equal(0, stats.TotalProcessed)
	s.Empty(s.assets.fetched)
}

func (s *RunnerSuite) TestParseFailureIsIsolated() {
	s.source.formulas[cellKey{2, 3}] = `=HYPERLINK("https://example.com/audio.webm","Audio")`
	s.addAudio(3, 3, "file-b", "b")

	stats, err := s.run()
	s.Require().NoError(err)

	s.Equal(2, stats.TotalProcessed)
	s.Equal(1, stats.Successful)
	s.Equal(1, stats.Failed)
	s.Require().Len(stats.Errors, 1)
	s.True(strings.HasPrefix(stats.Errors[0], "Row 2: column C: "))
	s.Contains(stats.Errors[0], model.ErrAssetIDNotFound.Error())
	s.Equal([]string{"file-b"}, s.assets.fetched)
}

func (s *RunnerSuite) TestFetchTranscribeAndWriteFailuresAreCounted() {
	s.source.link(2, 3, "missing")
	s.addAudio(3, 3, "file-bad", "bad")
	s.transcriber.failOn["bad"] = errors.New("invalid file format")
	s.addAudio(4, 3, "file-locked", "locked")
	s.source.writeErrs[cellKey{4, 2}] = errors.New("protected range")
	s.addAudio(5, 3, "file-ok", "ok")

	stats, err := s.run()
	s.Require().NoError(err)

	s.Equal(4, stats.TotalProcessed)
	s.Equal(1, stats.Successful)
	s.Equal(3, stats.Failed)
	s.Equal(stats.Failed, len(stats.Errors))
	s.True(strings.HasPrefix(stats.Errors[0], "Row 2: column C: "))
	s.Contains(stats.Errors[0], model.ErrAssetNotFound.Error())
	s.Equal("Row 3: column C: invalid file format", stats.Errors[1])
	s.Equal("Row 4: column C: protected range", stats.Errors[2])
	s.Equal([]int{2, 3, 4, 5}, s.checkpoints.saves)
}

func (s *RunnerSuite) TestFormulaReadErrorIsRecordedAsFailure() {
	s.source.formulaErrs[cellKey{2, 3}] = errBoom
	s.addAudio(2, 5, "file-b", "b")

	stats, err := s.run()
	s.Require().NoError(err)
	s.Equal(2, stats.TotalProcessed)
	s.Equal(1, stats.Successful)
	s.Equal(1, stats.Failed)
	s.Equal([]string{"Row 2: column C: boom"}, stats.Errors)
	s.Contains(s.notifier.sent[0].body, "Row 2: column C: boom")
}

func (s *RunnerSuite) TestCancellationMidRowDoesNotAdvanceCheckpoint() {
	s.addAudio(2, 3, "file-a", "a")
	s.addAudio(2, 5, "file-b", "b")
	s.addAudio(3, 3, "file-c", "c")
	s.checkpoints.row = model.DefaultCheckpoint

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.transcriber.beforeCall = func(audio []byte) error {
		if string(audio) == "a" {
			cancel()
		}
		return nil
	}
	r, err := New(s.source, s.assets, s.transcriber, s.notifier, s.checkpoints, s.opts)
	s.Require().NoError(err)

	stats, err := r.Run(ctx)
	s.Require().Error(err)
	s.ErrorIs(err, context.Canceled)

	s.Equal([]cellWrite{{row: 2, col: 2, text: "text of a"}}, s.source.writes)
	s.Empty(s.checkpoints.saves)
	s.Equal(model.DefaultCheckpoint, s.checkpoints.row)
	s.Equal(1, stats.TotalProcessed)
	s.Equal(0, stats.Failed)
	s.Empty(stats.Errors)
	s.Equal(model.DefaultCheckpoint, stats.LastRow)
	s.Require().Len(s.notifier.sent, 1)
	s.NoError(s.notifier.ctxErrs[0])
}

func (s *RunnerSuite) TestCancellationDuringTranscriptionIsNotAFailure() {
	s.addAudio(2, 3, "file-a", "a")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.transcriber.beforeCall = func([]byte) error {
		cancel()
		return ctx.Err()
	}
	r, err := New(s.source, s.assets, s.transcriber, s.notifier, s.checkpoints, s.opts)
	s.Require().NoError(err)

	stats, err := r.Run(ctx)
	s.Require().ErrorIs(err, context.Canceled)
	s.Equal(0, stats.TotalProcessed)
	s.Equal(0, stats.Failed)
	s.Empty(stats.Errors)
	s.Empty(s.source.writes)
	s.Empty(s.checkpoints.saves)
}

func (s *RunnerSuite) TestRowSourceFailureIsFatal() {
	s.source.readErr = errors.New("403 permission denied")

	stats, err := s.run()
	s.Require().Error(err)
	s.ErrorIs(err, model.ErrRowSourceUnavailable)

	s.True(stats.Fatal)
	s.Equal(0, stats.TotalProcessed)
	s.Equal([]string{"Error accessing spreadsheet: 403 permission denied"}, stats.Errors)
	s.Require().Len(s.notifier.sent, 1)
	s.Equal(SummarySubject, s.notifier.sent[0].subject)
	s.Contains(s.notifier.sent[0].body, "Error accessing spreadsheet: 403 permission denied")
	s.Empty(s.checkpoints.saves)
	s.Zero(s.source.formulaHits)
}

func (s *RunnerSuite) TestFatalPathNotifiesAfterCancellation() {
	s.source.readErr = context.Canceled
	r, err := New(s.source, s.assets, s.transcriber, s.notifier, s.checkpoints, s.opts)
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Run(ctx)
	s.Require().ErrorIs(err, model.ErrRowSourceUnavailable)
	s.Require().Len(s.notifier.sent, 1)
	s.NoError(s.notifier.ctxErrs[0])
}

func (s *RunnerSuite) TestCheckpointLoadFailureIsFatal() {
	s.addAudio(2, 3, "file-a", "a")
	s.checkpoints.loadErr = errors.New("invalid character")

	stats, err := s.run()
	s.Require().Error(err)
	s.ErrorIs(err, model.ErrCheckpointUnavailable)
	s.True(stats.Fatal)
	s.Len(s.notifier.sent, 1)
	s.Empty(s.assets.fetched)
}

func (s *RunnerSuite) TestNotifierFailureIsSwallowed() {
	s.addAudio(2, 3, "file-a", "a")
	s.notifier.err = errors.New("smtp unreachable")

	stats, err := s.run()
	s.Require().NoError(err)
	s.Equal(1, stats.Successful)
	s.Len(s.notifier.sent, 1)
}

func (s *RunnerSuite) TestCheckpointSaveFailureIsNotACellFailure() {
	s.addAudio(2, 3, "file-a", "a")
	s.checkpoints.saveErr = errors.New("disk full")

	stats, err := s.run()
	s.Require().NoError(err)
	s.Equal(1, stats.Successful)
	s.Equal(0, stats.Failed)
	s.Empty(stats.Errors)
	s.Equal(model.DefaultCheckpoint, s.checkpoints.row)
}

func (s *RunnerSuite) TestSummaryIsSentOnce() {
	s.addAudio(2, 3, "file-a", "a")

	_, err := s.run()
	s.Require().NoError(err)
	s.Require().Len(s.notifier.sent, 1)
	s.Contains(s.notifier.sent[0].body, "Successfully transcribed: 1")
	s.Contains(s.notifier.sent[0].body, "Last processed row: 2")
}

func (s *RunnerSuite) TestCheckpointPastEndProcessesNothing() {
	s.addAudio(2, 3, "file-a", "a")
	s.checkpoints.row = 10

	stats, err := s.run()
	s.Require().NoError(err)
	s.Equal(0, stats.TotalProcessed)
	s.Equal(10, stats.LastRow)
	s.Empty(s.checkpoints.saves)
	s.Len(s.notifier.sent, 1)
}

func (s *RunnerSuite) TestDryRunTouchesNothing() {
	s.addAudio(2, 3, "file-a", "a")
	s.addAudio(3, 5, "file-b", "b")
	s.opts.DryRun = true

	stats, err := s.run()
	s.Require().NoError(err)

	s.Equal(2, stats.TotalProcessed)
	s.Empty(s.assets.fetched)
	s.Zero(s.transcriber.calls)
	s.Empty(s.source.writes)
	s.Empty(s.checkpoints.saves)
	s.Empty(s.notifier.sent)
}

func (s *RunnerSuite) TestCancelledContextStopsBeforeScanning() {
	s.addAudio(2, 3, "file-a", "a")
	r, err := New(s.source, s.assets, s.transcriber, s.notifier, s.checkpoints, s.opts)
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := r.Run(ctx)

	s.Require().Error(err)
	s.ErrorIs(err, context.Canceled)
	s.Equal(0, stats.TotalProcessed)
	s.Empty(s.checkpoints.saves)
	s.Len(s.notifier.sent, 1)
}

func (s *RunnerSuite) TestCustomAudioFilenameIsPassedThrough() {
	s.addAudio(2, 3, "file-a", "a")
	s.opts.AudioFilename = "clip.m4a"

	_, err := s.run()
	s.Require().NoError(err)
	s.Equal([]string{"clip.m4a"}, s.transcriber.filenames)
}
