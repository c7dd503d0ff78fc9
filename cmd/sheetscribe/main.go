// Command sheetscribe transcribes linked audio recordings in a spreadsheet and
// writes the text back next to them.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Nephrolytics-ai/sheetscribe/pkg/config"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/logging"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/runner"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/utils"
	"github.com/spf13/cobra"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitConfig  = 2
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func configError(err error) error {
	return &exitError{code: exitConfig, err: err}
}

type globalFlags struct {
	envFiles []string
	logLevel string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, out io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			log := logging.NewLogger(ctx)
			log.Errorf("panic: %v", r)
			utils.PrintStack("sheetscribe", log)
			code = exitFailure
		}
	}()

	root := newRootCommand(out)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		logging.NewLogger(ctx).Errorf("error: %v", err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	return exitFailure
}

func newRootCommand(out io.Writer) *cobra.Command {
	flags := &globalFlags{}
	runCmd := newRunCommand(flags, out)

	root := &cobra.Command{
		Use:           "sheetscribe",
		Short:         "Transcribe linked audio in a spreadsheet",
		Long:          "sheetscribe scans a spreadsheet for audio links without a transcript, transcribes them and writes the text back.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runCmd.RunE,
	}
	root.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", nil, "dotenv file(s) to load before reading the environment")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	root.Flags().AddFlagSet(runCmd.Flags())

	root.AddCommand(runCmd, newCheckpointCommand(flags, out))
	return root
}

func newRunCommand(flags *globalFlags, out io.Writer) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one transcription pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPass(cmd.Context(), flags, dryRun, out)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list pending cells without transcribing or saving progress")
	return cmd
}

func runPass(ctx context.Context, flags *globalFlags, dryRun bool, out io.Writer) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return configError(err)
	}

	deps, err := buildCollaborators(ctx, cfg)
	if err != nil {
		return utils.WrapIfNotNil(err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logging.NewLogger(ctx).Warnf("close_failed error=%v", err)
		}
	}()

	r, err := runner.New(deps.source, deps.assets, deps.transcriber, deps.notifier, deps.checkpoints, runner.Options{
		ColumnPairs:   cfg.ColumnPairs,
		FirstDataRow:  cfg.FirstDataRow,
		AudioFilename: cfg.AudioFilename,
		DryRun:        dryRun,
	})
	if err != nil {
		return utils.WrapIfNotNil(err)
	}

	stats, err := r.Run(ctx)
	if stats != nil {
		fmt.Fprintf(out, "run %s: processed=%d successful=%d failed=%d last_row=%d\n",
			stats.RunID, stats.TotalProcessed, stats.Successful, stats.Failed, stats.LastRow)
	}
	return utils.WrapIfNotNil(err)
}

func newCheckpointCommand(flags *globalFlags, out io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or reset the stored progress row",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the last processed row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			store, err := buildCheckpointStore(cmd.Context(), cfg)
			if err != nil {
				return configError(err)
			}
			row, err := store.Load(cmd.Context())
			if err != nil {
				return utils.WrapIfNotNil(err)
			}
			fmt.Fprintln(out, row)
			return nil
		},
	})

	var row int
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Move the checkpoint, by default back to the first data row",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			target := cfg.FirstDataRow
			if cmd.Flags().Changed("row") {
				target = row
			}
			if target < 1 {
				return configError(fmt.Errorf("row must be at least 1, got %d", target))
			}
			store, err := buildCheckpointStore(cmd.Context(), cfg)
			if err != nil {
				return configError(err)
			}
			if err := store.Save(cmd.Context(), target); err != nil {
				return utils.WrapIfNotNil(err)
			}
			logging.NewLogger(cmd.Context()).Infof("checkpoint_reset row=%d", target)
			fmt.Fprintln(out, target)
			return nil
		},
	}
	reset.Flags().IntVar(&row, "row", 0, "row to store (default FIRST_DATA_ROW)")
	cmd.AddCommand(reset)
	return cmd
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.envFiles...)
	if err != nil {
		return nil, configError(err)
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if err := logging.Configure(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, configError(err)
	}
	return cfg, nil
}
