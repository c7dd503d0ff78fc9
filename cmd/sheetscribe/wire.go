package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Nephrolytics-ai/sheetscribe/pkg/assets"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/awsutil"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/checkpoint"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/config"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/llms/gemini"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/llms/huggingface"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/llms/openai"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/model"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/notify"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/sheets"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/utils"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

type collaborators struct {
	source      model.RowSource
	assets      model.AssetStore
	transcriber model.Transcriber
	notifier    model.Notifier
	checkpoints model.CheckpointStore
	closers     []func() error
}

func (c *collaborators) Close() error {
	var errs []error
	for _, closeFn := range c.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}

func buildCollaborators(ctx context.Context, cfg *config.Config) (*collaborators, error) {
	deps := &collaborators{}
	var err error

	if deps.source, err = buildRowSource(ctx, cfg, deps); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	if deps.assets, err = buildAssetStore(ctx, cfg); err != nil {
		_ = deps.Close()
		return nil, utils.WrapIfNotNil(err)
	}
	if deps.transcriber, err = buildTranscriber(ctx, cfg); err != nil {
		_ = deps.Close()
		return nil, utils.WrapIfNotNil(err)
	}
	if deps.checkpoints, err = buildCheckpointStore(ctx, cfg); err != nil {
		_ = deps.Close()
		return nil, utils.WrapIfNotNil(err)
	}
	if deps.notifier, err = notify.New(cfg.Email); err != nil {
		_ = deps.Close()
		return nil, utils.WrapIfNotNil(err)
	}
	return deps, nil
}

func buildRowSource(ctx context.Context, cfg *config.Config, deps *collaborators) (model.RowSource, error) {
	switch cfg.RowSource {
	case config.RowSourceSheets:
		service, err := sheets.NewGoogleService(ctx, googleOptions(cfg, gsheets.SpreadsheetsScope)...)
		if err != nil {
			return nil, err
		}
		return sheets.NewGoogleSource(service, cfg.Sheets.SpreadsheetID, cfg.Sheets.SheetName)
	case config.RowSourceXLSX:
		workbook, err := sheets.OpenWorkbook(cfg.XLSXPath, cfg.Sheets.SheetName)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, workbook.Close)
		return workbook, nil
	}
	return nil, fmt.Errorf("unknown row source %q", cfg.RowSource)
}

func buildAssetStore(ctx context.Context, cfg *config.Config) (model.AssetStore, error) {
	switch cfg.AssetStore {
	case config.AssetStoreDrive:
		service, err := assets.NewDriveService(ctx, googleOptions(cfg, drive.DriveReadonlyScope)...)
		if err != nil {
			return nil, err
		}
		return assets.NewDriveStore(service)
	case config.AssetStoreS3:
		client, err := awsutil.NewS3Client(ctx, awsOptions(cfg))
		if err != nil {
			return nil, err
		}
		return assets.NewS3Store(client, cfg.Assets.S3Bucket, cfg.Assets.S3Prefix)
	case config.AssetStoreDir:
		return assets.NewDirStore(cfg.Assets.Dir)
	}
	return nil, fmt.Errorf("unknown asset store %q", cfg.AssetStore)
}

func buildTranscriber(ctx context.Context, cfg *config.Config) (model.Transcriber, error) {
	switch cfg.Transcriber {
	case config.TranscriberOpenAI:
		return openai.NewTranscriber(cfg.OpenAI)
	case config.TranscriberGemini:
		return gemini.NewTranscriber(ctx, cfg.Gemini)
	case config.TranscriberHF:
		return huggingface.NewTranscriber(cfg.HuggingFace)
	}
	return nil, fmt.Errorf("unknown transcriber %q", cfg.Transcriber)
}

func buildCheckpointStore(ctx context.Context, cfg *config.Config) (model.CheckpointStore, error) {
	switch cfg.CheckpointStore {
	case config.CheckpointFile:
		return checkpoint.NewFileStore(cfg.Checkpoint.Path)
	case config.CheckpointS3:
		client, err := awsutil.NewS3Client(ctx, awsOptions(cfg))
		if err != nil {
			return nil, err
		}
		return checkpoint.NewS3Store(client, cfg.Checkpoint.S3Bucket, cfg.Checkpoint.S3Key)
	}
	return nil, fmt.Errorf("unknown checkpoint store %q", cfg.CheckpointStore)
}

// googleOptions prefers inline credentials over a credentials file and falls
// back to application default credentials when neither is set.
func googleOptions(cfg *config.Config, scopes ...string) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(scopes...)}
	switch {
	case strings.TrimSpace(cfg.Sheets.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.Sheets.CredentialsJSON)))
	case strings.TrimSpace(cfg.Sheets.CredentialsFile) != "":
		opts = append(opts, option.WithCredentialsFile(cfg.Sheets.CredentialsFile))
	}
	return opts
}

func awsOptions(cfg *config.Config) awsutil.Options {
	return awsutil.Options{
		Region:          cfg.AWS.Region,
		AccessKeyID:     cfg.AWS.AccessKeyID,
		SecretAccessKey: cfg.AWS.SecretAccessKey,
		SessionToken:    cfg.AWS.SessionToken,
		Profile:         cfg.AWS.Profile,
		Endpoint:        cfg.AWS.Endpoint,
	}
}
