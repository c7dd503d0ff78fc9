// Package config loads sheetscribe settings from the environment, optionally
// seeded from a dotenv file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Nephrolytics-ai/sheetscribe/pkg/model"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/xuri/excelize/v2"
)

const (
	RowSourceSheets = "sheets"
	RowSourceXLSX   = "xlsx"

	AssetStoreDrive = "drive"
	AssetStoreS3    = "s3"
	AssetStoreDir   = "dir"

	TranscriberOpenAI = "openai"
	TranscriberGemini = "gemini"
	TranscriberHF     = "huggingface"

	CheckpointFile = "file"
	CheckpointS3   = "s3"

	DefaultColumnMap     = "L:D,M:F,N:H,O:J"
	DefaultSheetName     = "Sheet1"
	DefaultProgressFile  = "transcription_progress.json"
	DefaultAudioFilename = "audio.webm"
	DefaultSMTPPort      = 587
	DefaultAWSRegion     = "us-east-1"
)

type Config struct {
	RowSource    string
	Sheets       SheetsConfig
	XLSXPath     string
	ColumnPairs  []model.ColumnPair
	FirstDataRow int

	AssetStore string
	Assets     AssetsConfig

	Transcriber   string
	OpenAI        model.AudioOptions
	Gemini        model.AudioOptions
	HuggingFace   model.AudioOptions
	AudioFilename string

	CheckpointStore string
	Checkpoint      CheckpointConfig

	AWS   AWSConfig
	Email EmailConfig
	Log   LogConfig
}

type SheetsConfig struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

type AssetsConfig struct {
	S3Bucket string
	S3Prefix string
	Dir      string
}

type CheckpointConfig struct {
	Path     string
	S3Bucket string
	S3Key    string
}

type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Profile         string
	Endpoint        string
}

type EmailConfig struct {
	Server     string
	Port       int
	Sender     string
	Password   string
	Recipients []string
}

// Complete reports whether every setting needed to send mail is present.
func (c EmailConfig) Complete() bool {
	return c.Server != "" && c.Port > 0 && c.Sender != "" && c.Password != "" && len(c.Recipients) > 0
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads envFiles into the process environment (or ./.env when none are
// given and it exists) and then builds the configuration from the environment.
// Variables already set in the environment win over file values.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, utils.WrapIfNotNil(err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, utils.WrapIfNotNil(err)
		}
	}

	return FromEnv()
}

// FromEnv builds the configuration from the current environment. It parses
// values but does not check cross-field requirements; call Validate for that.
func FromEnv() (*Config, error) {
	var errs []error

	pairs, err := ParseColumnMap(envOr("COLUMN_MAP", DefaultColumnMap))
	if err != nil {
		errs = append(errs, err)
	}
	firstDataRow, err := envInt("FIRST_DATA_ROW", model.DefaultCheckpoint)
	if err != nil {
		errs = append(errs, err)
	}
	smtpPort, err := envInt("SMTP_PORT", DefaultSMTPPort)
	if err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, utils.WrapIfNotNil(errors.Join(errs...))
	}

	keywords := parseKeywords(os.Getenv("TRANSCRIPTION_KEYWORDS"))
	prompt := strings.TrimSpace(os.Getenv("TRANSCRIPTION_PROMPT"))

	return &Config{
		RowSource: strings.ToLower(envOr("ROW_SOURCE", RowSourceSheets)),
		Sheets: SheetsConfig{
			SpreadsheetID:   env("SHEET_ID"),
			SheetName:       envOr("SHEET_NAME", DefaultSheetName),
			CredentialsJSON: env("GOOGLE_CREDENTIALS"),
			CredentialsFile: env("GOOGLE_CREDENTIALS_FILE"),
		},
		XLSXPath:     env("XLSX_PATH"),
		ColumnPairs:  pairs,
		FirstDataRow: firstDataRow,

		AssetStore: strings.ToLower(envOr("ASSET_STORE", AssetStoreDrive)),
		Assets: AssetsConfig{
			S3Bucket: env("ASSET_S3_BUCKET"),
			S3Prefix: env("ASSET_S3_PREFIX"),
			Dir:      env("ASSET_DIR"),
		},

		Transcriber: strings.ToLower(envOr("TRANSCRIBER", TranscriberOpenAI)),
		OpenAI: model.AudioOptions{
			URL:       env("OPENAI_BASE_URL"),
			AuthToken: env("OPENAI_API_KEY"),
			Model:     env("OPENAI_AUDIO_MODEL"),
			Prompt:    prompt,
			Keywords:  keywords,
		},
		Gemini: model.AudioOptions{
			URL:       env("GEMINI_BASE_URL"),
			AuthToken: env("GEMINI_KEY"),
			Model:     env("GEMINI_AUDIO_MODEL"),
			Prompt:    prompt,
			Keywords:  keywords,
		},
		HuggingFace: model.AudioOptions{
			URL:       env("HF_BASE_URL"),
			AuthToken: env("HF_TOKEN"),
			Model:     env("HF_AUDIO_MODEL"),
		},
		AudioFilename: envOr("AUDIO_FILENAME", DefaultAudioFilename),

		CheckpointStore: strings.ToLower(envOr("CHECKPOINT_STORE", CheckpointFile)),
		Checkpoint: CheckpointConfig{
			Path:     envOr("PROGRESS_FILE", DefaultProgressFile),
			S3Bucket: env("CHECKPOINT_S3_BUCKET"),
			S3Key:    envOr("CHECKPOINT_S3_KEY", DefaultProgressFile),
		},

		AWS: AWSConfig{
			Region:          envOr("AWS_REGION", DefaultAWSRegion),
			AccessKeyID:     env("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: env("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    env("AWS_SESSION_TOKEN"),
			Profile:         env("AWS_PROFILE"),
			Endpoint:        env("AWS_ENDPOINT_URL"),
		},
		Email: EmailConfig{
			Server:     env("SMTP_SERVER"),
			Port:       smtpPort,
			Sender:     env("SENDER_EMAIL"),
			Password:   os.Getenv("SENDER_PASSWORD"),
			Recipients: splitList(os.Getenv("RECIPIENT_EMAIL")),
		},
		Log: LogConfig{
			Level:  envOr("LOG_LEVEL", "info"),
			Format: envOr("LOG_FORMAT", "text"),
		},
	}, nil
}

// Validate checks that the selected backends have what they need. Email is
// optional: an incomplete email block only disables the summary mail.
func (c *Config) Validate() error {
	var errs []error

	switch c.RowSource {
	case RowSourceSheets:
		if c.Sheets.SpreadsheetID == "" {
			errs = append(errs, errors.New("SHEET_ID is required for the sheets row source"))
		}
		if c.Sheets.SheetName == "" {
			errs = append(errs, errors.New("SHEET_NAME must not be empty"))
		}
	case RowSourceXLSX:
		if c.XLSXPath == "" {
			errs = append(errs, errors.New("XLSX_PATH is required for the xlsx row source"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ROW_SOURCE %q", c.RowSource))
	}

	switch c.AssetStore {
	case AssetStoreDrive:
	case AssetStoreS3:
		if c.Assets.S3Bucket == "" {
			errs = append(errs, errors.New("ASSET_S3_BUCKET is required for the s3 asset store"))
		}
	case AssetStoreDir:
		if c.Assets.Dir == "" {
			errs = append(errs, errors.New("ASSET_DIR is required for the dir asset store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ASSET_STORE %q", c.AssetStore))
	}

	switch c.Transcriber {
	case TranscriberOpenAI:
		if c.OpenAI.AuthToken == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai transcriber"))
		}
	case TranscriberGemini:
		if c.Gemini.AuthToken == "" {
			errs = append(errs, errors.New("GEMINI_KEY is required for the gemini transcriber"))
		}
	case TranscriberHF:
		if c.HuggingFace.AuthToken == "" {
			errs = append(errs, errors.New("HF_TOKEN is required for the huggingface transcriber"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TRANSCRIBER %q", c.Transcriber))
	}

	switch c.CheckpointStore {
	case CheckpointFile:
		if c.Checkpoint.Path == "" {
			errs = append(errs, errors.New("PROGRESS_FILE must not be empty"))
		}
	case CheckpointS3:
		if c.Checkpoint.S3Bucket == "" {
			errs = append(errs, errors.New("CHECKPOINT_S3_BUCKET is required for the s3 checkpoint store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown CHECKPOINT_STORE %q", c.CheckpointStore))
	}

	if err := ValidateColumnPairs(c.ColumnPairs); err != nil {
		errs = append(errs, err)
	}
	if c.FirstDataRow < 1 {
		errs = append(errs, fmt.Errorf("FIRST_DATA_ROW must be at least 1, got %d", c.FirstDataRow))
	}

	return errors.Join(errs...)
}

// ParseColumnMap parses "L:D,M:F" style pairs. Columns may be letters or
// 1-based numbers; order is preserved.
func ParseColumnMap(raw string) ([]model.ColumnPair, error) {
	var pairs []model.ColumnPair
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		source, target, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("column map entry %q must be source:target", entry)
		}
		sourceCol, err := parseColumn(source)
		if err != nil {
			return nil, fmt.Errorf("column map entry %q: %w", entry, err)
		}
		targetCol, err := parseColumn(target)
		if err != nil {
			return nil, fmt.Errorf("column map entry %q: %w", entry, err)
		}
		pairs = append(pairs, model.ColumnPair{Source: sourceCol, Target: targetCol})
	}
	if len(pairs) == 0 {
		return nil, errors.New("column map is empty")
	}
	return pairs, nil
}

func ValidateColumnPairs(pairs []model.ColumnPair) error {
	if len(pairs) == 0 {
		return errors.New("at least one column pair is required")
	}
	targets := make(map[int]struct{}, len(pairs))
	for _, pair := range pairs {
		if pair.Source < 1 || pair.Target < 1 {
			return fmt.Errorf("column pair %d:%d must use positive columns", pair.Source, pair.Target)
		}
		if pair.Source == pair.Target {
			return fmt.Errorf("column pair %d:%d maps a column onto itself", pair.Source, pair.Target)
		}
		if _, dup := targets[pair.Target]; dup {
			return fmt.Errorf("target column %d is used by more than one pair", pair.Target)
		}
		targets[pair.Target] = struct{}{}
	}
	return nil
}

func parseColumn(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.New("empty column")
	}
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 1 {
			return 0, fmt.Errorf("column %d must be positive", n)
		}
		return n, nil
	}
	return excelize.ColumnNameToNumber(strings.ToUpper(raw))
}

func parseKeywords(raw string) []model.AudioKeyword {
	words := splitList(raw)
	if len(words) == 0 {
		return nil
	}
	keywords := make([]model.AudioKeyword, 0, len(words))
	for _, word := range words {
		keywords = append(keywords, model.AudioKeyword{Word: word})
	}
	return keywords
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envOr(key, fallback string) string {
	if v := env(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := env(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}
