package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/sheetscribe/pkg/logging"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/model"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/utils"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
)

const (
	providerName                       = "openai"
	defaultAudioTranscriptionModelName = "whisper-1"
	defaultAudioFilename               = "audio.webm"
)

type client struct {
	apiClient openai.Client
}

// Transcriber sends audio to the OpenAI transcription endpoint.
type Transcriber struct {
	client *client
	opts   model.AudioOptions
}

// NewTranscriber builds a transcriber from opts. Extra request options are
// appended after the ones derived from opts.
func NewTranscriber(opts model.AudioOptions, requestOpts ...option.RequestOption) (*Transcriber, error) {
	return &Transcriber{
		client: newClient(opts, requestOpts...),
		opts:   cloneAudioOptions(opts),
	}, nil
}

func newClient(opts model.AudioOptions, extra ...option.RequestOption) *client {
	requestOpts := make([]option.RequestOption, 0, 2+len(extra))
	if url := strings.TrimSpace(opts.URL); url != "" {
		requestOpts = append(requestOpts, option.WithBaseURL(url))
	}
	if token := strings.TrimSpace(opts.AuthToken); token != "" {
		requestOpts = append(requestOpts, option.WithAPIKey(token))
	}
	requestOpts = append(requestOpts, extra...)

	return &client{apiClient: openai.NewClient(requestOpts...)}
}

func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, model.GenerationMetadata, error) {
	start := time.Now()
	modelName := resolveAudioTranscriptionModelName(t.opts)
	meta := initMetadata(modelName)
	meta[model.MetadataKeyAudioBytes] = strconv.Itoa(len(audio))
	defer setLatencyMetadata(meta, start)

	logging.NewLogger(ctx).Infof(
		"audio_transcription_request provider=%s model=%q bytes=%d",
		providerName,
		modelName,
		len(audio),
	)

	transcript, response, err := t.client.runAudioTranscription(ctx, audio, filename, t.opts)
	if err != nil {
		logging.NewLogger(ctx).Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	applyOpenAIAudioTranscriptionMetadata(meta, response)
	return transcript, meta, nil
}

func (c *client) runAudioTranscription(
	ctx context.Context,
	audio []byte,
	filename string,
	opts model.AudioOptions,
) (string, *openai.AudioTranscriptionNewResponseUnion, error) {
	if len(audio) == 0 {
		return "", nil, utils.WrapIfNotNil(errors.New("audio is empty"))
	}
	filename = resolveAudioFilename(filename)

	params := openai.AudioTranscriptionNewParams{
		File:           openai.File(bytes.NewReader(audio), filename, audioContentType(filename)),
		Model:          openai.AudioModel(resolveAudioTranscriptionModelName(opts)),
		ResponseFormat: openai.AudioResponseFormatJSON,
	}
	prompt, err := buildAudioTranscriptionPrompt(opts)
	if err != nil {
		return "", nil, utils.WrapIfNotNil(err)
	}
	if prompt != "" {
		params.Prompt = param.NewOpt(prompt)
	}

	response, err := c.apiClient.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", nil, utils.WrapIfNotNil(err)
	}
	if response == nil {
		return "", nil, utils.WrapIfNotNil(errors.New("audio transcriptions API returned nil response"))
	}

	transcript := strings.TrimSpace(response.Text)
	if transcript == "" {
		return "", response, utils.WrapIfNotNil(errors.New("transcription response is empty"))
	}

	return transcript, response, nil
}

func buildAudioTranscriptionPrompt(opts model.AudioOptions) (string, error) {
	customPrompt := strings.TrimSpace(opts.Prompt)
	if customPrompt != "" {
		return customPrompt, nil
	}

	return buildCommonMissedWordsPrompt(opts.Keywords)
}

func buildCommonMissedWordsPrompt(keywords []model.AudioKeyword) (string, error) {
	normalizedKeywords := normalizeAudioKeywords(keywords)
	if len(normalizedKeywords) == 0 {
		return "", nil
	}

	keywordsJSON, err := json.Marshal(normalizedKeywords)
	if err != nil {
		return "", err
	}

	return "Common missed words: " + string(keywordsJSON), nil
}

func normalizeAudioKeywords(keywords []model.AudioKeyword) []model.AudioKeyword {
	normalized := make([]model.AudioKeyword, 0, len(keywords))
	for _, keyword := range keywords {
		word := strings.TrimSpace(keyword.Word)
		definition := strings.TrimSpace(keyword.Definition)
		var commonMistypes []string
		for _, candidate := range keyword.CommonMistypes {
			if candidate = strings.TrimSpace(candidate); candidate != "" {
				commonMistypes = append(commonMistypes, candidate)
			}
		}

		if word == "" && definition == "" && len(commonMistypes) == 0 {
			continue
		}

		normalized = append(normalized, model.AudioKeyword{
			Word:           word,
			CommonMistypes: commonMistypes,
			Definition:     definition,
		})
	}

	if len(normalized) == 0 {
		return nil
	}
	return normalized
}

func resolveAudioTranscriptionModelName(opts model.AudioOptions) string {
	if modelName := strings.TrimSpace(opts.Model); modelName != "" {
		return modelName
	}
	return defaultAudioTranscriptionModelName
}

func resolveAudioFilename(filename string) string {
	if filename = strings.TrimSpace(filename); filename != "" {
		return filepath.Base(filename)
	}
	return defaultAudioFilename
}

func audioContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".webm":
		return "audio/webm"
	case ".mp3", ".mpga", ".mpeg":
		return "audio/mpeg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	}
	if contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); contentType != "" {
		return strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	return "application/octet-stream"
}

func cloneAudioOptions(opts model.AudioOptions) model.AudioOptions {
	cloned := opts
	if len(opts.Keywords) == 0 {
		cloned.Keywords = nil
		return cloned
	}

	cloned.Keywords = make([]model.AudioKeyword, len(opts.Keywords))
	for i, keyword := range opts.Keywords {
		clonedKeyword := keyword
		clonedKeyword.CommonMistypes = append([]string(nil), keyword.CommonMistypes...)
		cloned.Keywords[i] = clonedKeyword
	}
	return cloned
}

func initMetadata(modelName string) model.GenerationMetadata {
	if strings.TrimSpace(modelName) == "" {
		modelName = "unknown"
	}
	return model.GenerationMetadata{
		model.MetadataKeyProvider: providerName,
		model.MetadataKeyModel:    modelName,
	}
}

func setLatencyMetadata(meta model.GenerationMetadata, start time.Time) {
	if meta == nil {
		return
	}
	meta[model.MetadataKeyLatencyMs] = strconv.FormatInt(time.Since(start).Milliseconds(), 10)
}

func applyOpenAIAudioTranscriptionMetadata(
	meta model.GenerationMetadata,
	response *openai.AudioTranscriptionNewResponseUnion,
) {
	if meta == nil || response == nil {
		return
	}

	meta[model.MetadataKeyInputTokens] = strconv.FormatInt(response.Usage.InputTokens, 10)
	meta[model.MetadataKeyOutputTokens] = strconv.FormatInt(response.Usage.OutputTokens, 10)
	meta[model.MetadataKeyTotalTokens] = strconv.FormatInt(response.Usage.TotalTokens, 10)
}

var _ model.Transcriber = (*Transcriber)(nil)
