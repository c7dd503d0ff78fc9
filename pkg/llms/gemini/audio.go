package gemini

import (
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
	"google.golang.org/genai"
)

const baseTranscriptionPrompt = "Transcribe this audio accurately. Return only the transcript text."

// Transcriber sends inline audio to a Gemini model and returns its transcript.
type Transcriber struct {
	client *genai.Client
	opts   model.AudioOptions
}

func NewTranscriber(ctx context.Context, opts model.AudioOptions) (*Transcriber, error) {
	client, err := newAPIClient(ctx, opts)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return &Transcriber{
		client: client,
		opts:   cloneAudioOptions(opts),
	}, nil
}

func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, model.GenerationMetadata, error) {
	start := time.Now()
	modelName := resolveAudioTranscriptionModelName(t.opts)
	meta := initMetadata(modelName)
	meta[model.MetadataKeyAudioBytes] = strconv.Itoa(len(audio))
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	if len(audio) == 0 {
		err := errors.New("audio is empty")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	mimeType, err := resolveAudioMIMEType(filename)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	prompt, err := buildAudioTranscriptionPrompt(t.opts)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	log.Infof("audio_transcription_request provider=%s model=%q mime=%s bytes=%d", providerName, modelName, mimeType, len(audio))
	contents := []*genai.Content{
		genai.NewContentFromParts(
			[]*genai.Part{
				genai.NewPartFromText(prompt),
				genai.NewPartFromBytes(audio, mimeType),
			},
			genai.RoleUser,
		),
	}

	response, err := t.client.Models.GenerateContent(ctx, modelName, contents, &genai.GenerateContentConfig{})
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	applyAudioTranscriptionMetadata(meta, response)
	transcript := strings.TrimSpace(response.Text())
	if transcript == "" {
		err = errors.New("transcription response is empty")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	return transcript, meta, nil
}

func resolveAudioTranscriptionModelName(opts model.AudioOptions) string {
	if modelName := strings.TrimSpace(opts.Model); modelName != "" {
		return modelName
	}
	return defaultGenerationModelName
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

// buildAudioTranscriptionPrompt always leads with the base instruction since
// Gemini has no dedicated transcription endpoint.
func buildAudioTranscriptionPrompt(opts model.AudioOptions) (string, error) {
	if custom := strings.TrimSpace(opts.Prompt); custom != "" {
		return baseTranscriptionPrompt + " " + custom, nil
	}

	missed, err := buildCommonMissedWordsPrompt(opts.Keywords)
	if err != nil {
		return "", err
	}
	if missed == "" {
		return baseTranscriptionPrompt, nil
	}
	return baseTranscriptionPrompt + " " + missed, nil
}

func buildCommonMissedWordsPrompt(keywords []model.AudioKeyword) (string, error) {
	normalized := make([]model.AudioKeyword, 0, len(keywords))
	for _, keyword := range keywords {
		word := strings.TrimSpace(keyword.Word)
		definition := strings.TrimSpace(keyword.Definition)
		var mistypes []string
		for _, candidate := range keyword.CommonMistypes {
			if candidate = strings.TrimSpace(candidate); candidate != "" {
				mistypes = append(mistypes, candidate)
			}
		}
		if word == "" && definition == "" && len(mistypes) == 0 {
			continue
		}
		normalized = append(normalized, model.AudioKeyword{Word: word, CommonMistypes: mistypes, Definition: definition})
	}
	if len(normalized) == 0 {
		return "", nil
	}

	payload, err := json.Marshal(normalized)
	if err != nil {
		return "", err
	}
	return "Common missed words: " + string(payload), nil
}

func resolveAudioMIMEType(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(strings.TrimSpace(filename)))
	if ext == "" {
		// Drive recordings in the sheet are webm without an extension hint.
		return "audio/webm", nil
	}

	switch ext {
	case ".wav":
		return "audio/wav", nil
	case ".mp3":
		return "audio/mpeg", nil
	case ".m4a", ".mp4":
		return "audio/mp4", nil
	case ".webm":
		return "audio/webm", nil
	case ".ogg":
		return "audio/ogg", nil
	case ".flac":
		return "audio/flac", nil
	case ".aac":
		return "audio/aac", nil
	}

	mimeType := mime.TypeByExtension(ext)
	if mimeType == "" {
		return "", utils.WrapIfNotNil(errors.New("unsupported audio file extension: " + ext))
	}

	// Strip parameters such as "; charset=utf-8".
	mimeType = strings.TrimSpace(strings.Split(mimeType, ";")[0])
	if !strings.HasPrefix(mimeType, "audio/") {
		return "", utils.WrapIfNotNil(errors.New("unsupported audio mime type: " + mimeType))
	}
	return mimeType, nil
}

func applyAudioTranscriptionMetadata(meta model.GenerationMetadata, response *genai.GenerateContentResponse) {
	if meta == nil || response == nil {
		return
	}
	if usage := response.UsageMetadata; usage != nil {
		meta[model.MetadataKeyInputTokens] = strconv.Itoa(int(usage.PromptTokenCount))
		meta[model.MetadataKeyOutputTokens] = strconv.Itoa(int(usage.CandidatesTokenCount))
		meta[model.MetadataKeyTotalTokens] = strconv.Itoa(int(usage.TotalTokenCount))
	}
	if strings.TrimSpace(response.ResponseID) != "" {
		meta[model.MetadataKeyResponseID] = response.ResponseID
	}
	if len(response.Candidates) > 0 && response.Candidates[0] != nil {
		meta[model.MetadataKeyResponseStatus] = string(response.Candidates[0].FinishReason)
	}
}

var _ model.Transcriber = (*Transcriber)(nil)
