package huggingface

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/sheetscribe/pkg/logging"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/model"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/utils"
)

// Transcriber posts raw audio to a Hugging Face automatic speech recognition
// model. Prompt and keyword hints are not supported by that task and are ignored.
type Transcriber struct {
	client    *apiClient
	modelName string
}

func NewTranscriber(opts model.AudioOptions) (*Transcriber, error) {
	client, err := newAPIClient(opts)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	modelName := strings.TrimSpace(opts.Model)
	if modelName == "" {
		modelName = defaultModelName
	}
	return &Transcriber{client: client, modelName: modelName}, nil
}

func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, model.GenerationMetadata, error) {
	start := time.Now()
	meta := initMetadata(t.modelName)
	meta[model.MetadataKeyAudioBytes] = strconv.Itoa(len(audio))
	defer setLatencyMetadata(meta, start)

	log := logging.NewLogger(ctx)
	if len(audio) == 0 {
		err := errors.New("audio is empty")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	contentType := audioContentType(filename)
	log.Infof("audio_transcription_request provider=%s model=%q mime=%s bytes=%d", providerName, t.modelName, contentType, len(audio))

	response, err := t.client.recognizeSpeech(ctx, t.modelName, contentType, audio)
	if err != nil {
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}

	transcript := strings.TrimSpace(response.Text)
	if transcript == "" {
		err = errors.New("transcription response is empty")
		log.Errorf("error: %v", err)
		return "", meta, utils.WrapIfNotNil(err)
	}
	return transcript, meta, nil
}

func audioContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(filename))) {
	case ".wav":
		return "audio/wav"
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	}
	return "audio/webm"
}

var _ model.Transcriber = (*Transcriber)(nil)
