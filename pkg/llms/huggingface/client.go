package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/sheetscribe/pkg/model"
	"github.com/Nephrolytics-ai/sheetscribe/pkg/utils"
)

const (
	providerName       = "huggingface"
	defaultModelName   = "openai/whisper-large-v3"
	defaultBaseURL     = "https://router.huggingface.co/hf-inference"
	defaultHTTPTimeout = 180 * time.Second
	envHFToken         = "HF_TOKEN"
	envHFBaseURL       = "HF_BASE_URL"
)

type apiClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

type recognitionResponse struct {
	Text string `json:"text"`
}

// The inference router reports errors either as a bare string or as an
// OpenAI style object.
type recognitionErrorResponse struct {
	Error json.RawMessage `json:"error"`
}

func newAPIClient(opts model.AudioOptions) (*apiClient, error) {
	apiKey := strings.TrimSpace(opts.AuthToken)
	if apiKey == "" {
		apiKey = strings.TrimSpace(os.Getenv(envHFToken))
	}
	if apiKey == "" {
		return nil, utils.WrapIfNotNil(errors.New("auth token is required (set HF_TOKEN)"))
	}

	baseURL := strings.TrimSpace(opts.URL)
	if baseURL == "" {
		baseURL = strings.TrimSpace(os.Getenv(envHFBaseURL))
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &apiClient{
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:    baseURL,
		apiKey:     apiKey,
	}, nil
}

func (c *apiClient) recognizeSpeech(ctx context.Context, modelName, contentType string, audio []byte) (*recognitionResponse, error) {
	httpRequest, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/models/"+modelName,
		bytes.NewReader(audio),
	)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	httpRequest.Header.Set("Content-Type", contentType)
	httpRequest.Header.Set("Accept", "application/json")
	httpRequest.Header.Set("Authorization", "Bearer "+c.apiKey)

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	defer httpResponse.Body.Close()

	responseBits, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return nil, utils.WrapIfNotNil(err)
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		return nil, utils.WrapIfNotNil(fmt.Errorf(
			"huggingface API error (%d): %s", httpResponse.StatusCode, apiErrorMessage(responseBits),
		))
	}

	response := recognitionResponse{}
	if err := json.Unmarshal(responseBits, &response); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return &response, nil
}

func apiErrorMessage(body []byte) string {
	message := strings.TrimSpace(string(body))
	apiErr := recognitionErrorResponse{}
	if err := json.Unmarshal(body, &apiErr); err == nil && len(apiErr.Error) > 0 {
		var text string
		var object struct {
			Message string `json:"message"`
		}
		switch {
		case json.Unmarshal(apiErr.Error, &text) == nil && strings.TrimSpace(text) != "":
			message = strings.TrimSpace(text)
		case json.Unmarshal(apiErr.Error, &object) == nil && strings.TrimSpace(object.Message) != "":
			message = strings.TrimSpace(object.Message)
		}
	}
	if message == "" {
		message = "unknown huggingface error"
	}
	return message
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
