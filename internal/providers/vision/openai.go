package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"gamechar/internal/domain"
	"gamechar/internal/infra"
)

// ErrMissingAPIKey indicates that a client was configured without credentials.
var ErrMissingAPIKey = errors.New("vision: api key is required")

type OpenAIOptions struct {
	APIKey       string
	Model        string
	BaseURL      string
	Organization string
	MaxTokens    int
	// Inline sends the photo as a data URI instead of its public URL.
	Inline     bool
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// OpenAIAnalyzer calls the chat completions endpoint with an image part.
type OpenAIAnalyzer struct {
	apiKey       string
	model        string
	baseURL      string
	organization string
	maxTokens    int
	inline       bool
	client       *http.Client
	logger       *infra.Logger
}

type openAIChatRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string       `json:"role"`
	Content []openAIPart `json:"content"`
}

type openAIPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

func NewOpenAIAnalyzer(opts OpenAIOptions) (*OpenAIAnalyzer, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gpt-4o"
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.DiscardLogger()
		logger = &l
	}
	return &OpenAIAnalyzer{
		apiKey:       strings.TrimSpace(opts.APIKey),
		model:        model,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		maxTokens:    maxTokens,
		inline:       opts.Inline,
		client:       client,
		logger:       logger,
	}, nil
}

// Analyze returns the model's description of the photo.
func (o *OpenAIAnalyzer) Analyze(ctx context.Context, ref ImageRef) (string, error) {
	imageURL, err := o.imageURL(ref)
	if err != nil {
		return "", err
	}
	payload := openAIChatRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages: []openAIMessage{{
			Role: "user",
			Content: []openAIPart{
				{Type: "text", Text: Instruction},
				{Type: "image_url", ImageURL: &openAIImageURL{URL: imageURL}},
			},
		}},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", fmt.Errorf("%w: openai: encode request: %w", domain.ErrAnalysis, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", &buf)
	if err != nil {
		return "", fmt.Errorf("%w: openai: build request: %w", domain.ErrAnalysis, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	if o.organization != "" {
		req.Header.Set("OpenAI-Organization", o.organization)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: openai: http request: %w", domain.ErrAnalysis, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: openai: read response: %w", domain.ErrAnalysis, err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: openai: status %d: %s", domain.ErrAnalysis, resp.StatusCode, openAIErrorMessage(raw))
	}
	text := strings.TrimSpace(gjson.GetBytes(raw, "choices.0.message.content").String())
	if text == "" {
		return "", fmt.Errorf("%w: openai: empty description", domain.ErrAnalysis)
	}
	o.logger.Debug().
		Str("model", o.model).
		Bool("inline", o.inline).
		Int("chars", len(text)).
		Msg("openai: analyzed photo")
	return text, nil
}

func (o *OpenAIAnalyzer) imageURL(ref ImageRef) (string, error) {
	switch {
	case o.inline && ref.HasData():
		return ref.DataURI(), nil
	case ref.HasURL():
		return strings.TrimSpace(ref.URL), nil
	case ref.HasData():
		return ref.DataURI(), nil
	default:
		return "", fmt.Errorf("%w: openai: no image reference", domain.ErrAnalysis)
	}
}

func openAIErrorMessage(raw []byte) string {
	if msg := gjson.GetBytes(raw, "error.message").String(); msg != "" {
		return msg
	}
	return strings.TrimSpace(string(raw))
}

var _ Analyzer = (*OpenAIAnalyzer)(nil)
