package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"gamechar/internal/domain"
	"gamechar/internal/infra"
)

type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	MaxTokens  int
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// GeminiAnalyzer calls generateContent with the photo as inline data.
type GeminiAnalyzer struct {
	apiKey    string
	model     string
	baseURL   string
	maxTokens int
	client    *http.Client
	logger    *infra.Logger
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
	CandidateCount  int `json:"candidateCount,omitempty"`
}

func NewGeminiAnalyzer(opts GeminiOptions) (*GeminiAnalyzer, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-1.5-flash"
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
	return &GeminiAnalyzer{
		apiKey:    strings.TrimSpace(opts.APIKey),
		model:     model,
		baseURL:   baseURL,
		maxTokens: maxTokens,
		client:    client,
		logger:    logger,
	}, nil
}

// Analyze returns the model's description of the photo. Gemini does not
// fetch remote URLs, so the bytes are downloaded first when only a URL is given.
func (g *GeminiAnalyzer) Analyze(ctx context.Context, ref ImageRef) (string, error) {
	if !ref.HasData() {
		if !ref.HasURL() {
			return "", fmt.Errorf("%w: gemini: no image reference", domain.ErrAnalysis)
		}
		data, mime, err := g.fetch(ctx, ref.URL)
		if err != nil {
			return "", err
		}
		ref = ImageRef{URL: ref.URL, Data: data, MIME: mime}
	}
	payload := geminiRequest{
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{Text: Instruction},
				{InlineData: &geminiInlineData{MimeType: ref.MIMEType(), Data: base64.StdEncoding.EncodeToString(ref.Data)}},
			},
		}},
		GenerationConfig: &geminiGenerationConfig{MaxOutputTokens: g.maxTokens, CandidateCount: 1},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", fmt.Errorf("%w: gemini: encode request: %w", domain.ErrAnalysis, err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, url.PathEscape(g.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return "", fmt.Errorf("%w: gemini: build request: %w", domain.ErrAnalysis, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: gemini: http request: %w", domain.ErrAnalysis, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: gemini: read response: %w", domain.ErrAnalysis, err)
	}
	if resp.StatusCode >= 300 {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return "", fmt.Errorf("%w: gemini: status %d: %s", domain.ErrAnalysis, resp.StatusCode, msg)
	}

	var sb strings.Builder
	gjson.GetBytes(raw, "candidates.0.content.parts.#.text").ForEach(func(_, v gjson.Result) bool {
		sb.WriteString(v.String())
		return true
	})
	text := strings.TrimSpace(sb.String())
	if text == "" {
		reason := gjson.GetBytes(raw, "promptFeedback.blockReason").String()
		if reason != "" {
			return "", fmt.Errorf("%w: gemini: blocked: %s", domain.ErrAnalysis, reason)
		}
		return "", fmt.Errorf("%w: gemini: empty description", domain.ErrAnalysis)
	}
	g.logger.Debug().Str("model", g.model).Int("chars", len(text)).Msg("gemini: analyzed photo")
	return text, nil
}

func (g *GeminiAnalyzer) fetch(ctx context.Context, src string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimSpace(src), nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: gemini: build download request: %w", domain.ErrAnalysis, err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: gemini: download image: %w", domain.ErrAnalysis, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("%w: gemini: download status %d", domain.ErrAnalysis, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: gemini: read image: %w", domain.ErrAnalysis, err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

var _ Analyzer = (*GeminiAnalyzer)(nil)
