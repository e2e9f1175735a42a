// Package synth generates the character portrait from a style template and
// the vision description.
package synth

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

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("synth: api key is required")

// Options configures the OpenAI images client.
type Options struct {
	APIKey       string
	BaseURL      string
	Organization string
	Model        string
	Size         string
	Quality      string
	Catalog      *domain.StyleCatalog
	HTTPClient   *http.Client
	Logger       *infra.Logger
}

// Client calls the images/generations endpoint.
type Client struct {
	apiKey       string
	baseURL      string
	organization string
	model        string
	size         string
	quality      string
	catalog      *domain.StyleCatalog
	httpClient   *http.Client
	logger       *infra.Logger
}

type generationRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Size    string `json:"size"`
	Quality string `json:"quality"`
	N       int    `json:"n"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "dall-e-3"
	}
	size := strings.TrimSpace(opts.Size)
	if size == "" {
		size = "1024x1024"
	}
	quality := strings.TrimSpace(opts.Quality)
	if quality == "" {
		quality = "standard"
	}
	catalog := opts.Catalog
	if catalog == nil {
		catalog = domain.DefaultStyleCatalog()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 180 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.DiscardLogger()
		logger = &l
	}
	return &Client{
		apiKey:       apiKey,
		baseURL:      baseURL,
		organization: strings.TrimSpace(opts.Organization),
		model:        model,
		size:         size,
		quality:      quality,
		catalog:      catalog,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// BuildPrompt joins a style template and a description.
func BuildPrompt(template, description string) string {
	return template + ", " + description
}

// Prompt returns the full synthesis prompt for style and description.
func (c *Client) Prompt(style domain.Style, description string) (string, error) {
	template, err := c.catalog.Template(style)
	if err != nil {
		return "", err
	}
	return BuildPrompt(template, description), nil
}

// Synthesize requests one square image and returns its provider-hosted URL.
func (c *Client) Synthesize(ctx context.Context, style domain.Style, description string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", fmt.Errorf("%w: empty description", domain.ErrSynthesis)
	}
	prompt, err := c.Prompt(style, description)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrSynthesis, err)
	}
	body, err := json.Marshal(generationRequest{
		Model:   c.model,
		Prompt:  prompt,
		Size:    c.size,
		Quality: c.quality,
		N:       1,
	})
	if err != nil {
		return "", fmt.Errorf("%w: openai: encode request: %w", domain.ErrSynthesis, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: openai: build request: %w", domain.ErrSynthesis, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.organization != "" {
		req.Header.Set("OpenAI-Organization", c.organization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: openai: http request: %w", domain.ErrSynthesis, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: openai: read response: %w", domain.ErrSynthesis, err)
	}
	if resp.StatusCode >= 300 {
		code := gjson.GetBytes(raw, "error.code").String()
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		if code != "" {
			return "", fmt.Errorf("%w: openai: %s (%s)", domain.ErrSynthesis, msg, code)
		}
		return "", fmt.Errorf("%w: openai: status %d: %s", domain.ErrSynthesis, resp.StatusCode, msg)
	}
	imageURL := strings.TrimSpace(gjson.GetBytes(raw, "data.0.url").String())
	if imageURL == "" {
		return "", fmt.Errorf("%w: openai: empty image url", domain.ErrSynthesis)
	}
	c.logger.Debug().
		Str("model", c.model).
		Str("style", string(style)).
		Str("revised_prompt", gjson.GetBytes(raw, "data.0.revised_prompt").String()).
		Msg("openai: synthesized portrait")
	return imageURL, nil
}
