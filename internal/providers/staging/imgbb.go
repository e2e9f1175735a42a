// Package staging publishes input photos on imgbb so that vision providers
// which only accept URLs can read them, and revokes them afterwards.
package staging

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"gamechar/internal/domain"
	"gamechar/internal/infra"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("imgbb: api key is required")

// Options configures the imgbb client.
type Options struct {
	APIKey  string
	BaseURL string
	// Expiration asks imgbb to drop the image after this many seconds as a
	// backstop for a revoke that never happens. Zero disables it.
	Expiration int
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client talks to the imgbb upload API.
type Client struct {
	apiKey     string
	baseURL    string
	expiration int
	httpClient *http.Client
	logger     *infra.Logger
}

// NewClient constructs a client with defaults applied.
func NewClient(opts Options) (*Client, error) {
	apiKey := strings.TrimSpace(opts.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.imgbb.com/1"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.DiscardLogger()
		logger = &l
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		expiration: opts.Expiration,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Stage uploads the image and returns its public URL and delete URL.
func (c *Client) Stage(ctx context.Context, image []byte) (domain.StagingHandle, error) {
	if len(image) == 0 {
		return domain.StagingHandle{}, fmt.Errorf("%w: %w", domain.ErrStaging, domain.ErrEmptyImage)
	}
	form := url.Values{}
	form.Set("key", c.apiKey)
	form.Set("image", base64.StdEncoding.EncodeToString(image))
	if c.expiration > 0 {
		form.Set("expiration", strconv.Itoa(c.expiration))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", strings.NewReader(form.Encode()))
	if err != nil {
		return domain.StagingHandle{}, fmt.Errorf("%w: imgbb: build request: %w", domain.ErrStaging, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.StagingHandle{}, fmt.Errorf("%w: imgbb: http request: %w", domain.ErrStaging, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.StagingHandle{}, fmt.Errorf("%w: imgbb: read response: %w", domain.ErrStaging, err)
	}
	if resp.StatusCode >= 300 {
		msg := gjson.GetBytes(raw, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(raw))
		}
		return domain.StagingHandle{}, fmt.Errorf("%w: imgbb: status %d: %s", domain.ErrStaging, resp.StatusCode, msg)
	}
	if !gjson.GetBytes(raw, "success").Bool() {
		return domain.StagingHandle{}, fmt.Errorf("%w: imgbb: upload not successful", domain.ErrStaging)
	}
	handle := domain.StagingHandle{
		PublicURL:       gjson.GetBytes(raw, "data.url").String(),
		RevocationToken: gjson.GetBytes(raw, "data.delete_url").String(),
	}
	if handle.PublicURL == "" {
		return domain.StagingHandle{}, fmt.Errorf("%w: imgbb: response missing data.url", domain.ErrStaging)
	}
	c.logger.Debug().
		Str("url", handle.PublicURL).
		Bool("revocable", handle.RevocationToken != "").
		Msg("imgbb: staged image")
	return handle, nil
}

// Revoke requests deletion of a staged image. It reports true only when the
// provider answered 200.
func (c *Client) Revoke(ctx context.Context, handle domain.StagingHandle) bool {
	target := strings.TrimSpace(handle.RevocationToken)
	if target == "" {
		c.logger.Warn().Str("url", handle.PublicURL).Msg("imgbb: no delete url to revoke")
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		c.logger.Warn().Err(err).Msg("imgbb: build revoke request")
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("url", handle.PublicURL).Msg("imgbb: revoke request failed")
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Str("url", handle.PublicURL).Msg("imgbb: revoke rejected")
		return false
	}
	c.logger.Debug().Str("url", handle.PublicURL).Msg("imgbb: revoked image")
	return true
}
