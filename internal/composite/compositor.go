// Package composite stamps the kiosk watermark onto generated portraits and
// renders input previews.
package composite

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"gamechar/internal/domain"
	"gamechar/internal/infra"
)

const (
	defaultOffset           = 10
	defaultCacheTTL         = time.Hour
	defaultMaxDownloadBytes = 32 << 20
)

// Options configures a Compositor. Zero offsets are honoured; use
// DefaultOptions for the standard (10,10) placement.
type Options struct {
	HTTPClient       *http.Client
	OffsetX          int
	OffsetY          int
	CacheTTL         time.Duration
	MaxDownloadBytes int64
	Logger           *infra.Logger
}

// DefaultOptions returns the standard placement and cache settings.
func DefaultOptions() Options {
	return Options{OffsetX: defaultOffset, OffsetY: defaultOffset, CacheTTL: defaultCacheTTL}
}

// Compositor downloads a base image and a watermark and overlays them.
type Compositor struct {
	client   *http.Client
	offset   image.Point
	maxBytes int64
	cache    *cache.Cache
	logger   *infra.Logger
}

func New(opts Options) *Compositor {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	maxBytes := opts.MaxDownloadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxDownloadBytes
	}
	logger := opts.Logger
	if logger == nil {
		l := infra.DiscardLogger()
		logger = &l
	}
	return &Compositor{
		client:   client,
		offset:   image.Pt(opts.OffsetX, opts.OffsetY),
		maxBytes: maxBytes,
		cache:    cache.New(ttl, 2*ttl),
		logger:   logger,
	}
}

// Composite returns PNG bytes of the image at imageURL with the watermark
// drawn unscaled at the configured offset.
func (c *Compositor) Composite(ctx context.Context, imageURL, watermarkURL string) ([]byte, error) {
	var baseRaw, markRaw []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := c.download(gctx, imageURL)
		if err != nil {
			return fmt.Errorf("download image: %w", err)
		}
		baseRaw = raw
		return nil
	})
	g.Go(func() error {
		raw, err := c.watermark(gctx, watermarkURL)
		if err != nil {
			return fmt.Errorf("download watermark: %w", err)
		}
		markRaw = raw
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrComposition, err)
	}

	base, _, err := image.Decode(bytes.NewReader(baseRaw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode image: %w", domain.ErrComposition, err)
	}
	mark, _, err := image.Decode(bytes.NewReader(markRaw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode watermark: %w", domain.ErrComposition, err)
	}

	out, err := encodePNG(Overlay(base, mark, c.offset))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrComposition, err)
	}
	c.logger.Debug().
		Int("width", base.Bounds().Dx()).
		Int("height", base.Bounds().Dy()).
		Int("bytes", len(out)).
		Msg("composite: watermarked portrait")
	return out, nil
}

// Overlay draws mark onto a copy of base with its top-left corner at offset.
// The watermark is normalised to NRGBA first so sources without an alpha
// channel composite correctly.
func Overlay(base, mark image.Image, offset image.Point) *image.RGBA {
	bb := base.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, bb.Dx(), bb.Dy()))
	draw.Draw(canvas, canvas.Bounds(), base, bb.Min, draw.Src)

	alpha := toNRGBA(mark)
	r := alpha.Bounds().Add(offset)
	draw.Draw(canvas, r, alpha, alpha.Bounds().Min, draw.Over)
	return canvas
}

func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

func (c *Compositor) watermark(ctx context.Context, src string) ([]byte, error) {
	key := strings.TrimSpace(src)
	if cached, ok := c.cache.Get(key); ok {
		return cached.([]byte), nil
	}
	raw, err := c.download(ctx, key)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, raw)
	return raw, nil
}

func (c *Compositor) download(ctx context.Context, src string) ([]byte, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("empty url")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > c.maxBytes {
		return nil, fmt.Errorf("payload exceeds %d bytes", c.maxBytes)
	}
	return raw, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
