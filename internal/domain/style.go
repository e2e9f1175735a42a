package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Style selects a prompt template for the image synthesizer.
type Style string

const (
	StylePixelArt       Style = "pixel-art"
	StyleIllustration2D Style = "2d-illustration"
	StyleRender3D       Style = "3d-render"
)

// StyleInfo describes one entry of the style catalog.
type StyleInfo struct {
	Style    Style  `json:"style"`
	Label    string `json:"label"`
	Template string `json:"template"`
}

// StyleCatalog maps styles to their synthesis prompt templates. It is plain
// configuration injected into the synthesizer so new styles need no code.
type StyleCatalog struct {
	entries map[Style]StyleInfo
}

// DefaultStyleCatalog returns the built-in pixel-art, 2D and 3D templates.
func DefaultStyleCatalog() *StyleCatalog {
	return NewStyleCatalog([]StyleInfo{
		{
			Style:    StylePixelArt,
			Label:    "Pixel art (retro game)",
			Template: "portrait of super deformed 2D pixel art retro game character. showing character portrait only. not showing character chart, color palette, inventory or something.",
		},
		{
			Style:    StyleIllustration2D,
			Label:    "2D illustration (anime)",
			Template: "portrait of 2D illustrated anime character. showing character portrait only. not showing character chart, color palette, inventory or something. anime style",
		},
		{
			Style:    StyleRender3D,
			Label:    "3D game character",
			Template: "portrait of super deformed 3D rendered game character like overwatch. showing character portrait only. not showing character chart, color palette, inventory or something.",
		},
	})
}

// NewStyleCatalog builds a catalog from entries; later entries override earlier ones.
func NewStyleCatalog(entries []StyleInfo) *StyleCatalog {
	c := &StyleCatalog{entries: make(map[Style]StyleInfo, len(entries))}
	for _, e := range entries {
		c.Set(e)
	}
	return c
}

// Set adds or replaces a catalog entry.
func (c *StyleCatalog) Set(info StyleInfo) {
	info.Style = NormalizeStyle(string(info.Style))
	if info.Label == "" {
		info.Label = string(info.Style)
	}
	c.entries[info.Style] = info
}

// Lookup returns the entry for a style.
func (c *StyleCatalog) Lookup(style Style) (StyleInfo, bool) {
	if c == nil {
		return StyleInfo{}, false
	}
	info, ok := c.entries[NormalizeStyle(string(style))]
	return info, ok
}

// Resolve validates a user supplied style name against the catalog.
func (c *StyleCatalog) Resolve(name string) (Style, error) {
	style := NormalizeStyle(name)
	if _, ok := c.Lookup(style); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStyle, name)
	}
	return style, nil
}

// Template returns the synthesis prompt prefix for a style.
func (c *StyleCatalog) Template(style Style) (string, error) {
	info, ok := c.Lookup(style)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStyle, style)
	}
	return info.Template, nil
}

// List returns entries ordered by style name.
func (c *StyleCatalog) List() []StyleInfo {
	if c == nil {
		return nil
	}
	out := make([]StyleInfo, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Style < out[j].Style })
	return out
}

// NormalizeStyle lowercases a style name and folds separators to dashes.
func NormalizeStyle(name string) Style {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer("_", "-", " ", "-").Replace(name)
	return Style(name)
}
