package stylecfg

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"gamechar/internal/domain"
)

// StyleEntry is one style as written in a catalog override file.
type StyleEntry struct {
	Name     string `mapstructure:"name" json:"name"`
	Label    string `mapstructure:"label" json:"label"`
	Template string `mapstructure:"template" json:"template"`
}

// CatalogFile is the on-disk shape of a style catalog override.
type CatalogFile struct {
	Version string       `mapstructure:"version" json:"version"`
	Replace bool         `mapstructure:"replace" json:"replace"`
	Styles  []StyleEntry `mapstructure:"styles" json:"styles"`
}

const (
	// DefaultCatalogVersion is assumed when the file omits a version.
	DefaultCatalogVersion = "2024-06"
	// MaxTemplateLength bounds a template so the full synthesis prompt stays
	// well under the provider limit once the description is appended.
	MaxTemplateLength = 1000
)

// Normalize trims whitespace, folds style names and fills defaults.
func (c *CatalogFile) Normalize() {
	if c == nil {
		return
	}
	if c.Version == "" {
		c.Version = DefaultCatalogVersion
	}
	for i := range c.Styles {
		e := &c.Styles[i]
		e.Name = string(domain.NormalizeStyle(e.Name))
		e.Label = strings.TrimSpace(e.Label)
		e.Template = strings.TrimSpace(e.Template)
		if e.Label == "" {
			e.Label = e.Name
		}
	}
}

// Validate reports the first invalid entry.
func (c CatalogFile) Validate() error {
	seen := make(map[string]struct{}, len(c.Styles))
	for i, e := range c.Styles {
		if e.Name == "" {
			return fmt.Errorf("styles[%d]: name is required", i)
		}
		if _, dup := seen[e.Name]; dup {
			return fmt.Errorf("styles[%d]: duplicate style %q", i, e.Name)
		}
		seen[e.Name] = struct{}{}
		if e.Template == "" {
			return fmt.Errorf("styles[%d]: template is required", i)
		}
		if len(e.Template) > MaxTemplateLength {
			return fmt.Errorf("styles[%d]: template exceeds %d characters", i, MaxTemplateLength)
		}
	}
	if c.Replace && len(c.Styles) == 0 {
		return fmt.Errorf("replace requires at least one style")
	}
	return nil
}

// Apply merges the file into base, or replaces it entirely when Replace is set.
func (c CatalogFile) Apply(base *domain.StyleCatalog) *domain.StyleCatalog {
	entries := make([]domain.StyleInfo, 0, len(c.Styles))
	for _, e := range c.Styles {
		entries = append(entries, domain.StyleInfo{
			Style:    domain.Style(e.Name),
			Label:    e.Label,
			Template: e.Template,
		})
	}
	if c.Replace || base == nil {
		return domain.NewStyleCatalog(entries)
	}
	merged := domain.NewStyleCatalog(base.List())
	for _, e := range entries {
		merged.Set(e)
	}
	return merged
}

// Load reads a YAML, JSON or TOML catalog override. An empty path yields the
// built-in catalog.
func Load(path string) (*domain.StyleCatalog, error) {
	base := domain.DefaultStyleCatalog()
	path = strings.TrimSpace(path)
	if path == "" {
		return base, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("stylecfg: read %s: %w", path, err)
	}
	var file CatalogFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("stylecfg: decode %s: %w", path, err)
	}
	file.Normalize()
	if err := file.Validate(); err != nil {
		return nil, fmt.Errorf("stylecfg: %s: %w", path, err)
	}
	return file.Apply(base), nil
}
