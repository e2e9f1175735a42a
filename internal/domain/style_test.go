package domain

import (
	"errors"
	"testing"
)

func TestDefaultStyleCatalogTemplates(t *testing.T) {
	c := DefaultStyleCatalog()
	want := "portrait of super deformed 2D pixel art retro game character. showing character portrait only. not showing character chart, color palette, inventory or something."
	got, err := c.Template(StylePixelArt)
	if err != nil {
		t.Fatalf("Template() error = %v", err)
	}
	if got != want {
		t.Fatalf("Template(pixel-art) = %q, want %q", got, want)
	}
}

func TestStyleCatalogResolve(t *testing.T) {
	c := DefaultStyleCatalog()
	cases := map[string]Style{
		"pixel-art":       StylePixelArt,
		" Pixel_Art ":     StylePixelArt,
		"2D Illustration": StyleIllustration2D,
		"3d-render":       StyleRender3D,
	}
	for in, want := range cases {
		got, err := c.Resolve(in)
		if err != nil {
			t.Fatalf("Resolve(%q) error = %v", in, err)
		}
		if got != want {
			t.Fatalf("Resolve(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := c.Resolve("oil painting"); !errors.Is(err, ErrUnknownStyle) {
		t.Fatalf("Resolve(oil painting) error = %v, want ErrUnknownStyle", err)
	}
}

func TestStyleCatalogListSorted(t *testing.T) {
	list := DefaultStyleCatalog().List()
	if len(list) != 3 {
		t.Fatalf("len = %d, want 3", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i-1].Style > list[i].Style {
			t.Fatalf("List() not sorted: %q before %q", list[i-1].Style, list[i].Style)
		}
	}
}

func TestJobNeedsCleanup(t *testing.T) {
	j := &Job{Phase: PhaseStaged, Staging: &StagingHandle{PublicURL: "u", RevocationToken: "d"}}
	if j.NeedsCleanup() {
		t.Fatalf("non-terminal job should not need cleanup")
	}
	j.Phase = PhaseFailed
	if !j.NeedsCleanup() {
		t.Fatalf("failed staged job should need cleanup")
	}
	j.StagingRevoked = true
	if j.NeedsCleanup() {
		t.Fatalf("revoked job should not need cleanup")
	}
}
