package synth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"gamechar/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestSynthesizePixelArtPrompt(t *testing.T) {
	var payload generationRequest
	c, err := NewClient(Options{
		APIKey: "sk-test",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.URL.Path != "/v1/images/generations" {
				t.Fatalf("path = %q", r.URL.Path)
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Fatalf("decode: %v", err)
			}
			return jsonResponse(200, `{"created":1,"data":[{"url":"https://oaidalle.example/img.png","revised_prompt":"r"}]}`), nil
		})},
	})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	got, err := c.Synthesize(context.Background(), domain.StylePixelArt, "young man with glasses")
	if err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	if got != "https://oaidalle.example/img.png" {
		t.Fatalf("url = %q", got)
	}
	want := "portrait of super deformed 2D pixel art retro game character. showing character portrait only. not showing character chart, color palette, inventory or something., young man with glasses"
	if payload.Prompt != want {
		t.Fatalf("prompt = %q, want %q", payload.Prompt, want)
	}
	if payload.Model != "dall-e-3" || payload.Size != "1024x1024" || payload.Quality != "standard" || payload.N != 1 {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestSynthesizeCustomCatalog(t *testing.T) {
	var payload generationRequest
	catalog := domain.NewStyleCatalog([]domain.StyleInfo{{Style: "noir", Template: "film noir portrait"}})
	c, _ := NewClient(Options{
		APIKey:  "sk-test",
		Catalog: catalog,
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			_ = json.NewDecoder(r.Body).Decode(&payload)
			return jsonResponse(200, `{"data":[{"url":"https://x/y.png"}]}`), nil
		})},
	})
	if _, err := c.Synthesize(context.Background(), "noir", "detective"); err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	if payload.Prompt != "film noir portrait, detective" {
		t.Fatalf("prompt = %q", payload.Prompt)
	}
}

func TestSynthesizeFailures(t *testing.T) {
	okRT := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(200, `{"data":[{"url":"https://x/y.png"}]}`), nil
	})
	cases := []struct {
		name        string
		style       domain.Style
		description string
		rt          roundTripFunc
		contains    string
	}{
		{name: "policy refusal", style: domain.StyleRender3D, description: "d", rt: func(*http.Request) (*http.Response, error) {
			return jsonResponse(400, `{"error":{"code":"content_policy_violation","message":"Your request was rejected as a result of our safety system."}}`), nil
		}, contains: "content_policy_violation"},
		{name: "timeout", style: domain.StyleRender3D, description: "d", rt: func(*http.Request) (*http.Response, error) {
			return nil, context.DeadlineExceeded
		}},
		{name: "empty data", style: domain.StyleRender3D, description: "d", rt: func(*http.Request) (*http.Response, error) {
			return jsonResponse(200, `{"data":[]}`), nil
		}},
		{name: "empty description", style: domain.StyleRender3D, description: "  ", rt: okRT},
		{name: "unknown style", style: "oil", description: "d", rt: okRT, contains: "unknown style"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := NewClient(Options{APIKey: "sk", HTTPClient: &http.Client{Transport: tc.rt}})
			_, err := c.Synthesize(context.Background(), tc.style, tc.description)
			if !errors.Is(err, domain.ErrSynthesis) {
				t.Fatalf("Synthesize error = %v, want ErrSynthesis", err)
			}
			if tc.contains != "" && !strings.Contains(err.Error(), tc.contains) {
				t.Fatalf("error %q missing %q", err, tc.contains)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	if got := BuildPrompt("a", "b"); got != "a, b" {
		t.Fatalf("BuildPrompt = %q", got)
	}
}

func TestSynthesizeKeepsDescriptionVerbatim(t *testing.T) {
	var payload generationRequest
	catalog := domain.NewStyleCatalog([]domain.StyleInfo{{Style: "noir", Template: "film noir portrait"}})
	c, _ := NewClient(Options{
		APIKey:  "sk-test",
		Catalog: catalog,
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			_ = json.NewDecoder(r.Body).Decode(&payload)
			return jsonResponse(200, `{"data":[{"url":"https://x/y.png"}]}`), nil
		})},
	})
	if _, err := c.Synthesize(context.Background(), "noir", " detective in a trench coat\n"); err != nil {
		t.Fatalf("Synthesize error: %v", err)
	}
	if want := "film noir portrait,  detective in a trench coat\n"; payload.Prompt != want {
		t.Fatalf("prompt = %q, want %q", payload.Prompt, want)
	}
}
