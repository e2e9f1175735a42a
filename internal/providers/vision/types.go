// Package vision describes the subject of a photo as an English prompt
// fragment for the image synthesizer.
package vision

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
)

// Instruction is the fixed request sent with every photo.
const Instruction = "Analyze the person in this photo: gender presentation, skin tone, face shape, " +
	"hairstyle and any distinguishing features such as glasses, accessories or facial hair. " +
	"Keep those traits and propose a fantasy-world costume and accessories that would suit them. " +
	"Frame the result as an upper-body game character. " +
	"Answer only with an English prompt fragment suitable for an image generator, without preamble."

// DefaultMaxTokens caps the length of the returned description.
const DefaultMaxTokens = 1000

// ImageRef points at the photo to analyze: a public URL, inline bytes, or both.
type ImageRef struct {
	URL  string
	Data []byte
	MIME string
}

// HasURL reports whether a public URL is available.
func (r ImageRef) HasURL() bool { return strings.TrimSpace(r.URL) != "" }

// HasData reports whether inline bytes are available.
func (r ImageRef) HasData() bool { return len(r.Data) > 0 }

// MIMEType returns the declared type or sniffs it from the bytes.
func (r ImageRef) MIMEType() string {
	if m := strings.TrimSpace(r.MIME); m != "" {
		return m
	}
	if r.HasData() {
		if sniffed := http.DetectContentType(r.Data); strings.HasPrefix(sniffed, "image/") {
			return sniffed
		}
	}
	return "image/jpeg"
}

// DataURI encodes the inline bytes as a data: URI.
func (r ImageRef) DataURI() string {
	return "data:" + r.MIMEType() + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
}

// Analyzer turns a photo into a description.
type Analyzer interface {
	Analyze(ctx context.Context, ref ImageRef) (string, error)
}
