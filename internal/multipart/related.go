// Package multipart implements the multipart/related wire format used by
// both batch ingest requests and multi-object retrieval responses. It is one
// bidirectional codec, independent of any HTTP framework.
package multipart

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

var (
	// ErrInvalidBoundary is returned when a boundary contains whitespace, a
	// double quote, or a backslash.
	ErrInvalidBoundary = errors.New("multipart: invalid boundary")

	// ErrEmptyMessage is returned when building a message with no parts.
	ErrEmptyMessage = errors.New("multipart: no parts in message")

	// ErrStartNotFound is returned when the configured start Content-ID does
	// not match any part.
	ErrStartNotFound = errors.New("multipart: referenced start Content-ID not found")

	// ErrNotMultipartRelated is returned when the declared media type of an
	// incoming message is not multipart/related.
	ErrNotMultipartRelated = errors.New("multipart: not a multipart/related message")
)

// Part is a single typed binary part of a multipart/related message.
type Part struct {
	ContentType      string
	ContentID        string
	TransferEncoding string
	Body             []byte
}

// NewPart creates a part with the given content type and payload.
func NewPart(contentType string, body []byte) Part {
	return Part{ContentType: contentType, Body: body}
}

// WithID sets the Content-ID header for this part.
func (p Part) WithID(id string) Part {
	p.ContentID = id
	return p
}

// WithEncoding sets the Content-Transfer-Encoding header for this part.
func (p Part) WithEncoding(encoding string) Part {
	p.TransferEncoding = encoding
	return p
}

func (p Part) formatHeaders(boundary string) string {
	headers := []string{
		"--" + boundary,
		"Content-Type: " + p.ContentType,
	}
	if p.ContentID != "" {
		headers = append(headers, fmt.Sprintf("Content-ID: <%s>", p.ContentID))
	}
	if p.TransferEncoding != "" {
		headers = append(headers, "Content-Transfer-Encoding: "+p.TransferEncoding)
	}
	return strings.Join(headers, "\r\n") + "\r\n\r\n"
}

// Config describes the outer media type of a multipart/related message.
type Config struct {
	boundary string
	rootType string
	start    string
}

// NewConfig validates the boundary and returns a config for it.
func NewConfig(boundary string) (Config, error) {
	if strings.ContainsFunc(boundary, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '"' || r == '\\'
	}) {
		return Config{}, fmt.Errorf("%w: %q", ErrInvalidBoundary, boundary)
	}
	return Config{boundary: boundary}, nil
}

// RootType sets the type parameter of the outer content type.
func (c Config) RootType(contentType string) Config {
	c.rootType = contentType
	return c
}

// Start sets the Content-ID of the starting part.
func (c Config) Start(contentID string) Config {
	c.start = contentID
	return c
}

// Related builds a multipart/related message from a sequence of parts.
type Related struct {
	config Config
	parts  []Part
}

// NewRelated creates a builder with the given configuration.
func NewRelated(config Config) *Related {
	return &Related{config: config}
}

// AddPart appends a part to the message.
func (r *Related) AddPart(p Part) {
	r.parts = append(r.parts, p)
}

// ContentType returns the outer Content-Type header value, carrying the
// boundary and, when configured, the root type and start Content-ID.
func (r *Related) ContentType() string {
	contentType := "multipart/related; boundary=" + r.config.boundary
	if r.config.rootType != "" {
		contentType += fmt.Sprintf("; type=%q", r.config.rootType)
	}
	if r.config.start != "" {
		contentType += fmt.Sprintf("; start=\"<%s>\"", r.config.start)
	}
	return contentType
}

func (r *Related) validate() error {
	if len(r.parts) == 0 {
		return ErrEmptyMessage
	}
	if r.config.start != "" {
		found := false
		for _, p := range r.parts {
			if p.ContentID == r.config.start {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %s", ErrStartNotFound, r.config.start)
		}
	}
	return nil
}

// Build validates the message and returns a reader that streams it chunk by
// chunk. Part payloads are not copied; the reader walks header, body, and
// trailer segments lazily.
func (r *Related) Build() (io.Reader, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	readers := make([]io.Reader, 0, len(r.parts)*3+1)
	for _, p := range r.parts {
		readers = append(readers,
			strings.NewReader(p.formatHeaders(r.config.boundary)),
			bytes.NewReader(p.Body),
			strings.NewReader("\r\n"),
		)
	}
	readers = append(readers, strings.NewReader("--"+r.config.boundary+"--\r\n"))

	return io.MultiReader(readers...), nil
}

// RandomBoundary generates a random boundary token.
func RandomBoundary() string {
	return uuid.New().String()
}
