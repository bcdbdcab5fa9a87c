package multipart

import (
	"fmt"
	"io"
	"mime"
	stdmultipart "mime/multipart"
	"strings"
)

// Reader pulls fields out of an incoming multipart/related body one at a
// time. Field bodies are lazy: a field's payload is read from the underlying
// stream only as the caller consumes it, so large binary parts are never
// buffered whole by the codec. The sequence is finite and forward-only.
type Reader struct {
	inner *stdmultipart.Reader
}

// NewReader verifies that the declared media type is multipart/related,
// extracts its boundary parameter, and returns a field reader over body.
func NewReader(declaredType string, body io.Reader) (*Reader, error) {
	boundary, err := parseBoundary(declaredType)
	if err != nil {
		return nil, err
	}
	return &Reader{inner: stdmultipart.NewReader(body, boundary)}, nil
}

func parseBoundary(declaredType string) (string, error) {
	mediaType, params, err := mime.ParseMediaType(declaredType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotMultipartRelated, err)
	}
	if !strings.EqualFold(mediaType, "multipart/related") {
		return "", ErrNotMultipartRelated
	}
	boundary, ok := params["boundary"]
	if !ok || boundary == "" {
		return "", fmt.Errorf("%w: missing boundary parameter", ErrNotMultipartRelated)
	}
	return boundary, nil
}

// NextField returns the next field of the message, or io.EOF when the
// message is exhausted. Reading a new field invalidates the previous one.
func (r *Reader) NextField() (*Field, error) {
	part, err := r.inner.NextRawPart()
	if err != nil {
		// io.EOF marks normal exhaustion; anything else is a framing error
		// local to this field boundary.
		return nil, err
	}
	return &Field{part: part}, nil
}

// Field is a single decoded part: its headers plus a lazy byte stream.
type Field struct {
	part *stdmultipart.Part
}

// ContentType returns the declared content type of the field.
func (f *Field) ContentType() string {
	return f.part.Header.Get("Content-Type")
}

// ContentID returns the Content-ID of the field with any angle brackets
// stripped, or an empty string when absent.
func (f *Field) ContentID() string {
	id := f.part.Header.Get("Content-ID")
	return strings.TrimSuffix(strings.TrimPrefix(id, "<"), ">")
}

// TransferEncoding returns the declared Content-Transfer-Encoding, if any.
func (f *Field) TransferEncoding() string {
	return f.part.Header.Get("Content-Transfer-Encoding")
}

// Read streams the field payload.
func (f *Field) Read(p []byte) (int, error) {
	return f.part.Read(p)
}

// Bytes drains the remaining payload of the field into memory.
func (f *Field) Bytes() ([]byte, error) {
	return io.ReadAll(f.part)
}
