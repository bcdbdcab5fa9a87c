package multipart

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func buildMessage(t *testing.T, r *Related) []byte {
	t.Helper()
	body, err := r.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("reading built message: %v", err)
	}
	return data
}

func TestRoundTrip(t *testing.T) {
	config, err := NewConfig("test-boundary")
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	message := NewRelated(config.RootType("application/dicom"))
	message.AddPart(NewPart("application/dicom", []byte("first payload")).WithID("part1"))
	message.AddPart(NewPart("application/octet-stream", []byte{0x00, 0x01, 0x02}).WithID("part2"))
	message.AddPart(NewPart("application/dicom", []byte("third")))

	data := buildMessage(t, message)

	reader, err := NewReader(message.ContentType(), bytes.NewReader(data))
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}

	var fields []*Field
	var bodies [][]byte
	for {
		field, err := reader.NextField()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("NextField failed: %v", err)
		}
		body, err := field.Bytes()
		if err != nil {
			t.Fatalf("reading field body: %v", err)
		}
		fields = append(fields, field)
		bodies = append(bodies, body)
	}

	if len(fields) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(fields))
	}
	if fields[0].ContentID() != "part1" {
		t.Fatalf("expected Content-ID part1, got %q", fields[0].ContentID())
	}
	if fields[0].ContentType() != "application/dicom" {
		t.Fatalf("unexpected content type %q", fields[0].ContentType())
	}
	if !bytes.Equal(bodies[0], []byte("first payload")) {
		t.Fatalf("unexpected first body %q", bodies[0])
	}
	if !bytes.Equal(bodies[1], []byte{0x00, 0x01, 0x02}) {
		t.Fatalf("unexpected second body %v", bodies[1])
	}
	if fields[2].ContentID() != "" {
		t.Fatalf("expected empty Content-ID, got %q", fields[2].ContentID())
	}
}

func TestInvalidBoundary(t *testing.T) {
	for _, boundary := range []string{"has space", "has\ttab", "has\"quote", "has\\slash", "has\r\nbreak"} {
		if _, err := NewConfig(boundary); !errors.Is(err, ErrInvalidBoundary) {
			t.Fatalf("boundary %q: expected ErrInvalidBoundary, got %v", boundary, err)
		}
	}
	if _, err := NewConfig("ok-boundary.123"); err != nil {
		t.Fatalf("valid boundary rejected: %v", err)
	}
}

func TestEmptyMessage(t *testing.T) {
	config, err := NewConfig("b")
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	if _, err := NewRelated(config).Build(); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestStartNotFound(t *testing.T) {
	config, err := NewConfig("b")
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	message := NewRelated(config.Start("missing"))
	message.AddPart(NewPart("text/plain", []byte("x")).WithID("present"))

	if _, err := message.Build(); !errors.Is(err, ErrStartNotFound) {
		t.Fatalf("expected ErrStartNotFound, got %v", err)
	}
}

func TestStartMatchesPart(t *testing.T) {
	config, err := NewConfig("b")
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	message := NewRelated(config.RootType("text/plain").Start("root"))
	message.AddPart(NewPart("text/plain", []byte("x")).WithID("root"))

	if _, err := message.Build(); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	contentType := message.ContentType()
	want := `multipart/related; boundary=b; type="text/plain"; start="<root>"`
	if contentType != want {
		t.Fatalf("content type %q, want %q", contentType, want)
	}
}

func TestNotMultipartRelated(t *testing.T) {
	cases := []string{
		"application/json",
		"multipart/form-data; boundary=b",
		"multipart/related",
		"",
	}
	for _, contentType := range cases {
		if _, err := NewReader(contentType, bytes.NewReader(nil)); !errors.Is(err, ErrNotMultipartRelated) {
			t.Fatalf("content type %q: expected ErrNotMultipartRelated, got %v", contentType, err)
		}
	}
}

func TestRandomBoundaryIsValid(t *testing.T) {
	if _, err := NewConfig(RandomBoundary()); err != nil {
		t.Fatalf("random boundary rejected: %v", err)
	}
}
