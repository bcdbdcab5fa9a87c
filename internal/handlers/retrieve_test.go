package handlers

import (
	"errors"
	"testing"

	pkgerrors "github.com/yungbote/dicomweb-backend/internal/pkg/errors"
)

func TestParseFrameNumber(t *testing.T) {
	index, err := parseFrameNumber("1")
	if err != nil {
		t.Fatalf("parseFrameNumber failed: %v", err)
	}
	if index == nil || *index != 0 {
		t.Fatalf("frame number 1 must map to index 0, got %v", index)
	}

	index, err = parseFrameNumber(" 5 ")
	if err != nil {
		t.Fatalf("parseFrameNumber failed: %v", err)
	}
	if *index != 4 {
		t.Fatalf("frame number 5 must map to index 4, got %d", *index)
	}

	for _, raw := range []string{"0", "-1", "abc", ""} {
		if _, err := parseFrameNumber(raw); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
			t.Fatalf("frame %q: expected ErrInvalidArgument, got %v", raw, err)
		}
	}
}
