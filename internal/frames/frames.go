// Package frames splits encapsulated pixel-data fragment streams into
// individual frame buffers.
//
// Two layouts exist in the wild and must be told apart at decode time, not
// assumed: encoders either emit a basic offset table over one concatenated
// fragment stream, or one fragment per frame with no table at all.
package frames

import (
	"errors"
	"fmt"
)

var (
	// ErrFrameNotFound is returned for a frame index beyond the offset table
	// or fragment count.
	ErrFrameNotFound = errors.New("frames: frame not found")

	// ErrInvalidFrameRange is returned when an offset-table entry produces a
	// byte range outside the concatenated fragment buffer.
	ErrInvalidFrameRange = errors.New("frames: invalid frame range")
)

// Extract returns frame buffers from the given pixel-data fragments.
//
// With a non-empty offset table, all fragments are treated as one contiguous
// buffer and frame i spans [offsets[i], offsets[i+1]), the last frame running
// to the end of the buffer. With an empty table, fragments are frame-aligned
// one-to-one. A nil index selects every frame in order; a concrete index
// selects exactly that frame.
func Extract(fragments [][]byte, offsets []uint32, index *int) ([][]byte, error) {
	if len(offsets) > 0 {
		return extractWithOffsets(fragments, offsets, index)
	}
	return extractFragmentPerFrame(fragments, index)
}

func extractWithOffsets(fragments [][]byte, offsets []uint32, index *int) ([][]byte, error) {
	full := concat(fragments)

	if index != nil {
		i := *index
		if i < 0 || i >= len(offsets) {
			return nil, fmt.Errorf("%w: frame %d offset not found", ErrFrameNotFound, i)
		}
		frame, err := slice(full, offsets, i)
		if err != nil {
			return nil, err
		}
		return [][]byte{frame}, nil
	}

	all := make([][]byte, 0, len(offsets))
	for i := range offsets {
		frame, err := slice(full, offsets, i)
		if err != nil {
			return nil, err
		}
		all = append(all, frame)
	}
	return all, nil
}

func extractFragmentPerFrame(fragments [][]byte, index *int) ([][]byte, error) {
	if index != nil {
		i := *index
		if i < 0 || i >= len(fragments) {
			return nil, fmt.Errorf("%w: frame %d not found", ErrFrameNotFound, i)
		}
		return [][]byte{fragments[i]}, nil
	}
	return fragments, nil
}

// slice cuts frame i out of the concatenated buffer. The end of the final
// frame is the buffer length.
func slice(full []byte, offsets []uint32, i int) ([]byte, error) {
	start := int(offsets[i])
	end := len(full)
	if i+1 < len(offsets) {
		end = int(offsets[i+1])
	}
	if start > end || start < 0 || end > len(full) {
		return nil, fmt.Errorf("%w: frame %d spans [%d, %d) in %d bytes", ErrInvalidFrameRange, i, start, end, len(full))
	}
	return full[start:end], nil
}

func concat(fragments [][]byte) []byte {
	size := 0
	for _, f := range fragments {
		size += len(f)
	}
	full := make([]byte, 0, size)
	for _, f := range fragments {
		full = append(full, f...)
	}
	return full
}
