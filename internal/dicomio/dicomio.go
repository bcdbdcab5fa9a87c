// Package dicomio wraps the external DICOM codec: parsing stored objects,
// reading string attributes, and reaching pixel data. The codec owns the
// binary TLV format; nothing here re-implements it.
package dicomio

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// ErrNoPixelData is returned when an object carries no pixel data element.
var ErrNoPixelData = errors.New("dicomio: object has no pixel data")

// ParseMetadata parses an object without processing the bulk pixel payload.
// Used by every metadata-only path.
func ParseMetadata(data []byte) (dicom.Dataset, error) {
	return dicom.ParseUntilEOF(bytes.NewReader(data), nil, dicom.SkipPixelData())
}

// Parse fully parses an object, pixel data included.
func Parse(data []byte) (dicom.Dataset, error) {
	return dicom.ParseUntilEOF(bytes.NewReader(data), nil)
}

// StringValue returns the first string value of the element with the given
// tag, or an empty string when the element is absent or not a string. Ingest
// never aborts on a missing attribute; it stores the empty value.
func StringValue(ds *dicom.Dataset, t tag.Tag) string {
	v, _ := OptionalString(ds, t)
	return v
}

// OptionalString returns the first string value of the element with the
// given tag and whether it was present.
func OptionalString(ds *dicom.Dataset, t tag.Tag) (string, bool) {
	e, err := ds.FindElementByTag(t)
	if err != nil || e == nil {
		return "", false
	}
	if strs, ok := e.Value.GetValue().([]string); ok && len(strs) > 0 {
		return strs[0], true
	}
	return "", false
}

// PixelFragments returns the encapsulated pixel-data fragments of a fully
// parsed object, plus its frame offset table. Encoders that emit no offset
// table yield frame-aligned fragments with an empty table; the two layouts
// are distinguished downstream by the frame extractor.
func PixelFragments(ds *dicom.Dataset) ([][]byte, []uint32, error) {
	e, err := ds.FindElementByTag(tag.PixelData)
	if err != nil || e == nil {
		return nil, nil, ErrNoPixelData
	}
	info := dicom.MustGetPixelDataInfo(e.Value)
	if len(info.Frames) == 0 {
		return nil, nil, ErrNoPixelData
	}

	fragments := make([][]byte, 0, len(info.Frames))
	for _, fr := range info.Frames {
		if fr.IsEncapsulated() {
			fragments = append(fragments, fr.EncapsulatedData.Data)
		} else {
			fragments = append(fragments, nativeFrameBytes(fr.NativeData))
		}
	}

	// The codec resolves the basic offset table while splitting fragments
	// into frames, so the fragments above are already frame-aligned.
	return fragments, nil, nil
}

// FrameImage decodes one frame of a fully parsed object into a raster image.
func FrameImage(ds *dicom.Dataset, index int) (image.Image, error) {
	e, err := ds.FindElementByTag(tag.PixelData)
	if err != nil || e == nil {
		return nil, ErrNoPixelData
	}
	info := dicom.MustGetPixelDataInfo(e.Value)
	if index < 0 || index >= len(info.Frames) {
		return nil, fmt.Errorf("dicomio: frame %d out of range (%d frames)", index, len(info.Frames))
	}
	return info.Frames[index].GetImage()
}

func nativeFrameBytes(nf frame.NativeFrame) []byte {
	bytesPerSample := nf.BitsPerSample / 8
	if bytesPerSample < 1 {
		bytesPerSample = 1
	}
	out := make([]byte, 0, len(nf.Data)*bytesPerSample)
	for _, pixel := range nf.Data {
		for _, sample := range pixel {
			// little endian, matching the stored transfer syntax
			for b := 0; b < bytesPerSample; b++ {
				out = append(out, byte(sample>>(8*b)))
			}
		}
	}
	return out
}
