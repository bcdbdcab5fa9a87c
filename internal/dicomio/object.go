package dicomio

import (
	"fmt"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// maxInlineSequenceBytes bounds the sequences that metadata responses carry
// inline; anything larger is bulk data and is dropped alongside the binary
// VRs.
const maxInlineSequenceBytes = 1_000_000

// Attribute is one DICOM JSON attribute: its value representation and its
// values.
type Attribute struct {
	VR    string `json:"vr"`
	Value []any  `json:"Value,omitempty"`
}

// Object is a DICOM JSON dataset keyed by GGGGEEEE tag strings.
type Object map[string]Attribute

// TagKey formats a tag as the eight-hex-digit DICOM JSON key.
func TagKey(t tag.Tag) string {
	return fmt.Sprintf("%04X%04X", t.Group, t.Element)
}

// PutString sets a single-valued string attribute. Empty values are stored
// as a present attribute with no Value array.
func (o Object) PutString(t tag.Tag, vr, value string) {
	a := Attribute{VR: vr}
	if value != "" {
		a.Value = []any{value}
	}
	o[TagKey(t)] = a
}

// PutStrings sets a multi-valued string attribute.
func (o Object) PutStrings(t tag.Tag, vr string, values []string) {
	a := Attribute{VR: vr}
	for _, v := range values {
		if v != "" {
			a.Value = append(a.Value, v)
		}
	}
	o[TagKey(t)] = a
}

// PutInt sets a single-valued integer attribute.
func (o Object) PutInt(t tag.Tag, vr string, value int) {
	o[TagKey(t)] = Attribute{VR: vr, Value: []any{value}}
}

// DatasetToObject converts a parsed dataset to its DICOM JSON form,
// excluding bulk data: binary VRs and oversized sequences are dropped, since
// metadata responses must stay parseable by JSON clients.
func DatasetToObject(ds *dicom.Dataset) Object {
	obj := Object{}
	for _, e := range ds.Elements {
		if e == nil {
			continue
		}
		switch e.RawValueRepresentation {
		case "OB", "OW", "UN":
			continue
		case "SQ":
			if e.ValueLength > maxInlineSequenceBytes {
				continue
			}
		}
		obj[TagKey(e.Tag)] = attributeFromElement(e)
	}
	return obj
}

func attributeFromElement(e *dicom.Element) Attribute {
	a := Attribute{VR: e.RawValueRepresentation}
	switch v := e.Value.GetValue().(type) {
	case []string:
		for _, s := range v {
			if s != "" {
				a.Value = append(a.Value, s)
			}
		}
	case []int:
		for _, n := range v {
			a.Value = append(a.Value, n)
		}
	case []float64:
		for _, f := range v {
			a.Value = append(a.Value, f)
		}
	case []*dicom.SequenceItemValue:
		for _, item := range v {
			if item == nil {
				continue
			}
			nested := Object{}
			if els, ok := item.GetValue().([]*dicom.Element); ok {
				for _, el := range els {
					if el == nil {
						continue
					}
					nested[TagKey(el.Tag)] = attributeFromElement(el)
				}
			}
			a.Value = append(a.Value, nested)
		}
	default:
		if v != nil {
			a.Value = []any{v}
		}
	}
	return a
}
