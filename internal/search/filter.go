package search

import (
	"fmt"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
)

// Filters are parsed once at the boundary from the raw query map. Every
// recognized attribute accepts both its DICOM keyword and its GGGGEEEE tag
// form; unrecognized keys are ignored. A nil field imposes no constraint.

type StudyFilter struct {
	StudyDate              *string
	StudyTime              *string
	AccessionNumber        *string
	ReferringPhysicianName *string
	PatientName            *string
	PatientID              *string
	StudyInstanceUID       *string
	StudyID                *string

	// ModalitiesInStudy matches a study whose modality set contains any of
	// the listed codes.
	ModalitiesInStudy []string
}

type SeriesFilter struct {
	Modality                        *string
	StudyInstanceUID                *string
	SeriesInstanceUID               *string
	SeriesNumber                    *string
	PerformedProcedureStepStartDate *string
	PerformedProcedureStepStartTime *string
}

type InstanceFilter struct {
	SOPInstanceUID    *string
	SOPClassUID       *string
	StudyInstanceUID  *string
	SeriesInstanceUID *string
	InstanceNumber    *string
}

func ParseStudyFilter(query map[string]string) StudyFilter {
	var f StudyFilter
	f.StudyDate = lookup(query, "StudyDate", tag.StudyDate)
	f.StudyTime = lookup(query, "StudyTime", tag.StudyTime)
	f.AccessionNumber = lookup(query, "AccessionNumber", tag.AccessionNumber)
	f.ReferringPhysicianName = lookup(query, "ReferringPhysicianName", tag.ReferringPhysicianName)
	f.PatientName = lookup(query, "PatientName", tag.PatientName)
	f.PatientID = lookup(query, "PatientID", tag.PatientID)
	f.StudyInstanceUID = lookup(query, "StudyInstanceUID", tag.StudyInstanceUID)
	f.StudyID = lookup(query, "StudyID", tag.StudyID)
	if v := lookup(query, "ModalitiesInStudy", tag.ModalitiesInStudy); v != nil {
		f.ModalitiesInStudy = splitMultiValue(*v)
	}
	return f
}

func ParseSeriesFilter(query map[string]string) SeriesFilter {
	var f SeriesFilter
	f.Modality = lookup(query, "Modality", tag.Modality)
	f.StudyInstanceUID = lookup(query, "StudyInstanceUID", tag.StudyInstanceUID)
	f.SeriesInstanceUID = lookup(query, "SeriesInstanceUID", tag.SeriesInstanceUID)
	f.SeriesNumber = lookup(query, "SeriesNumber", tag.SeriesNumber)
	f.PerformedProcedureStepStartDate = lookup(query, "PerformedProcedureStepStartDate", tag.PerformedProcedureStepStartDate)
	f.PerformedProcedureStepStartTime = lookup(query, "PerformedProcedureStepStartTime", tag.PerformedProcedureStepStartTime)
	return f
}

func ParseInstanceFilter(query map[string]string) InstanceFilter {
	var f InstanceFilter
	f.SOPInstanceUID = lookup(query, "SOPInstanceUID", tag.SOPInstanceUID)
	f.SOPClassUID = lookup(query, "SOPClassUID", tag.SOPClassUID)
	f.InstanceNumber = lookup(query, "InstanceNumber", tag.InstanceNumber)
	return f
}

// Empty reports whether no study-level constraint is set.
func (f StudyFilter) Empty() bool {
	return f.StudyDate == nil && f.StudyTime == nil && f.AccessionNumber == nil &&
		f.ReferringPhysicianName == nil && f.PatientName == nil && f.PatientID == nil &&
		f.StudyInstanceUID == nil && f.StudyID == nil && len(f.ModalitiesInStudy) == 0
}

// Empty reports whether no series-level constraint is set.
func (f SeriesFilter) Empty() bool {
	return f.Modality == nil && f.StudyInstanceUID == nil && f.SeriesInstanceUID == nil &&
		f.SeriesNumber == nil && f.PerformedProcedureStepStartDate == nil &&
		f.PerformedProcedureStepStartTime == nil
}

func lookup(query map[string]string, keyword string, t tag.Tag) *string {
	if v, ok := query[keyword]; ok {
		return &v
	}
	tagKey := fmt.Sprintf("%04X%04X", t.Group, t.Element)
	if v, ok := query[tagKey]; ok {
		return &v
	}
	return nil
}

func splitMultiValue(v string) []string {
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '\\' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
