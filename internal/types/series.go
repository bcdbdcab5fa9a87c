package types

import (
	"time"
)

// Series is one row of the study_series table.
type Series struct {
	SeriesInstanceUID               string `gorm:"column:series_instance_uid;primaryKey" json:"series_instance_uid"`
	StudyInstanceUID                string `gorm:"column:study_instance_uid;index" json:"study_instance_uid"`
	Modality                        string `gorm:"column:modality" json:"modality"`
	SeriesNumber                    string `gorm:"column:series_number" json:"series_number"`
	PerformedProcedureStepStartDate string `gorm:"column:performed_procedure_step_start_date" json:"performed_procedure_step_start_date"`
	PerformedProcedureStepStartTime string `gorm:"column:performed_procedure_step_start_time" json:"performed_procedure_step_start_time"`

	// Path is the opaque storage token of the first instance that created
	// this series, fixed at insert time.
	Path string `gorm:"column:path;not null" json:"path"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Series) TableName() string { return "study_series" }

// SeriesRow is one row of study_series_view. Study is populated only when the
// caller asked for the study join; IncludeStudy on the scan row carries that
// decision instead of probing columns.
type SeriesRow struct {
	SeriesInstanceUID              string
	NumberOfSeriesRelatedInstances int
	Path                           string

	Study *StudyRow
}
