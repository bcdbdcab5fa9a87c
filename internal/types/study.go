package types

import (
	"time"
)

// Study is one row of the studies table. The key is the study instance UID
// assigned by the imaging source, never by this server.
type Study struct {
	StudyInstanceUID       string `gorm:"column:study_instance_uid;primaryKey" json:"study_instance_uid"`
	StudyDate              string `gorm:"column:study_date" json:"study_date"`
	StudyTime              string `gorm:"column:study_time" json:"study_time"`
	AccessionNumber        string `gorm:"column:accession_number" json:"accession_number"`
	ReferringPhysicianName string `gorm:"column:referring_physician_name" json:"referring_physician_name"`
	PatientName            string `gorm:"column:patient_name" json:"patient_name"`
	PatientID              string `gorm:"column:patient_id" json:"patient_id"`
	StudyID                string `gorm:"column:study_id" json:"study_id"`

	// Path is the opaque storage token of the first instance that created
	// this study. It is assigned once and never rewritten, so colliding or
	// pathological UID values can never steer file placement.
	Path string `gorm:"column:path;not null" json:"path"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Study) TableName() string { return "studies" }

// StudyRow is one row of studies_view: the study columns plus the aggregates
// recomputed from child rows on every read.
type StudyRow struct {
	StudyInstanceUID              string `gorm:"column:study_instance_uid"`
	StudyDate                     string `gorm:"column:study_date"`
	StudyTime                     string `gorm:"column:study_time"`
	AccessionNumber               string `gorm:"column:accession_number"`
	ReferringPhysicianName        string `gorm:"column:referring_physician_name"`
	PatientName                   string `gorm:"column:patient_name"`
	PatientID                     string `gorm:"column:patient_id"`
	StudyID                       string `gorm:"column:study_id"`
	ModalitiesInStudy             string `gorm:"column:modalities_in_study"`
	NumberOfStudyRelatedSeries    int    `gorm:"column:number_of_study_related_series"`
	NumberOfStudyRelatedInstances int    `gorm:"column:number_of_study_related_instances"`
	Path                          string `gorm:"column:study_path"`
}
