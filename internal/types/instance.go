package types

import (
	"time"
)

// Instance is one row of the sop_instances table. The study UID is
// denormalized from the object's own embedded hierarchy for query efficiency;
// it is not cross-checked against the series row (known trust boundary).
type Instance struct {
	SOPInstanceUID    string `gorm:"column:sop_instance_uid;primaryKey" json:"sop_instance_uid"`
	SOPClassUID       string `gorm:"column:sop_class_uid" json:"sop_class_uid"`
	StudyInstanceUID  string `gorm:"column:study_instance_uid;index" json:"study_instance_uid"`
	SeriesInstanceUID string `gorm:"column:series_instance_uid;index" json:"series_instance_uid"`
	InstanceNumber    string `gorm:"column:instance_number" json:"instance_number"`

	// Path is the opaque storage token under which the binary payload lives.
	// Minted once at first ingest and reused by every later write.
	Path string `gorm:"column:path;not null" json:"path"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Instance) TableName() string { return "sop_instances" }

// InstanceRow is one search result from the sop_instances table. Study and
// Series are populated only when the respective ancestor filter was present.
type InstanceRow struct {
	Path string

	Study  *StudyRow
	Series *SeriesRow
}
