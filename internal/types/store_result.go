package types

// StoreInstancesResult is the outcome of one batch ingest. The three
// sequences are independent: a failure recorded in one never removes an
// entry from another.
type StoreInstancesResult struct {
	// RetrieveURL is the deepest hierarchy level at which every successfully
	// stored instance agrees, or the service origin when nothing succeeded.
	RetrieveURL string `json:"retrieve_url"`

	ReferencedSOPSequence []ReferencedSOPInstance `json:"referenced_sop_sequence"`
	FailedSOPSequence     []FailedSOPInstance     `json:"failed_sop_sequence"`
	OtherFailureSequence  []OtherFailure          `json:"other_failure_sequence,omitempty"`
}

// ReferencedSOPInstance references a single successfully stored instance.
type ReferencedSOPInstance struct {
	// StudyInstanceUID and SeriesInstanceUID are not part of the response
	// body; they exist to compute the common retrieve URL.
	StudyInstanceUID  string `json:"-"`
	SeriesInstanceUID string `json:"-"`

	SOPClassUID    string `json:"sop_class_uid"`
	SOPInstanceUID string `json:"sop_instance_uid"`
	RetrieveURL    string `json:"retrieve_url"`
	WarningReason  string `json:"warning_reason,omitempty"`
}

// FailedSOPInstance references a single instance that was rejected or failed.
type FailedSOPInstance struct {
	SOPClassUID    string `json:"sop_class_uid"`
	SOPInstanceUID string `json:"sop_instance_uid"`
	FailureReason  string `json:"failure_reason"`
}

// OtherFailure is a failure not tied to an identifiable instance. The reason
// is the only detail exposed to the caller; everything else goes to the log.
type OtherFailure struct {
	FailureReason string `json:"failure_reason"`
}
