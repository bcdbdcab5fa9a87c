package search

import (
	"strings"
)

// Query is a compiled search: SQL with ? placeholders and the values bound
// to them. Filter values are never inlined into the SQL text. IncludeStudy
// and IncludeSeries record which ancestor joins were added so the mapping
// layer does not have to probe columns to find out.
type Query struct {
	SQL           string
	Args          []any
	IncludeStudy  bool
	IncludeSeries bool
}

// Studies compiles a study-level search against studies_view. All specified
// filters AND together; the multi-valued modality filter uses the dialect's
// containment representation. No ORDER BY: result ordering is unspecified.
func Studies(d Dialect, f StudyFilter) Query {
	b := newBuilder()
	b.push("SELECT " + strings.Join(studyColumns(d), ", ") + " FROM studies_view WHERE 1 = 1")
	studyConditions(b, d, f)
	return Query{SQL: b.sql.String(), Args: b.args}
}

// Series compiles a series-level search against study_series_view. A
// non-nil study filter joins studies_view and scopes the result to studies
// matching it via a containment subquery.
func Series(d Dialect, study *StudyFilter, f SeriesFilter) Query {
	includeStudy := study != nil

	cols := seriesColumns()
	if includeStudy {
		cols = append(cols, studyColumns(d)...)
	}

	b := newBuilder()
	b.push("SELECT " + strings.Join(cols, ", ") + " FROM study_series_view")
	if includeStudy {
		b.push(" JOIN studies_view ON study_series_view.study_instance_uid = studies_view.study_instance_uid")
	}
	b.push(" WHERE 1 = 1")
	seriesConditions(b, f)
	if includeStudy {
		filterStudiesByUID(b, d, *study)
	}
	return Query{SQL: b.sql.String(), Args: b.args, IncludeStudy: includeStudy}
}

// Instances compiles an instance-level search against sop_instances.
// Ancestor filters join their views and scope the result through correlated
// containment subqueries, so a series-level criterion restricts instances
// even when the instance filter itself is empty.
func Instances(d Dialect, study *StudyFilter, series *SeriesFilter, f InstanceFilter) Query {
	includeStudy := study != nil
	includeSeries := series != nil

	cols := []string{"sop_instances.path AS instance_path"}
	if includeStudy {
		cols = append(cols, studyColumns(d)...)
	}
	if includeSeries {
		cols = append(cols, seriesColumns()...)
	}

	b := newBuilder()
	b.push("SELECT " + strings.Join(cols, ", ") + " FROM sop_instances")
	if includeStudy {
		b.push(" JOIN studies_view ON sop_instances.study_instance_uid = studies_view.study_instance_uid")
	}
	if includeSeries {
		b.push(" JOIN study_series_view ON sop_instances.series_instance_uid = study_series_view.series_instance_uid")
	}
	b.push(" WHERE 1 = 1")
	filterInstancesByUID(b, f)
	if includeStudy {
		filterStudiesByUID(b, d, *study)
	}
	if includeSeries {
		filterSeriesByUID(b, *series)
	}
	return Query{SQL: b.sql.String(), Args: b.args, IncludeStudy: includeStudy, IncludeSeries: includeSeries}
}

func studyColumns(d Dialect) []string {
	return []string{
		"studies_view.study_instance_uid",
		"studies_view.study_date",
		"studies_view.study_time",
		"studies_view.accession_number",
		"studies_view.referring_physician_name",
		"studies_view.patient_name",
		"studies_view.patient_id",
		"studies_view.study_id",
		d.ModalitiesSelectExpr("studies_view.modalities_in_study", "modalities_in_study"),
		"studies_view.number_of_study_related_series",
		"studies_view.number_of_study_related_instances",
		"studies_view.path AS study_path",
	}
}

func seriesColumns() []string {
	return []string{
		"study_series_view.series_instance_uid",
		"study_series_view.number_of_series_related_instances",
		"study_series_view.path AS series_path",
	}
}

func studyConditions(b *builder, d Dialect, f StudyFilter) {
	b.cond("studies_view.study_date", f.StudyDate)
	b.cond("studies_view.study_time", f.StudyTime)
	b.cond("studies_view.accession_number", f.AccessionNumber)
	b.cond("studies_view.referring_physician_name", f.ReferringPhysicianName)
	b.cond("studies_view.patient_name", f.PatientName)
	b.cond("studies_view.patient_id", f.PatientID)
	b.cond("studies_view.study_instance_uid", f.StudyInstanceUID)
	b.cond("studies_view.study_id", f.StudyID)
	if len(f.ModalitiesInStudy) > 0 {
		clause, args := d.ModalityMatch("studies_view.modalities_in_study", f.ModalitiesInStudy)
		b.push(" AND " + clause)
		b.args = append(b.args, args...)
	}
}

func seriesConditions(b *builder, f SeriesFilter) {
	b.cond("study_series_view.modality", f.Modality)
	b.cond("study_series_view.series_instance_uid", f.SeriesInstanceUID)
	b.cond("study_series_view.study_instance_uid", f.StudyInstanceUID)
	b.cond("study_series_view.series_number", f.SeriesNumber)
	b.cond("study_series_view.performed_procedure_step_start_date", f.PerformedProcedureStepStartDate)
	b.cond("study_series_view.performed_procedure_step_start_time", f.PerformedProcedureStepStartTime)
}

func instanceConditions(b *builder, f InstanceFilter) {
	b.cond("sop_instances.sop_instance_uid", f.SOPInstanceUID)
	b.cond("sop_instances.study_instance_uid", f.StudyInstanceUID)
	b.cond("sop_instances.series_instance_uid", f.SeriesInstanceUID)
	b.cond("sop_instances.sop_class_uid", f.SOPClassUID)
	b.cond("sop_instances.instance_number", f.InstanceNumber)
}

func filterStudiesByUID(b *builder, d Dialect, f StudyFilter) {
	b.push(" AND studies_view.study_instance_uid IN (SELECT study_instance_uid FROM studies_view WHERE 1 = 1")
	studyConditions(b, d, f)
	b.push(")")
}

func filterSeriesByUID(b *builder, f SeriesFilter) {
	b.push(" AND study_series_view.series_instance_uid IN (SELECT series_instance_uid FROM study_series_view WHERE 1 = 1")
	seriesConditions(b, f)
	b.push(")")
}

func filterInstancesByUID(b *builder, f InstanceFilter) {
	b.push(" AND sop_instances.sop_instance_uid IN (SELECT sop_instance_uid FROM sop_instances WHERE 1 = 1")
	instanceConditions(b, f)
	b.push(")")
}

type builder struct {
	sql  strings.Builder
	args []any
}

func newBuilder() *builder {
	return &builder{}
}

func (b *builder) push(s string) {
	b.sql.WriteString(s)
}

func (b *builder) cond(column string, v *string) {
	if v == nil {
		return
	}
	b.sql.WriteString(" AND " + column + " = ?")
	b.args = append(b.args, *v)
}
