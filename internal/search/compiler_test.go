package search

import (
	"strings"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestParseStudyFilterKeywordAndTagForm(t *testing.T) {
	f := ParseStudyFilter(map[string]string{
		"PatientID": "P123",
		"00080020":  "20240101", // StudyDate by tag
		"Bogus":     "ignored",
	})
	if f.PatientID == nil || *f.PatientID != "P123" {
		t.Fatalf("PatientID not parsed: %+v", f)
	}
	if f.StudyDate == nil || *f.StudyDate != "20240101" {
		t.Fatalf("StudyDate tag form not parsed: %+v", f)
	}
	if f.StudyTime != nil || f.AccessionNumber != nil {
		t.Fatalf("unset fields must stay nil: %+v", f)
	}
}

func TestParseStudyFilterModalities(t *testing.T) {
	f := ParseStudyFilter(map[string]string{"ModalitiesInStudy": `CT\MR,US`})
	if len(f.ModalitiesInStudy) != 3 {
		t.Fatalf("expected 3 modalities, got %v", f.ModalitiesInStudy)
	}
	for i, want := range []string{"CT", "MR", "US"} {
		if f.ModalitiesInStudy[i] != want {
			t.Fatalf("modality %d: got %q, want %q", i, f.ModalitiesInStudy[i], want)
		}
	}
}

func TestDialectFallback(t *testing.T) {
	if name := DialectFor("postgres", nil).Name(); name != "postgres" {
		t.Fatalf("postgres dialect: got %q", name)
	}
	if name := DialectFor("sqlite", nil).Name(); name != "generic" {
		t.Fatalf("sqlite dialect: got %q", name)
	}
	// Unknown backends silently degrade to the generic dialect.
	if name := DialectFor("cockroach", nil).Name(); name != "generic" {
		t.Fatalf("unknown dialect: got %q", name)
	}
}

func TestStudiesQueryBindsAllValues(t *testing.T) {
	f := StudyFilter{
		PatientID:         strPtr("P1"),
		StudyDate:         strPtr("20240101"),
		ModalitiesInStudy: []string{"CT", "MR"},
	}
	q := Studies(genericDialect{}, f)

	if strings.Count(q.SQL, "?") != len(q.Args) {
		t.Fatalf("placeholder count %d does not match %d args: %s", strings.Count(q.SQL, "?"), len(q.Args), q.SQL)
	}
	for _, arg := range q.Args {
		if s, ok := arg.(string); ok && strings.Contains(q.SQL, s) && s != "?" {
			t.Fatalf("filter value %q leaked into SQL text: %s", s, q.SQL)
		}
	}
	if !strings.Contains(q.SQL, "modalities_in_study LIKE ?") {
		t.Fatalf("generic modality match missing: %s", q.SQL)
	}
}

func TestStudiesQueryPostgresModalityOverlap(t *testing.T) {
	f := StudyFilter{ModalitiesInStudy: []string{"CT", "MR"}}
	q := Studies(postgresDialect{}, f)

	if !strings.Contains(q.SQL, "&& ARRAY[?, ?]::text[]") {
		t.Fatalf("postgres array overlap missing: %s", q.SQL)
	}
	if len(q.Args) != 2 || q.Args[0] != "CT" || q.Args[1] != "MR" {
		t.Fatalf("unexpected args: %v", q.Args)
	}
	if !strings.Contains(q.SQL, "array_to_string(studies_view.modalities_in_study") {
		t.Fatalf("postgres modality select expression missing: %s", q.SQL)
	}
}

func TestSeriesQueryWithoutStudyFilter(t *testing.T) {
	q := Series(genericDialect{}, nil, SeriesFilter{Modality: strPtr("CT")})

	if q.IncludeStudy {
		t.Fatalf("IncludeStudy must be false without a study filter")
	}
	if strings.Contains(q.SQL, "JOIN studies_view") {
		t.Fatalf("unexpected study join: %s", q.SQL)
	}
	if len(q.Args) != 1 || q.Args[0] != "CT" {
		t.Fatalf("unexpected args: %v", q.Args)
	}
}

func TestSeriesQueryWithStudyFilter(t *testing.T) {
	study := StudyFilter{PatientID: strPtr("P1")}
	q := Series(genericDialect{}, &study, SeriesFilter{})

	if !q.IncludeStudy {
		t.Fatalf("IncludeStudy must be true with a study filter")
	}
	if !strings.Contains(q.SQL, "JOIN studies_view ON study_series_view.study_instance_uid = studies_view.study_instance_uid") {
		t.Fatalf("study join missing: %s", q.SQL)
	}
	if !strings.Contains(q.SQL, "studies_view.study_instance_uid IN (SELECT study_instance_uid FROM studies_view WHERE 1 = 1 AND studies_view.patient_id = ?)") {
		t.Fatalf("study containment subquery missing: %s", q.SQL)
	}
}

func TestInstancesQueryContainment(t *testing.T) {
	study := StudyFilter{StudyInstanceUID: strPtr("1.2.3")}
	series := SeriesFilter{SeriesInstanceUID: strPtr("4.5.6")}
	q := Instances(genericDialect{}, &study, &series, InstanceFilter{SOPInstanceUID: strPtr("7.8.9")})

	if !q.IncludeStudy || !q.IncludeSeries {
		t.Fatalf("expected both include flags set: %+v", q)
	}
	if !strings.Contains(q.SQL, "sop_instances.sop_instance_uid IN (SELECT sop_instance_uid FROM sop_instances WHERE 1 = 1") {
		t.Fatalf("instance containment subquery missing: %s", q.SQL)
	}
	if !strings.Contains(q.SQL, "study_series_view.series_instance_uid IN (SELECT series_instance_uid FROM study_series_view WHERE 1 = 1") {
		t.Fatalf("series containment subquery missing: %s", q.SQL)
	}
	if strings.Count(q.SQL, "?") != len(q.Args) {
		t.Fatalf("placeholder count does not match args: %s / %v", q.SQL, q.Args)
	}
	if strings.Contains(q.SQL, "ORDER BY") {
		t.Fatalf("result ordering must stay unspecified: %s", q.SQL)
	}
}

func TestInstancesQueryWithoutAncestors(t *testing.T) {
	q := Instances(genericDialect{}, nil, nil, InstanceFilter{})

	if q.IncludeStudy || q.IncludeSeries {
		t.Fatalf("include flags must be false: %+v", q)
	}
	if strings.Contains(q.SQL, "JOIN") {
		t.Fatalf("unexpected join: %s", q.SQL)
	}
	if !strings.Contains(q.SQL, "sop_instances.path AS instance_path") {
		t.Fatalf("instance path column missing: %s", q.SQL)
	}
}
