package repos

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/dicomweb-backend/internal/db"
	"github.com/yungbote/dicomweb-backend/internal/logger"
	pkgerrors "github.com/yungbote/dicomweb-backend/internal/pkg/errors"
	"github.com/yungbote/dicomweb-backend/internal/search"
	"github.com/yungbote/dicomweb-backend/internal/types"
)

func newTestDB(t *testing.T) (*gorm.DB, *logger.Logger) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger init failed: %v", err)
	}
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrating: %v", err)
	}
	return gdb, log
}

func seedHierarchy(t *testing.T, gdb *gorm.DB, log *logger.Logger) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	studyRepo := NewStudyRepo(gdb, log)
	seriesRepo := NewSeriesRepo(gdb, log)
	instanceRepo := NewInstanceRepo(gdb, log)

	if err := studyRepo.Save(ctx, nil, &types.Study{
		StudyInstanceUID: "1.2.3",
		StudyDate:        "20240101",
		PatientID:        "P1",
		PatientName:      "DOE^JANE",
		Path:             "tok-a",
		CreatedAt:        now, UpdatedAt: now,
	}); err != nil {
		t.Fatalf("saving study: %v", err)
	}

	series := []*types.Series{
		{SeriesInstanceUID: "1.2.3.1", StudyInstanceUID: "1.2.3", Modality: "CT", Path: "tok-a", CreatedAt: now, UpdatedAt: now},
		{SeriesInstanceUID: "1.2.3.2", StudyInstanceUID: "1.2.3", Modality: "MR", Path: "tok-b", CreatedAt: now, UpdatedAt: now},
	}
	for _, se := range series {
		if err := seriesRepo.Save(ctx, nil, se); err != nil {
			t.Fatalf("saving series %s: %v", se.SeriesInstanceUID, err)
		}
	}

	instances := []*types.Instance{
		{SOPInstanceUID: "1.2.3.1.1", StudyInstanceUID: "1.2.3", SeriesInstanceUID: "1.2.3.1", Path: "tok-a", CreatedAt: now, UpdatedAt: now},
		{SOPInstanceUID: "1.2.3.1.2", StudyInstanceUID: "1.2.3", SeriesInstanceUID: "1.2.3.1", Path: "tok-b", CreatedAt: now, UpdatedAt: now},
		{SOPInstanceUID: "1.2.3.2.1", StudyInstanceUID: "1.2.3", SeriesInstanceUID: "1.2.3.2", Path: "tok-c", CreatedAt: now, UpdatedAt: now},
	}
	for _, in := range instances {
		if err := instanceRepo.Save(ctx, nil, in); err != nil {
			t.Fatalf("saving instance %s: %v", in.SOPInstanceUID, err)
		}
	}
}

func TestStudySavePreservesPath(t *testing.T) {
	gdb, log := newTestDB(t)
	ctx := context.Background()
	repo := NewStudyRepo(gdb, log)
	now := time.Now()

	first := &types.Study{StudyInstanceUID: "1.2.3", PatientID: "P1", Path: "tok-first", CreatedAt: now, UpdatedAt: now}
	if err := repo.Save(ctx, nil, first); err != nil {
		t.Fatalf("first save: %v", err)
	}

	second := &types.Study{StudyInstanceUID: "1.2.3", PatientID: "P2", Path: "tok-second", CreatedAt: now, UpdatedAt: now}
	if err := repo.Save(ctx, nil, second); err != nil {
		t.Fatalf("second save: %v", err)
	}

	var stored types.Study
	if err := gdb.First(&stored, "study_instance_uid = ?", "1.2.3").Error; err != nil {
		t.Fatalf("loading study: %v", err)
	}
	if stored.Path != "tok-first" {
		t.Fatalf("path rewritten on update: %q", stored.Path)
	}
	if stored.PatientID != "P2" {
		t.Fatalf("attributes not refreshed: %q", stored.PatientID)
	}
}

func TestInstanceSaveRefreshesParents(t *testing.T) {
	gdb, log := newTestDB(t)
	ctx := context.Background()
	repo := NewInstanceRepo(gdb, log)
	now := time.Now()

	first := &types.Instance{
		SOPInstanceUID: "1.1.1", StudyInstanceUID: "s1", SeriesInstanceUID: "se1",
		Path: "tok-first", CreatedAt: now, UpdatedAt: now,
	}
	if err := repo.Save(ctx, nil, first); err != nil {
		t.Fatalf("first save: %v", err)
	}

	// Re-ingest of an object whose embedded hierarchy moved must follow it.
	second := &types.Instance{
		SOPInstanceUID: "1.1.1", StudyInstanceUID: "s2", SeriesInstanceUID: "se2",
		Path: "tok-second", CreatedAt: now, UpdatedAt: now,
	}
	if err := repo.Save(ctx, nil, second); err != nil {
		t.Fatalf("second save: %v", err)
	}

	var stored types.Instance
	if err := gdb.First(&stored, "sop_instance_uid = ?", "1.1.1").Error; err != nil {
		t.Fatalf("loading instance: %v", err)
	}
	if stored.StudyInstanceUID != "s2" || stored.SeriesInstanceUID != "se2" {
		t.Fatalf("parent UIDs not refreshed: %+v", stored)
	}
	if stored.Path != "tok-first" {
		t.Fatalf("path rewritten on update: %q", stored.Path)
	}
}

func TestInstancePathByUID(t *testing.T) {
	gdb, log := newTestDB(t)
	seedHierarchy(t, gdb, log)
	ctx := context.Background()
	repo := NewInstanceRepo(gdb, log)

	path, err := repo.PathByUID(ctx, nil, "1.2.3.1.2")
	if err != nil {
		t.Fatalf("PathByUID failed: %v", err)
	}
	if path != "tok-b" {
		t.Fatalf("unexpected path %q", path)
	}

	if _, err := repo.PathByUID(ctx, nil, "9.9.9"); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindStudiesAggregates(t *testing.T) {
	gdb, log := newTestDB(t)
	seedHierarchy(t, gdb, log)
	ctx := context.Background()
	repo := NewStudyRepo(gdb, log)
	dialect := search.DialectFor(gdb.Dialector.Name(), log)

	rows, err := repo.Find(ctx, nil, search.Studies(dialect, search.StudyFilter{}))
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 study, got %d", len(rows))
	}
	row := rows[0]
	if row.NumberOfStudyRelatedSeries != 2 {
		t.Fatalf("series count: got %d", row.NumberOfStudyRelatedSeries)
	}
	if row.NumberOfStudyRelatedInstances != 3 {
		t.Fatalf("instance count: got %d", row.NumberOfStudyRelatedInstances)
	}
	if !strings.Contains(row.ModalitiesInStudy, "CT") || !strings.Contains(row.ModalitiesInStudy, "MR") {
		t.Fatalf("modality aggregate incomplete: %q", row.ModalitiesInStudy)
	}
	if row.Path != "tok-a" {
		t.Fatalf("study path: got %q", row.Path)
	}
}

func TestFindStudiesModalityFilter(t *testing.T) {
	gdb, log := newTestDB(t)
	seedHierarchy(t, gdb, log)
	ctx := context.Background()
	repo := NewStudyRepo(gdb, log)
	dialect := search.DialectFor(gdb.Dialector.Name(), log)

	rows, err := repo.Find(ctx, nil, search.Studies(dialect, search.StudyFilter{ModalitiesInStudy: []string{"MR"}}))
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("MR filter: expected 1 study, got %d", len(rows))
	}

	rows, err = repo.Find(ctx, nil, search.Studies(dialect, search.StudyFilter{ModalitiesInStudy: []string{"US"}}))
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("US filter: expected 0 studies, got %d", len(rows))
	}
}

func TestFindSeriesStudyJoin(t *testing.T) {
	gdb, log := newTestDB(t)
	seedHierarchy(t, gdb, log)
	ctx := context.Background()
	repo := NewSeriesRepo(gdb, log)
	dialect := search.DialectFor(gdb.Dialector.Name(), log)

	patientID := "P1"
	study := search.StudyFilter{PatientID: &patientID}
	rows, err := repo.Find(ctx, nil, search.Series(dialect, &study, search.SeriesFilter{}))
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 series, got %d", len(rows))
	}
	for _, row := range rows {
		if row.Study == nil {
			t.Fatalf("study not populated on joined search")
		}
		if row.Study.StudyInstanceUID != "1.2.3" {
			t.Fatalf("unexpected study UID %q", row.Study.StudyInstanceUID)
		}
	}

	rows, err = repo.Find(ctx, nil, search.Series(dialect, nil, search.SeriesFilter{}))
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 series, got %d", len(rows))
	}
	if rows[0].Study != nil {
		t.Fatalf("study populated without a study filter")
	}
}

func TestFindInstancesScopedBySeries(t *testing.T) {
	gdb, log := newTestDB(t)
	seedHierarchy(t, gdb, log)
	ctx := context.Background()
	repo := NewInstanceRepo(gdb, log)
	dialect := search.DialectFor(gdb.Dialector.Name(), log)

	seriesUID := "1.2.3.1"
	series := search.SeriesFilter{SeriesInstanceUID: &seriesUID}
	rows, err := repo.Find(ctx, nil, search.Instances(dialect, nil, &series, search.InstanceFilter{}))
	if err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(rows))
	}
	for _, row := range rows {
		if row.Series == nil || row.Series.SeriesInstanceUID != "1.2.3.1" {
			t.Fatalf("series not populated correctly: %+v", row.Series)
		}
		if row.Series.NumberOfSeriesRelatedInstances != 2 {
			t.Fatalf("series instance count: got %d", row.Series.NumberOfSeriesRelatedInstances)
		}
		if row.Study != nil {
			t.Fatalf("study populated without a study filter")
		}
	}
}
