package services

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/dicomweb-backend/internal/db"
	"github.com/yungbote/dicomweb-backend/internal/dicomio"
	"github.com/yungbote/dicomweb-backend/internal/logger"
	"github.com/yungbote/dicomweb-backend/internal/repos"
	"github.com/yungbote/dicomweb-backend/internal/search"
	"github.com/yungbote/dicomweb-backend/internal/storage"
	"github.com/yungbote/dicomweb-backend/internal/types"
)

func newTestSearchService(t *testing.T) (SearchService, *storeService) {
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

	store := storage.NewStore(filepath.Join(t.TempDir(), "data"), log)
	if err := store.EnsureRoot(); err != nil {
		t.Fatalf("EnsureRoot failed: %v", err)
	}

	dialect := search.DialectFor(gdb.Dialector.Name(), log)
	studyRepo := repos.NewStudyRepo(gdb, log)
	seriesRepo := repos.NewSeriesRepo(gdb, log)
	instanceRepo := repos.NewInstanceRepo(gdb, log)

	searchSvc := NewSearchService(gdb, log, store, dialect, testOrigin, studyRepo, seriesRepo, instanceRepo)
	storeSvc := NewStoreService(gdb, log, store, testOrigin, studyRepo, seriesRepo, instanceRepo)
	return searchSvc, storeSvc.(*storeService)
}

func attrValue(t *testing.T, obj dicomio.Object, key string) any {
	t.Helper()
	attr, ok := obj[key]
	if !ok {
		t.Fatalf("attribute %s missing: %v", key, obj)
	}
	if len(attr.Value) == 0 {
		t.Fatalf("attribute %s has no value", key)
	}
	return attr.Value[0]
}

func TestSearchStudies(t *testing.T) {
	searchSvc, storeSvc := newTestSearchService(t)
	ctx := context.Background()

	ds := testDataset(t, "1.2.3", "1.2.3.1", "1.2.3.1.1")
	result := &types.StoreInstancesResult{}
	storeSvc.storeParsed(ctx, "", &ds, []byte("payload"), result)
	if len(result.ReferencedSOPSequence) != 1 {
		t.Fatalf("seeding store failed: %+v", result)
	}

	objects, err := searchSvc.Studies(ctx, map[string]string{"PatientID": "P1"})
	if err != nil {
		t.Fatalf("Studies failed: %v", err)
	}
	if len(objects) != 1 {
		t.Fatalf("expected 1 study, got %d", len(objects))
	}
	obj := objects[0]
	if got := attrValue(t, obj, "0020000D"); got != "1.2.3" {
		t.Fatalf("study UID attribute: got %v", got)
	}
	if got := attrValue(t, obj, "00100020"); got != "P1" {
		t.Fatalf("patient ID attribute: got %v", got)
	}
	if got := attrValue(t, obj, "00081190"); got != testOrigin+"/studies/1.2.3" {
		t.Fatalf("retrieve URL attribute: got %v", got)
	}
	if got := attrValue(t, obj, "00201208"); got != 1 {
		t.Fatalf("instance count attribute: got %v (%T)", got, got)
	}

	// A non-matching filter returns an empty result, not an error.
	objects, err = searchSvc.Studies(ctx, map[string]string{"PatientID": "nobody"})
	if err != nil {
		t.Fatalf("Studies failed: %v", err)
	}
	if len(objects) != 0 {
		t.Fatalf("expected no studies, got %d", len(objects))
	}
}

func TestSearchSeriesCarriesStudyAttributes(t *testing.T) {
	searchSvc, storeSvc := newTestSearchService(t)
	ctx := context.Background()

	ds := testDataset(t, "1.2.3", "1.2.3.1", "1.2.3.1.1")
	result := &types.StoreInstancesResult{}
	storeSvc.storeParsed(ctx, "", &ds, []byte("payload"), result)

	objects, err := searchSvc.Series(ctx, "1.2.3", nil)
	if err != nil {
		t.Fatalf("Series failed: %v", err)
	}
	if len(objects) != 1 {
		t.Fatalf("expected 1 series, got %d", len(objects))
	}
	obj := objects[0]
	if got := attrValue(t, obj, "0020000E"); got != "1.2.3.1" {
		t.Fatalf("series UID attribute: got %v", got)
	}
	if got := attrValue(t, obj, "0020000D"); got != "1.2.3" {
		t.Fatalf("study UID attribute: got %v", got)
	}
	if got := attrValue(t, obj, "00081190"); got != testOrigin+"/studies/1.2.3/series/1.2.3.1" {
		t.Fatalf("retrieve URL attribute: got %v", got)
	}
	if got := attrValue(t, obj, "00201209"); got != 1 {
		t.Fatalf("series instance count: got %v", got)
	}
}

func TestSplitModalities(t *testing.T) {
	cases := map[string][]string{
		`CT\MR`:   {"CT", "MR"},
		"CT,MR":   {"CT", "MR"},
		"CT":      {"CT"},
		"":        {},
		" CT , ":  {"CT"},
	}
	for in, want := range cases {
		got := splitModalities(in)
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("splitModalities(%q) = %v, want %v", in, got, want)
		}
	}
}
