package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"gorm.io/gorm"

	"github.com/yungbote/dicomweb-backend/internal/dicomio"
	"github.com/yungbote/dicomweb-backend/internal/logger"
	"github.com/yungbote/dicomweb-backend/internal/repos"
	"github.com/yungbote/dicomweb-backend/internal/search"
	"github.com/yungbote/dicomweb-backend/internal/storage"
	"github.com/yungbote/dicomweb-backend/internal/types"
)

// tagRetrieveURL is (0008,1190); the codec's tag dictionary does not carry
// it, so it is declared here.
var tagRetrieveURL = tag.Tag{Group: 0x0008, Element: 0x1190}

type SearchService interface {
	// Studies returns study-level results for the given query attributes.
	Studies(ctx context.Context, params map[string]string) ([]dicomio.Object, error)

	// Series returns series-level results. studyUID, when non-empty, scopes
	// the search to one study; study-level query attributes scope it further.
	Series(ctx context.Context, studyUID string, params map[string]string) ([]dicomio.Object, error)

	// Instances returns instance-level results scoped by the optional
	// studyUID and seriesUID path segments.
	Instances(ctx context.Context, studyUID, seriesUID string, params map[string]string) ([]dicomio.Object, error)
}

type searchService struct {
	db           *gorm.DB
	log          *logger.Logger
	store        *storage.Store
	dialect      search.Dialect
	origin       string
	studyRepo    repos.StudyRepo
	seriesRepo   repos.SeriesRepo
	instanceRepo repos.InstanceRepo
}

func NewSearchService(
	db *gorm.DB,
	baseLog *logger.Logger,
	store *storage.Store,
	dialect search.Dialect,
	origin string,
	studyRepo repos.StudyRepo,
	seriesRepo repos.SeriesRepo,
	instanceRepo repos.InstanceRepo,
) SearchService {
	serviceLog := baseLog.With("service", "SearchService")
	return &searchService{
		db:           db,
		log:          serviceLog,
		store:        store,
		dialect:      dialect,
		origin:       origin,
		studyRepo:    studyRepo,
		seriesRepo:   seriesRepo,
		instanceRepo: instanceRepo,
	}
}

func (s *searchService) Studies(ctx context.Context, params map[string]string) ([]dicomio.Object, error) {
	f := search.ParseStudyFilter(params)
	q := search.Studies(s.dialect, f)

	rows, err := s.studyRepo.Find(ctx, nil, q)
	if err != nil {
		return nil, err
	}

	objects := make([]dicomio.Object, 0, len(rows))
	for _, row := range rows {
		obj := dicomio.Object{}
		s.putStudyAttributes(obj, row)
		objects = append(objects, obj)
	}
	return objects, nil
}

// Series always joins the study level: series results carry their study
// attributes and the retrieve URL needs the study UID.
func (s *searchService) Series(ctx context.Context, studyUID string, params map[string]string) ([]dicomio.Object, error) {
	studyFilter := search.ParseStudyFilter(params)
	if studyUID != "" {
		studyFilter.StudyInstanceUID = &studyUID
	}
	f := search.ParseSeriesFilter(params)
	q := search.Series(s.dialect, &studyFilter, f)

	rows, err := s.seriesRepo.Find(ctx, nil, q)
	if err != nil {
		return nil, err
	}

	objects := make([]dicomio.Object, 0, len(rows))
	for _, row := range rows {
		obj := dicomio.Object{}
		if row.Study != nil {
			s.putStudyAttributes(obj, row.Study)
		}
		s.putSeriesAttributes(obj, row, studyUIDOf(row.Study))
		objects = append(objects, obj)
	}
	return objects, nil
}

func (s *searchService) Instances(ctx context.Context, studyUID, seriesUID string, params map[string]string) ([]dicomio.Object, error) {
	studyFilter := search.ParseStudyFilter(params)
	if studyUID != "" {
		studyFilter.StudyInstanceUID = &studyUID
	}
	seriesFilter := search.ParseSeriesFilter(params)
	if seriesUID != "" {
		seriesFilter.SeriesInstanceUID = &seriesUID
	}
	f := search.ParseInstanceFilter(params)
	q := search.Instances(s.dialect, &studyFilter, &seriesFilter, f)

	rows, err := s.instanceRepo.Find(ctx, nil, q)
	if err != nil {
		return nil, err
	}

	objects := make([]dicomio.Object, 0, len(rows))
	for _, row := range rows {
		obj := dicomio.Object{}
		if row.Study != nil {
			s.putStudyAttributes(obj, row.Study)
		}
		if row.Series != nil {
			s.putSeriesAttributes(obj, row.Series, studyUIDOf(row.Study))
		}
		s.putInstanceAttributes(obj, row, studyUIDOf(row.Study), seriesUIDOf(row.Series))
		objects = append(objects, obj)
	}
	return objects, nil
}

func (s *searchService) putStudyAttributes(obj dicomio.Object, row *types.StudyRow) {
	obj.PutString(tag.StudyDate, "DA", row.StudyDate)
	obj.PutString(tag.StudyTime, "TM", row.StudyTime)
	obj.PutString(tag.AccessionNumber, "SH", row.AccessionNumber)
	obj.PutStrings(tag.ModalitiesInStudy, "CS", splitModalities(row.ModalitiesInStudy))
	obj.PutString(tag.ReferringPhysicianName, "PN", row.ReferringPhysicianName)
	obj.PutString(tag.PatientName, "PN", row.PatientName)
	obj.PutString(tag.PatientID, "LO", row.PatientID)
	obj.PutString(tag.StudyInstanceUID, "UI", row.StudyInstanceUID)
	obj.PutString(tag.StudyID, "SH", row.StudyID)
	obj.PutInt(tag.NumberOfStudyRelatedSeries, "IS", row.NumberOfStudyRelatedSeries)
	obj.PutInt(tag.NumberOfStudyRelatedInstances, "IS", row.NumberOfStudyRelatedInstances)
	obj.PutString(tagRetrieveURL, "UR", fmt.Sprintf("%s/studies/%s", s.origin, row.StudyInstanceUID))
}

// putSeriesAttributes fills the series-level attributes. The view row only
// carries the UID and the instance count; the descriptive attributes come
// from the stored object the series path points at.
func (s *searchService) putSeriesAttributes(obj dicomio.Object, row *types.SeriesRow, studyUID string) {
	obj.PutString(tag.SeriesInstanceUID, "UI", row.SeriesInstanceUID)
	obj.PutInt(tag.NumberOfSeriesRelatedInstances, "IS", row.NumberOfSeriesRelatedInstances)
	if studyUID != "" {
		obj.PutString(tagRetrieveURL, "UR",
			fmt.Sprintf("%s/studies/%s/series/%s", s.origin, studyUID, row.SeriesInstanceUID))
	}

	ds, ok := s.readObject(row.Path)
	if !ok {
		return
	}
	obj.PutString(tag.Modality, "CS", dicomio.StringValue(ds, tag.Modality))
	obj.PutString(tag.SeriesNumber, "IS", dicomio.StringValue(ds, tag.SeriesNumber))
	obj.PutString(tag.PerformedProcedureStepStartDate, "DA", dicomio.StringValue(ds, tag.PerformedProcedureStepStartDate))
	obj.PutString(tag.PerformedProcedureStepStartTime, "TM", dicomio.StringValue(ds, tag.PerformedProcedureStepStartTime))
}

func (s *searchService) putInstanceAttributes(obj dicomio.Object, row *types.InstanceRow, studyUID, seriesUID string) {
	ds, ok := s.readObject(row.Path)
	if !ok {
		return
	}
	sopUID := dicomio.StringValue(ds, tag.SOPInstanceUID)
	obj.PutString(tag.SOPClassUID, "UI", dicomio.StringValue(ds, tag.SOPClassUID))
	obj.PutString(tag.SOPInstanceUID, "UI", sopUID)
	obj.PutString(tag.InstanceNumber, "IS", dicomio.StringValue(ds, tag.InstanceNumber))
	if studyUID != "" && seriesUID != "" && sopUID != "" {
		obj.PutString(tagRetrieveURL, "UR",
			fmt.Sprintf("%s/studies/%s/series/%s/instances/%s", s.origin, studyUID, seriesUID, sopUID))
	}
}

// readObject loads and parses the metadata of a stored object. Search never
// fails the whole response over one unreadable file; the row degrades to its
// database attributes.
func (s *searchService) readObject(token string) (*dicom.Dataset, bool) {
	data, err := s.store.ReadObject(token)
	if err != nil {
		s.log.Warn("Could not read stored object for search result", "token", token, "error", err)
		return nil, false
	}
	ds, err := dicomio.ParseMetadata(data)
	if err != nil {
		s.log.Warn("Could not parse stored object for search result", "token", token, "error", err)
		return nil, false
	}
	return &ds, true
}

func studyUIDOf(row *types.StudyRow) string {
	if row == nil {
		return ""
	}
	return row.StudyInstanceUID
}

func seriesUIDOf(row *types.SeriesRow) string {
	if row == nil {
		return ""
	}
	return row.SeriesInstanceUID
}

// splitModalities splits the aggregated modality column, whichever dialect
// produced it: backslash-joined on postgres, comma-joined on generic.
func splitModalities(v string) []string {
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '\\' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
