package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"gorm.io/gorm"

	"github.com/yungbote/dicomweb-backend/internal/dicomio"
	"github.com/yungbote/dicomweb-backend/internal/frames"
	"github.com/yungbote/dicomweb-backend/internal/logger"
	"github.com/yungbote/dicomweb-backend/internal/multipart"
	pkgerrors "github.com/yungbote/dicomweb-backend/internal/pkg/errors"
	"github.com/yungbote/dicomweb-backend/internal/repos"
	"github.com/yungbote/dicomweb-backend/internal/search"
	"github.com/yungbote/dicomweb-backend/internal/storage"
	"github.com/yungbote/dicomweb-backend/internal/types"
)

type RetrieveService interface {
	// Instances streams every matching stored object as an application/dicom
	// part of a multipart/related message. Returns the body reader and its
	// Content-Type header value.
	Instances(ctx context.Context, studyUID, seriesUID, sopUID string) (io.Reader, string, error)

	// Metadata returns the metadata of every matching instance, bulk data
	// excluded, one DICOM JSON object per instance.
	Metadata(ctx context.Context, studyUID, seriesUID, sopUID string) ([]dicomio.Object, error)

	// PixelData streams the pixel frames of every matching instance as
	// application/octet-stream parts. A non-nil frameIndex selects one frame
	// per instance.
	PixelData(ctx context.Context, studyUID, seriesUID, sopUID string, frameIndex *int) (io.Reader, string, error)
}

type retrieveService struct {
	db           *gorm.DB
	log          *logger.Logger
	store        *storage.Store
	dialect      search.Dialect
	instanceRepo repos.InstanceRepo
}

func NewRetrieveService(
	db *gorm.DB,
	baseLog *logger.Logger,
	store *storage.Store,
	dialect search.Dialect,
	instanceRepo repos.InstanceRepo,
) RetrieveService {
	serviceLog := baseLog.With("service", "RetrieveService")
	return &retrieveService{
		db:           db,
		log:          serviceLog,
		store:        store,
		dialect:      dialect,
		instanceRepo: instanceRepo,
	}
}

func (s *retrieveService) Instances(ctx context.Context, studyUID, seriesUID, sopUID string) (io.Reader, string, error) {
	rows, err := s.findInstances(ctx, studyUID, seriesUID, sopUID)
	if err != nil {
		return nil, "", err
	}

	config, err := multipart.NewConfig(multipart.RandomBoundary())
	if err != nil {
		return nil, "", err
	}
	message := multipart.NewRelated(config.RootType("application/dicom"))

	for _, row := range rows {
		data, err := s.store.ReadObject(row.Path)
		if err != nil {
			s.log.Warn("Skipping instance with unreadable payload", "token", row.Path, "error", err)
			continue
		}
		message.AddPart(multipart.NewPart("application/dicom", data))
	}

	body, err := message.Build()
	if errors.Is(err, multipart.ErrEmptyMessage) {
		return nil, "", pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return body, message.ContentType(), nil
}

func (s *retrieveService) Metadata(ctx context.Context, studyUID, seriesUID, sopUID string) ([]dicomio.Object, error) {
	rows, err := s.findInstances(ctx, studyUID, seriesUID, sopUID)
	if err != nil {
		return nil, err
	}

	objects := make([]dicomio.Object, 0, len(rows))
	for _, row := range rows {
		data, err := s.store.ReadObject(row.Path)
		if err != nil {
			s.log.Warn("Skipping instance with unreadable payload", "token", row.Path, "error", err)
			continue
		}
		ds, err := dicomio.ParseMetadata(data)
		if err != nil {
			s.log.Warn("Skipping unparseable instance", "token", row.Path, "error", err)
			continue
		}
		objects = append(objects, dicomio.DatasetToObject(&ds))
	}
	if len(objects) == 0 {
		return nil, pkgerrors.ErrNotFound
	}
	return objects, nil
}

func (s *retrieveService) PixelData(ctx context.Context, studyUID, seriesUID, sopUID string, frameIndex *int) (io.Reader, string, error) {
	rows, err := s.findInstances(ctx, studyUID, seriesUID, sopUID)
	if err != nil {
		return nil, "", err
	}

	config, err := multipart.NewConfig(multipart.RandomBoundary())
	if err != nil {
		return nil, "", err
	}
	message := multipart.NewRelated(config.RootType("application/octet-stream"))

	for i, row := range rows {
		data, err := s.store.ReadObject(row.Path)
		if err != nil {
			s.log.Warn("Skipping instance with unreadable payload", "token", row.Path, "error", err)
			continue
		}
		ds, err := dicomio.Parse(data)
		if err != nil {
			s.log.Warn("Skipping unparseable instance", "token", row.Path, "error", err)
			continue
		}
		fragments, offsets, err := dicomio.PixelFragments(&ds)
		if err != nil {
			s.log.Warn("Skipping instance without pixel data", "token", row.Path, "error", err)
			continue
		}
		frameData, err := frames.Extract(fragments, offsets, frameIndex)
		if err != nil {
			return nil, "", err
		}
		for j, frame := range frameData {
			part := multipart.NewPart("application/octet-stream", frame).
				WithID(fmt.Sprintf("image%d_frame%d", i, j))
			message.AddPart(part)
		}
	}

	body, err := message.Build()
	if errors.Is(err, multipart.ErrEmptyMessage) {
		return nil, "", pkgerrors.ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return body, message.ContentType(), nil
}

func (s *retrieveService) findInstances(ctx context.Context, studyUID, seriesUID, sopUID string) ([]*types.InstanceRow, error) {
	return findInstanceRows(ctx, s.dialect, s.instanceRepo, studyUID, seriesUID, sopUID)
}

// findInstanceRows resolves the addressed hierarchy level to concrete
// instance rows. Absent levels impose no constraint; zero matches is
// NotFound.
func findInstanceRows(ctx context.Context, dialect search.Dialect, instanceRepo repos.InstanceRepo, studyUID, seriesUID, sopUID string) ([]*types.InstanceRow, error) {
	var studyFilter *search.StudyFilter
	if studyUID != "" {
		studyFilter = &search.StudyFilter{StudyInstanceUID: &studyUID}
	}
	var seriesFilter *search.SeriesFilter
	if seriesUID != "" {
		seriesFilter = &search.SeriesFilter{SeriesInstanceUID: &seriesUID}
	}
	var f search.InstanceFilter
	if sopUID != "" {
		f.SOPInstanceUID = &sopUID
	}

	q := search.Instances(dialect, studyFilter, seriesFilter, f)
	rows, err := instanceRepo.Find(ctx, nil, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, pkgerrors.ErrNotFound
	}
	return rows, nil
}
