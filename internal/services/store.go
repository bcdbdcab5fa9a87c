// Package services holds the domain operations: batch ingest, search, and
// the retrieval surfaces. Services orchestrate repos, storage, and the DICOM
// codec; they never touch HTTP.
package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
	"gorm.io/gorm"

	"github.com/yungbote/dicomweb-backend/internal/dicomio"
	"github.com/yungbote/dicomweb-backend/internal/logger"
	"github.com/yungbote/dicomweb-backend/internal/multipart"
	pkgerrors "github.com/yungbote/dicomweb-backend/internal/pkg/errors"
	"github.com/yungbote/dicomweb-backend/internal/repos"
	"github.com/yungbote/dicomweb-backend/internal/storage"
	"github.com/yungbote/dicomweb-backend/internal/types"
)

type StoreService interface {
	// StoreInstances ingests every part of a multipart/related request body.
	// targetStudyUID scopes the batch to one study when non-empty; objects
	// naming a different study are rejected individually. Each object commits
	// or fails on its own, so one bad object never poisons the batch.
	StoreInstances(ctx context.Context, contentType string, body io.Reader, targetStudyUID string) (*types.StoreInstancesResult, error)
}

type storeService struct {
	db           *gorm.DB
	log          *logger.Logger
	store        *storage.Store
	origin       string
	studyRepo    repos.StudyRepo
	seriesRepo   repos.SeriesRepo
	instanceRepo repos.InstanceRepo
}

func NewStoreService(
	db *gorm.DB,
	baseLog *logger.Logger,
	store *storage.Store,
	origin string,
	studyRepo repos.StudyRepo,
	seriesRepo repos.SeriesRepo,
	instanceRepo repos.InstanceRepo,
) StoreService {
	serviceLog := baseLog.With("service", "StoreService")
	return &storeService{
		db:           db,
		log:          serviceLog,
		store:        store,
		origin:       origin,
		studyRepo:    studyRepo,
		seriesRepo:   seriesRepo,
		instanceRepo: instanceRepo,
	}
}

func (s *storeService) StoreInstances(ctx context.Context, contentType string, body io.Reader, targetStudyUID string) (*types.StoreInstancesResult, error) {
	reader, err := multipart.NewReader(contentType, body)
	if err != nil {
		return nil, err
	}

	result := &types.StoreInstancesResult{
		ReferencedSOPSequence: []types.ReferencedSOPInstance{},
		FailedSOPSequence:     []types.FailedSOPInstance{},
	}

	for {
		field, err := reader.NextField()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Framing is broken past this point; everything already decoded
			// stays committed.
			s.otherFailure(result, "unreadable message part", err)
			break
		}

		data, err := field.Bytes()
		if err != nil {
			s.otherFailure(result, "unreadable message part", err)
			break
		}
		s.storeObject(ctx, targetStudyUID, data, result)
	}

	result.RetrieveURL = s.commonRetrieveURL(result.ReferencedSOPSequence)
	return result, nil
}

func (s *storeService) storeObject(ctx context.Context, targetStudyUID string, data []byte, result *types.StoreInstancesResult) {
	ds, err := dicomio.Parse(data)
	if err != nil {
		s.otherFailure(result, "could not parse object", err)
		return
	}
	s.storeParsed(ctx, targetStudyUID, &ds, data, result)
}

// storeParsed runs the per-object state machine: identify, scope-check,
// resolve the storage token, upsert study then series then instance inside
// one transaction, write the payload, commit.
func (s *storeService) storeParsed(ctx context.Context, targetStudyUID string, ds *dicom.Dataset, data []byte, result *types.StoreInstancesResult) {
	studyUID := dicomio.StringValue(ds, tag.StudyInstanceUID)
	seriesUID := dicomio.StringValue(ds, tag.SeriesInstanceUID)
	sopUID := dicomio.StringValue(ds, tag.SOPInstanceUID)
	sopClassUID := dicomio.StringValue(ds, tag.SOPClassUID)

	if studyUID == "" || seriesUID == "" || sopUID == "" {
		s.otherFailure(result, "object is missing hierarchy identifiers", nil)
		return
	}

	if targetStudyUID != "" && studyUID != targetStudyUID {
		result.FailedSOPSequence = append(result.FailedSOPSequence, types.FailedSOPInstance{
			SOPClassUID:    sopClassUID,
			SOPInstanceUID: sopUID,
			FailureReason:  "study instance UID does not match the request target",
		})
		return
	}

	token, err := s.resolveToken(ctx, sopUID)
	if err != nil {
		s.otherFailure(result, "could not resolve storage location", err)
		return
	}

	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		s.otherFailure(result, "could not begin transaction", tx.Error)
		return
	}

	now := time.Now()
	study := &types.Study{
		StudyInstanceUID:       studyUID,
		StudyDate:              dicomio.StringValue(ds, tag.StudyDate),
		StudyTime:              dicomio.StringValue(ds, tag.StudyTime),
		AccessionNumber:        dicomio.StringValue(ds, tag.AccessionNumber),
		ReferringPhysicianName: dicomio.StringValue(ds, tag.ReferringPhysicianName),
		PatientName:            dicomio.StringValue(ds, tag.PatientName),
		PatientID:              dicomio.StringValue(ds, tag.PatientID),
		StudyID:                dicomio.StringValue(ds, tag.StudyID),
		Path:                   token,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	series := &types.Series{
		SeriesInstanceUID:               seriesUID,
		StudyInstanceUID:                studyUID,
		Modality:                        dicomio.StringValue(ds, tag.Modality),
		SeriesNumber:                    dicomio.StringValue(ds, tag.SeriesNumber),
		PerformedProcedureStepStartDate: dicomio.StringValue(ds, tag.PerformedProcedureStepStartDate),
		PerformedProcedureStepStartTime: dicomio.StringValue(ds, tag.PerformedProcedureStepStartTime),
		Path:                            token,
		CreatedAt:                       now,
		UpdatedAt:                       now,
	}
	instance := &types.Instance{
		SOPInstanceUID:    sopUID,
		SOPClassUID:       sopClassUID,
		StudyInstanceUID:  studyUID,
		SeriesInstanceUID: seriesUID,
		InstanceNumber:    dicomio.StringValue(ds, tag.InstanceNumber),
		Path:              token,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.studyRepo.Save(ctx, tx, study); err != nil {
		tx.Rollback()
		s.otherFailure(result, "could not record study", err)
		return
	}
	if err := s.seriesRepo.Save(ctx, tx, series); err != nil {
		tx.Rollback()
		s.otherFailure(result, "could not record series", err)
		return
	}
	if err := s.instanceRepo.Save(ctx, tx, instance); err != nil {
		tx.Rollback()
		s.otherFailure(result, "could not record instance", err)
		return
	}

	if err := s.store.WriteObject(token, data); err != nil {
		tx.Rollback()
		s.otherFailure(result, "could not write object payload", err)
		return
	}

	if err := tx.Commit().Error; err != nil {
		// Best effort: the payload on disk is orphaned without its metadata
		// row. Removal failure is logged and swallowed.
		_ = s.store.RemoveObject(token)
		s.otherFailure(result, "could not commit object", err)
		return
	}

	result.ReferencedSOPSequence = append(result.ReferencedSOPSequence, types.ReferencedSOPInstance{
		StudyInstanceUID:  studyUID,
		SeriesInstanceUID: seriesUID,
		SOPClassUID:       sopClassUID,
		SOPInstanceUID:    sopUID,
		RetrieveURL:       fmt.Sprintf("%s/studies/%s/series/%s/instances/%s", s.origin, studyUID, seriesUID, sopUID),
	})
}

// resolveToken returns the existing storage token for a known instance so
// re-ingest overwrites in place, or mints a fresh one.
func (s *storeService) resolveToken(ctx context.Context, sopUID string) (string, error) {
	token, err := s.instanceRepo.PathByUID(ctx, nil, sopUID)
	if errors.Is(err, pkgerrors.ErrNotFound) {
		return uuid.New().String(), nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// commonRetrieveURL is the deepest hierarchy level shared by every stored
// instance, walking study, then series, then the instance itself; the origin
// when the studies already disagree.
func (s *storeService) commonRetrieveURL(refs []types.ReferencedSOPInstance) string {
	if len(refs) == 0 {
		return s.origin
	}

	studyUID := refs[0].StudyInstanceUID
	seriesUID := refs[0].SeriesInstanceUID
	sopUID := refs[0].SOPInstanceUID
	for _, ref := range refs[1:] {
		if ref.StudyInstanceUID != studyUID {
			return s.origin
		}
		if ref.SeriesInstanceUID != seriesUID {
			seriesUID = ""
		}
		if ref.SOPInstanceUID != sopUID {
			sopUID = ""
		}
	}
	switch {
	case seriesUID != "" && sopUID != "":
		return fmt.Sprintf("%s/studies/%s/series/%s/instances/%s", s.origin, studyUID, seriesUID, sopUID)
	case seriesUID != "":
		return fmt.Sprintf("%s/studies/%s/series/%s", s.origin, studyUID, seriesUID)
	default:
		return fmt.Sprintf("%s/studies/%s", s.origin, studyUID)
	}
}

// otherFailure records a failure with its public reason only; the underlying
// error stays in the log.
func (s *storeService) otherFailure(result *types.StoreInstancesResult, reason string, err error) {
	s.log.Warn("Store failure", "reason", reason, "error", err)
	result.OtherFailureSequence = append(result.OtherFailureSequence, types.OtherFailure{FailureReason: reason})
}
