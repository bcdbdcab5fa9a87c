// Package repos holds the persistence layer: one repo per hierarchy table,
// each an interface over a gorm handle with a per-call transaction override.
package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/yungbote/dicomweb-backend/internal/logger"
	"github.com/yungbote/dicomweb-backend/internal/search"
	"github.com/yungbote/dicomweb-backend/internal/types"
)

type StudyRepo interface {
	Exists(ctx context.Context, tx *gorm.DB, studyInstanceUID string) (bool, error)
	Save(ctx context.Context, tx *gorm.DB, study *types.Study) error
	Find(ctx context.Context, tx *gorm.DB, q search.Query) ([]*types.StudyRow, error)
}

type studyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudyRepo(db *gorm.DB, baseLog *logger.Logger) StudyRepo {
	repoLog := baseLog.With("repo", "StudyRepo")
	return &studyRepo{db: db, log: repoLog}
}

func (r *studyRepo) Exists(ctx context.Context, tx *gorm.DB, studyInstanceUID string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Study{}).
		Where("study_instance_uid = ?", studyInstanceUID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save inserts the study or, when the UID is already known, refreshes its
// attribute columns. The storage path is fixed at insert and never updated.
func (r *studyRepo) Save(ctx context.Context, tx *gorm.DB, study *types.Study) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	exists, err := r.Exists(ctx, transaction, study.StudyInstanceUID)
	if err != nil {
		return err
	}
	if !exists {
		return transaction.WithContext(ctx).Create(study).Error
	}

	updates := map[string]any{
		"study_date":               study.StudyDate,
		"study_time":               study.StudyTime,
		"accession_number":         study.AccessionNumber,
		"referring_physician_name": study.ReferringPhysicianName,
		"patient_name":             study.PatientName,
		"patient_id":               study.PatientID,
		"study_id":                 study.StudyID,
	}
	return transaction.WithContext(ctx).
		Model(&types.Study{}).
		Where("study_instance_uid = ?", study.StudyInstanceUID).
		Updates(updates).Error
}

func (r *studyRepo) Find(ctx context.Context, tx *gorm.DB, q search.Query) ([]*types.StudyRow, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var rows []*types.StudyRow
	if err := transaction.WithContext(ctx).
		Raw(q.SQL, q.Args...).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
