package repos

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yungbote/dicomweb-backend/internal/logger"
	pkgerrors "github.com/yungbote/dicomweb-backend/internal/pkg/errors"
	"github.com/yungbote/dicomweb-backend/internal/search"
	"github.com/yungbote/dicomweb-backend/internal/types"
)

type InstanceRepo interface {
	Exists(ctx context.Context, tx *gorm.DB, sopInstanceUID string) (bool, error)
	Save(ctx context.Context, tx *gorm.DB, instance *types.Instance) error
	PathByUID(ctx context.Context, tx *gorm.DB, sopInstanceUID string) (string, error)
	Find(ctx context.Context, tx *gorm.DB, q search.Query) ([]*types.InstanceRow, error)
}

type instanceRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInstanceRepo(db *gorm.DB, baseLog *logger.Logger) InstanceRepo {
	repoLog := baseLog.With("repo", "InstanceRepo")
	return &instanceRepo{db: db, log: repoLog}
}

func (r *instanceRepo) Exists(ctx context.Context, tx *gorm.DB, sopInstanceUID string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Instance{}).
		Where("sop_instance_uid = ?", sopInstanceUID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save inserts the instance or refreshes the attribute columns of an
// existing one. The storage path is fixed at insert; re-ingest of the same
// UID keeps writing to the original token.
func (r *instanceRepo) Save(ctx context.Context, tx *gorm.DB, instance *types.Instance) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	exists, err := r.Exists(ctx, transaction, instance.SOPInstanceUID)
	if err != nil {
		return err
	}
	if !exists {
		return transaction.WithContext(ctx).Create(instance).Error
	}

	updates := map[string]any{
		"sop_class_uid":       instance.SOPClassUID,
		"study_instance_uid":  instance.StudyInstanceUID,
		"series_instance_uid": instance.SeriesInstanceUID,
		"instance_number":     instance.InstanceNumber,
	}
	return transaction.WithContext(ctx).
		Model(&types.Instance{}).
		Where("sop_instance_uid = ?", instance.SOPInstanceUID).
		Updates(updates).Error
}

// PathByUID returns the storage token of a known instance, or ErrNotFound.
func (r *instanceRepo) PathByUID(ctx context.Context, tx *gorm.DB, sopInstanceUID string) (string, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var instance types.Instance
	err := transaction.WithContext(ctx).
		Where("sop_instance_uid = ?", sopInstanceUID).
		First(&instance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", pkgerrors.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return instance.Path, nil
}

// instanceScan is the flat scan target for compiled instance searches; the
// study and series columns are present only when their joins were added.
type instanceScan struct {
	InstancePath string `gorm:"column:instance_path"`

	SeriesInstanceUID              string `gorm:"column:series_instance_uid"`
	NumberOfSeriesRelatedInstances int    `gorm:"column:number_of_series_related_instances"`
	SeriesPath                     string `gorm:"column:series_path"`

	types.StudyRow `gorm:"embedded"`
}

func (r *instanceRepo) Find(ctx context.Context, tx *gorm.DB, q search.Query) ([]*types.InstanceRow, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var scans []instanceScan
	if err := transaction.WithContext(ctx).
		Raw(q.SQL, q.Args...).
		Scan(&scans).Error; err != nil {
		return nil, err
	}

	rows := make([]*types.InstanceRow, 0, len(scans))
	for i := range scans {
		row := &types.InstanceRow{Path: scans[i].InstancePath}
		if q.IncludeStudy {
			study := scans[i].StudyRow
			row.Study = &study
		}
		if q.IncludeSeries {
			row.Series = &types.SeriesRow{
				SeriesInstanceUID:              scans[i].SeriesInstanceUID,
				NumberOfSeriesRelatedInstances: scans[i].NumberOfSeriesRelatedInstances,
				Path:                           scans[i].SeriesPath,
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}
