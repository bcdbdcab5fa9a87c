package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/yungbote/dicomweb-backend/internal/logger"
	"github.com/yungbote/dicomweb-backend/internal/search"
	"github.com/yungbote/dicomweb-backend/internal/types"
)

type SeriesRepo interface {
	Exists(ctx context.Context, tx *gorm.DB, seriesInstanceUID string) (bool, error)
	Save(ctx context.Context, tx *gorm.DB, series *types.Series) error
	Find(ctx context.Context, tx *gorm.DB, q search.Query) ([]*types.SeriesRow, error)
}

type seriesRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSeriesRepo(db *gorm.DB, baseLog *logger.Logger) SeriesRepo {
	repoLog := baseLog.With("repo", "SeriesRepo")
	return &seriesRepo{db: db, log: repoLog}
}

func (r *seriesRepo) Exists(ctx context.Context, tx *gorm.DB, seriesInstanceUID string) (bool, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Series{}).
		Where("series_instance_uid = ?", seriesInstanceUID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Save inserts the series or refreshes the attribute columns of an existing
// one. The storage path and parent study UID are fixed at insert.
func (r *seriesRepo) Save(ctx context.Context, tx *gorm.DB, series *types.Series) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	exists, err := r.Exists(ctx, transaction, series.SeriesInstanceUID)
	if err != nil {
		return err
	}
	if !exists {
		return transaction.WithContext(ctx).Create(series).Error
	}

	updates := map[string]any{
		"modality":                            series.Modality,
		"series_number":                       series.SeriesNumber,
		"performed_procedure_step_start_date": series.PerformedProcedureStepStartDate,
		"performed_procedure_step_start_time": series.PerformedProcedureStepStartTime,
	}
	return transaction.WithContext(ctx).
		Model(&types.Series{}).
		Where("series_instance_uid = ?", series.SeriesInstanceUID).
		Updates(updates).Error
}

// seriesScan is the flat scan target for compiled series searches; the study
// columns are present only when the query joined studies_view.
type seriesScan struct {
	SeriesInstanceUID              string `gorm:"column:series_instance_uid"`
	NumberOfSeriesRelatedInstances int    `gorm:"column:number_of_series_related_instances"`
	SeriesPath                     string `gorm:"column:series_path"`

	types.StudyRow `gorm:"embedded"`
}

func (r *seriesRepo) Find(ctx context.Context, tx *gorm.DB, q search.Query) ([]*types.SeriesRow, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var scans []seriesScan
	if err := transaction.WithContext(ctx).
		Raw(q.SQL, q.Args...).
		Scan(&scans).Error; err != nil {
		return nil, err
	}

	rows := make([]*types.SeriesRow, 0, len(scans))
	for i := range scans {
		row := &types.SeriesRow{
			SeriesInstanceUID:              scans[i].SeriesInstanceUID,
			NumberOfSeriesRelatedInstances: scans[i].NumberOfSeriesRelatedInstances,
			Path:                           scans[i].SeriesPath,
		}
		if q.IncludeStudy {
			study := scans[i].StudyRow
			row.Study = &study
		}
		rows = append(rows, row)
	}
	return rows, nil
}
