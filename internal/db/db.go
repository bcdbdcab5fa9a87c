// Package db owns the database connection and the schema: the three
// hierarchy tables plus the aggregate views the search paths read from.
package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/dicomweb-backend/internal/logger"
	"github.com/yungbote/dicomweb-backend/internal/types"
	"github.com/yungbote/dicomweb-backend/internal/utils"
)

// Service exposes the shared gorm handle.
type Service interface {
	DB() *gorm.DB
	DialectName() string
	AutoMigrateAll() error
	Close() error
}

type service struct {
	db  *gorm.DB
	log *logger.Logger
}

// New opens the configured backend. DATABASE_DRIVER selects postgres or
// sqlite; sqlite is the default so the server runs with zero configuration.
func New(log *logger.Logger) (Service, error) {
	driver := utils.GetEnv("DATABASE_DRIVER", "sqlite", log)

	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		host := utils.GetEnv("POSTGRES_HOST", "localhost", log)
		port := utils.GetEnv("POSTGRES_PORT", "5432", log)
		user := utils.GetEnv("POSTGRES_USER", "postgres", log)
		password := utils.GetEnv("POSTGRES_PASSWORD", "postgres", log)
		name := utils.GetEnv("POSTGRES_DB", "dicomweb", log)
		sslmode := utils.GetEnv("POSTGRES_SSLMODE", "disable", log)
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			host, port, user, password, name, sslmode)
		dialector = postgres.Open(dsn)
	case "sqlite":
		path := utils.GetEnv("SQLITE_PATH", "dicomweb.db", log)
		dialector = sqlite.Open(path)
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driver, err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("accessing %s connection pool: %w", driver, err)
	}
	sqlDB.SetMaxOpenConns(utils.GetEnvAsInt("DB_MAX_OPEN_CONNS", 10, log))
	sqlDB.SetMaxIdleConns(utils.GetEnvAsInt("DB_MAX_IDLE_CONNS", 5, log))

	log.Info("Database connection established", "driver", driver)
	return &service{db: gdb, log: log}, nil
}

func (s *service) DB() *gorm.DB { return s.db }

func (s *service) DialectName() string { return s.db.Dialector.Name() }

func (s *service) AutoMigrateAll() error {
	if err := Migrate(s.db); err != nil {
		return err
	}
	s.log.Info("Database migration complete")
	return nil
}

func (s *service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates the hierarchy tables and rebuilds the aggregate views.
// Exported so tests can migrate an in-memory database directly.
func Migrate(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&types.Study{}, &types.Series{}, &types.Instance{}); err != nil {
		return fmt.Errorf("migrating tables: %w", err)
	}
	return createViews(gdb)
}

// createViews drops and recreates the views so migration stays idempotent
// across schema changes. The modality aggregate is the one dialect-specific
// piece: postgres keeps it as text[], everything else as a comma-joined
// string.
func createViews(gdb *gorm.DB) error {
	modalityAgg := "group_concat(DISTINCT se2.modality)"
	if gdb.Dialector.Name() == "postgres" {
		modalityAgg = "array_agg(DISTINCT se2.modality)"
	}

	statements := []string{
		"DROP VIEW IF EXISTS studies_view",
		fmt.Sprintf(`CREATE VIEW studies_view AS
			SELECT
				s.study_instance_uid,
				s.study_date,
				s.study_time,
				s.accession_number,
				s.referring_physician_name,
				s.patient_name,
				s.patient_id,
				s.study_id,
				s.path,
				(SELECT %s FROM study_series se2
					WHERE se2.study_instance_uid = s.study_instance_uid) AS modalities_in_study,
				(SELECT COUNT(*) FROM study_series se
					WHERE se.study_instance_uid = s.study_instance_uid) AS number_of_study_related_series,
				(SELECT COUNT(*) FROM sop_instances i
					WHERE i.study_instance_uid = s.study_instance_uid) AS number_of_study_related_instances
			FROM studies s`, modalityAgg),
		"DROP VIEW IF EXISTS study_series_view",
		`CREATE VIEW study_series_view AS
			SELECT
				se.series_instance_uid,
				se.study_instance_uid,
				se.modality,
				se.series_number,
				se.performed_procedure_step_start_date,
				se.performed_procedure_step_start_time,
				se.path,
				(SELECT COUNT(*) FROM sop_instances i
					WHERE i.series_instance_uid = se.series_instance_uid) AS number_of_series_related_instances
			FROM study_series se`,
	}

	for _, stmt := range statements {
		if err := gdb.Exec(stmt).Error; err != nil {
			return fmt.Errorf("creating views: %w", err)
		}
	}
	return nil
}
