package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/caredesk/scheduling/internal/config"
	"github.com/caredesk/scheduling/internal/domain/appointment"
	"github.com/caredesk/scheduling/pkg/metrics"
)

func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:      gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt: true,
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN: cfg.DSN(),
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

// ReportPoolStats publishes connection pool gauges until ctx is cancelled.
func ReportPoolStats(ctx context.Context, db *gorm.DB, m *metrics.Collector) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.DBConnections.Set(float64(sqlDB.Stats().OpenConnections))
		}
	}
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	if err := db.Exec("CREATE SCHEMA IF NOT EXISTS scheduling").Error; err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	if err := db.AutoMigrate(&appointment.Appointment{}); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	// Partial index backing the authoritative overlap query: cancelled and
	// soft-deleted rows never block a slot, so exclude them up front.
	conflictIndex := `CREATE INDEX IF NOT EXISTS idx_appointments_provider_window
		ON scheduling.appointments (provider_id, start_time, duration_mins)
		WHERE deleted_at IS NULL AND status <> 'CANCELLED'`
	if err := db.Exec(conflictIndex).Error; err != nil {
		return fmt.Errorf("creating conflict index: %w", err)
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}
