// Package sqlite stores the risk archive in a SQLite database through GORM.
package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/couchcryptid/flood-risk-etl/internal/domain"
)

const insertBatchSize = 500

// riskRow is the persisted form of a domain.RiskRecord. Gap records store
// NULL in the tide-derived columns.
type riskRow struct {
	Date        string   `gorm:"primaryKey;size:10"`
	HourRef     string   `gorm:"primaryKey;size:8"`
	StationName string   `gorm:"primaryKey;size:128"`
	VP          float64  `gorm:"column:vp;not null"`
	AM          *float64 `gorm:"column:am"`
	RiskValue   *float64 `gorm:"column:risk_value"`
	RiskBand    *string  `gorm:"column:risk_band;size:16"`
	UpdatedAt   time.Time
}

func (riskRow) TableName() string { return "risk_records" }

func toRow(r domain.RiskRecord) riskRow {
	r = r.Normalized()
	row := riskRow{
		Date:        r.Date,
		HourRef:     r.HourRef,
		StationName: r.StationName,
		VP:          r.VP,
	}
	if !r.TideMissing {
		am, risk, band := r.AM, r.RiskValue, string(r.Band)
		row.AM, row.RiskValue, row.RiskBand = &am, &risk, &band
	}
	return row
}

func (row riskRow) record() domain.RiskRecord {
	r := domain.RiskRecord{
		Date:        row.Date,
		HourRef:     row.HourRef,
		StationName: row.StationName,
		VP:          row.VP,
		TideMissing: row.AM == nil,
	}
	if row.AM != nil {
		r.AM = *row.AM
	}
	if row.RiskValue != nil {
		r.RiskValue = *row.RiskValue
	}
	if row.RiskBand != nil {
		r.Band = domain.Band(*row.RiskBand)
	}
	return r
}

// Archive is a risk archive backed by SQLite.
type Archive struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at dsn and migrates the schema.
func Open(dsn string, logger *slog.Logger) (*Archive, error) {
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	return New(db, logger)
}

// New wraps an existing GORM handle and migrates the schema.
func New(db *gorm.DB, logger *slog.Logger) (*Archive, error) {
	if err := db.AutoMigrate(&riskRow{}); err != nil {
		return nil, fmt.Errorf("migrate risk archive: %w", err)
	}
	return &Archive{db: db, logger: logger}, nil
}

// Merge upserts records on (date, hour_ref, station_name); later records in
// the slice win. It returns the archive size.
func (a *Archive) Merge(ctx context.Context, records []domain.RiskRecord) (int, error) {
	deduped := domain.MergeRisk(nil, records)
	if len(deduped) > 0 {
		rows := make([]riskRow, len(deduped))
		for i, r := range deduped {
			rows[i] = toRow(r)
		}
		err := a.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "date"}, {Name: "hour_ref"}, {Name: "station_name"}},
				UpdateAll: true,
			}).
			CreateInBatches(rows, insertBatchSize).Error
		if err != nil {
			return 0, fmt.Errorf("upsert risk records: %w", err)
		}
	}

	var total int64
	if err := a.db.WithContext(ctx).Model(&riskRow{}).Count(&total).Error; err != nil {
		return 0, fmt.Errorf("count risk records: %w", err)
	}
	a.logger.Info("risk archive saved", "backend", "sqlite", "rows", total, "incoming", len(records))
	return int(total), nil
}

// Records returns the rows for the civil day date, newest hour first.
func (a *Archive) Records(ctx context.Context, date time.Time) ([]domain.RiskRecord, error) {
	var rows []riskRow
	err := a.db.WithContext(ctx).
		Where("date = ?", date.In(domain.Recife).Format(domain.DateLayout)).
		Order("hour_ref DESC").Order("station_name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query risk records: %w", err)
	}
	return toRecords(rows), nil
}

// All returns every row, newest first.
func (a *Archive) All(ctx context.Context) ([]domain.RiskRecord, error) {
	var rows []riskRow
	err := a.db.WithContext(ctx).
		Order("date DESC").Order("hour_ref DESC").Order("station_name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query risk records: %w", err)
	}
	return toRecords(rows), nil
}

// Close releases the underlying connection pool.
func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toRecords(rows []riskRow) []domain.RiskRecord {
	out := make([]domain.RiskRecord, len(rows))
	for i, row := range rows {
		out[i] = row.record()
	}
	return out
}
