package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// maxArtifactBytes caps how much of an artifact's tail is persisted, so a
// huge log capture cannot bloat the database. The full text was already
// parsed before the cut.
const maxArtifactBytes = 20_000

var _ Store = (*SQLite)(nil)

// SQLite is a Store backed by a SQLite database file via gorm.
type SQLite struct {
	db *gorm.DB
}

type runRow struct {
	ID          string    `gorm:"primaryKey"`
	Host        string    `gorm:"index;not null"`
	CreatedAt   time.Time `gorm:"index;not null"`
	ArchiveName string    `gorm:"not null"`
	HealthScore int       `gorm:"not null"`
}

func (runRow) TableName() string { return "runs" }

type metricRow struct {
	RunID string  `gorm:"primaryKey;index"`
	Key   string  `gorm:"primaryKey;column:key;index"`
	Value float64 `gorm:"not null"`
	Unit  string
}

func (metricRow) TableName() string { return "metrics" }

type artifactRow struct {
	RunID   string `gorm:"primaryKey"`
	Name    string `gorm:"primaryKey"`
	Content string
}

func (artifactRow) TableName() string { return "artifacts" }

// OpenSQLite opens (creating if needed) the database at path and migrates
// the schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %q: %w", path, err)
	}
	if err := db.AutoMigrate(&runRow{}, &metricRow{}, &artifactRow{}); err != nil {
		return nil, fmt.Errorf("store: migrate schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) CreateRun(ctx context.Context, run Run, metrics []Metric, artifacts []Artifact) error {
	rows := make([]metricRow, 0, len(metrics))
	for _, m := range metrics {
		rows = append(rows, metricRow{RunID: run.ID, Key: m.Key, Value: m.Value, Unit: m.Unit})
	}
	arts := make([]artifactRow, 0, len(artifacts))
	for _, a := range artifacts {
		content := a.Content
		if len(content) > maxArtifactBytes {
			content = content[len(content)-maxArtifactBytes:]
		}
		arts = append(arts, artifactRow{RunID: run.ID, Name: a.Name, Content: content})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&runRow{
			ID:          run.ID,
			Host:        run.Host,
			CreatedAt:   run.CreatedAt.UTC(),
			ArchiveName: run.ArchiveName,
			HealthScore: run.HealthScore,
		}).Error; err != nil {
			return err
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		if len(arts) > 0 {
			if err := tx.Create(&arts).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: commit run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []runRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	out := make([]Run, 0, len(rows))
	for _, r := range rows {
		out = append(out, runFromRow(r))
	}
	return out, nil
}

func (s *SQLite) GetRun(ctx context.Context, id string) (Run, error) {
	var row runRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("store: get run %s: %w", id, err)
	}
	return runFromRow(row), nil
}

func (s *SQLite) Metrics(ctx context.Context, runID string) ([]Metric, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	var rows []metricRow
	err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("key").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: metrics for run %s: %w", runID, err)
	}
	out := make([]Metric, 0, len(rows))
	for _, r := range rows {
		out = append(out, Metric{RunID: r.RunID, Key: r.Key, Value: r.Value, Unit: r.Unit})
	}
	return out, nil
}

func (s *SQLite) Artifact(ctx context.Context, runID, name string) (string, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return "", err
	}
	var row artifactRow
	err := s.db.WithContext(ctx).
		First(&row, "run_id = ? AND name = ?", runID, name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: artifact %s/%s: %w", runID, name, err)
	}
	return row.Content, nil
}

func (s *SQLite) Series(ctx context.Context, host, key string, since time.Time) ([]SeriesPoint, error) {
	var points []SeriesPoint
	err := s.db.WithContext(ctx).
		Table("metrics").
		Select("runs.created_at AS created_at, metrics.value AS value").
		Joins("JOIN runs ON runs.id = metrics.run_id").
		Where("runs.host = ? AND metrics.key = ? AND runs.created_at >= ?", host, key, since.UTC()).
		Order("runs.created_at").
		Scan(&points).Error
	if err != nil {
		return nil, fmt.Errorf("store: series %s/%s: %w", host, key, err)
	}
	return points, nil
}

func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func runFromRow(r runRow) Run {
	return Run{
		ID:          r.ID,
		Host:        r.Host,
		CreatedAt:   r.CreatedAt.UTC(),
		ArchiveName: r.ArchiveName,
		HealthScore: r.HealthScore,
	}
}
