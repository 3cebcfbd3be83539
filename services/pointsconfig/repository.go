package pointsconfig

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository describes database operations available for church configs.
type Repository interface {
	// Get returns nil, nil when the church has no configuration.
	Get(ctx context.Context, churchID string) (*ChurchPointsConfig, error)
	Upsert(ctx context.Context, cfg *ChurchPointsConfig) error
	// CreateIfAbsent inserts cfg unless a row already exists and reports
	// whether it did.
	CreateIfAbsent(ctx context.Context, cfg *ChurchPointsConfig) (bool, error)
	List(ctx context.Context) ([]ChurchPointsConfig, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository returns a gorm backed Repository implementation.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Get(ctx context.Context, churchID string) (*ChurchPointsConfig, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var cfg ChurchPointsConfig
	err := r.db.WithContext(ctx).
		Where("church_id = ?", churchID).
		First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

var upsertColumns = []string{
	"attendance_points_present",
	"attendance_points_late",
	"attendance_points_excused",
	"attendance_points_absent",
	"trip_participation_points",
	"max_teacher_adjustment",
	"is_attendance_points_enabled",
	"is_trip_points_enabled",
	"is_teacher_adjustment_enabled",
	"award_condition",
	"updated_by",
	"updated_at",
}

func (r *gormRepository) Upsert(ctx context.Context, cfg *ChurchPointsConfig) error {
	if r == nil || r.db == nil {
		return gorm.ErrInvalidDB
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "church_id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		Create(cfg).Error
}

func (r *gormRepository) CreateIfAbsent(ctx context.Context, cfg *ChurchPointsConfig) (bool, error) {
	if r == nil || r.db == nil {
		return false, gorm.ErrInvalidDB
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "church_id"}},
			DoNothing: true,
		}).
		Create(cfg)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) List(ctx context.Context) ([]ChurchPointsConfig, error) {
	if r == nil || r.db == nil {
		return nil, gorm.ErrInvalidDB
	}

	var out []ChurchPointsConfig
	err := r.db.WithContext(ctx).
		Order("church_id ASC").
		Find(&out).Error
	return out, err
}
