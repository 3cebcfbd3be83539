package pointsconfig

import (
	"context"
	"time"

	"sundayschool-points/pkg/config"
	"sundayschool-points/pkg/errutil"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service is the administrative surface over church configurations.
// Configurations are never deleted.
type Service struct {
	repo       Repository
	cache      Cache
	conditions *Conditions
	defaults   config.Points
	now        func() time.Time
}

type ServiceParams struct {
	fx.In
	Config     *config.Config
	Repo       Repository
	Cache      Cache
	Conditions *Conditions
}

func NewService(p ServiceParams) *Service {
	return &Service{
		repo:       p.Repo,
		cache:      p.Cache,
		conditions: p.Conditions,
		defaults:   p.Config.Points,
		now:        time.Now,
	}
}

func (s *Service) Get(ctx context.Context, churchID string) (*ChurchPointsConfig, error) {
	cfg, err := s.repo.Get(ctx, churchID)
	if err != nil {
		return nil, errutil.Internal("failed to load points configuration", err)
	}
	if cfg == nil {
		return nil, ErrConfigNotFound
	}
	return cfg, nil
}

func (s *Service) List(ctx context.Context) ([]ChurchPointsConfig, error) {
	out, err := s.repo.List(ctx)
	if err != nil {
		return nil, errutil.Internal("failed to list points configurations", err)
	}
	return out, nil
}

// Upsert applies patch to the church's configuration, starting from the
// defaults when none exists yet.
func (s *Service) Upsert(ctx context.Context, churchID string, patch Patch, actorID string) (*ChurchPointsConfig, error) {
	current, err := s.repo.Get(ctx, churchID)
	if err != nil {
		return nil, errutil.Internal("failed to load points configuration", err)
	}
	if current == nil {
		current = Defaults(churchID, s.defaults)
		current.CreatedAt = s.now()
	}

	patch.apply(current)
	if err := current.Validate(); err != nil {
		return nil, err
	}
	if err := s.conditions.Validate(current.AwardCondition); err != nil {
		return nil, err
	}

	if actorID != "" {
		current.UpdatedBy = &actorID
	}
	current.UpdatedAt = s.now()

	if err := s.repo.Upsert(ctx, current); err != nil {
		zap.L().Error("failed to save points configuration", zap.String("church_id", churchID), zap.Error(err))
		return nil, errutil.Internal("failed to save points configuration", err)
	}
	s.cache.Invalidate(ctx, churchID)

	zap.L().Info("points configuration updated",
		zap.String("church_id", churchID),
		zap.String("actor_id", actorID),
	)
	return current, nil
}

// Ensure creates the default configuration for a church if it has none. It
// reports whether a row was created.
func (s *Service) Ensure(ctx context.Context, churchID string) (*ChurchPointsConfig, bool, error) {
	if churchID == "" {
		return nil, false, errutil.ValidationFailed("church id is required", nil)
	}

	cfg := Defaults(churchID, s.defaults)
	now := s.now()
	cfg.CreatedAt, cfg.UpdatedAt = now, now
	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}

	created, err := s.repo.CreateIfAbsent(ctx, cfg)
	if err != nil {
		return nil, false, errutil.Internal("failed to create points configuration", err)
	}
	if !created {
		existing, err := s.Get(ctx, churchID)
		return existing, false, err
	}
	return cfg, true, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&ChurchPointsConfig{})
}
