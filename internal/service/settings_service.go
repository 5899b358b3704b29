package service

import (
	"context"
	"sync"
	"time"

	"github.com/webdevsha/permitakaun/internal/domain"
	"github.com/webdevsha/permitakaun/internal/repository"
	"go.uber.org/zap"
)

// settingsService reads system settings at request time, optionally caching them briefly
type settingsService struct {
	repo     repository.SettingsRepository
	defaults domain.SystemSettings
	ttl      time.Duration
	deps     Deps

	mu       sync.Mutex
	cached   domain.SystemSettings
	cachedAt time.Time
	loaded   bool
}

// NewSettingsService creates a new SettingsService; ttl 0 reads the store on every call
func NewSettingsService(repo repository.SettingsRepository, defaults domain.SystemSettings, ttl time.Duration, deps Deps) SettingsService {
	return &settingsService{
		repo:     repo,
		defaults: defaults,
		ttl:      ttl,
		deps:     deps.withDefaults(),
	}
}

// Get returns stored settings overlaid on configured defaults.
// A failed read falls back to the last good value, then to the defaults.
func (s *settingsService) Get(ctx context.Context) domain.SystemSettings {
	now := s.deps.Clock()

	s.mu.Lock()
	if s.loaded && s.ttl > 0 && now.Sub(s.cachedAt) < s.ttl {
		cached := s.cached
		s.mu.Unlock()
		return cached
	}
	s.mu.Unlock()

	stored, err := bounded(ctx, s.deps.Timeouts.Database, func(ctx context.Context) (map[string]string, error) {
		return s.repo.GetAll(ctx)
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.deps.Logger.WarnContext(ctx, "failed to read system settings, using fallback", zap.Error(err))
		if s.loaded {
			return s.cached
		}
		return s.defaults
	}
	s.cached = domain.ApplySettings(s.defaults, stored)
	s.cachedAt = now
	s.loaded = true
	return s.cached
}
