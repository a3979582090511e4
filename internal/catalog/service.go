package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const snapshotKey = "catalog:snapshot"

// RepositoryPort describes the reads the service needs.
type RepositoryPort interface {
	ListProjects(ctx context.Context) ([]Project, error)
	GetProject(ctx context.Context, id int64) (Project, error)
	GetMaterials(ctx context.Context, ids []int64) ([]ProductMaterial, error)
}

// Service serves catalog snapshots, fronted by a short-TTL Redis cache. The
// sourcing funnel re-reads the snapshot on every selection step, so concurrent
// reads collapse through singleflight instead of each hitting PostgreSQL.
type Service struct {
	repo   RepositoryPort
	cache  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// NewService constructs the catalog service. cache may be nil, in which case
// every snapshot read goes to the repository.
func NewService(repo RepositoryPort, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Service{repo: repo, cache: cache, ttl: ttl, logger: logger}
}

// ListProjects returns the full catalog, cached.
func (s *Service) ListProjects(ctx context.Context) ([]Project, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, snapshotKey).Bytes()
		if err == nil {
			var projects []Project
			if err := json.Unmarshal(raw, &projects); err == nil {
				return projects, nil
			}
			// A corrupt snapshot falls through to a fresh load.
		} else if !errors.Is(err, redis.Nil) && s.logger != nil {
			s.logger.Warn("catalog cache read", slog.Any("error", err))
		}
	}

	v, err, _ := s.group.Do(snapshotKey, func() (any, error) {
		projects, err := s.repo.ListProjects(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if raw, err := json.Marshal(projects); err == nil {
				if err := s.cache.Set(ctx, snapshotKey, raw, s.ttl).Err(); err != nil && s.logger != nil {
					s.logger.Warn("catalog cache write", slog.Any("error", err))
				}
			}
		}
		return projects, nil
	})
	if err != nil {
		return nil, err
	}
	projects, _ := v.([]Project)
	return projects, nil
}

// GetProject bypasses the snapshot cache; single-project reads back offer
// drafting where staleness is not acceptable.
func (s *Service) GetProject(ctx context.Context, id int64) (Project, error) {
	return s.repo.GetProject(ctx, id)
}

// GetMaterials resolves materials by ID, uncached.
func (s *Service) GetMaterials(ctx context.Context, ids []int64) ([]ProductMaterial, error) {
	return s.repo.GetMaterials(ctx, ids)
}

// Invalidate drops the snapshot; fulfillment calls this after it flips
// material statuses so the funnel never offers an already-ordered material.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, snapshotKey).Err(); err != nil && s.logger != nil {
		s.logger.Warn("catalog cache invalidate", slog.Any("error", err))
	}
}
