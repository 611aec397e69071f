package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"coverage-service/internal/models"
	"coverage-service/internal/repository"

	"github.com/redis/go-redis/v9"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000

	coverageCachePrefix = "coverage:"
	coverageCacheTTL    = 5 * time.Minute
)

// RegionService serves the read paths over the region store.
type RegionService struct {
	regionRepository *repository.RegionRepository
	cache            *redis.Client
}

// NewRegionService wires the read paths. cache may be nil; coverage lookups
// then always hit Postgres.
func NewRegionService(regionRepository *repository.RegionRepository, cache *redis.Client) *RegionService {
	return &RegionService{
		regionRepository: regionRepository,
		cache:            cache,
	}
}

// CreateRegion stores a single region posted as a GeoJSON feature and
// returns it with its assigned ID. Admin path; bulk loads go through the
// import pipeline instead.
func (s *RegionService) CreateRegion(ctx context.Context, feature *models.Feature) (*models.Feature, error) {
	region, err := models.RegionFromFeature(feature)
	if err != nil {
		return nil, err
	}
	if err := s.regionRepository.Insert(ctx, region); err != nil {
		return nil, err
	}
	return region.ToFeature()
}

// DeleteRegion removes a region by ID. Admin path.
func (s *RegionService) DeleteRegion(id int) error {
	return s.regionRepository.Delete(id)
}

// ListRegions returns a FeatureCollection of regions, optionally filtered by
// exact status, paged by skip/limit.
func (s *RegionService) ListRegions(ctx context.Context, statusFilter string, skip, limit int) (*models.FeatureCollection, error) {
	status, err := parseStatusFilter(statusFilter)
	if err != nil {
		return nil, err
	}

	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	regions, err := s.regionRepository.List(ctx, status, skip, limit)
	if err != nil {
		return nil, err
	}
	return models.NewFeatureCollection(regions)
}

// ListRegionsGeoJSON returns every matching region without paging.
func (s *RegionService) ListRegionsGeoJSON(ctx context.Context, statusFilter string) (*models.FeatureCollection, error) {
	status, err := parseStatusFilter(statusFilter)
	if err != nil {
		return nil, err
	}

	regions, err := s.regionRepository.List(ctx, status, 0, 0)
	if err != nil {
		return nil, err
	}
	return models.NewFeatureCollection(regions)
}

// GetRegionByID returns a single region as a GeoJSON feature.
func (s *RegionService) GetRegionByID(ctx context.Context, id int) (*models.Feature, error) {
	region, err := s.regionRepository.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return region.ToFeature()
}

// GetRegionByName returns the first region whose name contains the given
// substring, case-insensitive.
func (s *RegionService) GetRegionByName(ctx context.Context, name string) (*models.Feature, error) {
	region, err := s.regionRepository.GetByNameFuzzy(ctx, name)
	if err != nil {
		return nil, err
	}
	return region.ToFeature()
}

// GetCoverage answers a fuzzy-name coverage lookup, caching responses for a
// short window. Cache failures fall through to Postgres.
func (s *RegionService) GetCoverage(ctx context.Context, name string) (*models.CoverageResponse, error) {
	cacheKey := coverageCachePrefix + strings.ToLower(name)

	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached models.CoverageResponse
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	region, err := s.regionRepository.GetByNameFuzzy(ctx, name)
	if err != nil {
		return nil, err
	}

	response := &models.CoverageResponse{
		Region:  region.Name,
		Status:  region.FiberStatus.String(),
		Details: region.Properties,
	}

	if s.cache != nil {
		if data, err := json.Marshal(response); err == nil {
			if err := s.cache.Set(ctx, cacheKey, data, coverageCacheTTL).Err(); err != nil {
				slog.Warn("failed to cache coverage response", "key", cacheKey, "error", err)
			}
		}
	}

	return response, nil
}

func parseStatusFilter(statusFilter string) (*models.FiberStatus, error) {
	if statusFilter == "" {
		return nil, nil
	}
	status, err := models.ParseFiberStatus(statusFilter)
	if err != nil {
		return nil, fmt.Errorf("status filter: %w", err)
	}
	return &status, nil
}
