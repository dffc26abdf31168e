package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/garyjia/claims-fulfillment/internal/application/port"
	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
)

// DefaultRecommendationTTL is used when no cache TTL is configured
const DefaultRecommendationTTL = 15 * time.Minute

// RecommendationService ranks repairers for a claim
type RecommendationService interface {
	Recommend(ctx context.Context, claimID, deviceCategory, coverageArea string) (*entity.RecommendationResult, error)
}

type recommendationServiceImpl struct {
	provider  port.RecommendationProvider
	cache     port.RecommendationCache
	directory port.RepairerDirectory
	limiter   *rate.Limiter
	ttl       time.Duration
	logger    Logger
}

// RecommendationOption configures the recommendation service
type RecommendationOption func(*recommendationServiceImpl)

// WithCache stores provider results; without it every call reaches the provider
func WithCache(cache port.RecommendationCache, ttl time.Duration) RecommendationOption {
	return func(s *recommendationServiceImpl) {
		s.cache = cache
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithRateLimit allows perMinute provider calls with the given burst
func WithRateLimit(perMinute float64, burst int) RecommendationOption {
	return func(s *recommendationServiceImpl) {
		if perMinute <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perMinute/60), burst)
	}
}

// NewRecommendationService creates a new RecommendationService
func NewRecommendationService(
	provider port.RecommendationProvider,
	directory port.RepairerDirectory,
	logger Logger,
	opts ...RecommendationOption,
) RecommendationService {
	if logger == nil {
		logger = nopLogger{}
	}
	s := &recommendationServiceImpl{
		provider:  provider,
		directory: directory,
		ttl:       DefaultRecommendationTTL,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recommend serves from cache when possible, otherwise asks the provider
func (s *recommendationServiceImpl) Recommend(ctx context.Context, claimID, deviceCategory, coverageArea string) (*entity.RecommendationResult, error) {
	key := RecommendationCacheKey(claimID, deviceCategory)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("Recommendation cache read failed", "key", key, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	if s.limiter != nil && !s.limiter.Allow() {
		s.logger.Warn("Recommendation request throttled", "claim_id", claimID)
		return nil, port.ErrRateLimited
	}

	candidates := s.candidates(ctx, coverageArea)

	result, err := s.provider.Recommend(ctx, port.RecommendationRequest{
		ClaimID:        claimID,
		DeviceCategory: deviceCategory,
		CoverageArea:   coverageArea,
		Candidates:     candidates,
	})
	if err != nil {
		s.logger.Error("Recommendation provider failed", "claim_id", claimID, "error", err)
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("%w: empty response", port.ErrProviderFailure)
	}

	s.fillNames(ctx, result)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, result, s.ttl); err != nil {
			s.logger.Warn("Recommendation cache write failed", "key", key, "error", err)
		}
	}

	s.logger.Info("Recommendations generated",
		"claim_id", claimID,
		"device_category", deviceCategory,
		"count", len(result.Recommendations),
	)
	return result, nil
}

// candidates prefers repairers covering the claim's area and falls back to the whole directory
func (s *recommendationServiceImpl) candidates(ctx context.Context, coverageArea string) []*entity.Repairer {
	if s.directory == nil {
		return nil
	}

	repairers, err := s.directory.ListByCoverageArea(ctx, coverageArea)
	if err != nil {
		s.logger.Warn("Repairer directory lookup failed", "coverage_area", coverageArea, "error", err)
		return nil
	}
	if len(repairers) == 0 && coverageArea != "" {
		repairers, err = s.directory.ListByCoverageArea(ctx, "")
		if err != nil {
			s.logger.Warn("Repairer directory lookup failed", "error", err)
			return nil
		}
	}
	return repairers
}

func (s *recommendationServiceImpl) fillNames(ctx context.Context, result *entity.RecommendationResult) {
	if s.directory == nil {
		return
	}
	for i := range result.Recommendations {
		rec := &result.Recommendations[i]
		if rec.RepairerName != "" || rec.RepairerID == "" {
			continue
		}
		repairer, err := s.directory.GetByID(ctx, rec.RepairerID)
		if err != nil {
			s.logger.Warn("Repairer name lookup failed", "repairer_id", rec.RepairerID, "error", err)
			continue
		}
		if repairer != nil {
			rec.RepairerName = repairer.DisplayName()
		}
	}
}

// RecommendationCacheKey is the cache key for a claim and device category
func RecommendationCacheKey(claimID, deviceCategory string) string {
	return fmt.Sprintf("recommendations:%s:%s", claimID, deviceCategory)
}
