package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
)

// Recommendation provider failure modes. Providers wrap one of these so
// callers can tell the user what happened.
var (
	ErrRateLimited     = errors.New("recommendation service rate limit exceeded")
	ErrCreditsRequired = errors.New("recommendation service requires payment or credits")
	ErrProviderFailure = errors.New("recommendation service failed")
)

// RecommendationRequest is the input to the recommendation provider
type RecommendationRequest struct {
	ClaimID        string
	DeviceCategory string
	CoverageArea   string
	Candidates     []*entity.Repairer
}

// RecommendationProvider ranks candidate repairers for a claim
type RecommendationProvider interface {
	Recommend(ctx context.Context, req RecommendationRequest) (*entity.RecommendationResult, error)
}

// RecommendationCache stores provider results; a miss is (nil, nil)
type RecommendationCache interface {
	Get(ctx context.Context, key string) (*entity.RecommendationResult, error)
	Set(ctx context.Context, key string, result *entity.RecommendationResult, ttl time.Duration) error
}

// PaymentReceipt is what the payment processor reports back
type PaymentReceipt struct {
	Reference   string
	ProcessedAt time.Time
}

// PaymentProcessor settles an excess payment for an alternate method
type PaymentProcessor interface {
	Process(ctx context.Context, claimID string, amount float64, selection entity.PaymentSelection) (*PaymentReceipt, error)
}
