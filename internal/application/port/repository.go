package port

import (
	"context"
	"errors"

	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
)

// Lookups return (nil, nil) when the row does not exist.

// ErrDuplicateReference is returned by FulfillmentRepository.Upsert when the
// booking reference is already held by another claim.
var ErrDuplicateReference = errors.New("booking reference already in use")

// FulfillmentRepository persists the one fulfillment record per claim
type FulfillmentRepository interface {
	// Upsert inserts or overwrites the record keyed by claim id; last write wins.
	// A reference held by another claim fails with ErrDuplicateReference.
	Upsert(ctx context.Context, record *entity.FulfillmentRecord) error
	GetByClaimID(ctx context.Context, claimID string) (*entity.FulfillmentRecord, error)
	// ReferenceExists reports whether any record already carries the engineer or logistics reference
	ReferenceExists(ctx context.Context, reference string) (bool, error)
}

// HistoryRepository persists fulfillment transition history
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.FulfillmentHistory) error
	GetByClaimID(ctx context.Context, claimID string) ([]*entity.FulfillmentHistory, error)
}

// ClaimRepository is the claim record store collaborator
type ClaimRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Claim, error)
	// UpdateStatus sets the claim status and appends a status-history note
	UpdateStatus(ctx context.Context, id string, status string, note string) error
	GetStatusNotes(ctx context.Context, id string) ([]*entity.ClaimStatusNote, error)
}

// PolicyRepository reads the policy excess and whether a paid payment exists
type PolicyRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Policy, error)
}

// CoveredItemRepository reads the single covered item of a policy
type CoveredItemRepository interface {
	GetByPolicyID(ctx context.Context, policyID string) (*entity.CoveredItem, error)
}

// DeviceCatalog looks up device categories by model name
type DeviceCatalog interface {
	// LookupCategory does a substring match in either direction and returns "" when nothing matches
	LookupCategory(ctx context.Context, modelName string) (string, error)
	Upsert(ctx context.Context, modelName, category string) error
}

// RepairerDirectory resolves repairer ids to directory entries
type RepairerDirectory interface {
	GetByID(ctx context.Context, id string) (*entity.Repairer, error)
	// ListByCoverageArea returns every repairer when area is empty
	ListByCoverageArea(ctx context.Context, area string) ([]*entity.Repairer, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
