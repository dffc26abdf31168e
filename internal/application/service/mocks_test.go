package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/garyjia/claims-fulfillment/internal/application/port"
	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
)

// memRecords is an in-memory FulfillmentRepository keyed by claim id
type memRecords struct {
	mu         sync.Mutex
	rows       map[string]*entity.FulfillmentRecord
	nextID     int64
	collisions int
	existsCall int
	// insertConflicts fails that many reference-carrying upserts as duplicates
	insertConflicts int
	getHook    func(ctx context.Context) error
}

func newMemRecords() *memRecords {
	return &memRecords{rows: make(map[string]*entity.FulfillmentRecord)}
}

func (m *memRecords) Upsert(ctx context.Context, record *entity.FulfillmentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record.Reference() != "" && m.insertConflicts > 0 {
		m.insertConflicts--
		return port.ErrDuplicateReference
	}
	if existing, ok := m.rows[record.ClaimID]; ok {
		record.ID = existing.ID
	} else {
		m.nextID++
		record.ID = m.nextID
	}
	m.rows[record.ClaimID] = record.Clone()
	return nil
}

func (m *memRecords) GetByClaimID(ctx context.Context, claimID string) (*entity.FulfillmentRecord, error) {
	if m.getHook != nil {
		if err := m.getHook(ctx); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[claimID].Clone(), nil
}

func (m *memRecords) ReferenceExists(ctx context.Context, reference string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsCall++
	if m.existsCall <= m.collisions {
		return true, nil
	}
	for _, r := range m.rows {
		if r.Reference() == reference {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRecords) get(claimID string) *entity.FulfillmentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[claimID].Clone()
}

func (m *memRecords) put(record *entity.FulfillmentRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[record.ClaimID] = record.Clone()
}

func (m *memRecords) snapshot() map[string]*entity.FulfillmentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*entity.FulfillmentRecord, len(m.rows))
	for k, v := range m.rows {
		out[k] = v.Clone()
	}
	return out
}

func (m *memRecords) restore(rows map[string]*entity.FulfillmentRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = rows
}

type memHistory struct {
	mu   sync.Mutex
	rows []*entity.FulfillmentHistory
}

func (m *memHistory) Create(ctx context.Context, history *entity.FulfillmentHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	history.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, history)
	return nil
}

func (m *memHistory) GetByClaimID(ctx context.Context, claimID string) ([]*entity.FulfillmentHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.FulfillmentHistory
	for _, h := range m.rows {
		if h.ClaimID == claimID {
			out = append(out, h)
		}
	}
	return out, nil
}

// snapshotTx rolls the in-memory records back when fn fails
type snapshotTx struct {
	records *memRecords
}

func (t *snapshotTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	saved := t.records.snapshot()
	if err := fn(ctx); err != nil {
		t.records.restore(saved)
		return err
	}
	return nil
}

type mockClaims struct{ mock.Mock }

func (m *mockClaims) GetByID(ctx context.Context, id string) (*entity.Claim, error) {
	args := m.Called(ctx, id)
	claim, _ := args.Get(0).(*entity.Claim)
	return claim, args.Error(1)
}

func (m *mockClaims) UpdateStatus(ctx context.Context, id string, status string, note string) error {
	args := m.Called(ctx, id, status, note)
	return args.Error(0)
}

func (m *mockClaims) GetStatusNotes(ctx context.Context, id string) ([]*entity.ClaimStatusNote, error) {
	args := m.Called(ctx, id)
	notes, _ := args.Get(0).([]*entity.ClaimStatusNote)
	return notes, args.Error(1)
}

type mockPolicies struct{ mock.Mock }

func (m *mockPolicies) GetByID(ctx context.Context, id string) (*entity.Policy, error) {
	args := m.Called(ctx, id)
	policy, _ := args.Get(0).(*entity.Policy)
	return policy, args.Error(1)
}

type mockItems struct{ mock.Mock }

func (m *mockItems) GetByPolicyID(ctx context.Context, policyID string) (*entity.CoveredItem, error) {
	args := m.Called(ctx, policyID)
	item, _ := args.Get(0).(*entity.CoveredItem)
	return item, args.Error(1)
}

type mockDirectory struct{ mock.Mock }

func (m *mockDirectory) GetByID(ctx context.Context, id string) (*entity.Repairer, error) {
	args := m.Called(ctx, id)
	repairer, _ := args.Get(0).(*entity.Repairer)
	return repairer, args.Error(1)
}

func (m *mockDirectory) ListByCoverageArea(ctx context.Context, area string) ([]*entity.Repairer, error) {
	args := m.Called(ctx, area)
	repairers, _ := args.Get(0).([]*entity.Repairer)
	return repairers, args.Error(1)
}

type mockPayments struct{ mock.Mock }

func (m *mockPayments) Process(ctx context.Context, claimID string, amount float64, selection entity.PaymentSelection) (*port.PaymentReceipt, error) {
	args := m.Called(ctx, claimID, amount, selection)
	receipt, _ := args.Get(0).(*port.PaymentReceipt)
	return receipt, args.Error(1)
}

type mockProvider struct{ mock.Mock }

func (m *mockProvider) Recommend(ctx context.Context, req port.RecommendationRequest) (*entity.RecommendationResult, error) {
	args := m.Called(ctx, req)
	result, _ := args.Get(0).(*entity.RecommendationResult)
	return result, args.Error(1)
}

type mockRecommender struct{ mock.Mock }

func (m *mockRecommender) Recommend(ctx context.Context, claimID, deviceCategory, coverageArea string) (*entity.RecommendationResult, error) {
	args := m.Called(ctx, claimID, deviceCategory, coverageArea)
	result, _ := args.Get(0).(*entity.RecommendationResult)
	return result, args.Error(1)
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]*entity.RecommendationResult
	ttls    map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{
		entries: make(map[string]*entity.RecommendationResult),
		ttls:    make(map[string]time.Duration),
	}
}

func (c *memCache) Get(ctx context.Context, key string) (*entity.RecommendationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key], nil
}

func (c *memCache) Set(ctx context.Context, key string, result *entity.RecommendationResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = result
	c.ttls[key] = ttl
	return nil
}
