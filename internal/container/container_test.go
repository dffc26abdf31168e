package container

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/claims-fulfillment/internal/config"
	"github.com/garyjia/claims-fulfillment/internal/domain/availability"
	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
	"github.com/garyjia/claims-fulfillment/internal/domain/fulfillment"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 18080},
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "fulfillment.db"), MaxOpenConns: 1},
		Routing: config.RoutingConfig{
			VoucherThreshold:    150,
			LargeItemCategories: []string{"TVs", "Home Appliances"},
		},
		Availability:   config.AvailabilityConfig{WindowDays: 30, PatternModulus: 7},
		Recommendation: config.RecommendationConfig{CacheTTL: time.Minute, RatePerMinute: 60, Burst: 1},
		Logger:         config.LoggerConfig{Level: "info"},
	}
}

func startContainer(t *testing.T, cfg *config.Config) *Container {
	t.Helper()
	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() {
		if !c.closed.Load() {
			_ = c.Close()
		}
	})
	return c
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Kind    string          `json:"kind"`
}

func call(t *testing.T, c *Container, method, path, body string) (int, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	c.Server().Router().ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

// firstOpenSlot finds a bookable (date, slot) for the repairer in the live window
func firstOpenSlot(t *testing.T, repairerID string) (time.Time, string) {
	t.Helper()
	oracle := availability.NewOracle(30, 7)
	today := fulfillment.StartOfDay(time.Now())
	for i := 1; i <= 30; i++ {
		d := today.AddDate(0, 0, i)
		if slots := oracle.AvailableSlots(repairerID, d); len(slots) > 0 {
			return d, slots[0]
		}
	}
	t.Fatalf("no open slot for %s", repairerID)
	return time.Time{}, ""
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)

	bad := testConfig(t)
	bad.Routing.VoucherThreshold = 0
	_, err = NewContainer(bad, zap.NewNop())
	assert.ErrorContains(t, err, "invalid config")
}

func TestContainer_Lifecycle(t *testing.T) {
	c := startContainer(t, testConfig(t))

	assert.True(t, c.Ready())
	assert.Error(t, c.Start(context.Background()), "second start")

	health := c.Health(context.Background())
	assert.True(t, health.Overall)
	assert.Equal(t, "disabled", health.Components["cache"].Message)
	assert.Equal(t, "disabled", health.Components["recommendations"].Message)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close(), "second close")
	assert.Error(t, c.Start(context.Background()), "start after close")
}

func TestContainer_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis = config.RedisConfig{Enabled: true, Addr: mr.Addr()}

	c := startContainer(t, cfg)
	health := c.Health(context.Background())
	assert.True(t, health.Components["cache"].Healthy)
	assert.Empty(t, health.Components["cache"].Message)
}

func TestContainer_RedisUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis = config.RedisConfig{Enabled: true, Addr: "127.0.0.1:1"}

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Error(t, c.Start(context.Background()))
	_ = c.Close()
}

func TestContainer_FulfillmentFlow(t *testing.T) {
	c := startContainer(t, testConfig(t))

	status, env := call(t, c, http.MethodGet, "/api/claims/clm-1001/fulfillment", "")
	require.Equal(t, http.StatusOK, status, env.Error)
	var view struct {
		Step             string  `json:"step"`
		DeviceCategory   string  `json:"device_category"`
		ExcessAmount     float64 `json:"excess_amount"`
		HasPaymentOnFile bool    `json:"has_payment_on_file"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, "excess_payment", view.Step)
	assert.Equal(t, "TVs", view.DeviceCategory)
	assert.Equal(t, 75.0, view.ExcessAmount)
	assert.True(t, view.HasPaymentOnFile)

	status, env = call(t, c, http.MethodPost, "/api/claims/clm-1001/fulfillment/excess", `{"method":"on_file"}`)
	require.Equal(t, http.StatusOK, status, env.Error)
	var record entity.FulfillmentRecord
	require.NoError(t, json.Unmarshal(env.Data, &record))
	assert.True(t, record.ExcessPaid)
	assert.Equal(t, entity.FulfillmentInHomeRepair, record.FulfillmentType)

	status, env = call(t, c, http.MethodPost, "/api/claims/clm-1001/fulfillment/excess", `{"method":"on_file"}`)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", env.Kind)

	status, _ = call(t, c, http.MethodGet, "/api/claims/clm-1001/fulfillment/availability?repairer_id=rep-001", "")
	assert.Equal(t, http.StatusOK, status)

	status, env = call(t, c, http.MethodGet, "/api/claims/clm-1001/fulfillment/recommendations", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unavailable", env.Kind)

	date, slot := firstOpenSlot(t, "rep-001")
	body := `{"repairer_id":"rep-001","date":"` + date.Format(fulfillment.DateLayout) + `","slot":"` + slot + `"}`
	status, env = call(t, c, http.MethodPost, "/api/claims/clm-1001/fulfillment/appointment", body)
	require.Equal(t, http.StatusOK, status, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &record))
	assert.True(t, strings.HasPrefix(record.EngineerReference, "ENG-"), record.EngineerReference)
	assert.Empty(t, record.LogisticsReference)

	claim, err := c.Repositories().Claims.GetByID(context.Background(), "clm-1001")
	require.NoError(t, err)
	assert.Equal(t, entity.ClaimStatusPendingFulfillment, claim.Status)

	status, env = call(t, c, http.MethodGet, "/api/claims/clm-1001/fulfillment/history", "")
	require.Equal(t, http.StatusOK, status)
	var history []entity.FulfillmentHistory
	require.NoError(t, json.Unmarshal(env.Data, &history))
	assert.Len(t, history, 2)
}

func TestContainer_UnknownClaim(t *testing.T) {
	c := startContainer(t, testConfig(t))

	status, env := call(t, c, http.MethodGet, "/api/claims/clm-missing/fulfillment", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", env.Kind)
}

func TestConvertToZapFields(t *testing.T) {
	fields := convertToZapFields("claim_id", "clm-1", 42, "skipped", "error", assert.AnError, "dangling")
	require.Len(t, fields, 2)
	assert.Equal(t, "claim_id", fields[0].Key)
	assert.Equal(t, "error", fields[1].Key)
}
