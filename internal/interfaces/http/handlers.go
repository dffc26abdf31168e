package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/claims-fulfillment/internal/application/service"
	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
	"github.com/garyjia/claims-fulfillment/internal/domain/fulfillment"
	"github.com/garyjia/claims-fulfillment/pkg/apperr"
	"github.com/garyjia/claims-fulfillment/pkg/utils"
)

// Payment methods accepted on the wire
const (
	MethodOnFile      = "on_file"
	MethodCreditCard  = "credit_card"
	MethodBankAccount = "bank_account"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	fulfillment service.FulfillmentService
	health      Pinger
	logger      Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(fulfillment service.FulfillmentService, health Pinger, logger Logger) *Handlers {
	return &Handlers{
		fulfillment: fulfillment,
		health:      health,
		logger:      logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Kind    string      `json:"kind,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// ExcessPaymentRequest selects exactly one payment method
type ExcessPaymentRequest struct {
	Method string              `json:"method" validate:"required,oneof=on_file credit_card bank_account"`
	Card   *entity.CardPayment `json:"card,omitempty" validate:"required_if=Method credit_card"`
	Bank   *entity.BankPayment `json:"bank,omitempty" validate:"required_if=Method bank_account"`
}

// DeviceValueRequest confirms the device value
type DeviceValueRequest struct {
	DeviceValue float64 `json:"device_value" validate:"gt=0"`
}

// FulfillmentTypeRequest overrides the routed fulfillment type
type FulfillmentTypeRequest struct {
	FulfillmentType string `json:"fulfillment_type" validate:"required,oneof=in_home_repair collection_repair voucher"`
}

// AppointmentRequest books a repairer slot
type AppointmentRequest struct {
	RepairerID string `json:"repairer_id"`
	Date       string `json:"date" validate:"required,datetime=2006-01-02"`
	Slot       string `json:"slot" validate:"required"`
}

// Selection converts the request into the payment union
func (r ExcessPaymentRequest) Selection() entity.PaymentSelection {
	switch r.Method {
	case MethodCreditCard:
		if r.Card == nil {
			return entity.CardPayment{}
		}
		return *r.Card
	case MethodBankAccount:
		if r.Bank == nil {
			return entity.BankPayment{}
		}
		return *r.Bank
	default:
		return entity.OnFilePayment{}
	}
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   "1.0.0",
	}

	if h.health != nil {
		if err := h.health.Ping(c.Request.Context()); err != nil {
			h.logger.Error("Health check failed", "error", err)
			response.Status = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, Response{
				Success: false,
				Data:    response,
				Error:   "dependency unavailable",
			})
			return
		}
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    response,
	})
}

// GetFulfillment handles GET /api/claims/:id/fulfillment
func (h *Handlers) GetFulfillment(c *gin.Context) {
	view, err := h.fulfillment.Load(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to load fulfillment", err)
		return
	}
	h.ok(c, view)
}

// GetHistory handles GET /api/claims/:id/fulfillment/history
func (h *Handlers) GetHistory(c *gin.Context) {
	history, err := h.fulfillment.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to load fulfillment history", err)
		return
	}
	if history == nil {
		history = []*entity.FulfillmentHistory{}
	}
	h.ok(c, history)
}

// ConfirmExcessPayment handles POST /api/claims/:id/fulfillment/excess
func (h *Handlers) ConfirmExcessPayment(c *gin.Context) {
	var req ExcessPaymentRequest
	if !h.bind(c, &req) {
		return
	}

	record, err := h.fulfillment.ConfirmExcessPayment(c.Request.Context(), c.Param("id"), req.Selection())
	if err != nil {
		h.fail(c, "Failed to confirm excess payment", err)
		return
	}
	h.ok(c, record)
}

// ConfirmDeviceValue handles POST /api/claims/:id/fulfillment/device-value
func (h *Handlers) ConfirmDeviceValue(c *gin.Context) {
	var req DeviceValueRequest
	if !h.bind(c, &req) {
		return
	}

	record, err := h.fulfillment.ConfirmDeviceValue(c.Request.Context(), c.Param("id"), req.DeviceValue)
	if err != nil {
		h.fail(c, "Failed to confirm device value", err)
		return
	}
	h.ok(c, record)
}

// OverrideFulfillmentType handles POST /api/claims/:id/fulfillment/type
func (h *Handlers) OverrideFulfillmentType(c *gin.Context) {
	var req FulfillmentTypeRequest
	if !h.bind(c, &req) {
		return
	}

	record, err := h.fulfillment.OverrideFulfillmentType(c.Request.Context(), c.Param("id"), entity.FulfillmentType(req.FulfillmentType))
	if err != nil {
		h.fail(c, "Failed to override fulfillment type", err)
		return
	}
	h.ok(c, record)
}

// GetRecommendations handles GET /api/claims/:id/fulfillment/recommendations
func (h *Handlers) GetRecommendations(c *gin.Context) {
	result, err := h.fulfillment.Recommendations(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "Failed to get recommendations", err)
		return
	}
	h.ok(c, result)
}

// GetAvailability handles GET /api/claims/:id/fulfillment/availability
func (h *Handlers) GetAvailability(c *gin.Context) {
	view, err := h.fulfillment.Availability(c.Request.Context(), c.Param("id"), c.Query("repairer_id"))
	if err != nil {
		h.fail(c, "Failed to get availability", err)
		return
	}
	h.ok(c, view)
}

// GetSlots handles GET /api/claims/:id/fulfillment/slots
func (h *Handlers) GetSlots(c *gin.Context) {
	date, err := fulfillment.ParseDate(c.Query("date"))
	if err != nil {
		h.fail(c, "Invalid slot date", apperr.Wrap(apperr.KindValidation, err.Error(), err))
		return
	}

	view, err := h.fulfillment.Slots(c.Request.Context(), c.Param("id"), c.Query("repairer_id"), date)
	if err != nil {
		h.fail(c, "Failed to get slots", err)
		return
	}
	h.ok(c, view)
}

// ConfirmAppointment handles POST /api/claims/:id/fulfillment/appointment
func (h *Handlers) ConfirmAppointment(c *gin.Context) {
	var req AppointmentRequest
	if !h.bind(c, &req) {
		return
	}

	date, err := fulfillment.ParseDate(req.Date)
	if err != nil {
		h.fail(c, "Invalid appointment date", apperr.Wrap(apperr.KindValidation, err.Error(), err))
		return
	}

	record, err := h.fulfillment.ConfirmAppointment(c.Request.Context(), c.Param("id"), fulfillment.ScheduleRequest{
		RepairerID: strings.TrimSpace(req.RepairerID),
		Date:       date,
		Slot:       strings.TrimSpace(req.Slot),
	})
	if err != nil {
		h.fail(c, "Failed to confirm appointment", err)
		return
	}
	h.ok(c, record)
}

// bind decodes and validates the JSON body, writing a 400 or 422 on failure
func (h *Handlers) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.logger.Info("Invalid request body", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
			Kind:    apperr.KindValidation.String(),
		})
		return false
	}
	if err := utils.ValidateStruct(req); err != nil {
		h.fail(c, "Request validation failed", apperr.Wrap(apperr.KindValidation, err.Error(), err))
		return false
	}
	return true
}

func (h *Handlers) ok(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// fail renders err with its mapped status. Internal failures are logged and
// hidden behind a generic message.
func (h *Handlers) fail(c *gin.Context, msg string, err error) {
	status := apperr.HTTPStatus(err)
	kind := apperr.GetKind(err)
	if kind == apperr.KindUnknown {
		kind = apperr.KindInternal
	}

	message := err.Error()
	if status >= http.StatusInternalServerError && kind != apperr.KindUnavailable {
		h.logger.Error(msg, "claim_id", c.Param("id"), "error", err)
		message = "internal error"
	} else {
		h.logger.Info(msg, "claim_id", c.Param("id"), "status", status, "error", err)
	}

	c.JSON(status, Response{
		Success: false,
		Error:   message,
		Kind:    kind.String(),
	})
}
