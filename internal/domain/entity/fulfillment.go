package entity

import (
	"time"

	"github.com/garyjia/claims-fulfillment/internal/domain/workflow"
)

// FulfillmentType is the routing outcome decided when the excess is paid
type FulfillmentType string

const (
	FulfillmentInHomeRepair     FulfillmentType = "in_home_repair"
	FulfillmentCollectionRepair FulfillmentType = "collection_repair"
	FulfillmentVoucher          FulfillmentType = "voucher"
)

// IsValid returns true for the three known fulfillment types
func (t FulfillmentType) IsValid() bool {
	switch t {
	case FulfillmentInHomeRepair, FulfillmentCollectionRepair, FulfillmentVoucher:
		return true
	default:
		return false
	}
}

// RequiresRepairer is false only for the voucher path
func (t FulfillmentType) RequiresRepairer() bool {
	return t != FulfillmentVoucher
}

// FulfillmentRecord is the single fulfillment row owned by a claim.
// Optional columns are pointers; a nil record means step 1 has not completed.
type FulfillmentRecord struct {
	ID                  int64             `json:"id"`
	ClaimID             string            `json:"claim_id"`
	ExcessPaid          bool              `json:"excess_paid"`
	ExcessAmount        *float64          `json:"excess_amount,omitempty"`
	ExcessPaymentMethod PaymentMethodKind `json:"excess_payment_method,omitempty"`
	ExcessPaymentDate   *time.Time        `json:"excess_payment_date,omitempty"`
	DeviceValue         *float64          `json:"device_value,omitempty"`
	FulfillmentType     FulfillmentType   `json:"fulfillment_type,omitempty"`
	RepairerID          string            `json:"repairer_id,omitempty"`
	AppointmentDate     *time.Time        `json:"appointment_date,omitempty"`
	AppointmentSlot     string            `json:"appointment_slot,omitempty"`
	EngineerReference   string            `json:"engineer_reference,omitempty"`
	LogisticsReference  string            `json:"logistics_reference,omitempty"`
	Status              workflow.State    `json:"status"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// NewFulfillmentRecord returns the in-memory starting point for a claim with no row yet
func NewFulfillmentRecord(claimID string) *FulfillmentRecord {
	return &FulfillmentRecord{
		ClaimID: claimID,
		Status:  workflow.StatePendingExcess,
	}
}

// Clone returns a deep copy so transitions never mutate a caller's record
func (r *FulfillmentRecord) Clone() *FulfillmentRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.ExcessAmount = cloneFloat(r.ExcessAmount)
	c.DeviceValue = cloneFloat(r.DeviceValue)
	c.ExcessPaymentDate = cloneTime(r.ExcessPaymentDate)
	c.AppointmentDate = cloneTime(r.AppointmentDate)
	return &c
}

// Reference returns whichever of the engineer or logistics references is set
func (r *FulfillmentRecord) Reference() string {
	if r.EngineerReference != "" {
		return r.EngineerReference
	}
	return r.LogisticsReference
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// FulfillmentHistory is the audit trail of fulfillment transitions
type FulfillmentHistory struct {
	ID             int64     `json:"id"`
	ClaimID        string    `json:"claim_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Trigger        string    `json:"trigger"`
	Note           string    `json:"note"`
	CorrelationID  string    `json:"correlation_id"`
	CreatedAt      time.Time `json:"created_at"`
}
