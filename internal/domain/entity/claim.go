package entity

import "time"

// ClaimStatusPendingFulfillment is written to the claim once an appointment is booked
const ClaimStatusPendingFulfillment = "pending_fulfillment"

// Claim is the subset of the claim record the fulfillment flow reads and writes
type Claim struct {
	ID           string    `json:"id"`
	ClaimNumber  string    `json:"claim_number"`
	PolicyID     string    `json:"policy_id"`
	Status       string    `json:"status"`
	CoverageArea string    `json:"coverage_area,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ClaimStatusNote is one entry in a claim's status history
type ClaimStatusNote struct {
	ID        int64     `json:"id"`
	ClaimID   string    `json:"claim_id"`
	Status    string    `json:"status"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// Policy carries the excess and whether a paid payment already exists for it
type Policy struct {
	ID               string  `json:"id"`
	ExcessAmount     float64 `json:"excess_amount"`
	HasPaymentOnFile bool    `json:"has_payment_on_file"`
}

// CoveredItem is the single device covered by a policy
type CoveredItem struct {
	PolicyID      string   `json:"policy_id"`
	ProductName   string   `json:"product_name"`
	PurchasePrice *float64 `json:"purchase_price,omitempty"`
}

// Repairer is a directory entry
type Repairer struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	CompanyName  string `json:"company_name,omitempty"`
	CoverageArea string `json:"coverage_area,omitempty"`
}

// DisplayName prefers the company name
func (r *Repairer) DisplayName() string {
	if r.CompanyName != "" {
		return r.CompanyName
	}
	return r.Name
}
