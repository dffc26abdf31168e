// Package fulfillment holds the pure decision logic of the claim fulfillment flow:
// routing after excess payment, the UI step projection and appointment validation.
package fulfillment

import (
	"fmt"
	"strings"

	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
	"github.com/garyjia/claims-fulfillment/internal/domain/workflow"
)

// DefaultVoucherThreshold is the device value below which a confirmed device is settled by voucher
const DefaultVoucherThreshold = 150.0

// DefaultLargeItemCategories need an engineer visit instead of collection
var DefaultLargeItemCategories = []string{
	"Home Appliances",
	"TVs",
	"TV",
	"Smart TV",
	"Smart TVs",
	"Brown Goods",
	"White Goods",
	"Washing Machines",
	"Washing Machine",
	"Refrigerators",
	"Refrigerator",
	"Dishwashers",
	"Dishwasher",
	"Ovens",
	"Oven",
}

// Decision is the (fulfillment_type, status) pair a transition lands on.
// An empty Type keeps the record's current type.
type Decision struct {
	Type   entity.FulfillmentType
	Status workflow.State
}

// Rules are the routing business constants
type Rules struct {
	VoucherThreshold    float64
	LargeItemCategories []string

	largeItems map[string]struct{}
}

// NewRules normalizes the category list for case-insensitive lookups
func NewRules(threshold float64, largeItemCategories []string) Rules {
	r := Rules{
		VoucherThreshold:    threshold,
		LargeItemCategories: largeItemCategories,
		largeItems:          make(map[string]struct{}, len(largeItemCategories)),
	}
	for _, c := range largeItemCategories {
		if key := normalize(c); key != "" {
			r.largeItems[key] = struct{}{}
		}
	}
	return r
}

// DefaultRules returns the rules with the built-in constants
func DefaultRules() Rules {
	return NewRules(DefaultVoucherThreshold, DefaultLargeItemCategories)
}

// IsLargeItem reports whether the category mandates in-home service.
// Unknown (empty) categories are never large items.
func (r Rules) IsLargeItem(category string) bool {
	key := normalize(category)
	if key == "" {
		return false
	}
	_, ok := r.largeItems[key]
	return ok
}

// RouteExcess decides the outcome of the excess-payment confirmation.
// Large items always go in-home; otherwise only a confirmed positive value
// under the threshold yields a voucher.
func (r Rules) RouteExcess(category string, deviceValue *float64) Decision {
	if r.IsLargeItem(category) {
		return Decision{Type: entity.FulfillmentInHomeRepair, Status: workflow.StateAwaitingAppointment}
	}
	return r.RouteByValue(deviceValue)
}

// RouteByValue applies only the value threshold
func (r Rules) RouteByValue(deviceValue *float64) Decision {
	if deviceValue != nil && *deviceValue > 0 && *deviceValue < r.VoucherThreshold {
		return Decision{Type: entity.FulfillmentVoucher, Status: workflow.StateCompleted}
	}
	return Decision{Type: entity.FulfillmentCollectionRepair, Status: workflow.StateAwaitingAppointment}
}

// OverrideDecision sets the type directly and reopens scheduling
func OverrideDecision(t entity.FulfillmentType) (Decision, error) {
	if !t.IsValid() {
		return Decision{}, fmt.Errorf("unknown fulfillment type %q", t)
	}
	return Decision{Type: t, Status: workflow.StateAwaitingAppointment}, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
