package fulfillment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
)

// DateLayout is the wire and storage format of appointment dates
const DateLayout = "2006-01-02"

var (
	ErrDateRequired     = errors.New("select an appointment date")
	ErrDateNotInFuture  = errors.New("appointment date must be in the future")
	ErrSlotRequired     = errors.New("select a time slot")
	ErrRepairerRequired = errors.New("select a repairer")
)

// ScheduleRequest is the user's appointment selection
type ScheduleRequest struct {
	RepairerID string
	Date       time.Time
	Slot       string
}

// Validate checks the selection against the record it will be applied to.
// Dates compare by calendar day.
func (r ScheduleRequest) Validate(record *entity.FulfillmentRecord, now time.Time) error {
	if r.Date.IsZero() {
		return ErrDateRequired
	}
	if strings.TrimSpace(r.Slot) == "" {
		return ErrSlotRequired
	}
	if !StartOfDay(r.Date).After(StartOfDay(now)) {
		return ErrDateNotInFuture
	}
	if record.FulfillmentType.RequiresRepairer() && strings.TrimSpace(r.RepairerID) == "" {
		return ErrRepairerRequired
	}
	return nil
}

// ParseDate parses a YYYY-MM-DD date in UTC
func ParseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, ErrDateRequired
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return d, nil
}

// StartOfDay returns UTC midnight of t's calendar date in t's own location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StatusNote is the human-readable claim history entry written on booking
func StatusNote(record *entity.FulfillmentRecord) string {
	kind := "Collection"
	if record.FulfillmentType == entity.FulfillmentInHomeRepair {
		kind = "Engineer visit"
	}
	date := ""
	if record.AppointmentDate != nil {
		date = record.AppointmentDate.Format("Monday 2 January 2006")
	}
	return fmt.Sprintf("%s scheduled for %s (%s). Reference: %s", kind, date, record.AppointmentSlot, record.Reference())
}
