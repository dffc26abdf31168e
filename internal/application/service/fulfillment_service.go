package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/garyjia/claims-fulfillment/internal/application/port"
	"github.com/garyjia/claims-fulfillment/internal/application/workflow"
	"github.com/garyjia/claims-fulfillment/internal/domain/availability"
	"github.com/garyjia/claims-fulfillment/internal/domain/device"
	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
	"github.com/garyjia/claims-fulfillment/internal/domain/event"
	"github.com/garyjia/claims-fulfillment/internal/domain/fulfillment"
	domainwf "github.com/garyjia/claims-fulfillment/internal/domain/workflow"
	"github.com/garyjia/claims-fulfillment/pkg/apperr"
)

// maxReferenceAttempts bounds the checked-insert retry for booking references
const maxReferenceAttempts = 5

// FlowView is everything the fulfillment screen needs to render the current step
type FlowView struct {
	Claim             *entity.Claim             `json:"claim"`
	Record            *entity.FulfillmentRecord `json:"record,omitempty"`
	Step              string                    `json:"step"`
	ProductName       string                    `json:"product_name,omitempty"`
	DeviceCategory    string                    `json:"device_category"`
	IsLargeItem       bool                      `json:"is_large_item"`
	ExcessAmount      float64                   `json:"excess_amount"`
	HasPaymentOnFile  bool                      `json:"has_payment_on_file"`
	DeviceValue       *float64                  `json:"device_value,omitempty"`
	PermittedTriggers []domainwf.Trigger        `json:"permitted_triggers"`
}

// AvailabilityView lists a repairer's blocked dates in the booking window
type AvailabilityView struct {
	RepairerID       string   `json:"repairer_id"`
	RepairerName     string   `json:"repairer_name,omitempty"`
	UnavailableDates []string `json:"unavailable_dates"`
}

// SlotsView lists the open slots for one repairer and date
type SlotsView struct {
	RepairerID string   `json:"repairer_id"`
	Date       string   `json:"date"`
	Slots      []string `json:"slots"`
}

// FulfillmentService drives a claim through excess payment, routing and scheduling
type FulfillmentService interface {
	Load(ctx context.Context, claimID string) (*FlowView, error)
	ConfirmExcessPayment(ctx context.Context, claimID string, selection entity.PaymentSelection) (*entity.FulfillmentRecord, error)
	ConfirmDeviceValue(ctx context.Context, claimID string, value float64) (*entity.FulfillmentRecord, error)
	OverrideFulfillmentType(ctx context.Context, claimID string, fulfillmentType entity.FulfillmentType) (*entity.FulfillmentRecord, error)
	Recommendations(ctx context.Context, claimID string) (*entity.RecommendationResult, error)
	Availability(ctx context.Context, claimID, repairerID string) (*AvailabilityView, error)
	Slots(ctx context.Context, claimID, repairerID string, date time.Time) (*SlotsView, error)
	ConfirmAppointment(ctx context.Context, claimID string, req fulfillment.ScheduleRequest) (*entity.FulfillmentRecord, error)
	History(ctx context.Context, claimID string) ([]*entity.FulfillmentHistory, error)
}

// FulfillmentDeps are the collaborators of the fulfillment service.
// Payments, Recommender and Logger are optional.
type FulfillmentDeps struct {
	Records     port.FulfillmentRepository
	History     port.HistoryRepository
	Claims      port.ClaimRepository
	Policies    port.PolicyRepository
	Items       port.CoveredItemRepository
	Repairers   port.RepairerDirectory
	Engine      workflow.Engine
	Resolver    *device.Resolver
	Oracle      *availability.Oracle
	Rules       fulfillment.Rules
	References  *fulfillment.ReferenceGenerator
	Payments    port.PaymentProcessor
	Recommender RecommendationService
	Logger      Logger
	Now         func() time.Time
}

type fulfillmentServiceImpl struct {
	FulfillmentDeps
	lookups *supersession
}

// NewFulfillmentService creates a new FulfillmentService
func NewFulfillmentService(deps FulfillmentDeps) FulfillmentService {
	if deps.Logger == nil {
		deps.Logger = nopLogger{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.References == nil {
		deps.References = fulfillment.NewReferenceGenerator()
	}
	if deps.Oracle == nil {
		deps.Oracle = availability.NewOracle(0, 0)
	}
	if deps.Resolver == nil {
		deps.Resolver = device.NewResolver(nil, nil)
	}
	return &fulfillmentServiceImpl{
		FulfillmentDeps: deps,
		lookups:         newSupersession(),
	}
}

// flowContext is the claim side state a decision is made against
type flowContext struct {
	claim    *entity.Claim
	record   *entity.FulfillmentRecord
	policy   *entity.Policy
	item     *entity.CoveredItem
	category device.Category
}

func (c *flowContext) productName() string {
	if c.item == nil {
		return ""
	}
	return c.item.ProductName
}

func (c *flowContext) deviceValue() *float64 {
	if c.item == nil {
		return nil
	}
	return c.item.PurchasePrice
}

// current returns the persisted record or the pending_excess starting point
func (c *flowContext) current() *entity.FulfillmentRecord {
	if c.record != nil {
		return c.record
	}
	return entity.NewFulfillmentRecord(c.claim.ID)
}

func (s *fulfillmentServiceImpl) loadContext(ctx context.Context, claimID string) (*flowContext, error) {
	if claimID == "" {
		return nil, apperr.Validation("claim id is required")
	}

	fc := &flowContext{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		record, err := s.Records.GetByClaimID(gctx, claimID)
		if err != nil {
			return apperr.Internal("failed to load fulfillment record", err)
		}
		fc.record = record
		return nil
	})
	g.Go(func() error {
		claim, err := s.Claims.GetByID(gctx, claimID)
		if err != nil {
			return apperr.Internal("failed to load claim", err)
		}
		if claim == nil {
			return apperr.NotFound(fmt.Sprintf("claim %s not found", claimID))
		}
		fc.claim = claim

		inner, ictx := errgroup.WithContext(gctx)
		inner.Go(func() error {
			policy, err := s.Policies.GetByID(ictx, claim.PolicyID)
			if err != nil {
				return apperr.Internal("failed to load policy", err)
			}
			if policy == nil {
				return apperr.NotFound(fmt.Sprintf("policy %s not found", claim.PolicyID))
			}
			fc.policy = policy
			return nil
		})
		inner.Go(func() error {
			item, err := s.Items.GetByPolicyID(ictx, claim.PolicyID)
			if err != nil {
				// no covered item is the same as unknown device and value
				s.Logger.Warn("Covered item lookup failed", "policy_id", claim.PolicyID, "error", err)
				return nil
			}
			fc.item = item
			return nil
		})
		return inner.Wait()
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fc.category = s.Resolver.Resolve(ctx, fc.productName())
	return fc, nil
}

// Load builds the view for the current step. The step is always derived from the record.
func (s *fulfillmentServiceImpl) Load(ctx context.Context, claimID string) (*FlowView, error) {
	fc, err := s.loadContext(ctx, claimID)
	if err != nil {
		return nil, err
	}

	return &FlowView{
		Claim:             fc.claim,
		Record:            fc.record,
		Step:              fulfillment.DeriveStep(fc.record).String(),
		ProductName:       fc.productName(),
		DeviceCategory:    fc.category.String(),
		IsLargeItem:       s.Rules.IsLargeItem(fc.category.String()),
		ExcessAmount:      fc.policy.ExcessAmount,
		HasPaymentOnFile:  fc.policy.HasPaymentOnFile,
		DeviceValue:       fc.deviceValue(),
		PermittedTriggers: s.Engine.PermittedTriggers(fc.record),
	}, nil
}

// ConfirmExcessPayment settles the excess and routes the claim
func (s *fulfillmentServiceImpl) ConfirmExcessPayment(ctx context.Context, claimID string, selection entity.PaymentSelection) (*entity.FulfillmentRecord, error) {
	if selection == nil {
		return nil, apperr.Validation(entity.ErrNoPaymentSelection.Error())
	}
	if err := selection.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}

	fc, err := s.loadContext(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if fc.record != nil && fc.record.ExcessPaid {
		return nil, apperr.Conflict("excess has already been paid for this claim")
	}
	if selection.Kind() == entity.PaymentOnFile && !fc.policy.HasPaymentOnFile {
		return nil, apperr.Validation("no payment method on file for this policy")
	}

	amount := fc.policy.ExcessAmount
	if selection.RequiresProcessing() {
		if s.Payments == nil {
			return nil, apperr.Unavailable("payment processing is not available", nil)
		}
		receipt, err := s.Payments.Process(ctx, claimID, amount, selection)
		if err != nil {
			s.Logger.Error("Excess payment failed", "claim_id", claimID, "method", selection.Kind(), "error", err)
			return nil, apperr.Unavailable("payment could not be processed", err).WithStatus(http.StatusPaymentRequired)
		}
		s.Logger.Info("Excess payment processed", "claim_id", claimID, "payment_reference", receipt.Reference)
	}

	decision := s.Rules.RouteExcess(fc.category.String(), fc.deviceValue())
	paidAt := s.Now().UTC()
	value := fc.deviceValue()

	record, err := s.Engine.Apply(ctx, fc.current(), workflow.Transition{
		Trigger:  domainwf.TriggerConfirmExcess,
		Decision: decision,
		Note:     fmt.Sprintf("Excess %.2f paid by %s; routed to %s", amount, selection.Kind(), decision.Type),
		Mutate: func(r *entity.FulfillmentRecord) error {
			r.ExcessPaid = true
			r.ExcessAmount = &amount
			r.ExcessPaymentMethod = selection.Kind()
			r.ExcessPaymentDate = &paidAt
			if value != nil {
				v := *value
				r.DeviceValue = &v
			}
			return nil
		},
		Events: []event.Type{event.TypeExcessPaid, event.TypeRouted},
	})
	if err != nil {
		return nil, transitionError(err)
	}
	return record, nil
}

// ConfirmDeviceValue re-runs the value threshold with a value supplied after payment
func (s *fulfillmentServiceImpl) ConfirmDeviceValue(ctx context.Context, claimID string, value float64) (*entity.FulfillmentRecord, error) {
	if value <= 0 {
		return nil, apperr.Validation("device value must be greater than zero")
	}

	record, err := s.paidRecord(ctx, claimID, "confirming the device value")
	if err != nil {
		return nil, err
	}
	// A value captured at payment time or a large-item routing is final
	if record.DeviceValue != nil {
		return nil, apperr.Conflict("the device value was already confirmed")
	}
	if record.FulfillmentType == entity.FulfillmentInHomeRepair {
		return nil, apperr.Conflict("large items are always repaired in the home")
	}

	decision := s.Rules.RouteByValue(&value)
	updated, err := s.Engine.Apply(ctx, record, workflow.Transition{
		Trigger:  domainwf.TriggerConfirmDeviceValue,
		Decision: decision,
		Note:     fmt.Sprintf("Device value %.2f confirmed; routed to %s", value, decision.Type),
		Mutate: func(r *entity.FulfillmentRecord) error {
			r.DeviceValue = &value
			return nil
		},
		Events: []event.Type{event.TypeRouted},
	})
	if err != nil {
		return nil, transitionError(err)
	}
	return updated, nil
}

// OverrideFulfillmentType corrects the routing by hand and reopens scheduling
func (s *fulfillmentServiceImpl) OverrideFulfillmentType(ctx context.Context, claimID string, fulfillmentType entity.FulfillmentType) (*entity.FulfillmentRecord, error) {
	decision, err := fulfillment.OverrideDecision(fulfillmentType)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}

	record, err := s.paidRecord(ctx, claimID, "changing the fulfillment type")
	if err != nil {
		return nil, err
	}

	previous := record.FulfillmentType
	updated, err := s.Engine.Apply(ctx, record, workflow.Transition{
		Trigger:  domainwf.TriggerOverrideType,
		Decision: decision,
		Note:     fmt.Sprintf("Fulfillment type changed from %s to %s", previous, fulfillmentType),
		Events:   []event.Type{event.TypeTypeOverridden},
	})
	if err != nil {
		return nil, transitionError(err)
	}
	return updated, nil
}

// Recommendations asks the recommendation service for ranked repairers.
// Failures never change the record.
func (s *fulfillmentServiceImpl) Recommendations(ctx context.Context, claimID string) (*entity.RecommendationResult, error) {
	fc, err := s.loadContext(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if fulfillment.DeriveStep(fc.record) != fulfillment.StepSchedule {
		return nil, apperr.Conflict("recommendations are only available while scheduling")
	}
	if s.Recommender == nil {
		return nil, apperr.Unavailable("recommendation service is not configured", nil)
	}

	result, err := s.Recommender.Recommend(ctx, claimID, fc.category.String(), fc.claim.CoverageArea)
	if err != nil {
		return nil, recommendationError(err)
	}
	return result, nil
}

// Availability returns the blocked dates for a repairer. A newer call for the
// same claim supersedes this one.
func (s *fulfillmentServiceImpl) Availability(ctx context.Context, claimID, repairerID string) (*AvailabilityView, error) {
	if repairerID == "" {
		return nil, apperr.Validation(fulfillment.ErrRepairerRequired.Error())
	}

	ctx, finish := s.lookups.begin(ctx, "availability:"+claimID)
	view, err := s.availability(ctx, claimID, repairerID)
	if !finish() {
		return nil, ErrSuperseded
	}
	return view, err
}

func (s *fulfillmentServiceImpl) availability(ctx context.Context, claimID, repairerID string) (*AvailabilityView, error) {
	if _, err := s.schedulingRecord(ctx, claimID); err != nil {
		return nil, err
	}

	dates := s.Oracle.UnavailableDates(repairerID)
	formatted := make([]string, 0, len(dates))
	for _, d := range dates {
		formatted = append(formatted, d.Format(fulfillment.DateLayout))
	}

	return &AvailabilityView{
		RepairerID:       repairerID,
		RepairerName:     s.repairerName(ctx, repairerID),
		UnavailableDates: formatted,
	}, nil
}

// Slots returns the open slots for a repairer on date. A newer call for the
// same claim supersedes this one.
func (s *fulfillmentServiceImpl) Slots(ctx context.Context, claimID, repairerID string, date time.Time) (*SlotsView, error) {
	if repairerID == "" {
		return nil, apperr.Validation(fulfillment.ErrRepairerRequired.Error())
	}
	if date.IsZero() {
		return nil, apperr.Validation(fulfillment.ErrDateRequired.Error())
	}

	ctx, finish := s.lookups.begin(ctx, "slots:"+claimID)
	view, err := s.slots(ctx, claimID, repairerID, date)
	if !finish() {
		return nil, ErrSuperseded
	}
	return view, err
}

func (s *fulfillmentServiceImpl) slots(ctx context.Context, claimID, repairerID string, date time.Time) (*SlotsView, error) {
	if _, err := s.schedulingRecord(ctx, claimID); err != nil {
		return nil, err
	}

	return &SlotsView{
		RepairerID: repairerID,
		Date:       fulfillment.StartOfDay(date).Format(fulfillment.DateLayout),
		Slots:      s.Oracle.AvailableSlots(repairerID, date),
	}, nil
}

// ConfirmAppointment books the appointment, issues the booking reference and
// moves the claim to pending_fulfillment in the same transaction.
func (s *fulfillmentServiceImpl) ConfirmAppointment(ctx context.Context, claimID string, req fulfillment.ScheduleRequest) (*entity.FulfillmentRecord, error) {
	record, err := s.schedulingRecord(ctx, claimID)
	if err != nil {
		return nil, err
	}

	if err := req.Validate(record, s.Now()); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}
	if !s.Oracle.InWindow(req.Date) {
		return nil, apperr.Validation(fmt.Sprintf("appointments can be booked up to %d days ahead", s.Oracle.WindowDays))
	}

	if req.RepairerID != "" {
		repairer, err := s.Repairers.GetByID(ctx, req.RepairerID)
		switch {
		case err != nil:
			s.Logger.Warn("Repairer lookup failed", "repairer_id", req.RepairerID, "error", err)
		case repairer == nil:
			return nil, apperr.Validation(fmt.Sprintf("repairer %s not found", req.RepairerID))
		}
		if !s.Oracle.IsSlotAvailable(req.RepairerID, req.Date, req.Slot) {
			return nil, apperr.Validation("the selected slot is no longer available")
		}
	}

	inHome := record.FulfillmentType == entity.FulfillmentInHomeRepair
	for attempt := 1; ; attempt++ {
		reference, err := s.uniqueReference(ctx, inHome)
		if err != nil {
			return nil, err
		}

		updated, err := s.book(ctx, record, req, reference, inHome)
		switch {
		case err == nil:
			return updated, nil
		case !errors.Is(err, port.ErrDuplicateReference):
			return nil, transitionError(err)
		case attempt >= maxReferenceAttempts:
			return nil, apperr.Internal("could not allocate a unique booking reference", err)
		}
		// Another booking took the reference between the check and the insert
		s.Logger.Warn("Booking reference taken at insert", "reference", reference, "attempt", attempt)
	}
}

func (s *fulfillmentServiceImpl) book(ctx context.Context, record *entity.FulfillmentRecord, req fulfillment.ScheduleRequest, reference string, inHome bool) (*entity.FulfillmentRecord, error) {
	date := fulfillment.StartOfDay(req.Date)
	return s.Engine.Apply(ctx, record, workflow.Transition{
		Trigger:  domainwf.TriggerConfirmAppointment,
		Decision: fulfillment.Decision{Status: domainwf.StateScheduled},
		Note:     fmt.Sprintf("Appointment %s %s, reference %s", date.Format(fulfillment.DateLayout), req.Slot, reference),
		Mutate: func(r *entity.FulfillmentRecord) error {
			r.RepairerID = req.RepairerID
			r.AppointmentDate = &date
			r.AppointmentSlot = req.Slot
			r.EngineerReference = ""
			r.LogisticsReference = ""
			if inHome {
				r.EngineerReference = reference
			} else {
				r.LogisticsReference = reference
			}
			return nil
		},
		OnCommit: func(txCtx context.Context, r *entity.FulfillmentRecord) error {
			if err := s.Claims.UpdateStatus(txCtx, r.ClaimID, entity.ClaimStatusPendingFulfillment, fulfillment.StatusNote(r)); err != nil {
				return fmt.Errorf("failed to update claim status: %w", err)
			}
			return nil
		},
		Events: []event.Type{event.TypeAppointmentScheduled},
	})
}

// History returns the claim's transition history, oldest first
func (s *fulfillmentServiceImpl) History(ctx context.Context, claimID string) ([]*entity.FulfillmentHistory, error) {
	history, err := s.FulfillmentDeps.History.GetByClaimID(ctx, claimID)
	if err != nil {
		return nil, apperr.Internal("failed to load fulfillment history", err)
	}
	if history == nil {
		history = []*entity.FulfillmentHistory{}
	}
	return history, nil
}

// paidRecord loads a record whose excess has been paid
func (s *fulfillmentServiceImpl) paidRecord(ctx context.Context, claimID, action string) (*entity.FulfillmentRecord, error) {
	record, err := s.Records.GetByClaimID(ctx, claimID)
	if err != nil {
		return nil, apperr.Internal("failed to load fulfillment record", err)
	}
	if record == nil || !record.ExcessPaid {
		return nil, apperr.Conflict("the excess must be paid before " + action)
	}
	return record, nil
}

// schedulingRecord loads the record and refuses anything but the scheduling step
func (s *fulfillmentServiceImpl) schedulingRecord(ctx context.Context, claimID string) (*entity.FulfillmentRecord, error) {
	record, err := s.Records.GetByClaimID(ctx, claimID)
	if err != nil {
		return nil, apperr.Internal("failed to load fulfillment record", err)
	}

	switch fulfillment.DeriveStep(record) {
	case fulfillment.StepSchedule:
		return record, nil
	case fulfillment.StepExcessPayment:
		return nil, apperr.Conflict("the excess must be paid before scheduling")
	default:
		return nil, apperr.Conflict("fulfillment for this claim is already complete")
	}
}

func (s *fulfillmentServiceImpl) uniqueReference(ctx context.Context, inHome bool) (string, error) {
	for attempt := 1; attempt <= maxReferenceAttempts; attempt++ {
		ref, err := s.References.Generate(inHome)
		if err != nil {
			return "", apperr.Internal("failed to generate booking reference", err)
		}
		exists, err := s.Records.ReferenceExists(ctx, ref)
		if err != nil {
			return "", apperr.Internal("failed to check booking reference", err)
		}
		if !exists {
			return ref, nil
		}
		s.Logger.Warn("Booking reference collision", "reference", ref, "attempt", attempt)
	}
	return "", apperr.Internal("could not allocate a unique booking reference", nil)
}

func (s *fulfillmentServiceImpl) repairerName(ctx context.Context, repairerID string) string {
	if s.Repairers == nil {
		return ""
	}
	repairer, err := s.Repairers.GetByID(ctx, repairerID)
	if err != nil {
		s.Logger.Warn("Repairer lookup failed", "repairer_id", repairerID, "error", err)
		return ""
	}
	if repairer == nil {
		return ""
	}
	return repairer.DisplayName()
}

// transitionError maps engine failures onto error kinds
func transitionError(err error) error {
	switch {
	case apperr.GetKind(err) != apperr.KindUnknown:
		return err
	case errors.Is(err, domainwf.ErrInvalidTransition),
		errors.Is(err, domainwf.ErrGuardFailed),
		errors.Is(err, domainwf.ErrInvalidState):
		return apperr.Wrap(apperr.KindConflict, "this action is not allowed at the current step", err)
	default:
		return apperr.Internal("failed to save fulfillment", err)
	}
}

// recommendationError maps provider failures onto user-facing unavailable errors
func recommendationError(err error) error {
	switch {
	case errors.Is(err, port.ErrRateLimited):
		return apperr.Unavailable("too many recommendation requests, try again shortly", err).WithStatus(http.StatusTooManyRequests)
	case errors.Is(err, port.ErrCreditsRequired):
		return apperr.Unavailable("the recommendation service needs credits", err).WithStatus(http.StatusPaymentRequired)
	default:
		return apperr.Unavailable("recommendations are temporarily unavailable", err)
	}
}
