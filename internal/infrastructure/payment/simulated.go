// Package payment provides the simulated excess payment processor.
// Card and bank details are only used to validate and log the last digits;
// they are never stored.
package payment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/claims-fulfillment/internal/application/port"
	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
)

// DefaultDelay emulates processor latency
const DefaultDelay = 2 * time.Second

// Simulator implements port.PaymentProcessor without a real gateway
type Simulator struct {
	delay  time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewSimulator creates a simulated processor; a negative delay uses DefaultDelay
func NewSimulator(delay time.Duration, logger *zap.Logger) *Simulator {
	if delay < 0 {
		delay = DefaultDelay
	}
	return &Simulator{
		delay:  delay,
		logger: logger,
		now:    time.Now,
	}
}

// Process waits for the configured delay and approves the payment.
// Cancelling ctx aborts the payment.
func (s *Simulator) Process(ctx context.Context, claimID string, amount float64, selection entity.PaymentSelection) (*port.PaymentReceipt, error) {
	if selection == nil {
		return nil, entity.ErrNoPaymentSelection
	}
	if err := selection.Validate(); err != nil {
		return nil, err
	}
	if amount < 0 {
		return nil, fmt.Errorf("invalid payment amount %.2f", amount)
	}

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			s.logger.Warn("Payment cancelled", zap.String("claim_id", claimID), zap.Error(ctx.Err()))
			return nil, fmt.Errorf("payment cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	receipt := &port.PaymentReceipt{
		Reference:   "PAY-" + strings.ToUpper(uuid.NewString()[:8]),
		ProcessedAt: s.now().UTC(),
	}

	s.logger.Info("Payment approved",
		zap.String("claim_id", claimID),
		zap.String("method", string(selection.Kind())),
		zap.String("account", maskedAccount(selection)),
		zap.Float64("amount", amount),
		zap.String("payment_reference", receipt.Reference))

	return receipt, nil
}

func maskedAccount(selection entity.PaymentSelection) string {
	switch p := selection.(type) {
	case entity.CardPayment:
		return "**** " + p.Last4()
	case entity.BankPayment:
		n := strings.ReplaceAll(p.AccountNumber, " ", "")
		if len(n) > 4 {
			n = n[len(n)-4:]
		}
		return "**** " + n
	default:
		return ""
	}
}

// Verify interface compliance
var _ port.PaymentProcessor = (*Simulator)(nil)
