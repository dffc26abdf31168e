package payment

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/garyjia/claims-fulfillment/internal/domain/entity"
)

var card = entity.CardPayment{Number: "4111 1111 1111 1234", Expiry: "12/28", CVV: "123", CardholderName: "A Smith"}

func TestSimulator_Process(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewSimulator(0, zap.New(core))

	receipt, err := s.Process(context.Background(), "clm-1", 75, card)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(receipt.Reference, "PAY-"))
	assert.False(t, receipt.ProcessedAt.IsZero())

	entries := logs.FilterMessage("Payment approved").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "**** 1234", fields["account"])
	for _, v := range fields {
		if str, ok := v.(string); ok {
			assert.NotContains(t, str, "4111", "card number must not be logged")
		}
	}
}

func TestSimulator_Delay(t *testing.T) {
	s := NewSimulator(30*time.Millisecond, zap.NewNop())

	start := time.Now()
	_, err := s.Process(context.Background(), "clm-1", 75, entity.BankPayment{AccountName: "A", SortCode: "12-34-56", AccountNumber: "12345678"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestSimulator_Cancelled(t *testing.T) {
	s := NewSimulator(time.Minute, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Process(ctx, "clm-1", 75, card)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSimulator_RejectsIncompleteDetails(t *testing.T) {
	s := NewSimulator(0, zap.NewNop())

	_, err := s.Process(context.Background(), "clm-1", 75, entity.CardPayment{Number: "4111"})
	assert.ErrorIs(t, err, entity.ErrIncompleteCard)

	_, err = s.Process(context.Background(), "clm-1", 75, nil)
	assert.ErrorIs(t, err, entity.ErrNoPaymentSelection)
}
