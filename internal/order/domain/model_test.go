package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StageNew, StageConfirmed))
	assert.True(t, CanTransition(StagePacked, StageCancelled))
	assert.True(t, CanTransition(StageDelivered, StageReturned))

	assert.False(t, CanTransition(StageShipped, StageCancelled))
	assert.False(t, CanTransition(StageNew, StageDelivered))
	assert.False(t, CanTransition(StageCancelled, StageNew))
	assert.False(t, CanTransition(StageReturned, StageDelivered))
}

func TestFormatOrderNumber(t *testing.T) {
	assert.Equal(t, "ORD-2025-001", FormatOrderNumber(2025, 1))
	assert.Equal(t, "ORD-2025-042", FormatOrderNumber(2025, 42))
	assert.Equal(t, "ORD-2025-1234", FormatOrderNumber(2025, 1234))
}

func TestInitialPaymentStatus(t *testing.T) {
	assert.Equal(t, PaymentPending, InitialPaymentStatus(PaymentCOD))
	assert.Equal(t, PaymentCreated, InitialPaymentStatus(PaymentUPI))
}
