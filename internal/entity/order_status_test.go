package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatus_Cancellable(t *testing.T) {
	tests := []struct {
		status OrderStatus
		want   bool
	}{
		{OrderPending, true},
		{OrderConfirmed, true},
		{OrderProcessing, false},
		{OrderShipped, false},
		{OrderDelivered, false},
		{OrderCancelled, false},
		{OrderReturned, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.status.Cancellable())
		})
	}
}

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderPending, OrderConfirmed, true},
		{OrderConfirmed, OrderProcessing, true},
		{OrderProcessing, OrderShipped, true},
		{OrderShipped, OrderDelivered, true},
		{OrderDelivered, OrderReturned, true},
		{OrderPending, OrderCancelled, true},
		{OrderConfirmed, OrderCancelled, true},
		{OrderProcessing, OrderCancelled, false},
		{OrderShipped, OrderCancelled, false},
		{OrderPending, OrderShipped, false},
		{OrderDelivered, OrderShipped, false},
		{OrderCancelled, OrderPending, false},
		{OrderReturned, OrderDelivered, false},
		{OrderPending, OrderPending, false},
	}

	for _, tc := range tests {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.from.CanTransitionTo(tc.to))
		})
	}
}

func TestOrderStatus_TerminalStates(t *testing.T) {
	assert.True(t, OrderCancelled.IsTerminal())
	assert.True(t, OrderReturned.IsTerminal())
	assert.False(t, OrderDelivered.IsTerminal())
	assert.False(t, OrderPending.IsTerminal())
}

func TestOrderStatus_Valid(t *testing.T) {
	assert.True(t, OrderProcessing.Valid())
	assert.False(t, OrderStatus("lost").Valid())
	assert.False(t, OrderStatus("").Valid())
}

func TestPaymentMethod_Valid(t *testing.T) {
	assert.True(t, PaymentCOD.Valid())
	assert.True(t, PaymentOnline.Valid())
	assert.True(t, PaymentWallet.Valid())
	assert.False(t, PaymentMethod("card").Valid())
}
