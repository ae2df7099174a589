package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanAdvance(t *testing.T) {
	cases := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"confirmed to preparing", StatusConfirmed, StatusPreparing, true},
		{"preparing to on-the-way", StatusPreparing, StatusOnTheWay, true},
		{"on-the-way to delivered", StatusOnTheWay, StatusDelivered, true},
		{"delivered to completed", StatusDelivered, StatusCompleted, true},

		// pending->confirmed belongs to the payment flow, never to a
		// direct status update.
		{"pending to confirmed", StatusPending, StatusConfirmed, false},

		// Skipping a step is rejected.
		{"confirmed to on-the-way", StatusConfirmed, StatusOnTheWay, false},
		{"confirmed to delivered", StatusConfirmed, StatusDelivered, false},
		{"preparing to completed", StatusPreparing, StatusCompleted, false},

		// Backward moves are rejected.
		{"preparing to confirmed", StatusPreparing, StatusConfirmed, false},
		{"delivered to on-the-way", StatusDelivered, StatusOnTheWay, false},

		// Terminal states go nowhere.
		{"completed to preparing", StatusCompleted, StatusPreparing, false},
		{"cancelled to confirmed", StatusCancelled, StatusConfirmed, false},

		// Cancellation is not a forward advance.
		{"pending to cancelled", StatusPending, StatusCancelled, false},
		{"confirmed to cancelled", StatusConfirmed, StatusCancelled, false},

		{"self transition", StatusPreparing, StatusPreparing, false},
		{"unknown status", "shipped", StatusDelivered, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanAdvance(tc.from, tc.to))
		})
	}
}

func TestCanConfirmCash(t *testing.T) {
	// A provider accepts a pending cash order directly.
	assert.True(t, CanConfirmCash(StatusPending, MethodCash))

	// Card orders are confirmed by the payment flow only.
	assert.False(t, CanConfirmCash(StatusPending, MethodCard))

	// Only pending orders can be accepted.
	for _, s := range []string{
		StatusConfirmed, StatusPreparing, StatusOnTheWay,
		StatusDelivered, StatusCompleted, StatusCancelled,
	} {
		assert.False(t, CanConfirmCash(s, MethodCash), s)
	}
}

func TestCanCancel(t *testing.T) {
	assert.True(t, CanCancel(StatusPending))
	assert.True(t, CanCancel(StatusConfirmed))

	assert.False(t, CanCancel(StatusPreparing))
	assert.False(t, CanCancel(StatusOnTheWay))
	assert.False(t, CanCancel(StatusDelivered))
	assert.False(t, CanCancel(StatusCompleted))
	assert.False(t, CanCancel(StatusCancelled))
}

func TestReviewable(t *testing.T) {
	assert.True(t, Reviewable(StatusDelivered))
	assert.True(t, Reviewable(StatusCompleted))

	assert.False(t, Reviewable(StatusPending))
	assert.False(t, Reviewable(StatusConfirmed))
	assert.False(t, Reviewable(StatusPreparing))
	assert.False(t, Reviewable(StatusOnTheWay))
	assert.False(t, Reviewable(StatusCancelled))
}

func TestValidStatus(t *testing.T) {
	for _, s := range []string{
		StatusPending, StatusConfirmed, StatusPreparing,
		StatusOnTheWay, StatusDelivered, StatusCompleted, StatusCancelled,
	} {
		assert.True(t, ValidStatus(s), s)
	}
	assert.False(t, ValidStatus(""))
	assert.False(t, ValidStatus("shipped"))
	assert.False(t, ValidStatus("Pending"))
}

func TestPricingConsistent(t *testing.T) {
	ok := Pricing{SubtotalCents: 2400, DeliveryFeeCents: 300, TaxCents: 216, TotalCents: 2916}
	assert.True(t, ok.Consistent())

	zeroFee := Pricing{SubtotalCents: 1500, TotalCents: 1500}
	assert.True(t, zeroFee.Consistent())

	bad := Pricing{SubtotalCents: 2400, DeliveryFeeCents: 300, TaxCents: 216, TotalCents: 3000}
	assert.False(t, bad.Consistent())

	// Components near the uint32 ceiling must not wrap into a small,
	// matching total: 4294967000 + 300 overflows uint32 to 4.
	wrap := Pricing{SubtotalCents: 4294967000, DeliveryFeeCents: 300, TotalCents: 4}
	assert.False(t, wrap.Consistent())
}
