package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/morningtable/breakfast-market/internal/model"
)

func deliveryProvider() *model.Provider {
	return &model.Provider{
		ID:               3,
		OffersDelivery:   true,
		OffersPickup:     true,
		DeliveryFeeCents: 300,
		Active:           true,
	}
}

func validCreateReq() createBookingReq {
	return createBookingReq{
		ProviderID: 3,
		Items: []bookingItemReq{
			{MenuItemID: 10, Quantity: 2},
			{MenuItemID: 11, Quantity: 1},
		},
		DeliveryDate: "2026-09-06",
		DeliveryTime: "07:30",
		DeliveryType: model.DeliveryTypeDelivery,
		DeliveryAddress: &model.Address{
			Street: "12 Morning Lane", City: "Portland", ZipCode: "97201", Country: "US",
		},
		PaymentMethod: model.MethodCard,
		Pricing: model.Pricing{
			SubtotalCents:    2400,
			DeliveryFeeCents: 300,
			TaxCents:         216,
			TotalCents:       2916,
		},
	}
}

func TestValidateBookingReqAccepts(t *testing.T) {
	req := validCreateReq()
	assert.Empty(t, validateBookingReq(&req, deliveryProvider()))

	// Pickup order: no address, no fee.
	pickup := validCreateReq()
	pickup.DeliveryType = model.DeliveryTypePickup
	pickup.DeliveryAddress = nil
	pickup.Pricing.DeliveryFeeCents = 0
	pickup.Pricing.TotalCents = 2616
	assert.Empty(t, validateBookingReq(&pickup, deliveryProvider()))

	// Cash at the door is accepted too.
	cash := validCreateReq()
	cash.PaymentMethod = model.MethodCash
	assert.Empty(t, validateBookingReq(&cash, deliveryProvider()))
}

func TestValidateBookingReqRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*createBookingReq)
	}{
		{"no items", func(r *createBookingReq) { r.Items = nil }},
		{"zero quantity", func(r *createBookingReq) { r.Items[0].Quantity = 0 }},
		{"excessive quantity", func(r *createBookingReq) { r.Items[0].Quantity = maxItemQuantity + 1 }},
		{"bad date", func(r *createBookingReq) { r.DeliveryDate = "06/09/2026" }},
		{"bad time", func(r *createBookingReq) { r.DeliveryTime = "7.30am" }},
		{"bad delivery type", func(r *createBookingReq) { r.DeliveryType = "drone" }},
		{"delivery without address", func(r *createBookingReq) { r.DeliveryAddress = nil }},
		{"delivery missing city", func(r *createBookingReq) { r.DeliveryAddress.City = " " }},
		{"bad payment method", func(r *createBookingReq) { r.PaymentMethod = "crypto" }},
		{"fee mismatch", func(r *createBookingReq) {
			r.Pricing.DeliveryFeeCents = 0
			r.Pricing.TotalCents = 2616
		}},
		{"pickup with fee", func(r *createBookingReq) {
			r.DeliveryType = model.DeliveryTypePickup
			r.DeliveryAddress = nil
		}},
		{"inconsistent total", func(r *createBookingReq) { r.Pricing.TotalCents = 9999 }},
		{"zero total", func(r *createBookingReq) { r.Pricing = model.Pricing{} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validCreateReq()
			tc.mutate(&req)
			assert.NotEmpty(t, validateBookingReq(&req, deliveryProvider()))
		})
	}
}

func TestSnapshotItemsTotalsInUint64(t *testing.T) {
	menu := map[uint64]model.MenuItem{
		10: {ID: 10, Name: "full english", PriceCents: 300},
	}

	// 300 * 14316558 = 4294967400, which wraps to 104 in uint32.  The
	// subtotal must report the true value so a client pricing block built
	// around the wrapped number never matches.
	items, subtotal, msg := snapshotItems(
		[]bookingItemReq{{MenuItemID: 10, Quantity: 14316558}}, menu)
	assert.Empty(t, msg)
	assert.Len(t, items, 1)
	assert.Equal(t, uint64(4294967400), subtotal)
	trueSubtotal := uint64(4294967400)
	assert.NotEqual(t, uint64(uint32(trueSubtotal)), subtotal)

	// Unknown items are refused before any total is produced.
	_, _, msg = snapshotItems([]bookingItemReq{{MenuItemID: 99, Quantity: 1}}, menu)
	assert.Equal(t, "menu item unavailable", msg)
}

func TestValidateBookingReqHonorsProviderModes(t *testing.T) {
	pickupOnly := deliveryProvider()
	pickupOnly.OffersDelivery = false
	req := validCreateReq()
	assert.Equal(t, "provider does not offer delivery", validateBookingReq(&req, pickupOnly))

	deliveryOnly := deliveryProvider()
	deliveryOnly.OffersPickup = false
	pickup := validCreateReq()
	pickup.DeliveryType = model.DeliveryTypePickup
	pickup.DeliveryAddress = nil
	pickup.Pricing.DeliveryFeeCents = 0
	pickup.Pricing.TotalCents = 2616
	assert.Equal(t, "provider does not offer pickup", validateBookingReq(&pickup, deliveryOnly))
}
