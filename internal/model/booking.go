package model

import "time"

// Booking status values.  A booking starts as pending and either walks the
// forward chain to completed or is cancelled while still early in its life.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusPreparing = "preparing"
	StatusOnTheWay  = "on-the-way"
	StatusDelivered = "delivered"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// Payment sub-record status values.  "refunded" exists in the schema but no
// code path currently produces it; refunds are handled out of band.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

// Payment methods accepted at checkout.
const (
	MethodCard = "card"
	MethodCash = "cash"
)

// Delivery types.
const (
	DeliveryTypeDelivery = "delivery"
	DeliveryTypePickup   = "pickup"
)

// forwardNext maps each non-terminal status to the only status a provider
// may advance it to.  The chain is strictly sequential; skipping a step is
// rejected.  pending is absent because the pending->confirmed transition is
// owned by the payment flow, not by provider action.
var forwardNext = map[string]string{
	StatusConfirmed: StatusPreparing,
	StatusPreparing: StatusOnTheWay,
	StatusOnTheWay:  StatusDelivered,
	StatusDelivered: StatusCompleted,
}

// ValidStatus reports whether s is one of the defined booking statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusOnTheWay,
		StatusDelivered, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanAdvance reports whether a provider-driven transition from one status to
// another is allowed.  Only the adjacent next step of the forward chain is
// accepted.
func CanAdvance(from, to string) bool {
	next, ok := forwardNext[from]
	return ok && next == to
}

// CanConfirmCash reports whether a provider may move a booking straight to
// confirmed. Card orders are confirmed only by the payment flow; cash
// orders never touch the gateway, so accepting one is a provider action on
// the status endpoint. Payment status stays pending until settled at
// handover.
func CanConfirmCash(status, method string) bool {
	return status == StatusPending && method == MethodCash
}

// CanCancel reports whether a booking in the given status may still be
// cancelled by the owning user or an admin.  Once preparation has started
// the order is committed and cancellation is refused.
func CanCancel(status string) bool {
	return status == StatusPending || status == StatusConfirmed
}

// Reviewable reports whether a booking in the given status may receive a
// review.
func Reviewable(status string) bool {
	return status == StatusDelivered || status == StatusCompleted
}

// BookingItem is a line item snapshot.  Name and PriceCents are copied from
// the menu item at creation time so historical orders are immune to later
// menu edits.
type BookingItem struct {
	ID         uint64 `json:"id"`
	BookingID  uint64 `json:"-"`
	MenuItemID uint64 `json:"menu_item_id"`
	Name       string `json:"name"`
	PriceCents uint32 `json:"price_cents"`
	Quantity   uint32 `json:"quantity"`
}

// Address holds the delivery destination for delivery-type bookings.  All
// fields are empty for pickup orders.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	ZipCode string `json:"zip_code,omitempty"`
	Country string `json:"country,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Pricing is the fixed price breakdown captured at checkout.  It is never
// recomputed after creation.
type Pricing struct {
	SubtotalCents    uint32 `json:"subtotal_cents"`
	DeliveryFeeCents uint32 `json:"delivery_fee_cents"`
	TaxCents         uint32 `json:"tax_cents"`
	TotalCents       uint32 `json:"total_cents"`
}

// Consistent reports whether the captured total matches the sum of its
// parts.  Bookings violating this are rejected at creation.  The sum is
// taken in uint64 so component values near the uint32 ceiling cannot wrap
// into a small, matching total.
func (p Pricing) Consistent() bool {
	return uint64(p.TotalCents) == uint64(p.SubtotalCents)+uint64(p.DeliveryFeeCents)+uint64(p.TaxCents)
}

// Payment is the payment sub-record embedded in a booking.
type Payment struct {
	Method   string     `json:"method"`
	Status   string     `json:"status"`
	IntentID *string    `json:"payment_intent_id,omitempty"`
	PaidAt   *time.Time `json:"paid_at,omitempty"`
}

// Review is the optional write-once review attached to a delivered or
// completed booking.
type Review struct {
	Rating    uint8     `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Booking is one customer order against one provider.  UserID and
// ProviderID are references only; the booking does not own either record.
type Booking struct {
	ID                  uint64        `json:"id"`
	UserID              uint64        `json:"user_id"`
	ProviderID          uint64        `json:"provider_id"`
	Items               []BookingItem `json:"items"`
	DeliveryDate        string        `json:"delivery_date"` // YYYY-MM-DD
	DeliveryTime        string        `json:"delivery_time"` // e.g. "07:30"
	DeliveryType        string        `json:"delivery_type"`
	DeliveryAddress     *Address      `json:"delivery_address,omitempty"`
	SpecialInstructions string        `json:"special_instructions,omitempty"`
	Pricing             Pricing       `json:"pricing"`
	Payment             Payment       `json:"payment"`
	Status              string        `json:"status"`
	Review              *Review       `json:"review,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}
