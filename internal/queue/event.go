// Package queue defines message payloads exchanged over the message broker.
package queue

// BookingConfirmedEvent is published when a booking's payment completes and
// the order moves to confirmed. It carries enough for downstream consumers
// to log, notify, or feed analytics without querying the primary database.
type BookingConfirmedEvent struct {
	BookingID    uint64 `json:"booking_id"`
	UserID       uint64 `json:"user_id"`
	ProviderID   uint64 `json:"provider_id"`
	DeliveryDate string `json:"delivery_date"`
	DeliveryTime string `json:"delivery_time"`
	DeliveryType string `json:"delivery_type"`
	TotalCents   uint32 `json:"total_cents"`
	ConfirmedAt  string `json:"confirmed_at"`
}
