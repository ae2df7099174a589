package model

import "time"

// User roles stored in the users table and carried in the JWT role claim.
const (
	RoleCustomer = "CUSTOMER"
	RoleProvider = "PROVIDER"
	RoleAdmin    = "ADMIN"
)

// Rating is the derived aggregate kept on a provider.  Average is the mean
// of review ratings over all of the provider's reviewed bookings and Count
// is the size of that set.  It is recomputed from the bookings table on
// every new review and is never client-writable.
type Rating struct {
	Average float64 `json:"average"`
	Count   uint32  `json:"count"`
}

// Provider is a breakfast vendor account able to receive bookings and
// maintain a menu.  Every provider belongs to exactly one user with the
// PROVIDER role.
type Provider struct {
	ID                uint64    `json:"id"`
	UserID            uint64    `json:"user_id"`
	BusinessName      string    `json:"business_name"`
	Description       string    `json:"description"`
	Cuisine           []string  `json:"cuisine"`
	OffersDelivery    bool      `json:"offers_delivery"`
	OffersPickup      bool      `json:"offers_pickup"`
	DeliveryFeeCents  uint32    `json:"delivery_fee_cents"`
	MinimumOrderCents uint32    `json:"minimum_order_cents"`
	Street            string    `json:"street"`
	City              string    `json:"city"`
	ZipCode           string    `json:"zip_code"`
	Country           string    `json:"country"`
	Rating            Rating    `json:"rating"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// MenuItem is a dish offered by a provider.  Prices are stored in cents.
// Bookings snapshot the name and price at checkout, so edits here never
// rewrite history.
type MenuItem struct {
	ID          uint64    `json:"id"`
	ProviderID  uint64    `json:"provider_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PriceCents  uint32    `json:"price_cents"`
	Category    string    `json:"category"`
	Available   bool      `json:"available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Menu item categories.
var MenuCategories = map[string]bool{
	"traditional": true,
	"continental": true,
	"vegan":       true,
	"gluten-free": true,
	"sweet":       true,
	"savory":      true,
}
