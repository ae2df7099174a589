package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/morningtable/breakfast-market/internal/model"
	"github.com/morningtable/breakfast-market/internal/repository"
)

// BookingHandler owns the booking lifecycle: creation with line item
// snapshots, provider-driven status advancement, cancellation and the
// write-once review.  Payment-driven transitions live in PaymentHandler
// and WebhookHandler.
type BookingHandler struct {
	Bookings  *repository.BookingRepo
	Providers *repository.ProviderRepo
	MenuItems *repository.MenuItemRepo
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(bookings *repository.BookingRepo, providers *repository.ProviderRepo, menuItems *repository.MenuItemRepo) *BookingHandler {
	if bookings == nil || providers == nil || menuItems == nil {
		panic("nil repository passed to NewBookingHandler")
	}
	return &BookingHandler{Bookings: bookings, Providers: providers, MenuItems: menuItems}
}

type bookingItemReq struct {
	MenuItemID uint64 `json:"menu_item_id"`
	Quantity   uint32 `json:"quantity"`
}

type createBookingReq struct {
	ProviderID          uint64           `json:"provider_id"`
	Items               []bookingItemReq `json:"items"`
	DeliveryDate        string           `json:"delivery_date"`
	DeliveryTime        string           `json:"delivery_time"`
	DeliveryType        string           `json:"delivery_type"`
	DeliveryAddress     *model.Address   `json:"delivery_address"`
	SpecialInstructions string           `json:"special_instructions"`
	PaymentMethod       string           `json:"payment_method"`
	Pricing             model.Pricing    `json:"pricing"`
}

type statusReq struct {
	Status string `json:"status"`
}

type reviewReq struct {
	Rating  uint8  `json:"rating"`
	Comment string `json:"comment"`
}

// Create handles POST /v1/bookings.  The server snapshots item names and
// prices from the provider's current menu and cross-checks the client's
// pricing block against those snapshots before anything is written.
func (h *BookingHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	ctx := c.Request().Context()
	provider, err := h.Providers.GetByID(ctx, req.ProviderID)
	if err != nil {
		if err == repository.ErrProviderNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if !provider.Active {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provider is not accepting orders"})
	}

	if msg := validateBookingReq(&req, provider); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	tx, err := h.Bookings.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	ids := make([]uint64, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.MenuItemID)
	}
	menu, err := h.MenuItems.GetManyForProviderTx(ctx, tx, provider.ID, ids)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	items, subtotal, msg := snapshotItems(req.Items, menu)
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}
	if subtotal != uint64(req.Pricing.SubtotalCents) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "subtotal does not match current menu prices"})
	}
	if subtotal < uint64(provider.MinimumOrderCents) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "order is below the provider minimum"})
	}

	b := model.Booking{
		UserID:              userID,
		ProviderID:          provider.ID,
		Items:               items,
		DeliveryDate:        req.DeliveryDate,
		DeliveryTime:        req.DeliveryTime,
		DeliveryType:        req.DeliveryType,
		SpecialInstructions: strings.TrimSpace(req.SpecialInstructions),
		Pricing:             req.Pricing,
		Payment:             model.Payment{Method: req.PaymentMethod},
	}
	if req.DeliveryType == model.DeliveryTypeDelivery {
		b.DeliveryAddress = req.DeliveryAddress
	}

	if err := h.Bookings.CreateTx(ctx, tx, &b); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create booking failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create booking failed"})
	}
	committed = true

	return c.JSON(http.StatusCreated, echo.Map{"booking": b})
}

// maxItemQuantity caps a single line item.  An order of fifty of one dish
// is already implausible for a breakfast run; anything beyond it is either
// a client bug or an attempt to push the arithmetic around.
const maxItemQuantity = 50

// snapshotItems copies name and price from the menu rows and totals the
// order.  The subtotal is carried in uint64 so an oversized quantity can
// never wrap the product back into a small number that the client's
// pricing block then "matches".
func snapshotItems(reqItems []bookingItemReq, menu map[uint64]model.MenuItem) ([]model.BookingItem, uint64, string) {
	items := make([]model.BookingItem, 0, len(reqItems))
	var subtotal uint64
	for _, it := range reqItems {
		m, ok := menu[it.MenuItemID]
		if !ok {
			return nil, 0, "menu item unavailable"
		}
		items = append(items, model.BookingItem{
			MenuItemID: m.ID,
			Name:       m.Name,
			PriceCents: m.PriceCents,
			Quantity:   it.Quantity,
		})
		subtotal += uint64(m.PriceCents) * uint64(it.Quantity)
	}
	return items, subtotal, ""
}

func validateBookingReq(req *createBookingReq, provider *model.Provider) string {
	if len(req.Items) == 0 {
		return "at least one item is required"
	}
	for _, it := range req.Items {
		if it.Quantity == 0 || it.Quantity > maxItemQuantity {
			return "item quantity must be between 1 and 50"
		}
	}
	if _, err := time.Parse("2006-01-02", req.DeliveryDate); err != nil {
		return "invalid delivery_date, expected YYYY-MM-DD"
	}
	if _, err := time.Parse("15:04", req.DeliveryTime); err != nil {
		return "invalid delivery_time, expected HH:MM"
	}
	switch req.DeliveryType {
	case model.DeliveryTypeDelivery:
		if !provider.OffersDelivery {
			return "provider does not offer delivery"
		}
		if req.DeliveryAddress == nil || strings.TrimSpace(req.DeliveryAddress.Street) == "" ||
			strings.TrimSpace(req.DeliveryAddress.City) == "" {
			return "delivery_address with street and city is required for delivery orders"
		}
	case model.DeliveryTypePickup:
		if !provider.OffersPickup {
			return "provider does not offer pickup"
		}
	default:
		return "invalid delivery_type"
	}
	if req.PaymentMethod != model.MethodCard && req.PaymentMethod != model.MethodCash {
		return "invalid payment_method"
	}
	if req.DeliveryType == model.DeliveryTypeDelivery && req.Pricing.DeliveryFeeCents != provider.DeliveryFeeCents {
		return "delivery fee does not match provider"
	}
	if req.DeliveryType == model.DeliveryTypePickup && req.Pricing.DeliveryFeeCents != 0 {
		return "pickup orders carry no delivery fee"
	}
	if !req.Pricing.Consistent() {
		return "pricing total does not match its parts"
	}
	if req.Pricing.TotalCents == 0 {
		return "total must be greater than zero"
	}
	return ""
}

// Get handles GET /v1/bookings/:id.  Visible to the owning customer, the
// booked provider's user, and admins.
func (h *BookingHandler) Get(c echo.Context) error {
	b, errResp := h.authorizedBooking(c)
	if b == nil {
		return errResp
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": b})
}

// authorizedBooking loads the booking in the path and enforces read access.
// On failure it writes the response and returns a nil booking.
func (h *BookingHandler) authorizedBooking(c echo.Context) (*model.Booking, error) {
	userID, err := getUserID(c)
	if err != nil {
		return nil, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return nil, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx := c.Request().Context()
	b, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrBookingNotFound {
			return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return nil, c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if b.UserID == userID || isAdmin(c) {
		return b, nil
	}
	if getRole(c) == model.RoleProvider {
		p, err := h.Providers.GetByUserID(ctx, userID)
		if err == nil && p.ID == b.ProviderID {
			return b, nil
		}
	}
	return nil, c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
}

// UpdateStatus handles PATCH /v1/bookings/:id/status.  Only the booked
// provider (or an admin) may walk the forward chain, one step at a time.
// pending->confirmed is reserved for the payment flow, with one exception:
// a cash order has no gateway involvement, so the provider accepts it here.
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if !model.ValidStatus(req.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid status"})
	}

	ctx := c.Request().Context()
	b, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrBookingNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	if !isAdmin(c) {
		p, err := h.Providers.GetByUserID(ctx, userID)
		if err != nil || p.ID != b.ProviderID {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
		}
	}

	allowed := model.CanAdvance(b.Status, req.Status) ||
		(req.Status == model.StatusConfirmed && model.CanConfirmCash(b.Status, b.Payment.Method))
	if !allowed {
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "cannot transition from " + b.Status + " to " + req.Status,
		})
	}
	applied, err := h.Bookings.AdvanceStatus(ctx, id, b.Status, req.Status)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update status failed"})
	}
	if !applied {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking status changed concurrently"})
	}
	b.Status = req.Status
	return c.JSON(http.StatusOK, echo.Map{"booking": b})
}

// Cancel handles POST /v1/bookings/:id/cancel.  Cancellation belongs to
// the owning customer (or an admin) and is refused once the order has
// entered preparation.
func (h *BookingHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	ctx := c.Request().Context()
	b, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrBookingNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if b.UserID != userID && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if !model.CanCancel(b.Status) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking can no longer be cancelled"})
	}
	applied, err := h.Bookings.Cancel(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel booking failed"})
	}
	if !applied {
		return c.JSON(http.StatusConflict, echo.Map{"error": "booking can no longer be cancelled"})
	}
	b.Status = model.StatusCancelled
	return c.JSON(http.StatusOK, echo.Map{"booking": b})
}

// Review handles POST /v1/bookings/:id/review.  Reviews are write-once and
// only the owning customer may leave one, after delivery.  The provider's
// rating aggregate is recomputed in the same transaction as the review
// write.
func (h *BookingHandler) Review(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req reviewReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if req.Rating < 1 || req.Rating > 5 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rating must be between 1 and 5"})
	}

	ctx := c.Request().Context()
	b, err := h.Bookings.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrBookingNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if b.UserID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if !model.Reviewable(b.Status) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "booking is not reviewable yet"})
	}

	now := time.Now().UTC()
	tx, err := h.Bookings.DB().BeginTx(ctx, nil)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	comment := strings.TrimSpace(req.Comment)
	if err := h.Bookings.AttachReviewTx(ctx, tx, id, req.Rating, comment, now); err != nil {
		if err == repository.ErrConflict {
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking already reviewed"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save review failed"})
	}
	if err := h.Providers.RecomputeRatingTx(ctx, tx, b.ProviderID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save review failed"})
	}
	if err := tx.Commit(); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "save review failed"})
	}
	committed = true

	b.Review = &model.Review{Rating: req.Rating, Comment: comment, CreatedAt: now}
	return c.JSON(http.StatusCreated, echo.Map{"booking": b})
}

// ListMine handles GET /v1/bookings, the customer's own order history.
func (h *BookingHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookings, err := h.Bookings.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(bookings), "bookings": bookings})
}

// ListForProvider handles GET /v1/bookings/provider, the vendor's order
// queue ordered by delivery date.
func (h *BookingHandler) ListForProvider(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx := c.Request().Context()
	p, err := h.Providers.GetByUserID(ctx, userID)
	if err != nil {
		if err == repository.ErrProviderNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "provider profile not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	bookings, err := h.Bookings.ListByProvider(ctx, p.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(bookings), "bookings": bookings})
}
