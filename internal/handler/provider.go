package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/morningtable/breakfast-market/internal/model"
	"github.com/morningtable/breakfast-market/internal/repository"
)

// ProviderHandler serves the provider directory and profile management.
// Listing and detail endpoints are public; create/update require the
// PROVIDER role (or admin for update).  The rating aggregate is read-only
// here: it is only ever written by the review flow.
type ProviderHandler struct {
	Providers *repository.ProviderRepo
	MenuItems *repository.MenuItemRepo
}

// NewProviderHandler constructs a ProviderHandler.  All dependencies must
// be non-nil.
func NewProviderHandler(providers *repository.ProviderRepo, menuItems *repository.MenuItemRepo) *ProviderHandler {
	if providers == nil || menuItems == nil {
		panic("nil repository passed to NewProviderHandler")
	}
	return &ProviderHandler{Providers: providers, MenuItems: menuItems}
}

type providerReq struct {
	BusinessName      string   `json:"business_name"`
	Description       string   `json:"description"`
	Cuisine           []string `json:"cuisine"`
	OffersDelivery    bool     `json:"offers_delivery"`
	OffersPickup      bool     `json:"offers_pickup"`
	DeliveryFeeCents  uint32   `json:"delivery_fee_cents"`
	MinimumOrderCents uint32   `json:"minimum_order_cents"`
	Street            string   `json:"street"`
	City              string   `json:"city"`
	ZipCode           string   `json:"zip_code"`
	Country           string   `json:"country"`
	Active            *bool    `json:"active"`
}

func (req *providerReq) validate() string {
	if strings.TrimSpace(req.BusinessName) == "" {
		return "business_name is required"
	}
	if strings.TrimSpace(req.Description) == "" {
		return "description is required"
	}
	if !req.OffersDelivery && !req.OffersPickup {
		return "provider must offer delivery or pickup"
	}
	return ""
}

// List handles GET /v1/providers.  Supports ?cuisine=, ?delivery=true,
// ?pickup=true and ?min_rating= filters; results are active providers
// ordered by rating.
func (h *ProviderHandler) List(c echo.Context) error {
	var f repository.ListFilter
	f.Cuisine = c.QueryParam("cuisine")
	f.Delivery = c.QueryParam("delivery") == "true"
	f.Pickup = c.QueryParam("pickup") == "true"
	if mr := c.QueryParam("min_rating"); mr != "" {
		v, err := strconv.ParseFloat(mr, 64)
		if err != nil || v < 0 || v > 5 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid min_rating"})
		}
		f.MinRating = v
	}
	providers, err := h.Providers.List(c.Request().Context(), f)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(providers), "providers": providers})
}

// Get handles GET /v1/providers/:id, returning the provider and its menu.
func (h *ProviderHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid provider id"})
	}
	ctx := c.Request().Context()
	p, err := h.Providers.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrProviderNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	menu, err := h.MenuItems.ListByProvider(ctx, id, false)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"provider": p, "menu": menu})
}

// Create handles POST /v1/providers.  Each PROVIDER user may create exactly
// one profile.
func (h *ProviderHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req providerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	p := model.Provider{
		UserID:            userID,
		BusinessName:      strings.TrimSpace(req.BusinessName),
		Description:       strings.TrimSpace(req.Description),
		Cuisine:           req.Cuisine,
		OffersDelivery:    req.OffersDelivery,
		OffersPickup:      req.OffersPickup,
		DeliveryFeeCents:  req.DeliveryFeeCents,
		MinimumOrderCents: req.MinimumOrderCents,
		Street:            strings.TrimSpace(req.Street),
		City:              strings.TrimSpace(req.City),
		ZipCode:           strings.TrimSpace(req.ZipCode),
		Country:           strings.TrimSpace(req.Country),
		Active:            true,
	}
	if err := h.Providers.Create(c.Request().Context(), &p); err != nil {
		if err == repository.ErrConflict {
			return c.JSON(http.StatusConflict, echo.Map{"error": "provider profile already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create provider failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"provider": p})
}

// Update handles PUT /v1/providers/:id.  Only the owning user or an admin
// may update a profile; the rating fields cannot be set through this
// endpoint.
func (h *ProviderHandler) Update(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid provider id"})
	}
	ctx := c.Request().Context()
	p, err := h.Providers.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrProviderNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "provider not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if p.UserID != userID && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	var req providerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	p.BusinessName = strings.TrimSpace(req.BusinessName)
	p.Description = strings.TrimSpace(req.Description)
	p.Cuisine = req.Cuisine
	p.OffersDelivery = req.OffersDelivery
	p.OffersPickup = req.OffersPickup
	p.DeliveryFeeCents = req.DeliveryFeeCents
	p.MinimumOrderCents = req.MinimumOrderCents
	p.Street = strings.TrimSpace(req.Street)
	p.City = strings.TrimSpace(req.City)
	p.ZipCode = strings.TrimSpace(req.ZipCode)
	p.Country = strings.TrimSpace(req.Country)
	if req.Active != nil {
		p.Active = *req.Active
	}

	if err := h.Providers.Update(ctx, p); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update provider failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"provider": p})
}

// MyProfile handles GET /v1/providers/my-profile for the PROVIDER role.
func (h *ProviderHandler) MyProfile(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	p, err := h.Providers.GetByUserID(c.Request().Context(), userID)
	if err != nil {
		if err == repository.ErrProviderNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "provider profile not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"provider": p})
}
