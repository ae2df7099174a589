package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/morningtable/breakfast-market/internal/model"
	"github.com/morningtable/breakfast-market/internal/repository"
)

// MenuHandler manages a provider's menu items.  Write operations resolve
// the caller's provider profile and refuse edits on items the caller does
// not own.
type MenuHandler struct {
	Providers *repository.ProviderRepo
	MenuItems *repository.MenuItemRepo
}

// NewMenuHandler constructs a MenuHandler.
func NewMenuHandler(providers *repository.ProviderRepo, menuItems *repository.MenuItemRepo) *MenuHandler {
	if providers == nil || menuItems == nil {
		panic("nil repository passed to NewMenuHandler")
	}
	return &MenuHandler{Providers: providers, MenuItems: menuItems}
}

type menuItemReq struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	PriceCents  uint32 `json:"price_cents"`
	Category    string `json:"category"`
	Available   *bool  `json:"available"`
}

func (req *menuItemReq) validate() string {
	if strings.TrimSpace(req.Name) == "" {
		return "name is required"
	}
	if req.PriceCents == 0 {
		return "price_cents must be greater than zero"
	}
	if !model.MenuCategories[req.Category] {
		return "invalid category"
	}
	return ""
}

// callerProvider resolves the authenticated user's provider profile.
func (h *MenuHandler) callerProvider(c echo.Context) (*model.Provider, error) {
	userID, err := getUserID(c)
	if err != nil {
		return nil, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	p, err := h.Providers.GetByUserID(c.Request().Context(), userID)
	if err != nil {
		if err == repository.ErrProviderNotFound {
			return nil, c.JSON(http.StatusNotFound, echo.Map{"error": "provider profile not found"})
		}
		return nil, c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return p, nil
}

// List handles GET /v1/providers/:id/menu.  ?available=true restricts the
// result to orderable items.
func (h *MenuHandler) List(c echo.Context) error {
	providerID, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid provider id"})
	}
	onlyAvailable := c.QueryParam("available") == "true"
	items, err := h.MenuItems.ListByProvider(c.Request().Context(), providerID, onlyAvailable)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"count": len(items), "items": items})
}

// Create handles POST /v1/menu-items for the caller's own provider.
func (h *MenuHandler) Create(c echo.Context) error {
	p, errResp := h.callerProvider(c)
	if p == nil {
		return errResp
	}
	var req menuItemReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	m := model.MenuItem{
		ProviderID:  p.ID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		PriceCents:  req.PriceCents,
		Category:    req.Category,
		Available:   true,
	}
	if req.Available != nil {
		m.Available = *req.Available
	}
	if err := h.MenuItems.Create(c.Request().Context(), &m); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create menu item failed"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": m})
}

// Update handles PUT /v1/menu-items/:id.
func (h *MenuHandler) Update(c echo.Context) error {
	p, errResp := h.callerProvider(c)
	if p == nil {
		return errResp
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid menu item id"})
	}
	ctx := c.Request().Context()
	m, err := h.MenuItems.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrMenuItemNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "menu item not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if m.ProviderID != p.ID && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}

	var req menuItemReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	m.Name = strings.TrimSpace(req.Name)
	m.Description = strings.TrimSpace(req.Description)
	m.PriceCents = req.PriceCents
	m.Category = req.Category
	if req.Available != nil {
		m.Available = *req.Available
	}
	if err := h.MenuItems.Update(ctx, m); err != nil {
		if err == repository.ErrMenuItemNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "menu item not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update menu item failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": m})
}

// Delete handles DELETE /v1/menu-items/:id.  Existing bookings keep their
// line item snapshots.
func (h *MenuHandler) Delete(c echo.Context) error {
	p, errResp := h.callerProvider(c)
	if p == nil {
		return errResp
	}
	id, ok := pathID(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid menu item id"})
	}
	ctx := c.Request().Context()
	m, err := h.MenuItems.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrMenuItemNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "menu item not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if m.ProviderID != p.ID && !isAdmin(c) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	if err := h.MenuItems.Delete(ctx, id); err != nil {
		if err == repository.ErrMenuItemNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "menu item not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete menu item failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
