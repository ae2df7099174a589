// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/morningtable/breakfast-market/internal/handler"
	"github.com/morningtable/breakfast-market/internal/middleware"
	"github.com/morningtable/breakfast-market/internal/model"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check used by
// load balancers and monitoring to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes.  Unauthenticated
// operations live under /v1/auth; /v1/me requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Refresh rotates the refresh token; logout invalidates it.  Neither
	// requires an access token, only the refresh token in the body.
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the unauthenticated browse endpoints: the
// provider directory, provider detail and menus.  These are guest-facing
// reads, so the optional response cache middleware is applied here and
// nowhere else.
func RegisterPublic(e *echo.Echo, p *handler.ProviderHandler, m *handler.MenuHandler, cache echo.MiddlewareFunc) {
	mws := []echo.MiddlewareFunc{}
	if cache != nil {
		mws = append(mws, cache)
	}
	e.GET("/v1/providers", p.List, mws...)
	e.GET("/v1/providers/:id", p.Get, mws...)
	e.GET("/v1/providers/:id/menu", m.List, mws...)
}

// RegisterAPI registers the authenticated marketplace endpoints.  Every
// route here runs JWTAuth followed by the rate limiter (when configured);
// vendor-side management additionally requires the PROVIDER role.
func RegisterAPI(e *echo.Echo, jwtSecret string, rate echo.MiddlewareFunc,
	p *handler.ProviderHandler, m *handler.MenuHandler, b *handler.BookingHandler, pay *handler.PaymentHandler) {

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	if rate != nil {
		auth.Use(rate)
	}
	auth.Use(middleware.RequireRole(model.RoleCustomer, model.RoleProvider, model.RoleAdmin))

	// Vendor-side management.  Update also admits admins; the handler
	// checks ownership for everyone else.
	vendor := auth.Group("")
	vendor.Use(middleware.RequireRole(model.RoleProvider, model.RoleAdmin))
	vendor.POST("/providers", p.Create)
	vendor.PUT("/providers/:id", p.Update)
	vendor.GET("/providers/my-profile", p.MyProfile)
	vendor.POST("/menu-items", m.Create)
	vendor.PUT("/menu-items/:id", m.Update)
	vendor.DELETE("/menu-items/:id", m.Delete)
	vendor.GET("/bookings/provider", b.ListForProvider)
	vendor.PATCH("/bookings/:id/status", b.UpdateStatus)

	// Customer-side booking lifecycle.
	auth.POST("/bookings", b.Create)
	auth.GET("/bookings", b.ListMine)
	auth.GET("/bookings/:id", b.Get)
	auth.POST("/bookings/:id/cancel", b.Cancel)
	auth.POST("/bookings/:id/review", b.Review)

	// Card payment flow.
	auth.POST("/bookings/:id/payment-intent", pay.CreateIntent)
	auth.POST("/bookings/:id/payment/confirm", pay.Confirm)
}

// RegisterWebhook registers the gateway callback.  It is deliberately
// outside every auth and rate-limit group: the gateway authenticates with
// its signature header, not a JWT.
func RegisterWebhook(e *echo.Echo, w *handler.WebhookHandler) {
	e.POST("/v1/webhooks/payments", w.Handle)
}
