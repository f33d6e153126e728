package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/marketplace-slot-booking/internal/config"
	"github.com/iliyamo/marketplace-slot-booking/internal/handler"
	"github.com/iliyamo/marketplace-slot-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication
// on the provided Echo instance. Currently it exposes only a health
// check used by load balancers and monitoring.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers all authentication-related routes.
// Unauthenticated operations live under /v1/auth, while protected
// endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// /refresh rotates the refresh token; /refresh-access issues a new
	// access token while reusing the current refresh token.
	g.POST("/refresh", a.Refresh)
	g.POST("/refresh-access", a.RefreshAccess)
	// Logout lives outside the JWT middleware so a client holding only
	// a refresh token can still terminate its session.
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("VENDOR", "CUSTOMER"))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the unauthenticated catalog endpoints:
// active services and slot availability. Responses are cached in
// redis when caching is enabled; the middleware degrades to a
// pass-through when rdb is nil.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cacheCfg config.CacheConfig, rdb *redis.Client) {
	cache := middleware.NewResponseCache(cacheCfg, rdb)
	e.GET("/v1/services", p.ListServices, cache)
	e.GET("/v1/services/:id/slots", p.ListAvailability, cache)
}

// RegisterCustomer registers customer-scoped endpoints under /v1.
// All routes require a valid JWT and the CUSTOMER role. Customers
// reserve slots, confirm with payment, complete, cancel and list
// their own bookings.
func RegisterCustomer(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, rl echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("CUSTOMER"),
	)
	if rl != nil {
		g.Use(rl)
	}
	g.POST("/bookings", h.Create)
	g.POST("/bookings/:id/confirm", h.Confirm)
	g.POST("/bookings/:id/complete", h.Complete)
	g.POST("/bookings/:id/cancel", h.Cancel)
	g.GET("/bookings", h.List)
	g.GET("/bookings/:id", h.Get)
}

// RegisterVendor registers vendor-scoped endpoints under /v1/vendor.
// All routes require a valid JWT and the VENDOR role. Vendors manage
// their catalog entries and publish or block availability windows.
func RegisterVendor(e *echo.Echo, h *handler.VendorHandler, jwtSecret string, rl echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/vendor",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("VENDOR"),
	)
	if rl != nil {
		g.Use(rl)
	}
	g.POST("/services", h.CreateService)
	g.GET("/services", h.ListMyServices)
	g.PATCH("/services/:id/active", h.SetServiceActive)
	g.GET("/services/:id/slots", h.ListServiceSlots)
	g.POST("/slots", h.PublishSlots)
	g.POST("/slots/:id/block", h.BlockSlot)
	g.POST("/slots/:id/unblock", h.UnblockSlot)
}
