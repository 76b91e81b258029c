// Package router wires handlers to routes.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/eventhive/event-seat-booking/internal/handler"
	"github.com/eventhive/event-seat-booking/internal/middleware"
)

// RegisterRoutes mounts the unauthenticated service routes.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth mounts registration and login.
func RegisterAuth(e *echo.Echo, h *handler.AuthHandler) {
	g := e.Group("/v1/auth")
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
}

// RegisterBooking mounts the booking API.  Seat availability is public
// and served through the response cache; everything else requires a
// valid access token, and the resolved user is the booking owner.
func RegisterBooking(e *echo.Echo, h *handler.BookingHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	e.GET("/v1/events/:id/seat-types", h.GetAvailableSeats, cache)

	g := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole("CUSTOMER", "ADMIN"))
	g.POST("/events/:id/quote", h.Quote)
	g.POST("/bookings", h.CreateBooking)
	g.POST("/bookings/:id/confirm", h.ConfirmBooking)
	g.POST("/bookings/:id/cancel", h.CancelBooking)
	g.GET("/bookings/code/:code", h.GetBookingByCode)
	g.GET("/bookings/:id", h.GetBooking)
	g.GET("/my-bookings", h.ListMyBookings)
}
