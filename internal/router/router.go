// Package router defines how HTTP routes are registered for the API.
package router

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/cinebook/seat-reservation/internal/handler"
	"github.com/cinebook/seat-reservation/internal/middleware"
)

// RegisterPublic registers routes that require no authentication: the
// health check, the seat-map snapshot and the live seat stream. Viewing
// availability is open to guests, exactly like browsing showtimes.
func RegisterPublic(e *echo.Echo, r *handler.ReservationHandler, s *handler.StreamHandler) {
	e.GET("/healthz", handler.Health)
	e.GET("/v1/showtimes/:id/seats", r.GetShowtimeSeats)
	e.GET("/v1/showtimes/:id/stream", s.JoinShowtime)
}

// RegisterReservation registers the authenticated seat coordination
// routes. All of them run the JWT middleware; the mutating lock endpoints
// additionally run the Redis rate limiter so a looping client cannot
// monopolize the lock path.
func RegisterReservation(e *echo.Echo, r *handler.ReservationHandler, jwtSecret string,
	rdb *redis.Client, rateLimit int, rateWindow time.Duration) {

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))

	limited := auth.Group("")
	limited.Use(middleware.RateLimit(rdb, rateLimit, rateWindow))
	limited.POST("/showtimes/:id/lock", r.LockSeats)
	limited.DELETE("/showtimes/:id/lock", r.ReleaseSeats)

	auth.POST("/showtimes/:id/checkout", r.Checkout)
	auth.POST("/bookings/confirm", r.ConfirmBooking)
	auth.POST("/bookings/pending/:id/abort", r.AbortPending)
	auth.POST("/bookings/:id/cancel", r.CancelBooking)
	auth.GET("/my-bookings", r.ListBookings)
	auth.GET("/wallet", r.WalletBalance)
}
