// Package repository provides data access to the durable booking records.
// Sentinel errors defined here let higher layers distinguish failure
// scenarios without depending on database/sql details.
package repository

import "errors"

// ErrBookingNotFound is returned when a booking ID does not exist.
// Handlers translate this into an HTTP 404 response.
var ErrBookingNotFound = errors.New("booking not found")

// ErrForbidden is returned when the caller attempts an operation on a
// booking owned by someone else. Handlers translate this into an HTTP 403
// response.
var ErrForbidden = errors.New("forbidden")
