package handler

import (
	"errors"

	"github.com/labstack/echo/v4"
)

// errNoIdentity is returned when the JWT middleware did not populate the
// expected identity keys, meaning the route was registered without it or
// the token lacked the claim.
var errNoIdentity = errors.New("no identity in request context")

// getUserID extracts the authenticated user ID injected by the JWT
// middleware.
func getUserID(c echo.Context) (string, error) {
	if v, ok := c.Get("user_id").(string); ok && v != "" {
		return v, nil
	}
	return "", errNoIdentity
}

// getSessionID extracts the session ID injected by the JWT middleware.
// Sessions, not users, own seat locks: the same account in two tabs is two
// independent sessions contending like strangers.
func getSessionID(c echo.Context) (string, error) {
	if v, ok := c.Get("session_id").(string); ok && v != "" {
		return v, nil
	}
	return "", errNoIdentity
}
