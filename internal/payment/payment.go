// Package payment defines the boundary to the external payment provider.
// The coordinator only ever sees an opaque card token going in and an
// authorization reference or error coming out; everything else about the
// provider is out of scope here.
package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrDeclined is returned when the provider refuses the charge. The caller
// releases the seats and lets the user retry with another method.
var ErrDeclined = errors.New("payment declined")

// Authorizer authorizes a charge of amountCents against the card behind
// token and returns an opaque authorization reference.
type Authorizer interface {
	Authorize(ctx context.Context, token string, amountCents uint32) (string, error)
}

// OfflineAuthorizer approves any non-empty token without contacting a
// provider. It is the default when no provider is configured, mirroring
// the demo checkout path of the web client; production deployments wire a
// real provider-backed Authorizer instead.
type OfflineAuthorizer struct{}

// Authorize implements Authorizer. An empty token is declined so the
// request/response contract stays the same as with a real provider.
func (OfflineAuthorizer) Authorize(_ context.Context, token string, _ uint32) (string, error) {
	if token == "" {
		return "", ErrDeclined
	}
	return uuid.NewString(), nil
}
