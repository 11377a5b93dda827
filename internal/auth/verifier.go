// Package auth implements the Token Verifier capability of spec §4 and §9:
// resolving a client-presented auth_token into an owning principal, or
// rejecting it, without the connection handler ever knowing how that
// resolution happens.
package auth

import (
	"context"
	"errors"
)

// InvalidToken is returned when a token is well-formed but not recognized,
// expired, or revoked. The connection handler maps this to auth_failed.
var InvalidToken = errors.New("auth: invalid token")

// TransientFailure wraps an error from a Verifier's backing service (timeout,
// connection refused, 5xx) that says nothing about the token's validity.
// The connection handler fails closed on it: the connection is rejected with
// auth_failed, the same reply as for InvalidToken, and nothing is cached.
type TransientFailure struct {
	Err error
}

func (e *TransientFailure) Error() string { return "auth: transient failure: " + e.Err.Error() }
func (e *TransientFailure) Unwrap() error { return e.Err }

// Verifier resolves an auth token to the owner_id it belongs to.
type Verifier interface {
	// Verify returns the owning principal's id for an active token, or
	// InvalidToken if the token is unknown/expired/revoked. Any other
	// error is a TransientFailure.
	Verify(ctx context.Context, token string) (ownerID string, err error)
}
