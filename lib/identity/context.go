package identity

import "context"

type contextKey int

const authenticationKey contextKey = 0

// SetAuthentication returns a context carrying auth.
// Use GetAuthentication to retrieve it later.
func SetAuthentication(ctx context.Context, auth *Authentication) context.Context {
	return context.WithValue(ctx, authenticationKey, auth)
}

// GetAuthentication returns the authentication stored in the context.
// Returns nil if the context has none.
func GetAuthentication(ctx context.Context) *Authentication {
	auth, _ := ctx.Value(authenticationKey).(*Authentication)
	return auth
}
