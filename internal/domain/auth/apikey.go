package auth

import "context"

// ScopeAdmin allows order status transitions and refunds.
const ScopeAdmin = "admin"

// APIKeyInfo holds the identity and permission data for a validated API key.
// Every key is bound to exactly one platform user; that user id is the
// "resolved identity" the checkout core requires as a precondition.
type APIKeyInfo struct {
	ID      string
	KeyHash string
	Name    string
	UserID  string
	Scopes  []string
}

// HasScope reports whether the key carries the given scope.
func (i *APIKeyInfo) HasScope(scope string) bool {
	for _, s := range i.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Repository provides lookup of API keys by their HMAC-SHA256 hash.
type Repository interface {
	FindByHash(ctx context.Context, hash string) (*APIKeyInfo, error)
}

type identityKey struct{}

// WithIdentity stores the validated key info in the context.
func WithIdentity(ctx context.Context, info *APIKeyInfo) context.Context {
	return context.WithValue(ctx, identityKey{}, info)
}

// IdentityFromContext extracts the validated key info from the context.
// The second return is false when the request was not authenticated.
func IdentityFromContext(ctx context.Context) (*APIKeyInfo, bool) {
	info, ok := ctx.Value(identityKey{}).(*APIKeyInfo)
	return info, ok
}
