package port

import "context"

// DecisionToken records a user's invalidation generations at the moment a
// decision is about to be computed. A decision written with a token taken
// before an invalidation is discarded.
type DecisionToken struct {
	// Shared is the generation held by the shared cache.
	Shared int64
	// Local is the generation held by an in-process cache.
	Local uint64
}

// DecisionCache stores permission check outcomes per user.
type DecisionCache interface {
	GetDecision(ctx context.Context, userID int64, key string) (allowed bool, found bool, err error)
	// Snapshot returns the token to pass to SetDecision. Take it before reading the store.
	Snapshot(ctx context.Context, userID int64) (DecisionToken, error)
	// SetDecision stores the outcome unless the user was invalidated since token was taken.
	SetDecision(ctx context.Context, userID int64, key string, allowed bool, token DecisionToken) (stored bool, err error)
	// InvalidateUsers drops the users' decisions and advances their generations.
	InvalidateUsers(ctx context.Context, userIDs ...int64) error
}
