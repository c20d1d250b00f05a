package auth

import "context"

// SetIdentityForTesting injects an authenticated user into ctx.
// This should only be used in tests to simulate authenticated requests
func SetIdentityForTesting(ctx context.Context, userID string) context.Context {
	return withIdentity(ctx, Identity{UserID: userID, Source: SourceJWT})
}
