package oauth

import (
	"context"
	"time"
)

// TokenState is the persisted access/refresh token pair. The zero ExpiresAt
// means "no recorded expiry" and is treated as already expired.
type TokenState struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenEndpoint performs the two network calls of the OAuth flow. The
// manager itself never touches a transport.
type TokenEndpoint interface {
	ExchangeCode(ctx context.Context, code string) (TokenState, error)
	Refresh(ctx context.Context, refreshToken string) (TokenState, error)
}

// Store persists token state after every change. A failing store must not
// abort the run; the manager logs and continues with the in-memory token.
type Store interface {
	SaveTokens(accessToken, refreshToken string, expiresAt time.Time) error
}

// CodeProvider obtains a one-time authorization code for the given
// authorize URL: a CLI prompt, a loopback callback listener, or a test
// double returning a canned code.
type CodeProvider interface {
	AuthorizationCode(ctx context.Context, authorizeURL string) (string, error)
}
