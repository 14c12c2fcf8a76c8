package oauth

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"bitbucket.org/mmdatafocus/fieldbooks_sync/config"
	"bitbucket.org/mmdatafocus/fieldbooks_sync/utils"
)

// RefreshSafetyMargin is how close to expiry a stored access token may get
// before it is refreshed instead of reused.
const RefreshSafetyMargin = 300 * time.Second

// AuthorizeConfig carries the pieces needed to build the authorization URL.
type AuthorizeConfig struct {
	ClientID     string
	RedirectUri  string
	AuthorizeUri string
	Scope        string
}

// Manager owns the token pair for the run. Access is serialized so at most
// one refresh is ever in flight, even if callers become concurrent.
type Manager struct {
	mu       sync.Mutex
	state    TokenState
	auth     AuthorizeConfig
	endpoint TokenEndpoint
	store    Store
	provider CodeProvider
	logger   *logrus.Logger
	now      func() time.Time
}

func NewManager(state TokenState, auth AuthorizeConfig, endpoint TokenEndpoint, store Store, provider CodeProvider) *Manager {
	return &Manager{
		state:    state,
		auth:     auth,
		endpoint: endpoint,
		store:    store,
		provider: provider,
		logger:   config.GetLogger(),
		now:      time.Now,
	}
}

// Token returns a currently-valid access token, reusing, refreshing, or
// fully re-authorizing as needed. Only a failed authorization-code exchange
// is returned as an error (fatal for the run); a failed refresh degrades to
// the manual flow, and a failed persist is logged only.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.RefreshToken == "" {
		return m.authorize(ctx)
	}

	if m.state.AccessToken != "" && !m.state.ExpiresAt.IsZero() {
		if m.state.ExpiresAt.Sub(m.now()) > RefreshSafetyMargin {
			return m.state.AccessToken, nil
		}
	}

	fresh, err := m.endpoint.Refresh(ctx, m.state.RefreshToken)
	if err != nil {
		config.LogError(m.logger, "oauth", "Token", "refresh", nil,
			fmt.Errorf("%w: %v (falling back to manual authorization)", utils.ErrRefreshFailed, err))
		m.state.RefreshToken = ""
		return m.authorize(ctx)
	}
	if fresh.RefreshToken == "" {
		// Provider did not rotate the refresh token; keep the stored one.
		fresh.RefreshToken = m.state.RefreshToken
	}
	m.state = fresh
	m.persist()
	return m.state.AccessToken, nil
}

func (m *Manager) authorize(ctx context.Context) (string, error) {
	code, err := m.provider.AuthorizationCode(ctx, m.AuthorizeURL())
	if err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrAuthExchangeFailed, err)
	}
	state, err := m.endpoint.ExchangeCode(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrAuthExchangeFailed, err)
	}
	m.state = state
	m.persist()
	return m.state.AccessToken, nil
}

// persist writes the token state back to storage. Losing the write only
// forces a manual re-authorization next run, so failure is logged and the
// in-memory token is used.
func (m *Manager) persist() {
	if err := m.store.SaveTokens(m.state.AccessToken, m.state.RefreshToken, m.state.ExpiresAt); err != nil {
		config.LogError(m.logger, "oauth", "persist", "token state", nil, err)
	}
}

// AuthorizeURL builds the consent URL including the offline-access flag, so
// the exchange yields a refresh token.
func (m *Manager) AuthorizeURL() string {
	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", m.auth.ClientID)
	params.Set("redirect_uri", m.auth.RedirectUri)
	params.Set("scope", m.auth.Scope)
	params.Set("access_type", "offline")
	return m.auth.AuthorizeUri + "?" + params.Encode()
}
