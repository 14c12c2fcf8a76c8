package books

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/fieldbooks_sync/oauth"
	"bitbucket.org/mmdatafocus/fieldbooks_sync/utils"
)

// TokenClient implements oauth.TokenEndpoint against the Books identity
// service.
type TokenClient struct {
	tokenURL     string
	clientID     string
	clientSecret string
	redirectUri  string
	http         *http.Client
}

func NewTokenClient(clientID, clientSecret, redirectUri string) *TokenClient {
	tokenURL := strings.TrimSpace(os.Getenv("BOOKS_TOKEN_URL"))
	if tokenURL == "" {
		tokenURL = "https://identity.books.mmdatafocus.com/oauth/token"
	}
	return &TokenClient{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectUri:  redirectUri,
		http:         &http.Client{Timeout: 30 * time.Second},
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (t *TokenClient) ExchangeCode(ctx context.Context, code string) (oauth.TokenState, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", t.redirectUri)
	return t.post(ctx, form)
}

func (t *TokenClient) Refresh(ctx context.Context, refreshToken string) (oauth.TokenState, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return t.post(ctx, form)
}

func (t *TokenClient) post(ctx context.Context, form url.Values) (oauth.TokenState, error) {
	form.Set("client_id", t.clientID)
	form.Set("client_secret", t.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return oauth.TokenState{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return oauth.TokenState{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return oauth.TokenState{}, fmt.Errorf("books token endpoint error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return oauth.TokenState{}, fmt.Errorf("%w: %v", utils.ErrUnexpectedResponseShape, err)
	}
	if parsed.AccessToken == "" {
		return oauth.TokenState{}, fmt.Errorf("%w: token response has no access_token", utils.ErrUnexpectedResponseShape)
	}

	state := oauth.TokenState{
		AccessToken:  parsed.AccessToken,
		RefreshToken: parsed.RefreshToken,
	}
	if parsed.ExpiresIn > 0 {
		state.ExpiresAt = time.Now().UTC().Add(time.Duration(parsed.ExpiresIn) * time.Second)
	}
	return state, nil
}
