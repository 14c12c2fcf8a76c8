package books

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testTokenClient(t *testing.T, handler http.Handler) *TokenClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("BOOKS_TOKEN_URL", srv.URL)
	return NewTokenClient("client-1", "s3cret", "http://localhost:8414/callback")
}

func TestExchangeCode(t *testing.T) {
	var form map[string][]string
	tc := testTokenClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form = r.PostForm
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "acc-1",
			"refresh_token": "ref-1",
			"token_type":    "Bearer",
			"expires_in":    1800,
		})
	}))

	before := time.Now().UTC()
	state, err := tc.ExchangeCode(context.Background(), "one-time-code")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if state.AccessToken != "acc-1" || state.RefreshToken != "ref-1" {
		t.Errorf("state = %+v", state)
	}
	if got := form["grant_type"]; len(got) != 1 || got[0] != "authorization_code" {
		t.Errorf("grant_type = %v", got)
	}
	if got := form["code"]; len(got) != 1 || got[0] != "one-time-code" {
		t.Errorf("code = %v", got)
	}
	if got := form["redirect_uri"]; len(got) != 1 || got[0] != "http://localhost:8414/callback" {
		t.Errorf("redirect_uri = %v", got)
	}
	minExpiry := before.Add(1700 * time.Second)
	if state.ExpiresAt.Before(minExpiry) {
		t.Errorf("ExpiresAt = %s, want ~30m from now", state.ExpiresAt)
	}
}

func TestRefreshGrant(t *testing.T) {
	var form map[string][]string
	tc := testTokenClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		form = r.PostForm
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "acc-2",
			"expires_in":   1800,
		})
	}))

	state, err := tc.Refresh(context.Background(), "ref-1")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := form["grant_type"]; len(got) != 1 || got[0] != "refresh_token" {
		t.Errorf("grant_type = %v", got)
	}
	if got := form["refresh_token"]; len(got) != 1 || got[0] != "ref-1" {
		t.Errorf("refresh_token = %v", got)
	}
	// Provider omitted a rotated refresh token; manager keeps the old one.
	if state.RefreshToken != "" {
		t.Errorf("refresh token = %q, want empty from response", state.RefreshToken)
	}
}

func TestTokenEndpointErrorStatus(t *testing.T) {
	tc := testTokenClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))

	if _, err := tc.Refresh(context.Background(), "stale"); err == nil {
		t.Fatal("want error on 400")
	}
}

func TestTokenResponseMissingAccessToken(t *testing.T) {
	tc := testTokenClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"token_type": "Bearer"})
	}))

	if _, err := tc.ExchangeCode(context.Background(), "code"); err == nil {
		t.Fatal("want error when access_token missing")
	}
}
