package oauth

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestPromptCodeProviderReadsTrimmedLine(t *testing.T) {
	p := PromptCodeProvider{In: strings.NewReader("  the-code \n"), Out: io.Discard}
	code, err := p.AuthorizationCode(context.Background(), "https://example.com/authorize")
	if err != nil {
		t.Fatalf("AuthorizationCode: %v", err)
	}
	if code != "the-code" {
		t.Errorf("code = %q", code)
	}
}

func TestPromptCodeProviderRejectsEmptyCode(t *testing.T) {
	p := PromptCodeProvider{In: strings.NewReader("\n"), Out: io.Discard}
	if _, err := p.AuthorizationCode(context.Background(), "u"); err == nil {
		t.Fatal("want error for empty code")
	}
}

func TestCallbackCodeProviderCapturesCode(t *testing.T) {
	redirect := "http://127.0.0.1:18414/callback"
	p := CallbackCodeProvider{RedirectUri: redirect, Out: io.Discard}

	type result struct {
		code string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		code, err := p.AuthorizationCode(context.Background(), "https://example.com/authorize")
		done <- result{code, err}
	}()

	// Poll until the listener answers the redirect.
	deadline := time.Now().Add(3 * time.Second)
	for {
		resp, err := http.Get(redirect + "?code=cb-code")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("callback listener never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("AuthorizationCode: %v", r.err)
		}
		if r.code != "cb-code" {
			t.Errorf("code = %q", r.code)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("provider did not return after callback")
	}
}

func TestCallbackCodeProviderHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := CallbackCodeProvider{RedirectUri: "http://127.0.0.1:18415/callback", Out: io.Discard}

	done := make(chan error, 1)
	go func() {
		_, err := p.AuthorizationCode(ctx, "u")
		done <- err
	}()
	cancel()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("want context error")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("provider did not stop on cancellation")
	}
}
