package oauth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// PromptCodeProvider prints the authorize URL and reads the pasted code
// from the operator.
type PromptCodeProvider struct {
	In  io.Reader
	Out io.Writer
}

func (p PromptCodeProvider) AuthorizationCode(ctx context.Context, authorizeURL string) (string, error) {
	fmt.Fprintf(p.Out, "Open this URL in a browser and authorize access:\n\n  %s\n\nPaste the authorization code: ", authorizeURL)

	type result struct {
		code string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		ch <- result{code: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil && r.code == "" {
			return "", r.err
		}
		if r.code == "" {
			return "", errors.New("empty authorization code")
		}
		return r.code, nil
	}
}

// CallbackCodeProvider opens the authorize URL out-of-band (printed for the
// operator) and runs a one-shot loopback listener on the redirect URI until
// the provider delivers the code.
type CallbackCodeProvider struct {
	RedirectUri string
	Out         io.Writer
}

func (p CallbackCodeProvider) AuthorizationCode(ctx context.Context, authorizeURL string) (string, error) {
	redirect, err := url.Parse(p.RedirectUri)
	if err != nil {
		return "", fmt.Errorf("invalid redirect uri: %w", err)
	}
	path := redirect.Path
	if path == "" {
		path = "/"
	}

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET(path, func(c *gin.Context) {
		if msg := c.Query("error"); msg != "" {
			c.String(http.StatusBadRequest, "Authorization failed: %s. You can close this window.", msg)
			select {
			case errCh <- fmt.Errorf("provider returned error %q", msg):
			default:
			}
			return
		}
		code := c.Query("code")
		if code == "" {
			c.String(http.StatusBadRequest, "Missing authorization code.")
			return
		}
		c.String(http.StatusOK, "Authorization received. You can close this window.")
		select {
		case codeCh <- code:
		default:
		}
	})

	srv := &http.Server{Addr: redirect.Host, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case errCh <- err:
			default:
			}
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(p.Out, "Open this URL in a browser and authorize access:\n\n  %s\n\nWaiting for the callback on %s ...\n", authorizeURL, p.RedirectUri)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errCh:
		return "", err
	case code := <-codeCh:
		return code, nil
	}
}
