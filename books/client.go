package books

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/fieldbooks_sync/utils"
)

// TokenSource hands out a currently-valid access token; in production this
// is the oauth manager.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the Books accounting API for one organization.
type Client struct {
	baseURL        string
	organizationID string
	tokens         TokenSource
	http           *http.Client
}

func NewClient(organizationID string, tokens TokenSource) (*Client, error) {
	if strings.TrimSpace(organizationID) == "" {
		return nil, errors.New("books organization id is empty")
	}
	baseURL := strings.TrimSpace(os.Getenv("BOOKS_API_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.books.mmdatafocus.com/v3"
	}
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		organizationID: organizationID,
		tokens:         tokens,
		http:           &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Books-Organization-Id", c.organizationID)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if cid, ok := utils.GetCorrelationIdFromContext(ctx); ok {
		req.Header.Set("X-Correlation-Id", cid)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("books api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// CreateInvoice submits one translated invoice and returns its Books id.
func (c *Client) CreateInvoice(ctx context.Context, invoice NewInvoice) (Invoice, error) {
	body, err := c.post(ctx, "/invoices", invoice)
	if err != nil {
		return Invoice{}, err
	}
	var created Invoice
	if err := json.Unmarshal(body, &created); err != nil {
		return Invoice{}, fmt.Errorf("%w: %v", utils.ErrUnexpectedResponseShape, err)
	}
	if strings.TrimSpace(created.ID) == "" {
		return Invoice{}, fmt.Errorf("%w: invoice response has no id", utils.ErrUnexpectedResponseShape)
	}
	return created, nil
}
