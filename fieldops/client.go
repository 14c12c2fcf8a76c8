package fieldops

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/fieldbooks_sync/utils"
)

// Client talks to the FieldOps REST API for one subdomain. All calls are
// synchronous and paced by a shared limiter so a large customer list cannot
// trip the platform's rate limit.
type Client struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
	limiter   <-chan time.Time
}

func NewClient(subdomain, apiKey string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("fieldops api key is empty")
	}
	if strings.TrimSpace(subdomain) == "" {
		return nil, errors.New("fieldops subdomain is empty")
	}
	baseURL := strings.TrimSpace(os.Getenv("FIELDOPS_API_BASE_URL"))
	if baseURL == "" {
		baseURL = fmt.Sprintf("https://%s.fieldops.com/api/v1", subdomain)
	}
	apiKeyHeader := strings.TrimSpace(os.Getenv("FIELDOPS_API_KEY_HEADER"))
	if apiKeyHeader == "" {
		apiKeyHeader = "X-API-Key"
	}
	rateLimitPerMin := int64(60)
	if v := strings.TrimSpace(os.Getenv("FIELDOPS_RATE_LIMIT_PER_MIN")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			rateLimitPerMin = n
		}
	}
	interval := time.Minute / time.Duration(rateLimitPerMin)

	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiKeyHdr: apiKeyHeader,
		http:      &http.Client{Timeout: 30 * time.Second},
		limiter:   time.Tick(interval),
	}, nil
}

type listResponse struct {
	Data  []json.RawMessage `json:"data"`
	Items []json.RawMessage `json:"items"`
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, payload any) ([]byte, error) {
	<-c.limiter
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set(c.apiKeyHdr, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
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
		return nil, fmt.Errorf("fieldops api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func (c *Client) getList(ctx context.Context, path string, params url.Values) ([]json.RawMessage, error) {
	body, err := c.do(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return nil, err
	}
	var parsed listResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Data) > 0 {
		return parsed.Data, nil
	}
	return parsed.Items, nil
}

// ListCustomers returns customers that carry the named custom property.
// Customers without it are excluded server-side; that is intended behavior.
func (c *Client) ListCustomers(ctx context.Context, linkProperty string) ([]Customer, error) {
	params := url.Values{}
	params.Set("has_property", linkProperty)

	raws, err := c.getList(ctx, "/customers", params)
	if err != nil {
		return nil, err
	}
	customers := make([]Customer, 0, len(raws))
	for _, raw := range raws {
		var cust Customer
		if err := json.Unmarshal(raw, &cust); err != nil {
			return nil, err
		}
		customers = append(customers, cust)
	}
	return customers, nil
}

// ListUnpaidInvoices returns unpaid invoices updated since the given time.
func (c *Client) ListUnpaidInvoices(ctx context.Context, since time.Time) ([]Invoice, error) {
	params := url.Values{}
	params.Set("paid", "false")
	params.Set("updated_since", since.UTC().Format(time.RFC3339))

	raws, err := c.getList(ctx, "/invoices", params)
	if err != nil {
		return nil, err
	}
	invoices := make([]Invoice, 0, len(raws))
	for _, raw := range raws {
		var inv Invoice
		if err := json.Unmarshal(raw, &inv); err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

func (c *Client) ListLineItems(ctx context.Context, invoiceID string) ([]LineItem, error) {
	raws, err := c.getList(ctx, "/invoices/"+url.PathEscape(invoiceID)+"/line_items", nil)
	if err != nil {
		return nil, err
	}
	items := make([]LineItem, 0, len(raws))
	for _, raw := range raws {
		var item LineItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// CreatePayment records a synthetic quick payment against an invoice so the
// platform marks it paid.
func (c *Client) CreatePayment(ctx context.Context, payment NewPayment) (Payment, error) {
	body, err := c.do(ctx, http.MethodPost, "/payments", nil, payment)
	if err != nil {
		return Payment{}, err
	}
	var created Payment
	if err := json.Unmarshal(body, &created); err != nil {
		return Payment{}, err
	}
	if strings.TrimSpace(created.ID) == "" {
		return Payment{}, errors.New("payment response has no id")
	}
	return created, nil
}
