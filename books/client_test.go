package books

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/fieldbooks_sync/utils"
)

type staticTokens string

func (s staticTokens) Token(ctx context.Context) (string, error) { return string(s), nil }

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("BOOKS_API_BASE_URL", srv.URL)

	client, err := NewClient("org-77", staticTokens("tok-1"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestCreateInvoice(t *testing.T) {
	var gotAuth, gotOrg string
	var gotBody map[string]any
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/invoices" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotOrg = r.Header.Get("Books-Organization-Id")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "binv-1"})
	}))

	created, err := client.CreateInvoice(context.Background(), NewInvoice{
		ContactID:    "B1",
		PaymentTerms: PaymentTermsDueOnReceipt,
		LineItems: []LineItem{
			{ItemID: "I1", Quantity: decimal.NewFromInt(5), Rate: decimal.NewFromInt(50), Description: "Labor"},
		},
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if created.ID != "binv-1" {
		t.Errorf("invoice id = %q", created.ID)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("authorization = %q", gotAuth)
	}
	if gotOrg != "org-77" {
		t.Errorf("organization header = %q", gotOrg)
	}
	if gotBody["contactId"] != "B1" || gotBody["paymentTerms"] != PaymentTermsDueOnReceipt {
		t.Errorf("payload = %+v", gotBody)
	}
}

func TestCreateInvoiceMissingIDIsShapeError(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))

	_, err := client.CreateInvoice(context.Background(), NewInvoice{ContactID: "B1"})
	if !errors.Is(err, utils.ErrUnexpectedResponseShape) {
		t.Fatalf("err = %v, want ErrUnexpectedResponseShape", err)
	}
}

func TestCreateInvoiceErrorIncludesBody(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "contact does not exist", http.StatusUnprocessableEntity)
	}))

	_, err := client.CreateInvoice(context.Background(), NewInvoice{ContactID: "nope"})
	if err == nil || !strings.Contains(err.Error(), "contact does not exist") {
		t.Fatalf("err = %v, want body in message", err)
	}
}

func TestTokenSourceFailureStopsCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent without a token")
	}))
	t.Cleanup(srv.Close)
	t.Setenv("BOOKS_API_BASE_URL", srv.URL)

	client, err := NewClient("org-77", failingTokens{})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.CreateInvoice(context.Background(), NewInvoice{}); err == nil {
		t.Fatal("want error when token source fails")
	}
}

type failingTokens struct{}

func (failingTokens) Token(ctx context.Context) (string, error) {
	return "", errors.New("no token")
}
