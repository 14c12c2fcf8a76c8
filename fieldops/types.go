package fieldops

import "encoding/json"

// Customer as returned by the FieldOps customer list. Properties carries
// the customer's custom attributes; the Books contact id lives there when
// the customer is linked.
type Customer struct {
	ID           string            `json:"id"`
	BusinessName string            `json:"business_name"`
	Email        string            `json:"email"`
	Properties   map[string]string `json:"properties"`
	UpdatedAt    string            `json:"updated_at"`
}

// Invoice as returned by the unpaid-invoice list. Amounts are json.Number
// so they can be lifted into decimals without a float round trip.
type Invoice struct {
	ID          string      `json:"id"`
	Number      string      `json:"number"`
	CustomerID  string      `json:"customer_id"`
	Total       json.Number `json:"total"`
	IsPaid      bool        `json:"is_paid"`
	InvoiceDate string      `json:"invoice_date"`
	UpdatedAt   string      `json:"updated_at"`
}

type LineItem struct {
	ID        string      `json:"id"`
	ProductID string      `json:"product_id"`
	Name      string      `json:"name"`
	Quantity  json.Number `json:"quantity"`
	UnitPrice json.Number `json:"unit_price"`
}

// PaymentMethodQuickPay is the fixed sentinel recorded on synthetic
// payments; it marks the invoice paid without representing a money movement.
const PaymentMethodQuickPay = "Books Sync"

type NewPayment struct {
	CustomerID    string `json:"customer_id"`
	InvoiceID     string `json:"invoice_id"`
	AmountCents   int64  `json:"amount_cents"`
	PaymentMethod string `json:"payment_method"`
}

type Payment struct {
	ID string `json:"id"`
}
