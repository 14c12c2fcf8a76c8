package books

import "github.com/shopspring/decimal"

// PaymentTermsDueOnReceipt is the fixed payment-terms value applied to
// every synced invoice.
const PaymentTermsDueOnReceipt = "DueOnReceipt"

// LineItem is the Books-facing line-item shape produced by the translation
// engine.
type LineItem struct {
	ItemID      string          `json:"itemId"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Description string          `json:"description,omitempty"`
}

type NewInvoice struct {
	ContactID    string     `json:"contactId"`
	PaymentTerms string     `json:"paymentTerms"`
	LineItems    []LineItem `json:"lineItems"`
}

type Invoice struct {
	ID string `json:"id"`
}
