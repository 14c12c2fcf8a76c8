package syncer

import (
	"fmt"
	"strings"
	"time"
)

// DefaultLinkProperty is the FieldOps custom-property name whose value is
// the customer's Books contact id. A customer without it is not synced.
const DefaultLinkProperty = "books_contact_id"

// CustomerLink pairs a FieldOps customer with its Books contact. Built once
// per run, immutable afterwards.
type CustomerLink struct {
	SourceCustomerID string
	TargetContactID  string
}

// RunCounters is the run-scoped tally owned by the orchestrator. No global
// state; a fresh value is created for each run.
type RunCounters struct {
	InvoicesProcessed int
	InvoicesCreated   int
	InvoicesFailed    int
	PaymentsCreated   int
	PaymentsFailed    int
}

// RunError records one isolated failure with enough ids for manual
// reconciliation.
type RunError struct {
	EntityType string
	CustomerID string
	InvoiceID  string
	Message    string
}

// Report is what one complete run produces.
type Report struct {
	RunID     string
	StartedAt time.Time
	Counters  RunCounters
	Errors    []RunError
}

// Summary renders the five counters and any recorded failures for the
// operator console and the day log.
func (r *Report) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "sync run %s finished: processed=%d created=%d failed=%d paymentsCreated=%d paymentsFailed=%d",
		r.RunID,
		r.Counters.InvoicesProcessed,
		r.Counters.InvoicesCreated,
		r.Counters.InvoicesFailed,
		r.Counters.PaymentsCreated,
		r.Counters.PaymentsFailed,
	)
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "\n  %s customer=%s invoice=%s: %s", e.EntityType, e.CustomerID, e.InvoiceID, e.Message)
	}
	return b.String()
}

func (r *Report) addError(entityType, customerID, invoiceID, message string) {
	r.Errors = append(r.Errors, RunError{
		EntityType: entityType,
		CustomerID: customerID,
		InvoiceID:  invoiceID,
		Message:    message,
	})
}
