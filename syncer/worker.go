package syncer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bitbucket.org/mmdatafocus/fieldbooks_sync/books"
	"bitbucket.org/mmdatafocus/fieldbooks_sync/config"
	"bitbucket.org/mmdatafocus/fieldbooks_sync/fieldops"
	"bitbucket.org/mmdatafocus/fieldbooks_sync/mapping"
	"bitbucket.org/mmdatafocus/fieldbooks_sync/utils"
)

// SourceAPI is the FieldOps surface the orchestrator needs.
type SourceAPI interface {
	ListCustomers(ctx context.Context, linkProperty string) ([]fieldops.Customer, error)
	ListUnpaidInvoices(ctx context.Context, since time.Time) ([]fieldops.Invoice, error)
	ListLineItems(ctx context.Context, invoiceID string) ([]fieldops.LineItem, error)
	CreatePayment(ctx context.Context, payment fieldops.NewPayment) (fieldops.Payment, error)
}

// TargetAPI is the Books surface the orchestrator needs.
type TargetAPI interface {
	CreateInvoice(ctx context.Context, invoice books.NewInvoice) (books.Invoice, error)
}

type Options struct {
	// LinkProperty names the FieldOps custom property carrying the Books
	// contact id. Defaults to DefaultLinkProperty.
	LinkProperty string
	// Since is the updated-since cutoff. The zero value means first of the
	// current month.
	Since time.Time
	// SkipQuickPay creates invoices but never submits payment records.
	SkipQuickPay bool
}

// Worker drives one complete sync run. All state is run-scoped; create a
// fresh Worker per run.
type Worker struct {
	source SourceAPI
	target TargetAPI
	table  *mapping.Table
}

func NewWorker(source SourceAPI, target TargetAPI, table *mapping.Table) *Worker {
	return &Worker{source: source, target: target, table: table}
}

// Run processes every linked customer's first unpaid invoice. A failure on
// one customer is counted and logged, never propagated; remaining customers
// still run. The returned error is non-nil only when no work could start
// at all (a listing call failed).
func (w *Worker) Run(ctx context.Context, opts Options) (*Report, error) {
	logger := config.GetLogger()
	report := &Report{StartedAt: time.Now()}
	if runID, ok := utils.GetRunIdFromContext(ctx); ok {
		report.RunID = runID
	}

	linkProperty := opts.LinkProperty
	if linkProperty == "" {
		linkProperty = DefaultLinkProperty
	}
	since := opts.Since
	if since.IsZero() {
		since = firstOfCurrentMonth(time.Now())
	}

	customers, err := w.source.ListCustomers(ctx, linkProperty)
	if err != nil {
		config.LogError(logger, "syncer", "Run", "list customers", nil, err)
		report.addError("customers", "", "", err.Error())
		return report, fmt.Errorf("list customers: %w", err)
	}

	links := buildCustomerLinks(customers, linkProperty)
	logger.Infof("found %d linked customers (of %d)", len(links), len(customers))

	// Invoices already paid by a previous run's quick payment no longer
	// match the unpaid filter, which is what makes re-runs idempotent.
	invoices, err := w.source.ListUnpaidInvoices(ctx, since)
	if err != nil {
		config.LogError(logger, "syncer", "Run", "list unpaid invoices", nil, err)
		report.addError("invoices", "", "", err.Error())
		return report, fmt.Errorf("list unpaid invoices: %w", err)
	}
	logger.Infof("found %d unpaid invoices updated since %s", len(invoices), since.Format("2006-01-02"))

	for _, link := range links {
		invoice, ok := firstInvoiceForCustomer(invoices, link.SourceCustomerID)
		if !ok {
			continue
		}
		w.processInvoice(ctx, report, link, invoice, opts.SkipQuickPay)
	}

	logger.Info(report.Summary())
	return report, nil
}

// processInvoice handles one customer/invoice pair end to end. Every
// failure path increments a counter and records ids; none abort the run.
func (w *Worker) processInvoice(ctx context.Context, report *Report, link CustomerLink, invoice fieldops.Invoice, skipQuickPay bool) {
	logger := config.GetLogger()
	report.Counters.InvoicesProcessed++

	items, err := w.source.ListLineItems(ctx, invoice.ID)
	if err != nil {
		report.Counters.InvoicesFailed++
		report.addError("invoice", link.SourceCustomerID, invoice.ID, err.Error())
		config.LogError(logger, "syncer", "processInvoice", "list line items", invoiceCtx(link, invoice), err)
		return
	}

	lineItems, skippedItems := Translate(items, w.table)
	if skippedItems > 0 {
		config.LogWarn(logger, "syncer", "processInvoice", invoice.ID,
			fmt.Sprintf("%d line items skipped (no mapping)", skippedItems))
	}
	if len(lineItems) == 0 {
		report.Counters.InvoicesFailed++
		report.addError("invoice", link.SourceCustomerID, invoice.ID, "no translatable line items")
		config.LogError(logger, "syncer", "processInvoice", "translate", invoiceCtx(link, invoice),
			fmt.Errorf("invoice has no translatable line items"))
		return
	}

	created, err := w.target.CreateInvoice(ctx, books.NewInvoice{
		ContactID:    link.TargetContactID,
		PaymentTerms: books.PaymentTermsDueOnReceipt,
		LineItems:    lineItems,
	})
	if err != nil {
		report.Counters.InvoicesFailed++
		report.addError("invoice", link.SourceCustomerID, invoice.ID, err.Error())
		config.LogError(logger, "syncer", "processInvoice", "create invoice", invoiceCtx(link, invoice), err)
		return
	}
	report.Counters.InvoicesCreated++
	logger.Infof("created Books invoice %s for customer %s (source invoice %s)", created.ID, link.SourceCustomerID, invoice.ID)

	if skipQuickPay {
		return
	}

	amountCents, err := minorUnits(invoice.Total.String())
	if err != nil {
		// Invoice stays created in Books and unpaid in FieldOps; manual
		// reconciliation required.
		report.Counters.PaymentsFailed++
		report.addError("payment", link.SourceCustomerID, invoice.ID, "invoice total unparsable: "+err.Error())
		config.LogError(logger, "syncer", "processInvoice", "payment amount", invoiceCtx(link, invoice), err)
		return
	}

	payment, err := w.source.CreatePayment(ctx, fieldops.NewPayment{
		CustomerID:    link.SourceCustomerID,
		InvoiceID:     invoice.ID,
		AmountCents:   amountCents,
		PaymentMethod: fieldops.PaymentMethodQuickPay,
	})
	if err != nil {
		report.Counters.PaymentsFailed++
		report.addError("payment", link.SourceCustomerID, invoice.ID, err.Error())
		config.LogError(logger, "syncer", "processInvoice", "create payment", invoiceCtx(link, invoice), err)
		return
	}
	report.Counters.PaymentsCreated++
	logger.Infof("created quick payment %s for invoice %s", payment.ID, invoice.ID)
}

func buildCustomerLinks(customers []fieldops.Customer, linkProperty string) []CustomerLink {
	links := make([]CustomerLink, 0, len(customers))
	for _, cust := range customers {
		target := strings.TrimSpace(cust.Properties[linkProperty])
		if target == "" {
			// Unlinked customers are excluded by design, not an error.
			continue
		}
		links = append(links, CustomerLink{
			SourceCustomerID: cust.ID,
			TargetContactID:  target,
		})
	}
	return links
}

// firstInvoiceForCustomer returns the first unpaid invoice by customer id.
// Additional unpaid invoices for the same customer are left for later runs;
// a known limitation carried over deliberately.
func firstInvoiceForCustomer(invoices []fieldops.Invoice, customerID string) (fieldops.Invoice, bool) {
	for _, inv := range invoices {
		if inv.CustomerID == customerID {
			return inv, true
		}
	}
	return fieldops.Invoice{}, false
}

// firstOfCurrentMonth is the fixed calendar window re-evaluated each run.
// Invoices still unpaid across a month boundary fall out of scope; a known
// limitation.
func firstOfCurrentMonth(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func minorUnits(total string) (int64, error) {
	d, err := decimal.NewFromString(total)
	if err != nil {
		return 0, err
	}
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}

func invoiceCtx(link CustomerLink, invoice fieldops.Invoice) map[string]string {
	return map[string]string{
		"customerId": link.SourceCustomerID,
		"contactId":  link.TargetContactID,
		"invoiceId":  invoice.ID,
	}
}
