package config

import (
	"os"
	"strings"
)

// SkipQuickPay disables payment-record creation in FieldOps: invoices are
// still created in Books, but nothing is marked paid at the source.
// The -skip-quickpay CLI flag takes precedence over this.
//
// Set via env:
// - FIELDBOOKS_SKIP_QUICKPAY=true
func SkipQuickPay() bool {
	return envBool("FIELDBOOKS_SKIP_QUICKPAY")
}

// StrictDefaultMapping makes a missing DEFAULT row in the product-mapping
// file a load-time error instead of a per-line-item skip.
//
// Set via env:
// - FIELDBOOKS_STRICT_DEFAULT_MAPPING=false to relax (default strict)
func StrictDefaultMapping() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("FIELDBOOKS_STRICT_DEFAULT_MAPPING")))
	if v == "" {
		return true
	}
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func envBool(name string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(name)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}
