// fieldbooks-sync reads unpaid FieldOps invoices for Books-linked customers,
// creates matching invoices in Books, and (unless disabled) marks the
// originals paid with a quick payment.
//
// Usage:
//
//	fieldbooks-sync [-skip-quickpay]
//
// Settings come from FIELDBOOKS_SETTINGS (default settings.yaml) and
// the product-mapping file from FIELDBOOKS_MAPPING (default
// product_mappings.csv); a .env file in the working directory is loaded
// first. Exits non-zero on settings, mapping, or authorization failure;
// individual invoice failures are counted and reported, not fatal.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"bitbucket.org/mmdatafocus/fieldbooks_sync/books"
	"bitbucket.org/mmdatafocus/fieldbooks_sync/config"
	"bitbucket.org/mmdatafocus/fieldbooks_sync/fieldops"
	"bitbucket.org/mmdatafocus/fieldbooks_sync/mapping"
	"bitbucket.org/mmdatafocus/fieldbooks_sync/oauth"
	"bitbucket.org/mmdatafocus/fieldbooks_sync/syncer"
	"bitbucket.org/mmdatafocus/fieldbooks_sync/utils"
)

func main() {
	skipQuickPay := flag.Bool("skip-quickpay", false, "create invoices but never submit payment records (testing mode)")
	flag.Parse()

	_ = godotenv.Load()
	config.EnableDailyFileLog()
	logger := config.GetLogger()

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	runID := uuid.NewString()
	ctx = utils.SetCorrelationIdInContext(ctx, runID)
	ctx = utils.SetRunIdInContext(ctx, runID)
	logger.Infof("starting sync run %s", runID)

	settingsPath := envOr("FIELDBOOKS_SETTINGS", "settings.yaml")
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load settings from %s: %v\n", settingsPath, err)
		os.Exit(1)
	}

	mappingPath := envOr("FIELDBOOKS_MAPPING", "product_mappings.csv")
	table, err := mapping.Load(mappingPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load product mappings from %s: %v\n", mappingPath, err)
		os.Exit(1)
	}
	logger.Infof("loaded %d product mappings from %s", table.Len(), mappingPath)

	manager := oauth.NewManager(
		oauth.TokenState{
			AccessToken:  settings.Books.AccessToken,
			RefreshToken: settings.Books.RefreshToken,
			ExpiresAt:    settings.TokenExpiresAt(),
		},
		oauth.AuthorizeConfig{
			ClientID:     settings.Books.ClientID,
			RedirectUri:  settings.Books.RedirectUri,
			AuthorizeUri: settings.Books.AuthorizeUri,
			Scope:        settings.Books.Scope,
		},
		books.NewTokenClient(settings.Books.ClientID, settings.Books.Secret, settings.Books.RedirectUri),
		settings,
		codeProvider(settings.Books.RedirectUri),
	)

	// One up-front token acquisition; everything after this reuses it.
	if _, err := manager.Token(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "authorization failed: %v\n", err)
		os.Exit(2)
	}

	source, err := fieldops.NewClient(settings.FieldOps.Subdomain, settings.FieldOps.APIKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid fieldops settings: %v\n", err)
		os.Exit(1)
	}
	target, err := books.NewClient(settings.Books.OrganizationID, manager)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid books settings: %v\n", err)
		os.Exit(1)
	}

	skip := *skipQuickPay || config.SkipQuickPay()
	if skip {
		logger.Info("quick-pay disabled: no payment records will be created")
	}

	worker := syncer.NewWorker(source, target, table)
	report, err := worker.Run(ctx, syncer.Options{
		LinkProperty: envOr("FIELDBOOKS_LINK_PROPERTY", syncer.DefaultLinkProperty),
		SkipQuickPay: skip,
	})
	if err != nil {
		// Listing failures mean nothing was processed; the run itself is
		// still a completed invocation.
		fmt.Fprintf(os.Stderr, "sync run aborted: %v\n", err)
	}
	fmt.Println(report.Summary())
}

// codeProvider picks how the one-time authorization code is captured: a
// loopback redirect URI gets a local callback listener, anything else a
// manual paste prompt.
func codeProvider(redirectUri string) oauth.CodeProvider {
	u, err := url.Parse(redirectUri)
	if err == nil {
		host := u.Hostname()
		if host == "localhost" || host == "127.0.0.1" || host == "::1" {
			return oauth.CallbackCodeProvider{RedirectUri: redirectUri, Out: os.Stdout}
		}
	}
	return oauth.PromptCodeProvider{In: os.Stdin, Out: os.Stdout}
}

func envOr(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}
