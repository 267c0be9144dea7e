// Package main provides a one-shot autobuy run over a fixture file:
// validation → planning → execution → report, printed to stdout.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"giftbuyer/internal/domain"
	"giftbuyer/internal/giftapi"
	"giftbuyer/internal/logging"
	"giftbuyer/internal/offers"
	"giftbuyer/internal/orchestrator"
	"giftbuyer/internal/reporting"
	"giftbuyer/internal/storage/memory"
)

func main() {
	userID := flag.Int64("user-id", 0, "User whose accounts and rules drive the run")
	offersPath := flag.String("offers", "", "Path to JSON array of raw offer records")
	fixturesPath := flag.String("fixtures", "", "Path to JSON fixture with accounts, destinations and settings")
	apiURL := flag.String("api-url", "", "Purchase backend base URL (empty runs a dry run)")
	forcedDest := flag.Int64("forced-destination", 0, "Forced destination id (0 for none)")
	fallbackOnly := flag.Bool("fallback-only", false, "Route only fallback-eligible offers to the forced destination")
	allowUnlimited := flag.Bool("allow-unlimited", false, "Accept offers without the supply-limited flag")
	logLevel := flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	flag.Parse()

	if *userID == 0 || *offersPath == "" || *fixturesPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: autobuy --user-id N --offers offers.json --fixtures fixtures.json [flags]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	logger, err := logging.New(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Printf("\nReceived signal %v, cancelling run...\n", sig)
		cancel()
	}()

	rawOffers, err := loadOffers(*offersPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading offers: %v\n", err)
		os.Exit(1)
	}

	fix, err := loadFixture(*fixturesPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading fixtures: %v\n", err)
		os.Exit(1)
	}

	stores, err := seedStores(ctx, *userID, fix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error seeding stores: %v\n", err)
		os.Exit(1)
	}

	var port orchestrator.PurchasePort
	if *apiURL != "" {
		port = giftapi.New(giftapi.Options{BaseURL: *apiURL, Logger: logger})
	} else {
		fmt.Println("=== Dry run (no --api-url): sends succeed, balances from fixtures ===")
		port = &dryRunPort{}
	}

	orch := orchestrator.New(orchestrator.Options{
		AccountStore:     stores.accounts,
		DestinationStore: stores.destinations,
		SettingsStore:    stores.settings,
		Purchase:         port,
		AllowUnlimited:   *allowUnlimited,
		Logger:           logger,
	})

	input := orchestrator.Input{UserID: *userID, Offers: rawOffers, ForcedFallbackOnly: *fallbackOnly}
	if *forcedDest != 0 {
		input.ForcedDestinationID = forcedDest
	}

	outcome, err := orch.Run(ctx, input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Run error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("=== Report ===")
	lines := reporting.Build(outcome.Statistics, rawOffers)
	for _, chunk := range reporting.SplitChunks(lines, reporting.MessageLimit) {
		fmt.Println(chunk)
	}

	fmt.Println("\n=== Outcome ===")
	encoded, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding outcome: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(encoded))

	fmt.Printf("\nRun %s: purchased=%d skipped=%d deferred=%d\n",
		outcome.RunID, len(outcome.Purchased), outcome.SkippedCount, len(outcome.Deferred))
}

// fixture is the JSON shape of the --fixtures file.
type fixture struct {
	Accounts []struct {
		ID          int64  `json:"id"`
		Credentials string `json:"credentials"`
		Premium     bool   `json:"premium"`
		Balance     int64  `json:"balance"`
	} `json:"accounts"`
	Destinations []struct {
		ID            int64  `json:"id"`
		DestinationID int64  `json:"destination_id"`
		PriceMin      *int64 `json:"price_min"`
		PriceMax      *int64 `json:"price_max"`
		SupplyMin     *int64 `json:"supply_min"`
		SupplyMax     *int64 `json:"supply_max"`
	} `json:"destinations"`
	Settings struct {
		AutobuyEnabled      bool   `json:"autobuy_enabled"`
		DeliveryToken       string `json:"delivery_token"`
		ForcedDestinationID *int64 `json:"forced_destination_id"`
		ForcedFallbackOnly  bool   `json:"forced_fallback_only"`
	} `json:"settings"`
}

type memoryStores struct {
	accounts     *memory.AccountStore
	destinations *memory.DestinationStore
	settings     *memory.SettingsStore
}

func loadOffers(path string) ([]offers.RawOffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw []offers.RawOffer
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return raw, nil
}

func loadFixture(path string) (*fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fix fixture
	if err := json.Unmarshal(data, &fix); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &fix, nil
}

func seedStores(ctx context.Context, userID int64, fix *fixture) (*memoryStores, error) {
	stores := &memoryStores{
		accounts:     memory.NewAccountStore(),
		destinations: memory.NewDestinationStore(),
		settings:     memory.NewSettingsStore(),
	}
	for _, a := range fix.Accounts {
		err := stores.accounts.Insert(ctx, &domain.AccountSnapshot{
			ID:          a.ID,
			UserID:      userID,
			Credentials: a.Credentials,
			Premium:     a.Premium,
			Balance:     a.Balance,
		})
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", a.ID, err)
		}
	}
	for _, d := range fix.Destinations {
		err := stores.destinations.Insert(ctx, &domain.DestinationRule{
			ID:            d.ID,
			UserID:        userID,
			DestinationID: d.DestinationID,
			PriceMin:      d.PriceMin,
			PriceMax:      d.PriceMax,
			SupplyMin:     d.SupplyMin,
			SupplyMax:     d.SupplyMax,
		})
		if err != nil {
			return nil, fmt.Errorf("destination rule %d: %w", d.ID, err)
		}
	}
	err := stores.settings.Upsert(ctx, &domain.UserSettings{
		UserID:              userID,
		AutobuyEnabled:      fix.Settings.AutobuyEnabled,
		DeliveryToken:       fix.Settings.DeliveryToken,
		ForcedDestinationID: fix.Settings.ForcedDestinationID,
		ForcedFallbackOnly:  fix.Settings.ForcedFallbackOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("settings: %w", err)
	}
	return stores, nil
}

// dryRunPort serves fixture balances and accepts every send.
type dryRunPort struct{}

func (p *dryRunPort) FetchBalance(_ context.Context, account *domain.AccountSnapshot) (int64, error) {
	return account.Balance, nil
}

func (p *dryRunPort) Send(_ context.Context, op domain.PurchaseOperation, _ *domain.AccountSnapshot) error {
	fmt.Printf("  dry-run send: offer=%d dest=%d acc=%d price=%d\n",
		op.OfferID, op.DestinationID, op.AccountID, op.Price)
	return nil
}

func (p *dryRunPort) ResolveRecipientIDs(context.Context, []*domain.AccountSnapshot) ([]int64, error) {
	return nil, nil
}
