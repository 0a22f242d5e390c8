package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"inventory-agent/internal/app"
	"inventory-agent/internal/books"
	"inventory-agent/internal/config"
	"inventory-agent/internal/db"
	"inventory-agent/internal/engine"
	"inventory-agent/internal/extract"
	"inventory-agent/internal/mail"
	"inventory-agent/internal/notify"
	"inventory-agent/internal/store"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(logger)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Get("LOG_LEVEL")); err == nil {
		logger.SetLevel(level)
	}

	ctx := context.Background()

	var ledger store.Store
	if cfg.GetBool("ENABLE_DRY_RUN") {
		logger.Warn("dry run enabled, using in-memory ledger store")
		ledger = store.NewMemoryStore()
	} else {
		pool, err := db.NewPool(ctx, cfg.Get("DATABASE_URL"))
		if err != nil {
			log.Fatalf("Unable to connect to database: %v", err)
		}
		defer pool.Close()
		ledger = store.NewLedgerStore(pool)
	}
	backend := books.NewClient(books.Config{
		ClientID:           cfg.Get("BOOKS_CLIENT_ID"),
		ClientSecret:       cfg.Get("BOOKS_CLIENT_SECRET"),
		RefreshToken:       cfg.Get("BOOKS_REFRESH_TOKEN"),
		OrganizationID:     cfg.Get("BOOKS_ORGANIZATION_ID"),
		Region:             cfg.Get("BOOKS_API_REGION"),
		InventoryAccountID: cfg.Get("BOOKS_INVENTORY_ACCOUNT"),
		COGSAccountID:      cfg.Get("BOOKS_COGS_ACCOUNT"),
		SalesAccountID:     cfg.Get("BOOKS_SALES_ACCOUNT"),
	}, logger)

	workflow := engine.NewWorkflow(backend, ledger, engine.Options{
		AutoReceive:   cfg.GetBool("AUTO_RECEIVE"),
		AutoBill:      cfg.GetBool("AUTO_BILL"),
		MarkBillsPaid: cfg.GetBool("MARK_BILLS_PAID"),
		AutoInvoice:   cfg.GetBool("AUTO_INVOICE"),
		AutoShip:      cfg.GetBool("AUTO_SHIP"),
	}, logger)
	reviews := engine.NewReviewService(ledger, logger)

	mailDir := cfg.Get("MAIL_DIR")
	if mailDir == "" {
		mailDir = "inbox"
	}

	application := app.New(app.Deps{
		Log:       logger,
		Source:    mail.NewDirSource(mailDir),
		Extractor: extract.NewOpenAIExtractor(cfg.Get("OPENAI_API_KEY"), cfg.Get("OPENAI_MODEL"), cfg.GetFloat("OPENAI_TEMPERATURE")),
		Ledger:    ledger,
		Workflow:  workflow,
		Reviews:   reviews,
		Backend:   backend,
		Notifier:  notify.NewWebhookNotifier(cfg.Get("WEBHOOK_URL"), logger),
		Threshold: cfg.GetFloat("CONFIDENCE_THRESHOLD"),
		BatchSize: cfg.GetInt("EMAIL_BATCH_SIZE"),
	})

	command := "run"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	switch command {
	case "run":
		runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := application.Run(runCtx, cfg.GetDuration("POLL_INTERVAL")); err != nil {
			log.Fatalf("Agent stopped with error: %v", err)
		}

	case "process":
		if err := application.RunOnce(ctx); err != nil {
			log.Fatalf("Processing failed: %v", err)
		}
		printStats(application.Stats())

	case "resolve":
		if len(os.Args) < 3 {
			log.Fatal("Usage: agent resolve <record-id>")
		}
		outcome, err := application.ResolveReview(ctx, os.Args[2])
		if err != nil {
			log.Fatalf("Resolve failed: %v", err)
		}
		fmt.Printf("Record %s: %s\n", os.Args[2], outcome)

	case "pending":
		printPending(ctx, reviews)

	case "stock":
		printStock(ctx, ledger)

	default:
		log.Fatalf("Unknown command: %s (expected run, process, resolve, pending, stock)", command)
	}
}

func printStats(s app.Stats) {
	fmt.Println("\n--- CYCLE RESULTS ---")
	fmt.Printf("Processed: %d\n", s.Processed)
	fmt.Printf("Posted:    %d\n", s.Posted)
	fmt.Printf("Review:    %d\n", s.Review)
	fmt.Printf("Failed:    %d\n", s.Failed)
	fmt.Printf("Deferred:  %d\n", s.Deferred)
	fmt.Printf("Skipped:   %d\n", s.Skipped)
}

func printPending(ctx context.Context, reviews *engine.ReviewService) {
	pending, err := reviews.List(ctx)
	if err != nil {
		log.Fatalf("Failed to list pending reviews: %v", err)
	}
	if len(pending) == 0 {
		fmt.Println("No transactions pending review.")
		return
	}
	fmt.Println("\n--- PENDING REVIEWS ---")
	fmt.Printf("%-38s %-10s %-16s %s\n", "RECORD", "KIND", "ORDER", "MISSING")
	fmt.Println(strings.Repeat("-", 90))
	for _, pr := range pending {
		fmt.Printf("%-38s %-10s %-16s %s\n", pr.RecordID, pr.Kind, pr.OrderNumber, strings.Join(pr.MissingFields, ", "))
	}
}

func printStock(ctx context.Context, ledger store.Store) {
	items, err := ledger.ListItems(ctx)
	if err != nil {
		log.Fatalf("Failed to list inventory: %v", err)
	}
	fmt.Println("\n--- INVENTORY RECORDS ---")
	fmt.Printf("%-14s %-36s %8s %10s  %s\n", "SKU", "NAME", "ON HAND", "COST", "LAST REF")
	fmt.Println(strings.Repeat("-", 90))
	for _, it := range items {
		name := it.Name
		if len(name) > 36 {
			name = name[:33] + "..."
		}
		fmt.Printf("%-14s %-36s %8d %10s  %s\n", it.SKU, name, it.QuantityOnHand, it.CostRate.StringFixed(2), it.LastTransactionRef)
	}
}
