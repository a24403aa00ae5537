package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/amazon-price-tracker/internal/app"
	"github.com/maltedev/amazon-price-tracker/internal/config"
	"github.com/maltedev/amazon-price-tracker/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}

	var (
		title    = flag.String("name", cfg.Search.Title, "Report title, also the output file name")
		term     = flag.String("term", cfg.Search.SearchTerm, "Search term typed into the storefront")
		minPrice = flag.Float64("min", cfg.Search.MinPrice, "Minimum price filter")
		maxPrice = flag.Float64("max", cfg.Search.MaxPrice, "Maximum price filter")
		currency = flag.String("currency", cfg.Search.Currency, "Currency symbol prices are shown with")
		baseURL  = flag.String("base-url", cfg.Search.BaseURL, "Storefront base URL")
		outDir   = flag.String("out", cfg.Output.Directory, "Directory reports are written to")
		engine   = flag.String("engine", cfg.Browser.Engine, "Browser engine: playwright or static")
		headless = flag.Bool("headless", cfg.Browser.Headless, "Run browser in headless mode")
	)
	flag.Parse()

	cfg.Search.Title = *title
	cfg.Search.SearchTerm = *term
	cfg.Search.MinPrice = *minPrice
	cfg.Search.MaxPrice = *maxPrice
	cfg.Search.Currency = *currency
	cfg.Search.BaseURL = *baseURL
	cfg.Output.Directory = *outDir
	cfg.Browser.Engine = *engine
	cfg.Browser.Headless = *headless

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 1
	}
	if err := cfg.ValidateSearch(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid search: %v\n", err)
		flag.Usage()
		return 1
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting price tracker", "title", cfg.Search.Title, "term", cfg.Search.SearchTerm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutdown signal received")
		cancel()
	}()

	services, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		return 1
	}
	defer services.Close()

	result, err := services.Runner.Run(ctx, app.Params{
		Title:      cfg.Search.Title,
		SearchTerm: cfg.Search.SearchTerm,
		Filter:     app.FilterFromSearch(cfg.Search),
	})
	if err != nil {
		logger.Error("Run failed", "error", err)
		return 1
	}

	logger.Info("Report written",
		"run_id", result.RunID,
		"path", result.Path,
		"products", len(result.Report.Products))

	if best := result.Report.BestItem; best != nil {
		fmt.Printf("Best item: %s (%s%.2f) %s\n", best.Title, result.Report.Currency, best.Price, best.URL)
	} else {
		fmt.Println("No products matched the search")
	}

	return 0
}
