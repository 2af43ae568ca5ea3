package main

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"shop-scraper/config"
	"shop-scraper/models"
	"shop-scraper/router"
	"shop-scraper/scheduler"
	"shop-scraper/scraper"
	_ "shop-scraper/scraper/shopify"
	_ "shop-scraper/scraper/woocommerce"
	"shop-scraper/services"
	"shop-scraper/storage"
	"shop-scraper/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== Shop Scraping System starting ===")
	logger.Info("Config — stores: %d | products/site: %d | concurrency: %d | rate: %dms | top-k: %d",
		len(cfg.StoreURLs), cfg.ProductsPerSite, cfg.MaxConcurrency, cfg.RateLimitMs, cfg.TopK)

	csvWriter, err := storage.NewCSVWriter(cfg.CSVOutputPath)
	if err != nil {
		logger.Error("Failed to create CSV writer: %v", err)
		os.Exit(1)
	}
	defer csvWriter.Close()

	jsonWriter, err := storage.NewJSONWriter(cfg.JSONOutputPath)
	if err != nil {
		logger.Error("Failed to create JSON writer: %v", err)
		os.Exit(1)
	}

	store, err := storage.NewPostgresStore(cfg.DSN(), logger)
	if err != nil {
		logger.Error("Failed to connect to PostgreSQL: %v", err)
		logger.Error("Make sure Docker is running: docker compose up -d")
		os.Exit(1)
	}
	defer store.Close()

	agentOpts := scraper.Options{
		Category:    cfg.Category,
		Timeout:     time.Duration(cfg.RequestTimeoutS) * time.Second,
		MaxRetries:  cfg.MaxRetries,
		PoliteDelay: time.Duration(cfg.RateLimitMs) * time.Millisecond,
		Logger:      logger,
	}

	allProducts := scrapeStores(cfg, agentOpts, store, logger)
	if len(allProducts) == 0 {
		logger.Error("No products were scraped. Exiting.")
		os.Exit(1)
	}

	logger.Info("Scraped %d products — exporting...", len(allProducts))
	if err := csvWriter.WriteProducts(allProducts); err != nil {
		logger.Error("CSV export failed: %v", err)
	} else {
		logger.Info("Products exported to %s", cfg.CSVOutputPath)
	}
	if err := jsonWriter.WriteProducts(allProducts); err != nil {
		logger.Error("JSON export failed: %v", err)
	} else {
		logger.Info("Products exported to %s", cfg.JSONOutputPath)
	}

	engine := services.NewRankingEngine(logger, services.Weights{
		Availability: cfg.WeightAvailable,
		Inventory:    cfg.WeightInventory,
		Image:        cfg.WeightImage,
		Price:        cfg.WeightPrice,
	})
	analysis := engine.TopK(allProducts, cfg.TopK, cfg.MinPrice, cfg.Category)
	if analysis.Empty() {
		logger.Warn("Ranking produced no products for the current filters")
	} else if err := store.SaveAnalysis(analysis); err != nil {
		logger.Error("Failed to save analysis: %v", err)
	} else {
		logger.Info("Analysis #%d saved (%d ranked products)", analysis.ID, len(analysis.Products))
	}
	engine.PrintReport(analysis)
	enrichAnalysis(analysis, services.NoopEnricher{}, logger)

	host := buildRouterHost(cfg, agentOpts, store, logger)
	analyzer := router.NewAnalyzerClient(host, "analyzer")
	if resp := analyzer.ScrapeStatus(); resp.Status == router.StatusSuccess {
		logger.Info("Router online — %v scrape runs on record", resp.Data["total_runs"])
	}

	if cfg.SurveillanceHours > 0 {
		runSurveillance(cfg, agentOpts, store, logger)
	}

	fmt.Printf("  Done. Exports → %s, %s | Products → PostgreSQL\n\n",
		cfg.CSVOutputPath, cfg.JSONOutputPath)
}

// scrapeStores runs one scrape pass per configured store, concurrently when
// more than one store is configured, and persists everything it finds.
func scrapeStores(cfg *config.Config, opts scraper.Options, store storage.ProductStore, logger *utils.Logger) []*models.Product {
	var (
		mu  sync.Mutex
		all []*models.Product
	)

	runOne := func(siteURL string) {
		products := scrapeAndPersist(siteURL, cfg, opts, store, logger)
		mu.Lock()
		all = append(all, products...)
		mu.Unlock()
	}

	if len(cfg.StoreURLs) > 1 {
		pool := utils.NewWorkerPool(cfg.MaxConcurrency, cfg.RateLimitMs)
		for _, siteURL := range cfg.StoreURLs {
			siteURL := siteURL
			pool.Submit(func() { runOne(siteURL) })
		}
		pool.Wait()
	} else {
		for _, siteURL := range cfg.StoreURLs {
			runOne(siteURL)
		}
	}
	return all
}

// scrapeAndPersist performs the full pass for one store: detect, scrape,
// upsert, log. Failures are logged and yield an empty slice, never a crash.
func scrapeAndPersist(siteURL string, cfg *config.Config, opts scraper.Options, store storage.ProductStore, logger *utils.Logger) []*models.Product {
	start := time.Now()

	agent, err := scraper.New(siteURL, cfg.PlatformHint, opts)
	if err != nil {
		logger.Error("Platform detection failed for %s: %v", siteURL, err)
		return nil
	}
	logger.Info("%s detected as %s", siteURL, agent.Platform())

	products, err := agent.ScrapeProducts(cfg.ProductsPerSite)
	if err != nil {
		logger.Error("Scrape of %s failed: %v", siteURL, err)
		return nil
	}

	storeRow, err := store.GetOrCreateStore(storeNameOf(products), siteURL, storeDomainOf(products))
	if err != nil {
		logger.Error("Store lookup for %s failed: %v", siteURL, err)
		return products
	}

	persisted, changed := 0, 0
	for _, p := range products {
		p.StoreID = storeRow.ID
		changes, err := store.UpsertProduct(p)
		if err != nil {
			logger.Warn("Upsert of %q failed: %v", p.Title, err)
			continue
		}
		persisted++
		changed += len(changes)
	}

	status := "success"
	errMsg := ""
	if persisted < len(products) {
		status = "partial_success"
		errMsg = fmt.Sprintf("%d of %d products failed to persist", len(products)-persisted, len(products))
		if persisted == 0 {
			status = "failure"
		}
	}
	if err := store.LogScrape(&models.ScrapeLog{
		StoreID:      storeRow.ID,
		ProductCount: persisted,
		Status:       status,
		ErrorMessage: errMsg,
		Duration:     time.Since(start),
	}); err != nil {
		logger.Warn("Scrape log for %s failed: %v", siteURL, err)
	}

	perf := agent.Stats()
	logger.Info("%s: %d products (%d persisted, %d field changes) — %d requests, %.1f%% success",
		siteURL, len(products), persisted, changed, perf.TotalRequests, perf.SuccessRate)
	return products
}

// buildRouterHost wires the in-process request router: scraping and database
// servers behind a permission table, plus the analyzer client.
func buildRouterHost(cfg *config.Config, opts scraper.Options, store storage.ProductStore, logger *utils.Logger) *router.Host {
	permissions := map[string][]string{
		"analyzer": {"scrape_store", "batch_scrape", "get_status", "query_data", "get_schema"},
		"monitor":  {"scrape_store", "get_status"},
		"admin":    {"scrape_store", "batch_scrape", "get_status", "query_data", "get_schema", "modify_data"},
	}

	host := router.NewHost(logger)
	host.RegisterServer(router.NewScrapingServer(
		permissions, router.DefaultScrapeFunc(opts), cfg.ProductsPerSite, logger))
	host.RegisterServer(router.NewDatabaseServer(permissions, store, logger))
	return host
}

// runSurveillance blocks, re-scraping every configured store on the
// surveillance interval until interrupted.
func runSurveillance(cfg *config.Config, opts scraper.Options, store storage.ProductStore, logger *utils.Logger) {
	scrape := func(siteURL string) (*models.ScrapeResult, error) {
		start := time.Now()
		agent, err := scraper.New(siteURL, cfg.PlatformHint, opts)
		if err != nil {
			return nil, err
		}
		products, err := agent.ScrapeProducts(cfg.ProductsPerSite)
		if err != nil {
			return nil, err
		}
		return &models.ScrapeResult{
			SiteURL:       siteURL,
			Platform:      agent.Platform(),
			Success:       true,
			Products:      products,
			ProductCount:  len(products),
			ExecutionTime: time.Since(start),
			Performance:   agent.Stats(),
		}, nil
	}

	interval := time.Duration(cfg.SurveillanceHours) * time.Hour
	monitor := scheduler.NewMonitor(store, scrape, interval, logger)
	for _, siteURL := range cfg.StoreURLs {
		monitor.Watch(siteURL)
	}
	monitor.Start()
	defer monitor.Stop()

	logger.Info("Surveillance active: %d stores every %s (Ctrl-C to stop)",
		len(cfg.StoreURLs), monitor.Interval())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("Surveillance stopped")
}

// enrichAnalysis runs the configured enricher over the ranked products and
// logs whatever insight text comes back. The default enricher is a no-op.
func enrichAnalysis(analysis *models.AnalysisResult, enricher services.Enricher, logger *utils.Logger) {
	for _, rp := range analysis.Products {
		insight, err := enricher.Enrich(rp.Product)
		if err != nil {
			logger.Warn("Enrichment of %q failed: %v", rp.Title, err)
			continue
		}
		if insight != "" {
			logger.Info("Insight for %q: %s", rp.Title, insight)
		}
	}
}

func storeNameOf(products []*models.Product) string {
	for _, p := range products {
		if p.StoreName != "" {
			return p.StoreName
		}
	}
	return ""
}

func storeDomainOf(products []*models.Product) string {
	for _, p := range products {
		if p.StoreDomain != "" {
			return p.StoreDomain
		}
	}
	return ""
}
