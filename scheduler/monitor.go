package scheduler

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"shop-scraper/models"
	"shop-scraper/storage"
	"shop-scraper/utils"
)

// minInterval is the floor for the re-scrape period. Hammering stores more
// often than hourly is never acceptable.
const minInterval = time.Hour

// ScrapeFunc runs one scrape pass against a site and returns its result.
type ScrapeFunc func(siteURL string) (*models.ScrapeResult, error)

// Monitor periodically re-scrapes stores under surveillance and records each
// pass in the persistence gateway.
type Monitor struct {
	cron     *cron.Cron
	store    storage.ProductStore
	scrape   ScrapeFunc
	logger   *utils.Logger
	interval time.Duration

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// NewMonitor creates a Monitor that re-scrapes every interval. Intervals
// under one hour are clamped up to one hour.
func NewMonitor(store storage.ProductStore, scrape ScrapeFunc, interval time.Duration, logger *utils.Logger) *Monitor {
	if interval < minInterval {
		interval = minInterval
	}
	log := logger.WithPrefix("monitor")
	return &Monitor{
		// SkipIfStillRunning keeps a slow scrape from overlapping the next tick.
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
		store:    store,
		scrape:   scrape,
		logger:   log,
		interval: interval,
		entries:  make(map[string]cron.EntryID),
	}
}

// Interval returns the effective (clamped) re-scrape period.
func (m *Monitor) Interval() time.Duration { return m.interval }

// Watch puts a store under surveillance. Watching an already-watched store
// is a no-op.
func (m *Monitor) Watch(siteURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, watching := m.entries[siteURL]; watching {
		return
	}
	id := m.cron.Schedule(cron.Every(m.interval), cron.FuncJob(func() {
		m.runOnce(siteURL)
	}))
	m.entries[siteURL] = id
	m.logger.Info("watching %s every %s", siteURL, m.interval)
}

// Unwatch removes a store from surveillance.
func (m *Monitor) Unwatch(siteURL string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, watching := m.entries[siteURL]; watching {
		m.cron.Remove(id)
		delete(m.entries, siteURL)
		m.logger.Info("stopped watching %s", siteURL)
	}
}

// Watching returns the URLs currently under surveillance.
func (m *Monitor) Watching() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	urls := make([]string, 0, len(m.entries))
	for u := range m.entries {
		urls = append(urls, u)
	}
	return urls
}

// Start begins the schedule. The first pass for each store runs one interval
// after Start, not immediately.
func (m *Monitor) Start() { m.cron.Start() }

// Stop halts the schedule, letting any in-flight pass finish.
func (m *Monitor) Stop() { m.cron.Stop() }

// runOnce performs a full surveillance pass for one store: scrape, upsert
// every product, then record the outcome.
func (m *Monitor) runOnce(siteURL string) {
	start := time.Now()
	m.logger.Info("surveillance pass for %s", siteURL)

	result, err := m.scrape(siteURL)
	if err != nil {
		m.logger.Error("surveillance scrape of %s failed: %v", siteURL, err)
		m.record(siteURL, 0, "failure", err.Error(), time.Since(start))
		return
	}

	storeRow, err := m.store.GetOrCreateStore(storeName(result), siteURL, "")
	if err != nil {
		m.logger.Error("surveillance store lookup for %s failed: %v", siteURL, err)
		m.record(siteURL, 0, "failure", err.Error(), time.Since(start))
		return
	}

	upserted, failed, changed := 0, 0, 0
	for _, p := range result.Products {
		p.StoreID = storeRow.ID
		changes, err := m.store.UpsertProduct(p)
		if err != nil {
			m.logger.Warn("upsert of %q failed: %v", p.Title, err)
			failed++
			continue
		}
		upserted++
		changed += len(changes)
	}

	status := "success"
	errMsg := ""
	switch {
	case failed > 0 && upserted > 0:
		status = "partial_success"
		errMsg = "some products failed to persist"
	case failed > 0:
		status = "failure"
		errMsg = "no products persisted"
	}

	m.logger.Info("surveillance pass for %s: %d upserted, %d failed, %d field changes",
		siteURL, upserted, failed, changed)
	m.record(siteURL, upserted, status, errMsg, time.Since(start))
}

func (m *Monitor) record(siteURL string, count int, status, errMsg string, duration time.Duration) {
	storeRow, err := m.store.GetOrCreateStore("", siteURL, "")
	if err != nil {
		m.logger.Error("cannot record surveillance log for %s: %v", siteURL, err)
		return
	}
	if err := m.store.LogScrape(&models.ScrapeLog{
		StoreID:      storeRow.ID,
		ProductCount: count,
		Status:       status,
		ErrorMessage: errMsg,
		Duration:     duration,
	}); err != nil {
		m.logger.Error("cannot record surveillance log for %s: %v", siteURL, err)
	}
}

func storeName(result *models.ScrapeResult) string {
	for _, p := range result.Products {
		if p.StoreName != "" {
			return p.StoreName
		}
	}
	return ""
}
