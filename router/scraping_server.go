package router

import (
	"fmt"
	"sync"
	"time"

	"shop-scraper/models"
	"shop-scraper/scraper"
	"shop-scraper/utils"
)

const historyLimit = 100

// ScrapeFunc runs one scrape against a site. The default implementation
// builds a platform agent; tests substitute fakes.
type ScrapeFunc func(siteURL, platformHint string, limit int) (*models.ScrapeResult, error)

// DefaultScrapeFunc scrapes through the platform agent registry.
func DefaultScrapeFunc(opts scraper.Options) ScrapeFunc {
	return func(siteURL, platformHint string, limit int) (*models.ScrapeResult, error) {
		start := time.Now()
		agent, err := scraper.New(siteURL, platformHint, opts)
		if err != nil {
			return nil, err
		}
		products, err := agent.ScrapeProducts(limit)
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
}

type historyEntry struct {
	SiteURL      string
	Platform     string
	ProductCount int
	Success      bool
	Error        string
	At           time.Time
}

// ScrapingServer exposes scraping over the request router: scrape_store,
// batch_scrape and get_status. It keeps a bounded in-memory history of its
// last runs.
type ScrapingServer struct {
	*PermissionServer

	scrape       ScrapeFunc
	defaultLimit int

	mu      sync.Mutex
	history []historyEntry
}

// NewScrapingServer creates a ScrapingServer with the given permission table.
func NewScrapingServer(permissions map[string][]string, scrape ScrapeFunc, defaultLimit int, logger *utils.Logger) *ScrapingServer {
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	s := &ScrapingServer{
		PermissionServer: NewPermissionServer("scraping-server", permissions, logger),
		scrape:           scrape,
		defaultLimit:     defaultLimit,
	}
	s.RegisterAction("scrape_store", s.scrapeStore)
	s.RegisterAction("batch_scrape", s.batchScrape)
	s.RegisterAction("get_status", s.getStatus)
	return s
}

func (s *ScrapingServer) scrapeStore(req *Request) (map[string]any, error) {
	siteURL, _ := req.Parameters["url"].(string)
	if siteURL == "" {
		return nil, fmt.Errorf("scrape_store requires a url parameter")
	}
	hint, _ := req.Parameters["platform"].(string)
	limit := intParam(req.Parameters, "limit", s.defaultLimit)

	result, err := s.runScrape(siteURL, hint, limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"url":           result.SiteURL,
		"platform":      result.Platform,
		"product_count": result.ProductCount,
		"products":      result.Products,
	}, nil
}

func (s *ScrapingServer) batchScrape(req *Request) (map[string]any, error) {
	rawURLs, ok := req.Parameters["urls"].([]string)
	if !ok {
		if anyURLs, isAny := req.Parameters["urls"].([]any); isAny {
			for _, u := range anyURLs {
				if str, isStr := u.(string); isStr {
					rawURLs = append(rawURLs, str)
				}
			}
		}
	}
	if len(rawURLs) == 0 {
		return nil, fmt.Errorf("batch_scrape requires a urls parameter")
	}
	hint, _ := req.Parameters["platform"].(string)
	limit := intParam(req.Parameters, "limit", s.defaultLimit)

	results := make([]map[string]any, 0, len(rawURLs))
	for _, siteURL := range rawURLs {
		entry := map[string]any{"url": siteURL}
		if result, err := s.runScrape(siteURL, hint, limit); err != nil {
			entry["success"] = false
			entry["error"] = err.Error()
		} else {
			entry["success"] = true
			entry["platform"] = result.Platform
			entry["product_count"] = result.ProductCount
		}
		results = append(results, entry)
	}
	return map[string]any{"results": results, "total": len(results)}, nil
}

func (s *ScrapingServer) getStatus(req *Request) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs := make([]map[string]any, 0, len(s.history))
	succeeded := 0
	for _, e := range s.history {
		if e.Success {
			succeeded++
		}
		runs = append(runs, map[string]any{
			"url":           e.SiteURL,
			"platform":      e.Platform,
			"product_count": e.ProductCount,
			"success":       e.Success,
			"error":         e.Error,
			"at":            e.At,
		})
	}
	return map[string]any{
		"total_runs":      len(s.history),
		"successful_runs": succeeded,
		"history":         runs,
	}, nil
}

// runScrape executes one scrape and records it in the bounded history,
// success or failure alike.
func (s *ScrapingServer) runScrape(siteURL, hint string, limit int) (*models.ScrapeResult, error) {
	result, err := s.scrape(siteURL, hint, limit)

	entry := historyEntry{SiteURL: siteURL, At: time.Now()}
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.Platform = result.Platform
		entry.ProductCount = result.ProductCount
		entry.Success = true
	}

	s.mu.Lock()
	s.history = append(s.history, entry)
	if len(s.history) > historyLimit {
		s.history = s.history[len(s.history)-historyLimit:]
	}
	s.mu.Unlock()

	return result, err
}

func intParam(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}
