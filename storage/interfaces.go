package storage

import (
	"shop-scraper/models"
)

// ProductStore is the persistence gateway. The Postgres implementation is the
// real one; tests substitute in-memory fakes.
type ProductStore interface {
	// GetOrCreateStore resolves a store row by URL, creating it on first
	// sight, and returns it with its database id filled in.
	GetOrCreateStore(name, url, domain string) (*models.Store, error)

	// UpsertProduct inserts the product or, when a prior version exists,
	// updates it and returns the field-level changes between the two
	// versions. The product's ID and StoreID are filled in on return.
	UpsertProduct(p *models.Product) ([]models.FieldChange, error)

	// LogScrape records the outcome of one scrape pass.
	LogScrape(log *models.ScrapeLog) error

	// SaveAnalysis persists a Top-K snapshot with its ranked products.
	SaveAnalysis(result *models.AnalysisResult) error

	// LoadAnalysis returns the most recent saved analysis, or nil when none
	// exists.
	LoadAnalysis() (*models.AnalysisResult, error)

	// FetchProducts returns up to limit stored products, most recently
	// scraped first. A limit <= 0 means no cap.
	FetchProducts(limit int) ([]*models.Product, error)

	// Schema describes the stored tables and their columns.
	Schema() map[string][]string

	Close() error
}

// ProductWriter exports a product batch to some sink (CSV file, JSON file).
type ProductWriter interface {
	WriteProducts(products []*models.Product) error
}
