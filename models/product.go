package models

import "time"

// Product is the normalized, platform-agnostic record produced by an agent.
// The same shape comes out of the Shopify and WooCommerce scrapers so the
// ranking engine and storage layer never need to know the source platform.
type Product struct {
	ID       int64  `json:"id,omitempty"`       // database id, 0 until stored
	StoreID  int64  `json:"store_id,omitempty"` // owning store, 0 until stored
	Platform string `json:"platform"`           // "shopify" | "woocommerce"

	// Platform-assigned identifiers. At most one is set; each must be
	// globally unique when present.
	ShopifyID     string `json:"shopify_id,omitempty"`
	WooCommerceID string `json:"woocommerce_id,omitempty"`

	Title       string `json:"title"`
	Handle      string `json:"handle,omitempty"`
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`

	// Price is the minimum variant price, MaxPrice the maximum. MaxPrice is
	// zero when the product has a single price point.
	Price          float64 `json:"price"`
	MaxPrice       float64 `json:"max_price,omitempty"`
	Currency       string  `json:"currency"`
	Available      bool    `json:"available"`
	TotalInventory int     `json:"total_inventory"`

	ProductType string   `json:"product_type,omitempty"`
	Vendor      string   `json:"vendor,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Categories  []string `json:"categories,omitempty"`

	ImageURL     string `json:"image_url,omitempty"`
	ImageCount   int    `json:"image_count"`
	VariantCount int    `json:"variant_count"`

	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	ScrapedAt   time.Time  `json:"scraped_at"`

	StoreName   string `json:"store_name,omitempty"`
	StoreDomain string `json:"store_domain,omitempty"`
}

// HasImage reports whether the product carries at least one image.
func (p *Product) HasImage() bool {
	return p.ImageURL != ""
}

// RankedProduct is a Product plus the sub-scores computed by the ranking
// engine. It is never mutated after a ranking pass.
type RankedProduct struct {
	*Product

	PriceScore        float64
	InventoryScore    float64
	AvailabilityScore float64
	ImageScore        float64
	FinalScore        float64
	RankPosition      int // 1-based
}

// AnalysisStats holds aggregate statistics over a Top-K result set.
type AnalysisStats struct {
	TotalAnalyzed    int
	TopKCount        int
	AvgPrice         float64
	AvgScore         float64
	AvailabilityRate float64 // percent of the truncated set that is available
	TopCategories    []CategoryCount
	MinPrice         float64
	MaxPrice         float64
}

// CategoryCount pairs a product_type value with its frequency.
type CategoryCount struct {
	Name  string
	Count int
}

// AnalysisResult is an immutable Top-K snapshot.
type AnalysisResult struct {
	ID             int64 // database id once saved
	Name           string
	K              int
	MinPrice       float64
	CategoryFilter string
	Products       []*RankedProduct
	Stats          AnalysisStats
	CreatedAt      time.Time
}

// Empty reports whether the analysis produced no products (the explicit
// "no data" outcome, which is not an error).
func (a *AnalysisResult) Empty() bool {
	return len(a.Products) == 0
}

// ScrapeResult is the value returned for every scrape operation. Callers are
// never left to interpret a raised fault for routine fetch/parse problems.
type ScrapeResult struct {
	SiteURL       string
	Platform      string
	Success       bool
	Products      []*Product
	ProductCount  int
	Error         string
	ExecutionTime time.Duration
	Performance   PerformanceStats
}

// PerformanceStats summarizes an agent's HTTP activity.
type PerformanceStats struct {
	TotalRequests      int
	SuccessfulRequests int
	SuccessRate        float64 // percent
	Elapsed            time.Duration
	RequestsPerSecond  float64
}

// Store identifies a scraped shop.
type Store struct {
	ID                 int64
	Name               string
	URL                string
	Domain             string
	ActiveSurveillance bool
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// ScrapeLog records one scrape pass against a store.
type ScrapeLog struct {
	ID           int64
	StoreID      int64
	ScrapedAt    time.Time
	ProductCount int
	Status       string // "success", "failure", "partial_success"
	ErrorMessage string
	Duration     time.Duration
}

// FieldChange records a single field-level difference detected during an
// upsert of an already-stored product.
type FieldChange struct {
	Field    string
	OldValue string
	NewValue string
}
