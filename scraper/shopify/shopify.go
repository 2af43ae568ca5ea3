package shopify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"shop-scraper/fetch"
	"shop-scraper/models"
	"shop-scraper/scraper"
	"shop-scraper/services"
	"shop-scraper/utils"
)

const (
	platform = "shopify"
	perPage  = 250 // Shopify max page size
)

// Markers that identify a Shopify storefront in rendered HTML.
var htmlIndicators = []string{
	"cdn.shopify.com",
	"shopify.com/s/",
	"shopify.theme",
	"/cdn/shop/products/",
	"myshopify.com",
	"shopifycdn.com",
	"shopify.analytics",
	"window.shopify",
}

var shopDomainRegexp = regexp.MustCompile(`Shopify\.shop\s*=\s*["']([^"']+)["']`)

func init() {
	scraper.Register(platform, func(siteURL string, opts scraper.Options) scraper.Agent {
		return New(siteURL, opts)
	})
}

// Agent scrapes Shopify storefronts through the public /products.json
// endpoint, with HTML fallbacks for single-product detail extraction.
type Agent struct {
	siteURL    string
	category   string
	client     *fetch.Client
	logger     *utils.Logger
	normalizer *services.Normalizer
	seen       *utils.SeenSet

	storeName   string
	storeDomain string
}

// New creates a ready-to-use Shopify Agent.
func New(siteURL string, opts scraper.Options) *Agent {
	opts = opts.WithDefaults()
	logger := opts.Logger.WithPrefix(platform)
	client := fetch.NewClient(opts.Timeout, opts.MaxRetries, logger)
	client.SetPoliteDelay(opts.PoliteDelay)
	return &Agent{
		siteURL:    strings.TrimRight(siteURL, "/"),
		category:   opts.Category,
		client:     client,
		logger:     logger,
		normalizer: services.NewNormalizer(logger),
		seen:       utils.NewSeenSet(),
	}
}

func (a *Agent) Platform() string { return platform }

// Stats returns the cumulative HTTP counters for the performance summary.
func (a *Agent) Stats() models.PerformanceStats { return a.client.Stats() }

// DetectPlatform checks, in order: Shopify asset markers in the homepage
// HTML, the Server response header, then the well-known JSON endpoints.
// The first positive signal wins.
func (a *Agent) DetectPlatform() bool {
	result, err := a.client.Get(a.siteURL)
	if err != nil {
		a.logger.Warn("homepage fetch failed for %s: %v", a.siteURL, err)
		return false
	}

	content := strings.ToLower(string(result.Body))
	for _, indicator := range htmlIndicators {
		if strings.Contains(content, indicator) {
			a.logger.Info("detected Shopify via marker %q", indicator)
			a.extractStoreInfo(result.Body)
			return true
		}
	}

	if strings.Contains(strings.ToLower(result.Header.Get("Server")), "shopify") {
		a.logger.Info("detected Shopify via Server header")
		return true
	}

	return a.probeAPI()
}

// probeAPI tests the well-known Shopify JSON endpoints for the expected
// payload shape.
func (a *Agent) probeAPI() bool {
	endpoints := []string{"/products.json", "/collections.json"}
	for _, endpoint := range endpoints {
		var payload map[string]json.RawMessage
		if err := a.client.GetJSON(a.siteURL+endpoint, &payload); err != nil {
			continue
		}
		if _, ok := payload["products"]; ok {
			a.logger.Info("detected Shopify via %s", endpoint)
			return true
		}
		if _, ok := payload["collections"]; ok {
			a.logger.Info("detected Shopify via %s", endpoint)
			return true
		}
	}
	return false
}

func (a *Agent) extractStoreInfo(html []byte) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return
	}
	a.storeName = strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if match := shopDomainRegexp.FindStringSubmatch(s.Text()); match != nil {
			a.storeDomain = match[1]
			return false
		}
		return true
	})
}

type productsPayload struct {
	Products []apiProduct `json:"products"`
}

type apiProduct struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	Handle      string           `json:"handle"`
	BodyHTML    string           `json:"body_html"`
	ProductType string           `json:"product_type"`
	Vendor      string           `json:"vendor"`
	Tags        scraper.FlexTags `json:"tags"`
	CreatedAt   string           `json:"created_at"`
	UpdatedAt   string           `json:"updated_at"`
	PublishedAt string           `json:"published_at"`
	Variants    []apiVariant     `json:"variants"`
	Images      []apiImage       `json:"images"`
}

type apiVariant struct {
	ID                int64             `json:"id"`
	Title             string            `json:"title"`
	Price             scraper.FlexPrice `json:"price"`
	InventoryQuantity int               `json:"inventory_quantity"`
	Available         bool              `json:"available"`
}

type apiImage struct {
	Src string `json:"src"`
}

// ScrapeProducts paginates /products.json in strictly increasing page order.
// Pagination stops when limit products are collected, a page comes back
// empty, or a page fetch exhausts its retries. Malformed listings are
// skipped, never fatal.
func (a *Agent) ScrapeProducts(limit int) ([]*models.Product, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("shopify: limit must be positive, got %d", limit)
	}

	a.logger.Info("starting product scrape of %s (limit %d)", a.siteURL, limit)
	products := make([]*models.Product, 0, limit)

	for page := 1; len(products) < limit; page++ {
		pageURL := fmt.Sprintf("%s/products.json?limit=%d&page=%d", a.siteURL, perPage, page)

		var payload productsPayload
		if err := a.client.GetJSON(pageURL, &payload); err != nil {
			a.logger.Error("page %d failed, stopping pagination: %v", page, err)
			break
		}
		if len(payload.Products) == 0 {
			a.logger.Info("page %d returned no products, ending pagination", page)
			break
		}

		a.logger.Info("page %d: %d products", page, len(payload.Products))

		for i := range payload.Products {
			p := a.convert(&payload.Products[i])
			a.normalizer.Normalize(p)
			if !a.normalizer.Valid(p) {
				continue
			}
			if a.category != "" && p.ProductType != a.category {
				continue
			}
			if !a.seen.Add(platform + ":" + p.ShopifyID) {
				continue
			}
			products = append(products, p)
			if len(products) >= limit {
				break
			}
		}
	}

	a.logger.Info("scrape of %s complete: %d products", a.siteURL, len(products))
	return products, nil
}

// convert folds the variant sub-records into the canonical fields: minimum
// variant price becomes the price, maximum becomes max_price, inventory is
// summed, and the product is available when any variant is.
func (a *Agent) convert(src *apiProduct) *models.Product {
	p := &models.Product{
		Platform:     platform,
		ShopifyID:    fmt.Sprintf("%d", src.ID),
		Title:        src.Title,
		Handle:       src.Handle,
		URL:          fmt.Sprintf("%s/products/%s", a.siteURL, src.Handle),
		Description:  src.BodyHTML,
		Currency:     "USD",
		ProductType:  src.ProductType,
		Vendor:       src.Vendor,
		Tags:         src.Tags,
		ImageCount:   len(src.Images),
		VariantCount: len(src.Variants),
		CreatedAt:    scraper.ParseTime(src.CreatedAt),
		UpdatedAt:    scraper.ParseTime(src.UpdatedAt),
		PublishedAt:  scraper.ParseTime(src.PublishedAt),
		ScrapedAt:    time.Now(),
		StoreName:    a.storeName,
		StoreDomain:  a.storeDomain,
	}
	if len(src.Images) > 0 {
		p.ImageURL = src.Images[0].Src
	}

	minPrice, maxPrice := 0.0, 0.0
	for i, v := range src.Variants {
		price := float64(v.Price)
		if i == 0 || price < minPrice {
			minPrice = price
		}
		if price > maxPrice {
			maxPrice = price
		}
		p.TotalInventory += v.InventoryQuantity
		if v.Available {
			p.Available = true
		}
	}
	p.Price = minPrice
	if maxPrice > minPrice {
		p.MaxPrice = maxPrice
	}
	return p
}

// embeddedProduct is the payload of a theme's data-product-json script tag.
type embeddedProduct struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Price       scraper.FlexPrice `json:"price"` // in cents
	Available   bool              `json:"available"`
	Vendor      string            `json:"vendor"`
	Type        string            `json:"type"`
	Tags        scraper.FlexTags  `json:"tags"`
}

// jsonLD is the subset of a JSON-LD Product node the extractor reads.
type jsonLD struct {
	Type        string `json:"@type"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Brand       struct {
		Name string `json:"name"`
	} `json:"brand"`
	Offers struct {
		Price        scraper.FlexPrice `json:"price"`
		Availability string            `json:"availability"`
	} `json:"offers"`
}

// ExtractProductDetails fetches a single product page and merges fields from
// up to three sources in priority order: the theme's embedded product JSON,
// JSON-LD structured data, then CSS-selector fallbacks. A lower-priority
// source only fills fields the higher-priority sources left empty.
func (a *Agent) ExtractProductDetails(productURL string) (*models.Product, error) {
	result, err := a.client.Get(productURL)
	if err != nil {
		return nil, fmt.Errorf("shopify: fetch product page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(result.Body))
	if err != nil {
		return nil, fmt.Errorf("shopify: parse product page: %w", err)
	}

	p := &models.Product{
		Platform:  platform,
		URL:       productURL,
		Currency:  "USD",
		ScrapedAt: time.Now(),
	}

	// Source 1: embedded product JSON.
	if raw := doc.Find(`script[type="application/json"][data-product-json]`).First().Text(); raw != "" {
		var embedded embeddedProduct
		if err := json.Unmarshal([]byte(raw), &embedded); err == nil {
			if embedded.ID != 0 {
				p.ShopifyID = fmt.Sprintf("%d", embedded.ID)
			}
			p.Title = embedded.Title
			p.Description = embedded.Description
			p.Price = float64(embedded.Price) / 100 // theme JSON carries cents
			p.Available = embedded.Available
			p.Vendor = embedded.Vendor
			p.ProductType = embedded.Type
			p.Tags = embedded.Tags
		}
	}

	// Source 2: JSON-LD, filling only what source 1 left empty.
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		ld, ok := decodeProductLD(s.Text())
		if !ok {
			return true
		}
		if p.Title == "" {
			p.Title = ld.Name
		}
		if p.Description == "" {
			p.Description = ld.Description
		}
		if p.Price == 0 {
			p.Price = float64(ld.Offers.Price)
		}
		if p.Vendor == "" {
			p.Vendor = ld.Brand.Name
		}
		if !p.Available && strings.Contains(ld.Offers.Availability, "InStock") {
			p.Available = true
		}
		return false
	})

	// Source 3: CSS-selector fallbacks.
	if p.Title == "" {
		p.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if p.Description == "" {
		p.Description, _ = doc.Find(`meta[name="description"]`).First().Attr("content")
	}
	if p.Price == 0 {
		for _, selector := range []string{
			".product-price", ".price", "[data-product-price]",
			".product__price", ".product-single__price",
		} {
			if text := strings.TrimSpace(doc.Find(selector).First().Text()); text != "" {
				if price := services.ParsePrice(text); price > 0 {
					p.Price = price
					break
				}
			}
		}
	}

	a.normalizer.Normalize(p)
	return p, nil
}

// decodeProductLD parses a JSON-LD block, accepting both a single node and a
// node list, and returns the first Product node.
func decodeProductLD(raw string) (*jsonLD, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	if strings.HasPrefix(raw, "[") {
		var nodes []jsonLD
		if err := json.Unmarshal([]byte(raw), &nodes); err != nil {
			return nil, false
		}
		for i := range nodes {
			if nodes[i].Type == "Product" {
				return &nodes[i], true
			}
		}
		return nil, false
	}
	var node jsonLD
	if err := json.Unmarshal([]byte(raw), &node); err != nil || node.Type != "Product" {
		return nil, false
	}
	return &node, true
}
