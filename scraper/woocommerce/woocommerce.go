package woocommerce

import (
	"bytes"
	"encoding/json"
	"fmt"
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
	platform = "woocommerce"
	perPage  = 100 // WooCommerce REST max page size
)

// Markers that identify a WooCommerce/WordPress storefront in rendered HTML.
var htmlIndicators = []string{
	"woocommerce",
	"wp-content/plugins/woocommerce",
	"wc-ajax",
	"wp-json/wc/",
	"add-to-cart",
}

func init() {
	scraper.Register(platform, func(siteURL string, opts scraper.Options) scraper.Agent {
		return New(siteURL, opts)
	})
}

// Agent scrapes WooCommerce stores through the wp-json/wc/v3 REST API,
// falling back to shop-page HTML when the API is closed.
type Agent struct {
	siteURL        string
	apiBase        string
	category       string
	consumerKey    string
	consumerSecret string
	client         *fetch.Client
	logger         *utils.Logger
	normalizer     *services.Normalizer
	seen           *utils.SeenSet

	apiAvailable bool
	storeName    string
}

// New creates a ready-to-use WooCommerce Agent.
func New(siteURL string, opts scraper.Options) *Agent {
	opts = opts.WithDefaults()
	logger := opts.Logger.WithPrefix(platform)
	client := fetch.NewClient(opts.Timeout, opts.MaxRetries, logger)
	client.SetPoliteDelay(opts.PoliteDelay)
	site := strings.TrimRight(siteURL, "/")
	return &Agent{
		siteURL:        site,
		apiBase:        site + "/wp-json/wc/v3/",
		category:       opts.Category,
		consumerKey:    opts.ConsumerKey,
		consumerSecret: opts.ConsumerSecret,
		client:         client,
		logger:         logger,
		normalizer:     services.NewNormalizer(logger),
		seen:           utils.NewSeenSet(),
	}
}

func (a *Agent) Platform() string { return platform }

// Stats returns the cumulative HTTP counters for the performance summary.
func (a *Agent) Stats() models.PerformanceStats { return a.client.Stats() }

// DetectPlatform first probes the REST API for a product array, then falls
// back to WordPress/WooCommerce markers in the homepage HTML. A site that
// only matches via HTML still counts: its API may simply be closed.
func (a *Agent) DetectPlatform() bool {
	var probe []json.RawMessage
	if err := a.client.GetJSON(a.productsURL(1, 1), &probe); err == nil {
		a.logger.Info("detected WooCommerce via REST API probe")
		a.apiAvailable = true
		return true
	}

	result, err := a.client.Get(a.siteURL)
	if err != nil {
		a.logger.Warn("homepage fetch failed for %s: %v", a.siteURL, err)
		return false
	}

	content := strings.ToLower(string(result.Body))
	for _, indicator := range htmlIndicators {
		if strings.Contains(content, indicator) {
			a.logger.Info("detected WooCommerce via marker %q", indicator)
			a.extractStoreInfo(result.Body)
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
}

func (a *Agent) productsURL(page, pageSize int) string {
	u := fmt.Sprintf("%sproducts?per_page=%d&page=%d", a.apiBase, pageSize, page)
	if a.consumerKey != "" {
		u += "&consumer_key=" + a.consumerKey + "&consumer_secret=" + a.consumerSecret
	}
	return u
}

type apiProduct struct {
	ID               int64             `json:"id"`
	Name             string            `json:"name"`
	Slug             string            `json:"slug"`
	Permalink        string            `json:"permalink"`
	Description      string            `json:"description"`
	ShortDescription string            `json:"short_description"`
	Price            scraper.FlexPrice `json:"price"`
	RegularPrice     scraper.FlexPrice `json:"regular_price"`
	StockStatus      string            `json:"stock_status"`
	StockQuantity    *int              `json:"stock_quantity"`
	Categories       []apiTerm         `json:"categories"`
	Tags             []apiTerm         `json:"tags"`
	Images           []apiImage        `json:"images"`
	Variations       []int64           `json:"variations"`
	DateCreated      string            `json:"date_created"`
	DateModified     string            `json:"date_modified"`
}

type apiTerm struct {
	Name string `json:"name"`
}

type apiImage struct {
	Src string `json:"src"`
}

// ScrapeProducts pages through the REST API in strictly increasing page
// order. Pagination stops when limit products are collected, a page comes
// back empty, or a page is shorter than the requested page size (WooCommerce
// has no empty trailing page). When the API was never detected the shop-page
// HTML is scraped instead.
func (a *Agent) ScrapeProducts(limit int) ([]*models.Product, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("woocommerce: limit must be positive, got %d", limit)
	}
	if !a.apiAvailable {
		// DetectPlatform may not have run, or matched via HTML only.
		var probe []json.RawMessage
		if err := a.client.GetJSON(a.productsURL(1, 1), &probe); err == nil {
			a.apiAvailable = true
		}
	}
	if !a.apiAvailable {
		a.logger.Warn("REST API unavailable for %s, falling back to HTML scrape", a.siteURL)
		return a.scrapeHTML(limit)
	}

	a.logger.Info("starting product scrape of %s (limit %d)", a.siteURL, limit)
	products := make([]*models.Product, 0, limit)

	for page := 1; len(products) < limit; page++ {
		var batch []apiProduct
		if err := a.client.GetJSON(a.productsURL(page, perPage), &batch); err != nil {
			a.logger.Error("page %d failed, stopping pagination: %v", page, err)
			break
		}
		if len(batch) == 0 {
			a.logger.Info("page %d returned no products, ending pagination", page)
			break
		}

		a.logger.Info("page %d: %d products", page, len(batch))

		for i := range batch {
			p := a.convert(&batch[i])
			a.normalizer.Normalize(p)
			if !a.normalizer.Valid(p) {
				continue
			}
			if a.category != "" && p.ProductType != a.category {
				continue
			}
			if !a.seen.Add(platform + ":" + p.WooCommerceID) {
				continue
			}
			products = append(products, p)
			if len(products) >= limit {
				break
			}
		}

		if len(batch) < perPage {
			a.logger.Info("page %d was short (%d < %d), ending pagination", page, len(batch), perPage)
			break
		}
	}

	a.logger.Info("scrape of %s complete: %d products", a.siteURL, len(products))
	return products, nil
}

func (a *Agent) convert(src *apiProduct) *models.Product {
	price := float64(src.Price)
	if price == 0 {
		price = float64(src.RegularPrice)
	}

	p := &models.Product{
		Platform:      platform,
		WooCommerceID: fmt.Sprintf("%d", src.ID),
		Title:         src.Name,
		Handle:        src.Slug,
		URL:           src.Permalink,
		Description:   src.Description,
		Price:         price,
		Currency:      "USD",
		Available:     src.StockStatus == "instock",
		ImageCount:    len(src.Images),
		VariantCount:  len(src.Variations),
		CreatedAt:     scraper.ParseTime(src.DateCreated),
		UpdatedAt:     scraper.ParseTime(src.DateModified),
		ScrapedAt:     time.Now(),
		StoreName:     a.storeName,
	}
	if p.Description == "" {
		p.Description = src.ShortDescription
	}
	if src.StockQuantity != nil {
		p.TotalInventory = *src.StockQuantity
	}
	if len(src.Images) > 0 {
		p.ImageURL = src.Images[0].Src
	}
	for _, c := range src.Categories {
		p.Categories = append(p.Categories, c.Name)
	}
	if len(src.Categories) > 0 {
		p.ProductType = src.Categories[0].Name
	}
	for _, t := range src.Tags {
		p.Tags = append(p.Tags, t.Name)
	}
	if p.URL == "" && src.Slug != "" {
		p.URL = a.siteURL + "/product/" + src.Slug
	}
	return p
}

// scrapeHTML walks the public shop pages and extracts the standard
// WooCommerce product-loop markup.
func (a *Agent) scrapeHTML(limit int) ([]*models.Product, error) {
	products := make([]*models.Product, 0, limit)

	for page := 1; len(products) < limit; page++ {
		pageURL := a.siteURL + "/shop/"
		if page > 1 {
			pageURL = fmt.Sprintf("%s/shop/page/%d/", a.siteURL, page)
		}

		result, err := a.client.Get(pageURL)
		if err != nil {
			a.logger.Error("shop page %d failed, stopping: %v", page, err)
			break
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(result.Body))
		if err != nil {
			a.logger.Error("shop page %d unparseable, stopping: %v", page, err)
			break
		}

		items := doc.Find("ul.products li.product")
		if items.Length() == 0 {
			a.logger.Info("shop page %d has no product loop, ending pagination", page)
			break
		}

		items.EachWithBreak(func(_ int, s *goquery.Selection) bool {
			p := a.convertHTML(s)
			a.normalizer.Normalize(p)
			if !a.normalizer.Valid(p) {
				return true
			}
			if !a.seen.Add(platform + ":" + p.URL) {
				return true
			}
			products = append(products, p)
			return len(products) < limit
		})
	}

	a.logger.Info("HTML scrape of %s complete: %d products", a.siteURL, len(products))
	return products, nil
}

func (a *Agent) convertHTML(s *goquery.Selection) *models.Product {
	p := &models.Product{
		Platform:  platform,
		Currency:  "USD",
		Available: !s.HasClass("outofstock"),
		ScrapedAt: time.Now(),
		StoreName: a.storeName,
	}
	p.Title = strings.TrimSpace(s.Find("h2, .woocommerce-loop-product__title").First().Text())
	p.URL, _ = s.Find("a").First().Attr("href")
	if img := s.Find("img").First(); img.Length() > 0 {
		p.ImageURL, _ = img.Attr("src")
		p.ImageCount = 1
	}
	// A sale item shows two prices; take the discounted one.
	if sale := s.Find("ins .amount").First(); sale.Length() > 0 {
		p.Price = services.ParsePrice(sale.Text())
	} else {
		p.Price = services.ParsePrice(s.Find(".amount").First().Text())
	}
	return p
}

// ExtractProductDetails fetches a single product page and merges JSON-LD
// structured data with the WooCommerce single-product markup. JSON-LD wins,
// CSS selectors fill what it leaves empty.
func (a *Agent) ExtractProductDetails(productURL string) (*models.Product, error) {
	result, err := a.client.Get(productURL)
	if err != nil {
		return nil, fmt.Errorf("woocommerce: fetch product page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(result.Body))
	if err != nil {
		return nil, fmt.Errorf("woocommerce: parse product page: %w", err)
	}

	p := &models.Product{
		Platform:  platform,
		URL:       productURL,
		Currency:  "USD",
		ScrapedAt: time.Now(),
	}

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		ld, ok := decodeProductLD(s.Text())
		if !ok {
			return true
		}
		p.Title = ld.Name
		p.Description = ld.Description
		p.Price = float64(ld.Offers.Price)
		p.Available = strings.Contains(ld.Offers.Availability, "InStock")
		p.Vendor = ld.Brand.Name
		if ld.SKU != "" {
			p.Handle = ld.SKU
		}
		return false
	})

	if p.Title == "" {
		p.Title = strings.TrimSpace(doc.Find(".product_title, h1.entry-title").First().Text())
	}
	if p.Price == 0 {
		if sale := doc.Find(".price ins .amount").First(); sale.Length() > 0 {
			p.Price = services.ParsePrice(sale.Text())
		} else {
			p.Price = services.ParsePrice(doc.Find(".price .amount, p.price").First().Text())
		}
	}
	if p.Description == "" {
		p.Description = strings.TrimSpace(
			doc.Find(".woocommerce-product-details__short-description, #tab-description").First().Text())
	}
	if p.Handle == "" {
		p.Handle = strings.TrimSpace(doc.Find(".product_meta .sku").First().Text())
	}
	if cats := strings.TrimSpace(doc.Find(".product_meta .posted_in a").First().Text()); cats != "" {
		p.ProductType = cats
	}
	doc.Find(".product_meta .tagged_as a").Each(func(_ int, s *goquery.Selection) {
		if tag := strings.TrimSpace(s.Text()); tag != "" {
			p.Tags = append(p.Tags, tag)
		}
	})
	if !p.Available {
		p.Available = doc.Find(".stock.in-stock").Length() > 0
	}

	a.normalizer.Normalize(p)
	return p, nil
}

// jsonLD is the subset of a JSON-LD Product node the extractor reads.
type jsonLD struct {
	Type  string `json:"@type"`
	Name  string `json:"name"`
	SKU   string `json:"sku"`
	Brand struct {
		Name string `json:"name"`
	} `json:"brand"`
	Description string `json:"description"`
	Offers      struct {
		Price        scraper.FlexPrice `json:"price"`
		Availability string            `json:"availability"`
	} `json:"offers"`
}

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
