package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"shop-scraper/models"
	"shop-scraper/utils"
)

const (
	maxTitleLen       = 100
	maxDescriptionLen = 500
)

var (
	// priceRegexp captures numeric price values
	priceRegexp = regexp.MustCompile(`[\d,]+(?:\.\d+)?`)
	// titleNoiseRegexp matches characters stripped from product titles
	titleNoiseRegexp = regexp.MustCompile(`[^\w\s\-()\[\]]+`)
	// spaceRegexp collapses runs of whitespace
	spaceRegexp = regexp.MustCompile(`\s+`)
)

// Normalizer turns raw platform fields into clean canonical values. All of
// its operations are idempotent: normalizing an already-normalized record
// yields the same record.
type Normalizer struct {
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize cleans a product record in place and enforces the canonical
// invariants (max price >= price, non-negative counts, variant count >= 1).
func (n *Normalizer) Normalize(p *models.Product) {
	p.Title = CleanTitle(p.Title)
	p.Description = StripHTML(p.Description)
	p.Vendor = strings.TrimSpace(p.Vendor)
	p.ProductType = strings.TrimSpace(p.ProductType)

	if p.Price < 0 {
		p.Price = 0
	}
	if p.MaxPrice < p.Price {
		p.MaxPrice = 0
	}
	if p.TotalInventory < 0 {
		p.TotalInventory = 0
	}
	if p.VariantCount < 1 {
		p.VariantCount = 1
	}
	if p.ImageCount < 0 {
		p.ImageCount = 0
	}

	for i, tag := range p.Tags {
		p.Tags[i] = strings.TrimSpace(tag)
	}
}

// Valid reports whether a normalized record carries the required fields.
// Records failing this check are skipped, never fatal to the batch.
func (n *Normalizer) Valid(p *models.Product) bool {
	if p.Title == "" {
		n.logger.Debug("[normalize] dropping product with empty title (id=%s%s)", p.ShopifyID, p.WooCommerceID)
		return false
	}
	if p.Price <= 0 {
		n.logger.Debug("[normalize] dropping %q: no price", p.Title)
		return false
	}
	return true
}

// CleanTitle collapses whitespace, strips noise characters and caps the
// length, matching the canonical title format.
func CleanTitle(title string) string {
	cleaned := titleNoiseRegexp.ReplaceAllString(title, "")
	cleaned = spaceRegexp.ReplaceAllString(strings.TrimSpace(cleaned), " ")
	return capRunes(cleaned, maxTitleLen)
}

// StripHTML converts an HTML fragment to plain text, collapses whitespace and
// caps the length. Plain text passes through unchanged.
func StripHTML(fragment string) string {
	if fragment == "" {
		return ""
	}
	text := fragment
	if strings.ContainsAny(fragment, "<>") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
		if err == nil {
			text = doc.Text()
		}
	}
	text = spaceRegexp.ReplaceAllString(strings.TrimSpace(text), " ")
	return capRunes(text, maxDescriptionLen)
}

// ParsePrice extracts a numeric price from arbitrary text ("$1,299.00",
// "USD 99", "от 150"). Returns 0 when no number is present.
func ParsePrice(raw string) float64 {
	cleaned := strings.ReplaceAll(raw, ",", "")
	match := priceRegexp.FindString(cleaned)
	if match == "" {
		return 0
	}
	price, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0
	}
	return price
}

// SplitTags normalizes a comma-separated tag string into a list. Shopify
// returns tags either form depending on endpoint.
func SplitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var tags []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

func capRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max]))
}
