package woocommerce

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"shop-scraper/scraper"
	"shop-scraper/utils"
)

func testOptions() scraper.Options {
	return scraper.Options{
		Timeout:     2 * time.Second,
		MaxRetries:  1,
		PoliteDelay: time.Millisecond,
		Logger:      utils.NewLogger(),
	}
}

func productJSON(id int, name string, price float64, stock string) string {
	return fmt.Sprintf(`{
		"id": %d, "name": %q, "slug": "p-%d",
		"permalink": "https://store.example.com/product/p-%d",
		"price": "%.2f", "stock_status": %q, "stock_quantity": 4,
		"categories": [{"name": "apparel"}], "tags": [{"name": "summer"}],
		"images": [{"src": "https://store.example.com/%d.jpg"}]
	}`, id, name, id, id, price, stock, id)
}

// fakeAPI serves wp-json/wc/v3/products pages and records requested pages.
type fakeAPI struct {
	mu        sync.Mutex
	pages     map[int][]string
	requested []int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/wp-json/wc/v3/products") {
		http.NotFound(w, r)
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	f.mu.Lock()
	// The per_page=1 detection probe is answered from page 1 without
	// recording, so pagination assertions see only real page fetches.
	if perPage > 1 {
		f.requested = append(f.requested, page)
	}
	items := f.pages[page]
	f.mu.Unlock()

	if perPage == 1 && len(items) > 1 {
		items = items[:1]
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, "[%s]", strings.Join(items, ","))
}

func (f *fakeAPI) pagesRequested() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.requested...)
}

func TestScrapeProductsStopsOnShortPage(t *testing.T) {
	api := &fakeAPI{pages: map[int][]string{
		1: {
			productJSON(1, "Shirt", 20, "instock"),
			productJSON(2, "Hat", 15, "instock"),
		},
	}}
	server := httptest.NewServer(api)
	defer server.Close()

	agent := New(server.URL, testOptions())
	products, err := agent.ScrapeProducts(100)
	if err != nil {
		t.Fatalf("ScrapeProducts failed: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
	// Page 1 held fewer than per_page items, so page 2 must never be asked for.
	for _, page := range api.pagesRequested() {
		if page > 1 {
			t.Errorf("requested page %d after a short page", page)
		}
	}
}

func TestScrapeProductsStopsOnEmptyPage(t *testing.T) {
	full := make([]string, 0, 100)
	for i := 1; i <= 100; i++ {
		full = append(full, productJSON(i, fmt.Sprintf("Item %d", i), 10, "instock"))
	}
	api := &fakeAPI{pages: map[int][]string{1: full}}
	server := httptest.NewServer(api)
	defer server.Close()

	agent := New(server.URL, testOptions())
	products, err := agent.ScrapeProducts(500)
	if err != nil {
		t.Fatalf("ScrapeProducts failed: %v", err)
	}
	if len(products) != 100 {
		t.Fatalf("expected 100 products, got %d", len(products))
	}
	requested := api.pagesRequested()
	if last := requested[len(requested)-1]; last != 2 {
		t.Errorf("expected pagination to end at empty page 2, last requested was %d", last)
	}
	for _, page := range requested {
		if page > 2 {
			t.Errorf("requested page %d after the empty page", page)
		}
	}
}

func TestConvertMapsWooFields(t *testing.T) {
	api := &fakeAPI{pages: map[int][]string{
		1: {productJSON(7, "Boots", 89.50, "instock")},
	}}
	server := httptest.NewServer(api)
	defer server.Close()

	agent := New(server.URL, testOptions())
	products, err := agent.ScrapeProducts(10)
	if err != nil {
		t.Fatalf("ScrapeProducts failed: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(products))
	}

	p := products[0]
	if p.WooCommerceID != "7" {
		t.Errorf("expected woocommerce id 7, got %q", p.WooCommerceID)
	}
	if p.Price != 89.50 {
		t.Errorf("expected price 89.50, got %.2f", p.Price)
	}
	if !p.Available {
		t.Error("expected instock to map to available")
	}
	if p.TotalInventory != 4 {
		t.Errorf("expected stock quantity 4, got %d", p.TotalInventory)
	}
	if p.ProductType != "apparel" {
		t.Errorf("expected first category as product type, got %q", p.ProductType)
	}
	if len(p.Tags) != 1 || p.Tags[0] != "summer" {
		t.Errorf("expected tag names extracted, got %v", p.Tags)
	}
	if p.URL != "https://store.example.com/product/p-7" {
		t.Errorf("expected permalink as URL, got %q", p.URL)
	}
}

func TestScrapeProductsSkipsMalformed(t *testing.T) {
	api := &fakeAPI{pages: map[int][]string{
		1: {
			productJSON(1, "Shirt", 20, "instock"),
			`{"id": 99, "name": "", "price": "10.00", "stock_status": "instock"}`,
			`{"id": 98, "name": "Freebie", "price": "", "stock_status": "instock"}`,
		},
	}}
	server := httptest.NewServer(api)
	defer server.Close()

	agent := New(server.URL, testOptions())
	products, err := agent.ScrapeProducts(100)
	if err != nil {
		t.Fatalf("ScrapeProducts failed: %v", err)
	}
	if len(products) != 1 {
		t.Fatalf("expected only the well-formed product, got %d", len(products))
	}
}

func TestDetectPlatformViaAPI(t *testing.T) {
	api := &fakeAPI{pages: map[int][]string{
		1: {productJSON(1, "Shirt", 20, "instock")},
	}}
	server := httptest.NewServer(api)
	defer server.Close()

	agent := New(server.URL, testOptions())
	if !agent.DetectPlatform() {
		t.Fatal("expected detection to succeed via REST probe")
	}
}

func TestDetectPlatformViaHTMLMarker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			fmt.Fprint(w, `<html><head><title>My Woo Shop</title>
				<link rel="stylesheet" href="/wp-content/plugins/woocommerce/assets/css/woocommerce.css">
				</head><body></body></html>`)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	agent := New(server.URL, testOptions())
	if !agent.DetectPlatform() {
		t.Fatal("expected detection to succeed via HTML marker")
	}
	if agent.storeName != "My Woo Shop" {
		t.Errorf("expected store name from title tag, got %q", agent.storeName)
	}
}

func TestDetectPlatformNegative(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			fmt.Fprint(w, "<html><body>hand-rolled store</body></html>")
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	agent := New(server.URL, testOptions())
	if agent.DetectPlatform() {
		t.Fatal("expected detection to fail for a non-WooCommerce site")
	}
}

func TestScrapeHTMLFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/wp-json/"):
			http.NotFound(w, r)
		case r.URL.Path == "/shop/":
			fmt.Fprint(w, `<html><body><ul class="products">
				<li class="product">
					<a href="https://s.example.com/product/tee"><h2>Basic Tee</h2>
					<img src="tee.jpg"></a>
					<span class="amount">$19.00</span>
				</li>
				<li class="product outofstock">
					<a href="https://s.example.com/product/hoodie"><h2>Hoodie</h2></a>
					<ins><span class="amount">$39.00</span></ins>
					<del><span class="amount">$49.00</span></del>
				</li>
			</ul></body></html>`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	agent := New(server.URL, testOptions())
	products, err := agent.ScrapeProducts(10)
	if err != nil {
		t.Fatalf("ScrapeProducts failed: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products from HTML fallback, got %d", len(products))
	}

	tee, hoodie := products[0], products[1]
	if tee.Title != "Basic Tee" || tee.Price != 19.00 || !tee.Available {
		t.Errorf("unexpected first product: %+v", tee)
	}
	if hoodie.Available {
		t.Error("expected outofstock class to mark product unavailable")
	}
	if hoodie.Price != 39.00 {
		t.Errorf("expected discounted sale price 39.00, got %.2f", hoodie.Price)
	}
}

func TestExtractProductDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head>
			<script type="application/ld+json">
			{"@type": "Product", "name": "Linen Shirt", "sku": "LIN-1",
			 "description": "Breathable linen.",
			 "offers": {"price": "45.00", "availability": "https://schema.org/InStock"}}
			</script></head><body>
			<span class="product_meta"><span class="posted_in"><a href="#">apparel</a></span>
			<span class="tagged_as"><a href="#">summer</a><a href="#">linen</a></span></span>
			</body></html>`)
	}))
	defer server.Close()

	agent := New(server.URL, testOptions())
	p, err := agent.ExtractProductDetails(server.URL + "/product/linen-shirt")
	if err != nil {
		t.Fatalf("ExtractProductDetails failed: %v", err)
	}
	if p.Title != "Linen Shirt" || p.Price != 45.00 || !p.Available {
		t.Errorf("JSON-LD fields not extracted: %+v", p)
	}
	if p.Handle != "LIN-1" {
		t.Errorf("expected sku as handle, got %q", p.Handle)
	}
	if p.ProductType != "apparel" {
		t.Errorf("expected category from product meta, got %q", p.ProductType)
	}
	if len(p.Tags) != 2 {
		t.Errorf("expected 2 tags from product meta, got %v", p.Tags)
	}
}
