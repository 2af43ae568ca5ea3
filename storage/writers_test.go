package storage

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"shop-scraper/models"
)

func sampleProducts() []*models.Product {
	return []*models.Product{
		{
			Platform: "shopify", Title: "Wool Runner", Price: 95,
			Currency: "USD", Available: true, TotalInventory: 12,
			Tags: []string{"shoes", "wool"}, ScrapedAt: time.Now(),
		},
		{
			Platform: "woocommerce", Title: "Linen Shirt", Price: 45,
			Currency: "USD", ScrapedAt: time.Now(),
		},
	}
}

func TestCSVWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "products.csv")

	w, err := NewCSVWriter(path)
	if err != nil {
		t.Fatalf("NewCSVWriter failed: %v", err)
	}
	if err := w.WriteProducts(sampleProducts()); err != nil {
		t.Fatalf("WriteProducts failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "platform" {
		t.Errorf("expected header row first, got %v", rows[0])
	}
	if rows[1][2] != "Wool Runner" || rows[1][12] != "shoes|wool" {
		t.Errorf("unexpected first data row: %v", rows[1])
	}
}

func TestJSONWriterEnvelope(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "products.json")

	w, err := NewJSONWriter(path)
	if err != nil {
		t.Fatalf("NewJSONWriter failed: %v", err)
	}
	if err := w.WriteProducts(sampleProducts()); err != nil {
		t.Fatalf("WriteProducts failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}

	var envelope struct {
		Timestamp    time.Time         `json:"timestamp"`
		ProductCount int               `json:"product_count"`
		Products     []*models.Product `json:"products"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if envelope.ProductCount != 2 || len(envelope.Products) != 2 {
		t.Errorf("expected 2 products in envelope, got count=%d len=%d",
			envelope.ProductCount, len(envelope.Products))
	}
	if envelope.Timestamp.IsZero() {
		t.Error("expected a timestamp in the envelope")
	}
	if envelope.Products[0].Title != "Wool Runner" {
		t.Errorf("unexpected first product: %+v", envelope.Products[0])
	}
}
