package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"shop-scraper/models"
)

// CSVWriter exports scraped products to a CSV file, one row per product.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVWriter creates (or truncates) the CSV file at the given path and
// writes the header row. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	w := csv.NewWriter(f)

	if err := w.Write([]string{
		"platform", "store", "title", "handle", "url", "price", "max_price",
		"currency", "available", "total_inventory", "product_type", "vendor",
		"tags", "image_url", "image_count", "variant_count", "scraped_at",
	}); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: write header: %w", err)
	}
	w.Flush()

	return &CSVWriter{file: f, writer: w}, nil
}

// WriteProducts appends one row per product.
func (c *CSVWriter) WriteProducts(products []*models.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range products {
		row := []string{
			p.Platform,
			p.StoreName,
			p.Title,
			p.Handle,
			p.URL,
			strconv.FormatFloat(p.Price, 'f', 2, 64),
			strconv.FormatFloat(p.MaxPrice, 'f', 2, 64),
			p.Currency,
			strconv.FormatBool(p.Available),
			strconv.Itoa(p.TotalInventory),
			p.ProductType,
			p.Vendor,
			strings.Join(p.Tags, "|"),
			p.ImageURL,
			strconv.Itoa(p.ImageCount),
			strconv.Itoa(p.VariantCount),
			p.ScrapedAt.Format(time.RFC3339),
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
