package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"shop-scraper/models"
)

// JSONWriter exports product batches as a timestamped JSON envelope.
type JSONWriter struct {
	path string
}

// NewJSONWriter prepares a writer targeting the given path. Intermediate
// directories are created automatically.
func NewJSONWriter(path string) (*JSONWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("json: create output dir: %w", err)
	}
	return &JSONWriter{path: path}, nil
}

type jsonEnvelope struct {
	Timestamp    time.Time         `json:"timestamp"`
	ProductCount int               `json:"product_count"`
	Products     []*models.Product `json:"products"`
}

// WriteProducts replaces the file's contents with the given batch.
func (j *JSONWriter) WriteProducts(products []*models.Product) error {
	envelope := jsonEnvelope{
		Timestamp:    time.Now(),
		ProductCount: len(products),
		Products:     products,
	}

	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("json: marshal products: %w", err)
	}
	if err := os.WriteFile(j.path, data, 0644); err != nil {
		return fmt.Errorf("json: write %q: %w", j.path, err)
	}
	return nil
}
