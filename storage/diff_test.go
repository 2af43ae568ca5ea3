package storage

import (
	"testing"

	"shop-scraper/models"
)

func TestDiffProductsNoChanges(t *testing.T) {
	p := &models.Product{
		Title: "Shirt", Price: 20, Available: true,
		TotalInventory: 5, VariantCount: 2, ImageCount: 1,
	}
	q := *p
	if changes := DiffProducts(p, &q); len(changes) != 0 {
		t.Errorf("expected no changes for identical products, got %v", changes)
	}
}

func TestDiffProductsDetectsChanges(t *testing.T) {
	old := &models.Product{
		Title: "Shirt", Price: 20, Available: true, TotalInventory: 5,
	}
	new := &models.Product{
		Title: "Shirt Deluxe", Price: 25, Available: false, TotalInventory: 0,
	}

	changes := DiffProducts(old, new)
	byField := make(map[string]models.FieldChange, len(changes))
	for _, c := range changes {
		byField[c.Field] = c
	}

	if c, ok := byField["title"]; !ok || c.OldValue != "Shirt" || c.NewValue != "Shirt Deluxe" {
		t.Errorf("title change not recorded: %+v", byField)
	}
	if c, ok := byField["price"]; !ok || c.OldValue != "20.00" || c.NewValue != "25.00" {
		t.Errorf("price change not recorded: %+v", byField)
	}
	if c, ok := byField["available"]; !ok || c.OldValue != "true" || c.NewValue != "false" {
		t.Errorf("availability change not recorded: %+v", byField)
	}
	if c, ok := byField["total_inventory"]; !ok || c.NewValue != "0" {
		t.Errorf("inventory change not recorded: %+v", byField)
	}
	if len(changes) != 4 {
		t.Errorf("expected exactly 4 changes, got %d: %v", len(changes), changes)
	}
}

func TestDiffProductsIgnoresUnobservedFields(t *testing.T) {
	old := &models.Product{
		Title: "Shirt", Description: "Cotton tee", Price: 20,
		Vendor: "Acme", ImageURL: "a.jpg",
	}
	// A sparse scrape (e.g. an HTML fallback) that did not see description,
	// vendor or image must not report them as cleared.
	new := &models.Product{Title: "Shirt", Price: 20}

	if changes := DiffProducts(old, new); len(changes) != 0 {
		t.Errorf("expected unobserved fields to be skipped, got %v", changes)
	}
}
