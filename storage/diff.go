package storage

import (
	"fmt"
	"strconv"

	"shop-scraper/models"
)

// DiffProducts compares a freshly scraped product against its stored prior
// version and returns one FieldChange per tracked field whose value moved.
// A zero value on the new side means the scrape did not observe that field,
// so it is not reported as a change.
func DiffProducts(old, new *models.Product) []models.FieldChange {
	var changes []models.FieldChange

	strField := func(field, oldV, newV string) {
		if newV != "" && oldV != newV {
			changes = append(changes, models.FieldChange{Field: field, OldValue: oldV, NewValue: newV})
		}
	}
	floatField := func(field string, oldV, newV float64) {
		if newV != 0 && oldV != newV {
			changes = append(changes, models.FieldChange{
				Field:    field,
				OldValue: strconv.FormatFloat(oldV, 'f', 2, 64),
				NewValue: strconv.FormatFloat(newV, 'f', 2, 64),
			})
		}
	}
	intField := func(field string, oldV, newV int) {
		if oldV != newV {
			changes = append(changes, models.FieldChange{
				Field:    field,
				OldValue: strconv.Itoa(oldV),
				NewValue: strconv.Itoa(newV),
			})
		}
	}

	strField("title", old.Title, new.Title)
	strField("description", old.Description, new.Description)
	strField("url", old.URL, new.URL)
	strField("product_type", old.ProductType, new.ProductType)
	strField("vendor", old.Vendor, new.Vendor)
	strField("image_url", old.ImageURL, new.ImageURL)

	floatField("price", old.Price, new.Price)
	floatField("max_price", old.MaxPrice, new.MaxPrice)

	// Availability and inventory are always observed, zero included.
	if old.Available != new.Available {
		changes = append(changes, models.FieldChange{
			Field:    "available",
			OldValue: fmt.Sprintf("%t", old.Available),
			NewValue: fmt.Sprintf("%t", new.Available),
		})
	}
	intField("total_inventory", old.TotalInventory, new.TotalInventory)
	intField("image_count", old.ImageCount, new.ImageCount)
	intField("variant_count", old.VariantCount, new.VariantCount)

	return changes
}
