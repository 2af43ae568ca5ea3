package services

import "shop-scraper/models"

// Enricher augments a normalized product with externally sourced insight
// text. The call is opaque to the pipeline: implementations may hit an LLM
// API, a cache, or nothing at all.
type Enricher interface {
	Enrich(product *models.Product) (string, error)
}

// NoopEnricher is the default Enricher; it adds nothing.
type NoopEnricher struct{}

func (NoopEnricher) Enrich(*models.Product) (string, error) { return "", nil }
