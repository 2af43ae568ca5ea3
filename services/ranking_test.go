package services

import (
	"testing"

	"shop-scraper/models"
	"shop-scraper/utils"
)

func rankingBatch() []*models.Product {
	// Prices [30, 10, 20, 10, 5], availability [T, F, T, T, T].
	return []*models.Product{
		{Title: "Jacket", Price: 30, Available: true, ProductType: "apparel", VariantCount: 1},
		{Title: "Mug", Price: 10, Available: false, ProductType: "kitchen", VariantCount: 1},
		{Title: "Lamp", Price: 20, Available: true, ProductType: "home", VariantCount: 1},
		{Title: "Cap", Price: 10, Available: true, ProductType: "apparel", VariantCount: 1},
		{Title: "Socks", Price: 5, Available: true, ProductType: "apparel", VariantCount: 1},
	}
}

func newTestEngine() *RankingEngine {
	return NewRankingEngine(utils.NewLogger(), DefaultWeights())
}

func TestTopKOrdering(t *testing.T) {
	e := newTestEngine()
	r := e.TopK(rankingBatch(), 3, 0, "")

	if len(r.Products) != 3 {
		t.Fatalf("products: got %d, want 3", len(r.Products))
	}

	wantTitles := []string{"Socks", "Cap", "Lamp"}
	for i, want := range wantTitles {
		if r.Products[i].Title != want {
			t.Errorf("rank %d: got %q, want %q", i+1, r.Products[i].Title, want)
		}
		if r.Products[i].RankPosition != i+1 {
			t.Errorf("rank position: got %d, want %d", r.Products[i].RankPosition, i+1)
		}
	}
}

func TestTopKMinPriceFilter(t *testing.T) {
	e := newTestEngine()
	r := e.TopK(rankingBatch(), 3, 15, "")

	// Only the 20(T) and 30(T) records survive; fewer than k is not an error.
	if len(r.Products) != 2 {
		t.Fatalf("products: got %d, want 2", len(r.Products))
	}
	if r.Products[0].Price != 20 || r.Products[1].Price != 30 {
		t.Errorf("order: got [%.0f, %.0f], want [20, 30]", r.Products[0].Price, r.Products[1].Price)
	}
	for _, rp := range r.Products {
		if rp.Price < 15 {
			t.Errorf("product %q below min_price", rp.Title)
		}
	}
}

func TestTopKUnavailableSortedLast(t *testing.T) {
	e := newTestEngine()
	batch := []*models.Product{
		{Title: "A", Price: 30, Available: false, VariantCount: 1},
		{Title: "B", Price: 20, Available: true, VariantCount: 1},
	}
	r := e.TopK(batch, 5, 0, "")
	if r.Products[0].Title != "B" || r.Products[1].Title != "A" {
		t.Errorf("available products must sort before unavailable ones")
	}
}

func TestTopKStableTies(t *testing.T) {
	e := newTestEngine()
	batch := []*models.Product{
		{Title: "First", Price: 10, Available: true, VariantCount: 1},
		{Title: "Second", Price: 10, Available: true, VariantCount: 1},
		{Title: "Third", Price: 10, Available: true, VariantCount: 1},
	}
	r := e.TopK(batch, 3, 0, "")
	for i, want := range []string{"First", "Second", "Third"} {
		if r.Products[i].Title != want {
			t.Errorf("tie order broken at %d: got %q, want %q", i, r.Products[i].Title, want)
		}
	}
}

func TestTopKCategoryFilter(t *testing.T) {
	e := newTestEngine()
	r := e.TopK(rankingBatch(), 10, 0, "apparel")
	if len(r.Products) != 3 {
		t.Fatalf("products: got %d, want 3", len(r.Products))
	}
	for _, rp := range r.Products {
		if rp.ProductType != "apparel" {
			t.Errorf("category filter leaked %q", rp.ProductType)
		}
	}
}

func TestTopKEmptyFilterIsNoData(t *testing.T) {
	e := newTestEngine()
	r := e.TopK(rankingBatch(), 3, 1000, "")
	if !r.Empty() {
		t.Error("expected an explicit no-data result")
	}
	if r.Stats.TopKCount != 0 || r.Stats.TotalAnalyzed != 0 {
		t.Errorf("stats should be zero for empty filter: %+v", r.Stats)
	}
}

func TestTopKStats(t *testing.T) {
	e := newTestEngine()
	r := e.TopK(rankingBatch(), 3, 0, "")

	// Truncated set: Socks 5(T), Cap 10(T), Lamp 20(T).
	if r.Stats.TotalAnalyzed != 5 {
		t.Errorf("TotalAnalyzed: got %d, want 5", r.Stats.TotalAnalyzed)
	}
	wantAvg := utils.Round2((5 + 10 + 20) / 3.0)
	if r.Stats.AvgPrice != wantAvg {
		t.Errorf("AvgPrice: got %.2f, want %.2f", r.Stats.AvgPrice, wantAvg)
	}
	if r.Stats.AvailabilityRate != 100 {
		t.Errorf("AvailabilityRate: got %.1f, want 100", r.Stats.AvailabilityRate)
	}
	if r.Stats.MinPrice != 5 || r.Stats.MaxPrice != 20 {
		t.Errorf("price range: got %.0f–%.0f, want 5–20", r.Stats.MinPrice, r.Stats.MaxPrice)
	}
	if len(r.Stats.TopCategories) == 0 || r.Stats.TopCategories[0].Name != "apparel" {
		t.Errorf("TopCategories: got %+v, want apparel first", r.Stats.TopCategories)
	}
}

func TestScoreCompositionFavorsAvailability(t *testing.T) {
	e := newTestEngine()
	available := &models.Product{Title: "A", Price: 50, Available: true, VariantCount: 1}
	unavailable := &models.Product{Title: "B", Price: 50, Available: false, TotalInventory: 95, ImageCount: 4, VariantCount: 1}

	r := e.TopK([]*models.Product{unavailable, available}, 2, 0, "")
	var scoreA, scoreB float64
	for _, rp := range r.Products {
		if rp.Title == "A" {
			scoreA = rp.FinalScore
		} else {
			scoreB = rp.FinalScore
		}
	}
	if scoreA <= scoreB {
		t.Errorf("availability must dominate: available=%.1f, unavailable=%.1f", scoreA, scoreB)
	}
}

func TestSubScoresAreBounded(t *testing.T) {
	e := newTestEngine()
	p := &models.Product{
		Title: "Big", Price: 10, Available: true,
		TotalInventory: 100000, ImageCount: 40, VariantCount: 90,
	}
	r := e.TopK([]*models.Product{p}, 1, 0, "")
	rp := r.Products[0]
	for name, score := range map[string]float64{
		"availability": rp.AvailabilityScore,
		"inventory":    rp.InventoryScore,
		"image":        rp.ImageScore,
		"price":        rp.PriceScore,
	} {
		if score < 0 || score > 100 {
			t.Errorf("%s score out of bounds: %.2f", name, score)
		}
	}
}
