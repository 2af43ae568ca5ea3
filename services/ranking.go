package services

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"shop-scraper/models"
	"shop-scraper/utils"
)

// Weights control how much each sub-score contributes to the final score.
// They are a design parameter, not a fixed law; defaults give availability the
// largest share, then inventory depth, then image count, then price.
type Weights struct {
	Availability float64
	Inventory    float64
	Image        float64
	Price        float64
}

// DefaultWeights returns the documented default score composition.
func DefaultWeights() Weights {
	return Weights{
		Availability: 0.40,
		Inventory:    0.30,
		Image:        0.20,
		Price:        0.10,
	}
}

// RankingEngine produces Top-K analyses over batches of normalized products.
type RankingEngine struct {
	logger  *utils.Logger
	weights Weights
}

// NewRankingEngine creates a RankingEngine with the given score weights.
func NewRankingEngine(logger *utils.Logger, weights Weights) *RankingEngine {
	return &RankingEngine{logger: logger, weights: weights}
}

// TopK filters, orders and truncates a product batch.
//
// Filtering drops records with price below minPrice, and records whose
// product_type differs from category when one is given. An empty filtered
// batch is an explicit "no data" result, not an error. Ordering is a stable
// sort: available products first, then by ascending price, ties keeping their
// original relative order. k larger than the filtered count returns all
// filtered entries.
func (e *RankingEngine) TopK(products []*models.Product, k int, minPrice float64, category string) *models.AnalysisResult {
	result := &models.AnalysisResult{
		Name:           fmt.Sprintf("Top %d analysis", k),
		K:              k,
		MinPrice:       minPrice,
		CategoryFilter: category,
		CreatedAt:      time.Now(),
	}

	filtered := make([]*models.Product, 0, len(products))
	for _, p := range products {
		if p.Price < minPrice {
			continue
		}
		if category != "" && p.ProductType != category {
			continue
		}
		filtered = append(filtered, p)
	}

	if len(filtered) == 0 {
		e.logger.Warn("[ranking] no products left after filtering (min_price=%.2f, category=%q)", minPrice, category)
		return result
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Available != filtered[j].Available {
			return filtered[i].Available
		}
		return filtered[i].Price < filtered[j].Price
	})

	top := filtered
	if k < len(top) {
		top = top[:k]
	}

	cheapest, dearest := priceBounds(top)
	ranked := make([]*models.RankedProduct, 0, len(top))
	for i, p := range top {
		rp := e.score(p, cheapest, dearest)
		rp.RankPosition = i + 1
		ranked = append(ranked, rp)
	}
	result.Products = ranked
	result.Stats = e.stats(len(filtered), ranked)
	return result
}

// score computes the bounded sub-scores and their weighted sum. Each
// sub-score lives on a 0..100 scale.
func (e *RankingEngine) score(p *models.Product, cheapest, dearest float64) *models.RankedProduct {
	rp := &models.RankedProduct{Product: p}

	if p.Available {
		rp.AvailabilityScore = 100
	}

	rp.InventoryScore = math.Min(100, float64(p.TotalInventory)+5*float64(p.VariantCount))
	rp.ImageScore = math.Min(100, 25*float64(p.ImageCount))

	// Within-batch affordability: the cheapest product scores 100, the most
	// expensive 0. A single price point scores 100.
	if dearest > cheapest {
		rp.PriceScore = 100 * (dearest - p.Price) / (dearest - cheapest)
	} else {
		rp.PriceScore = 100
	}

	rp.FinalScore = utils.Round2(
		e.weights.Availability*rp.AvailabilityScore +
			e.weights.Inventory*rp.InventoryScore +
			e.weights.Image*rp.ImageScore +
			e.weights.Price*rp.PriceScore)
	return rp
}

func (e *RankingEngine) stats(totalAnalyzed int, top []*models.RankedProduct) models.AnalysisStats {
	stats := models.AnalysisStats{
		TotalAnalyzed: totalAnalyzed,
		TopKCount:     len(top),
	}
	if len(top) == 0 {
		return stats
	}

	var priceSum, scoreSum float64
	available := 0
	counts := make(map[string]int)
	stats.MinPrice = top[0].Price
	stats.MaxPrice = top[0].Price

	for _, rp := range top {
		priceSum += rp.Price
		scoreSum += rp.FinalScore
		if rp.Available {
			available++
		}
		if rp.ProductType != "" {
			counts[rp.ProductType]++
		}
		if rp.Price < stats.MinPrice {
			stats.MinPrice = rp.Price
		}
		if rp.Price > stats.MaxPrice {
			stats.MaxPrice = rp.Price
		}
	}

	stats.AvgPrice = utils.Round2(priceSum / float64(len(top)))
	stats.AvgScore = utils.Round2(scoreSum / float64(len(top)))
	stats.AvailabilityRate = utils.Round2(float64(available) / float64(len(top)) * 100)
	stats.TopCategories = topCategories(counts, 3)
	return stats
}

func topCategories(counts map[string]int, limit int) []models.CategoryCount {
	out := make([]models.CategoryCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, models.CategoryCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func priceBounds(products []*models.Product) (min, max float64) {
	if len(products) == 0 {
		return 0, 0
	}
	min, max = products[0].Price, products[0].Price
	for _, p := range products[1:] {
		if p.Price < min {
			min = p.Price
		}
		if p.Price > max {
			max = p.Price
		}
	}
	return min, max
}

// PrintReport writes a styled console summary of an analysis, in the same
// spirit as the scrape insights report.
func (e *RankingEngine) PrintReport(r *models.AnalysisResult) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 TOP-%d PRODUCT ANALYSIS\033[0m\n", r.K)
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	if r.Empty() {
		fmt.Printf("  No products matched the filters\n")
		fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
		return
	}

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Products analyzed : \033[1m%d\033[0m\n", r.Stats.TotalAnalyzed)
	fmt.Printf("  Top-K returned    : \033[1m%d\033[0m\n", r.Stats.TopKCount)
	fmt.Printf("  Average price     : \033[1;32m$%.2f\033[0m\n", r.Stats.AvgPrice)
	fmt.Printf("  Price range       : \033[1;32m$%.2f – $%.2f\033[0m\n", r.Stats.MinPrice, r.Stats.MaxPrice)
	fmt.Printf("  Availability rate : \033[1;32m%.1f%%\033[0m\n", r.Stats.AvailabilityRate)
	fmt.Println()

	fmt.Printf("\033[1;33m  Ranking\033[0m\n")
	fmt.Printf("  %s\n", thin)
	for _, rp := range r.Products {
		marker := "\033[1;31m✗\033[0m"
		if rp.Available {
			marker = "\033[1;32m✓\033[0m"
		}
		fmt.Printf("  \033[1m%2d.\033[0m %-42s %s $%-8.2f score %.1f\n",
			rp.RankPosition, utils.Truncate(rp.Title, 40), marker, rp.Price, rp.FinalScore)
	}
	fmt.Println()

	if len(r.Stats.TopCategories) > 0 {
		fmt.Printf("\033[1;33m  Top Categories\033[0m\n")
		fmt.Printf("  %s\n", thin)
		for _, cc := range r.Stats.TopCategories {
			bar := strings.Repeat("█", cc.Count)
			fmt.Printf("  %-30s %s (%d)\n", utils.Truncate(cc.Name, 28), bar, cc.Count)
		}
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}
