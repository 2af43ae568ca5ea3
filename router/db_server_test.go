package router

import (
	"testing"

	"shop-scraper/models"
	"shop-scraper/utils"
)

// fakeProductStore is an in-memory stand-in for the persistence gateway.
type fakeProductStore struct {
	products []*models.Product
	changes  []models.FieldChange
}

func (f *fakeProductStore) GetOrCreateStore(name, url, domain string) (*models.Store, error) {
	return &models.Store{ID: 1, Name: name, URL: url}, nil
}

func (f *fakeProductStore) UpsertProduct(p *models.Product) ([]models.FieldChange, error) {
	for _, prior := range f.products {
		if prior.StoreID == p.StoreID && prior.Title == p.Title {
			f.changes = []models.FieldChange{{
				Field:    "price",
				OldValue: "0.00",
				NewValue: "1.00",
			}}
			p.ID = prior.ID
			return f.changes, nil
		}
	}
	p.ID = int64(len(f.products) + 1)
	f.products = append(f.products, p)
	return nil, nil
}

func (f *fakeProductStore) LogScrape(*models.ScrapeLog) error { return nil }
func (f *fakeProductStore) SaveAnalysis(*models.AnalysisResult) error { return nil }
func (f *fakeProductStore) LoadAnalysis() (*models.AnalysisResult, error) { return nil, nil }

func (f *fakeProductStore) FetchProducts(limit int) ([]*models.Product, error) {
	if limit > 0 && limit < len(f.products) {
		return f.products[:limit], nil
	}
	return f.products, nil
}

func (f *fakeProductStore) Schema() map[string][]string {
	return map[string][]string{"products": {"id", "title", "price"}}
}

func (f *fakeProductStore) Close() error { return nil }

func newDatabaseHost(store *fakeProductStore) *Host {
	logger := utils.NewLogger()
	permissions := map[string][]string{
		"admin":    {"query_data", "get_schema", "modify_data"},
		"analyzer": {"query_data", "get_schema"},
	}
	host := NewHost(logger)
	host.RegisterServer(NewDatabaseServer(permissions, store, logger))
	return host
}

func TestQueryDataReturnsStoredProducts(t *testing.T) {
	store := &fakeProductStore{products: []*models.Product{
		{ID: 1, StoreID: 1, Title: "Shirt", Price: 20},
		{ID: 2, StoreID: 1, Title: "Hat", Price: 15},
	}}
	host := newDatabaseHost(store)
	analyzer := host.RegisterClient("analyzer")

	resp := analyzer.MakeRequest("query_data", map[string]any{"limit": 10})
	if resp.Status != StatusSuccess {
		t.Fatalf("query_data failed: %s", resp.Error)
	}
	if resp.Data["count"] != 2 {
		t.Errorf("expected 2 products, got %v", resp.Data["count"])
	}
}

func TestGetSchemaListsTables(t *testing.T) {
	host := newDatabaseHost(&fakeProductStore{})
	analyzer := host.RegisterClient("analyzer")

	resp := analyzer.MakeRequest("get_schema", nil)
	if resp.Status != StatusSuccess {
		t.Fatalf("get_schema failed: %s", resp.Error)
	}
	tables := resp.Data["tables"].(map[string]any)
	if _, ok := tables["products"]; !ok {
		t.Errorf("expected products table in schema, got %v", tables)
	}
}

func TestModifyDataUpsertsThroughGateway(t *testing.T) {
	store := &fakeProductStore{}
	host := newDatabaseHost(store)
	admin := host.RegisterClient("admin")

	resp := admin.MakeRequest("modify_data", map[string]any{
		"store_id": 1,
		"title":    "Shirt",
		"price":    20.0,
	})
	if resp.Status != StatusSuccess {
		t.Fatalf("modify_data failed: %s", resp.Error)
	}
	if len(store.products) != 1 {
		t.Fatalf("expected 1 stored product, got %d", len(store.products))
	}
	if store.products[0].Price != 20.0 {
		t.Errorf("expected price 20.0, got %.2f", store.products[0].Price)
	}

	// A second write to the same (store_id, title) is an update and reports
	// its field changes.
	resp = admin.MakeRequest("modify_data", map[string]any{
		"store_id": 1,
		"title":    "Shirt",
		"price":    25.0,
	})
	if resp.Status != StatusSuccess {
		t.Fatalf("second modify_data failed: %s", resp.Error)
	}
	changed := resp.Data["changes"].([]map[string]any)
	if len(changed) != 1 || changed[0]["field"] != "price" {
		t.Errorf("expected a price change to be reported, got %v", changed)
	}
}

func TestModifyDataDeniedForReadOnlyClients(t *testing.T) {
	store := &fakeProductStore{}
	host := newDatabaseHost(store)
	analyzer := host.RegisterClient("analyzer")

	resp := analyzer.MakeRequest("modify_data", map[string]any{
		"store_id": 1,
		"title":    "Shirt",
	})
	if resp.Status != StatusError || resp.Error != "Permission denied" {
		t.Fatalf("expected Permission denied, got %q (%s)", resp.Status, resp.Error)
	}
	if len(store.products) != 0 {
		t.Errorf("denied write must not reach the store, found %d products", len(store.products))
	}
}

func TestModifyDataValidatesParameters(t *testing.T) {
	host := newDatabaseHost(&fakeProductStore{})
	admin := host.RegisterClient("admin")

	resp := admin.MakeRequest("modify_data", map[string]any{"store_id": 1})
	if resp.Status != StatusError {
		t.Fatal("expected missing title to be rejected")
	}

	resp = admin.MakeRequest("modify_data", map[string]any{"title": "Shirt"})
	if resp.Status != StatusError {
		t.Fatal("expected missing store_id to be rejected")
	}
}
