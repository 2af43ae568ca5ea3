package router

import (
	"fmt"
	"time"

	"shop-scraper/models"
	"shop-scraper/storage"
	"shop-scraper/utils"
)

// DatabaseServer exposes the persistence gateway over the request router:
// query_data and get_schema for reads, modify_data as the write path. The
// permission table decides who gets the write action.
type DatabaseServer struct {
	*PermissionServer
	store storage.ProductStore
}

// NewDatabaseServer creates a DatabaseServer over the given store.
func NewDatabaseServer(permissions map[string][]string, store storage.ProductStore, logger *utils.Logger) *DatabaseServer {
	s := &DatabaseServer{
		PermissionServer: NewPermissionServer("database-server", permissions, logger),
		store:            store,
	}
	s.RegisterAction("query_data", s.queryData)
	s.RegisterAction("get_schema", s.getSchema)
	s.RegisterAction("modify_data", s.modifyData)
	return s
}

func (s *DatabaseServer) queryData(req *Request) (map[string]any, error) {
	limit := intParam(req.Parameters, "limit", 100)
	products, err := s.store.FetchProducts(limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"products": products,
		"count":    len(products),
	}, nil
}

// modifyData upserts one product through the persistence gateway. The upsert
// carries the gateway's change-detection semantics, so the response reports
// which fields moved.
func (s *DatabaseServer) modifyData(req *Request) (map[string]any, error) {
	title, _ := req.Parameters["title"].(string)
	if title == "" {
		return nil, fmt.Errorf("modify_data requires a title parameter")
	}

	p := &models.Product{
		StoreID:        int64(intParam(req.Parameters, "store_id", 0)),
		Platform:       stringParam(req.Parameters, "platform"),
		ShopifyID:      stringParam(req.Parameters, "shopify_id"),
		WooCommerceID:  stringParam(req.Parameters, "woocommerce_id"),
		Title:          title,
		URL:            stringParam(req.Parameters, "url"),
		Price:          floatParam(req.Parameters, "price"),
		Currency:       "USD",
		Available:      boolParam(req.Parameters, "available"),
		TotalInventory: intParam(req.Parameters, "total_inventory", 0),
		ProductType:    stringParam(req.Parameters, "product_type"),
		Vendor:         stringParam(req.Parameters, "vendor"),
		ScrapedAt:      time.Now(),
	}
	if p.StoreID == 0 {
		return nil, fmt.Errorf("modify_data requires a store_id parameter")
	}

	changes, err := s.store.UpsertProduct(p)
	if err != nil {
		return nil, err
	}
	changed := make([]map[string]any, 0, len(changes))
	for _, c := range changes {
		changed = append(changed, map[string]any{
			"field": c.Field, "old": c.OldValue, "new": c.NewValue,
		})
	}
	return map[string]any{
		"product_id": p.ID,
		"changes":    changed,
	}, nil
}

func (s *DatabaseServer) getSchema(req *Request) (map[string]any, error) {
	schema := s.store.Schema()
	tables := make(map[string]any, len(schema))
	for table, columns := range schema {
		tables[table] = columns
	}
	return map[string]any{"tables": tables}, nil
}

func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return s
}

func boolParam(params map[string]any, key string) bool {
	b, _ := params[key].(bool)
	return b
}

func floatParam(params map[string]any, key string) float64 {
	switch v := params[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
