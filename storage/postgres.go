package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"shop-scraper/models"
	"shop-scraper/utils"
)

const uniqueViolation = "23505"

// PostgresStore is the ProductStore implementation backed by PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(dsn string, logger *utils.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db, logger: logger.WithPrefix("postgres")}
	if err := ps.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return ps, nil
}

func (ps *PostgresStore) migrate() error {
	_, err := ps.db.Exec(`
		CREATE TABLE IF NOT EXISTS stores (
			id                  SERIAL PRIMARY KEY,
			name                TEXT        NOT NULL DEFAULT '',
			url                 TEXT        UNIQUE NOT NULL,
			domain              TEXT        NOT NULL DEFAULT '',
			active_surveillance BOOLEAN     NOT NULL DEFAULT FALSE,
			created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS products (
			id              SERIAL PRIMARY KEY,
			store_id        INTEGER      NOT NULL REFERENCES stores(id),
			platform        VARCHAR(50)  NOT NULL,
			shopify_id      TEXT         UNIQUE,
			woocommerce_id  TEXT         UNIQUE,
			title           TEXT         NOT NULL,
			handle          TEXT         NOT NULL DEFAULT '',
			url             TEXT         NOT NULL DEFAULT '',
			description     TEXT         NOT NULL DEFAULT '',
			price           NUMERIC(10,2) NOT NULL DEFAULT 0,
			max_price       NUMERIC(10,2) NOT NULL DEFAULT 0,
			currency        VARCHAR(10)  NOT NULL DEFAULT 'USD',
			available       BOOLEAN      NOT NULL DEFAULT FALSE,
			total_inventory INTEGER      NOT NULL DEFAULT 0,
			product_type    TEXT         NOT NULL DEFAULT '',
			vendor          TEXT         NOT NULL DEFAULT '',
			tags            TEXT[]       NOT NULL DEFAULT '{}',
			categories      TEXT[]       NOT NULL DEFAULT '{}',
			image_url       TEXT         NOT NULL DEFAULT '',
			image_count     INTEGER      NOT NULL DEFAULT 0,
			variant_count   INTEGER      NOT NULL DEFAULT 0,
			source_created_at   TIMESTAMPTZ,
			source_updated_at   TIMESTAMPTZ,
			source_published_at TIMESTAMPTZ,
			scraped_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			UNIQUE (store_id, title)
		);

		CREATE INDEX IF NOT EXISTS idx_products_store     ON products(store_id);
		CREATE INDEX IF NOT EXISTS idx_products_platform  ON products(platform);
		CREATE INDEX IF NOT EXISTS idx_products_price     ON products(price);
		CREATE INDEX IF NOT EXISTS idx_products_type      ON products(product_type);
		CREATE INDEX IF NOT EXISTS idx_products_scraped   ON products(scraped_at);

		CREATE TABLE IF NOT EXISTS scraping_logs (
			id            SERIAL PRIMARY KEY,
			store_id      INTEGER     NOT NULL REFERENCES stores(id),
			scraped_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			product_count INTEGER     NOT NULL DEFAULT 0,
			status        VARCHAR(50) NOT NULL,
			error_message TEXT        NOT NULL DEFAULT '',
			duration_ms   BIGINT      NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS product_change_logs (
			id         SERIAL PRIMARY KEY,
			product_id INTEGER     NOT NULL REFERENCES products(id),
			field      TEXT        NOT NULL,
			old_value  TEXT        NOT NULL DEFAULT '',
			new_value  TEXT        NOT NULL DEFAULT '',
			changed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS topk_analyses (
			id              SERIAL PRIMARY KEY,
			name            TEXT        NOT NULL DEFAULT '',
			k               INTEGER     NOT NULL,
			min_price       NUMERIC(10,2) NOT NULL DEFAULT 0,
			category_filter TEXT        NOT NULL DEFAULT '',
			total_analyzed  INTEGER     NOT NULL DEFAULT 0,
			avg_price       NUMERIC(10,2) NOT NULL DEFAULT 0,
			avg_score       NUMERIC(10,2) NOT NULL DEFAULT 0,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS topk_products (
			id            SERIAL PRIMARY KEY,
			analysis_id   INTEGER NOT NULL REFERENCES topk_analyses(id),
			product_id    INTEGER NOT NULL REFERENCES products(id),
			rank_position INTEGER NOT NULL,
			final_score   NUMERIC(10,2) NOT NULL DEFAULT 0,
			UNIQUE (analysis_id, rank_position)
		);
	`)
	return err
}

// GetOrCreateStore resolves a store by URL, creating the row on first sight.
func (ps *PostgresStore) GetOrCreateStore(name, url, domain string) (*models.Store, error) {
	store := &models.Store{Name: name, URL: url, Domain: domain}

	err := ps.db.QueryRow(`
		INSERT INTO stores (name, url, domain)
		VALUES ($1, $2, $3)
		ON CONFLICT (url) DO UPDATE
		SET name   = CASE WHEN EXCLUDED.name   <> '' THEN EXCLUDED.name   ELSE stores.name   END,
		    domain = CASE WHEN EXCLUDED.domain <> '' THEN EXCLUDED.domain ELSE stores.domain END,
		    updated_at = NOW()
		RETURNING id, name, domain, active_surveillance, created_at, updated_at
	`, name, url, domain).Scan(
		&store.ID, &store.Name, &store.Domain,
		&store.ActiveSurveillance, &store.CreatedAt, &store.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: get or create store: %w", err)
	}
	return store, nil
}

// UpsertProduct inserts the product or updates the prior version matched by
// platform id, falling back to (store_id, title). Updates produce one change
// row per differing field. A unique violation on insert gets one
// re-fetch-and-update pass; a record that still conflicts is dropped with a
// warning so the rest of the batch proceeds.
func (ps *PostgresStore) UpsertProduct(p *models.Product) ([]models.FieldChange, error) {
	prior, err := ps.findPrior(p)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		return ps.updateProduct(prior, p)
	}

	if err := ps.insertProduct(p); err == nil {
		return nil, nil
	} else if !isUniqueViolation(err) {
		return nil, err
	}

	// Lost a race or matched an index the lookup missed. One more pass.
	prior, err = ps.findPrior(p)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		ps.logger.Warn("dropping product %q: unresolvable unique conflict", p.Title)
		return nil, nil
	}
	return ps.updateProduct(prior, p)
}

func (ps *PostgresStore) findPrior(p *models.Product) (*models.Product, error) {
	var row *sql.Row
	switch {
	case p.ShopifyID != "":
		row = ps.db.QueryRow(productSelect+" WHERE shopify_id = $1", p.ShopifyID)
	case p.WooCommerceID != "":
		row = ps.db.QueryRow(productSelect+" WHERE woocommerce_id = $1", p.WooCommerceID)
	default:
		row = ps.db.QueryRow(productSelect+" WHERE store_id = $1 AND title = $2", p.StoreID, p.Title)
	}

	prior, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Platform id unseen; the title slot may still be taken.
		if p.ShopifyID != "" || p.WooCommerceID != "" {
			row = ps.db.QueryRow(productSelect+" WHERE store_id = $1 AND title = $2", p.StoreID, p.Title)
			prior, err = scanProduct(row)
			if errors.Is(err, sql.ErrNoRows) {
				return nil, nil
			}
		} else {
			return nil, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find prior product: %w", err)
	}
	return prior, nil
}

// Columns are table-qualified so the same select works joined against
// topk_products.
const productSelect = `
	SELECT products.id, products.store_id, products.platform,
	       COALESCE(products.shopify_id, ''), COALESCE(products.woocommerce_id, ''),
	       products.title, products.handle, products.url, products.description,
	       products.price, products.max_price, products.currency, products.available,
	       products.total_inventory, products.product_type, products.vendor,
	       products.tags, products.categories,
	       products.image_url, products.image_count, products.variant_count,
	       products.source_created_at, products.source_updated_at,
	       products.source_published_at, products.scraped_at
	FROM products`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	p := &models.Product{}
	err := row.Scan(
		&p.ID, &p.StoreID, &p.Platform, &p.ShopifyID, &p.WooCommerceID,
		&p.Title, &p.Handle, &p.URL, &p.Description, &p.Price, &p.MaxPrice,
		&p.Currency, &p.Available, &p.TotalInventory, &p.ProductType, &p.Vendor,
		pq.Array(&p.Tags), pq.Array(&p.Categories),
		&p.ImageURL, &p.ImageCount, &p.VariantCount,
		&p.CreatedAt, &p.UpdatedAt, &p.PublishedAt, &p.ScrapedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (ps *PostgresStore) insertProduct(p *models.Product) error {
	return ps.db.QueryRow(`
		INSERT INTO products (
			store_id, platform, shopify_id, woocommerce_id, title, handle, url,
			description, price, max_price, currency, available, total_inventory,
			product_type, vendor, tags, categories, image_url, image_count,
			variant_count, source_created_at, source_updated_at,
			source_published_at, scraped_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
		RETURNING id
	`,
		p.StoreID, p.Platform, nullableID(p.ShopifyID), nullableID(p.WooCommerceID),
		p.Title, p.Handle, p.URL, p.Description, p.Price, p.MaxPrice, p.Currency,
		p.Available, p.TotalInventory, p.ProductType, p.Vendor,
		pq.Array(p.Tags), pq.Array(p.Categories),
		p.ImageURL, p.ImageCount, p.VariantCount,
		p.CreatedAt, p.UpdatedAt, p.PublishedAt, p.ScrapedAt,
	).Scan(&p.ID)
}

func (ps *PostgresStore) updateProduct(prior *models.Product, p *models.Product) ([]models.FieldChange, error) {
	changes := DiffProducts(prior, p)
	p.ID = prior.ID
	if p.StoreID == 0 {
		p.StoreID = prior.StoreID
	}

	_, err := ps.db.Exec(`
		UPDATE products SET
			title = $1, handle = $2, url = $3, description = $4, price = $5,
			max_price = $6, available = $7, total_inventory = $8,
			product_type = $9, vendor = $10, tags = $11, categories = $12,
			image_url = $13, image_count = $14, variant_count = $15,
			source_updated_at = $16, scraped_at = $17
		WHERE id = $18
	`,
		p.Title, p.Handle, p.URL, p.Description, p.Price, p.MaxPrice,
		p.Available, p.TotalInventory, p.ProductType, p.Vendor,
		pq.Array(p.Tags), pq.Array(p.Categories),
		p.ImageURL, p.ImageCount, p.VariantCount,
		p.UpdatedAt, p.ScrapedAt, p.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: update product %d: %w", p.ID, err)
	}

	for _, c := range changes {
		if _, err := ps.db.Exec(`
			INSERT INTO product_change_logs (product_id, field, old_value, new_value)
			VALUES ($1, $2, $3, $4)
		`, p.ID, c.Field, c.OldValue, c.NewValue); err != nil {
			return nil, fmt.Errorf("postgres: record change log: %w", err)
		}
	}
	return changes, nil
}

// LogScrape records the outcome of one scrape pass against a store.
func (ps *PostgresStore) LogScrape(log *models.ScrapeLog) error {
	err := ps.db.QueryRow(`
		INSERT INTO scraping_logs (store_id, product_count, status, error_message, duration_ms)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, scraped_at
	`, log.StoreID, log.ProductCount, log.Status, log.ErrorMessage,
		log.Duration.Milliseconds(),
	).Scan(&log.ID, &log.ScrapedAt)
	if err != nil {
		return fmt.Errorf("postgres: log scrape: %w", err)
	}
	return nil
}

// SaveAnalysis persists a Top-K snapshot and its ranked product rows.
func (ps *PostgresStore) SaveAnalysis(result *models.AnalysisResult) error {
	err := ps.db.QueryRow(`
		INSERT INTO topk_analyses (name, k, min_price, category_filter, total_analyzed, avg_price, avg_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, result.Name, result.K, result.MinPrice, result.CategoryFilter,
		result.Stats.TotalAnalyzed, result.Stats.AvgPrice, result.Stats.AvgScore,
	).Scan(&result.ID, &result.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: save analysis: %w", err)
	}

	for _, rp := range result.Products {
		if rp.ID == 0 {
			// Product never made it into the products table; skip the link row.
			continue
		}
		if _, err := ps.db.Exec(`
			INSERT INTO topk_products (analysis_id, product_id, rank_position, final_score)
			VALUES ($1, $2, $3, $4)
		`, result.ID, rp.ID, rp.RankPosition, rp.FinalScore); err != nil {
			return fmt.Errorf("postgres: save ranked product: %w", err)
		}
	}
	return nil
}

// LoadAnalysis returns the most recent saved analysis with its ranked
// products, or nil when none exists.
func (ps *PostgresStore) LoadAnalysis() (*models.AnalysisResult, error) {
	result := &models.AnalysisResult{}
	err := ps.db.QueryRow(`
		SELECT id, name, k, min_price, category_filter, total_analyzed, avg_price, avg_score, created_at
		FROM topk_analyses
		ORDER BY created_at DESC
		LIMIT 1
	`).Scan(
		&result.ID, &result.Name, &result.K, &result.MinPrice, &result.CategoryFilter,
		&result.Stats.TotalAnalyzed, &result.Stats.AvgPrice, &result.Stats.AvgScore,
		&result.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: load analysis: %w", err)
	}

	rows, err := ps.db.Query(productSelect+`
		JOIN topk_products tp ON tp.product_id = products.id
		WHERE tp.analysis_id = $1
		ORDER BY tp.rank_position
	`, result.ID)
	if err != nil {
		return nil, fmt.Errorf("postgres: load ranked products: %w", err)
	}
	defer rows.Close()

	position := 0
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan ranked product: %w", err)
		}
		position++
		result.Products = append(result.Products, &models.RankedProduct{
			Product:      p,
			RankPosition: position,
		})
	}
	result.Stats.TopKCount = len(result.Products)
	return result, rows.Err()
}

// FetchProducts returns up to limit stored products, most recently scraped
// first. A limit <= 0 means no cap.
func (ps *PostgresStore) FetchProducts(limit int) ([]*models.Product, error) {
	query := productSelect + " ORDER BY scraped_at DESC"
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = ps.db.Query(query+" LIMIT $1", limit)
	} else {
		rows, err = ps.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// Schema describes the stored tables and their columns, for introspection
// through the database server.
func (ps *PostgresStore) Schema() map[string][]string {
	return map[string][]string{
		"stores": {"id", "name", "url", "domain", "active_surveillance", "created_at", "updated_at"},
		"products": {
			"id", "store_id", "platform", "shopify_id", "woocommerce_id", "title",
			"handle", "url", "description", "price", "max_price", "currency",
			"available", "total_inventory", "product_type", "vendor", "tags",
			"categories", "image_url", "image_count", "variant_count",
			"source_created_at", "source_updated_at", "source_published_at", "scraped_at",
		},
		"scraping_logs":       {"id", "store_id", "scraped_at", "product_count", "status", "error_message", "duration_ms"},
		"product_change_logs": {"id", "product_id", "field", "old_value", "new_value", "changed_at"},
		"topk_analyses":       {"id", "name", "k", "min_price", "category_filter", "total_analyzed", "avg_price", "avg_score", "created_at"},
		"topk_products":       {"id", "analysis_id", "product_id", "rank_position", "final_score"},
	}
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// nullableID maps an empty platform id to NULL so the partial uniqueness of
// shopify_id/woocommerce_id only applies to rows that actually carry one.
func nullableID(id string) any {
	if id == "" {
		return nil
	}
	return id
}
