package router

// AnalyzerClient wraps a Client with typed convenience calls for the
// analysis workflow.
type AnalyzerClient struct {
	*Client
}

// NewAnalyzerClient registers an analyzer client on the host.
func NewAnalyzerClient(host *Host, name string) *AnalyzerClient {
	return &AnalyzerClient{Client: host.RegisterClient(name)}
}

// ScrapeStore requests a scrape of a single store.
func (c *AnalyzerClient) ScrapeStore(siteURL, platformHint string, limit int) Response {
	return c.MakeRequest("scrape_store", map[string]any{
		"url":      siteURL,
		"platform": platformHint,
		"limit":    limit,
	})
}

// BatchScrape requests a scrape of several stores in one call.
func (c *AnalyzerClient) BatchScrape(siteURLs []string, limit int) Response {
	return c.MakeRequest("batch_scrape", map[string]any{
		"urls":  siteURLs,
		"limit": limit,
	})
}

// ScrapeStatus fetches the scraping server's run history.
func (c *AnalyzerClient) ScrapeStatus() Response {
	return c.MakeRequest("get_status", nil)
}

// QueryData fetches stored products through the database server.
func (c *AnalyzerClient) QueryData(limit int) Response {
	return c.MakeRequest("query_data", map[string]any{"limit": limit})
}

// Schema fetches the stored table layout.
func (c *AnalyzerClient) Schema() Response {
	return c.MakeRequest("get_schema", nil)
}
