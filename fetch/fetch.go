package fetch

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"shop-scraper/models"
	"shop-scraper/utils"
)

const userAgent = "ShopScraper/1.0 (Educational Project)"

// Result is the outcome of a successful GET: status, headers and body are all
// needed by platform detection.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client issues GET requests with retry/backoff, a fixed timeout and a polite
// delay between requests. It keeps cumulative request counters for the
// performance summary. Safe for concurrent use.
type Client struct {
	http        *http.Client
	retry       *utils.RetryConfig
	logger      *utils.Logger
	politeDelay time.Duration

	mu          sync.Mutex
	total       int
	successful  int
	lastRequest time.Time
	startTime   time.Time
}

// NewClient creates a Client with the given timeout and retry policy.
func NewClient(timeout time.Duration, maxRetries int, logger *utils.Logger) *Client {
	return &Client{
		http: &http.Client{Timeout: timeout},
		retry: &utils.RetryConfig{
			MaxAttempts: maxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
		logger:      logger,
		politeDelay: time.Second,
		startTime:   time.Now(),
	}
}

// Get fetches the URL, retrying transient failures (connection errors,
// timeouts, non-2xx statuses). Exhausted retries return an error that callers
// treat as "no data for this page", never as a fatal condition.
func (c *Client) Get(url string) (*Result, error) {
	c.mu.Lock()
	c.total++
	c.mu.Unlock()

	c.waitPolite()

	var result *Result
	err := c.retry.Do(fmt.Sprintf("GET %s", url), func() error {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			// Drain so the connection can be reused.
			io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}

		result = &Result{
			StatusCode: resp.StatusCode,
			Header:     resp.Header,
			Body:       body,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.successful++
	c.mu.Unlock()
	return result, nil
}

// GetJSON fetches the URL and decodes the JSON body into v.
func (c *Client) GetJSON(url string, v any) error {
	result, err := c.Get(url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(result.Body, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// Stats returns a snapshot of the cumulative request counters.
func (c *Client) Stats() models.PerformanceStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := time.Since(c.startTime)
	stats := models.PerformanceStats{
		TotalRequests:      c.total,
		SuccessfulRequests: c.successful,
		Elapsed:            elapsed,
	}
	if c.total > 0 {
		stats.SuccessRate = utils.Round2(float64(c.successful) / float64(c.total) * 100)
	}
	if secs := elapsed.Seconds(); secs > 0 {
		stats.RequestsPerSecond = utils.Round2(float64(c.total) / secs)
	}
	return stats
}

// SetPoliteDelay overrides the delay inserted between consecutive requests.
// Tests set it to zero.
func (c *Client) SetPoliteDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.politeDelay = d
}

func (c *Client) waitPolite() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.politeDelay <= 0 {
		return
	}
	if elapsed := time.Since(c.lastRequest); elapsed < c.politeDelay {
		time.Sleep(c.politeDelay - elapsed)
	}
	c.lastRequest = time.Now()
}
