package scraper

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"shop-scraper/models"
	"shop-scraper/utils"
)

// Agent is the capability set every platform scraper implements. Variants
// (Shopify, WooCommerce, future platforms) are independent types selected by
// the registry; the rest of the pipeline never branches on platform.
type Agent interface {
	// Platform returns the platform tag ("shopify", "woocommerce").
	Platform() string

	// DetectPlatform runs a small fixed sequence of signature checks and
	// returns true on the first positive signal. A failed fetch counts as
	// "not detected", never an error.
	DetectPlatform() bool

	// ScrapeProducts paginates the listing endpoint and returns up to limit
	// normalized products. Exhausted retries or malformed listings degrade
	// gracefully; the returned error is reserved for configuration problems.
	ScrapeProducts(limit int) ([]*models.Product, error)

	// ExtractProductDetails merges fields for a single listing from embedded
	// product JSON, linked data and CSS fallbacks, in that priority order.
	ExtractProductDetails(productURL string) (*models.Product, error)

	// Stats returns the agent's cumulative HTTP performance counters.
	Stats() models.PerformanceStats
}

// Options configure a platform agent.
type Options struct {
	Category    string
	Timeout     time.Duration
	MaxRetries  int
	PoliteDelay time.Duration
	Logger      *utils.Logger

	// Platform credentials, all optional.
	APIKey         string // Shopify access token
	ConsumerKey    string // WooCommerce
	ConsumerSecret string // WooCommerce
}

func (o Options) WithDefaults() Options {
	if o.Timeout == 0 {
		o.Timeout = 10 * time.Second
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.PoliteDelay == 0 {
		o.PoliteDelay = time.Second
	}
	if o.Logger == nil {
		o.Logger = utils.NewLogger()
	}
	return o
}

// Constructor builds a platform agent for a site.
type Constructor func(siteURL string, opts Options) Agent

type registration struct {
	platform string
	ctor     Constructor
}

var (
	registryMu sync.Mutex
	registry   []registration
)

// Register adds a platform constructor to the registry. Registration order is
// also the auto-detection order. Platform packages register themselves from
// init, driver-style.
func Register(platform string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, r := range registry {
		if r.platform == platform {
			panic(fmt.Sprintf("scraper: duplicate platform registration %q", platform))
		}
	}
	registry = append(registry, registration{platform: platform, ctor: ctor})
}

// Platforms returns the registered platform tags in registration order.
func Platforms() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	out := make([]string, len(registry))
	for i, r := range registry {
		out[i] = r.platform
	}
	return out
}

// New creates the agent matching the given site. When platformHint names a
// registered platform it is tried first; otherwise every registered platform
// is probed in registration order and the first whose DetectPlatform returns
// true wins. A nil agent with an error means no platform matched.
func New(siteURL, platformHint string, opts Options) (Agent, error) {
	opts = opts.WithDefaults()
	cleaned := CleanSiteURL(siteURL)

	registryMu.Lock()
	candidates := append([]registration(nil), registry...)
	registryMu.Unlock()

	if platformHint != "" {
		hint := strings.ToLower(platformHint)
		for _, r := range candidates {
			if r.platform != hint {
				continue
			}
			agent := r.ctor(cleaned, opts)
			if agent.DetectPlatform() {
				opts.Logger.Info("[factory] created %s agent for %s via hint", hint, cleaned)
				return agent, nil
			}
			opts.Logger.Warn("[factory] platform hint %q did not match %s, falling back to auto-detection", hint, cleaned)
		}
	}

	for _, r := range candidates {
		agent := r.ctor(cleaned, opts)
		if agent.DetectPlatform() {
			opts.Logger.Info("[factory] auto-detected platform %s for %s", r.platform, cleaned)
			return agent, nil
		}
	}

	return nil, fmt.Errorf("no compatible agent found for site: %s", cleaned)
}

// CleanSiteURL normalizes a store address: scheme added when missing,
// trailing slash removed.
func CleanSiteURL(siteURL string) string {
	siteURL = strings.TrimSpace(siteURL)
	if siteURL != "" && !strings.HasPrefix(siteURL, "http://") && !strings.HasPrefix(siteURL, "https://") {
		siteURL = "https://" + siteURL
	}
	return strings.TrimRight(siteURL, "/")
}
