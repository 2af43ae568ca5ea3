package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Scraping
	StoreURLs       []string
	PlatformHint    string
	Category        string
	ProductsPerSite int
	MaxConcurrency  int
	RateLimitMs     int
	MaxRetries      int
	RequestTimeoutS int

	// Ranking
	TopK            int
	MinPrice        float64
	WeightAvailable float64
	WeightInventory float64
	WeightImage     float64
	WeightPrice     float64

	// Surveillance
	SurveillanceHours int

	CSVOutputPath  string
	JSONOutputPath string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "shop_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		StoreURLs:       getEnvList("STORE_URLS", []string{"https://www.allbirds.com"}),
		PlatformHint:    getEnv("PLATFORM_HINT", ""),
		Category:        getEnv("CATEGORY", ""),
		ProductsPerSite: getEnvInt("PRODUCTS_PER_SITE", 100),
		MaxConcurrency:  getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:     getEnvInt("RATE_LIMIT_MS", 1000),
		MaxRetries:      getEnvInt("MAX_RETRIES", 3),
		RequestTimeoutS: getEnvInt("REQUEST_TIMEOUT_S", 10),

		TopK:            getEnvInt("TOP_K", 20),
		MinPrice:        getEnvFloat("MIN_PRICE", 0),
		WeightAvailable: getEnvFloat("WEIGHT_AVAILABLE", 0.40),
		WeightInventory: getEnvFloat("WEIGHT_INVENTORY", 0.30),
		WeightImage:     getEnvFloat("WEIGHT_IMAGE", 0.20),
		WeightPrice:     getEnvFloat("WEIGHT_PRICE", 0.10),

		SurveillanceHours: getEnvInt("SURVEILLANCE_HOURS", 0),

		CSVOutputPath:  getEnv("CSV_OUTPUT_PATH", "./output/products.csv"),
		JSONOutputPath: getEnv("JSON_OUTPUT_PATH", "./output/products.json"),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
