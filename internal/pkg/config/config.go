package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// atomicUSDCUnits is the number of atomic units per USDC (6 decimals).
const atomicUSDCUnits = 1_000_000

// Config holds all application configuration.
type Config struct {
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	ServerAddr         string        `env:"SERVER_ADDR" envDefault:":8080"`
	AdminAddr          string        `env:"ADMIN_ADDR" envDefault:":9091"`
	ScopeID            string        `env:"DASHBOARD_ID" envDefault:"paywatch_demo_001"`
	StoreBackend       string        `env:"STORE_BACKEND" envDefault:"memory"` // memory | redis
	StoreMaxEvents     int           `env:"STORE_MAX_EVENTS" envDefault:"50000"`
	RedisAddr          string        `env:"REDIS_ADDR"`
	PostgresURL        string        `env:"POSTGRES_URL"`
	AlertWebhookURL    string        `env:"ALERT_WEBHOOK_URL"`
	AlertRatePerMin    int           `env:"ALERT_RATE_PER_MIN" envDefault:"30"`
	IngestQueueSize    int           `env:"INGEST_QUEUE_SIZE" envDefault:"1024"`
	RecentLimit        int           `env:"RECENT_LIMIT" envDefault:"50"`
	SubscriptionWindow time.Duration `env:"SUBSCRIPTION_WINDOW" envDefault:"5m"`
	RoutePrices        string        `env:"ROUTE_PRICES" envDefault:"/api/premium/weather=1000,/api/premium/quotes=500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// PriceTable parses RoutePrices ("path=atomicPrice,...") into a map of
// endpoint path to per-request USDC price.
func (c *Config) PriceTable() (map[string]float64, error) {
	prices := make(map[string]float64)
	if strings.TrimSpace(c.RoutePrices) == "" {
		return prices, nil
	}

	for _, pair := range strings.Split(c.RoutePrices, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		path, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid route price entry %q", pair)
		}
		atomic, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || atomic < 0 {
			return nil, fmt.Errorf("invalid atomic price in entry %q", pair)
		}
		prices[strings.TrimSpace(path)] = float64(atomic) / atomicUSDCUnits
	}
	return prices, nil
}
