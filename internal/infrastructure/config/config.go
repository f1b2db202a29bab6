package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	ServiceName string
	Env         string
	HTTPAddr    string
	// APIKey guards the HTTP API. Empty disables the check.
	APIKey string

	LogLevel string
	LogFile  string

	HoldTimeout        time.Duration
	PaymentLatency     time.Duration
	PaymentSuccessRate float64
	PaymentMaxAmount   decimal.Decimal

	LedgerRetryBase  time.Duration
	LedgerRetryMax   time.Duration
	LedgerAlertAfter int

	IdempotencyTTL       time.Duration
	AutoScheduleDelivery bool

	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers []string
	KafkaTopic   string

	// CatalogFile is a YAML seed; empty uses DefaultSeed.
	CatalogFile string
}

// Load reads an optional .env file and then the environment. Unset variables
// take their defaults; malformed ones are reported together.
func Load() (Config, error) {
	_ = godotenv.Load()

	p := parser{}
	cfg := Config{
		ServiceName: getenvDefault("SERVICE_NAME", "minishop-orders"),
		Env:         getenvDefault("ENV", "dev"),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		APIKey:      os.Getenv("API_KEY"),

		LogLevel: getenvDefault("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),

		HoldTimeout:        p.duration("PAYMENT_HOLD_TIMEOUT", 5*time.Second),
		PaymentLatency:     p.duration("PAYMENT_LATENCY", 50*time.Millisecond),
		PaymentSuccessRate: p.float("PAYMENT_SUCCESS_RATE", 1),
		PaymentMaxAmount:   p.decimal("PAYMENT_MAX_AMOUNT", decimal.NewFromInt(10000)),

		LedgerRetryBase:  p.duration("LEDGER_RETRY_BASE", 50*time.Millisecond),
		LedgerRetryMax:   p.duration("LEDGER_RETRY_MAX", 5*time.Second),
		LedgerAlertAfter: p.int("LEDGER_ALERT_AFTER", 5),

		IdempotencyTTL:       p.duration("IDEMPOTENCY_TTL", 24*time.Hour),
		AutoScheduleDelivery: p.bool("AUTO_SCHEDULE_DELIVERY", false),

		PostgresDSN:  os.Getenv("POSTGRES_DSN"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitCSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getenvDefault("KAFKA_TOPIC", "minishop.events"),

		CatalogFile: os.Getenv("CATALOG_FILE"),
	}
	if cfg.PaymentSuccessRate < 0 || cfg.PaymentSuccessRate > 1 {
		p.errs = append(p.errs, fmt.Errorf("PAYMENT_SUCCESS_RATE: %v is outside [0,1]", cfg.PaymentSuccessRate))
	}
	if err := errors.Join(p.errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// parser collects every malformed variable instead of stopping at the first.
type parser struct{ errs []error }

func (p *parser) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (p *parser) fail(key, raw string, err error) {
	p.errs = append(p.errs, fmt.Errorf("%s=%q: %w", key, raw, err))
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw, ok := p.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return d
}

func (p *parser) int(key string, def int) int {
	raw, ok := p.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	raw, ok := p.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return f
}

func (p *parser) bool(key string, def bool) bool {
	raw, ok := p.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return b
}

func (p *parser) decimal(key string, def decimal.Decimal) decimal.Decimal {
	raw, ok := p.lookup(key)
	if !ok {
		return def
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return d
}
