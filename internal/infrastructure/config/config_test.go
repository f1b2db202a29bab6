package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	domcatalog "github.com/Zhima-Mochi/minishop-orders/internal/domain/catalog"

	"github.com/shopspring/decimal"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, k := range []string{"SERVICE_NAME", "HTTP_ADDR", "PAYMENT_HOLD_TIMEOUT", "KAFKA_BROKERS", "AUTO_SCHEDULE_DELIVERY", "PAYMENT_MAX_AMOUNT"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServiceName != "minishop-orders" || cfg.HTTPAddr != ":8080" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.HoldTimeout != 5*time.Second {
		t.Fatalf("HoldTimeout = %v", cfg.HoldTimeout)
	}
	if len(cfg.KafkaBrokers) != 0 || cfg.AutoScheduleDelivery {
		t.Fatalf("optional integrations enabled by default: %+v", cfg)
	}
	if !cfg.PaymentMaxAmount.Equal(decimal.NewFromInt(10000)) {
		t.Fatalf("PaymentMaxAmount = %s", cfg.PaymentMaxAmount)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PAYMENT_HOLD_TIMEOUT", "750ms")
	t.Setenv("PAYMENT_SUCCESS_RATE", "0.25")
	t.Setenv("LEDGER_ALERT_AFTER", "3")
	t.Setenv("AUTO_SCHEDULE_DELIVERY", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HoldTimeout != 750*time.Millisecond || cfg.PaymentSuccessRate != 0.25 || cfg.LedgerAlertAfter != 3 {
		t.Fatalf("cfg = %+v", cfg)
	}
	if !cfg.AutoScheduleDelivery {
		t.Fatal("AutoScheduleDelivery = false")
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "k2:9092" {
		t.Fatalf("KafkaBrokers = %q", cfg.KafkaBrokers)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HTTP_ADDR", "")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("HTTP_ADDR=:9999\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv does not override variables already set, so unset the empty one.
	os.Unsetenv("HTTP_ADDR")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
}

func TestLoadReportsEveryMalformedValue(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PAYMENT_HOLD_TIMEOUT", "soon")
	t.Setenv("LEDGER_ALERT_AFTER", "many")
	t.Setenv("PAYMENT_SUCCESS_RATE", "2")

	_, err := Load()
	if err == nil {
		t.Fatal("Load succeeded with malformed values")
	}
	for _, key := range []string{"PAYMENT_HOLD_TIMEOUT", "LEDGER_ALERT_AFTER", "PAYMENT_SUCCESS_RATE"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
}

func TestLoadSeedDefault(t *testing.T) {
	seed, err := LoadSeed("")
	if err != nil {
		t.Fatal(err)
	}
	products, err := Products(seed)
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 3 {
		t.Fatalf("len = %d", len(products))
	}
	if !products[1].Price.Equal(decimal.RequireFromString("89.99")) || products[1].Stock != 3 {
		t.Fatalf("products[1] = %+v", products[1])
	}
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	body := `products:
  - id: "B1"
    name: Dune
    author: Frank Herbert
    price: "14.99"
    stock: 4
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	seed, err := LoadSeed(path)
	if err != nil {
		t.Fatal(err)
	}
	products, err := Products(seed)
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 1 || products[0].ID != "B1" || products[0].Stock != 4 {
		t.Fatalf("products = %+v", products)
	}
}

func TestProductsRejectsBadSeed(t *testing.T) {
	cases := []struct {
		name string
		seed []SeedProduct
		want error
	}{
		{"duplicate", []SeedProduct{{ID: "A", Price: "1"}, {ID: "A", Price: "1"}}, domcatalog.ErrDuplicateProduct},
		{"negative price", []SeedProduct{{ID: "A", Price: "-1"}}, domcatalog.ErrInvalidPrice},
		{"negative stock", []SeedProduct{{ID: "A", Price: "1", Stock: -1}}, domcatalog.ErrInvalidQuantity},
		{"missing id", []SeedProduct{{Price: "1"}}, domcatalog.ErrInvalidProduct},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Products(tc.seed); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
	if _, err := Products([]SeedProduct{{ID: "A", Price: "cheap"}}); err == nil {
		t.Fatal("unparseable price accepted")
	}
}
