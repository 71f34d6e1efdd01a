package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config carries all runtime settings. Billing rates are explicit values here
// rather than ambient globals so the calculator and penalty engine stay
// deterministic under test.
type Config struct {
	Environment string
	HTTPAddr    string

	DatabaseDSN          string
	DatabaseMaxOpenConns int
	DatabaseMaxIdleConns int

	Billing BillingConfig

	BillingCronSpec string
	PenaltyCronSpec string
}

// BillingConfig holds the rate set applied by the charge calculator and the
// penalty engine.
type BillingConfig struct {
	TaxRate       decimal.Decimal
	SurchargeRate decimal.Decimal
	PenaltyRate   decimal.Decimal
	DueDays       int
	CycleWorkers  int
}

// Load reads configuration from the environment. A .env file is honored when
// present (local development); real deployments set the variables directly.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Environment:          getEnv("TELCOBILL_ENV", "development"),
		HTTPAddr:             getEnv("TELCOBILL_HTTP_ADDR", ":8080"),
		DatabaseDSN:          getEnv("TELCOBILL_DATABASE_DSN", "telcobill.db"),
		DatabaseMaxOpenConns: 25,
		DatabaseMaxIdleConns: 5,
		BillingCronSpec:      getEnv("TELCOBILL_BILLING_CRON", "0 2 1 * *"),
		PenaltyCronSpec:      getEnv("TELCOBILL_PENALTY_CRON", "0 3 * * *"),
	}

	var err error
	if cfg.Billing.TaxRate, err = getRate("TELCOBILL_TAX_RATE", "0.10"); err != nil {
		return Config{}, err
	}
	if cfg.Billing.SurchargeRate, err = getRate("TELCOBILL_SURCHARGE_RATE", "0.02"); err != nil {
		return Config{}, err
	}
	if cfg.Billing.PenaltyRate, err = getRate("TELCOBILL_PENALTY_RATE", "0.05"); err != nil {
		return Config{}, err
	}
	if cfg.Billing.DueDays, err = getInt("TELCOBILL_DUE_DAYS", 15); err != nil {
		return Config{}, err
	}
	if cfg.Billing.CycleWorkers, err = getInt("TELCOBILL_CYCLE_WORKERS", 4); err != nil {
		return Config{}, err
	}

	if err := cfg.Billing.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (b BillingConfig) validate() error {
	for name, rate := range map[string]decimal.Decimal{
		"tax_rate":       b.TaxRate,
		"surcharge_rate": b.SurchargeRate,
		"penalty_rate":   b.PenaltyRate,
	} {
		if rate.IsNegative() {
			return fmt.Errorf("config: %s must not be negative", name)
		}
	}
	if b.DueDays <= 0 {
		return fmt.Errorf("config: due_days must be positive")
	}
	if b.CycleWorkers <= 0 {
		return fmt.Errorf("config: cycle_workers must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getRate(key, fallback string) (decimal.Decimal, error) {
	raw := getEnv(key, fallback)
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("config: invalid %s %q", key, raw)
	}
	return rate, nil
}

func getInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q", key, raw)
	}
	return value, nil
}

// IsProduction reports whether the process runs with production settings.
func (c Config) IsProduction() bool {
	return c.Environment == "production"
}
