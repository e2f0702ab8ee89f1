// Package config содержит логику чтения конфигурации сервиса keyshop.
package config

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации сервиса keyshop.
type Config struct {
	RunAddress    string `env:"RUN_ADDRESS"`
	DatabaseURI   string `env:"DATABASE_URI"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`

	PayPalVerifyAddress string `env:"PAYPAL_VERIFY_ADDRESS"`
	MerchantEmail       string `env:"MERCHANT_EMAIL"`
	CashAppLink         string `env:"CASHAPP_LINK"`

	AdminPassword string `env:"ADMIN_PASSWORD"`
	AuthSecret    string `env:"AUTH_SECRET"`

	SMTPHost string `env:"SMTP_HOST"`
	SMTPPort int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser string `env:"SMTP_USER"`
	SMTPPass string `env:"SMTP_PASS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envVerifyAddress := cfg.PayPalVerifyAddress
	envBaseURL := cfg.PublicBaseURL

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI (empty = in-memory store)")
	flag.StringVar(&cfg.PayPalVerifyAddress, "p", "https://ipnpb.paypal.com/cgi-bin/webscr", "PayPal IPN verification address")
	flag.StringVar(&cfg.PublicBaseURL, "b", "", "public base URL for payment return links")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envVerifyAddress != "" {
		cfg.PayPalVerifyAddress = envVerifyAddress
	}
	if envBaseURL != "" {
		cfg.PublicBaseURL = envBaseURL
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = "http://" + cfg.RunAddress
	}

	return cfg, nil
}
