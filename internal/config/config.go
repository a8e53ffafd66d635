package config

import (
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

type Config struct {
	Server ServerConfig
	App    AppConfig
	Audit  AuditConfig
}

type ServerConfig struct {
	Port        string
	MaxUploadMB int64
}

type AppConfig struct {
	LogLevel string
}

type AuditConfig struct {
	// Tolerance is the cent-level band inside which a carrier-vs-POS
	// amount difference still counts as a match.
	Tolerance decimal.Decimal
	// RulesFile optionally overrides the built-in audit rule tables.
	RulesFile string
}

func Load() (*Config, error) {
	maxUploadMB, err := strconv.ParseInt(getEnv("MAX_UPLOAD_MB", "64"), 10, 64)
	if err != nil || maxUploadMB <= 0 {
		maxUploadMB = 64
	}

	tolerance, err := decimal.NewFromString(getEnv("AMOUNT_TOLERANCE", "0.01"))
	if err != nil || tolerance.Sign() < 0 {
		tolerance = decimal.New(1, -2)
	}

	return &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			MaxUploadMB: maxUploadMB,
		},
		App: AppConfig{
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Audit: AuditConfig{
			Tolerance: tolerance,
			RulesFile: getEnv("RULES_FILE", ""),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
