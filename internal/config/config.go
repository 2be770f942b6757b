// Package config handles loading and validating configuration from
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"solana-copytrade/internal/escrow"
)

// Config holds all configuration values for the copy-trading service.
type Config struct {
	// Solana
	RPCEndpoint string
	WSEndpoint  string

	// Custodial wallet
	AIWallet        string
	SignerEndpoint  string // transfer signer sidecar
	SwapEndpoint    string // swap aggregator
	PriceEndpoint   string // spot price quotes
	MinReserveSOL   float64
	RPCRateLimit    int // requests per second against the RPC node
	RPCBurst        int
	ConfirmAttempts int
	ConfirmDelay    time.Duration

	// Escrow
	LockPeriodDays int

	// Storage
	PostgresDSN   string
	ClickHouseDSN string

	// HTTP
	ListenAddr string

	// Feed
	PingInterval time.Duration
}

// Load reads configuration from environment variables with fallback to a
// .env file. Environment variables win over the file; defaults fill the
// rest.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		RPCEndpoint: getEnv("SOLANA_RPC_ENDPOINT", "https://api.mainnet-beta.solana.com"),
		WSEndpoint:  getEnv("SOLANA_WS_ENDPOINT", "wss://api.mainnet-beta.solana.com"),

		AIWallet:        getEnv("AI_WALLET", ""),
		SignerEndpoint:  getEnv("SIGNER_ENDPOINT", "http://localhost:8091"),
		SwapEndpoint:    getEnv("SWAP_ENDPOINT", "http://localhost:8092"),
		PriceEndpoint:   getEnv("PRICE_ENDPOINT", "http://localhost:8093"),
		MinReserveSOL:   getEnvFloat("MIN_RESERVE_SOL", 0.01),
		RPCRateLimit:    getEnvInt("RPC_RATE_LIMIT", 10),
		RPCBurst:        getEnvInt("RPC_BURST", 10),
		ConfirmAttempts: getEnvInt("CONFIRM_ATTEMPTS", 5),
		ConfirmDelay:    time.Duration(getEnvInt("CONFIRM_DELAY_SECONDS", 2)) * time.Second,

		LockPeriodDays: getEnvInt("LOCK_PERIOD_DAYS", escrow.DefaultLockPeriodDays),

		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		ClickHouseDSN: getEnv("CLICKHOUSE_DSN", ""),

		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		PingInterval: time.Duration(getEnvInt("FEED_PING_SECONDS", 30)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that required configuration values are set and valid.
func (c *Config) Validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("SOLANA_RPC_ENDPOINT is required")
	}
	if c.WSEndpoint == "" {
		return fmt.Errorf("SOLANA_WS_ENDPOINT is required")
	}
	if c.MinReserveSOL < 0 {
		return fmt.Errorf("MIN_RESERVE_SOL must not be negative")
	}
	if c.RPCRateLimit < 1 {
		return fmt.Errorf("RPC_RATE_LIMIT must be at least 1")
	}
	if c.ConfirmAttempts < 1 {
		return fmt.Errorf("CONFIRM_ATTEMPTS must be at least 1")
	}
	if c.LockPeriodDays < 1 {
		return fmt.Errorf("LOCK_PERIOD_DAYS must be at least 1")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer or returns a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat retrieves an environment variable as a float64 or returns a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
