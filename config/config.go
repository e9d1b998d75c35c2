// Package config loads engine configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const programStartLayout = "2006-01-02"

// Config is the runtime configuration for the server.
type Config struct {
	Addr            string
	DBPath          string
	Environment     string
	ProgramStart    time.Time // accrual cutoff; no accrual before this date
	AccrualInterval time.Duration
	RunnerEnabled   bool
	AutoApprove     bool
}

// Load reads configuration from environment variables with sensible
// defaults. Flags in cmd/server may override Addr and DBPath.
func Load() Config {
	return Config{
		Addr:            getEnv("APP_ADDR", ":8080"),
		DBPath:          getEnv("DB_PATH", "leave.db"),
		Environment:     getEnv("APP_ENV", "development"),
		ProgramStart:    getEnvDate("ACCRUAL_PROGRAM_START", time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC)),
		AccrualInterval: getEnvDuration("ACCRUAL_INTERVAL", 1*time.Hour),
		RunnerEnabled:   getEnvBool("ACCRUAL_RUNNER_ENABLED", true),
		AutoApprove:     getEnvBool("AUTO_APPROVE", true),
	}
}

// Validate rejects configurations that cannot work.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.ProgramStart.IsZero() {
		return fmt.Errorf("ACCRUAL_PROGRAM_START must be a valid date")
	}
	if c.AccrualInterval < time.Minute {
		return fmt.Errorf("ACCRUAL_INTERVAL must be at least 1m")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDate(key string, fallback time.Time) time.Time {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.Parse(programStartLayout, value)
	if err != nil {
		return fallback
	}
	return parsed
}
