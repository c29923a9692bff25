package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int

	// Engine defaults, used when a match is created without explicit
	// configuration. Per-match values are snapshotted on the match row
	// and immutable once the match starts.
	DefaultTotalRounds          int
	DefaultRoundDurationSeconds int
	DefaultAssessorCount        int

	// CommitLockWait bounds how long a request may wait for a match's
	// commit path before failing with a retryable timeout.
	CommitLockWait time.Duration

	// Cloudflare R2 (match report export).
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string
}

// Load reads configuration from environment variables. A .env file is
// loaded when present; its absence is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	totalRounds, err := intEnv("DEFAULT_TOTAL_ROUNDS", 3)
	if err != nil {
		return nil, err
	}
	roundDuration, err := intEnv("DEFAULT_ROUND_DURATION_SECONDS", 90)
	if err != nil {
		return nil, err
	}
	assessorCount, err := intEnv("DEFAULT_ASSESSOR_COUNT", 5)
	if err != nil {
		return nil, err
	}
	lockWaitMs, err := intEnv("COMMIT_LOCK_WAIT_MS", 2000)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:                 dbURL,
		JWTSecretKey:                jwtKey,
		ServerPort:                  port,
		DefaultTotalRounds:          totalRounds,
		DefaultRoundDurationSeconds: roundDuration,
		DefaultAssessorCount:        assessorCount,
		CommitLockWait:              time.Duration(lockWaitMs) * time.Millisecond,
		R2AccountID:                 os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:               os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey:           os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:                os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:             os.Getenv("R2_PUBLIC_BASE_URL"),
	}

	return cfg, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return value, nil
}
