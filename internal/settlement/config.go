package settlement

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ReliabilityConfig tunes the guard placed in front of each back-end.
type ReliabilityConfig struct {
	RetryMaxAttempts    int
	RetryBaseDelay      time.Duration
	RetryMaxDelay       time.Duration
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration
	RateLimitInterval   time.Duration
	RateLimitBurst      int
}

// DefaultReliabilityConfig is used when ORDER_* variables are absent.
func DefaultReliabilityConfig() ReliabilityConfig {
	return ReliabilityConfig{
		RetryMaxAttempts:    3,
		RetryBaseDelay:      100 * time.Millisecond,
		RetryMaxDelay:       time.Second,
		BreakerMaxFailures:  5,
		BreakerResetTimeout: 10 * time.Second,
		RateLimitInterval:   10 * time.Millisecond,
		RateLimitBurst:      50,
	}
}

// LoadReliabilityConfigFromEnv overrides the defaults with any ORDER_*
// variables that are set.
func LoadReliabilityConfigFromEnv() (ReliabilityConfig, error) {
	cfg := DefaultReliabilityConfig()
	var err error

	if cfg.RetryMaxAttempts, err = parseOptionalInt("ORDER_RETRY_MAX_ATTEMPTS", cfg.RetryMaxAttempts); err != nil {
		return cfg, err
	}
	if cfg.RetryBaseDelay, err = parseOptionalDuration("ORDER_RETRY_BASE_DELAY", cfg.RetryBaseDelay); err != nil {
		return cfg, err
	}
	if cfg.RetryMaxDelay, err = parseOptionalDuration("ORDER_RETRY_MAX_DELAY", cfg.RetryMaxDelay); err != nil {
		return cfg, err
	}
	if cfg.BreakerMaxFailures, err = parseOptionalInt("ORDER_BREAKER_MAX_FAILURES", cfg.BreakerMaxFailures); err != nil {
		return cfg, err
	}
	if cfg.BreakerResetTimeout, err = parseOptionalDuration("ORDER_BREAKER_RESET_TIMEOUT", cfg.BreakerResetTimeout); err != nil {
		return cfg, err
	}
	if cfg.RateLimitInterval, err = parseOptionalDuration("ORDER_RATE_LIMIT_INTERVAL", cfg.RateLimitInterval); err != nil {
		return cfg, err
	}
	if cfg.RateLimitBurst, err = parseOptionalInt("ORDER_RATE_LIMIT_BURST", cfg.RateLimitBurst); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func parseOptionalDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, errors.New(name + " must be >= 0")
	}
	return val, nil
}

func parseOptionalInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, errors.New(name + " must be >= 0")
	}
	return val, nil
}
