package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RedisConfig holds Redis connection settings for the admission counter. An
// empty URL selects the in-memory counter.
type RedisConfig struct {
	URL                string
	DialTimeout        *time.Duration
	ReadTimeout        *time.Duration
	WriteTimeout       *time.Duration
	PoolSize           *int
	MinIdleConns       *int
	MaxRetries         *int
	HealthcheckTimeout time.Duration
	EnableOTel         bool
	TLSConfig          *tls.Config
}

// AdmissionConfig names the counter keys, the window they count in and how
// many transactions one seller may start per window.
type AdmissionConfig struct {
	KeyPrefix       string
	Unit            time.Duration
	MaxCountPerUnit int64
}

// GRPCConfig holds the listen address and ingress rate limiting settings.
type GRPCConfig struct {
	Addr              string
	RateLimitInterval time.Duration
	RateLimitBurst    int
}

// ObservabilityConfig holds the HTTP address for the metrics endpoint.
type ObservabilityConfig struct {
	Addr string
}

// KafkaConfig holds the brokers and topics for notifications and alerts. No
// brokers means messages are only logged.
type KafkaConfig struct {
	Brokers           []string
	NotificationTopic string
	AlertTopic        string
}

// TasksConfig holds the background runner settings.
type TasksConfig struct {
	ExportInterval  time.Duration
	ExecuteInterval time.Duration
	ReclaimInterval time.Duration
	ExpireInterval  time.Duration
	StallTimeout    time.Duration
	MaxNumberOfTry  int
	EmailFrom       string
	Names           []string
}

// LoadRedis reads Redis config from env.
func LoadRedis() (RedisConfig, error) {
	cfg := RedisConfig{
		URL: strings.TrimSpace(os.Getenv("REDIS_URL")),
	}

	var err error
	if cfg.DialTimeout, err = optionalDuration("REDIS_DIAL_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.ReadTimeout, err = optionalDuration("REDIS_READ_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.WriteTimeout, err = optionalDuration("REDIS_WRITE_TIMEOUT"); err != nil {
		return cfg, err
	}
	if cfg.PoolSize, err = optionalInt("REDIS_POOL_SIZE"); err != nil {
		return cfg, err
	}
	if cfg.MinIdleConns, err = optionalInt("REDIS_MIN_IDLE_CONNS"); err != nil {
		return cfg, err
	}
	if cfg.MaxRetries, err = optionalInt("REDIS_MAX_RETRIES"); err != nil {
		return cfg, err
	}

	if cfg.HealthcheckTimeout, err = durationOr("REDIS_HEALTHCHECK_TIMEOUT", 2*time.Second); err != nil {
		return cfg, err
	}

	if cfg.EnableOTel, err = optionalBool("REDIS_OTEL"); err != nil {
		return cfg, err
	}

	if cfg.TLSConfig, err = loadRedisTLSFromEnv(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// LoadAdmission reads the admission counter key prefix, window and limit.
func LoadAdmission() (AdmissionConfig, error) {
	cfg := AdmissionConfig{KeyPrefix: stringOr("ADMISSION_KEY_PREFIX", "placeOrder:")}
	var err error
	if cfg.Unit, err = durationOr("ADMISSION_UNIT", time.Minute); err != nil {
		return cfg, err
	}
	if cfg.Unit < time.Second {
		return cfg, errors.New("ADMISSION_UNIT must be at least 1s")
	}
	cfg.MaxCountPerUnit = 50
	limit, err := optionalInt("ADMISSION_MAX_COUNT_PER_UNIT")
	if err != nil {
		return cfg, err
	}
	if limit != nil {
		if *limit <= 0 {
			return cfg, errors.New("ADMISSION_MAX_COUNT_PER_UNIT must be > 0")
		}
		cfg.MaxCountPerUnit = int64(*limit)
	}
	return cfg, nil
}

// LoadGRPC reads the listen address and ingress rate limit settings from env.
func LoadGRPC() (GRPCConfig, error) {
	interval, err := requiredDuration("GRPC_RATE_LIMIT_INTERVAL")
	if err != nil {
		return GRPCConfig{}, err
	}
	burst, err := requiredInt("GRPC_RATE_LIMIT_BURST")
	if err != nil {
		return GRPCConfig{}, err
	}
	return GRPCConfig{
		Addr:              stringOr("GRPC_ADDR", ":50051"),
		RateLimitInterval: interval,
		RateLimitBurst:    burst,
	}, nil
}

// LoadObservability reads metrics HTTP server address from env.
func LoadObservability() (ObservabilityConfig, error) {
	addr, err := requiredString("OBS_ADDR")
	if err != nil {
		return ObservabilityConfig{}, err
	}
	return ObservabilityConfig{Addr: addr}, nil
}

// LoadKafka reads brokers and topics from env.
func LoadKafka() KafkaConfig {
	return KafkaConfig{
		Brokers:           splitList(os.Getenv("KAFKA_BROKERS")),
		NotificationTopic: stringOr("KAFKA_NOTIFICATION_TOPIC", "marquee.notifications"),
		AlertTopic:        stringOr("KAFKA_ALERT_TOPIC", "marquee.alerts"),
	}
}

// LoadTasks reads the background runner settings from env. Unset intervals
// are left zero for the runner defaults.
func LoadTasks() (TasksConfig, error) {
	cfg := TasksConfig{
		EmailFrom: strings.TrimSpace(os.Getenv("TASK_EMAIL_FROM")),
		Names:     splitList(os.Getenv("TASK_NAMES")),
	}
	var err error
	if cfg.ExportInterval, err = durationOr("TASK_EXPORT_INTERVAL", 0); err != nil {
		return cfg, err
	}
	if cfg.ExecuteInterval, err = durationOr("TASK_EXECUTE_INTERVAL", 0); err != nil {
		return cfg, err
	}
	if cfg.ReclaimInterval, err = durationOr("TASK_RECLAIM_INTERVAL", 0); err != nil {
		return cfg, err
	}
	if cfg.ExpireInterval, err = durationOr("TASK_EXPIRE_INTERVAL", 0); err != nil {
		return cfg, err
	}
	if cfg.StallTimeout, err = durationOr("TASK_STALL_TIMEOUT", 0); err != nil {
		return cfg, err
	}
	tries, err := optionalInt("TASK_MAX_NUMBER_OF_TRY")
	if err != nil {
		return cfg, err
	}
	if tries != nil {
		cfg.MaxNumberOfTry = *tries
	}
	return cfg, nil
}

func loadRedisTLSFromEnv() (*tls.Config, error) {
	caFile := strings.TrimSpace(os.Getenv("REDIS_TLS_CA_FILE"))
	certFile := strings.TrimSpace(os.Getenv("REDIS_TLS_CERT_FILE"))
	keyFile := strings.TrimSpace(os.Getenv("REDIS_TLS_KEY_FILE"))
	serverName := strings.TrimSpace(os.Getenv("REDIS_TLS_SERVER_NAME"))
	insecureStr := strings.TrimSpace(os.Getenv("REDIS_TLS_INSECURE_SKIP_VERIFY"))

	if caFile == "" && certFile == "" && keyFile == "" && serverName == "" && insecureStr == "" {
		return nil, nil
	}
	if (certFile == "") != (keyFile == "") {
		return nil, errors.New("REDIS_TLS_CERT_FILE and REDIS_TLS_KEY_FILE must be set together")
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
		ServerName: serverName,
	}

	if insecureStr != "" {
		insecure, err := strconv.ParseBool(insecureStr)
		if err != nil {
			return nil, fmt.Errorf("REDIS_TLS_INSECURE_SKIP_VERIFY: %w", err)
		}
		tlsConfig.InsecureSkipVerify = insecure
	}

	if caFile != "" {
		pemData, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("read REDIS_TLS_CA_FILE: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, errors.New("REDIS_TLS_CA_FILE contains no valid certificates")
		}
		tlsConfig.RootCAs = pool
	}

	if certFile != "" {
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("load redis TLS keypair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

func optionalDuration(name string) (*time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func durationOr(name string, fallback time.Duration) (time.Duration, error) {
	val, err := optionalDuration(name)
	if err != nil || val == nil {
		return fallback, err
	}
	return *val, nil
}

func stringOr(name, fallback string) string {
	if raw := strings.TrimSpace(os.Getenv(name)); raw != "" {
		return raw
	}
	return fallback
}

func splitList(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func optionalInt(name string) (*int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return nil, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return nil, fmt.Errorf("%s must be >= 0", name)
	}
	return &val, nil
}

func optionalBool(name string) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return false, nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return val, nil
}

func requiredString(name string) (string, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return raw, nil
}

func requiredInt(name string) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}

func requiredDuration(name string) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if val < 0 {
		return 0, fmt.Errorf("%s must be >= 0", name)
	}
	return val, nil
}
