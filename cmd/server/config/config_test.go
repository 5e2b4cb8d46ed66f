package config

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadGRPC(t *testing.T) {
	t.Setenv("GRPC_RATE_LIMIT_INTERVAL", "5ms")
	t.Setenv("GRPC_RATE_LIMIT_BURST", "10")

	cfg, err := LoadGRPC()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RateLimitInterval != 5*time.Millisecond || cfg.RateLimitBurst != 10 {
		t.Fatalf("unexpected grpc cfg: %+v", cfg)
	}
	if cfg.Addr != ":50051" {
		t.Fatalf("unexpected default addr: %q", cfg.Addr)
	}
}

func TestLoadObservability(t *testing.T) {
	t.Setenv("OBS_ADDR", ":9999")

	cfg, err := LoadObservability()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Addr != ":9999" {
		t.Fatalf("unexpected observability addr: %+v", cfg)
	}
}

func TestLoadRedis(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_HEALTHCHECK_TIMEOUT", "3s")

	cfg, err := LoadRedis()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.URL != "redis://localhost:6379/0" {
		t.Fatalf("unexpected redis url: %s", cfg.URL)
	}
	if cfg.HealthcheckTimeout != 3*time.Second {
		t.Fatalf("unexpected healthcheck timeout: %v", cfg.HealthcheckTimeout)
	}
}

func TestLoadRedis_WithOptionalFields(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_DIAL_TIMEOUT", "3s")
	t.Setenv("REDIS_READ_TIMEOUT", "4s")
	t.Setenv("REDIS_WRITE_TIMEOUT", "5s")
	t.Setenv("REDIS_POOL_SIZE", "9")
	t.Setenv("REDIS_MIN_IDLE_CONNS", "2")
	t.Setenv("REDIS_MAX_RETRIES", "3")
	t.Setenv("REDIS_OTEL", "true")

	cfg, err := LoadRedis()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DialTimeout == nil || *cfg.DialTimeout != 3*time.Second {
		t.Fatalf("unexpected dial timeout: %v", cfg.DialTimeout)
	}
	if cfg.ReadTimeout == nil || *cfg.ReadTimeout != 4*time.Second {
		t.Fatalf("unexpected read timeout: %v", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout == nil || *cfg.WriteTimeout != 5*time.Second {
		t.Fatalf("unexpected write timeout: %v", cfg.WriteTimeout)
	}
	if cfg.PoolSize == nil || *cfg.PoolSize != 9 {
		t.Fatalf("unexpected pool size: %v", cfg.PoolSize)
	}
	if cfg.MinIdleConns == nil || *cfg.MinIdleConns != 2 {
		t.Fatalf("unexpected min idle: %v", cfg.MinIdleConns)
	}
	if cfg.MaxRetries == nil || *cfg.MaxRetries != 3 {
		t.Fatalf("unexpected max retries: %v", cfg.MaxRetries)
	}
	if !cfg.EnableOTel {
		t.Fatalf("expected otel enabled")
	}
}

func TestLoadGRPCMissingEnv(t *testing.T) {
	t.Setenv("GRPC_RATE_LIMIT_INTERVAL", "")
	if _, err := LoadGRPC(); err == nil {
		t.Fatalf("expected error for missing interval")
	}
}

func TestLoadRedis_MissingURLSelectsMemory(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	cfg, err := LoadRedis()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.URL != "" || cfg.HealthcheckTimeout != 2*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadRedisTLS_NoSettingsReturnsNil(t *testing.T) {
	if cfg, err := loadRedisTLSFromEnv(); err != nil || cfg != nil {
		t.Fatalf("expected nil tls config, got %#v err %v", cfg, err)
	}
}

func TestLoadRedisTLS_MismatchedKeyPair(t *testing.T) {
	t.Setenv("REDIS_TLS_CERT_FILE", "cert")
	if _, err := loadRedisTLSFromEnv(); err == nil {
		t.Fatalf("expected cert/key mismatch error")
	}
}

func TestLoadRedisTLS_InvalidInsecureFlag(t *testing.T) {
	t.Setenv("REDIS_TLS_INSECURE_SKIP_VERIFY", "notabool")
	if _, err := loadRedisTLSFromEnv(); err == nil {
		t.Fatalf("expected parse bool error")
	}
}

func TestLoadRedisTLS_InsecureTrue(t *testing.T) {
	t.Setenv("REDIS_TLS_INSECURE_SKIP_VERIFY", "true")
	cfg, err := loadRedisTLSFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg == nil || !cfg.InsecureSkipVerify {
		t.Fatalf("expected insecure tls config, got %#v", cfg)
	}
}

func TestLoadRedisTLS_LoadsFiles(t *testing.T) {
	certFile, keyFile, caFile := writeTempTLSFiles(t)

	t.Setenv("REDIS_TLS_CERT_FILE", certFile)
	t.Setenv("REDIS_TLS_KEY_FILE", keyFile)
	t.Setenv("REDIS_TLS_CA_FILE", caFile)
	t.Setenv("REDIS_TLS_SERVER_NAME", "redis.internal")

	cfg, err := loadRedisTLSFromEnv()
	if err != nil {
		t.Fatalf("load tls config: %v", err)
	}
	if cfg == nil || len(cfg.Certificates) == 0 {
		t.Fatalf("expected certificates to be loaded")
	}
	if cfg.RootCAs == nil {
		t.Fatalf("expected root CAs to be loaded")
	}
	if cfg.ServerName != "redis.internal" || cfg.InsecureSkipVerify {
		t.Fatalf("unexpected tls config: %+v", cfg)
	}
}

func TestLoadRedisTLS_ReadCAError(t *testing.T) {
	t.Setenv("REDIS_TLS_CA_FILE", "/no/such/file")
	if _, err := loadRedisTLSFromEnv(); err == nil {
		t.Fatalf("expected read error for missing CA file")
	}
}

func TestOptionalAndRequiredHelpers(t *testing.T) {
	t.Setenv("X_OPT_DUR", "-1ms")
	if _, err := optionalDuration("X_OPT_DUR"); err == nil {
		t.Fatalf("expected negative duration error")
	}
	t.Setenv("X_OPT_INT", "-1")
	if _, err := optionalInt("X_OPT_INT"); err == nil {
		t.Fatalf("expected negative int error")
	}
	t.Setenv("X_OPT_BOOL", "notbool")
	if _, err := optionalBool("X_OPT_BOOL"); err == nil {
		t.Fatalf("expected bool parse error")
	}

	t.Setenv("X_OPT_DUR", "")
	if d, err := durationOr("X_OPT_DUR", time.Second); err != nil || d != time.Second {
		t.Fatalf("expected fallback, got %v %v", d, err)
	}

	t.Setenv("X_REQ_INT", "-1")
	if _, err := requiredInt("X_REQ_INT"); err == nil {
		t.Fatalf("expected negative int error")
	}

	t.Setenv("X_REQ_DUR", "bad")
	if _, err := requiredDuration("X_REQ_DUR"); err == nil {
		t.Fatalf("expected bad duration error")
	}
}

func TestLoadRedis_InvalidHealthcheckTimeout(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("REDIS_HEALTHCHECK_TIMEOUT", "bad")
	if _, err := LoadRedis(); err == nil {
		t.Fatalf("expected error for bad healthcheck timeout")
	}
}

func TestLoadAdmission(t *testing.T) {
	cfg, err := LoadAdmission()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.KeyPrefix != "placeOrder:" || cfg.Unit != time.Minute || cfg.MaxCountPerUnit != 50 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	t.Setenv("ADMISSION_KEY_PREFIX", "po:")
	t.Setenv("ADMISSION_UNIT", "30s")
	t.Setenv("ADMISSION_MAX_COUNT_PER_UNIT", "7")
	cfg, err = LoadAdmission()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.KeyPrefix != "po:" || cfg.Unit != 30*time.Second || cfg.MaxCountPerUnit != 7 {
		t.Fatalf("unexpected admission cfg: %+v", cfg)
	}

	t.Setenv("ADMISSION_MAX_COUNT_PER_UNIT", "0")
	if _, err := LoadAdmission(); err == nil {
		t.Fatalf("expected error for zero limit")
	}
	t.Setenv("ADMISSION_MAX_COUNT_PER_UNIT", "7")

	t.Setenv("ADMISSION_UNIT", "500ms")
	if _, err := LoadAdmission(); err == nil {
		t.Fatalf("expected error for sub-second unit")
	}
}

func TestLoadKafka(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv("KAFKA_ALERT_TOPIC", "ops.alerts")

	cfg := LoadKafka()
	if len(cfg.Brokers) != 2 || cfg.Brokers[0] != "kafka-1:9092" || cfg.Brokers[1] != "kafka-2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.Brokers)
	}
	if cfg.NotificationTopic != "marquee.notifications" || cfg.AlertTopic != "ops.alerts" {
		t.Fatalf("unexpected topics: %+v", cfg)
	}
}

func TestLoadTasks(t *testing.T) {
	t.Setenv("TASK_EXPORT_INTERVAL", "1s")
	t.Setenv("TASK_STALL_TIMEOUT", "5m")
	t.Setenv("TASK_MAX_NUMBER_OF_TRY", "4")
	t.Setenv("TASK_NAMES", "SettleCreditCard,CreateOrder")

	cfg, err := LoadTasks()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ExportInterval != time.Second || cfg.StallTimeout != 5*time.Minute || cfg.ExecuteInterval != 0 {
		t.Fatalf("unexpected intervals: %+v", cfg)
	}
	if cfg.MaxNumberOfTry != 4 || len(cfg.Names) != 2 {
		t.Fatalf("unexpected tasks cfg: %+v", cfg)
	}

	t.Setenv("TASK_MAX_NUMBER_OF_TRY", "x")
	if _, err := LoadTasks(); err == nil {
		t.Fatalf("expected error for bad max number of try")
	}
}

func writeTempTLSFiles(t *testing.T) (string, string, string) {
	t.Helper()

	privKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privKey.PublicKey, privKey)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}

	dir := t.TempDir()
	certFile := filepath.Join(dir, "redis_cert.pem")
	keyFile := filepath.Join(dir, "redis_key.pem")
	caFile := filepath.Join(dir, "redis_ca.pem")

	writePEMFile(t, certFile, "CERTIFICATE", certDER, 0644)
	writePEMFile(t, caFile, "CERTIFICATE", certDER, 0644)

	keyDER := x509.MarshalPKCS1PrivateKey(privKey)
	writePEMFile(t, keyFile, "RSA PRIVATE KEY", keyDER, 0600)

	return certFile, keyFile, caFile
}

func writePEMFile(t *testing.T, path, blockType string, derBytes []byte, perm os.FileMode) {
	t.Helper()

	block := &pem.Block{Type: blockType, Bytes: derBytes}
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		t.Fatalf("open file: %v", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			t.Fatalf("close file: %v", err)
		}
	}()
	if err := pem.Encode(file, block); err != nil {
		t.Fatalf("write pem: %v", err)
	}
}
