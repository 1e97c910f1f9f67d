package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StoreDriver != DriverSQLite || cfg.HTTPAddr != ":8080" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlData := `
http_addr: ":9000"
grpc_addr: ":9001"
store_driver: memory
notify_timeout: 2s
kafka_brokers: ["k1:9092"]
`
	if err := os.WriteFile(path, []byte(yamlData), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("GRPC_ADDR", ":9101")
	t.Setenv("LOCK_TIMEOUT", "3s")

	cfg, err := Load([]string{"--config", path, "--http-addr", ":9200"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTPAddr != ":9200" {
		t.Errorf("flag should win, got %s", cfg.HTTPAddr)
	}
	if cfg.GRPCAddr != ":9101" {
		t.Errorf("env should override file, got %s", cfg.GRPCAddr)
	}
	if cfg.StoreDriver != DriverMemory {
		t.Errorf("file value lost, got %s", cfg.StoreDriver)
	}
	if cfg.NotifyTimeout != 2*time.Second || cfg.LockTimeout != 3*time.Second {
		t.Errorf("durations not applied: notify=%v lock=%v", cfg.NotifyTimeout, cfg.LockTimeout)
	}
	if len(cfg.KafkaBrokers) != 1 || cfg.KafkaBrokers[0] != "k1:9092" {
		t.Errorf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"KAFKA_BROKERS":  "a:1, b:2,,",
		"NOTIFY_WORKERS": "8",
	}
	cfg := Default()
	err := cfg.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:2" {
		t.Errorf("unexpected brokers: %v", cfg.KafkaBrokers)
	}
	if cfg.NotifyWorkers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.NotifyWorkers)
	}

	env = map[string]string{"NOTIFY_TIMEOUT": "soon", "NOTIFY_QUEUE_SIZE": "many"}
	err = Default().applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err == nil || !strings.Contains(err.Error(), "NOTIFY_TIMEOUT") || !strings.Contains(err.Error(), "NOTIFY_QUEUE_SIZE") {
		t.Errorf("expected both parse errors, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown driver", func(c *Config) { c.StoreDriver = "postgres" }, "unknown store driver"},
		{"mysql without dsn", func(c *Config) { c.StoreDriver = DriverMySQL }, "mysql_dsn"},
		{"no listeners", func(c *Config) { c.HTTPAddr, c.GRPCAddr = "", "" }, "http_addr"},
		{"no secret", func(c *Config) { c.JWTSecret = "" }, "jwt_secret"},
		{"brokers without topic", func(c *Config) { c.KafkaBrokers = []string{"k:1"}; c.KafkaTopic = "" }, "kafka_topic"},
		{"zero workers", func(c *Config) { c.NotifyWorkers = 0 }, "notify_workers"},
		{"zero timeout", func(c *Config) { c.LockTimeout = 0 }, "lock_timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load([]string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
