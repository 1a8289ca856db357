package config

import "testing"

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("ADMIN_PSEUDO", "")
	t.Setenv("ADMIN_EMAIL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("WORKER_COUNT", "")
	t.Setenv("WORKER_BATCH_SIZE", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if cfg.AdminPseudo != "greengen" {
		t.Errorf("AdminPseudo = %q, want greengen", cfg.AdminPseudo)
	}
	// Setup registers the admin account on first run, and registration
	// rejects blank emails. The default keeps a fresh environment
	// bootable without ADMIN_EMAIL set.
	if cfg.AdminEmail != "greengen@greengen.local" {
		t.Errorf("AdminEmail = %q, want greengen@greengen.local", cfg.AdminEmail)
	}
	if cfg.RedisURL != "redis://localhost:6379" {
		t.Errorf("RedisURL = %q, want redis://localhost:6379", cfg.RedisURL)
	}
	if cfg.WorkerCount != 2 || cfg.WorkerBatchSize != 10 {
		t.Errorf("worker defaults = (%d, %d), want (2, 10)", cfg.WorkerCount, cfg.WorkerBatchSize)
	}
}

func TestLoadConfig_AdminEmailOverride(t *testing.T) {
	t.Setenv("ADMIN_EMAIL", "ops@example.org")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
	if cfg.AdminEmail != "ops@example.org" {
		t.Errorf("AdminEmail = %q, want ops@example.org", cfg.AdminEmail)
	}
}
