package config

import "testing"

func TestValidateRequiresSecrets(t *testing.T) {
	cfg := &AppConfig{DBDriver: "postgres", DBURL: "postgres://localhost/x", AppEnv: "dev"}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected error for missing secrets")
	}
	cfg.CSRFKey = "csrf"
	cfg.Pepper = "pepper"
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDriver(t *testing.T) {
	cfg := &AppConfig{DBDriver: "mysql", AppEnv: "dev", CSRFKey: "c", Pepper: "p"}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
	cfg = &AppConfig{DBDriver: "sqlite", AppEnv: "dev", CSRFKey: "c", Pepper: "p"}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected missing db_path error")
	}
	cfg.DBPath = "test.db"
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateTLSOutsideDev(t *testing.T) {
	cfg := &AppConfig{DBDriver: "postgres", DBURL: "postgres://localhost/x", AppEnv: "prod", CSRFKey: "c", Pepper: "p"}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected tls requirement outside dev")
	}
	cfg.TLSEnabled = true
	cfg.TLSCert = "cert.pem"
	cfg.TLSKey = "key.pem"
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
