package config

import (
	"fmt"
	"strings"
)

func Validate(cfg *AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	switch driver {
	case "", "postgres", "pg":
		if strings.TrimSpace(cfg.DBURL) == "" {
			return fmt.Errorf("db_url must be set for postgres driver")
		}
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return fmt.Errorf("db_path must be set for sqlite driver")
		}
	default:
		return fmt.Errorf("unsupported db_driver: %s", cfg.DBDriver)
	}
	if strings.TrimSpace(cfg.CSRFKey) == "" || strings.TrimSpace(cfg.Pepper) == "" {
		return fmt.Errorf("csrf_key and pepper must be set via env")
	}
	appEnv := strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	if appEnv != "dev" && !cfg.TLSEnabled {
		return fmt.Errorf("tls_enabled=false is only allowed in APP_ENV=dev")
	}
	if cfg.TLSEnabled {
		if strings.TrimSpace(cfg.TLSCert) == "" || strings.TrimSpace(cfg.TLSKey) == "" {
			return fmt.Errorf("tls_cert and tls_key must be set when tls_enabled=true")
		}
	}
	if cfg.MaxFailedLogins < 0 {
		return fmt.Errorf("max_failed_logins must not be negative")
	}
	return nil
}
