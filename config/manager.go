package config

import (
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

const envPrefix = "REQDESK_"

// Load reads config/app.yaml (or $APP_CONFIG) when present, layers the
// environment on top, applies the short alias names used by deployment
// tooling, and validates the result.
func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	path := firstEnv("APP_CONFIG", envPrefix+"APP_CONFIG")
	if path == "" {
		path = "config/app.yaml"
	}
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	applyAliases(cfg)
	trimAll(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyAliases(cfg *AppConfig) {
	set := func(dst *string, keys ...string) {
		if v := firstEnv(keys...); v != "" {
			*dst = v
		}
	}
	set(&cfg.Pepper, "PEPPER")
	set(&cfg.CSRFKey, "CSRF_KEY")
	set(&cfg.AppEnv, "ENV", "APP_ENV")
	set(&cfg.DBURL, "DATABASE_URL")
	if port := firstEnv("PORT", envPrefix+"PORT"); port != "" {
		cfg.ListenAddr = replacePort(cfg.ListenAddr, port)
	}
}

func trimAll(cfg *AppConfig) {
	for _, field := range []*string{
		&cfg.DBURL, &cfg.DBPath, &cfg.ListenAddr, &cfg.CSRFKey, &cfg.Pepper,
		&cfg.Observability.MetricsToken, &cfg.Maintenance.CronSpec,
	} {
		*field = strings.TrimSpace(*field)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "0.0.0.0:8080"
	}
	if cfg.Maintenance.CronSpec == "" {
		cfg.Maintenance.CronSpec = "@every 10m"
	}
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			return v
		}
	}
	return ""
}

func replacePort(addr, port string) string {
	if _, err := strconv.Atoi(port); err != nil {
		return addr
	}
	host := "0.0.0.0"
	if h, _, err := net.SplitHostPort(strings.TrimSpace(addr)); err == nil && h != "" {
		host = h
	}
	return net.JoinHostPort(host, port)
}
