package config

import "time"

type AppConfig struct {
	DBDriver   string `yaml:"db_driver" env:"REQDESK_DB_DRIVER"`
	DBURL      string `yaml:"db_url" env:"REQDESK_DB_URL"`
	DBPath     string `yaml:"db_path" env:"REQDESK_DB_PATH"`
	ListenAddr string `yaml:"listen_addr" env:"REQDESK_LISTEN_ADDR" env-default:"0.0.0.0:8080"`
	AppEnv     string `yaml:"app_env" env:"REQDESK_APP_ENV"`

	SessionTTL      time.Duration `yaml:"session_ttl" env:"REQDESK_SESSION_TTL"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"REQDESK_IDLE_TIMEOUT"`
	MaxFailedLogins int           `yaml:"max_failed_logins" env:"REQDESK_MAX_FAILED_LOGINS"`
	TempPasswordTTL time.Duration `yaml:"temp_password_ttl" env:"REQDESK_TEMP_PASSWORD_TTL"`

	CSRFKey string `yaml:"csrf_key" env:"REQDESK_CSRF_KEY"`
	Pepper  string `yaml:"pepper" env:"REQDESK_PEPPER"`

	TLSEnabled bool   `yaml:"tls_enabled" env:"REQDESK_TLS_ENABLED"`
	TLSCert    string `yaml:"tls_cert" env:"REQDESK_TLS_CERT"`
	TLSKey     string `yaml:"tls_key" env:"REQDESK_TLS_KEY"`

	Security      SecurityConfig      `yaml:"security"`
	Observability ObservabilityConfig `yaml:"observability"`
	Maintenance   MaintenanceConfig   `yaml:"maintenance"`
}

type SecurityConfig struct {
	TrustedProxies []string `yaml:"trusted_proxies" env:"REQDESK_TRUSTED_PROXIES"`
}

type ObservabilityConfig struct {
	MetricsEnabled bool   `yaml:"metrics_enabled" env:"REQDESK_METRICS_ENABLED"`
	MetricsToken   string `yaml:"metrics_token" env:"REQDESK_METRICS_TOKEN"`
}

type MaintenanceConfig struct {
	Enabled  bool   `yaml:"enabled" env:"REQDESK_MAINTENANCE_ENABLED" env-default:"true"`
	CronSpec string `yaml:"cron_spec" env:"REQDESK_MAINTENANCE_CRON"`
}

// EffectiveSessionTTL is the absolute session lifetime.
func (c *AppConfig) EffectiveSessionTTL() time.Duration {
	if c == nil || c.SessionTTL <= 0 {
		return 12 * time.Hour
	}
	return c.SessionTTL
}

// EffectiveIdleTimeout is the inactivity window after which a session is revoked.
func (c *AppConfig) EffectiveIdleTimeout() time.Duration {
	if c == nil || c.IdleTimeout <= 0 {
		return 5 * time.Minute
	}
	return c.IdleTimeout
}

func (c *AppConfig) EffectiveMaxFailedLogins() int {
	if c == nil || c.MaxFailedLogins <= 0 {
		return 5
	}
	return c.MaxFailedLogins
}

func (c *AppConfig) EffectiveTempPasswordTTL() time.Duration {
	if c == nil || c.TempPasswordTTL <= 0 {
		return 24 * time.Hour
	}
	return c.TempPasswordTTL
}
