package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every setting the server and the admin CLI read from the
// environment. Variables are prefixed with E2D_.
type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	DBPath   string `env:"DB_PATH" envDefault:"e2d.db"`
	BaseURL  string `env:"BASE_URL"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// LogFormat is "text" or "json".
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	CookieSecure bool          `env:"COOKIE_SECURE" envDefault:"false"`
	// WSOrigins lists extra host patterns allowed to open /ws.
	WSOrigins []string `env:"WS_ORIGINS" envSeparator:","`

	// Bootstrap admin, created on startup when no user exists yet.
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	Email  EmailConfig  `envPrefix:"POSTMARK_"`
	S3     S3Config     `envPrefix:"S3_"`
	Push   PushConfig   `envPrefix:"VAPID_"`
	Backup BackupConfig `envPrefix:"BACKUP_"`
	OTel   OTelConfig   `envPrefix:"OTEL_"`
}

type EmailConfig struct {
	Token string `env:"TOKEN"`
	From  string `env:"FROM" envDefault:"noreply@e2d-connect.org"`
}

type S3Config struct {
	Endpoint  string `env:"ENDPOINT"`
	Bucket    string `env:"BUCKET"`
	Region    string `env:"REGION" envDefault:"auto"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
}

type PushConfig struct {
	PublicKey  string `env:"PUBLIC_KEY"`
	PrivateKey string `env:"PRIVATE_KEY"`
	Subscriber string `env:"SUBSCRIBER" envDefault:"mailto:bureau@e2d-connect.org"`
	DigestHour int    `env:"DIGEST_HOUR" envDefault:"7"`
}

type BackupConfig struct {
	// Passphrase enables scheduled encrypted backups when set.
	Passphrase    string `env:"PASSPHRASE"`
	ScheduleHour  int    `env:"SCHEDULE_HOUR" envDefault:"3"`
	RetentionDays int    `env:"RETENTION_DAYS" envDefault:"30"`
}

type OTelConfig struct {
	Endpoint string `env:"ENDPOINT"`
	Enabled  bool   `env:"ENABLED" envDefault:"true"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "E2D_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:" + cfg.Port
	}
	if cfg.Backup.ScheduleHour < 0 || cfg.Backup.ScheduleHour > 23 {
		return Config{}, fmt.Errorf("E2D_BACKUP_SCHEDULE_HOUR must be 0-23, got %d", cfg.Backup.ScheduleHour)
	}
	if cfg.Push.DigestHour < 0 || cfg.Push.DigestHour > 23 {
		return Config{}, fmt.Errorf("E2D_VAPID_DIGEST_HOUR must be 0-23, got %d", cfg.Push.DigestHour)
	}
	return cfg, nil
}

// S3Enabled reports whether enough S3 settings are present to store backups.
func (c Config) S3Enabled() bool {
	return c.S3.Bucket != "" && c.S3.AccessKey != "" && c.S3.SecretKey != ""
}

// PushEnabled reports whether VAPID keys are configured.
func (c Config) PushEnabled() bool {
	return c.Push.PublicKey != "" && c.Push.PrivateKey != ""
}
