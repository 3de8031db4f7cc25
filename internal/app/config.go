package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is parsed from GATEWARD_-prefixed environment variables.
type Config struct {
	AppName string `env:"APP_NAME" envDefault:"Gateward"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Port                int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`

	DatabaseFile  string `env:"DATABASE_FILE" envDefault:"gateward.db"`
	PepperFile    string `env:"PEPPER_FILE" envDefault:"pepper"`
	MasterKeyPath string `env:"MASTER_KEY_PATH"`

	// LinkSigningKey signs email verification links. When empty an
	// ephemeral key is generated and outstanding links die with the
	// process.
	LinkSigningKey string `env:"LINK_SIGNING_KEY"`

	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"2h"`
	SecureCookies bool          `env:"SECURE_COOKIES" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// SMTP settings; when Host is empty outbound mail is logged instead.
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"`

	// RecaptchaSecret enables real captcha verification; empty means
	// every challenge passes (development).
	RecaptchaSecret string `env:"RECAPTCHA_SECRET"`
}

func LoadConfig() (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: "GATEWARD_"})
	if err != nil {
		return Config{}, fmt.Errorf("app: parse environment: %w", err)
	}
	return cfg, nil
}
