package config

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/MilkyTarot/internal/database"
	"github.com/Alias1177/MilkyTarot/models"
)

// Config holds all application configuration
type Config struct {
	Telegram TelegramConfig
	DB       DBConfig
	Push     PushConfig
	Cards    CardsConfig
	LLM      LLMConfig
	Payment  PaymentConfig
	HTTP     HTTPConfig
	Log      LogConfig

	AdminID  int64   `envconfig:"ADMIN_ID"`
	AdminIDs []int64 `envconfig:"ADMIN_IDS"`
}

type TelegramConfig struct {
	Token       string `envconfig:"TELEGRAM_BOT_TOKEN" required:"true"`
	BotUsername string `envconfig:"TELEGRAM_BOT_USERNAME" default:"Milky_Tarot_Bot"`
	Debug       bool   `envconfig:"TELEGRAM_DEBUG" default:"false"`
}

type DBConfig struct {
	URL      string `envconfig:"DATABASE_URL"`
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD"`
	Name     string `envconfig:"DB_NAME" default:"tarot"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// DSN returns DATABASE_URL when set, otherwise a key/value DSN built from DB_*.
func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return database.ConnectionParams{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		DBName:   c.Name,
		SSLMode:  c.SSLMode,
	}.DSN()
}

type PushConfig struct {
	ReferenceTZ string `envconfig:"PUSH_REFERENCE_TZ" default:"Europe/Moscow"`
	DefaultTime string `envconfig:"PUSH_DEFAULT_TIME" default:"10:00"`
	LoopBuffer  int    `envconfig:"PUSH_LOOP_BUFFER" default:"1024"`
}

// Location loads the reference timezone.
func (c PushConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.ReferenceTZ)
	if err != nil {
		return nil, fmt.Errorf("loading reference timezone %q: %w", c.ReferenceTZ, err)
	}
	return loc, nil
}

type CardsConfig struct {
	DeckPath     string `envconfig:"CARDS_PATH"`
	AdvicePath   string `envconfig:"CARDS_ADVICE_PATH"`
	MeaningsPath string `envconfig:"CARDS_MEANINGS_PATH"`
	ImageBase    string `envconfig:"CARDS_IMAGE_BASE"`
	AdviceLimit  int    `envconfig:"ADVICE_DAILY_LIMIT" default:"2"`
}

type LLMConfig struct {
	APIKey  string        `envconfig:"LLM_API_KEY"`
	BaseURL string        `envconfig:"LLM_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta/openai"`
	Model   string        `envconfig:"LLM_MODEL" default:"gemini-2.0-flash"`
	Timeout time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`
}

// Enabled reports whether readings can be generated.
func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

type PaymentConfig struct {
	Provider      string        `envconfig:"PAYMENT_PROVIDER" default:"yookassa"`
	CheckAttempts int           `envconfig:"PAYMENT_CHECK_ATTEMPTS" default:"18"`
	CheckInterval time.Duration `envconfig:"PAYMENT_CHECK_INTERVAL" default:"10s"`

	YooKassaShopID    string `envconfig:"YOOKASSA_SHOP_ID"`
	YooKassaSecretKey string `envconfig:"YOOKASSA_SECRET_KEY"`
	YooKassaReturnURL string `envconfig:"YOOKASSA_RETURN_URL" default:"https://t.me/Milky_Tarot_Bot"`
	YooKassaBaseURL   string `envconfig:"YOOKASSA_API_URL"`

	StripeAPIKey        string `envconfig:"STRIPE_API_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
}

// Enabled reports whether the configured provider has credentials.
func (c PaymentConfig) Enabled() bool {
	switch c.Provider {
	case models.ProviderYooKassa:
		return c.YooKassaShopID != "" && c.YooKassaSecretKey != ""
	case models.ProviderStripe:
		return c.StripeAPIKey != ""
	}
	return false
}

type HTTPConfig struct {
	Addr string `envconfig:"HTTP_ADDR" default:":8080"`
}

type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"console"`
}

// Admins returns ADMIN_ID and ADMIN_IDS combined.
func (c *Config) Admins() map[int64]bool {
	out := make(map[int64]bool, len(c.AdminIDs)+1)
	if c.AdminID != 0 {
		out[c.AdminID] = true
	}
	for _, id := range c.AdminIDs {
		out[id] = true
	}
	return out
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Telegram.Token == "" {
		return errors.New("TELEGRAM_BOT_TOKEN not set in environment")
	}
	switch c.Payment.Provider {
	case models.ProviderYooKassa, models.ProviderStripe:
	default:
		return fmt.Errorf("unknown PAYMENT_PROVIDER %q", c.Payment.Provider)
	}
	if c.Push.DefaultTime == "" {
		return errors.New("PUSH_DEFAULT_TIME must not be empty")
	}
	if _, err := c.Push.Location(); err != nil {
		return err
	}
	return nil
}
