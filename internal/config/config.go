package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

// Config is constructed once in main and injected into every component that
// needs it; nothing reads ambient configuration after startup.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	JWTSecret   string `env:"JWT_SECRET,required"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	UPIEndpoint    string `env:"UPI_API_ENDPOINT" envDefault:"http://mock-provider:8081/upi"`
	UPIAPIKey      string `env:"UPI_API_KEY,required"`
	UPICallbackURL string `env:"UPI_CALLBACK_URL" envDefault:"http://app:8080/api/v1/webhooks/upi-callback"`

	ADBankEndpoint string `env:"AD_BANK_API_ENDPOINT" envDefault:"http://mock-provider:8081/adbank"`
	ADBankAPIKey   string `env:"AD_BANK_API_KEY,required"`
	ADBankClientID string `env:"AD_BANK_CLIENT_ID,required"`

	WiseEndpoint    string `env:"WISE_API_ENDPOINT" envDefault:"http://mock-provider:8081/wise"`
	WiseAPIKey      string `env:"WISE_API_KEY,required"`
	WiseProfileID   string `env:"WISE_PROFILE_ID,required"`
	WiseCallbackURL string `env:"WISE_CALLBACK_URL" envDefault:"http://app:8080/api/v1/webhooks/wise-callback"`

	UserServiceEndpoint string `env:"USER_SERVICE_API_ENDPOINT" envDefault:"http://mock-provider:8081/users"`
	UserServiceAPIKey   string `env:"USER_SERVICE_API_KEY,required"`

	WebhookSecret string `env:"WEBHOOK_SECRET,required"`

	MinAmountINR      int64   `env:"MIN_TRANSACTION_AMOUNT_INR" envDefault:"1000"`
	MaxAmountINR      int64   `env:"MAX_TRANSACTION_AMOUNT_INR" envDefault:"1000000"`
	FeePercentage     float64 `env:"FEE_PERCENTAGE" envDefault:"0.5"`
	MinFeeINR         int64   `env:"MIN_FEE_INR" envDefault:"100"`
	RateTTLSeconds    int     `env:"EXCHANGE_RATE_CACHE_SECONDS" envDefault:"300"`
	AutoAdvanceStages bool    `env:"AUTO_ADVANCE_STAGES" envDefault:"true"`

	ProviderTimeoutS    int `env:"PROVIDER_TIMEOUT_S" envDefault:"10"`
	ReconcileIntervalS  int `env:"RECONCILE_INTERVAL_S" envDefault:"5"`
	ReconcileBatchLimit int `env:"RECONCILE_BATCH_LIMIT" envDefault:"10"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) RateTTL() time.Duration {
	return time.Duration(c.RateTTLSeconds) * time.Second
}

func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutS) * time.Second
}

func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalS) * time.Second
}
