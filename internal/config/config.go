/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the funding-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	Environment          string `mapstructure:"ENVIRONMENT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`

	JWTSecret      string `mapstructure:"JWT_SECRET"`
	InternalAPIKey string `mapstructure:"INTERNAL_API_KEY"`

	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`

	PayPalBaseURL      string `mapstructure:"PAYPAL_BASE_URL"`
	PayPalClientID     string `mapstructure:"PAYPAL_CLIENT_ID"`
	PayPalClientSecret string `mapstructure:"PAYPAL_CLIENT_SECRET"`
	PayPalWebhookID    string `mapstructure:"PAYPAL_WEBHOOK_ID"`

	// WebhookSignatureBypass disables provider signature checks. It is only
	// honored outside production and exists for local webhook replay.
	WebhookSignatureBypass bool `mapstructure:"WEBHOOK_SIGNATURE_BYPASS"`

	PayoutFeeRate      string `mapstructure:"PAYOUT_FEE_RATE"`
	CheckoutSuccessURL string `mapstructure:"CHECKOUT_SUCCESS_URL"`
	CheckoutCancelURL  string `mapstructure:"CHECKOUT_CANCEL_URL"`

	CheckoutRateLimitPerMinute int    `mapstructure:"CHECKOUT_RATE_LIMIT_PER_MINUTE"`
	PayoutJobSchedule          string `mapstructure:"PAYOUT_JOB_SCHEDULE"`
}

// IsProduction reports whether the service is running with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "fundmythesis:rate_limit")
	viper.SetDefault("PAYPAL_BASE_URL", "https://api-m.sandbox.paypal.com")
	viper.SetDefault("PAYOUT_FEE_RATE", "0.20")
	viper.SetDefault("CHECKOUT_SUCCESS_URL", "https://fundmythesis.com/contribution/success")
	viper.SetDefault("CHECKOUT_CANCEL_URL", "https://fundmythesis.com/contribution/cancel")
	viper.SetDefault("CHECKOUT_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("PAYOUT_JOB_SCHEDULE", "0 * * * *")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("ENVIRONMENT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "FUNDING_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("STRIPE_SECRET_KEY")
	_ = viper.BindEnv("STRIPE_WEBHOOK_SECRET")
	_ = viper.BindEnv("PAYPAL_BASE_URL")
	_ = viper.BindEnv("PAYPAL_CLIENT_ID")
	_ = viper.BindEnv("PAYPAL_CLIENT_SECRET")
	_ = viper.BindEnv("PAYPAL_WEBHOOK_ID")
	_ = viper.BindEnv("WEBHOOK_SIGNATURE_BYPASS")
	_ = viper.BindEnv("PAYOUT_FEE_RATE")
	_ = viper.BindEnv("PAYOUT_FEE_PERCENT")
	_ = viper.BindEnv("CHECKOUT_SUCCESS_URL")
	_ = viper.BindEnv("CHECKOUT_CANCEL_URL")
	_ = viper.BindEnv("CHECKOUT_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("PAYOUT_JOB_SCHEDULE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("FUNDING_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "fundmythesis:rate_limit"
	}
	config.PayPalBaseURL = strings.TrimRight(strings.TrimSpace(config.PayPalBaseURL), "/")

	// Allow specifying the fee as a percentage via PAYOUT_FEE_PERCENT.
	if viper.IsSet("PAYOUT_FEE_PERCENT") {
		percentStr := strings.TrimSpace(viper.GetString("PAYOUT_FEE_PERCENT"))
		if percentStr != "" {
			percentValue, parseErr := strconv.ParseFloat(percentStr, 64)
			if parseErr != nil || percentValue < 0 || percentValue > 100 {
				log.Printf("level=warn component=config msg=\"invalid PAYOUT_FEE_PERCENT\" value=%q err=%v", percentStr, parseErr)
			} else {
				config.PayoutFeeRate = strconv.FormatFloat(percentValue/100, 'f', -1, 64)
			}
		}
	}
	config.PayoutFeeRate = strings.TrimSpace(config.PayoutFeeRate)
	if config.PayoutFeeRate == "" {
		config.PayoutFeeRate = "0.20"
	}

	if config.CheckoutRateLimitPerMinute <= 0 {
		config.CheckoutRateLimitPerMinute = 10
	}
	if strings.TrimSpace(config.PayoutJobSchedule) == "" {
		config.PayoutJobSchedule = "0 * * * *"
	}

	// Signature bypass is a local-development escape hatch only.
	if config.WebhookSignatureBypass && config.IsProduction() {
		log.Printf("level=warn component=config msg=\"webhook signature bypass requested in production; ignoring\"")
		config.WebhookSignatureBypass = false
	}

	return
}
