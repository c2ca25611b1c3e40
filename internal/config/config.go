package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	ListenAddr  string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string

	SeedDemoData bool

	Alfalah  AlfalahConfig
	JazzCash JazzCashConfig
	Kuickpay KuickpayConfig
	PayPal   PayPalConfig
	Stripe   StripeConfig
}

// AlfalahConfig configures the hash-chained hosted payment page.
type AlfalahConfig struct {
	MerchantID   string
	SharedSecret string
	PageBaseURL  string
	SuccessURL   string
	DeclineURL   string
	CancelURL    string
}

// JazzCashConfig configures the HMAC-signed REST gateway.
type JazzCashConfig struct {
	MerchantID   string
	APIToken     string
	SharedSecret string
	BaseURL      string
	ReturnURL    string
}

// KuickpayConfig configures the OAuth2 client-credentials gateway.
type KuickpayConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
	ReturnURL    string
}

// PayPalConfig configures the order/capture gateway.
type PayPalConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
	WebhookID    string
	ReturnURL    string
	CancelURL    string
}

// StripeConfig configures the hosted checkout gateway.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "paycore"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		ListenAddr:  getenv("LISTEN_ADDR", ":8080"),

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "paycore"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),

		RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
		RedisPassword: getenv("REDIS_PASSWORD", ""),

		SeedDemoData: getenvBool("SEED_DEMO_DATA", false),

		Alfalah: AlfalahConfig{
			MerchantID:   strings.TrimSpace(getenv("ALFALAH_MERCHANT_ID", "")),
			SharedSecret: strings.TrimSpace(getenv("ALFALAH_SHARED_SECRET", "")),
			PageBaseURL:  getenv("ALFALAH_PAGE_URL", "https://payments.bankalfalah.com/HS/HS/HS"),
			SuccessURL:   getenv("ALFALAH_SUCCESS_URL", ""),
			DeclineURL:   getenv("ALFALAH_DECLINE_URL", ""),
			CancelURL:    getenv("ALFALAH_CANCEL_URL", ""),
		},
		JazzCash: JazzCashConfig{
			MerchantID:   strings.TrimSpace(getenv("JAZZCASH_MERCHANT_ID", "")),
			APIToken:     strings.TrimSpace(getenv("JAZZCASH_API_TOKEN", "")),
			SharedSecret: strings.TrimSpace(getenv("JAZZCASH_SHARED_SECRET", "")),
			BaseURL:      getenv("JAZZCASH_BASE_URL", "https://payments.jazzcash.com.pk/api/v1"),
			ReturnURL:    getenv("JAZZCASH_RETURN_URL", ""),
		},
		Kuickpay: KuickpayConfig{
			ClientID:     strings.TrimSpace(getenv("KUICKPAY_CLIENT_ID", "")),
			ClientSecret: strings.TrimSpace(getenv("KUICKPAY_CLIENT_SECRET", "")),
			TokenURL:     getenv("KUICKPAY_TOKEN_URL", "https://api.kuickpay.com/oauth/token"),
			BaseURL:      getenv("KUICKPAY_BASE_URL", "https://api.kuickpay.com/v1"),
			ReturnURL:    getenv("KUICKPAY_RETURN_URL", ""),
		},
		PayPal: PayPalConfig{
			ClientID:     trimmedEnv("PAYPAL_CLIENT_ID"),
			ClientSecret: trimmedEnv("PAYPAL_CLIENT_SECRET"),
			BaseURL:      getenv("PAYPAL_BASE_URL", "https://api-m.paypal.com"),
			WebhookID:    trimmedEnv("PAYPAL_WEBHOOK_ID"),
			ReturnURL:    getenv("PAYPAL_RETURN_URL", ""),
			CancelURL:    getenv("PAYPAL_CANCEL_URL", ""),
		},
		Stripe: StripeConfig{
			SecretKey:     trimmedEnv("STRIPE_SECRET_KEY"),
			WebhookSecret: trimmedEnv("STRIPE_WEBHOOK_SECRET"),
			SuccessURL:    getenv("STRIPE_SUCCESS_URL", ""),
			CancelURL:     getenv("STRIPE_CANCEL_URL", ""),
		},
	}
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(getenv(key, ""))
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
