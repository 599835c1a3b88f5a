package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env        string
	MongoURI   string
	MongoDB    string
	ServerAddr string

	FrontendOrigin string

	RateLimitAuth      int
	RateLimitWrites    int
	RateLimitWindowSec int

	RedisURL        string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CacheTTLSeconds int

	JWTSecret         string
	AccessTTLMinutes  int
	RefreshTTLMinutes int
	CookieSecure      bool

	BrevoAPIKey      string
	BrevoSenderEmail string
	BrevoSenderName  string
	BrevoSandbox     bool

	TwilioAccountSID   string
	TwilioAuthToken    string
	TwilioWhatsAppFrom string

	StripeSecretKey     string
	StripeWebhookSecret string
	WalletCurrency      string

	// History label written when a quotation is rejected. The product ships
	// "revision_requested" while the document status becomes "rejected"; kept
	// switchable until product settles the naming.
	QuotationRejectHistoryStatus string

	ReminderScanSpec string

	Timezone *time.Location
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	loc, err := time.LoadLocation(getEnv("TZ", "Asia/Kolkata"))
	if err != nil {
		return nil, err
	}

	mongoURI := getEnv("MONGO_URI", "mongodb://localhost:27017/crm")
	mongoDB := getEnv("MONGO_DB", "")
	if mongoDB == "" {
		mongoDB = mongoDBFromURI(mongoURI)
	}
	if mongoDB == "" {
		mongoDB = "crm"
	}

	cfg := &Config{
		Env:            getEnv("APP_ENV", "development"),
		MongoURI:       mongoURI,
		MongoDB:        mongoDB,
		ServerAddr:     getEnv("SERVER_ADDR", ":8080"),
		FrontendOrigin: getEnv("FRONTEND_ORIGIN", "http://localhost:3000"),

		RateLimitAuth:      getEnvInt("RATE_LIMIT_AUTH", 10),
		RateLimitWrites:    getEnvInt("RATE_LIMIT_WRITES", 60),
		RateLimitWindowSec: getEnvInt("RATE_LIMIT_WINDOW_SEC", 60),

		RedisURL:        getEnv("REDIS_URL", ""),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		CacheTTLSeconds: getEnvInt("CACHE_TTL_SECONDS", 30),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		AccessTTLMinutes:  getEnvInt("ACCESS_TTL_MINUTES", 60),
		RefreshTTLMinutes: getEnvInt("REFRESH_TTL_MINUTES", 43200),
		CookieSecure:      getEnv("COOKIE_SECURE", "false") == "true",

		BrevoAPIKey:      getEnv("BREVO_API_KEY", ""),
		BrevoSenderEmail: getEnv("BREVO_SENDER_EMAIL", ""),
		BrevoSenderName:  getEnv("BREVO_SENDER_NAME", ""),
		BrevoSandbox:     getEnv("BREVO_SANDBOX", "false") == "true",

		TwilioAccountSID:   getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:    getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioWhatsAppFrom: getEnv("TWILIO_WHATSAPP_FROM", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		WalletCurrency:      getEnv("WALLET_CURRENCY", "INR"),

		QuotationRejectHistoryStatus: getEnv("QUOTATION_REJECT_HISTORY_STATUS", "revision_requested"),

		ReminderScanSpec: getEnv("REMINDER_SCAN_SPEC", "* * * * *"),

		Timezone: loc,
	}

	return cfg, nil
}

func mongoDBFromURI(uri string) string {
	rest := uri
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	}
	idx := strings.Index(rest, "/")
	if idx < 0 {
		return ""
	}
	db := rest[idx+1:]
	if q := strings.IndexAny(db, "?/"); q >= 0 {
		db = db[:q]
	}
	return db
}
