package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	HTTPAddr string
	LogLevel string

	DatabaseURL string
	DBMaxConns  int

	JWTIssuer           string
	JWTAccessSecret     string
	JWTRefreshSecret    string
	AccessTokenTTLMin   int
	RefreshTokenTTLDays int

	OTPTTLMin                int
	RequireEmailVerification bool

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	ShopName    string
	FrontendURL string
	CORSOrigins []string

	RateLimitRPS   float64
	RateLimitBurst int

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	UploadFolder        string

	// Coupons maps an upper-case coupon code to a percentage, e.g. "WELCOME10:10".
	Coupons map[string]int

	ShutdownTimeout time.Duration
}

func Load() Config {
	frontend := get("FRONTEND_URL", "http://localhost:8080")
	cfg := Config{
		AppEnv:   get("APP_ENV", "dev"),
		HTTPAddr: get("HTTP_ADDR", ":5000"),
		LogLevel: get("LOG_LEVEL", "info"),

		DatabaseURL: get("DATABASE_URL", ""),
		DBMaxConns:  getInt("DB_MAX_CONNS", 10),

		JWTIssuer:           get("JWT_ISSUER", "storefront"),
		JWTAccessSecret:     get("JWT_ACCESS_SECRET", ""),
		JWTRefreshSecret:    get("JWT_REFRESH_SECRET", ""),
		AccessTokenTTLMin:   getInt("ACCESS_TOKEN_TTL_MIN", 60),
		RefreshTokenTTLDays: getInt("REFRESH_TOKEN_TTL_DAYS", 7),

		OTPTTLMin:                getInt("OTP_TTL_MIN", 10),
		RequireEmailVerification: getBool("REQUIRE_EMAIL_VERIFICATION", false),

		SMTPHost: get("SMTP_HOST", ""),
		SMTPPort: getInt("SMTP_PORT", 587),
		SMTPUser: get("SMTP_USER", ""),
		SMTPPass: get("SMTP_PASS", ""),
		SMTPFrom: get("SMTP_FROM", ""),

		ShopName:    get("SHOP_NAME", "Storefront"),
		FrontendURL: frontend,
		CORSOrigins: getList("CORS_ORIGINS", []string{frontend}),

		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 40),

		RazorpayKeyID:     get("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret: get("RAZORPAY_KEY_SECRET", ""),

		CloudinaryCloudName: get("CLOUDINARY_CLOUD_NAME", ""),
		CloudinaryAPIKey:    get("CLOUDINARY_API_KEY", ""),
		CloudinaryAPISecret: get("CLOUDINARY_API_SECRET", ""),
		UploadFolder:        get("UPLOAD_FOLDER", "storefront"),

		Coupons: parseCoupons(get("COUPONS", "")),

		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
	// the gateway signs webhooks with the key secret unless a dedicated one is set
	cfg.RazorpayWebhookSecret = get("RAZORPAY_WEBHOOK_SECRET", cfg.RazorpayKeySecret)
	return cfg
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

// Validate checks the settings the API cannot start without.
func (c Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.JWTAccessSecret == "" || c.JWTRefreshSecret == "" {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q (must be debug, info, warn, or error)", c.LogLevel))
	}
	if err := checkAddr(c.HTTPAddr); err != nil {
		errs = append(errs, err)
	}
	if c.SMTPHost != "" && c.SMTPPort <= 0 {
		errs = append(errs, fmt.Errorf("invalid SMTP_PORT %d", c.SMTPPort))
	}
	if c.AccessTokenTTLMin <= 0 || c.RefreshTokenTTLDays <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	return errors.Join(errs...)
}

// checkAddr accepts host:port or :port with a port in 1..65535.
func checkAddr(addr string) error {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid HTTP_ADDR %q: %w", addr, err)
	}
	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("invalid HTTP_ADDR %q: port must be between 1 and 65535", addr)
	}
	return nil
}

func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getFloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getList(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func parseCoupons(raw string) map[string]int {
	out := map[string]int{}
	for _, part := range strings.Split(raw, ",") {
		code, pct, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(pct))
		if err != nil || n <= 0 || n > 100 {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(code))] = n
	}
	return out
}
