package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv     string
	AppPort    string
	AppBaseURL string
	LogLevel   string

	DBDriver string
	DBDSN    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTAccessSecret  string
	JWTRefreshSecret string
	JWTIssuer        string
	JWTAccessTTL     time.Duration
	JWTRefreshTTL    time.Duration
	ResetTokenTTL    time.Duration
	BcryptCost       int

	UploadDir    string
	CORSOrigins  string
	CookieSecure bool

	GoogleClientID  string
	GoogleSecret    string
	GoogleRedirect  string
	FrontendBaseURL string
}

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

func Load() (Config, error) {
	var errs []error

	cfg := Config{
		AppEnv:           get("APP_ENV", "development"),
		AppPort:          get("APP_PORT", "8080"),
		AppBaseURL:       get("APP_BASE_URL", ""),
		LogLevel:         get("LOG_LEVEL", "info"),
		DBDriver:         strings.ToLower(get("DB_DRIVER", DriverPostgres)),
		DBDSN:            get("DB_DSN", ""),
		RedisAddr:        get("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    get("REDIS_PASSWORD", ""),
		JWTAccessSecret:  get("JWT_ACCESS_SECRET", ""),
		JWTRefreshSecret: get("JWT_REFRESH_SECRET", ""),
		JWTIssuer:        get("JWT_ISSUER", "gigbid"),
		UploadDir:        get("UPLOAD_DIR", "./uploads"),
		CORSOrigins:      get("CORS_ORIGINS", "http://127.0.0.1:3000, http://localhost:3000"),
		GoogleClientID:   get("GOOGLE_CLIENT_ID", ""),
		GoogleSecret:     get("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirect:   get("GOOGLE_REDIRECT_URL", ""),
		FrontendBaseURL:  get("FRONTEND_BASE_URL", "http://localhost:3000"),
	}

	cfg.RedisDB = getInt("REDIS_DB", 0, &errs)
	cfg.BcryptCost = getInt("BCRYPT_COST", 12, &errs)
	cfg.JWTAccessTTL = getDuration("JWT_ACCESS_TTL", 7*24*time.Hour, &errs)
	cfg.JWTRefreshTTL = getDuration("JWT_REFRESH_TTL", 30*24*time.Hour, &errs)
	cfg.ResetTokenTTL = getDuration("RESET_TOKEN_TTL", 10*time.Minute, &errs)
	cfg.CookieSecure = getBool("COOKIE_SECURE", cfg.IsProduction(), &errs)

	switch cfg.DBDriver {
	case DriverPostgres:
		if cfg.DBDSN == "" {
			errs = append(errs, errors.New("missing env: DB_DSN"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver))
	}

	if cfg.JWTAccessSecret == "" {
		errs = append(errs, errors.New("missing env: JWT_ACCESS_SECRET"))
	}
	if cfg.JWTRefreshSecret == "" {
		errs = append(errs, errors.New("missing env: JWT_REFRESH_SECRET"))
	}
	if cfg.JWTAccessSecret != "" && cfg.JWTAccessSecret == cfg.JWTRefreshSecret {
		errs = append(errs, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ"))
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c Config) HTTPAddress() string {
	return ":" + c.AppPort
}

// AllowedOrigins returns CORSOrigins normalized to fiber's comma list format.
func (c Config) AllowedOrigins() string {
	var out []string
	for _, part := range strings.Split(c.CORSOrigins, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return "*"
	}
	return strings.Join(out, ",")
}

func get(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

func getInt(k string, def int, errs *[]error) int {
	v := get(k, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", k, err))
		return def
	}
	return n
}

func getBool(k string, def bool, errs *[]error) bool {
	v := get(k, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("invalid %s: %w", k, err))
		return def
	}
	return b
}

// getDuration accepts Go durations ("15m", "168h") or a plain number of minutes.
func getDuration(k string, def time.Duration, errs *[]error) time.Duration {
	v := get(k, "")
	if v == "" {
		return def
	}
	if mins, err := strconv.Atoi(v); err == nil {
		if mins <= 0 {
			*errs = append(*errs, fmt.Errorf("invalid %s: must be positive", k))
			return def
		}
		return time.Duration(mins) * time.Minute
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Errorf("invalid %s: %q", k, v))
		return def
	}
	return d
}
