package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type AppConfig struct {
	Port          string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	SecureCookies bool
	AllowedOrigin string
}

type DbConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// StoreConfig selects the TokenStore backend: postgres, redis or memory.
type StoreConfig struct {
	Backend string
	SlotTTL time.Duration
}

type UpstreamConfig struct {
	BaseURL       string
	LoginEndpoint string
	Timeout       time.Duration
}

// RoutesConfig names the navigable entry points; path strings are
// configuration, not logic.
type RoutesConfig struct {
	LoginPath     string
	DashboardPath string
}

// DevAuthConfig drives the local credential provider used when the
// marketplace backend is not reachable in development.
type DevAuthConfig struct {
	Enabled      bool
	Username     string
	PasswordHash string
	Role         string
	Secret       string
	TokenTTL     time.Duration
}

type Config struct {
	AppConfig      *AppConfig
	DbConfig       *DbConfig
	RedisConfig    *RedisConfig
	StoreConfig    *StoreConfig
	UpstreamConfig *UpstreamConfig
	RoutesConfig   *RoutesConfig
	DevAuthConfig  *DevAuthConfig
}

func LoadConfig(logger *zap.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// Not fatal: production supplies real environment variables.
		logger.Info("no .env file loaded", zap.Error(err))
	}

	/** app config */
	appConfig := &AppConfig{
		Port:          getEnv("APP_PORT", "8080"),
		SecureCookies: getEnv("APP_SECURE_COOKIES", "true") == "true",
		AllowedOrigin: getEnv("APP_ALLOWED_ORIGIN", "http://localhost:3000"),
	}
	var err error
	if appConfig.ReadTimeout, err = getDuration("APP_READ_TIMEOUT", "10s"); err != nil {
		return nil, err
	}
	if appConfig.WriteTimeout, err = getDuration("APP_WRITE_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if appConfig.IdleTimeout, err = getDuration("APP_IDLE_TIMEOUT", "120s"); err != nil {
		return nil, err
	}

	/** store config */
	storeConfig := &StoreConfig{Backend: getEnv("STORE_BACKEND", "memory")}
	if storeConfig.SlotTTL, err = getDuration("STORE_SLOT_TTL", "720h"); err != nil {
		return nil, err
	}
	switch storeConfig.Backend {
	case "postgres", "redis", "memory":
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", storeConfig.Backend)
	}

	/** db config */
	dbConfig := &DbConfig{DSN: os.Getenv("POSTGRES_DSN")}
	if dbConfig.MaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", "10"); err != nil {
		return nil, err
	}
	if dbConfig.MaxIdleConns, err = getInt("DB_MAX_IDLE_CONNS", "5"); err != nil {
		return nil, err
	}
	if dbConfig.MaxConnLifetime, err = getDuration("DB_CONN_MAX_LIFETIME", "30m"); err != nil {
		return nil, err
	}
	if storeConfig.Backend == "postgres" && dbConfig.DSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required when STORE_BACKEND=postgres")
	}

	/** redis config */
	redisConfig := &RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	}
	if redisConfig.DB, err = getInt("REDIS_DB", "0"); err != nil {
		return nil, err
	}

	/** upstream config */
	upstreamConfig := &UpstreamConfig{
		BaseURL:       os.Getenv("UPSTREAM_BASE_URL"),
		LoginEndpoint: getEnv("UPSTREAM_LOGIN_ENDPOINT", "/adminLogin"),
	}
	if upstreamConfig.Timeout, err = getDuration("UPSTREAM_TIMEOUT", "15s"); err != nil {
		return nil, err
	}

	/** routes config */
	routesConfig := &RoutesConfig{
		LoginPath:     getEnv("ROUTE_LOGIN_PATH", "/login"),
		DashboardPath: getEnv("ROUTE_DASHBOARD_PATH", "/dashboard"),
	}

	/** dev auth config */
	devAuthConfig := &DevAuthConfig{
		Enabled:      getEnv("DEV_AUTH_ENABLED", "false") == "true",
		Username:     os.Getenv("DEV_AUTH_USERNAME"),
		PasswordHash: os.Getenv("DEV_AUTH_PASSWORD_HASH"),
		Role:         getEnv("DEV_AUTH_ROLE", "m_admin"),
		Secret:       os.Getenv("DEV_AUTH_SECRET"),
	}
	if devAuthConfig.TokenTTL, err = getDuration("DEV_AUTH_TOKEN_TTL", "8h"); err != nil {
		return nil, err
	}
	if !devAuthConfig.Enabled && upstreamConfig.BaseURL == "" {
		return nil, fmt.Errorf("UPSTREAM_BASE_URL is required unless DEV_AUTH_ENABLED=true")
	}

	return &Config{
		AppConfig:      appConfig,
		DbConfig:       dbConfig,
		RedisConfig:    redisConfig,
		StoreConfig:    storeConfig,
		UpstreamConfig: upstreamConfig,
		RoutesConfig:   routesConfig,
		DevAuthConfig:  devAuthConfig,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key, fallback string) (time.Duration, error) {
	v := getEnv(key, fallback)
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key, fallback string) (int, error) {
	v := getEnv(key, fallback)
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
