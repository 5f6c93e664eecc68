package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the users service.
type Config struct {
	ServiceID string
	LogLevel  string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string
	MaxDBConns  int32

	KeycloakURL       string
	KeycloakRealm     string
	AdminClientID     string
	AdminClientSecret string
	AuthClientID      string
	AuthClientSecret  string
	// Issuer and JWKSURL are discovered from the realm when left empty.
	Issuer          string
	JWKSURL         string
	Audience        string
	KeycloakTimeout time.Duration

	StorageEndpoint      string
	StorageRegion        string
	PhotosBucket         string
	StorageAccessKey     string
	StorageSecretKey     string
	StoragePublicBaseURL string
	StoragePathStyle     bool
	MaxPhotoBytes        int64
	AcceptedImageTypes   []string

	CookieSecure    bool
	AccountCacheTTL time.Duration
	HealthInterval  time.Duration

	CompensationInterval     time.Duration
	CompensationMisfireGrace time.Duration
	CompensationBatchSize    int
	CompensationMaxAttempts  int
	CompensationMaxDelay     time.Duration
	CompensationMaxJitter    time.Duration

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxClaimTTL     time.Duration
	OutboxMaxRetries   int

	KafkaBrokers []string
	KafkaTopics  map[string]string
}

// configFile mirrors the YAML schema used by configs/default.yaml.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		LogLevel string `yaml:"log_level"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
		MaxDBConns  int32  `yaml:"max_db_conns"`
	} `yaml:"dependencies"`
	Keycloak struct {
		BaseURL        string `yaml:"base_url"`
		Realm          string `yaml:"realm"`
		AdminClientID  string `yaml:"admin_client_id"`
		AuthClientID   string `yaml:"auth_client_id"`
		Issuer         string `yaml:"issuer"`
		JWKSURL        string `yaml:"jwks_url"`
		Audience       string `yaml:"audience"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"keycloak"`
	Storage struct {
		Endpoint           string   `yaml:"endpoint"`
		Region             string   `yaml:"region"`
		Bucket             string   `yaml:"bucket"`
		PublicBaseURL      string   `yaml:"public_base_url"`
		PathStyle          *bool    `yaml:"path_style"`
		MaxPhotoBytes      int64    `yaml:"max_photo_bytes"`
		AcceptedImageTypes []string `yaml:"accepted_image_types"`
	} `yaml:"storage"`
	HTTP struct {
		CookieSecure *bool `yaml:"cookie_secure"`
	} `yaml:"http"`
	Cache struct {
		AccountTTLSeconds int `yaml:"account_ttl_seconds"`
	} `yaml:"cache"`
	Compensation struct {
		IntervalSeconds     int `yaml:"interval_seconds"`
		MisfireGraceSeconds int `yaml:"misfire_grace_seconds"`
		BatchSize           int `yaml:"batch_size"`
		MaxAttempts         int `yaml:"max_attempts"`
		MaxDelayMinutes     int `yaml:"max_delay_minutes"`
		MaxJitterSeconds    int `yaml:"max_jitter_seconds"`
	} `yaml:"compensation"`
	Outbox struct {
		PollSeconds     int `yaml:"poll_seconds"`
		BatchSize       int `yaml:"batch_size"`
		ClaimTTLSeconds int `yaml:"claim_ttl_seconds"`
		MaxRetries      int `yaml:"max_retries"`
	} `yaml:"outbox"`
	Kafka struct {
		Brokers []string          `yaml:"brokers"`
		Topics  map[string]string `yaml:"topics"`
	} `yaml:"kafka"`
}

func defaultConfig() Config {
	return Config{
		ServiceID:                "users-service",
		LogLevel:                 "info",
		HTTPPort:                 8080,
		GRPCPort:                 9090,
		MaxDBConns:               20,
		AdminClientID:            "users-service-admin",
		AuthClientID:             "users-service",
		Audience:                 "account",
		KeycloakTimeout:          8 * time.Second,
		StorageRegion:            "us-east-1",
		PhotosBucket:             "profile-photos",
		StoragePathStyle:         true,
		MaxPhotoBytes:            5 * 1024 * 1024,
		AcceptedImageTypes:       []string{"image/jpeg", "image/png", "image/webp"},
		CookieSecure:             true,
		AccountCacheTTL:          120 * time.Second,
		HealthInterval:           10 * time.Second,
		CompensationInterval:     900 * time.Second,
		CompensationMisfireGrace: 60 * time.Second,
		CompensationBatchSize:    25,
		CompensationMaxAttempts:  5,
		CompensationMaxDelay:     60 * time.Minute,
		CompensationMaxJitter:    30 * time.Second,
		OutboxPollInterval:       2 * time.Second,
		OutboxBatchSize:          100,
		OutboxClaimTTL:           30 * time.Second,
		OutboxMaxRetries:         5,
	}
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// A missing file is not an error; a malformed one is.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		applyFile(&cfg, f)
	case !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	applyEnv(&cfg)

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DATABASE_URL")
	}
	return cfg, nil
}

func applyFile(cfg *Config, f configFile) {
	setString(&cfg.ServiceID, f.Service.ID)
	setString(&cfg.LogLevel, f.Service.LogLevel)
	setInt(&cfg.HTTPPort, f.Service.HTTPPort)
	setInt(&cfg.GRPCPort, f.Service.GRPCPort)

	setString(&cfg.DatabaseURL, f.Dependencies.PostgresURL)
	setString(&cfg.RedisURL, f.Dependencies.RedisURL)
	if f.Dependencies.MaxDBConns > 0 {
		cfg.MaxDBConns = f.Dependencies.MaxDBConns
	}

	setString(&cfg.KeycloakURL, f.Keycloak.BaseURL)
	setString(&cfg.KeycloakRealm, f.Keycloak.Realm)
	setString(&cfg.AdminClientID, f.Keycloak.AdminClientID)
	setString(&cfg.AuthClientID, f.Keycloak.AuthClientID)
	setString(&cfg.Issuer, f.Keycloak.Issuer)
	setString(&cfg.JWKSURL, f.Keycloak.JWKSURL)
	setString(&cfg.Audience, f.Keycloak.Audience)
	setSeconds(&cfg.KeycloakTimeout, f.Keycloak.TimeoutSeconds)

	setString(&cfg.StorageEndpoint, f.Storage.Endpoint)
	setString(&cfg.StorageRegion, f.Storage.Region)
	setString(&cfg.PhotosBucket, f.Storage.Bucket)
	setString(&cfg.StoragePublicBaseURL, f.Storage.PublicBaseURL)
	if f.Storage.PathStyle != nil {
		cfg.StoragePathStyle = *f.Storage.PathStyle
	}
	if f.Storage.MaxPhotoBytes > 0 {
		cfg.MaxPhotoBytes = f.Storage.MaxPhotoBytes
	}
	if len(f.Storage.AcceptedImageTypes) > 0 {
		cfg.AcceptedImageTypes = f.Storage.AcceptedImageTypes
	}
	if f.HTTP.CookieSecure != nil {
		cfg.CookieSecure = *f.HTTP.CookieSecure
	}
	setSeconds(&cfg.AccountCacheTTL, f.Cache.AccountTTLSeconds)

	setSeconds(&cfg.CompensationInterval, f.Compensation.IntervalSeconds)
	setSeconds(&cfg.CompensationMisfireGrace, f.Compensation.MisfireGraceSeconds)
	setInt(&cfg.CompensationBatchSize, f.Compensation.BatchSize)
	setInt(&cfg.CompensationMaxAttempts, f.Compensation.MaxAttempts)
	if f.Compensation.MaxDelayMinutes > 0 {
		cfg.CompensationMaxDelay = time.Duration(f.Compensation.MaxDelayMinutes) * time.Minute
	}
	setSeconds(&cfg.CompensationMaxJitter, f.Compensation.MaxJitterSeconds)

	setSeconds(&cfg.OutboxPollInterval, f.Outbox.PollSeconds)
	setInt(&cfg.OutboxBatchSize, f.Outbox.BatchSize)
	setSeconds(&cfg.OutboxClaimTTL, f.Outbox.ClaimTTLSeconds)
	setInt(&cfg.OutboxMaxRetries, f.Outbox.MaxRetries)

	if len(f.Kafka.Brokers) > 0 {
		cfg.KafkaBrokers = f.Kafka.Brokers
	}
	if len(f.Kafka.Topics) > 0 {
		cfg.KafkaTopics = f.Kafka.Topics
	}
}

func applyEnv(cfg *Config) {
	cfg.ServiceID = envOrDefault("SERVICE_ID", cfg.ServiceID)
	cfg.LogLevel = envOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)

	cfg.DatabaseURL = envOrDefault("DATABASE_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.KeycloakURL = envOrDefault("KEYCLOAK_URL", cfg.KeycloakURL)
	cfg.KeycloakRealm = envOrDefault("KC_REALM", cfg.KeycloakRealm)
	cfg.AdminClientID = envOrDefault("KC_CLIENT_ID", cfg.AdminClientID)
	cfg.AdminClientSecret = envOrDefault("KC_ADMIN_SECRET", cfg.AdminClientSecret)
	cfg.AuthClientID = envOrDefault("KC_CLIENT_AUTH", cfg.AuthClientID)
	cfg.AuthClientSecret = envOrDefault("KC_AUTH_SECRET", cfg.AuthClientSecret)
	cfg.Issuer = envOrDefault("KC_ISSUER", cfg.Issuer)
	cfg.JWKSURL = envOrDefault("KC_JWKS_URL", cfg.JWKSURL)
	cfg.Audience = envOrDefault("OIDC_AUDIENCE", cfg.Audience)
	cfg.KeycloakTimeout = envDuration("KC_HTTP_TIMEOUT", cfg.KeycloakTimeout)

	cfg.StorageEndpoint = envOrDefault("MINIO_URL", cfg.StorageEndpoint)
	cfg.StorageRegion = envOrDefault("STORAGE_REGION", cfg.StorageRegion)
	cfg.PhotosBucket = envOrDefault("PROFILE_PHOTOS_BUCKET", cfg.PhotosBucket)
	cfg.StorageAccessKey = envOrDefault("ACCESS_KEY", cfg.StorageAccessKey)
	cfg.StorageSecretKey = envOrDefault("SECRET_KEY", cfg.StorageSecretKey)
	cfg.StoragePublicBaseURL = envOrDefault("STORAGE_PUBLIC_BASE_URL", cfg.StoragePublicBaseURL)
	cfg.StoragePathStyle = envBool("STORAGE_PATH_STYLE", cfg.StoragePathStyle)
	cfg.MaxPhotoBytes = int64(envInt("MAX_PHOTO_BYTES", int(cfg.MaxPhotoBytes)))
	cfg.AcceptedImageTypes = envCSV("ACCEPTED_IMAGE_MIME_TYPES", cfg.AcceptedImageTypes)

	cfg.CookieSecure = envBool("COOKIE_SECURE", cfg.CookieSecure)
	cfg.AccountCacheTTL = time.Duration(envInt("CACHE_TTL_SECONDS", int(cfg.AccountCacheTTL.Seconds()))) * time.Second
	cfg.HealthInterval = envDuration("HEALTH_INTERVAL", cfg.HealthInterval)

	cfg.CompensationInterval = envDuration("COMPENSATION_INTERVAL", cfg.CompensationInterval)
	cfg.CompensationMisfireGrace = envDuration("COMPENSATION_MISFIRE_GRACE", cfg.CompensationMisfireGrace)
	cfg.CompensationBatchSize = envInt("COMPENSATION_BATCH_SIZE", cfg.CompensationBatchSize)
	cfg.CompensationMaxAttempts = envInt("COMPENSATION_MAX_ATTEMPTS", cfg.CompensationMaxAttempts)
	cfg.CompensationMaxDelay = envDuration("COMPENSATION_MAX_DELAY", cfg.CompensationMaxDelay)
	cfg.CompensationMaxJitter = envDuration("COMPENSATION_MAX_JITTER", cfg.CompensationMaxJitter)

	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.OutboxClaimTTL = time.Duration(envInt("OUTBOX_CLAIM_TTL_SECONDS", int(cfg.OutboxClaimTTL.Seconds()))) * time.Second
	cfg.OutboxMaxRetries = envInt("OUTBOX_MAX_RETRIES", cfg.OutboxMaxRetries)

	cfg.KafkaBrokers = envCSV("KAFKA_BROKERS", cfg.KafkaBrokers)
}

// requireServing checks the settings the API and worker need beyond the database.
func (c Config) requireServing() error {
	var missing []string
	if c.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}
	if c.KeycloakURL == "" {
		missing = append(missing, "KEYCLOAK_URL")
	}
	if c.KeycloakRealm == "" {
		missing = append(missing, "KC_REALM")
	}
	if c.AdminClientSecret == "" {
		missing = append(missing, "KC_ADMIN_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v > 0 {
		*dst = v
	}
}

func setSeconds(dst *time.Duration, v int) {
	if v > 0 {
		*dst = time.Duration(v) * time.Second
	}
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envDuration accepts Go durations ("90s", "15m") or a bare number of seconds.
func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
