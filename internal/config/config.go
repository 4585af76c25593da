package config

import (
	"context"
	"fmt"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server   ServerConfig   `env:",prefix=SERVER_"`
	Postgres PostgresConfig `env:",prefix=POSTGRES_"`
	Redis    RedisConfig    `env:",prefix=REDIS_"`
	OAuth    OAuthConfig    `env:",prefix=OAUTH_"`
	Session  SessionConfig  `env:",prefix=SESSION_"`
	Token    TokenConfig    `env:",prefix=TOKEN_"`
	Security SecurityConfig `env:",prefix="`
	CORS     CORSConfig     `env:",prefix=CORS_"`
	Env      string         `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=15s"`
	// PublicBaseURL is the origin providers redirect back to
	PublicBaseURL string `env:"PUBLIC_BASE_URL,default=http://localhost:8080"`
}

type PostgresConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=5432"`
	User     string `env:"USER,default=docta_auth"`
	Password string `env:"PASSWORD,default=docta_auth_password"`
	DBName   string `env:"DB,default=docta_auth_db"`
	SSLMode  string `env:"SSLMODE,default=disable"`
}

type RedisConfig struct {
	Host     string `env:"HOST,default=localhost"`
	Port     string `env:"PORT,default=6379"`
	Password string `env:"PASSWORD,default="`
	DB       int    `env:"DB,default=0"`
}

type OAuthConfig struct {
	Google   ProviderCredentials `env:",prefix=GOOGLE_"`
	Facebook ProviderCredentials `env:",prefix=FACEBOOK_"`
	// StateTTL bounds how long an issued CSRF state stays redeemable
	StateTTL Duration `env:"STATE_TTL,default=10m"`
}

type ProviderCredentials struct {
	ClientID     string `env:"CLIENT_ID,default="`
	ClientSecret string `env:"CLIENT_SECRET,default="`
}

// Enabled reports whether the provider is configured
func (p ProviderCredentials) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

type SessionConfig struct {
	// TTL of 0 disables session expiry
	TTL Duration `env:"TTL,default=30d"`
}

type TokenConfig struct {
	PasswordResetTTL     Duration `env:"PASSWORD_RESET_TTL,default=1h"`
	EmailVerificationTTL Duration `env:"EMAIL_VERIFICATION_TTL,default=24h"`
	EmailChangeTTL       Duration `env:"EMAIL_CHANGE_TTL,default=1h"`
}

type SecurityConfig struct {
	// StateSecret signs the OAuth CSRF state
	StateSecret         string   `env:"STATE_SECRET,required"`
	BCryptCost          int      `env:"BCRYPT_COST,default=12"`
	RateLimitRequests   int      `env:"RATE_LIMIT_REQUESTS,default=10"`
	RateLimitWindow     Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
	SuspiciousWindow    Duration `env:"SUSPICIOUS_WINDOW,default=30m"`
	SuspiciousThreshold int      `env:"SUSPICIOUS_THRESHOLD,default=5"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// URL returns the PostgreSQL connection URL used by migrations
func (p PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if len(config.Security.StateSecret) < 32 {
		return nil, fmt.Errorf("STATE_SECRET must be at least 32 characters long")
	}

	return &config, nil
}

// LoadWithDefaults loads configuration with default context
func LoadWithDefaults() (*Config, error) {
	return Load(context.Background())
}
