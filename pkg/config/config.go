package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Abraxas-365/flowpilot/iam/auth"
	"github.com/joho/godotenv"
)

// Config configuración principal de la aplicación
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     auth.Config
	Engine   EngineConfig
	Metrics  MetricsConfig
}

// ServerConfig configuración del servidor HTTP
type ServerConfig struct {
	Port            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     string // lista separada por comas
}

// DatabaseConfig configuración de PostgreSQL
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configuración de Redis
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// EngineConfig límites del ejecutor de flujos
type EngineConfig struct {
	MaxStepsPerTurn   int
	ToolTimeout       time.Duration
	TurnTimeout       time.Duration
	LockTTL           time.Duration
	LockWait          time.Duration
	IdempotencyTTL    time.Duration
	DynamicCardsLimit int
	EventsChannel     string
}

// MetricsConfig configuración de Prometheus
type MetricsConfig struct {
	Enabled         bool
	Path            string
	RefreshSchedule string
}

// DefaultEngineConfig valores por defecto del motor
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxStepsPerTurn:   200,
		ToolTimeout:       10 * time.Second,
		TurnTimeout:       60 * time.Second,
		LockTTL:           90 * time.Second,
		LockWait:          10 * time.Second,
		IdempotencyTTL:    24 * time.Hour,
		DynamicCardsLimit: 6,
		EventsChannel:     "flowpilot:events",
	}
}

// Load carga la configuración desde variables de entorno
func Load() (*Config, error) {
	// Cargar .env si existe
	_ = godotenv.Load()

	engineDefaults := DefaultEngineConfig()

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			ReadTimeout:     getDurationEnv("READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 70*time.Second),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
			CorsOrigins:     getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", getEnv("POSTGRES_HOST", "localhost")),
			Port:            getEnv("DB_PORT", getEnv("POSTGRES_PORT", "5432")),
			User:            getEnv("DB_USER", getEnv("POSTGRES_USER", "postgres")),
			Password:        getEnv("DB_PASSWORD", getEnv("POSTGRES_PASSWORD", "postgres")),
			DBName:          getEnv("DB_NAME", getEnv("POSTGRES_DB", "flowpilot")),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Auth: LoadAuthConfig(),
		Engine: EngineConfig{
			MaxStepsPerTurn:   getIntEnv("ENGINE_MAX_STEPS_PER_TURN", engineDefaults.MaxStepsPerTurn),
			ToolTimeout:       getDurationEnv("ENGINE_TOOL_TIMEOUT", engineDefaults.ToolTimeout),
			TurnTimeout:       getDurationEnv("ENGINE_TURN_TIMEOUT", engineDefaults.TurnTimeout),
			LockTTL:           getDurationEnv("ENGINE_LOCK_TTL", engineDefaults.LockTTL),
			LockWait:          getDurationEnv("ENGINE_LOCK_WAIT", engineDefaults.LockWait),
			IdempotencyTTL:    getDurationEnv("ENGINE_IDEMPOTENCY_TTL", engineDefaults.IdempotencyTTL),
			DynamicCardsLimit: getIntEnv("ENGINE_DYNAMIC_CARDS_LIMIT", engineDefaults.DynamicCardsLimit),
			EventsChannel:     getEnv("ENGINE_EVENTS_CHANNEL", engineDefaults.EventsChannel),
		},
		Metrics: MetricsConfig{
			Enabled:         getBoolEnv("METRICS_ENABLED", true),
			Path:            getEnv("METRICS_PATH", "/metrics"),
			RefreshSchedule: getEnv("METRICS_REFRESH_SCHEDULE", "@every 1m"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate valida la configuración
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Engine.MaxStepsPerTurn <= 0 {
		return fmt.Errorf("ENGINE_MAX_STEPS_PER_TURN must be positive")
	}
	if c.Engine.ToolTimeout <= 0 {
		return fmt.Errorf("ENGINE_TOOL_TIMEOUT must be positive")
	}
	// el lock de la conversación tiene que sobrevivir al turno más largo
	if c.Engine.LockTTL <= c.Engine.TurnTimeout {
		return fmt.Errorf("ENGINE_LOCK_TTL (%s) must be greater than ENGINE_TURN_TIMEOUT (%s)",
			c.Engine.LockTTL, c.Engine.TurnTimeout)
	}

	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("invalid auth config: %w", err)
	}

	return nil
}

// IsProduction indica si corre en producción
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// GetDSN retorna el DSN de PostgreSQL
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// GetAddr retorna la dirección de Redis
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intValue int
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// LoadAuthConfig carga la configuración de auth desde variables de entorno
func LoadAuthConfig() auth.Config {
	defaults := auth.DefaultConfig()
	return auth.Config{
		JWT: auth.JWTConfig{
			SecretKey:      getEnv("JWT_SECRET", ""),
			AccessTokenTTL: getDurationEnv("ACCESS_TOKEN_TTL", defaults.JWT.AccessTokenTTL),
			Issuer:         getEnv("JWT_ISSUER", defaults.JWT.Issuer),
			Audience:       getEnv("JWT_AUDIENCE", defaults.JWT.Audience),
		},
	}
}
