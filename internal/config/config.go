package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `json:"server"`
	Database     DatabaseConfig     `json:"database"`
	Storage      StorageConfig      `json:"storage"`
	Signing      SigningConfig      `json:"signing"`
	QRProcessing QRProcessingConfig `json:"qr_processing"`
	Logging      LoggingConfig      `json:"logging"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	User           string `json:"user"`
	Password       string `json:"password"`
	DBName         string `json:"db_name"`
	SSLMode        string `json:"ssl_mode"`
	MaxConnections int    `json:"max_connections"`
	MaxIdleConns   int    `json:"max_idle_conns"`
}

// StorageConfig selects and configures the artifact file store.
type StorageConfig struct {
	Backend  string `json:"backend"` // "local" or "s3"
	LocalDir string `json:"local_dir"`
	S3Bucket string `json:"s3_bucket"`
	S3Region string `json:"s3_region"`
}

// SigningConfig configures the external digital-signature service client.
type SigningConfig struct {
	Endpoint   string        `json:"endpoint"`
	APIKey     string        `json:"api_key"`
	Timeout    time.Duration `json:"timeout"`
	MaxRetries int           `json:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay"`
	// BulkRatePerSecond paces bulk signing against the external endpoint.
	// Zero disables pacing.
	BulkRatePerSecond float64 `json:"bulk_rate_per_second"`
}

// QRProcessingConfig is the active QR pipeline configuration. It is loaded
// once and passed into the processor/composer as an explicit value; core
// logic never looks it up globally. Treat it as immutable for the duration
// of a batch.
type QRProcessingConfig struct {
	PositionX       float64 `json:"position_x"`
	PositionY       float64 `json:"position_y"`
	PositionSize    float64 `json:"position_size"`
	ErrorCorrection string  `json:"error_correction"` // L, M, Q, H
	BoxSize         int     `json:"box_size"`
	Border          int     `json:"border"`
	CanonicalSize   int     `json:"canonical_size"`
	PreviewBaseURL  string  `json:"preview_base_url"`
	MaxUploadBytes  int64   `json:"max_upload_bytes"`
	ValidateDecode  bool    `json:"validate_decode"`
}

// VerificationURL builds the QR payload for a certificate UUID.
func (c QRProcessingConfig) VerificationURL(certificateUUID string) string {
	return fmt.Sprintf("%s/verificar/%s/", c.PreviewBaseURL, certificateUUID)
}

// LoggingConfig
type LoggingConfig struct {
	Level string `json:"level"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	// Load from file if exists
	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			if err := json.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables
	overrideWithEnv(config)

	return config, nil
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Host:           "localhost",
			Port:           5432,
			User:           os.Getenv("USER"),
			DBName:         "certifica_portal",
			SSLMode:        "disable",
			MaxConnections: 25,
			MaxIdleConns:   5,
		},
		Storage: StorageConfig{
			Backend:  "local",
			LocalDir: "data/artifacts",
		},
		Signing: SigningConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			RetryDelay: 2 * time.Second,
		},
		QRProcessing: QRProcessingConfig{
			PositionX:       450,
			PositionY:       700,
			PositionSize:    100,
			ErrorCorrection: "M",
			BoxSize:         10,
			Border:          4,
			CanonicalSize:   600,
			PreviewBaseURL:  "http://localhost:8080",
			MaxUploadBytes:  10 << 20,
			ValidateDecode:  true,
		},
		Logging: LoggingConfig{
			Level: "debug",
		},
	}
}

func overrideWithEnv(config *Config) {
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if dbHost := os.Getenv("DATABASE_HOST"); dbHost != "" {
		config.Database.Host = dbHost
	}
	if dbUser := os.Getenv("DATABASE_USER"); dbUser != "" {
		config.Database.User = dbUser
	}
	if dbPass := os.Getenv("DATABASE_PASSWORD"); dbPass != "" {
		config.Database.Password = dbPass
	}
	if dbName := os.Getenv("DATABASE_DBNAME"); dbName != "" {
		config.Database.DBName = dbName
	}
	if endpoint := os.Getenv("SIGNING_ENDPOINT"); endpoint != "" {
		config.Signing.Endpoint = endpoint
	}
	if key := os.Getenv("SIGNING_API_KEY"); key != "" {
		config.Signing.APIKey = key
	}
	if base := os.Getenv("QR_PREVIEW_BASE_URL"); base != "" {
		config.QRProcessing.PreviewBaseURL = base
	}
	if bucket := os.Getenv("STORAGE_S3_BUCKET"); bucket != "" {
		config.Storage.Backend = "s3"
		config.Storage.S3Bucket = bucket
	}
	if region := os.Getenv("STORAGE_S3_REGION"); region != "" {
		config.Storage.S3Region = region
	}
}

// GetDatabaseURL returns the database connection string
func (c *DatabaseConfig) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetServerAddr returns the server address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
