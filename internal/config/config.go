package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	OCR       OCRConfig       `mapstructure:"ocr"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// OpenAIConfig holds the LLM structuring configuration
type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// OCRConfig holds text recognition configuration
type OCRConfig struct {
	Binary    string `mapstructure:"binary"`
	Languages string `mapstructure:"languages"`
}

// StorageConfig holds object store configuration
type StorageConfig struct {
	BaseDir string `mapstructure:"base_dir"`
	BaseURL string `mapstructure:"base_url"`
}

// IngestionConfig tunes the bill ingestion pipeline
type IngestionConfig struct {
	OCRConfidenceMin float64       `mapstructure:"ocr_confidence_min"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	JobTimeout       time.Duration `mapstructure:"job_timeout"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`
	MaxPDFPages      int           `mapstructure:"max_pdf_pages"`
	PromptsPath      string        `mapstructure:"prompts_path"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/smartstore.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// OpenAI defaults
	viper.SetDefault("openai.model", "gpt-4o")
	viper.SetDefault("openai.timeout", 60*time.Second)

	// OCR defaults
	viper.SetDefault("ocr.binary", "tesseract")
	viper.SetDefault("ocr.languages", "eng+hin")

	// Storage defaults
	viper.SetDefault("storage.base_dir", "data/uploads")
	viper.SetDefault("storage.base_url", "http://localhost:8080/files")

	// Ingestion defaults
	viper.SetDefault("ingestion.ocr_confidence_min", 60.0)
	viper.SetDefault("ingestion.poll_interval", 5*time.Second)
	viper.SetDefault("ingestion.job_timeout", 2*time.Minute)
	viper.SetDefault("ingestion.max_attempts", 3)
	viper.SetDefault("ingestion.retry_base_delay", 5*time.Second)
	viper.SetDefault("ingestion.max_pdf_pages", 2)
	viper.SetDefault("ingestion.prompts_path", "configs/prompts.yaml")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	// Sensitive credentials from environment
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("storage.base_dir", "STORAGE_BASE_DIR")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.BaseDir == "" {
		return fmt.Errorf("storage.base_dir is required")
	}
	if c.Ingestion.OCRConfidenceMin < 0 || c.Ingestion.OCRConfidenceMin > 100 {
		return fmt.Errorf("ingestion.ocr_confidence_min must be between 0 and 100")
	}
	if c.Ingestion.MaxAttempts <= 0 {
		return fmt.Errorf("ingestion.max_attempts must be positive")
	}
	return nil
}
