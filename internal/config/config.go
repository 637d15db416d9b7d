package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Storage drivers
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config represents the complete application configuration
type Config struct {
	App       AppConfig       `yaml:"app"`
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
	Logging   LoggingConfig   `yaml:"logging"`
	Worker    WorkerConfig    `yaml:"worker"`
	Storage   StorageConfig   `yaml:"storage"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Sobriety  SobrietyConfig  `yaml:"sobriety"`
	Vision    VisionConfig    `yaml:"vision"`
	Wallet    WalletConfig    `yaml:"wallet"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	// Enabled routes job completions through the broker; otherwise the API
	// settles them in-process.
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int    `yaml:"prefetch_count"`
	Tag           string `yaml:"tag"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// WorkerConfig holds settlement worker configuration
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	SettleTimeout   time.Duration `yaml:"settle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Completed jobs older than ReconcileGrace with no payment are settled
	// every ReconcileInterval. A negative interval disables the sweep.
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	ReconcileGrace    time.Duration `yaml:"reconcile_grace"`
	ReconcileBatch    int           `yaml:"reconcile_batch"`
}

// StorageConfig selects the store implementation
type StorageConfig struct {
	Driver string `yaml:"driver"`
	// SeedLaborers are registered at startup; mostly useful with the memory driver.
	SeedLaborers []LaborerSeed `yaml:"seed_laborers"`
}

// LaborerSeed is a laborer profile declared in configuration
type LaborerSeed struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Skills       []string `yaml:"skills"`
	Availability string   `yaml:"availability"`
}

// DispatchConfig holds offer fan-out settings
type DispatchConfig struct {
	NotifyJobTaken bool          `yaml:"notify_job_taken"`
	OfferTTL       time.Duration `yaml:"offer_ttl"`
}

// WebSocketConfig holds push channel settings
type WebSocketConfig struct {
	PingInterval    time.Duration `yaml:"ping_interval"`
	PongWait        time.Duration `yaml:"pong_wait"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	RegisterTimeout time.Duration `yaml:"register_timeout"`
	ReadLimit       int64         `yaml:"read_limit"`
}

// SobrietyConfig holds fitness check settings
type SobrietyConfig struct {
	Cooldown        time.Duration `yaml:"cooldown"`
	AnalysisTimeout time.Duration `yaml:"analysis_timeout"`
	Validity        time.Duration `yaml:"validity"`
	RequireForStart bool          `yaml:"require_for_start"`
	MaxImageBytes   int           `yaml:"max_image_bytes"`
}

// VisionConfig holds analysis service settings. With no endpoint, every
// analysis answers StaticResponse.
type VisionConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	Prompt         string        `yaml:"prompt"`
	Timeout        time.Duration `yaml:"timeout"`
	StaticResponse string        `yaml:"static_response"`
}

// WalletConfig holds settlement settings. Amounts are in minor units.
type WalletConfig struct {
	PlatformFeePercent float64 `yaml:"platform_fee_percent"`
	MinWithdrawal      int64   `yaml:"min_withdrawal"`
}

// Load reads the configuration file, expands ${VAR} references from the
// environment, parses it and applies defaults.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverPostgres
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.RabbitMQ.Exchange.Type == "" {
		c.RabbitMQ.Exchange.Type = "topic"
	}
	if c.RabbitMQ.RoutingKey == "" {
		c.RabbitMQ.RoutingKey = "job.completed"
	}
	if c.RabbitMQ.Connection.RetryAttempts <= 0 {
		c.RabbitMQ.Connection.RetryAttempts = 5
	}
	if c.RabbitMQ.Connection.RetryInterval <= 0 {
		c.RabbitMQ.Connection.RetryInterval = 2 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.Worker.Concurrency <= 0 {
		c.Worker.Concurrency = 4
	}
	if c.Worker.SettleTimeout <= 0 {
		c.Worker.SettleTimeout = 30 * time.Second
	}
	if c.Worker.ShutdownTimeout <= 0 {
		c.Worker.ShutdownTimeout = 30 * time.Second
	}
	if c.Worker.ReconcileInterval == 0 {
		c.Worker.ReconcileInterval = time.Minute
	}
	if c.Worker.ReconcileGrace <= 0 {
		c.Worker.ReconcileGrace = 2 * time.Minute
	}
	if c.Worker.ReconcileBatch <= 0 {
		c.Worker.ReconcileBatch = 100
	}
	if c.Dispatch.OfferTTL <= 0 {
		c.Dispatch.OfferTTL = time.Minute
	}
	if c.WebSocket.PingInterval <= 0 {
		c.WebSocket.PingInterval = 30 * time.Second
	}
	if c.WebSocket.PongWait <= 0 {
		c.WebSocket.PongWait = 2 * c.WebSocket.PingInterval
	}
	if c.WebSocket.WriteTimeout <= 0 {
		c.WebSocket.WriteTimeout = 10 * time.Second
	}
	if c.WebSocket.RegisterTimeout <= 0 {
		c.WebSocket.RegisterTimeout = 10 * time.Second
	}
	if c.WebSocket.ReadLimit <= 0 {
		c.WebSocket.ReadLimit = 4096
	}
	if c.Sobriety.Cooldown <= 0 {
		c.Sobriety.Cooldown = 5*time.Hour + 30*time.Minute
	}
	if c.Sobriety.AnalysisTimeout <= 0 {
		c.Sobriety.AnalysisTimeout = 30 * time.Second
	}
	if c.Sobriety.Validity <= 0 {
		c.Sobriety.Validity = 12 * time.Hour
	}
	if c.Sobriety.MaxImageBytes <= 0 {
		c.Sobriety.MaxImageBytes = 5 << 20
	}
	if c.Vision.Timeout <= 0 {
		c.Vision.Timeout = c.Sobriety.AnalysisTimeout
	}
}

// Validate checks the API service configuration
func (c *Config) Validate() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	switch c.Storage.Driver {
	case DriverPostgres:
		if err := c.validateDatabase(); err != nil {
			return err
		}
	case DriverMemory:
	default:
		return fmt.Errorf("invalid storage driver: %q (must be %q or %q)", c.Storage.Driver, DriverPostgres, DriverMemory)
	}

	if c.RabbitMQ.Enabled {
		if c.Storage.Driver == DriverMemory {
			return fmt.Errorf("rabbitmq requires the postgres storage driver so the worker can read jobs")
		}
		if err := c.validateRabbitMQ(); err != nil {
			return err
		}
	}

	if c.Vision.Endpoint == "" && c.Vision.StaticResponse == "" {
		return fmt.Errorf("vision endpoint or static_response is required")
	}

	if c.Wallet.PlatformFeePercent < 0 || c.Wallet.PlatformFeePercent > 100 {
		return fmt.Errorf("invalid wallet platform_fee_percent: %v (must be between 0 and 100)", c.Wallet.PlatformFeePercent)
	}

	if c.Wallet.MinWithdrawal < 0 {
		return fmt.Errorf("wallet min_withdrawal must not be negative")
	}

	for _, seed := range c.Storage.SeedLaborers {
		if seed.ID == "" {
			return fmt.Errorf("seed laborer id is required")
		}
	}

	return nil
}

// ValidateWorker checks the worker service configuration
func (c *Config) ValidateWorker() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateRabbitMQ(); err != nil {
		return err
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Wallet.PlatformFeePercent < 0 || c.Wallet.PlatformFeePercent > 100 {
		return fmt.Errorf("invalid wallet platform_fee_percent: %v (must be between 0 and 100)", c.Wallet.PlatformFeePercent)
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	return nil
}

func (c *Config) validateRabbitMQ() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	return nil
}
