package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"chainflow-backend/pkg/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	Redis        RedisConfig        `mapstructure:"redis"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Queue        QueueConfig        `mapstructure:"queue"`
	Worker       WorkerConfig       `mapstructure:"worker"`
	Scanner      ScannerConfig      `mapstructure:"scanner"`
	RPC          RPCConfig          `mapstructure:"rpc"`
	Notification NotificationConfig `mapstructure:"notification"`
	Log          logger.Config      `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret       string        `mapstructure:"secret"`
	AccessExpiry time.Duration `mapstructure:"access_expiry"`
}

// QueueConfig 两级队列配置（区块队列 -> 工作流队列）
type QueueConfig struct {
	BlockStream     string        `mapstructure:"block_stream"`
	BlockDLQStream  string        `mapstructure:"block_dlq_stream"`
	WorkflowStream  string        `mapstructure:"workflow_stream"`
	WorkflowDLQ     string        `mapstructure:"workflow_dlq_stream"`
	Group           string        `mapstructure:"group"`
	Consumer        string        `mapstructure:"consumer"`
	BatchSize       int64         `mapstructure:"batch_size"`
	Block           time.Duration `mapstructure:"block"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	RequeueDelay    time.Duration `mapstructure:"requeue_delay"`
	ReclaimMinIdle  time.Duration `mapstructure:"reclaim_min_idle"`
	JobLeaseTTL     time.Duration `mapstructure:"job_lease_ttl"`
	JobGuardTTL     time.Duration `mapstructure:"job_guard_ttl"`
	EventCacheTTL   time.Duration `mapstructure:"event_cache_ttl"`
	StreamMaxLength int64         `mapstructure:"stream_max_length"`
}

// WorkerConfig 工作池配置
type WorkerConfig struct {
	BlockConcurrency    int           `mapstructure:"block_concurrency"`
	WorkflowConcurrency int           `mapstructure:"workflow_concurrency"`
	TaskTimeout         time.Duration `mapstructure:"task_timeout"`
}

// ScannerConfig 扫链配置
type ScannerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	ScanInterval     time.Duration `mapstructure:"scan_interval"`
	ScanIntervalSlow time.Duration `mapstructure:"scan_interval_slow"`
	ScanBatchSize    int           `mapstructure:"scan_batch_size"`
	ErrorBackoff     time.Duration `mapstructure:"error_backoff"`
}

// RPCConfig 链节点RPC配置
type RPCConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryMax   int           `mapstructure:"retry_max"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// NotificationConfig 通知渠道配置
type NotificationConfig struct {
	SecretKey        string        `mapstructure:"secret_key"` // 用于加密 webhook secret
	HTTPTimeout      time.Duration `mapstructure:"http_timeout"`
	TelegramBotToken string        `mapstructure:"telegram_bot_token"`
	TelegramAPIBase  string        `mapstructure:"telegram_api_base"`
	SMTP             SMTPConfig    `mapstructure:"smtp"`
}

// SMTPConfig 邮件发送配置
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// Addr 返回 host:port
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoadConfig 加载配置：.env -> config.yaml -> CHAINFLOW_ 环境变量
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	return Load(os.Getenv("CONFIG_FILE"))
}

// Load 从指定文件加载配置，cfgFile 为空时在当前目录及 ./config 下查找 config.yaml
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CHAINFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验关键配置
func (c *Config) Validate() error {
	if c.Worker.WorkflowConcurrency <= 0 || c.Worker.BlockConcurrency <= 0 {
		return fmt.Errorf("worker concurrency must be positive")
	}
	if c.Worker.TaskTimeout <= 0 {
		return fmt.Errorf("worker.task_timeout must be positive")
	}
	if c.Queue.MaxAttempts <= 0 {
		return fmt.Errorf("queue.max_attempts must be positive")
	}
	if c.Queue.BlockStream == c.Queue.WorkflowStream {
		return fmt.Errorf("block and workflow streams must differ")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "chainflow")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "chainflow-dev-secret")
	v.SetDefault("jwt.access_expiry", "24h")

	v.SetDefault("queue.block_stream", "chainflow:blocks")
	v.SetDefault("queue.block_dlq_stream", "chainflow:blocks:dlq")
	v.SetDefault("queue.workflow_stream", "chainflow:workflows")
	v.SetDefault("queue.workflow_dlq_stream", "chainflow:workflows:dlq")
	v.SetDefault("queue.group", "chainflow")
	v.SetDefault("queue.consumer", hostnameOr("chainflow-worker"))
	v.SetDefault("queue.batch_size", 10)
	v.SetDefault("queue.block", "5s")
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.requeue_delay", "2s")
	v.SetDefault("queue.reclaim_min_idle", "15m")
	v.SetDefault("queue.job_lease_ttl", "10m")
	v.SetDefault("queue.job_guard_ttl", "168h")
	v.SetDefault("queue.event_cache_ttl", "1h")
	v.SetDefault("queue.stream_max_length", 100000)

	v.SetDefault("worker.block_concurrency", 2)
	v.SetDefault("worker.workflow_concurrency", 10)
	v.SetDefault("worker.task_timeout", "30s")

	v.SetDefault("scanner.enabled", true)
	v.SetDefault("scanner.scan_interval", "1s")
	v.SetDefault("scanner.scan_interval_slow", "6s")
	v.SetDefault("scanner.scan_batch_size", 20)
	v.SetDefault("scanner.error_backoff", "30s")

	v.SetDefault("rpc.timeout", "15s")
	v.SetDefault("rpc.retry_max", 3)
	v.SetDefault("rpc.retry_delay", "1s")

	v.SetDefault("notification.secret_key", "")
	v.SetDefault("notification.http_timeout", "10s")
	v.SetDefault("notification.telegram_api_base", "https://api.telegram.org")
	v.SetDefault("notification.smtp.port", 587)

	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.enable_console", true)
	v.SetDefault("log.enable_file", false)
	v.SetDefault("log.file_path", "./logs/chainflow.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("log.enable_db", false)
}

func hostnameOr(fallback string) string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return fallback
	}
	return name
}
