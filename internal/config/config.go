package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Source    SourceConfig
	Scan      ScanConfig
	Approval  ApprovalConfig
	Pricing   PricingConfig
	Scheduler SchedulerConfig
	Notify    NotifyConfig
	Auth      AuthConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig 分层对象存储配置（MinIO/S3 兼容）
type StorageConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	BucketName string
	UseSSL     bool
}

// SourceConfig 源文档系统配置
type SourceConfig struct {
	BaseURL string
	Timeout int
}

// ScanConfig 扫描配置
type ScanConfig struct {
	TargetHourLocal        int    // 租户本地时间扫描窗口的目标小时
	WindowHours            int    // 窗口宽度（小时）
	CooldownHours          int    // 两次扫描之间的最小间隔
	MaxConcurrentTransfers int    // 并发传输上限
	RulePriority           string // 多规则命中的决胜顺序：created_asc
	LockTTLMinutes         int    // 扫描去重锁的过期时间
}

// ApprovalConfig 审批配置
type ApprovalConfig struct {
	DispatchMaxAttempts   int // 通知投递尝试次数上限
	DispatchBackoffMillis int // 首次重试退避
	MaxAutoApprovalDays   int // 自动审批天数上限
}

// PricingConfig 费率表，单位：每 GB 每月
// 节省估算 = (源系统费率 - 目标层费率) × GB × 12，属配置而非逻辑
type PricingConfig struct {
	SourcePerGBMonth float64
	TierPerGBMonth   map[string]float64
}

// SchedulerConfig 后台调度 cron 表达式
type SchedulerConfig struct {
	ScanSpec        string
	ApprovalSpec    string
	RehydrationSpec string
	SnapshotSpec    string
}

// NotifyConfig 通知渠道配置
type NotifyConfig struct {
	WebhookURL string
	Timeout    int
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret       string
	TokenTTLMinutes int
	RefreshTTLHours int
}

var globalConfig *Config

// Load 加载配置
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 环境变量
	v.SetEnvPrefix("TIERKEEP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("config not loaded")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "tierkeep")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", true)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "tierkeep")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Storage
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.bucketName", "tierkeep-archive")
	v.SetDefault("storage.useSSL", false)

	// Source
	v.SetDefault("source.baseUrl", "")
	v.SetDefault("source.timeout", 60)

	// Scan
	v.SetDefault("scan.targetHourLocal", 2)
	v.SetDefault("scan.windowHours", 1)
	v.SetDefault("scan.cooldownHours", 20)
	v.SetDefault("scan.maxConcurrentTransfers", 8)
	v.SetDefault("scan.rulePriority", "created_asc")
	v.SetDefault("scan.lockTTLMinutes", 120)

	// Approval
	v.SetDefault("approval.dispatchMaxAttempts", 3)
	v.SetDefault("approval.dispatchBackoffMillis", 500)
	v.SetDefault("approval.maxAutoApprovalDays", 365)

	// Pricing
	v.SetDefault("pricing.sourcePerGBMonth", 0.20)
	v.SetDefault("pricing.tierPerGBMonth", map[string]float64{
		"hot":     0.18,
		"cool":    0.01,
		"cold":    0.0045,
		"archive": 0.002,
	})

	// Scheduler
	v.SetDefault("scheduler.scanSpec", "@every 15m")
	v.SetDefault("scheduler.approvalSpec", "@every 10m")
	v.SetDefault("scheduler.rehydrationSpec", "@every 5m")
	v.SetDefault("scheduler.snapshotSpec", "0 3 * * *")

	// Notify
	v.SetDefault("notify.webhookUrl", "")
	v.SetDefault("notify.timeout", 15)

	// Auth
	v.SetDefault("auth.tokenTTLMinutes", 60)
	v.SetDefault("auth.refreshTTLHours", 168)
}
