// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Sentiment SentimentConfig `mapstructure:"sentiment"`
	NewsAPI   NewsAPIConfig   `mapstructure:"newsapi"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig 存储关系型数据库的配置。
// Driver 取值 mysql 或 sqlite。
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig 存储 Redis 的配置。未启用时使用进程内缓存。
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// AdminConfig 描述启动时自动创建的种子管理员账号。
type AdminConfig struct {
	Email       string `mapstructure:"email"`
	Password    string `mapstructure:"password"`
	Name        string `mapstructure:"name"`
	Username    string `mapstructure:"username"`
	CPF         string `mapstructure:"cpf"`
	CNPJ        string `mapstructure:"cnpj"`
	CompanyName string `mapstructure:"company_name"`
	CompanyType string `mapstructure:"company_type"`
}

// SentimentConfig 存储情感模型文件的位置。
type SentimentConfig struct {
	ModelPath string `mapstructure:"model_path"`
}

// NewsAPIConfig 存储新闻检索服务的配置。
type NewsAPIConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	APIKey   string        `mapstructure:"api_key"`
	Language string        `mapstructure:"language"`
	SortBy   string        `mapstructure:"sort_by"`
	PageSize int           `mapstructure:"page_size"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// IngestConfig 存储文件导入相关的限制。
type IngestConfig struct {
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
	SampleSize     int   `mapstructure:"sample_size"`
	InsertBatch    int   `mapstructure:"insert_batch"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// setDefaults 为每个配置项提供默认值，配置文件和环境变量在其之上覆盖。
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "feedai.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_token_expire_hours", 24)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("admin.email", "admin@admin.com")
	v.SetDefault("admin.password", "")
	v.SetDefault("admin.name", "admin")
	v.SetDefault("admin.username", "admin")
	v.SetDefault("admin.cpf", "11111111111")
	v.SetDefault("admin.cnpj", "74599023000109")
	v.SetDefault("admin.company_name", "admin")
	v.SetDefault("admin.company_type", "admin")

	v.SetDefault("sentiment.model_path", "model/sentiment.json")

	v.SetDefault("newsapi.base_url", "https://newsapi.org")
	v.SetDefault("newsapi.api_key", "")
	v.SetDefault("newsapi.language", "pt")
	v.SetDefault("newsapi.sort_by", "relevancy")
	v.SetDefault("newsapi.page_size", 30)
	v.SetDefault("newsapi.timeout", 15*time.Second)
	v.SetDefault("newsapi.cache_ttl", 10*time.Minute)

	v.SetDefault("ingest.max_upload_bytes", 10<<20)
	v.SetDefault("ingest.sample_size", 20)
	v.SetDefault("ingest.insert_batch", 500)

	v.SetDefault("minio.enabled", false)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "feedai-uploads")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "feedai-batches")
}

// Load 从指定路径读取 YAML 配置，并允许 FEEDAI_ 前缀的环境变量覆盖。
// configPath 为空或文件不存在时只使用默认值与环境变量。
func Load(configPath string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FEEDAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if cfg.NewsAPI.PageSize <= 0 || cfg.NewsAPI.PageSize > 100 {
		cfg.NewsAPI.PageSize = 30
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Init 初始化全局配置，失败时直接 panic，供入口程序使用。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}

func (c Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret 未配置 (可通过 FEEDAI_JWT_SECRET 设置)")
	}
	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("不支持的数据库驱动: %q", c.Database.Driver)
	}
	return nil
}
