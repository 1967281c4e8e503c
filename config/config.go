package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Facebook  FacebookConfig  `mapstructure:"facebook"`
	Stripe    StripeConfig    `mapstructure:"stripe"`
	Frontend  FrontendConfig  `mapstructure:"frontend"`
	Email     EmailConfig     `mapstructure:"email"`
	Queue     QueueConfig     `mapstructure:"queue"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	OSS       OSSConfig       `mapstructure:"oss"`
	Cron      CronConfig      `mapstructure:"cron"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// DSN 返回 go-sql-driver/mysql 格式的连接串
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC&multiStatements=true",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret              string `mapstructure:"secret"`
	AccessExpireMinutes int    `mapstructure:"access_expire_minutes"`
	RefreshExpireHours  int    `mapstructure:"refresh_expire_hours"`
	ResetExpireMinutes  int    `mapstructure:"reset_expire_minutes"`
}

func (c JWTConfig) AccessTTL() time.Duration {
	if c.AccessExpireMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.AccessExpireMinutes) * time.Minute
}

func (c JWTConfig) RefreshTTL() time.Duration {
	if c.RefreshExpireHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(c.RefreshExpireHours) * time.Hour
}

func (c JWTConfig) ResetTTL() time.Duration {
	if c.ResetExpireMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.ResetExpireMinutes) * time.Minute
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console, json
}

type FacebookConfig struct {
	AppID        string `mapstructure:"app_id"`
	AppSecret    string `mapstructure:"app_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
	GraphVersion string `mapstructure:"graph_version"`
	GraphBaseURL string `mapstructure:"graph_base_url"`
	TimeoutSec   int    `mapstructure:"timeout_sec"`
}

type StripeConfig struct {
	SecretKey     string `mapstructure:"secret_key"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type FrontendConfig struct {
	URL string `mapstructure:"url"`
}

type EmailConfig struct {
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

type QueueConfig struct {
	SyncQueue  string `mapstructure:"sync_queue"`
	MaxWorkers int    `mapstructure:"max_workers"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type RateLimitConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type CronConfig struct {
	InsightSyncHours int `mapstructure:"insight_sync_hours"` // 距离上次同步超过多少小时自动入队
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("jwt.access_expire_minutes", 60)
	v.SetDefault("jwt.refresh_expire_hours", 168)
	v.SetDefault("jwt.reset_expire_minutes", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("facebook.graph_version", "v18.0")
	v.SetDefault("facebook.graph_base_url", "https://graph.facebook.com")
	v.SetDefault("facebook.timeout_sec", 15)
	v.SetDefault("queue.sync_queue", "fb_sync_jobs")
	v.SetDefault("queue.max_workers", 4)
	v.SetDefault("rate_limit.per_second", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("cron.insight_sync_hours", 24)
}

func Load(configPath string) (*Config, error) {
	// .env 仅用于本地开发，不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	setDefaults(v)

	// 环境变量覆盖，例如 STRIPE_SECRET_KEY -> stripe.secret_key
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 检查启动所必需的配置项
func (c *Config) Validate() error {
	var missing []string
	if c.JWT.Secret == "" {
		missing = append(missing, "jwt.secret")
	}
	if c.Database.Host == "" {
		missing = append(missing, "database.host")
	}
	if c.Server.Mode == "release" {
		if c.Stripe.SecretKey == "" {
			missing = append(missing, "stripe.secret_key")
		}
		if c.Stripe.WebhookSecret == "" {
			missing = append(missing, "stripe.webhook_secret")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	return nil
}

// GraphURL 返回带版本号的 Graph API 根地址
func (c FacebookConfig) GraphURL() string {
	return strings.TrimRight(c.GraphBaseURL, "/") + "/" + c.GraphVersion
}

func (c FacebookConfig) Timeout() time.Duration {
	if c.TimeoutSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.TimeoutSec) * time.Second
}
