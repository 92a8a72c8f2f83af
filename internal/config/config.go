// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config 应用配置
type Config struct {
	App       AppConfig       `yaml:"app"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	Allocator AllocatorConfig `yaml:"allocator"`
	Optimizer OptimizerConfig `yaml:"optimizer"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// APIConfig API配置
type APIConfig struct {
	RateLimit int           `yaml:"rate_limit"`
	Timeout   time.Duration `yaml:"timeout"`
	CORS      CORSConfig    `yaml:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
}

// AllocatorConfig 分配引擎配置
type AllocatorConfig struct {
	ConfidenceThreshold float64       `yaml:"confidence_threshold"` // 低于阈值保持待确认
	BackupMargin        int           `yaml:"backup_margin"`        // 每岗位后备余量
	RestPeriod          time.Duration `yaml:"rest_period"`          // 班后休息时长
	MaxWeeklyHours      int           `yaml:"max_weekly_hours"`     // 周工时上限缺省值
}

// OptimizerConfig 排班优化配置
type OptimizerConfig struct {
	MaxIterations    int           `yaml:"max_iterations"`
	MaxTime          time.Duration `yaml:"max_time"`
	InitialTemp      float64       `yaml:"initial_temp"`
	CoolingRate      float64       `yaml:"cooling_rate"`
	TabuSize         int           `yaml:"tabu_size"`
	PlateauThreshold int           `yaml:"plateau_threshold"`
}

// OracleConfig 外部建议服务配置
type OracleConfig struct {
	Enabled      bool          `yaml:"enabled"`
	URL          string        `yaml:"url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxInfluence float64       `yaml:"max_influence"` // 建议对本地评分的最大影响
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load 从环境变量加载配置
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "yipai"),
			Env:      getEnv("APP_ENV", "development"),
			Port:     getEnvInt("APP_PORT", 7012),
			LogLevel: getEnv("APP_LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "yipai"),
			User:            getEnv("DB_USER", "yipai"),
			Password:        getEnv("DB_PASSWORD", "yipai123"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		API: APIConfig{
			RateLimit: getEnvInt("API_RATE_LIMIT", 100),
			Timeout:   getEnvDuration("API_TIMEOUT", 30*time.Second),
			CORS: CORSConfig{
				Enabled: getEnvBool("API_CORS_ENABLED", true),
				Origins: []string{"*"},
			},
		},
		Allocator: AllocatorConfig{
			ConfidenceThreshold: getEnvFloat("ALLOCATOR_CONFIDENCE_THRESHOLD", 0.5),
			BackupMargin:        getEnvInt("ALLOCATOR_BACKUP_MARGIN", 1),
			RestPeriod:          getEnvDuration("ALLOCATOR_REST_PERIOD", 0),
			MaxWeeklyHours:      getEnvInt("ALLOCATOR_MAX_WEEKLY_HOURS", 40),
		},
		Optimizer: OptimizerConfig{
			MaxIterations:    getEnvInt("OPTIMIZER_MAX_ITERATIONS", 1000),
			MaxTime:          getEnvDuration("OPTIMIZER_MAX_TIME", 30*time.Second),
			InitialTemp:      getEnvFloat("OPTIMIZER_INITIAL_TEMP", 100),
			CoolingRate:      getEnvFloat("OPTIMIZER_COOLING_RATE", 0.995),
			TabuSize:         getEnvInt("OPTIMIZER_TABU_SIZE", 50),
			PlateauThreshold: getEnvInt("OPTIMIZER_PLATEAU_THRESHOLD", 200),
		},
		Oracle: OracleConfig{
			Enabled:      getEnvBool("ORACLE_ENABLED", false),
			URL:          getEnv("ORACLE_URL", ""),
			Timeout:      getEnvDuration("ORACLE_TIMEOUT", 3*time.Second),
			MaxInfluence: getEnvFloat("ORACLE_MAX_INFLUENCE", 0.2),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	return cfg, nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsTest 检查是否为测试环境
func (c *Config) IsTest() bool {
	return c.App.Env == "test"
}

// 辅助函数
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
