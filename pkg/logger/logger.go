// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

// Level 日志级别
type Level = zerolog.Level

const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
	FatalLevel = zerolog.FatalLevel
)

// Config 日志配置
type Config struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"` // json/console
	Output     string `yaml:"output" json:"output"` // stdout/stderr/file
	FilePath   string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
	TimeFormat string `yaml:"time_format,omitempty" json:"time_format,omitempty"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	}
}

// Init 初始化日志器
func Init(cfg Config) {
	once.Do(func() {
		level := parseLevel(cfg.Level)
		zerolog.SetGlobalLevel(level)

		var output io.Writer
		switch cfg.Output {
		case "stderr":
			output = os.Stderr
		case "file":
			if cfg.FilePath != "" {
				f, err := os.OpenFile(cfg.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
				if err == nil {
					output = f
				} else {
					output = os.Stdout
				}
			} else {
				output = os.Stdout
			}
		default:
			output = os.Stdout
		}

		if cfg.Format == "console" {
			output = zerolog.ConsoleWriter{
				Out:        output,
				TimeFormat: cfg.TimeFormat,
			}
		}

		logger = zerolog.New(output).With().Timestamp().Logger()
	})
}

// parseLevel 解析日志级别
func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get 获取日志器
func Get() *zerolog.Logger {
	if logger.GetLevel() == zerolog.Disabled {
		Init(DefaultConfig())
	}
	return &logger
}

// WithContext 从上下文创建日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()
	
	// 添加请求ID
	if reqID, ok := ctx.Value("request_id").(string); ok {
		l = l.With().Str("request_id", reqID).Logger()
	}

	return &l
}

// Debug 记录调试日志
func Debug() *zerolog.Event {
	return Get().Debug()
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// WithError 添加错误信息
func WithError(err error) *zerolog.Event {
	return Get().Error().Err(err)
}

// WithField 添加字段
func WithField(key string, value interface{}) *zerolog.Logger {
	l := Get().With().Interface(key, value).Logger()
	return &l
}

// WithFields 添加多个字段
func WithFields(fields map[string]interface{}) *zerolog.Logger {
	ctx := Get().With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	l := ctx.Logger()
	return &l
}

// AllocationLogger 分配引擎专用日志器
type AllocationLogger struct {
	base *zerolog.Logger
}

// NewAllocationLogger 创建分配引擎日志器
func NewAllocationLogger() *AllocationLogger {
	l := Get().With().Str("component", "allocator").Logger()
	return &AllocationLogger{base: &l}
}

// StartBatch 记录批量分配开始
func (l *AllocationLogger) StartBatch(shifts, candidates int, strategy string) {
	l.base.Info().
		Int("shifts", shifts).
		Int("candidates", candidates).
		Str("strategy", strategy).
		Msg("开始批量分配")
}

// ViolationFound 记录约束违规
func (l *AllocationLogger) ViolationFound(staffID, shiftID, kind, details string) {
	l.base.Debug().
		Str("staff_id", staffID).
		Str("shift_id", shiftID).
		Str("kind", kind).
		Str("details", details).
		Msg("约束违规")
}

// OracleDegraded 记录建议服务降级
func (l *AllocationLogger) OracleDegraded(shiftID string, err error) {
	l.base.Warn().
		Str("shift_id", shiftID).
		Err(err).
		Msg("建议服务不可用，降级为本地评分")
}

// BatchComplete 记录批量分配完成
func (l *AllocationLogger) BatchComplete(allocated, unfilled int, duration time.Duration, score float64) {
	l.base.Info().
		Int("allocated", allocated).
		Int("unfilled", unfilled).
		Dur("duration", duration).
		Float64("score", score).
		Msg("批量分配完成")
}

// LifecycleLogger 班次生命周期专用日志器
type LifecycleLogger struct {
	base *zerolog.Logger
}

// NewLifecycleLogger 创建生命周期日志器
func NewLifecycleLogger() *LifecycleLogger {
	l := Get().With().Str("component", "lifecycle").Logger()
	return &LifecycleLogger{base: &l}
}

// Transition 记录班次状态迁移
func (l *LifecycleLogger) Transition(shiftID, from, to string, staffAffected int) {
	l.base.Info().
		Str("shift_id", shiftID).
		Str("from", from).
		Str("to", to).
		Int("staff_affected", staffAffected).
		Msg("班次状态迁移")
}

// AvailabilityChange 记录人员可用性变更
func (l *LifecycleLogger) AvailabilityChange(staffID, from, to, reason string) {
	l.base.Info().
		Str("staff_id", staffID).
		Str("from", from).
		Str("to", to).
		Str("reason", reason).
		Msg("人员可用性变更")
}

