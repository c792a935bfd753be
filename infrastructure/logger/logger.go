package logger

import (
	"fmt"
	"os"
	"sort"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"signal-scanner-go/monitor/logschema"
)

// Logger 封装zap日志器，提供结构化日志功能
type Logger struct {
	*zap.Logger
	config Config
}

// Config 日志配置
type Config struct {
	Level      string   `yaml:"level"`       // debug, info, warn, error
	Outputs    []string `yaml:"outputs"`     // stdout, file
	OutputFile string   `yaml:"output_file"` // 日志文件路径
	ErrorFile  string   `yaml:"error_file"`  // 错误日志单独文件
	Format     string   `yaml:"format"`      // json 或 console
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Outputs: []string{"stdout"},
		Format:  "json",
	}
}

// New 创建新的Logger实例
func New(cfg Config) (*Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	cores := []zapcore.Core{}

	// 未配置输出时默认 stdout
	if len(cfg.Outputs) == 0 || contains(cfg.Outputs, "stdout") {
		var encoder zapcore.Encoder
		if cfg.Format == "console" {
			encoder = zapcore.NewConsoleEncoder(encoderConfig)
		} else {
			encoder = zapcore.NewJSONEncoder(encoderConfig)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), level))
	}

	if contains(cfg.Outputs, "file") && cfg.OutputFile != "" {
		fileWriter, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open log file failed: %w", err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(fileWriter),
			level,
		))
	}

	// 错误日志单独文件
	if cfg.ErrorFile != "" {
		errorWriter, err := os.OpenFile(cfg.ErrorFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open error log file failed: %w", err)
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(errorWriter),
			zapcore.ErrorLevel,
		))
	}

	zapLogger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return &Logger{Logger: zapLogger, config: cfg}, nil
}

// NewNop 返回丢弃所有输出的Logger（测试与默认值使用）
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop(), config: DefaultConfig()}
}

// WithFields 添加字段返回新的logger
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{
		Logger: l.Logger.With(toFields(fields)...),
		config: l.config,
	}
}

// LogSignal 记录检测到的交易信号
func (l *Logger) LogSignal(exchange, symbol, direction string, fields map[string]interface{}) {
	zf := []zap.Field{
		zap.String("event", "signal"),
		zap.String("exchange", exchange),
		zap.String("symbol", symbol),
		zap.String("direction", direction),
	}
	l.Info("signal_event", append(zf, toFields(fields)...)...)
}

// LogScan 记录一轮扫描的汇总
func (l *Logger) LogScan(exchange string, fields map[string]interface{}) {
	zf := []zap.Field{
		zap.String("event", "scan"),
		zap.String("exchange", exchange),
		zap.String("ts", time.Now().UTC().Format(time.RFC3339Nano)),
	}
	check := map[string]interface{}{"exchange": exchange}
	for k, v := range fields {
		check[k] = v
	}
	if err := logschema.Validate("scan_event", check); err != nil {
		zf = append(zf, zap.String("schema_error", err.Error()))
	}
	l.Info("scan_event", append(zf, toFields(fields)...)...)
}

// LogSymbolFailure 单个品种处理失败，只告警不中断扫描
func (l *Logger) LogSymbolFailure(exchange, symbol string, err error) {
	l.Warn("symbol_failed",
		zap.String("exchange", exchange),
		zap.String("symbol", symbol),
		zap.Error(err),
	)
}

// LogError 记录错误并附带上下文
func (l *Logger) LogError(err error, context map[string]interface{}) {
	zf := []zap.Field{
		zap.String("error", err.Error()),
		zap.String("ts", time.Now().UTC().Format(time.RFC3339Nano)),
	}
	l.Error("error_event", append(zf, toFields(context)...)...)
}

// Close 关闭日志器
func (l *Logger) Close() error {
	return l.Sync()
}

// toFields 按 key 排序，保证输出稳定
func toFields(m map[string]interface{}) []zap.Field {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		out = append(out, zap.Any(k, m[k]))
	}
	return out
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
