package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/gorm"
)

var (
	// 全局日志实例
	globalLogger *zap.Logger
	// 全局开关
	LogEnabled = true
	// Debug模式开关
	DebugEnabled = true
	// 数据库错误日志写入器
	dbWriter *DBErrorWriter
	// 初始化锁
	once sync.Once
	mu   sync.RWMutex
)

// ErrorLog 错误日志结构体
type ErrorLog struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Timestamp time.Time `gorm:"autoCreateTime" json:"timestamp"`
	Level     string    `gorm:"size:10;not null;default:'error'" json:"level"`
	Caller    string    `gorm:"size:255;not null" json:"caller"`
	Function  string    `gorm:"size:255;not null" json:"function"`
	Message   string    `gorm:"not null" json:"message"`
	Error     string    `gorm:"" json:"error"`
	Context   string    `gorm:"type:text" json:"context"`
}

// TableName 设置表名
func (ErrorLog) TableName() string {
	return "error_logs"
}

// DBErrorWriter 数据库错误日志写入器
type DBErrorWriter struct {
	db *gorm.DB
}

// NewDBErrorWriter 创建数据库错误日志写入器
func NewDBErrorWriter(db *gorm.DB) *DBErrorWriter {
	return &DBErrorWriter{db: db}
}

// WriteError 写入错误日志到数据库
func (w *DBErrorWriter) WriteError(level, message string, err error, fields ...interface{}) {
	if w.db == nil {
		return
	}

	errorLog := &ErrorLog{
		Timestamp: time.Now(),
		Level:     level,
		Caller:    getCaller(1),
		Function:  getFunction(1),
		Message:   message,
		Context:   fieldsToJSON(fields),
	}
	if err != nil {
		errorLog.Error = err.Error()
	}

	// 异步写入数据库，避免阻塞主流程
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := w.db.WithContext(ctx).Create(errorLog).Error; err != nil {
			// 写库失败只打印到控制台，不递归调用Error
			fmt.Printf("Failed to write error log to database: %v\n", err)
		}
	}()
}

// LogLevel 日志级别
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
	FATAL LogLevel = "FATAL"
)

// Config 日志配置
type Config struct {
	Level         LogLevel `json:"level" mapstructure:"level"`
	EnableConsole bool     `json:"enable_console" mapstructure:"enable_console"`
	EnableFile    bool     `json:"enable_file" mapstructure:"enable_file"`
	FilePath      string   `json:"file_path" mapstructure:"file_path"`
	MaxSizeMB     int      `json:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups    int      `json:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays    int      `json:"max_age_days" mapstructure:"max_age_days"`
	Compress      bool     `json:"compress" mapstructure:"compress"`
	EnableDB      bool     `json:"enable_db" mapstructure:"enable_db"` // 是否启用数据库错误日志
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Level:         DEBUG,
		EnableConsole: true,
		EnableFile:    false,
		FilePath:      "./logs/chainflow.log",
		MaxSizeMB:     100,
		MaxBackups:    7,
		MaxAgeDays:    30,
		EnableDB:      false,
	}
}

// Init 初始化日志系统
func Init(config *Config) {
	once.Do(func() {
		replace(build(config))
	})
}

// ReInit 重新初始化logger（用于配置更改）
func ReInit(config *Config) {
	replace(build(config))
}

func replace(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()

	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
	globalLogger = l
}

// build 根据配置构建 zap logger
func build(config *Config) *zap.Logger {
	if config == nil {
		config = DefaultConfig()
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	level := parseLevel(config.Level)
	DebugEnabled = level == zapcore.DebugLevel

	var cores []zapcore.Core

	if config.EnableConsole {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(os.Stdout),
			level,
		))
	}

	if config.EnableFile && config.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			fmt.Printf("Failed to create log directory: %v\n", err)
		} else {
			// 文件输出使用无颜色的JSON编码器，按大小滚动
			fileEncoderConfig := encoderConfig
			fileEncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
			rotator := &lumberjack.Logger{
				Filename:   config.FilePath,
				MaxSize:    config.MaxSizeMB,
				MaxBackups: config.MaxBackups,
				MaxAge:     config.MaxAgeDays,
				Compress:   config.Compress,
			}
			cores = append(cores, zapcore.NewCore(
				zapcore.NewJSONEncoder(fileEncoderConfig),
				zapcore.AddSync(rotator),
				level,
			))
		}
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(2))
}

func parseLevel(level LogLevel) zapcore.Level {
	switch LogLevel(strings.ToUpper(string(level))) {
	case DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetDB 设置数据库连接，用于错误日志写入
func SetDB(db *gorm.DB) {
	if db != nil {
		dbWriter = NewDBErrorWriter(db)
	}
}

// getCaller 获取调用者信息
func getCaller(skip int) string {
	_, file, line, ok := runtime.Caller(skip + 2)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

// getFunction 获取调用函数名
func getFunction(skip int) string {
	pc, _, _, ok := runtime.Caller(skip + 2)
	if !ok {
		return "unknown"
	}

	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "unknown"
	}

	name := fn.Name()
	if idx := strings.LastIndex(name, "/"); idx != -1 {
		name = name[idx+1:]
	}
	if idx := strings.LastIndex(name, "."); idx != -1 {
		name = name[idx+1:]
	}
	return name
}

func fieldsToJSON(fields []interface{}) string {
	if len(fields) < 2 {
		return ""
	}
	contextMap := make(map[string]interface{}, len(fields)/2)
	for i := 0; i+1 < len(fields); i += 2 {
		contextMap[fmt.Sprintf("%v", fields[i])] = fields[i+1]
	}
	data, _ := json.Marshal(contextMap)
	return string(data)
}

func current() *zap.Logger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(DefaultConfig())
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// log 统一的日志出口，skip 保证 caller 指向业务代码
func log(level zapcore.Level, msg string, err error, withStack bool, fields []interface{}) {
	zapFields := []zap.Field{
		zap.String("caller", getCaller(1)),
		zap.String("function", getFunction(1)),
	}
	if withStack {
		zapFields = append(zapFields, zap.Stack("stack"))
	}
	if err != nil {
		zapFields = append(zapFields, zap.Error(err))
	}
	for i := 0; i+1 < len(fields); i += 2 {
		zapFields = append(zapFields, zap.Any(fmt.Sprintf("%v", fields[i]), fields[i+1]))
	}

	if ce := current().Check(level, msg); ce != nil {
		ce.Write(zapFields...)
	}
}

// Debug 调试日志
func Debug(msg string, fields ...interface{}) {
	if !LogEnabled || !DebugEnabled {
		return
	}
	log(zapcore.DebugLevel, msg, nil, false, fields)
}

// Info 信息日志
func Info(msg string, fields ...interface{}) {
	if !LogEnabled {
		return
	}
	log(zapcore.InfoLevel, msg, nil, false, fields)
}

// Warn 警告日志
func Warn(msg string, fields ...interface{}) {
	if !LogEnabled {
		return
	}
	log(zapcore.WarnLevel, msg, nil, false, fields)
}

// Error 错误日志
func Error(msg string, err error, fields ...interface{}) {
	if !LogEnabled {
		return
	}
	log(zapcore.ErrorLevel, msg, err, false, fields)

	if dbWriter != nil {
		dbWriter.WriteError("error", msg, err, fields...)
	}
}

// ErrorWithStack 带堆栈的错误日志
func ErrorWithStack(msg string, err error, fields ...interface{}) {
	if !LogEnabled {
		return
	}
	log(zapcore.ErrorLevel, msg, err, true, fields)

	if dbWriter != nil {
		dbWriter.WriteError("error", msg, err, fields...)
	}
}

// Fatal 致命错误日志
func Fatal(msg string, err error, fields ...interface{}) {
	if dbWriter != nil {
		dbWriter.WriteError("fatal", msg, err, fields...)
	}
	log(zapcore.FatalLevel, msg, err, true, fields)
}

// Disable 禁用日志（测试中使用）
func Disable() {
	LogEnabled = false
}

// Sync 刷新日志缓冲区
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}
