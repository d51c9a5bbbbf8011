package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"indicator-server-go/src/configs"

	"github.com/sirupsen/logrus"
)

// LogLevel 日志级别
type LogLevel string

const (
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

// Logger 日志接口实现，文件写JSON，控制台写文本
type Logger struct {
	file    *logrus.Logger
	console *logrus.Logger
	logFile *os.File
}

// NewLogger 创建新的日志记录器
func NewLogger(config *configs.Config) (*Logger, error) {
	// 确保日志目录存在
	if err := os.MkdirAll(config.Log.LogDir, 0755); err != nil {
		return nil, fmt.Errorf("创建日志目录失败: %v", err)
	}

	// 打开或创建日志文件
	logPath := filepath.Join(config.Log.LogDir, config.Log.LogFile)
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("打开日志文件失败: %v", err)
	}

	l := newLogger(file, os.Stdout, config.Log.LogLevel)
	l.logFile = file
	return l, nil
}

// NewTestLogger 创建只写入指定writer的日志记录器
func NewTestLogger(w io.Writer) *Logger {
	return newLogger(w, io.Discard, "DEBUG")
}

func newLogger(fileOut, consoleOut io.Writer, level string) *Logger {
	lvl := parseLevel(level)

	fileLogger := logrus.New()
	fileLogger.SetOutput(fileOut)
	fileLogger.SetLevel(lvl)
	fileLogger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02 15:04:05.000",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyMsg: "message",
		},
	})

	consoleLogger := logrus.New()
	consoleLogger.SetOutput(consoleOut)
	consoleLogger.SetLevel(lvl)
	consoleLogger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	return &Logger{file: fileLogger, console: consoleLogger}
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Close 关闭日志文件
func (l *Logger) Close() error {
	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}

// log 通用日志记录函数
// fields 可以是 map[string]interface{}、error，或者 msg 中格式化占位符的参数
func (l *Logger) log(level LogLevel, tag string, msg string, fields ...interface{}) {
	data := logrus.Fields{}
	if tag != "" {
		data["tag"] = tag
	}

	var args []interface{}
	for _, f := range fields {
		switch v := f.(type) {
		case map[string]interface{}:
			for k, val := range v {
				data[k] = val
			}
		case logrus.Fields:
			for k, val := range v {
				data[k] = val
			}
		case error:
			data[logrus.ErrorKey] = v.Error()
		default:
			args = append(args, v)
		}
	}
	if len(args) > 0 && strings.Contains(msg, "%") {
		msg = fmt.Sprintf(msg, args...)
	} else if len(args) > 0 {
		data["fields"] = args
	}

	for _, lg := range []*logrus.Logger{l.file, l.console} {
		entry := lg.WithFields(data)
		switch level {
		case DebugLevel:
			entry.Debug(msg)
		case WarnLevel:
			entry.Warn(msg)
		case ErrorLevel:
			entry.Error(msg)
		default:
			entry.Info(msg)
		}
	}
}

// Debug 记录调试级别日志
func (l *Logger) Debug(msg string, fields ...interface{}) {
	l.log(DebugLevel, "", msg, fields...)
}

// Info 记录信息级别日志
func (l *Logger) Info(msg string, fields ...interface{}) {
	l.log(InfoLevel, "", msg, fields...)
}

// Warn 记录警告级别日志
func (l *Logger) Warn(msg string, fields ...interface{}) {
	l.log(WarnLevel, "", msg, fields...)
}

// Error 记录错误级别日志
func (l *Logger) Error(msg string, fields ...interface{}) {
	l.log(ErrorLevel, "", msg, fields...)
}

// TaggedLogger 带标签的日志记录器
type TaggedLogger struct {
	*Logger
	tag string
}

// WithTag 创建带标签的日志记录器
func (l *Logger) WithTag(tag string) *TaggedLogger {
	return &TaggedLogger{
		Logger: l,
		tag:    tag,
	}
}

// Debug 记录带标签的调试级别日志
func (l *TaggedLogger) Debug(msg string, fields ...interface{}) {
	l.log(DebugLevel, l.tag, msg, fields...)
}

// Info 记录带标签的信息级别日志
func (l *TaggedLogger) Info(msg string, fields ...interface{}) {
	l.log(InfoLevel, l.tag, msg, fields...)
}

// Warn 记录带标签的警告级别日志
func (l *TaggedLogger) Warn(msg string, fields ...interface{}) {
	l.log(WarnLevel, l.tag, msg, fields...)
}

// Error 记录带标签的错误级别日志
func (l *TaggedLogger) Error(msg string, fields ...interface{}) {
	l.log(ErrorLevel, l.tag, msg, fields...)
}
