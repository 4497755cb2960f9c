package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"citypulse/internal/config"
)

const LOG_BUFFER_SIZE = 1000

var ErrLogNotInitialized = errors.New("log object is not initialized yet")

const (
	LOG_LEVEL_ERROR = iota + 1
	LOG_LEVEL_WARN
	LOG_LEVEL_INFO
	LOG_LEVEL_DEBUG
)

// ServiceLogger hands events to a single writer goroutine through a buffered
// channel so request handlers never block on file I/O. The zero value is
// usable: every call returns ErrLogNotInitialized and nothing is written.
type ServiceLogger struct {
	mu          sync.RWMutex
	logBuffer   chan logEntry
	handle      *os.File
	wg          sync.WaitGroup
	initialized bool
	zapLogger   *zap.Logger
}

type logEntry struct {
	level  int
	msg    string
	fields []zap.Field
}

func (l *ServiceLogger) Init(cfg config.LogConfig) error {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return err
	}

	var sinks []zapcore.WriteSyncer
	if cfg.File != "" {
		CheckAndCreateLogFolder(cfg.Dir)
		handle, err := os.OpenFile(filepath.Join(cfg.Dir, cfg.File), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			return err
		}
		l.handle = handle
		sinks = append(sinks, zapcore.AddSync(handle))
	}
	if cfg.Stdout || len(sinks) == 0 {
		sinks = append(sinks, zapcore.Lock(os.Stdout))
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encCfg)

	cores := make([]zapcore.Core, 0, len(sinks))
	for _, sink := range sinks {
		cores = append(cores, zapcore.NewCore(encoder, sink, toZapLevel(level)))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.zapLogger = zap.New(zapcore.NewTee(cores...))
	l.logBuffer = make(chan logEntry, LOG_BUFFER_SIZE)
	l.wg.Add(1)
	go l.logWriter()
	l.initialized = true
	return nil
}

// ParseLevel maps error|warn|info|debug onto the LOG_LEVEL_* constants.
func ParseLevel(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return LOG_LEVEL_ERROR, nil
	case "warn", "warning":
		return LOG_LEVEL_WARN, nil
	case "", "info":
		return LOG_LEVEL_INFO, nil
	case "debug":
		return LOG_LEVEL_DEBUG, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", s)
	}
}

func toZapLevel(level int) zapcore.Level {
	switch level {
	case LOG_LEVEL_ERROR:
		return zapcore.ErrorLevel
	case LOG_LEVEL_WARN:
		return zapcore.WarnLevel
	case LOG_LEVEL_DEBUG:
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *ServiceLogger) logWriter() {
	defer l.wg.Done()
	for e := range l.logBuffer {
		switch e.level {
		case LOG_LEVEL_ERROR:
			l.zapLogger.Error(e.msg, e.fields...)
		case LOG_LEVEL_WARN:
			l.zapLogger.Warn(e.msg, e.fields...)
		case LOG_LEVEL_DEBUG:
			l.zapLogger.Debug(e.msg, e.fields...)
		default:
			l.zapLogger.Info(e.msg, e.fields...)
		}
	}
	l.zapLogger.Sync()
}

// Log queues one event. Unknown levels are logged as info.
func (l *ServiceLogger) Log(level int, msg string, fields ...zap.Field) error {
	if l == nil {
		return ErrLogNotInitialized
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.initialized {
		return ErrLogNotInitialized
	}
	l.logBuffer <- logEntry{level: level, msg: msg, fields: fields}
	return nil
}

func (l *ServiceLogger) Error(msg string, fields ...zap.Field) {
	l.Log(LOG_LEVEL_ERROR, msg, fields...)
}

func (l *ServiceLogger) Warn(msg string, fields ...zap.Field) {
	l.Log(LOG_LEVEL_WARN, msg, fields...)
}

func (l *ServiceLogger) Info(msg string, fields ...zap.Field) {
	l.Log(LOG_LEVEL_INFO, msg, fields...)
}

func (l *ServiceLogger) Debug(msg string, fields ...zap.Field) {
	l.Log(LOG_LEVEL_DEBUG, msg, fields...)
}

// DeInit drains the queue and closes the log file.
func (l *ServiceLogger) DeInit() {
	l.mu.Lock()
	if !l.initialized {
		l.mu.Unlock()
		return
	}
	l.initialized = false
	close(l.logBuffer)
	l.mu.Unlock()

	l.wg.Wait()
	if l.handle != nil {
		l.handle.Close()
	}
}

func CheckAndCreateLogFolder(folderNameWithPath string) {
	if folderNameWithPath == "" {
		return
	}
	_, err := os.Stat(folderNameWithPath)

	if os.IsNotExist(err) {
		err := os.MkdirAll(folderNameWithPath, 0755)
		if err != nil {
			fmt.Println("Failed to create the log folder and Mkdir err :: ", err)
		}
	}
}
