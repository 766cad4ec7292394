package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"manim-service/pkg/config"
)

// Logger 日志服务
type Logger struct {
	entry *logrus.Logger
	file  *os.File
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// NewLogger builds a logrus-backed logger from the log section.
func NewLogger(cfg *config.Config) *Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05.000"})
	l.SetLevel(logrus.InfoLevel)

	lg := &Logger{entry: l}
	if cfg == nil {
		return lg
	}

	if lvl, err := logrus.ParseLevel(strings.TrimSpace(cfg.Log.Level)); err == nil {
		l.SetLevel(lvl)
	}
	if strings.EqualFold(cfg.Log.Format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})
	}
	if strings.EqualFold(cfg.Log.Output, "file") && strings.TrimSpace(cfg.Log.Filename) != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.Filename), 0o755); err == nil {
			f, err := os.OpenFile(cfg.Log.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				lg.file = f
				l.SetOutput(io.MultiWriter(os.Stdout, f))
			}
		}
	}
	return lg
}

// SetGlobalLogger replaces the process-wide logger.
func SetGlobalLogger(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

func current() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = NewLogger(nil)
	}
	return globalLogger
}

// Raw exposes the underlying logrus logger.
func (l *Logger) Raw() *logrus.Logger {
	return l.entry
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() {
	if l.file != nil {
		_ = l.file.Sync()
		_ = l.file.Close()
		l.file = nil
	}
}

func withFields(fields []map[string]interface{}) *logrus.Entry {
	e := logrus.NewEntry(current().entry)
	for _, f := range fields {
		if len(f) > 0 {
			e = e.WithFields(logrus.Fields(f))
		}
	}
	return e
}

func Debug(msg string, fields ...map[string]interface{}) { withFields(fields).Debug(msg) }
func Info(msg string, fields ...map[string]interface{})  { withFields(fields).Info(msg) }
func Warn(msg string, fields ...map[string]interface{})  { withFields(fields).Warn(msg) }
func Error(msg string, fields ...map[string]interface{}) { withFields(fields).Error(msg) }

func Debugf(format string, args ...interface{}) { current().entry.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { current().entry.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { current().entry.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { current().entry.Errorf(format, args...) }

// Fatal logs and exits the process.
func Fatal(msg string, fields ...map[string]interface{}) {
	withFields(fields).Fatal(msg)
}

// WithJob returns an entry tagged with the job id and pipeline step.
func WithJob(jobID, step string) *logrus.Entry {
	return logrus.NewEntry(current().entry).WithFields(logrus.Fields{"job_id": jobID, "step": step})
}
