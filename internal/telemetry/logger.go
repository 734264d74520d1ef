package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

var (
	loggerMu   sync.RWMutex
	logger     *logrus.Logger
	fileLogger *FileLogger
)

// FileLogger is a hook that mirrors every entry to a file for local-otel
type FileLogger struct {
	mu       sync.Mutex
	file     *os.File
	encoder  *json.Encoder
	filePath string
}

// serviceFields stamps the service identity on every entry
type serviceFields logrus.Fields

func (s serviceFields) Levels() []logrus.Level { return logrus.AllLevels }

func (s serviceFields) Fire(entry *logrus.Entry) error {
	for k, v := range s {
		if _, ok := entry.Data[k]; !ok {
			entry.Data[k] = v
		}
	}
	return nil
}

// NewLogger builds a logger for cfg writing to out. File export is not
// set up; use InitLogger for the process-wide logger.
func NewLogger(cfg *Config, out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if cfg.LogFormat == "text" {
		l.SetFormatter(&logrus.TextFormatter{TimestampFormat: timestampFormat, FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "@timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	}

	l.AddHook(serviceFields{
		"service.name":    cfg.ServiceName,
		"service.version": cfg.ServiceVersion,
		"environment":     cfg.Environment,
	})
	return l
}

// InitLogger replaces the process-wide logger. Logs go to stderr so
// command output on stdout stays machine readable.
func InitLogger(cfg *Config) error {
	l := NewLogger(cfg, os.Stderr)

	var err error
	if cfg.ExportToFile && cfg.LogsFilePath != "" {
		var fl *FileLogger
		fl, err = NewFileLogger(cfg.LogsFilePath)
		if err != nil {
			l.WithError(err).Error("Failed to create file logger")
		} else {
			l.AddHook(fl)
		}
		loggerMu.Lock()
		fileLogger = fl
		loggerMu.Unlock()
	}

	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
	return err
}

// NewFileLogger creates a new file logger
func NewFileLogger(filePath string) (*FileLogger, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}

	return &FileLogger{
		file:     file,
		encoder:  json.NewEncoder(file),
		filePath: filePath,
	}, nil
}

// Levels returns the log levels this hook is interested in
func (f *FileLogger) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire writes entry as one JSON line
func (f *FileLogger) Fire(entry *logrus.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data := make(map[string]interface{}, len(entry.Data)+3)
	for k, v := range entry.Data {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		data[k] = v
	}
	data["@timestamp"] = entry.Time.Format(timestampFormat)
	data["level"] = entry.Level.String()
	data["message"] = entry.Message

	return f.encoder.Encode(data)
}

// Close closes the file logger
func (f *FileLogger) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file.Close()
}

// L returns the process-wide logger, or logrus' standard logger before
// InitLogger ran
func L() *logrus.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	if logger == nil {
		return logrus.StandardLogger()
	}
	return logger
}

// WithContext adds trace information to the logger
func WithContext(ctx context.Context) *logrus.Entry {
	entry := L().WithContext(ctx)

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		entry = entry.WithFields(logrus.Fields{
			"trace.id": span.SpanContext().TraceID().String(),
			"span.id":  span.SpanContext().SpanID().String(),
		})
	}

	return entry
}

// SDKLogger is the logger handed to the StackMob client
func SDKLogger() logrus.FieldLogger {
	return L().WithField("component", "sdk")
}

// CloseLogger closes any open resources
func CloseLogger() error {
	loggerMu.Lock()
	fl := fileLogger
	fileLogger = nil
	loggerMu.Unlock()

	if fl != nil {
		return fl.Close()
	}
	return nil
}
