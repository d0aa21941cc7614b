package observability

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/jwtpizza/pkg/contextkeys"
)

// LogLevel is the minimum severity a Logger emits
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

var logrusLevels = [...]logrus.Level{logrus.DebugLevel, logrus.InfoLevel, logrus.WarnLevel, logrus.ErrorLevel}

func (l LogLevel) String() string {
	if l < DebugLevel || l > ErrorLevel {
		return levelNames[InfoLevel]
	}
	return levelNames[l]
}

func (l LogLevel) logrus() logrus.Level {
	if l < DebugLevel || l > ErrorLevel {
		return logrus.InfoLevel
	}
	return logrusLevels[l]
}

// ParseLogLevel maps a level name to a LogLevel. Unknown names give InfoLevel.
func ParseLogLevel(name string) LogLevel {
	parsed, err := logrus.ParseLevel(name)
	if err != nil {
		return InfoLevel
	}
	switch {
	case parsed >= logrus.DebugLevel:
		return DebugLevel
	case parsed == logrus.InfoLevel:
		return InfoLevel
	case parsed == logrus.WarnLevel:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

// Logger writes JSON lines through logrus. Derived loggers share the
// underlying output and carry their own fields.
type Logger struct {
	entry *logrus.Entry
	level LogLevel
}

// NewLogger creates a JSON logger writing to output, or stdout when nil
func NewLogger(level LogLevel, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	base := &logrus.Logger{
		Out:   output,
		Hooks: make(logrus.LevelHooks),
		Level: level.logrus(),
		Formatter: &logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{logrus.FieldKeyMsg: "message"},
		},
		ExitFunc: os.Exit,
	}
	return &Logger{entry: logrus.NewEntry(base), level: level}
}

// Level returns the configured minimum level
func (l *Logger) Level() LogLevel { return l.level }

func (l *Logger) derive(entry *logrus.Entry) *Logger {
	return &Logger{entry: entry, level: l.level}
}

// WithField returns a logger that adds key to every entry
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.derive(l.entry.WithField(key, value))
}

// WithFields returns a logger that adds all of fields to every entry
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return l.derive(l.entry.WithFields(logrus.Fields(fields)))
}

// WithError attaches err as the "error" field. A nil error returns l.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *Logger) Debug(message string) { l.entry.Debug(message) }

func (l *Logger) Info(message string) { l.entry.Info(message) }

func (l *Logger) Warn(message string) { l.entry.Warn(message) }

func (l *Logger) Error(message string) { l.entry.Error(message) }

var defaultLogger = NewLogger(InfoLevel, os.Stdout)

// GetLogger returns the logger stored in ctx, or a stdout logger at info
func GetLogger(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextkeys.LoggerKey).(*Logger); ok {
		return logger
	}
	return defaultLogger
}

// WithLogger stores logger in ctx
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return contextkeys.WithLogger(ctx, logger)
}

// FromContext returns the request logger tagged with the request and user ids
// found in ctx
func FromContext(ctx context.Context) *Logger {
	fields := map[string]interface{}{}
	if requestID := contextkeys.GetRequestID(ctx); requestID != "" {
		fields["request_id"] = requestID
	}
	if userID := contextkeys.GetUserID(ctx); userID != 0 {
		fields["user_id"] = userID
	}
	logger := GetLogger(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.WithFields(fields)
}
