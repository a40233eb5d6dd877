package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zerolog.DefaultContextLogger = &zerolog.Logger{}
}

var (
	// globalLogger is the process-wide logger
	globalLogger *Logger

	// once guards the first initialization of globalLogger
	once sync.Once

	// defaultConfig is used when Get is called before Setup
	defaultConfig = Config{
		Level:      "info",
		Format:     FormatConsole,
		TimeFormat: time.RFC3339,
	}
)

// Logger wraps zerolog.Logger with map-based field helpers
type Logger struct {
	zerolog.Logger
	level int
}

// GetLevel returns the level the logger was configured with
func (l *Logger) GetLevel() zerolog.Level {
	if l == nil {
		return zerolog.NoLevel
	}
	level := zerolog.Level(l.level)
	if level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// LogFormat defines the available log formats
type LogFormat string

const (
	// FormatJSON writes one JSON object per line
	FormatJSON LogFormat = "json"
	// FormatConsole writes human readable lines
	FormatConsole LogFormat = "console"
)

// String returns the string representation of the log format
func (f LogFormat) String() string {
	return string(f)
}

// ParseLogFormat parses a string into a LogFormat, defaulting to JSON
func ParseLogFormat(format string) LogFormat {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text", "pretty":
		return FormatConsole
	default:
		return FormatJSON
	}
}

// Config holds the configuration for the logger
type Config struct {
	// Level is the log level (debug, info, warn, error, fatal, panic)
	Level string
	// Format is the log format (json, console)
	Format LogFormat
	// Output is the output writer (default: os.Stderr, so stdout stays clean for the CLI)
	Output io.Writer
	// TimeFormat is the time format (default: time.RFC3339)
	TimeFormat string
}

// Get returns the global logger instance
func Get() *Logger {
	once.Do(func() {
		if globalLogger == nil {
			setupLogger(defaultConfig)
		}
	})
	return globalLogger
}

// ResetForTesting resets the global logger so tests can call Setup again
func ResetForTesting() {
	globalLogger = nil
	once = sync.Once{}
}

// Setup initializes the global logger. Only the first call has an effect.
func Setup(cfg Config) {
	once.Do(func() {
		setupLogger(cfg)
	})
}

// ForceSetup re-initializes the global logger, bypassing the once guard.
// The CLI uses it after the config file has been read.
func ForceSetup(cfg Config) {
	once.Do(func() {})
	setupLogger(cfg)
}

func setupLogger(cfg Config) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err == nil && parsed != zerolog.NoLevel {
			level = parsed
		}
	}

	if cfg.Format == "" {
		cfg.Format = FormatJSON
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	var zl zerolog.Logger
	switch cfg.Format {
	case FormatConsole:
		zl = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
		})
	default:
		zl = zerolog.New(output)
	}

	zl = zl.Level(level).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(level)

	globalLogger = &Logger{
		Logger: zl,
		level:  int(level),
	}

	globalLogger.Debug("Logger initialized", map[string]interface{}{
		"format": string(cfg.Format),
		"level":  level.String(),
	})
}

// Component returns a child of the global logger tagged with a component name
func Component(name string) *Logger {
	return Get().WithFields(map[string]interface{}{"component": name})
}

// ContextKey is a type for context keys
type ContextKey string

// ContextKeyRequestID is the key used to store the request ID in the context
const ContextKeyRequestID ContextKey = "request_id"

type loggerKey struct{}

// NewContext returns a copy of ctx carrying logger.
// If logger is nil, ctx is returned unchanged.
func NewContext(ctx context.Context, logger *Logger) context.Context {
	if logger == nil {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored in ctx, or nil
func FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return nil
	}
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return l
	}
	return nil
}

// Ctx returns the logger from ctx, falling back to fallback and then to the global logger
func Ctx(ctx context.Context, fallback *Logger) *Logger {
	if l := FromContext(ctx); l != nil {
		return l
	}
	if fallback != nil {
		return fallback
	}
	return Get()
}

// WithFields returns a child logger with the given fields attached
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	if l == nil {
		return Get().WithFields(fields)
	}
	if len(fields) == 0 {
		return l
	}

	ctx := l.Logger.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}

	return &Logger{
		Logger: ctx.Logger(),
		level:  l.level,
	}
}

func (l *Logger) event(e *zerolog.Event, msg string, fields []map[string]interface{}) {
	if e == nil {
		return
	}
	if len(fields) > 0 && len(fields[0]) > 0 {
		e = e.Fields(fields[0])
	}
	e.Msg(msg)
}

// Info logs msg at info level with optional fields
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	if l == nil {
		return
	}
	l.event(l.Logger.Info(), msg, fields)
}

// Infof logs a formatted message at info level
func (l *Logger) Infof(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.Logger.Info().Msgf(format, args...)
}

// Warn logs msg at warn level with optional fields
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	if l == nil {
		return
	}
	l.event(l.Logger.Warn(), msg, fields)
}

// Warnf logs a formatted message at warn level
func (l *Logger) Warnf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.Logger.Warn().Msgf(format, args...)
}

// Debug logs msg at debug level with optional fields
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	if l == nil {
		return
	}
	l.event(l.Logger.Debug(), msg, fields)
}

// Debugf logs a formatted message at debug level
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.Logger.Debug().Msgf(format, args...)
}

// Error logs msg at error level with optional fields
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	if l == nil {
		return
	}
	l.event(l.Logger.Error(), msg, fields)
}

// Errorf logs a formatted message at error level
func (l *Logger) Errorf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.Logger.Error().Msgf(format, args...)
}

// With is an alias of WithFields
func (l *Logger) With(fields map[string]interface{}) *Logger {
	return l.WithFields(fields)
}
