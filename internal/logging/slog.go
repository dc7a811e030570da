package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName is the instrumentation scope of the OTel bridge.
const ServiceName = "indiamap"

// console receives records when no log file is given.
var console io.Writer = os.Stdout

// SlogManager manages slog-based logging with optional OTel and Graylog
// integration.
type SlogManager struct {
	logger *slog.Logger

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// SetupOption adds an optional sink or decoration to Setup.
type SetupOption func(*setup)

type setup struct {
	provider *sdklog.LoggerProvider
	graylog  io.Writer
	context  ContextProvider
}

// WithOTel forwards records to provider through the otelslog bridge.
func WithOTel(provider *sdklog.LoggerProvider) SetupOption {
	return func(s *setup) { s.provider = provider }
}

// WithGraylog writes JSON records to w, typically a GELF writer.
func WithGraylog(w io.Writer) SetupOption {
	return func(s *setup) { s.graylog = w }
}

// WithContext adds the attributes returned by p to every record.
func WithContext(p ContextProvider) SetupOption {
	return func(s *setup) { s.context = p }
}

// ParseLevel converts a string log level to slog.Level; unknown values
// map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup initializes the logging system. Records go to file when given,
// otherwise to stdout, plus every optional sink.
func (m *SlogManager) Setup(file io.Writer, level string, opts ...SetupOption) {
	var s setup
	for _, opt := range opts {
		opt(&s)
	}
	lvl := ParseLevel(level)
	m.logProvider = s.provider

	// Common handler options with RFC3339 time formatting
	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler

	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(console, handlerOpts))
	}

	if s.graylog != nil {
		handlers = append(handlers, slog.NewJSONHandler(s.graylog, &slog.HandlerOptions{Level: lvl}))
	}

	if s.provider != nil {
		handlers = append(handlers, otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(s.provider)))
	}

	h := NewContextHandler(NewMultiHandler(handlers...), s.context)

	m.logger = slog.New(h)
	m.logger.Info("Logging initialized", "level", lvl.String())
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}
