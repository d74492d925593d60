package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// ConvertLogLevel maps a textual level to its logrus equivalent, defaulting to info.
func ConvertLogLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "trace":
		return logrus.TraceLevel
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

// SetUpLogrusAndSlog configures the standard logrus logger and routes the default slog logger through it.
func SetUpLogrusAndSlog(level string) {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(ConvertLogLevel(level))

	slog.SetDefault(slog.New(NewLogrusHandler(logrus.StandardLogger())))
}

// LogrusHandler is a slog.Handler that writes records to a logrus logger.
type LogrusHandler struct {
	logger *logrus.Logger
	attrs  []slog.Attr
	group  string
}

// NewLogrusHandler returns a slog handler backed by l.
func NewLogrusHandler(l *logrus.Logger) *LogrusHandler {
	return &LogrusHandler{logger: l}
}

func (h *LogrusHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.IsLevelEnabled(toLogrusLevel(level))
}

func (h *LogrusHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(logrus.Fields, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		h.addField(fields, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.addField(fields, a)
		return true
	})

	entry := h.logger.WithFields(fields)
	if !r.Time.IsZero() {
		entry = entry.WithTime(r.Time)
	}
	entry.Log(toLogrusLevel(r.Level), r.Message)
	return nil
}

func (h *LogrusHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &LogrusHandler{logger: h.logger, attrs: merged, group: h.group}
}

func (h *LogrusHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &LogrusHandler{logger: h.logger, attrs: h.attrs, group: group}
}

func (h *LogrusHandler) addField(fields logrus.Fields, a slog.Attr) {
	key := a.Key
	if h.group != "" {
		key = h.group + "." + key
	}
	v := a.Value.Resolve()
	if err, ok := v.Any().(error); ok {
		fields[key] = err.Error()
		return
	}
	if v.Kind() == slog.KindGroup {
		for _, ga := range v.Group() {
			fields[key+"."+ga.Key] = fmt.Sprint(ga.Value.Any())
		}
		return
	}
	fields[key] = v.Any()
}

func toLogrusLevel(level slog.Level) logrus.Level {
	switch {
	case level >= slog.LevelError:
		return logrus.ErrorLevel
	case level >= slog.LevelWarn:
		return logrus.WarnLevel
	case level >= slog.LevelInfo:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}
