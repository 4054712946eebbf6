package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// parseLevel maps a config level name to a zerolog level. Unknown names mean info.
func parseLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// newLogger creates a logger that writes JSON lines to logDir/aoi.log and a
// human-readable rendering to console. Every line carries op_id.
// It returns the logger, the open log file (for cleanup), and any error.
func newLogger(logDir, opID, level string, console io.Writer) (zerolog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "aoi.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("opening log file: %w", err)
	}

	w := zerolog.MultiLevelWriter(f, zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339})
	logger := zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Str("op_id", opID).
		Logger()
	return logger, f, nil
}

// zerologAdapter wraps zerolog.Logger to satisfy the aoi.Logger interface.
// Args alternate key and value; a trailing key without a value is logged under "!BADKEY".
type zerologAdapter struct {
	l zerolog.Logger
}

func newZerologAdapter(l zerolog.Logger, component string) *zerologAdapter {
	return &zerologAdapter{l: l.With().Str("component", component).Logger()}
}

func (a *zerologAdapter) Debug(msg string, args ...any) { a.log(a.l.Debug(), msg, args) }
func (a *zerologAdapter) Info(msg string, args ...any)  { a.log(a.l.Info(), msg, args) }
func (a *zerologAdapter) Warn(msg string, args ...any)  { a.log(a.l.Warn(), msg, args) }
func (a *zerologAdapter) Error(msg string, args ...any) { a.log(a.l.Error(), msg, args) }

func (a *zerologAdapter) log(e *zerolog.Event, msg string, args []any) {
	if e == nil {
		return
	}
	e.Fields(fields(args)).Msg(msg)
}

func fields(args []any) map[string]any {
	out := make(map[string]any, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		if i+1 == len(args) {
			out["!BADKEY"] = args[i]
			break
		}
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		out[key] = args[i+1]
	}
	return out
}
