package logging

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/apmflow/rebalance/types"
)

// ZerologLogger implements types.Logger using rs/zerolog.
type ZerologLogger struct {
	logger zerolog.Logger
}

// Compile-time assertion that ZerologLogger implements Logger.
var _ types.Logger = (*ZerologLogger)(nil)

// NewZerolog creates a new zerolog-based logger.
//
// Parameters:
//   - logger: The underlying zerolog.Logger to use
//
// Returns:
//   - *ZerologLogger: A new logger instance wrapping the provided logger
//
// Example:
//
//	logger := logging.NewZerolog(zerolog.New(os.Stdout).With().Timestamp().Logger())
//	assignor, _ := rebalance.New(cfg, rebalance.WithLogger(logger))
func NewZerolog(logger zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{logger: logger}
}

// Debug logs a debug-level message with optional key-value pairs.
func (l *ZerologLogger) Debug(msg string, keysAndValues ...any) {
	l.emit(l.logger.Debug(), msg, keysAndValues)
}

// Info logs an info-level message with optional key-value pairs.
func (l *ZerologLogger) Info(msg string, keysAndValues ...any) {
	l.emit(l.logger.Info(), msg, keysAndValues)
}

// Warn logs a warning-level message with optional key-value pairs.
func (l *ZerologLogger) Warn(msg string, keysAndValues ...any) {
	l.emit(l.logger.Warn(), msg, keysAndValues)
}

// Error logs an error-level message with optional key-value pairs.
func (l *ZerologLogger) Error(msg string, keysAndValues ...any) {
	l.emit(l.logger.Error(), msg, keysAndValues)
}

// Fatal logs a fatal-level message with optional key-value pairs and exits.
func (l *ZerologLogger) Fatal(msg string, keysAndValues ...any) {
	l.emit(l.logger.Fatal(), msg, keysAndValues)
}

// emit attaches the key-value pairs as event fields. A trailing key with no
// value is recorded as "<missing>".
func (l *ZerologLogger) emit(event *zerolog.Event, msg string, keysAndValues []any) {
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 < len(keysAndValues) {
			event = event.Interface(key, keysAndValues[i+1])
		} else {
			event = event.Str(key, "<missing>")
		}
	}
	event.Msg(msg)
}
