package logging

import "github.com/RemnantsOfSiren/partysync/types"

// NopLogger discards all log messages.
//
// Used as the default logger so components never need nil checks.
type NopLogger struct{}

// Compile-time assertion that NopLogger implements Logger.
var _ types.Logger = (*NopLogger)(nil)

// NewNop creates a new no-op logger.
func NewNop() *NopLogger {
	return &NopLogger{}
}

// Debug discards the message.
func (l *NopLogger) Debug(string, ...any) {}

// Info discards the message.
func (l *NopLogger) Info(string, ...any) {}

// Warn discards the message.
func (l *NopLogger) Warn(string, ...any) {}

// Error discards the message.
func (l *NopLogger) Error(string, ...any) {}

// Fatal discards the message and does not exit; a silent logger must not
// terminate the process.
func (l *NopLogger) Fatal(string, ...any) {}
