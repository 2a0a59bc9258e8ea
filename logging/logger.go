package logging

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// Logger is the handle an inspection logs through. It is passed explicitly
// instead of reaching for the logrus standard logger, so every line carries
// the fields of the inspection it belongs to.
type Logger struct {
	entry *log.Entry
}

// NewLogger wraps an entry. A nil entry falls back to the standard logger.
func NewLogger(entry *log.Entry) *Logger {
	if entry == nil {
		entry = log.NewEntry(log.StandardLogger())
	}

	return &Logger{entry: entry}
}

func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

func (l *Logger) WithFields(fields log.Fields) *Logger {
	return &Logger{entry: l.entry.WithFields(fields)}
}

func (l *Logger) WithContext(ctx context.Context) *Logger {
	return &Logger{entry: l.entry.WithContext(ctx)}
}

// Severe logs a failure that ends an inspection.
func (l *Logger) Severe(message string) {
	l.entry.Error(MaskText(message))
}

// Fine logs diagnostic detail.
func (l *Logger) Fine(message string) {
	l.entry.Debug(MaskText(message))
}

func (l *Logger) Entry() *log.Entry {
	return l.entry
}
