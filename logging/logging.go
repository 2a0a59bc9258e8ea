package logging

import (
	log "github.com/sirupsen/logrus"
)

// ConfigureLogrusJSON sets the logger to emit JSON logs with a severity field
// and masks secret-shaped fields before anything is written.
func ConfigureLogrusJSON(logger *log.Logger) {
	if logger == nil {
		return
	}

	logger.SetFormatter(&log.JSONFormatter{})
	logger.AddHook(OtelSeverityHook{})
	logger.AddHook(MaskingHook{})
}

// ConfigureLogrusText is the human readable variant used by the CLI.
func ConfigureLogrusText(logger *log.Logger) {
	if logger == nil {
		return
	}

	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger.AddHook(MaskingHook{})
}

// OtelSeverityHook adds a severity field to log entries so that log
// collectors can classify them without parsing the logrus level.
type OtelSeverityHook struct{}

func (OtelSeverityHook) Levels() []log.Level {
	return log.AllLevels
}

func (OtelSeverityHook) Fire(entry *log.Entry) error {
	if entry == nil {
		return nil
	}
	if _, ok := entry.Data["severity"]; ok {
		return nil
	}

	entry.Data["severity"] = severityForLevel(entry.Level)
	return nil
}

// severityForLevel maps logrus levels onto the severe/fine vocabulary the
// inspection engine logs with.
func severityForLevel(level log.Level) string {
	switch level {
	case log.PanicLevel:
		return "EMERGENCY"
	case log.FatalLevel:
		return "CRITICAL"
	case log.ErrorLevel:
		return "SEVERE"
	case log.WarnLevel:
		return "WARNING"
	case log.InfoLevel:
		return "INFO"
	case log.DebugLevel:
		return "FINE"
	case log.TraceLevel:
		return "FINEST"
	default:
		return "DEFAULT"
	}
}
