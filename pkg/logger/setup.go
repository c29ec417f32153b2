package logger

// SetupLogger builds a logger from CLI-level settings.
func SetupLogger(logLevel string, logJSON bool) Logger {
	var level LogLevel
	switch logLevel {
	case "debug":
		level = DebugLevel
	case "info":
		level = InfoLevel
	case "warn":
		level = WarnLevel
	case "error":
		level = ErrorLevel
	default:
		level = InfoLevel
	}
	return NewLogger(&Config{
		Level:      level,
		JSON:       logJSON,
		TimeFormat: "15:04:05",
	})
}
