package core

// Logger is the application logger.
// args may carry an error, a map[string]interface{} of extras, or the Actor that triggered the log.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
