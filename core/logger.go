package core

// Logger is any service that can log messages with optional structured context.
// Implementations may special-case a user.User argument to tag the current actor.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
