package log

import "time"

// Logger is the structured logger every cachenanny package writes to.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a child logger that adds fields to every entry.
	With(fields ...Field) Logger
}

// Field is one key/value pair of a log entry. Adapters render the typed
// constructors below natively and fall back to reflection for Any.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field { return Field{Key: key, Value: value} }
func Int(key string, value int) Field { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }
func Duration(key string, value time.Duration) Field { return Field{Key: key, Value: value} }
func Any(key string, value any) Field { return Field{Key: key, Value: value} }

// Err attaches err under "error".
func Err(err error) Field {
	return Field{Key: "error", Value: err}
}

// Event names a cache or nanny event.
func Event(name string) Field {
	return Field{Key: "event", Value: name}
}
