package logger

// nopLogger discards everything. Used by tests and as the default when a
// component is constructed without an explicit logger.
type nopLogger struct{}

// NewNop returns a Logger that discards all entries.
func NewNop() Logger {
	return nopLogger{}
}

func (nopLogger) Debug(string, ...Field) {}
func (nopLogger) Info(string, ...Field)  {}
func (nopLogger) Warn(string, ...Field)  {}
func (nopLogger) Error(string, ...Field) {}

func (n nopLogger) With(...Field) Logger { return n }
func (nopLogger) Close() error           { return nil }
