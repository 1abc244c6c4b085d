package log

// MultiLogger fans each event out to every logger in the slice, in
// order. Typical use pairs a SlogAdapter for the console with a
// FileLogger capture. Nil entries are skipped.
type MultiLogger []Logger

// NewMultiLogger builds a fan-out over the given loggers.
func NewMultiLogger(loggers ...Logger) MultiLogger {
	return MultiLogger(loggers)
}

// Log delivers the event to each logger.
func (m MultiLogger) Log(event Event) {
	for _, l := range m {
		if l == nil {
			continue
		}
		l.Log(event)
	}
}

var _ Logger = MultiLogger(nil)
