package logging

import (
	golog "github.com/textileio/go-log/v2"
)

// Logger is the diagnostics sink the block building components write to.
// *golog.ZapEventLogger satisfies it; tests plug in an observed logger.
type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

var _ Logger = (*golog.ZapEventLogger)(nil)

// Named returns the logger of the given subsystem.
func Named(system string) Logger {
	return golog.Logger(system)
}

// OrDefault returns l, or the named subsystem logger if l is nil.
func OrDefault(l Logger, system string) Logger {
	if l == nil {
		return Named(system)
	}
	return l
}
