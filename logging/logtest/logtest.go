// Package logtest provides loggers whose output can be asserted on in tests.
package logtest

import (
	golog "github.com/textileio/go-log/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// New returns a debug level logger and the entries it records.
func New() (*golog.ZapEventLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &golog.ZapEventLogger{SugaredLogger: *zap.New(core).Sugar()}, logs
}

// Count returns how many recorded entries have the given level and a message
// containing snippet.
func Count(logs *observer.ObservedLogs, level zapcore.Level, snippet string) int {
	var n int
	for _, e := range logs.FilterMessageSnippet(snippet).All() {
		if e.Level == level {
			n++
		}
	}
	return n
}
