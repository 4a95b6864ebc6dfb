// Package monitoring holds the process-wide diagnostic log hook.
//
// Packages log through monitoring.Logf rather than the log package directly so
// that callers can redirect diagnostics or silence them in tests.
package monitoring

import "log"

// Logf emits a diagnostic message. It defaults to log.Printf.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger,
// which is the usual choice in tests that exercise error paths.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
