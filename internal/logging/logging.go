// Package logging wraps the standard library log package the way
// ka9q_ubersdr's main.go does: a package-level DebugMode flag gates
// verbose output, everything else goes through log.Printf directly. No
// structured logging library is introduced here; the teacher's own daemon
// entrypoint never reaches for one either.
package logging

import "log"

// DebugMode gates Debugf output. Set once at startup from the -debug flag
// or the BTAUDIOD_DEBUG environment variable; read concurrently afterward.
var DebugMode bool

// Debugf logs only when DebugMode is enabled.
func Debugf(format string, args ...any) {
	if DebugMode {
		log.Printf("[debug] "+format, args...)
	}
}

// Infof always logs.
func Infof(format string, args ...any) {
	log.Printf(format, args...)
}

// Warnf always logs, prefixed so operators can grep for it.
func Warnf(format string, args ...any) {
	log.Printf("warning: "+format, args...)
}

// Errorf always logs, prefixed so operators can grep for it.
func Errorf(format string, args ...any) {
	log.Printf("error: "+format, args...)
}
