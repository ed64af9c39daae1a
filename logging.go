package crdt

import "go.uber.org/zap"

// log is the package-level logger, replaceable by a host via SetLogger.
// The engine never logs at info level or above in the hot path — only
// the diagnostics §7 calls out explicitly: suppressed observer panics,
// decoder warnings, and pending-dependency buffering.
var log = zap.NewNop().Sugar()

// SetLogger installs the logger used for the engine's internal
// diagnostics. Passing nil restores a no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		log = zap.NewNop().Sugar()
		return
	}
	log = l.Sugar()
}
