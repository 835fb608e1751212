// logging.go - structured logging for the DCB subsystem.
//
// Grounded on eventloop/logging.go's package-level, swappable structured
// logger, re-expressed against a real logging facade
// (github.com/joeycumines/logiface) instead of a hand-rolled one, backed
// by default with github.com/rs/zerolog via izerolog.
//
// Design: a package-level default logger exists so DCB internals always
// have somewhere to log illegal transitions and fatal I/O even if the
// embedding application never configures one; SetLogger/WithLogger let
// the application swap it for its own sink.
package dcb

import (
	"os"
	"sync"

	lf "github.com/joeycumines/logiface"
	lfzerolog "github.com/joeycumines/izerolog"
	"github.com/rs/zerolog"
)

// Logger is the logging facade used throughout this package: a logiface
// Logger bound to the zerolog Event implementation. Any logiface backend
// could be substituted by constructing a different *lf.Logger[E] and
// adapting it here; zerolog is the default because it's the backend the
// teacher's own izerolog module targets.
type Logger = *lf.Logger[*lfzerolog.Event]

var (
	globalLoggerMu sync.RWMutex
	globalLogger   Logger
)

// defaultLogger writes info-and-above to stderr as JSON lines, the same
// "works out of the box" stance as eventloop.NewDefaultLogger.
var defaultLogger = lf.New[*lfzerolog.Event](
	lfzerolog.WithZerolog(zerolog.New(os.Stderr).With().Timestamp().Logger()),
	lf.WithLevel[*lfzerolog.Event](lf.LevelInformational),
)

// SetLogger installs the process-wide default logger used by any Service
// constructed without an explicit [WithLogger] option.
func SetLogger(l Logger) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	globalLogger = l
}

// currentGlobalLogger returns the configured global logger, falling back
// to defaultLogger.
func currentGlobalLogger() Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	if globalLogger != nil {
		return globalLogger
	}
	return defaultLogger
}

// logIllegalTransition logs a rejected state transition attempt (spec §7
// "Illegal state transition: logged, set-state returns failure").
func logIllegalTransition(l Logger, dcbID uint64, from, to State) {
	if l == nil {
		l = currentGlobalLogger()
	}
	l.Warning().
		Uint64("dcb_id", dcbID).
		Str("from", from.String()).
		Str("to", to.String()).
		Log("illegal dcb state transition rejected")
}

// logFatalIO logs an unrecoverable I/O condition (spec §7 Fatal I/O).
func logFatalIO(l Logger, dcbID uint64, op string, fd int, err error) {
	if l == nil {
		l = currentGlobalLogger()
	}
	l.Err().
		Err(err).
		Uint64("dcb_id", dcbID).
		Str("op", op).
		Int("fd", fd).
		Log("fatal dcb i/o error")
}

// logZombieReclaimed logs final free of a DCB by the reclaimer.
func logZombieReclaimed(l Logger, dcbID uint64, fd int) {
	if l == nil {
		l = currentGlobalLogger()
	}
	l.Debug().
		Uint64("dcb_id", dcbID).
		Int("fd", fd).
		Log("dcb reclaimed and freed")
}

// logProtocolLoadFailure logs a Connect-time protocol lookup failure
// (spec §7 "Protocol-module load failure at connect").
func logProtocolLoadFailure(l Logger, name string, err error) {
	if l == nil {
		l = currentGlobalLogger()
	}
	l.Err().
		Err(err).
		Str("protocol", name).
		Log("failed to load protocol module")
}
