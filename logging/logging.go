// Package logging is the module's thin wrapper over github.com/luxfi/log,
// the slog-backed logger the rest of the luxfi stack uses. It exists so
// the rest of this module names a component logger once and logs
// structured key/value pairs the way luxfi-evm's packages do (see
// _examples/luxfi-evm/plugin/evm/admin.go's log.Info("...", "key", val)
// call sites) rather than formatting strings by hand.
package logging

import (
	"github.com/luxfi/log"
)

// Logger is the structured logger every component in this module holds,
// re-exported so callers don't import luxfi/log directly.
type Logger = log.Logger

// New returns a component-scoped logger, e.g. New("epoch") tags every
// record from the epoch state machine so peers can filter by subsystem.
func New(component string) Logger {
	return log.Root().New("component", component)
}

// NoOp returns a logger that discards everything, for tests that don't
// care about log output.
func NoOp() Logger {
	return log.NewNoOpLogger()
}
