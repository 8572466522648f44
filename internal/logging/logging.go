// Package logging constructs the process logger.
package logging

import "go.uber.org/zap"

// New builds a zap logger. debug switches to the development config; quiet
// returns a no-op logger, used while the TUI owns the terminal.
func New(debug, quiet bool) (*zap.Logger, error) {
	if quiet {
		return zap.NewNop(), nil
	}
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
