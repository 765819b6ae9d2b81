// Package logging constructs the shared zap logger.
package logging

import "go.uber.org/zap"

// New returns a production zap logger, or a development one when debug is set.
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
