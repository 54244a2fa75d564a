package utils

import (
	"fmt"

	"go.uber.org/zap"
)

// NewSugaredLogger builds the sugared zap logger the deploytrack commands log
// through. With --verbose the human-readable development config is used at
// debug level; otherwise the JSON production config at info level.
func NewSugaredLogger(verbose bool) (*zap.SugaredLogger, error) {
	build := zap.NewProduction
	if verbose {
		build = zap.NewDevelopment
	}

	l, err := build()
	if err != nil {
		return nil, fmt.Errorf("failed to create zap logger: %w", err)
	}
	return l.Sugar(), nil
}
