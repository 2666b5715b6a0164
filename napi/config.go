package napi

import (
	"go.uber.org/zap"
)

// Config holds per-environment options. A nil *Config selects defaults.
type Config struct {
	// Logger receives lifecycle events at debug level.
	// nil means the package logger.
	Logger *zap.Logger

	// MaxScopeDepth caps the number of nested handle scopes in one Call,
	// counting the base scope. 0 means unlimited.
	MaxScopeDepth int

	// TraceHandles logs every handle table insert and removal.
	TraceHandles bool
}

func (c *Config) logger() *zap.Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	return Logger()
}
