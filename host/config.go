package host

import (
	"go.uber.org/zap"

	"github.com/wippyai/refbridge/napi"
)

const (
	// DefaultNamespace is the import module name addons link against.
	DefaultNamespace = "napi"

	registerExport = "napi_register_module_v1"
	finalizeExport = "napi_finalize"
	memoryExport   = "memory"

	// autoLength asks create_string_utf8 to scan for a NUL terminator.
	autoLength = 0xFFFFFFFF
)

// Config configures a Bridge. A nil *Config selects defaults.
type Config struct {
	Logger *zap.Logger

	// Namespace is the host module name. Empty means DefaultNamespace.
	Namespace string

	// RealmName names the realm addons share.
	RealmName string

	// MaxScopeDepth and TraceHandles are passed to every addon env.
	MaxScopeDepth int
	TraceHandles  bool
}

func (c *Config) namespace() string {
	if c != nil && c.Namespace != "" {
		return c.Namespace
	}
	return DefaultNamespace
}

func (c *Config) logger() *zap.Logger {
	if c != nil && c.Logger != nil {
		return c.Logger
	}
	return Logger()
}

func (c *Config) envConfig(l *zap.Logger) *napi.Config {
	cfg := &napi.Config{Logger: l}
	if c != nil {
		cfg.MaxScopeDepth = c.MaxScopeDepth
		cfg.TraceHandles = c.TraceHandles
	}
	return cfg
}
