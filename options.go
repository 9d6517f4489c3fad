package rendercore

import (
	"log/slog"

	"github.com/gogpu/rendercore/command"
)

// Default CPU descriptor heap capacities.
const (
	DefaultRTVCapacity  = 256
	DefaultDSVCapacity  = 64
	DefaultViewCapacity = 4096
)

// EnvOption configures an Env during creation.
//
// Example:
//
//	env, err := rendercore.NewEnv(device,
//		rendercore.WithViewCapacity(16384),
//		rendercore.WithPoolWarnThreshold(128))
type EnvOption func(*envOptions)

type envOptions struct {
	rtvCapacity   uint32
	dsvCapacity   uint32
	viewCapacity  uint32
	logger        *slog.Logger
	warnThreshold int
}

func defaultOptions() envOptions {
	return envOptions{
		rtvCapacity:   DefaultRTVCapacity,
		dsvCapacity:   DefaultDSVCapacity,
		viewCapacity:  DefaultViewCapacity,
		warnThreshold: command.DefaultWarnThreshold,
	}
}

// WithRTVCapacity sets the number of render target view slots.
func WithRTVCapacity(n uint32) EnvOption {
	return func(o *envOptions) {
		o.rtvCapacity = n
	}
}

// WithDSVCapacity sets the number of depth stencil view slots.
func WithDSVCapacity(n uint32) EnvOption {
	return func(o *envOptions) {
		o.dsvCapacity = n
	}
}

// WithViewCapacity sets the number of CPU-side CBV/SRV/UAV slots.
func WithViewCapacity(n uint32) EnvOption {
	return func(o *envOptions) {
		o.viewCapacity = n
	}
}

// WithLogger installs l as the package logger, the same as calling
// SetLogger before NewEnv.
func WithLogger(l *slog.Logger) EnvOption {
	return func(o *envOptions) {
		o.logger = l
	}
}

// WithPoolWarnThreshold sets how many allocators or lists a pool may create
// before it logs a warning. Zero or less disables the warning.
func WithPoolWarnThreshold(n int) EnvOption {
	return func(o *envOptions) {
		o.warnThreshold = n
	}
}
