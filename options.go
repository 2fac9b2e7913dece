package memimage

import (
	"github.com/hashicorp/go-hclog"

	"github.com/polaris-sw/memimage/internal/typemodel"
)

// SaveOption configures a Save or SaveClump call.
type SaveOption func(*saveOptions)

type saveOptions struct {
	logger hclog.Logger
}

func defaultSaveOptions() *saveOptions {
	return &saveOptions{logger: hclog.NewNullLogger()}
}

// WithLogger attaches a logger used for debug-level tracing of a save:
// the gathered chunk count and payload size, and the written image's
// table start and total size. Individual fix-ups are not logged;
// failures are logged at error level.
func WithLogger(l hclog.Logger) SaveOption {
	return func(o *saveOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// LoadOption configures a Load, LoadInPlace, or LoadClump call.
type LoadOption func(*loadOptions)

type loadOptions struct {
	logger   hclog.Logger
	registry *typemodel.Registry
}

func defaultLoadOptions() *loadOptions {
	return &loadOptions{
		logger:   hclog.NewNullLogger(),
		registry: typemodel.GlobalRegistry(),
	}
}

// WithLoadLogger attaches a logger used for debug-level tracing of
// fix-up application.
func WithLoadLogger(l hclog.Logger) LoadOption {
	return func(o *loadOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRegistry overrides the type registry used to resolve TypeFix
// entries, for a loading process that populates its own registry rather
// than relying on the process-wide one.
func WithRegistry(r *typemodel.Registry) LoadOption {
	return func(o *loadOptions) {
		if r != nil {
			o.registry = r
		}
	}
}
