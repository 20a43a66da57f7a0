package cim

import (
	"github.com/mwantia/cim/engine"
	"github.com/mwantia/cim/log"
)

type sessionOptions struct {
	eng engine.Engine
	lg  *log.Logger
}

// SessionOption configures an Image or Volume session.
type SessionOption func(*sessionOptions)

// WithEngine selects the image-format engine backing the session. Sessions
// that must observe each other's state (build one image, then mount it) need
// to share an engine instance.
func WithEngine(eng engine.Engine) SessionOption {
	return func(o *sessionOptions) {
		o.eng = eng
	}
}

// WithLogger sets the diagnostics logger for the session.
func WithLogger(lg *log.Logger) SessionOption {
	return func(o *sessionOptions) {
		o.lg = lg
	}
}

func newSessionOptions(opts ...SessionOption) *sessionOptions {
	o := &sessionOptions{
		eng: defaultEngine(),
		lg:  log.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.lg == nil {
		o.lg = log.Discard()
	}
	return o
}
