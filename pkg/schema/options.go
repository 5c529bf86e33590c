package schema

import (
	"time"

	"github.com/rs/zerolog"
)

const defaultDebounce = 500 * time.Millisecond

type options struct {
	logger   zerolog.Logger
	debounce time.Duration
	observe  func(status string)
}

// Option configures a SQLiteProvider or Watcher.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDebounce sets how long the watcher waits for further changes before
// reloading.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithReloadObserver registers a callback receiving "ok" or "error" after
// each reload attempt. A nil fn is ignored.
func WithReloadObserver(fn func(status string)) Option {
	return func(o *options) {
		if fn != nil {
			o.observe = fn
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		logger:   zerolog.Nop(),
		debounce: defaultDebounce,
		observe:  func(string) {},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
