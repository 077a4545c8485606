package runner

import (
	"log/slog"
)

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithCaller sets the simulated caller address.
func WithCaller(caller string) Option {
	return func(r *Runner) {
		r.Caller = caller
	}
}

// WithCallID fixes the call id instead of generating one.
func WithCallID(id string) Option {
	return func(r *Runner) {
		r.CallID = id
	}
}
