package evmprobe

import "log/slog"

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithSubmitter enables Transact by routing write candidates through s.
func WithSubmitter(s Submitter) ResolverOption {
	return func(r *Resolver) {
		r.submitter = s
	}
}

// WithLogger sets the logger used for per-attempt debug records.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver registers a callback invoked once per Resolve or Transact
// with the final outcome. Used for metrics.
func WithObserver(fn func(capability string, outcome Outcome)) ResolverOption {
	return func(r *Resolver) {
		r.observe = fn
	}
}
