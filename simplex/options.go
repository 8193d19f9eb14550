package simplex

import "q.log/lpsolver/tableau"

// Options configures both simplex variants.
type Options struct {
	// MaxIterations bounds the number of pivots of one solve.
	MaxIterations int
	// Rule is the entering rule used until a degenerate run is detected.
	Rule tableau.Rule
	// DegenerateLimit is the number of consecutive pivots without objective
	// change after which Bland's rule takes over. Zero disables the switch.
	DegenerateLimit int
	// Prefix starts the ID of every snapshot of the history.
	Prefix string
}

// Option mutates Options.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		MaxIterations:   10000,
		Rule:            tableau.Dantzig,
		DegenerateLimit: 50,
		Prefix:          "t-",
	}
}

func newOptions(opts []Option) Options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithMaxIterations sets the pivot limit; n <= 0 keeps the default.
func WithMaxIterations(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxIterations = n
		}
	}
}

// WithRule sets the entering rule.
func WithRule(r tableau.Rule) Option {
	return func(o *Options) { o.Rule = r }
}

// WithDegenerateLimit sets the degenerate run length that triggers Bland's
// rule.
func WithDegenerateLimit(n int) Option {
	return func(o *Options) { o.DegenerateLimit = n }
}

// WithPrefix sets the snapshot ID prefix.
func WithPrefix(p string) Option {
	return func(o *Options) { o.Prefix = p }
}
