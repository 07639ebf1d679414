package branchpool

// Logger is a Printf-shaped logging contract, used as the
// per-Branch/per-Supervisor override for exception and panic
// reporting. When unset, reports fall through to the process-wide
// sink in package sink.
type Logger interface {
	Printf(format string, args ...any)
}

// Options configures a Branch at construction time.
type Options struct {
	// InitialWorkers is the worker count spawned eagerly at
	// construction; also the initial target count. Must be >= 0.
	InitialWorkers int
	// Name is a descriptive, non-unique label for the branch.
	Name string
	// PanicHandler, if set, receives the recovered value of any panic
	// from a value-less task body of this branch, instead of the
	// exception sink. Supervisor tick callbacks do not use it.
	PanicHandler func(any)
	// Logger, if set, overrides the process-wide exception sink for
	// this branch's value-less task exceptions.
	Logger Logger
}

type Option func(*Options)

func WithInitialWorkers(n int) Option {
	return func(o *Options) { o.InitialWorkers = n }
}

func WithName(name string) Option {
	return func(o *Options) { o.Name = name }
}

func WithPanicHandler(h func(any)) Option {
	return func(o *Options) { o.PanicHandler = h }
}

func WithLogger(l Logger) Option {
	return func(o *Options) { o.Logger = l }
}

func NewOptions(opts ...Option) *Options {
	o := &Options{
		InitialWorkers: 1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
