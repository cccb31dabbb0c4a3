package troupe

import (
	"time"

	"github.com/ygrebnov/errorc"
	"go.uber.org/zap"

	"github.com/ygrebnov/troupe/logging"
	"github.com/ygrebnov/troupe/metrics"
	"github.com/ygrebnov/troupe/profile"
)

// config holds runtime configuration shared by Actor, Cast and Collector.
type config struct {
	// Timeout is the idle timeout measured from the last activity.
	// Default: 0 (disabled, wait indefinitely)
	Timeout time.Duration

	// Workers is the number of workers a Cast starts with. Ignored by Actor.
	// Default: 1
	Workers int

	// MaxWorkers caps the number of concurrently running Cast workers.
	// Default: 0 (no cap)
	MaxWorkers uint

	// MailboxCapacity bounds the mailbox created by the runtime.
	// Default: 0 (unbounded)
	MailboxCapacity int

	// Mailbox, Callback, Handle and CastHandle hold user-supplied values of generic types
	// (stored as any due to non-generic config). They are type-checked by the constructors.
	Mailbox    any
	Callback   any
	Handle     any
	CastHandle any

	// Fields are user values passed through to every handler call.
	Fields Fields

	// Logger receives lifecycle and error reports.
	// Default: console logger at info level.
	Logger *zap.Logger

	// Metrics records runtime instruments.
	// Default: no-op provider.
	Metrics metrics.Provider
}

// defaultConfig centralizes default values for config.
func defaultConfig() config {
	return config{
		Timeout:         0,
		Workers:         1,
		MaxWorkers:      0,
		MailboxCapacity: 0,
		Fields:          Fields{},
		Metrics:         metrics.NewNoopProvider(),
	}
}

// newConfig applies opts over the defaults and validates the result.
func newConfig(opts ...Option) (*config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &cfg, nil
}

// validateConfig checks cross-option invariants.
func validateConfig(cfg *config) error {
	if cfg.MaxWorkers > 0 && uint(cfg.Workers) > cfg.MaxWorkers {
		return errorc.With(ErrInvalidConfig, errorc.String("", "initial workers exceed WithMaxWorkers"))
	}
	return nil
}

// Option configures a runtime. Use it with NewActor, NewCast, NewCollector and NewCastCollector.
// An Option returns an error on invalid input.
type Option func(*config) error

// WithTimeout sets the idle timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(cfg *config) error {
		if d < 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithTimeout requires d >= 0"))
		}
		cfg.Timeout = d
		return nil
	}
}

// WithWorkers sets the number of workers a Cast starts with (default 1).
func WithWorkers(n int) Option {
	return func(cfg *config) error {
		if n < 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithWorkers requires n >= 0"))
		}
		cfg.Workers = n
		return nil
	}
}

// WithMaxWorkers caps concurrently running Cast workers (must be > 0).
// Add requests beyond the cap are dropped.
func WithMaxWorkers(n uint) Option {
	return func(cfg *config) error {
		if n == 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithMaxWorkers requires n > 0"))
		}
		cfg.MaxWorkers = n
		return nil
	}
}

// WithMailboxCapacity bounds the runtime's own mailbox. Ignored when WithMailbox is used.
func WithMailboxCapacity(n int) Option {
	return func(cfg *config) error {
		if n < 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithMailboxCapacity requires n >= 0"))
		}
		cfg.MailboxCapacity = n
		return nil
	}
}

// WithMailbox makes the runtime drain an existing mailbox, e.g. another runtime's outbox.
func WithMailbox[T any](mb *Mailbox[T]) Option {
	return func(cfg *config) error {
		if mb == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithMailbox requires a non-nil mailbox"))
		}
		cfg.Mailbox = mb
		return nil
	}
}

// WithCallback sets the function run on natural stop.
func WithCallback[T any](fn Callback[T]) Option {
	return func(cfg *config) error { cfg.Callback = fn; return nil }
}

// WithHandle sets the Actor error handler.
func WithHandle[T any](fn Handle[T]) Option {
	return func(cfg *config) error { cfg.Handle = fn; return nil }
}

// WithCastHandle sets the Cast error handler.
func WithCastHandle[T any](fn CastHandle[T]) Option {
	return func(cfg *config) error { cfg.CastHandle = fn; return nil }
}

// WithField adds a user field passed to every handler call.
func WithField(name string, value any) Option {
	return func(cfg *config) error {
		if name == "" {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithField requires a name"))
		}
		cfg.Fields[name] = value
		return nil
	}
}

// WithFields adds user fields passed to every handler call.
func WithFields(fields Fields) Option {
	return func(cfg *config) error {
		for name, value := range fields {
			cfg.Fields[name] = value
		}
		return nil
	}
}

// WithLogger sets the logger. A nil logger silences the runtime.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config) error {
		if logger == nil {
			logger = zap.NewNop()
		}
		cfg.Logger = logger
		return nil
	}
}

// WithMetrics sets the metrics provider.
func WithMetrics(p metrics.Provider) Option {
	return func(cfg *config) error {
		if p == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", "WithMetrics requires a provider"))
		}
		cfg.Metrics = p
		return nil
	}
}

// WithProfile applies a loaded profile: timeout, workers, worker cap, mailbox capacity,
// fields and logger. Options given after it override its values.
func WithProfile(p profile.Profile) Option {
	return func(cfg *config) error {
		if err := p.Validate(); err != nil {
			return errorc.With(ErrInvalidConfig, errorc.String("", err.Error()))
		}
		cfg.Timeout = p.Timeout
		if p.Workers > 0 {
			cfg.Workers = p.Workers
		}
		cfg.MaxWorkers = uint(p.MaxWorkers)
		cfg.MailboxCapacity = p.MailboxCapacity
		for name, value := range p.Fields {
			cfg.Fields[name] = value
		}
		cfg.Logger = logging.New(p.Log)
		return nil
	}
}

// mailboxFrom returns the user-supplied mailbox or a new one sized by MailboxCapacity.
func mailboxFrom[T any](cfg *config) (*Mailbox[T], error) {
	if cfg.Mailbox == nil {
		return NewMailbox[T](WithCapacity(cfg.MailboxCapacity)), nil
	}
	mb, ok := cfg.Mailbox.(*Mailbox[T])
	if !ok {
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "WithMailbox message type does not match the runtime"))
	}
	return mb, nil
}

// callbackFrom returns the configured callback or the default one.
func callbackFrom[T any](cfg *config) (Callback[T], error) {
	switch fn := cfg.Callback.(type) {
	case nil:
		return defaultCallback[T](cfg.Logger), nil
	case Callback[T]:
		if fn == nil {
			return defaultCallback[T](cfg.Logger), nil
		}
		return fn, nil
	default:
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "WithCallback message type does not match the runtime"))
	}
}

// handleFrom returns the configured Actor handle or the default one.
func handleFrom[T any](cfg *config) (Handle[T], error) {
	switch fn := cfg.Handle.(type) {
	case nil:
		return defaultHandle[T](cfg.Logger), nil
	case Handle[T]:
		if fn == nil {
			return defaultHandle[T](cfg.Logger), nil
		}
		return fn, nil
	default:
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "WithHandle message type does not match the runtime"))
	}
}

// castHandleFrom returns the configured Cast handle or the default one.
func castHandleFrom[T any](cfg *config) (CastHandle[T], error) {
	switch fn := cfg.CastHandle.(type) {
	case nil:
		return defaultCastHandle[T](cfg.Logger), nil
	case CastHandle[T]:
		if fn == nil {
			return defaultCastHandle[T](cfg.Logger), nil
		}
		return fn, nil
	default:
		return nil, errorc.With(ErrInvalidConfig, errorc.String("", "WithCastHandle message type does not match the runtime"))
	}
}
