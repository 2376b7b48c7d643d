package lsmtfs

import "go.uber.org/zap"

// Config holds the tunables collected in §7 of the design notes: sizes
// that affect correctness or resource bounds, threaded through
// constructors rather than hidden behind package-level globals.
type Config struct {
	// MaxIOSize bounds a single pread/pwrite before LSMT splits it into
	// chunks; must be a positive multiple of 4 KiB.
	MaxIOSize int
	// GroupCommit is the number of journal entries an RW layer buffers
	// before flushing as one aligned block; 0 means write-through.
	GroupCommit int
	// RefillUnit is the BlockCache fetch granularity in bytes.
	RefillUnit int64
	// CacheCapacity bounds BlockCache resident bytes before LRU eviction.
	CacheCapacity int64
	// ZFileBlockSize is the ZFile logical block size in bytes.
	ZFileBlockSize uint32
}

// DefaultConfig returns the design notes' suggested defaults.
func DefaultConfig() Config {
	return Config{
		MaxIOSize:      4 << 20,
		GroupCommit:    0,
		RefillUnit:     64 << 10,
		CacheCapacity:  256 << 20,
		ZFileBlockSize: 4096,
	}
}

// Option mutates a Config being built by NewEngine; the functional-
// options idiom used throughout this module for constructing layered
// types.
type Option func(*Config)

func WithMaxIOSize(n int) Option      { return func(c *Config) { c.MaxIOSize = n } }
func WithGroupCommit(n int) Option    { return func(c *Config) { c.GroupCommit = n } }
func WithRefillUnit(n int64) Option   { return func(c *Config) { c.RefillUnit = n } }
func WithCacheCapacity(n int64) Option { return func(c *Config) { c.CacheCapacity = n } }

// Engine carries the ambient dependencies (structured logging, config)
// for a caller to hand to this module's components instead of reaching
// for package-level singletons. No constructor takes an *Engine: the
// components that log (lsmt.ReadOnly, zfile.Reader) take its Logger via
// SetLogger, and Config values are passed as individual arguments.
type Engine struct {
	Logger *zap.Logger
	Config Config
}

// NewEngine builds an Engine with the given logger (or a no-op logger
// if nil) and Config built from DefaultConfig plus opts.
func NewEngine(logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &Engine{Logger: logger, Config: cfg}
}

// With returns a child Engine sharing Config but scoping the logger to
// name, mirroring zap's named-logger convention for per-component logs
// (e.g. "lsmt.rw", "zfile.reader", "cache.blockcache").
func (e *Engine) With(name string) *Engine {
	return &Engine{Logger: e.Logger.Named(name), Config: e.Config}
}
