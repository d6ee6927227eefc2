package dex

import (
	"context"
	"log/slog"

	"github.com/jlrickert/repodex/pkg/log"
)

// Options configures how an index file is opened. Zero values fall back to
// the defaults of the index kind being opened.
type Options struct {
	ReadOnly bool

	// IDLength is the fixed byte width of resource identifiers.
	IDLength int

	// TypeLength and PathLength are the initial field widths of the uri
	// index. Both grow on demand.
	TypeLength int
	PathLength int

	// ValuesPerEntry is the initial per-record capacity of the version and
	// language indexes.
	ValuesPerEntry int

	// Slots and EntriesPerSlot shape the id and path bucket indexes.
	Slots          int64
	EntriesPerSlot int

	// RecordCache is the number of decoded uri records kept in memory.
	// Negative disables the cache.
	RecordCache int

	Logger *slog.Logger
}

// Option mutates Options.
type Option func(*Options)

func WithReadOnly() Option {
	return func(o *Options) { o.ReadOnly = true }
}

func WithIDLength(n int) Option {
	return func(o *Options) { o.IDLength = n }
}

func WithTypeLength(n int) Option {
	return func(o *Options) { o.TypeLength = n }
}

func WithPathLength(n int) Option {
	return func(o *Options) { o.PathLength = n }
}

func WithValuesPerEntry(n int) Option {
	return func(o *Options) { o.ValuesPerEntry = n }
}

func WithSlots(n int64) Option {
	return func(o *Options) { o.Slots = n }
}

func WithEntriesPerSlot(n int) Option {
	return func(o *Options) { o.EntriesPerSlot = n }
}

func WithRecordCache(n int) Option {
	return func(o *Options) { o.RecordCache = n }
}

// WithLogger overrides the logger otherwise taken from the context.
func WithLogger(lg *slog.Logger) Option {
	return func(o *Options) { o.Logger = lg }
}

func buildOptions(ctx context.Context, opts []Option) Options {
	o := Options{
		IDLength:    DefaultIDLength,
		TypeLength:  DefaultTypeLength,
		PathLength:  DefaultPathLength,
		Slots:       DefaultBucketSlots,
		RecordCache: DefaultRecordCache,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.Logger == nil {
		o.Logger = log.FromContext(ctx)
	}
	if o.IDLength <= 0 {
		o.IDLength = DefaultIDLength
	}
	if o.TypeLength <= 0 {
		o.TypeLength = DefaultTypeLength
	}
	if o.PathLength <= 0 {
		o.PathLength = DefaultPathLength
	}
	if o.Slots <= 0 {
		o.Slots = DefaultBucketSlots
	}
	if o.EntriesPerSlot <= 0 {
		o.EntriesPerSlot = DefaultEntriesPerBucket
	}
	return o
}
