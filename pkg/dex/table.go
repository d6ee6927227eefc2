package dex

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// slotTable is the fixed-width slot layer shared by every index kind: a
// header followed by slots of identical size. It owns the file handle,
// the counters and, for kinds that tombstone deleted slots, the free list.
//
// Methods with a Locked suffix, and all unexported helpers, expect mu to
// be held by the caller.
type slotTable struct {
	mu sync.Mutex

	label string // short kind, used as the metrics label
	kind  string // human readable kind used in messages
	f     *slotFile
	lg    *slog.Logger

	version  int32
	params   []int32
	slots    int64
	entries  int64
	slotSize int

	// free is nil for kinds without tombstones.
	free   *freeList
	closed bool
}

func newSlotTable(label string, f *slotFile, lg *slog.Logger, tombstones bool) *slotTable {
	t := &slotTable{
		label:   label,
		kind:    label + " index",
		f:       f,
		lg:      lg.With(slog.String("index", label)),
		version: FormatVersion,
	}
	if tombstones {
		t.free = newFreeList()
	}
	return t
}

func (t *slotTable) headerSize() int64 { return headerSize(len(t.params)) }

func (t *slotTable) offset(entry int64) int64 {
	return t.headerSize() + entry*int64(t.slotSize)
}

func (t *slotTable) checkOpen() error {
	if t.closed {
		return fmt.Errorf("%s: %w", t.kind, ErrClosed)
	}
	return nil
}

func (t *slotTable) checkWritable() error {
	if err := t.checkOpen(); err != nil {
		return err
	}
	if t.f.readOnly {
		return readOnlyError(t.kind)
	}
	return nil
}

// create initializes an empty file with the given parameters and slots
// pre-filled by blank.
func (t *slotTable) create(params []int32, slotSize int, slots int64, blank func([]byte)) error {
	h := header{version: t.version, params: params, slots: slots}
	err := t.f.replace(func(w io.Writer) error {
		if _, err := w.Write(h.encode()); err != nil {
			return err
		}
		buf := make([]byte, slotSize)
		for i := int64(0); i < slots; i++ {
			clear(buf)
			blank(buf)
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("initializing %s: %w", t.kind, err)
	}
	t.params = params
	t.slotSize = slotSize
	t.slots = slots
	t.entries = 0
	if t.free != nil {
		t.free.reset()
		for i := int64(0); i < slots; i++ {
			t.free.push(i)
		}
	}
	t.lg.Debug("created index", slog.String("path", t.f.path), slog.Int64("slots", slots))
	return nil
}

// load reads the header of an existing file. slotSize derives the slot
// width from the stored parameters.
func (t *slotTable) load(nparams int, slotSize func(params []int32) int) error {
	h, err := t.f.readHeader(nparams)
	if err != nil {
		return err
	}
	t.version = h.version
	t.params = h.params
	t.slots = h.slots
	t.entries = h.entries
	t.slotSize = slotSize(h.params)

	if h.version != FormatVersion {
		t.lg.Warn("index format version differs, consider a reindex",
			slog.Int("found", int(h.version)),
			slog.Int("expected", FormatVersion),
			slog.String("path", t.f.path))
	}

	info, err := t.f.file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", t.kind, err)
	}
	if info.Size() < t.offset(t.slots) {
		return fmt.Errorf("%s is truncated: %d bytes on disk, %d expected: %w",
			t.kind, info.Size(), t.offset(t.slots), ErrInvalidState)
	}
	t.lg.Debug("opened index",
		slog.String("path", t.f.path),
		slog.Int64("slots", t.slots),
		slog.Int64("entries", t.entries))
	return nil
}

// scan calls fn for every slot in address order. The slot buffer is reused
// between calls.
func (t *slotTable) scan(fn func(entry int64, slot []byte) error) error {
	r := t.f.body(t.offset(0), t.slots*int64(t.slotSize))
	buf := make([]byte, t.slotSize)
	for i := int64(0); i < t.slots; i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("scanning %s at slot %d: %w", t.kind, i, err)
		}
		if err := fn(i, buf); err != nil {
			return err
		}
	}
	return nil
}

func (t *slotTable) inRange(entry int64) bool {
	return entry >= 0 && entry < t.slots
}

func (t *slotTable) readRaw(entry int64) ([]byte, error) {
	if !t.inRange(entry) {
		return nil, &NoDataError{Index: t.kind, Entry: entry}
	}
	buf := make([]byte, t.slotSize)
	if err := t.f.readAt(buf, t.offset(entry)); err != nil {
		return nil, err
	}
	return buf, nil
}

// readLive returns the slot at entry or a NoDataError when it is out of
// range or tombstoned.
func (t *slotTable) readLive(entry int64) ([]byte, error) {
	buf, err := t.readRaw(entry)
	if err != nil {
		return nil, err
	}
	if buf[0] == tombstone {
		return nil, &NoDataError{Index: t.kind, Entry: entry}
	}
	return buf, nil
}

func (t *slotTable) writeSlot(entry int64, buf []byte) error {
	return t.f.writeAt(buf, t.offset(entry))
}

func (t *slotTable) writeCounters() error {
	return t.f.writeCounters(len(t.params), t.slots, t.entries)
}

func (t *slotTable) tombstoneSlot() []byte {
	buf := make([]byte, t.slotSize)
	buf[0] = tombstone
	return buf
}

// allocate picks the lowest tombstoned slot, or the slot just past the end.
func (t *slotTable) allocate() (int64, bool) {
	if entry, ok := t.free.pop(); ok {
		return entry, true
	}
	return t.slots, false
}

// claim prepares entry for a record written at a fixed address. Slots
// between the current end and entry are filled with tombstones. It
// reports false if entry already holds a live record.
func (t *slotTable) claim(entry int64) (bool, error) {
	if entry < 0 {
		return false, fmt.Errorf("%s: negative address %d: %w", t.kind, entry, ErrInvalid)
	}
	if entry < t.slots {
		return t.free.remove(entry), nil
	}
	gap := t.tombstoneSlot()
	for i := t.slots; i < entry; i++ {
		if err := t.writeSlot(i, gap); err != nil {
			return false, err
		}
		t.free.push(i)
	}
	return true, nil
}

// place writes a new record into a slot handed out by allocate or claim
// and updates the counters.
func (t *slotTable) place(entry int64, buf []byte, reused bool) error {
	if err := t.writeSlot(entry, buf); err != nil {
		if reused {
			t.free.push(entry)
		}
		return err
	}
	if entry >= t.slots {
		t.slots = entry + 1
	}
	t.entries++
	if reused {
		slotReuseMetric.WithLabelValues(t.label).Inc()
	}
	return t.writeCounters()
}

// release tombstones a live slot and returns it to the free list.
func (t *slotTable) release(entry int64) error {
	if err := t.writeSlot(entry, t.tombstoneSlot()); err != nil {
		return err
	}
	t.entries--
	t.free.push(entry)
	return t.writeCounters()
}

// rewrite copies the file into a sibling with new parameters and swaps it
// into place. migrate converts one live slot; tombstones and slots past
// the old end are written blank.
func (t *slotTable) rewrite(
	params []int32,
	slotSize int,
	slots int64,
	migrate func(old, new []byte) error,
	blank func([]byte),
) error {
	start := time.Now()
	h := header{version: FormatVersion, params: params, slots: slots, entries: t.entries}
	oldSize := t.offset(t.slots)

	err := t.f.replace(func(w io.Writer) error {
		if _, err := w.Write(h.encode()); err != nil {
			return err
		}
		r := t.f.body(t.offset(0), t.slots*int64(t.slotSize))
		old := make([]byte, t.slotSize)
		buf := make([]byte, slotSize)
		for i := int64(0); i < slots; i++ {
			clear(buf)
			if i < t.slots {
				if _, err := io.ReadFull(r, old); err != nil {
					return fmt.Errorf("reading %s slot %d: %w", t.kind, i, err)
				}
				if t.free != nil && old[0] == tombstone {
					buf[0] = tombstone
				} else if err := migrate(old, buf); err != nil {
					return err
				}
			} else {
				blank(buf)
			}
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("resizing %s: %w", t.kind, err)
	}

	if t.free != nil {
		for i := t.slots; i < slots; i++ {
			t.free.push(i)
		}
	}
	t.version = FormatVersion
	t.params = params
	t.slotSize = slotSize
	t.slots = slots

	elapsed := time.Since(start)
	resizeMetric.WithLabelValues(t.label).Inc()
	resizeSecondsMetric.WithLabelValues(t.label).Observe(elapsed.Seconds())
	t.lg.Info("resized index",
		slog.String("path", t.f.path),
		slog.Any("params", params),
		slog.String("from", humanize.Bytes(uint64(oldSize))),
		slog.String("to", humanize.Bytes(uint64(t.offset(slots)))),
		slog.Duration("took", elapsed))
	return nil
}

// reset rewrites every slot blank and zeroes the entry counter while
// keeping the slot count.
func (t *slotTable) reset(blank func([]byte)) error {
	h := header{version: FormatVersion, params: t.params, slots: t.slots}
	err := t.f.replace(func(w io.Writer) error {
		if _, err := w.Write(h.encode()); err != nil {
			return err
		}
		buf := make([]byte, t.slotSize)
		for i := int64(0); i < t.slots; i++ {
			clear(buf)
			blank(buf)
			if _, err := w.Write(buf); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("clearing %s: %w", t.kind, err)
	}
	t.version = FormatVersion
	t.entries = 0
	if t.free != nil {
		t.free.reset()
		for i := int64(0); i < t.slots; i++ {
			t.free.push(i)
		}
	}
	operationsMetric.WithLabelValues(t.label, "clear").Inc()
	return nil
}

// Upgrade rewrites a file whose header carries another format version with
// the current one. Slot contents are copied unchanged.
func (t *slotTable) Upgrade() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkWritable(); err != nil {
		return err
	}
	if t.version == FormatVersion {
		return nil
	}
	from := t.version
	err := t.rewrite(t.params, t.slotSize, t.slots, func(old, buf []byte) error {
		copy(buf, old)
		return nil
	}, zeroBlank)
	if err != nil {
		return err
	}
	t.lg.Info("upgraded index format", slog.Int("from", int(from)), slog.Int("to", FormatVersion))
	return nil
}

func tombstoneBlank(buf []byte) { buf[0] = tombstone }

func zeroBlank([]byte) {}

// Close releases the file handle. Further calls return ErrClosed.
func (t *slotTable) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.f.sync(); err != nil {
		t.f.close()
		return err
	}
	return t.f.close()
}

// Sync flushes written slots to stable storage.
func (t *slotTable) Sync() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkOpen(); err != nil {
		return err
	}
	return t.f.sync()
}

// Slots returns the number of slots in the file, live or tombstoned.
func (t *slotTable) Slots() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.slots
}

// Entries returns the number of live records.
func (t *slotTable) Entries() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries
}

// FreeSlots returns the number of tombstoned slots waiting for reuse.
func (t *slotTable) FreeSlots() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.free == nil {
		return 0
	}
	return int64(t.free.len())
}

// Size returns the file size in bytes implied by the header.
func (t *slotTable) Size() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.offset(t.slots)
}

// IndexVersion returns the format version stored in the file header.
func (t *slotTable) IndexVersion() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return int(t.version)
}

func (t *slotTable) ReadOnly() bool {
	return t.f.readOnly
}

// FilePath returns the location of the index file.
func (t *slotTable) FilePath() string {
	return t.f.path
}
