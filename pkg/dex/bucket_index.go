package dex

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/zeebo/xxh3"
)

// bucketIndex maps string keys to uri index addresses through a fixed
// number of hash buckets. Keys are not stored; each sub-entry holds the
// xxh3 fingerprint of its key and the address it points at, so a lookup
// may return addresses of colliding keys and callers confirm against the
// uri index.
//
//	header  version | keyWidth | entriesPerSlot | slots | entries
//	bucket  count int32 | (fingerprint uint64, address int64) × entriesPerSlot
//
// A full bucket doubles entriesPerSlot for the whole file. The bucket
// count is fixed once the index holds entries.
type bucketIndex struct {
	*slotTable
}

const (
	bucketParams   = 2
	fingerprintLen = 8
	subEntryWidth  = fingerprintLen + valueWidth
)

func bucketSlotSize(params []int32) int {
	return countWidth + int(params[1])*subEntryWidth
}

func openBucketIndex(ctx context.Context, dir, name, label string, opts []Option) (*bucketIndex, error) {
	o := buildOptions(ctx, opts)
	f, empty, err := openSlotFile(dir, name, label+" index", o.ReadOnly)
	if err != nil {
		return nil, err
	}
	idx := &bucketIndex{slotTable: newSlotTable(label, f, o.Logger, false)}

	if empty {
		params := []int32{fingerprintLen, int32(o.EntriesPerSlot)}
		err = idx.create(params, bucketSlotSize(params), o.Slots, zeroBlank)
	} else {
		err = idx.openExisting(o.Slots, o.EntriesPerSlot)
	}
	if err != nil {
		f.close()
		return nil, err
	}
	return idx, nil
}

func (x *bucketIndex) openExisting(slots int64, perSlot int) error {
	if err := x.load(bucketParams, bucketSlotSize); err != nil {
		return err
	}
	if x.params[0] != fingerprintLen {
		return fmt.Errorf("%s: unsupported key width %d: %w", x.kind, x.params[0], ErrInvalidState)
	}
	if x.f.readOnly {
		return nil
	}
	if x.entries > 0 {
		slots = x.slots
		perSlot = max(perSlot, x.perSlot())
	}
	if slots == x.slots && perSlot == x.perSlot() {
		return nil
	}
	return x.resizeLocked(slots, perSlot)
}

func (x *bucketIndex) perSlot() int { return int(x.params[1]) }

// EntriesPerSlot returns the current bucket capacity.
func (x *bucketIndex) EntriesPerSlot() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.perSlot()
}

// LoadFactor returns stored addresses divided by bucket capacity.
func (x *bucketIndex) LoadFactor() float64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	cells := x.slots * int64(x.perSlot())
	if cells == 0 {
		return 0
	}
	return float64(x.entries) / float64(cells)
}

func fingerprint(key string) uint64 {
	return xxh3.HashString(key)
}

func (x *bucketIndex) bucketOf(fp uint64) int64 {
	return int64(fp % uint64(x.slots))
}

type subEntry struct {
	fp   uint64
	addr int64
}

func (x *bucketIndex) readBucket(b int64) ([]subEntry, error) {
	slot, err := x.readRaw(b)
	if err != nil {
		return nil, err
	}
	n := int(int32(binary.BigEndian.Uint32(slot[:countWidth])))
	if n < 0 || n > x.perSlot() {
		return nil, &CorruptSlotError{
			Index:  x.kind,
			Entry:  b,
			Reason: fmt.Sprintf("bucket count %d outside 0..%d", n, x.perSlot()),
		}
	}
	out := make([]subEntry, n)
	off := countWidth
	for i := range out {
		out[i].fp = binary.BigEndian.Uint64(slot[off : off+fingerprintLen])
		out[i].addr = int64(binary.BigEndian.Uint64(slot[off+fingerprintLen : off+subEntryWidth]))
		off += subEntryWidth
	}
	return out, nil
}

func (x *bucketIndex) writeBucket(b int64, subs []subEntry) error {
	slot := make([]byte, x.slotSize)
	binary.BigEndian.PutUint32(slot[:countWidth], uint32(len(subs)))
	off := countWidth
	for _, s := range subs {
		binary.BigEndian.PutUint64(slot[off:off+fingerprintLen], s.fp)
		binary.BigEndian.PutUint64(slot[off+fingerprintLen:off+subEntryWidth], uint64(s.addr))
		off += subEntryWidth
	}
	return x.writeSlot(b, slot)
}

func checkKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty index key: %w", ErrInvalid)
	}
	return nil
}

// Add maps key to addr. Adding a pair that is already present does
// nothing.
func (x *bucketIndex) Add(key string, addr int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return err
	}
	if err := checkKey(key); err != nil {
		return err
	}
	if addr < 0 {
		return fmt.Errorf("%s: negative address %d: %w", x.kind, addr, ErrInvalid)
	}

	fp := fingerprint(key)
	b := x.bucketOf(fp)
	subs, err := x.readBucket(b)
	if err != nil {
		return err
	}
	for _, s := range subs {
		if s.fp == fp && s.addr == addr {
			return nil
		}
	}
	if len(subs) >= x.perSlot() {
		if err := x.resizeLocked(x.slots, x.perSlot()*2); err != nil {
			return err
		}
	}
	if err := x.writeBucket(b, append(subs, subEntry{fp: fp, addr: addr})); err != nil {
		return err
	}
	x.entries++
	if err := x.writeCounters(); err != nil {
		return err
	}
	operationsMetric.WithLabelValues(x.label, "add").Inc()
	return nil
}

// Locate returns every address stored under the fingerprint of key, in
// insertion order.
func (x *bucketIndex) Locate(key string) ([]int64, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkOpen(); err != nil {
		return nil, err
	}
	if err := checkKey(key); err != nil {
		return nil, err
	}
	fp := fingerprint(key)
	subs, err := x.readBucket(x.bucketOf(fp))
	if err != nil {
		return nil, err
	}
	var out []int64
	for _, s := range subs {
		if s.fp == fp {
			out = append(out, s.addr)
		}
	}
	return out, nil
}

// Contains reports whether key maps to addr.
func (x *bucketIndex) Contains(key string, addr int64) (bool, error) {
	addrs, err := x.Locate(key)
	if err != nil {
		return false, err
	}
	for _, a := range addrs {
		if a == addr {
			return true, nil
		}
	}
	return false, nil
}

// Delete removes the mapping from key to addr.
func (x *bucketIndex) Delete(key string, addr int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return err
	}
	if err := checkKey(key); err != nil {
		return err
	}
	fp := fingerprint(key)
	b := x.bucketOf(fp)
	subs, err := x.readBucket(b)
	if err != nil {
		return err
	}
	for i, s := range subs {
		if s.fp != fp || s.addr != addr {
			continue
		}
		subs = append(subs[:i], subs[i+1:]...)
		if err := x.writeBucket(b, subs); err != nil {
			return err
		}
		x.entries--
		if err := x.writeCounters(); err != nil {
			return err
		}
		operationsMetric.WithLabelValues(x.label, "delete").Inc()
		return nil
	}
	return fmt.Errorf("%s: %q does not map to address %d: %w", x.kind, key, addr, ErrNotExist)
}

// Resize rewrites the file with a new bucket count and bucket capacity.
// Changing the bucket count, or lowering the capacity, is refused while
// the index holds entries.
func (x *bucketIndex) Resize(slots int64, entriesPerSlot int) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return err
	}
	return x.resizeLocked(slots, entriesPerSlot)
}

func (x *bucketIndex) resizeLocked(slots int64, perSlot int) error {
	if slots <= 0 || perSlot <= 0 {
		return fmt.Errorf("%s parameters must be positive: %w", x.kind, ErrInvalid)
	}
	if x.entries > 0 {
		if slots != x.slots {
			return &ShrinkError{Index: x.kind, Field: "slots", From: x.slots, To: slots}
		}
		if perSlot < x.perSlot() {
			return &ShrinkError{Index: x.kind, Field: "entries per slot", From: int64(x.perSlot()), To: int64(perSlot)}
		}
	}
	if slots == x.slots && perSlot == x.perSlot() {
		return nil
	}

	// An empty index is simply recreated, which also covers fewer buckets.
	params := []int32{fingerprintLen, int32(perSlot)}
	if x.entries == 0 {
		return x.rewrite(params, bucketSlotSize(params), slots, func(_, _ []byte) error { return nil }, zeroBlank)
	}
	oldWidth := bucketSlotSize(x.params)
	return x.rewrite(params, bucketSlotSize(params), slots, func(old, buf []byte) error {
		copy(buf, old[:oldWidth])
		return nil
	}, zeroBlank)
}

// Clear empties every bucket. Bucket count and capacity are kept.
func (x *bucketIndex) Clear() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return err
	}
	return x.reset(zeroBlank)
}
