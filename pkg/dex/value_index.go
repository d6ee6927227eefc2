package dex

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"slices"
)

// valueIndex is the layout shared by the version and language indexes: one
// record per resource address holding a bounded, ordered set of 8 byte
// values.
//
//	header  version | idLength | valuesPerEntry | slots | entries
//	slot    id[idLength] | count int32 | value[valuesPerEntry] × 8
//
// The per-record capacity doubles when an append finds a record full.
type valueIndex struct {
	*slotTable

	// values counts occupied value cells over all live records.
	values int64
}

const valueParams = 2

func valueSlotSize(params []int32) int {
	return int(params[0]) + countWidth + int(params[1])*valueWidth
}

func openValueIndex(ctx context.Context, dir, name, label string, perEntry int, opts []Option) (*valueIndex, error) {
	o := buildOptions(ctx, opts)
	if o.ValuesPerEntry <= 0 {
		o.ValuesPerEntry = perEntry
	}
	f, empty, err := openSlotFile(dir, name, label+" index", o.ReadOnly)
	if err != nil {
		return nil, err
	}
	idx := &valueIndex{slotTable: newSlotTable(label, f, o.Logger, true)}

	want := []int32{int32(o.IDLength), int32(o.ValuesPerEntry)}
	if empty {
		err = idx.create(want, valueSlotSize(want), 0, tombstoneBlank)
	} else {
		err = idx.openExisting(want)
	}
	if err != nil {
		f.close()
		return nil, err
	}
	return idx, nil
}

func (x *valueIndex) openExisting(want []int32) error {
	if err := x.load(valueParams, valueSlotSize); err != nil {
		return err
	}
	err := x.scan(func(entry int64, slot []byte) error {
		if slot[0] == tombstone {
			x.free.push(entry)
			return nil
		}
		n, err := x.count(entry, slot)
		if err != nil {
			return err
		}
		x.values += int64(n)
		return nil
	})
	if err != nil {
		return err
	}
	if x.f.readOnly {
		return nil
	}

	idLen, perEntry := x.params[0], x.params[1]
	if x.entries == 0 {
		idLen = want[0]
	} else if want[0] != idLen {
		x.lg.Warn("keeping stored identifier length",
			slog.String("index", x.kind),
			slog.Int("stored", int(idLen)), slog.Int("requested", int(want[0])))
	}
	if want[1] > perEntry || x.entries == 0 {
		perEntry = want[1]
	}
	if idLen == x.params[0] && perEntry == x.params[1] {
		return nil
	}
	return x.resizeLocked(int(idLen), int(perEntry))
}

func (x *valueIndex) idLength() int { return int(x.params[0]) }
func (x *valueIndex) perEntry() int { return int(x.params[1]) }

// IDLength returns the fixed identifier width.
func (x *valueIndex) IDLength() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.idLength()
}

// ValuesPerEntry returns the current per-record capacity.
func (x *valueIndex) ValuesPerEntry() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.perEntry()
}

// ValueCount returns the number of values stored over all records.
func (x *valueIndex) ValueCount() int64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.values
}

// LoadFactor returns occupied value cells divided by all value cells.
func (x *valueIndex) LoadFactor() float64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	cells := x.slots * int64(x.perEntry())
	if cells == 0 {
		return 0
	}
	return float64(x.values) / float64(cells)
}

func (x *valueIndex) count(entry int64, slot []byte) (int, error) {
	off := x.idLength()
	n := int(int32(binary.BigEndian.Uint32(slot[off : off+countWidth])))
	if n < 0 || n > x.perEntry() {
		return 0, &CorruptSlotError{
			Index:  x.kind,
			Entry:  entry,
			Reason: fmt.Sprintf("value count %d outside 0..%d", n, x.perEntry()),
		}
	}
	return n, nil
}

func (x *valueIndex) decodeValues(entry int64, slot []byte) ([]uint64, error) {
	n, err := x.count(entry, slot)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, n)
	off := x.idLength() + countWidth
	for i := range out {
		out[i] = binary.BigEndian.Uint64(slot[off : off+valueWidth])
		off += valueWidth
	}
	return out, nil
}

// encodeValues writes count and values into slot, zeroing unused cells.
func (x *valueIndex) encodeValues(slot []byte, vals []uint64) {
	off := x.idLength()
	binary.BigEndian.PutUint32(slot[off:off+countWidth], uint32(len(vals)))
	cells := slot[off+countWidth:]
	clear(cells)
	for i, v := range vals {
		binary.BigEndian.PutUint64(cells[i*valueWidth:(i+1)*valueWidth], v)
	}
}

func (x *valueIndex) checkID(id string) error {
	if len(id) != x.idLength() {
		return &IdentifierLengthError{Want: x.idLength(), Got: len(id)}
	}
	if id[0] == tombstone {
		return fmt.Errorf("identifier %q starts with a newline: %w", id, ErrInvalid)
	}
	return nil
}

// ensureCapacity doubles the per-record capacity until n values fit.
func (x *valueIndex) ensureCapacity(n int) error {
	perEntry := x.perEntry()
	for perEntry < n {
		perEntry *= 2
	}
	if perEntry == x.perEntry() {
		return nil
	}
	return x.resizeLocked(x.idLength(), perEntry)
}

// insert creates a record for id holding vals. A negative entry allocates
// the lowest free slot. A fixed entry already holding id receives the
// values it is missing, which keeps replays idempotent.
func (x *valueIndex) insert(entry int64, id string, vals []uint64) (int64, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return 0, err
	}
	if err := x.checkID(id); err != nil {
		return 0, err
	}
	vals = dedupe(vals)
	if err := x.ensureCapacity(len(vals)); err != nil {
		return 0, err
	}

	var reused bool
	if entry < 0 {
		entry, reused = x.allocate()
	} else {
		free, err := x.claim(entry)
		if err != nil {
			return 0, err
		}
		if !free {
			return entry, x.mergeLocked(entry, id, vals)
		}
		reused = true
	}

	slot := make([]byte, x.slotSize)
	copy(slot, id)
	x.encodeValues(slot, vals)
	if err := x.place(entry, slot, reused); err != nil {
		return 0, err
	}
	x.values += int64(len(vals))
	operationsMetric.WithLabelValues(x.label, "add").Inc()
	return entry, nil
}

func (x *valueIndex) mergeLocked(entry int64, id string, vals []uint64) error {
	slot, err := x.readLive(entry)
	if err != nil {
		return err
	}
	if current := string(slot[:x.idLength()]); current != id {
		return fmt.Errorf("%s: address %d holds %s, not %s: %w", x.kind, entry, current, id, ErrInvalidState)
	}
	for _, v := range vals {
		if err := x.appendLocked(entry, v); err != nil {
			return err
		}
	}
	return nil
}

// appendValue adds v to the record at entry. Appending a value the record
// already holds does nothing.
func (x *valueIndex) appendValue(entry int64, v uint64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return err
	}
	return x.appendLocked(entry, v)
}

func (x *valueIndex) appendLocked(entry int64, v uint64) error {
	slot, err := x.readLive(entry)
	if err != nil {
		return err
	}
	vals, err := x.decodeValues(entry, slot)
	if err != nil {
		return err
	}
	if slices.Contains(vals, v) {
		return nil
	}
	if len(vals) >= x.perEntry() {
		if err := x.ensureCapacity(len(vals) + 1); err != nil {
			return err
		}
		if slot, err = x.readLive(entry); err != nil {
			return err
		}
	}
	x.encodeValues(slot, append(vals, v))
	if err := x.writeSlot(entry, slot); err != nil {
		return err
	}
	x.values++
	operationsMetric.WithLabelValues(x.label, "append").Inc()
	return nil
}

// setValues replaces the values of the record at entry.
func (x *valueIndex) setValues(entry int64, vals []uint64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return err
	}
	vals = dedupe(vals)
	slot, err := x.readLive(entry)
	if err != nil {
		return err
	}
	old, err := x.count(entry, slot)
	if err != nil {
		return err
	}
	if len(vals) > x.perEntry() {
		if err := x.ensureCapacity(len(vals)); err != nil {
			return err
		}
		if slot, err = x.readLive(entry); err != nil {
			return err
		}
	}
	x.encodeValues(slot, vals)
	if err := x.writeSlot(entry, slot); err != nil {
		return err
	}
	x.values += int64(len(vals) - old)
	operationsMetric.WithLabelValues(x.label, "set").Inc()
	return nil
}

// Delete tombstones the whole record at entry.
func (x *valueIndex) Delete(entry int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return err
	}
	return x.deleteLocked(entry)
}

func (x *valueIndex) deleteLocked(entry int64) error {
	slot, err := x.readLive(entry)
	if err != nil {
		return err
	}
	n, err := x.count(entry, slot)
	if err != nil {
		return err
	}
	if err := x.release(entry); err != nil {
		return err
	}
	x.values -= int64(n)
	operationsMetric.WithLabelValues(x.label, "delete").Inc()
	return nil
}

// deleteValue removes v from the record at entry, keeping the remaining
// values in order. Removing the last value removes the record when drop
// is set.
func (x *valueIndex) deleteValue(entry int64, v uint64, drop bool) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return err
	}
	slot, err := x.readLive(entry)
	if err != nil {
		return err
	}
	vals, err := x.decodeValues(entry, slot)
	if err != nil {
		return err
	}
	i := slices.Index(vals, v)
	if i < 0 {
		return fmt.Errorf("%s: value %d not part of record %d: %w", x.kind, v, entry, ErrNotExist)
	}
	if len(vals) == 1 && drop {
		return x.deleteLocked(entry)
	}
	x.encodeValues(slot, slices.Delete(vals, i, i+1))
	if err := x.writeSlot(entry, slot); err != nil {
		return err
	}
	x.values--
	operationsMetric.WithLabelValues(x.label, "delete_value").Inc()
	return nil
}

func (x *valueIndex) valuesAt(entry int64) ([]uint64, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkOpen(); err != nil {
		return nil, err
	}
	slot, err := x.readLive(entry)
	if err != nil {
		return nil, err
	}
	return x.decodeValues(entry, slot)
}

// has reports whether the record at entry holds v. Missing records hold
// nothing.
func (x *valueIndex) has(entry int64, v uint64) (bool, error) {
	vals, err := x.valuesAt(entry)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return slices.Contains(vals, v), nil
}

// HasAny reports whether the record at entry holds at least one value.
func (x *valueIndex) HasAny(entry int64) (bool, error) {
	vals, err := x.valuesAt(entry)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return len(vals) > 0, nil
}

// ID returns the identifier stored with the record at entry.
func (x *valueIndex) ID(entry int64) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkOpen(); err != nil {
		return "", err
	}
	slot, err := x.readLive(entry)
	if err != nil {
		return "", err
	}
	return string(slot[:x.idLength()]), nil
}

// Resize rewrites the file with a new identifier width and per-record
// capacity. While the index holds entries the identifier width is fixed
// and the capacity may only grow.
func (x *valueIndex) Resize(idLength, valuesPerEntry int) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return err
	}
	return x.resizeLocked(idLength, valuesPerEntry)
}

func (x *valueIndex) resizeLocked(idLength, perEntry int) error {
	if idLength <= 0 || perEntry <= 0 {
		return fmt.Errorf("%s parameters must be positive: %w", x.kind, ErrInvalid)
	}
	if x.entries > 0 {
		if idLength != x.idLength() {
			return &ShrinkError{Index: x.kind, Field: "identifier length", From: int64(x.idLength()), To: int64(idLength)}
		}
		if perEntry < x.perEntry() {
			return &ShrinkError{Index: x.kind, Field: "values per entry", From: int64(x.perEntry()), To: int64(perEntry)}
		}
	}
	if idLength == x.idLength() && perEntry == x.perEntry() {
		return nil
	}

	oldID, oldCells := x.idLength(), x.perEntry()*valueWidth
	params := []int32{int32(idLength), int32(perEntry)}
	return x.rewrite(params, valueSlotSize(params), x.slots, func(old, buf []byte) error {
		copy(buf[:idLength], old[:oldID])
		copy(buf[idLength:], old[oldID:oldID+countWidth+oldCells])
		return nil
	}, tombstoneBlank)
}

// Clear tombstones every record. The slot count and capacity are kept.
func (x *valueIndex) Clear() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return err
	}
	if err := x.reset(tombstoneBlank); err != nil {
		return err
	}
	x.values = 0
	return nil
}

func dedupe(vals []uint64) []uint64 {
	out := make([]uint64, 0, len(vals))
	for _, v := range vals {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}
