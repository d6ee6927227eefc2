package dex

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// URIRecord is the decoded content of one uri index slot.
type URIRecord struct {
	ID   string
	Type string
	Path string
}

// URIIndex stores one record per resource: a fixed width identifier, a
// zero terminated type and a newline terminated path. The slot address of
// a record is the address shared by every other index of the repository.
//
//	header  version | idLength | typeLength | pathLength | slots | entries
//	slot    id[idLength] | type[typeLength] | path[pathLength]
//
// Type and path widths double on demand when a value does not fit.
type URIIndex struct {
	*slotTable
	cache *lru.Cache[int64, URIRecord]
}

const uriParams = 3

func uriSlotSize(params []int32) int {
	return int(params[0]) + int(params[1]) + int(params[2])
}

// OpenURIIndex opens or creates uri.idx inside dir. Type and path widths
// requested through opts larger than the stored ones grow the file;
// smaller ones are ignored once the file holds entries. The identifier
// width of a file holding entries never changes.
func OpenURIIndex(ctx context.Context, dir string, opts ...Option) (*URIIndex, error) {
	o := buildOptions(ctx, opts)
	f, empty, err := openSlotFile(dir, URIIndexName, "uri index", o.ReadOnly)
	if err != nil {
		return nil, err
	}
	idx := &URIIndex{slotTable: newSlotTable("uri", f, o.Logger, true)}
	if o.RecordCache > 0 {
		idx.cache, _ = lru.New[int64, URIRecord](o.RecordCache)
	}

	want := []int32{int32(o.IDLength), int32(o.TypeLength), int32(o.PathLength)}
	if empty {
		err = idx.create(want, uriSlotSize(want), 0, tombstoneBlank)
	} else {
		err = idx.openExisting(want)
	}
	if err != nil {
		f.close()
		return nil, err
	}
	return idx, nil
}

func (x *URIIndex) openExisting(want []int32) error {
	if err := x.load(uriParams, uriSlotSize); err != nil {
		return err
	}
	if err := x.scanTombstones(); err != nil {
		return err
	}
	if x.f.readOnly {
		return nil
	}

	target := make([]int32, uriParams)
	for i := range want {
		target[i] = x.params[i]
		if x.entries == 0 || (i > 0 && want[i] > x.params[i]) {
			target[i] = want[i]
		}
	}
	if x.entries > 0 && want[0] != x.params[0] {
		x.lg.Warn("keeping stored identifier length",
			slog.String("index", x.kind),
			slog.Int("stored", x.idLength()), slog.Int("requested", int(want[0])))
	}
	if slices.Equal(target, x.params) {
		return nil
	}
	return x.resizeLocked(int(target[0]), int(target[1]), int(target[2]))
}

func (x *URIIndex) scanTombstones() error {
	return x.scan(func(entry int64, slot []byte) error {
		if slot[0] == tombstone {
			x.free.push(entry)
		}
		return nil
	})
}

func (x *URIIndex) idLength() int   { return int(x.params[0]) }
func (x *URIIndex) typeLength() int { return int(x.params[1]) }
func (x *URIIndex) pathLength() int { return int(x.params[2]) }

// IDLength returns the fixed identifier width.
func (x *URIIndex) IDLength() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.idLength()
}

// TypeLength returns the current width of the type field.
func (x *URIIndex) TypeLength() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.typeLength()
}

// PathLength returns the current width of the path field.
func (x *URIIndex) PathLength() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.pathLength()
}

// EntrySize returns the width of one slot in bytes.
func (x *URIIndex) EntrySize() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.slotSize
}

func (x *URIIndex) validate(id, typ, path string) error {
	if len(id) != x.idLength() {
		return &IdentifierLengthError{Want: x.idLength(), Got: len(id)}
	}
	if strings.IndexByte(id, tombstone) == 0 {
		return fmt.Errorf("identifier %q starts with a newline: %w", id, ErrInvalid)
	}
	return validateFields(typ, path)
}

func validateFields(typ, path string) error {
	if typ == "" {
		return fmt.Errorf("resource type is required: %w", ErrInvalid)
	}
	if strings.IndexByte(typ, 0) >= 0 {
		return fmt.Errorf("resource type %q contains a zero byte: %w", typ, ErrInvalid)
	}
	if strings.IndexByte(path, '\n') >= 0 {
		return fmt.Errorf("path %q contains a newline: %w", path, ErrInvalid)
	}
	return nil
}

// growWidth doubles width until a value of need bytes plus its delimiter
// fits.
func growWidth(width, need int) int {
	if width < 1 {
		width = 1
	}
	for width <= need {
		width *= 2
	}
	return width
}

// ensureFits grows the type and path fields so that typ and path fit with
// their delimiters.
func (x *URIIndex) ensureFits(typ, path string) error {
	typeLen := growWidth(x.typeLength(), len(typ))
	pathLen := growWidth(x.pathLength(), len(path))
	if typeLen == x.typeLength() && pathLen == x.pathLength() {
		return nil
	}
	x.lg.Debug("growing uri fields",
		slog.Int("type_from", x.typeLength()), slog.Int("type_to", typeLen),
		slog.Int("path_from", x.pathLength()), slog.Int("path_to", pathLen))
	return x.resizeLocked(x.idLength(), typeLen, pathLen)
}

func (x *URIIndex) encode(rec URIRecord) []byte {
	buf := make([]byte, x.slotSize)
	copy(buf, rec.ID)
	x.encodeFields(buf, rec.Type, rec.Path)
	return buf
}

func (x *URIIndex) encodeFields(buf []byte, typ, path string) {
	typeField := buf[x.idLength() : x.idLength()+x.typeLength()]
	pathField := buf[x.idLength()+x.typeLength():]
	clear(typeField)
	clear(pathField)
	copy(typeField, typ)
	n := copy(pathField, path)
	pathField[n] = '\n'
}

func (x *URIIndex) decode(entry int64, slot []byte) (URIRecord, error) {
	idLen, typeLen := x.idLength(), x.typeLength()
	typeField := slot[idLen : idLen+typeLen]
	pathField := slot[idLen+typeLen:]

	t := bytes.IndexByte(typeField, 0)
	if t < 0 {
		return URIRecord{}, &CorruptSlotError{Index: x.kind, Entry: entry, Reason: "type is not zero terminated"}
	}
	p := bytes.IndexByte(pathField, '\n')
	if p < 0 {
		return URIRecord{}, &CorruptSlotError{Index: x.kind, Entry: entry, Reason: "path is not newline terminated"}
	}
	return URIRecord{
		ID:   string(slot[:idLen]),
		Type: string(typeField[:t]),
		Path: string(pathField[:p]),
	}, nil
}

// Add stores a new record in the lowest free slot, or appends one, and
// returns its address.
func (x *URIIndex) Add(id, typ, path string) (int64, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return 0, err
	}
	if err := x.validate(id, typ, path); err != nil {
		return 0, err
	}
	if err := x.ensureFits(typ, path); err != nil {
		return 0, err
	}

	entry, reused := x.allocate()
	rec := URIRecord{ID: id, Type: typ, Path: path}
	if err := x.place(entry, x.encode(rec), reused); err != nil {
		return 0, err
	}
	x.remember(entry, rec)
	operationsMetric.WithLabelValues(x.label, "add").Inc()
	return entry, nil
}

// NextAddress returns the address the next Add would use.
func (x *URIIndex) NextAddress() int64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	if entry, ok := x.free.min(); ok {
		return entry
	}
	return x.slots
}

// AddAt stores a record at a fixed address. Writing the same identifier
// onto an address it already occupies overwrites type and path, so
// replaying an interrupted add is harmless.
func (x *URIIndex) AddAt(entry int64, id, typ, path string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return err
	}
	if err := x.validate(id, typ, path); err != nil {
		return err
	}
	if err := x.ensureFits(typ, path); err != nil {
		return err
	}

	free, err := x.claim(entry)
	if err != nil {
		return err
	}
	rec := URIRecord{ID: id, Type: typ, Path: path}
	if !free {
		current, err := x.record(entry)
		if err != nil {
			return err
		}
		if current.ID != id {
			return fmt.Errorf("uri index: address %d holds %s, not %s: %w", entry, current.ID, id, ErrInvalidState)
		}
		if err := x.writeSlot(entry, x.encode(rec)); err != nil {
			return err
		}
		x.remember(entry, rec)
		return nil
	}
	if err := x.place(entry, x.encode(rec), true); err != nil {
		return err
	}
	x.remember(entry, rec)
	operationsMetric.WithLabelValues(x.label, "add").Inc()
	return nil
}

// Update rewrites type and path of a live record, keeping its identifier.
func (x *URIIndex) Update(entry int64, typ, path string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return err
	}
	if err := validateFields(typ, path); err != nil {
		return err
	}
	current, err := x.record(entry)
	if err != nil {
		return err
	}
	if err := x.ensureFits(typ, path); err != nil {
		return err
	}
	rec := URIRecord{ID: current.ID, Type: typ, Path: path}
	if err := x.writeSlot(entry, x.encode(rec)); err != nil {
		return err
	}
	x.remember(entry, rec)
	operationsMetric.WithLabelValues(x.label, "update").Inc()
	return nil
}

// Delete tombstones the record at entry.
func (x *URIIndex) Delete(entry int64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return err
	}
	if _, err := x.readLive(entry); err != nil {
		return err
	}
	if x.cache != nil {
		x.cache.Remove(entry)
	}
	if err := x.release(entry); err != nil {
		return err
	}
	operationsMetric.WithLabelValues(x.label, "delete").Inc()
	return nil
}

func (x *URIIndex) remember(entry int64, rec URIRecord) {
	if x.cache != nil {
		x.cache.Add(entry, rec)
	}
}

func (x *URIIndex) record(entry int64) (URIRecord, error) {
	if err := x.checkOpen(); err != nil {
		return URIRecord{}, err
	}
	if x.cache != nil {
		if rec, ok := x.cache.Get(entry); ok {
			return rec, nil
		}
	}
	slot, err := x.readLive(entry)
	if err != nil {
		return URIRecord{}, err
	}
	rec, err := x.decode(entry, slot)
	if err != nil {
		return URIRecord{}, err
	}
	x.remember(entry, rec)
	return rec, nil
}

// Record returns the full record stored at entry.
func (x *URIIndex) Record(entry int64) (URIRecord, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.record(entry)
}

func (x *URIIndex) ID(entry int64) (string, error) {
	rec, err := x.Record(entry)
	return rec.ID, err
}

func (x *URIIndex) Type(entry int64) (string, error) {
	rec, err := x.Record(entry)
	return rec.Type, err
}

func (x *URIIndex) Path(entry int64) (string, error) {
	rec, err := x.Record(entry)
	return rec.Path, err
}

// Each calls fn for every live record in address order. Returning an
// error from fn stops the walk.
func (x *URIIndex) Each(fn func(entry int64, rec URIRecord) error) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkOpen(); err != nil {
		return err
	}
	return x.scan(func(entry int64, slot []byte) error {
		if slot[0] == tombstone {
			return nil
		}
		rec, err := x.decode(entry, slot)
		if err != nil {
			return err
		}
		return fn(entry, rec)
	})
}

// Resize rewrites the file with new field widths. Shrinking any width or
// changing the identifier width is refused while the index holds entries.
func (x *URIIndex) Resize(idLength, typeLength, pathLength int) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return err
	}
	return x.resizeLocked(idLength, typeLength, pathLength)
}

func (x *URIIndex) resizeLocked(idLength, typeLength, pathLength int) error {
	if idLength <= 0 || typeLength <= 0 || pathLength <= 0 {
		return fmt.Errorf("uri index widths must be positive: %w", ErrInvalid)
	}
	if x.entries > 0 {
		if idLength != x.idLength() {
			return &ShrinkError{Index: x.kind, Field: "identifier length", From: int64(x.idLength()), To: int64(idLength)}
		}
		for _, c := range []struct {
			field    string
			from, to int
		}{
			{"type length", x.typeLength(), typeLength},
			{"path length", x.pathLength(), pathLength},
		} {
			if c.to < c.from {
				return &ShrinkError{Index: x.kind, Field: c.field, From: int64(c.from), To: int64(c.to)}
			}
		}
	}
	if idLength == x.idLength() && typeLength == x.typeLength() && pathLength == x.pathLength() {
		return nil
	}

	oldID, oldType := x.idLength(), x.typeLength()
	params := []int32{int32(idLength), int32(typeLength), int32(pathLength)}
	err := x.rewrite(params, uriSlotSize(params), x.slots, func(old, buf []byte) error {
		copy(buf[:idLength], old[:oldID])
		copy(buf[idLength:idLength+typeLength], old[oldID:oldID+oldType])
		copy(buf[idLength+typeLength:], old[oldID+oldType:])
		return nil
	}, tombstoneBlank)
	if err != nil {
		return err
	}
	if x.cache != nil {
		x.cache.Purge()
	}
	return nil
}

// Clear tombstones every slot. The slot count and field widths are kept.
func (x *URIIndex) Clear() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return err
	}
	if x.cache != nil {
		x.cache.Purge()
	}
	return x.reset(tombstoneBlank)
}
