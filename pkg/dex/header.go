package dex

import (
	"encoding/binary"
	"fmt"
)

// header is the fixed preamble of every index file:
//
//	version  int32
//	params   int32 × n   (widths or per-record capacities, kind specific)
//	slots    int64
//	entries  int64
//
// All fields are big-endian.
type header struct {
	version int32
	params  []int32
	slots   int64
	entries int64
}

func headerSize(nparams int) int64 {
	return int64(4 + 4*nparams + 16)
}

func (h header) size() int64 {
	return headerSize(len(h.params))
}

func (h header) encode() []byte {
	buf := make([]byte, h.size())
	binary.BigEndian.PutUint32(buf[0:4], uint32(h.version))
	off := 4
	for _, p := range h.params {
		binary.BigEndian.PutUint32(buf[off:off+4], uint32(p))
		off += 4
	}
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(h.slots))
	binary.BigEndian.PutUint64(buf[off+8:off+16], uint64(h.entries))
	return buf
}

func decodeHeader(buf []byte, nparams int) (header, error) {
	if int64(len(buf)) < headerSize(nparams) {
		return header{}, fmt.Errorf("short header of %d bytes: %w", len(buf), ErrInvalidState)
	}
	h := header{
		version: int32(binary.BigEndian.Uint32(buf[0:4])),
		params:  make([]int32, nparams),
	}
	off := 4
	for i := range h.params {
		h.params[i] = int32(binary.BigEndian.Uint32(buf[off : off+4]))
		if h.params[i] <= 0 {
			return header{}, fmt.Errorf("header parameter %d is %d: %w", i, h.params[i], ErrInvalidState)
		}
		off += 4
	}
	h.slots = int64(binary.BigEndian.Uint64(buf[off : off+8]))
	h.entries = int64(binary.BigEndian.Uint64(buf[off+8 : off+16]))
	if h.slots < 0 || h.entries < 0 || h.entries > h.slots*maxPerSlot(h) {
		return header{}, fmt.Errorf("header counters slots=%d entries=%d: %w", h.slots, h.entries, ErrInvalidState)
	}
	return h, nil
}

// maxPerSlot bounds entries per slot for the sanity check in decodeHeader.
// Bucket files store many entries per slot; the last parameter is their
// capacity. Every other kind holds at most one record per slot.
func maxPerSlot(h header) int64 {
	if len(h.params) == 0 {
		return 1
	}
	return max(1, int64(h.params[len(h.params)-1]))
}

func (f *slotFile) readHeader(nparams int) (header, error) {
	buf := make([]byte, headerSize(nparams))
	if err := f.readAt(buf, 0); err != nil {
		return header{}, fmt.Errorf("%s header: %w: %w", f.kind, err, ErrInvalidState)
	}
	h, err := decodeHeader(buf, nparams)
	if err != nil {
		return header{}, fmt.Errorf("%s header: %w", f.kind, err)
	}
	return h, nil
}

func (f *slotFile) writeHeader(h header) error {
	return f.writeAt(h.encode(), 0)
}

// writeCounters rewrites only the trailing slots and entries fields.
func (f *slotFile) writeCounters(nparams int, slots, entries int64) error {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[0:8], uint64(slots))
	binary.BigEndian.PutUint64(buf[8:16], uint64(entries))
	return f.writeAt(buf[:], headerSize(nparams)-16)
}
