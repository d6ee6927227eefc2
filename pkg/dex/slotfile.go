package dex

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// slotFile wraps the single open file handle behind an index. All offsets
// are absolute; callers compute them from the header size and slot width.
type slotFile struct {
	kind     string
	path     string
	file     *os.File
	readOnly bool
}

// openSlotFile opens (creating if needed) the index file name inside dir.
// The returned bool reports whether the file holds no bytes yet. A
// read-only open of a missing or empty file fails with ErrInvalidState.
func openSlotFile(dir, name, kind string, readOnly bool) (*slotFile, bool, error) {
	path := filepath.Join(dir, name)

	if readOnly {
		file, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, fmt.Errorf("read only %s cannot be empty: %w", kind, ErrInvalidState)
		}
		if err != nil {
			return nil, false, fmt.Errorf("opening %s %s: %w", kind, path, err)
		}
		info, err := file.Stat()
		if err != nil {
			file.Close()
			return nil, false, fmt.Errorf("stat %s %s: %w", kind, path, err)
		}
		if info.Size() == 0 {
			file.Close()
			return nil, false, fmt.Errorf("read only %s cannot be empty: %w", kind, ErrInvalidState)
		}
		return &slotFile{kind: kind, path: path, file: file, readOnly: true}, false, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, false, fmt.Errorf("creating index directory %s: %w", dir, err)
	}
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, false, fmt.Errorf("opening %s %s: %w", kind, path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, false, fmt.Errorf("stat %s %s: %w", kind, path, err)
	}
	return &slotFile{kind: kind, path: path, file: file}, info.Size() == 0, nil
}

func (f *slotFile) readAt(buf []byte, off int64) error {
	n, err := f.file.ReadAt(buf, off)
	if n == len(buf) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("reading %s at offset %d: %w", f.kind, off, err)
}

func (f *slotFile) writeAt(buf []byte, off int64) error {
	if _, err := f.file.WriteAt(buf, off); err != nil {
		return fmt.Errorf("writing %s at offset %d: %w", f.kind, off, err)
	}
	return nil
}

// body returns a buffered sequential reader over n bytes starting at off.
func (f *slotFile) body(off, n int64) *bufio.Reader {
	return bufio.NewReaderSize(io.NewSectionReader(f.file, off, n), 64*1024)
}

func (f *slotFile) sync() error {
	if f.readOnly {
		return nil
	}
	if err := f.file.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", f.kind, err)
	}
	return nil
}

func (f *slotFile) close() error {
	return f.file.Close()
}

// siblingPath names the file a resize writes before the swap, for example
// uri_resized.idx next to uri.idx.
func (f *slotFile) siblingPath() string {
	ext := filepath.Ext(f.path)
	return strings.TrimSuffix(f.path, ext) + resizedSuffix + ext
}

// replace writes a complete new generation of the file through fill and
// atomically swaps it into place. The rename is the only commit point: on
// any earlier failure the sibling is removed and the original file stays
// open and untouched.
func (f *slotFile) replace(fill func(w io.Writer) error) error {
	tmpPath := f.siblingPath()
	tmp, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating resized %s %s: %w", f.kind, tmpPath, err)
	}

	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	w := bufio.NewWriterSize(tmp, 64*1024)
	if err := fill(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing resized %s: %w", f.kind, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing resized %s: %w", f.kind, err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("renaming resized %s to %s: %w", f.kind, f.path, err)
	}
	success = true

	// The renamed sibling is the live file now; keep its handle.
	f.file.Close()
	f.file = tmp

	// Sync the parent directory so the rename survives a power loss.
	if dir, err := os.Open(filepath.Dir(f.path)); err == nil {
		dir.Sync()
		dir.Close()
	}
	return nil
}
