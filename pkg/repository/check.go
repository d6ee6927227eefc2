package repository

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jlrickert/repodex/pkg/dex"
)

// Report lists the inconsistencies Check found between the index files.
type Report struct {
	Resources      int64
	Revisions      int64
	IndexVersion   int
	PendingJournal bool
	Problems       []string
}

// OK reports whether the index is consistent.
func (r Report) OK() bool {
	return len(r.Problems) == 0 && !r.PendingJournal
}

func (r *Report) addf(format string, args ...any) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
}

// Check compares the five index files against each other without
// changing them.
func (x *Index) Check(ctx context.Context) (Report, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkOpen(); err != nil {
		return Report{}, err
	}

	r := Report{
		Resources:      x.uris.Entries(),
		Revisions:      x.versions.ValueCount(),
		IndexVersion:   x.IndexVersion(),
		PendingJournal: x.journal.pending(),
	}
	if r.IndexVersion < 0 {
		r.addf("index files carry different format versions")
	}

	var withPath int64
	err := x.uris.Each(func(addr int64, rec dex.URIRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ok, err := x.ids.Contains(rec.ID, addr); err != nil {
			return err
		} else if !ok {
			r.addf("address %d: identifier %s missing from %s", addr, rec.ID, dex.IDIndexName)
		}
		if rec.Path != "" {
			withPath++
			if ok, err := x.paths.Contains(rec.Path, addr); err != nil {
				return err
			} else if !ok {
				r.addf("address %d: path %s missing from %s", addr, rec.Path, dex.PathIndexName)
			}
		}
		if err := checkValueRecord(&r, dex.VersionIndexName, addr, rec.ID, x.versions.ID, x.versions.HasAny); err != nil {
			return err
		}
		return checkValueRecord(&r, dex.LanguageIndexName, addr, rec.ID, x.langs.ID, nil)
	})
	if err != nil {
		return r, err
	}

	counts := []struct {
		name      string
		got, want int64
	}{
		{dex.IDIndexName, x.ids.Entries(), r.Resources},
		{dex.PathIndexName, x.paths.Entries(), withPath},
		{dex.VersionIndexName, x.versions.Entries(), r.Resources},
		{dex.LanguageIndexName, x.langs.Entries(), r.Resources},
	}
	for _, c := range counts {
		if c.got != c.want {
			r.addf("%s holds %d entries, expected %d", c.name, c.got, c.want)
		}
	}
	return r, nil
}

func checkValueRecord(
	r *Report,
	name string,
	addr int64,
	id string,
	idAt func(int64) (string, error),
	hasAny func(int64) (bool, error),
) error {
	got, err := idAt(addr)
	if dex.IsNotFound(err) {
		r.addf("address %d: no record in %s", addr, name)
		return nil
	}
	if err != nil {
		return err
	}
	if got != id {
		r.addf("address %d: %s holds identifier %s, expected %s", addr, name, got, id)
		return nil
	}
	if hasAny == nil {
		return nil
	}
	ok, err := hasAny(addr)
	if err != nil {
		return err
	}
	if !ok {
		r.addf("address %d: empty record in %s", addr, name)
	}
	return nil
}

// Rebuild regenerates the id and path indexes from the uri index, repairs
// missing or stray version and language records and stamps every file
// with the current format version.
func (x *Index) Rebuild(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return err
	}
	start := time.Now()

	for _, f := range x.files() {
		if err := f.Upgrade(); err != nil {
			return err
		}
	}
	if err := x.ids.Clear(); err != nil {
		return err
	}
	if err := x.paths.Clear(); err != nil {
		return err
	}

	live := map[int64]string{}
	repaired := 0
	err := x.uris.Each(func(addr int64, rec dex.URIRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		live[addr] = rec.ID
		if err := x.ids.Add(rec.ID, addr); err != nil {
			return err
		}
		if rec.Path != "" {
			if err := x.paths.Add(rec.Path, addr); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for addr, id := range live {
		if ok, err := x.repairValues(addr, id, dex.VersionIndexName, x.versions.ID, x.versions.Delete, func() error {
			return x.versions.AddAt(addr, id, Live)
		}); err != nil {
			return err
		} else if ok {
			repaired++
		}
		if ok, err := x.repairValues(addr, id, dex.LanguageIndexName, x.langs.ID, x.langs.Delete, func() error {
			return x.langs.AddAt(addr, id)
		}); err != nil {
			return err
		} else if ok {
			repaired++
		}
	}

	stray, err := x.dropStray(live)
	if err != nil {
		return err
	}
	repaired += stray

	if err := x.syncFiles(); err != nil {
		return err
	}
	x.lg.Info("rebuilt repository index",
		slog.Int("resources", len(live)),
		slog.Int("repaired", repaired),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// repairValues makes sure the value record at addr belongs to id. A
// missing record is created by add; a foreign one is replaced.
func (x *Index) repairValues(
	addr int64,
	id, name string,
	idAt func(int64) (string, error),
	drop func(int64) error,
	add func() error,
) (bool, error) {
	got, err := idAt(addr)
	switch {
	case err == nil && got == id:
		return false, nil
	case err == nil:
		if err := drop(addr); err != nil {
			return false, err
		}
	case !dex.IsNotFound(err):
		return false, err
	}
	x.lg.Warn("repairing value record", slog.String("index", name), slog.Int64("address", addr))
	return true, add()
}

// dropStray removes version and language records at addresses the uri
// index does not hold.
func (x *Index) dropStray(live map[int64]string) (int, error) {
	dropped := 0
	for _, v := range []struct {
		name  string
		slots int64
		idAt  func(int64) (string, error)
		drop  func(int64) error
	}{
		{dex.VersionIndexName, x.versions.Slots(), x.versions.ID, x.versions.Delete},
		{dex.LanguageIndexName, x.langs.Slots(), x.langs.ID, x.langs.Delete},
	} {
		for addr := int64(0); addr < v.slots; addr++ {
			if _, ok := live[addr]; ok {
				continue
			}
			_, err := v.idAt(addr)
			if dex.IsNotFound(err) {
				continue
			}
			if err != nil {
				return dropped, err
			}
			x.lg.Warn("dropping stray value record", slog.String("index", v.name), slog.Int64("address", addr))
			if err := v.drop(addr); err != nil {
				return dropped, err
			}
			dropped++
		}
	}
	return dropped, nil
}

// FileStats describes one index file.
type FileStats struct {
	Name         string
	Path         string
	Size         int64
	Slots        int64
	Entries      int64
	FreeSlots    int64
	IndexVersion int
	LoadFactor   float64
}

// Stats summarises the index.
type Stats struct {
	Resources    int64
	Revisions    int64
	IndexVersion int
	Files        []FileStats
}

// Stats reports sizes and fill levels of every index file.
func (x *Index) Stats() (Stats, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkOpen(); err != nil {
		return Stats{}, err
	}

	loads := []float64{
		uriLoadFactor(x.uris),
		x.ids.LoadFactor(),
		x.paths.LoadFactor(),
		x.versions.LoadFactor(),
		x.langs.LoadFactor(),
	}
	s := Stats{
		Resources:    x.uris.Entries(),
		Revisions:    x.versions.ValueCount(),
		IndexVersion: x.IndexVersion(),
	}
	for i, f := range x.files() {
		s.Files = append(s.Files, FileStats{
			Name:         filepath.Base(f.FilePath()),
			Path:         f.FilePath(),
			Size:         f.Size(),
			Slots:        f.Slots(),
			Entries:      f.Entries(),
			FreeSlots:    f.FreeSlots(),
			IndexVersion: f.IndexVersion(),
			LoadFactor:   loads[i],
		})
	}
	return s, nil
}

func uriLoadFactor(x *dex.URIIndex) float64 {
	slots := x.Slots()
	if slots == 0 {
		return 0
	}
	return float64(x.Entries()) / float64(slots)
}
