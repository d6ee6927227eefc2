package repository

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jlrickert/repodex/pkg/dex"
	"github.com/jlrickert/repodex/pkg/internal"
	"github.com/jlrickert/repodex/pkg/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
)

// StructureDir holds the five index files, the journal and the lock below
// the repository index root.
const StructureDir = "structure"

// AnyVersion lists every version of a resource.
const AnyVersion int64 = -1

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	readOnly       bool
	discardJournal bool
	config         *Config
	search         SearchIndex
}

// WithReadOnly opens every index file read only. No lock is taken and a
// pending journal is left alone.
func WithReadOnly() Option {
	return func(o *openOptions) { o.readOnly = true }
}

// WithSearch attaches the full text collaborator.
func WithSearch(s SearchIndex) Option {
	return func(o *openOptions) { o.search = s }
}

// WithConfig uses cfg instead of the config file at the root.
func WithConfig(cfg Config) Option {
	return func(o *openOptions) { o.config = &cfg }
}

// WithDiscardJournal drops a journal that fails its checksum instead of
// refusing to open. The index should be checked and rebuilt afterwards.
func WithDiscardJournal() Option {
	return func(o *openOptions) { o.discardJournal = true }
}

// Index keeps the uri, id, path, version and language index files of one
// content repository consistent. Every resource occupies the same address
// in all five files.
type Index struct {
	mu sync.Mutex

	root     string
	dir      string
	cfg      Config
	lg       *slog.Logger
	readOnly bool

	uris     *dex.URIIndex
	ids      *dex.IDIndex
	paths    *dex.PathIndex
	versions *dex.VersionIndex
	langs    *dex.LanguageIndex

	search  SearchIndex
	journal *journal
	lock    *processLock

	// broken holds the error of an intent that could not be fully applied.
	// Mutations are refused until a reopen replays the journal.
	broken error
	closed bool
}

// indexFile is the part of every dex index the orchestrator manages
// uniformly.
type indexFile interface {
	Close() error
	Sync() error
	Upgrade() error
	IndexVersion() int
	Slots() int64
	Entries() int64
	FreeSlots() int64
	Size() int64
	FilePath() string
}

// Open opens (creating if needed) the index below root. Any intent left
// pending by an interrupted mutation is applied before Open returns.
func Open(ctx context.Context, root string, opts ...Option) (*Index, error) {
	o := openOptions{search: NopSearch{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	cfg := DefaultConfig()
	if o.config != nil {
		cfg = *o.config
	} else {
		loaded, err := LoadConfig(filepath.Join(root, ConfigFileName))
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	x := &Index{
		root:     root,
		dir:      filepath.Join(root, StructureDir),
		cfg:      cfg,
		lg:       log.FromContext(ctx).With(slog.String("root", root)),
		readOnly: o.readOnly || cfg.ReadOnly,
		search:   o.search,
	}
	x.journal = newJournal(x.dir)

	if !x.readOnly {
		if err := os.MkdirAll(x.dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", x.dir, err)
		}
		lock, err := acquireLock(x.dir)
		if err != nil {
			return nil, err
		}
		x.lock = lock
	}

	if err := x.openFiles(ctx); err != nil {
		x.lock.release()
		return nil, err
	}

	if x.readOnly {
		if x.journal.pending() {
			x.lg.Warn("index has a pending journal; open it writable to recover")
		}
	} else if err := x.recover(o.discardJournal); err != nil {
		x.closeFiles()
		x.lock.release()
		return nil, err
	}

	x.lg.Debug("opened repository index",
		slog.Int64("resources", x.uris.Entries()),
		slog.Bool("read_only", x.readOnly))
	return x, nil
}

func (x *Index) openFiles(ctx context.Context) error {
	with := func(extra []dex.Option) []dex.Option {
		opts := []dex.Option{dex.WithLogger(x.lg)}
		if x.readOnly {
			opts = append(opts, dex.WithReadOnly())
		}
		return append(opts, extra...)
	}

	var g errgroup.Group
	g.Go(func() (err error) {
		x.uris, err = dex.OpenURIIndex(ctx, x.dir, with(x.cfg.uriOptions())...)
		return err
	})
	g.Go(func() (err error) {
		x.ids, err = dex.OpenIDIndex(ctx, x.dir, with(x.cfg.idOptions())...)
		return err
	})
	g.Go(func() (err error) {
		x.paths, err = dex.OpenPathIndex(ctx, x.dir, with(x.cfg.pathOptions())...)
		return err
	})
	g.Go(func() (err error) {
		x.versions, err = dex.OpenVersionIndex(ctx, x.dir, with(x.cfg.versionOptions())...)
		return err
	})
	g.Go(func() (err error) {
		x.langs, err = dex.OpenLanguageIndex(ctx, x.dir, with(x.cfg.languageOptions())...)
		return err
	})
	if err := g.Wait(); err != nil {
		x.closeFiles()
		return err
	}
	return nil
}

// files returns the open index files in a fixed order.
func (x *Index) files() []indexFile {
	var out []indexFile
	if x.uris != nil {
		out = append(out, x.uris)
	}
	if x.ids != nil {
		out = append(out, x.ids)
	}
	if x.paths != nil {
		out = append(out, x.paths)
	}
	if x.versions != nil {
		out = append(out, x.versions)
	}
	if x.langs != nil {
		out = append(out, x.langs)
	}
	return out
}

func (x *Index) closeFiles() error {
	var g errgroup.Group
	for _, f := range x.files() {
		g.Go(f.Close)
	}
	return g.Wait()
}

func (x *Index) syncFiles() error {
	var g errgroup.Group
	for _, f := range x.files() {
		g.Go(f.Sync)
	}
	return g.Wait()
}

func (x *Index) recover(discard bool) error {
	in, ok, err := x.journal.read()
	if err != nil {
		if discard && errors.Is(err, ErrCorruptJournal) {
			x.lg.Warn("discarding corrupt journal", slog.String("error", err.Error()))
			return x.journal.clear()
		}
		return err
	}
	if !ok {
		return nil
	}

	x.lg.Warn("replaying interrupted intent",
		slog.String("op", string(in.Op)),
		slog.Int64("address", in.Address))
	if err := x.apply(in); err != nil {
		return fmt.Errorf("replaying %s intent at %d: %w", in.Op, in.Address, err)
	}
	if err := x.syncFiles(); err != nil {
		return err
	}
	return x.journal.clear()
}

func (x *Index) checkOpen() error {
	if x.closed {
		return dex.ErrClosed
	}
	return nil
}

func (x *Index) checkWritable() error {
	if err := x.checkOpen(); err != nil {
		return err
	}
	if x.readOnly {
		return fmt.Errorf("repository index is read only: %w", dex.ErrUnsupported)
	}
	if x.broken != nil {
		return fmt.Errorf("index needs recovery, reopen it (%v): %w", x.broken, ErrInvalidState)
	}
	return nil
}

// commit persists in, applies it to the index files and drops it again.
func (x *Index) commit(in intent) error {
	if err := x.journal.write(in); err != nil {
		return err
	}
	if err := x.apply(in); err != nil {
		x.broken = fmt.Errorf("applying %s intent: %w", in.Op, err)
		x.lg.Error("index mutation interrupted", slog.String("error", err.Error()))
		return x.broken
	}
	if err := x.syncFiles(); err != nil {
		x.broken = err
		return err
	}
	return x.journal.clear()
}

// apply runs the steps of in. Each step tolerates having run before.
func (x *Index) apply(in intent) error {
	tags, err := parseLanguages(in.Languages)
	if err != nil {
		return err
	}

	switch in.Op {
	case opAdd:
		if err := x.uris.AddAt(in.Address, in.ID, in.Type, in.Path); err != nil {
			return err
		}
		if err := x.ids.Add(in.ID, in.Address); err != nil {
			return err
		}
		if in.Path != "" {
			if err := x.paths.Add(in.Path, in.Address); err != nil {
				return err
			}
		}
		if err := x.versions.AddAt(in.Address, in.ID, in.Version); err != nil {
			return err
		}
		return x.langs.AddAt(in.Address, in.ID, tags...)

	case opAddVersion:
		if err := x.versions.AddVersion(in.Address, in.Version); err != nil {
			return err
		}
		for _, tag := range tags {
			if err := x.langs.AddLanguage(in.Address, tag); err != nil {
				return err
			}
		}
		if in.Live {
			return x.repath(in)
		}
		return nil

	case opUpdate:
		if in.Live {
			if err := x.repath(in); err != nil {
				return err
			}
		}
		if len(tags) > 0 {
			return x.langs.SetLanguages(in.Address, tags...)
		}
		return nil

	case opDelete:
		steps := []error{
			x.langs.Delete(in.Address),
			x.versions.Delete(in.Address),
		}
		if in.Path != "" {
			steps = append(steps, x.paths.Delete(in.Path, in.Address))
		}
		steps = append(steps,
			x.ids.Delete(in.ID, in.Address),
			x.uris.Delete(in.Address))
		for _, err := range steps {
			if err != nil && !dex.IsNotFound(err) {
				return err
			}
		}
		return nil

	case opDeleteVersion:
		return ignoreNotFound(x.versions.DeleteVersion(in.Address, in.Version))

	case opAddLanguage:
		for _, tag := range tags {
			if err := x.langs.AddLanguage(in.Address, tag); err != nil {
				return err
			}
		}
		return nil

	case opRemoveLanguage:
		for _, tag := range tags {
			if err := ignoreNotFound(x.langs.DeleteLanguage(in.Address, tag)); err != nil {
				return err
			}
		}
		return nil

	case opClear:
		for _, clear := range []func() error{
			x.uris.Clear, x.ids.Clear, x.paths.Clear, x.versions.Clear, x.langs.Clear,
		} {
			if err := clear(); err != nil {
				return err
			}
		}
		return nil
	}
	return fmt.Errorf("unknown intent %q: %w", in.Op, ErrCorruptJournal)
}

// repath rewrites type and path of the record and moves its path index
// entry.
func (x *Index) repath(in intent) error {
	if err := x.uris.Update(in.Address, in.Type, in.Path); err != nil {
		return err
	}
	if in.OldPath != "" && in.OldPath != in.Path {
		if err := ignoreNotFound(x.paths.Delete(in.OldPath, in.Address)); err != nil {
			return err
		}
	}
	if in.Path != "" {
		return x.paths.Add(in.Path, in.Address)
	}
	return nil
}

func ignoreNotFound(err error) error {
	if dex.IsNotFound(err) {
		return nil
	}
	return err
}

func languageNames(tags []language.Tag) ([]string, error) {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if _, err := dex.EncodeLanguage(tag); err != nil {
			return nil, err
		}
		out = append(out, tag.String())
	}
	return out, nil
}

func parseLanguages(names []string) ([]language.Tag, error) {
	out := make([]language.Tag, 0, len(names))
	for _, name := range names {
		tag, err := language.Parse(name)
		if err != nil {
			return nil, fmt.Errorf("language %q: %w", name, ErrInvalid)
		}
		out = append(out, tag)
	}
	return out, nil
}

func (x *Index) validate(uri URI) error {
	if want := x.uris.IDLength(); len(uri.ID) != want {
		return &dex.IdentifierLengthError{Want: want, Got: len(uri.ID)}
	}
	if strings.HasPrefix(uri.ID, "\n") {
		return fmt.Errorf("identifier %q starts with a newline: %w", uri.ID, ErrInvalid)
	}
	if uri.Type == "" {
		return fmt.Errorf("resource type is required: %w", ErrInvalid)
	}
	if strings.IndexByte(uri.Type, 0) >= 0 {
		return fmt.Errorf("resource type %q contains a zero byte: %w", uri.Type, ErrInvalid)
	}
	if strings.IndexByte(uri.Path, '\n') >= 0 {
		return fmt.Errorf("path %q contains a newline: %w", uri.Path, ErrInvalid)
	}
	if uri.Version < 0 {
		return fmt.Errorf("negative version %d: %w", uri.Version, ErrInvalid)
	}
	return nil
}

// locate resolves uri to its address: through the identifier when set,
// otherwise through the path, confirmed against the uri index.
func (x *Index) locate(uri URI) (int64, dex.URIRecord, error) {
	path := internal.NormalizePath(uri.Path)

	var (
		addrs []int64
		err   error
	)
	switch {
	case uri.ID != "":
		addrs, err = x.ids.Locate(uri.ID)
	case path != "":
		addrs, err = x.paths.Locate(path)
	default:
		return -1, dex.URIRecord{}, fmt.Errorf("uri needs an identifier or a path: %w", ErrInvalid)
	}
	if err != nil {
		return -1, dex.URIRecord{}, err
	}

	for _, a := range addrs {
		rec, err := x.uris.Record(a)
		if dex.IsNotFound(err) {
			continue
		}
		if err != nil {
			return -1, dex.URIRecord{}, err
		}
		match := rec.Path == path
		if uri.ID != "" {
			match = rec.ID == uri.ID
		}
		if match && (uri.Type == "" || uri.Type == rec.Type) {
			return a, rec, nil
		}
	}
	return -1, dex.URIRecord{}, &NotFoundError{URI: uri}
}

// pathOwner returns the address holding path, or -1.
func (x *Index) pathOwner(path string) (int64, error) {
	if path == "" {
		return -1, nil
	}
	addrs, err := x.paths.Locate(path)
	if err != nil {
		return -1, err
	}
	for _, a := range addrs {
		rec, err := x.uris.Record(a)
		if dex.IsNotFound(err) {
			continue
		}
		if err != nil {
			return -1, err
		}
		if rec.Path == path {
			return a, nil
		}
	}
	return -1, nil
}

// Add indexes res and returns its uri, with a generated identifier when
// res carried none. Adding a version that the identifier or path already
// holds is a conflict, as is a path held by another identifier. Any other
// version of a known resource is added to it, and a live version also
// takes over the given type and path.
func (x *Index) Add(ctx context.Context, res Resource) (URI, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return URI{}, err
	}

	uri := res.URI
	uri.Path = internal.NormalizePath(uri.Path)
	langs, err := languageNames(res.Languages)
	if err != nil {
		return URI{}, err
	}

	address := int64(-1)
	var current dex.URIRecord

	if uri.ID != "" {
		addrs, err := x.ids.Locate(uri.ID)
		if err != nil {
			return URI{}, err
		}
		for _, a := range addrs {
			rec, err := x.uris.Record(a)
			if dex.IsNotFound(err) {
				continue
			}
			if err != nil {
				return URI{}, err
			}
			if rec.ID != uri.ID {
				continue
			}
			has, err := x.versions.HasVersion(a, uri.Version)
			if err != nil {
				return URI{}, err
			}
			if has {
				return URI{}, &ConflictError{Field: "id", Value: uri.ID}
			}
			if uri.Path == "" {
				uri.Path = rec.Path
			}
			address, current = a, rec
		}
	}

	if owner, err := x.pathOwner(uri.Path); err != nil {
		return URI{}, err
	} else if owner >= 0 {
		rec, err := x.uris.Record(owner)
		if err != nil {
			return URI{}, err
		}
		has, err := x.versions.HasVersion(owner, uri.Version)
		if err != nil {
			return URI{}, err
		}
		if has || (address >= 0 && owner != address) || (uri.ID != "" && rec.ID != uri.ID) {
			return URI{}, &ConflictError{Field: "path", Value: uri.Path}
		}
		if uri.ID == "" {
			uri.ID = rec.ID
		}
		address, current = owner, rec
	}

	if address < 0 {
		if uri.ID == "" {
			uri.ID = uuid.NewString()
		}
		if err := x.validate(uri); err != nil {
			return URI{}, err
		}
		in := intent{
			Op:        opAdd,
			Address:   x.uris.NextAddress(),
			ID:        uri.ID,
			Type:      uri.Type,
			Path:      uri.Path,
			Version:   uri.Version,
			Languages: langs,
		}
		if err := x.commit(in); err != nil {
			return URI{}, err
		}
		x.lg.Debug("added resource", slog.String("uri", uri.String()), slog.Int64("address", in.Address))
	} else {
		if uri.Type == "" {
			uri.Type = current.Type
		}
		if err := x.validate(uri); err != nil {
			return URI{}, err
		}
		in := intent{
			Op:        opAddVersion,
			Address:   address,
			ID:        current.ID,
			Type:      uri.Type,
			Path:      uri.Path,
			OldPath:   current.Path,
			Version:   uri.Version,
			Languages: langs,
			Live:      uri.Version == Live,
		}
		if err := x.commit(in); err != nil {
			return URI{}, err
		}
		x.lg.Debug("added resource version", slog.String("uri", uri.String()), slog.Int64("address", address))
	}

	res.URI = uri
	return uri, x.notifyIndexed(ctx, res)
}

func (x *Index) notifyIndexed(ctx context.Context, res Resource) error {
	var err error
	if res.Indexed {
		err = x.search.Add(ctx, res)
	} else {
		err = x.search.Delete(ctx, res.URI)
	}
	if err != nil {
		return fmt.Errorf("search index: %w", err)
	}
	return nil
}

// Update rewrites the live type and path of a resource and, when given,
// replaces its languages. Other versions only reach the search
// collaborator.
func (x *Index) Update(ctx context.Context, res Resource) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return err
	}

	uri := res.URI
	uri.Path = internal.NormalizePath(uri.Path)
	langs, err := languageNames(res.Languages)
	if err != nil {
		return err
	}

	address, rec, err := x.locate(URI{ID: uri.ID, Path: uri.Path, Version: uri.Version})
	if err != nil {
		return err
	}
	uri.ID = rec.ID
	if uri.Type == "" {
		uri.Type = rec.Type
	}
	if uri.Path == "" {
		uri.Path = rec.Path
	}
	if err := x.validate(uri); err != nil {
		return err
	}

	live := uri.Version == Live
	if live && uri.Path != rec.Path {
		owner, err := x.pathOwner(uri.Path)
		if err != nil {
			return err
		}
		if owner >= 0 && owner != address {
			return &ConflictError{Field: "path", Value: uri.Path}
		}
	}

	if live || len(langs) > 0 {
		in := intent{
			Op:        opUpdate,
			Address:   address,
			ID:        rec.ID,
			Type:      uri.Type,
			Path:      uri.Path,
			OldPath:   rec.Path,
			Version:   uri.Version,
			Languages: langs,
			Live:      live,
		}
		if err := x.commit(in); err != nil {
			return err
		}
	}

	res.URI = uri
	var serr error
	if res.Indexed {
		serr = x.search.Update(ctx, res)
	} else {
		serr = x.search.Delete(ctx, uri)
	}
	if serr != nil {
		return fmt.Errorf("search index: %w", serr)
	}
	return nil
}

// Delete removes one version of a resource, or the whole resource when it
// is the last version. It reports false when there was nothing to delete.
func (x *Index) Delete(ctx context.Context, uri URI) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return false, err
	}

	address, rec, err := x.locate(uri)
	if IsNotFound(err) {
		x.lg.Warn("tried to delete a resource that is not indexed", slog.String("uri", uri.String()))
		return false, nil
	}
	if err != nil {
		return false, err
	}

	versions, err := x.versions.Versions(address)
	if err != nil && !dex.IsNotFound(err) {
		return false, err
	}
	if len(versions) > 0 && !slices.Contains(versions, uri.Version) {
		x.lg.Debug("version not indexed", slog.String("uri", uri.String()))
		return false, nil
	}

	in := intent{Op: opDeleteVersion, Address: address, ID: rec.ID, Version: uri.Version}
	if len(versions) <= 1 {
		in = intent{Op: opDelete, Address: address, ID: rec.ID, Path: rec.Path, Version: uri.Version}
	}
	if err := x.commit(in); err != nil {
		return false, err
	}

	uri.ID = rec.ID
	if err := x.search.Delete(ctx, uri); err != nil {
		return true, fmt.Errorf("search index: %w", err)
	}
	return true, nil
}

// Move gives the live version of a resource a new path.
func (x *Index) Move(ctx context.Context, uri URI, path string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return err
	}

	address, rec, err := x.locate(uri)
	if err != nil {
		return err
	}
	path = internal.NormalizePath(path)
	if strings.IndexByte(path, '\n') >= 0 {
		return fmt.Errorf("path %q contains a newline: %w", path, ErrInvalid)
	}

	if uri.Version == Live && path != rec.Path {
		owner, err := x.pathOwner(path)
		if err != nil {
			return err
		}
		if owner >= 0 && owner != address {
			return &ConflictError{Field: "path", Value: path}
		}
		in := intent{
			Op:      opUpdate,
			Address: address,
			ID:      rec.ID,
			Type:    rec.Type,
			Path:    path,
			OldPath: rec.Path,
			Version: uri.Version,
			Live:    true,
		}
		if err := x.commit(in); err != nil {
			return err
		}
		x.lg.Debug("moved resource", slog.String("from", rec.Path), slog.String("to", path))
	}

	uri.ID = rec.ID
	if err := x.search.Move(ctx, uri, path); err != nil {
		return fmt.Errorf("search index: %w", err)
	}
	return nil
}

// Exists reports whether the exact version named by uri is indexed.
func (x *Index) Exists(ctx context.Context, uri URI) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkOpen(); err != nil {
		return false, err
	}
	address, _, err := x.locate(uri)
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return x.versions.HasVersion(address, uri.Version)
}

// ExistsInAnyVersion reports whether the resource is indexed at all.
func (x *Index) ExistsInAnyVersion(ctx context.Context, uri URI) (bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkOpen(); err != nil {
		return false, err
	}
	_, _, err := x.locate(uri)
	if IsNotFound(err) {
		return false, nil
	}
	return err == nil, err
}

// Revisions returns the indexed versions of a resource.
func (x *Index) Revisions(ctx context.Context, uri URI) ([]int64, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkOpen(); err != nil {
		return nil, err
	}
	address, _, err := x.locate(uri)
	if err != nil {
		return nil, err
	}
	return x.versions.Versions(address)
}

// Languages returns the languages a resource is available in.
func (x *Index) Languages(ctx context.Context, uri URI) ([]language.Tag, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkOpen(); err != nil {
		return nil, err
	}
	address, _, err := x.locate(uri)
	if err != nil {
		return nil, err
	}
	return x.langs.Languages(address)
}

// AddLanguage records that a resource is available in tag.
func (x *Index) AddLanguage(ctx context.Context, uri URI, tag language.Tag) error {
	return x.changeLanguage(uri, tag, opAddLanguage)
}

// RemoveLanguage drops tag from the languages of a resource.
func (x *Index) RemoveLanguage(ctx context.Context, uri URI, tag language.Tag) error {
	return x.changeLanguage(uri, tag, opRemoveLanguage)
}

func (x *Index) changeLanguage(uri URI, tag language.Tag, op intentOp) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return err
	}
	names, err := languageNames([]language.Tag{tag})
	if err != nil {
		return err
	}
	address, rec, err := x.locate(uri)
	if err != nil {
		return err
	}
	return x.commit(intent{Op: op, Address: address, ID: rec.ID, Languages: names})
}

// Identifier returns the identifier of the resource stored under path.
func (x *Index) Identifier(ctx context.Context, path string) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkOpen(); err != nil {
		return "", err
	}
	path = internal.NormalizePath(path)
	if path == "" {
		return "", fmt.Errorf("path is required: %w", ErrInvalid)
	}
	_, rec, err := x.locate(URI{Path: path})
	if err != nil {
		x.lg.Debug("attempt to locate a path that is not indexed", slog.String("path", path))
		return "", err
	}
	return rec.ID, nil
}

// PathOf returns the live path of the resource with identifier id.
func (x *Index) PathOf(ctx context.Context, id string) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkOpen(); err != nil {
		return "", err
	}
	if id == "" {
		return "", fmt.Errorf("identifier is required: %w", ErrInvalid)
	}
	_, rec, err := x.locate(URI{ID: id})
	if err != nil {
		return "", err
	}
	return rec.Path, nil
}

// TypeOf returns the resource type stored for uri.
func (x *Index) TypeOf(ctx context.Context, uri URI) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkOpen(); err != nil {
		return "", err
	}
	_, rec, err := x.locate(uri)
	if err != nil {
		return "", err
	}
	return rec.Type, nil
}

// Size returns the number of indexed resources, or 0 once the index is
// closed.
func (x *Index) Size() int64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return 0
	}
	return x.uris.Entries()
}

// RevisionCount returns the number of indexed versions over all resources,
// or 0 once the index is closed.
func (x *Index) RevisionCount() int64 {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return 0
	}
	return x.versions.ValueCount()
}

// ListOptions narrows List.
type ListOptions struct {
	// Path limits the listing to resources at or below this path.
	Path string

	// Depth limits how many segments below Path are listed. Zero means no
	// limit.
	Depth int

	// Type limits the listing to one resource type.
	Type string

	// Version selects the version to list. AnyVersion lists all of them.
	Version int64
}

// List returns the uris of indexed resources ordered by path, identifier
// and version.
func (x *Index) List(ctx context.Context, opts ListOptions) ([]URI, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkOpen(); err != nil {
		return nil, err
	}

	prefix := internal.NormalizePath(opts.Path)
	baseDepth := internal.PathDepth(prefix)

	type hit struct {
		addr int64
		rec  dex.URIRecord
	}
	var hits []hit
	err := x.uris.Each(func(addr int64, rec dex.URIRecord) error {
		if opts.Type != "" && rec.Type != opts.Type {
			return nil
		}
		if prefix != "" && !internal.IsBelow(rec.Path, prefix) {
			return nil
		}
		if opts.Depth > 0 && internal.PathDepth(rec.Path)-baseDepth > opts.Depth {
			return nil
		}
		hits = append(hits, hit{addr: addr, rec: rec})
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []URI
	for _, h := range hits {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		versions, err := x.versions.Versions(h.addr)
		if err != nil && !dex.IsNotFound(err) {
			return nil, err
		}
		for _, v := range versions {
			if opts.Version != AnyVersion && v != opts.Version {
				continue
			}
			out = append(out, URI{ID: h.rec.ID, Type: h.rec.Type, Path: h.rec.Path, Version: v})
		}
	}
	slices.SortFunc(out, func(a, b URI) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		if c := strings.Compare(a.ID, b.ID); c != 0 {
			return c
		}
		return cmp.Compare(a.Version, b.Version)
	})
	return out, nil
}

// Find hands q to the search collaborator.
func (x *Index) Find(ctx context.Context, q Query) ([]URI, error) {
	x.mu.Lock()
	err := x.checkOpen()
	x.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return x.search.Query(ctx, q)
}

// IndexVersion returns the shared format version of the index files, or -1
// when they disagree.
func (x *Index) IndexVersion() int {
	version := x.uris.IndexVersion()
	for _, f := range x.files()[1:] {
		if f.IndexVersion() != version {
			x.lg.Info("version mismatch detected in structural index")
			return -1
		}
	}
	if v := x.search.IndexVersion(); v >= 0 && v != version {
		x.lg.Info("version mismatch detected between structural and search index")
		return -1
	}
	return version
}

// Clear empties every index file and the search collaborator.
func (x *Index) Clear(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.checkWritable(); err != nil {
		return err
	}
	if err := x.commit(intent{Op: opClear}); err != nil {
		return err
	}
	if err := x.search.Clear(ctx); err != nil {
		return fmt.Errorf("search index: %w", err)
	}
	return nil
}

// Close flushes and closes the index files and releases the lock.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil
	}
	x.closed = true
	return errors.Join(
		x.closeFiles(),
		x.search.Close(),
		x.lock.release(),
	)
}

// Root returns the directory the index was opened at.
func (x *Index) Root() string { return x.root }

// Config returns the configuration the index was opened with.
func (x *Index) Config() Config { return x.cfg }

// ReadOnly reports whether mutations are refused.
func (x *Index) ReadOnly() bool { return x.readOnly }
