package repository

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jlrickert/repodex/pkg/dex"
	"gopkg.in/yaml.v3"
)

// ConfigVersionString is written into every config file so later layouts
// can be told apart.
const ConfigVersionString = "2026-10"

// ConfigFileName is the config file kept at the repository index root.
const ConfigFileName = "repodex.yaml"

// Config carries the initial shape of the index files. Widths only matter
// when a file is created or still empty; existing files keep whatever
// they have grown to.
type Config struct {
	// Repodexv is the version of the config layout.
	Repodexv string `yaml:"repodexv"`

	IDLength   int `yaml:"idLength"`
	TypeLength int `yaml:"typeLength"`
	PathLength int `yaml:"pathLength"`

	VersionsPerEntry  int `yaml:"versionsPerEntry"`
	LanguagesPerEntry int `yaml:"languagesPerEntry"`

	IDSlots            int64 `yaml:"idSlots"`
	IDEntriesPerSlot   int   `yaml:"idEntriesPerSlot"`
	PathSlots          int64 `yaml:"pathSlots"`
	PathEntriesPerSlot int   `yaml:"pathEntriesPerSlot"`

	// RecordCache is the number of uri records cached in memory; zero
	// disables the cache.
	RecordCache int `yaml:"recordCache"`

	ReadOnly bool `yaml:"readOnly,omitempty"`
}

// DefaultConfig returns the layout used when no config file exists.
func DefaultConfig() Config {
	return Config{
		Repodexv:           ConfigVersionString,
		IDLength:           dex.DefaultIDLength,
		TypeLength:         dex.DefaultTypeLength,
		PathLength:         dex.DefaultPathLength,
		VersionsPerEntry:   dex.DefaultVersionsPerEntry,
		LanguagesPerEntry:  dex.DefaultLanguagesPerEntry,
		IDSlots:            dex.DefaultBucketSlots,
		IDEntriesPerSlot:   dex.DefaultEntriesPerBucket,
		PathSlots:          dex.DefaultBucketSlots,
		PathEntriesPerSlot: dex.DefaultEntriesPerBucket,
		RecordCache:        dex.DefaultRecordCache,
	}
}

// ParseConfigData parses raw YAML config data. Fields missing from the
// data keep their defaults.
func ParseConfigData(data []byte) (Config, error) {
	cfg := DefaultConfig()

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	if v, ok := raw["repodexv"]; ok {
		version, _ := v.(string)
		if version != ConfigVersionString {
			return cfg, fmt.Errorf("unsupported config version: %v", v)
		}
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Repodexv = ConfigVersionString
	return cfg, cfg.Validate()
}

// LoadConfig reads the config at path. A missing file yields the defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := ParseConfigData(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects non-positive widths and counts.
func (c Config) Validate() error {
	for _, f := range []struct {
		name  string
		value int64
	}{
		{"idLength", int64(c.IDLength)},
		{"typeLength", int64(c.TypeLength)},
		{"pathLength", int64(c.PathLength)},
		{"versionsPerEntry", int64(c.VersionsPerEntry)},
		{"languagesPerEntry", int64(c.LanguagesPerEntry)},
		{"idSlots", c.IDSlots},
		{"idEntriesPerSlot", int64(c.IDEntriesPerSlot)},
		{"pathSlots", c.PathSlots},
		{"pathEntriesPerSlot", int64(c.PathEntriesPerSlot)},
	} {
		if f.value <= 0 {
			return fmt.Errorf("config %s must be positive, got %d: %w", f.name, f.value, dex.ErrInvalid)
		}
	}
	if c.RecordCache < 0 {
		return fmt.Errorf("config recordCache must not be negative: %w", dex.ErrInvalid)
	}
	return nil
}

// Write stores the config at path. The file is written to a temporary
// sibling and renamed into place.
func (c Config) Write(path string) error {
	c.Repodexv = ConfigVersionString
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return writeFileAtomic(path, data)
}

func (c Config) uriOptions() []dex.Option {
	cache := c.RecordCache
	if cache == 0 {
		cache = -1
	}
	return []dex.Option{
		dex.WithIDLength(c.IDLength),
		dex.WithTypeLength(c.TypeLength),
		dex.WithPathLength(c.PathLength),
		dex.WithRecordCache(cache),
	}
}

func (c Config) versionOptions() []dex.Option {
	return []dex.Option{
		dex.WithIDLength(c.IDLength),
		dex.WithValuesPerEntry(c.VersionsPerEntry),
	}
}

func (c Config) languageOptions() []dex.Option {
	return []dex.Option{
		dex.WithIDLength(c.IDLength),
		dex.WithValuesPerEntry(c.LanguagesPerEntry),
	}
}

func (c Config) idOptions() []dex.Option {
	return []dex.Option{
		dex.WithSlots(c.IDSlots),
		dex.WithEntriesPerSlot(c.IDEntriesPerSlot),
	}
}

func (c Config) pathOptions() []dex.Option {
	return []dex.Option{
		dex.WithSlots(c.PathSlots),
		dex.WithEntriesPerSlot(c.PathEntriesPerSlot),
	}
}

// writeFileAtomic writes data to a temporary file next to path, syncs it
// and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temporary file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmpPath, path, err)
	}
	success = true

	if d, err := os.Open(dir); err == nil {
		d.Sync()
		d.Close()
	}
	return nil
}
