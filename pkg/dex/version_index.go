package dex

import "context"

// VersionIndex records the set of versions held by each resource. Values
// are signed 64-bit versions kept in insertion order.
type VersionIndex struct {
	*valueIndex
}

// OpenVersionIndex opens or creates version.idx inside dir.
func OpenVersionIndex(ctx context.Context, dir string, opts ...Option) (*VersionIndex, error) {
	v, err := openValueIndex(ctx, dir, VersionIndexName, "version", DefaultVersionsPerEntry, opts)
	if err != nil {
		return nil, err
	}
	return &VersionIndex{valueIndex: v}, nil
}

// Add creates a record for id holding version and returns its address.
func (x *VersionIndex) Add(id string, version int64) (int64, error) {
	return x.insert(-1, id, []uint64{uint64(version)})
}

// AddAt creates the record for id at a fixed address, or adds version to
// the record id already holds there.
func (x *VersionIndex) AddAt(entry int64, id string, version int64) error {
	_, err := x.insert(entry, id, []uint64{uint64(version)})
	return err
}

// AddVersion appends version to the record at entry.
func (x *VersionIndex) AddVersion(entry int64, version int64) error {
	return x.appendValue(entry, uint64(version))
}

// DeleteVersion removes one version. Removing the last version removes the
// record.
func (x *VersionIndex) DeleteVersion(entry int64, version int64) error {
	return x.deleteValue(entry, uint64(version), true)
}

// Versions returns the versions of the record at entry in insertion order.
func (x *VersionIndex) Versions(entry int64) ([]int64, error) {
	raw, err := x.valuesAt(entry)
	if err != nil {
		return nil, err
	}
	out := make([]int64, len(raw))
	for i, v := range raw {
		out[i] = int64(v)
	}
	return out, nil
}

func (x *VersionIndex) HasVersion(entry int64, version int64) (bool, error) {
	return x.has(entry, uint64(version))
}

func (x *VersionIndex) HasVersions(entry int64) (bool, error) {
	return x.HasAny(entry)
}
