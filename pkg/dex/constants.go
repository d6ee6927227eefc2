package dex

// FormatVersion is the on-disk format version written into every index
// header. A mismatch on open is logged and suggests a full reindex.
const FormatVersion = 1

// Index file names inside the structure directory.
const (
	URIIndexName      = "uri.idx"
	IDIndexName       = "id.idx"
	PathIndexName     = "path.idx"
	VersionIndexName  = "version.idx"
	LanguageIndexName = "language.idx"
)

// Default layout: uuid identifiers, short resource types and paths that
// fit typical site trees.
const (
	DefaultIDLength          = 36
	DefaultTypeLength        = 8
	DefaultPathLength        = 128
	DefaultVersionsPerEntry  = 10
	DefaultLanguagesPerEntry = 5
	DefaultBucketSlots       = 128
	DefaultEntriesPerBucket  = 64
	DefaultRecordCache       = 1024
)

// tombstone is written to the first byte of a deleted slot.
const tombstone = '\n'

// resizedSuffix names the sibling file a resize writes before it replaces
// the original.
const resizedSuffix = "_resized"

// valueWidth is the width of one version, language or address sub-entry.
const valueWidth = 8

// countWidth is the width of the per-record and per-bucket occupancy count.
const countWidth = 4
