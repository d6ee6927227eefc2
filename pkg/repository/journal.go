package repository

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"
)

// JournalFileName is the pending-intent file kept beside the index files.
const JournalFileName = "journal"

type intentOp string

const (
	opAdd            intentOp = "add"
	opAddVersion     intentOp = "add-version"
	opUpdate         intentOp = "update"
	opDelete         intentOp = "delete"
	opDeleteVersion  intentOp = "delete-version"
	opAddLanguage    intentOp = "add-language"
	opRemoveLanguage intentOp = "remove-language"
	opClear          intentOp = "clear"
)

// intent describes one mutation across the five index files. It is
// persisted before any file is touched, and every step it expands to can
// be applied twice without changing the outcome, so a pending intent is
// simply applied again after a crash.
type intent struct {
	Op        intentOp `cbor:"1,keyasint"`
	Address   int64    `cbor:"2,keyasint"`
	ID        string   `cbor:"3,keyasint,omitempty"`
	Type      string   `cbor:"4,keyasint,omitempty"`
	Path      string   `cbor:"5,keyasint,omitempty"`
	OldPath   string   `cbor:"6,keyasint,omitempty"`
	Version   int64    `cbor:"7,keyasint"`
	Languages []string `cbor:"8,keyasint,omitempty"`

	// Live marks version additions and updates that rewrite type and path.
	Live bool `cbor:"9,keyasint,omitempty"`
}

var (
	journalEncMode cbor.EncMode
	journalDecMode cbor.DecMode
)

func init() {
	var err error
	journalEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("repository: CBOR encoder initialization failed: " + err.Error())
	}
	journalDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("repository: CBOR decoder initialization failed: " + err.Error())
	}
}

// journal stores at most one pending intent:
//
//	blake3-256(payload) | payload (deterministic CBOR)
type journal struct {
	path string
}

func newJournal(dir string) *journal {
	return &journal{path: filepath.Join(dir, JournalFileName)}
}

func encodeIntent(in intent) ([]byte, error) {
	payload, err := journalEncMode.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encoding intent: %w", err)
	}
	sum := blake3.Sum256(payload)
	return append(sum[:], payload...), nil
}

func decodeIntent(data []byte) (intent, error) {
	var in intent
	if len(data) < 32 {
		return in, fmt.Errorf("%d byte journal: %w", len(data), ErrCorruptJournal)
	}
	sum := blake3.Sum256(data[32:])
	if !bytes.Equal(sum[:], data[:32]) {
		return in, fmt.Errorf("checksum mismatch: %w", ErrCorruptJournal)
	}
	if err := journalDecMode.Unmarshal(data[32:], &in); err != nil {
		return in, fmt.Errorf("decoding intent: %v: %w", err, ErrCorruptJournal)
	}
	return in, nil
}

// write persists in durably before the caller starts applying it.
func (j *journal) write(in intent) error {
	data, err := encodeIntent(in)
	if err != nil {
		return err
	}
	return writeFileAtomic(j.path, data)
}

// read returns the pending intent. ok is false when nothing is pending.
func (j *journal) read() (in intent, ok bool, err error) {
	data, err := os.ReadFile(j.path)
	if errors.Is(err, os.ErrNotExist) {
		return intent{}, false, nil
	}
	if err != nil {
		return intent{}, false, fmt.Errorf("reading journal: %w", err)
	}
	in, err = decodeIntent(data)
	if err != nil {
		return intent{}, true, err
	}
	return in, true, nil
}

func (j *journal) pending() bool {
	_, err := os.Stat(j.path)
	return err == nil
}

// clear drops the intent once every step has reached the index files.
func (j *journal) clear() error {
	if err := os.Remove(j.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing journal: %w", err)
	}
	return nil
}
