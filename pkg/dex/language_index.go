package dex

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"golang.org/x/text/language"
)

// LanguageIndex records the languages each resource is available in. A
// language is stored as its canonical BCP 47 tag, zero padded into one
// 8 byte cell.
type LanguageIndex struct {
	*valueIndex
}

// OpenLanguageIndex opens or creates language.idx inside dir.
func OpenLanguageIndex(ctx context.Context, dir string, opts ...Option) (*LanguageIndex, error) {
	v, err := openValueIndex(ctx, dir, LanguageIndexName, "language", DefaultLanguagesPerEntry, opts)
	if err != nil {
		return nil, err
	}
	return &LanguageIndex{valueIndex: v}, nil
}

// EncodeLanguage packs the canonical form of tag into a cell value.
func EncodeLanguage(tag language.Tag) (uint64, error) {
	s := tag.String()
	if tag == language.Und || s == "" {
		return 0, fmt.Errorf("undetermined language: %w", ErrInvalid)
	}
	if len(s) > valueWidth {
		return 0, fmt.Errorf("language tag %q longer than %d bytes: %w", s, valueWidth, ErrInvalid)
	}
	var cell [valueWidth]byte
	copy(cell[:], s)
	return binary.BigEndian.Uint64(cell[:]), nil
}

// DecodeLanguage reverses EncodeLanguage.
func DecodeLanguage(v uint64) (language.Tag, error) {
	var cell [valueWidth]byte
	binary.BigEndian.PutUint64(cell[:], v)
	s := string(bytes.TrimRight(cell[:], "\x00"))
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und, fmt.Errorf("stored language %q: %w", s, ErrInvalidState)
	}
	return tag, nil
}

func encodeLanguages(tags []language.Tag) ([]uint64, error) {
	out := make([]uint64, 0, len(tags))
	for _, tag := range tags {
		v, err := EncodeLanguage(tag)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Add creates a record for id holding langs, which may be empty, and
// returns its address.
func (x *LanguageIndex) Add(id string, langs ...language.Tag) (int64, error) {
	vals, err := encodeLanguages(langs)
	if err != nil {
		return 0, err
	}
	return x.insert(-1, id, vals)
}

// AddAt creates the record for id at a fixed address, or merges langs into
// the record id already holds there.
func (x *LanguageIndex) AddAt(entry int64, id string, langs ...language.Tag) error {
	vals, err := encodeLanguages(langs)
	if err != nil {
		return err
	}
	_, err = x.insert(entry, id, vals)
	return err
}

// AddLanguage appends lang to the record at entry.
func (x *LanguageIndex) AddLanguage(entry int64, lang language.Tag) error {
	v, err := EncodeLanguage(lang)
	if err != nil {
		return err
	}
	return x.appendValue(entry, v)
}

// SetLanguages replaces every language of the record at entry.
func (x *LanguageIndex) SetLanguages(entry int64, langs ...language.Tag) error {
	vals, err := encodeLanguages(langs)
	if err != nil {
		return err
	}
	return x.setValues(entry, vals)
}

// DeleteLanguage removes lang from the record at entry. The record itself
// stays, even without languages, until Delete removes it.
func (x *LanguageIndex) DeleteLanguage(entry int64, lang language.Tag) error {
	v, err := EncodeLanguage(lang)
	if err != nil {
		return err
	}
	return x.deleteValue(entry, v, false)
}

// Languages returns the languages of the record at entry.
func (x *LanguageIndex) Languages(entry int64) ([]language.Tag, error) {
	raw, err := x.valuesAt(entry)
	if err != nil {
		return nil, err
	}
	out := make([]language.Tag, 0, len(raw))
	for _, v := range raw {
		tag, err := DecodeLanguage(v)
		if err != nil {
			return nil, &CorruptSlotError{Index: x.kind, Entry: entry, Reason: err.Error()}
		}
		out = append(out, tag)
	}
	return out, nil
}

func (x *LanguageIndex) HasLanguage(entry int64, lang language.Tag) (bool, error) {
	v, err := EncodeLanguage(lang)
	if err != nil {
		return false, err
	}
	return x.has(entry, v)
}

func (x *LanguageIndex) HasLanguages(entry int64) (bool, error) {
	return x.HasAny(entry)
}
