package repository

import "context"

// Query is handed to the search collaborator unchanged.
type Query struct {
	Text  string
	Type  string
	Path  string
	Limit int
}

// SearchIndex is the full text collaborator kept in step with the
// structural indexes. The index calls it after a mutation has reached
// the index files.
type SearchIndex interface {
	Add(ctx context.Context, res Resource) error
	Update(ctx context.Context, res Resource) error
	Delete(ctx context.Context, uri URI) error
	Move(ctx context.Context, uri URI, path string) error
	Query(ctx context.Context, q Query) ([]URI, error)
	Clear(ctx context.Context) error
	Close() error
	IndexVersion() int
}

// NopSearch accepts every call and finds nothing. A negative IndexVersion
// keeps it out of the version comparison.
type NopSearch struct{}

var _ SearchIndex = NopSearch{}

func (NopSearch) Add(context.Context, Resource) error         { return nil }
func (NopSearch) Update(context.Context, Resource) error      { return nil }
func (NopSearch) Delete(context.Context, URI) error           { return nil }
func (NopSearch) Move(context.Context, URI, string) error     { return nil }
func (NopSearch) Query(context.Context, Query) ([]URI, error) { return nil, nil }
func (NopSearch) Clear(context.Context) error                 { return nil }
func (NopSearch) Close() error                                { return nil }
func (NopSearch) IndexVersion() int                           { return -1 }
