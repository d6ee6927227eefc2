package dex

import "context"

// IDIndex maps resource identifiers to uri index addresses.
type IDIndex struct {
	*bucketIndex
}

// OpenIDIndex opens or creates id.idx inside dir.
func OpenIDIndex(ctx context.Context, dir string, opts ...Option) (*IDIndex, error) {
	b, err := openBucketIndex(ctx, dir, IDIndexName, "id", opts)
	if err != nil {
		return nil, err
	}
	return &IDIndex{bucketIndex: b}, nil
}
