package dex

import "context"

// PathIndex maps resource paths to uri index addresses. Several addresses
// may share a path bucket; only the uri index knows the stored path.
type PathIndex struct {
	*bucketIndex
}

// OpenPathIndex opens or creates path.idx inside dir.
func OpenPathIndex(ctx context.Context, dir string, opts ...Option) (*PathIndex, error) {
	b, err := openBucketIndex(ctx, dir, PathIndexName, "path", opts)
	if err != nil {
		return nil, err
	}
	return &PathIndex{bucketIndex: b}, nil
}
