package dex

import "github.com/google/btree"

// freeList tracks tombstoned slot addresses. Pops return the lowest
// address so reuse stays first-fit and files stay dense at the front.
type freeList struct {
	tree *btree.BTreeG[int64]
}

func newFreeList() *freeList {
	return &freeList{tree: btree.NewOrderedG[int64](32)}
}

func (l *freeList) push(entry int64) {
	l.tree.ReplaceOrInsert(entry)
}

func (l *freeList) pop() (int64, bool) {
	return l.tree.DeleteMin()
}

func (l *freeList) min() (int64, bool) {
	return l.tree.Min()
}

func (l *freeList) remove(entry int64) bool {
	_, ok := l.tree.Delete(entry)
	return ok
}

func (l *freeList) len() int {
	return l.tree.Len()
}

func (l *freeList) reset() {
	l.tree.Clear(false)
}
