// IndexIterator: the result cursor every index kind's Find returns.
//
// An interval is exclusive on both ends: left and right name the nodes
// just outside the range. An interval is empty iff advancing from left
// lands on right; Find is responsible for eliding empty intervals before
// returning an iterator, so HasNext need only compare boundaries.
package ordix

// Iterator is the uniform cursor callers walk to materialise documents
// out of any index kind.
type Iterator interface {
	HasNext() bool
	HasPrev() bool

	// Next/Prev advance by one and return the visited handle, or false
	// if there was nothing left in the remaining interval sequence.
	Next() (DocHandle, bool)
	Prev() (DocHandle, bool)

	// Nexts/Prevs advance by up to k (a negative k reverses direction)
	// and return the last handle visited.
	Nexts(k int) (DocHandle, bool)
	Prevs(k int) (DocHandle, bool)

	// Reset seeks to the first interval's left endpoint, or (if
	// toBeginning is false) the last interval's right endpoint.
	Reset(toBeginning bool)

	// SetFilter installs a predicate; handles for which it returns false
	// are transparently skipped by Next/Prev/Nexts/Prevs. A nil filter
	// clears it.
	SetFilter(f func(DocHandle) bool)
}

// emptyIterator is what Find returns for an invalid or trivially-empty
// operator tree: HasNext/HasPrev are immediately false.
type emptyIterator struct{}

func (emptyIterator) HasNext() bool                 { return false }
func (emptyIterator) HasPrev() bool                 { return false }
func (emptyIterator) Next() (DocHandle, bool)       { return 0, false }
func (emptyIterator) Prev() (DocHandle, bool)       { return 0, false }
func (emptyIterator) Nexts(int) (DocHandle, bool)   { return 0, false }
func (emptyIterator) Prevs(int) (DocHandle, bool)   { return 0, false }
func (emptyIterator) Reset(bool)                    {}
func (emptyIterator) SetFilter(func(DocHandle) bool) {}

// EmptyIterator returns the shared zero-result iterator.
func EmptyIterator() Iterator { return emptyIterator{} }

// sliceIterator is a materialised-result cursor used by the bitarray
// index, whose query produces a bounded result set eagerly rather than
// lazily walking a linked structure. The geo index returns its results
// as a plain slice and builds no iterator. The skip list index
// uses its own cursor (skipListIterator in skiplistindex.go) because it
// walks the live structure under MVCC visibility instead.
type sliceIterator struct {
	handles []DocHandle
	pos     int // index of the "current" element; -1 before the first, len(handles) after the last
	filter  func(DocHandle) bool
}

func newSliceIterator(handles []DocHandle) *sliceIterator {
	return &sliceIterator{handles: handles, pos: -1}
}

func (it *sliceIterator) SetFilter(f func(DocHandle) bool) { it.filter = f }

func (it *sliceIterator) passes(i int) bool {
	return it.filter == nil || it.filter(it.handles[i])
}

func (it *sliceIterator) HasNext() bool {
	for i := it.pos + 1; i < len(it.handles); i++ {
		if it.passes(i) {
			return true
		}
	}
	return false
}

func (it *sliceIterator) HasPrev() bool {
	for i := it.pos - 1; i >= 0; i-- {
		if it.passes(i) {
			return true
		}
	}
	return false
}

func (it *sliceIterator) Next() (DocHandle, bool) {
	for i := it.pos + 1; i < len(it.handles); i++ {
		if it.passes(i) {
			it.pos = i
			return it.handles[i], true
		}
	}
	it.pos = len(it.handles)
	return 0, false
}

func (it *sliceIterator) Prev() (DocHandle, bool) {
	for i := it.pos - 1; i >= 0; i-- {
		if it.passes(i) {
			it.pos = i
			return it.handles[i], true
		}
	}
	it.pos = -1
	return 0, false
}

func (it *sliceIterator) Nexts(k int) (DocHandle, bool) {
	if k < 0 {
		return it.Prevs(-k)
	}
	var last DocHandle
	ok := false
	for i := 0; i < k; i++ {
		h, advanced := it.Next()
		if !advanced {
			break
		}
		last, ok = h, true
	}
	return last, ok
}

func (it *sliceIterator) Prevs(k int) (DocHandle, bool) {
	if k < 0 {
		return it.Nexts(-k)
	}
	var last DocHandle
	ok := false
	for i := 0; i < k; i++ {
		h, advanced := it.Prev()
		if !advanced {
			break
		}
		last, ok = h, true
	}
	return last, ok
}

func (it *sliceIterator) Reset(toBeginning bool) {
	if toBeginning {
		it.pos = -1
	} else {
		it.pos = len(it.handles)
	}
}
