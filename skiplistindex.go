// SkipListIndex: the unique and multi-valued ordered secondary index built
// on top of the generic SkipList, and the translation of an IndexOperator
// tree into a list of SkipList intervals.
package ordix

// tupleKey is the key type stored in the underlying skip list: the
// element's attribute values, always at full index arity for a stored
// node, possibly shorter for a partial-key search bound.
type tupleKey = []any

func tupleEqual(a, b tupleKey, shaper Shaper) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if shaper.Compare(a[i], b[i]) != 0 {
			return false
		}
	}
	return true
}

// tupleCompare is the KeyComparator the underlying SkipList uses. a is
// always a stored node's full-arity key; b may be a shorter search-bound
// prefix, in which case direction decides whether the prefix sorts before
// (-1) or after (+1) any full key sharing it.
func tupleCompare(shaper Shaper) KeyComparator[tupleKey] {
	return func(a, b tupleKey, direction int) int {
		n := len(a)
		if len(b) < n {
			n = len(b)
		}
		for i := 0; i < n; i++ {
			if c := shaper.Compare(a[i], b[i]); c != 0 {
				return c
			}
		}
		switch {
		case len(a) == len(b):
			return 0
		case len(b) < len(a): // b is the (possibly partial) search key
			if direction < 0 {
				return 1 // a sorts after the prefix
			}
			return -1 // direction > 0: a sorts before the prefix
		default: // len(a) < len(b); a is the partial key (symmetric case)
			if direction < 0 {
				return -1
			}
			return 1
		}
	}
}

// SkipListIndex is a skip-list-backed ordered secondary index, unique or
// multi-valued depending on Config.Unique.
type SkipListIndex struct {
	core         *SkipList[tupleKey, IndexElement]
	arity        int
	shaper       Shaper
	unique       bool
	allowPartial bool
}

// NewSkipListIndex constructs an empty index over the given number of
// attributes. allowPartial permits Find operators whose Params name
// fewer than arity attributes (a prefix bound); when false, such an
// operator fails with ErrBadParameter.
func NewSkipListIndex(cfg Config, arity int, shaper Shaper, allowPartial bool, gc *GarbageCollector) *SkipListIndex {
	idx := &SkipListIndex{arity: arity, shaper: shaper, unique: cfg.Unique, allowPartial: allowPartial}
	elemEq := func(a, b IndexElement) bool {
		return a.Handle == b.Handle && tupleEqual(a.Values, b.Values, shaper)
	}
	idx.core = New[tupleKey, IndexElement](cfg, tupleCompare(shaper), elemEq, gc)
	return idx
}

func cloneValues(v []any) []any {
	cp := make([]any, len(v))
	copy(cp, v)
	return cp
}

// Insert adds elem, stamped as inserted by tx.
func (idx *SkipListIndex) Insert(elem IndexElement, tx TxID) error {
	if len(elem.Values) != idx.arity {
		return ErrBadArity
	}
	key := cloneValues(elem.Values)
	var err error
	if idx.unique {
		_, err = idx.core.InsertUnique(key, elem, tx)
	} else {
		_, err = idx.core.InsertMulti(key, elem, tx)
	}
	return err
}

// Remove removes elem (matched by handle, for a multi index, since
// duplicate keys may coexist), stamped as deleted by tx.
func (idx *SkipListIndex) Remove(elem IndexElement, tx TxID) error {
	if len(elem.Values) != idx.arity {
		return ErrBadArity
	}
	match := func(v IndexElement) bool {
		if idx.unique {
			return true
		}
		return v.Handle == elem.Handle
	}
	return idx.core.Remove(elem.Values, match, tx)
}

// Update removes old and inserts new under the same transaction. This is
// not a single atomic skip-list primitive; it is composed here from
// Remove+Insert, which is safe because the caller is assumed to already
// serialise writers.
func (idx *SkipListIndex) Update(old, updated IndexElement, tx TxID) error {
	if err := idx.Remove(old, tx); err != nil {
		return err
	}
	return idx.Insert(updated, tx)
}

type interval struct{ left, right NodeID }

func (idx *SkipListIndex) intervalEmpty(iv interval) bool {
	return idx.core.NextNode(iv.left) == iv.right
}

// leastGE returns the least node whose key is >= key and visible to tx
// (the first excluded element for a "< key" range): the leftmost node of
// key's equal-run if one is visible, else the least strictly-greater
// node.
func (idx *SkipListIndex) leastGE(key tupleKey, tx TxID) NodeID {
	id, ok := idx.core.LookupKey(key, tx)
	if !ok {
		return idx.core.LookupRight(key, tx)
	}
	lo := id
	for {
		p := idx.core.PrevNode(lo)
		if p == idx.core.Head() || !tupleEqual(idx.core.Key(p), key, idx.shaper) {
			break
		}
		lo = p
	}
	return lo
}

// greatestLE is the symmetric helper for a "> key" range's excluded lower
// boundary.
func (idx *SkipListIndex) greatestLE(key tupleKey, tx TxID) NodeID {
	id, ok := idx.core.LookupKey(key, tx)
	if !ok {
		return idx.core.LookupLeft(key, tx)
	}
	hi := id
	for {
		n := idx.core.NextNode(hi)
		if n == idx.core.Tail() || !tupleEqual(idx.core.Key(n), key, idx.shaper) {
			break
		}
		hi = n
	}
	return hi
}

func (idx *SkipListIndex) bracketEqual(key tupleKey, tx TxID) (interval, bool) {
	id, ok := idx.core.LookupKey(key, tx)
	if !ok {
		return interval{}, false
	}
	lo, hi := id, id
	for {
		p := idx.core.PrevNode(lo)
		if p == idx.core.Head() || !tupleEqual(idx.core.Key(p), key, idx.shaper) {
			break
		}
		lo = p
	}
	for {
		n := idx.core.NextNode(hi)
		if n == idx.core.Tail() || !tupleEqual(idx.core.Key(n), key, idx.shaper) {
			break
		}
		hi = n
	}
	return interval{idx.core.PrevNode(lo), idx.core.NextNode(hi)}, true
}

// comparePos orders two nodes positionally within the skip list: head is
// the absolute minimum, tail the absolute maximum, otherwise by key, with
// ties (duplicate keys in a multi index) broken by structural forward
// distance from a.
func (idx *SkipListIndex) comparePos(a, b NodeID) int {
	if a == b {
		return 0
	}
	head, tail := idx.core.Head(), idx.core.Tail()
	switch {
	case a == head:
		return -1
	case b == head:
		return 1
	case a == tail:
		return 1
	case b == tail:
		return -1
	}
	ka, kb := idx.core.Key(a), idx.core.Key(b)
	n := len(ka)
	for i := 0; i < n; i++ {
		if c := idx.shaper.Compare(ka[i], kb[i]); c != 0 {
			return c
		}
	}
	for cur := a; cur != tail; cur = idx.core.NextNode(cur) {
		if cur == b {
			return -1
		}
	}
	return 1
}

func (idx *SkipListIndex) intervals(op *Operator, tx TxID) ([]interval, error) {
	head, tail := idx.core.Head(), idx.core.Tail()

	if op.Kind != KindAnd && op.Kind != KindOr && op.Kind != KindNot &&
		len(op.Params) < idx.arity && !idx.allowPartial {
		return nil, ErrBadParameter
	}

	switch op.Kind {
	case KindEq:
		key := tupleKey(op.Params)
		if len(key) == idx.arity {
			iv, ok := idx.bracketEqual(key, tx)
			if !ok {
				return nil, nil
			}
			return []interval{iv}, nil
		}
		return []interval{{idx.core.LookupLeft(key, tx), idx.core.LookupRight(key, tx)}}, nil

	case KindLt:
		key := tupleKey(op.Params)
		return []interval{{head, idx.leastGE(key, tx)}}, nil

	case KindLe:
		key := tupleKey(op.Params)
		return []interval{{head, idx.core.LookupRight(key, tx)}}, nil

	case KindGt:
		key := tupleKey(op.Params)
		return []interval{{idx.greatestLE(key, tx), tail}}, nil

	case KindGe:
		key := tupleKey(op.Params)
		return []interval{{idx.core.LookupLeft(key, tx), tail}}, nil

	case KindIn:
		var out []interval
		for _, v := range op.Params {
			key := tupleKey{v}
			iv, ok := idx.bracketEqual(key, tx)
			if ok {
				out = append(out, iv)
			}
		}
		return out, nil

	case KindAnd:
		left, err := idx.intervals(op.Left, tx)
		if err != nil {
			return nil, err
		}
		right, err := idx.intervals(op.Right, tx)
		if err != nil {
			return nil, err
		}
		var out []interval
		for _, a := range left {
			for _, b := range right {
				l := a.left
				if idx.comparePos(b.left, l) > 0 {
					l = b.left
				}
				r := a.right
				if idx.comparePos(b.right, r) < 0 {
					r = b.right
				}
				iv := interval{l, r}
				if !idx.intervalEmpty(iv) {
					out = append(out, iv)
				}
			}
		}
		return out, nil

	case KindOr:
		left, err := idx.intervals(op.Left, tx)
		if err != nil {
			return nil, err
		}
		right, err := idx.intervals(op.Right, tx)
		if err != nil {
			return nil, err
		}
		return append(left, right...), nil

	case KindNot, KindNe:
		return nil, ErrUnsupported

	default:
		return nil, ErrBadParameter
	}
}

// Find translates op into an iterator over this index's matching nodes,
// visible as of tx.
func (idx *SkipListIndex) Find(op *Operator, tx TxID) (Iterator, error) {
	if op == nil {
		return EmptyIterator(), nil
	}
	ivs, err := idx.intervals(op, tx)
	if err != nil {
		return nil, err
	}
	var kept []interval
	for _, iv := range ivs {
		if !idx.intervalEmpty(iv) {
			kept = append(kept, iv)
		}
	}
	if len(kept) == 0 {
		return EmptyIterator(), nil
	}
	return newSkipListIterator(idx, kept, tx), nil
}

// skipListIterator walks the live skip-list structure under MVCC
// visibility, rather than a materialised slice, so that concurrent writes
// to nodes outside the current cursor position are still reflected.
type skipListIterator struct {
	idx       *SkipListIndex
	tx        TxID
	intervals []interval
	pos       int    // index of current interval, -1 = before first, len = after last
	node      NodeID // current node within intervals[pos], meaningful only when 0 <= pos < len
	filter    func(DocHandle) bool
}

func newSkipListIterator(idx *SkipListIndex, ivs []interval, tx TxID) *skipListIterator {
	it := &skipListIterator{idx: idx, tx: tx, intervals: ivs}
	it.Reset(true)
	return it
}

func (it *skipListIterator) SetFilter(f func(DocHandle) bool) { it.filter = f }

func (it *skipListIterator) Reset(toBeginning bool) {
	if toBeginning {
		it.pos = -1
	} else {
		it.pos = len(it.intervals)
	}
}

func (it *skipListIterator) passes(id NodeID) bool {
	if !it.idx.core.IsVisible(id, it.tx) {
		return false
	}
	if it.filter == nil {
		return true
	}
	return it.filter(it.idx.core.Value(id).Handle)
}

// advance moves the cursor one structural step forward (forward=true) or
// backward, crossing interval boundaries as needed, and returns the next
// raw candidate node or false if the interval sequence is exhausted.
func (it *skipListIterator) advance(forward bool) (NodeID, bool) {
	for {
		if forward {
			if it.pos < 0 {
				it.pos = 0
				it.node = it.intervals[0].left
			}
			if it.pos >= len(it.intervals) {
				return 0, false
			}
			it.node = it.idx.core.NextNode(it.node)
			if it.node == it.intervals[it.pos].right {
				it.pos++
				if it.pos >= len(it.intervals) {
					return 0, false
				}
				it.node = it.intervals[it.pos].left
				continue
			}
			return it.node, true
		}
		if it.pos >= len(it.intervals) {
			it.pos = len(it.intervals) - 1
			it.node = it.intervals[it.pos].right
		}
		if it.pos < 0 {
			return 0, false
		}
		it.node = it.idx.core.PrevNode(it.node)
		if it.node == it.intervals[it.pos].left {
			it.pos--
			if it.pos < 0 {
				return 0, false
			}
			it.node = it.intervals[it.pos].right
			continue
		}
		return it.node, true
	}
}

func (it *skipListIterator) peekHas(forward bool) bool {
	save := *it
	_, ok := (&save).step(forward)
	return ok
}

func (it *skipListIterator) step(forward bool) (DocHandle, bool) {
	for {
		id, ok := it.advance(forward)
		if !ok {
			return 0, false
		}
		if it.passes(id) {
			return it.idx.core.Value(id).Handle, true
		}
	}
}

func (it *skipListIterator) HasNext() bool { return it.peekHas(true) }
func (it *skipListIterator) HasPrev() bool { return it.peekHas(false) }

func (it *skipListIterator) Next() (DocHandle, bool) { return it.step(true) }
func (it *skipListIterator) Prev() (DocHandle, bool) { return it.step(false) }

func (it *skipListIterator) Nexts(k int) (DocHandle, bool) {
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

func (it *skipListIterator) Prevs(k int) (DocHandle, bool) {
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
