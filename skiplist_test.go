package ordix

import (
	"cmp"
	"testing"
)

func intCmp(a, b int, direction int) int {
	c := cmp.Compare(a, b)
	_ = direction
	return c
}

// newTestUniqueList builds a small unique skip list over int keys, with
// no garbage collector (immediate reclaim) so tests don't need to drive
// a watermark.
func newTestUniqueList(t *testing.T) *SkipList[int, string] {
	t.Helper()
	return New[int, string](Config{Unique: true}, intCmp, nil, nil)
}

// TestSkipListOrdering verifies the Testable Property that walking
// forward from the head always yields ascending key order, regardless
// of insertion order.
func TestSkipListOrdering(t *testing.T) {
	sl := newTestUniqueList(t)
	for _, k := range []int{5, 1, 9, 3, 7} {
		if _, err := sl.InsertUnique(k, "v", 0); err != nil {
			t.Fatalf("InsertUnique(%d): %v", k, err)
		}
	}

	var got []int
	for cur := sl.NextNode(sl.Head()); cur != sl.Tail(); cur = sl.NextNode(cur) {
		got = append(got, sl.Key(cur))
	}
	want := []int{1, 3, 5, 7, 9}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

// TestSkipListForwardBackwardSymmetry verifies that walking forward
// then backward from tail retraces the same nodes in reverse — the
// link-symmetry Testable Property.
func TestSkipListForwardBackwardSymmetry(t *testing.T) {
	sl := newTestUniqueList(t)
	for _, k := range []int{1, 2, 3, 4} {
		sl.InsertUnique(k, "v", 0)
	}

	var fwd []int
	for cur := sl.NextNode(sl.Head()); cur != sl.Tail(); cur = sl.NextNode(cur) {
		fwd = append(fwd, sl.Key(cur))
	}
	var rev []int
	for cur := sl.PrevNode(sl.Tail()); cur != sl.Head(); cur = sl.PrevNode(cur) {
		rev = append(rev, sl.Key(cur))
	}
	for i, k := range fwd {
		if rev[len(rev)-1-i] != k {
			t.Fatalf("asymmetric links: fwd=%v rev=%v", fwd, rev)
		}
	}
}

func TestInsertUniqueConflict(t *testing.T) {
	sl := newTestUniqueList(t)
	if _, err := sl.InsertUnique(1, "a", 0); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := sl.InsertUnique(1, "b", 1); err != ErrUniqueConstraintViolation {
		t.Errorf("second insert = %v, want ErrUniqueConstraintViolation", err)
	}
}

func TestInsertMultiDuplicateItem(t *testing.T) {
	elemEq := func(a, b string) bool { return a == b }
	sl := New[int, string](Config{}, intCmp, elemEq, nil)
	if _, err := sl.InsertMulti(1, "a", 0); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := sl.InsertMulti(1, "a", 0); err != ErrDuplicateItem {
		t.Errorf("duplicate insert = %v, want ErrDuplicateItem", err)
	}
	if _, err := sl.InsertMulti(1, "b", 0); err != nil {
		t.Errorf("distinct value under same key: %v", err)
	}
	if sl.Len() != 2 {
		t.Errorf("Len() = %d, want 2", sl.Len())
	}
}

// TestMVCCVisibility verifies inserted_by <= tx < deleted_by: a node
// inserted by tx=5 is invisible to tx=3 and visible to tx=5 and tx=10.
func TestMVCCVisibility(t *testing.T) {
	sl := newTestUniqueList(t)
	id, err := sl.InsertUnique(1, "v", 5)
	if err != nil {
		t.Fatalf("InsertUnique: %v", err)
	}
	if sl.IsVisible(id, 3) {
		t.Errorf("node visible to a tx older than its insert")
	}
	if !sl.IsVisible(id, 5) || !sl.IsVisible(id, 10) {
		t.Errorf("node should be visible to its inserting tx and later ones")
	}
}

func TestRemoveNotFound(t *testing.T) {
	sl := newTestUniqueList(t)
	if err := sl.Remove(1, nil, 0); err != ErrNotFound {
		t.Errorf("Remove on empty list = %v, want ErrNotFound", err)
	}
}

func TestRemoveUnlinksAtEveryLevel(t *testing.T) {
	sl := newTestUniqueList(t)
	for _, k := range []int{1, 2, 3, 4, 5} {
		sl.InsertUnique(k, "v", 0)
	}
	if err := sl.Remove(3, nil, 1); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, ok := sl.LookupKey(3, 1); ok {
		t.Errorf("removed key still visible")
	}
	if sl.Len() != 4 {
		t.Errorf("Len() = %d, want 4", sl.Len())
	}
	var got []int
	for cur := sl.NextNode(sl.Head()); cur != sl.Tail(); cur = sl.NextNode(cur) {
		got = append(got, sl.Key(cur))
	}
	want := []int{1, 2, 4, 5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

// TestRemoveIsLogicalUntilGC verifies the MVCC testable property across a
// Remove (spec scenario: insert(5,tx=1), remove(5,tx=3), find(Eq(5),tx=2)
// yields one, find(Eq(5),tx=4) yields zero, same index state either way).
// A reader at a transaction older than the removal must still find the
// node — it stays linked — while a reader at or after the removal does
// not; the node is only physically unlinked once the garbage collector's
// watermark has advanced past the removing transaction.
func TestRemoveIsLogicalUntilGC(t *testing.T) {
	watermark := TxID(0)
	gc := NewGarbageCollector(func() TxID { return watermark })
	sl := New[int, string](Config{Unique: true}, intCmp, nil, gc)

	if _, err := sl.InsertUnique(5, "v", 1); err != nil {
		t.Fatalf("InsertUnique: %v", err)
	}
	if err := sl.Remove(5, nil, 3); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if _, ok := sl.LookupKey(5, 2); !ok {
		t.Errorf("LookupKey(5, tx=2) should still see the pre-removal node")
	}
	if _, ok := sl.LookupKey(5, 4); ok {
		t.Errorf("LookupKey(5, tx=4) should not see the removed node")
	}

	// Ghosted, but still structurally linked: the GC watermark hasn't
	// advanced past tx=3 yet, so nothing has physically unlinked it.
	if sl.NextNode(sl.Head()) == sl.Tail() {
		t.Fatalf("ghosted node was unlinked before the GC watermark advanced")
	}

	watermark = 10
	gc.Drain() // pass 1: quiesce
	gc.Drain() // pass 2: unlink + reclaim

	if sl.NextNode(sl.Head()) != sl.Tail() {
		t.Errorf("node should be physically unlinked once the watermark passed deletedBy")
	}
}

func TestLookupLeftRight(t *testing.T) {
	sl := newTestUniqueList(t)
	for _, k := range []int{10, 20, 30} {
		sl.InsertUnique(k, "v", 0)
	}
	left := sl.LookupLeft(20, 0)
	if left == sl.Head() || sl.Key(left) != 10 {
		t.Errorf("LookupLeft(20) = %v, want key 10", left)
	}
	right := sl.LookupRight(20, 0)
	if right == sl.Tail() || sl.Key(right) != 30 {
		t.Errorf("LookupRight(20) = %v, want key 30", right)
	}
	if sl.LookupLeft(10, 0) != sl.Head() {
		t.Errorf("LookupLeft(10) should be head (nothing smaller)")
	}
	if sl.LookupRight(30, 0) != sl.Tail() {
		t.Errorf("LookupRight(30) should be tail (nothing larger)")
	}
}

// TestMaxHeightCap verifies Config.MaxHeight never exceeds
// AbsoluteMaxHeight even when requested larger.
func TestMaxHeightCap(t *testing.T) {
	sl := New[int, string](Config{MaxHeight: 1000}, intCmp, nil, nil)
	if sl.cfg.MaxHeight != AbsoluteMaxHeight {
		t.Errorf("MaxHeight = %d, want %d", sl.cfg.MaxHeight, AbsoluteMaxHeight)
	}
}

// TestGhostedInsertAllocatesNew verifies a key match that is not yet
// visible to the inserting transaction (here, a node inserted by a
// later tx than the one now inserting the same key) is treated as
// strictly greater rather than a conflict: a new node is allocated and
// both coexist, rather than the earlier tx resurrecting or displacing
// the later one.
func TestGhostedInsertAllocatesNew(t *testing.T) {
	sl := newTestUniqueList(t)

	future, err := sl.InsertUnique(1, "from-the-future", 5)
	if err != nil {
		t.Fatalf("InsertUnique(tx=5): %v", err)
	}
	if sl.IsVisible(future, 0) {
		t.Fatalf("node inserted by tx=5 should not be visible to tx=0")
	}

	earlier, err := sl.InsertUnique(1, "from-tx-0", 0)
	if err != nil {
		t.Fatalf("InsertUnique(tx=0) over an invisible same-key node: %v", err)
	}
	if earlier == future {
		t.Fatalf("expected a distinct freshly allocated node")
	}
	if v, ok := sl.LookupKey(1, 0); !ok || v != earlier {
		t.Errorf("LookupKey(1, tx=0) should resolve to the tx=0 node")
	}
	if v, ok := sl.LookupKey(1, 5); !ok || v != future {
		t.Errorf("LookupKey(1, tx=5) should resolve to the tx=5 node")
	}
}
