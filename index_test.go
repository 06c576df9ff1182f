package ordix

import "testing"

func TestNewSkipListDispatch(t *testing.T) {
	idx, err := New(Descriptor{
		Kind: KindSkipList, Unique: true, NumAttributes: 1, Shaper: DefaultShaper,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := idx.(*SkipListIndex); !ok {
		t.Errorf("New(KindSkipList) = %T, want *SkipListIndex", idx)
	}
	if err := idx.Insert(IndexElement{Handle: 1, Values: []any{5}}, 0); err != nil {
		t.Errorf("Insert via New-constructed index: %v", err)
	}
}

func TestNewSkipListRequiresShaper(t *testing.T) {
	_, err := New(Descriptor{Kind: KindSkipList, NumAttributes: 1})
	if err != ErrBadParameter {
		t.Errorf("New without a Shaper = %v, want ErrBadParameter", err)
	}
}

func TestNewRequiresNumAttributes(t *testing.T) {
	_, err := New(Descriptor{Kind: KindSkipList, Shaper: DefaultShaper})
	if err != ErrBadArity {
		t.Errorf("New with NumAttributes=0 = %v, want ErrBadArity", err)
	}
}

func TestNewBitarrayDispatch(t *testing.T) {
	vls := [][]any{{"red", "blue"}}
	idx, err := New(Descriptor{
		Kind: KindBitarray, NumAttributes: 1, ValueLists: vls,
		BlockWidth: 16, Shaper: DefaultShaper,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := idx.(*Bitarray[uint16]); !ok {
		t.Errorf("New(KindBitarray, BlockWidth=16) = %T, want *Bitarray[uint16]", idx)
	}
}

func TestNewBitarrayValueListArityMismatch(t *testing.T) {
	_, err := New(Descriptor{
		Kind: KindBitarray, NumAttributes: 2, ValueLists: [][]any{{"a"}},
		Shaper: DefaultShaper,
	})
	if err != ErrBadArity {
		t.Errorf("New with mismatched ValueLists = %v, want ErrBadArity", err)
	}
}

func TestNewBitarrayBadBlockWidth(t *testing.T) {
	_, err := New(Descriptor{
		Kind: KindBitarray, NumAttributes: 1, ValueLists: [][]any{{"a"}},
		BlockWidth: 7, Shaper: DefaultShaper,
	})
	if err != ErrBadParameter {
		t.Errorf("New with BlockWidth=7 = %v, want ErrBadParameter", err)
	}
}

func TestNewGeoDispatch(t *testing.T) {
	idx, err := New(Descriptor{Kind: KindGeo, FixedPointSet: FixedPointsTriangle})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := idx.(*GeoIndex); !ok {
		t.Errorf("New(KindGeo) = %T, want *GeoIndex", idx)
	}
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New(Descriptor{Kind: IndexKind(99), NumAttributes: 1})
	if err != ErrBadParameter {
		t.Errorf("New with unknown kind = %v, want ErrBadParameter", err)
	}
}

func TestSparseIndexSkipsMissingAttribute(t *testing.T) {
	idx, err := New(Descriptor{
		Kind: KindSkipList, NumAttributes: 1, Sparse: true, Shaper: DefaultShaper,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := idx.(sparseIndex); !ok {
		t.Fatalf("New(Sparse: true) = %T, want sparseIndex", idx)
	}

	if err := idx.Insert(IndexElement{Handle: 1, Values: []any{nil}}, 0); err != nil {
		t.Errorf("sparse Insert with a missing attribute should be a silent no-op, got %v", err)
	}
	eq, _ := Create(KindEq, nil, nil, []any{5}, DefaultShaper, 1)
	it, err := idx.Find(eq, 0)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if it.HasNext() {
		t.Errorf("sparse index should not have indexed the missing-attribute element")
	}

	if err := idx.Insert(IndexElement{Handle: 2, Values: []any{5}}, 0); err != nil {
		t.Fatalf("Insert with all attributes present: %v", err)
	}
	it2, _ := idx.Find(eq, 0)
	if !it2.HasNext() {
		t.Errorf("sparse index should have indexed the complete element")
	}
}

func TestSparseIndexUpdateTransitions(t *testing.T) {
	idx, _ := New(Descriptor{
		Kind: KindSkipList, NumAttributes: 1, Sparse: true, Shaper: DefaultShaper,
	})
	eq5, _ := Create(KindEq, nil, nil, []any{5}, DefaultShaper, 1)
	eq6, _ := Create(KindEq, nil, nil, []any{6}, DefaultShaper, 1)

	// Present -> missing: Update degrades to a Remove.
	idx.Insert(IndexElement{Handle: 1, Values: []any{5}}, 0)
	if err := idx.Update(
		IndexElement{Handle: 1, Values: []any{5}},
		IndexElement{Handle: 1, Values: []any{nil}},
		1,
	); err != nil {
		t.Fatalf("Update present->missing: %v", err)
	}
	it, _ := idx.Find(eq5, 1)
	if it.HasNext() {
		t.Errorf("key 5 should have been removed when updated to a missing attribute")
	}

	// Missing -> present: Update degrades to an Insert.
	if err := idx.Update(
		IndexElement{Handle: 2, Values: []any{nil}},
		IndexElement{Handle: 2, Values: []any{6}},
		2,
	); err != nil {
		t.Fatalf("Update missing->present: %v", err)
	}
	it2, _ := idx.Find(eq6, 2)
	if !it2.HasNext() {
		t.Errorf("key 6 should have been inserted when updated from a missing attribute")
	}
}
