// Bitarray secondary index: N columns of bit-arrays (one per recognised
// attribute value, plus an "other"/undef column) over a MasterBlockTable
// slot allocator.
//
// There is no MVCC here: a slot freed by Remove is immediately
// available to the next Insert, and the caller is expected to serialise
// mutations the same way it would any other index.
package ordix

// otherSentinel marks a value-list entry as the attribute's "anything
// else" bucket. Include Other in a value list passed to NewBitarray* to
// request one.
type otherSentinel struct{}

// Other is the sentinel value a caller includes in an attribute's value
// list to request a catch-all bucket for values outside the declared set.
var Other = otherSentinel{}

// Bitarray is a bitmap secondary index over fixed-width block columns.
// Construct with NewBitarray8/16/32/64 depending on the desired block
// width.
type Bitarray[W blockWord] struct {
	shaper        Shaper
	valueLists    [][]any
	colOffsets    []int
	numCols       int
	supportsUndef bool
	undefCol      int // -1 if !supportsUndef

	columns      [][]W
	mbt          *MasterBlockTable[W]
	bitsPerBlock int
}

func newBitarray[W blockWord](bitsPerBlock int, valueLists [][]any, supportsUndef bool, shaper Shaper) *Bitarray[W] {
	offsets := make([]int, len(valueLists))
	total := 0
	for j, l := range valueLists {
		offsets[j] = total
		total += len(l)
	}
	undefCol := -1
	if supportsUndef {
		undefCol = total
		total++
	}
	columns := make([][]W, total)
	for c := range columns {
		columns[c] = []W{}
	}
	return &Bitarray[W]{
		shaper:        shaper,
		valueLists:    valueLists,
		colOffsets:    offsets,
		numCols:       total,
		supportsUndef: supportsUndef,
		undefCol:      undefCol,
		columns:       columns,
		mbt:           newMasterBlockTable[W](bitsPerBlock),
		bitsPerBlock:  bitsPerBlock,
	}
}

// NewBitarray8 constructs an 8-bit-block bitarray index.
func NewBitarray8(valueLists [][]any, supportsUndef bool, shaper Shaper) *Bitarray[uint8] {
	return newBitarray[uint8](8, valueLists, supportsUndef, shaper)
}

// NewBitarray16 constructs a 16-bit-block bitarray index.
func NewBitarray16(valueLists [][]any, supportsUndef bool, shaper Shaper) *Bitarray[uint16] {
	return newBitarray[uint16](16, valueLists, supportsUndef, shaper)
}

// NewBitarray32 constructs a 32-bit-block bitarray index.
func NewBitarray32(valueLists [][]any, supportsUndef bool, shaper Shaper) *Bitarray[uint32] {
	return newBitarray[uint32](32, valueLists, supportsUndef, shaper)
}

// NewBitarray64 constructs a 64-bit-block bitarray index (the common
// case: fastest scan, widest free-bitmap).
func NewBitarray64(valueLists [][]any, supportsUndef bool, shaper Shaper) *Bitarray[uint64] {
	return newBitarray[uint64](64, valueLists, supportsUndef, shaper)
}

// NumCols reports the total column count (sum of value-list sizes plus
// the undef column, if any) — the width a Bitmask for this index must
// have.
func (b *Bitarray[W]) NumCols() int { return b.numCols }

// insertMask computes the one-hot-per-attribute bit pattern for elem.
// Returns ErrBadParameter if some attribute matches neither a declared
// value nor an Other sentinel and the index doesn't support undef.
func (b *Bitarray[W]) insertMask(elem IndexElement) (Bitmask, error) {
	mask := NewBitmask(b.numCols)
	anyMatch := false

	for j, values := range b.valueLists {
		matchedIdx, otherIdx := -1, -1
		for k, v := range values {
			if _, isOther := v.(otherSentinel); isOther {
				otherIdx = k
				continue
			}
			if b.shaper.Compare(v, elem.Values[j]) == 0 {
				matchedIdx = k
				break
			}
		}
		switch {
		case matchedIdx >= 0:
			mask.Set(b.colOffsets[j] + matchedIdx)
			anyMatch = true
		case otherIdx >= 0:
			mask.Set(b.colOffsets[j] + otherIdx)
			anyMatch = true
		case b.supportsUndef:
			// Attribute contributes zero bits; handled below.
		default:
			return Bitmask{}, ErrBadParameter
		}
	}

	// An element matching none of the declared values, with supportsUndef
	// enabled, sets the undef column unconditionally rather than one bit
	// per failing attribute.
	if !anyMatch && b.supportsUndef {
		mask.Set(b.undefCol)
	}
	return mask, nil
}

// Insert allocates a slot for elem and writes its column bits. tx is
// accepted for interface uniformity with the other index kinds but
// ignored: the bitarray carries no MVCC stamps.
func (b *Bitarray[W]) Insert(elem IndexElement, _ TxID) error {
	if len(elem.Values) != len(b.valueLists) {
		return ErrBadArity
	}
	mask, err := b.insertMask(elem)
	if err != nil {
		return err
	}

	before := b.mbt.NumBlocks()
	pos := b.mbt.Allocate(elem.Handle)
	if b.mbt.NumBlocks() > before {
		for c := range b.columns {
			var zero W
			b.columns[c] = append(b.columns[c], zero)
		}
	}

	for c := 0; c < b.numCols; c++ {
		if mask.Test(c) {
			b.columns[c][pos.block] |= W(1) << uint(pos.bit)
		} else {
			b.columns[c][pos.block] &^= W(1) << uint(pos.bit)
		}
	}
	return nil
}

// Remove frees elem's slot. Column bits are left as-is; queries ignore
// any position whose free-bit is set.
func (b *Bitarray[W]) Remove(elem IndexElement, _ TxID) error {
	_, ok := b.mbt.Free(elem.Handle)
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (b *Bitarray[W]) observedAt(block, bit int) Bitmask {
	v := NewBitmask(b.numCols)
	for c := 0; c < b.numCols; c++ {
		if b.columns[c][block]&(W(1)<<uint(bit)) != 0 {
			v.Set(c)
		}
	}
	return v
}

// QueryMask returns every occupied handle whose observed column pattern
// satisfies (observed|ignore) == (mask|ignore).
func (b *Bitarray[W]) QueryMask(mask, ignore Bitmask) []DocHandle {
	target := mask.Or(ignore)
	var out []DocHandle
	for blk := 0; blk < b.mbt.NumBlocks(); blk++ {
		for bit := 0; bit < b.bitsPerBlock; bit++ {
			if b.mbt.IsFree(blk, bit) {
				continue
			}
			v := b.observedAt(blk, bit).Or(ignore)
			if v.Equal(target) {
				out = append(out, b.mbt.HandleAt(blk, bit))
			}
		}
	}
	return out
}

// MaskPair is one alternative of a mask-set query: a disjunction of
// (mask, ignore) patterns, first match wins per position.
type MaskPair struct{ Mask, Ignore Bitmask }

// QueryMaskSet evaluates each pair against every occupied position,
// emitting the handle on the first pair that matches.
func (b *Bitarray[W]) QueryMaskSet(pairs []MaskPair) []DocHandle {
	targets := make([]Bitmask, len(pairs))
	for i, p := range pairs {
		targets[i] = p.Mask.Or(p.Ignore)
	}
	var out []DocHandle
	for blk := 0; blk < b.mbt.NumBlocks(); blk++ {
		for bit := 0; bit < b.bitsPerBlock; bit++ {
			if b.mbt.IsFree(blk, bit) {
				continue
			}
			observed := b.observedAt(blk, bit)
			for i, p := range pairs {
				if observed.Or(p.Ignore).Equal(targets[i]) {
					out = append(out, b.mbt.HandleAt(blk, bit))
					break
				}
			}
		}
	}
	return out
}

// Update is not supported by the bitarray index.
func (b *Bitarray[W]) Update(old, updated IndexElement, tx TxID) error {
	return ErrUnsupported
}

// Find translates only a top-level Eq or And-of-Eq operator shape into a
// QueryMask call; the bitarray's native query protocol is the direct
// mask/mask-set pair, not an operator tree. Every other kind (In, Or,
// Not, Ne, Lt/Le/Gt/Ge) reports ErrUnsupported.
func (b *Bitarray[W]) Find(op *Operator, tx TxID) (Iterator, error) {
	mask, ignore, err := b.maskFromOperator(op)
	if err != nil {
		return nil, err
	}
	handles := b.QueryMask(mask, ignore)
	if len(handles) == 0 {
		return EmptyIterator(), nil
	}
	return newSliceIterator(handles), nil
}

// matchColumn finds the column within attribute j's value list that v
// resolves to: an exact shaper match, or the attribute's Other bucket if
// v is itself the Other sentinel or matches none of the declared values
// and one was declared.
func (b *Bitarray[W]) matchColumn(j int, v any) (col int, ok bool) {
	_, vIsOther := v.(otherSentinel)
	for k, lv := range b.valueLists[j] {
		_, lvIsOther := lv.(otherSentinel)
		if lvIsOther {
			if vIsOther {
				return b.colOffsets[j] + k, true
			}
			continue
		}
		if vIsOther {
			continue
		}
		if b.shaper.Compare(lv, v) == 0 {
			return b.colOffsets[j] + k, true
		}
	}
	return 0, false
}

func (b *Bitarray[W]) maskFromOperator(op *Operator) (mask, ignore Bitmask, err error) {
	ignore = NewBitmask(b.numCols)
	mask = NewBitmask(b.numCols)
	for c := 0; c < b.numCols; c++ {
		ignore.Set(c)
	}

	var walk func(op *Operator) error
	walk = func(op *Operator) error {
		switch op.Kind {
		case KindAnd:
			if err := walk(op.Left); err != nil {
				return err
			}
			return walk(op.Right)
		case KindEq:
			switch len(op.Params) {
			case len(b.valueLists):
				// Full-tuple Eq: params[j] is the value for attribute j.
				for j, v := range op.Params {
					col, ok := b.matchColumn(j, v)
					if !ok {
						return ErrBadParameter
					}
					mask.Set(col)
					ignore.words[col/64] &^= 1 << uint(col%64)
				}
				return nil
			case 1:
				// Single-attribute Eq, as composed under And: bind the
				// first not-yet-bound attribute whose value list admits
				// this value.
				v := op.Params[0]
				for j := range b.valueLists {
					bound := false
					for k := range b.valueLists[j] {
						if !ignore.Test(b.colOffsets[j] + k) {
							bound = true
							break
						}
					}
					if col, ok := b.matchColumn(j, v); ok && !bound {
						mask.Set(col)
						ignore.words[col/64] &^= 1 << uint(col%64)
						return nil
					}
				}
				return ErrBadParameter
			default:
				return ErrBadArity
			}
		default:
			return ErrUnsupported
		}
	}
	if op == nil {
		return Bitmask{}, Bitmask{}, ErrBadParameter
	}
	if err := walk(op); err != nil {
		return Bitmask{}, Bitmask{}, err
	}
	return mask, ignore, nil
}
