// Shared data-model types: the document handle, the index element triple,
// and the attribute shaper used to compare opaque attribute values.
package ordix

import (
	"cmp"
	"fmt"
)

// DocHandle is an opaque reference to a row in an external collection.
// The index treats it as an unowned pointer-equivalent: its lifetime
// outlives any index entry that references it.
type DocHandle uint64

// IndexElement is the triple an index stores: the owning document, its
// indexed attribute values (arity fixed per index), and the collection it
// belongs to. For the skip list and geo index, identity is the pair
// (Handle, Values); for the bitarray index only Handle is tracked.
type IndexElement struct {
	Handle     DocHandle
	Values     []any
	Collection string
}

// Shaper compares two opaque attribute values. It is supplied by an
// external collaborator (the document's attribute shaper); this package
// only ever calls Compare.
type Shaper interface {
	Compare(a, b any) int
}

// shaperFunc adapts a plain comparison function to the Shaper interface.
type shaperFunc func(a, b any) int

func (f shaperFunc) Compare(a, b any) int { return f(a, b) }

// DefaultShaper compares ints, floats, and strings via their natural
// ordering. It exists so the package is independently testable without an
// external shaper implementation; production callers supply their own.
var DefaultShaper Shaper = shaperFunc(defaultCompare)

func defaultCompare(a, b any) int {
	switch av := a.(type) {
	case int:
		bv := b.(int)
		return cmp.Compare(av, bv)
	case int64:
		bv := b.(int64)
		return cmp.Compare(av, bv)
	case float64:
		bv := b.(float64)
		return cmp.Compare(av, bv)
	case string:
		bv := b.(string)
		return cmp.Compare(av, bv)
	default:
		panic(fmt.Sprintf("ordix: DefaultShaper cannot compare %T", a))
	}
}
