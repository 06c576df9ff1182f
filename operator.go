// IndexOperator tree: the query predicate AST every index's Find walks to
// compute result intervals.
//
// Operator is a recursive sum: logical nodes (And, Or, Not) own their
// children; relational leaves (Eq, Ne, Lt, Le, Gt, Ge, In) own a parameter
// list and borrow a Shaper to compare it against index keys. Traversal is
// always depth-first.
package ordix

import (
	json "github.com/goccy/go-json"
)

// Kind identifies an IndexOperator node.
type Kind int

const (
	KindAnd Kind = iota
	KindOr
	KindNot
	KindEq
	KindNe
	KindLt
	KindLe
	KindGt
	KindGe
	KindIn
)

func (k Kind) String() string {
	switch k {
	case KindAnd:
		return "And"
	case KindOr:
		return "Or"
	case KindNot:
		return "Not"
	case KindEq:
		return "Eq"
	case KindNe:
		return "Ne"
	case KindLt:
		return "Lt"
	case KindLe:
		return "Le"
	case KindGt:
		return "Gt"
	case KindGe:
		return "Ge"
	case KindIn:
		return "In"
	default:
		return "Unknown"
	}
}

// IsLogical reports whether k is And, Or, or Not.
func (k Kind) IsLogical() bool {
	return k == KindAnd || k == KindOr || k == KindNot
}

// Operator is a node in the index predicate tree.
type Operator struct {
	Kind   Kind
	Left   *Operator // both logical kinds and Not use Left as the sole/first child
	Right  *Operator // And/Or only; nil for Not and for relational leaves
	Params []any     // relational leaves only: 1..arity attribute values
	Shaper Shaper
	Arity  int // number of attributes this leaf compares
}

// Create allocates an operator node. indexArity is the number of
// attributes the owning index is defined over. Logical kinds require a
// left child (And/Or require a right child too; Not must not have one).
// Relational kinds require 1..indexArity parameters and a non-nil shaper.
func Create(kind Kind, left, right *Operator, params []any, shaper Shaper, indexArity int) (*Operator, error) {
	if indexArity <= 0 {
		return nil, ErrBadArity
	}

	if kind.IsLogical() {
		if left == nil {
			return nil, ErrBadParameter
		}
		switch kind {
		case KindNot:
			if right != nil {
				return nil, ErrBadParameter
			}
		default: // And, Or
			if right == nil {
				return nil, ErrBadParameter
			}
		}
		return &Operator{Kind: kind, Left: left, Right: right}, nil
	}

	arity := len(params)
	if arity == 0 || arity > indexArity {
		return nil, ErrBadArity
	}
	if shaper == nil {
		return nil, ErrBadParameter
	}

	cp := make([]any, arity)
	copy(cp, params)
	return &Operator{Kind: kind, Params: cp, Shaper: shaper, Arity: arity}, nil
}

// Copy deep-clones an operator tree, including parameter values. Mutating
// the copy never affects the original.
func Copy(op *Operator) *Operator {
	if op == nil {
		return nil
	}
	out := &Operator{
		Kind:   op.Kind,
		Shaper: op.Shaper,
		Arity:  op.Arity,
	}
	if op.Left != nil {
		out.Left = Copy(op.Left)
	}
	if op.Right != nil {
		out.Right = Copy(op.Right)
	}
	if op.Params != nil {
		out.Params = make([]any, len(op.Params))
		copy(out.Params, op.Params)
	}
	return out
}

// Free recursively releases a node's children and its owned parameter
// values. Go's collector reclaims the memory; Free exists so the explicit
// lifecycle the operator tree documents (create/copy/free) has a concrete
// call a caller can make.
func Free(op *Operator) {
	if op == nil {
		return
	}
	Free(op.Left)
	Free(op.Right)
	op.Left = nil
	op.Right = nil
	op.Params = nil
	op.Shaper = nil
}

// describeOperator is the JSON shape Describe/MarshalJSON produce, used by
// tests to snapshot a tree without comparing pointer-bearing structs.
type describeOperator struct {
	Kind   string              `json:"kind"`
	Left   *describeOperator   `json:"left,omitempty"`
	Right  *describeOperator   `json:"right,omitempty"`
	Params []any               `json:"params,omitempty"`
	Arity  int                 `json:"arity,omitempty"`
}

func toDescribe(op *Operator) *describeOperator {
	if op == nil {
		return nil
	}
	return &describeOperator{
		Kind:   op.Kind.String(),
		Left:   toDescribe(op.Left),
		Right:  toDescribe(op.Right),
		Params: op.Params,
		Arity:  op.Arity,
	}
}

// Describe renders an operator tree as a JSON string for debugging and
// test fixtures.
func Describe(op *Operator) (string, error) {
	b, err := json.Marshal(toDescribe(op))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
