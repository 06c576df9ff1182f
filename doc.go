// Package ordix is an ordered-index substrate for a document store: a
// probabilistic skip list (unique and multi-valued), a bitarray secondary
// index over a master block table, and a spatial index over the sphere
// using a Hilbert-curve linearisation with an AVL-balanced pot tree.
//
// The skip list and bitarray indexes are queried through a common operator
// tree (And/Or/Not/Eq/Ne/Lt/Le/Gt/Ge/In) and a common result iterator; the
// geo index's Find reports ErrUnsupported, and it is queried through
// PointsWithinRadius and NearestCount instead. Writers are expected to be
// serialised by the caller (one mutator at a time per index). In the skip
// list, readers run concurrently with a writer and with each other under
// an MVCC visibility rule keyed on caller-assigned transaction ids; the
// bitarray and geo index carry no MVCC stamps.
//
// The package does no I/O. Persistence, query planning, join execution,
// sharding, and replication are external concerns.
package ordix
