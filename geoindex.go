// Spatial index: slots carrying (lat, lon, handle) linearised by a
// Hilbert curve and held in pots (leaves of up to potCapacity slots)
// joined by an AVL-balanced binary tree keyed on Hilbert range. Each pot
// additionally tracks, per fixed reference point, the maximum distance
// of any descendant slot — the bound a radius/k-nearest search uses to
// prune whole subtrees.
package ordix

import (
	"container/heap"
	"math"
	"sort"
	"sync"
)

// potCapacity is the number of slots a leaf pot holds before it splits.
const potCapacity = 6

type potID int32

const potNil potID = -1

type geoSlot struct {
	lat, lon float64
	handle   DocHandle
	hilbert  uint64
	emb      embedding
	free     bool
}

// pot is either a leaf (slots != nil) or an internal node (left/right !=
// potNil) never both. start/middle/end is the Hilbert-range triple;
// middle is the split point a descent compares against to choose a
// child. level is the node's AVL level; maxdist[i] is the largest SNMD
// from any descendant slot to fixedPoints[i].
type pot struct {
	leaf               bool
	slots              []int32
	left, right        potID
	start, middle, end uint64
	level              int
	maxdist            []float64
}

// FixedPointSet names a constellation of reference points used to prune
// the geo search tree. Octahedron6 is the default (the zero value).
type FixedPointSet int

const (
	FixedPointsOctahedron6 FixedPointSet = iota // ±x, ±y, ±z axes, 6 points (default)
	FixedPointsNS                               // north/south poles, 2 points
	FixedPointsTriangle                         // equatorial triangle, 3 points
	FixedPointsTetrahedron                      // 4 points
	FixedPointsBipyramid5                       // poles + equatorial triangle, 5 points
	FixedPointsCube8                            // cube vertices, 8 points
)

// Points returns the unit-sphere embeddings of the set's reference
// points.
func (f FixedPointSet) Points() []embedding {
	const s3 = 0.5773502691896258 // 1/sqrt(3)
	switch f {
	case FixedPointsNS:
		return []embedding{{0, 0, 1}, {0, 0, -1}}
	case FixedPointsTriangle:
		return equatorialTriangle()
	case FixedPointsTetrahedron:
		return []embedding{
			{s3, s3, s3}, {s3, -s3, -s3}, {-s3, s3, -s3}, {-s3, -s3, s3},
		}
	case FixedPointsBipyramid5:
		return append([]embedding{{0, 0, 1}, {0, 0, -1}}, equatorialTriangle()...)
	case FixedPointsCube8:
		return []embedding{
			{s3, s3, s3}, {s3, s3, -s3}, {s3, -s3, s3}, {s3, -s3, -s3},
			{-s3, s3, s3}, {-s3, s3, -s3}, {-s3, -s3, s3}, {-s3, -s3, -s3},
		}
	default: // FixedPointsOctahedron6
		return []embedding{
			{1, 0, 0}, {-1, 0, 0}, {0, 1, 0}, {0, -1, 0}, {0, 0, 1}, {0, 0, -1},
		}
	}
}

func equatorialTriangle() []embedding {
	out := make([]embedding, 3)
	for i := 0; i < 3; i++ {
		a := float64(i) * 2 * math.Pi / 3
		out[i] = embedding{math.Cos(a), math.Sin(a), 0}
	}
	return out
}

// GeoIndex is a Hilbert-curve spatial index over (lat, lon, handle)
// points, supporting radius and k-nearest queries. There is no MVCC
// here; tx arguments are accepted for interface uniformity and ignored.
type GeoIndex struct {
	mu sync.RWMutex

	slots     []geoSlot
	freeSlots []int32

	pots     []pot
	freePots []potID
	root     potID

	fixedPoints []embedding
}

// NewGeoIndex constructs an empty geo index using the given fixed
// reference point constellation for pruning.
func NewGeoIndex(points FixedPointSet) *GeoIndex {
	return &GeoIndex{root: potNil, fixedPoints: points.Points()}
}

func (g *GeoIndex) numFixed() int { return len(g.fixedPoints) }

func (g *GeoIndex) allocSlot(s geoSlot) int32 {
	if n := len(g.freeSlots); n > 0 {
		id := g.freeSlots[n-1]
		g.freeSlots = g.freeSlots[:n-1]
		g.slots[id] = s
		return id
	}
	g.slots = append(g.slots, s)
	return int32(len(g.slots) - 1)
}

func (g *GeoIndex) freeSlot(id int32) {
	g.slots[id] = geoSlot{free: true}
	g.freeSlots = append(g.freeSlots, id)
}

func (g *GeoIndex) allocPot(p pot) potID {
	if n := len(g.freePots); n > 0 {
		id := g.freePots[n-1]
		g.freePots = g.freePots[:n-1]
		g.pots[id] = p
		return id
	}
	g.pots = append(g.pots, p)
	return potID(len(g.pots) - 1)
}

func (g *GeoIndex) freePot(id potID) {
	g.pots[id] = pot{}
	g.freePots = append(g.freePots, id)
}

func newLeafMaxdist(n int) []float64 {
	return make([]float64, n)
}

// leafRange computes a leaf pot's Hilbert start/end from its slots: the
// least and greatest Hilbert value among them. It does not compute a
// middle; leaf pots set middle to start, and only internal pots route
// descents by middle.
func (g *GeoIndex) leafRange(slotIDs []int32) (start, end uint64) {
	start, end = ^uint64(0), 0
	for _, id := range slotIDs {
		h := g.slots[id].hilbert
		if h < start {
			start = h
		}
		if h > end {
			end = h
		}
	}
	return start, end
}

func (g *GeoIndex) recomputeLeafMaxima(p *pot) {
	for i := range p.maxdist {
		var m float64
		for _, id := range p.slots {
			if d := snmd(g.slots[id].emb, g.fixedPoints[i]); d > m {
				m = d
			}
		}
		p.maxdist[i] = m
	}
}

func (g *GeoIndex) recomputeInternalMaxima(p *pot, left, right *pot) {
	for i := range p.maxdist {
		m := left.maxdist[i]
		if right.maxdist[i] > m {
			m = right.maxdist[i]
		}
		p.maxdist[i] = m
	}
}

// Insert validates elem.Values as (lat, lon float64) and adds it under
// elem.Handle. tx is accepted for interface uniformity and ignored.
func (g *GeoIndex) Insert(elem IndexElement, _ TxID) error {
	lat, lon, err := geoCoords(elem)
	if err != nil {
		return err
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return ErrInvalidCoordinate
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	slotID := g.allocSlot(geoSlot{
		lat: lat, lon: lon, handle: elem.Handle,
		hilbert: hilbert(lat, lon), emb: embed(lat, lon),
	})
	g.root = g.insertInto(g.root, slotID)
	return nil
}

func (g *GeoIndex) insertInto(id potID, slotID int32) potID {
	if id == potNil {
		start, end := g.leafRange([]int32{slotID})
		p := pot{leaf: true, slots: []int32{slotID}, start: start, middle: start, end: end, level: 0, maxdist: newLeafMaxdist(g.numFixed())}
		g.recomputeLeafMaxima(&p)
		return g.allocPot(p)
	}

	p := &g.pots[id]
	if p.leaf {
		if len(p.slots) < potCapacity {
			p.slots = append(p.slots, slotID)
			p.start, p.end = g.leafRange(p.slots)
			g.recomputeLeafMaxima(p)
			return id
		}
		// Split: redistribute the full leaf plus the new slot by Hilbert
		// order, half to each sibling.
		all := append(append([]int32{}, p.slots...), slotID)
		sortSlotsByHilbert(all, g.slots)
		mid := len(all) / 2
		// Cap the left half so a later append to it cannot overwrite the
		// right half's slots in the shared backing array.
		leftSlots, rightSlots := all[:mid:mid], all[mid:]

		lStart, lEnd := g.leafRange(leftSlots)
		lp := pot{leaf: true, slots: leftSlots, start: lStart, middle: lStart, end: lEnd, maxdist: newLeafMaxdist(g.numFixed())}
		g.recomputeLeafMaxima(&lp)
		leftID := g.allocPot(lp)

		rStart, rEnd := g.leafRange(rightSlots)
		rp := pot{leaf: true, slots: rightSlots, start: rStart, middle: rStart, end: rEnd, maxdist: newLeafMaxdist(g.numFixed())}
		g.recomputeLeafMaxima(&rp)
		rightID := g.allocPot(rp)

		// allocPot may have grown g.pots and reallocated its backing
		// array: p is potentially stale, re-fetch before writing through
		// it or the split is silently lost into the orphaned old array.
		p = &g.pots[id]
		*p = pot{
			leaf: false, left: leftID, right: rightID,
			start: lStart, middle: rStart, end: rEnd,
			level: 1, maxdist: newLeafMaxdist(g.numFixed()),
		}
		g.recomputeInternalMaxima(p, &g.pots[leftID], &g.pots[rightID])
		return g.rebalance(id)
	}

	middle, oldLeft, oldRight := p.middle, p.left, p.right
	h := g.slots[slotID].hilbert
	var newLeft, newRight potID
	if h < middle {
		newLeft, newRight = g.insertInto(oldLeft, slotID), oldRight
	} else {
		newLeft, newRight = oldLeft, g.insertInto(oldRight, slotID)
	}
	// The recursive insertInto above may itself have split a descendant
	// leaf and grown g.pots, so p must be re-fetched before use: the same
	// realloc hazard as the split branch above.
	p = &g.pots[id]
	p.left, p.right = newLeft, newRight
	left, right := &g.pots[p.left], &g.pots[p.right]
	p.start, p.middle, p.end = left.start, right.start, right.end
	p.level = max(left.level, right.level) + 1
	g.recomputeInternalMaxima(p, left, right)
	return g.rebalance(id)
}

func sortSlotsByHilbert(ids []int32, slots []geoSlot) {
	// Insertion sort: leaves hold at most potCapacity+1 items, so this
	// never needs to beat O(n log n).
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && slots[ids[j-1]].hilbert > slots[ids[j]].hilbert; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

func (g *GeoIndex) levelOf(id potID) int {
	if id == potNil {
		return -1
	}
	return g.pots[id].level
}

// rebalance restores |leftLevel - rightLevel| <= 1 at id via an
// AVL-style single or double rotation, returning the (possibly new)
// subtree root.
func (g *GeoIndex) rebalance(id potID) potID {
	p := &g.pots[id]
	if p.leaf {
		return id
	}
	balance := g.levelOf(p.left) - g.levelOf(p.right)
	switch {
	case balance > 1:
		if g.levelOf(g.pots[p.left].right) > g.levelOf(g.pots[p.left].left) {
			p.left = g.rotateLeft(p.left)
		}
		return g.rotateRight(id)
	case balance < -1:
		if g.levelOf(g.pots[p.right].left) > g.levelOf(g.pots[p.right].right) {
			p.right = g.rotateRight(p.right)
		}
		return g.rotateLeft(id)
	default:
		return id
	}
}

func (g *GeoIndex) rotateLeft(id potID) potID {
	p := &g.pots[id]
	newRootID := p.right
	newRoot := &g.pots[newRootID]
	p.right = newRoot.left
	newRoot.left = id

	left, right := &g.pots[p.left], &g.pots[p.right]
	p.start, p.middle, p.end = left.start, right.start, right.end
	p.level = max(left.level, right.level) + 1
	g.recomputeInternalMaxima(p, left, right)

	nl, nr := &g.pots[newRoot.left], &g.pots[newRoot.right]
	newRoot.start, newRoot.middle, newRoot.end = nl.start, nr.start, nr.end
	newRoot.level = max(nl.level, nr.level) + 1
	g.recomputeInternalMaxima(newRoot, nl, nr)
	return newRootID
}

func (g *GeoIndex) rotateRight(id potID) potID {
	p := &g.pots[id]
	newRootID := p.left
	newRoot := &g.pots[newRootID]
	p.left = newRoot.right
	newRoot.right = id

	left, right := &g.pots[p.left], &g.pots[p.right]
	p.start, p.middle, p.end = left.start, right.start, right.end
	p.level = max(left.level, right.level) + 1
	g.recomputeInternalMaxima(p, left, right)

	nl, nr := &g.pots[newRoot.left], &g.pots[newRoot.right]
	newRoot.start, newRoot.middle, newRoot.end = nl.start, nr.start, nr.end
	newRoot.level = max(nl.level, nr.level) + 1
	g.recomputeInternalMaxima(newRoot, nl, nr)
	return newRootID
}

// Remove deletes the slot matching elem exactly (lat, lon, handle).
func (g *GeoIndex) Remove(elem IndexElement, _ TxID) error {
	lat, lon, err := geoCoords(elem)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.root == potNil {
		return ErrNotFound
	}
	newRoot, removed := g.removeFrom(g.root, hilbert(lat, lon), lat, lon, elem.Handle)
	if !removed {
		return ErrNotFound
	}
	g.root = newRoot
	return nil
}

func (g *GeoIndex) removeFrom(id potID, hv uint64, lat, lon float64, handle DocHandle) (potID, bool) {
	p := &g.pots[id]
	if p.leaf {
		for i, sid := range p.slots {
			s := g.slots[sid]
			if s.handle == handle && s.lat == lat && s.lon == lon {
				g.freeSlot(sid)
				p.slots = append(p.slots[:i], p.slots[i+1:]...)
				if len(p.slots) == 0 {
					g.freePot(id)
					return potNil, true
				}
				p.start, p.end = g.leafRange(p.slots)
				g.recomputeLeafMaxima(p)
				return id, true
			}
		}
		return id, false
	}

	newLeft, removed := g.removeFrom(p.left, hv, lat, lon, handle)
	if !removed {
		newRight, removed2 := g.removeFrom(p.right, hv, lat, lon, handle)
		if !removed2 {
			return id, false
		}
		p.right = newRight
	} else {
		p.left = newLeft
	}

	if p.left == potNil {
		promoted := p.right
		g.freePot(id)
		return promoted, true
	}
	if p.right == potNil {
		promoted := p.left
		g.freePot(id)
		return promoted, true
	}

	left, right := &g.pots[p.left], &g.pots[p.right]
	p.start, p.middle, p.end = left.start, right.start, right.end
	p.level = max(left.level, right.level) + 1
	g.recomputeInternalMaxima(p, left, right)
	return g.rebalance(id), true
}

// candidate is a slot surfaced by a radius or k-nearest search.
type candidate struct {
	handle DocHandle
	snmd   float64
}

// PointsWithinRadius returns every inserted handle within radiusMeters
// of (lat, lon).
func (g *GeoIndex) PointsWithinRadius(lat, lon, radiusMeters float64) ([]DocHandle, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, ErrInvalidCoordinate
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	target := embed(lat, lon)
	threshold := snmdFromMeters(radiusMeters)
	targetDist := make([]float64, g.numFixed())
	for i, fp := range g.fixedPoints {
		targetDist[i] = snmd(target, fp)
	}

	var out []candidate
	var walk func(id potID)
	walk = func(id potID) {
		if id == potNil {
			return
		}
		p := &g.pots[id]
		// Triangle inequality on chord lengths (square roots of SNMD):
		// no slot can lie within the radius if the target is farther
		// from some fixed point than the pot's farthest slot plus it.
		for i, d := range targetDist {
			if math.Sqrt(d)-math.Sqrt(threshold) > math.Sqrt(p.maxdist[i]) {
				return
			}
		}
		if p.leaf {
			for _, sid := range p.slots {
				if d := snmd(target, g.slots[sid].emb); d <= threshold {
					out = append(out, candidate{g.slots[sid].handle, d})
				}
			}
			return
		}
		walk(p.left)
		walk(p.right)
	}
	walk(g.root)

	sort.Slice(out, func(i, j int) bool { return out[i].snmd < out[j].snmd })
	handles := make([]DocHandle, len(out))
	for i, c := range out {
		handles[i] = c.handle
	}
	return handles, nil
}

// candidateHeap is a bounded max-heap by SNMD, used to tighten the
// pruning radius as NearestCount fills its result set.
type candidateHeap []candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return h[i].snmd > h[j].snmd } // max-heap
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x any)         { *h = append(*h, x.(candidate)) }
func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// NearestCount returns up to k handles nearest to (lat, lon), nearest
// first.
func (g *GeoIndex) NearestCount(lat, lon float64, k int) ([]DocHandle, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, ErrInvalidCoordinate
	}
	if k <= 0 {
		return nil, nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	target := embed(lat, lon)
	targetHilbert := hilbert(lat, lon)
	targetDist := make([]float64, g.numFixed())
	for i, fp := range g.fixedPoints {
		targetDist[i] = snmd(target, fp)
	}

	h := &candidateHeap{}
	heap.Init(h)
	radius := math.Inf(1)

	var walk func(id potID)
	walk = func(id potID) {
		if id == potNil {
			return
		}
		p := &g.pots[id]
		if h.Len() >= k {
			for i, d := range targetDist {
				if math.Sqrt(d)-math.Sqrt(radius) > math.Sqrt(p.maxdist[i]) {
					return
				}
			}
		}
		if p.leaf {
			for _, sid := range p.slots {
				d := snmd(target, g.slots[sid].emb)
				if h.Len() < k {
					heap.Push(h, candidate{g.slots[sid].handle, d})
					if h.Len() == k {
						radius = (*h)[0].snmd
					}
				} else if d < radius {
					heap.Pop(h)
					heap.Push(h, candidate{g.slots[sid].handle, d})
					radius = (*h)[0].snmd
				}
			}
			return
		}
		// Visit the side whose Hilbert range covers the target first, so
		// the heap tightens sooner and prunes the other side more often.
		first, second := p.left, p.right
		if targetHilbert >= g.pots[p.right].start {
			first, second = p.right, p.left
		}
		walk(first)
		walk(second)
	}
	walk(g.root)

	out := make([]DocHandle, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(candidate).handle
	}
	return out, nil
}

// Update removes old's slot and inserts updated's in its place.
func (g *GeoIndex) Update(old, updated IndexElement, tx TxID) error {
	if err := g.Remove(old, tx); err != nil {
		return err
	}
	return g.Insert(updated, tx)
}

func geoCoords(elem IndexElement) (lat, lon float64, err error) {
	if len(elem.Values) != 2 {
		return 0, 0, ErrBadArity
	}
	lat, ok1 := elem.Values[0].(float64)
	lon, ok2 := elem.Values[1].(float64)
	if !ok1 || !ok2 {
		return 0, 0, ErrBadParameter
	}
	return lat, lon, nil
}

// Hint is preserved for API parity with callers that expect it; it is
// never populated and does nothing.
func (g *GeoIndex) Hint(_ any) {}

// Find reports ErrUnsupported: the geo index is queried through
// PointsWithinRadius and NearestCount, not an operator tree.
func (g *GeoIndex) Find(op *Operator, tx TxID) (Iterator, error) {
	return nil, ErrUnsupported
}
