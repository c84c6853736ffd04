package dynamics

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/snower/physync/actor"
)

// CellKey is the integer coordinate of a grid cell.
type CellKey struct {
	X, Y, Z int
}

// MaxCellsPerBody is how many cells a body may cover before it leaves the grid. Larger
// bodies, typically floors, are tested against every other body instead.
const MaxCellsPerBody = 64

type Cell struct {
	bodyIndices []int
}

// Pair holds the indices of two bodies whose AABBs overlap, A < B.
type Pair struct {
	A, B int
}

// SpatialGrid is a uniform grid hashed into a fixed number of buckets. Hash collisions only
// cost extra AABB tests.
type SpatialGrid struct {
	cellSize float64
	cells    []Cell
	cellMask int

	// bodies too large for the grid, in insertion order
	large   []int
	isLarge []bool

	seen []int // per body: the last body index it was paired with
}

// NewSpatialGrid creates a grid; numCells is rounded up to a power of two.
func NewSpatialGrid(cellSize float64, numCells int) *SpatialGrid {
	numCells = nextPowerOfTwo(numCells)

	cells := make([]Cell, numCells)
	for i := range cells {
		cells[i].bodyIndices = make([]int, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cells:    cells,
		cellMask: numCells - 1,
	}
}

func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

// Insert adds bodyIndex to every cell its AABB touches, once per bucket.
func (sg *SpatialGrid) Insert(bodyIndex int, aabb actor.AABB) {
	if sg.cellCount(aabb) > MaxCellsPerBody {
		sg.large = append(sg.large, bodyIndex)
		return
	}
	sg.forEachCell(aabb, func(cellIdx int) {
		indices := sg.cells[cellIdx].bodyIndices
		// a body's cells are visited together, so a repeat is always the last entry
		if n := len(indices); n > 0 && indices[n-1] == bodyIndex {
			return
		}
		sg.cells[cellIdx].bodyIndices = append(indices, bodyIndex)
	})
}

func (sg *SpatialGrid) Clear() {
	for i := range sg.cells {
		sg.cells[i].bodyIndices = sg.cells[i].bodyIndices[:0]
	}
	sg.large = sg.large[:0]
}

// cellCount is computed in floating point: a huge AABB would overflow an int product.
func (sg *SpatialGrid) cellCount(aabb actor.AABB) float64 {
	minCell := sg.worldToCell(aabb.Min)
	maxCell := sg.worldToCell(aabb.Max)
	return float64(maxCell.X-minCell.X+1) * float64(maxCell.Y-minCell.Y+1) * float64(maxCell.Z-minCell.Z+1)
}

func (sg *SpatialGrid) SortCells() {
	for i := range sg.cells {
		if len(sg.cells[i].bodyIndices) > 1 {
			sort.Ints(sg.cells[i].bodyIndices)
		}
	}
}

// FindPairs returns every overlapping pair once, sorted by (A, B). accept filters pairs
// before the AABB test.
func (sg *SpatialGrid) FindPairs(bodies []*actor.RigidBody, accept func(a, b *actor.RigidBody) bool) []Pair {
	if cap(sg.seen) < len(bodies) {
		sg.seen = make([]int, len(bodies))
	}
	sg.seen = sg.seen[:len(bodies)]
	for i := range sg.seen {
		sg.seen[i] = -1
	}
	if cap(sg.isLarge) < len(bodies) {
		sg.isLarge = make([]bool, len(bodies))
	}
	sg.isLarge = sg.isLarge[:len(bodies)]
	clear(sg.isLarge)
	for _, l := range sg.large {
		sg.isLarge[l] = true
	}

	var pairs []Pair
	for a, bodyA := range bodies {
		if sg.isLarge[a] {
			continue
		}
		aabbA := bodyA.Shape.GetAABB()
		sg.forEachCell(aabbA, func(cellIdx int) {
			for _, b := range sg.cells[cellIdx].bodyIndices {
				if b <= a || sg.seen[b] == a {
					continue
				}
				sg.seen[b] = a

				bodyB := bodies[b]
				if !accept(bodyA, bodyB) {
					continue
				}
				if aabbA.Overlaps(bodyB.Shape.GetAABB()) {
					pairs = append(pairs, Pair{A: a, B: b})
				}
			}
		})
	}

	for _, l := range sg.large {
		aabbL := bodies[l].Shape.GetAABB()
		for i, body := range bodies {
			// a pair of large bodies is produced by the lower index
			if i == l || (sg.isLarge[i] && i < l) {
				continue
			}
			a, b := min(i, l), max(i, l)
			if !accept(bodies[a], bodies[b]) {
				continue
			}
			if aabbL.Overlaps(body.Shape.GetAABB()) {
				pairs = append(pairs, Pair{A: a, B: b})
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A < pairs[j].A
		}
		return pairs[i].B < pairs[j].B
	})
	return pairs
}

func (sg *SpatialGrid) forEachCell(aabb actor.AABB, fn func(cellIdx int)) {
	minCell := sg.worldToCell(aabb.Min)
	maxCell := sg.worldToCell(aabb.Max)

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				fn(sg.hashCell(CellKey{x, y, z}))
			}
		}
	}
}

func (sg *SpatialGrid) worldToCell(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: int(math.Floor(pos.X() / sg.cellSize)),
		Y: int(math.Floor(pos.Y() / sg.cellSize)),
		Z: int(math.Floor(pos.Z() / sg.cellSize)),
	}
}

func (sg *SpatialGrid) hashCell(key CellKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & sg.cellMask
}
