package clip

import (
	"math"
	"sort"

	"github.com/aukilabs/stagekit/models"
	"gonum.org/v1/gonum/spatial/r3"
)

// Regular Grid Partition
//
// An uniformly sub-divided grid over the X axis of a stage. The
// particularities are:
//   - the grid has a resolution that defines how wide a cell is. With a
//     resolution of 25, each cell holds a 25 meter wide slice of the stage.
//   - clips only vary along X so a single row of cells is enough.
//   - cells keep clip indices in ascending order so that lookups return the
//     same clip as FindOwningClip.
//   - clips that can't be bucketed (inverted, non finite or too wide) are kept
//     in a linear list that every lookup goes through.

const maxGridCells = 1 << 16

type Grid struct {
	Resolution float64
	MinX       float64
	MaxX       float64
	Cells      [][]int

	clips  []models.Clip
	linear []int
}

// DebugInfo describes how clips are spread over the grid.
type DebugInfo struct {
	Resolution  float64
	CellCount   int
	ClipCount   int
	LinearCount int
	MinX        float64
	MaxX        float64
	Occupancy   []int
}

// NewGrid indexes the given clips. A resolution that is not a positive finite
// number falls back to models.DefaultClipWidth.
func NewGrid(clips []models.Clip, resolution float64) *Grid {
	if !(resolution > 0) || math.IsInf(resolution, 1) {
		resolution = models.DefaultClipWidth
	}

	grid := &Grid{
		Resolution: resolution,
		MinX:       math.Inf(1),
		MaxX:       math.Inf(-1),
		clips:      clips,
	}

	var indexed []int
	for i, c := range clips {
		if !isFinite(c.MinX) || !isFinite(c.MaxX) || c.MaxX < c.MinX {
			grid.linear = append(grid.linear, i)
			continue
		}

		indexed = append(indexed, i)
		grid.MinX = math.Min(grid.MinX, c.MinX)
		grid.MaxX = math.Max(grid.MaxX, c.MaxX)
	}

	if len(indexed) == 0 {
		grid.MinX = 0
		grid.MaxX = 0
		return grid
	}

	if span := (grid.MaxX - grid.MinX) / grid.Resolution; !(span < maxGridCells) {
		grid.linear = mergeIndices(grid.linear, indexed)
		grid.MinX = 0
		grid.MaxX = 0
		return grid
	}

	grid.Cells = make([][]int, grid.cellIndex(grid.MaxX)+1)
	for _, i := range indexed {
		c := clips[i]
		for x := grid.cellIndex(c.MinX); x <= grid.cellIndex(c.MaxX); x++ {
			grid.Cells[x] = append(grid.Cells[x], i)
		}
	}
	return grid
}

// Owner returns the index of the first clip that contains p.
func (grid *Grid) Owner(p r3.Vec) (int, bool) {
	candidates := grid.linear
	if x, ok := grid.cellAt(p.X); ok {
		candidates = mergeIndices(grid.Cells[x], grid.linear)
	}

	for _, i := range candidates {
		if ContainsPoint(grid.clips[i], p) {
			return i, true
		}
	}
	return -1, false
}

// Region returns the indices of the clips whose X interval intersects
// [minX, maxX], in ascending order.
func (grid *Grid) Region(minX, maxX float64) []int {
	if maxX < minX {
		minX, maxX = maxX, minX
	}

	var candidates []int
	if len(grid.Cells) != 0 && maxX >= grid.MinX && minX <= grid.MaxX {
		from := grid.cellIndex(math.Max(minX, grid.MinX))
		to := grid.cellIndex(math.Min(maxX, grid.MaxX))

		seen := make(map[int]bool)
		for x := from; x <= to; x++ {
			for _, i := range grid.Cells[x] {
				if !seen[i] {
					seen[i] = true
					candidates = append(candidates, i)
				}
			}
		}
		sort.Ints(candidates)
	}
	candidates = mergeIndices(candidates, grid.linear)

	var region []int
	for _, i := range candidates {
		c := grid.clips[i]
		if c.MinX <= maxX && c.MaxX >= minX {
			region = append(region, i)
		}
	}
	return region
}

func (grid *Grid) DebugInfo() DebugInfo {
	info := DebugInfo{
		Resolution:  grid.Resolution,
		CellCount:   len(grid.Cells),
		ClipCount:   len(grid.clips),
		LinearCount: len(grid.linear),
		MinX:        grid.MinX,
		MaxX:        grid.MaxX,
		Occupancy:   make([]int, len(grid.Cells)),
	}

	for x, cell := range grid.Cells {
		info.Occupancy[x] = len(cell)
	}
	return info
}

// NOTE: cells cover [MinX + x*Resolution, MinX + (x+1)*Resolution[ so a clip
// ending on a cell boundary is also registered in the next cell.
func (grid *Grid) cellIndex(v float64) int {
	return int(math.Floor((v - grid.MinX) / grid.Resolution))
}

func (grid *Grid) cellAt(v float64) (int, bool) {
	if len(grid.Cells) == 0 || !(v >= grid.MinX && v <= grid.MaxX) {
		return 0, false
	}

	x := grid.cellIndex(v)
	if x < 0 || x >= len(grid.Cells) {
		return 0, false
	}
	return x, true
}

// mergeIndices merges two ascending lists of indices.
func mergeIndices(a, b []int) []int {
	if len(b) == 0 {
		return a
	}
	if len(a) == 0 {
		return b
	}

	merged := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			merged = append(merged, a[i])
			i++
		} else {
			merged = append(merged, b[j])
			j++
		}
	}
	merged = append(merged, a[i:]...)
	return append(merged, b[j:]...)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
