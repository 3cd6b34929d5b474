// Package neighbor provides cell-list neighbor queries over a periodic box.
package neighbor

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/devitrification/hoomd-blue/store"
)

// Box is an orthorhombic periodic simulation box centered on the origin.
type Box struct {
	LX, LY, LZ float64
}

// MinImage returns the minimum-image displacement from a to b.
func (b Box) MinImage(a, p r3.Vec) r3.Vec {
	d := r3.Sub(p, a)
	d.X -= b.LX * math.Round(d.X/b.LX)
	d.Y -= b.LY * math.Round(d.Y/b.LY)
	d.Z -= b.LZ * math.Round(d.Z/b.LZ)
	return d
}

// Wrap maps p back into the box [-L/2, L/2) in each direction.
func (b Box) Wrap(p r3.Vec) r3.Vec {
	p.X -= b.LX * math.Floor(p.X/b.LX+0.5)
	p.Y -= b.LY * math.Floor(p.Y/b.LY+0.5)
	p.Z -= b.LZ * math.Floor(p.Z/b.LZ+0.5)
	return p
}

// Neighbor is one entry of a radius query result.
type Neighbor struct {
	Tag    store.Tag
	DistSq float64
}

type entry struct {
	tag store.Tag
	pos r3.Vec
}

// Grid is a cell-based spatial index for O(1) radius queries. It snapshots
// positions at insert time, so queries are safe from parallel workers while
// the store is otherwise untouched.
type Grid struct {
	box      Box
	cellSize float64
	nx       int
	ny       int
	nz       int
	cells    [][]entry
}

// NewGrid creates a grid covering the box with the given cell size.
// Cells never get smaller than requested; they grow so a whole number of
// them tiles each box edge.
func NewGrid(box Box, cellSize float64) *Grid {
	nx := int(box.LX / cellSize)
	ny := int(box.LY / cellSize)
	nz := int(box.LZ / cellSize)
	if nx < 1 {
		nx = 1
	}
	if ny < 1 {
		ny = 1
	}
	if nz < 1 {
		nz = 1
	}
	cells := make([][]entry, nx*ny*nz)
	for i := range cells {
		cells[i] = make([]entry, 0, 8)
	}
	return &Grid{box: box, cellSize: cellSize, nx: nx, ny: ny, nz: nz, cells: cells}
}

// Box returns the grid's periodic box.
func (g *Grid) Box() Box { return g.box }

// Clear removes all entries.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds a particle at the given position.
func (g *Grid) Insert(tag store.Tag, p r3.Vec) {
	idx := g.cellIndex(p)
	g.cells[idx] = append(g.cells[idx], entry{tag: tag, pos: p})
}

// Rebuild clears the grid and inserts every particle in the store.
func (g *Grid) Rebuild(s *store.Store) {
	g.Clear()
	for _, tag := range s.Tags() {
		pos, ok := s.Position(tag)
		if !ok {
			continue
		}
		g.Insert(tag, pos)
	}
}

// QueryRadiusInto appends all particles within radius of p (excluding the
// given tag) to dst and returns the updated slice. Reuse dst across calls to
// avoid allocations. Distances are minimum-image.
func (g *Grid) QueryRadiusInto(dst []Neighbor, p r3.Vec, radius float64, exclude store.Tag) []Neighbor {
	cellRadius := int(radius/g.cellSize) + 1
	cx, cy, cz := g.cellCoords(p)
	radiusSq := radius * radius

	// a span covering the whole axis must not visit cells twice
	spanX := clampSpan(cellRadius, g.nx)
	spanY := clampSpan(cellRadius, g.ny)
	spanZ := clampSpan(cellRadius, g.nz)

	for kx := 0; kx < spanX; kx++ {
		ix := wrapCell(cx-spanX/2+kx, g.nx)
		for ky := 0; ky < spanY; ky++ {
			iy := wrapCell(cy-spanY/2+ky, g.ny)
			for kz := 0; kz < spanZ; kz++ {
				iz := wrapCell(cz-spanZ/2+kz, g.nz)
				idx := (iz*g.ny+iy)*g.nx + ix
				for _, e := range g.cells[idx] {
					if e.tag == exclude {
						continue
					}
					d := g.box.MinImage(p, e.pos)
					distSq := d.X*d.X + d.Y*d.Y + d.Z*d.Z
					if distSq <= radiusSq {
						dst = append(dst, Neighbor{Tag: e.tag, DistSq: distSq})
					}
				}
			}
		}
	}
	return dst
}

// clampSpan returns the number of cells to visit along an axis of n cells
// for a query spanning r cells each way.
func clampSpan(r, n int) int {
	if 2*r+1 >= n {
		return n
	}
	return 2*r + 1
}

func wrapCell(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

func (g *Grid) cellCoords(p r3.Vec) (int, int, int) {
	p = g.box.Wrap(p)
	cx := int((p.X + g.box.LX/2) / g.box.LX * float64(g.nx))
	cy := int((p.Y + g.box.LY/2) / g.box.LY * float64(g.ny))
	cz := int((p.Z + g.box.LZ/2) / g.box.LZ * float64(g.nz))
	return clampCell(cx, g.nx), clampCell(cy, g.ny), clampCell(cz, g.nz)
}

func (g *Grid) cellIndex(p r3.Vec) int {
	cx, cy, cz := g.cellCoords(p)
	return (cz*g.ny+cy)*g.nx + cx
}

func clampCell(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
