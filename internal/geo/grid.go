package geo

import "math"

// Grid projects coordinates inside a Bounds onto a character grid of
// Width×Height cells. Row 0 is the northern edge.
type Grid struct {
	Bounds Bounds
	Width  int
	Height int
}

// Cell returns the grid cell for p. ok is false when p falls outside the grid.
func (g Grid) Cell(p Position) (col, row int, ok bool) {
	x, y := g.Project(p)
	col = int(math.Floor(x))
	row = int(math.Floor(y))
	if col < 0 || row < 0 || col >= g.Width || row >= g.Height {
		return col, row, false
	}
	return col, row, true
}

// Project returns the fractional grid coordinates of p, used for smooth
// marker movement before snapping to a cell.
func (g Grid) Project(p Position) (x, y float64) {
	lngSpan := g.Bounds.East - g.Bounds.West
	latSpan := g.Bounds.North - g.Bounds.South
	if lngSpan <= 0 || latSpan <= 0 || g.Width <= 0 || g.Height <= 0 {
		return -1, -1
	}
	x = (p.Lng - g.Bounds.West) / lngSpan * float64(g.Width)
	y = (g.Bounds.North - p.Lat) / latSpan * float64(g.Height)
	// Points exactly on the east/south edge belong to the last cell.
	if x == float64(g.Width) {
		x = math.Nextafter(x, 0)
	}
	if y == float64(g.Height) {
		y = math.Nextafter(y, 0)
	}
	return x, y
}

// Line returns the cells visited by a straight line from a to b
// (Bresenham on the projected cells). Cells outside the grid are dropped.
func (g Grid) Line(a, b Position) [][2]int {
	ax, ay := g.Project(a)
	bx, by := g.Project(b)
	x0, y0 := int(math.Floor(ax)), int(math.Floor(ay))
	x1, y1 := int(math.Floor(bx)), int(math.Floor(by))

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy

	var cells [][2]int
	for {
		if x0 >= 0 && y0 >= 0 && x0 < g.Width && y0 < g.Height {
			cells = append(cells, [2]int{x0, y0})
		}
		if x0 == x1 && y0 == y1 {
			return cells
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
