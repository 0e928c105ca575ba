// Package layout computes deterministic window placement for sessions.
package layout

import (
	"fmt"

	"github.com/timvw/tcssh/internal/config"
)

// Geometry describes the screen and the size of one terminal window.
type Geometry struct {
	ScreenWidth  int
	ScreenHeight int

	ReserveTop    int
	ReserveBottom int
	ReserveLeft   int
	ReserveRight  int

	// Terminal size in character cells.
	Cols int
	Rows int

	// Pixel size of one character cell.
	FontWidth  int
	FontHeight int

	// Window manager decoration added around each terminal.
	DecorationWidth  int
	DecorationHeight int
}

// FromConfig extracts placement settings from cfg.
func FromConfig(cfg *config.Config) Geometry {
	return Geometry{
		ScreenWidth:      cfg.ScreenWidth,
		ScreenHeight:     cfg.ScreenHeight,
		ReserveTop:       cfg.ScreenReserveTop,
		ReserveBottom:    cfg.ScreenReserveBottom,
		ReserveLeft:      cfg.ScreenReserveLeft,
		ReserveRight:     cfg.ScreenReserveRight,
		Cols:             cfg.TerminalCols,
		Rows:             cfg.TerminalRows,
		FontWidth:        cfg.FontWidth,
		FontHeight:       cfg.FontHeight,
		DecorationWidth:  cfg.DecorationWidth,
		DecorationHeight: cfg.DecorationHeight,
	}
}

// Rect is one window's position and pixel size.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Grid is the computed arrangement for n windows.
type Grid struct {
	Columns int
	Rows    int
	Cells   []Rect
}

// Tile places n windows row-major, left to right then top to bottom. The
// column count is how many full-width windows fit between the side
// reserves (at least one); window height shrinks when the rows would not
// otherwise fit. The result depends only on n and g.
func Tile(n int, g Geometry) Grid {
	if n <= 0 {
		return Grid{}
	}

	w := g.Cols*g.FontWidth + g.DecorationWidth
	h := g.Rows*g.FontHeight + g.DecorationHeight
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}

	usableW := g.ScreenWidth - g.ReserveLeft - g.ReserveRight
	columns := usableW / w
	if columns < 1 {
		columns = 1
	}
	if columns > n {
		columns = n
	}
	rows := (n + columns - 1) / columns

	usableH := g.ScreenHeight - g.ReserveTop - g.ReserveBottom
	if fit := usableH / rows; fit > 0 && fit < h {
		h = fit
	}

	grid := Grid{Columns: columns, Rows: rows, Cells: make([]Rect, n)}
	for i := 0; i < n; i++ {
		col, row := i%columns, i/columns
		grid.Cells[i] = Rect{
			X:      g.ReserveLeft + col*w,
			Y:      g.ReserveTop + row*h,
			Width:  w,
			Height: h,
		}
	}
	return grid
}

// XGeometry renders r as an X11 geometry string in character cells
// (COLSxROWS+X+Y), the form terminal emulators accept with -geometry.
func (r Rect) XGeometry(g Geometry) string {
	cols, rows := g.Cols, g.Rows
	if g.FontHeight > 0 {
		if fit := (r.Height - g.DecorationHeight) / g.FontHeight; fit > 0 && fit < rows {
			rows = fit
		}
	}
	return fmt.Sprintf("%dx%d+%d+%d", cols, rows, r.X, r.Y)
}
