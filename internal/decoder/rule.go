package decoder

import "anyon/internal/lattice"

// Route is the local routing rule: given a cell's colony coordinates (x
// rightward, y upward, center at floor(q/2) on both axes), its own syndrome
// bit and the syndromes of its eight Moore neighbors, decide which adjacent
// qubit to flip, or none. Pure and total: every colony position falls
// through to exactly one branch or to none.
//
// The rule pushes detected errors toward the colony center. Border cells
// only move with neighbor confirmation; corridor and quadrant cells also
// move when no neighbor reports anything, so an isolated syndrome still
// drifts centerward.
func Route(x, y, q int, syndrome uint8, neighbors [8]uint8) lattice.Direction {
	c := q / 2

	nw := neighbors[lattice.MooreNW] != 0
	n := neighbors[lattice.MooreN] != 0
	ne := neighbors[lattice.MooreNE] != 0
	w := neighbors[lattice.MooreW] != 0
	e := neighbors[lattice.MooreE] != 0
	sw := neighbors[lattice.MooreSW] != 0
	s := neighbors[lattice.MooreS] != 0
	se := neighbors[lattice.MooreSE] != 0
	nothing := !(nw || n || ne || w || e || sw || s || se)

	if (x == c && y == c) || syndrome == 0 {
		return lattice.None
	}

	// Borders: move only on confirmation from the far side.
	if x == 0 && (w || nw || sw) {
		return lattice.West
	}
	if y == 0 && (s || sw || se) {
		return lattice.South
	}

	// Corridors: the straight runs through the center.
	if x == c && y > c && (s || sw || se || nothing) {
		return lattice.South
	}
	if x > c && y == c && (w || nw || sw || nothing) {
		return lattice.West
	}
	if x == c && y < c && (n || ne || nw || nothing) {
		return lattice.North
	}
	if x < c && y == c && (e || ne || se || nothing) {
		return lattice.East
	}

	// Quadrants: primary direction toward the center axis, secondary
	// fallback along the other axis.
	if x < c && y < c {
		if n || ne || nw || nothing {
			return lattice.North
		}
		if e || se {
			return lattice.East
		}
	}
	if x < c && y > c {
		if e || ne || se || nothing {
			return lattice.East
		}
		if s || sw {
			return lattice.South
		}
	}
	if x > c && y > c {
		if s || sw || se || nothing {
			return lattice.South
		}
		if w || nw {
			return lattice.West
		}
	}
	if x > c && y < c {
		if w || nw || sw || nothing {
			return lattice.West
		}
		if n || ne {
			return lattice.North
		}
	}

	return lattice.None
}
