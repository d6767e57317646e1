// Package code implements the toric-code qubit substrate the decoder acts
// on: an L x L periodic lattice with two qubits per site and one plaquette
// stabilizer per site.
package code

import (
	"fmt"
	"math/rand"

	"anyon/internal/lattice"
)

// Qubit orientations. Horizontal qubits sit on the left edge of their site,
// vertical qubits on the top edge.
const (
	Horizontal = 0
	Vertical   = 1
)

type ToricCode struct {
	size   int
	qubits []uint8 // (row*size + col)*2 + orientation
	stabs  []uint8 // row*size + col
}

func New(size int) (*ToricCode, error) {
	if size < 1 {
		return nil, fmt.Errorf("lattice size must be positive, got %d", size)
	}
	return &ToricCode{
		size:   size,
		qubits: make([]uint8, size*size*2),
		stabs:  make([]uint8, size*size),
	}, nil
}

func (t *ToricCode) Size() int { return t.size }

func (t *ToricCode) qubit(row, col, orientation int) uint8 {
	return t.qubits[(row*t.size+col)*2+orientation]
}

// Syndrome measures the stabilizer at (row, col): the parity of the four
// adjacent qubits (left, up, right, down).
func (t *ToricCode) Syndrome(row, col int) uint8 {
	l := t.qubit(row, col, Horizontal)
	u := t.qubit(row, col, Vertical)
	r := t.qubit(row, lattice.Wrap(col+1, t.size), Horizontal)
	d := t.qubit(lattice.Wrap(row+1, t.size), col, Vertical)
	return l ^ u ^ r ^ d
}

// FlipQubit toggles a single qubit and the two stabilizers adjacent to it.
func (t *ToricCode) FlipQubit(row, col, orientation int) {
	row = lattice.Wrap(row, t.size)
	col = lattice.Wrap(col, t.size)
	t.qubits[(row*t.size+col)*2+orientation] ^= 1
	t.stabs[row*t.size+col] ^= 1
	if orientation == Horizontal {
		t.stabs[row*t.size+lattice.Wrap(col-1, t.size)] ^= 1
	} else {
		t.stabs[lattice.Wrap(row-1, t.size)*t.size+col] ^= 1
	}
}

// Flip toggles the qubit lying in direction dir relative to the stabilizer
// at (row, col). The mapping is fixed: W and N address the site's own
// horizontal and vertical qubit, E the next column's horizontal qubit, S the
// next row's vertical qubit.
func (t *ToricCode) Flip(row, col int, dir lattice.Direction) {
	switch dir {
	case lattice.West:
		t.FlipQubit(row, col, Horizontal)
	case lattice.North:
		t.FlipQubit(row, col, Vertical)
	case lattice.East:
		t.FlipQubit(row, col+1, Horizontal)
	case lattice.South:
		t.FlipQubit(row+1, col, Vertical)
	}
}

// InjectErrors flips each qubit independently with probability p.
func (t *ToricCode) InjectErrors(p float64, rng *rand.Rand) {
	for i := range t.qubits {
		if rng.Float64() < p {
			t.qubits[i] ^= 1
		}
	}
	t.Recompute()
}

// Recompute rebuilds the stabilizer cache from the qubit state. Flip and
// FlipQubit keep the cache in sync incrementally; this is the ground truth
// they must agree with.
func (t *ToricCode) Recompute() {
	for i := 0; i < t.size; i++ {
		for j := 0; j < t.size; j++ {
			t.stabs[i*t.size+j] = t.Syndrome(i, j)
		}
	}
}

// Stabilizer returns the cached stabilizer value at (row, col).
func (t *ToricCode) Stabilizer(row, col int) uint8 {
	return t.stabs[row*t.size+col]
}

// SyndromeWeight counts set stabilizers.
func (t *ToricCode) SyndromeWeight() int {
	w := 0
	for _, s := range t.stabs {
		w += int(s)
	}
	return w
}

// ErrorWeight counts flipped qubits.
func (t *ToricCode) ErrorWeight() int {
	w := 0
	for _, q := range t.qubits {
		w += int(q)
	}
	return w
}

// HasLogicalError reports whether the error pattern crosses either torus cut
// an odd number of times: vertical qubits along row 0 or horizontal qubits
// along column 0.
func (t *ToricCode) HasLogicalError() bool {
	var horizontal, vertical uint8
	for j := 0; j < t.size; j++ {
		vertical ^= t.qubit(0, j, Vertical)
	}
	for i := 0; i < t.size; i++ {
		horizontal ^= t.qubit(i, 0, Horizontal)
	}
	return vertical == 1 || horizontal == 1
}
