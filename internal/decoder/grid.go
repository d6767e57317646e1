package decoder

import (
	"fmt"

	"anyon/internal/lattice"
)

// Substrate is the decoder's view of the physical layer: a syndrome oracle
// and a flip oracle. The grid never inspects qubits directly.
type Substrate interface {
	Syndrome(row, col int) uint8
	Flip(row, col int, dir lattice.Direction)
}

// Grid is the full torus of cells plus the timing tables shared by all of
// them. Cells live in one flat slice; neighbor relationships are wrapped
// indices computed once at setup.
type Grid struct {
	cfg   Config
	depth int

	// periods[l] = U^(l+1), the work period of level l.
	// phases[l] = Q^(l+1), the fire offset of level l within its period.
	periods []int
	phases  []int

	cells []Cell

	ruleFlips  int
	firedFlips int
}

func NewGrid(cfg Config) (*Grid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	depth, err := cfg.Depth()
	if err != nil {
		return nil, err
	}

	g := &Grid{
		cfg:     cfg,
		depth:   depth,
		periods: make([]int, depth),
		phases:  make([]int, depth),
		cells:   make([]Cell, cfg.Size*cfg.Size),
	}
	period, phase := 1, 1
	for level := 0; level < depth; level++ {
		period *= cfg.Period
		phase *= cfg.Colony
		g.periods[level] = period
		g.phases[level] = phase
	}

	center := cfg.Colony / 2
	for row := 0; row < cfg.Size; row++ {
		for col := 0; col < cfg.Size; col++ {
			cell := &g.cells[row*cfg.Size+col]
			cell.row = row
			cell.col = col
			cell.x = col % cfg.Colony
			cell.y = cfg.Colony - 1 - row%cfg.Colony
			cell.allocSignals(depth)

			for m, off := range lattice.MooreOffsets {
				nr := lattice.Wrap(row+off[0], cfg.Size)
				nc := lattice.Wrap(col+off[1], cfg.Size)
				cell.neighbors[m] = nr*cfg.Size + nc
			}

			if depth > 0 && (row-center)%cfg.Colony == 0 && (col-center)%cfg.Colony == 0 {
				hier, err := newHierarchy(row, col, cfg, depth, g.periods)
				if err != nil {
					return nil, fmt.Errorf("setup center: %w", err)
				}
				cell.hier = hier
			}
		}
	}
	return g, nil
}

func (g *Grid) Config() Config { return g.cfg }

func (g *Grid) Depth() int { return g.depth }

// Age is the number of completed steps; all cells advance in lockstep.
func (g *Grid) Age() int {
	if len(g.cells) == 0 {
		return 0
	}
	return g.cells[0].age
}

// Cell grants read access to one cell for diagnostics and tests.
func (g *Grid) Cell(row, col int) *Cell {
	return &g.cells[row*g.cfg.Size+col]
}

// RuleFlips and FiredFlips count the substrate flips applied during the
// last Step, split by origin (immediate level-0 rule vs periodic fire).
func (g *Grid) RuleFlips() int { return g.ruleFlips }

func (g *Grid) FiredFlips() int { return g.firedFlips }

// PendingFlipSignals counts the set flip-signal components per level across
// the whole lattice.
func (g *Grid) PendingFlipSignals() []int {
	pending := make([]int, g.depth)
	for i := range g.cells {
		for level := range g.cells[i].flipSig {
			for _, v := range g.cells[i].flipSig[level] {
				pending[level] += int(v)
			}
		}
	}
	return pending
}

// Step advances the whole lattice by one synchronous generation against the
// substrate. The five phases run strictly in order and each phase touches
// every cell before the next begins; within the acquire and decide phases no
// cell mutates another, so traversal order is immaterial.
func (g *Grid) Step(sub Substrate) {
	// Phase 1: sense.
	for i := range g.cells {
		cell := &g.cells[i]
		cell.syndrome = sub.Syndrome(cell.row, cell.col)
	}

	// Phase 2: acquire into staging buffers only.
	for i := range g.cells {
		g.acquire(i)
	}

	// Phase 3: commit staged state, advance age.
	for i := range g.cells {
		g.cells[i].commit()
	}

	// Phase 4: level-0 (and coarse) rule; immediate flips hit the substrate
	// as they are decided. Flips are XOR and commute, and rule inputs were
	// latched in phases 1-2, so ordering cannot leak between cells.
	g.ruleFlips = 0
	for i := range g.cells {
		cell := &g.cells[i]
		if dir := cell.decide(g.cfg.Colony, g.periods); dir != lattice.None {
			sub.Flip(cell.row, cell.col, dir)
			g.ruleFlips++
		}
	}

	// Phase 5: periodic fire of queued multi-level flips.
	g.firedFlips = 0
	for i := range g.cells {
		cell := &g.cells[i]
		for _, dir := range cell.fire(g.periods, g.phases) {
			sub.Flip(cell.row, cell.col, dir)
			g.firedFlips++
		}
	}
}

// acquire latches neighbor syndromes and pulls signals one hop. Count
// signals use the full Moore neighborhood with anti-diagonal selection: the
// staged value in slot m comes from the reciprocal neighbor's slot m, so a
// signal keeps traveling in the direction its slot names. Flip signals move
// the same way but only along the four cardinal axes.
func (g *Grid) acquire(i int) {
	cell := &g.cells[i]
	for m := 0; m < lattice.MooreCount; m++ {
		cell.neighborSyn[m] = g.cells[cell.neighbors[m]].syndrome
	}
	for level := 0; level < g.depth; level++ {
		for m := 0; m < lattice.MooreCount; m++ {
			sender := &g.cells[cell.neighbors[lattice.ReciprocalMoore(m)]]
			cell.stagedCount[level][m] = sender.countSig[level][m]
		}
		for slot := 0; slot < 4; slot++ {
			sender := &g.cells[cell.neighbors[lattice.CardinalMoore[lattice.ReciprocalCardinal(slot)]]]
			cell.stagedFlip[level][slot] = sender.flipSig[level][slot]
		}
	}
}
