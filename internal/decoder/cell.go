package decoder

import (
	"fmt"
	"math"

	"anyon/internal/lattice"
)

// Cell is one decoding site. Signal vectors carry one row per hierarchy
// level; each has a staged shadow written during acquire and committed as a
// value copy during commit, so a cell never reads another cell's in-progress
// state. A cell sitting at a colony center additionally carries a hierarchy
// record and aggregates coarse syndromes at its level.
type Cell struct {
	row, col int
	x, y     int // colony coordinates at level 0, y axis pointing up
	age      int

	syndrome    uint8
	neighborSyn [8]uint8
	neighbors   [8]int // flat indices into the grid, fixed at setup

	countSig    [][8]uint8
	stagedCount [][8]uint8
	flipSig     [][4]uint8
	stagedFlip  [][4]uint8

	hier *hierarchy
}

// hierarchy is the colony-center extension: dispatch is by nil check on
// Cell.hier, not by interface dynamic dispatch.
type hierarchy struct {
	level int
	x, y  int // colony coordinates at the center's own level
	// window is the stage-1 aggregation length b = floor(sqrt(U^(level+1))).
	window            int
	selfThreshold     float64
	neighborThreshold float64

	// Two-stage counters: stage 0 tallies raw occurrences over a window,
	// stage 1 tallies thresholded windows until the level's rule tick
	// reads and resets it.
	selfStage     [2]int
	neighborStage [2][8]int
}

func (c *Cell) Age() int { return c.age }

func (c *Cell) Position() (int, int) { return c.row, c.col }

func (c *Cell) IsCenter() bool { return c.hier != nil }

// Level returns the hierarchy level for center cells and -1 otherwise.
func (c *Cell) Level() int {
	if c.hier == nil {
		return -1
	}
	return c.hier.level
}

// FlipSignal exposes the active flip-signal vector for one level, for
// diagnostics and tests.
func (c *Cell) FlipSignal(level int) [4]uint8 {
	return c.flipSig[level]
}

// CountSignal exposes the active count-signal vector for one level.
func (c *Cell) CountSignal(level int) [8]uint8 {
	return c.countSig[level]
}

func (c *Cell) allocSignals(depth int) {
	if depth == 0 {
		return
	}
	c.countSig = make([][8]uint8, depth)
	c.stagedCount = make([][8]uint8, depth)
	c.flipSig = make([][4]uint8, depth)
	c.stagedFlip = make([][4]uint8, depth)
}

// commit moves staged signals into the active buffers and advances the
// cell's age. Array assignment copies by value, so a later acquire cannot
// retroactively mutate committed state.
func (c *Cell) commit() {
	c.age++
	for level := range c.countSig {
		c.countSig[level] = c.stagedCount[level]
	}

	if c.hier == nil {
		for level := range c.flipSig {
			c.flipSig[level] = c.stagedFlip[level]
		}
		return
	}

	h := c.hier
	// Broadcast the center's own syndrome into every component of its
	// level's count signal; neighbors pick it up on their next acquire.
	for m := range c.countSig[h.level] {
		c.countSig[h.level][m] = c.syndrome
	}
	// Flip signals of strictly higher levels pass through unchanged; this
	// cell's own level (and any level it is also the center of) is
	// governed by its own rule only.
	for level := h.level + 1; level < len(c.flipSig); level++ {
		c.flipSig[level] = c.stagedFlip[level]
	}

	// Stage-1 tally, slots keyed by the direction the signal came from.
	for m := 0; m < lattice.MooreCount; m++ {
		h.neighborStage[0][m] += int(c.stagedCount[h.level][lattice.ReciprocalMoore(m)])
	}
	h.selfStage[0] += int(c.syndrome)

	if c.age%h.window == 0 {
		bound := float64(h.window)
		if float64(h.selfStage[0]) >= h.selfThreshold*bound {
			h.selfStage[1]++
		}
		for m := range h.neighborStage[0] {
			if float64(h.neighborStage[0][m]) >= h.neighborThreshold*bound {
				h.neighborStage[1][m]++
			}
		}
		h.selfStage[0] = 0
		h.neighborStage[0] = [8]int{}
	}
}

// decide runs the routing rule. Center cells first run their coarse rule at
// their own scale every U^(level+1) steps, queueing any resulting direction
// into the level's flip signal; every cell then runs the level-0 rule, whose
// result is applied immediately by the caller.
func (c *Cell) decide(colony int, periods []int) lattice.Direction {
	if h := c.hier; h != nil && c.age%periods[h.level] == 0 {
		bound := float64(h.window)
		var coarseSelf uint8
		if float64(h.selfStage[1]) >= h.selfThreshold*bound {
			coarseSelf = 1
		}
		var coarse [8]uint8
		for m := range coarse {
			if float64(h.neighborStage[1][m]) >= h.neighborThreshold*bound {
				coarse[m] = 1
			}
		}
		if dir := Route(h.x, h.y, colony, coarseSelf, coarse); dir != lattice.None {
			c.flipSig[h.level][dir.CardinalIndex()] = 1
		}
		h.selfStage[1] = 0
		h.neighborStage[1] = [8]int{}
	}

	return Route(c.x, c.y, colony, c.syndrome, c.neighborSyn)
}

// fire drains queued flip-signal directions for every level whose phase
// condition holds at the current age. Directions are deduplicated across
// levels; fired vectors are cleared in both active and staged copies.
func (c *Cell) fire(periods, phases []int) []lattice.Direction {
	var mask [4]bool
	fired := false
	for level := range c.flipSig {
		if c.age%periods[level] != phases[level] {
			continue
		}
		for slot, v := range c.flipSig[level] {
			if v != 0 {
				mask[slot] = true
				fired = true
			}
		}
		c.flipSig[level] = [4]uint8{}
		c.stagedFlip[level] = [4]uint8{}
	}
	if !fired {
		return nil
	}
	dirs := make([]lattice.Direction, 0, 4)
	for slot, set := range mask {
		if set {
			dirs = append(dirs, lattice.CardinalDirection(slot))
		}
	}
	return dirs
}

// centerLevel returns the hierarchy level implied by one lattice axis
// coordinate: the largest k such that i minus the level-k center offset is
// divisible by Q^(k+1), capped at depth-1. Exact integer arithmetic
// throughout. Returns -1 for coordinates that are no center at all.
func centerLevel(i, colony, depth int) int {
	period := colony
	for k := 0; k <= depth; k++ {
		offset := period / 2
		if (i-offset)%period != 0 {
			return k - 1
		}
		period *= colony
	}
	return depth - 1
}

func newHierarchy(row, col int, cfg Config, depth int, periods []int) (*hierarchy, error) {
	level := centerLevel(row, cfg.Colony, depth)
	if l := centerLevel(col, cfg.Colony, depth); l < level {
		level = l
	}
	if level < 0 || level >= depth {
		return nil, fmt.Errorf("cell (%d,%d) admits no hierarchy level", row, col)
	}

	span := 1
	for k := 0; k <= level; k++ {
		span *= cfg.Colony
	}
	relRow := (row / span) % cfg.Colony
	relCol := (col / span) % cfg.Colony

	return &hierarchy{
		level:             level,
		x:                 relCol,
		y:                 cfg.Colony - 1 - relRow,
		window:            int(math.Sqrt(float64(periods[level]))),
		selfThreshold:     cfg.SelfThreshold,
		neighborThreshold: cfg.NeighborThreshold,
	}, nil
}
