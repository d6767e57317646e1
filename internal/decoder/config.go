// Package decoder implements the hierarchical cellular-automaton decoder:
// a torus of cells that observe only their Moore neighborhood, route
// corrections toward colony centers with a fixed local rule, and coordinate
// coarse-scale moves through a recursive hierarchy of colony centers.
package decoder

import (
	"errors"
	"fmt"
)

var ErrInvalidConfig = errors.New("invalid decoder configuration")

// Config is the immutable parameter set for one lattice. Depth is derived
// from Size and Colony, never supplied.
type Config struct {
	// Size is the lattice side L; must be an exact power of Colony.
	Size int
	// Colony is the branching factor Q: colonies are Q x Q blocks.
	Colony int
	// Period is the work-period base U; a level-k colony fires its queued
	// flips every U^(k+1) steps. Must exceed Colony.
	Period int
	// SelfThreshold (fC) and NeighborThreshold (fN) gate the coarse
	// syndrome aggregation at colony centers.
	SelfThreshold     float64
	NeighborThreshold float64
}

// Depth returns the hierarchy depth d with Size == Colony^(d+1), or an
// error when the sizes do not line up.
func (c Config) Depth() (int, error) {
	if c.Colony < 2 {
		return 0, fmt.Errorf("%w: colony size %d is too small", ErrInvalidConfig, c.Colony)
	}
	side := c.Colony
	depth := 0
	for side < c.Size {
		side *= c.Colony
		depth++
	}
	if side != c.Size {
		return 0, fmt.Errorf("%w: lattice size %d is not a power of colony size %d", ErrInvalidConfig, c.Size, c.Colony)
	}
	return depth, nil
}

func (c Config) Validate() error {
	if c.Colony < 3 {
		return fmt.Errorf("%w: colony size must be at least 3, got %d", ErrInvalidConfig, c.Colony)
	}
	if _, err := c.Depth(); err != nil {
		return err
	}
	if c.Period <= c.Colony {
		return fmt.Errorf("%w: work period %d must exceed colony size %d", ErrInvalidConfig, c.Period, c.Colony)
	}
	if c.SelfThreshold < 0 || c.SelfThreshold > 1 {
		return fmt.Errorf("%w: self threshold %v outside [0,1]", ErrInvalidConfig, c.SelfThreshold)
	}
	if c.NeighborThreshold < 0 || c.NeighborThreshold > 1 {
		return fmt.Errorf("%w: neighbor threshold %v outside [0,1]", ErrInvalidConfig, c.NeighborThreshold)
	}
	return nil
}
