package lattice

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Direction is a cardinal correction direction. The zero value means
// "no correction".
type Direction int

const (
	None Direction = iota
	North
	West
	East
	South
)

func (d Direction) String() string {
	switch d {
	case None:
		return "none"
	case North:
		return "N"
	case West:
		return "W"
	case East:
		return "E"
	case South:
		return "S"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection accepts the single-letter names used on the CLI surface.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "N", "n":
		return North, nil
	case "W", "w":
		return West, nil
	case "E", "e":
		return East, nil
	case "S", "s":
		return South, nil
	case "", "none":
		return None, nil
	default:
		return None, fmt.Errorf("unknown direction: %q", s)
	}
}

// CardinalIndex maps a direction onto the fixed N,W,E,S signal slot order.
func (d Direction) CardinalIndex() int {
	switch d {
	case North:
		return 0
	case West:
		return 1
	case East:
		return 2
	case South:
		return 3
	default:
		panic(fmt.Sprintf("direction %v has no cardinal slot", d))
	}
}

// CardinalDirection is the inverse of CardinalIndex.
func CardinalDirection(i int) Direction {
	return [4]Direction{North, West, East, South}[i]
}

// Moore neighbor indices, row-major over the 3x3 block with the cell itself
// removed. Every signal vector in the decoder is keyed by this order.
const (
	MooreNW = iota
	MooreN
	MooreNE
	MooreW
	MooreE
	MooreSW
	MooreS
	MooreSE
	MooreCount
)

// MooreOffsets holds {row, col} deltas per Moore slot.
var MooreOffsets = [MooreCount][2]int{
	{-1, -1}, {-1, 0}, {-1, +1},
	{0, -1}, {0, +1},
	{+1, -1}, {+1, 0}, {+1, +1},
}

// CardinalMoore maps the N,W,E,S slot order onto Moore slots.
var CardinalMoore = [4]int{MooreN, MooreW, MooreE, MooreS}

// ReciprocalMoore returns the Moore slot pointing back at the sender: a
// cell's neighbor in slot i sees that cell in slot 7-i.
func ReciprocalMoore(i int) int { return MooreCount - 1 - i }

// ReciprocalCardinal is the same involution over the N,W,E,S order.
func ReciprocalCardinal(i int) int { return 3 - i }

// Wrap folds an index onto a torus axis of length n. Works for negative
// indices, unlike the builtin remainder.
func Wrap[T constraints.Integer](i, n T) T {
	return (i%n + n) % n
}
