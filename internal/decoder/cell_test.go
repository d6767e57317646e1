package decoder

import (
	"testing"

	"anyon/internal/lattice"
)

// stubSubstrate serves scripted syndromes and swallows flips; the signal
// protocol tests need full control over what cells sense.
type stubSubstrate struct {
	set map[[2]int]uint8
}

func (s *stubSubstrate) Syndrome(row, col int) uint8 {
	return s.set[[2]int{row, col}]
}

func (s *stubSubstrate) Flip(int, int, lattice.Direction) {}

func testConfig() Config {
	return Config{Size: 9, Colony: 3, Period: 4, SelfThreshold: 0.7, NeighborThreshold: 0.2}
}

func TestCenterLevelLadder(t *testing.T) {
	cases := []struct {
		i, colony, depth, want int
	}{
		{1, 3, 1, 0},
		{4, 3, 1, 0}, // depth 1 has a single signal level; capped at 0
		{7, 3, 1, 0},
		{2, 3, 1, -1}, // not a center coordinate
		{1, 3, 2, 0},
		{4, 3, 2, 1},
		{13, 3, 2, 1}, // capped at depth-1
		{22, 3, 2, 1},
		{7, 3, 2, 0},
	}
	for _, tc := range cases {
		if got := centerLevel(tc.i, tc.colony, tc.depth); got != tc.want {
			t.Fatalf("centerLevel(%d, %d, %d) = %d, want %d", tc.i, tc.colony, tc.depth, got, tc.want)
		}
	}
}

func TestGridPlacesOneCenterPerColony(t *testing.T) {
	g, err := NewGrid(testConfig())
	if err != nil {
		t.Fatalf("new grid: %v", err)
	}
	centers := 0
	for row := 0; row < 9; row++ {
		for col := 0; col < 9; col++ {
			if g.Cell(row, col).IsCenter() {
				centers++
				if row%3 != 1 || col%3 != 1 {
					t.Fatalf("center at (%d,%d) is not a colony center", row, col)
				}
			}
		}
	}
	if centers != 9 {
		t.Fatalf("got %d centers, want one per colony (9)", centers)
	}
}

func TestDepthZeroGridHasNoHierarchy(t *testing.T) {
	g, err := NewGrid(Config{Size: 3, Colony: 3, Period: 4, SelfThreshold: 0.7, NeighborThreshold: 0.2})
	if err != nil {
		t.Fatalf("new grid: %v", err)
	}
	if g.Depth() != 0 {
		t.Fatalf("depth = %d, want 0", g.Depth())
	}
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			if g.Cell(row, col).IsCenter() {
				t.Fatalf("depth-0 lattice must not build centers, found one at (%d,%d)", row, col)
			}
		}
	}
}

// Double-buffering law: commit latches exactly what acquire staged, and a
// later acquire cannot retroactively mutate the committed state.
func TestDoubleBufferedCommit(t *testing.T) {
	g, err := NewGrid(testConfig())
	if err != nil {
		t.Fatalf("new grid: %v", err)
	}

	probe := g.Cell(0, 0)
	sender := g.Cell(int(lattice.Wrap(-1, 9)), 0) // probe's N neighbor holds slot N
	sender.countSig[0][lattice.MooreN] = 1

	idx := 0
	g.acquire(idx)
	if probe.stagedCount[0][lattice.MooreN] != 1 {
		t.Fatal("acquire must stage the reciprocal neighbor's slot value")
	}
	if probe.countSig[0][lattice.MooreN] != 0 {
		t.Fatal("acquire must not touch the active buffer")
	}

	probe.commit()
	if probe.countSig[0][lattice.MooreN] != 1 {
		t.Fatal("commit must move staged state into the active buffer")
	}

	sender.countSig[0][lattice.MooreN] = 0
	g.acquire(idx)
	if probe.countSig[0][lattice.MooreN] != 1 {
		t.Fatal("a later acquire retroactively mutated committed state")
	}
}

// Periodic-fire law: with U=4 and Q=3 a level-0 flip fires exactly at ages
// 3, 7, 11, ... and the vector is untouched at every other age.
func TestPeriodicFire(t *testing.T) {
	g, err := NewGrid(testConfig())
	if err != nil {
		t.Fatalf("new grid: %v", err)
	}
	cell := g.Cell(0, 0)

	for age := 1; age <= 12; age++ {
		cell.age = age
		cell.flipSig[0][lattice.North.CardinalIndex()] = 1
		dirs := cell.fire(g.periods, g.phases)
		if age%4 == 3 {
			if len(dirs) != 1 || dirs[0] != lattice.North {
				t.Fatalf("age %d: fired %v, want [N]", age, dirs)
			}
			if cell.flipSig[0] != [4]uint8{} || cell.stagedFlip[0] != [4]uint8{} {
				t.Fatalf("age %d: fired vector must be cleared in both copies", age)
			}
		} else {
			if len(dirs) != 0 {
				t.Fatalf("age %d: unexpected fire %v", age, dirs)
			}
			if cell.flipSig[0][lattice.North.CardinalIndex()] != 1 {
				t.Fatalf("age %d: queued flip lost without firing", age)
			}
		}
		cell.flipSig[0] = [4]uint8{}
	}
}

func TestFireHonorsPerLevelPhase(t *testing.T) {
	g, err := NewGrid(Config{Size: 27, Colony: 3, Period: 4, SelfThreshold: 0.7, NeighborThreshold: 0.2})
	if err != nil {
		t.Fatalf("new grid: %v", err)
	}
	cell := g.Cell(0, 0)
	// Age 3 satisfies the level-0 phase (3 mod 4) but not level 1 (9 mod 16).
	cell.age = 3
	cell.flipSig[0][lattice.West.CardinalIndex()] = 1
	cell.flipSig[1][lattice.West.CardinalIndex()] = 1
	dirs := cell.fire(g.periods, g.phases)
	if len(dirs) != 1 || dirs[0] != lattice.West {
		t.Fatalf("fired %v, want single W from level 0 only", dirs)
	}
	if cell.flipSig[1][lattice.West.CardinalIndex()] != 1 {
		t.Fatal("level-1 signal must survive a level-0 fire")
	}
}

// A center broadcasts its own syndrome into its level's count signal; the
// signal then travels outward one hop per step, each slot keeping the
// direction it is moving in.
func TestCenterBroadcastPropagatesOneHopPerStep(t *testing.T) {
	g, err := NewGrid(testConfig())
	if err != nil {
		t.Fatalf("new grid: %v", err)
	}
	sub := &stubSubstrate{set: map[[2]int]uint8{{4, 4}: 1}}

	g.Step(sub)
	center := g.Cell(4, 4)
	for m := 0; m < lattice.MooreCount; m++ {
		if center.countSig[0][m] != 1 {
			t.Fatalf("center slot %d not broadcast after first step", m)
		}
	}

	g.Step(sub)
	if got := g.Cell(3, 4).CountSignal(0)[lattice.MooreN]; got != 1 {
		t.Fatalf("north neighbor slot N = %d after two steps, want 1", got)
	}
	if got := g.Cell(4, 3).CountSignal(0)[lattice.MooreW]; got != 1 {
		t.Fatalf("west neighbor slot W = %d after two steps, want 1", got)
	}
	if got := g.Cell(3, 3).CountSignal(0)[lattice.MooreNW]; got != 1 {
		t.Fatalf("NW neighbor slot NW = %d after two steps, want 1", got)
	}
	// Two hops out: nothing yet.
	if got := g.Cell(2, 4).CountSignal(0)[lattice.MooreN]; got != 0 {
		t.Fatalf("cell two hops north already carries the signal after two steps")
	}

	g.Step(sub)
	if got := g.Cell(2, 4).CountSignal(0)[lattice.MooreN]; got != 1 {
		t.Fatal("signal did not reach two hops north after three steps")
	}
}

// A neighboring center's broadcast arrives after Q hops and lands in the
// stage-1 counter slot named after the direction it came from.
func TestCenterCountsNeighborCenterSignals(t *testing.T) {
	g, err := NewGrid(testConfig())
	if err != nil {
		t.Fatalf("new grid: %v", err)
	}
	sub := &stubSubstrate{set: map[[2]int]uint8{{4, 1}: 1}} // center west of (4,4)

	// The broadcast needs Q=3 relay steps after the first commit to reach
	// the next center east, and that arrival coincides with the level-0
	// rule tick which drains the aggregate; step once more and inspect the
	// fresh stage-1 tally instead.
	for i := 0; i < 5; i++ {
		g.Step(sub)
	}
	receiver := g.Cell(4, 4)
	if receiver.hier == nil {
		t.Fatal("cell (4,4) must be a center")
	}
	h := receiver.hier
	if got := h.neighborStage[0][lattice.MooreW]; got != 1 {
		t.Fatalf("west-slot stage-1 tally = %d after propagation, want 1 (stage=%v)", got, h.neighborStage)
	}
	for m := 0; m < lattice.MooreCount; m++ {
		if m == lattice.MooreW {
			continue
		}
		if h.neighborStage[0][m] != 0 {
			t.Fatalf("unexpected stage-1 count in slot %d: %v", m, h.neighborStage)
		}
	}
}
