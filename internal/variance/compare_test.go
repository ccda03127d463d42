package variance

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func near(a, b float64) bool { return math.Abs(a-b) < 0.001 }

func TestComputeAnchorSwitch(t *testing.T) {
	c := Compute(d(1000), d(1500), d(1600))
	if !c.AnchorIsProjection || !c.Anchor.Equal(d(1500)) {
		t.Fatalf("expected projection anchor, got %s (switched=%v)", c.Anchor, c.AnchorIsProjection)
	}
	if !near(c.PctSpendGreen, 66.6667) {
		t.Fatalf("unexpected green %v", c.PctSpendGreen)
	}
	if c.PctSpendGreen+c.PctSpendRed > 100.0001 {
		t.Fatalf("segments overflow the track: %v + %v", c.PctSpendGreen, c.PctSpendRed)
	}
	if !c.SpendOverflow.Equal(d(600)) || !c.SpendWithinBudget.Equal(d(1000)) {
		t.Fatalf("unexpected spend split %s/%s", c.SpendWithinBudget, c.SpendOverflow)
	}
	if len(c.Segments) != 2 || c.Segments[1].Kind != SegmentOverflow || !near(c.Segments[1].Start, c.PctSpendGreen) {
		t.Fatalf("unexpected segments %+v", c.Segments)
	}
	if len(c.Markers) != 2 || c.Markers[1].Kind != MarkerBudget || !near(c.Markers[1].At, 66.6667) {
		t.Fatalf("expected projection and budget markers, got %+v", c.Markers)
	}
}

func TestComputeBudgetAnchor(t *testing.T) {
	cases := []struct {
		name                     string
		budget, projection, spnd int64
		green, red, proj         float64
		markers                  int
	}{
		{"under budget", 1000, 800, 400, 40, 0, 80, 1},
		{"projection above budget clamps", 1000, 1200, 1000, 100, 0, 100, 1},
		{"no projection", 1000, 0, 500, 50, 0, 0, 0},
		{"zero budget with spend", 0, 300, 200, 0, 0, 0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Compute(d(tc.budget), d(tc.projection), d(tc.spnd))
			if c.AnchorIsProjection {
				t.Fatalf("anchor should stay on budget")
			}
			if !near(c.PctSpendGreen, tc.green) || !near(c.PctSpendRed, tc.red) || !near(c.PctProjection, tc.proj) {
				t.Fatalf("unexpected %+v", c)
			}
			if len(c.Markers) != tc.markers {
				t.Fatalf("expected %d markers, got %+v", tc.markers, c.Markers)
			}
		})
	}
}

func TestComputeZeroAnchor(t *testing.T) {
	c := Compute(decimal.Zero, decimal.Zero, decimal.Zero)
	for _, v := range []float64{c.PctProjection, c.PctBudget, c.PctSpendGreen, c.PctSpendRed} {
		if v != 0 || math.IsNaN(v) {
			t.Fatalf("expected all zero percentages, got %+v", c)
		}
	}
	if len(c.Segments) != 0 || len(c.Markers) != 0 {
		t.Fatalf("nothing should be drawn: %+v", c)
	}
}

func TestExceedsBudget(t *testing.T) {
	if !ExceedsBudget(d(501), d(500)) || ExceedsBudget(d(500), d(500)) {
		t.Fatalf("exceeds must be strict")
	}
}
