// Package variance reconciles budget, projection and realized spend for a
// scope and lays the result out on a 0-100 track.
package variance

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

type SegmentKind string

const (
	SegmentWithinBudget SegmentKind = "green"
	SegmentOverflow     SegmentKind = "red"
)

type MarkerKind string

const (
	MarkerProjection MarkerKind = "projection"
	MarkerBudget     MarkerKind = "budget"
)

// Segment is a filled span of the track, in percent.
type Segment struct {
	Kind  SegmentKind `json:"kind"`
	Start float64     `json:"start"`
	Width float64     `json:"width"`
}

// Marker is a vertical line on the track, in percent.
type Marker struct {
	Kind MarkerKind `json:"kind"`
	At   float64    `json:"at"`
}

// Comparison is the reconciled view of one scope. Percentages are relative
// to Anchor and lie in [0, 100]. A zero anchor yields zero everywhere.
type Comparison struct {
	Budget     decimal.Decimal `json:"budget"`
	Projection decimal.Decimal `json:"projection"`
	Spend      decimal.Decimal `json:"spend"`

	Anchor             decimal.Decimal `json:"anchor"`
	AnchorIsProjection bool            `json:"anchor_is_projection"`

	SpendWithinBudget decimal.Decimal `json:"spend_within_budget"`
	SpendOverflow     decimal.Decimal `json:"spend_overflow"`

	PctProjection float64 `json:"pct_projection"`
	PctBudget     float64 `json:"pct_budget"`
	PctSpendGreen float64 `json:"pct_spend_green"`
	// PctSpendRed is already capped so that PctSpendGreen+PctSpendRed <= 100.
	PctSpendRed float64 `json:"pct_spend_red"`

	Segments []Segment `json:"segments"`
	Markers  []Marker  `json:"markers"`
}

// Compute reconciles the three totals. When spend has passed a positive
// budget the projection becomes the 100% reference so the overrun stays on
// the track; otherwise the budget is.
func Compute(budget, projection, spend decimal.Decimal) Comparison {
	c := Comparison{
		Budget:     budget,
		Projection: projection,
		Spend:      spend,
		Anchor:     budget,
		Segments:   []Segment{},
		Markers:    []Marker{},
	}
	if spend.GreaterThan(budget) && budget.IsPositive() {
		c.Anchor = projection
		c.AnchorIsProjection = true
	}

	c.SpendWithinBudget = decimal.Min(spend, budget)
	c.SpendOverflow = decimal.Max(decimal.Zero, spend.Sub(budget))

	c.PctProjection = pct(projection, c.Anchor)
	c.PctBudget = pct(budget, c.Anchor)
	c.PctSpendGreen = pct(c.SpendWithinBudget, c.Anchor)
	c.PctSpendRed = min(pct(c.SpendOverflow, c.Anchor), 100-c.PctSpendGreen)

	if c.PctSpendGreen > 0 {
		c.Segments = append(c.Segments, Segment{Kind: SegmentWithinBudget, Start: 0, Width: c.PctSpendGreen})
	}
	if c.SpendOverflow.IsPositive() && c.PctSpendRed > 0 {
		c.Segments = append(c.Segments, Segment{Kind: SegmentOverflow, Start: c.PctSpendGreen, Width: c.PctSpendRed})
	}
	if projection.IsPositive() {
		c.Markers = append(c.Markers, Marker{Kind: MarkerProjection, At: c.PctProjection})
	}
	if c.AnchorIsProjection {
		c.Markers = append(c.Markers, Marker{Kind: MarkerBudget, At: c.PctBudget})
	}
	return c
}

// ExceedsBudget reports whether projected ordinary spend is above budget.
func ExceedsBudget(projection, budget decimal.Decimal) bool {
	return projection.GreaterThan(budget)
}

// pct returns part/anchor as a percentage clamped to [0, 100].
func pct(part, anchor decimal.Decimal) float64 {
	if !anchor.IsPositive() {
		return 0
	}
	v := part.Div(anchor).Mul(hundred).Round(4).InexactFloat64()
	return max(0, min(v, 100))
}
