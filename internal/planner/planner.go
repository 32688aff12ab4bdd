// Package planner fuses a SELECT statement's predicates into a single
// access-path decision: a point lookup, a bounded range scan, or a full
// heap scan, grounded on the reference engine's select()/CombinedCond
// logic.
package planner

import "math"

// Attr selects what a query projects or a condition constrains.
type Attr int

const (
	AttrKey Attr = iota + 1
	AttrValue
	AttrBoth
	AttrCount
)

// Comp is a predicate comparator.
type Comp int

const (
	EQ Comp = iota
	NE
	GT
	LT
	GE
	LE
)

// Cond is one WHERE predicate: either "key <comp> keyLit" (Attr ==
// AttrKey) or "value <comp> valueLit" (Attr == AttrValue).
type Cond struct {
	Attr    Attr
	Comp    Comp
	KeyLit  int32
	ValLit  string
}

// CombinedCond is the fused predicate window over the key, after
// folding every key predicate in a WHERE clause together.
type CombinedCond struct {
	HasKey, HasValue             bool
	HasEqual, HasNEqual          bool
	HasRange                     bool
	ExactKey, RangeMin, RangeMax int32
}

// Access names the chosen scan strategy.
type Access int

const (
	AccessFullScan Access = iota
	AccessPoint
	AccessRange
)

// Plan is the planner's verdict for one SELECT: how to scan, and the
// fused window to scan with.
type Plan struct {
	Access   Access
	Combined CombinedCond
	// Contradiction is set when the predicates can never be satisfied
	// (e.g. key = 5 AND key = 6): the result is zero rows without
	// touching storage at all.
	Contradiction bool
}

// Build folds conds (in order) into a CombinedCond and selects an
// access path for the given projection. Any contradiction detected
// mid-fold short-circuits the rest of the fold, matching the reference
// engine's early "return 0 rows" behavior.
func Build(attr Attr, conds []Cond) Plan {
	var c CombinedCond
	c.RangeMin = math.MinInt32
	c.RangeMax = math.MaxInt32

	if len(conds) == 0 {
		if attr == AttrValue || attr == AttrBoth {
			return Plan{Access: AccessFullScan}
		}
		// key or count with no predicates: the leaves hold everything
		// needed, so walk the whole tree rather than the heap.
		return Plan{Access: AccessRange, Combined: c}
	}

	for _, cond := range conds {
		if cond.Attr != AttrKey {
			c.HasValue = true
			continue
		}
		c.HasKey = true
		v := cond.KeyLit

		switch cond.Comp {
		case EQ:
			if c.HasEqual && v != c.ExactKey {
				return Plan{Contradiction: true}
			}
			if c.HasNEqual && v == c.ExactKey {
				return Plan{Contradiction: true}
			}
			if c.HasRange && (v > c.RangeMax || v < c.RangeMin) {
				return Plan{Contradiction: true}
			}
			c.HasEqual = true
			c.ExactKey = v

		case NE:
			if c.HasEqual && v == c.ExactKey {
				return Plan{Contradiction: true}
			}
			if c.HasEqual {
				continue // NE is subsumed by the tighter EQ
			}
			c.HasNEqual = true
			c.ExactKey = v

		case GT:
			v++
			fallthrough
		case GE:
			if v > c.RangeMax {
				return Plan{Contradiction: true}
			}
			c.HasRange = true
			c.RangeMin = maxI32(c.RangeMin, v)

		case LT:
			v--
			fallthrough
		case LE:
			if v < c.RangeMin {
				return Plan{Contradiction: true}
			}
			c.HasRange = true
			c.RangeMax = minI32(c.RangeMax, v)
		}
	}

	if c.HasEqual && c.HasNEqual {
		c.HasNEqual = false // NE is subsumed by the tighter EQ
	}
	if c.HasRange && c.HasEqual {
		if c.ExactKey < c.RangeMin || c.ExactKey > c.RangeMax {
			return Plan{Contradiction: true}
		}
	}

	if (c.HasValue && !c.HasKey) || (c.HasNEqual && !c.HasEqual && !c.HasRange) {
		return Plan{Access: AccessFullScan, Combined: c}
	}
	if c.HasEqual {
		return Plan{Access: AccessPoint, Combined: c}
	}
	return Plan{Access: AccessRange, Combined: c}
}

func maxI32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}

func minI32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

// MatchesValue re-checks every value predicate in conds against value,
// per §4.F: a row is kept only if it satisfies every one, not merely
// the first.
func MatchesValue(conds []Cond, value string) bool {
	for _, cond := range conds {
		if cond.Attr != AttrValue {
			continue
		}
		var ok bool
		switch cond.Comp {
		case EQ:
			ok = value == cond.ValLit
		case NE:
			ok = value != cond.ValLit
		case GT:
			ok = value > cond.ValLit
		case LT:
			ok = value < cond.ValLit
		case GE:
			ok = value >= cond.ValLit
		case LE:
			ok = value <= cond.ValLit
		}
		if !ok {
			return false
		}
	}
	return true
}
