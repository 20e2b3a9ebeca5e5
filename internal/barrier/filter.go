package barrier

import (
	"fmt"
	"math"

	"github.com/san-kum/fwcbf/internal/dynamo"
)

// Selection decides which candidate replaces an unsafe nominal action.
type Selection int

const (
	// MaxMargin picks the candidate with the largest constraint value,
	// the first one in joint index order on ties.
	MaxMargin Selection = iota
	// NearestSafe picks the safe candidate closest to the nominal action,
	// falling back to the largest constraint value while none is safe.
	NearestSafe
)

func (s Selection) String() string {
	switch s {
	case MaxMargin:
		return "max_margin"
	case NearestSafe:
		return "nearest_safe"
	}
	return fmt.Sprintf("Selection(%d)", int(s))
}

func ParseSelection(s string) (Selection, error) {
	switch s {
	case "max_margin", "":
		return MaxMargin, nil
	case "nearest_safe":
		return NearestSafe, nil
	}
	return 0, fmt.Errorf("%w: unknown selection %q", ErrInvalidConfig, s)
}

// ChooseU returns nominal when it satisfies the safety constraint at x and
// a replacement from the full joint action grid otherwise.
func (b *Barrier) ChooseU(x dynamo.JointState, nominal dynamo.JointAction) dynamo.JointAction {
	h := b.H(x)
	val := b.Constraint(h, x, nominal)
	if val >= 0 {
		return nominal
	}

	if b.selection == NearestSafe {
		return b.nearestSafe(h, x, nominal, val)
	}
	return b.maxMargin(h, x, nominal)
}

func (b *Barrier) maxMargin(h float64, x dynamo.JointState, nominal dynamo.JointAction) dynamo.JointAction {
	best := nominal
	bestVal := math.Inf(-1)
	for _, u := range b.candidates {
		if val := b.Constraint(h, x, u); val > bestVal {
			best, bestVal = u, val
		}
	}
	return best
}

func (b *Barrier) nearestSafe(h float64, x dynamo.JointState, nominal dynamo.JointAction, nominalVal float64) dynamo.JointAction {
	best := nominal
	bestVal := nominalVal
	bestDist := math.Inf(1)

	for _, u := range b.candidates {
		val := b.Constraint(h, x, u)

		// skip unsafe candidates once something safe is found, and
		// candidates less safe than the current pick before that
		if (bestVal >= 0 && val < 0) || (bestVal < 0 && val < bestVal) {
			continue
		}

		dist := u.A1.Dist(nominal.A1) + u.A2.Dist(nominal.A2)
		if (bestVal < 0 && val > bestVal) || (bestVal >= 0 && val >= 0 && dist < bestDist) {
			best, bestVal, bestDist = u, val, dist
		}
	}
	return best
}

// ChooseUIndex is ChooseU over joint action indices.
func (b *Barrier) ChooseUIndex(x dynamo.JointState, nominal int) (int, error) {
	u, err := b.index.Action(nominal)
	if err != nil {
		return 0, err
	}
	return b.index.Index(b.ChooseU(x, u))
}

// ChooseUBatch filters each (state, nominal index) pair independently.
// Entries are spread across goroutines; the result is identical to calling
// ChooseUIndex on each entry in order.
func (b *Barrier) ChooseUBatch(states []dynamo.JointState, nominal []int) ([]int, error) {
	if len(states) != len(nominal) {
		return nil, fmt.Errorf("%w: %d states but %d nominal indices", ErrBatchShape, len(states), len(nominal))
	}

	uhat := make([]dynamo.JointAction, len(nominal))
	for i, idx := range nominal {
		u, err := b.index.Action(idx)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		uhat[i] = u
	}

	out := make([]int, len(states))
	dynamo.ParallelFor(len(states), 4, func(start, end int) {
		for i := start; i < end; i++ {
			// every candidate comes from the index, so the lookup cannot miss
			out[i], _ = b.index.Index(b.ChooseU(states[i], uhat[i]))
		}
	})
	return out, nil
}

// ChooseURows accepts states as rows laid out like JointState.Vector.
func (b *Barrier) ChooseURows(rows [][]float64, nominal []int) ([]int, error) {
	states := make([]dynamo.JointState, len(rows))
	for i, row := range rows {
		if len(row) != 8 {
			return nil, fmt.Errorf("%w: row %d has %d columns, want 8", ErrBatchShape, i, len(row))
		}
		states[i] = dynamo.JointStateFromVector([8]float64(row))
	}
	return b.ChooseUBatch(states, nominal)
}
