// Package metrics provides per-episode scalar summaries observed at every
// step of a run.
package metrics

import "github.com/san-kum/fwcbf/internal/dynamo"

// Default returns the metrics recorded for every episode. b may be nil
// when no safety filter is configured.
func Default(safetyDist float64, b BarrierFunc) []dynamo.Metric {
	m := []dynamo.Metric{
		NewMinSeparation(),
		NewSafeFraction(safetyDist),
		NewControlEffort(),
	}
	if b != nil {
		m = append(m, NewMinBarrier(b))
	}
	return m
}
