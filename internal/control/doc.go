// Package control provides per-aircraft controllers producing catalog
// actions from a single aircraft state.
//
//   - [Uhat]: pursuit controller steering toward a goal point
//   - [Hold]: fixed action, for scripted or stationary aircraft
//
// # Usage
//
//	uhat, err := control.NewUhat(goal, 0.1, catalog)
//	a1 := uhat.Calc(env.X1())
//
// Both quantize their output to the catalog so the result can be looked
// up by exact match.
package control
