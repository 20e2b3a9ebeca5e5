// Package viz renders experiment results in the terminal.
//
//   - [Report]: lipgloss summary panel, per-episode table, an asciigraph
//     chart of separation and barrier value, and a Braille [TrackMap]
//   - [LiveModel]: a Bubble Tea view of a paced episode fed by a [Feed]
//     attached to the runner as an observer
//
// # Key Bindings
//
//	q, Esc, Ctrl+C - quit the live view
package viz
