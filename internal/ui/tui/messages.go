// Package tui provides the Bubble Tea monitor for a running deployment.
package tui

// SampleMsg carries the latest device and serving metrics.
type SampleMsg struct{ Sample Sample }

// TickMsg is sent periodically to refresh the display.
type TickMsg struct{}

// ErrMsg carries an error.
type ErrMsg struct{ Err error }

// DoneMsg signals that the monitor should exit.
type DoneMsg struct{}
