// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// RunRecord is the archived summary of one finished citation run.
type RunRecord struct {
	ID          string    `json:"id" yaml:"id"`
	StartedAt   time.Time `json:"started_at" yaml:"started_at"`
	Provider    string    `json:"provider" yaml:"provider"`
	Model       string    `json:"model" yaml:"model"`
	State       string    `json:"state" yaml:"state"`
	Iterations  int       `json:"iterations" yaml:"iterations"`
	InputChars  int       `json:"input_chars" yaml:"input_chars"`
	OutputChars int       `json:"output_chars" yaml:"output_chars"`
	Error       string    `json:"error,omitempty" yaml:"error,omitempty"`

	// Entries are the bibliography entries produced by the run, in order.
	Entries []string `json:"entries,omitempty" yaml:"entries,omitempty"`
}
