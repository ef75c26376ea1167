// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package batch

// State is where a label is in its resolution. Labels move strictly forward:
// PENDING, QUERIED_A, QUERIED_B, RESOLVED.
type State int

const (
	StatePending State = iota
	StateQueriedA
	StateQueriedB
	StateResolved
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateQueriedA:
		return "QUERIED_A"
	case StateQueriedB:
		return "QUERIED_B"
	case StateResolved:
		return "RESOLVED"
	default:
		return "UNKNOWN"
	}
}
