package models

import "slices"

// canTransition looks up a transition table. Moving to the same state is always allowed.
func canTransition[S comparable](table map[S][]S, from, to S) bool {
	if from == to {
		_, ok := table[from]
		return ok
	}
	return slices.Contains(table[from], to)
}
