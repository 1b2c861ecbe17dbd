package models

// URLState is the lifecycle position of a URL within one crawl.
// Unseen -> Queued -> Fetching -> {LinkedOnly | Accepted} -> Visited. Visited is terminal.
type URLState string

const (
	URLStateUnseen     URLState = ""            // Zero value = never seen
	URLStateQueued     URLState = "queued"      // In the frontier queue
	URLStateFetching   URLState = "fetching"    // Picked up by a worker
	URLStateLinkedOnly URLState = "linked_only" // Processed; contributed links but no document
	URLStateAccepted   URLState = "accepted"    // Processed; produced a document
	URLStateVisited    URLState = "visited"     // Recorded in the visited set
)

// String implements fmt.Stringer for logging
func (s URLState) String() string {
	if s == "" {
		return "unseen"
	}
	return string(s)
}

// IsTerminal reports whether no further transition is possible.
func (s URLState) IsTerminal() bool {
	return s == URLStateVisited
}

// CanTransition reports whether moving from s to next is a legal step.
func (s URLState) CanTransition(next URLState) bool {
	switch s {
	case URLStateUnseen:
		return next == URLStateQueued
	case URLStateQueued:
		return next == URLStateFetching
	case URLStateFetching:
		return next == URLStateLinkedOnly || next == URLStateAccepted
	case URLStateLinkedOnly, URLStateAccepted:
		return next == URLStateVisited
	}
	return false
}
