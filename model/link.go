package model

import "fmt"

// LinkState is the administrative state declared for one direction of a link.
type LinkState string

const (
	LinkUp         LinkState = "up"
	LinkDown       LinkState = "down"
	LinkUndeclared LinkState = ""
)

// DefaultMetric is used when the underlay descriptor omits a metric.
const DefaultMetric = 1

// NetworkLink is an unordered P/PE adjacency. A is always the lower node ID.
// Each direction carries its own declared state.
type NetworkLink struct {
	A string
	B string

	AtoB LinkState
	BtoA LinkState

	Metric int
}

// LinkKey returns the canonical "A<->B" key for an unordered node pair.
func LinkKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "<->" + b
}

// Key returns the canonical key of the link.
func (l NetworkLink) Key() string { return LinkKey(l.A, l.B) }

// Bidirectional reports whether both directions are declared up.
func (l NetworkLink) Bidirectional() bool {
	return l.AtoB == LinkUp && l.BtoA == LinkUp
}

// Asymmetric reports whether exactly one direction is declared up.
func (l NetworkLink) Asymmetric() bool {
	return (l.AtoB == LinkUp) != (l.BtoA == LinkUp)
}

// StateFrom returns the declared state of the direction leaving node.
func (l NetworkLink) StateFrom(node string) LinkState {
	switch node {
	case l.A:
		return l.AtoB
	case l.B:
		return l.BtoA
	default:
		return LinkUndeclared
	}
}

// Describe renders the per-direction state, e.g. "P1->PE1 up, PE1->P1 down".
func (l NetworkLink) Describe() string {
	return fmt.Sprintf("%s->%s %s, %s->%s %s",
		l.A, l.B, stateName(l.AtoB), l.B, l.A, stateName(l.BtoA))
}

func stateName(s LinkState) string {
	if s == LinkUndeclared {
		return "undeclared"
	}
	return string(s)
}
