// Package fib replays data-plane forwarding hop by hop over the resolved VRF
// tables, TE policies, static routes and the IGP.
package fib

import (
	"fmt"
	"strings"

	"github.com/signalsfoundry/netintent/core"
	"github.com/signalsfoundry/netintent/internal/overlay"
	"github.com/signalsfoundry/netintent/internal/underlay"
	"github.com/signalsfoundry/netintent/model"
)

// State is the position of a simulated packet.
type State int

const (
	AtSourcePE State = iota
	InTransit
	AtDestPE
	Delivered
	Blackhole
	LoopDetected
)

var stateNames = [...]string{
	AtSourcePE:   "AT_SOURCE_PE",
	InTransit:    "IN_TRANSIT",
	AtDestPE:     "AT_DEST_PE",
	Delivered:    "DELIVERED",
	Blackhole:    "BLACKHOLE",
	LoopDetected: "LOOP_DETECTED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Cause explains a BLACKHOLE or LOOP_DETECTED outcome.
type Cause string

const (
	CauseNone           Cause = ""
	CauseAttachmentDown Cause = "attachment-down"
	CauseNoVRFRoute     Cause = "no-vrf-route"
	CauseSIDUnresolved  Cause = "sid-unresolved"
	CauseNoFIBEntry     Cause = "no-fib-entry"
	CauseLinkDown       Cause = "link-down"
	CauseEgressNoRoute  Cause = "egress-no-route"
	CauseRevisit        Cause = "revisit"
	CauseHopBudget      Cause = "hop-budget-exceeded"
)

// Request asks for one packet from SrcCE to the loopback of DstCE. Color 0
// disables TE steering.
type Request struct {
	SrcCE string
	DstCE string
	Color uint32
}

// Result is the outcome of one simulation.
type Result struct {
	State State
	Cause Cause
	// Node and Link locate the failure when there is one.
	Node string
	Link string

	// Path is the ordered node sequence visited, CEs included.
	Path []string
	// SegmentsReached lists, in order, the nodes at which a steering target
	// was reached. Unsteered packets reach only the egress PE.
	SegmentsReached []string
	// Policy is the name of the TE policy that steered the packet.
	Policy string
	// Route is the ingress VRF route used, zero when the lookup failed.
	Route model.Route
	Trace []string
}

// Delivered reports whether the packet reached the destination CE.
func (r Result) Delivered() bool { return r.State == Delivered }

// Describe renders the outcome for diagnostics, naming the offending node
// and link.
func (r Result) Describe() string {
	var b strings.Builder
	b.WriteString(r.State.String())
	if r.Node != "" {
		b.WriteString(" at ")
		b.WriteString(r.Node)
	}
	if r.Cause != CauseNone {
		b.WriteString(": ")
		b.WriteString(string(r.Cause))
	}
	if r.Link != "" {
		b.WriteString(" on ")
		b.WriteString(r.Link)
	}
	return b.String()
}

// Simulator is stateless between calls and safe for concurrent use.
type Simulator struct {
	topo  *core.Topology
	graph *underlay.Graph
	rib   *overlay.RIB
}

func NewSimulator(topo *core.Topology, g *underlay.Graph, rib *overlay.RIB) *Simulator {
	return &Simulator{topo: topo, graph: g, rib: rib}
}

// run carries the in-flight state of one simulation.
type run struct {
	res     Result
	visited map[string]bool
}

func (r *run) tracef(format string, args ...any) {
	r.res.Trace = append(r.res.Trace, fmt.Sprintf(format, args...))
}

func (r *run) fail(state State, cause Cause, node, link string, format string, args ...any) Result {
	r.res.State = state
	r.res.Cause = cause
	r.res.Node = node
	r.res.Link = link
	r.tracef(format, args...)
	return r.res
}

// FlowColor returns the color a packet from srcCE to dstCE carries: the
// color of srcCE's VPN when set, otherwise the lowest color of a tunnel
// declared between the two attachment PEs. 0 means best effort.
func (s *Simulator) FlowColor(srcCE, dstCE string) uint32 {
	src, ok := s.topo.Attachment(srcCE)
	if !ok {
		return 0
	}
	if vpn, ok := s.topo.VPN(src.VPN); ok && vpn.Color != 0 {
		return vpn.Color
	}
	dst, ok := s.topo.Attachment(dstCE)
	if !ok {
		return 0
	}
	var color uint32
	for _, t := range s.topo.Tunnels() {
		if t.Src == src.PE && t.Dst == dst.PE && (color == 0 || t.Color < color) {
			color = t.Color
		}
	}
	return color
}

// Simulate forwards one packet and returns where it ended up.
func (s *Simulator) Simulate(req Request) Result {
	r := &run{res: Result{State: AtSourcePE}, visited: make(map[string]bool)}

	src, ok := s.topo.Attachment(req.SrcCE)
	if !ok {
		return r.fail(Blackhole, CauseNoVRFRoute, "", "", "%s has no attachment", req.SrcCE)
	}
	dst, ok := s.topo.Attachment(req.DstCE)
	if !ok {
		return r.fail(Blackhole, CauseNoVRFRoute, src.PE, "", "%s has no attachment", req.DstCE)
	}
	ingress := src.PE
	r.res.Path = []string{req.SrcCE, ingress}
	r.visited[ingress] = true

	vrf, ok := s.topo.IngressVRF(req.SrcCE)
	if !ok {
		return r.fail(Blackhole, CauseNoVRFRoute, ingress, "", "%s: no VRF attaches %s", ingress, req.SrcCE)
	}
	if att, _ := vrf.Attachment(req.SrcCE); att.State != model.LinkUp {
		return r.fail(Blackhole, CauseAttachmentDown, ingress, model.LinkKey(req.SrcCE, ingress),
			"%s: attachment of %s in VRF %s is down", ingress, req.SrcCE, vrf.ID())
	}

	dstAddr := s.topo.Loopback(req.DstCE)
	route, ok := s.rib.Lookup(vrf.ID(), dstAddr)
	if !ok {
		return r.fail(Blackhole, CauseNoVRFRoute, ingress, "",
			"%s: VRF %s has no route to %s", ingress, vrf.ID(), dstAddr)
	}
	r.res.Route = route
	egress := route.OriginPE
	if route.Local {
		r.tracef("%s: VRF %s local route %s via %s", ingress, vrf.ID(), route.Prefix, route.NextHop)
	} else {
		r.tracef("%s: VRF %s route %s via %s (RT %s, RD %s)", ingress, vrf.ID(), route.Prefix, egress, route.RT, route.OriginRD)
	}

	targets := []string{egress}
	if req.Color != 0 && egress != ingress {
		if policy, ok := s.topo.Policy(ingress, egress, req.Color); ok {
			resolved, bad, ok := s.resolveSegments(policy.Segments)
			if !ok {
				return r.fail(Blackhole, CauseSIDUnresolved, ingress, "",
					"%s: policy %s segment %q does not resolve to a node", ingress, policy.Name, bad)
			}
			r.res.Policy = policy.Name
			targets = resolved
			r.tracef("%s: steered by policy %s (color %d) through %s", ingress, policy.Name, req.Color, strings.Join(resolved, ", "))
		}
	}

	if res, done := s.transit(r, ingress, targets); done {
		return res
	}

	cur := r.res.Path[len(r.res.Path)-1]
	if cur != egress {
		return r.fail(Blackhole, CauseEgressNoRoute, cur, "",
			"%s: last segment ends here but the route egress is %s", cur, egress)
	}
	r.res.State = AtDestPE

	egressRoute, ok := s.rib.Lookup(route.OriginVRF, dstAddr)
	if !ok || !egressRoute.Local {
		return r.fail(Blackhole, CauseEgressNoRoute, egress, "",
			"%s: VRF %s has no local route to %s", egress, route.OriginVRF, dstAddr)
	}
	egressVRF, _ := s.topo.VRF(route.OriginVRF)
	if att, ok := egressVRF.Attachment(req.DstCE); !ok || att.State != model.LinkUp {
		return r.fail(Blackhole, CauseAttachmentDown, egress, model.LinkKey(egress, req.DstCE),
			"%s: attachment of %s in VRF %s is down", egress, req.DstCE, egressVRF.ID())
	}

	r.res.Path = append(r.res.Path, req.DstCE)
	r.res.State = Delivered
	r.tracef("%s: delivered to %s (VPN %s)", egress, req.DstCE, dst.VPN)
	return r.res
}

// transit walks from ingress through every target in order. done is true
// when the walk ended in BLACKHOLE or LOOP_DETECTED.
func (s *Simulator) transit(r *run, ingress string, targets []string) (Result, bool) {
	budget := len(s.graph.Nodes()) + len(targets)
	hops := 0
	cur := ingress
	for _, target := range targets {
		if cur != target {
			r.res.State = InTransit
		}
		for cur != target {
			if hops >= budget {
				return r.fail(LoopDetected, CauseHopBudget, cur, "",
					"%s: hop budget of %d exhausted toward %s", cur, budget, target), true
			}
			next, via := s.nextHop(cur, target)
			if next == "" {
				return r.fail(Blackhole, CauseNoFIBEntry, cur, "",
					"%s: no FIB entry for %s (%s)", cur, s.topo.Loopback(target), target), true
			}
			key := model.LinkKey(cur, next)
			if link, ok := s.topo.Link(cur, next); !ok || link.StateFrom(cur) != model.LinkUp {
				return r.fail(Blackhole, CauseLinkDown, cur, key,
					"%s: next hop %s toward %s but %s->%s is not up", cur, next, target, cur, next), true
			}
			if r.visited[next] {
				r.res.Path = append(r.res.Path, next)
				return r.fail(LoopDetected, CauseRevisit, next, key,
					"%s: next hop %s toward %s was already visited", cur, next, target), true
			}
			r.visited[next] = true
			r.res.Path = append(r.res.Path, next)
			node, _ := s.topo.Node(cur)
			r.tracef("%s -> %s on %s toward %s (%s)", cur, next, node.InterfaceTo(next), target, via)
			cur = next
			hops++
		}
		r.res.SegmentsReached = append(r.res.SegmentsReached, target)
	}
	return Result{}, false
}

// nextHop consults the static routes of node first, then the IGP.
func (s *Simulator) nextHop(node, target string) (string, string) {
	if sr, ok := s.topo.StaticRoute(node, s.topo.Loopback(target)); ok {
		return sr.NextHop, "static"
	}
	if hop, ok := s.graph.NextHop(node, target); ok && hop != node {
		return hop, "igp"
	}
	return "", ""
}

func (s *Simulator) resolveSegments(segments []string) ([]string, string, bool) {
	if len(segments) == 0 {
		return nil, "", false
	}
	out := make([]string, len(segments))
	for i, sid := range segments {
		node, ok := s.topo.NodeBySID(sid)
		if !ok {
			return nil, sid, false
		}
		out[i] = node
	}
	return out, "", true
}
