// Package te validates SRv6 TE policies against the tunnel descriptor and
// checks that simulated forwarding actually follows them.
package te

import (
	"fmt"
	"slices"
	"strings"

	"github.com/signalsfoundry/netintent/core"
	"github.com/signalsfoundry/netintent/internal/fib"
	"github.com/signalsfoundry/netintent/model"
)

// Validator is safe for concurrent use.
type Validator struct {
	topo *core.Topology
	sim  *fib.Simulator
}

func NewValidator(topo *core.Topology, sim *fib.Simulator) *Validator {
	return &Validator{topo: topo, sim: sim}
}

// Verdict is the outcome of validating one tunnel.
type Verdict struct {
	Pass       bool
	Diagnostic string
	Trace      []string
}

// ExpectedSegments returns [SID(spine), SID(dst)] for tun.
func (v *Validator) ExpectedSegments(tun model.Tunnel) []string {
	spine, _ := v.topo.Node(tun.Spine)
	dst, _ := v.topo.Node(tun.Dst)
	return []string{spine.SID, dst.SID}
}

// Validate checks the policy for tun and, when one exists, replays every CE
// pair between the tunnel endpoints. Any mismatch fails the tunnel.
func (v *Validator) Validate(tun model.Tunnel) Verdict {
	problems := v.CheckPolicy(tun)
	if _, ok := v.topo.Policy(tun.Src, tun.Dst, tun.Color); !ok {
		return Verdict{Diagnostic: strings.Join(problems, "; ")}
	}
	pathProblems, trace := v.CheckPaths(tun)
	problems = append(problems, pathProblems...)
	if len(problems) > 0 {
		return Verdict{Diagnostic: strings.Join(problems, "; "), Trace: trace}
	}
	return Verdict{Pass: true, Trace: trace}
}

// CheckPolicy compares the configured policy with the tunnel descriptor and
// reports broken structural invariants of its segment list.
func (v *Validator) CheckPolicy(tun model.Tunnel) []string {
	p, ok := v.topo.Policy(tun.Src, tun.Dst, tun.Color)
	if !ok {
		return []string{fmt.Sprintf("no policy on %s toward %s with color %d", tun.Src, tun.Dst, tun.Color)}
	}
	var problems []string
	if want := v.topo.Loopback(tun.Dst); p.Endpoint != want {
		got := "unset"
		if p.Endpoint.IsValid() {
			got = p.Endpoint.String()
		}
		problems = append(problems, fmt.Sprintf("policy %s endpoint %s, want %s", p.Name, got, want))
	}
	expected := v.ExpectedSegments(tun)
	for i, sid := range expected {
		if sid == "" {
			node := tun.Spine
			if i == len(expected)-1 {
				node = tun.Dst
			}
			problems = append(problems, fmt.Sprintf("%s has no SID", node))
		}
	}
	if !slices.Equal(p.Segments, expected) {
		problems = append(problems, fmt.Sprintf("policy %s segments [%s], want [%s]",
			p.Name, strings.Join(p.Segments, " "), strings.Join(expected, " ")))
	}

	for i, sid := range p.Segments {
		node, ok := v.topo.NodeBySID(sid)
		if !ok {
			problems = append(problems, fmt.Sprintf("segment %d %s does not resolve to a node", i, sid))
			continue
		}
		if i == len(p.Segments)-1 {
			if node != tun.Dst {
				problems = append(problems, fmt.Sprintf("last segment resolves to %s, not %s", node, tun.Dst))
			}
			continue
		}
		if n, _ := v.topo.Node(node); n.Role != model.RoleP {
			problems = append(problems, fmt.Sprintf("segment %d resolves to %s, which is not a P node", i, node))
		}
	}
	return problems
}

// CheckPaths simulates every same-VPN CE pair from the tunnel source PE to
// its destination PE with the tunnel color. Each must be delivered, steered
// by the policy, cross the spine and reach the expected segments in order.
func (v *Validator) CheckPaths(tun model.Tunnel) (problems, trace []string) {
	p, _ := v.topo.Policy(tun.Src, tun.Dst, tun.Color)
	want := []string{tun.Spine, tun.Dst}

	pairs := v.cePairs(tun.Src, tun.Dst)
	if len(pairs) == 0 {
		return nil, []string{fmt.Sprintf("no same-VPN CE pairs between %s and %s", tun.Src, tun.Dst)}
	}
	for _, pair := range pairs {
		label := pair[0] + "->" + pair[1]
		res := v.sim.Simulate(fib.Request{SrcCE: pair[0], DstCE: pair[1], Color: tun.Color})
		trace = append(trace, fmt.Sprintf("%s: %s via %s", label, res.State, strings.Join(res.Path, " ")))
		if !res.Delivered() {
			problems = append(problems, fmt.Sprintf("%s: %s", label, res.Describe()))
			continue
		}
		if res.Policy != p.Name {
			problems = append(problems, fmt.Sprintf("%s: not steered by policy %s", label, p.Name))
		}
		if !slices.Contains(res.Path, tun.Spine) {
			problems = append(problems, fmt.Sprintf("%s: does not traverse spine %s", label, tun.Spine))
		}
		if !slices.Equal(res.SegmentsReached, want) {
			problems = append(problems, fmt.Sprintf("%s: reached segments [%s], want [%s]",
				label, strings.Join(res.SegmentsReached, " "), strings.Join(want, " ")))
		}
	}
	return problems, trace
}

// cePairs lists ordered (src CE, dst CE) pairs of the same VPN attached to
// srcPE and dstPE respectively.
func (v *Validator) cePairs(srcPE, dstPE string) [][2]string {
	var out [][2]string
	atts := v.topo.Attachments()
	for _, a := range atts {
		if a.PE != srcPE {
			continue
		}
		for _, b := range atts {
			if b.PE == dstPE && b.VPN == a.VPN && b.CE != a.CE {
				out = append(out, [2]string{a.CE, b.CE})
			}
		}
	}
	return out
}
