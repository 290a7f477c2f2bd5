// Package intent enumerates the concrete intent instances a topology must
// satisfy.
package intent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/signalsfoundry/netintent/core"
	"github.com/signalsfoundry/netintent/model"
)

// Kind identifies one of the six intents.
type Kind int

const (
	// I1: underlay loopback reachability and bidirectional P/PE links.
	I1 Kind = iota + 1
	// I2: intra-VPN CE connectivity in both directions.
	I2
	// I3: inter-VPN isolation.
	I3
	// I4: VPN route visibility without leaks.
	I4
	// I5: SRv6 TE policy correctness and policy/path consistency.
	I5
	// I6: forwarding without blackhole or loop.
	I6
)

// Kinds lists every kind in evaluation order.
func Kinds() []Kind { return []Kind{I1, I2, I3, I4, I5, I6} }

func (k Kind) String() string {
	if k < I1 || k > I6 {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return fmt.Sprintf("I%d", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	if k < I1 || k > I6 {
		return nil, fmt.Errorf("intent: invalid kind %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind accepts "I1".."I6", case-insensitively.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("intent: unknown kind %q", s)
}

// Category groups kinds for scoring.
type Category string

const (
	CategoryUnderlay Category = "underlay"
	CategoryIntra    Category = "intra"
	CategoryInter    Category = "inter"
	CategoryBGP      Category = "bgp"
	CategoryTE       Category = "te"
)

// Categories lists every category in report order.
func Categories() []Category {
	return []Category{CategoryUnderlay, CategoryIntra, CategoryInter, CategoryBGP, CategoryTE}
}

// Category returns the scoring category of k. I1 and I6 both count as
// underlay.
func (k Kind) Category() Category {
	switch k {
	case I1, I6:
		return CategoryUnderlay
	case I2:
		return CategoryIntra
	case I3:
		return CategoryInter
	case I4:
		return CategoryBGP
	case I5:
		return CategoryTE
	default:
		return ""
	}
}

// Ordered reports whether instances of k have directed endpoints.
func (k Kind) Ordered() bool {
	switch k {
	case I3, I5, I6:
		return true
	default:
		return false
	}
}

// Result is the verdict of one instance. Evaluated is false until a
// verifier has run it.
type Result struct {
	Evaluated  bool     `json:"evaluated"`
	Pass       bool     `json:"pass"`
	Diagnostic string   `json:"diagnostic,omitempty"`
	Trace      []string `json:"trace,omitempty"`
}

// Instance is one concrete check. It refers to topology elements by ID only.
//
// A and B are the endpoints: nodes for I1, CEs for I2, I3, I4 and I6 (B is
// empty for I4) and PEs for I5. Unordered endpoints satisfy A < B.
type Instance struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"kind"`
	A       string `json:"a"`
	B       string `json:"b,omitempty"`
	Ordered bool   `json:"ordered"`
	// VPN is the VPN of A for CE-scoped kinds; PeerVPN is B's VPN for I3.
	VPN     string `json:"vpn,omitempty"`
	PeerVPN string `json:"peer_vpn,omitempty"`
	// Color and Spine come from the tunnel descriptor for I5.
	Color  uint32 `json:"color,omitempty"`
	Spine  string `json:"spine,omitempty"`
	Result Result `json:"result"`
}

// Category returns the scoring category of the instance.
func (in Instance) Category() Category { return in.Kind.Category() }

// Tunnel returns the tunnel descriptor entry of an I5 instance.
func (in Instance) Tunnel() model.Tunnel {
	return model.Tunnel{Src: in.A, Dst: in.B, Color: in.Color, Spine: in.Spine}
}

// Instantiate expands topo into every intent instance, ordered by kind and
// then by endpoints and context. The result is deterministic and none of the
// instances is evaluated.
func Instantiate(topo *core.Topology) []Instance {
	var out []Instance

	infra := topo.NodesByRole(model.RoleP, model.RolePE)
	for i, a := range infra {
		for _, b := range infra[i+1:] {
			out = append(out, unordered(I1, a, b, ""))
		}
	}

	vpns := topo.VPNs()
	for _, vpn := range vpns {
		ces := topo.CEsForVPN(vpn)
		for i, a := range ces {
			for _, b := range ces[i+1:] {
				out = append(out, unordered(I2, a, b, vpn))
			}
		}
	}

	for _, vpn := range vpns {
		for _, peer := range vpns {
			if peer == vpn {
				continue
			}
			for _, a := range topo.CEsForVPN(vpn) {
				for _, b := range topo.CEsForVPN(peer) {
					out = append(out, Instance{
						ID:      fmt.Sprintf("%s/%s>%s/%s->%s", I3, vpn, peer, a, b),
						Kind:    I3,
						A:       a,
						B:       b,
						Ordered: true,
						VPN:     vpn,
						PeerVPN: peer,
					})
				}
			}
		}
	}

	for _, vpn := range vpns {
		for _, ce := range topo.CEsForVPN(vpn) {
			out = append(out, Instance{
				ID:   fmt.Sprintf("%s/%s/%s", I4, vpn, ce),
				Kind: I4,
				A:    ce,
				VPN:  vpn,
			})
		}
	}

	for _, t := range topo.Tunnels() {
		out = append(out, Instance{
			ID:      fmt.Sprintf("%s/%s->%s/c%d", I5, t.Src, t.Dst, t.Color),
			Kind:    I5,
			A:       t.Src,
			B:       t.Dst,
			Ordered: true,
			Color:   t.Color,
			Spine:   t.Spine,
		})
	}

	for _, vpn := range vpns {
		ces := topo.CEsForVPN(vpn)
		for _, a := range ces {
			for _, b := range ces {
				if a == b {
					continue
				}
				out = append(out, Instance{
					ID:      fmt.Sprintf("%s/%s/%s->%s", I6, vpn, a, b),
					Kind:    I6,
					A:       a,
					B:       b,
					Ordered: true,
					VPN:     vpn,
				})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func unordered(kind Kind, a, b, vpn string) Instance {
	if b < a {
		a, b = b, a
	}
	id := fmt.Sprintf("%s/%s~%s", kind, a, b)
	if vpn != "" {
		id = fmt.Sprintf("%s/%s/%s~%s", kind, vpn, a, b)
	}
	return Instance{ID: id, Kind: kind, A: a, B: b, VPN: vpn}
}

func less(x, y Instance) bool {
	if x.Kind != y.Kind {
		return x.Kind < y.Kind
	}
	if x.A != y.A {
		return x.A < y.A
	}
	if x.B != y.B {
		return x.B < y.B
	}
	if x.VPN != y.VPN {
		return x.VPN < y.VPN
	}
	if x.PeerVPN != y.PeerVPN {
		return x.PeerVPN < y.PeerVPN
	}
	return x.Color < y.Color
}

// Filter returns the instances whose kind is in kinds, preserving order. No
// kinds keeps everything.
func Filter(instances []Instance, kinds ...Kind) []Instance {
	if len(kinds) == 0 {
		return instances
	}
	keep := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		keep[k] = true
	}
	var out []Instance
	for _, in := range instances {
		if keep[in.Kind] {
			out = append(out, in)
		}
	}
	return out
}

// CountByKind returns the number of instances of each kind.
func CountByKind(instances []Instance) map[Kind]int {
	out := make(map[Kind]int)
	for _, in := range instances {
		out[in.Kind]++
	}
	return out
}
