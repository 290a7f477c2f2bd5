package core

import (
	"net/netip"
	"slices"
	"sort"

	"github.com/signalsfoundry/netintent/model"
)

// Defect is a non-fatal anomaly found while building a topology, such as a
// link declared up in one direction only.
type Defect struct {
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Detail  string `json:"detail"`
}

const (
	DefectAsymmetricLink = "asymmetric-link"
	DefectMetricMismatch = "metric-mismatch"
	DefectUnattachedCE   = "unattached-ce"
)

type policyKey struct {
	pe, destination string
	color           uint32
}

// Topology is the immutable aggregate of one dataset: nodes, links, VPNs,
// attachments and the configuration under test. It is safe for concurrent
// readers; nothing mutates it once Build returns.
type Topology struct {
	name        string
	synthesized bool

	nodes      map[string]model.NetworkNode
	nodeIDs    []string
	byRole     map[model.Role][]string
	byLoopback map[netip.Addr]string
	bySID      map[string]string

	links     map[string]model.NetworkLink
	linkKeys  []string
	neighbors map[string][]string

	vpns        map[string]model.VPN
	vpnIDs      []string
	attachments map[string]model.Attachment
	vpnPEs      map[string][]string

	vrfs     map[string]model.VRF
	vrfIDs   []string
	vrfsByPE map[string][]string

	policies   map[policyKey]model.TEPolicy
	policyList []model.TEPolicy
	tunnels    []model.Tunnel

	// sessions is nil for a full iBGP mesh.
	sessions map[string]struct{}
	statics  map[string][]model.StaticRoute

	defects []Defect
}

// Name returns the topology name from the parameter list.
func (t *Topology) Name() string { return t.name }

// Synthesized reports whether the configuration under test was derived from
// the ground-truth descriptors because the dataset carried none.
func (t *Topology) Synthesized() bool { return t.synthesized }

//
// ---------- Nodes ----------
//

func (t *Topology) Node(id string) (model.NetworkNode, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Nodes returns every node ID, sorted.
func (t *Topology) Nodes() []string { return slices.Clone(t.nodeIDs) }

// NodesByRole returns the sorted IDs of nodes with any of the given roles.
func (t *Topology) NodesByRole(roles ...model.Role) []string {
	var out []string
	for _, r := range roles {
		out = append(out, t.byRole[r]...)
	}
	sort.Strings(out)
	return out
}

// NodeByLoopback resolves a loopback address to its node.
func (t *Topology) NodeByLoopback(addr netip.Addr) (string, bool) {
	id, ok := t.byLoopback[addr]
	return id, ok
}

// NodeBySID resolves an SRv6 SID to its node.
func (t *Topology) NodeBySID(sid string) (string, bool) {
	id, ok := t.bySID[normalizeSID(sid)]
	return id, ok
}

// Loopback returns the loopback of id, or the zero Addr when unknown.
func (t *Topology) Loopback(id string) netip.Addr {
	return t.nodes[id].Loopback
}

//
// ---------- Links ----------
//

// Links returns every declared link ordered by key.
func (t *Topology) Links() []model.NetworkLink {
	out := make([]model.NetworkLink, 0, len(t.linkKeys))
	for _, k := range t.linkKeys {
		out = append(out, t.links[k])
	}
	return out
}

// Link returns the declared link joining a and b, in either order.
func (t *Topology) Link(a, b string) (model.NetworkLink, bool) {
	l, ok := t.links[model.LinkKey(a, b)]
	return l, ok
}

// Neighbors returns the nodes sharing a declared link with id, whatever its
// state, sorted.
func (t *Topology) Neighbors(id string) []string { return slices.Clone(t.neighbors[id]) }

//
// ---------- VPNs and attachments ----------
//

func (t *Topology) VPN(id string) (model.VPN, bool) {
	v, ok := t.vpns[id]
	if !ok {
		return model.VPN{}, false
	}
	return cloneVPN(v), true
}

// VPNs returns every VPN ID, sorted.
func (t *Topology) VPNs() []string { return slices.Clone(t.vpnIDs) }

// Attachment returns the ground-truth attachment of ce.
func (t *Topology) Attachment(ce string) (model.Attachment, bool) {
	a, ok := t.attachments[ce]
	return a, ok
}

// Attachments returns every attachment ordered by CE.
func (t *Topology) Attachments() []model.Attachment {
	out := make([]model.Attachment, 0, len(t.attachments))
	for _, a := range t.attachments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CE < out[j].CE })
	return out
}

// CEsForVPN returns the member CEs of vpn, sorted.
func (t *Topology) CEsForVPN(vpn string) []string {
	return slices.Clone(t.vpns[vpn].Members)
}

// PEsForVPN returns the PEs serving at least one CE of vpn, sorted.
func (t *Topology) PEsForVPN(vpn string) []string {
	return slices.Clone(t.vpnPEs[vpn])
}

//
// ---------- Configuration under test ----------
//

// VRF looks up a VRF by its "PE/Name" identifier.
func (t *Topology) VRF(id string) (model.VRF, bool) {
	v, ok := t.vrfs[id]
	if !ok {
		return model.VRF{}, false
	}
	return cloneVRF(v), true
}

// VRFs returns every VRF ordered by ID.
func (t *Topology) VRFs() []model.VRF {
	out := make([]model.VRF, 0, len(t.vrfIDs))
	for _, id := range t.vrfIDs {
		out = append(out, cloneVRF(t.vrfs[id]))
	}
	return out
}

// VRFsOnPE returns the VRFs configured on pe ordered by ID.
func (t *Topology) VRFsOnPE(pe string) []model.VRF {
	ids := t.vrfsByPE[pe]
	out := make([]model.VRF, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneVRF(t.vrfs[id]))
	}
	return out
}

// IngressVRF returns the VRF on the ground-truth PE of ce that attaches ce.
// When several do, the lowest VRF ID wins.
func (t *Topology) IngressVRF(ce string) (model.VRF, bool) {
	att, ok := t.attachments[ce]
	if !ok {
		return model.VRF{}, false
	}
	for _, id := range t.vrfsByPE[att.PE] {
		v := t.vrfs[id]
		if _, ok := v.Attachment(ce); ok {
			return cloneVRF(v), true
		}
	}
	return model.VRF{}, false
}

// Policy returns the TE policy on pe toward destination with color.
func (t *Topology) Policy(pe, destination string, color uint32) (model.TEPolicy, bool) {
	p, ok := t.policies[policyKey{pe: pe, destination: destination, color: color}]
	if !ok {
		return model.TEPolicy{}, false
	}
	p.Segments = slices.Clone(p.Segments)
	return p, true
}

// Policies returns every TE policy ordered by (PE, destination, color).
func (t *Topology) Policies() []model.TEPolicy {
	out := make([]model.TEPolicy, len(t.policyList))
	for i, p := range t.policyList {
		p.Segments = slices.Clone(p.Segments)
		out[i] = p
	}
	return out
}

// Tunnels returns the tunnel descriptor entries ordered by (src, dst, color).
func (t *Topology) Tunnels() []model.Tunnel { return slices.Clone(t.tunnels) }

// HasSession reports whether an iBGP session joins PEs a and b. Without
// declared sessions every PE pair is meshed.
func (t *Topology) HasSession(a, b string) bool {
	if a == b {
		return true
	}
	if t.sessions == nil {
		return t.nodes[a].Role == model.RolePE && t.nodes[b].Role == model.RolePE
	}
	_, ok := t.sessions[model.LinkKey(a, b)]
	return ok
}

// StaticRoutes returns the static routes configured on node.
func (t *Topology) StaticRoutes(node string) []model.StaticRoute {
	return slices.Clone(t.statics[node])
}

// StaticRoute returns the static route on node toward dst, if any.
func (t *Topology) StaticRoute(node string, dst netip.Addr) (model.StaticRoute, bool) {
	for _, r := range t.statics[node] {
		if r.Destination == dst {
			return r, true
		}
	}
	return model.StaticRoute{}, false
}

// Defects returns the non-fatal anomalies recorded at build time.
func (t *Topology) Defects() []Defect { return slices.Clone(t.defects) }

// Counts summarises the size of the topology.
type Counts struct {
	Nodes    int `json:"nodes"`
	Links    int `json:"links"`
	VPNs     int `json:"vpns"`
	VRFs     int `json:"vrfs"`
	Policies int `json:"policies"`
}

func (t *Topology) Counts() Counts {
	return Counts{
		Nodes:    len(t.nodes),
		Links:    len(t.links),
		VPNs:     len(t.vpns),
		VRFs:     len(t.vrfs),
		Policies: len(t.policies),
	}
}

func cloneVPN(v model.VPN) model.VPN {
	v.ImportRTs = slices.Clone(v.ImportRTs)
	v.ExportRTs = slices.Clone(v.ExportRTs)
	v.Members = slices.Clone(v.Members)
	return v
}

func cloneVRF(v model.VRF) model.VRF {
	v.ImportRTs = slices.Clone(v.ImportRTs)
	v.ExportRTs = slices.Clone(v.ExportRTs)
	v.ImportFilters = slices.Clone(v.ImportFilters)
	v.Attachments = slices.Clone(v.Attachments)
	return v
}
