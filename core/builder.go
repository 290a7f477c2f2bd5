package core

import (
	"context"
	"fmt"
	"net/netip"
	"slices"
	"sort"
	"strings"

	"github.com/signalsfoundry/netintent/internal/logging"
	"github.com/signalsfoundry/netintent/internal/observability"
	"github.com/signalsfoundry/netintent/model"
	"go.opentelemetry.io/otel/attribute"
)

const (
	descNodes    = "parameter_list.nodes"
	descVPNs     = "parameter_list.vpns"
	descOverlay  = "overlay"
	descTunnel   = "tunnel"
	descUnderlay = "underlay"
	descVRFs     = "config.vrfs"
	descPolicies = "config.te_policies"
	descSessions = "config.bgp_sessions"
	descStatics  = "config.static_routes"
)

// Build validates ds and assembles its immutable Topology. All structural
// problems are collected and returned together; when there is at least one,
// no Topology is returned and nothing downstream may be evaluated.
//
// When ds carries no configuration under test, the ground-truth
// configuration is synthesised with SynthesizeConfig and validated the same
// way.
func Build(ctx context.Context, ds *Dataset, log logging.Logger) (*Topology, error) {
	if ds == nil {
		return nil, fmt.Errorf("Build: dataset is nil")
	}
	if log == nil {
		log = logging.Noop()
	}
	name := ds.ParameterList.Name
	ctx, span := observability.StartSpan(ctx, "core.Build", attribute.String("topology", name))
	defer span.End()

	b := newBuilder(name)
	b.addNodes(ds.ParameterList.Nodes)
	b.addVPNs(ds.ParameterList.VPNs)
	b.addOverlay(ds.Overlay)
	b.addUnderlay(ds.Underlay)
	b.addTunnels(ds.Tunnel)

	cfg := ds.Config
	if cfg == nil {
		cfg = SynthesizeConfig(ds)
		b.t.synthesized = true
		log.Debug(ctx, "no configuration under test; synthesised from descriptors",
			logging.Int("vrfs", len(cfg.VRFs)),
			logging.Int("te_policies", len(cfg.TEPolicies)),
		)
	}
	b.addVRFs(cfg.VRFs)
	b.addPolicies(cfg.TEPolicies)
	b.addSessions(cfg.BGPSessions)
	b.addStaticRoutes(cfg.StaticRoutes)

	if err := b.p.err(); err != nil {
		observability.Fail(span, err, "structural error")
		log.Error(ctx, "topology rejected",
			logging.String("topology", name),
			logging.Int("structural_errors", len(b.p.errs)),
			logging.Err(err),
		)
		return nil, fmt.Errorf("Build %q: %w", name, err)
	}

	b.finish()
	t := b.t
	for _, d := range t.defects {
		log.Warn(ctx, "topology defect",
			logging.String("kind", d.Kind),
			logging.String("subject", d.Subject),
			logging.String("detail", d.Detail),
		)
	}
	c := t.Counts()
	span.SetAttributes(
		attribute.Int("nodes", c.Nodes),
		attribute.Int("links", c.Links),
		attribute.Int("vrfs", c.VRFs),
	)
	log.Info(ctx, "topology built",
		logging.String("topology", name),
		logging.Int("nodes", c.Nodes),
		logging.Int("links", c.Links),
		logging.Int("vpns", c.VPNs),
		logging.Int("vrfs", c.VRFs),
		logging.Int("te_policies", c.Policies),
		logging.Int("defects", len(t.defects)),
		logging.Bool("synthesized_config", t.synthesized),
	)
	return t, nil
}

type builder struct {
	t *Topology
	p problems

	vpnIndex       map[string]int
	explicitMetric map[string]bool
}

func newBuilder(name string) *builder {
	return &builder{
		t: &Topology{
			name:        name,
			nodes:       make(map[string]model.NetworkNode),
			byRole:      make(map[model.Role][]string),
			byLoopback:  make(map[netip.Addr]string),
			bySID:       make(map[string]string),
			links:       make(map[string]model.NetworkLink),
			neighbors:   make(map[string][]string),
			vpns:        make(map[string]model.VPN),
			attachments: make(map[string]model.Attachment),
			vpnPEs:      make(map[string][]string),
			vrfs:        make(map[string]model.VRF),
			vrfsByPE:    make(map[string][]string),
			policies:    make(map[policyKey]model.TEPolicy),
			statics:     make(map[string][]model.StaticRoute),
		},
		vpnIndex:       make(map[string]int),
		explicitMetric: make(map[string]bool),
	}
}

// requireNode checks that id names a declared node with one of roles.
// Nodes whose own role was invalid are not reported again.
func (b *builder) requireNode(desc string, idx int, field, id string, roles ...model.Role) bool {
	if id == "" {
		b.p.add(desc, idx, field, "", ErrMissingField)
		return false
	}
	n, ok := b.t.nodes[id]
	if !ok {
		b.p.add(desc, idx, field, id, ErrUnknownNode)
		return false
	}
	if n.Role == "" {
		return false
	}
	if !slices.Contains(roles, n.Role) {
		want := make([]string, len(roles))
		for i, r := range roles {
			want[i] = string(r)
		}
		b.p.add(desc, idx, field, id, fmt.Errorf("%w: is %s, want %s", ErrRoleMismatch, n.Role, strings.Join(want, " or ")))
		return false
	}
	return true
}

func (b *builder) requireVPN(desc string, idx int, field, id string) bool {
	if id == "" {
		b.p.add(desc, idx, field, "", ErrMissingField)
		return false
	}
	if _, ok := b.t.vpns[id]; !ok {
		b.p.add(desc, idx, field, id, ErrUnknownVPN)
		return false
	}
	return true
}

func (b *builder) addNodes(entries []NodeEntry) {
	t := b.t
	for i, e := range entries {
		if e.ID == "" {
			b.p.add(descNodes, i, "id", "", ErrMissingField)
			continue
		}
		if _, dup := t.nodes[e.ID]; dup {
			b.p.add(descNodes, i, "id", e.ID, ErrDuplicateNode)
			continue
		}
		// Registered even when invalid so later references do not cascade
		// into unknown-node errors.
		node := model.NetworkNode{ID: e.ID, Interfaces: cloneMap(e.Interfaces)}
		role, ok := model.ParseRole(e.Role)
		if !ok {
			b.p.add(descNodes, i, "role", e.Role, ErrInvalidRole)
		} else {
			node.Role = role
		}
		if addr, err := parseAddr(e.Loopback); err != nil {
			b.p.add(descNodes, i, "loopback", e.Loopback, fmt.Errorf("%w: %v", ErrInvalidAddress, err))
		} else if other, dup := t.byLoopback[addr]; dup {
			b.p.add(descNodes, i, "loopback", e.Loopback, fmt.Errorf("%w by %s", ErrDuplicateLoopback, other))
		} else {
			node.Loopback = addr
			t.byLoopback[addr] = e.ID
		}
		if sid := normalizeSID(e.SID); sid != "" {
			if other, dup := t.bySID[sid]; dup {
				b.p.add(descNodes, i, "sid", e.SID, fmt.Errorf("%w by %s", ErrDuplicateSID, other))
			} else {
				node.SID = sid
				t.bySID[sid] = e.ID
			}
		}
		t.nodes[e.ID] = node
		if node.Role != "" {
			t.byRole[node.Role] = append(t.byRole[node.Role], e.ID)
		}
	}
}

func (b *builder) addVPNs(entries []VPNEntry) {
	for i, e := range entries {
		if e.ID == "" {
			b.p.add(descVPNs, i, "id", "", ErrMissingField)
			continue
		}
		if _, dup := b.t.vpns[e.ID]; dup {
			b.p.add(descVPNs, i, "id", e.ID, ErrDuplicateVPN)
			continue
		}
		b.vpnIndex[e.ID] = i
		b.t.vpns[e.ID] = model.VPN{
			ID:        e.ID,
			RD:        e.RD,
			ImportRTs: sortedUnique(e.ImportRT),
			ExportRTs: sortedUnique(e.ExportRT),
			Color:     e.Color,
		}
	}
}

func (b *builder) addOverlay(entries []OverlayEntry) {
	t := b.t
	for i, e := range entries {
		okCE := b.requireNode(descOverlay, i, "ce", e.CE, model.RoleCE)
		okPE := b.requireNode(descOverlay, i, "pe", e.PE, model.RolePE)
		okVPN := b.requireVPN(descOverlay, i, "vpn", e.VPN)
		if !okCE || !okPE || !okVPN {
			continue
		}
		if prev, dup := t.attachments[e.CE]; dup {
			if prev.VPN != e.VPN {
				b.p.add(descOverlay, i, "vpn", e.VPN, fmt.Errorf("%w: %s already in %s", ErrCEMultiVPN, e.CE, prev.VPN))
			} else {
				b.p.add(descOverlay, i, "ce", e.CE, fmt.Errorf("%w to %s", ErrDuplicateAttachment, prev.PE))
			}
			continue
		}
		t.attachments[e.CE] = model.Attachment{CE: e.CE, PE: e.PE, VPN: e.VPN}
		v := t.vpns[e.VPN]
		v.Members = append(v.Members, e.CE)
		t.vpns[e.VPN] = v
		if !slices.Contains(t.vpnPEs[e.VPN], e.PE) {
			t.vpnPEs[e.VPN] = append(t.vpnPEs[e.VPN], e.PE)
		}
	}

	empty := make([]string, 0)
	for id, v := range t.vpns {
		if len(v.Members) == 0 {
			empty = append(empty, id)
		}
	}
	sort.Slice(empty, func(i, j int) bool { return b.vpnIndex[empty[i]] < b.vpnIndex[empty[j]] })
	for _, id := range empty {
		b.p.add(descVPNs, b.vpnIndex[id], "id", id, ErrEmptyVPN)
	}
	for _, ce := range t.byRole[model.RoleCE] {
		if _, ok := t.attachments[ce]; !ok {
			t.defects = append(t.defects, Defect{
				Kind:    DefectUnattachedCE,
				Subject: ce,
				Detail:  "CE declared in parameter_list but absent from overlay",
			})
		}
	}
}

func (b *builder) addUnderlay(entries []UnderlayEntry) {
	t := b.t
	type direction struct{ from, to string }
	seen := make(map[direction]int)

	for i, e := range entries {
		ok := b.requireNode(descUnderlay, i, "from", e.From, model.RoleP, model.RolePE)
		ok = b.requireNode(descUnderlay, i, "to", e.To, model.RoleP, model.RolePE) && ok
		if e.From != "" && e.From == e.To {
			b.p.add(descUnderlay, i, "to", e.To, ErrSelfLink)
			ok = false
		}
		state, valid := parseLinkState(e.State, false)
		if !valid {
			b.p.add(descUnderlay, i, "state", e.State, ErrInvalidState)
			ok = false
		}
		if e.Metric != nil && *e.Metric < 0 {
			b.p.add(descUnderlay, i, "metric", fmt.Sprint(*e.Metric), ErrInvalidMetric)
			ok = false
		}
		if !ok {
			continue
		}
		dir := direction{e.From, e.To}
		if first, dup := seen[dir]; dup {
			b.p.add(descUnderlay, i, "to", e.To, fmt.Errorf("%w: %s->%s first at underlay[%d]", ErrDuplicateLink, e.From, e.To, first))
			continue
		}
		seen[dir] = i

		key := model.LinkKey(e.From, e.To)
		link, exists := t.links[key]
		if !exists {
			a, z := e.From, e.To
			if z < a {
				a, z = z, a
			}
			link = model.NetworkLink{A: a, B: z, Metric: model.DefaultMetric}
		}
		if e.Metric != nil && *e.Metric > 0 {
			m := *e.Metric
			switch {
			case !b.explicitMetric[key]:
				link.Metric = m
				b.explicitMetric[key] = true
			case link.Metric != m:
				t.defects = append(t.defects, Defect{
					Kind:    DefectMetricMismatch,
					Subject: key,
					Detail:  fmt.Sprintf("directions declare metrics %d and %d; using %d", link.Metric, m, max(link.Metric, m)),
				})
				link.Metric = max(link.Metric, m)
			}
		}
		if e.From == link.A {
			link.AtoB = state
		} else {
			link.BtoA = state
		}
		t.links[key] = link
	}
}

func (b *builder) addTunnels(entries []TunnelEntry) {
	type tunnelKey struct {
		src, dst string
		color    uint32
	}
	seen := make(map[tunnelKey]int)
	for i, e := range entries {
		ok := b.requireNode(descTunnel, i, "src", e.Src, model.RolePE)
		ok = b.requireNode(descTunnel, i, "dst", e.Dst, model.RolePE) && ok
		ok = b.requireNode(descTunnel, i, "spine", e.Spine, model.RoleP) && ok
		if e.Src != "" && e.Src == e.Dst {
			b.p.add(descTunnel, i, "dst", e.Dst, ErrSelfLink)
			ok = false
		}
		if !ok {
			continue
		}
		k := tunnelKey{e.Src, e.Dst, e.Color}
		if first, dup := seen[k]; dup {
			b.p.add(descTunnel, i, "color", fmt.Sprint(e.Color), fmt.Errorf("%w: first at tunnel[%d]", ErrDuplicateTunnel, first))
			continue
		}
		seen[k] = i
		b.t.tunnels = append(b.t.tunnels, model.Tunnel{Src: e.Src, Dst: e.Dst, Color: e.Color, Spine: e.Spine})
	}
}

func (b *builder) addVRFs(entries []VRFEntry) {
	t := b.t
	for i, e := range entries {
		ok := b.requireNode(descVRFs, i, "pe", e.PE, model.RolePE)
		if e.Name == "" {
			b.p.add(descVRFs, i, "name", "", ErrMissingField)
			ok = false
		}
		ok = b.requireVPN(descVRFs, i, "vpn", e.VPN) && ok

		filters := make([]model.ImportFilter, 0, len(e.ImportFilters))
		for j, f := range e.ImportFilters {
			prefix, err := parseFilterPrefix(f.Prefix, f.Mask)
			if err != nil {
				b.p.add(descVRFs, i, fmt.Sprintf("import_filters[%d].prefix", j), f.Prefix, fmt.Errorf("%w: %v", ErrInvalidPrefix, err))
				ok = false
			}
			action, valid := parseFilterAction(f.Action)
			if !valid {
				b.p.add(descVRFs, i, fmt.Sprintf("import_filters[%d].action", j), f.Action, ErrInvalidAction)
				ok = false
			}
			filters = append(filters, model.ImportFilter{Index: f.Index, Prefix: prefix, Action: action})
		}
		sort.SliceStable(filters, func(x, y int) bool { return filters[x].Index < filters[y].Index })

		attachments := make([]model.CEAttachment, 0, len(e.Attachments))
		for j, a := range e.Attachments {
			field := fmt.Sprintf("attachments[%d]", j)
			if !b.requireNode(descVRFs, i, field+".ce", a.CE, model.RoleCE) {
				ok = false
				continue
			}
			state, valid := parseLinkState(a.State, true)
			if !valid {
				b.p.add(descVRFs, i, field+".state", a.State, ErrInvalidState)
				ok = false
				continue
			}
			if slices.ContainsFunc(attachments, func(x model.CEAttachment) bool { return x.CE == a.CE }) {
				b.p.add(descVRFs, i, field+".ce", a.CE, ErrDuplicateAttachment)
				ok = false
				continue
			}
			attachments = append(attachments, model.CEAttachment{CE: a.CE, State: state})
		}
		if !ok {
			continue
		}

		vrf := model.VRF{
			PE:            e.PE,
			Name:          e.Name,
			VPN:           e.VPN,
			RD:            e.RD,
			ImportRTs:     sortedUnique(e.ImportRT),
			ExportRTs:     sortedUnique(e.ExportRT),
			ImportFilters: filters,
			Attachments:   attachments,
		}
		if _, dup := t.vrfs[vrf.ID()]; dup {
			b.p.add(descVRFs, i, "name", e.Name, ErrDuplicateVRF)
			continue
		}
		t.vrfs[vrf.ID()] = vrf
		t.vrfsByPE[vrf.PE] = append(t.vrfsByPE[vrf.PE], vrf.ID())
	}
}

func (b *builder) addPolicies(entries []PolicyEntry) {
	t := b.t
	for i, e := range entries {
		ok := b.requireNode(descPolicies, i, "pe", e.PE, model.RolePE)
		ok = b.requireNode(descPolicies, i, "destination", e.Destination, model.RolePE) && ok

		var endpoint netip.Addr
		if strings.TrimSpace(e.Endpoint) != "" {
			addr, err := parseAddr(e.Endpoint)
			if err != nil {
				b.p.add(descPolicies, i, "endpoint", e.Endpoint, fmt.Errorf("%w: %v", ErrInvalidAddress, err))
				ok = false
			}
			endpoint = addr
		}
		if !ok {
			continue
		}
		key := policyKey{pe: e.PE, destination: e.Destination, color: e.Color}
		if prev, dup := t.policies[key]; dup {
			b.p.add(descPolicies, i, "color", fmt.Sprint(e.Color), fmt.Errorf("%w: %s", ErrDuplicatePolicy, prev.Name))
			continue
		}
		name := e.Name
		if name == "" {
			name = PolicyName(e.PE, e.Destination, e.Color)
		}
		segments := make([]string, len(e.Segments))
		for j, s := range e.Segments {
			segments[j] = normalizeSID(s)
		}
		p := model.TEPolicy{
			PE:          e.PE,
			Name:        name,
			Destination: e.Destination,
			Color:       e.Color,
			Endpoint:    endpoint,
			Segments:    segments,
		}
		t.policies[key] = p
		t.policyList = append(t.policyList, p)
	}
}

func (b *builder) addSessions(entries []SessionEntry) {
	if entries == nil {
		return
	}
	b.t.sessions = make(map[string]struct{}, len(entries))
	for i, e := range entries {
		ok := b.requireNode(descSessions, i, "a", e.A, model.RolePE)
		ok = b.requireNode(descSessions, i, "b", e.B, model.RolePE) && ok
		if e.A != "" && e.A == e.B {
			b.p.add(descSessions, i, "b", e.B, ErrSelfLink)
			ok = false
		}
		if ok {
			b.t.sessions[model.LinkKey(e.A, e.B)] = struct{}{}
		}
	}
}

func (b *builder) addStaticRoutes(entries []StaticRouteEntry) {
	t := b.t
	for i, e := range entries {
		ok := b.requireNode(descStatics, i, "node", e.Node, model.RoleP, model.RolePE)
		ok = b.requireNode(descStatics, i, "next_hop", e.NextHop, model.RoleP, model.RolePE) && ok
		if e.Node != "" && e.Node == e.NextHop {
			b.p.add(descStatics, i, "next_hop", e.NextHop, ErrSelfLink)
			ok = false
		}
		dst, valid := b.resolveDestination(i, e.Destination)
		if !ok || !valid {
			continue
		}
		if _, dup := t.StaticRoute(e.Node, dst); dup {
			b.p.add(descStatics, i, "destination", e.Destination, ErrDuplicateRoute)
			continue
		}
		t.statics[e.Node] = append(t.statics[e.Node], model.StaticRoute{
			Node:        e.Node,
			Destination: dst,
			NextHop:     e.NextHop,
		})
	}
}

// resolveDestination accepts a loopback address or a node ID and returns the
// loopback it designates.
func (b *builder) resolveDestination(idx int, raw string) (netip.Addr, bool) {
	if raw == "" {
		b.p.add(descStatics, idx, "destination", "", ErrMissingField)
		return netip.Addr{}, false
	}
	if n, ok := b.t.nodes[raw]; ok && n.Loopback.IsValid() {
		return n.Loopback, true
	}
	addr, err := parseAddr(raw)
	if err != nil {
		b.p.add(descStatics, idx, "destination", raw, fmt.Errorf("%w: neither a node nor an address", ErrInvalidAddress))
		return netip.Addr{}, false
	}
	if _, ok := b.t.byLoopback[addr]; !ok {
		b.p.add(descStatics, idx, "destination", raw, fmt.Errorf("%w: no node owns this loopback", ErrUnknownNode))
		return netip.Addr{}, false
	}
	return addr, true
}

// finish sorts every index so accessors are deterministic and records
// link-level defects.
func (b *builder) finish() {
	t := b.t
	for id := range t.nodes {
		t.nodeIDs = append(t.nodeIDs, id)
	}
	sort.Strings(t.nodeIDs)
	for r := range t.byRole {
		sort.Strings(t.byRole[r])
	}

	for key, l := range t.links {
		t.linkKeys = append(t.linkKeys, key)
		t.neighbors[l.A] = append(t.neighbors[l.A], l.B)
		t.neighbors[l.B] = append(t.neighbors[l.B], l.A)
		if l.Asymmetric() {
			t.defects = append(t.defects, Defect{
				Kind:    DefectAsymmetricLink,
				Subject: key,
				Detail:  l.Describe(),
			})
		}
	}
	sort.Strings(t.linkKeys)
	for n := range t.neighbors {
		sort.Strings(t.neighbors[n])
	}

	for id, v := range t.vpns {
		t.vpnIDs = append(t.vpnIDs, id)
		sort.Strings(v.Members)
		t.vpns[id] = v
		sort.Strings(t.vpnPEs[id])
	}
	sort.Strings(t.vpnIDs)

	for id := range t.vrfs {
		t.vrfIDs = append(t.vrfIDs, id)
	}
	sort.Strings(t.vrfIDs)
	for pe := range t.vrfsByPE {
		sort.Strings(t.vrfsByPE[pe])
	}

	sort.Slice(t.policyList, func(i, j int) bool {
		a, z := t.policyList[i], t.policyList[j]
		if a.PE != z.PE {
			return a.PE < z.PE
		}
		if a.Destination != z.Destination {
			return a.Destination < z.Destination
		}
		return a.Color < z.Color
	})
	sort.Slice(t.tunnels, func(i, j int) bool {
		a, z := t.tunnels[i], t.tunnels[j]
		if a.Src != z.Src {
			return a.Src < z.Src
		}
		if a.Dst != z.Dst {
			return a.Dst < z.Dst
		}
		return a.Color < z.Color
	})
	for n := range t.statics {
		sort.Slice(t.statics[n], func(i, j int) bool {
			return t.statics[n][i].Destination.Less(t.statics[n][j].Destination)
		})
	}

	sort.Slice(t.defects, func(i, j int) bool {
		if t.defects[i].Kind != t.defects[j].Kind {
			return t.defects[i].Kind < t.defects[j].Kind
		}
		return t.defects[i].Subject < t.defects[j].Subject
	})
}

// PolicyName is the name given to a TE policy the configuration leaves
// unnamed.
func PolicyName(pe, destination string, color uint32) string {
	return fmt.Sprintf("%s-to-%s-c%d", pe, destination, color)
}

// parseAddr accepts a bare address or a single-host prefix.
func parseAddr(s string) (netip.Addr, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}, fmt.Errorf("empty address")
	}
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Addr{}, err
		}
		if !p.IsSingleIP() {
			return netip.Addr{}, fmt.Errorf("%s is not a host prefix", s)
		}
		return p.Addr().Unmap(), nil
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, err
	}
	return addr.Unmap(), nil
}

// parseFilterPrefix accepts "addr/len", or "addr" with an optional mask
// length. A length in s takes precedence over mask. An empty s stands for
// 0.0.0.0 with a default length of 0.
func parseFilterPrefix(s string, mask *int) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	var addr netip.Addr
	bits := -1
	if s == "" {
		addr, bits = netip.IPv4Unspecified(), 0
	} else {
		a, err := netip.ParseAddr(s)
		if err != nil {
			return netip.Prefix{}, err
		}
		addr = a.Unmap()
	}
	if mask != nil {
		if *mask < 0 || *mask > addr.BitLen() {
			return netip.Prefix{}, fmt.Errorf("mask %d out of range for %s", *mask, addr)
		}
		bits = *mask
	}
	if bits < 0 {
		bits = addr.BitLen()
	}
	return netip.PrefixFrom(addr, bits).Masked(), nil
}

func parseFilterAction(s string) (model.FilterAction, bool) {
	switch model.FilterAction(strings.ToLower(strings.TrimSpace(s))) {
	case "", model.FilterPermit:
		return model.FilterPermit, true
	case model.FilterDeny:
		return model.FilterDeny, true
	default:
		return "", false
	}
}

// parseLinkState maps "up"/"down". An empty state is valid only when
// emptyIsUp is set, as for CE attachments.
func parseLinkState(s string, emptyIsUp bool) (model.LinkState, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "up":
		return model.LinkUp, true
	case "down":
		return model.LinkDown, true
	case "":
		if emptyIsUp {
			return model.LinkUp, true
		}
	}
	return "", false
}

// normalizeSID canonicalises address-shaped SIDs so "fc00:0:1::" and
// "fc00:0000:0001::" compare equal.
func normalizeSID(s string) string {
	s = strings.TrimSpace(s)
	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.String()
	}
	return s
}

func sortedUnique(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return slices.Compact(out)
}

func cloneMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
