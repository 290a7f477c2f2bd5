// Package overlay resolves the per-VRF route tables of the configuration
// under test: local CE routes, route-target export and import, iBGP session
// gating and ordered import filters.
package overlay

import (
	"context"
	"fmt"
	"net/netip"
	"slices"
	"sort"
	"strings"

	"github.com/signalsfoundry/netintent/core"
	"github.com/signalsfoundry/netintent/internal/logging"
	"github.com/signalsfoundry/netintent/internal/observability"
	"github.com/signalsfoundry/netintent/internal/underlay"
	"github.com/signalsfoundry/netintent/model"
	"go.opentelemetry.io/otel/attribute"
)

// RIB holds the resolved route table of every VRF. It is read-only once
// Resolve returns.
type RIB struct {
	topo   *core.Topology
	tables map[string]map[netip.Prefix]model.Route
}

// Resolve computes the route tables. A VRF w on PE q imports a route
// exported by VRF u on PE p when
//
//   - p == q, or an iBGP session joins p and q and p is underlay-reachable
//     from q;
//   - the export RTs of u intersect the import RTs of w (the lowest common RT
//     is recorded on the route);
//   - the import filters of w permit the prefix.
//
// A VRF never re-imports its own routes, a local route beats any imported
// route for the same prefix, and among imported candidates the lowest
// (origin PE, origin VRF) wins.
func Resolve(ctx context.Context, topo *core.Topology, g *underlay.Graph, log logging.Logger) (*RIB, error) {
	if log == nil {
		log = logging.Noop()
	}
	ctx, span := observability.StartSpan(ctx, "overlay.Resolve")
	defer span.End()

	vrfs := topo.VRFs()
	rib := &RIB{topo: topo, tables: make(map[string]map[netip.Prefix]model.Route, len(vrfs))}

	locals := make(map[string][]model.Route, len(vrfs))
	for _, v := range vrfs {
		table := make(map[netip.Prefix]model.Route)
		for _, att := range v.Attachments {
			ce, _ := topo.Node(att.CE)
			prefix := ce.LoopbackPrefix()
			if !prefix.IsValid() {
				continue
			}
			r := model.Route{
				Prefix:    prefix,
				NextHop:   att.CE,
				ExportRTs: slices.Clone(v.ExportRTs),
				OriginRD:  v.RD,
				OriginPE:  v.PE,
				OriginVRF: v.ID(),
				Local:     true,
			}
			table[prefix] = r
			locals[v.ID()] = append(locals[v.ID()], r)
		}
		rib.tables[v.ID()] = table
	}

	imported := 0
	for _, w := range vrfs {
		filter, err := compileFilter(w.ImportFilters)
		if err != nil {
			return nil, fmt.Errorf("Resolve: VRF %s import filters: %w", w.ID(), err)
		}
		table := rib.tables[w.ID()]
		for _, u := range vrfs {
			if u.ID() == w.ID() || !peered(topo, g, u.PE, w.PE) {
				continue
			}
			rt, ok := lowestCommon(u.ExportRTs, w.ImportRTs)
			if !ok {
				continue
			}
			for _, local := range locals[u.ID()] {
				if !filter.Permits(local.Prefix) {
					log.Debug(ctx, "import filtered",
						logging.String("vrf", w.ID()),
						logging.String("prefix", local.Prefix.String()),
						logging.String("origin_vrf", u.ID()),
					)
					continue
				}
				candidate := local
				candidate.NextHop = u.PE
				candidate.RT = rt
				candidate.Local = false
				if cur, exists := table[candidate.Prefix]; exists && !preferImported(candidate, cur) {
					continue
				}
				table[candidate.Prefix] = candidate
				imported++
			}
		}
	}

	span.SetAttributes(attribute.Int("vrfs", len(vrfs)), attribute.Int("imports", imported))
	log.Debug(ctx, "overlay resolved",
		logging.Int("vrfs", len(vrfs)),
		logging.Int("imported_routes", imported),
	)
	return rib, nil
}

// peered reports whether routes of a VRF on p can reach a VRF on q.
func peered(topo *core.Topology, g *underlay.Graph, p, q string) bool {
	if p == q {
		return true
	}
	return topo.HasSession(p, q) && g.Reachable(q, p)
}

func preferImported(candidate, cur model.Route) bool {
	if cur.Local {
		return false
	}
	if candidate.OriginPE != cur.OriginPE {
		return candidate.OriginPE < cur.OriginPE
	}
	return candidate.OriginVRF < cur.OriginVRF
}

// lowestCommon returns the lowest RT present in both sorted lists.
func lowestCommon(a, b []string) (string, bool) {
	for _, x := range a {
		if slices.Contains(b, x) {
			return x, true
		}
	}
	return "", false
}

func intersects(a, b []string) bool {
	_, ok := lowestCommon(a, b)
	return ok
}

// Lookup returns the route of vrfID toward addr.
func (r *RIB) Lookup(vrfID string, addr netip.Addr) (model.Route, bool) {
	table, ok := r.tables[vrfID]
	if !ok || !addr.IsValid() {
		return model.Route{}, false
	}
	route, ok := table[netip.PrefixFrom(addr, addr.BitLen())]
	if !ok {
		return model.Route{}, false
	}
	route.ExportRTs = slices.Clone(route.ExportRTs)
	return route, true
}

// Routes returns the table of vrfID ordered by prefix.
func (r *RIB) Routes(vrfID string) []model.Route {
	table := r.tables[vrfID]
	out := make([]model.Route, 0, len(table))
	for _, route := range table {
		route.ExportRTs = slices.Clone(route.ExportRTs)
		out = append(out, route)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Prefix.Addr().Less(out[j].Prefix.Addr())
	})
	return out
}

// VisibleOn reports whether every VRF of ce's VPN on pe holds a route to
// loop(ce) carrying one of the VPN's export RTs, or attaches ce locally. A
// PE without such a VRF does not see ce.
func (r *RIB) VisibleOn(ce, pe string) bool {
	return r.visibility(ce, pe) == ""
}

// visibility returns why ce is not visible on pe, or "" when it is.
func (r *RIB) visibility(ce, pe string) string {
	att, ok := r.topo.Attachment(ce)
	if !ok {
		return fmt.Sprintf("%s is not attached", ce)
	}
	vpn, _ := r.topo.VPN(att.VPN)
	addr := r.topo.Loopback(ce)

	found := false
	for _, v := range r.topo.VRFsOnPE(pe) {
		if v.VPN != att.VPN {
			continue
		}
		found = true
		route, ok := r.Lookup(v.ID(), addr)
		if !ok {
			return fmt.Sprintf("not visible on %s: VRF %s has no route to %s", pe, v.ID(), addr)
		}
		if !route.Local && !intersects(route.ExportRTs, vpn.ExportRTs) {
			return fmt.Sprintf("not visible on %s: VRF %s route to %s carries %s, want one of %s",
				pe, v.ID(), addr, strings.Join(route.ExportRTs, ","), strings.Join(vpn.ExportRTs, ","))
		}
	}
	if !found {
		return fmt.Sprintf("not visible on %s: no VRF bound to %s", pe, att.VPN)
	}
	return ""
}

// Leak is a route to a CE found in a VRF bound to another VPN.
type Leak struct {
	VRF string
	VPN string
	RT  string
}

// Leaks lists the VRFs bound to a VPN other than ce's that hold a route to
// loop(ce), ordered by VRF ID.
func (r *RIB) Leaks(ce string) []Leak {
	att, ok := r.topo.Attachment(ce)
	if !ok {
		return nil
	}
	addr := r.topo.Loopback(ce)
	var out []Leak
	for _, v := range r.topo.VRFs() {
		if v.VPN == att.VPN {
			continue
		}
		if route, ok := r.Lookup(v.ID(), addr); ok {
			out = append(out, Leak{VRF: v.ID(), VPN: v.VPN, RT: route.RT})
		}
	}
	return out
}

// LeaksTo reports whether some VRF bound to vpnOther holds a route to
// loop(ce).
func (r *RIB) LeaksTo(ce, vpnOther string) bool {
	for _, l := range r.Leaks(ce) {
		if l.VPN == vpnOther {
			return true
		}
	}
	return false
}

// Verdict is the outcome of the route visibility check for one CE.
type Verdict struct {
	Pass       bool
	Diagnostic string
	Trace      []string
}

// CheckCE requires ce to be visible on every PE serving its VPN and absent
// from every VRF bound to another VPN. Both conditions are evaluated and
// reported.
func (r *RIB) CheckCE(ce string) Verdict {
	att, ok := r.topo.Attachment(ce)
	if !ok {
		return Verdict{Diagnostic: fmt.Sprintf("%s is not attached", ce)}
	}
	var problems, trace []string
	for _, pe := range r.topo.PEsForVPN(att.VPN) {
		if why := r.visibility(ce, pe); why != "" {
			problems = append(problems, why)
			continue
		}
		trace = append(trace, "visible on "+pe)
	}
	for _, l := range r.Leaks(ce) {
		how := "locally attached"
		if l.RT != "" {
			how = "via RT " + l.RT
		}
		problems = append(problems, fmt.Sprintf("leak into %s (%s) %s", l.VRF, l.VPN, how))
	}
	if len(problems) > 0 {
		return Verdict{Diagnostic: strings.Join(problems, "; "), Trace: trace}
	}
	return Verdict{Pass: true, Trace: trace}
}
