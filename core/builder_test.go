package core_test

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/signalsfoundry/netintent/core"
	"github.com/signalsfoundry/netintent/internal/fixture"
	"github.com/signalsfoundry/netintent/model"
)

var equatePrefix = cmp.Comparer(func(a, b netip.Prefix) bool { return a == b })

func TestBuildScenarioA(t *testing.T) {
	topo := fixture.MustBuild(t, fixture.ScenarioA())

	want := core.Counts{Nodes: 6, Links: 4, VPNs: 1, VRFs: 2, Policies: 0}
	if diff := cmp.Diff(want, topo.Counts()); diff != "" {
		t.Fatalf("Counts mismatch (-want +got):\n%s", diff)
	}
	if !topo.Synthesized() {
		t.Fatalf("Synthesized = false, want true for a dataset without config")
	}
	if d := topo.Defects(); len(d) != 0 {
		t.Fatalf("Defects = %v, want none", d)
	}
	if got := topo.NodesByRole(model.RoleP, model.RolePE); !cmp.Equal(got, []string{"P1", "P2", "PE1", "PE2"}) {
		t.Fatalf("NodesByRole(P, PE) = %v", got)
	}
	if got := topo.PEsForVPN("VPN1"); !cmp.Equal(got, []string{"PE1", "PE2"}) {
		t.Fatalf("PEsForVPN(VPN1) = %v", got)
	}
	if got := topo.Neighbors("PE1"); !cmp.Equal(got, []string{"P1", "P2"}) {
		t.Fatalf("Neighbors(PE1) = %v", got)
	}
}

func TestBuildRecordsAsymmetricLinkDefect(t *testing.T) {
	topo := fixture.MustBuild(t, fixture.ScenarioB())

	want := []core.Defect{{
		Kind:    core.DefectAsymmetricLink,
		Subject: "P1<->PE2",
		Detail:  "P1->PE2 down, PE2->P1 up",
	}}
	if diff := cmp.Diff(want, topo.Defects()); diff != "" {
		t.Fatalf("Defects mismatch (-want +got):\n%s", diff)
	}
	link, ok := topo.Link("PE2", "P1")
	if !ok {
		t.Fatalf("Link(PE2, P1) not found")
	}
	if link.Bidirectional() || !link.Asymmetric() {
		t.Fatalf("link %s: bidirectional=%v asymmetric=%v", link.Key(), link.Bidirectional(), link.Asymmetric())
	}
}

func TestBuildCollectsEveryStructuralError(t *testing.T) {
	ds := fixture.ScenarioA()
	ds.Overlay = append(ds.Overlay,
		core.OverlayEntry{CE: "CE9", PE: "PE1", VPN: "VPN1"},
		core.OverlayEntry{CE: "CE1", PE: "PE2", VPN: "VPN2"},
	)
	ds.ParameterList.Nodes = append(ds.ParameterList.Nodes,
		core.NodeEntry{ID: "P3", Role: "P", Loopback: "10.0.0.11"},
		core.NodeEntry{ID: "P4", Role: "router", Loopback: "10.0.0.14"},
	)
	ds.Underlay = append(ds.Underlay, core.UnderlayEntry{From: "P1", To: "P1", State: "up"})
	ds.Tunnel = []core.TunnelEntry{{Src: "PE1", Dst: "PE2", Color: 1, Spine: "PE1"}}

	topo, err := core.Build(context.Background(), ds, nil)
	if err == nil {
		t.Fatalf("Build succeeded with %d nodes, want structural errors", topo.Counts().Nodes)
	}
	if topo != nil {
		t.Fatalf("Build returned a topology alongside errors")
	}
	for _, sentinel := range []error{
		core.ErrUnknownNode,
		core.ErrUnknownVPN,
		core.ErrDuplicateLoopback,
		core.ErrInvalidRole,
		core.ErrSelfLink,
		core.ErrRoleMismatch,
	} {
		if !errors.Is(err, sentinel) {
			t.Errorf("errors.Is(err, %v) = false; err = %v", sentinel, err)
		}
	}
	if !core.IsStructural(err) {
		t.Fatalf("IsStructural = false")
	}
	if n := len(core.StructuralErrors(err)); n != 6 {
		t.Fatalf("StructuralErrors = %d entries, want 6:\n%v", n, err)
	}
}

func TestBuildRejectsCEInTwoVPNs(t *testing.T) {
	ds := fixture.TwoVPNs()
	ds.Overlay = append(ds.Overlay, core.OverlayEntry{CE: "CE1", PE: "PE2", VPN: "VPN2"})

	_, err := core.Build(context.Background(), ds, nil)
	if !errors.Is(err, core.ErrCEMultiVPN) {
		t.Fatalf("Build error = %v, want ErrCEMultiVPN", err)
	}
	errs := core.StructuralErrors(err)
	if len(errs) != 1 {
		t.Fatalf("StructuralErrors = %v, want exactly one", errs)
	}
	se := errs[0]
	if se.Descriptor != "overlay" || se.Index != 4 || se.Field != "vpn" || se.Value != "VPN2" {
		t.Fatalf("StructuralError = %+v", se)
	}
}

func TestBuildRejectsEmptyVPN(t *testing.T) {
	ds := fixture.ScenarioA()
	ds.ParameterList.VPNs = append(ds.ParameterList.VPNs, core.VPNEntry{ID: "VPN9", RD: "65000:9"})

	_, err := core.Build(context.Background(), ds, nil)
	if !errors.Is(err, core.ErrEmptyVPN) {
		t.Fatalf("Build error = %v, want ErrEmptyVPN", err)
	}
}

func TestBuildRejectsDuplicateSID(t *testing.T) {
	ds := fixture.ScenarioA()
	ds.ParameterList.Nodes[1].SID = "fc00:0000:0001::"

	_, err := core.Build(context.Background(), ds, nil)
	if !errors.Is(err, core.ErrDuplicateSID) {
		t.Fatalf("Build error = %v, want ErrDuplicateSID", err)
	}
}

func TestBuildRejectsMalformedConfig(t *testing.T) {
	ds := fixture.Materialize(fixture.TwoVPNs())
	ds.Config.VRFs[0].ImportFilters = []core.FilterEntry{{Index: 1, Prefix: "192.168.0.0/33", Action: "permit"}}
	ds.Config.VRFs[1].Attachments[0].State = "flapping"
	ds.Config.TEPolicies = append(ds.Config.TEPolicies, ds.Config.TEPolicies[0])

	_, err := core.Build(context.Background(), ds, nil)
	for _, sentinel := range []error{core.ErrInvalidPrefix, core.ErrInvalidState, core.ErrDuplicatePolicy} {
		if !errors.Is(err, sentinel) {
			t.Errorf("errors.Is(err, %v) = false; err = %v", sentinel, err)
		}
	}
}

func TestBuildMetricMismatchUsesLarger(t *testing.T) {
	ds := fixture.ScenarioA()
	five, seven := 5, 7
	for i, e := range ds.Underlay {
		switch {
		case e.From == "PE1" && e.To == "P1":
			ds.Underlay[i].Metric = &five
		case e.From == "P1" && e.To == "PE1":
			ds.Underlay[i].Metric = &seven
		}
	}
	topo := fixture.MustBuild(t, ds)

	link, _ := topo.Link("PE1", "P1")
	if link.Metric != 7 {
		t.Fatalf("metric = %d, want 7", link.Metric)
	}
	defects := topo.Defects()
	if len(defects) != 1 || defects[0].Kind != core.DefectMetricMismatch {
		t.Fatalf("Defects = %v, want one metric mismatch", defects)
	}
}

func TestSynthesizeConfig(t *testing.T) {
	cfg := core.SynthesizeConfig(fixture.TwoVPNs())

	want := &core.ConfigDescriptor{
		VRFs: []core.VRFEntry{
			{PE: "PE1", Name: "VPN1", VPN: "VPN1", RD: fixture.RT1, ImportRT: []string{fixture.RT1}, ExportRT: []string{fixture.RT1}, Attachments: []core.AttachmentEntry{{CE: "CE1", State: "up"}}},
			{PE: "PE1", Name: "VPN2", VPN: "VPN2", RD: fixture.RT2, ImportRT: []string{fixture.RT2}, ExportRT: []string{fixture.RT2}, Attachments: []core.AttachmentEntry{{CE: "CE3", State: "up"}}},
			{PE: "PE2", Name: "VPN1", VPN: "VPN1", RD: fixture.RT1, ImportRT: []string{fixture.RT1}, ExportRT: []string{fixture.RT1}, Attachments: []core.AttachmentEntry{{CE: "CE2", State: "up"}}},
			{PE: "PE2", Name: "VPN2", VPN: "VPN2", RD: fixture.RT2, ImportRT: []string{fixture.RT2}, ExportRT: []string{fixture.RT2}, Attachments: []core.AttachmentEntry{{CE: "CE4", State: "up"}}},
		},
		TEPolicies: []core.PolicyEntry{{
			PE:          "PE1",
			Name:        "PE1-to-PE2-c100",
			Destination: "PE2",
			Color:       fixture.TEColor,
			Endpoint:    "10.0.0.2",
			Segments:    []string{"fc00:0:12::", "fc00:0:2::"},
		}},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("SynthesizeConfig mismatch (-want +got):\n%s", diff)
	}
}

func TestTopologyAccessorsReturnCopies(t *testing.T) {
	topo := fixture.MustBuild(t, fixture.TwoVPNs())

	vrfs := topo.VRFs()
	vrfs[0].ImportRTs[0] = "mutated"
	vrfs[0].Attachments[0].State = model.LinkDown
	again, _ := topo.VRF(vrfs[0].ID())
	if again.ImportRTs[0] == "mutated" || again.Attachments[0].State == model.LinkDown {
		t.Fatalf("VRF %s mutated through accessor copy: %+v", again.ID(), again)
	}

	p, ok := topo.Policy("PE1", "PE2", fixture.TEColor)
	if !ok {
		t.Fatalf("Policy(PE1, PE2, %d) missing", fixture.TEColor)
	}
	p.Segments[0] = "mutated"
	if again, _ := topo.Policy("PE1", "PE2", fixture.TEColor); again.Segments[0] == "mutated" {
		t.Fatalf("policy segments mutated through accessor copy")
	}
}

func TestIngressVRF(t *testing.T) {
	topo := fixture.MustBuild(t, fixture.TwoVPNs())

	vrf, ok := topo.IngressVRF("CE3")
	if !ok || vrf.ID() != "PE1/VPN2" {
		t.Fatalf("IngressVRF(CE3) = %q, %v; want PE1/VPN2", vrf.ID(), ok)
	}

	ds := fixture.Materialize(fixture.TwoVPNs())
	fixture.VRF(ds, "PE1", "VPN2").Attachments = nil
	topo = fixture.MustBuild(t, ds)
	if _, ok := topo.IngressVRF("CE3"); ok {
		t.Fatalf("IngressVRF(CE3) found a VRF after its attachment was removed")
	}
}

func TestHasSession(t *testing.T) {
	topo := fixture.MustBuild(t, fixture.TwoVPNs())
	if !topo.HasSession("PE1", "PE2") {
		t.Fatalf("full mesh: HasSession(PE1, PE2) = false")
	}
	if topo.HasSession("PE1", "P1") {
		t.Fatalf("full mesh: HasSession(PE1, P1) = true")
	}

	ds := fixture.Materialize(fixture.TwoVPNs())
	ds.Config.BGPSessions = []core.SessionEntry{}
	topo = fixture.MustBuild(t, ds)
	if topo.HasSession("PE1", "PE2") {
		t.Fatalf("empty session list: HasSession(PE1, PE2) = true")
	}
}

func TestStaticRouteDestinationByNodeID(t *testing.T) {
	ds := fixture.Materialize(fixture.ScenarioA())
	ds.Config.StaticRoutes = []core.StaticRouteEntry{
		{Node: "P1", Destination: "PE2", NextHop: "PE1"},
		{Node: "PE1", Destination: "10.0.0.2", NextHop: "P2"},
	}
	topo := fixture.MustBuild(t, ds)

	r, ok := topo.StaticRoute("P1", netip.MustParseAddr("10.0.0.2"))
	if !ok || r.NextHop != "PE1" {
		t.Fatalf("StaticRoute(P1, PE2) = %+v, %v", r, ok)
	}
	if got := len(topo.StaticRoutes("PE1")); got != 1 {
		t.Fatalf("StaticRoutes(PE1) = %d entries, want 1", got)
	}

	ds.Config.StaticRoutes = append(ds.Config.StaticRoutes, core.StaticRouteEntry{Node: "P1", Destination: "10.9.9.9", NextHop: "PE1"})
	if _, err := core.Build(context.Background(), ds, nil); !errors.Is(err, core.ErrUnknownNode) {
		t.Fatalf("Build error = %v, want ErrUnknownNode for an unowned destination", err)
	}
}

func TestNodeBySIDNormalises(t *testing.T) {
	topo := fixture.MustBuild(t, fixture.ScenarioA())
	if id, ok := topo.NodeBySID("fc00:0000:0012::"); !ok || id != "P2" {
		t.Fatalf("NodeBySID = %q, %v; want P2", id, ok)
	}
	if id, ok := topo.NodeByLoopback(netip.MustParseAddr("192.168.2.1")); !ok || id != "CE2" {
		t.Fatalf("NodeByLoopback = %q, %v; want CE2", id, ok)
	}
}

func TestStructuralErrorMessage(t *testing.T) {
	err := &core.StructuralError{Descriptor: "overlay", Index: 2, Field: "pe", Value: "PE9", Err: core.ErrUnknownNode}
	want := `overlay[2].pe "PE9": reference to undeclared node`
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestBuildImportFilterForms(t *testing.T) {
	mask := 24
	ds := fixture.Materialize(fixture.ScenarioA())
	fixture.VRF(ds, "PE1", "VPN1").ImportFilters = []core.FilterEntry{
		{Index: 3},
		{Index: 1, Prefix: "192.168.2.0", Mask: &mask, Action: "deny"},
		{Index: 2, Prefix: "192.168.3.7/24", Mask: &mask, Action: "Permit"},
		{Index: 4, Prefix: "192.168.4.1"},
	}
	topo := fixture.MustBuild(t, ds)
	vrf, ok := topo.VRF("PE1/VPN1")
	if !ok {
		t.Fatalf("VRF PE1/VPN1 missing")
	}
	want := []model.ImportFilter{
		{Index: 1, Prefix: netip.MustParsePrefix("192.168.2.0/24"), Action: model.FilterDeny},
		{Index: 2, Prefix: netip.MustParsePrefix("192.168.3.0/24"), Action: model.FilterPermit},
		{Index: 3, Prefix: netip.MustParsePrefix("0.0.0.0/0"), Action: model.FilterPermit},
		{Index: 4, Prefix: netip.MustParsePrefix("192.168.4.1/32"), Action: model.FilterPermit},
	}
	if diff := cmp.Diff(want, vrf.ImportFilters, equatePrefix); diff != "" {
		t.Fatalf("ImportFilters mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildRejectsMaskOutOfRange(t *testing.T) {
	mask := 33
	ds := fixture.Materialize(fixture.ScenarioA())
	fixture.VRF(ds, "PE1", "VPN1").ImportFilters = []core.FilterEntry{
		{Index: 1, Prefix: "192.168.2.0", Mask: &mask, Action: "deny"},
	}
	if _, err := core.Build(context.Background(), ds, nil); !errors.Is(err, core.ErrInvalidPrefix) {
		t.Fatalf("Build error = %v, want ErrInvalidPrefix", err)
	}
}
