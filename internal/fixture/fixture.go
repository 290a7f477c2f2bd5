// Package fixture builds small reference datasets shared by the package
// tests.
//
// Every dataset uses the same square underlay:
//
//	PE1 --- P1 --- PE2
//	  \            /
//	   ---- P2 ----
//
// with metric 1 everywhere, so PE1 reaches PE2 over two equal-cost paths and
// the tie goes to P1.
package fixture

import (
	"context"
	"testing"

	"github.com/signalsfoundry/netintent/core"
)

const (
	TEColor uint32 = 100

	RT1 = "65000:1"
	RT2 = "65000:2"
)

var nodes = []core.NodeEntry{
	{ID: "PE1", Role: "PE", Loopback: "10.0.0.1", SID: "fc00:0:1::", Interfaces: map[string]string{"P1": "ge-0/0/0", "P2": "ge-0/0/1"}},
	{ID: "PE2", Role: "PE", Loopback: "10.0.0.2", SID: "fc00:0:2::"},
	{ID: "P1", Role: "P", Loopback: "10.0.0.11", SID: "fc00:0:11::"},
	{ID: "P2", Role: "P", Loopback: "10.0.0.12", SID: "fc00:0:12::"},
	{ID: "CE1", Role: "CE", Loopback: "192.168.1.1"},
	{ID: "CE2", Role: "CE", Loopback: "192.168.2.1"},
	{ID: "CE3", Role: "CE", Loopback: "192.168.3.1"},
	{ID: "CE4", Role: "CE", Loopback: "192.168.4.1"},
}

// Up returns both directions of an up link.
func Up(a, b string) []core.UnderlayEntry {
	return []core.UnderlayEntry{
		{From: a, To: b, State: "up"},
		{From: b, To: a, State: "up"},
	}
}

func square() []core.UnderlayEntry {
	var out []core.UnderlayEntry
	out = append(out, Up("PE1", "P1")...)
	out = append(out, Up("P1", "PE2")...)
	out = append(out, Up("PE1", "P2")...)
	out = append(out, Up("P2", "PE2")...)
	return out
}

func vpn(id, rt string) core.VPNEntry {
	return core.VPNEntry{ID: id, RD: rt, ImportRT: []string{rt}, ExportRT: []string{rt}}
}

// ScenarioA is one VPN with CE1 on PE1 and CE2 on PE2, everything up and
// no tunnels.
func ScenarioA() *core.Dataset {
	return &core.Dataset{
		Overlay: []core.OverlayEntry{
			{CE: "CE1", PE: "PE1", VPN: "VPN1"},
			{CE: "CE2", PE: "PE2", VPN: "VPN1"},
		},
		Underlay: square(),
		ParameterList: core.ParameterList{
			Name:  "scenario-a",
			Nodes: cloneNodes("CE3", "CE4"),
			VPNs:  []core.VPNEntry{vpn("VPN1", RT1)},
		},
	}
}

// ScenarioB is ScenarioA with P1->PE2 declared down while PE2->P1 stays up.
func ScenarioB() *core.Dataset {
	ds := ScenarioA()
	ds.ParameterList.Name = "scenario-b"
	for i, e := range ds.Underlay {
		if e.From == "P1" && e.To == "PE2" {
			ds.Underlay[i].State = "down"
		}
	}
	return ds
}

// TwoVPNs attaches VPN1 (CE1 on PE1, CE2 on PE2) and VPN2 (CE3 on PE1, CE4 on
// PE2) and declares one tunnel PE1->PE2 with color TEColor through P2.
func TwoVPNs() *core.Dataset {
	return &core.Dataset{
		Overlay: []core.OverlayEntry{
			{CE: "CE1", PE: "PE1", VPN: "VPN1"},
			{CE: "CE2", PE: "PE2", VPN: "VPN1"},
			{CE: "CE3", PE: "PE1", VPN: "VPN2"},
			{CE: "CE4", PE: "PE2", VPN: "VPN2"},
		},
		Tunnel: []core.TunnelEntry{
			{Src: "PE1", Dst: "PE2", Color: TEColor, Spine: "P2"},
		},
		Underlay: square(),
		ParameterList: core.ParameterList{
			Name:  "two-vpns",
			Nodes: cloneNodes(),
			VPNs:  []core.VPNEntry{vpn("VPN1", RT1), vpn("VPN2", RT2)},
		},
	}
}

// ScenarioC is TwoVPNs whose PE1/VPN2 VRF also imports VPN1's route target.
func ScenarioC() *core.Dataset {
	ds := Materialize(TwoVPNs())
	ds.ParameterList.Name = "scenario-c"
	vrf := VRF(ds, "PE1", "VPN2")
	vrf.ImportRT = append(vrf.ImportRT, RT1)
	return ds
}

// ScenarioD is TwoVPNs whose PE1 TE policy lists its segments in reverse.
func ScenarioD() *core.Dataset {
	ds := Materialize(TwoVPNs())
	ds.ParameterList.Name = "scenario-d"
	p := &ds.Config.TEPolicies[0]
	p.Segments[0], p.Segments[1] = p.Segments[1], p.Segments[0]
	return ds
}

// Materialize fills ds.Config with the synthesised ground-truth
// configuration so tests can mutate it.
func Materialize(ds *core.Dataset) *core.Dataset {
	ds.Config = core.SynthesizeConfig(ds)
	return ds
}

// MustBuild builds ds or fails the test.
func MustBuild(tb testing.TB, ds *core.Dataset) *core.Topology {
	tb.Helper()
	topo, err := core.Build(context.Background(), ds, nil)
	if err != nil {
		tb.Fatalf("Build(%s): %v", ds.ParameterList.Name, err)
	}
	return topo
}

// VRF returns a pointer to the materialised VRF entry of vpn on pe, or nil.
func VRF(ds *core.Dataset, pe, vpn string) *core.VRFEntry {
	if ds.Config == nil {
		return nil
	}
	for i := range ds.Config.VRFs {
		if ds.Config.VRFs[i].PE == pe && ds.Config.VRFs[i].VPN == vpn {
			return &ds.Config.VRFs[i]
		}
	}
	return nil
}

func cloneNodes(skip ...string) []core.NodeEntry {
	out := make([]core.NodeEntry, 0, len(nodes))
next:
	for _, n := range nodes {
		for _, s := range skip {
			if n.ID == s {
				continue next
			}
		}
		out = append(out, n)
	}
	return out
}
