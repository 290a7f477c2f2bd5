package core_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/signalsfoundry/netintent/core"
	"github.com/signalsfoundry/netintent/model"
)

func TestLoadDatasetDirectoryMixedFormats(t *testing.T) {
	ds, err := core.LoadDataset(filepath.Join("testdata", "square"))
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if ds.Config == nil {
		t.Fatalf("config.yaml not loaded")
	}
	if got := len(ds.Underlay); got != 8 {
		t.Fatalf("underlay entries = %d, want 8", got)
	}
	if m := ds.Underlay[2].Metric; m == nil || *m != 10 {
		t.Fatalf("underlay[2].metric = %v, want 10", m)
	}

	topo, err := core.Build(context.Background(), ds, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if topo.Name() != "square" || topo.Synthesized() {
		t.Fatalf("Name = %q, Synthesized = %v", topo.Name(), topo.Synthesized())
	}
	if diff := cmp.Diff(core.Counts{Nodes: 8, Links: 4, VPNs: 2, VRFs: 4, Policies: 1}, topo.Counts()); diff != "" {
		t.Fatalf("Counts mismatch (-want +got):\n%s", diff)
	}

	red, ok := topo.VRF("PE1/red")
	if !ok {
		t.Fatalf("VRF PE1/red missing")
	}
	if len(red.ImportFilters) != 2 || red.ImportFilters[0].Action != model.FilterDeny {
		t.Fatalf("PE1/red filters = %+v", red.ImportFilters)
	}
	if got := red.ImportFilters[0].Prefix.String(); got != "192.168.4.1/32" {
		t.Fatalf("host filter prefix = %s, want 192.168.4.1/32", got)
	}
	if att, _ := topo.VRF("PE2/red"); att.Attachments[0].State != model.LinkDown {
		t.Fatalf("PE2/red attachment state = %q, want down", att.Attachments[0].State)
	}
	if !topo.HasSession("PE2", "PE1") {
		t.Fatalf("declared session PE1-PE2 missing")
	}
	if got := len(topo.StaticRoutes("P1")); got != 1 {
		t.Fatalf("StaticRoutes(P1) = %d, want 1", got)
	}
	if node, _ := topo.Node("PE1"); node.InterfaceTo("P2") != "ge-0/0/1" {
		t.Fatalf("PE1 interface to P2 = %q", node.InterfaceTo("P2"))
	}
}

func TestLoadDatasetBundle(t *testing.T) {
	ds, err := core.LoadDataset(filepath.Join("testdata", "bundle.json"))
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if ds.Config != nil {
		t.Fatalf("bundle without config decoded a config")
	}
	topo, err := core.Build(context.Background(), ds, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	p, ok := topo.Policy("PE1", "PE2", 7)
	if !ok {
		t.Fatalf("synthesised policy missing")
	}
	if diff := cmp.Diff([]string{"fc00:1:11::", "fc00:1:2::"}, p.Segments); diff != "" {
		t.Fatalf("segments mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadDatasetMissingDescriptor(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"overlay.json", "underlay.json", "parameter_list.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	_, err := core.LoadDataset(dir)
	if !errors.Is(err, core.ErrMissingDescriptor) {
		t.Fatalf("LoadDataset error = %v, want ErrMissingDescriptor", err)
	}
	if !strings.Contains(err.Error(), "tunnel") {
		t.Fatalf("error %q does not name the tunnel descriptor", err)
	}
}

func TestLoadDatasetRejectsUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.toml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := core.LoadDataset(path); !errors.Is(err, core.ErrUnknownFormat) {
		t.Fatalf("LoadDataset error = %v, want ErrUnknownFormat", err)
	}
}

func TestDecodeDatasetYAML(t *testing.T) {
	doc := `
parameter_list:
  name: tiny
  nodes:
    - {id: PE1, role: pe, loopback: 10.0.0.1/32}
    - {id: CE1, role: ce, loopback: 192.0.2.1}
  vpns:
    - {id: V, rd: "1:1", import_rt: ["1:1"], export_rt: ["1:1"]}
overlay:
  - {ce: CE1, pe: PE1, vpn: V}
config:
  vrfs: []
  bgp_sessions: []
`
	ds, err := core.DecodeDataset(strings.NewReader(doc), core.FormatYAML)
	if err != nil {
		t.Fatalf("DecodeDataset: %v", err)
	}
	if ds.Config == nil || ds.Config.BGPSessions == nil {
		t.Fatalf("explicit empty bgp_sessions decoded as nil: %+v", ds.Config)
	}
	topo, err := core.Build(context.Background(), ds, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := topo.Loopback("PE1").String(); got != "10.0.0.1" {
		t.Fatalf("Loopback(PE1) = %s, want 10.0.0.1", got)
	}
	if topo.Counts().VRFs != 0 {
		t.Fatalf("explicit empty config grew VRFs")
	}
}

func TestDecodeImportFilterMask(t *testing.T) {
	doc := `{"config": {"vrfs": [{"pe": "PE1", "name": "blue", "vpn": "V",
		"import_filters": [{"index": 1, "prefix": "192.168.2.0", "mask": 24, "action": "deny"}, {"index": 2}]}]}}`
	ds, err := core.DecodeDataset(strings.NewReader(doc), core.FormatJSON)
	if err != nil {
		t.Fatalf("DecodeDataset: %v", err)
	}
	filters := ds.Config.VRFs[0].ImportFilters
	if len(filters) != 2 {
		t.Fatalf("import filters = %+v, want 2", filters)
	}
	if filters[0].Mask == nil || *filters[0].Mask != 24 {
		t.Fatalf("mask not decoded: %+v", filters[0])
	}
	if filters[1].Mask != nil || filters[1].Prefix != "" || filters[1].Action != "" {
		t.Fatalf("defaults not left empty: %+v", filters[1])
	}
}
