package core

// Dataset is the raw, undecoded-to-model form of one topology instance: the
// four ground-truth descriptors plus the optional configuration under test.
// Field shapes follow the on-disk descriptors so JSON and YAML files decode
// into it directly.
type Dataset struct {
	Overlay       []OverlayEntry    `json:"overlay" yaml:"overlay"`
	Tunnel        []TunnelEntry     `json:"tunnel" yaml:"tunnel"`
	Underlay      []UnderlayEntry   `json:"underlay" yaml:"underlay"`
	ParameterList ParameterList     `json:"parameter_list" yaml:"parameter_list"`
	Config        *ConfigDescriptor `json:"config,omitempty" yaml:"config,omitempty"`
}

// OverlayEntry attaches a CE to a PE inside a VPN.
type OverlayEntry struct {
	CE  string `json:"ce" yaml:"ce"`
	PE  string `json:"pe" yaml:"pe"`
	VPN string `json:"vpn" yaml:"vpn"`
}

// TunnelEntry declares a TE-enabled PE pair and the spine it must cross.
type TunnelEntry struct {
	Src   string `json:"src" yaml:"src"`
	Dst   string `json:"dst" yaml:"dst"`
	Color uint32 `json:"color" yaml:"color"`
	Spine string `json:"spine" yaml:"spine"`
}

// UnderlayEntry declares one direction of a P/PE link.
type UnderlayEntry struct {
	From   string `json:"from" yaml:"from"`
	To     string `json:"to" yaml:"to"`
	State  string `json:"state" yaml:"state"`             // "up" | "down"
	Metric *int   `json:"metric,omitempty" yaml:"metric"` // optional; defaults to 1
}

// ParameterList binds node identities, addressing and VPN route targets.
type ParameterList struct {
	Name  string      `json:"name" yaml:"name"`
	Nodes []NodeEntry `json:"nodes" yaml:"nodes"`
	VPNs  []VPNEntry  `json:"vpns" yaml:"vpns"`
}

type NodeEntry struct {
	ID         string            `json:"id" yaml:"id"`
	Role       string            `json:"role" yaml:"role"` // "P" | "PE" | "CE"
	Loopback   string            `json:"loopback" yaml:"loopback"`
	SID        string            `json:"sid,omitempty" yaml:"sid"`
	Interfaces map[string]string `json:"interfaces,omitempty" yaml:"interfaces"`
}

type VPNEntry struct {
	ID       string   `json:"id" yaml:"id"`
	RD       string   `json:"rd" yaml:"rd"`
	ImportRT []string `json:"import_rt" yaml:"import_rt"`
	ExportRT []string `json:"export_rt" yaml:"export_rt"`
	// Color is the SRv6 color carried by the VPN's traffic; 0 is best effort.
	Color uint32 `json:"color,omitempty" yaml:"color"`
}

// ConfigDescriptor is the logical form of the configuration under test.
type ConfigDescriptor struct {
	VRFs       []VRFEntry    `json:"vrfs" yaml:"vrfs"`
	TEPolicies []PolicyEntry `json:"te_policies" yaml:"te_policies"`
	// BGPSessions nil means a full iBGP mesh between PEs; an empty list
	// means no sessions at all.
	BGPSessions  []SessionEntry     `json:"bgp_sessions" yaml:"bgp_sessions"`
	StaticRoutes []StaticRouteEntry `json:"static_routes,omitempty" yaml:"static_routes"`
}

type VRFEntry struct {
	PE            string            `json:"pe" yaml:"pe"`
	Name          string            `json:"name" yaml:"name"`
	VPN           string            `json:"vpn" yaml:"vpn"`
	RD            string            `json:"rd" yaml:"rd"`
	ImportRT      []string          `json:"import_rt" yaml:"import_rt"`
	ExportRT      []string          `json:"export_rt" yaml:"export_rt"`
	ImportFilters []FilterEntry     `json:"import_filters,omitempty" yaml:"import_filters"`
	Attachments   []AttachmentEntry `json:"attachments" yaml:"attachments"`
}

// FilterEntry is one import filter rule. Prefix is an address or a prefix
// with length ("10.0.0.0/24"). A bare address takes its length from Mask, or
// is matched as a host route when Mask is absent. An empty Prefix means
// 0.0.0.0 and, without Mask, matches everything. Action defaults to permit.
type FilterEntry struct {
	Index  int    `json:"index" yaml:"index"`
	Prefix string `json:"prefix,omitempty" yaml:"prefix"`
	Mask   *int   `json:"mask,omitempty" yaml:"mask"`
	Action string `json:"action,omitempty" yaml:"action"` // "permit" | "deny"
}

type AttachmentEntry struct {
	CE    string `json:"ce" yaml:"ce"`
	State string `json:"state,omitempty" yaml:"state"` // defaults to "up"
}

type PolicyEntry struct {
	PE          string   `json:"pe" yaml:"pe"`
	Name        string   `json:"name" yaml:"name"`
	Destination string   `json:"destination" yaml:"destination"`
	Color       uint32   `json:"color" yaml:"color"`
	Endpoint    string   `json:"endpoint" yaml:"endpoint"`
	Segments    []string `json:"segments" yaml:"segments"`
}

type SessionEntry struct {
	A string `json:"a" yaml:"a"`
	B string `json:"b" yaml:"b"`
}

// StaticRouteEntry overrides the IGP on Node. Destination is a loopback
// address or the ID of the node owning it.
type StaticRouteEntry struct {
	Node        string `json:"node" yaml:"node"`
	Destination string `json:"destination" yaml:"destination"`
	NextHop     string `json:"next_hop" yaml:"next_hop"`
}
