package model

import "net/netip"

// VPN is a customer L3VPN as bound by the parameter list.
type VPN struct {
	ID        string
	RD        string
	ImportRTs []string
	ExportRTs []string
	// Color steers the VPN's traffic into a TE policy of that color; 0 is
	// best effort.
	Color uint32
	// Members are the CE IDs attached to this VPN, sorted.
	Members []string
}

// Attachment is one (CE, PE, VPN) triple of the overlay descriptor.
type Attachment struct {
	CE  string
	PE  string
	VPN string
}

// FilterAction is the verdict of a VRF import filter rule.
type FilterAction string

const (
	FilterPermit FilterAction = "permit"
	FilterDeny   FilterAction = "deny"
)

// ImportFilter is one ordered rule applied to routes entering a VRF.
// Rules are evaluated by ascending Index, first match wins.
type ImportFilter struct {
	Index  int
	Prefix netip.Prefix
	Action FilterAction
}

// CEAttachment binds a CE to a VRF through its PE-CE link.
type CEAttachment struct {
	CE    string
	State LinkState
}

// VRF is a per-VPN routing instance configured on a PE.
type VRF struct {
	PE            string
	Name          string
	VPN           string
	RD            string
	ImportRTs     []string
	ExportRTs     []string
	ImportFilters []ImportFilter
	Attachments   []CEAttachment
}

// ID returns the "PE/Name" identifier of the VRF.
func (v VRF) ID() string { return v.PE + "/" + v.Name }

// Attachment returns the attachment of ce, if the CE is bound to this VRF.
func (v VRF) Attachment(ce string) (CEAttachment, bool) {
	for _, a := range v.Attachments {
		if a.CE == ce {
			return a, true
		}
	}
	return CEAttachment{}, false
}

// Route is an entry of a VRF route table.
type Route struct {
	Prefix netip.Prefix
	// NextHop is the CE for local routes and the origin PE for imported ones.
	NextHop string
	// RT is the route target that caused the import; empty for local routes.
	RT string
	// ExportRTs are the route targets the route was advertised with.
	ExportRTs []string
	OriginRD  string
	OriginPE  string
	OriginVRF string
	Local     bool
}

// BGPSession is an iBGP session between two PEs.
type BGPSession struct {
	A string
	B string
}
