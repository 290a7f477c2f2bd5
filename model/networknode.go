package model

import (
	"net/netip"
	"strings"
)

// Role is the function a node plays in the provider network.
type Role string

const (
	RoleP  Role = "P"
	RolePE Role = "PE"
	RoleCE Role = "CE"
)

// ParseRole maps a descriptor role string onto a Role. Matching is
// case-insensitive.
func ParseRole(s string) (Role, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "P":
		return RoleP, true
	case "PE":
		return RolePE, true
	case "CE":
		return RoleCE, true
	default:
		return "", false
	}
}

// NetworkNode represents a router declared in the parameter list.
type NetworkNode struct {
	ID   string
	Role Role

	// Loopback is unique across the topology. For CEs it is also the
	// customer prefix carried in the VPN.
	Loopback netip.Addr

	// SID is the SRv6 node SID. CEs normally leave it empty.
	SID string

	// Interfaces maps a neighbor node ID to the local interface name.
	// Informational only; forwarding is decided on node IDs.
	Interfaces map[string]string
}

// LoopbackPrefix returns the host prefix of the node loopback.
func (n NetworkNode) LoopbackPrefix() netip.Prefix {
	if !n.Loopback.IsValid() {
		return netip.Prefix{}
	}
	return netip.PrefixFrom(n.Loopback, n.Loopback.BitLen())
}

// InterfaceTo returns the interface name facing neighbor, falling back to the
// neighbor ID when the parameter list does not name it.
func (n NetworkNode) InterfaceTo(neighbor string) string {
	if name, ok := n.Interfaces[neighbor]; ok && name != "" {
		return name
	}
	return "to-" + neighbor
}
