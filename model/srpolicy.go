package model

import "net/netip"

// TEPolicy represents an SRv6 TE policy bound to a headend PE.
type TEPolicy struct {
	PE          string
	Name        string
	Destination string // PE node ID
	Color       uint32
	Endpoint    netip.Addr
	// Segments is the ordered SID list the headend pushes.
	Segments []string
}

// Tunnel is a TE-enabled PE pair of the tunnel descriptor.
type Tunnel struct {
	Src   string
	Dst   string
	Color uint32
	Spine string // designated P node
}

// StaticRoute overrides the IGP next hop toward Destination on Node.
type StaticRoute struct {
	Node        string
	Destination netip.Addr
	NextHop     string
}
