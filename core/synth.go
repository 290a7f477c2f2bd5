package core

import (
	"sort"

	"github.com/signalsfoundry/netintent/model"
)

// SynthesizeConfig derives the ground-truth configuration from the
// descriptors: one VRF per (PE, VPN) pair named after the VPN and carrying
// the VPN's RD and route targets, every attachment up, a full iBGP mesh, and
// one TE policy per tunnel steering through [SID(spine), SID(dst)].
//
// Entries the descriptors leave unresolvable are skipped; Build reports the
// underlying descriptor problem instead.
func SynthesizeConfig(ds *Dataset) *ConfigDescriptor {
	vpns := make(map[string]VPNEntry, len(ds.ParameterList.VPNs))
	for _, v := range ds.ParameterList.VPNs {
		if _, dup := vpns[v.ID]; !dup {
			vpns[v.ID] = v
		}
	}
	nodes := make(map[string]NodeEntry, len(ds.ParameterList.Nodes))
	for _, n := range ds.ParameterList.Nodes {
		if _, dup := nodes[n.ID]; !dup {
			nodes[n.ID] = n
		}
	}

	hasRole := func(id string, role model.Role) bool {
		n, ok := nodes[id]
		if !ok {
			return false
		}
		r, ok := model.ParseRole(n.Role)
		return ok && r == role
	}

	type vrfKey struct{ pe, vpn string }
	byKey := make(map[vrfKey]*VRFEntry)
	var keys []vrfKey
	attached := make(map[string]bool)
	for _, e := range ds.Overlay {
		v, ok := vpns[e.VPN]
		if !ok || !hasRole(e.PE, model.RolePE) || !hasRole(e.CE, model.RoleCE) || attached[e.CE] {
			continue
		}
		attached[e.CE] = true
		k := vrfKey{e.PE, e.VPN}
		vrf, ok := byKey[k]
		if !ok {
			vrf = &VRFEntry{
				PE:       e.PE,
				Name:     e.VPN,
				VPN:      e.VPN,
				RD:       v.RD,
				ImportRT: append([]string(nil), v.ImportRT...),
				ExportRT: append([]string(nil), v.ExportRT...),
			}
			byKey[k] = vrf
			keys = append(keys, k)
		}
		vrf.Attachments = append(vrf.Attachments, AttachmentEntry{CE: e.CE, State: "up"})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].pe != keys[j].pe {
			return keys[i].pe < keys[j].pe
		}
		return keys[i].vpn < keys[j].vpn
	})

	cfg := &ConfigDescriptor{}
	for _, k := range keys {
		vrf := byKey[k]
		sort.Slice(vrf.Attachments, func(i, j int) bool { return vrf.Attachments[i].CE < vrf.Attachments[j].CE })
		cfg.VRFs = append(cfg.VRFs, *vrf)
	}

	type policyID struct {
		src, dst string
		color    uint32
	}
	seen := make(map[policyID]bool)
	for _, tun := range ds.Tunnel {
		dst, okDst := nodes[tun.Dst]
		spine, okSpine := nodes[tun.Spine]
		id := policyID{tun.Src, tun.Dst, tun.Color}
		if !okDst || !okSpine || seen[id] {
			continue
		}
		if !hasRole(tun.Src, model.RolePE) || !hasRole(tun.Dst, model.RolePE) || !hasRole(tun.Spine, model.RoleP) || tun.Src == tun.Dst {
			continue
		}
		if _, err := parseAddr(dst.Loopback); err != nil {
			continue
		}
		seen[id] = true
		cfg.TEPolicies = append(cfg.TEPolicies, PolicyEntry{
			PE:          tun.Src,
			Name:        PolicyName(tun.Src, tun.Dst, tun.Color),
			Destination: tun.Dst,
			Color:       tun.Color,
			Endpoint:    dst.Loopback,
			Segments:    []string{spine.SID, dst.SID},
		})
	}
	return cfg
}
