package utils

import (
	"net"
	"strings"
)

// Carrier-grade NAT range, also used by Tailscale and Cloudflare WARP.
var cgnatBlock = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

// Interface name fragments of tunnels that rarely carry direct media.
var tunnelNames = []string{"tun", "tap", "wg", "ppp", "warp", "utun"}

type netInterface struct {
	name  string
	flags net.Flags
	addrs []net.IP
}

// ShouldForceRelay reports whether the host looks like it sits behind a VPN
// tunnel or CGNAT, where media should go through TURN.
func ShouldForceRelay() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}

	list := make([]netInterface, 0, len(ifaces))
	for _, iface := range ifaces {
		ni := netInterface{name: iface.Name, flags: iface.Flags}
		if addrs, err := iface.Addrs(); err == nil {
			for _, addr := range addrs {
				switch v := addr.(type) {
				case *net.IPNet:
					ni.addrs = append(ni.addrs, v.IP)
				case *net.IPAddr:
					ni.addrs = append(ni.addrs, v.IP)
				}
			}
		}
		list = append(list, ni)
	}
	return relayLikely(list)
}

func relayLikely(ifaces []netInterface) bool {
	for _, iface := range ifaces {
		if iface.flags&net.FlagUp == 0 || iface.flags&net.FlagLoopback != 0 {
			continue
		}

		name := strings.ToLower(iface.name)
		for _, fragment := range tunnelNames {
			if strings.Contains(name, fragment) {
				return true
			}
		}

		for _, ip := range iface.addrs {
			if cgnatBlock.Contains(ip) {
				return true
			}
		}
	}
	return false
}
