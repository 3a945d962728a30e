package utils

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelayLikely(t *testing.T) {
	up := net.FlagUp

	tests := []struct {
		name   string
		ifaces []netInterface
		want   bool
	}{
		{"plain lan", []netInterface{{name: "eth0", flags: up, addrs: []net.IP{net.ParseIP("192.168.1.20")}}}, false},
		{"wireguard", []netInterface{{name: "wg0", flags: up}}, true},
		{"openvpn", []netInterface{{name: "tun0", flags: up}}, true},
		{"cgnat address", []netInterface{{name: "eth0", flags: up, addrs: []net.IP{net.ParseIP("100.101.2.3")}}}, true},
		{"just outside cgnat", []netInterface{{name: "eth0", flags: up, addrs: []net.IP{net.ParseIP("100.128.0.1")}}}, false},
		{"tunnel down", []netInterface{{name: "wg0"}}, false},
		{"loopback ignored", []netInterface{{name: "lo", flags: up | net.FlagLoopback, addrs: []net.IP{net.ParseIP("100.64.0.1")}}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relayLikely(tt.ifaces))
		})
	}
}
