package rtc

import (
	"github.com/BioHazard786/Warpmeet/internal/config"
	"github.com/BioHazard786/Warpmeet/internal/utils"
	"github.com/pion/webrtc/v4"
)

// Configuration builds the peer connection configuration from cfg. Relay
// is forced when requested or when the host looks like it sits behind a
// VPN or CGNAT, but only if a TURN server is available.
func Configuration(cfg *config.Config) webrtc.Configuration {
	return configuration(cfg, utils.ShouldForceRelay)
}

func configuration(cfg *config.Config, detectRelay func() bool) webrtc.Configuration {
	var iceServers []webrtc.ICEServer
	if stun := cfg.STUNServers(); stun != nil {
		iceServers = append(iceServers, webrtc.ICEServer{URLs: stun})
	}

	turnServers := cfg.TURNServers()
	if turnServers != nil {
		username, password := cfg.TURNCredentials()
		iceServers = append(iceServers, webrtc.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := webrtc.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || detectRelay()) {
		policy = webrtc.ICETransportPolicyRelay
	}

	return webrtc.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	}
}
