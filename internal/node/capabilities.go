package node

import "github.com/meridiankv/meridian/internal/config"

// Capabilities describes which handler surfaces and peer-advertised
// capability flags this node exposes (§4.8).
type Capabilities struct {
	Ingress bool
	Execute bool
	Route   bool
}

// DetectCapabilities derives a node's capability set from its
// configuration: ingress tracks whether an ingress address is
// configured; execute and route are always enabled.
func DetectCapabilities(cfg *config.Config) Capabilities {
	return Capabilities{
		Ingress: cfg.HasIngress(),
		Execute: true,
		Route:   true,
	}
}

// Strings returns the capability set as peer-advertised capability
// names, for peerpool.Peer.Capabilities.
func (c Capabilities) Strings() []string {
	out := make([]string, 0, 3)
	if c.Execute {
		out = append(out, "execute")
	}
	if c.Route {
		out = append(out, "route")
	}
	if c.Ingress {
		out = append(out, "ingress")
	}
	return out
}
