package cluster

import (
	"encoding/json"

	"github.com/meridiankv/meridian/internal/config"
)

// digestEntry is the compact per-member summary exchanged on a gossip
// tick (§4.4): {node_id, incarnation, status, last_seen}.
type digestEntry struct {
	NodeID      uint16 `json:"n"`
	NodeType    string `json:"t"`
	IP          string `json:"ip"`
	GossipPort  int    `json:"gp"`
	DataPort    int    `json:"dp"`
	Status      byte   `json:"s"`
	Incarnation uint64 `json:"i"`
	LastSeenMs  int64  `json:"l"`
}

// envelopeKind distinguishes a fire-and-forget digest push from a join
// request that expects the recipient's full view pushed back.
type envelopeKind byte

const (
	envelopePush        envelopeKind = 0
	envelopeJoinRequest envelopeKind = 1
)

type envelope struct {
	Kind    envelopeKind  `json:"k"`
	From    uint16        `json:"f"`
	Entries []digestEntry `json:"e"`
}

func memberToDigest(m Member) digestEntry {
	return digestEntry{
		NodeID:      m.NodeID,
		NodeType:    string(m.NodeType),
		IP:          m.IP,
		GossipPort:  m.GossipPort,
		DataPort:    m.DataPort,
		Status:      byte(m.Status),
		Incarnation: m.Incarnation,
		LastSeenMs:  m.LastSeenMs,
	}
}

func digestToMember(d digestEntry) Member {
	return Member{
		NodeID:      d.NodeID,
		NodeType:    config.NodeType(d.NodeType),
		IP:          d.IP,
		GossipPort:  d.GossipPort,
		DataPort:    d.DataPort,
		Status:      Status(d.Status),
		Incarnation: d.Incarnation,
		LastSeenMs:  d.LastSeenMs,
	}
}

func encodeEnvelope(env envelope) ([]byte, error) {
	return json.Marshal(env)
}

func decodeEnvelope(data []byte) (envelope, error) {
	var env envelope
	err := json.Unmarshal(data, &env)
	return env, err
}
