package node

import (
	"encoding/binary"
	"time"

	"github.com/meridiankv/meridian/internal/errkind"
	"github.com/meridiankv/meridian/internal/raftkv"
	"github.com/meridiankv/meridian/internal/rpc"
	"github.com/meridiankv/meridian/internal/store"
)

// registerHandlers builds the §4.9 handler registry from this node's
// capabilities. DATASTORE_SYNC is always registered on the DATA
// channel; the client-facing datastore and Raft-KV handlers are
// registered on INGRESS only if has_ingress.
//
// PROCESS_MESSAGE, EXECUTION_UPDATE, and SYNC_CATALOG belong to the
// DAG/pipeline execution engine and are out of scope (see DESIGN.md);
// REQUEST_VOTE/APPEND_ENTRIES/INSTALL_SNAPSHOT are served by Raft's own
// raft.NetworkTransport on its own bind address rather than through this
// registry (see DESIGN.md and SPEC_FULL.md §4.6), so none of those six
// func ids are bound here.
func (s *State) registerHandlers() {
	s.registry.Register(rpc.ChannelData, rpc.FuncDatastoreSync, s.handleDatastoreSync)

	if !s.capabilities.Ingress {
		return
	}

	s.registry.Register(rpc.ChannelIngress, rpc.FuncDatastoreSet, s.handleDatastoreSet)
	s.registry.Register(rpc.ChannelIngress, rpc.FuncDatastoreGet, s.handleDatastoreGet)
	s.registry.Register(rpc.ChannelIngress, rpc.FuncDatastoreUnset, s.handleDatastoreUnset)
	s.registry.Register(rpc.ChannelIngress, rpc.FuncDatastoreList, s.handleDatastoreList)

	if s.raft != nil {
		s.registry.Register(rpc.ChannelIngress, rpc.FuncRaftKVSet, s.handleRaftKVSet)
		s.registry.Register(rpc.ChannelIngress, rpc.FuncRaftKVGet, s.handleRaftKVGet)
		s.registry.Register(rpc.ChannelIngress, rpc.FuncRaftKVUnset, s.handleRaftKVUnset)
		s.registry.Register(rpc.ChannelIngress, rpc.FuncRaftKVList, s.handleRaftKVList)
		s.registry.Register(rpc.ChannelIngress, rpc.FuncRaftStatus, s.handleRaftStatus)
	}
}

// decodeKeyValue parses the [key_len:u16][key][value_len:u32][value]
// request body shared by DATASTORE_SET and RAFT_KV_SET.
func decodeKeyValue(payload []byte) (key string, value []byte, ok bool) {
	if len(payload) < 2 {
		return "", nil, false
	}
	keyLen := int(binary.BigEndian.Uint16(payload))
	off := 2
	if len(payload) < off+keyLen+4 {
		return "", nil, false
	}
	key = string(payload[off : off+keyLen])
	off += keyLen
	valueLen := int(binary.BigEndian.Uint32(payload[off:]))
	off += 4
	if len(payload) < off+valueLen {
		return "", nil, false
	}
	value = payload[off : off+valueLen]
	return key, value, true
}

// decodeKey parses the [key_len:u16][key] request body shared by
// DATASTORE_GET/UNSET and RAFT_KV_GET/UNSET.
func decodeKey(payload []byte) (key string, ok bool) {
	if len(payload) < 2 {
		return "", false
	}
	keyLen := int(binary.BigEndian.Uint16(payload))
	if len(payload) < 2+keyLen {
		return "", false
	}
	return string(payload[2 : 2+keyLen]), true
}

func (s *State) observe(op string, start time.Time) {
	s.metrics.DatastoreOpDuration.WithLabelValues(op).Observe(float64(time.Since(start).Microseconds()))
}

func (s *State) handleDatastoreSet(payload []byte) ([]byte, rpc.Status) {
	start := time.Now()
	defer s.observe("set", start)

	key, value, ok := decodeKeyValue(payload)
	if !ok {
		return nil, rpc.StatusBadArgument
	}

	rec, err := s.datastore.Set(key, value, s.cfg.NodeID)
	if err != nil {
		return nil, rpc.StatusFromKind(errkind.KindOf(err))
	}

	resp := make([]byte, 1+8)
	resp[0] = 1
	binary.BigEndian.PutUint64(resp[1:], rec.Version)
	return resp, rpc.StatusSuccess
}

func (s *State) handleDatastoreGet(payload []byte) ([]byte, rpc.Status) {
	start := time.Now()
	defer s.observe("get", start)
	s.metrics.GetTotal.Inc()

	key, ok := decodeKey(payload)
	if !ok {
		return nil, rpc.StatusBadArgument
	}

	rec, err := s.datastore.Get(key)
	if errkind.Is(err, errkind.NOT_FOUND) || rec.Tombstone {
		return []byte{0}, rpc.StatusSuccess
	}
	if err != nil {
		return nil, rpc.StatusFromKind(errkind.KindOf(err))
	}

	resp := make([]byte, 1+4+len(rec.Value)+8)
	resp[0] = 1
	binary.BigEndian.PutUint32(resp[1:], uint32(len(rec.Value)))
	copy(resp[5:], rec.Value)
	binary.BigEndian.PutUint64(resp[5+len(rec.Value):], rec.Version)
	return resp, rpc.StatusSuccess
}

func (s *State) handleDatastoreUnset(payload []byte) ([]byte, rpc.Status) {
	start := time.Now()
	defer s.observe("unset", start)

	key, ok := decodeKey(payload)
	if !ok {
		return nil, rpc.StatusBadArgument
	}

	if err := s.datastore.Unset(key); err != nil && !errkind.Is(err, errkind.NOT_FOUND) {
		return nil, rpc.StatusFromKind(errkind.KindOf(err))
	}
	return []byte{1}, rpc.StatusSuccess
}

func (s *State) handleDatastoreList(_ []byte) ([]byte, rpc.Status) {
	keys := s.datastore.Keys()

	size := 4
	for _, k := range keys {
		size += 2 + len(k)
	}
	resp := make([]byte, size)
	binary.BigEndian.PutUint32(resp, uint32(len(keys)))
	off := 4
	for _, k := range keys {
		binary.BigEndian.PutUint16(resp[off:], uint16(len(k)))
		off += 2
		off += copy(resp[off:], k)
	}
	return resp, rpc.StatusSuccess
}

func (s *State) handleDatastoreSync(payload []byte) ([]byte, rpc.Status) {
	start := time.Now()
	defer s.observe("sync", start)

	records, err := store.DeserializeRecords(payload)
	if err != nil {
		return nil, rpc.StatusBadArgument
	}

	var merged uint32
	for _, r := range records {
		s.metrics.MergeTotal.Inc()
		applied, err := s.datastore.MergeRecord(r)
		if err != nil {
			return nil, rpc.StatusFromKind(errkind.KindOf(err))
		}
		if applied {
			merged++
		}
	}

	resp := make([]byte, 1+4)
	resp[0] = 1
	binary.BigEndian.PutUint32(resp[1:], merged)
	return resp, rpc.StatusSuccess
}

func (s *State) handleRaftKVSet(payload []byte) ([]byte, rpc.Status) {
	raft, err := s.requireRaft()
	if err != nil {
		return nil, rpc.StatusFromKind(errkind.KindOf(err))
	}

	key, value, ok := decodeKeyValue(payload)
	if !ok {
		return nil, rpc.StatusBadArgument
	}

	cmd := raftkv.Command{Type: raftkv.CommandSet, Key: key, Value: value, Owner: s.cfg.NodeID}
	index, term, err := raft.SubmitCommand(cmd, raftOpTimeout)
	if err != nil {
		return nil, rpc.StatusFromKind(errkind.KindOf(err))
	}
	if err := raft.WaitCommitted(index, raftOpTimeout); err != nil {
		return nil, rpc.StatusFromKind(errkind.KindOf(err))
	}

	resp := make([]byte, 1+8+8)
	resp[0] = 1
	binary.BigEndian.PutUint64(resp[1:], index)
	binary.BigEndian.PutUint64(resp[9:], term)
	return resp, rpc.StatusSuccess
}

func (s *State) handleRaftKVGet(payload []byte) ([]byte, rpc.Status) {
	raft, err := s.requireRaft()
	if err != nil {
		return nil, rpc.StatusFromKind(errkind.KindOf(err))
	}
	if err := raft.EnsureLeader(); err != nil {
		return nil, rpc.StatusFromKind(errkind.KindOf(err))
	}

	key, ok := decodeKey(payload)
	if !ok {
		return nil, rpc.StatusBadArgument
	}

	rec, err := s.datastore.Get(key)
	if errkind.Is(err, errkind.NOT_FOUND) || rec.Tombstone {
		return []byte{0}, rpc.StatusSuccess
	}
	if err != nil {
		return nil, rpc.StatusFromKind(errkind.KindOf(err))
	}

	resp := make([]byte, 1+4+len(rec.Value))
	resp[0] = 1
	binary.BigEndian.PutUint32(resp[1:], uint32(len(rec.Value)))
	copy(resp[5:], rec.Value)
	return resp, rpc.StatusSuccess
}

func (s *State) handleRaftKVUnset(payload []byte) ([]byte, rpc.Status) {
	raft, err := s.requireRaft()
	if err != nil {
		return nil, rpc.StatusFromKind(errkind.KindOf(err))
	}

	key, ok := decodeKey(payload)
	if !ok {
		return nil, rpc.StatusBadArgument
	}

	cmd := raftkv.Command{Type: raftkv.CommandUnset, Key: key, Owner: s.cfg.NodeID}
	index, _, err := raft.SubmitCommand(cmd, raftOpTimeout)
	if err != nil {
		return nil, rpc.StatusFromKind(errkind.KindOf(err))
	}
	if err := raft.WaitCommitted(index, raftOpTimeout); err != nil {
		return nil, rpc.StatusFromKind(errkind.KindOf(err))
	}

	return []byte{1}, rpc.StatusSuccess
}

func (s *State) handleRaftKVList(_ []byte) ([]byte, rpc.Status) {
	if _, err := s.requireRaft(); err != nil {
		return nil, rpc.StatusFromKind(errkind.KindOf(err))
	}
	return s.handleDatastoreList(nil)
}

func (s *State) handleRaftStatus(_ []byte) ([]byte, rpc.Status) {
	raft, err := s.requireRaft()
	if err != nil {
		return nil, rpc.StatusFromKind(errkind.KindOf(err))
	}

	resp := make([]byte, 1+8+8+2)
	if raft.IsLeader() {
		resp[0] = 1
	}
	binary.BigEndian.PutUint64(resp[1:], raft.Term())
	binary.BigEndian.PutUint64(resp[9:], raft.CommitIndex())
	binary.BigEndian.PutUint16(resp[17:], raft.LeaderID())
	return resp, rpc.StatusSuccess
}
