package rpc

// Function ids for the handlers named in §4.9. DATA carries datastore
// sync; FuncRequestVote, FuncAppendEntries and FuncInstallSnapshot are
// assigned ids but no handler is registered for them, since Raft's own
// RPCs travel over hashicorp/raft's NetworkTransport. INGRESS carries the
// client-facing datastore and Raft-KV operations. PROCESS_MESSAGE, EXECUTION_UPDATE,
// and SYNC_CATALOG belong to the DAG/pipeline execution engine, which is
// out of scope here (see DESIGN.md) and are not assigned ids.
const (
	FuncDatastoreSync uint32 = iota + 1
	FuncRequestVote
	FuncAppendEntries
	FuncInstallSnapshot

	FuncDatastoreSet
	FuncDatastoreGet
	FuncDatastoreUnset
	FuncDatastoreList

	FuncRaftKVSet
	FuncRaftKVGet
	FuncRaftKVUnset
	FuncRaftKVList
	FuncRaftStatus
)
