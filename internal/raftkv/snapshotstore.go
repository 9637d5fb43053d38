package raftkv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/hashicorp/raft"
	"github.com/meridiankv/meridian/internal/telemetry/logger"
)

// SnapshotStore is a raft.SnapshotStore backed by badger. It holds only
// Raft snapshot blobs (cluster metadata plus the datastore contents at
// the moment of the snapshot), never live KV records — the in-memory
// datastore non-goal is unaffected.
type SnapshotStore struct {
	db     *badger.DB
	retain int
	logger logger.Logger
}

// NewSnapshotStore opens (or creates) a badger database at dir for
// Raft snapshots, retaining the `retain` most recent snapshots.
func NewSnapshotStore(dir string, retain int, log logger.Logger) (*SnapshotStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(&badgerLogAdapter{logger: log})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("raftkv: open snapshot store: %w", err)
	}
	if retain < 1 {
		retain = 1
	}
	return &SnapshotStore{db: db, retain: retain, logger: log}, nil
}

func (s *SnapshotStore) Close() error {
	return s.db.Close()
}

func metaKey(id string) []byte { return []byte("raftsnap/meta/" + id) }
func dataKey(id string) []byte { return []byte("raftsnap/data/" + id) }

// Create begins a new snapshot. The caller writes the FSM's serialized
// state via the returned sink and calls Close to commit it.
func (s *SnapshotStore) Create(version raft.SnapshotVersion, index, term uint64, configuration raft.Configuration, configurationIndex uint64, trans raft.Transport) (raft.SnapshotSink, error) {
	id := fmt.Sprintf("%d-%d-%d", term, index, time.Now().UnixNano())
	meta := raft.SnapshotMeta{
		Version:            version,
		ID:                 id,
		Index:              index,
		Term:               term,
		Configuration:      configuration,
		ConfigurationIndex: configurationIndex,
	}
	return &snapshotSink{store: s, meta: meta}, nil
}

// List returns known snapshots, most recent first, so Raft restores the
// newest valid one.
func (s *SnapshotStore) List() ([]*raft.SnapshotMeta, error) {
	var metas []*raft.SnapshotMeta

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("raftsnap/meta/")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var meta raft.SnapshotMeta
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &meta)
			})
			if err != nil {
				return err
			}
			metas = append(metas, &meta)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(metas, func(i, j int) bool {
		if metas[i].Term != metas[j].Term {
			return metas[i].Term > metas[j].Term
		}
		return metas[i].Index > metas[j].Index
	})
	return metas, nil
}

// Open returns the metadata and a reader over the snapshot's data.
func (s *SnapshotStore) Open(id string) (*raft.SnapshotMeta, io.ReadCloser, error) {
	var meta raft.SnapshotMeta
	var data []byte

	err := s.db.View(func(txn *badger.Txn) error {
		metaItem, err := txn.Get(metaKey(id))
		if err != nil {
			return err
		}
		if err := metaItem.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		}); err != nil {
			return err
		}

		dataItem, err := txn.Get(dataKey(id))
		if err != nil {
			return err
		}
		data, err = dataItem.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("raftkv: open snapshot %s: %w", id, err)
	}

	return &meta, io.NopCloser(bytes.NewReader(data)), nil
}

func (s *SnapshotStore) persist(meta raft.SnapshotMeta, data []byte) error {
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return err
	}

	if err := s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(metaKey(meta.ID), metaBytes); err != nil {
			return err
		}
		return txn.Set(dataKey(meta.ID), data)
	}); err != nil {
		return err
	}

	return s.trim()
}

// trim drops snapshots beyond the retention count, oldest first.
func (s *SnapshotStore) trim() error {
	metas, err := s.List()
	if err != nil {
		return err
	}
	if len(metas) <= s.retain {
		return nil
	}

	stale := metas[s.retain:]
	return s.db.Update(func(txn *badger.Txn) error {
		for _, m := range stale {
			if err := txn.Delete(metaKey(m.ID)); err != nil {
				return err
			}
			if err := txn.Delete(dataKey(m.ID)); err != nil {
				return err
			}
		}
		return nil
	})
}

type snapshotSink struct {
	store *SnapshotStore
	meta  raft.SnapshotMeta
	buf   bytes.Buffer
}

func (sink *snapshotSink) Write(p []byte) (int, error) {
	return sink.buf.Write(p)
}

func (sink *snapshotSink) ID() string { return sink.meta.ID }

func (sink *snapshotSink) Close() error {
	sink.meta.Size = int64(sink.buf.Len())
	if err := sink.store.persist(sink.meta, sink.buf.Bytes()); err != nil {
		return err
	}
	sink.store.logger.Info("raft snapshot persisted", "id", sink.meta.ID, "size", sink.meta.Size)
	return nil
}

func (sink *snapshotSink) Cancel() error {
	sink.buf.Reset()
	return nil
}

// badgerLogAdapter shims this module's logger.Logger into badger's own
// Logger interface (Errorf/Warningf/Infof/Debugf).
type badgerLogAdapter struct {
	logger logger.Logger
}

func (l *badgerLogAdapter) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}
func (l *badgerLogAdapter) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}
func (l *badgerLogAdapter) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}
func (l *badgerLogAdapter) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
