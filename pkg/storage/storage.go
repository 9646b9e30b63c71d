// Package storage is the orchestrator: it owns the backing store, resolves
// the latest committed version on open, runs the commit pipeline that turns
// a StateDelta into a new authenticated version, and fans out newly
// committed snapshots to subscribers.
package storage

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/nodesbond/penumbra/pkg/broadcast"
	"github.com/nodesbond/penumbra/pkg/delta"
	"github.com/nodesbond/penumbra/pkg/jmt"
	"github.com/nodesbond/penumbra/pkg/kvdb"
	"github.com/nodesbond/penumbra/pkg/snapshot"
	"github.com/nodesbond/penumbra/pkg/snapshotcache"
)

// Config configures Open. Dir is ignored when InMemory is set. A nil Logger
// defaults to zap.NewNop(). SnapshotCacheCapacity <= 0 falls back to
// snapshotcache.DefaultCapacity.
type Config struct {
	Dir                   string
	InMemory              bool
	SnapshotCacheCapacity int
	Logger                *zap.Logger
}

// Storage is the versioned authenticated key-value storage engine: lifecycle
// owner of the backing store, the snapshot cache, and the subscription bus.
type Storage struct {
	db     *kvdb.DB
	cache  *snapshotcache.SnapshotCache
	bus    *broadcast.Bus[*snapshot.Snapshot]
	logger *zap.Logger

	// mu serializes commits: only one Commit can be in flight at a time. It
	// is locked by Commit and released by the commit goroutine itself, not
	// by Commit's caller; cancelling the caller's wait must not unlock it
	// early, since the write it's guarding keeps running regardless.
	mu sync.Mutex
}

// Open opens (or creates) the backing store at cfg.Dir, recovers the latest
// committed version via bootstrap, and primes the snapshot cache with it.
func Open(cfg Config) (*Storage, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := kvdb.Open(kvdb.Options{Dir: cfg.Dir, InMemory: cfg.InMemory, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	version, err := bootstrap(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	snap, err := snapshot.New(db, version)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	cache := snapshotcache.New(cfg.SnapshotCacheCapacity)
	cache.Seed(snap)

	bus := broadcast.New[*snapshot.Snapshot]()
	bus.Publish(snap)

	logger.Info("opened storage", zap.Uint64("version", uint64(version)), zap.String("dir", cfg.Dir))
	return &Storage{db: db, cache: cache, bus: bus, logger: logger}, nil
}

// bootstrap recovers the latest committed version by seeking to the last key
// of the jmt column family: NodeKey's encoding places the version first, so
// the lexicographically last key also carries the highest version, and every
// commit (even one with an empty value set) always writes its root node, so
// this is never stale.
func bootstrap(db *kvdb.DB) (jmt.Version, error) {
	it := db.NewIterator(kvdb.CFJmt)
	defer it.Close()

	it.SeekToLast()
	if !it.Valid() {
		return jmt.PreGenesisVersion, nil
	}

	key, err := jmt.DecodeNodeKey(it.Key())
	if err != nil {
		return 0, fmt.Errorf("%w: decoding bootstrap node key: %v", ErrDecode, err)
	}
	return key.Version, nil
}

// Close closes the backing store. Outstanding Snapshots remain valid until
// then, since they hold a pointer to the same *kvdb.DB.
func (s *Storage) Close() error {
	s.logger.Info("closing storage")
	return s.db.Close()
}

// Latest returns the most recently committed snapshot.
func (s *Storage) Latest() *snapshot.Snapshot {
	snap, _ := s.cache.Latest()
	return snap
}

// SnapshotAt returns the snapshot pinned to version, if still resident in
// the cache.
func (s *Storage) SnapshotAt(version jmt.Version) (*snapshot.Snapshot, bool) {
	return s.cache.Get(version)
}

// NewStateDelta returns a StateDelta staged over the current latest
// snapshot.
func (s *Storage) NewStateDelta() *delta.StateDelta {
	return delta.NewStateDelta(s.Latest())
}

// Subscribe returns a Receiver that observes versions committed after this
// call; the snapshot Open published is not delivered to it. A receiver that
// falls behind sees only the most recent version.
func (s *Storage) Subscribe() *broadcast.Receiver[*snapshot.Snapshot] {
	return s.bus.Subscribe()
}

type commitResult struct {
	snap *snapshot.Snapshot
	err  error
}

// Commit flattens d and, if its base snapshot is still the current latest
// version, applies its staged changes as the next version: a new JMT root is
// computed, the node batch and value bytes are written alongside the
// nonconsensus changes in one atomic backing-store transaction, and the
// resulting snapshot is installed in the cache and published to subscribers.
//
// The actual write happens on a separate goroutine so that cancelling ctx
// only stops the caller from waiting on the result; it never aborts or
// rolls back a write already in flight. A subsequent Commit call blocks
// until that write finishes and releases the single-writer lock, whether or
// not its original caller is still around to observe the result.
func (s *Storage) Commit(ctx context.Context, d *delta.StateDelta) (*snapshot.Snapshot, error) {
	base, cache := d.Flatten()

	s.mu.Lock()
	latest, ok := s.cache.Latest()
	baseVersion := jmt.PreGenesisVersion
	if ok {
		baseVersion = latest.Version()
	}
	if base.Version() != baseVersion {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: delta based on version %d, latest committed is %d", ErrVersionMismatch, base.Version(), baseVersion)
	}

	newVersion := base.Version() + 1
	resultCh := make(chan commitResult, 1)
	go s.runCommit(base, cache, newVersion, resultCh)

	select {
	case res := <-resultCh:
		return res.snap, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// runCommit performs the actual tree update and backing-store write. It
// always releases s.mu when done, regardless of whether Commit's caller is
// still waiting on resultCh.
func (s *Storage) runCommit(base *snapshot.Snapshot, cache *delta.Cache, newVersion jmt.Version, resultCh chan<- commitResult) {
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("commit worker panicked", zap.Any("panic", r))
			select {
			case resultCh <- commitResult{nil, fmt.Errorf("%w: %v", ErrJoin, r)}:
			default:
			}
		}
	}()

	reader := s.db.TreeReader()
	oldRoot, err := jmt.RootRefAt(reader, base.Version())
	if err != nil {
		resultCh <- commitResult{nil, fmt.Errorf("%w: %v", ErrJmt, err)}
		return
	}

	values := authenticatedKeyValues(cache)
	_, batch, err := jmt.PutValueSet(reader, oldRoot, values, newVersion)
	if err != nil {
		resultCh <- commitResult{nil, fmt.Errorf("%w: %v", ErrJmt, err)}
		return
	}

	err = s.db.Update(func(txn *kvdb.Txn) error {
		if err := writeKeyIndex(txn, cache); err != nil {
			return err
		}
		if err := writeNodeBatch(txn, batch); err != nil {
			return err
		}
		if err := writeValues(txn, batch, newVersion); err != nil {
			return err
		}
		return writeNonconsensus(txn, cache)
	})
	if err != nil {
		resultCh <- commitResult{nil, fmt.Errorf("%w: %v", ErrBackingStore, err)}
		return
	}

	snap, err := snapshot.New(s.db, newVersion)
	if err != nil {
		resultCh <- commitResult{nil, fmt.Errorf("%w: %v", ErrBackingStore, err)}
		return
	}

	if err := s.cache.TryPush(snap); err != nil {
		resultCh <- commitResult{nil, fmt.Errorf("%w: %v", ErrBackingStore, err)}
		return
	}

	s.bus.Publish(snap)
	s.logger.Debug("committed version", zap.Uint64("version", uint64(newVersion)))
	resultCh <- commitResult{snap, nil}
}

func authenticatedKeyValues(cache *delta.Cache) []jmt.KeyValue {
	changes := cache.AuthenticatedChanges()
	out := make([]jmt.KeyValue, 0, len(changes))
	for k, v := range changes {
		var val []byte
		if v != nil {
			val = *v
		}
		out = append(out, jmt.KeyValue{KeyHash: jmt.ComputeKeyHash([]byte(k)), Value: val})
	}
	return out
}
