package reconstruct

import (
	"context"
	"sort"
	"sync"

	"github.com/agenthands/chronicle/internal/core/errs"
	"github.com/agenthands/chronicle/internal/core/model"
)

// AssetStore holds the snapshots and deltas of every asset. Both are ordered
// by CreatedAt and then by event ref.
type AssetStore interface {
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
	SaveDelta(ctx context.Context, delta model.Delta) error
	// NearestSnapshot returns the latest snapshot with CreatedAt <= at.
	NearestSnapshot(ctx context.Context, assetID string, at model.Timestamp) (model.Snapshot, bool, error)
	// DeltasBetween returns deltas with after < CreatedAt <= upTo, ascending.
	DeltasBetween(ctx context.Context, assetID string, after, upTo model.Timestamp) ([]model.Delta, error)
	// ResolveRef maps a snapshot or delta event ref to its CreatedAt.
	ResolveRef(ctx context.Context, assetID, ref string) (model.Timestamp, error)
}

type MemoryAssetStore struct {
	mu     sync.RWMutex
	assets map[string]*assetLog
}

type assetLog struct {
	snapshots []model.Snapshot
	deltas    []model.Delta
	refs      map[string]model.Timestamp
}

func NewMemoryAssetStore() *MemoryAssetStore {
	return &MemoryAssetStore{assets: make(map[string]*assetLog)}
}

func (s *MemoryAssetStore) log(assetID string) *assetLog {
	l, ok := s.assets[assetID]
	if !ok {
		l = &assetLog{refs: make(map[string]model.Timestamp)}
		s.assets[assetID] = l
	}
	return l
}

func (s *MemoryAssetStore) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.log(snap.AssetID)
	i := sort.Search(len(l.snapshots), func(i int) bool {
		return !entryBefore(l.snapshots[i].CreatedAt, l.snapshots[i].AtEventRef, snap.CreatedAt, snap.AtEventRef)
	})
	if i < len(l.snapshots) && l.snapshots[i].CreatedAt == snap.CreatedAt && l.snapshots[i].AtEventRef == snap.AtEventRef {
		l.snapshots[i] = snap
	} else {
		l.snapshots = append(l.snapshots, model.Snapshot{})
		copy(l.snapshots[i+1:], l.snapshots[i:])
		l.snapshots[i] = snap
	}
	l.refs[snap.AtEventRef] = snap.CreatedAt
	return nil
}

func (s *MemoryAssetStore) SaveDelta(ctx context.Context, delta model.Delta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l := s.log(delta.AssetID)
	i := sort.Search(len(l.deltas), func(i int) bool {
		return !entryBefore(l.deltas[i].CreatedAt, l.deltas[i].EventRef, delta.CreatedAt, delta.EventRef)
	})
	if i < len(l.deltas) && l.deltas[i].CreatedAt == delta.CreatedAt && l.deltas[i].EventRef == delta.EventRef {
		l.deltas[i] = delta
	} else {
		l.deltas = append(l.deltas, model.Delta{})
		copy(l.deltas[i+1:], l.deltas[i:])
		l.deltas[i] = delta
	}
	l.refs[delta.EventRef] = delta.CreatedAt
	return nil
}

func (s *MemoryAssetStore) NearestSnapshot(ctx context.Context, assetID string, at model.Timestamp) (model.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.assets[assetID]
	if !ok {
		return model.Snapshot{}, false, nil
	}
	i := sort.Search(len(l.snapshots), func(i int) bool { return l.snapshots[i].CreatedAt > at })
	if i == 0 {
		return model.Snapshot{}, false, nil
	}
	return l.snapshots[i-1], true, nil
}

func (s *MemoryAssetStore) DeltasBetween(ctx context.Context, assetID string, after, upTo model.Timestamp) ([]model.Delta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.assets[assetID]
	if !ok {
		return nil, nil
	}
	lo := sort.Search(len(l.deltas), func(i int) bool { return l.deltas[i].CreatedAt > after })
	hi := sort.Search(len(l.deltas), func(i int) bool { return l.deltas[i].CreatedAt > upTo })
	if lo >= hi {
		return nil, nil
	}
	return append([]model.Delta(nil), l.deltas[lo:hi]...), nil
}

func (s *MemoryAssetStore) ResolveRef(ctx context.Context, assetID, ref string) (model.Timestamp, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if l, ok := s.assets[assetID]; ok {
		if ts, ok := l.refs[ref]; ok {
			return ts, nil
		}
	}
	return 0, errs.NotFound("event ref %s of asset %s", ref, assetID)
}

func entryBefore(at model.Timestamp, ref string, otherAt model.Timestamp, otherRef string) bool {
	if at != otherAt {
		return at < otherAt
	}
	return ref < otherRef
}
