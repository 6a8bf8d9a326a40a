// Package reconstruct rebuilds the state of an asset at any point from its
// nearest snapshot plus the deltas recorded after it.
package reconstruct

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/agenthands/chronicle/internal/core/common"
	"github.com/agenthands/chronicle/internal/core/errs"
	"github.com/agenthands/chronicle/internal/core/model"
	"github.com/agenthands/chronicle/internal/telemetry"
)

// Engine does not invalidate its cache on writes. Callers that save a
// snapshot or delta for an asset must call Invalidate or InvalidateAsset.
type Engine struct {
	store   AssetStore
	cache   *Cache
	flight  singleflight.Group
	logger  *zap.Logger
	metrics *telemetry.Metrics
}

func NewEngine(store AssetStore, cache *Cache, logger *zap.Logger, metrics *telemetry.Metrics) *Engine {
	if cache == nil {
		cache = NewCache(WithCacheMetrics(metrics))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:   store,
		cache:   cache,
		logger:  logger.Named("reconstruct"),
		metrics: metrics,
	}
}

// TimeRef is the ref reported for reconstructions addressed by time.
func TimeRef(at model.Timestamp) string {
	return "t:" + strconv.FormatFloat(float64(at), 'g', -1, 64)
}

func (e *Engine) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	if err := checkAsset(snap.AssetID, snap.AtEventRef, snap.CreatedAt); err != nil {
		return err
	}
	state, err := normalizeState(snap.State)
	if err != nil {
		return err
	}
	snap.State = state
	if err := e.store.SaveSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func (e *Engine) SaveDelta(ctx context.Context, delta model.Delta) error {
	if err := checkAsset(delta.AssetID, delta.EventRef, delta.CreatedAt); err != nil {
		return err
	}
	if delta.Patch == nil {
		return errs.Validation("delta patch must be an object")
	}
	patch, err := normalizeState(delta.Patch)
	if err != nil {
		return err
	}
	delta.Patch = patch
	if err := e.store.SaveDelta(ctx, delta); err != nil {
		return fmt.Errorf("failed to save delta: %w", err)
	}
	return nil
}

// ReconstructAt returns the state of assetID at time at.
func (e *Engine) ReconstructAt(ctx context.Context, assetID string, at model.Timestamp) (model.Reconstruction, error) {
	if !at.IsFinite() {
		return model.Reconstruction{}, errs.InvalidArgument("reconstruction time must be finite, got %v", float64(at))
	}
	return e.reconstruct(ctx, CacheKey{AssetID: assetID, Ref: TimeRef(at), ByTime: true}, at)
}

// ReconstructAtRef returns the state of assetID as of the snapshot or delta
// recorded under ref.
func (e *Engine) ReconstructAtRef(ctx context.Context, assetID, ref string) (model.Reconstruction, error) {
	key := CacheKey{AssetID: assetID, Ref: ref}
	if rec, ok := e.cache.Get(key); ok {
		rec.FromCache = true
		return rec, nil
	}
	at, err := e.store.ResolveRef(ctx, assetID, ref)
	if err != nil {
		return model.Reconstruction{}, err
	}
	return e.reconstruct(ctx, key, at)
}

// Invalidate drops the cached reconstruction of assetID at ref.
func (e *Engine) Invalidate(assetID, ref string) bool {
	return e.cache.Invalidate(CacheKey{AssetID: assetID, Ref: ref})
}

// InvalidateAt drops the cached reconstruction of assetID at time at.
func (e *Engine) InvalidateAt(assetID string, at model.Timestamp) bool {
	return e.cache.Invalidate(CacheKey{AssetID: assetID, Ref: TimeRef(at), ByTime: true})
}

func (e *Engine) InvalidateAsset(assetID string) int {
	return e.cache.InvalidateAsset(assetID)
}

func (e *Engine) Clear() {
	e.cache.Clear()
}

func (e *Engine) CacheStats() CacheStats {
	return e.cache.Stats()
}

func (e *Engine) reconstruct(ctx context.Context, key CacheKey, at model.Timestamp) (model.Reconstruction, error) {
	if key.AssetID == "" {
		return model.Reconstruction{}, errs.Validation("asset_id is required")
	}
	if rec, ok := e.cache.Get(key); ok {
		rec.FromCache = true
		return rec, nil
	}

	// Concurrent misses for the same key and generation share one replay. A
	// replay that overlaps an invalidation is returned but never cached, and
	// callers arriving after the invalidation start a fresh replay.
	gen := e.cache.Generation(key.AssetID)
	flightKey := fmt.Sprintf("%s\x00%t\x00%s\x00%d.%d", key.AssetID, key.ByTime, key.Ref, gen.epoch, gen.asset)
	v, err, _ := e.flight.Do(flightKey, func() (interface{}, error) {
		rec, err := e.replay(ctx, key.AssetID, key.Ref, at)
		if err != nil {
			return nil, err
		}
		if !e.cache.PutIfCurrent(key, rec, gen) {
			e.logger.Debug("reconstruction not cached",
				zap.String("asset", key.AssetID), zap.String("ref", key.Ref))
		}
		return rec, nil
	})
	if err != nil {
		return model.Reconstruction{}, err
	}

	rec := v.(model.Reconstruction)
	rec.State = cloneState(rec.State)
	return rec, nil
}

func (e *Engine) replay(ctx context.Context, assetID, ref string, at model.Timestamp) (model.Reconstruction, error) {
	rec := model.Reconstruction{AssetID: assetID, Ref: ref, At: at, State: model.State{}}

	after := model.Timestamp(math.Inf(-1))
	snap, ok, err := e.store.NearestSnapshot(ctx, assetID, at)
	if err != nil {
		return model.Reconstruction{}, err
	}
	if ok {
		rec.State = cloneState(snap.State)
		rec.SnapshotRef = snap.AtEventRef
		after = snap.CreatedAt
	}

	deltas, err := e.store.DeltasBetween(ctx, assetID, after, at)
	if err != nil {
		return model.Reconstruction{}, err
	}
	for _, d := range deltas {
		Merge(rec.State, d.Patch)
	}
	rec.DeltasApplied = len(deltas)

	e.metrics.ObserveReplay(len(deltas))
	e.logger.Debug("reconstructed asset",
		zap.String("asset", assetID),
		zap.String("ref", ref),
		zap.String("snapshot", rec.SnapshotRef),
		zap.Int("deltas", len(deltas)))
	return rec, nil
}

// Merge applies patch onto state one top-level field at a time. Nested
// objects are replaced, not merged, and a null field is stored as null.
// Values are copied, so state never aliases patch.
func Merge(state, patch model.State) {
	for k, v := range patch {
		state[k] = cloneValue(v)
	}
}

// cloneState deep-copies s. States hold decoded JSON, so maps and slices are
// the only containers.
func cloneState(s model.State) model.State {
	if s == nil {
		return nil
	}
	out := make(model.State, len(s))
	for k, v := range s {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = cloneValue(vv)
		}
		return out
	case model.State:
		return cloneState(t)
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = cloneValue(vv)
		}
		return out
	default:
		return v
	}
}

func checkAsset(assetID, ref string, createdAt model.Timestamp) error {
	if assetID == "" || strings.ContainsRune(assetID, 0) {
		return errs.Validation("asset_id is required and must not contain NUL")
	}
	if ref == "" {
		return errs.Validation("event ref is required")
	}
	if !createdAt.IsFinite() {
		return errs.Validation("created_at must be a finite timestamp, got %v", float64(createdAt))
	}
	return nil
}

func normalizeState(s model.State) (model.State, error) {
	if s == nil {
		return model.State{}, nil
	}
	v, err := common.NormalizeJSON(map[string]any(s))
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errs.Validation("state must be a JSON object")
	}
	return m, nil
}
