package reconstruct

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/agenthands/chronicle/internal/core/errs"
	"github.com/agenthands/chronicle/internal/core/model"
)

type BadgerConfig struct {
	Path       string
	InMemory   bool
	SyncWrites bool
	Logger     *zap.Logger
}

func InMemoryBadgerConfig() BadgerConfig {
	return BadgerConfig{InMemory: true}
}

type badgerLogger struct {
	logger *zap.SugaredLogger
}

func (l *badgerLogger) Errorf(format string, args ...interface{})   { l.logger.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...interface{}) { l.logger.Warnf(format, args...) }
func (l *badgerLogger) Infof(format string, args ...interface{})    { l.logger.Infof(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...interface{})   { l.logger.Debugf(format, args...) }

func OpenBadger(cfg BadgerConfig) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger.Named("badger").Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

// Key layout, with 0x00 separators:
//
//	snap  asset ts ref -> Snapshot JSON
//	delta asset ts ref -> Delta JSON
//	ref   asset ref    -> ts
//
// ts is an order-preserving encoding of the float timestamp, so a prefix
// scan walks entries in CreatedAt order.
const (
	snapPrefix  = "snap"
	deltaPrefix = "delta"
	refPrefix   = "ref"
)

type BadgerAssetStore struct {
	db *badger.DB
}

func NewBadgerAssetStore(db *badger.DB) *BadgerAssetStore {
	return &BadgerAssetStore{db: db}
}

func (s *BadgerAssetStore) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(entryKey(snapPrefix, snap.AssetID, snap.CreatedAt, snap.AtEventRef), val); err != nil {
			return err
		}
		return txn.Set(refKey(snap.AssetID, snap.AtEventRef), encodeTime(snap.CreatedAt))
	})
}

func (s *BadgerAssetStore) SaveDelta(ctx context.Context, delta model.Delta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := json.Marshal(delta)
	if err != nil {
		return fmt.Errorf("failed to encode delta: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(entryKey(deltaPrefix, delta.AssetID, delta.CreatedAt, delta.EventRef), val); err != nil {
			return err
		}
		return txn.Set(refKey(delta.AssetID, delta.EventRef), encodeTime(delta.CreatedAt))
	})
}

func (s *BadgerAssetStore) NearestSnapshot(ctx context.Context, assetID string, at model.Timestamp) (model.Snapshot, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.Snapshot{}, false, err
	}

	prefix := assetPrefix(snapPrefix, assetID)
	// Every key for time "at" has a non-empty ref after the timestamp, so the
	// next timestamp's bare prefix sorts after all of them.
	seek := binary.BigEndian.AppendUint64(append([]byte(nil), prefix...), orderedBits(at)+1)

	var snap model.Snapshot
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(seek)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		found = true
		return it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if err != nil {
		return model.Snapshot{}, false, fmt.Errorf("failed to find snapshot: %w", err)
	}
	return snap, found, nil
}

func (s *BadgerAssetStore) DeltasBetween(ctx context.Context, assetID string, after, upTo model.Timestamp) ([]model.Delta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := assetPrefix(deltaPrefix, assetID)
	var deltas []model.Delta
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(binary.BigEndian.AppendUint64(append([]byte(nil), prefix...), orderedBits(after)+1)); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			ts := decodeOrdered(binary.BigEndian.Uint64(key[len(prefix) : len(prefix)+8]))
			if ts > upTo {
				break
			}
			if ts <= after {
				continue
			}
			var d model.Delta
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &d)
			}); err != nil {
				return err
			}
			deltas = append(deltas, d)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load deltas: %w", err)
	}
	return deltas, nil
}

func (s *BadgerAssetStore) ResolveRef(ctx context.Context, assetID, ref string) (model.Timestamp, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var ts model.Timestamp
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(refKey(assetID, ref))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			ts = decodeOrdered(binary.BigEndian.Uint64(val))
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, errs.NotFound("event ref %s of asset %s", ref, assetID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to resolve ref: %w", err)
	}
	return ts, nil
}

func assetPrefix(kind, assetID string) []byte {
	var b bytes.Buffer
	b.WriteString(kind)
	b.WriteByte(0)
	b.WriteString(assetID)
	b.WriteByte(0)
	return b.Bytes()
}

func entryKey(kind, assetID string, at model.Timestamp, ref string) []byte {
	key := binary.BigEndian.AppendUint64(assetPrefix(kind, assetID), orderedBits(at))
	return append(key, ref...)
}

func refKey(assetID, ref string) []byte {
	return append(assetPrefix(refPrefix, assetID), ref...)
}

func encodeTime(t model.Timestamp) []byte {
	return binary.BigEndian.AppendUint64(nil, orderedBits(t))
}

// orderedBits maps a float64 onto a uint64 whose unsigned order matches the
// numeric order of the float.
func orderedBits(t model.Timestamp) uint64 {
	bits := math.Float64bits(float64(t))
	if bits&(1<<63) == 0 {
		return bits | 1<<63
	}
	return ^bits
}

func decodeOrdered(u uint64) model.Timestamp {
	if u&(1<<63) != 0 {
		return model.Timestamp(math.Float64frombits(u &^ (1 << 63)))
	}
	return model.Timestamp(math.Float64frombits(^u))
}
