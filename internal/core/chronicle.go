// Package core wires the temporal ledgers, the causal graph, the state
// engine and the orchestrator into one Chronicle.
package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/agenthands/chronicle/internal/config"
	"github.com/agenthands/chronicle/internal/core/causal"
	"github.com/agenthands/chronicle/internal/core/facts"
	"github.com/agenthands/chronicle/internal/core/model"
	"github.com/agenthands/chronicle/internal/core/narrative"
	"github.com/agenthands/chronicle/internal/core/orchestrator"
	"github.com/agenthands/chronicle/internal/core/reconstruct"
	"github.com/agenthands/chronicle/internal/core/relationships"
	"github.com/agenthands/chronicle/internal/core/temporal"
	"github.com/agenthands/chronicle/internal/core/voice"
	"github.com/agenthands/chronicle/internal/driver"
	"github.com/agenthands/chronicle/internal/telemetry"
)

type Chronicle struct {
	Facts         *facts.Ledger
	Relationships *relationships.Ledger
	Voice         *voice.Ledger
	Causal        *causal.Graph
	States        *reconstruct.Engine
	Stories       *narrative.MemoryStore
	Orchestrator  *orchestrator.Orchestrator
	Metrics       *telemetry.Metrics

	logger  *zap.Logger
	closers []func(context.Context) error
}

// Open builds a Chronicle from cfg. SQLite backs the ledgers when a path is
// configured, badger backs asset states, and Memgraph holds causal edges
// when enabled; everything else stays in memory. reg may be nil.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*Chronicle, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Chronicle{logger: logger}
	if reg != nil {
		c.Metrics = telemetry.NewMetrics(reg)
	}

	if err := c.openLedgers(ctx, cfg); err != nil {
		c.Close(ctx)
		return nil, err
	}
	if err := c.openStates(cfg); err != nil {
		c.Close(ctx)
		return nil, err
	}
	if err := c.openCausal(ctx, cfg); err != nil {
		c.Close(ctx)
		return nil, err
	}

	c.Stories = narrative.NewMemoryStore()
	c.Orchestrator = orchestrator.New(orchestrator.Deps{
		Scenes:        c.Stories,
		Structure:     c.Stories,
		Pacing:        c.Stories,
		Transitions:   c.Stories,
		Facts:         c.Facts,
		Relationships: c.Relationships,
		Voice:         c.Voice,
	}, orchestrator.Config{
		Timeout:      cfg.Orchestrator.Timeout.Duration,
		QuickTimeout: cfg.Orchestrator.QuickTimeout.Duration,
		WarnAfter:    cfg.Orchestrator.WarnAfter.Duration,
		Concurrency:  cfg.Concurrency.Orchestrator,
	}, logger, orchestrator.WithMetrics(c.Metrics))

	return c, nil
}

func (c *Chronicle) openLedgers(ctx context.Context, cfg *config.Config) error {
	path := cfg.Storage.SQLitePath
	if path == "" {
		c.Facts = facts.NewLedger(temporal.NewMemoryStore[model.FactPayload](), c.logger)
		c.Relationships = relationships.NewLedger(temporal.NewMemoryStore[model.RelationshipPayload](), c.logger)
		c.Voice = voice.NewLedger(temporal.NewMemoryStore[model.VoiceProfile](), c.logger)
		return nil
	}

	db, err := temporal.OpenSQLite(path)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, func(context.Context) error { return db.Close() })

	factStore, err := temporal.NewSQLStore[model.FactPayload](ctx, db, "facts")
	if err != nil {
		return err
	}
	relStore, err := temporal.NewSQLStore[model.RelationshipPayload](ctx, db, "relationships")
	if err != nil {
		return err
	}
	voiceStore, err := temporal.NewSQLStore[model.VoiceProfile](ctx, db, "voice")
	if err != nil {
		return err
	}

	c.Facts = facts.NewLedger(factStore, c.logger)
	c.Relationships = relationships.NewLedger(relStore, c.logger)
	c.Voice = voice.NewLedger(voiceStore, c.logger)
	c.logger.Info("ledgers backed by sqlite", zap.String("path", path))
	return nil
}

func (c *Chronicle) openStates(cfg *config.Config) error {
	cache := reconstruct.NewCache(
		reconstruct.WithMaxBytes(cfg.Cache.MaxBytes),
		reconstruct.WithTTL(cfg.Cache.TTL.Duration),
		reconstruct.WithCacheMetrics(c.Metrics),
	)

	var store reconstruct.AssetStore = reconstruct.NewMemoryAssetStore()
	if path := cfg.Storage.BadgerPath; path != "" {
		db, err := reconstruct.OpenBadger(reconstruct.BadgerConfig{Path: path, SyncWrites: true, Logger: c.logger})
		if err != nil {
			return err
		}
		c.closers = append(c.closers, func(context.Context) error { return db.Close() })
		store = reconstruct.NewBadgerAssetStore(db)
		c.logger.Info("asset states backed by badger", zap.String("path", path))
	}

	c.States = reconstruct.NewEngine(store, cache, c.logger, c.Metrics)
	return nil
}

func (c *Chronicle) openCausal(ctx context.Context, cfg *config.Config) error {
	var store causal.EdgeStore = causal.NewMemoryEdgeStore()
	if cfg.Memgraph.Enabled {
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password, c.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to memgraph: %w", err)
		}
		c.closers = append(c.closers, d.Close)
		if err := d.BuildIndices(ctx); err != nil {
			return err
		}
		store = causal.NewMemgraphEdgeStore(d)
	}
	c.Causal = causal.NewGraph(store, c.logger, causal.WithMetrics(c.Metrics))
	return nil
}

func (c *Chronicle) RecordFact(ctx context.Context, in model.FactInput) (model.KnownFact, error) {
	f, err := c.Facts.RecordFact(ctx, in)
	if err != nil {
		return model.KnownFact{}, err
	}
	c.Metrics.Appended("facts")
	return f, nil
}

func (c *Chronicle) RecordRelationship(ctx context.Context, in model.RelationshipInput) (model.Relationship, error) {
	r, err := c.Relationships.RecordRelationship(ctx, in)
	if err != nil {
		return model.Relationship{}, err
	}
	c.Metrics.Appended("relationships")
	return r, nil
}

func (c *Chronicle) RecordVoiceProfile(ctx context.Context, scopeID, entityID string, p model.VoiceProfile, validFrom model.Timestamp) (model.VoiceRecord, error) {
	r, err := c.Voice.RecordProfile(ctx, scopeID, entityID, p, validFrom)
	if err != nil {
		return model.VoiceRecord{}, err
	}
	c.Metrics.Appended("voice")
	return r, nil
}

// SaveSnapshot stores snap and drops cached reconstructions of its asset.
func (c *Chronicle) SaveSnapshot(ctx context.Context, snap model.Snapshot) error {
	if err := c.States.SaveSnapshot(ctx, snap); err != nil {
		return err
	}
	c.States.InvalidateAsset(snap.AssetID)
	return nil
}

// SaveDelta stores delta and drops cached reconstructions of its asset.
func (c *Chronicle) SaveDelta(ctx context.Context, delta model.Delta) error {
	if err := c.States.SaveDelta(ctx, delta); err != nil {
		return err
	}
	c.States.InvalidateAsset(delta.AssetID)
	return nil
}

// Close releases backends in reverse order of opening.
func (c *Chronicle) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
