// Package orchestrator assembles the read-only context packet for a scene by
// fanning out independent ledger and collaborator queries and joining them
// under one deadline.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agenthands/chronicle/internal/core/community"
	"github.com/agenthands/chronicle/internal/core/errs"
	"github.com/agenthands/chronicle/internal/core/facts"
	"github.com/agenthands/chronicle/internal/core/model"
	"github.com/agenthands/chronicle/internal/core/narrative"
	"github.com/agenthands/chronicle/internal/core/relationships"
	"github.com/agenthands/chronicle/internal/telemetry"
)

type FactSource interface {
	KnowledgeAt(ctx context.Context, scopeID, entityID string, t model.Timestamp, filter facts.KnowledgeFilter) ([]model.KnownFact, error)
	Knows(ctx context.Context, scopeID, entityID, factType, factKey string, t model.Timestamp) (model.KnownFact, bool, error)
	FactByID(ctx context.Context, id string) (model.KnownFact, error)
}

type RelationshipSource interface {
	RelationshipsFor(ctx context.Context, scopeID, entityID string, t model.Timestamp, filter relationships.Filter) ([]model.Relationship, error)
	RelationshipsBetween(ctx context.Context, scopeID, a, b string, t model.Timestamp) ([]model.Relationship, error)
}

type VoiceSource interface {
	HintsAt(ctx context.Context, scopeID, entityID string, t model.Timestamp) (model.VoiceHints, error)
}

type Deps struct {
	Scenes        narrative.SceneStore
	Structure     narrative.StructureStore
	Pacing        narrative.PacingStore
	Transitions   narrative.TransitionStore
	Facts         FactSource
	Relationships RelationshipSource
	Voice         VoiceSource
}

type Config struct {
	// Timeout bounds a whole AssembleContext call.
	Timeout      time.Duration
	QuickTimeout time.Duration
	// WarnAfter logs slow assemblies that still made their deadline.
	WarnAfter time.Duration
	// Concurrency caps in-flight sub-queries per request. Zero is unbounded.
	Concurrency int
}

func DefaultConfig() Config {
	return Config{
		Timeout:      time.Second,
		QuickTimeout: 250 * time.Millisecond,
		WarnAfter:    500 * time.Millisecond,
		Concurrency:  16,
	}
}

type Orchestrator struct {
	deps     Deps
	cfg      Config
	detector community.Detector
	logger   *zap.Logger
	metrics  *telemetry.Metrics
	now      func() time.Time
}

type Option func(*Orchestrator)

func WithDetector(d community.Detector) Option {
	return func(o *Orchestrator) { o.detector = d }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

func New(deps Deps, cfg Config, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		deps:     deps,
		cfg:      cfg,
		detector: community.NewLabelPropagationDetector(),
		logger:   logger.Named("orchestrator"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AssembleContext builds the full packet for sceneID. A missing scene is
// errs.ErrNotFound; any other sub-query failure fails the whole request.
// Missing optional context (voice, transition, pacing, a forbidden fact)
// degrades to its default. When the deadline passes no partial packet is
// returned.
func (o *Orchestrator) AssembleContext(ctx context.Context, sceneID string) (model.ContextPacket, error) {
	start := o.now()
	ctx, cancel := withTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	packet, err := o.assemble(ctx, sceneID)
	elapsed := o.now().Sub(start)
	if err != nil {
		err = o.finish(ctx, "full", sceneID, elapsed, err)
		return model.ContextPacket{}, err
	}

	packet.AssembledAt = start.UTC()
	packet.AssemblyDuration = elapsed
	o.finish(ctx, "full", sceneID, elapsed, nil)
	return packet, nil
}

func (o *Orchestrator) assemble(ctx context.Context, sceneID string) (model.ContextPacket, error) {
	scene, err := o.deps.Scenes.GetScene(ctx, sceneID)
	if err != nil {
		return model.ContextPacket{}, fmt.Errorf("failed to load scene %s: %w", sceneID, err)
	}

	scope, pov, t := scene.ScopeID, scene.POVEntityID, scene.NarrativeTime
	present := dedupe(scene.PresentEntityIDs)
	pairs := allPairs(present)

	var (
		knowledge  []model.KnownFact
		povVoice   model.VoiceHints
		povRels    []model.Relationship
		characters = make([]model.CharacterContext, len(present))
		matrix     = make([]model.PairRelationships, len(pairs))
		conflicts  []model.Conflict
		themes     []model.Theme
		arcs       []model.Arc
		reveals    = make([]model.ForbiddenReveal, len(scene.ForbiddenRevealIDs))
		pacing     model.PacingPosition
		transition *model.Transition
	)

	g, gctx := errgroup.WithContext(ctx)
	if o.cfg.Concurrency > 0 {
		g.SetLimit(o.cfg.Concurrency)
	}

	g.Go(func() error {
		var err error
		knowledge, err = o.deps.Facts.KnowledgeAt(gctx, scope, pov, t, facts.KnowledgeFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		povVoice, err = o.deps.Voice.HintsAt(gctx, scope, pov, t)
		return err
	})
	g.Go(func() error {
		var err error
		povRels, err = o.deps.Relationships.RelationshipsFor(gctx, scope, pov, t, relationships.Filter{})
		return err
	})

	entering := toSet(scene.EnteringIDs)
	exiting := toSet(scene.ExitingIDs)
	for i, id := range present {
		g.Go(func() error {
			c, err := o.character(gctx, scope, id, t)
			if err != nil {
				return err
			}
			c.IsPOV = id == pov
			_, c.Entering = entering[id]
			_, c.Exiting = exiting[id]
			characters[i] = c
			return nil
		})
	}

	for i, p := range pairs {
		g.Go(func() error {
			rels, err := o.deps.Relationships.RelationshipsBetween(gctx, scope, p[0], p[1], t)
			if err != nil {
				return err
			}
			if rels == nil {
				rels = []model.Relationship{}
			}
			matrix[i] = model.PairRelationships{EntityA: p[0], EntityB: p[1], Relationships: rels}
			return nil
		})
	}

	g.Go(func() error {
		var err error
		conflicts, err = o.deps.Structure.Conflicts(gctx, scene.ActiveConflictIDs)
		return err
	})
	g.Go(func() error {
		var err error
		themes, err = o.deps.Structure.Themes(gctx, scene.ActiveThemeIDs)
		return err
	})
	g.Go(func() error {
		var err error
		arcs, err = o.deps.Structure.ArcsForEntities(gctx, scope, present)
		return err
	})

	for i, factID := range scene.ForbiddenRevealIDs {
		g.Go(func() error {
			r, err := o.forbiddenReveal(gctx, scope, pov, factID, t)
			if err != nil {
				return err
			}
			reveals[i] = r
			return nil
		})
	}

	g.Go(func() error {
		cps, err := o.deps.Pacing.Checkpoints(gctx, scope)
		if err != nil {
			return err
		}
		if len(cps) == 0 {
			o.metrics.Degraded("pacing")
		}
		pacing.Previous, pacing.Next = narrative.NearestCheckpoints(cps, t)
		return nil
	})
	g.Go(func() error {
		tr, err := o.deps.Transitions.IncomingTransition(gctx, sceneID)
		if errors.Is(err, errs.ErrNotFound) {
			o.metrics.Degraded("transition")
			return nil
		}
		if err != nil {
			return err
		}
		transition = &tr
		return nil
	})

	if err := g.Wait(); err != nil {
		return model.ContextPacket{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.ContextPacket{}, err
	}

	if povVoice.IsDefault {
		o.metrics.Degraded("voice")
	}
	factions, err := o.factions(present, matrix)
	if err != nil {
		return model.ContextPacket{}, err
	}

	return model.ContextPacket{
		SceneID:       scene.ID,
		ScopeID:       scope,
		NarrativeTime: t,
		POV: model.POVContext{
			EntityID:      pov,
			Knowledge:     nonNil(knowledge),
			FalseBeliefs:  falseBeliefs(knowledge),
			Voice:         povVoice,
			Relationships: nonNil(povRels),
		},
		Characters:         characters,
		RelationshipMatrix: matrix,
		Factions:           factions,
		Conflicts:          nonNil(conflicts),
		Themes:             nonNil(themes),
		Arcs:               nonNil(arcs),
		ForbiddenReveals:   reveals,
		Pacing:             pacing,
		Transition:         transition,
	}, nil
}

func (o *Orchestrator) character(ctx context.Context, scope, entityID string, t model.Timestamp) (model.CharacterContext, error) {
	hints, err := o.deps.Voice.HintsAt(ctx, scope, entityID, t)
	if err != nil {
		return model.CharacterContext{}, err
	}
	known, err := o.deps.Facts.KnowledgeAt(ctx, scope, entityID, t, facts.KnowledgeFilter{})
	if err != nil {
		return model.CharacterContext{}, err
	}
	return model.CharacterContext{
		EntityID:         entityID,
		Voice:            hints,
		KnowledgeCount:   len(known),
		FalseBeliefCount: len(falseBeliefs(known)),
	}, nil
}

// forbiddenReveal is critical when the POV already knows the fact, since
// narration from that POV could give it away.
func (o *Orchestrator) forbiddenReveal(ctx context.Context, scope, pov, factID string, t model.Timestamp) (model.ForbiddenReveal, error) {
	fact, err := o.deps.Facts.FactByID(ctx, factID)
	if errors.Is(err, errs.ErrNotFound) {
		o.metrics.Degraded("forbidden_reveal")
		return model.ForbiddenReveal{FactID: factID, Criticality: model.CriticalityUnresolved}, nil
	}
	if err != nil {
		return model.ForbiddenReveal{}, err
	}

	_, knows, err := o.deps.Facts.Knows(ctx, scope, pov, fact.FactType, fact.FactKey, t)
	if err != nil {
		return model.ForbiddenReveal{}, err
	}
	r := model.ForbiddenReveal{
		FactID:      factID,
		Resolved:    true,
		EntityID:    fact.EntityID,
		FactType:    fact.FactType,
		FactKey:     fact.FactKey,
		POVKnows:    knows,
		Criticality: model.CriticalityStandard,
	}
	if knows {
		r.Criticality = model.CriticalityCritical
	}
	return r, nil
}

// factions links pairs whose warmest relationship is positive, weighted by
// that sentiment.
func (o *Orchestrator) factions(present []string, matrix []model.PairRelationships) ([][]string, error) {
	var links []community.Link
	for _, p := range matrix {
		best := 0.0
		for _, r := range p.Relationships {
			if r.Sentiment > best {
				best = r.Sentiment
			}
		}
		if best > 0 {
			links = append(links, community.Link{A: p.EntityA, B: p.EntityB, Weight: best})
		}
	}
	groups, err := o.detector.Detect(present, links)
	if err != nil {
		return nil, fmt.Errorf("failed to detect factions: %w", err)
	}
	if groups == nil {
		groups = [][]string{}
	}
	return groups, nil
}

// AssembleQuickContext resolves the scene and fetches voice hints for the POV
// and every present character, nothing else.
func (o *Orchestrator) AssembleQuickContext(ctx context.Context, sceneID string) (model.QuickContextPacket, error) {
	start := o.now()
	ctx, cancel := withTimeout(ctx, o.cfg.QuickTimeout)
	defer cancel()

	packet, err := o.assembleQuick(ctx, sceneID)
	elapsed := o.now().Sub(start)
	if err != nil {
		return model.QuickContextPacket{}, o.finish(ctx, "quick", sceneID, elapsed, err)
	}
	packet.AssembledAt = start.UTC()
	packet.AssemblyDuration = elapsed
	o.finish(ctx, "quick", sceneID, elapsed, nil)
	return packet, nil
}

func (o *Orchestrator) assembleQuick(ctx context.Context, sceneID string) (model.QuickContextPacket, error) {
	scene, err := o.deps.Scenes.GetScene(ctx, sceneID)
	if err != nil {
		return model.QuickContextPacket{}, fmt.Errorf("failed to load scene %s: %w", sceneID, err)
	}

	speakers := dedupe(append([]string{scene.POVEntityID}, scene.PresentEntityIDs...))
	voices := make([]model.VoiceHints, len(speakers))

	g, gctx := errgroup.WithContext(ctx)
	if o.cfg.Concurrency > 0 {
		g.SetLimit(o.cfg.Concurrency)
	}
	for i, id := range speakers {
		g.Go(func() error {
			h, err := o.deps.Voice.HintsAt(gctx, scene.ScopeID, id, scene.NarrativeTime)
			if err != nil {
				return err
			}
			if h.IsDefault {
				o.metrics.Degraded("voice")
			}
			voices[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.QuickContextPacket{}, err
	}
	if err := ctx.Err(); err != nil {
		return model.QuickContextPacket{}, err
	}

	return model.QuickContextPacket{
		SceneID:       scene.ID,
		ScopeID:       scene.ScopeID,
		POVEntityID:   scene.POVEntityID,
		NarrativeTime: scene.NarrativeTime,
		Voices:        voices,
	}, nil
}

// finish records the outcome and turns deadline expiry into errs.ErrTimeout.
func (o *Orchestrator) finish(ctx context.Context, variant, sceneID string, elapsed time.Duration, err error) error {
	if err == nil {
		o.metrics.ObserveAssembly(variant, "ok", elapsed)
		if o.cfg.WarnAfter > 0 && elapsed > o.cfg.WarnAfter {
			o.logger.Warn("slow context assembly",
				zap.String("scene", sceneID),
				zap.String("variant", variant),
				zap.Duration("elapsed", elapsed))
		}
		return nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		o.metrics.ObserveAssembly(variant, "timeout", elapsed)
		o.logger.Warn("context assembly timed out",
			zap.String("scene", sceneID),
			zap.String("variant", variant),
			zap.Duration("elapsed", elapsed))
		return fmt.Errorf("%w: assembling scene %s after %s: %w", errs.ErrTimeout, sceneID, elapsed, ctx.Err())
	}

	o.metrics.ObserveAssembly(variant, "error", elapsed)
	if !errors.Is(err, errs.ErrNotFound) {
		o.logger.Error("context assembly failed", zap.String("scene", sceneID), zap.Error(err))
	}
	return err
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func falseBeliefs(known []model.KnownFact) []model.KnownFact {
	out := []model.KnownFact{}
	for _, f := range known {
		if !f.IsTrue {
			out = append(out, f)
		}
	}
	return out
}

func allPairs(ids []string) [][2]string {
	var out [][2]string
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			out = append(out, [2]string{ids[i], ids[j]})
		}
	}
	return out
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
