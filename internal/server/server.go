package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/agenthands/chronicle/internal/core"
	"github.com/agenthands/chronicle/internal/core/errs"
	"github.com/agenthands/chronicle/internal/core/facts"
	"github.com/agenthands/chronicle/internal/core/model"
)

type Server struct {
	Chronicle *core.Chronicle
	gatherer  prometheus.Gatherer
	logger    *zap.Logger
}

func NewServer(c *core.Chronicle, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{Chronicle: c, gatherer: gatherer, logger: logger.Named("http")}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog)

	r.PUT("/scenes/:id", s.PutScene)
	r.GET("/scenes/:id/context", s.SceneContext)
	r.GET("/scenes/:id/context/quick", s.QuickSceneContext)

	r.POST("/facts", s.RecordFact)
	r.GET("/entities/:id/knowledge", s.Knowledge)
	r.POST("/entities/:id/voice", s.RecordVoiceProfile)
	r.GET("/knowledge/divergence", s.Divergence)

	r.POST("/relationships", s.RecordRelationship)
	r.GET("/relationships/:a/:b", s.Relationship)

	r.POST("/causal/edges", s.CreateEdge)
	r.PATCH("/causal/edges/:id", s.UpdateEdge)
	r.DELETE("/causal/edges/:id", s.DeleteEdge)
	r.GET("/causal/traverse/:id", s.Traverse)

	r.POST("/assets/:id/snapshots", s.SaveSnapshot)
	r.POST("/assets/:id/deltas", s.SaveDelta)
	r.GET("/assets/:id/state", s.AssetState)

	if s.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	return r
}

func (s *Server) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("elapsed", time.Since(start)))
}

func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrValidation), errors.Is(err, errs.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrTimeout):
		status = http.StatusGatewayTimeout
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return false
	}
	return true
}

func queryTime(c *gin.Context, name string) (model.Timestamp, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, errs.InvalidArgument("query parameter %q is required", name)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errs.InvalidArgument("query parameter %q is not a number", name)
	}
	return model.Timestamp(v), nil
}

func (s *Server) PutScene(c *gin.Context) {
	var scene model.Scene
	if !s.bind(c, &scene) {
		return
	}
	scene.ID = c.Param("id")
	if err := s.Chronicle.Stories.PutScene(scene); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, scene)
}

func (s *Server) SceneContext(c *gin.Context) {
	packet, err := s.Chronicle.Orchestrator.AssembleContext(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, packet)
}

func (s *Server) QuickSceneContext(c *gin.Context) {
	packet, err := s.Chronicle.Orchestrator.AssembleQuickContext(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, packet)
}

func (s *Server) RecordFact(c *gin.Context) {
	var in model.FactInput
	if !s.bind(c, &in) {
		return
	}
	f, err := s.Chronicle.RecordFact(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (s *Server) RecordVoiceProfile(c *gin.Context) {
	var in model.VoiceProfileInput
	if !s.bind(c, &in) {
		return
	}
	rec, err := s.Chronicle.RecordVoiceProfile(c.Request.Context(), in.ScopeID, c.Param("id"), in.Profile, in.ValidFrom)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *Server) Knowledge(c *gin.Context) {
	at, err := queryTime(c, "at")
	if err != nil {
		s.fail(c, err)
		return
	}
	filter := facts.KnowledgeFilter{
		FactType:   c.Query("fact_type"),
		SourceType: c.Query("source_type"),
		OnlyFalse:  c.Query("only_false") == "true",
	}
	known, err := s.Chronicle.Facts.KnowledgeAt(c.Request.Context(), c.Query("scope"), c.Param("id"), at, filter)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entity_id": c.Param("id"), "at": at, "facts": known})
}

func (s *Server) Divergence(c *gin.Context) {
	at, err := queryTime(c, "at")
	if err != nil {
		s.fail(c, err)
		return
	}
	d, err := s.Chronicle.Facts.Divergence(c.Request.Context(), c.Query("scope"), c.Query("a"), c.Query("b"), at)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) RecordRelationship(c *gin.Context) {
	var in model.RelationshipInput
	if !s.bind(c, &in) {
		return
	}
	r, err := s.Chronicle.RecordRelationship(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (s *Server) Relationship(c *gin.Context) {
	at, err := queryTime(c, "at")
	if err != nil {
		s.fail(c, err)
		return
	}
	r, err := s.Chronicle.Relationships.RelationshipAt(c.Request.Context(), c.Query("scope"), c.Param("a"), c.Param("b"), at, c.Query("type"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) CreateEdge(c *gin.Context) {
	var in model.CausalEdgeInput
	if !s.bind(c, &in) {
		return
	}
	e, err := s.Chronicle.Causal.CreateEdge(c.Request.Context(), in)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, e)
}

func (s *Server) UpdateEdge(c *gin.Context) {
	var upd model.CausalEdgeUpdate
	if !s.bind(c, &upd) {
		return
	}
	e, err := s.Chronicle.Causal.UpdateEdge(c.Request.Context(), c.Param("id"), upd)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

func (s *Server) DeleteEdge(c *gin.Context) {
	if err := s.Chronicle.Causal.DeleteEdge(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) Traverse(c *gin.Context) {
	depth, err := strconv.Atoi(c.DefaultQuery("depth", "3"))
	if err != nil {
		s.fail(c, errs.InvalidArgument("depth must be an integer"))
		return
	}
	dir := model.Direction(c.DefaultQuery("direction", string(model.Forward)))
	tr, err := s.Chronicle.Causal.Traverse(c.Request.Context(), c.Param("id"), dir, depth)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tr)
}

func (s *Server) SaveSnapshot(c *gin.Context) {
	var snap model.Snapshot
	if !s.bind(c, &snap) {
		return
	}
	snap.AssetID = c.Param("id")
	if err := s.Chronicle.SaveSnapshot(c.Request.Context(), snap); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func (s *Server) SaveDelta(c *gin.Context) {
	var delta model.Delta
	if !s.bind(c, &delta) {
		return
	}
	delta.AssetID = c.Param("id")
	if err := s.Chronicle.SaveDelta(c.Request.Context(), delta); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, delta)
}

// AssetState reconstructs by ?ref= when given, otherwise by ?at=.
func (s *Server) AssetState(c *gin.Context) {
	ctx := c.Request.Context()
	if ref := c.Query("ref"); ref != "" {
		rec, err := s.Chronicle.States.ReconstructAtRef(ctx, c.Param("id"), ref)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, rec)
		return
	}

	at, err := queryTime(c, "at")
	if err != nil {
		s.fail(c, err)
		return
	}
	rec, err := s.Chronicle.States.ReconstructAt(ctx, c.Param("id"), at)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
