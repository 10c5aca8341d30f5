package session

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prepview/backend/internal/middleware"
	"github.com/prepview/backend/internal/models"
	"github.com/prepview/backend/pkg/response"
)

// SummaryStore is the ephemeral summary hand-off consumed by report generation.
type SummaryStore interface {
	Put(ctx context.Context, summary *models.SessionSummary) error
}

// RoomCloser tears down realtime connections for an ended session.
type RoomCloser interface {
	CloseSession(sessionID uuid.UUID)
}

// CreateRequest is the body for POST /sessions.
type CreateRequest struct {
	JobRole    string `json:"job_role" binding:"required"`
	ResumeData string `json:"resume_data"`
}

// StopRecordingRequest is the body for POST /sessions/:id/recording/stop.
type StopRecordingRequest struct {
	Transcript string `json:"transcript"`
}

// Handler handles session lifecycle HTTP endpoints.
type Handler struct {
	repo      *Repository
	manager   *Manager
	summaries SummaryStore
	rooms     RoomCloser
	logger    *zap.Logger
}

// NewHandler creates a session handler.
func NewHandler(repo *Repository, manager *Manager, summaries SummaryStore, rooms RoomCloser, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, manager: manager, summaries: summaries, rooms: rooms, logger: logger}
}

// Create handles POST /sessions.
func (h *Handler) Create(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	sess := models.Session{
		UserID:         userID,
		JobRole:        req.JobRole,
		ResumeEnhanced: req.ResumeData != "",
		Status:         models.StatusNotStarted,
		Score:          models.NewInterviewScore(),
	}
	if err := h.repo.Create(c.Request.Context(), &sess); err != nil {
		h.logger.Error("create session", zap.Error(err))
		response.Internal(c, "failed to create session")
		return
	}
	h.manager.Create(sess)
	response.Created(c, sess)
}

// Start handles POST /sessions/:id/start and issues the next question.
func (h *Handler) Start(c *gin.Context) {
	engine, ok := h.engineFor(c)
	if !ok {
		return
	}
	question, err := engine.Start(c.Request.Context())
	if err != nil {
		h.respondEngineError(c, err)
		return
	}
	h.persistState(c, engine)
	response.OK(c, question)
}

// StartRecording handles POST /sessions/:id/recording/start.
func (h *Handler) StartRecording(c *gin.Context) {
	engine, ok := h.engineFor(c)
	if !ok {
		return
	}
	if err := engine.BeginRecording(); err != nil {
		h.respondEngineError(c, err)
		return
	}
	response.OK(c, gin.H{"recording": true})
}

// StopRecording handles POST /sessions/:id/recording/stop, scoring the answer
// and advances the session.
func (h *Handler) StopRecording(c *gin.Context) {
	engine, ok := h.engineFor(c)
	if !ok {
		return
	}
	var req StopRecordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	outcome, err := engine.EndRecording(c.Request.Context(), req.Transcript)
	if err != nil {
		h.respondEngineError(c, err)
		return
	}
	h.persistOutcome(c, engine, outcome)
	response.OK(c, outcome)
}

// Skip handles POST /sessions/:id/skip.
func (h *Handler) Skip(c *gin.Context) {
	engine, ok := h.engineFor(c)
	if !ok {
		return
	}
	outcome, err := engine.Skip()
	if err != nil {
		h.respondEngineError(c, err)
		return
	}
	h.persistOutcome(c, engine, outcome)
	response.OK(c, outcome)
}

// End handles POST /sessions/:id/end for explicit early termination. Safe to
// call repeatedly.
func (h *Handler) End(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	engine, live := h.manager.Get(sessionID)
	if !live {
		// Already finalized; report idempotently.
		sess, err := h.repo.GetByID(c.Request.Context(), sessionID)
		if err != nil || sess == nil {
			response.NotFound(c, "session not found")
			return
		}
		response.OK(c, gin.H{"status": sess.Status})
		return
	}

	summary, alreadyEnded := engine.End()
	if alreadyEnded {
		response.OK(c, gin.H{"status": models.StatusEnded})
		return
	}
	h.finalize(c, engine, summary)
	response.OK(c, gin.H{"status": models.StatusEnded, "summary": summary})
}

// Get handles GET /sessions/:id.
func (h *Handler) Get(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	if engine, live := h.manager.Get(sessionID); live {
		sess, records := engine.Snapshot()
		response.OK(c, gin.H{"session": sess, "records": records, "question": engine.CurrentQuestion()})
		return
	}
	sess, err := h.repo.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		response.NotFound(c, "session not found")
		return
	}
	records, err := h.repo.ListRecords(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to load question records")
		return
	}
	response.OK(c, gin.H{"session": sess, "records": records})
}

// List handles GET /sessions for the authenticated user.
func (h *Handler) List(c *gin.Context) {
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	list, err := h.repo.ListByUser(c.Request.Context(), userID)
	if err != nil {
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, gin.H{"sessions": list})
}

// Metrics handles GET /sessions/:id/metrics, the live running telemetry metrics.
func (h *Handler) Metrics(c *gin.Context) {
	engine, ok := h.engineFor(c)
	if !ok {
		return
	}
	response.OK(c, engine.Telemetry().RunningMetrics())
}

func (h *Handler) engineFor(c *gin.Context) (*Engine, bool) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return nil, false
	}
	engine, live := h.manager.Get(sessionID)
	if !live {
		response.NotFound(c, "no live session")
		return nil, false
	}
	return engine, true
}

// persistOutcome writes the record and score state, finalizing when the
// outcome completed the session.
func (h *Handler) persistOutcome(c *gin.Context, engine *Engine, outcome *Outcome) {
	rec := outcome.Record
	if err := h.repo.AppendRecord(c.Request.Context(), &rec); err != nil {
		h.logger.Error("append question record", zap.Error(err),
			zap.String("session_id", rec.SessionID.String()), zap.Int("index", rec.QuestionIndex))
	}
	if outcome.Completed && outcome.Summary != nil {
		h.finalize(c, engine, outcome.Summary)
		return
	}
	h.persistState(c, engine)
}

func (h *Handler) persistState(c *gin.Context, engine *Engine) {
	sess, _ := engine.Snapshot()
	if err := h.repo.UpdateState(c.Request.Context(), &sess); err != nil {
		h.logger.Error("update session state", zap.Error(err), zap.String("session_id", sess.ID.String()))
	}
}

// finalize persists the frozen session, hands the summary to the ephemeral
// store for report generation, and tears the engine down.
func (h *Handler) finalize(c *gin.Context, engine *Engine, summary *models.SessionSummary) {
	sess, _ := engine.Snapshot()
	if err := h.repo.UpdateState(c.Request.Context(), &sess); err != nil {
		h.logger.Error("persist ended session", zap.Error(err), zap.String("session_id", sess.ID.String()))
	}
	if err := h.summaries.Put(c.Request.Context(), summary); err != nil {
		h.logger.Error("store session summary", zap.Error(err), zap.String("session_id", sess.ID.String()))
	}
	if h.rooms != nil {
		h.rooms.CloseSession(sess.ID)
	}
	h.manager.Remove(sess.ID)
}

func (h *Handler) respondEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionEnded), errors.Is(err, ErrSessionComplete):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrAlreadyRecording), errors.Is(err, ErrNotRecording),
		errors.Is(err, ErrRecordingActive), errors.Is(err, ErrStaleEvaluation):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrNoActiveQuestion):
		response.BadRequest(c, err.Error())
	default:
		response.Internal(c, err.Error())
	}
}

func parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}
