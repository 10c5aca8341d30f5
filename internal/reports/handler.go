package reports

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prepview/backend/internal/ai"
	"github.com/prepview/backend/internal/middleware"
	"github.com/prepview/backend/internal/models"
	"github.com/prepview/backend/internal/session"
	"github.com/prepview/backend/pkg/response"
	"github.com/prepview/backend/pkg/summarystore"
)

// Generator produces the final report from a session summary.
type Generator interface {
	GenerateReport(ctx context.Context, summary any) (*ai.ReportPayload, error)
}

// SummaryConsumer hands off completed session summaries exactly once.
type SummaryConsumer interface {
	Consume(ctx context.Context, sessionID string) (*models.SessionSummary, error)
	Restore(ctx context.Context, summary *models.SessionSummary) error
}

// Handler generates and serves interview reports.
type Handler struct {
	repo        *Repository
	sessionRepo *session.Repository
	summaries   SummaryConsumer
	generator   Generator
	logger      *zap.Logger
}

func NewHandler(repo *Repository, sessionRepo *session.Repository, summaries SummaryConsumer, generator Generator, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, sessionRepo: sessionRepo, summaries: summaries, generator: generator, logger: logger}
}

// Generate handles POST /sessions/:id/report. Consumes the stored session
// summary (falling back to the persisted session row when it has expired),
// asks the AI service for the full report and persists it. On AI failure the
// summary is put back so the client can retry.
func (h *Handler) Generate(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	sess, err := h.sessionRepo.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		response.NotFound(c, "session not found")
		return
	}
	if sess.UserID != c.MustGet(middleware.ContextUserID).(uuid.UUID) {
		response.Forbidden(c, "session belongs to another user")
		return
	}
	if sess.Status != models.StatusEnded {
		response.Conflict(c, "session has not ended")
		return
	}

	summary, err := h.summaries.Consume(c.Request.Context(), sessionID.String())
	if err != nil {
		if !errors.Is(err, summarystore.ErrNotFound) {
			h.logger.Error("consume summary failed", zap.Error(err), zap.String("session_id", sessionID.String()))
			response.Internal(c, "failed to load session summary")
			return
		}
		summary, err = h.rebuildSummary(c.Request.Context(), sess)
		if err != nil {
			h.logger.Error("rebuild summary failed", zap.Error(err), zap.String("session_id", sessionID.String()))
			response.Internal(c, "failed to load session summary")
			return
		}
	}

	payload, err := h.generator.GenerateReport(c.Request.Context(), summary)
	if err != nil {
		h.logger.Error("report generation failed", zap.Error(err), zap.String("session_id", sessionID.String()))
		if restoreErr := h.summaries.Restore(c.Request.Context(), summary); restoreErr != nil {
			h.logger.Error("restore summary failed", zap.Error(restoreErr), zap.String("session_id", sessionID.String()))
		}
		response.ServiceUnavailable(c, "report generation unavailable, try again")
		return
	}

	report := &models.Report{
		SessionID:           sessionID,
		OverallScore:        payload.OverallScore,
		PlacementLikelihood: payload.PlacementLikelihood,
		SkillBreakdown:      payload.SkillBreakdown,
		DetailedFeedback:    payload.DetailedFeedback,
		Strengths:           payload.Strengths,
		DevelopmentAreas:    payload.DevelopmentAreas,
		Recommendations:     payload.Recommendations,
	}
	if err := h.repo.Create(c.Request.Context(), report); err != nil {
		h.logger.Error("persist report failed", zap.Error(err), zap.String("session_id", sessionID.String()))
		response.Internal(c, "failed to save report")
		return
	}

	h.logger.Info("report generated",
		zap.String("session_id", sessionID.String()),
		zap.String("report_id", report.ID.String()),
		zap.Float64("overall_score", report.OverallScore))
	response.Created(c, report)
}

// Get handles GET /reports/:id.
func (h *Handler) Get(c *gin.Context) {
	reportID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid report id")
		return
	}
	report, err := h.repo.GetByID(c.Request.Context(), reportID)
	if err != nil {
		response.NotFound(c, "report not found")
		return
	}
	sess, err := h.sessionRepo.GetByID(c.Request.Context(), report.SessionID)
	if err != nil {
		response.NotFound(c, "report not found")
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(uuid.UUID)
	if sess.UserID != userID && c.GetString(middleware.ContextUserRole) != string(models.RoleAdmin) {
		response.Forbidden(c, "report belongs to another user")
		return
	}
	response.OK(c, report)
}

// GetBySession handles GET /sessions/:id/report.
func (h *Handler) GetBySession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	sess, err := h.sessionRepo.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		response.NotFound(c, "session not found")
		return
	}
	if sess.UserID != c.MustGet(middleware.ContextUserID).(uuid.UUID) {
		response.Forbidden(c, "session belongs to another user")
		return
	}
	report, err := h.repo.GetBySessionID(c.Request.Context(), sessionID)
	if err != nil {
		response.NotFound(c, "no report for session")
		return
	}
	response.OK(c, report)
}

// rebuildSummary reconstructs a session summary from persisted rows when the
// stored summary has expired or was already consumed.
func (h *Handler) rebuildSummary(ctx context.Context, sess *models.Session) (*models.SessionSummary, error) {
	records, err := h.sessionRepo.ListRecords(ctx, sess.ID)
	if err != nil {
		return nil, err
	}
	return summaryFromRecords(sess, records), nil
}

func summaryFromRecords(sess *models.Session, records []models.QuestionRecord) *models.SessionSummary {
	summary := &models.SessionSummary{
		SessionID:          sess.ID,
		JobRole:            sess.JobRole,
		ResumeEnhanced:     sess.ResumeEnhanced,
		TotalScore:         sess.Score.TotalScore,
		QuestionsAnswered:  sess.Score.QuestionsAnswered,
		QuestionsSkipped:   sess.Score.QuestionsSkipped,
		AvgResponseSeconds: sess.Score.AvgResponseSeconds,
		Confidence:         sess.Score.Confidence,
		Engagement:         sess.Score.Engagement,
		EyeContact:         sess.Score.EyeContact,
		Communication:      sess.Score.Communication,
		Responses:          make([]models.ResponseSummary, 0, len(records)),
	}
	// Variance runs over every record, skipped ones included, matching the
	// summary the engine builds at session end.
	scores := make([]float64, 0, len(records))
	for _, rec := range records {
		summary.Responses = append(summary.Responses, models.ResponseSummary{
			QuestionIndex:   rec.QuestionIndex,
			Question:        rec.Question,
			Category:        rec.Category,
			Difficulty:      rec.Difficulty,
			Transcript:      rec.Transcript,
			ResponseSeconds: rec.ResponseSeconds,
			Score:           rec.Score,
		})
		scores = append(scores, rec.Score)
	}
	summary.ScoreVariance = variance(scores)
	summary.Consistency = consistency(summary.ScoreVariance)
	if sess.EndedAt != nil {
		summary.EndedAt = *sess.EndedAt
	} else {
		summary.EndedAt = time.Now()
	}
	return summary
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return sq / float64(len(values))
}

func consistency(scoreVariance float64) float64 {
	c := 100 - 2*scoreVariance
	if c < 0 {
		return 0
	}
	return c
}
