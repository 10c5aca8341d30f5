package audio

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prepview/backend/internal/middleware"
	"github.com/prepview/backend/internal/models"
	"github.com/prepview/backend/internal/session"
	"github.com/prepview/backend/pkg/queue"
	"github.com/prepview/backend/pkg/response"
	"github.com/prepview/backend/pkg/storage"
)

// Handler accepts answer audio uploads and queues them for voice analysis.
// The interview proceeds on the transcript alone; voice analysis results
// arrive asynchronously over the session's telemetry channel.
type Handler struct {
	repo   *session.Repository
	s3     *storage.S3
	queue  *queue.Queue
	logger *zap.Logger
}

func NewHandler(repo *session.Repository, s3 *storage.S3, q *queue.Queue, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, s3: s3, queue: q, logger: logger}
}

// UploadAnswer handles POST /sessions/:id/questions/:idx/audio.
// Stores the blob in S3 and enqueues a voice analysis job.
func (h *Handler) UploadAnswer(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "audio storage not configured")
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	questionIndex, err := strconv.Atoi(c.Param("idx"))
	if err != nil || questionIndex < 0 || questionIndex >= models.MaxQuestions {
		response.BadRequest(c, "invalid question index")
		return
	}

	sess, err := h.repo.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		response.NotFound(c, "session not found")
		return
	}
	if sess.UserID != c.MustGet(middleware.ContextUserID).(uuid.UUID) {
		response.Forbidden(c, "session belongs to another user")
		return
	}

	file, err := c.FormFile("audio")
	if err != nil {
		response.BadRequest(c, "missing file (form field: audio)")
		return
	}
	if file.Size > storage.MaxAnswerAudioSize {
		response.BadRequest(c, "file size exceeds 25MB limit")
		return
	}
	if !storage.ValidateAudioFileType(file.Header.Get("Content-Type"), file.Filename) {
		response.BadRequest(c, "invalid file type: only webm, ogg, wav, mp3 and m4a audio allowed")
		return
	}

	contentType := storage.ContentTypeForFilename(file.Filename)
	if ct := file.Header.Get("Content-Type"); ct != "" {
		base := strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
		if _, ok := storage.AllowedAudioTypes[base]; ok {
			contentType = base
		}
	}

	key := storage.AnswerKey(sessionID.String(), questionIndex, file.Filename)
	rc, err := file.Open()
	if err != nil {
		h.logger.Error("open uploaded audio failed", zap.Error(err))
		response.Internal(c, "failed to read file")
		return
	}
	defer rc.Close()

	if _, err = h.s3.Upload(c.Request.Context(), h.s3.AnswersBucket(), key, contentType, rc, file.Size); err != nil {
		h.logger.Error("S3 upload failed", zap.Error(err),
			zap.String("session_id", sessionID.String()), zap.String("key", key))
		response.Internal(c, "failed to upload audio to storage")
		return
	}

	if err := h.queue.EnqueueVoiceAnalysis(c.Request.Context(), queue.VoiceAnalysisPayload{
		SessionID:     sessionID,
		QuestionIndex: questionIndex,
		AudioKey:      key,
		ContentType:   contentType,
	}); err != nil {
		h.logger.Error("enqueue voice analysis failed", zap.Error(err),
			zap.String("session_id", sessionID.String()), zap.String("key", key))
		// The client retries the whole upload, so drop the orphaned object.
		if delErr := h.s3.DeleteObject(c.Request.Context(), h.s3.AnswersBucket(), key); delErr != nil {
			h.logger.Warn("cleanup of unqueued audio failed", zap.Error(delErr), zap.String("key", key))
		}
		response.Internal(c, "failed to queue voice analysis")
		return
	}

	response.OK(c, gin.H{
		"s3_key":         key,
		"content_type":   contentType,
		"file_size":      file.Size,
		"question_index": questionIndex,
		"queued":         true,
	})
}

// GetAnswerAudio handles GET /sessions/:id/questions/:idx/audio.
// Returns a pre-signed download URL for the stored answer blob. The optional
// "key" query parameter selects the extension the answer was uploaded with;
// it defaults to the webm key.
func (h *Handler) GetAnswerAudio(c *gin.Context) {
	if h.s3 == nil {
		response.ServiceUnavailable(c, "audio storage not configured")
		return
	}
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	questionIndex, err := strconv.Atoi(c.Param("idx"))
	if err != nil || questionIndex < 0 || questionIndex >= models.MaxQuestions {
		response.BadRequest(c, "invalid question index")
		return
	}

	sess, err := h.repo.GetByID(c.Request.Context(), sessionID)
	if err != nil {
		response.NotFound(c, "session not found")
		return
	}
	if sess.UserID != c.MustGet(middleware.ContextUserID).(uuid.UUID) {
		response.Forbidden(c, "session belongs to another user")
		return
	}

	key := c.Query("key")
	if key == "" {
		key = storage.AnswerKey(sessionID.String(), questionIndex, "")
	} else if key != storage.AnswerKey(sessionID.String(), questionIndex, key) {
		response.BadRequest(c, "key does not match session and question")
		return
	}

	expires := h.s3.PresignExpire()
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), h.s3.AnswersBucket(), key, expires)
	if err != nil {
		h.logger.Error("presign answer audio failed", zap.Error(err),
			zap.String("session_id", sessionID.String()), zap.String("key", key))
		response.Internal(c, "failed to generate download URL")
		return
	}

	response.OK(c, gin.H{
		"download_url":       url,
		"s3_key":             key,
		"expires_in_seconds": int(expires.Seconds()),
	})
}
