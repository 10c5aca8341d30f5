package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/prepview/backend/internal/ai"
	"github.com/prepview/backend/pkg/queue"
	"github.com/prepview/backend/pkg/storage"
)

// EventPublisher pushes an event onto the session's telemetry channel. The
// hub on the instance hosting the session ingests voice_result events and
// relays them to connected clients.
type EventPublisher interface {
	PublishSessionEvent(sessionID uuid.UUID, event string, payload []byte) error
}

// VoiceResult is the payload published for a completed voice analysis.
type VoiceResult struct {
	SessionID     uuid.UUID        `json:"session_id"`
	QuestionIndex int              `json:"question_index"`
	Clarity       float64          `json:"clarity"`
	Pace          float64          `json:"pace"`
	Energy        float64          `json:"energy"`
	Analysis      ai.VoiceAnalysis `json:"analysis"`
	At            time.Time        `json:"at"`
}

// VoiceProcessor processes voice analysis jobs: download answer audio from
// S3, send it to the AI service, publish the result on the session channel.
type VoiceProcessor struct {
	s3        *storage.S3
	queue     *queue.Queue
	ai        *ai.Client
	publisher EventPublisher
	logger    *zap.Logger
}

// NewVoiceProcessor creates a voice analysis processor.
func NewVoiceProcessor(s3 *storage.S3, q *queue.Queue, aiClient *ai.Client, publisher EventPublisher, logger *zap.Logger) *VoiceProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VoiceProcessor{s3: s3, queue: q, ai: aiClient, publisher: publisher, logger: logger}
}

// Process executes one voice analysis job.
func (p *VoiceProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeVoiceAnalysis {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.VoiceAnalysisPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	body, contentType, err := p.s3.GetObjectStream(ctx, p.s3.AnswersBucket(), payload.AudioKey)
	if err != nil {
		return fmt.Errorf("download audio: %w", err)
	}
	defer body.Close()
	if contentType == "" {
		contentType = payload.ContentType
	}

	analysis, err := p.ai.AnalyzeVoice(ctx,
		payload.SessionID.String(),
		strconv.Itoa(payload.QuestionIndex),
		path.Base(payload.AudioKey),
		contentType,
		body)
	if err != nil {
		return fmt.Errorf("analyze voice: %w", err)
	}

	result := VoiceResult{
		SessionID:     payload.SessionID,
		QuestionIndex: payload.QuestionIndex,
		Clarity:       analysis["clarity"],
		Pace:          analysis["pace"],
		Energy:        analysis["energy"],
		Analysis:      analysis,
		At:            time.Now(),
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	if err := p.publisher.PublishSessionEvent(payload.SessionID, "voice_result", raw); err != nil {
		return fmt.Errorf("publish result: %w", err)
	}

	p.logger.Info("voice analysis completed",
		zap.String("session_id", payload.SessionID.String()),
		zap.Int("question_index", payload.QuestionIndex),
		zap.Float64("clarity", result.Clarity))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *VoiceProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("voice worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
			continue
		}
	}
}
