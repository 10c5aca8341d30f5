// Package session drives the interview session lifecycle: question issuance,
// recording, scoring aggregation, skip penalties and termination.
package session

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/prepview/backend/internal/ai"
	"github.com/prepview/backend/internal/models"
	"github.com/prepview/backend/internal/scoring"
	"github.com/prepview/backend/internal/telemetry"
)

var (
	ErrSessionEnded     = errors.New("session has ended")
	ErrSessionComplete  = errors.New("all questions have been asked")
	ErrNoActiveQuestion = errors.New("no active question")
	ErrAlreadyRecording = errors.New("recording already in progress")
	ErrNotRecording     = errors.New("no recording in progress")
	ErrRecordingActive  = errors.New("cannot skip while recording")
	ErrStaleEvaluation  = errors.New("evaluation arrived after the question advanced")
)

// Evaluator is the slice of the AI client the engine depends on.
type Evaluator interface {
	GenerateQuestion(ctx context.Context, req ai.QuestionRequest) (string, error)
	EvaluateComprehensive(ctx context.Context, req ai.EvaluationRequest) (*ai.Evaluation, error)
}

// IssuedQuestion is the active question handed to the candidate.
type IssuedQuestion struct {
	Index      int                     `json:"index"`
	Question   string                  `json:"question"`
	Category   models.QuestionCategory `json:"category"`
	Difficulty models.Difficulty       `json:"difficulty"`
	Fallback   bool                    `json:"fallback"`
	IssuedAt   time.Time               `json:"issued_at"`
}

// Outcome is the result of answering or skipping a question.
type Outcome struct {
	Record     models.QuestionRecord  `json:"record"`
	Score      models.InterviewScore  `json:"score"`
	Evaluation scoring.Result         `json:"evaluation"`
	Remote     bool                   `json:"remote"`
	Completed  bool                   `json:"completed"`
	Summary    *models.SessionSummary `json:"summary,omitempty"`
}

// Engine is the per-session state machine. All state mutation is serialized by
// the engine mutex; remote evaluation happens outside the lock and its result
// is re-validated against the question index before merging.
type Engine struct {
	mu        sync.Mutex
	session   models.Session
	records   []models.QuestionRecord
	current   *IssuedQuestion
	recording bool

	evaluator Evaluator
	scorer    *scoring.Scorer
	telemetry *telemetry.Aggregator
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine creates an engine for a freshly created session.
func NewEngine(sess models.Session, evaluator Evaluator, scorer *scoring.Scorer, tel *telemetry.Aggregator, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sess.Status == "" {
		sess.Status = models.StatusNotStarted
	}
	return &Engine{
		session:   sess,
		evaluator: evaluator,
		scorer:    scorer,
		telemetry: tel,
		logger:    logger,
		now:       time.Now,
	}
}

// Telemetry exposes the session's aggregator for ingestion by the realtime
// channel and the voice-analysis worker.
func (e *Engine) Telemetry() *telemetry.Aggregator {
	return e.telemetry
}

// Snapshot returns a copy of the session state with its records.
func (e *Engine) Snapshot() (models.Session, []models.QuestionRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()
	records := make([]models.QuestionRecord, len(e.records))
	copy(records, e.records)
	return e.session, records
}

// CurrentQuestion returns the active question, if any.
func (e *Engine) CurrentQuestion() *IssuedQuestion {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	q := *e.current
	return &q
}

// Start issues the next question. The first call transitions the session to
// in-progress. Calling Start with a question already pending returns that
// question unchanged. Remote generation failures substitute a fixed fallback
// template; they never fail the session.
func (e *Engine) Start(ctx context.Context) (*IssuedQuestion, error) {
	e.mu.Lock()
	if e.session.Status == models.StatusEnded {
		e.mu.Unlock()
		return nil, ErrSessionEnded
	}
	if e.recording {
		e.mu.Unlock()
		return nil, ErrAlreadyRecording
	}
	if e.current != nil {
		q := *e.current
		e.mu.Unlock()
		return &q, nil
	}
	index := e.session.Score.QuestionsTotal()
	if index >= models.MaxQuestions {
		e.mu.Unlock()
		return nil, ErrSessionComplete
	}
	if e.session.Status == models.StatusNotStarted {
		e.session.Status = models.StatusInProgress
		startedAt := e.now()
		e.session.StartedAt = &startedAt
	}
	sess := e.session
	e.mu.Unlock()

	slot := planSlot(sess.JobRole, index)
	var resume *string
	if sess.ResumeEnhanced {
		tag := "enhanced"
		resume = &tag
	}

	question, fallback := "", false
	text, err := e.evaluator.GenerateQuestion(ctx, ai.QuestionRequest{
		SessionID:  sess.ID.String(),
		JobRole:    sess.JobRole,
		Category:   string(slot.Category),
		Difficulty: string(slot.Difficulty),
		ResumeData: resume,
	})
	if err != nil {
		e.logger.Warn("question generation failed, using fallback",
			zap.String("session_id", sess.ID.String()),
			zap.Int("index", index),
			zap.Error(err))
		question, fallback = fallbackQuestion(index, sess.JobRole), true
	} else {
		question = text
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Status == models.StatusEnded {
		return nil, ErrSessionEnded
	}
	if e.current != nil {
		// A concurrent Start won; hand back its question.
		q := *e.current
		return &q, nil
	}
	e.current = &IssuedQuestion{
		Index:      index,
		Question:   question,
		Category:   slot.Category,
		Difficulty: slot.Difficulty,
		Fallback:   fallback,
		IssuedAt:   e.now(),
	}
	q := *e.current
	return &q, nil
}

// BeginRecording marks the answer capture as started. Requires an active
// question and no recording in progress.
func (e *Engine) BeginRecording() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Status == models.StatusEnded {
		return ErrSessionEnded
	}
	if e.current == nil {
		return ErrNoActiveQuestion
	}
	if e.recording {
		return ErrAlreadyRecording
	}
	e.recording = true
	return nil
}

// EndRecording stops capture, scores the transcript (remote-first with silent
// local fallback) and merges the result. If the session advanced past the
// question while the remote evaluation was in flight, the result is discarded.
func (e *Engine) EndRecording(ctx context.Context, transcript string) (*Outcome, error) {
	e.mu.Lock()
	if e.session.Status == models.StatusEnded {
		e.mu.Unlock()
		return nil, ErrSessionEnded
	}
	if !e.recording {
		e.mu.Unlock()
		return nil, ErrNotRecording
	}
	if e.current == nil {
		e.mu.Unlock()
		return nil, ErrNoActiveQuestion
	}
	e.recording = false
	question := *e.current
	elapsed := e.now().Sub(question.IssuedAt).Seconds()
	sess := e.session
	e.mu.Unlock()

	result, remote := e.evaluate(ctx, sess, question, transcript, elapsed)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Status == models.StatusEnded || e.current == nil || e.current.Index != question.Index {
		e.logger.Debug("discarding stale evaluation",
			zap.String("session_id", sess.ID.String()),
			zap.Int("index", question.Index))
		return nil, ErrStaleEvaluation
	}
	return e.finishQuestion(question, transcript, elapsed, result, remote), nil
}

// Skip records the active question as skipped (score 0, sentinel transcript),
// applies the skip-rate penalty and metric decrements, then advances. Invalid
// while recording.
func (e *Engine) Skip() (*Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Status == models.StatusEnded {
		return nil, ErrSessionEnded
	}
	if e.recording {
		return nil, ErrRecordingActive
	}
	if e.current == nil {
		return nil, ErrNoActiveQuestion
	}
	question := *e.current

	record := models.QuestionRecord{
		SessionID:     e.session.ID,
		QuestionIndex: question.Index,
		Question:      question.Question,
		Category:      question.Category,
		Difficulty:    question.Difficulty,
		Transcript:    models.SkippedTranscript,
		Score:         0,
		CreatedAt:     e.now(),
	}
	e.records = append(e.records, record)
	e.current = nil

	score := &e.session.Score
	score.QuestionsSkipped++
	applySkipPenalty(score)

	out := &Outcome{
		Record: record,
		Score:  *score,
		Evaluation: scoring.Result{
			Feedback:     "Question skipped.",
			Improvements: []string{"Attempt every question, even with a partial answer"},
		},
	}
	if score.QuestionsTotal() >= models.MaxQuestions {
		out.Completed = true
		out.Summary = e.endLocked()
	}
	return out, nil
}

// End terminates the session and produces the summary for report generation.
// Idempotent: subsequent calls report alreadyEnded without a new summary.
func (e *Engine) End() (summary *models.SessionSummary, alreadyEnded bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Status == models.StatusEnded {
		return nil, true
	}
	return e.endLocked(), false
}

// evaluate runs remote-first scoring with local fallback. Runs outside the
// engine lock.
func (e *Engine) evaluate(ctx context.Context, sess models.Session, q IssuedQuestion, transcript string, elapsed float64) (scoring.Result, bool) {
	eval, err := e.evaluator.EvaluateComprehensive(ctx, ai.EvaluationRequest{
		AnswerText:   transcript,
		Question:     q.Question,
		SessionID:    sess.ID.String(),
		ResponseTime: elapsed,
		JobRole:      sess.JobRole,
	})
	if err == nil && eval != nil {
		return scoring.Result{
			Score:        math.Max(0, math.Min(100, eval.Score)),
			Feedback:     eval.Feedback,
			Strengths:    eval.Strengths,
			Improvements: eval.Improvements,
		}, true
	}
	if err != nil {
		e.logger.Warn("remote evaluation failed, using local scorer",
			zap.String("session_id", sess.ID.String()),
			zap.Int("index", q.Index),
			zap.Error(err))
	}
	return e.scorer.Score(transcript, elapsed, e.telemetry), false
}

// finishQuestion merges an answered question into the running score and
// advances. Caller holds the lock.
func (e *Engine) finishQuestion(q IssuedQuestion, transcript string, elapsed float64, result scoring.Result, remote bool) *Outcome {
	record := models.QuestionRecord{
		SessionID:       e.session.ID,
		QuestionIndex:   q.Index,
		Question:        q.Question,
		Category:        q.Category,
		Difficulty:      q.Difficulty,
		Transcript:      transcript,
		ResponseSeconds: elapsed,
		Score:           result.Score,
		CreatedAt:       e.now(),
	}
	e.records = append(e.records, record)
	e.current = nil

	score := &e.session.Score
	// Each question contributes at most 100/MaxQuestions points to the total.
	contribution := result.Score * (100.0 / models.MaxQuestions) / 100.0
	contribution = math.Min(contribution, 100.0/models.MaxQuestions)
	score.TotalScore = math.Min(100, score.TotalScore+contribution)

	prevAnswered := float64(score.QuestionsAnswered)
	score.QuestionsAnswered++
	score.AvgResponseSeconds = (score.AvgResponseSeconds*prevAnswered + elapsed) / float64(score.QuestionsAnswered)

	rm := e.telemetry.RunningMetrics()
	score.Confidence = rm.Confidence
	score.Engagement = rm.Engagement
	score.EyeContact = rm.EyeContact
	score.Communication = (score.Communication + result.Score/100.0) / 2

	out := &Outcome{
		Record:     record,
		Score:      *score,
		Evaluation: result,
		Remote:     remote,
	}
	if score.QuestionsTotal() >= models.MaxQuestions {
		out.Completed = true
		out.Summary = e.endLocked()
	}
	return out
}

// endLocked freezes the session and builds the summary. Caller holds the lock.
func (e *Engine) endLocked() *models.SessionSummary {
	now := e.now()
	e.session.Status = models.StatusEnded
	e.session.EndedAt = &now
	e.current = nil
	e.recording = false

	scores := make([]float64, 0, len(e.records))
	responses := make([]models.ResponseSummary, 0, len(e.records))
	for _, r := range e.records {
		scores = append(scores, r.Score)
		responses = append(responses, models.ResponseSummary{
			QuestionIndex:   r.QuestionIndex,
			Question:        r.Question,
			Category:        r.Category,
			Difficulty:      r.Difficulty,
			Transcript:      r.Transcript,
			ResponseSeconds: r.ResponseSeconds,
			Score:           r.Score,
		})
	}
	scoreVar := scoreVariance(scores)

	s := e.session.Score
	return &models.SessionSummary{
		SessionID:          e.session.ID,
		JobRole:            e.session.JobRole,
		ResumeEnhanced:     e.session.ResumeEnhanced,
		TotalScore:         s.TotalScore,
		QuestionsAnswered:  s.QuestionsAnswered,
		QuestionsSkipped:   s.QuestionsSkipped,
		AvgResponseSeconds: s.AvgResponseSeconds,
		Confidence:         s.Confidence,
		Engagement:         s.Engagement,
		EyeContact:         s.EyeContact,
		Communication:      s.Communication,
		ScoreVariance:      scoreVar,
		Consistency:        math.Max(0, 100-2*scoreVar),
		Telemetry:          e.telemetry.Summary(),
		Responses:          responses,
		EndedAt:            now,
	}
}

// applySkipPenalty subtracts the skip-rate step penalty, applies the hard caps
// and decrements behavioral metrics with a 0.05 floor.
func applySkipPenalty(score *models.InterviewScore) {
	rate := float64(score.QuestionsSkipped) / float64(score.QuestionsTotal())

	var penalty float64
	switch {
	case rate >= 0.8:
		penalty = 50
	case rate >= 0.6:
		penalty = 40
	case rate >= 0.4:
		penalty = 30
	case rate >= 0.2:
		penalty = 20
	default:
		penalty = 12
	}
	score.TotalScore = math.Max(0, score.TotalScore-penalty)

	// Auto-fail caps for heavy skipping.
	if rate >= 0.6 {
		score.TotalScore = math.Min(score.TotalScore, 15)
	} else if rate >= 0.4 {
		score.TotalScore = math.Min(score.TotalScore, 35)
	}

	score.Confidence = metricFloor(score.Confidence - 0.10)
	score.Engagement = metricFloor(score.Engagement - 0.10)
	score.Communication = metricFloor(score.Communication - 0.10)
}

func metricFloor(v float64) float64 {
	if v < 0.05 {
		return 0.05
	}
	return v
}

func scoreVariance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	m := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := x - m
		sq += d * d
	}
	return sq / float64(len(xs))
}
