package session

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/prepview/backend/internal/ai"
	"github.com/prepview/backend/internal/models"
	"github.com/prepview/backend/internal/scoring"
	"github.com/prepview/backend/internal/telemetry"
)

type fakeEvaluator struct {
	questionErr error
	evalErr     error
	evaluation  *ai.Evaluation
	onEvaluate  func()
}

func (f *fakeEvaluator) GenerateQuestion(ctx context.Context, req ai.QuestionRequest) (string, error) {
	if f.questionErr != nil {
		return "", f.questionErr
	}
	return "Tell me about a project you are proud of.", nil
}

func (f *fakeEvaluator) EvaluateComprehensive(ctx context.Context, req ai.EvaluationRequest) (*ai.Evaluation, error) {
	if f.onEvaluate != nil {
		f.onEvaluate()
	}
	if f.evalErr != nil {
		return nil, f.evalErr
	}
	return f.evaluation, nil
}

func newTestEngine(eval *fakeEvaluator) *Engine {
	sess := models.Session{
		ID:      uuid.New(),
		UserID:  uuid.New(),
		JobRole: "software engineer",
		Status:  models.StatusNotStarted,
		Score:   models.NewInterviewScore(),
	}
	scorer := scoring.NewScorer(rand.New(rand.NewSource(7)))
	e := NewEngine(sess, eval, scorer, telemetry.NewAggregator(), nil)

	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	e.now = func() time.Time {
		clock = clock.Add(30 * time.Second)
		return clock
	}
	return e
}

func TestStartIssuesQuestionAndTransitions(t *testing.T) {
	e := newTestEngine(&fakeEvaluator{})
	q, err := e.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, q.Index)
	require.False(t, q.Fallback)
	require.NotEmpty(t, q.Question)

	sess, _ := e.Snapshot()
	require.Equal(t, models.StatusInProgress, sess.Status)
	require.NotNil(t, sess.StartedAt)

	// Start again with a pending question returns the same one.
	q2, err := e.Start(context.Background())
	require.NoError(t, err)
	require.Equal(t, q.Index, q2.Index)
	require.Equal(t, q.Question, q2.Question)
}

func TestStartFallsBackWhenGenerationFails(t *testing.T) {
	e := newTestEngine(&fakeEvaluator{questionErr: errors.New("boom")})
	q, err := e.Start(context.Background())
	require.NoError(t, err)
	require.True(t, q.Fallback)
	require.NotEmpty(t, q.Question)
}

func TestAnswerFlowRemoteEvaluation(t *testing.T) {
	eval := &fakeEvaluator{evaluation: &ai.Evaluation{
		Score:    80,
		Feedback: "solid",
	}}
	e := newTestEngine(eval)

	_, err := e.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.BeginRecording())

	out, err := e.EndRecording(context.Background(), "We shipped the feature on time.")
	require.NoError(t, err)
	require.True(t, out.Remote)
	require.Equal(t, 80.0, out.Record.Score)
	require.Equal(t, 1, out.Score.QuestionsAnswered)
	// 80 out of a 20-point slot.
	require.InDelta(t, 16.0, out.Score.TotalScore, 1e-9)
	require.False(t, out.Completed)
}

func TestAnswerFlowLocalFallbackOnRemoteFailure(t *testing.T) {
	e := newTestEngine(&fakeEvaluator{evalErr: errors.New("service down")})

	_, err := e.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.BeginRecording())

	out, err := e.EndRecording(context.Background(), "We shipped the feature on time for everyone.")
	require.NoError(t, err)
	require.False(t, out.Remote)
	require.GreaterOrEqual(t, out.Record.Score, 0.0)
	require.LessOrEqual(t, out.Record.Score, 100.0)
	// The session advanced despite the remote failure.
	require.Equal(t, 1, out.Score.QuestionsAnswered)
}

func TestRemoteScoreClamped(t *testing.T) {
	eval := &fakeEvaluator{evaluation: &ai.Evaluation{Score: 250}}
	e := newTestEngine(eval)
	_, err := e.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.BeginRecording())
	out, err := e.EndRecording(context.Background(), "answer text goes here")
	require.NoError(t, err)
	require.Equal(t, 100.0, out.Record.Score)
}

func TestRecordingGuards(t *testing.T) {
	e := newTestEngine(&fakeEvaluator{evaluation: &ai.Evaluation{Score: 50}})

	// No active question yet.
	require.ErrorIs(t, e.BeginRecording(), ErrNoActiveQuestion)

	_, err := e.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.BeginRecording())
	require.ErrorIs(t, e.BeginRecording(), ErrAlreadyRecording)

	// Cannot skip or re-start while recording.
	_, err = e.Skip()
	require.ErrorIs(t, err, ErrRecordingActive)
	_, err = e.Start(context.Background())
	require.ErrorIs(t, err, ErrAlreadyRecording)

	// Stop without a start after the answer completes.
	_, err = e.EndRecording(context.Background(), "some answer")
	require.NoError(t, err)
	_, err = e.EndRecording(context.Background(), "again")
	require.ErrorIs(t, err, ErrNotRecording)
}

func TestSkipAllQuestionsFloorsMetrics(t *testing.T) {
	e := newTestEngine(&fakeEvaluator{})

	var last *Outcome
	for i := 0; i < models.MaxQuestions; i++ {
		_, err := e.Start(context.Background())
		require.NoError(t, err)
		out, err := e.Skip()
		require.NoError(t, err)
		last = out
	}

	require.True(t, last.Completed)
	require.NotNil(t, last.Summary)
	require.Equal(t, models.MaxQuestions, last.Score.QuestionsSkipped)
	require.Zero(t, last.Score.QuestionsAnswered)
	require.LessOrEqual(t, last.Score.TotalScore, 15.0)
	require.InDelta(t, 0.05, last.Score.Confidence, 1e-9)
	require.InDelta(t, 0.05, last.Score.Engagement, 1e-9)
	require.InDelta(t, 0.05, last.Score.Communication, 1e-9)

	// Records carry the sentinel transcript.
	for _, r := range last.Summary.Responses {
		require.Equal(t, models.SkippedTranscript, r.Transcript)
		require.Zero(t, r.Score)
	}

	sess, records := e.Snapshot()
	require.Equal(t, models.StatusEnded, sess.Status)
	require.Len(t, records, models.MaxQuestions)
}

func TestModerateSkipCap(t *testing.T) {
	eval := &fakeEvaluator{evaluation: &ai.Evaluation{Score: 100}}
	e := newTestEngine(eval)

	// Answer three perfectly, skip two: rate 0.4 caps the total at 35.
	for i := 0; i < 3; i++ {
		_, err := e.Start(context.Background())
		require.NoError(t, err)
		require.NoError(t, e.BeginRecording())
		_, err = e.EndRecording(context.Background(), "a perfectly fine answer")
		require.NoError(t, err)
	}
	for i := 0; i < 2; i++ {
		_, err := e.Start(context.Background())
		require.NoError(t, err)
		out, err := e.Skip()
		require.NoError(t, err)
		if out.Completed {
			require.LessOrEqual(t, out.Score.TotalScore, 35.0)
		}
	}

	sess, _ := e.Snapshot()
	require.Equal(t, models.StatusEnded, sess.Status)
	require.LessOrEqual(t, sess.Score.TotalScore, 35.0)
}

func TestSessionCompletesAfterMaxQuestions(t *testing.T) {
	eval := &fakeEvaluator{evaluation: &ai.Evaluation{Score: 60}}
	e := newTestEngine(eval)

	var last *Outcome
	for i := 0; i < models.MaxQuestions; i++ {
		q, err := e.Start(context.Background())
		require.NoError(t, err)
		require.Equal(t, i, q.Index)
		require.NoError(t, e.BeginRecording())
		last, err = e.EndRecording(context.Background(), "a reasonable answer to the question")
		require.NoError(t, err)
	}
	require.True(t, last.Completed)
	require.NotNil(t, last.Summary)
	require.Equal(t, models.MaxQuestions, last.Score.QuestionsAnswered)
	require.LessOrEqual(t, last.Score.TotalScore, 100.0)

	// A sixth question is refused.
	_, err := e.Start(context.Background())
	require.ErrorIs(t, err, ErrSessionEnded)
}

func TestEndIsIdempotent(t *testing.T) {
	e := newTestEngine(&fakeEvaluator{})
	_, err := e.Start(context.Background())
	require.NoError(t, err)

	summary, already := e.End()
	require.False(t, already)
	require.NotNil(t, summary)
	require.False(t, summary.EndedAt.IsZero())

	again, already := e.End()
	require.True(t, already)
	require.Nil(t, again)
}

func TestStaleEvaluationDiscarded(t *testing.T) {
	eval := &fakeEvaluator{evaluation: &ai.Evaluation{Score: 90}}
	e := newTestEngine(eval)
	// The session ends while the remote evaluation is in flight.
	eval.onEvaluate = func() { e.End() }

	_, err := e.Start(context.Background())
	require.NoError(t, err)
	require.NoError(t, e.BeginRecording())

	_, err = e.EndRecording(context.Background(), "an answer that arrives too late")
	require.ErrorIs(t, err, ErrStaleEvaluation)

	sess, _ := e.Snapshot()
	require.Equal(t, models.StatusEnded, sess.Status)
	require.Zero(t, sess.Score.QuestionsAnswered)
}

func TestAvgResponseSecondsRunningMean(t *testing.T) {
	eval := &fakeEvaluator{evaluation: &ai.Evaluation{Score: 50}}
	e := newTestEngine(eval)

	// The test clock advances 30s per call; Start issues at t+k, EndRecording
	// measures elapsed from IssuedAt, so each answer takes a deterministic
	// multiple of 30s.
	var out *Outcome
	for i := 0; i < 2; i++ {
		_, err := e.Start(context.Background())
		require.NoError(t, err)
		require.NoError(t, e.BeginRecording())
		var errRec error
		out, errRec = e.EndRecording(context.Background(), "answer number whatever")
		require.NoError(t, errRec)
	}
	require.Equal(t, 2, out.Score.QuestionsAnswered)
	require.Greater(t, out.Score.AvgResponseSeconds, 0.0)
}

func TestSummaryConsistency(t *testing.T) {
	eval := &fakeEvaluator{evaluation: &ai.Evaluation{Score: 60}}
	e := newTestEngine(eval)

	for i := 0; i < models.MaxQuestions; i++ {
		_, err := e.Start(context.Background())
		require.NoError(t, err)
		require.NoError(t, e.BeginRecording())
		_, err = e.EndRecording(context.Background(), "the same quality answer every time")
		require.NoError(t, err)
	}
	sess, _ := e.Snapshot()
	require.Equal(t, models.StatusEnded, sess.Status)

	// Identical scores mean zero variance and full consistency.
	summary, already := e.End()
	require.True(t, already)
	require.Nil(t, summary)
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(&fakeEvaluator{}, scoring.NewScorer(rand.New(rand.NewSource(3))), nil)
	sess := models.Session{ID: uuid.New(), Status: models.StatusNotStarted, Score: models.NewInterviewScore()}

	engine := m.Create(sess)
	require.NotNil(t, engine)
	require.Equal(t, 1, m.Count())

	got, ok := m.Get(sess.ID)
	require.True(t, ok)
	require.Same(t, engine, got)

	require.True(t, m.IngestFacial(sess.ID, models.FacialSample{Confidence: 0.7}))
	require.True(t, m.IngestVoice(sess.ID, models.VoiceSample{Clarity: 0.6}))
	require.Equal(t, 1, engine.Telemetry().FacialCount())
	require.Equal(t, 1, engine.Telemetry().VoiceCount())

	m.Remove(sess.ID)
	require.Zero(t, m.Count())
	require.False(t, m.IngestFacial(sess.ID, models.FacialSample{}))
}
