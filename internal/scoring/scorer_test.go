package scoring

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeFacial struct {
	conf, eng, eye float64
	ok             bool
}

func (f fakeFacial) RecentFacialAverages(n int) (float64, float64, float64, bool) {
	return f.conf, f.eng, f.eye, f.ok
}

func newTestScorer() *Scorer {
	return NewScorer(rand.New(rand.NewSource(1)))
}

const strongAnswer = "In my previous role I faced a difficult situation where our deployment " +
	"pipeline kept failing. My task was to stabilize it, so I analyzed the logs, designed a fix " +
	"and implemented automated retries. For example, we built a monitoring dashboard that reduced " +
	"failures by 40 percent. Specifically, I worked on the rollout plan with three other engineers " +
	"and we migrated every service without downtime. The result was that deployments improved " +
	"dramatically, and the team saved hours every week."

func TestScoreDegenerateInput(t *testing.T) {
	s := newTestScorer()
	tests := []struct {
		name       string
		transcript string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"too short", "ok"},
		{"single char tokens only", "a b c d e"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.Score(tt.transcript, 30, nil)
			require.Zero(t, res.Score)
			require.NotEmpty(t, res.Feedback)
			require.NotEmpty(t, res.Improvements)
		})
	}
}

func TestScoreMinimalEffortBand(t *testing.T) {
	s := newTestScorer()
	for i := 0; i < 50; i++ {
		res := s.Score("Yes it was fine.", 30, nil)
		require.GreaterOrEqual(t, res.Score, 5.0)
		require.Less(t, res.Score, 15.0)
		require.NotEmpty(t, res.Strengths)
	}
}

func TestScoreShortAnswerBand(t *testing.T) {
	s := newTestScorer()
	for i := 0; i < 50; i++ {
		res := s.Score("I think the project went quite well for everyone overall.", 30, nil)
		require.GreaterOrEqual(t, res.Score, 10.0)
		require.Less(t, res.Score, 30.0)
	}
}

func TestScoreStrongAnswer(t *testing.T) {
	s := newTestScorer()
	facial := fakeFacial{conf: 0.8, eng: 0.8, eye: 0.8, ok: true}

	res := s.Score(strongAnswer, 60, facial)
	require.GreaterOrEqual(t, res.Score, 85.0)
	require.LessOrEqual(t, res.Score, 100.0)
	require.Contains(t, res.Feedback, "Excellent")
	require.NotEmpty(t, res.Strengths)
}

func TestScoreFullPathDeterministic(t *testing.T) {
	s := newTestScorer()
	first := s.Score(strongAnswer, 60, nil)
	second := s.Score(strongAnswer, 60, nil)
	require.Equal(t, first.Score, second.Score)
}

func TestScoreHedgingPenalty(t *testing.T) {
	s := newTestScorer()
	hedged := strongAnswer + " Although honestly I'm not sure it would work again."
	plain := s.Score(strongAnswer, 60, nil)
	withHedge := s.Score(hedged, 60, nil)
	require.Less(t, withHedge.Score, plain.Score)
	require.Contains(t, strings.Join(withHedge.Improvements, " "), "hedging")
}

func TestScoreContentCeilings(t *testing.T) {
	s := newTestScorer()

	// No examples, numbers or STAR structure: capped at 50 regardless of length.
	generic := "We always try to communicate openly with the whole team and keep everyone aligned. " +
		"Listening carefully matters a great deal, and being honest about progress keeps trust high. " +
		"Whenever something goes wrong we talk it through together and decide what to change going forward, " +
		"then we follow up later to confirm things really got better for everybody involved there."
	res := s.Score(generic, 60, nil)
	require.LessOrEqual(t, res.Score, 50.0)

	// Under 20 words: capped at 35 even in the reward timing zone.
	thin := "Our project shipped on time and the whole happy team celebrated the launch together afterwards."
	resThin := s.Score(thin, 60, nil)
	require.LessOrEqual(t, resThin.Score, 35.0)
}

func TestScoreTimingComponent(t *testing.T) {
	tests := []struct {
		name string
		sec  float64
		want float64
	}{
		{"instant", 2, 0},
		{"rushed", 10, 5},
		{"reward zone low", 20, 15},
		{"reward zone high", 120, 15},
		{"long", 170, 10},
		{"rambling", 400, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, timingComponent(tt.sec))
		})
	}
}

func TestNonverbalComponent(t *testing.T) {
	require.Zero(t, nonverbalComponent(nil))
	require.Zero(t, nonverbalComponent(fakeFacial{ok: false}))
	require.Equal(t, 15.0, nonverbalComponent(fakeFacial{conf: 0.9, eng: 0.7, eye: 0.61, ok: true}))
	require.Equal(t, 5.0, nonverbalComponent(fakeFacial{conf: 0.9, eng: 0.5, eye: 0.2, ok: true}))
	// Threshold is strict.
	require.Zero(t, nonverbalComponent(fakeFacial{conf: 0.6, eng: 0.6, eye: 0.6, ok: true}))
}

func TestFeedbackBands(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{90, "Excellent"},
		{85, "Excellent"},
		{70, "Good"},
		{50, "Adequate"},
		{25, "Basic"},
		{10, "Insufficient"},
	}
	for _, tt := range tests {
		require.Contains(t, feedbackForScore(tt.score), tt.want)
	}
}

func TestImprovementsNonEmptyBelowExcellent(t *testing.T) {
	s := newTestScorer()
	// A mid-band full answer must always carry at least one improvement.
	mid := "We planned the migration carefully and executed it step by step, making sure every " +
		"team member understood their part before we started the work itself."
	res := s.Score(mid, 45, nil)
	require.Less(t, res.Score, 85.0)
	require.NotEmpty(t, res.Improvements)
}

func TestAnalyzeSignals(t *testing.T) {
	a := analyze(strongAnswer)
	require.True(t, a.hasExamples)
	require.True(t, a.hasQuantified)
	require.True(t, a.hasSTAR)
	require.GreaterOrEqual(t, a.techVerbCount, 2)
	require.False(t, a.hasHedging)
	require.GreaterOrEqual(t, a.sentenceCount, 2)

	b := analyze("i dont know what to say about that honestly speaking right now")
	require.True(t, b.hasHedging)
	require.True(t, b.lowercaseHeavy)
}

func TestAnalyzeWordCountIgnoresSingleCharTokens(t *testing.T) {
	a := analyze("I a b went to the store")
	// "I", "a", "b" do not count.
	require.Equal(t, 4, a.wordCount)
}
