package reports

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/prepview/backend/internal/models"
)

func testRecord(sessionID uuid.UUID, idx int, transcript string, score float64) models.QuestionRecord {
	return models.QuestionRecord{
		ID:              uuid.New(),
		SessionID:       sessionID,
		QuestionIndex:   idx,
		Question:        "Tell me about a project you are proud of.",
		Category:        models.CategoryBehavioral,
		Difficulty:      models.DifficultyEasy,
		Transcript:      transcript,
		ResponseSeconds: 45,
		Score:           score,
	}
}

func TestSummaryFromRecordsIncludesSkippedScores(t *testing.T) {
	endedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sess := &models.Session{
		ID:      uuid.New(),
		JobRole: "Software Engineer",
		Status:  models.StatusEnded,
		Score: models.InterviewScore{
			TotalScore:        16,
			QuestionsAnswered: 1,
			QuestionsSkipped:  1,
		},
		EndedAt: &endedAt,
	}
	records := []models.QuestionRecord{
		testRecord(sess.ID, 0, "I built the reporting pipeline.", 80),
		testRecord(sess.ID, 1, models.SkippedTranscript, 0),
	}

	summary := summaryFromRecords(sess, records)

	// Skipped records score zero and count toward the variance, the same
	// inputs the engine uses when it builds the summary at session end.
	require.InDelta(t, 1600.0, summary.ScoreVariance, 1e-9)
	require.InDelta(t, 0.0, summary.Consistency, 1e-9)
	require.Len(t, summary.Responses, 2)
	require.Equal(t, models.SkippedTranscript, summary.Responses[1].Transcript)
	require.Equal(t, endedAt, summary.EndedAt)
	require.Equal(t, 16.0, summary.TotalScore)
}

func TestSummaryFromRecordsUniformScores(t *testing.T) {
	sess := &models.Session{
		ID:     uuid.New(),
		Status: models.StatusEnded,
		Score:  models.InterviewScore{QuestionsAnswered: 2},
	}
	records := []models.QuestionRecord{
		testRecord(sess.ID, 0, "First answer.", 80),
		testRecord(sess.ID, 1, "Second answer.", 80),
	}

	summary := summaryFromRecords(sess, records)

	require.Zero(t, summary.ScoreVariance)
	require.InDelta(t, 100.0, summary.Consistency, 1e-9)
	require.False(t, summary.EndedAt.IsZero())
}

func TestConsistencyFloorsAtZero(t *testing.T) {
	cases := []struct {
		name     string
		variance float64
		want     float64
	}{
		{"zero variance", 0, 100},
		{"moderate variance", 25, 50},
		{"boundary", 50, 0},
		{"beyond boundary", 1600, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, consistency(tc.variance), 1e-9)
		})
	}
}

func TestVariance(t *testing.T) {
	require.Zero(t, variance(nil))
	require.InDelta(t, 1600.0, variance([]float64{0, 80}), 1e-9)
	require.Zero(t, variance([]float64{42, 42, 42}))
}
