package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", Timeout: 2 * time.Second}, nil)
}

func TestGenerateQuestion(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/generate/question", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req QuestionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "software engineer", req.JobRole)
		require.Equal(t, "technical", req.Category)

		json.NewEncoder(w).Encode(map[string]string{"question": "Explain a race condition."})
	})

	q, err := c.GenerateQuestion(context.Background(), QuestionRequest{
		SessionID:  "s1",
		JobRole:    "software engineer",
		Category:   "technical",
		Difficulty: "medium",
	})
	require.NoError(t, err)
	require.Equal(t, "Explain a race condition.", q)
}

func TestGenerateQuestionEmptyResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"question": ""})
	})
	_, err := c.GenerateQuestion(context.Background(), QuestionRequest{})
	require.Error(t, err)
}

func TestEvaluateComprehensive(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/evaluate/comprehensive", r.URL.Path)
		json.NewEncoder(w).Encode(Evaluation{
			Score:        72,
			Feedback:     "good",
			Strengths:    []string{"clear"},
			Improvements: []string{"add numbers"},
		})
	})

	eval, err := c.EvaluateComprehensive(context.Background(), EvaluationRequest{
		AnswerText: "my answer",
		Question:   "the question",
	})
	require.NoError(t, err)
	require.Equal(t, 72.0, eval.Score)
	require.Equal(t, []string{"clear"}, eval.Strengths)
}

func TestServerErrorSurfacesStatusError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal failure", http.StatusInternalServerError)
	})

	_, err := c.EvaluateComprehensive(context.Background(), EvaluationRequest{})
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusInternalServerError, statusErr.Code)
	require.Contains(t, statusErr.Error(), "/evaluate/comprehensive")
}

func TestGenerateReport(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/generate/comprehensive-evaluation", r.URL.Path)
		json.NewEncoder(w).Encode(ReportPayload{
			OverallScore:        68,
			PlacementLikelihood: "moderate",
			SkillBreakdown:      map[string]float64{"communication": 70},
			Strengths:           []string{"steady"},
		})
	})

	report, err := c.GenerateReport(context.Background(), map[string]any{"total_score": 68})
	require.NoError(t, err)
	require.Equal(t, 68.0, report.OverallScore)
	require.Equal(t, "moderate", report.PlacementLikelihood)
}

func TestAnalyzeVoiceMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/analyze/voice", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "sess-1", r.FormValue("session_id"))
		require.Equal(t, "2", r.FormValue("question_id"))

		file, header, err := r.FormFile("audio")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "q2.webm", header.Filename)
		require.Equal(t, "audio/webm", header.Header.Get("Content-Type"))

		json.NewEncoder(w).Encode(VoiceAnalysis{"clarity": 0.8, "pace": 0.6, "energy": 0.7})
	})

	metrics, err := c.AnalyzeVoice(context.Background(), "sess-1", "2", "q2.webm", "audio/webm",
		bytes.NewReader([]byte("fake-audio-bytes")))
	require.NoError(t, err)
	require.InDelta(t, 0.8, metrics["clarity"], 1e-9)
	require.InDelta(t, 0.6, metrics["pace"], 1e-9)
}
