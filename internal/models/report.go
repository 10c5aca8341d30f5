package models

import (
	"time"

	"github.com/google/uuid"
)

// ResponseSummary is one question outcome inside a session summary.
type ResponseSummary struct {
	QuestionIndex   int              `json:"question_index"`
	Question        string           `json:"question"`
	Category        QuestionCategory `json:"category"`
	Difficulty      Difficulty       `json:"difficulty"`
	Transcript      string           `json:"transcript"`
	ResponseSeconds float64          `json:"response_seconds"`
	Score           float64          `json:"score"`
}

// SessionSummary is the end-of-session payload handed to report generation.
// Consistency is max(0, 100 - 2*variance(question scores)).
type SessionSummary struct {
	SessionID          uuid.UUID         `json:"session_id"`
	JobRole            string            `json:"job_role"`
	ResumeEnhanced     bool              `json:"resume_enhanced"`
	TotalScore         float64           `json:"total_score"`
	QuestionsAnswered  int               `json:"questions_answered"`
	QuestionsSkipped   int               `json:"questions_skipped"`
	AvgResponseSeconds float64           `json:"avg_response_seconds"`
	Confidence         float64           `json:"confidence"`
	Engagement         float64           `json:"engagement"`
	EyeContact         float64           `json:"eye_contact"`
	Communication      float64           `json:"communication"`
	ScoreVariance      float64           `json:"score_variance"`
	Consistency        float64           `json:"consistency"`
	Telemetry          TelemetrySummary  `json:"telemetry"`
	Responses          []ResponseSummary `json:"responses"`
	EndedAt            time.Time         `json:"ended_at"`
}

// Report is the persisted final evaluation produced by the AI service.
type Report struct {
	ID                  uuid.UUID          `json:"id"`
	SessionID           uuid.UUID          `json:"session_id"`
	OverallScore        float64            `json:"overall_score"`
	PlacementLikelihood string             `json:"placement_likelihood"`
	SkillBreakdown      map[string]float64 `json:"skill_breakdown"`
	DetailedFeedback    string             `json:"detailed_feedback"`
	Strengths           []string           `json:"strengths"`
	DevelopmentAreas    []string           `json:"development_areas"`
	Recommendations     []string           `json:"recommendations"`
	CreatedAt           time.Time          `json:"created_at"`
}
