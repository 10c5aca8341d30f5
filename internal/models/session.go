package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	// MaxQuestions is the number of questions in one interview session.
	MaxQuestions = 5
	// SkippedTranscript is the sentinel transcript recorded for skipped questions.
	SkippedTranscript = "skipped"
)

// SessionStatus is the lifecycle state of an interview session.
type SessionStatus string

const (
	StatusNotStarted SessionStatus = "not_started"
	StatusInProgress SessionStatus = "in_progress"
	StatusEnded      SessionStatus = "ended"
)

// QuestionCategory classifies an interview question.
type QuestionCategory string

const (
	CategoryBehavioral    QuestionCategory = "behavioral"
	CategoryTechnical     QuestionCategory = "technical"
	CategoryAnalytical    QuestionCategory = "analytical"
	CategorySituational   QuestionCategory = "situational"
	CategoryCommunication QuestionCategory = "communication"
)

// Difficulty is the difficulty tier of a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Session represents one interview attempt.
type Session struct {
	ID             uuid.UUID      `json:"id"`
	UserID         uuid.UUID      `json:"user_id"`
	JobRole        string         `json:"job_role"`
	ResumeEnhanced bool           `json:"resume_enhanced"`
	Status         SessionStatus  `json:"status"`
	Score          InterviewScore `json:"score"`
	StartedAt      *time.Time     `json:"started_at,omitempty"`
	EndedAt        *time.Time     `json:"ended_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// QuestionRecord is the immutable outcome of one question slot.
type QuestionRecord struct {
	ID              uuid.UUID        `json:"id"`
	SessionID       uuid.UUID        `json:"session_id"`
	QuestionIndex   int              `json:"question_index"`
	Question        string           `json:"question"`
	Category        QuestionCategory `json:"category"`
	Difficulty      Difficulty       `json:"difficulty"`
	Transcript      string           `json:"transcript"`
	ResponseSeconds float64          `json:"response_seconds"`
	Score           float64          `json:"score"`
	CreatedAt       time.Time        `json:"created_at"`
}

// Skipped reports whether this record is a skipped question.
func (r QuestionRecord) Skipped() bool {
	return r.Transcript == SkippedTranscript
}

// InterviewScore is the cumulative running score state of a session.
// Behavioral metrics start at the 0.5 neutral value and live in [0,1].
type InterviewScore struct {
	TotalScore         float64 `json:"total_score"`
	QuestionsAnswered  int     `json:"questions_answered"`
	QuestionsSkipped   int     `json:"questions_skipped"`
	AvgResponseSeconds float64 `json:"avg_response_seconds"`
	Confidence         float64 `json:"confidence"`
	Engagement         float64 `json:"engagement"`
	EyeContact         float64 `json:"eye_contact"`
	Communication      float64 `json:"communication"`
}

// NewInterviewScore returns score state with neutral behavioral metrics.
func NewInterviewScore() InterviewScore {
	return InterviewScore{
		Confidence:    0.5,
		Engagement:    0.5,
		EyeContact:    0.5,
		Communication: 0.5,
	}
}

// QuestionsTotal is the number of question slots consumed so far.
func (s InterviewScore) QuestionsTotal() int {
	return s.QuestionsAnswered + s.QuestionsSkipped
}
