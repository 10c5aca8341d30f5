package ai

// QuestionRequest is the body for POST /generate/question.
type QuestionRequest struct {
	SessionID  string  `json:"session_id"`
	JobRole    string  `json:"job_role"`
	Category   string  `json:"category"`
	Difficulty string  `json:"difficulty"`
	ResumeData *string `json:"resume_data"`
}

type questionResponse struct {
	Question string `json:"question"`
}

// EvaluationRequest is the body for POST /evaluate/comprehensive.
type EvaluationRequest struct {
	AnswerText    string        `json:"answer_text"`
	Question      string        `json:"question"`
	SessionID     string        `json:"session_id"`
	ResponseTime  float64       `json:"response_time"`
	VoiceAnalysis VoiceAnalysis `json:"voice_analysis"`
	JobRole       string        `json:"job_role"`
}

// Evaluation is the remote scoring result.
type Evaluation struct {
	Score        float64  `json:"score"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// VoiceAnalysis is the metric bag returned by POST /analyze/voice.
type VoiceAnalysis map[string]float64

// ReportPayload is the full report returned by POST /generate/comprehensive-evaluation.
type ReportPayload struct {
	OverallScore        float64            `json:"overall_score"`
	PlacementLikelihood string             `json:"placement_likelihood"`
	SkillBreakdown      map[string]float64 `json:"skill_breakdown"`
	DetailedFeedback    string             `json:"detailed_feedback"`
	Strengths           []string           `json:"strengths"`
	DevelopmentAreas    []string           `json:"development_areas"`
	Recommendations     []string           `json:"recommendations"`
}
