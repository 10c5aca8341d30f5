package models

import "time"

// FacialSample is one facial analysis observation pushed by the perception side.
// Metric values are nominally in [0,1]; out-of-range inputs pass through on
// ingest and are clamped only at consumption.
type FacialSample struct {
	At         time.Time `json:"at"`
	Confidence float64   `json:"confidence"`
	Engagement float64   `json:"engagement"`
	EyeContact float64   `json:"eye_contact"`
}

// VoiceSample is one voice analysis observation (clarity/pace derived metrics).
type VoiceSample struct {
	At      time.Time `json:"at"`
	Clarity float64   `json:"clarity"`
	Pace    float64   `json:"pace"`
	Energy  float64   `json:"energy"`
}

// RunningMetrics are the smoothed live metrics shown during a session.
type RunningMetrics struct {
	Confidence float64 `json:"confidence"`
	Engagement float64 `json:"engagement"`
	EyeContact float64 `json:"eye_contact"`
}

// TelemetrySummary holds end-of-session statistics over the retained history.
type TelemetrySummary struct {
	SampleCount        int     `json:"sample_count"`
	ConfidenceMean     float64 `json:"confidence_mean"`
	ConfidenceVariance float64 `json:"confidence_variance"`
	EngagementTrend    float64 `json:"engagement_trend"`
}
