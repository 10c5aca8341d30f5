// Package telemetry maintains bounded facial/voice sample histories for a live
// interview session and derives smoothed running metrics from them.
package telemetry

import (
	"sync"

	"github.com/prepview/backend/internal/models"
)

const (
	// HistoryCap bounds each modality's retained history; the oldest sample is
	// evicted when a new one arrives at capacity.
	HistoryCap = 50
	// RunningWindow is the number of most recent facial samples averaged for
	// live metrics.
	RunningWindow = 20
)

// Aggregator ingests asynchronous facial/voice samples and produces running
// metrics. All operations are total: an empty history is a no-op, never an
// error. Safe for concurrent use; hub callbacks and HTTP reads race.
type Aggregator struct {
	mu      sync.Mutex
	facial  []models.FacialSample
	voice   []models.VoiceSample
	current models.RunningMetrics
}

// NewAggregator returns an aggregator with neutral running metrics.
func NewAggregator() *Aggregator {
	return &Aggregator{
		current: models.RunningMetrics{Confidence: 0.5, Engagement: 0.5, EyeContact: 0.5},
	}
}

// IngestFacial appends a facial sample, evicting the oldest at capacity.
// Metric ranges are not validated here; clamping happens at consumption.
func (a *Aggregator) IngestFacial(s models.FacialSample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.facial = append(a.facial, s)
	if len(a.facial) > HistoryCap {
		a.facial = a.facial[len(a.facial)-HistoryCap:]
	}
}

// IngestVoice appends a voice sample, evicting the oldest at capacity.
func (a *Aggregator) IngestVoice(s models.VoiceSample) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.voice = append(a.voice, s)
	if len(a.voice) > HistoryCap {
		a.voice = a.voice[len(a.voice)-HistoryCap:]
	}
}

// RunningMetrics returns the mean confidence/engagement/eye-contact over the
// most recent RunningWindow facial samples. With an empty history the previous
// values are returned unchanged.
func (a *Aggregator) RunningMetrics() models.RunningMetrics {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.facial) == 0 {
		return a.current
	}
	window := a.facial
	if len(window) > RunningWindow {
		window = window[len(window)-RunningWindow:]
	}
	var conf, eng, eye float64
	for _, s := range window {
		conf += clamp01(s.Confidence)
		eng += clamp01(s.Engagement)
		eye += clamp01(s.EyeContact)
	}
	n := float64(len(window))
	a.current = models.RunningMetrics{
		Confidence: conf / n,
		Engagement: eng / n,
		EyeContact: eye / n,
	}
	return a.current
}

// RecentFacialAverages returns the average confidence/engagement/eye-contact of
// the last n facial samples and whether any samples exist. Used by the response
// scorer's nonverbal component.
func (a *Aggregator) RecentFacialAverages(n int) (conf, eng, eye float64, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.facial) == 0 || n <= 0 {
		return 0, 0, 0, false
	}
	window := a.facial
	if len(window) > n {
		window = window[len(window)-n:]
	}
	for _, s := range window {
		conf += clamp01(s.Confidence)
		eng += clamp01(s.Engagement)
		eye += clamp01(s.EyeContact)
	}
	count := float64(len(window))
	return conf / count, eng / count, eye / count, true
}

// FacialCount returns the retained facial history length.
func (a *Aggregator) FacialCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.facial)
}

// VoiceCount returns the retained voice history length.
func (a *Aggregator) VoiceCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.voice)
}

// Summary computes end-of-session statistics over the full retained facial
// history: confidence count/mean/variance plus the engagement trend, defined as
// mean(second half) - mean(first half) of the engagement series.
func (a *Aggregator) Summary() models.TelemetrySummary {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := models.TelemetrySummary{SampleCount: len(a.facial)}
	if len(a.facial) == 0 {
		return out
	}

	conf := make([]float64, len(a.facial))
	eng := make([]float64, len(a.facial))
	for i, s := range a.facial {
		conf[i] = clamp01(s.Confidence)
		eng[i] = clamp01(s.Engagement)
	}
	out.ConfidenceMean = mean(conf)
	out.ConfidenceVariance = variance(conf, out.ConfidenceMean)

	half := len(eng) / 2
	if half > 0 {
		out.EngagementTrend = mean(eng[half:]) - mean(eng[:half])
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func variance(xs []float64, m float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return sum / float64(len(xs))
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
