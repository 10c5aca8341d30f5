package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prepview/backend/internal/models"
)

func facialAt(i int, conf float64) models.FacialSample {
	return models.FacialSample{
		At:         time.Unix(int64(i), 0),
		Confidence: conf,
		Engagement: conf,
		EyeContact: conf,
	}
}

func TestIngestFacialEvictsOldest(t *testing.T) {
	a := NewAggregator()
	for i := 0; i < HistoryCap+10; i++ {
		a.IngestFacial(facialAt(i, 0.5))
	}
	require.Equal(t, HistoryCap, a.FacialCount())

	// The retained window must be the most recent samples.
	a.mu.Lock()
	first := a.facial[0].At
	last := a.facial[len(a.facial)-1].At
	a.mu.Unlock()
	require.Equal(t, time.Unix(10, 0), first)
	require.Equal(t, time.Unix(HistoryCap+9, 0), last)
}

func TestIngestVoiceEvictsOldest(t *testing.T) {
	a := NewAggregator()
	for i := 0; i < HistoryCap*2; i++ {
		a.IngestVoice(models.VoiceSample{At: time.Unix(int64(i), 0), Clarity: 0.7})
	}
	require.Equal(t, HistoryCap, a.VoiceCount())
}

func TestRunningMetricsEmptyHistoryKeepsPrevious(t *testing.T) {
	a := NewAggregator()
	m := a.RunningMetrics()
	require.Equal(t, 0.5, m.Confidence)
	require.Equal(t, 0.5, m.Engagement)
	require.Equal(t, 0.5, m.EyeContact)

	a.IngestFacial(facialAt(0, 0.9))
	m = a.RunningMetrics()
	require.InDelta(t, 0.9, m.Confidence, 1e-9)
}

func TestRunningMetricsWindow(t *testing.T) {
	a := NewAggregator()
	// 30 old low samples, then RunningWindow high ones: only the window counts.
	for i := 0; i < 30; i++ {
		a.IngestFacial(facialAt(i, 0.1))
	}
	for i := 0; i < RunningWindow; i++ {
		a.IngestFacial(facialAt(30+i, 0.9))
	}
	m := a.RunningMetrics()
	require.InDelta(t, 0.9, m.Confidence, 1e-9)
	require.InDelta(t, 0.9, m.EyeContact, 1e-9)
}

func TestRunningMetricsClampsOutOfRange(t *testing.T) {
	a := NewAggregator()
	a.IngestFacial(facialAt(0, 1.8))
	a.IngestFacial(facialAt(1, -0.4))
	m := a.RunningMetrics()
	require.InDelta(t, 0.5, m.Confidence, 1e-9) // (1.0 + 0.0) / 2
}

func TestRecentFacialAverages(t *testing.T) {
	a := NewAggregator()
	_, _, _, ok := a.RecentFacialAverages(10)
	require.False(t, ok)

	for i := 0; i < 5; i++ {
		a.IngestFacial(facialAt(i, 0.2))
	}
	for i := 0; i < 10; i++ {
		a.IngestFacial(facialAt(5+i, 0.8))
	}
	conf, eng, eye, ok := a.RecentFacialAverages(10)
	require.True(t, ok)
	require.InDelta(t, 0.8, conf, 1e-9)
	require.InDelta(t, 0.8, eng, 1e-9)
	require.InDelta(t, 0.8, eye, 1e-9)

	// Fewer samples than requested still averages what exists.
	b := NewAggregator()
	b.IngestFacial(facialAt(0, 0.6))
	conf, _, _, ok = b.RecentFacialAverages(10)
	require.True(t, ok)
	require.InDelta(t, 0.6, conf, 1e-9)
}

func TestSummaryStatistics(t *testing.T) {
	a := NewAggregator()
	require.Zero(t, a.Summary().SampleCount)

	// First half engagement 0.2, second half 0.8: trend +0.6.
	for i := 0; i < 10; i++ {
		a.IngestFacial(models.FacialSample{At: time.Unix(int64(i), 0), Confidence: 0.5, Engagement: 0.2})
	}
	for i := 0; i < 10; i++ {
		a.IngestFacial(models.FacialSample{At: time.Unix(int64(10+i), 0), Confidence: 0.5, Engagement: 0.8})
	}
	sum := a.Summary()
	require.Equal(t, 20, sum.SampleCount)
	require.InDelta(t, 0.5, sum.ConfidenceMean, 1e-9)
	require.InDelta(t, 0.0, sum.ConfidenceVariance, 1e-9)
	require.InDelta(t, 0.6, sum.EngagementTrend, 1e-9)
}
