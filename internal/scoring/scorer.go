// Package scoring implements the local deterministic response scorer used when
// the remote AI evaluator is unavailable. It grades a transcript on a 0-100
// scale from answer length, structure, response timing, nonverbal telemetry and
// content quality signals.
package scoring

import (
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"
	"unicode"
)

// Thresholds shared by scoring and feedback generation.
const (
	minAnswerChars     = 3
	minimalWordCount   = 5
	shortWordCount     = 15
	nonverbalWindow    = 10
	nonverbalThreshold = 0.6
)

// Result is the outcome of scoring one answer.
type Result struct {
	Score        float64  `json:"score"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths"`
	Improvements []string `json:"improvements"`
}

// FacialWindow supplies recent facial telemetry averages for the nonverbal
// component. The session's telemetry aggregator satisfies it; tests substitute
// fakes.
type FacialWindow interface {
	RecentFacialAverages(n int) (confidence, engagement, eyeContact float64, ok bool)
}

// Scorer grades answers. The effort-credit bands for very short answers are
// pseudo-random by design; inject a seeded *rand.Rand for reproducible output.
type Scorer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewScorer creates a scorer. A nil rng falls back to a time-seeded source.
func NewScorer(rng *rand.Rand) *Scorer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Scorer{rng: rng}
}

// Score grades a transcript with the elapsed response time in seconds.
// facial may be nil when no telemetry is available.
func (s *Scorer) Score(transcript string, elapsedSeconds float64, facial FacialWindow) Result {
	a := analyze(transcript)

	// Degenerate input: nothing to grade.
	if a.wordCount == 0 || len(strings.TrimSpace(transcript)) < minAnswerChars {
		return Result{
			Score:    0,
			Feedback: "No meaningful answer was detected. Please respond to the question.",
			Improvements: []string{
				"Provide an answer to the question",
				"Speak clearly so your response is captured",
			},
		}
	}

	// Minimal effort: credit for trying, nothing more.
	if a.wordCount < minimalWordCount {
		return Result{
			Score:        s.randInRange(5, 15),
			Feedback:     "Your answer was too brief to evaluate. Aim for a few full sentences.",
			Strengths:    []string{"Attempted to answer the question"},
			Improvements: []string{"Expand your answer well beyond a few words"},
		}
	}

	// Short answer: a sentence or two, not yet a real response.
	if a.wordCount < shortWordCount {
		return Result{
			Score:        s.randInRange(10, 30),
			Feedback:     "Your answer was quite short. Develop your points with detail and examples.",
			Strengths:    []string{"Attempted to answer the question"},
			Improvements: []string{"Develop each point into a complete thought", "Include a specific example from your experience"},
		}
	}

	score := s.fullScore(a, elapsedSeconds, facial)
	return Result{
		Score:        score,
		Feedback:     feedbackForScore(score),
		Strengths:    strengths(a, elapsedSeconds, facial),
		Improvements: improvements(a, elapsedSeconds, score),
	}
}

// fullScore computes the additive components and applies bonuses, penalties,
// ceilings and the final clamp for answers of 15 words or more.
func (s *Scorer) fullScore(a analysis, elapsedSeconds float64, facial FacialWindow) float64 {
	score := clarityComponent(a) +
		structureComponent(a) +
		timingComponent(elapsedSeconds) +
		nonverbalComponent(facial)

	if a.hasExamples && a.wordCount >= 30 {
		score += 10
	}
	if a.hasQuantified && a.wordCount >= 25 {
		score += 10
	}
	if a.hasSTAR && a.wordCount >= 40 {
		score += 10
	}
	if a.techVerbCount >= 2 && a.wordCount >= 35 {
		score += 5
	}

	if a.hasHedging {
		score *= 0.7
	}
	if a.lowercaseHeavy {
		score -= 5
	}

	// Ceilings: thin answers cannot reach the top bands no matter the bonuses.
	if a.wordCount < 20 {
		score = math.Min(score, 35)
	}
	if a.wordCount < 30 && !a.hasExamples {
		score = math.Min(score, 45)
	}
	if !a.hasExamples && !a.hasQuantified && !a.hasSTAR {
		score = math.Min(score, 50)
	}

	return math.Max(0, math.Min(100, score))
}

// clarityComponent awards up to 30 points for length thresholds at 20/40/60 words.
func clarityComponent(a analysis) float64 {
	var pts float64
	for _, threshold := range []int{20, 40, 60} {
		if a.wordCount >= threshold {
			pts += 10
		}
	}
	return pts
}

// structureComponent awards up to 20 points for sentence structure.
func structureComponent(a analysis) float64 {
	var pts float64
	if a.sentenceCount >= 2 {
		pts += 5
	}
	if a.meanWordsPerSentence >= 8 && a.meanWordsPerSentence <= 25 {
		pts += 10
	}
	if a.hasClausePunctuation {
		pts += 5
	}
	return pts
}

// timingComponent awards up to 15 points; both rushed and rambling answers lose
// out, with 20-120s as the reward zone.
func timingComponent(sec float64) float64 {
	switch {
	case sec < 5:
		return 0
	case sec < 15:
		return 5
	case sec >= 20 && sec <= 120:
		return 15
	case sec <= 180:
		return 10
	default:
		return 5
	}
}

// nonverbalComponent awards up to 15 points from the last 10 facial samples.
func nonverbalComponent(facial FacialWindow) float64 {
	if facial == nil {
		return 0
	}
	conf, eng, eye, ok := facial.RecentFacialAverages(nonverbalWindow)
	if !ok {
		return 0
	}
	var pts float64
	if conf > nonverbalThreshold {
		pts += 5
	}
	if eng > nonverbalThreshold {
		pts += 5
	}
	if eye > nonverbalThreshold {
		pts += 5
	}
	return pts
}

// randInRange returns a value in [lo, hi).
func (s *Scorer) randInRange(lo, hi float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.Float64()*(hi-lo)
}

// analysis holds content signals extracted once and shared between scoring and
// feedback generation.
type analysis struct {
	wordCount            int
	sentenceCount        int
	meanWordsPerSentence float64
	hasClausePunctuation bool
	hasExamples          bool
	hasQuantified        bool
	hasSTAR              bool
	techVerbCount        int
	hasHedging           bool
	lowercaseHeavy       bool
}

var (
	exampleMarkers = []string{
		"for example", "for instance", "such as", "in my experience",
		"specifically", "one time", "i worked on", "i led", "we built",
	}
	quantifiedMarkers = []string{
		"percent", "%", "increased", "decreased", "reduced", "improved",
		"doubled", "saved", "grew",
	}
	starMarkers = []string{
		"situation", "task", "action", "result", "challenge", "approach",
		"outcome", "responsible",
	}
	techVerbs = []string{
		"implemented", "developed", "designed", "built", "created",
		"optimized", "automated", "deployed", "integrated", "migrated",
		"launched", "analyzed", "managed",
	}
	hedgingPhrases = []string{"i dont know", "not sure"}
)

func analyze(transcript string) analysis {
	trimmed := strings.TrimSpace(transcript)
	tokens := strings.Fields(trimmed)

	var a analysis
	var lowercaseOnly int
	for _, tok := range tokens {
		runes := []rune(tok)
		if len(runes) <= 1 {
			continue
		}
		a.wordCount++
		if !containsUpper(tok) {
			lowercaseOnly++
		}
	}
	if a.wordCount > 0 {
		a.lowercaseHeavy = float64(lowercaseOnly)/float64(a.wordCount) >= 0.8
	}

	a.sentenceCount = countSentences(trimmed)
	if a.sentenceCount > 0 {
		a.meanWordsPerSentence = float64(a.wordCount) / float64(a.sentenceCount)
	}
	a.hasClausePunctuation = strings.ContainsAny(trimmed, ",;")

	lower := strings.ToLower(trimmed)
	normalized := strings.NewReplacer("'", "", "’", "").Replace(lower)

	a.hasExamples = containsAny(lower, exampleMarkers)
	a.hasQuantified = containsAny(lower, quantifiedMarkers) || containsDigit(lower)
	a.hasSTAR = countMatches(lower, starMarkers) >= 2
	a.techVerbCount = countMatches(lower, techVerbs)
	a.hasHedging = containsAny(normalized, hedgingPhrases)
	return a
}

func countSentences(s string) int {
	n := 0
	inSentence := false
	for _, r := range s {
		switch r {
		case '.', '!', '?':
			if inSentence {
				n++
				inSentence = false
			}
		default:
			if !unicode.IsSpace(r) {
				inSentence = true
			}
		}
	}
	if inSentence {
		n++
	}
	return n
}

func containsUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func countMatches(s string, markers []string) int {
	n := 0
	for _, m := range markers {
		if strings.Contains(s, m) {
			n++
		}
	}
	return n
}
