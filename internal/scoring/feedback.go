package scoring

// feedbackForScore selects the qualitative feedback band for a full-path score.
func feedbackForScore(score float64) string {
	switch {
	case score >= 85:
		return "Excellent response! Well-structured, specific and convincingly delivered."
	case score >= 70:
		return "Good response. Solid substance; tighten the structure and add more specifics."
	case score >= 50:
		return "Adequate response. The core is there but it needs more depth and evidence."
	case score >= 25:
		return "Basic response. Expand your answer with concrete examples and outcomes."
	default:
		return "Insufficient response. Take more time and build a complete answer."
	}
}

// strengths gates each candidate phrase on the same thresholds used in scoring.
// At least one strength is always returned.
func strengths(a analysis, elapsedSeconds float64, facial FacialWindow) []string {
	var out []string
	if a.wordCount >= 60 {
		out = append(out, "Comprehensive, detailed answer")
	}
	if a.sentenceCount >= 2 && a.meanWordsPerSentence >= 8 && a.meanWordsPerSentence <= 25 {
		out = append(out, "Clear sentence structure and pacing")
	}
	if a.hasExamples && a.wordCount >= 30 {
		out = append(out, "Backed claims with concrete examples")
	}
	if a.hasQuantified && a.wordCount >= 25 {
		out = append(out, "Quantified impact with measurable results")
	}
	if a.hasSTAR && a.wordCount >= 40 {
		out = append(out, "Followed a situation-task-action-result narrative")
	}
	if elapsedSeconds >= 20 && elapsedSeconds <= 120 {
		out = append(out, "Well-paced response time")
	}
	if facial != nil {
		if conf, _, _, ok := facial.RecentFacialAverages(nonverbalWindow); ok && conf > nonverbalThreshold {
			out = append(out, "Projected confidence on camera")
		}
	}
	if len(out) == 0 {
		out = append(out, "Attempted to answer the question")
	}
	return out
}

// improvements lists actionable gaps; non-empty whenever score < 85.
func improvements(a analysis, elapsedSeconds float64, score float64) []string {
	var out []string
	if a.wordCount < 40 {
		out = append(out, "Add more depth and detail to your answer")
	}
	if !a.hasExamples {
		out = append(out, "Include a specific example from your experience")
	}
	if !a.hasQuantified {
		out = append(out, "Quantify your impact with concrete numbers")
	}
	if !a.hasSTAR {
		out = append(out, "Structure answers around situation, task, action and result")
	}
	if a.hasHedging {
		out = append(out, "Avoid hedging phrases like \"not sure\"")
	}
	if elapsedSeconds < 20 {
		out = append(out, "Take a moment to organize your thoughts before answering")
	}
	if len(out) == 0 && score < 85 {
		out = append(out, "Keep refining delivery and specificity")
	}
	return out
}
