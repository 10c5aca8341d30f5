package session

import (
	"fmt"
	"strings"

	"github.com/prepview/backend/internal/models"
)

// QuestionSlot pairs a category with a difficulty for one question index.
type QuestionSlot struct {
	Category   models.QuestionCategory
	Difficulty models.Difficulty
}

// rolePlans maps a normalized job role to its five-question plan. Unrecognized
// roles fall back to defaultPlan.
var rolePlans = map[string][]QuestionSlot{
	"software engineer": {
		{models.CategoryBehavioral, models.DifficultyEasy},
		{models.CategoryTechnical, models.DifficultyMedium},
		{models.CategoryTechnical, models.DifficultyHard},
		{models.CategoryAnalytical, models.DifficultyMedium},
		{models.CategoryBehavioral, models.DifficultyMedium},
	},
	"data analyst": {
		{models.CategoryBehavioral, models.DifficultyEasy},
		{models.CategoryAnalytical, models.DifficultyMedium},
		{models.CategoryTechnical, models.DifficultyMedium},
		{models.CategoryAnalytical, models.DifficultyHard},
		{models.CategoryCommunication, models.DifficultyMedium},
	},
	"product manager": {
		{models.CategoryBehavioral, models.DifficultyEasy},
		{models.CategorySituational, models.DifficultyMedium},
		{models.CategoryAnalytical, models.DifficultyMedium},
		{models.CategoryCommunication, models.DifficultyHard},
		{models.CategoryBehavioral, models.DifficultyMedium},
	},
}

var defaultPlan = []QuestionSlot{
	{models.CategoryBehavioral, models.DifficultyEasy},
	{models.CategoryTechnical, models.DifficultyMedium},
	{models.CategoryBehavioral, models.DifficultyMedium},
	{models.CategoryAnalytical, models.DifficultyHard},
	{models.CategorySituational, models.DifficultyMedium},
}

// planSlot returns the category/difficulty for the given question index.
func planSlot(jobRole string, index int) QuestionSlot {
	plan, ok := rolePlans[strings.ToLower(strings.TrimSpace(jobRole))]
	if !ok {
		plan = defaultPlan
	}
	if index < 0 {
		index = 0
	}
	return plan[index%len(plan)]
}

// fallbackTemplates are the fixed questions substituted when remote question
// generation fails. Selection is by question index modulo the template count.
var fallbackTemplates = []string{
	"Tell me about yourself and what draws you to the %s role.",
	"Describe a challenging problem you solved recently. What was your approach?",
	"Tell me about a time you had to learn something new under pressure.",
	"How do you prioritize when everything on your plate feels urgent?",
	"Where do you want to grow in the next two years as a %s?",
}

func fallbackQuestion(index int, jobRole string) string {
	tmpl := fallbackTemplates[((index%len(fallbackTemplates))+len(fallbackTemplates))%len(fallbackTemplates)]
	if strings.Contains(tmpl, "%s") {
		return fmt.Sprintf(tmpl, jobRole)
	}
	return tmpl
}
