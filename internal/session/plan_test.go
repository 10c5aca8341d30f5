package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/prepview/backend/internal/models"
)

func TestPlanSlotNormalizesRole(t *testing.T) {
	tests := []struct {
		name    string
		jobRole string
		index   int
		want    QuestionSlot
	}{
		{"exact match", "software engineer", 1, QuestionSlot{models.CategoryTechnical, models.DifficultyMedium}},
		{"case and spacing", "  Software Engineer ", 2, QuestionSlot{models.CategoryTechnical, models.DifficultyHard}},
		{"data analyst", "Data Analyst", 3, QuestionSlot{models.CategoryAnalytical, models.DifficultyHard}},
		{"unknown role falls back", "astronaut", 0, defaultPlan[0]},
		{"negative index", "product manager", -1, rolePlans["product manager"][0]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, planSlot(tt.jobRole, tt.index))
		})
	}
}

func TestPlanOpensBehavioralEasy(t *testing.T) {
	for role, plan := range rolePlans {
		require.Len(t, plan, models.MaxQuestions, role)
		require.Equal(t, models.CategoryBehavioral, plan[0].Category, role)
		require.Equal(t, models.DifficultyEasy, plan[0].Difficulty, role)
	}
	require.Len(t, defaultPlan, models.MaxQuestions)
}

func TestFallbackQuestionSubstitutesRole(t *testing.T) {
	q := fallbackQuestion(0, "data analyst")
	require.Contains(t, q, "data analyst")

	// Indexes wrap around the template list.
	require.Equal(t, fallbackQuestion(1, "x"), fallbackQuestion(1+len(fallbackTemplates), "x"))

	for i := 0; i < len(fallbackTemplates); i++ {
		require.False(t, strings.Contains(fallbackQuestion(i, "engineer"), "%s"))
	}
}
