package reports

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prepview/backend/internal/models"
)

// Repository persists generated interview reports.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a report row. The session_id unique constraint means a
// session has at most one report; re-generation replaces it.
func (r *Repository) Create(ctx context.Context, rep *models.Report) error {
	skills, err := json.Marshal(rep.SkillBreakdown)
	if err != nil {
		return fmt.Errorf("marshal skill breakdown: %w", err)
	}
	strengths, err := json.Marshal(rep.Strengths)
	if err != nil {
		return fmt.Errorf("marshal strengths: %w", err)
	}
	areas, err := json.Marshal(rep.DevelopmentAreas)
	if err != nil {
		return fmt.Errorf("marshal development areas: %w", err)
	}
	recs, err := json.Marshal(rep.Recommendations)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}
	const query = `INSERT INTO reports
		(id, session_id, overall_score, placement_likelihood, skill_breakdown,
		 detailed_feedback, strengths, development_areas, recommendations)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO UPDATE SET
			overall_score = EXCLUDED.overall_score,
			placement_likelihood = EXCLUDED.placement_likelihood,
			skill_breakdown = EXCLUDED.skill_breakdown,
			detailed_feedback = EXCLUDED.detailed_feedback,
			strengths = EXCLUDED.strengths,
			development_areas = EXCLUDED.development_areas,
			recommendations = EXCLUDED.recommendations
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		rep.SessionID, rep.OverallScore, rep.PlacementLikelihood, skills,
		rep.DetailedFeedback, strengths, areas, recs).
		Scan(&rep.ID, &rep.CreatedAt)
}

// GetByID returns a report by its ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	const query = `SELECT id, session_id, overall_score, placement_likelihood, skill_breakdown,
		detailed_feedback, strengths, development_areas, recommendations, created_at
		FROM reports WHERE id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

// GetBySessionID returns the report for a session, if one exists.
func (r *Repository) GetBySessionID(ctx context.Context, sessionID uuid.UUID) (*models.Report, error) {
	const query = `SELECT id, session_id, overall_score, placement_likelihood, skill_breakdown,
		detailed_feedback, strengths, development_areas, recommendations, created_at
		FROM reports WHERE session_id = $1`
	return r.scanOne(r.pool.QueryRow(ctx, query, sessionID))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanOne(row rowScanner) (*models.Report, error) {
	var rep models.Report
	var skills, strengths, areas, recs []byte
	if err := row.Scan(&rep.ID, &rep.SessionID, &rep.OverallScore, &rep.PlacementLikelihood, &skills,
		&rep.DetailedFeedback, &strengths, &areas, &recs, &rep.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(skills, &rep.SkillBreakdown); err != nil {
		return nil, fmt.Errorf("unmarshal skill breakdown: %w", err)
	}
	if err := json.Unmarshal(strengths, &rep.Strengths); err != nil {
		return nil, fmt.Errorf("unmarshal strengths: %w", err)
	}
	if err := json.Unmarshal(areas, &rep.DevelopmentAreas); err != nil {
		return nil, fmt.Errorf("unmarshal development areas: %w", err)
	}
	if err := json.Unmarshal(recs, &rep.Recommendations); err != nil {
		return nil, fmt.Errorf("unmarshal recommendations: %w", err)
	}
	return &rep, nil
}
