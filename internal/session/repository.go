package session

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prepview/backend/internal/models"
)

// Repository handles session and question record persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a session repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new session row.
func (r *Repository) Create(ctx context.Context, s *models.Session) error {
	const query = `INSERT INTO sessions
		(id, user_id, job_role, resume_enhanced, status, confidence, engagement, eye_contact, communication)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		s.UserID, s.JobRole, s.ResumeEnhanced, string(s.Status),
		s.Score.Confidence, s.Score.Engagement, s.Score.EyeContact, s.Score.Communication).
		Scan(&s.ID, &s.CreatedAt)
}

// GetByID returns a session by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	const query = `SELECT id, user_id, job_role, resume_enhanced, status,
		total_score, questions_answered, questions_skipped, avg_response_seconds,
		confidence, engagement, eye_contact, communication,
		started_at, ended_at, created_at
		FROM sessions WHERE id = $1`
	var s models.Session
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.JobRole, &s.ResumeEnhanced, &s.Status,
		&s.Score.TotalScore, &s.Score.QuestionsAnswered, &s.Score.QuestionsSkipped, &s.Score.AvgResponseSeconds,
		&s.Score.Confidence, &s.Score.Engagement, &s.Score.EyeContact, &s.Score.Communication,
		&s.StartedAt, &s.EndedAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateState writes the current status and score state of a session.
func (r *Repository) UpdateState(ctx context.Context, s *models.Session) error {
	const query = `UPDATE sessions SET status = $2,
		total_score = $3, questions_answered = $4, questions_skipped = $5, avg_response_seconds = $6,
		confidence = $7, engagement = $8, eye_contact = $9, communication = $10,
		started_at = $11, ended_at = $12
		WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, s.ID, string(s.Status),
		s.Score.TotalScore, s.Score.QuestionsAnswered, s.Score.QuestionsSkipped, s.Score.AvgResponseSeconds,
		s.Score.Confidence, s.Score.Engagement, s.Score.EyeContact, s.Score.Communication,
		s.StartedAt, s.EndedAt)
	return err
}

// AppendRecord inserts a question record. The (session_id, question_index)
// unique constraint enforces one record per slot.
func (r *Repository) AppendRecord(ctx context.Context, rec *models.QuestionRecord) error {
	const query = `INSERT INTO question_records
		(id, session_id, question_index, question, category, difficulty, transcript, response_seconds, score)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		rec.SessionID, rec.QuestionIndex, rec.Question, string(rec.Category), string(rec.Difficulty),
		rec.Transcript, rec.ResponseSeconds, rec.Score).
		Scan(&rec.ID, &rec.CreatedAt)
}

// ListRecords returns a session's question records in index order.
func (r *Repository) ListRecords(ctx context.Context, sessionID uuid.UUID) ([]models.QuestionRecord, error) {
	const query = `SELECT id, session_id, question_index, question, category, difficulty,
		transcript, response_seconds, score, created_at
		FROM question_records WHERE session_id = $1 ORDER BY question_index`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.QuestionRecord
	for rows.Next() {
		var rec models.QuestionRecord
		if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.QuestionIndex, &rec.Question, &rec.Category,
			&rec.Difficulty, &rec.Transcript, &rec.ResponseSeconds, &rec.Score, &rec.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}

// ListByUser returns a user's sessions, newest first.
func (r *Repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	const query = `SELECT id, user_id, job_role, resume_enhanced, status,
		total_score, questions_answered, questions_skipped, avg_response_seconds,
		confidence, engagement, eye_contact, communication,
		started_at, ended_at, created_at
		FROM sessions WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Session
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.JobRole, &s.ResumeEnhanced, &s.Status,
			&s.Score.TotalScore, &s.Score.QuestionsAnswered, &s.Score.QuestionsSkipped, &s.Score.AvgResponseSeconds,
			&s.Score.Confidence, &s.Score.Engagement, &s.Score.EyeContact, &s.Score.Communication,
			&s.StartedAt, &s.EndedAt, &s.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
