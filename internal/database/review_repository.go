package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shieldforce/guard-dispatch/internal/models"
)

// ErrDuplicateReview is returned when a shift has already been reviewed
var ErrDuplicateReview = errors.New("shift already reviewed")

// ReviewRepository handles shift review database operations
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository creates a new ReviewRepository
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Create inserts a review; a second review of the same shift fails with
// ErrDuplicateReview
func (r *ReviewRepository) Create(ctx context.Context, review *models.ShiftReview) error {
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}
	review.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shift_reviews (id, shift_id, personnel_id, reviewer_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		review.ID, review.ShiftID, review.PersonnelID, review.ReviewerID, review.Rating, review.Comment, review.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateReview
		}
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}
