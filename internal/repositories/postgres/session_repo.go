package postgres

import (
	"context"
	"errors"

	"github.com/hirevox/hirevox/internal/models"
	"github.com/hirevox/hirevox/internal/utils"
	"gorm.io/gorm"
)

type SessionRepository interface {
	Create(ctx context.Context, s *models.InterviewSession) error
	GetByID(ctx context.Context, id string) (*models.InterviewSession, error)
	// FindActiveByUserJob returns the non-terminal session for a
	// (user, job) key, if one exists.
	FindActiveByUserJob(ctx context.Context, userID, jobRole, jobID string) (*models.InterviewSession, error)
	// FindLatestTerminalByUserJob returns the most recent COMPLETED or
	// CANCELLED session matching the full job target.
	FindLatestTerminalByUserJob(ctx context.Context, userID, jobRole, category, subCategory string) (*models.InterviewSession, error)
	Update(ctx context.Context, s *models.InterviewSession) error
	Delete(ctx context.Context, id string) error
}

type sessionRepo struct {
	db *gorm.DB
}

func NewSessionRepo(db *gorm.DB) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) Create(ctx context.Context, s *models.InterviewSession) error {
	return r.db.WithContext(ctx).Create(s).Error
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*models.InterviewSession, error) {
	var row models.InterviewSession
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *sessionRepo) FindActiveByUserJob(ctx context.Context, userID, jobRole, jobID string) (*models.InterviewSession, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ? AND job_role = ?", userID, jobRole).
		Where("status IN ?", []models.SessionStatus{models.SessionPreparing, models.SessionInProgress})
	if jobID != "" {
		q = q.Where("job_id = ?", jobID)
	}

	var row models.InterviewSession
	err := q.Order("created_at DESC").Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *sessionRepo) FindLatestTerminalByUserJob(ctx context.Context, userID, jobRole, category, subCategory string) (*models.InterviewSession, error) {
	var row models.InterviewSession
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND job_role = ? AND job_category = ? AND job_sub_category = ?",
			userID, jobRole, category, subCategory).
		Where("status IN ?", []models.SessionStatus{models.SessionCompleted, models.SessionCancelled}).
		Order("created_at DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *sessionRepo) Update(ctx context.Context, s *models.InterviewSession) error {
	return r.db.WithContext(ctx).Save(s).Error
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.InterviewSession{}).Error
}
