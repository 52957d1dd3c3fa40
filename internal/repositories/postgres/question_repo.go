package postgres

import (
	"context"
	"errors"

	"github.com/hirevox/hirevox/internal/models"
	"github.com/hirevox/hirevox/internal/utils"
	"gorm.io/gorm"
)

type QuestionRepository interface {
	CreateBatch(ctx context.Context, qs []*models.InterviewQuestion) error
	// ListBySession returns questions in ascending question_index order.
	ListBySession(ctx context.Context, sessionID string) ([]models.InterviewQuestion, error)
	GetByIndex(ctx context.Context, sessionID string, index int) (*models.InterviewQuestion, error)
	Update(ctx context.Context, q *models.InterviewQuestion) error
	DeleteBySession(ctx context.Context, sessionID string) error
}

type questionRepo struct {
	db *gorm.DB
}

func NewQuestionRepo(db *gorm.DB) QuestionRepository {
	return &questionRepo{db: db}
}

func (r *questionRepo) CreateBatch(ctx context.Context, qs []*models.InterviewQuestion) error {
	if len(qs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(qs).Error
}

func (r *questionRepo) ListBySession(ctx context.Context, sessionID string) ([]models.InterviewQuestion, error) {
	var rows []models.InterviewQuestion
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("question_index ASC").
		Find(&rows).Error
	return rows, err
}

func (r *questionRepo) GetByIndex(ctx context.Context, sessionID string, index int) (*models.InterviewQuestion, error) {
	var row models.InterviewQuestion
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND question_index = ?", sessionID, index).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *questionRepo) Update(ctx context.Context, q *models.InterviewQuestion) error {
	return r.db.WithContext(ctx).Save(q).Error
}

func (r *questionRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	return r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&models.InterviewQuestion{}).Error
}
