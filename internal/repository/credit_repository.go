package repository

import (
	"context"
	"exam_engine_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type CreditRepository struct {
	DB *gorm.DB
}

func NewCreditRepository(db *gorm.DB) *CreditRepository {
	return &CreditRepository{DB: db}
}

// FindUnused 返回最早购买的未使用次数
func (r *CreditRepository) FindUnused(ctx context.Context, studentID uint, examID string) (*model.ExamPaymentAttempt, error) {
	var credit model.ExamPaymentAttempt
	err := r.DB.WithContext(ctx).
		Where("student_id = ? AND exam_id = ? AND is_used = ?", studentID, examID, false).
		Order("created_at asc").
		First(&credit).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &credit, nil
}

func (r *CreditRepository) MarkUsed(ctx context.Context, creditID, attemptID string, at time.Time) error {
	res := r.DB.WithContext(ctx).Model(&model.ExamPaymentAttempt{}).
		Where("id = ? AND is_used = ?", creditID, false).
		Updates(map[string]interface{}{
			"is_used":         true,
			"exam_attempt_id": attemptID,
			"used_at":         at,
		})
	return stateChanged(res)
}
