package repository

import (
	"context"
	"exam_engine_backend/internal/model"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) MaxAttemptNumber(ctx context.Context, studentID uint, examID, slotID string) (int, error) {
	var max *int
	err := r.DB.WithContext(ctx).Model(&model.ExamAttempt{}).
		Where("student_id = ? AND exam_id = ? AND slot_id = ?", studentID, examID, slotID).
		Select("MAX(attempt_number)").
		Scan(&max).Error
	if err != nil || max == nil {
		return 0, err
	}
	return *max, nil
}

func (r *AttemptRepository) FindByNumber(ctx context.Context, studentID uint, examID string, attemptNumber int) (*model.ExamAttempt, error) {
	var attempt model.ExamAttempt
	err := r.DB.WithContext(ctx).
		Where("student_id = ? AND exam_id = ? AND attempt_number = ?", studentID, examID, attemptNumber).
		First(&attempt).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

func (r *AttemptRepository) FindInProgress(ctx context.Context, studentID uint, examID, slotID string) (*model.ExamAttempt, error) {
	query := r.DB.WithContext(ctx).
		Where("student_id = ? AND exam_id = ? AND status = ?", studentID, examID, model.AttemptInProgress)
	if slotID != "" {
		query = query.Where("slot_id = ?", slotID)
	}

	var attempt model.ExamAttempt
	if err := query.Order("attempt_number desc").First(&attempt).Error; err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

func (r *AttemptRepository) FindLatestForExam(ctx context.Context, studentID uint, examID string) (*model.ExamAttempt, error) {
	var attempt model.ExamAttempt
	err := r.DB.WithContext(ctx).
		Where("student_id = ? AND exam_id = ?", studentID, examID).
		Order("attempt_number desc").
		First(&attempt).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

func (r *AttemptRepository) Upsert(ctx context.Context, attempt *model.ExamAttempt) (*model.ExamAttempt, bool, error) {
	attempt.EnsureID()
	res := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "exam_id"}, {Name: "attempt_number"}},
		DoNothing: true,
	}).Create(attempt)
	if res.Error != nil {
		return nil, false, translateError(res.Error)
	}

	created := res.RowsAffected == 1
	if created {
		return attempt, true, nil
	}

	// 并发请求已写入同一键，读回胜出的那条
	stored, err := r.FindByNumber(ctx, attempt.StudentID, attempt.ExamID, attempt.AttemptNumber)
	if err != nil {
		return nil, false, err
	}
	return stored, false, nil
}

func (r *AttemptRepository) inProgress(ctx context.Context, attemptID string) *gorm.DB {
	return r.DB.WithContext(ctx).Model(&model.ExamAttempt{}).
		Where("id = ? AND status = ?", attemptID, model.AttemptInProgress)
}

func stateChanged(res *gorm.DB) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}

func (r *AttemptRepository) SaveAnswers(ctx context.Context, attemptID string, answers map[string]string) error {
	res := r.inProgress(ctx, attemptID).Update("answers", datatypes.NewJSONType(answers))
	return stateChanged(res)
}

func (r *AttemptRepository) Complete(ctx context.Context, attempt *model.ExamAttempt) error {
	res := r.inProgress(ctx, attempt.ID).Updates(map[string]interface{}{
		"status":           model.AttemptCompleted,
		"answers":          attempt.Answers,
		"marked_questions": attempt.MarkedQuestions,
		"score":            attempt.Score,
		"correct_answers":  attempt.CorrectAnswers,
		"wrong_answers":    attempt.WrongAnswers,
		"unattempted":      attempt.Unattempted,
		"total_questions":  attempt.TotalQuestions,
		"percentage":       attempt.Percentage,
		"is_passed":        attempt.IsPassed,
		"is_qualified":     attempt.IsQualified,
		"end_time":         attempt.EndTime,
		"published":        false,
	})
	return stateChanged(res)
}

func (r *AttemptRepository) Abandon(ctx context.Context, attemptID string, at time.Time) error {
	res := r.inProgress(ctx, attemptID).Updates(map[string]interface{}{
		"status":   model.AttemptAbandoned,
		"end_time": at,
	})
	return stateChanged(res)
}

func (r *AttemptRepository) SetCanRetake(ctx context.Context, attemptID string, canRetake bool) error {
	res := r.DB.WithContext(ctx).Model(&model.ExamAttempt{}).
		Where("id = ?", attemptID).
		Update("can_retake", canRetake)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *AttemptRepository) ListPublished(ctx context.Context, studentID uint, examID string) ([]model.ExamAttempt, error) {
	var attempts []model.ExamAttempt
	err := r.DB.WithContext(ctx).
		Where("student_id = ? AND exam_id = ? AND status = ? AND published = ?",
			studentID, examID, model.AttemptCompleted, true).
		Order("attempt_number asc").
		Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) ListPublishedForExam(ctx context.Context, examID string, from, to time.Time) ([]model.ExamAttempt, error) {
	var attempts []model.ExamAttempt
	err := r.DB.WithContext(ctx).
		Where("exam_id = ? AND status = ? AND published = ?", examID, model.AttemptCompleted, true).
		Where("start_time >= ? AND start_time < ?", from, to).
		Order("student_id asc, attempt_number asc").
		Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) SetPublished(ctx context.Context, examID string, from, to time.Time, change PublishChange) (int64, error) {
	updates := map[string]interface{}{
		"published":    change.Publish,
		"published_at": nil,
		"published_by": nil,
	}
	if change.Publish {
		updates["published_at"] = change.At
		updates["published_by"] = change.By
	}

	res := r.DB.WithContext(ctx).Model(&model.ExamAttempt{}).
		Where("exam_id = ? AND status = ? AND published = ?", examID, model.AttemptCompleted, !change.Publish).
		Where("start_time >= ? AND start_time < ?", from, to).
		Updates(updates)
	return res.RowsAffected, res.Error
}
