package repository

import (
	"context"
	"exam_engine_backend/internal/model"
	"exam_engine_backend/internal/util"

	"gorm.io/gorm"
)

type ExamRepository struct {
	DB *gorm.DB
}

func NewExamRepository(db *gorm.DB) *ExamRepository {
	return &ExamRepository{DB: db}
}

func orderedSlots(db *gorm.DB) *gorm.DB {
	return db.Order("position asc, id asc")
}

func (r *ExamRepository) Create(ctx context.Context, exam *model.Exam) error {
	return translateError(r.DB.WithContext(ctx).Create(exam).Error)
}

func (r *ExamRepository) FindByID(ctx context.Context, id string) (*model.Exam, error) {
	var exam model.Exam
	err := r.DB.WithContext(ctx).Preload("Slots", orderedSlots).First(&exam, "id = ?", id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &exam, nil
}

func (r *ExamRepository) ListActive(ctx context.Context) ([]model.Exam, error) {
	var exams []model.Exam
	err := r.DB.WithContext(ctx).Preload("Slots", orderedSlots).
		Where("is_active = ?", true).
		Order("exam_date asc").
		Find(&exams).Error
	return exams, err
}

func (r *ExamRepository) ListByCategory(ctx context.Context, examType string) ([]model.Exam, error) {
	query := r.DB.WithContext(ctx).Preload("Slots", orderedSlots)
	switch examType {
	case util.ExamTypeTega:
		query = query.Where("is_tega_exam = ?", true)
	case util.ExamTypeCourse:
		query = query.Where("is_tega_exam = ? AND course_id <> ''", false)
	}

	var exams []model.Exam
	err := query.Order("exam_date asc").Find(&exams).Error
	return exams, err
}

func (r *ExamRepository) SetActive(ctx context.Context, examID string, active bool) error {
	return r.DB.WithContext(ctx).Model(&model.Exam{}).
		Where("id = ?", examID).
		Update("is_active", active).Error
}

func (r *ExamRepository) SetSlotActive(ctx context.Context, examID, slotID string, active bool) error {
	return r.DB.WithContext(ctx).Model(&model.ExamSlot{}).
		Where("exam_id = ? AND slot_id = ?", examID, slotID).
		Update("is_active", active).Error
}

func (r *ExamRepository) IncrementSlotRegistered(ctx context.Context, examID, slotID string) error {
	return r.DB.WithContext(ctx).Model(&model.ExamSlot{}).
		Where("exam_id = ? AND slot_id = ?", examID, slotID).
		UpdateColumn("registered_students", gorm.Expr("registered_students + ?", 1)).Error
}

func (r *ExamRepository) IncrementSlotRegisteredWithinCapacity(ctx context.Context, examID, slotID string) (bool, error) {
	res := r.DB.WithContext(ctx).Model(&model.ExamSlot{}).
		Where("exam_id = ? AND slot_id = ?", examID, slotID).
		Where("max_participants <= 0 OR registered_students < max_participants").
		UpdateColumn("registered_students", gorm.Expr("registered_students + ?", 1))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ExamRepository) DecrementSlotRegistered(ctx context.Context, examID, slotID string) error {
	return r.DB.WithContext(ctx).Model(&model.ExamSlot{}).
		Where("exam_id = ? AND slot_id = ? AND registered_students > 0", examID, slotID).
		UpdateColumn("registered_students", gorm.Expr("registered_students - ?", 1)).Error
}

func (r *ExamRepository) Delete(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exam model.Exam
		if err := tx.First(&exam, "id = ?", id).Error; err != nil {
			return translateError(err)
		}
		if err := tx.Where("exam_id = ?", id).Delete(&model.ExamAttempt{}).Error; err != nil {
			return err
		}
		if err := tx.Where("exam_id = ?", id).Delete(&model.ExamRegistration{}).Error; err != nil {
			return err
		}
		if err := tx.Where("exam_id = ?", id).Delete(&model.ExamSlot{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Exam{}, "id = ?", id).Error
	})
}
