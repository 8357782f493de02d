package repository

import (
	"context"
	"exam_engine_backend/internal/model"

	"gorm.io/gorm"
)

type RegistrationRepository struct {
	DB *gorm.DB
}

func NewRegistrationRepository(db *gorm.DB) *RegistrationRepository {
	return &RegistrationRepository{DB: db}
}

func (r *RegistrationRepository) FindByStudentAndExam(ctx context.Context, studentID uint, examID string) (*model.ExamRegistration, error) {
	var reg model.ExamRegistration
	err := r.DB.WithContext(ctx).
		Where("student_id = ? AND exam_id = ?", studentID, examID).
		First(&reg).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &reg, nil
}

func (r *RegistrationRepository) ListByStudent(ctx context.Context, studentID uint) ([]model.ExamRegistration, error) {
	var regs []model.ExamRegistration
	err := r.DB.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("registered_at desc").
		Find(&regs).Error
	return regs, err
}

func (r *RegistrationRepository) Create(ctx context.Context, reg *model.ExamRegistration) error {
	return translateError(r.DB.WithContext(ctx).Create(reg).Error)
}

func (r *RegistrationRepository) Update(ctx context.Context, reg *model.ExamRegistration) error {
	return translateError(r.DB.WithContext(ctx).Save(reg).Error)
}
