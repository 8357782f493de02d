package repository

import (
	"context"
	"errors"
	"exam_engine_backend/internal/model"

	"gorm.io/gorm"
)

// paymentSignalsSQL 一次往返取回所有付费来源；课程条件对独立考试不会命中
const paymentSignalsSQL = `
SELECT 'course_payment' AS kind, id AS record_id FROM course_payments
	WHERE student_id = ? AND course_id = ? AND course_id <> '' AND status = ?
UNION ALL
SELECT 'enrollment' AS kind, id AS record_id FROM enrollments
	WHERE student_id = ? AND course_id = ? AND course_id <> '' AND status = ?
UNION ALL
SELECT 'exam_payment' AS kind, id AS record_id FROM exam_payments
	WHERE student_id = ? AND exam_id = ? AND status = ?
UNION ALL
SELECT 'legacy_flag' AS kind, '' AS record_id FROM users
	WHERE id = ? AND has_paid_platform_exam = ? AND deleted_at IS NULL`

type signalRow struct {
	Kind     string
	RecordID string
}

type PaymentLedgerRepository struct {
	DB      *gorm.DB
	Credits *CreditRepository
}

func NewPaymentLedgerRepository(db *gorm.DB) *PaymentLedgerRepository {
	return &PaymentLedgerRepository{DB: db, Credits: NewCreditRepository(db)}
}

func (r *PaymentLedgerRepository) ResolveAccess(ctx context.Context, studentID uint, ref ExamRef) ([]PaymentSignal, error) {
	var rows []signalRow
	err := r.DB.WithContext(ctx).Raw(paymentSignalsSQL,
		studentID, ref.CourseID, model.PaymentCompleted,
		studentID, ref.CourseID, model.EnrollmentActive,
		studentID, ref.ExamID, model.PaymentCompleted,
		studentID, true,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	signals := make([]PaymentSignal, 0, len(rows)+1)
	for _, row := range rows {
		signals = append(signals, PaymentSignal{Kind: SignalKind(row.Kind), RecordID: row.RecordID})
	}

	credit, err := r.Credits.FindUnused(ctx, studentID, ref.ExamID)
	switch {
	case err == nil:
		signals = append(signals, PaymentSignal{Kind: SignalCreditAttempt, RecordID: credit.ID, Credit: credit})
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}
	return signals, nil
}
