package repository

import (
	"context"
	"exam_engine_backend/internal/model"
)

type SignalKind string

const (
	SignalCoursePayment SignalKind = "course_payment"
	SignalEnrollment    SignalKind = "enrollment"
	SignalExamPayment   SignalKind = "exam_payment"
	SignalCreditAttempt SignalKind = "credit_attempt"
	SignalLegacyFlag    SignalKind = "legacy_flag"
)

// PaymentSignal 一条付费来源命中记录，Credit 仅在 Kind 为 SignalCreditAttempt 时非空
type PaymentSignal struct {
	Kind     SignalKind
	RecordID string
	Credit   *model.ExamPaymentAttempt
}

// ExamRef 付费查询的键，CourseID 为空表示独立考试
type ExamRef struct {
	ExamID   string
	CourseID string
}

// PaymentLedger 把课程付费、考试付费、选课、额外次数和旧版标记合并为一次查询
type PaymentLedger interface {
	ResolveAccess(ctx context.Context, studentID uint, ref ExamRef) ([]PaymentSignal, error)
}

// Signals 便于按类型取用的查询结果
type Signals []PaymentSignal

func (s Signals) Has(kind SignalKind) bool {
	for _, sig := range s {
		if sig.Kind == kind {
			return true
		}
	}
	return false
}

func (s Signals) Credit() *model.ExamPaymentAttempt {
	for _, sig := range s {
		if sig.Kind == SignalCreditAttempt && sig.Credit != nil {
			return sig.Credit
		}
	}
	return nil
}
