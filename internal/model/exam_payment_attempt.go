package model

import "time"

// ExamPaymentAttempt 预购的额外作答次数（credit），由支付子系统创建，考试引擎消费
// swagger:model ExamPaymentAttempt
type ExamPaymentAttempt struct {
	UUIDBase
	StudentID     uint       `gorm:"index:idx_credit_student_exam" json:"studentId"`
	ExamID        string     `gorm:"index:idx_credit_student_exam;type:varchar(36)" json:"examId"`
	AttemptNumber int        `json:"attemptNumber"`
	PaymentID     string     `gorm:"type:varchar(64)" json:"paymentId,omitempty"`
	IsUsed        bool       `gorm:"default:false;index" json:"isUsed"`
	ExamAttemptID *string    `gorm:"type:varchar(36)" json:"examAttemptId,omitempty"`
	UsedAt        *time.Time `json:"usedAt,omitempty"`
}

func (ExamPaymentAttempt) TableName() string {
	return "exam_payment_attempts"
}
