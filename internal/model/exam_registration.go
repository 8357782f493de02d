package model

import "time"

const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// swagger:model ExamRegistration
type ExamRegistration struct {
	UUIDBase
	StudentID     uint      `gorm:"uniqueIndex:idx_registration_student_exam" json:"studentId"`
	ExamID        string    `gorm:"uniqueIndex:idx_registration_student_exam;type:varchar(36)" json:"examId"`
	SlotID        string    `gorm:"size:64" json:"slotId"`
	PaymentStatus string    `gorm:"size:20;default:'pending'" json:"paymentStatus"`
	IsActive      bool      `gorm:"default:true" json:"isActive"`
	RegisteredAt  time.Time `json:"registeredAt"`
}

func (ExamRegistration) TableName() string {
	return "exam_registrations"
}

func (r *ExamRegistration) IsPaid() bool {
	return r.PaymentStatus == PaymentStatusPaid
}
