package model

// 以下付费来源由外部支付/选课子系统写入，考试引擎只读

const (
	PaymentCompleted = "completed"
	EnrollmentActive = "active"
)

type CoursePayment struct {
	UUIDBase
	StudentID uint    `gorm:"index" json:"studentId"`
	CourseID  string  `gorm:"index;type:varchar(36)" json:"courseId"`
	Amount    float64 `json:"amount"`
	Status    string  `gorm:"size:20;index" json:"status"`
}

func (CoursePayment) TableName() string {
	return "course_payments"
}

type ExamPayment struct {
	UUIDBase
	StudentID uint    `gorm:"index" json:"studentId"`
	ExamID    string  `gorm:"index;type:varchar(36)" json:"examId"`
	Amount    float64 `json:"amount"`
	Status    string  `gorm:"size:20;index" json:"status"`
}

func (ExamPayment) TableName() string {
	return "exam_payments"
}

type Enrollment struct {
	UUIDBase
	StudentID uint   `gorm:"index" json:"studentId"`
	CourseID  string `gorm:"index;type:varchar(36)" json:"courseId"`
	Status    string `gorm:"size:20;index" json:"status"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
