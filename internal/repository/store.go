package repository

import (
	"context"
	"errors"
	"exam_engine_backend/internal/model"
	"time"
)

var (
	// ErrNotFound 记录不存在，gorm 与内存实现统一返回该错误
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate 唯一索引冲突
	ErrDuplicate = errors.New("duplicate record")
	// ErrStateChanged 条件更新未命中，记录已不处于预期状态
	ErrStateChanged = errors.New("record state changed")
)

// ExamStore 考试及其场次
type ExamStore interface {
	Create(ctx context.Context, exam *model.Exam) error
	FindByID(ctx context.Context, id string) (*model.Exam, error)
	ListActive(ctx context.Context) ([]model.Exam, error)
	ListByCategory(ctx context.Context, examType string) ([]model.Exam, error)
	SetActive(ctx context.Context, examID string, active bool) error
	SetSlotActive(ctx context.Context, examID, slotID string, active bool) error
	IncrementSlotRegistered(ctx context.Context, examID, slotID string) error
	// IncrementSlotRegisteredWithinCapacity 单条条件更新，名额已满时返回 false
	IncrementSlotRegisteredWithinCapacity(ctx context.Context, examID, slotID string) (bool, error)
	DecrementSlotRegistered(ctx context.Context, examID, slotID string) error
	// Delete 级联删除场次、报名和作答记录
	Delete(ctx context.Context, id string) error
}

type RegistrationStore interface {
	FindByStudentAndExam(ctx context.Context, studentID uint, examID string) (*model.ExamRegistration, error)
	ListByStudent(ctx context.Context, studentID uint) ([]model.ExamRegistration, error)
	Create(ctx context.Context, reg *model.ExamRegistration) error
	Update(ctx context.Context, reg *model.ExamRegistration) error
}

type AttemptStore interface {
	MaxAttemptNumber(ctx context.Context, studentID uint, examID, slotID string) (int, error)
	FindByNumber(ctx context.Context, studentID uint, examID string, attemptNumber int) (*model.ExamAttempt, error)
	// FindInProgress slotID 为空时匹配任意场次
	FindInProgress(ctx context.Context, studentID uint, examID, slotID string) (*model.ExamAttempt, error)
	FindLatestForExam(ctx context.Context, studentID uint, examID string) (*model.ExamAttempt, error)
	// Upsert 以 (studentId, examId, attemptNumber) 为键插入，冲突时不写入并返回已有记录
	Upsert(ctx context.Context, attempt *model.ExamAttempt) (stored *model.ExamAttempt, created bool, err error)
	SaveAnswers(ctx context.Context, attemptID string, answers map[string]string) error
	Complete(ctx context.Context, attempt *model.ExamAttempt) error
	Abandon(ctx context.Context, attemptID string, at time.Time) error
	SetCanRetake(ctx context.Context, attemptID string, canRetake bool) error
	ListPublished(ctx context.Context, studentID uint, examID string) ([]model.ExamAttempt, error)
	ListPublishedForExam(ctx context.Context, examID string, from, to time.Time) ([]model.ExamAttempt, error)
	// SetPublished 只修改 [from, to) 内开始、已完成且发布状态与目标相反的记录
	SetPublished(ctx context.Context, examID string, from, to time.Time, change PublishChange) (int64, error)
}

type PublishChange struct {
	Publish bool
	By      uint
	At      time.Time
}

type CreditStore interface {
	FindUnused(ctx context.Context, studentID uint, examID string) (*model.ExamPaymentAttempt, error)
	MarkUsed(ctx context.Context, creditID, attemptID string, at time.Time) error
}

// QuestionBank 题库是外部协作方，这里只读取考试对应的题目
type QuestionBank interface {
	QuestionsForExam(ctx context.Context, exam *model.Exam) ([]model.Question, error)
}
