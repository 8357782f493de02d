package model

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptAbandoned  AttemptStatus = "abandoned"
)

// IsTerminal completed/abandoned 之后不再迁移
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptCompleted || s == AttemptAbandoned
}

// swagger:model ExamAttempt
type ExamAttempt struct {
	UUIDBase
	StudentID     uint          `gorm:"uniqueIndex:idx_attempt_key" json:"studentId"`
	ExamID        string        `gorm:"uniqueIndex:idx_attempt_key;type:varchar(36)" json:"examId"`
	AttemptNumber int           `gorm:"uniqueIndex:idx_attempt_key" json:"attemptNumber"`
	Status        AttemptStatus `gorm:"size:20;index;default:'in_progress'" json:"status"`

	Answers         datatypes.JSONType[map[string]string] `gorm:"type:json" json:"answers"`
	MarkedQuestions datatypes.JSONSlice[string]           `gorm:"type:json" json:"markedQuestions"`

	Score          int     `gorm:"default:0" json:"score"`
	CorrectAnswers int     `gorm:"default:0" json:"correctAnswers"`
	WrongAnswers   int     `gorm:"default:0" json:"wrongAnswers"`
	Unattempted    int     `gorm:"default:0" json:"unattempted"`
	TotalQuestions int     `gorm:"default:0" json:"totalQuestions"`
	Percentage     float64 `gorm:"default:0" json:"percentage"`
	IsPassed       bool    `gorm:"default:false" json:"isPassed"`
	IsQualified    bool    `gorm:"default:false" json:"isQualified"`

	// 场次快照：创建时复制，之后修改场次不影响进行中的作答
	SlotID        string    `gorm:"size:64;index" json:"slotId"`
	SlotStartTime string    `gorm:"size:5" json:"slotStartTime"`
	SlotEndTime   string    `gorm:"size:5" json:"slotEndTime"`
	AccessEndsAt  time.Time `json:"accessEndsAt"`

	StartTime time.Time  `gorm:"index" json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`

	CanRetake   bool       `gorm:"default:false" json:"canRetake"`
	Published   bool       `gorm:"default:false;index" json:"published"`
	PublishedAt *time.Time `json:"publishedAt,omitempty"`
	PublishedBy *uint      `json:"publishedBy,omitempty"`

	CreditID *string `gorm:"type:varchar(36)" json:"creditId,omitempty"`
}

func (ExamAttempt) TableName() string {
	return "exam_attempts"
}

// SavedAnswers 返回自动保存答案的副本，nil map 会被替换成空 map
func (a *ExamAttempt) SavedAnswers() map[string]string {
	out := make(map[string]string, len(a.Answers.Data()))
	for k, v := range a.Answers.Data() {
		out[k] = v
	}
	return out
}

func (a *ExamAttempt) SetAnswers(answers map[string]string) {
	a.Answers = datatypes.NewJSONType(answers)
}
