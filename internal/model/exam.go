package model

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// flagshipTitleKeyword 旗舰考试标题关键字，只用于发现标题与 IsTegaExam 标记不一致的情况
const flagshipTitleKeyword = "tega"

// swagger:model Exam
type Exam struct {
	UUIDBase
	Title           string                      `gorm:"size:255;not null" json:"title"`
	Description     string                      `gorm:"type:text" json:"description"`
	CourseID        string                      `gorm:"type:varchar(36);index" json:"courseId,omitempty"`
	ExamDate        time.Time                   `gorm:"index" json:"examDate"`
	Duration        int                         `gorm:"default:60" json:"duration"` // Minutes
	TotalMarks      int                         `gorm:"default:0" json:"totalMarks"`
	PassingMarks    int                         `gorm:"default:0" json:"passingMarks"`
	Slots           []ExamSlot                  `gorm:"foreignKey:ExamID;references:ID;constraint:OnDelete:CASCADE" json:"slots"`
	RequiresPayment bool                        `gorm:"default:false" json:"requiresPayment"`
	Price           float64                     `gorm:"default:0" json:"price"`
	MaxAttempts     int                         `gorm:"default:1" json:"maxAttempts"`
	IsTegaExam      bool                        `gorm:"default:false;index" json:"isTegaExam"`
	QuestionPaperID string                      `gorm:"type:varchar(36);index" json:"questionPaperId,omitempty"`
	QuestionIDs     datatypes.JSONSlice[string] `gorm:"type:json" json:"questionIds,omitempty"`
	IsActive        bool                        `gorm:"default:true;index" json:"isActive"`
}

func (Exam) TableName() string {
	return "exams"
}

// Slot 按 slotId 查找场次
func (e *Exam) Slot(slotID string) (*ExamSlot, bool) {
	for i := range e.Slots {
		if e.Slots[i].SlotID == slotID {
			return &e.Slots[i], true
		}
	}
	return nil, false
}

// IsCourseBound 考试是否绑定课程
func (e *Exam) IsCourseBound() bool {
	return e.CourseID != ""
}

// TitleSuggestsFlagship 标题看起来像旗舰考试。不参与任何判定，IsTegaExam 才是权威标记
func (e *Exam) TitleSuggestsFlagship() bool {
	return strings.Contains(strings.ToLower(e.Title), flagshipTitleKeyword)
}

// swagger:model ExamSlot
type ExamSlot struct {
	ID                 uint   `gorm:"primaryKey;autoIncrement" json:"-"`
	ExamID             string `gorm:"type:varchar(36);uniqueIndex:idx_exam_slot" json:"examId"`
	SlotID             string `gorm:"size:64;uniqueIndex:idx_exam_slot" json:"slotId"`
	StartTime          string `gorm:"size:5;not null" json:"startTime"` // HH:MM
	EndTime            string `gorm:"size:5;not null" json:"endTime"`   // HH:MM
	MaxParticipants    int    `gorm:"default:0" json:"maxParticipants"`
	RegisteredStudents int    `gorm:"default:0" json:"registeredStudents"`
	IsActive           bool   `gorm:"default:true" json:"isActive"`
	Position           int    `gorm:"default:0" json:"position"`
}

func (ExamSlot) TableName() string {
	return "exam_slots"
}

// HasCapacity 读-比较判断，不提供原子保证
func (s *ExamSlot) HasCapacity() bool {
	return s.MaxParticipants <= 0 || s.RegisteredStudents < s.MaxParticipants
}
