package model

import "gorm.io/datatypes"

// Question 题库中的题目，由题库子系统维护
// swagger:model Question
type Question struct {
	UUIDBase
	QuestionPaperID string                      `gorm:"type:varchar(36);index" json:"questionPaperId"`
	Content         string                      `gorm:"type:text;not null" json:"content"`
	Options         datatypes.JSONSlice[string] `gorm:"type:json" json:"options,omitempty"`
	CorrectAnswer   string                      `gorm:"type:text" json:"correctAnswer,omitempty"`
	Marks           int                         `gorm:"default:1" json:"marks"`
	NegativeMarks   float64                     `gorm:"default:0" json:"negativeMarks"`
	Order           int                         `gorm:"default:0" json:"order"`
}

func (Question) TableName() string {
	return "questions"
}

// StripAnswer 返回去掉标准答案后的副本，用于下发给学生
func (q Question) StripAnswer() Question {
	q.CorrectAnswer = ""
	return q
}
