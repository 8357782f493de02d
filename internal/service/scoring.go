package service

import "exam_engine_backend/internal/model"

// QualifyingPercentage 资格线，与及格线相互独立
const QualifyingPercentage = 50.0

type ScoreResult struct {
	Score          int     `json:"score"`
	CorrectAnswers int     `json:"correctAnswers"`
	WrongAnswers   int     `json:"wrongAnswers"`
	Unattempted    int     `json:"unattempted"`
	TotalQuestions int     `json:"totalQuestions"`
	Percentage     float64 `json:"percentage"`
	IsPassed       bool    `json:"isPassed"`
	IsQualified    bool    `json:"isQualified"`
}

// MergeAnswers 提交的答案覆盖自动保存的答案
func MergeAnswers(saved, submitted map[string]string) map[string]string {
	merged := make(map[string]string, len(saved)+len(submitted))
	for k, v := range saved {
		merged[k] = v
	}
	for k, v := range submitted {
		merged[k] = v
	}
	return merged
}

// ScoreAnswers 每题 1 分，精确字符串比较；百分比相对 totalMarks，不做取整
func ScoreAnswers(questions []model.Question, answers map[string]string, totalMarks, passingMarks int) ScoreResult {
	res := ScoreResult{TotalQuestions: len(questions)}
	answered := 0
	for _, q := range questions {
		given, ok := answers[q.ID]
		if !ok || given == "" {
			continue
		}
		answered++
		if given == q.CorrectAnswer {
			res.CorrectAnswers++
		} else {
			res.WrongAnswers++
		}
	}
	res.Unattempted = res.TotalQuestions - answered
	res.Score = res.CorrectAnswers

	if totalMarks > 0 {
		res.Percentage = float64(res.Score) / float64(totalMarks) * 100
	}
	// passingMarks 按百分比解释
	res.IsPassed = res.Percentage >= float64(passingMarks)
	res.IsQualified = res.Percentage >= QualifyingPercentage
	return res
}

func (r ScoreResult) applyTo(attempt *model.ExamAttempt) {
	attempt.Score = r.Score
	attempt.CorrectAnswers = r.CorrectAnswers
	attempt.WrongAnswers = r.WrongAnswers
	attempt.Unattempted = r.Unattempted
	attempt.TotalQuestions = r.TotalQuestions
	attempt.Percentage = r.Percentage
	attempt.IsPassed = r.IsPassed
	attempt.IsQualified = r.IsQualified
}
