package service

import (
	"testing"

	"exam_engine_backend/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestMergeAnswers(t *testing.T) {
	assert.Equal(t,
		map[string]string{"q1": "A", "q2": "B"},
		MergeAnswers(map[string]string{"q1": "A"}, map[string]string{"q2": "B"}))

	assert.Equal(t,
		map[string]string{"q1": "C"},
		MergeAnswers(map[string]string{"q1": "A"}, map[string]string{"q1": "C"}))

	assert.Empty(t, MergeAnswers(nil, nil))
}

func TestMergeAnswersDoesNotMutateInputs(t *testing.T) {
	saved := map[string]string{"q1": "A"}
	MergeAnswers(saved, map[string]string{"q1": "B"})
	assert.Equal(t, "A", saved["q1"])
}

func questionSet(n int) []model.Question {
	qs := make([]model.Question, n)
	for i := range qs {
		qs[i] = model.Question{UUIDBase: model.UUIDBase{ID: string(rune('a' + i))}, CorrectAnswer: "A"}
	}
	return qs
}

func TestScoreAnswersPassScenario(t *testing.T) {
	qs := questionSet(10)
	answers := map[string]string{}
	for i := 0; i < 6; i++ {
		answers[qs[i].ID] = "A"
	}
	answers[qs[6].ID] = "B"
	answers[qs[7].ID] = ""

	res := ScoreAnswers(qs, answers, 10, 50)
	assert.Equal(t, 6, res.Score)
	assert.Equal(t, 6, res.CorrectAnswers)
	assert.Equal(t, 1, res.WrongAnswers)
	assert.Equal(t, 3, res.Unattempted)
	assert.Equal(t, 10, res.TotalQuestions)
	assert.InDelta(t, 60.0, res.Percentage, 1e-9)
	assert.True(t, res.IsPassed)
	assert.True(t, res.IsQualified)
}

func TestScoreAnswersThresholds(t *testing.T) {
	qs := questionSet(10)
	answers := map[string]string{}
	for i := 0; i < 4; i++ {
		answers[qs[i].ID] = "A"
	}

	res := ScoreAnswers(qs, answers, 10, 40)
	assert.True(t, res.IsPassed)
	assert.False(t, res.IsQualified)

	res = ScoreAnswers(qs, answers, 10, 41)
	assert.False(t, res.IsPassed)
}

func TestScoreAnswersIgnoresUnknownQuestionsAndZeroTotal(t *testing.T) {
	qs := questionSet(2)
	res := ScoreAnswers(qs, map[string]string{"zz": "A", qs[0].ID: "A"}, 0, 0)
	assert.Equal(t, 1, res.Score)
	assert.Equal(t, 1, res.Unattempted)
	assert.Zero(t, res.Percentage)
	assert.False(t, res.IsQualified)
}

func TestScoreAnswersIsCaseSensitive(t *testing.T) {
	qs := questionSet(1)
	res := ScoreAnswers(qs, map[string]string{qs[0].ID: "a"}, 1, 0)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, 1, res.WrongAnswers)
}
