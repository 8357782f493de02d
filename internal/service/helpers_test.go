package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"exam_engine_backend/internal/model"
	"exam_engine_backend/internal/repository/memstore"
	"exam_engine_backend/internal/util"

	"github.com/stretchr/testify/require"
)

var ist = time.FixedZone("IST", 5*3600+1800)

// examDay 考试日期，存储为 UTC 时刻，对应 IST 当天零点
var examDay = time.Date(2025, 3, 10, 0, 0, 0, 0, ist).UTC()

func at(day, hour, minute int) time.Time {
	return time.Date(2025, 3, day, hour, minute, 0, 0, ist)
}

type fixture struct {
	t     *testing.T
	ctx   context.Context
	now   time.Time
	store *memstore.Store

	access        *AccessResolver
	exams         *ExamService
	registrations *RegistrationService
	attempts      *AttemptService
	publication   *PublicationService
}

func newFixture(t *testing.T, now time.Time) *fixture {
	f := &fixture{t: t, ctx: context.Background(), now: now}
	clock := func() time.Time { return f.now }
	f.store = memstore.New().WithClock(clock)

	f.access = NewAccessResolver(f.store.Ledger())
	f.exams = NewExamService(f.store.Exams(), f.store.Registrations(), f.access, nil, ist, clock)
	f.registrations = NewRegistrationService(f.store.Exams(), f.store.Registrations(), f.access, ist, clock, false)
	f.attempts = NewAttemptService(
		f.store.Exams(),
		f.store.Registrations(),
		f.store.Attempts(),
		f.store.Credits(),
		f.store.Questions(),
		f.access,
		ist,
		clock,
	)
	f.publication = NewPublicationService(f.store.Exams(), f.store.Attempts(), nil, ist, clock)
	return f
}

// addExam 默认是免费普通考试，两个场次 10:00-11:00、14:00-15:00
func (f *fixture) addExam(mutate ...func(*model.Exam)) *model.Exam {
	exam := model.Exam{
		Title:           "Physics Midterm",
		ExamDate:        examDay,
		Duration:        60,
		TotalMarks:      10,
		PassingMarks:    50,
		MaxAttempts:     1,
		IsActive:        true,
		QuestionPaperID: "paper-1",
		Slots: []model.ExamSlot{
			{SlotID: "s1", StartTime: "10:00", EndTime: "11:00", IsActive: true, Position: 0},
			{SlotID: "s2", StartTime: "14:00", EndTime: "15:00", IsActive: true, Position: 1},
		},
	}
	for _, m := range mutate {
		m(&exam)
	}
	return f.store.AddExam(exam)
}

// addQuestions 为考试添加 n 道题，答案均为 "A"
func (f *fixture) addQuestions(exam *model.Exam, n int) []model.Question {
	var questions []model.Question
	for i := 0; i < n; i++ {
		q := model.Question{
			UUIDBase:        model.UUIDBase{ID: "q" + string(rune('0'+i))},
			QuestionPaperID: exam.QuestionPaperID,
			Content:         "question",
			CorrectAnswer:   "A",
			Order:           i,
		}
		questions = append(questions, q)
	}
	f.store.AddQuestions(questions...)
	return questions
}

func (f *fixture) register(studentID uint, examID, slotID string) *model.ExamRegistration {
	saved := f.now
	defer func() { f.now = saved }()
	f.now = at(9, 12, 0)
	reg, err := f.registrations.Register(f.ctx, studentID, examID, RegisterRequest{SlotID: slotID})
	require.NoError(f.t, err)
	return reg
}

func requireAppError(t *testing.T, err error, errorType string) *util.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *util.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	require.Equal(t, errorType, appErr.ErrorType)
	return appErr
}
