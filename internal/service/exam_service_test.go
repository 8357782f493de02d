package service

import (
	"context"
	"testing"
	"time"

	"exam_engine_backend/internal/model"
	"exam_engine_backend/internal/repository"
	"exam_engine_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCreateRequest() CreateExamRequest {
	return CreateExamRequest{
		Title:        "Chemistry Final",
		ExamDate:     "2025-03-10",
		Duration:     60,
		TotalMarks:   20,
		PassingMarks: 40,
		Slots: []SlotRequest{
			{SlotID: "morning", StartTime: "09:00", EndTime: "10:00", MaxParticipants: 30},
			{SlotID: "evening", StartTime: "18:00", EndTime: "19:00"},
		},
	}
}

func TestCreateExam(t *testing.T) {
	f := newFixture(t, at(1, 9, 0))

	exam, err := f.exams.CreateExam(f.ctx, validCreateRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, exam.ID)
	assert.Equal(t, 1, exam.MaxAttempts)
	assert.True(t, exam.IsActive)
	assert.True(t, at(10, 0, 0).Equal(exam.ExamDate))

	stored, err := f.store.Exams().FindByID(f.ctx, exam.ID)
	require.NoError(t, err)
	require.Len(t, stored.Slots, 2)
	assert.Equal(t, "morning", stored.Slots[0].SlotID)
	assert.True(t, stored.Slots[1].IsActive)
}

func TestCreateExamValidation(t *testing.T) {
	f := newFixture(t, at(1, 9, 0))

	tests := []struct {
		name      string
		mutate    func(*CreateExamRequest)
		errorType string
	}{
		{"missing title", func(r *CreateExamRequest) { r.Title = "" }, util.ErrTypeValidation},
		{"no slots", func(r *CreateExamRequest) { r.Slots = nil }, util.ErrTypeValidation},
		{"bad clock", func(r *CreateExamRequest) { r.Slots[0].StartTime = "9am" }, util.ErrTypeInvalidTimeFormat},
		{"inverted slot", func(r *CreateExamRequest) { r.Slots[0].EndTime = "08:00" }, util.ErrTypeInvalidSlotWindow},
		{"duplicate slot", func(r *CreateExamRequest) { r.Slots[1].SlotID = "morning" }, util.ErrTypeValidation},
		{"bad date", func(r *CreateExamRequest) { r.ExamDate = "March 10" }, util.ErrTypeInvalidDate},
		{"zero duration", func(r *CreateExamRequest) { r.Duration = 0 }, util.ErrTypeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(&req)
			_, err := f.exams.CreateExam(f.ctx, req)
			appErr := requireAppError(t, err, tt.errorType)
			assert.Equal(t, util.KindValidation, appErr.Kind)
		})
	}
}

type cacheSpy struct{ invalidated []string }

func (c *cacheSpy) Invalidate(_ context.Context, examID string) {
	c.invalidated = append(c.invalidated, examID)
}

func TestDeleteExamCascades(t *testing.T) {
	f := newFixture(t, at(10, 10, 1))
	spy := &cacheSpy{}
	f.exams.QuestionCache = spy
	exam := f.addExam()
	f.register(1, exam.ID, "s1")
	_, err := f.attempts.StartExam(f.ctx, 1, exam.ID)
	require.NoError(t, err)

	require.NoError(t, f.exams.DeleteExam(f.ctx, exam.ID))
	assert.Equal(t, []string{exam.ID}, spy.invalidated)

	_, err = f.store.Registrations().FindByStudentAndExam(f.ctx, 1, exam.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Empty(t, f.store.AttemptsFor(1, exam.ID))

	err = f.exams.DeleteExam(f.ctx, exam.ID)
	requireAppError(t, err, util.ErrTypeExamNotFound)
}

func TestListAvailable(t *testing.T) {
	f := newFixture(t, at(10, 9, 0))
	exam := f.addExam(func(e *model.Exam) { e.Slots[0].MaxParticipants = 5 })
	yesterday := f.addExam(func(e *model.Exam) { e.ExamDate = examDay.AddDate(0, 0, -1) })

	list, err := f.exams.ListAvailable(f.ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, exam.ID, list[0].Exam.ID)
	require.Len(t, list[0].AvailableSlots, 2)
	assert.Equal(t, 5, list[0].AvailableSlots[0].SeatsLeft)
	assert.Equal(t, -1, list[0].AvailableSlots[1].SeatsLeft)
	assert.True(t, list[0].Access.HasAccess)
	assert.False(t, list[0].IsRegistered)

	// 过期考试被清扫为 inactive
	stored, err := f.store.Exams().FindByID(f.ctx, yesterday.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
}

func TestListAvailableHidesSlotsWithinListingLead(t *testing.T) {
	f := newFixture(t, at(10, 10, 0).Add(-30*time.Second))
	exam := f.addExam()

	list, err := f.exams.ListAvailable(f.ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Len(t, list[0].AvailableSlots, 1)
	assert.Equal(t, "s2", list[0].AvailableSlots[0].SlotID)
	assert.Equal(t, exam.ID, list[0].Exam.ID)
}

func TestListAvailableKeepsRegisteredExamAfterSlotsClose(t *testing.T) {
	f := newFixture(t, at(10, 10, 2))
	exam := f.addExam(func(e *model.Exam) { e.Slots = e.Slots[:1] })
	f.register(1, exam.ID, "s1")

	list, err := f.exams.ListAvailable(f.ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsRegistered)
	assert.Empty(t, list[0].AvailableSlots)

	others, err := f.exams.ListAvailable(f.ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, others)

	// 宽限期结束后场次和考试都被清扫
	f.now = at(10, 10, 6)
	list, err = f.exams.ListAvailable(f.ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, list)
	stored, err := f.store.Exams().FindByID(f.ctx, exam.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)
	assert.False(t, stored.Slots[0].IsActive)
}
