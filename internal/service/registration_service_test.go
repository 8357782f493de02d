package service

import (
	"testing"
	"time"

	"exam_engine_backend/internal/model"
	"exam_engine_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFreeExam(t *testing.T) {
	f := newFixture(t, at(9, 12, 0))
	exam := f.addExam()

	reg, err := f.registrations.Register(f.ctx, 1, exam.ID, RegisterRequest{SlotID: "s1"})
	require.NoError(t, err)
	assert.Equal(t, "s1", reg.SlotID)
	assert.True(t, reg.IsActive)
	assert.Equal(t, model.PaymentStatusPending, reg.PaymentStatus)

	stored, err := f.store.Exams().FindByID(f.ctx, exam.ID)
	require.NoError(t, err)
	slot, _ := stored.Slot("s1")
	assert.Equal(t, 1, slot.RegisteredStudents)
}

func TestRegisterPaidExamMarksRegistrationPaid(t *testing.T) {
	f := newFixture(t, at(9, 12, 0))
	exam := f.addExam(paidExam)
	f.store.AddExamPayment(model.ExamPayment{StudentID: 1, ExamID: exam.ID, Status: model.PaymentCompleted})

	reg, err := f.registrations.Register(f.ctx, 1, exam.ID, RegisterRequest{SlotID: "s2"})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, reg.PaymentStatus)
}

func TestRegisterTwiceConflicts(t *testing.T) {
	f := newFixture(t, at(9, 12, 0))
	exam := f.addExam()

	_, err := f.registrations.Register(f.ctx, 1, exam.ID, RegisterRequest{SlotID: "s1"})
	require.NoError(t, err)

	_, err = f.registrations.Register(f.ctx, 1, exam.ID, RegisterRequest{SlotID: "s2"})
	appErr := requireAppError(t, err, util.ErrTypeAlreadyRegistered)
	assert.Equal(t, util.KindConflict, appErr.Kind)
}

func TestRegisterReactivatesInactiveRegistration(t *testing.T) {
	f := newFixture(t, at(9, 12, 0))
	exam := f.addExam()

	reg, err := f.registrations.Register(f.ctx, 1, exam.ID, RegisterRequest{SlotID: "s1"})
	require.NoError(t, err)
	reg.IsActive = false
	require.NoError(t, f.store.Registrations().Update(f.ctx, reg))

	again, err := f.registrations.Register(f.ctx, 1, exam.ID, RegisterRequest{SlotID: "s2"})
	require.NoError(t, err)
	assert.Equal(t, reg.ID, again.ID)
	assert.Equal(t, "s2", again.SlotID)
	assert.True(t, again.IsActive)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t, at(9, 12, 0))
	exam := f.addExam()

	_, err := f.registrations.Register(f.ctx, 1, exam.ID, RegisterRequest{})
	requireAppError(t, err, util.ErrTypeSlotIDRequired)

	_, err = f.registrations.Register(f.ctx, 1, "missing", RegisterRequest{SlotID: "s1"})
	requireAppError(t, err, util.ErrTypeExamNotFound)

	_, err = f.registrations.Register(f.ctx, 1, exam.ID, RegisterRequest{SlotID: "s9"})
	requireAppError(t, err, util.ErrTypeSlotNotFound)
}

func TestRegisterInactiveExamOrSlot(t *testing.T) {
	f := newFixture(t, at(9, 12, 0))
	inactive := f.addExam(func(e *model.Exam) { e.IsActive = false })
	_, err := f.registrations.Register(f.ctx, 1, inactive.ID, RegisterRequest{SlotID: "s1"})
	requireAppError(t, err, util.ErrTypeExamInactive)

	exam := f.addExam(func(e *model.Exam) { e.Slots[0].IsActive = false })
	_, err = f.registrations.Register(f.ctx, 1, exam.ID, RegisterRequest{SlotID: "s1"})
	requireAppError(t, err, util.ErrTypeSlotInactive)
}

func TestRegisterCutoff(t *testing.T) {
	f := newFixture(t, at(10, 9, 55).Add(-time.Second))
	exam := f.addExam()

	_, err := f.registrations.Register(f.ctx, 1, exam.ID, RegisterRequest{SlotID: "s1"})
	require.NoError(t, err)

	f.now = at(10, 9, 55)
	_, err = f.registrations.Register(f.ctx, 2, exam.ID, RegisterRequest{SlotID: "s1"})
	appErr := requireAppError(t, err, util.ErrTypeRegistrationClosed)
	assert.Equal(t, util.KindAccessDenied, appErr.Kind)
	assert.True(t, at(10, 9, 55).Equal(appErr.Details["registrationCutoff"].(time.Time)))
}

func TestRegisterRequiresPayment(t *testing.T) {
	f := newFixture(t, at(9, 12, 0))
	exam := f.addExam(paidExam)

	_, err := f.registrations.Register(f.ctx, 1, exam.ID, RegisterRequest{SlotID: "s1"})
	appErr := requireAppError(t, err, util.ErrTypePaymentRequired)
	assert.Equal(t, 499.0, appErr.Details["requiredPrice"])
}

func TestRegisterSlotFull(t *testing.T) {
	for _, strict := range []bool{false, true} {
		f := newFixture(t, at(9, 12, 0))
		f.registrations.StrictCapacity = strict
		exam := f.addExam(func(e *model.Exam) { e.Slots[0].MaxParticipants = 1 })

		_, err := f.registrations.Register(f.ctx, 1, exam.ID, RegisterRequest{SlotID: "s1"})
		require.NoError(t, err)

		_, err = f.registrations.Register(f.ctx, 2, exam.ID, RegisterRequest{SlotID: "s1"})
		requireAppError(t, err, util.ErrTypeSlotFull)

		stored, err := f.store.Exams().FindByID(f.ctx, exam.ID)
		require.NoError(t, err)
		slot, _ := stored.Slot("s1")
		assert.Equal(t, 1, slot.RegisteredStudents, "strict=%v", strict)
	}
}
