package service

import (
	"context"
	"errors"
	"exam_engine_backend/internal/model"
	"exam_engine_backend/internal/repository"
	"exam_engine_backend/internal/util"
	"exam_engine_backend/pkg/logger"
	"exam_engine_backend/pkg/monitoring"
	"exam_engine_backend/pkg/tracing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type RegistrationService struct {
	Exams         repository.ExamStore
	Registrations repository.RegistrationStore
	Access        *AccessResolver
	Location      *time.Location
	Now           Clock
	// StrictCapacity 使用带上限的条件自增代替读-比较-写
	StrictCapacity bool
}

func NewRegistrationService(
	exams repository.ExamStore,
	registrations repository.RegistrationStore,
	access *AccessResolver,
	loc *time.Location,
	now Clock,
	strictCapacity bool,
) *RegistrationService {
	return &RegistrationService{
		Exams:          exams,
		Registrations:  registrations,
		Access:         access,
		Location:       orLocal(loc),
		Now:            orNow(now),
		StrictCapacity: strictCapacity,
	}
}

type RegisterRequest struct {
	SlotID string `json:"slotId"`
}

func (s *RegistrationService) Register(ctx context.Context, studentID uint, examID string, req RegisterRequest) (reg *model.ExamRegistration, err error) {
	ctx, finish := tracing.StartSpan(ctx, "RegistrationService.Register",
		attribute.String("examId", examID), attribute.String("slotId", req.SlotID))
	defer finish(&err)

	if req.SlotID == "" {
		return nil, util.ErrSlotIDRequired
	}
	exam, err := findExam(ctx, s.Exams, examID)
	if err != nil {
		return nil, err
	}
	slot, ok := exam.Slot(req.SlotID)
	if !ok {
		return nil, util.ErrSlotNotFound.WithDetail("slotId", req.SlotID)
	}
	if !exam.IsActive {
		return nil, deny("register", util.ErrExamInactive, studentID, examID)
	}
	if !slot.IsActive {
		return nil, deny("register", util.ErrSlotInactive.WithDetail("slotId", slot.SlotID), studentID, examID)
	}

	existing, err := s.Registrations.FindByStudentAndExam(ctx, studentID, examID)
	switch {
	case err == nil && existing.IsActive:
		return nil, util.ErrAlreadyRegistered.WithDetail("slotId", existing.SlotID)
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, util.NewInternal(err)
	}

	window, err := ResolveSlotWindow(exam, slot, s.Location)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	if cutoff := window.RegistrationCutoff(); !now.Before(cutoff) {
		return nil, deny("register", util.ErrRegistrationClosed.
			WithDetail("registrationCutoff", cutoff).
			WithDetail("startTime", window.SlotStart), studentID, examID)
	}

	decision, err := s.Access.Resolve(ctx, studentID, exam)
	if err != nil {
		return nil, err
	}
	if !decision.HasAccess {
		return nil, deny("register", paymentRequired(exam), studentID, examID)
	}

	reg = existing
	if reg == nil {
		reg = &model.ExamRegistration{StudentID: studentID, ExamID: examID}
	}
	reg.SlotID = slot.SlotID
	reg.IsActive = true
	reg.RegisteredAt = now
	reg.PaymentStatus = model.PaymentStatusPending
	if decision.Paid() {
		reg.PaymentStatus = model.PaymentStatusPaid
	}

	if err := s.reserveSeat(ctx, exam, slot, reg, existing != nil); err != nil {
		return nil, err
	}

	monitoring.Registrations.WithLabelValues(reg.PaymentStatus).Inc()
	logger.Log.Info("考试报名成功",
		zap.Uint("studentId", studentID),
		zap.String("examId", examID),
		zap.String("slotId", slot.SlotID),
		zap.String("accessSource", string(decision.Source)),
	)
	return reg, nil
}

// reserveSeat 默认沿用读-比较-写，并发时可能短暂超额；严格模式先做条件自增再落库
func (s *RegistrationService) reserveSeat(ctx context.Context, exam *model.Exam, slot *model.ExamSlot, reg *model.ExamRegistration, reactivate bool) error {
	slotFull := func() error {
		return deny("register", util.ErrSlotFull.
			WithDetail("slotId", slot.SlotID).
			WithDetail("maxParticipants", slot.MaxParticipants), reg.StudentID, exam.ID)
	}

	if s.StrictCapacity {
		ok, err := s.Exams.IncrementSlotRegisteredWithinCapacity(ctx, exam.ID, slot.SlotID)
		if err != nil {
			return util.NewInternal(err)
		}
		if !ok {
			return slotFull()
		}
		if err := s.save(ctx, reg, reactivate); err != nil {
			if derr := s.Exams.DecrementSlotRegistered(ctx, exam.ID, slot.SlotID); derr != nil {
				logger.Log.Error("报名失败后回滚名额失败", zap.String("examId", exam.ID), zap.Error(derr))
			}
			return err
		}
		return nil
	}

	if !slot.HasCapacity() {
		return slotFull()
	}
	if err := s.save(ctx, reg, reactivate); err != nil {
		return err
	}
	if err := s.Exams.IncrementSlotRegistered(ctx, exam.ID, slot.SlotID); err != nil {
		logger.Log.Error("场次报名人数更新失败", zap.String("examId", exam.ID), zap.String("slotId", slot.SlotID), zap.Error(err))
	}
	return nil
}

func (s *RegistrationService) save(ctx context.Context, reg *model.ExamRegistration, reactivate bool) error {
	var err error
	if reactivate {
		err = s.Registrations.Update(ctx, reg)
	} else {
		err = s.Registrations.Create(ctx, reg)
	}
	if errors.Is(err, repository.ErrDuplicate) {
		return util.ErrAlreadyRegistered
	}
	if err != nil {
		return util.NewInternal(err)
	}
	return nil
}
