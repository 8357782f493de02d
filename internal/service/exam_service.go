package service

import (
	"context"
	"errors"
	"exam_engine_backend/internal/model"
	"exam_engine_backend/internal/repository"
	"exam_engine_backend/internal/util"
	"exam_engine_backend/pkg/logger"
	"time"

	"go.uber.org/zap"
)

// QuestionCache 题目缓存，考试删除时清理
type QuestionCache interface {
	Invalidate(ctx context.Context, examID string)
}

type ExamService struct {
	Exams         repository.ExamStore
	Registrations repository.RegistrationStore
	Access        *AccessResolver
	QuestionCache QuestionCache
	Location      *time.Location
	Now           Clock
}

func NewExamService(
	exams repository.ExamStore,
	registrations repository.RegistrationStore,
	access *AccessResolver,
	cache QuestionCache,
	loc *time.Location,
	now Clock,
) *ExamService {
	return &ExamService{
		Exams:         exams,
		Registrations: registrations,
		Access:        access,
		QuestionCache: cache,
		Location:      orLocal(loc),
		Now:           orNow(now),
	}
}

type SlotRequest struct {
	SlotID          string `json:"slotId" validate:"required,max=64"`
	StartTime       string `json:"startTime" validate:"required,hhmm"`
	EndTime         string `json:"endTime" validate:"required,hhmm"`
	MaxParticipants int    `json:"maxParticipants" validate:"gte=0"`
}

type CreateExamRequest struct {
	Title           string        `json:"title" validate:"required,max=255"`
	Description     string        `json:"description"`
	CourseID        string        `json:"courseId" validate:"max=36"`
	ExamDate        string        `json:"examDate" validate:"required"`
	Duration        int           `json:"duration" validate:"required,gt=0"`
	TotalMarks      int           `json:"totalMarks" validate:"gte=0"`
	PassingMarks    int           `json:"passingMarks" validate:"gte=0,lte=100"`
	Slots           []SlotRequest `json:"slots" validate:"required,min=1,dive"`
	RequiresPayment bool          `json:"requiresPayment"`
	Price           float64       `json:"price" validate:"gte=0"`
	MaxAttempts     int           `json:"maxAttempts" validate:"omitempty,gte=1"`
	IsTegaExam      bool          `json:"isTegaExam"`
	QuestionPaperID string        `json:"questionPaperId" validate:"max=36"`
	QuestionIDs     []string      `json:"questionIds"`
}

func (s *ExamService) CreateExam(ctx context.Context, req CreateExamRequest) (*model.Exam, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	examDate, err := time.ParseInLocation(util.DateFormat, req.ExamDate, s.Location)
	if err != nil {
		return nil, util.NewValidationError(util.ErrTypeInvalidDate, "examDate must be in YYYY-MM-DD format").
			WithDetail("value", req.ExamDate)
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	exam := &model.Exam{
		Title:           req.Title,
		Description:     req.Description,
		CourseID:        req.CourseID,
		ExamDate:        examDate,
		Duration:        req.Duration,
		TotalMarks:      req.TotalMarks,
		PassingMarks:    req.PassingMarks,
		RequiresPayment: req.RequiresPayment,
		Price:           req.Price,
		MaxAttempts:     maxAttempts,
		IsTegaExam:      req.IsTegaExam,
		QuestionPaperID: req.QuestionPaperID,
		QuestionIDs:     req.QuestionIDs,
		IsActive:        true,
	}

	seen := make(map[string]bool, len(req.Slots))
	for i, sr := range req.Slots {
		if seen[sr.SlotID] {
			return nil, util.NewValidationError(util.ErrTypeValidation, "duplicate slotId").WithDetail("slotId", sr.SlotID)
		}
		seen[sr.SlotID] = true
		exam.Slots = append(exam.Slots, model.ExamSlot{
			SlotID:          sr.SlotID,
			StartTime:       sr.StartTime,
			EndTime:         sr.EndTime,
			MaxParticipants: sr.MaxParticipants,
			IsActive:        true,
			Position:        i,
		})
		if _, err := ResolveSlotWindow(exam, &exam.Slots[i], s.Location); err != nil {
			return nil, err
		}
	}
	warnFlagshipTitle(exam)

	if err := s.Exams.Create(ctx, exam); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, util.NewConflict(util.ErrTypeValidation, "exam or slot already exists")
		}
		return nil, util.NewInternal(err)
	}
	logger.Log.Info("考试已创建", zap.String("examId", exam.ID), zap.Int("slots", len(exam.Slots)))
	return exam, nil
}

// DeleteExam 级联删除报名和作答
func (s *ExamService) DeleteExam(ctx context.Context, examID string) error {
	if _, err := findExam(ctx, s.Exams, examID); err != nil {
		return err
	}
	if err := s.Exams.Delete(ctx, examID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return util.ErrExamNotFound
		}
		return util.NewInternal(err)
	}
	if s.QuestionCache != nil {
		s.QuestionCache.Invalidate(ctx, examID)
	}
	logger.Log.Info("考试已删除", zap.String("examId", examID))
	return nil
}

type AvailableSlot struct {
	model.ExamSlot
	StartsAt           time.Time `json:"startsAt"`
	EndsAt             time.Time `json:"endsAt"`
	RegistrationCutoff time.Time `json:"registrationCutoff"`
	// SeatsLeft -1 表示不限
	SeatsLeft int `json:"seatsLeft"`
}

type AvailableExam struct {
	Exam           *model.Exam             `json:"exam"`
	AvailableSlots []AvailableSlot         `json:"availableSlots"`
	IsRegistered   bool                    `json:"isRegistered"`
	Registration   *model.ExamRegistration `json:"registration,omitempty"`
	Access         AccessDecision          `json:"access"`
}

// ListAvailable 先做一次 isActive 清扫，再列出仍可报名或已报名的考试
func (s *ExamService) ListAvailable(ctx context.Context, studentID uint) ([]AvailableExam, error) {
	exams, err := s.Exams.ListActive(ctx)
	if err != nil {
		return nil, util.NewInternal(err)
	}
	regs, err := s.Registrations.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, util.NewInternal(err)
	}
	active := make(map[string]*model.ExamRegistration, len(regs))
	for i := range regs {
		if regs[i].IsActive {
			active[regs[i].ExamID] = &regs[i]
		}
	}

	now := s.Now()
	out := make([]AvailableExam, 0, len(exams))
	for i := range exams {
		exam := &exams[i]
		if !s.sweep(ctx, exam, now) {
			continue
		}

		var slots []AvailableSlot
		for j := range exam.Slots {
			slot := exam.Slots[j]
			if !slot.IsActive {
				continue
			}
			w, err := ResolveSlotWindow(exam, &slot, s.Location)
			if err != nil || !w.OpenForListing(now) {
				continue
			}
			seats := -1
			if slot.MaxParticipants > 0 {
				seats = slot.MaxParticipants - slot.RegisteredStudents
				if seats < 0 {
					seats = 0
				}
			}
			slots = append(slots, AvailableSlot{
				ExamSlot:           slot,
				StartsAt:           w.SlotStart,
				EndsAt:             w.SlotEnd,
				RegistrationCutoff: w.RegistrationCutoff(),
				SeatsLeft:          seats,
			})
		}

		reg := active[exam.ID]
		if len(slots) == 0 && reg == nil {
			continue
		}
		decision, err := s.Access.Resolve(ctx, studentID, exam)
		if err != nil {
			return nil, err
		}
		if slots == nil {
			slots = []AvailableSlot{}
		}
		out = append(out, AvailableExam{
			Exam:           exam,
			AvailableSlots: slots,
			IsRegistered:   reg != nil,
			Registration:   reg,
			Access:         decision,
		})
	}
	return out, nil
}

// sweep 重新计算并持久化 isActive，写库失败不影响本次读取
func (s *ExamService) sweep(ctx context.Context, exam *model.Exam, now time.Time) bool {
	res := SweepExam(exam, now, s.Location)
	for _, slotID := range res.InvalidSlots {
		logger.Log.Warn("场次时间无效，跳过", zap.String("examId", exam.ID), zap.String("slotId", slotID))
	}
	for _, slotID := range res.ExpiredSlots {
		if err := s.Exams.SetSlotActive(ctx, exam.ID, slotID, false); err != nil {
			logger.Log.Error("场次状态更新失败", zap.String("examId", exam.ID), zap.String("slotId", slotID), zap.Error(err))
		}
		if slot, ok := exam.Slot(slotID); ok {
			slot.IsActive = false
		}
	}
	if !res.ExamActive {
		if err := s.Exams.SetActive(ctx, exam.ID, false); err != nil {
			logger.Log.Error("考试状态更新失败", zap.String("examId", exam.ID), zap.Error(err))
		}
		exam.IsActive = false
	}
	return res.ExamActive
}
