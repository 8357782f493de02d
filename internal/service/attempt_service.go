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
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type AttemptService struct {
	Exams         repository.ExamStore
	Registrations repository.RegistrationStore
	Attempts      repository.AttemptStore
	Credits       repository.CreditStore
	Questions     repository.QuestionBank
	Access        *AccessResolver
	Location      *time.Location
	Now           Clock
}

func NewAttemptService(
	exams repository.ExamStore,
	registrations repository.RegistrationStore,
	attempts repository.AttemptStore,
	credits repository.CreditStore,
	questions repository.QuestionBank,
	access *AccessResolver,
	loc *time.Location,
	now Clock,
) *AttemptService {
	return &AttemptService{
		Exams:         exams,
		Registrations: registrations,
		Attempts:      attempts,
		Credits:       credits,
		Questions:     questions,
		Access:        access,
		Location:      orLocal(loc),
		Now:           orNow(now),
	}
}

type StartExamResult struct {
	Exam            *model.Exam        `json:"exam"`
	Questions       []model.Question   `json:"questions"`
	ExamAttempt     *model.ExamAttempt `json:"examAttempt"`
	SavedAnswers    map[string]string  `json:"savedAnswers"`
	MarkedQuestions []string           `json:"markedQuestions"`
	Resumed         bool               `json:"resumed"`
}

// attemptPermit 决定新作答的来源
type attemptPermit int

const (
	permitQuota attemptPermit = iota
	permitCredit
	permitRetake
)

func (p attemptPermit) String() string {
	switch p {
	case permitCredit:
		return "credit"
	case permitRetake:
		return "retake"
	}
	return "quota"
}

func (s *AttemptService) StartExam(ctx context.Context, studentID uint, examID string) (res *StartExamResult, err error) {
	ctx, finish := tracing.StartSpan(ctx, "AttemptService.StartExam",
		attribute.String("examId", examID), attribute.Int64("studentId", int64(studentID)))
	defer finish(&err)

	exam, err := findExam(ctx, s.Exams, examID)
	if err != nil {
		return nil, err
	}

	reg, err := s.Registrations.FindByStudentAndExam(ctx, studentID, examID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !reg.IsActive) {
		return nil, deny("start", util.ErrNotRegistered, studentID, examID)
	}
	if err != nil {
		return nil, util.NewInternal(err)
	}
	slot, ok := exam.Slot(reg.SlotID)
	if !ok {
		return nil, util.ErrSlotNotFound.WithDetail("slotId", reg.SlotID)
	}

	decision, err := s.Access.ResolveForStart(ctx, studentID, exam, reg)
	if err != nil {
		return nil, err
	}
	if !decision.HasAccess {
		return nil, deny("start", paymentRequired(exam), studentID, examID)
	}

	window, err := ResolveSlotWindow(exam, slot, s.Location)
	if err != nil {
		return nil, err
	}
	warnFlagshipTitle(exam)
	now := s.Now()
	if window.NotStarted(now) {
		return nil, deny("start", util.ErrExamNotStarted.
			WithDetail("canAccess", false).
			WithDetail("startTime", window.SlotStart), studentID, examID)
	}
	if window.Ended(now) {
		return nil, deny("start", util.ErrExamEnded.
			WithDetail("canAccess", false).
			WithDetail("endTime", window.ExamEnd), studentID, examID)
	}

	attempt, resumed, err := s.resumeOrAllocate(ctx, exam, slot, window, decision, studentID, now)
	if err != nil {
		return nil, err
	}

	questions, err := s.Questions.QuestionsForExam(ctx, exam)
	if err != nil {
		return nil, util.NewInternal(err)
	}
	stripped := make([]model.Question, len(questions))
	for i, q := range questions {
		stripped[i] = q.StripAnswer()
	}

	marked := []string(attempt.MarkedQuestions)
	if marked == nil {
		marked = []string{}
	}
	return &StartExamResult{
		Exam:            exam,
		Questions:       stripped,
		ExamAttempt:     attempt,
		SavedAnswers:    attempt.SavedAnswers(),
		MarkedQuestions: marked,
		Resumed:         resumed,
	}, nil
}

func (s *AttemptService) resumeOrAllocate(
	ctx context.Context,
	exam *model.Exam,
	slot *model.ExamSlot,
	window SlotWindow,
	decision AccessDecision,
	studentID uint,
	now time.Time,
) (*model.ExamAttempt, bool, error) {
	current, err := s.Attempts.FindInProgress(ctx, studentID, exam.ID, slot.SlotID)
	switch {
	case err == nil:
		if current.AccessEndsAt.IsZero() || !now.After(current.AccessEndsAt) {
			monitoring.AttemptsStarted.WithLabelValues("resumed").Inc()
			return current, true, nil
		}
		// 快照窗口已关闭的进行中作答不再恢复
		if err := s.Attempts.Abandon(ctx, current.ID, now); err != nil && !errors.Is(err, repository.ErrStateChanged) {
			return nil, false, util.NewInternal(err)
		}
		monitoring.AttemptsStarted.WithLabelValues("abandoned").Inc()
		logger.Log.Info("进行中的作答已超出窗口，标记为放弃",
			zap.String("attemptId", current.ID),
			zap.Uint("studentId", studentID),
			zap.String("examId", exam.ID),
		)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, false, util.NewInternal(err)
	}

	maxNumber, err := s.Attempts.MaxAttemptNumber(ctx, studentID, exam.ID, slot.SlotID)
	if err != nil {
		return nil, false, util.NewInternal(err)
	}

	permit, latest, err := s.permitNewAttempt(ctx, exam, decision, studentID, maxNumber)
	if err != nil {
		return nil, false, err
	}

	next := maxNumber + 1
	var credit *model.ExamPaymentAttempt
	if permit == permitCredit {
		credit = decision.Credit
		if credit.AttemptNumber > maxNumber {
			next = credit.AttemptNumber
		} else if credit.AttemptNumber > 0 {
			logger.Log.Warn("额外次数的预分配序号已被占用，改用下一个序号",
				zap.String("creditId", credit.ID),
				zap.Int("creditAttemptNumber", credit.AttemptNumber),
				zap.Int("attemptNumber", next),
			)
		}
	}

	attempt := &model.ExamAttempt{
		StudentID:     studentID,
		ExamID:        exam.ID,
		AttemptNumber: next,
		Status:        model.AttemptInProgress,
		SlotID:        slot.SlotID,
		SlotStartTime: slot.StartTime,
		SlotEndTime:   slot.EndTime,
		AccessEndsAt:  window.ExamEnd,
		StartTime:     now,
	}
	attempt.SetAnswers(map[string]string{})
	if credit != nil {
		attempt.CreditID = &credit.ID
	}

	stored, created, err := s.Attempts.Upsert(ctx, attempt)
	if err != nil {
		return nil, false, util.NewInternal(err)
	}
	if !created {
		// 并发的开考请求落在同一行上
		if stored.Status == model.AttemptInProgress && stored.SlotID == slot.SlotID {
			monitoring.AttemptsStarted.WithLabelValues("resumed").Inc()
			return stored, true, nil
		}
		return nil, false, util.ErrAttemptNumberTaken.WithDetail("attemptNumber", next)
	}
	monitoring.AttemptsStarted.WithLabelValues("created").Inc()

	switch permit {
	case permitCredit:
		s.consumeCredit(ctx, credit, stored, now)
	case permitRetake:
		if err := s.Attempts.SetCanRetake(ctx, latest.ID, false); err != nil {
			logger.Log.Warn("重考授权清除失败", zap.String("attemptId", latest.ID), zap.Error(err))
		}
	}
	return stored, false, nil
}

// permitNewAttempt 配额内正常分配，即使访问权来自额外次数也不消费；配额用尽后依次看重考授权和额外次数
func (s *AttemptService) permitNewAttempt(
	ctx context.Context,
	exam *model.Exam,
	decision AccessDecision,
	studentID uint,
	maxNumber int,
) (attemptPermit, *model.ExamAttempt, error) {
	maxAttempts := exam.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	if maxNumber < maxAttempts {
		return permitQuota, nil, nil
	}

	latest, err := s.Attempts.FindByNumber(ctx, studentID, exam.ID, maxNumber)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return 0, nil, util.NewInternal(err)
	}
	if latest != nil && latest.CanRetake {
		return permitRetake, latest, nil
	}
	if decision.Credit != nil {
		return permitCredit, nil, nil
	}
	return 0, nil, deny("start", util.ErrMaxAttemptsReached.
		WithDetail("maxAttempts", maxAttempts).
		WithDetail("attemptsUsed", maxNumber), studentID, exam.ID)
}

// consumeCredit 与作答创建不在同一事务，失败时作答仍然有效
func (s *AttemptService) consumeCredit(ctx context.Context, credit *model.ExamPaymentAttempt, attempt *model.ExamAttempt, now time.Time) {
	if err := s.Credits.MarkUsed(ctx, credit.ID, attempt.ID, now); err != nil {
		monitoring.CreditConsumeFailures.Inc()
		logger.Log.Warn("额外次数标记已使用失败，需要人工对账",
			zap.String("creditId", credit.ID),
			zap.String("attemptId", attempt.ID),
			zap.Error(err),
		)
	}
}

type SaveAnswerRequest struct {
	QuestionID string `json:"questionId" validate:"required"`
	Answer     string `json:"answer"`
}

type SaveAnswerResult struct {
	AttemptID  string `json:"attemptId"`
	QuestionID string `json:"questionId"`
	SavedCount int    `json:"savedCount"`
}

// SaveAnswer 自动保存单题答案
func (s *AttemptService) SaveAnswer(ctx context.Context, studentID uint, examID string, req SaveAnswerRequest) (*SaveAnswerResult, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	attempt, err := s.inProgressAttempt(ctx, studentID, examID)
	if err != nil {
		return nil, err
	}

	answers := attempt.SavedAnswers()
	answers[req.QuestionID] = req.Answer
	if err := s.Attempts.SaveAnswers(ctx, attempt.ID, answers); err != nil {
		if errors.Is(err, repository.ErrStateChanged) {
			return nil, util.ErrAttemptFinished
		}
		return nil, util.NewInternal(err)
	}
	return &SaveAnswerResult{AttemptID: attempt.ID, QuestionID: req.QuestionID, SavedCount: len(answers)}, nil
}

func (s *AttemptService) inProgressAttempt(ctx context.Context, studentID uint, examID string) (*model.ExamAttempt, error) {
	if examID == "" {
		return nil, util.NewValidationError(util.ErrTypeValidation, "examId is required")
	}
	attempt, err := s.Attempts.FindInProgress(ctx, studentID, examID, "")
	if errors.Is(err, repository.ErrNotFound) {
		return nil, util.ErrAttemptNotFound
	}
	if err != nil {
		return nil, util.NewInternal(err)
	}
	return attempt, nil
}

type SubmitExamRequest struct {
	Answers         map[string]string `json:"answers"`
	MarkedQuestions []string          `json:"markedQuestions"`
}

type SubmitResult struct {
	ScoreResult
	AttemptNumber int    `json:"attemptNumber"`
	AttemptID     string `json:"attemptId"`
}

func (s *AttemptService) SubmitExam(ctx context.Context, studentID uint, examID string, req SubmitExamRequest) (res *SubmitResult, err error) {
	ctx, finish := tracing.StartSpan(ctx, "AttemptService.SubmitExam",
		attribute.String("examId", examID), attribute.Int64("studentId", int64(studentID)))
	defer finish(&err)

	attempt, err := s.inProgressAttempt(ctx, studentID, examID)
	if err != nil {
		return nil, err
	}
	exam, err := findExam(ctx, s.Exams, examID)
	if err != nil {
		return nil, err
	}
	questions, err := s.Questions.QuestionsForExam(ctx, exam)
	if err != nil {
		return nil, util.NewInternal(err)
	}

	merged := MergeAnswers(attempt.SavedAnswers(), req.Answers)
	score := ScoreAnswers(questions, merged, exam.TotalMarks, exam.PassingMarks)

	now := s.Now()
	score.applyTo(attempt)
	attempt.SetAnswers(merged)
	if req.MarkedQuestions != nil {
		attempt.MarkedQuestions = req.MarkedQuestions
	}
	attempt.EndTime = &now
	attempt.Published = false

	if err := s.Attempts.Complete(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrStateChanged) {
			return nil, util.ErrAttemptFinished
		}
		return nil, util.NewInternal(err)
	}

	monitoring.Submissions.WithLabelValues(strconv.FormatBool(score.IsQualified)).Inc()
	logger.Log.Info("考试已提交",
		zap.String("attemptId", attempt.ID),
		zap.Uint("studentId", studentID),
		zap.String("examId", examID),
		zap.Int("score", score.Score),
		zap.Float64("percentage", score.Percentage),
	)
	return &SubmitResult{ScoreResult: score, AttemptNumber: attempt.AttemptNumber, AttemptID: attempt.ID}, nil
}

// ListPublishedResults 学生只能看到已发布的成绩
func (s *AttemptService) ListPublishedResults(ctx context.Context, studentID uint, examID string) ([]model.ExamAttempt, error) {
	if _, err := findExam(ctx, s.Exams, examID); err != nil {
		return nil, err
	}
	attempts, err := s.Attempts.ListPublished(ctx, studentID, examID)
	if err != nil {
		return nil, util.NewInternal(err)
	}
	return attempts, nil
}
