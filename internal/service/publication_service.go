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

type PublicationService struct {
	Exams    repository.ExamStore
	Attempts repository.AttemptStore
	// Archive 可为空，为空时不写快照
	Archive  *ResultArchive
	Location *time.Location
	Now      Clock
}

func NewPublicationService(exams repository.ExamStore, attempts repository.AttemptStore, archive *ResultArchive, loc *time.Location, now Clock) *PublicationService {
	return &PublicationService{
		Exams:    exams,
		Attempts: attempts,
		Archive:  archive,
		Location: orLocal(loc),
		Now:      orNow(now),
	}
}

type PublishRequest struct {
	ExamDate string `json:"examDate" validate:"required"`
	Publish  *bool  `json:"publish" validate:"required"`
}

type PublishResult struct {
	ExamID   string `json:"examId"`
	Date     string `json:"date"`
	Publish  bool   `json:"publish"`
	Modified int64  `json:"modified"`
}

// dayRange 返回考试时区下某日的 [00:00, 次日 00:00)
func (s *PublicationService) dayRange(date string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(util.DateFormat, date, s.Location)
	if err != nil {
		return time.Time{}, time.Time{}, util.NewValidationError(util.ErrTypeInvalidDate, "date must be in YYYY-MM-DD format").
			WithDetail("value", date)
	}
	return day, day.AddDate(0, 0, 1), nil
}

// PublishResults 按作答开始日期发布或撤回，两种操作都只修改目标状态相反的记录
func (s *PublicationService) PublishResults(ctx context.Context, adminID uint, examID string, req PublishRequest) (res *PublishResult, err error) {
	ctx, finish := tracing.StartSpan(ctx, "PublicationService.PublishResults",
		attribute.String("examId", examID), attribute.String("date", req.ExamDate))
	defer finish(&err)

	if err := validateStruct(req); err != nil {
		return nil, err
	}
	from, to, err := s.dayRange(req.ExamDate)
	if err != nil {
		return nil, err
	}
	if _, err := findExam(ctx, s.Exams, examID); err != nil {
		return nil, err
	}
	return s.flip(ctx, adminID, examID, from, to, *req.Publish)
}

func (s *PublicationService) flip(ctx context.Context, adminID uint, examID string, from, to time.Time, publish bool) (*PublishResult, error) {
	modified, err := s.Attempts.SetPublished(ctx, examID, from, to, repository.PublishChange{
		Publish: publish,
		By:      adminID,
		At:      s.Now(),
	})
	if err != nil {
		return nil, util.NewInternal(err)
	}

	action := "unpublish"
	if publish {
		action = "publish"
	}
	monitoring.ResultsPublished.WithLabelValues(action).Add(float64(modified))
	logger.Log.Info("成绩发布状态已更新",
		zap.String("examId", examID),
		zap.String("date", from.Format(util.DateFormat)),
		zap.String("action", action),
		zap.Int64("modified", modified),
		zap.Uint("adminId", adminID),
	)

	if modified > 0 {
		s.archive(ctx, examID, from, to)
	}
	return &PublishResult{
		ExamID:   examID,
		Date:     from.Format(util.DateFormat),
		Publish:  publish,
		Modified: modified,
	}, nil
}

// archive 快照写入失败只记录日志
func (s *PublicationService) archive(ctx context.Context, examID string, from, to time.Time) {
	if s.Archive == nil {
		return
	}
	published, err := s.Attempts.ListPublishedForExam(ctx, examID, from, to)
	if err != nil {
		logger.Log.Warn("读取已发布成绩失败，跳过快照", zap.String("examId", examID), zap.Error(err))
		return
	}
	if len(published) == 0 {
		err = s.Archive.Remove(ctx, examID, from)
	} else {
		_, err = s.Archive.Store(ctx, examID, from, published)
	}
	if err != nil {
		logger.Log.Warn("成绩快照写入失败", zap.String("examId", examID), zap.Error(err))
	}
}

type PublishAllRequest struct {
	Date     string `json:"date" validate:"required"`
	ExamType string `json:"examType" validate:"omitempty,oneof=tega course all"`
	// Publish 省略时为发布
	Publish *bool `json:"publish"`
}

type PublishAllResult struct {
	Date          string          `json:"date"`
	ExamType      string          `json:"examType"`
	Exams         []PublishResult `json:"exams"`
	TotalModified int64           `json:"totalModified"`
}

// PublishAllForDate 先按类别筛选考试，再逐个发布该日的成绩
func (s *PublicationService) PublishAllForDate(ctx context.Context, adminID uint, req PublishAllRequest) (res *PublishAllResult, err error) {
	ctx, finish := tracing.StartSpan(ctx, "PublicationService.PublishAllForDate",
		attribute.String("date", req.Date), attribute.String("examType", req.ExamType))
	defer finish(&err)

	if err := validateStruct(req); err != nil {
		return nil, err
	}
	examType := req.ExamType
	if examType == "" {
		examType = util.ExamTypeAll
	}
	publish := true
	if req.Publish != nil {
		publish = *req.Publish
	}
	from, to, err := s.dayRange(req.Date)
	if err != nil {
		return nil, err
	}

	exams, err := s.Exams.ListByCategory(ctx, examType)
	if err != nil {
		return nil, util.NewInternal(err)
	}

	res = &PublishAllResult{Date: req.Date, ExamType: examType, Exams: make([]PublishResult, 0, len(exams))}
	for _, exam := range exams {
		r, err := s.flip(ctx, adminID, exam.ID, from, to, publish)
		if err != nil {
			return nil, err
		}
		if r.Modified == 0 {
			continue
		}
		res.Exams = append(res.Exams, *r)
		res.TotalModified += r.Modified
	}
	return res, nil
}

type ApproveRetakeRequest struct {
	StudentID uint `json:"studentId" validate:"required"`
}

// ApproveRetake 在学生最近一次已结束的作答上打开重考授权
func (s *PublicationService) ApproveRetake(ctx context.Context, adminID uint, examID string, req ApproveRetakeRequest) (*model.ExamAttempt, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	if _, err := findExam(ctx, s.Exams, examID); err != nil {
		return nil, err
	}

	latest, err := s.Attempts.FindLatestForExam(ctx, req.StudentID, examID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, util.NewNotFound(util.ErrTypeAttemptNotFound, "student has no attempt for this exam").
			WithDetail("studentId", req.StudentID)
	}
	if err != nil {
		return nil, util.NewInternal(err)
	}
	if latest.Status == model.AttemptInProgress {
		return nil, util.ErrAttemptStillRunning.WithDetail("attemptNumber", latest.AttemptNumber)
	}

	if err := s.Attempts.SetCanRetake(ctx, latest.ID, true); err != nil {
		return nil, util.NewInternal(err)
	}
	latest.CanRetake = true
	logger.Log.Info("已批准重考",
		zap.String("examId", examID),
		zap.Uint("studentId", req.StudentID),
		zap.Int("attemptNumber", latest.AttemptNumber),
		zap.Uint("adminId", adminID),
	)
	return latest, nil
}
