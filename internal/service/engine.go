package service

import (
	"context"
	"errors"
	"exam_engine_backend/internal/model"
	"exam_engine_backend/internal/repository"
	"exam_engine_backend/internal/util"
	"exam_engine_backend/pkg/logger"
	"exam_engine_backend/pkg/monitoring"
	"time"

	"go.uber.org/zap"
)

// Clock 可注入的时钟，测试中使用固定时间
type Clock func() time.Time

func orLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}

func orNow(now Clock) Clock {
	if now == nil {
		return time.Now
	}
	return now
}

func findExam(ctx context.Context, exams repository.ExamStore, examID string) (*model.Exam, error) {
	if examID == "" {
		return nil, util.NewValidationError(util.ErrTypeValidation, "examId is required")
	}
	exam, err := exams.FindByID(ctx, examID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, util.ErrExamNotFound.WithDetail("examId", examID)
	}
	if err != nil {
		return nil, util.NewInternal(err)
	}
	return exam, nil
}

// deny 记录一次业务拒绝，返回原错误
func deny(operation string, err *util.AppError, studentID uint, examID string) error {
	monitoring.AccessDenied.WithLabelValues(operation, err.ErrorType).Inc()
	logger.Log.Info("考试访问被拒绝",
		zap.String("operation", operation),
		zap.String("errorType", err.ErrorType),
		zap.Uint("studentId", studentID),
		zap.String("examId", examID),
	)
	return err
}

// warnFlagshipTitle 标题像旗舰考试但未设置 IsTegaExam 时只告警，不改变窗口计算
func warnFlagshipTitle(exam *model.Exam) {
	if exam.TitleSuggestsFlagship() && !exam.IsTegaExam {
		logger.Log.Warn("考试标题与旗舰标记不一致，按普通考试计算窗口",
			zap.String("examId", exam.ID),
			zap.String("title", exam.Title),
		)
	}
}
