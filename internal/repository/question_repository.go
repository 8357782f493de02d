package repository

import (
	"context"
	"encoding/json"
	"exam_engine_backend/internal/model"
	"exam_engine_backend/pkg/logger"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

// QuestionsForExam 优先使用考试上显式列出的题目，其次是试卷下的全部题目
func (r *QuestionRepository) QuestionsForExam(ctx context.Context, exam *model.Exam) ([]model.Question, error) {
	var questions []model.Question
	if len(exam.QuestionIDs) > 0 {
		if err := r.DB.WithContext(ctx).Where("id IN ?", []string(exam.QuestionIDs)).Find(&questions).Error; err != nil {
			return nil, err
		}
		return orderByIDs(questions, exam.QuestionIDs), nil
	}
	if exam.QuestionPaperID == "" {
		return questions, nil
	}

	err := r.DB.WithContext(ctx).
		Where("question_paper_id = ?", exam.QuestionPaperID).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "order"}}).
		Find(&questions).Error
	return questions, err
}

func orderByIDs(questions []model.Question, ids []string) []model.Question {
	byID := make(map[string]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	ordered := make([]model.Question, 0, len(questions))
	for _, id := range ids {
		if q, ok := byID[id]; ok {
			ordered = append(ordered, q)
		}
	}
	return ordered
}

// CachedQuestionBank 在题库前面加一层 Redis 缓存，Redis 为 nil 时直接回源
type CachedQuestionBank struct {
	Source QuestionBank
	Redis  *redis.Client
	TTL    time.Duration
}

func NewCachedQuestionBank(source QuestionBank, rdb *redis.Client, ttl time.Duration) *CachedQuestionBank {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedQuestionBank{Source: source, Redis: rdb, TTL: ttl}
}

func questionCacheKey(examID string) string {
	return fmt.Sprintf("exam:questions:%s", examID)
}

func (b *CachedQuestionBank) QuestionsForExam(ctx context.Context, exam *model.Exam) ([]model.Question, error) {
	if b.Redis == nil {
		return b.Source.QuestionsForExam(ctx, exam)
	}

	key := questionCacheKey(exam.ID)
	cached, err := b.Redis.Get(ctx, key).Bytes()
	if err == nil {
		var questions []model.Question
		if err := json.Unmarshal(cached, &questions); err == nil {
			return questions, nil
		}
	} else if err != redis.Nil {
		logger.Log.Warn("Question cache read failed", zap.String("examId", exam.ID), zap.Error(err))
	}

	questions, err := b.Source.QuestionsForExam(ctx, exam)
	if err != nil {
		return nil, err
	}

	// 缓存中保存完整题目（含答案），只在服务端使用
	if data, err := json.Marshal(questions); err == nil {
		if err := b.Redis.Set(ctx, key, data, b.TTL).Err(); err != nil {
			logger.Log.Warn("Question cache write failed", zap.String("examId", exam.ID), zap.Error(err))
		}
	}
	return questions, nil
}

// Invalidate 考试被删除或题目变更后清除缓存
func (b *CachedQuestionBank) Invalidate(ctx context.Context, examID string) {
	if b.Redis == nil {
		return
	}
	b.Redis.Del(ctx, questionCacheKey(examID))
}
