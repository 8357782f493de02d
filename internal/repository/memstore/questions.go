package memstore

import (
	"context"
	"exam_engine_backend/internal/model"
	"exam_engine_backend/internal/repository"
	"sort"
)

type Questions struct{ s *Store }

var _ repository.QuestionBank = (*Questions)(nil)

func (r *Questions) QuestionsForExam(_ context.Context, exam *model.Exam) ([]model.Question, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]model.Question, 0)
	if len(exam.QuestionIDs) > 0 {
		byID := make(map[string]model.Question, len(r.s.questions))
		for _, q := range r.s.questions {
			byID[q.ID] = q
		}
		for _, id := range exam.QuestionIDs {
			if q, ok := byID[id]; ok {
				out = append(out, q)
			}
		}
		return out, nil
	}
	if exam.QuestionPaperID == "" {
		return out, nil
	}
	for _, q := range r.s.questions {
		if q.QuestionPaperID == exam.QuestionPaperID {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}
