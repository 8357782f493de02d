package memstore

import (
	"context"
	"exam_engine_backend/internal/model"
	"exam_engine_backend/internal/repository"
	"sort"
	"time"
)

type Attempts struct{ s *Store }

var _ repository.AttemptStore = (*Attempts)(nil)

func sortAttempts(attempts []model.ExamAttempt) {
	sort.Slice(attempts, func(i, j int) bool {
		if attempts[i].StudentID != attempts[j].StudentID {
			return attempts[i].StudentID < attempts[j].StudentID
		}
		return attempts[i].AttemptNumber < attempts[j].AttemptNumber
	})
}

// collect 调用方必须持有锁
func (r *Attempts) collect(match func(*model.ExamAttempt) bool) []model.ExamAttempt {
	out := make([]model.ExamAttempt, 0)
	for _, a := range r.s.attempts {
		if match(a) {
			out = append(out, *copyAttempt(a))
		}
	}
	sortAttempts(out)
	return out
}

func (r *Attempts) MaxAttemptNumber(_ context.Context, studentID uint, examID, slotID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	max := 0
	for _, a := range r.s.attempts {
		if a.StudentID == studentID && a.ExamID == examID && a.SlotID == slotID && a.AttemptNumber > max {
			max = a.AttemptNumber
		}
	}
	return max, nil
}

func (r *Attempts) FindByNumber(_ context.Context, studentID uint, examID string, attemptNumber int) (*model.ExamAttempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if a := r.byKey(studentID, examID, attemptNumber); a != nil {
		return copyAttempt(a), nil
	}
	return nil, repository.ErrNotFound
}

func (r *Attempts) byKey(studentID uint, examID string, attemptNumber int) *model.ExamAttempt {
	for _, a := range r.s.attempts {
		if a.StudentID == studentID && a.ExamID == examID && a.AttemptNumber == attemptNumber {
			return a
		}
	}
	return nil
}

func (r *Attempts) FindInProgress(_ context.Context, studentID uint, examID, slotID string) (*model.ExamAttempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	matches := r.collect(func(a *model.ExamAttempt) bool {
		return a.StudentID == studentID && a.ExamID == examID &&
			a.Status == model.AttemptInProgress && (slotID == "" || a.SlotID == slotID)
	})
	if len(matches) == 0 {
		return nil, repository.ErrNotFound
	}
	return &matches[len(matches)-1], nil
}

func (r *Attempts) FindLatestForExam(_ context.Context, studentID uint, examID string) (*model.ExamAttempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	matches := r.collect(func(a *model.ExamAttempt) bool {
		return a.StudentID == studentID && a.ExamID == examID
	})
	if len(matches) == 0 {
		return nil, repository.ErrNotFound
	}
	return &matches[len(matches)-1], nil
}

func (r *Attempts) Upsert(_ context.Context, attempt *model.ExamAttempt) (*model.ExamAttempt, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if existing := r.byKey(attempt.StudentID, attempt.ExamID, attempt.AttemptNumber); existing != nil {
		return copyAttempt(existing), false, nil
	}
	r.s.stamp(&attempt.UUIDBase)
	r.s.attempts[attempt.ID] = copyAttempt(attempt)
	return copyAttempt(attempt), true, nil
}

// inProgress 调用方必须持有写锁
func (r *Attempts) inProgress(attemptID string) (*model.ExamAttempt, error) {
	a, ok := r.s.attempts[attemptID]
	if !ok || a.Status != model.AttemptInProgress {
		return nil, repository.ErrStateChanged
	}
	return a, nil
}

func (r *Attempts) SaveAnswers(_ context.Context, attemptID string, answers map[string]string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, err := r.inProgress(attemptID)
	if err != nil {
		return err
	}
	copied := make(map[string]string, len(answers))
	for k, v := range answers {
		copied[k] = v
	}
	a.SetAnswers(copied)
	a.UpdatedAt = r.s.now()
	return nil
}

func (r *Attempts) Complete(_ context.Context, attempt *model.ExamAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, err := r.inProgress(attempt.ID)
	if err != nil {
		return err
	}
	done := copyAttempt(attempt)
	done.Status = model.AttemptCompleted
	done.Published = false
	done.PublishedAt = nil
	done.PublishedBy = nil
	done.CreatedAt = a.CreatedAt
	done.UpdatedAt = r.s.now()
	r.s.attempts[a.ID] = done
	return nil
}

func (r *Attempts) Abandon(_ context.Context, attemptID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, err := r.inProgress(attemptID)
	if err != nil {
		return err
	}
	a.Status = model.AttemptAbandoned
	a.EndTime = &at
	a.UpdatedAt = r.s.now()
	return nil
}

func (r *Attempts) SetCanRetake(_ context.Context, attemptID string, canRetake bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.attempts[attemptID]
	if !ok {
		return repository.ErrNotFound
	}
	a.CanRetake = canRetake
	return nil
}

func (r *Attempts) ListPublished(_ context.Context, studentID uint, examID string) ([]model.ExamAttempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.collect(func(a *model.ExamAttempt) bool {
		return a.StudentID == studentID && a.ExamID == examID &&
			a.Status == model.AttemptCompleted && a.Published
	}), nil
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func (r *Attempts) ListPublishedForExam(_ context.Context, examID string, from, to time.Time) ([]model.ExamAttempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.collect(func(a *model.ExamAttempt) bool {
		return a.ExamID == examID && a.Status == model.AttemptCompleted && a.Published &&
			inRange(a.StartTime, from, to)
	}), nil
}

func (r *Attempts) SetPublished(_ context.Context, examID string, from, to time.Time, change repository.PublishChange) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var modified int64
	for _, a := range r.s.attempts {
		if a.ExamID != examID || a.Status != model.AttemptCompleted ||
			a.Published == change.Publish || !inRange(a.StartTime, from, to) {
			continue
		}
		a.Published = change.Publish
		if change.Publish {
			at, by := change.At, change.By
			a.PublishedAt = &at
			a.PublishedBy = &by
		} else {
			a.PublishedAt = nil
			a.PublishedBy = nil
		}
		modified++
	}
	return modified, nil
}
