package memstore

import (
	"context"
	"exam_engine_backend/internal/model"
	"exam_engine_backend/internal/repository"
	"exam_engine_backend/internal/util"
	"sort"
)

type Exams struct{ s *Store }

var _ repository.ExamStore = (*Exams)(nil)

func (r *Exams) Create(_ context.Context, exam *model.Exam) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.stamp(&exam.UUIDBase)
	if _, ok := r.s.exams[exam.ID]; ok {
		return repository.ErrDuplicate
	}
	seen := make(map[string]bool, len(exam.Slots))
	for i := range exam.Slots {
		if seen[exam.Slots[i].SlotID] {
			return repository.ErrDuplicate
		}
		seen[exam.Slots[i].SlotID] = true
		exam.Slots[i].ExamID = exam.ID
		exam.Slots[i].ID = uint(i + 1)
	}
	r.s.exams[exam.ID] = copyExam(exam)
	return nil
}

func (r *Exams) FindByID(_ context.Context, id string) (*model.Exam, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.exams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyExam(e), nil
}

func (r *Exams) list(match func(*model.Exam) bool) []model.Exam {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.Exam, 0)
	for _, e := range r.s.exams {
		if match(e) {
			out = append(out, *copyExam(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ExamDate.Equal(out[j].ExamDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].ExamDate.Before(out[j].ExamDate)
	})
	return out
}

func (r *Exams) ListActive(_ context.Context) ([]model.Exam, error) {
	return r.list(func(e *model.Exam) bool { return e.IsActive }), nil
}

func (r *Exams) ListByCategory(_ context.Context, examType string) ([]model.Exam, error) {
	return r.list(func(e *model.Exam) bool {
		switch examType {
		case util.ExamTypeTega:
			return e.IsTegaExam
		case util.ExamTypeCourse:
			return !e.IsTegaExam && e.IsCourseBound()
		}
		return true
	}), nil
}

func (r *Exams) SetActive(_ context.Context, examID string, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.exams[examID]
	if !ok {
		return nil
	}
	e.IsActive = active
	e.UpdatedAt = r.s.now()
	return nil
}

// slot 调用方必须持有写锁
func (r *Exams) slot(examID, slotID string) *model.ExamSlot {
	e, ok := r.s.exams[examID]
	if !ok {
		return nil
	}
	s, ok := e.Slot(slotID)
	if !ok {
		return nil
	}
	return s
}

func (r *Exams) SetSlotActive(_ context.Context, examID, slotID string, active bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if s := r.slot(examID, slotID); s != nil {
		s.IsActive = active
	}
	return nil
}

func (r *Exams) IncrementSlotRegistered(_ context.Context, examID, slotID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if s := r.slot(examID, slotID); s != nil {
		s.RegisteredStudents++
	}
	return nil
}

func (r *Exams) IncrementSlotRegisteredWithinCapacity(_ context.Context, examID, slotID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	s := r.slot(examID, slotID)
	if s == nil || !s.HasCapacity() {
		return false, nil
	}
	s.RegisteredStudents++
	return true, nil
}

func (r *Exams) DecrementSlotRegistered(_ context.Context, examID, slotID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if s := r.slot(examID, slotID); s != nil && s.RegisteredStudents > 0 {
		s.RegisteredStudents--
	}
	return nil
}

func (r *Exams) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.exams[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.exams, id)
	for k, reg := range r.s.registrations {
		if reg.ExamID == id {
			delete(r.s.registrations, k)
		}
	}
	for k, a := range r.s.attempts {
		if a.ExamID == id {
			delete(r.s.attempts, k)
		}
	}
	return nil
}
