package memstore

import (
	"context"
	"exam_engine_backend/internal/model"
	"exam_engine_backend/internal/repository"
	"sort"
)

type Registrations struct{ s *Store }

var _ repository.RegistrationStore = (*Registrations)(nil)

// find 调用方必须持有锁
func (r *Registrations) find(studentID uint, examID string) *model.ExamRegistration {
	for _, reg := range r.s.registrations {
		if reg.StudentID == studentID && reg.ExamID == examID {
			return reg
		}
	}
	return nil
}

func (r *Registrations) FindByStudentAndExam(_ context.Context, studentID uint, examID string) (*model.ExamRegistration, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	reg := r.find(studentID, examID)
	if reg == nil {
		return nil, repository.ErrNotFound
	}
	return copyRegistration(reg), nil
}

func (r *Registrations) ListByStudent(_ context.Context, studentID uint) ([]model.ExamRegistration, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.ExamRegistration, 0)
	for _, reg := range r.s.registrations {
		if reg.StudentID == studentID {
			out = append(out, *reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegisteredAt.After(out[j].RegisteredAt) })
	return out, nil
}

func (r *Registrations) Create(_ context.Context, reg *model.ExamRegistration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.find(reg.StudentID, reg.ExamID) != nil {
		return repository.ErrDuplicate
	}
	r.s.stamp(&reg.UUIDBase)
	r.s.registrations[reg.ID] = copyRegistration(reg)
	return nil
}

func (r *Registrations) Update(_ context.Context, reg *model.ExamRegistration) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.registrations[reg.ID]; !ok {
		return repository.ErrNotFound
	}
	r.s.stamp(&reg.UUIDBase)
	r.s.registrations[reg.ID] = copyRegistration(reg)
	return nil
}
