package memstore

import (
	"context"
	"exam_engine_backend/internal/model"
	"exam_engine_backend/internal/repository"
	"time"
)

type Credits struct{ s *Store }

var _ repository.CreditStore = (*Credits)(nil)

// firstUnused 调用方必须持有锁，按购买顺序返回
func (r *Credits) firstUnused(studentID uint, examID string) *model.ExamPaymentAttempt {
	for _, id := range r.s.creditOrder {
		c := r.s.credits[id]
		if c.StudentID == studentID && c.ExamID == examID && !c.IsUsed {
			return c
		}
	}
	return nil
}

func (r *Credits) FindUnused(_ context.Context, studentID uint, examID string) (*model.ExamPaymentAttempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if c := r.firstUnused(studentID, examID); c != nil {
		return copyCredit(c), nil
	}
	return nil, repository.ErrNotFound
}

func (r *Credits) MarkUsed(_ context.Context, creditID, attemptID string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.credits[creditID]
	if !ok || c.IsUsed {
		return repository.ErrStateChanged
	}
	c.IsUsed = true
	c.ExamAttemptID = &attemptID
	c.UsedAt = &at
	return nil
}

type Ledger struct{ s *Store }

var _ repository.PaymentLedger = (*Ledger)(nil)

func (l *Ledger) ResolveAccess(_ context.Context, studentID uint, ref repository.ExamRef) ([]repository.PaymentSignal, error) {
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()

	var signals []repository.PaymentSignal
	if ref.CourseID != "" {
		for _, p := range l.s.coursePayments {
			if p.StudentID == studentID && p.CourseID == ref.CourseID && p.Status == model.PaymentCompleted {
				signals = append(signals, repository.PaymentSignal{Kind: repository.SignalCoursePayment, RecordID: p.ID})
			}
		}
		for _, e := range l.s.enrollments {
			if e.StudentID == studentID && e.CourseID == ref.CourseID && e.Status == model.EnrollmentActive {
				signals = append(signals, repository.PaymentSignal{Kind: repository.SignalEnrollment, RecordID: e.ID})
			}
		}
	}
	for _, p := range l.s.examPayments {
		if p.StudentID == studentID && p.ExamID == ref.ExamID && p.Status == model.PaymentCompleted {
			signals = append(signals, repository.PaymentSignal{Kind: repository.SignalExamPayment, RecordID: p.ID})
		}
	}
	if u, ok := l.s.users[studentID]; ok && u.HasPaidPlatformExam {
		signals = append(signals, repository.PaymentSignal{Kind: repository.SignalLegacyFlag})
	}
	if c := (&Credits{l.s}).firstUnused(studentID, ref.ExamID); c != nil {
		signals = append(signals, repository.PaymentSignal{
			Kind:     repository.SignalCreditAttempt,
			RecordID: c.ID,
			Credit:   copyCredit(c),
		})
	}
	return signals, nil
}
