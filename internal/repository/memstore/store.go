// Package memstore 提供 repository 接口的内存实现，用于 database.driver=memory 和服务层测试
package memstore

import (
	"exam_engine_backend/internal/model"
	"sync"
	"time"

	"gorm.io/datatypes"
)

type Store struct {
	mu sync.RWMutex

	exams         map[string]*model.Exam
	registrations map[string]*model.ExamRegistration
	attempts      map[string]*model.ExamAttempt
	credits       map[string]*model.ExamPaymentAttempt
	creditOrder   []string
	users         map[uint]*model.User

	coursePayments []model.CoursePayment
	examPayments   []model.ExamPayment
	enrollments    []model.Enrollment
	questions      []model.Question

	now func() time.Time
}

func New() *Store {
	return &Store{
		exams:         make(map[string]*model.Exam),
		registrations: make(map[string]*model.ExamRegistration),
		attempts:      make(map[string]*model.ExamAttempt),
		credits:       make(map[string]*model.ExamPaymentAttempt),
		users:         make(map[uint]*model.User),
		now:           time.Now,
	}
}

// WithClock 让 CreatedAt/UpdatedAt 使用测试时钟
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Exams() *Exams                 { return &Exams{s} }
func (s *Store) Registrations() *Registrations { return &Registrations{s} }
func (s *Store) Attempts() *Attempts           { return &Attempts{s} }
func (s *Store) Credits() *Credits             { return &Credits{s} }
func (s *Store) Ledger() *Ledger               { return &Ledger{s} }
func (s *Store) Questions() *Questions         { return &Questions{s} }

func (s *Store) stamp(b *model.UUIDBase) {
	b.EnsureID()
	now := s.now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

func copyExam(e *model.Exam) *model.Exam {
	c := *e
	c.Slots = append([]model.ExamSlot(nil), e.Slots...)
	c.QuestionIDs = append(datatypes.JSONSlice[string](nil), e.QuestionIDs...)
	return &c
}

func copyAttempt(a *model.ExamAttempt) *model.ExamAttempt {
	c := *a
	c.SetAnswers(a.SavedAnswers())
	c.MarkedQuestions = append(datatypes.JSONSlice[string](nil), a.MarkedQuestions...)
	return &c
}

func copyRegistration(r *model.ExamRegistration) *model.ExamRegistration {
	c := *r
	return &c
}

func copyCredit(c *model.ExamPaymentAttempt) *model.ExamPaymentAttempt {
	out := *c
	return &out
}

// 以下为测试和本地运行使用的种子数据入口

func (s *Store) AddUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

func (s *Store) AddCoursePayment(p model.CoursePayment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&p.UUIDBase)
	s.coursePayments = append(s.coursePayments, p)
}

func (s *Store) AddExamPayment(p model.ExamPayment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&p.UUIDBase)
	s.examPayments = append(s.examPayments, p)
}

func (s *Store) AddEnrollment(e model.Enrollment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&e.UUIDBase)
	s.enrollments = append(s.enrollments, e)
}

func (s *Store) AddCredit(c model.ExamPaymentAttempt) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&c.UUIDBase)
	s.credits[c.ID] = &c
	s.creditOrder = append(s.creditOrder, c.ID)
	return c.ID
}

// Credit 按 ID 读取，测试用于检查消费状态
func (s *Store) Credit(id string) (model.ExamPaymentAttempt, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.credits[id]
	if !ok {
		return model.ExamPaymentAttempt{}, false
	}
	return *c, true
}

func (s *Store) AddQuestions(questions ...model.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range questions {
		s.stamp(&q.UUIDBase)
		s.questions = append(s.questions, q)
	}
}

// AddExam 直接写入考试，不做校验
func (s *Store) AddExam(e model.Exam) *model.Exam {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stamp(&e.UUIDBase)
	for i := range e.Slots {
		e.Slots[i].ExamID = e.ID
	}
	s.exams[e.ID] = copyExam(&e)
	return copyExam(&e)
}

// AttemptsFor 返回学生在某考试下的全部作答，按次数排序
func (s *Store) AttemptsFor(studentID uint, examID string) []model.ExamAttempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ExamAttempt
	for _, a := range s.attempts {
		if a.StudentID == studentID && a.ExamID == examID {
			out = append(out, *copyAttempt(a))
		}
	}
	sortAttempts(out)
	return out
}
