package service

import (
	"context"
	"exam_engine_backend/internal/model"
	"exam_engine_backend/internal/repository"
	"exam_engine_backend/internal/util"
)

type AccessSource string

const (
	SourceFree          AccessSource = "free"
	SourceCredit        AccessSource = "credit"
	SourceCoursePayment AccessSource = "course_payment"
	SourceEnrollment    AccessSource = "enrollment"
	SourceExamPayment   AccessSource = "exam_payment"
	SourceLegacyFlag    AccessSource = "legacy_flag"
	SourceRegistration  AccessSource = "registration"
)

// AccessDecision Credit 即使在免费考试上也会带出，用于次数用尽后的追加作答
type AccessDecision struct {
	HasAccess     bool                      `json:"hasAccess"`
	Source        AccessSource              `json:"source,omitempty"`
	Credit        *model.ExamPaymentAttempt `json:"-"`
	RequiredPrice float64                   `json:"requiredPrice"`
}

// Paid 访问权来自付费记录（含额外次数），用于决定报名的 paymentStatus
func (d AccessDecision) Paid() bool {
	return d.HasAccess && d.Source != SourceFree
}

type AccessResolver struct {
	Ledger repository.PaymentLedger
}

func NewAccessResolver(ledger repository.PaymentLedger) *AccessResolver {
	return &AccessResolver{Ledger: ledger}
}

// Resolve 按 免费 → 额外次数 → 课程付费/选课 → 考试付费 → 旧版标记 的顺序判定
func (r *AccessResolver) Resolve(ctx context.Context, studentID uint, exam *model.Exam) (AccessDecision, error) {
	found, err := r.Ledger.ResolveAccess(ctx, studentID, repository.ExamRef{
		ExamID:   exam.ID,
		CourseID: exam.CourseID,
	})
	if err != nil {
		return AccessDecision{}, util.NewInternal(err)
	}
	signals := repository.Signals(found)

	d := AccessDecision{Credit: signals.Credit(), RequiredPrice: exam.Price}
	grant := func(source AccessSource) (AccessDecision, error) {
		d.HasAccess = true
		d.Source = source
		return d, nil
	}

	if !exam.RequiresPayment {
		return grant(SourceFree)
	}
	if d.Credit != nil {
		return grant(SourceCredit)
	}
	if exam.IsCourseBound() {
		switch {
		case signals.Has(repository.SignalCoursePayment):
			return grant(SourceCoursePayment)
		case signals.Has(repository.SignalEnrollment):
			return grant(SourceEnrollment)
		}
		return d, nil
	}
	switch {
	case signals.Has(repository.SignalExamPayment):
		return grant(SourceExamPayment)
	case signals.Has(repository.SignalLegacyFlag):
		return grant(SourceLegacyFlag)
	}
	return d, nil
}

// ResolveForStart 开考时已付费的报名记录作为最后的放行依据
func (r *AccessResolver) ResolveForStart(ctx context.Context, studentID uint, exam *model.Exam, reg *model.ExamRegistration) (AccessDecision, error) {
	d, err := r.Resolve(ctx, studentID, exam)
	if err != nil {
		return d, err
	}
	if !d.HasAccess && reg != nil && reg.IsPaid() {
		d.HasAccess = true
		d.Source = SourceRegistration
	}
	return d, nil
}

func paymentRequired(exam *model.Exam) *util.AppError {
	return util.ErrPaymentRequired.
		WithDetail("requiredPrice", exam.Price).
		WithDetail("examId", exam.ID)
}
