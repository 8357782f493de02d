package service

import (
	"exam_engine_backend/internal/model"
	"exam_engine_backend/internal/util"
	"time"
)

const (
	// ListingRegistrationLead 列表接口隐藏即将开始场次的提前量
	ListingRegistrationLead = 30 * time.Second
	// SlotRegistrationLead 提交报名的截止提前量
	SlotRegistrationLead = 5 * time.Minute
	// GracePeriod 普通考试开始后允许进入的时长
	GracePeriod = 5 * time.Minute
)

// SlotWindow 一个场次在某考试日期上的绝对时间窗口
type SlotWindow struct {
	SlotStart      time.Time
	SlotEnd        time.Time
	GracePeriodEnd time.Time
	ExamEnd        time.Time
}

// RegistrationCutoff 此时刻及之后不再接受报名
func (w SlotWindow) RegistrationCutoff() time.Time {
	return w.SlotStart.Add(-SlotRegistrationLead)
}

// OpenForListing 场次是否仍出现在可报名列表中
func (w SlotWindow) OpenForListing(now time.Time) bool {
	return now.Before(w.SlotStart.Add(-ListingRegistrationLead))
}

func (w SlotWindow) NotStarted(now time.Time) bool {
	return now.Before(w.SlotStart)
}

func (w SlotWindow) Ended(now time.Time) bool {
	return now.After(w.ExamEnd)
}

// ParseClock 严格解析 HH:MM
func ParseClock(clock string) (hour, minute int, err error) {
	if len(clock) != 5 || clock[2] != ':' {
		return 0, 0, invalidClock(clock)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if clock[i] < '0' || clock[i] > '9' {
			return 0, 0, invalidClock(clock)
		}
	}
	hour = int(clock[0]-'0')*10 + int(clock[1]-'0')
	minute = int(clock[3]-'0')*10 + int(clock[4]-'0')
	if hour > 23 || minute > 59 {
		return 0, 0, invalidClock(clock)
	}
	return hour, minute, nil
}

func invalidClock(clock string) error {
	return util.NewValidationError(util.ErrTypeInvalidTimeFormat, "time must be in HH:MM format").
		WithDetail("value", clock)
}

// CombineDateTime 取 date 在 loc 中的日历日，拼上 HH:MM
func CombineDateTime(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	d := date.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc), nil
}

// ResolveSlotWindow 计算场次窗口。旗舰考试只看 IsTegaExam 标记
func ResolveSlotWindow(exam *model.Exam, slot *model.ExamSlot, loc *time.Location) (SlotWindow, error) {
	start, err := CombineDateTime(exam.ExamDate, slot.StartTime, loc)
	if err != nil {
		return SlotWindow{}, err
	}
	end, err := CombineDateTime(exam.ExamDate, slot.EndTime, loc)
	if err != nil {
		return SlotWindow{}, err
	}
	if !end.After(start) {
		return SlotWindow{}, util.NewValidationError(util.ErrTypeInvalidSlotWindow, "slot end time must be after start time").
			WithDetail("slotId", slot.SlotID)
	}

	w := SlotWindow{
		SlotStart:      start,
		SlotEnd:        end,
		GracePeriodEnd: start.Add(GracePeriod),
	}
	if exam.IsTegaExam {
		w.ExamEnd = end.Add(time.Duration(exam.Duration) * time.Minute)
	} else {
		w.ExamEnd = w.GracePeriodEnd
	}
	return w, nil
}

// SweepResult isActive 重新计算的结果
type SweepResult struct {
	ExamActive    bool
	ExpiredSlots  []string
	InvalidSlots  []string
	LatestExamEnd time.Time
}

// SweepExam 根据 now 重新计算考试与各场次的 isActive，不写库
func SweepExam(exam *model.Exam, now time.Time, loc *time.Location) SweepResult {
	var res SweepResult
	found := false
	for i := range exam.Slots {
		slot := &exam.Slots[i]
		if !slot.IsActive {
			continue
		}
		w, err := ResolveSlotWindow(exam, slot, loc)
		if err != nil {
			res.InvalidSlots = append(res.InvalidSlots, slot.SlotID)
			continue
		}
		if w.Ended(now) {
			res.ExpiredSlots = append(res.ExpiredSlots, slot.SlotID)
		}
		if !found || w.ExamEnd.After(res.LatestExamEnd) {
			res.LatestExamEnd = w.ExamEnd
			found = true
		}
	}
	if !found {
		res.LatestExamEnd = exam.ExamDate.Add(time.Duration(exam.Duration) * time.Minute)
	}
	res.ExamActive = !now.After(res.LatestExamEnd)
	return res
}
