package service

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"exam_engine_backend/internal/model"
	"exam_engine_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProvider struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newRecordingProvider() *recordingProvider {
	return &recordingProvider{objects: make(map[string][]byte)}
}

func (p *recordingProvider) Upload(_ context.Context, filename string, reader io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects[filename] = data
	return p.GetURL(filename), nil
}

func (p *recordingProvider) Delete(_ context.Context, filename string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.objects, filename)
	return nil
}

func (p *recordingProvider) GetURL(filename string) string {
	return "mem://" + filename
}

// seedCompleted 直接写入一条已完成的作答
func (f *fixture) seedCompleted(studentID uint, examID string, number int, start time.Time) *model.ExamAttempt {
	a, _, err := f.store.Attempts().Upsert(f.ctx, &model.ExamAttempt{
		StudentID:     studentID,
		ExamID:        examID,
		AttemptNumber: number,
		Status:        model.AttemptInProgress,
		SlotID:        "s1",
		StartTime:     start,
	})
	require.NoError(f.t, err)
	a.Score = 7
	require.NoError(f.t, f.store.Attempts().Complete(f.ctx, a))
	return a
}

func boolPtr(b bool) *bool { return &b }

func TestPublishResultsByAttemptDate(t *testing.T) {
	f := newFixture(t, at(11, 9, 0))
	exam := f.addExam()
	f.seedCompleted(1, exam.ID, 1, at(10, 10, 2))
	f.seedCompleted(2, exam.ID, 1, at(10, 23, 59))
	f.seedCompleted(3, exam.ID, 1, at(11, 0, 0))
	inProgress, _, err := f.store.Attempts().Upsert(f.ctx, &model.ExamAttempt{
		StudentID: 4, ExamID: exam.ID, AttemptNumber: 1, Status: model.AttemptInProgress, StartTime: at(10, 10, 0),
	})
	require.NoError(t, err)

	res, err := f.publication.PublishResults(f.ctx, 99, exam.ID, PublishRequest{ExamDate: "2025-03-10", Publish: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Modified)

	again, err := f.publication.PublishResults(f.ctx, 99, exam.ID, PublishRequest{ExamDate: "2025-03-10", Publish: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, int64(0), again.Modified)

	published := f.store.AttemptsFor(1, exam.ID)[0]
	assert.True(t, published.Published)
	require.NotNil(t, published.PublishedBy)
	assert.Equal(t, uint(99), *published.PublishedBy)
	require.NotNil(t, published.PublishedAt)
	assert.True(t, at(11, 9, 0).Equal(*published.PublishedAt))

	assert.False(t, f.store.AttemptsFor(3, exam.ID)[0].Published)
	assert.False(t, f.store.AttemptsFor(4, exam.ID)[0].Published, inProgress.ID)
}

func TestUnpublishIsExactInverse(t *testing.T) {
	f := newFixture(t, at(11, 9, 0))
	exam := f.addExam()
	f.seedCompleted(1, exam.ID, 1, at(10, 10, 2))

	_, err := f.publication.PublishResults(f.ctx, 99, exam.ID, PublishRequest{ExamDate: "2025-03-10", Publish: boolPtr(true)})
	require.NoError(t, err)

	res, err := f.publication.PublishResults(f.ctx, 99, exam.ID, PublishRequest{ExamDate: "2025-03-10", Publish: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Modified)

	a := f.store.AttemptsFor(1, exam.ID)[0]
	assert.False(t, a.Published)
	assert.Nil(t, a.PublishedAt)
	assert.Nil(t, a.PublishedBy)

	res, err = f.publication.PublishResults(f.ctx, 99, exam.ID, PublishRequest{ExamDate: "2025-03-10", Publish: boolPtr(false)})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Modified)
}

func TestPublishResultsValidation(t *testing.T) {
	f := newFixture(t, at(11, 9, 0))
	exam := f.addExam()

	_, err := f.publication.PublishResults(f.ctx, 99, exam.ID, PublishRequest{ExamDate: "2025-03-10"})
	requireAppError(t, err, util.ErrTypeValidation)

	_, err = f.publication.PublishResults(f.ctx, 99, exam.ID, PublishRequest{ExamDate: "10/03/2025", Publish: boolPtr(true)})
	requireAppError(t, err, util.ErrTypeInvalidDate)

	_, err = f.publication.PublishResults(f.ctx, 99, "missing", PublishRequest{ExamDate: "2025-03-10", Publish: boolPtr(true)})
	requireAppError(t, err, util.ErrTypeExamNotFound)
}

func TestPublishWritesSnapshot(t *testing.T) {
	f := newFixture(t, at(11, 9, 0))
	provider := newRecordingProvider()
	f.publication.Archive = NewResultArchive(provider, func() time.Time { return f.now })
	exam := f.addExam()
	f.seedCompleted(1, exam.ID, 1, at(10, 10, 2))

	_, err := f.publication.PublishResults(f.ctx, 99, exam.ID, PublishRequest{ExamDate: "2025-03-10", Publish: boolPtr(true)})
	require.NoError(t, err)

	key := "results/" + exam.ID + "/2025-03-10.json"
	require.Contains(t, provider.objects, key)
	var snap resultSnapshot
	require.NoError(t, json.Unmarshal(provider.objects[key], &snap))
	require.Len(t, snap.Results, 1)
	assert.Equal(t, uint(1), snap.Results[0].StudentID)
	assert.Equal(t, 7, snap.Results[0].Score)

	_, err = f.publication.PublishResults(f.ctx, 99, exam.ID, PublishRequest{ExamDate: "2025-03-10", Publish: boolPtr(false)})
	require.NoError(t, err)
	assert.NotContains(t, provider.objects, key)
}

func TestPublishAllForDateFiltersByCategory(t *testing.T) {
	f := newFixture(t, at(11, 9, 0))
	flagship := f.addExam(func(e *model.Exam) { e.IsTegaExam = true })
	course := f.addExam(func(e *model.Exam) { e.CourseID = "course-1" })
	standalone := f.addExam()
	for _, e := range []*model.Exam{flagship, course, standalone} {
		f.seedCompleted(1, e.ID, 1, at(10, 10, 2))
	}

	res, err := f.publication.PublishAllForDate(f.ctx, 99, PublishAllRequest{Date: "2025-03-10", ExamType: util.ExamTypeTega})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.TotalModified)
	require.Len(t, res.Exams, 1)
	assert.Equal(t, flagship.ID, res.Exams[0].ExamID)

	res, err = f.publication.PublishAllForDate(f.ctx, 99, PublishAllRequest{Date: "2025-03-10", ExamType: util.ExamTypeCourse})
	require.NoError(t, err)
	require.Len(t, res.Exams, 1)
	assert.Equal(t, course.ID, res.Exams[0].ExamID)

	res, err = f.publication.PublishAllForDate(f.ctx, 99, PublishAllRequest{Date: "2025-03-10"})
	require.NoError(t, err)
	assert.Equal(t, util.ExamTypeAll, res.ExamType)
	assert.Equal(t, int64(1), res.TotalModified)
	assert.Equal(t, standalone.ID, res.Exams[0].ExamID)

	_, err = f.publication.PublishAllForDate(f.ctx, 99, PublishAllRequest{Date: "2025-03-10", ExamType: "weekly"})
	requireAppError(t, err, util.ErrTypeValidation)
}

func TestApproveRetake(t *testing.T) {
	f := newFixture(t, at(10, 10, 1))
	exam := f.addExam()

	_, err := f.publication.ApproveRetake(f.ctx, 99, exam.ID, ApproveRetakeRequest{StudentID: 1})
	requireAppError(t, err, util.ErrTypeAttemptNotFound)

	_, err = f.publication.ApproveRetake(f.ctx, 99, exam.ID, ApproveRetakeRequest{})
	requireAppError(t, err, util.ErrTypeValidation)

	f.register(1, exam.ID, "s1")
	_, err = f.attempts.StartExam(f.ctx, 1, exam.ID)
	require.NoError(t, err)

	_, err = f.publication.ApproveRetake(f.ctx, 99, exam.ID, ApproveRetakeRequest{StudentID: 1})
	requireAppError(t, err, util.ErrTypeAttemptInProgress)

	_, err = f.attempts.SubmitExam(f.ctx, 1, exam.ID, SubmitExamRequest{})
	require.NoError(t, err)

	attempt, err := f.publication.ApproveRetake(f.ctx, 99, exam.ID, ApproveRetakeRequest{StudentID: 1})
	require.NoError(t, err)
	assert.True(t, attempt.CanRetake)
	assert.True(t, f.store.AttemptsFor(1, exam.ID)[0].CanRetake)
}
