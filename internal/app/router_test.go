package app

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"exam_engine_backend/internal/config"
	"exam_engine_backend/internal/model"
	"exam_engine_backend/internal/repository/memstore"
	"exam_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-test-secret-test-secret"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t     *testing.T
	app   *App
	store *memstore.Store
	now   time.Time
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server:    config.ServerConfig{Port: "0", Mode: gin.TestMode},
		Database:  config.DatabaseConfig{Driver: config.DriverMemory},
		JWT:       config.JWTConfig{Secret: testSecret},
		Storage:   config.StorageConfig{Type: "local", LocalPath: t.TempDir()},
		RateLimit: config.RateLimitConfig{MaxRequests: 1000, WindowMinutes: 1},
		Exam:      config.ExamConfig{Timezone: "UTC"},
	}

	ts := &testServer{t: t, now: time.Date(2025, 3, 9, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return ts.now }
	ts.store = memstore.New().WithClock(clock)
	ts.app = &App{Config: cfg}
	ts.app.mount(memoryStores(ts.store), clock)
	return ts
}

func (ts *testServer) token(id uint, role model.UserRole) string {
	user := &model.User{BaseModel: model.BaseModel{ID: id}, Role: role, Email: "u@example.com"}
	tok, err := util.GenerateJWT(user, testSecret, time.Hour)
	require.NoError(ts.t, err)
	return tok
}

func (ts *testServer) do(method, path, token string, body interface{}) (int, envelope) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.app.Router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(ts.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func (ts *testServer) seedExam() *model.Exam {
	exam := ts.store.AddExam(model.Exam{
		Title:           "Chemistry Final",
		ExamDate:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Duration:        60,
		TotalMarks:      2,
		PassingMarks:    50,
		MaxAttempts:     1,
		IsActive:        true,
		QuestionPaperID: "paper-1",
		Slots: []model.ExamSlot{
			{SlotID: "s1", StartTime: "10:00", EndTime: "11:00", IsActive: true, MaxParticipants: 10},
		},
	})
	ts.store.AddQuestions(
		model.Question{UUIDBase: model.UUIDBase{ID: "q1"}, QuestionPaperID: "paper-1", Content: "1+1", CorrectAnswer: "A", Order: 0},
		model.Question{UUIDBase: model.UUIDBase{ID: "q2"}, QuestionPaperID: "paper-1", Content: "2+2", CorrectAnswer: "B", Order: 1},
	)
	return exam
}

func dataField(t *testing.T, env envelope) map[string]interface{} {
	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	return data
}

func TestHealthIsPublic(t *testing.T) {
	ts := newTestServer(t)

	code, env := ts.do(http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, code)
	components := dataField(t, env)["components"].(map[string]interface{})
	assert.Equal(t, "memory", components["database"])
	assert.Equal(t, "disabled", components["cache"])
}

func TestExamRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	code, _ := ts.do(http.MethodGet, "/api/exams/available", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = ts.do(http.MethodGet, "/api/exams/available", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRoleSeparation(t *testing.T) {
	ts := newTestServer(t)
	exam := ts.seedExam()

	code, _ := ts.do(http.MethodPost, "/api/admin/exams/"+exam.ID+"/publish", ts.token(7, model.Student),
		gin.H{"examDate": "2025-03-10", "publish": true})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = ts.do(http.MethodGet, "/api/exams/available", ts.token(1, model.Admin), nil)
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRegisterTwiceReturnsConflictWithErrorType(t *testing.T) {
	ts := newTestServer(t)
	exam := ts.seedExam()
	student := ts.token(7, model.Student)

	code, env := ts.do(http.MethodPost, "/api/exams/"+exam.ID+"/register", student, gin.H{"slotId": "s1"})
	require.Equal(t, http.StatusCreated, code, string(env.Data))
	assert.Equal(t, "s1", dataField(t, env)["slotId"])

	code, env = ts.do(http.MethodPost, "/api/exams/"+exam.ID+"/register", student, gin.H{"slotId": "s1"})
	require.Equal(t, http.StatusConflict, code)
	assert.Equal(t, util.ErrTypeAlreadyRegistered, dataField(t, env)["errorType"])
}

func TestRegisterWithoutSlotIsBadRequest(t *testing.T) {
	ts := newTestServer(t)
	exam := ts.seedExam()

	code, env := ts.do(http.MethodPost, "/api/exams/"+exam.ID+"/register", ts.token(7, model.Student), nil)
	require.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, util.ErrTypeSlotIDRequired, dataField(t, env)["errorType"])
}

func TestStartBeforeSlotReportsStartTime(t *testing.T) {
	ts := newTestServer(t)
	exam := ts.seedExam()
	student := ts.token(7, model.Student)

	code, _ := ts.do(http.MethodPost, "/api/exams/"+exam.ID+"/register", student, gin.H{"slotId": "s1"})
	require.Equal(t, http.StatusCreated, code)

	ts.now = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	code, env := ts.do(http.MethodGet, "/api/exams/"+exam.ID+"/start", student, nil)
	require.Equal(t, http.StatusForbidden, code)
	data := dataField(t, env)
	assert.Equal(t, util.ErrTypeExamNotStarted, data["errorType"])
	assert.Equal(t, false, data["canAccess"])
	assert.NotEmpty(t, data["startTime"])
}

func TestExamLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	exam := ts.seedExam()
	student := ts.token(7, model.Student)
	admin := ts.token(1, model.Admin)
	base := "/api/exams/" + exam.ID

	code, _ := ts.do(http.MethodPost, base+"/register", student, gin.H{"slotId": "s1"})
	require.Equal(t, http.StatusCreated, code)

	ts.now = time.Date(2025, 3, 10, 10, 2, 0, 0, time.UTC)
	code, env := ts.do(http.MethodGet, base+"/start", student, nil)
	require.Equal(t, http.StatusOK, code, string(env.Data))
	start := dataField(t, env)
	attempt := start["examAttempt"].(map[string]interface{})
	assert.EqualValues(t, 1, attempt["attemptNumber"])
	for _, q := range start["questions"].([]interface{}) {
		assert.NotContains(t, q.(map[string]interface{}), "correctAnswer")
	}

	ts.now = ts.now.Add(5 * time.Minute)
	code, _ = ts.do(http.MethodPost, base+"/answer", student, gin.H{"questionId": "q1", "answer": "A"})
	require.Equal(t, http.StatusOK, code)

	ts.now = ts.now.Add(10 * time.Minute)
	code, env = ts.do(http.MethodPost, base+"/submit", student, gin.H{"answers": gin.H{"q2": "B"}})
	require.Equal(t, http.StatusOK, code, string(env.Data))
	result := dataField(t, env)["result"].(map[string]interface{})
	assert.EqualValues(t, 2, result["score"])
	assert.EqualValues(t, 100, result["percentage"])
	assert.Equal(t, true, result["isPassed"])
	assert.Equal(t, true, result["isQualified"])
	assert.EqualValues(t, 1, result["attemptNumber"])

	code, env = ts.do(http.MethodGet, base+"/results", student, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, dataField(t, env)["results"])

	code, env = ts.do(http.MethodPost, "/api/admin/exams/"+exam.ID+"/publish", admin,
		gin.H{"examDate": "2025-03-10", "publish": true})
	require.Equal(t, http.StatusOK, code, string(env.Data))
	assert.EqualValues(t, 1, dataField(t, env)["modified"])

	code, env = ts.do(http.MethodGet, base+"/results", student, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, dataField(t, env)["results"], 1)

	// 仍在开考窗口内，但次数已用完
	ts.now = time.Date(2025, 3, 10, 10, 3, 0, 0, time.UTC)
	code, env = ts.do(http.MethodGet, base+"/start", student, nil)
	require.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, util.ErrTypeMaxAttemptsReached, dataField(t, env)["errorType"])
}
