package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"exam_engine_backend/internal/model"
	"exam_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-test-secret"

func newRouter(roles ...model.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", AuthMiddleware(secret), RoleMiddleware(roles...), func(c *gin.Context) {
		util.Success(c, util.GetUserFromContext(c).UserID)
	})
	return r
}

func get(r *gin.Engine, token string) int {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func sign(t *testing.T, role model.UserRole, key string, ttl time.Duration) string {
	tok, err := util.GenerateJWT(&model.User{BaseModel: model.BaseModel{ID: 3}, Role: role}, key, ttl)
	require.NoError(t, err)
	return tok
}

func TestAuthMiddleware(t *testing.T) {
	r := newRouter(model.Student)

	assert.Equal(t, http.StatusUnauthorized, get(r, ""))
	assert.Equal(t, http.StatusUnauthorized, get(r, sign(t, model.Student, "other-secret", time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, get(r, sign(t, model.Student, secret, -time.Minute)))
	assert.Equal(t, http.StatusOK, get(r, sign(t, model.Student, secret, time.Hour)))
}

func TestRoleMiddleware(t *testing.T) {
	r := newRouter(model.Admin, model.Principal)

	assert.Equal(t, http.StatusForbidden, get(r, sign(t, model.Student, secret, time.Hour)))
	assert.Equal(t, http.StatusOK, get(r, sign(t, model.Principal, secret, time.Hour)))
	assert.Equal(t, http.StatusOK, get(r, sign(t, model.Admin, secret, time.Hour)))
}
