package controller

import (
	"errors"
	"io"

	"exam_engine_backend/internal/service"
	"exam_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ExamController struct {
	ExamService         *service.ExamService
	RegistrationService *service.RegistrationService
	AttemptService      *service.AttemptService
}

func NewExamController(examService *service.ExamService, registrationService *service.RegistrationService, attemptService *service.AttemptService) *ExamController {
	return &ExamController{
		ExamService:         examService,
		RegistrationService: registrationService,
		AttemptService:      attemptService,
	}
}

// bindOptionalJSON 空请求体视为零值
func bindOptionalJSON(ctx *gin.Context, obj interface{}) bool {
	if err := ctx.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		util.HandleError(ctx, util.NewValidationError(util.ErrTypeValidation, err.Error()))
		return false
	}
	return true
}

// @Summary 可报名考试列表
// @Description 返回仍可报名或已报名的考试，附带报名与付费状态
// @Tags 考试
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} util.Response
// @Router /api/exams/available [get]
func (c *ExamController) ListAvailable(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	exams, err := c.ExamService.ListAvailable(ctx.Request.Context(), user.UserID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, exams)
}

// @Summary 报名考试
// @Tags 考试
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param examId path string true "考试ID"
// @Param body body service.RegisterRequest true "场次"
// @Success 201 {object} util.Response
// @Failure 400 {object} util.Response
// @Failure 403 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/exams/{examId}/register [post]
func (c *ExamController) Register(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.RegisterRequest
	if !bindOptionalJSON(ctx, &req) {
		return
	}

	reg, err := c.RegistrationService.Register(ctx.Request.Context(), user.UserID, ctx.Param("examId"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, reg)
}

// @Summary 开始考试
// @Description 创建或恢复进行中的作答，题目不含答案
// @Tags 考试
// @Security ApiKeyAuth
// @Produce json
// @Param examId path string true "考试ID"
// @Success 200 {object} util.Response
// @Failure 403 {object} util.Response
// @Router /api/exams/{examId}/start [get]
func (c *ExamController) StartExam(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	res, err := c.AttemptService.StartExam(ctx.Request.Context(), user.UserID, ctx.Param("examId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary 自动保存答案
// @Tags 考试
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param examId path string true "考试ID"
// @Param body body service.SaveAnswerRequest true "答案"
// @Success 200 {object} util.Response
// @Router /api/exams/{examId}/answer [post]
func (c *ExamController) SaveAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.SaveAnswerRequest
	if !bindOptionalJSON(ctx, &req) {
		return
	}

	res, err := c.AttemptService.SaveAnswer(ctx.Request.Context(), user.UserID, ctx.Param("examId"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary 提交考试
// @Tags 考试
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param examId path string true "考试ID"
// @Param body body service.SubmitExamRequest true "答案"
// @Success 200 {object} util.Response
// @Router /api/exams/{examId}/submit [post]
func (c *ExamController) SubmitExam(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.SubmitExamRequest
	if !bindOptionalJSON(ctx, &req) {
		return
	}

	res, err := c.AttemptService.SubmitExam(ctx.Request.Context(), user.UserID, ctx.Param("examId"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"result": res})
}

// @Summary 我的考试成绩
// @Description 只返回已发布的作答
// @Tags 考试
// @Security ApiKeyAuth
// @Produce json
// @Param examId path string true "考试ID"
// @Success 200 {object} util.Response
// @Router /api/exams/{examId}/results [get]
func (c *ExamController) Results(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	results, err := c.AttemptService.ListPublishedResults(ctx.Request.Context(), user.UserID, ctx.Param("examId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"results": results})
}
