package controller

import (
	"exam_engine_backend/internal/service"
	"exam_engine_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AdminExamController struct {
	ExamService        *service.ExamService
	PublicationService *service.PublicationService
}

func NewAdminExamController(examService *service.ExamService, publicationService *service.PublicationService) *AdminExamController {
	return &AdminExamController{ExamService: examService, PublicationService: publicationService}
}

// @Summary 创建考试
// @Tags 考试管理
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param body body service.CreateExamRequest true "考试信息"
// @Success 201 {object} util.Response
// @Router /api/admin/exams [post]
func (c *AdminExamController) CreateExam(ctx *gin.Context) {
	var req service.CreateExamRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.HandleError(ctx, util.NewValidationError(util.ErrTypeValidation, err.Error()))
		return
	}

	exam, err := c.ExamService.CreateExam(ctx.Request.Context(), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, exam)
}

// @Summary 删除考试
// @Description 同时删除报名和作答记录
// @Tags 考试管理
// @Security ApiKeyAuth
// @Produce json
// @Param examId path string true "考试ID"
// @Success 200 {object} util.Response
// @Router /api/admin/exams/{examId} [delete]
func (c *AdminExamController) DeleteExam(ctx *gin.Context) {
	if err := c.ExamService.DeleteExam(ctx.Request.Context(), ctx.Param("examId")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"examId": ctx.Param("examId")})
}

// @Summary 发布/撤回成绩
// @Tags 考试管理
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param examId path string true "考试ID"
// @Param body body service.PublishRequest true "日期与操作"
// @Success 200 {object} util.Response
// @Router /api/admin/exams/{examId}/publish [post]
func (c *AdminExamController) PublishResults(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.PublishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.HandleError(ctx, util.NewValidationError(util.ErrTypeValidation, err.Error()))
		return
	}

	res, err := c.PublicationService.PublishResults(ctx.Request.Context(), user.UserID, ctx.Param("examId"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary 批准重考
// @Tags 考试管理
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param examId path string true "考试ID"
// @Param body body service.ApproveRetakeRequest true "学生"
// @Success 200 {object} util.Response
// @Router /api/admin/exams/{examId}/approve-retake [post]
func (c *AdminExamController) ApproveRetake(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.ApproveRetakeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.HandleError(ctx, util.NewValidationError(util.ErrTypeValidation, err.Error()))
		return
	}

	attempt, err := c.PublicationService.ApproveRetake(ctx.Request.Context(), user.UserID, ctx.Param("examId"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary 按日期批量发布成绩
// @Tags 考试管理
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param body body service.PublishAllRequest true "日期与考试类别"
// @Success 200 {object} util.Response
// @Router /api/admin/results/publish-all [post]
func (c *AdminExamController) PublishAllForDate(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.PublishAllRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.HandleError(ctx, util.NewValidationError(util.ErrTypeValidation, err.Error()))
		return
	}

	res, err := c.PublicationService.PublishAllForDate(ctx.Request.Context(), user.UserID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, res)
}
