package workflow

import (
	"errors"
	"net/http"

	"chainflow-backend/internal/middleware"
	"chainflow-backend/internal/service/executor"
	"chainflow-backend/internal/service/processor"
	workflowService "chainflow-backend/internal/service/workflow"
	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handler 工作流处理器
type Handler struct {
	workflowService workflowService.Service
	tokens          middleware.TokenValidator
}

// NewHandler 创建新的工作流处理器
func NewHandler(workflowService workflowService.Service, tokens middleware.TokenValidator) *Handler {
	return &Handler{
		workflowService: workflowService,
		tokens:          tokens,
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	workflowGroup := router.Group("/workflows")
	workflowGroup.Use(middleware.AuthMiddleware(h.tokens))
	{
		// POST /api/v1/workflows
		workflowGroup.POST("", h.CreateWorkflow)
		// GET /api/v1/workflows?page=1&page_size=20
		workflowGroup.GET("", h.ListWorkflows)
		// GET /api/v1/workflows/:id
		workflowGroup.GET("/:id", h.GetWorkflow)
		// PATCH /api/v1/workflows/:id 仅名称与状态
		workflowGroup.PATCH("/:id", h.UpdateWorkflow)
		// GET /api/v1/workflows/:id/logs?page=1&page_size=20
		workflowGroup.GET("/:id/logs", h.GetWorkflowLogs)
	}
}

// CreateWorkflow 创建工作流
// @Summary 创建工作流
// @Description 创建由一个触发器和若干过滤/通知任务组成的工作流，depends_on 填写前置任务名称
// @Tags Workflow
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body types.CreateWorkflowRequest true "创建工作流请求"
// @Success 200 {object} types.APIResponse{data=types.Workflow}
// @Failure 400 {object} types.APIResponse{error=types.APIError}
// @Failure 401 {object} types.APIResponse{error=types.APIError}
// @Failure 500 {object} types.APIResponse{error=types.APIError}
// @Router /api/v1/workflows [post]
func (h *Handler) CreateWorkflow(c *gin.Context) {
	userID, walletAddress, ok := middleware.GetUserFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req types.CreateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("CreateWorkflow Error: invalid request", err, "user_id", userID)
		invalidRequest(c, err)
		return
	}

	wf, err := h.workflowService.CreateWorkflow(c.Request.Context(), userID, walletAddress, &req)
	if err != nil {
		h.fail(c, "CreateWorkflow", err, "user_id", userID)
		return
	}

	logger.Info("CreateWorkflow Success", "user_id", userID, "workflow_id", wf.ID)
	c.JSON(http.StatusOK, types.APIResponse{
		Success: true,
		Data:    wf,
	})
}

// ListWorkflows 获取工作流列表
// @Summary 获取工作流列表
// @Description 分页获取当前用户的工作流
// @Tags Workflow
// @Security BearerAuth
// @Produce json
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} types.APIResponse{data=types.GetWorkflowListResponse}
// @Failure 400 {object} types.APIResponse{error=types.APIError}
// @Failure 401 {object} types.APIResponse{error=types.APIError}
// @Router /api/v1/workflows [get]
func (h *Handler) ListWorkflows(c *gin.Context) {
	userID, _, ok := middleware.GetUserFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req types.GetWorkflowListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	resp, err := h.workflowService.ListWorkflows(c.Request.Context(), userID, &req)
	if err != nil {
		h.fail(c, "ListWorkflows", err, "user_id", userID)
		return
	}

	c.JSON(http.StatusOK, types.APIResponse{
		Success: true,
		Data:    resp,
	})
}

// GetWorkflow 获取工作流详情
// @Summary 获取工作流详情
// @Tags Workflow
// @Security BearerAuth
// @Produce json
// @Param id path string true "工作流ID"
// @Success 200 {object} types.APIResponse{data=types.Workflow}
// @Failure 404 {object} types.APIResponse{error=types.APIError}
// @Router /api/v1/workflows/{id} [get]
func (h *Handler) GetWorkflow(c *gin.Context) {
	userID, _, ok := middleware.GetUserFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}

	wf, err := h.workflowService.GetWorkflow(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		h.fail(c, "GetWorkflow", err, "user_id", userID, "workflow_id", c.Param("id"))
		return
	}

	c.JSON(http.StatusOK, types.APIResponse{
		Success: true,
		Data:    wf,
	})
}

// UpdateWorkflow 更新工作流名称或状态
// @Summary 更新工作流
// @Description 修改名称或在 running/paused 之间切换，任务不可修改
// @Tags Workflow
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path string true "工作流ID"
// @Param request body types.UpdateWorkflowRequest true "更新请求"
// @Success 200 {object} types.APIResponse{data=types.Workflow}
// @Failure 400 {object} types.APIResponse{error=types.APIError}
// @Failure 404 {object} types.APIResponse{error=types.APIError}
// @Router /api/v1/workflows/{id} [patch]
func (h *Handler) UpdateWorkflow(c *gin.Context) {
	userID, _, ok := middleware.GetUserFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req types.UpdateWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	wf, err := h.workflowService.UpdateWorkflow(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		h.fail(c, "UpdateWorkflow", err, "user_id", userID, "workflow_id", c.Param("id"))
		return
	}

	c.JSON(http.StatusOK, types.APIResponse{
		Success: true,
		Data:    wf,
	})
}

// GetWorkflowLogs 获取工作流执行记录
// @Summary 获取工作流执行记录
// @Description 分页获取工作流执行记录及其任务日志，过滤未命中的执行不会产生记录
// @Tags Workflow
// @Security BearerAuth
// @Produce json
// @Param id path string true "工作流ID"
// @Param page query int false "页码"
// @Param page_size query int false "每页数量"
// @Success 200 {object} types.APIResponse{data=types.GetWorkflowLogsResponse}
// @Failure 404 {object} types.APIResponse{error=types.APIError}
// @Router /api/v1/workflows/{id}/logs [get]
func (h *Handler) GetWorkflowLogs(c *gin.Context) {
	userID, _, ok := middleware.GetUserFromContext(c)
	if !ok {
		unauthorized(c)
		return
	}

	var req types.GetWorkflowLogsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		invalidRequest(c, err)
		return
	}

	resp, err := h.workflowService.GetWorkflowLogs(c.Request.Context(), userID, c.Param("id"), &req)
	if err != nil {
		h.fail(c, "GetWorkflowLogs", err, "user_id", userID, "workflow_id", c.Param("id"))
		return
	}

	c.JSON(http.StatusOK, types.APIResponse{
		Success: true,
		Data:    resp,
	})
}

// fail 将服务错误映射为HTTP状态码
func (h *Handler) fail(c *gin.Context, op string, err error, fields ...interface{}) {
	statusCode := http.StatusInternalServerError
	errorCode := "INTERNAL_ERROR"

	switch {
	case errors.Is(err, workflowService.ErrWorkflowNotFound):
		statusCode, errorCode = http.StatusNotFound, "WORKFLOW_NOT_FOUND"
	case errors.Is(err, workflowService.ErrChainNotFound):
		statusCode, errorCode = http.StatusBadRequest, "CHAIN_NOT_FOUND"
	case errors.Is(err, workflowService.ErrEventNotFound):
		statusCode, errorCode = http.StatusBadRequest, "EVENT_NOT_FOUND"
	case errors.Is(err, workflowService.ErrInvalidStatus):
		statusCode, errorCode = http.StatusBadRequest, "INVALID_STATUS"
	case errors.Is(err, executor.ErrInvalidTaskGraph):
		statusCode, errorCode = http.StatusBadRequest, "INVALID_TASK_GRAPH"
	case errors.Is(err, processor.ErrInvalidTaskConfig), errors.Is(err, processor.ErrUnknownTaskType):
		statusCode, errorCode = http.StatusBadRequest, "INVALID_TASK_CONFIG"
	}

	if statusCode == http.StatusInternalServerError {
		logger.Error(op+" Error", err, fields...)
	} else {
		logger.Warn(op+" rejected", append(fields, "error", err.Error())...)
	}

	message := err.Error()
	if statusCode == http.StatusInternalServerError {
		message = "Internal server error"
	}
	c.JSON(statusCode, types.APIResponse{
		Success: false,
		Error: &types.APIError{
			Code:    errorCode,
			Message: message,
		},
	})
}

func unauthorized(c *gin.Context) {
	logger.Error("Workflow API: failed to get user from context", nil)
	c.JSON(http.StatusUnauthorized, types.APIResponse{
		Success: false,
		Error: &types.APIError{
			Code:    "UNAUTHORIZED",
			Message: "User not authenticated",
		},
	})
}

func invalidRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, types.APIResponse{
		Success: false,
		Error: &types.APIError{
			Code:    "INVALID_REQUEST",
			Message: "Invalid request parameters",
			Details: err.Error(),
		},
	})
}
