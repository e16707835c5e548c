package event

import (
	"errors"
	"net/http"
	"strconv"

	eventService "chainflow-backend/internal/service/event"
	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handler 事件定义处理器
type Handler struct {
	eventService eventService.Service
}

// NewHandler 创建新的事件定义处理器
func NewHandler(eventService eventService.Service) *Handler {
	return &Handler{eventService: eventService}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	eventGroup := router.Group("/events")
	{
		// GET /api/v1/events?chain_id=1&pallet=Balances&kind=event
		eventGroup.GET("", h.ListEvents)
		// GET /api/v1/events/:id
		eventGroup.GET("/:id", h.GetEvent)
	}
}

// ListEvents 获取事件定义列表
// @Summary 获取事件定义列表
// @Description 返回链上最新运行时版本的事件定义，附带示例数据用于配置过滤条件与消息模板
// @Tags Event
// @Produce json
// @Param chain_id query int true "区块链ID"
// @Param pallet query string false "模块名"
// @Param kind query string false "event 或 error"
// @Success 200 {object} types.APIResponse{data=types.GetEventListResponse}
// @Failure 400 {object} types.APIResponse{error=types.APIError}
// @Failure 500 {object} types.APIResponse{error=types.APIError}
// @Router /api/v1/events [get]
func (h *Handler) ListEvents(c *gin.Context) {
	var req types.GetEventListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		logger.Error("ListEvents BindQuery Error: ", err)
		c.JSON(http.StatusBadRequest, types.APIResponse{
			Success: false,
			Error: &types.APIError{
				Code:    "INVALID_REQUEST",
				Message: "Invalid request parameters",
				Details: err.Error(),
			},
		})
		return
	}

	resp, err := h.eventService.ListEvents(c.Request.Context(), &req)
	if err != nil {
		logger.Error("ListEvents Service Error: ", err, "chain_id", req.ChainID)
		c.JSON(http.StatusInternalServerError, types.APIResponse{
			Success: false,
			Error: &types.APIError{
				Code:    "QUERY_FAILED",
				Message: "Failed to query events",
			},
		})
		return
	}

	c.JSON(http.StatusOK, types.APIResponse{
		Success: true,
		Data:    resp,
	})
}

// GetEvent 获取事件定义详情
// @Summary 获取事件定义详情
// @Tags Event
// @Produce json
// @Param id path int true "事件定义ID"
// @Success 200 {object} types.APIResponse{data=types.EventSchema}
// @Failure 400 {object} types.APIResponse{error=types.APIError}
// @Failure 404 {object} types.APIResponse{error=types.APIError}
// @Router /api/v1/events/{id} [get]
func (h *Handler) GetEvent(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.APIResponse{
			Success: false,
			Error: &types.APIError{
				Code:    "INVALID_REQUEST",
				Message: "Invalid event id",
			},
		})
		return
	}

	schema, err := h.eventService.GetEvent(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, eventService.ErrEventNotFound) {
			c.JSON(http.StatusNotFound, types.APIResponse{
				Success: false,
				Error: &types.APIError{
					Code:    "EVENT_NOT_FOUND",
					Message: err.Error(),
				},
			})
			return
		}
		logger.Error("GetEvent Service Error: ", err, "id", id)
		c.JSON(http.StatusInternalServerError, types.APIResponse{
			Success: false,
			Error: &types.APIError{
				Code:    "QUERY_FAILED",
				Message: "Failed to query event",
			},
		})
		return
	}

	c.JSON(http.StatusOK, types.APIResponse{
		Success: true,
		Data:    schema,
	})
}
