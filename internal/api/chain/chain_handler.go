package chain

import (
	"net/http"
	"strconv"

	"chainflow-backend/internal/service/chain"
	"chainflow-backend/internal/service/scanner"
	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// ScannerStatus 扫链状态来源
type ScannerStatus interface {
	GetStatus() []scanner.ChainScannerStatus
}

// Handler 支持链处理器
type Handler struct {
	chainService chain.Service
	scanner      ScannerStatus
}

// NewHandler 创建新的支持链处理器，scanner 为 nil 时扫链状态为空列表
func NewHandler(chainService chain.Service, scanner ScannerStatus) *Handler {
	return &Handler{
		chainService: chainService,
		scanner:      scanner,
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	chainGroup := router.Group("/chain")
	{
		// 获取支持链列表
		// GET /api/v1/chain/list?is_testnet=false&is_active=true
		chainGroup.GET("/list", h.GetSupportChains)

		// 获取扫链状态
		// GET /api/v1/chain/status
		chainGroup.GET("/status", h.GetScannerStatus)

		// 根据ChainID获取链信息
		// GET /api/v1/chain/chainid/1
		chainGroup.GET("/chainid/:chain_id", h.GetChainByChainID)

		// 获取链当前运行时版本
		// GET /api/v1/chain/chainid/1/version
		chainGroup.GET("/chainid/:chain_id/version", h.GetLatestVersion)
	}
}

// GetSupportChains 获取支持链列表
// @Summary 获取支持链列表
// @Description 获取所有支持的区块链列表，可根据是否测试网和是否激活进行筛选
// @Tags chain
// @Accept json
// @Produce json
// @Param is_testnet query bool false "是否测试网"
// @Param is_active query bool false "是否激活"
// @Success 200 {object} map[string]interface{} "{"code":200,"message":"success","data":{"chains":[...],"total":10}}"
// @Failure 400 {object} map[string]interface{} "{"code":400,"message":"参数错误","data":null}"
// @Failure 500 {object} map[string]interface{} "{"code":500,"message":"服务器内部错误","data":null}"
// @Router /api/v1/chain/list [get]
func (h *Handler) GetSupportChains(c *gin.Context) {
	var req types.GetSupportChainsRequest

	if err := c.ShouldBindQuery(&req); err != nil {
		logger.Error("GetSupportChains BindQuery Error: ", err)
		respond(c, http.StatusBadRequest, "参数错误", nil)
		return
	}

	response, err := h.chainService.GetSupportChains(c.Request.Context(), &req)
	if err != nil {
		logger.Error("GetSupportChains Service Error: ", err)
		respond(c, http.StatusInternalServerError, "服务器内部错误", nil)
		return
	}

	respond(c, http.StatusOK, "success", response)
}

// GetChainByChainID 根据ChainID获取链信息
// @Summary 根据ChainID获取链信息
// @Description 根据区块链的ChainID获取具体的链信息
// @Tags chain
// @Accept json
// @Produce json
// @Param chain_id path int true "区块链ID"
// @Success 200 {object} map[string]interface{} "{"code":200,"message":"success","data":{...}}"
// @Failure 400 {object} map[string]interface{} "{"code":400,"message":"参数错误","data":null}"
// @Failure 404 {object} map[string]interface{} "{"code":404,"message":"链信息不存在","data":null}"
// @Failure 500 {object} map[string]interface{} "{"code":500,"message":"服务器内部错误","data":null}"
// @Router /api/v1/chain/chainid/{chain_id} [get]
func (h *Handler) GetChainByChainID(c *gin.Context) {
	chainID, ok := parseChainID(c)
	if !ok {
		return
	}

	chainInfo, err := h.chainService.GetChainByChainID(c.Request.Context(), chainID)
	if err != nil {
		logger.Error("GetChainByChainID Service Error: ", err, "chain_id", chainID)
		respond(c, http.StatusInternalServerError, "服务器内部错误", nil)
		return
	}
	if chainInfo == nil {
		respond(c, http.StatusNotFound, "链信息不存在", nil)
		return
	}

	respond(c, http.StatusOK, "success", chainInfo)
}

// GetLatestVersion 获取链当前运行时版本
// @Summary 获取链当前运行时版本
// @Description 返回已登记的最新运行时版本及其事件数量
// @Tags chain
// @Produce json
// @Param chain_id path int true "区块链ID"
// @Success 200 {object} map[string]interface{} "{"code":200,"message":"success","data":{...}}"
// @Failure 404 {object} map[string]interface{} "{"code":404,"message":"运行时版本不存在","data":null}"
// @Router /api/v1/chain/chainid/{chain_id}/version [get]
func (h *Handler) GetLatestVersion(c *gin.Context) {
	chainID, ok := parseChainID(c)
	if !ok {
		return
	}

	version, err := h.chainService.GetLatestVersion(c.Request.Context(), chainID)
	if err != nil {
		logger.Error("GetLatestVersion Service Error: ", err, "chain_id", chainID)
		respond(c, http.StatusInternalServerError, "服务器内部错误", nil)
		return
	}
	if version == nil {
		respond(c, http.StatusNotFound, "运行时版本不存在", nil)
		return
	}

	respond(c, http.StatusOK, "success", version)
}

// GetScannerStatus 获取扫链状态
// @Summary 获取扫链状态
// @Description 返回每条链扫描器的进度与落后区块数
// @Tags chain
// @Produce json
// @Success 200 {object} map[string]interface{} "{"code":200,"message":"success","data":[...]}"
// @Router /api/v1/chain/status [get]
func (h *Handler) GetScannerStatus(c *gin.Context) {
	statuses := []scanner.ChainScannerStatus{}
	if h.scanner != nil {
		statuses = h.scanner.GetStatus()
	}
	respond(c, http.StatusOK, "success", statuses)
}

func parseChainID(c *gin.Context) (int64, bool) {
	chainIDStr := c.Param("chain_id")
	chainID, err := strconv.ParseInt(chainIDStr, 10, 64)
	if err != nil {
		logger.Error("ParseChainID Error: ", err, "chain_id", chainIDStr)
		respond(c, http.StatusBadRequest, "参数错误", nil)
		return 0, false
	}
	return chainID, true
}

func respond(c *gin.Context, code int, message string, data interface{}) {
	c.JSON(code, gin.H{
		"code":    code,
		"message": message,
		"data":    data,
	})
}
