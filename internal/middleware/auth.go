package middleware

import (
	"errors"
	"net/http"
	"strings"

	"chainflow-backend/internal/types"
	"chainflow-backend/pkg/logger"
	"chainflow-backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

const (
	contextUserIDKey        = "user_id"
	contextWalletAddressKey = "wallet_address"
)

// TokenValidator 访问令牌校验
type TokenValidator interface {
	ValidateAccessToken(tokenString string) (*types.JWTClaims, error)
}

// AuthMiddleware JWT认证中间件
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortUnauthorized(c, "MISSING_TOKEN", "Authorization header is required")
			return
		}

		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(tokenString) == "" {
			abortUnauthorized(c, "INVALID_TOKEN_FORMAT", "Authorization header must be a Bearer token")
			return
		}

		claims, err := validator.ValidateAccessToken(strings.TrimSpace(tokenString))
		if err != nil {
			logger.Warn("Rejected access token", "path", c.FullPath(), "error", err.Error())
			if errors.Is(err, utils.ErrExpiredToken) {
				abortUnauthorized(c, "TOKEN_EXPIRED", "Access token has expired")
				return
			}
			abortUnauthorized(c, "INVALID_TOKEN", "Invalid access token")
			return
		}

		c.Set(contextUserIDKey, claims.UserID)
		c.Set(contextWalletAddressKey, claims.WalletAddress)
		c.Next()
	}
}

// GetUserFromContext 从上下文获取当前用户
func GetUserFromContext(c *gin.Context) (int64, string, bool) {
	userID, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0, "", false
	}
	walletAddress, ok := c.Get(contextWalletAddressKey)
	if !ok {
		return 0, "", false
	}

	id, idOK := userID.(int64)
	address, addrOK := walletAddress.(string)
	if !idOK || !addrOK {
		return 0, "", false
	}
	return id, address, true
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, types.APIResponse{
		Success: false,
		Error: &types.APIError{
			Code:    code,
			Message: message,
		},
	})
}
