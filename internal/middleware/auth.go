package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"secret_santa/internal/utils"
)

const (
	ContextParticipantID = "participantID"
	ContextRole          = "role"
)

// AuthMiddleware 是一個 Gin 中間件，用於驗證請求的 JWT token
// 瀏覽器的 WebSocket 無法帶 header，所以也接受 ?token= 參數
func AuthMiddleware(tokens *utils.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")

		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			// 檢查 Authorization 頭的格式
			parts := strings.SplitN(authHeader, " ", 2)
			if !(len(parts) == 2 && parts[0] == "Bearer") {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "Authorization header format must be Bearer {token}",
					"code":  "unauthorized",
				})
				return
			}
			token = parts[1]
		}

		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header is required",
				"code":  "unauthorized",
			})
			return
		}

		claims, err := tokens.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
				"code":  "unauthorized",
			})
			return
		}

		c.Set(ContextParticipantID, claims.ParticipantID)
		c.Set(ContextRole, claims.Role)
		c.Next()
	}
}

// ParticipantMiddleware 只允許參與者的 token，管理員沒有自己的抽籤
func ParticipantMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRole) != utils.RoleParticipant {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "participant access required",
				"code":  "forbidden",
			})
			return
		}
		c.Next()
	}
}

// AdminMiddleware 必須放在 AuthMiddleware 之後
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRole) != utils.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "admin access required",
				"code":  "forbidden",
			})
			return
		}
		c.Next()
	}
}
