package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"secret_santa/internal/api/handlers"
	"secret_santa/internal/middleware"
	"secret_santa/internal/service"
	"secret_santa/internal/utils"
	"secret_santa/pkg/config"
)

func SetupRoutes(r *gin.Engine, services *service.Services, tokens *utils.TokenManager, cfg *config.Config) {
	// 初始化 handlers
	authHandler := handlers.NewAuthHandler(services.Auth, tokens)
	drawHandler := handlers.NewDrawHandler(services.Draw)
	wsHandler := handlers.NewWebSocketHandler(services.Draw, services.Events)
	adminHandler := handlers.NewAdminHandler(services.Admin)
	qrHandler := handlers.NewQRHandler(cfg.Server.PublicURL)

	// API 路由群組
	api := r.Group("/api")

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "route not found",
			"code":  "not_found",
		})
	})

	// 公開路由
	{
		api.POST("/login", authHandler.Login)
		api.GET("/qr", qrHandler.Get)

		// 基本的健康檢查
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})
	}

	// 參與者路由
	participant := api.Group("/")
	participant.Use(middleware.AuthMiddleware(tokens), middleware.ParticipantMiddleware())
	{
		participant.GET("/me", drawHandler.Me)
		participant.GET("/draw", drawHandler.GetDrawState)
		participant.POST("/draw", drawHandler.PerformDraw)
		participant.GET("/draw/reveal", wsHandler.HandleReveal) // WebSocket 抽籤動畫
	}

	// 參與者與管理員都可以訂閱名單變動
	api.GET("/events", middleware.AuthMiddleware(tokens), wsHandler.HandleEvents)

	// 管理員路由
	admin := api.Group("/admin")
	admin.Use(middleware.AuthMiddleware(tokens), middleware.AdminMiddleware())
	{
		admin.GET("/participants", adminHandler.ListParticipants)
		admin.POST("/participants", adminHandler.AddParticipant)
		admin.DELETE("/participants/:id", adminHandler.DeleteParticipant)
		admin.GET("/assignments", adminHandler.ListAssignments)
		admin.GET("/summary", adminHandler.Summary)
		admin.POST("/reset", adminHandler.Reset)
	}
}
