package app

import (
	"school_portal_backend/docs"
	"school_portal_backend/internal/config"
	"school_portal_backend/internal/middleware"
	"school_portal_backend/internal/model"
	"school_portal_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/login", c.auth.Login)
	}

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/auth/me", c.auth.Me)

		// Inbox and live stream, any authenticated role.
		authGroup.GET("/notifications", c.notification.List)
		authGroup.GET("/notifications/unread", c.notification.UnreadCount)
		authGroup.POST("/notifications/:id/read", c.notification.MarkRead)
		authGroup.GET("/notifications/ws", c.notification.Stream)
		authGroup.GET("/notifications/online/:id", c.notification.Online)

		// Report cards are readable by every role; parents and students see
		// only approved results through the service layer.
		authGroup.GET("/results/students/:studentId", c.result.Report)

		teacher := authGroup.Group("/teacher")
		teacher.Use(middleware.RoleMiddleware(model.RoleSubjectTeacher, model.RoleClassTeacher))
		{
			teacher.GET("/scores", c.score.List)
			teacher.POST("/scores/batch", c.score.RecordBatch)
			teacher.POST("/scores/submit", c.score.Submit)

			teacher.GET("/export/broadsheet", c.export.Broadsheet)
			teacher.GET("/export/scoresheet", c.export.BlankSheet)
			teacher.POST("/import/scoresheet", c.export.ImportSheet)
		}

		classTeacher := authGroup.Group("/teacher")
		classTeacher.Use(middleware.RoleMiddleware(model.RoleClassTeacher))
		{
			classTeacher.GET("/results", c.result.ListByClass)
			classTeacher.POST("/results/compile", c.result.Compile)
			classTeacher.POST("/results/:id/submit", c.result.Submit)
		}

		admin := authGroup.Group("/admin")
		admin.Use(middleware.RoleMiddleware(model.RoleAdmin))
		{
			admin.POST("/scores/lock", c.score.Lock)
			admin.POST("/scores/unlock", c.score.Unlock)

			admin.POST("/results/:id/approve", c.result.Approve)
			admin.POST("/results/:id/reject", c.result.Reject)
			admin.POST("/results/:id/revert", c.result.Revert)

			admin.POST("/notifications", c.notification.Announce)
		}
	}
}
