package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/hirevox/hirevox/internal/api/handlers"
	"github.com/hirevox/hirevox/internal/api/middleware"
)

type Deps struct {
	Interview *handlers.InterviewHandler
	Voice     *handlers.VoiceHandler
	WS        *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth())

	auth.POST("/interview", d.Interview.Create)
	auth.GET("/interview/:session_id", d.Interview.Get)
	auth.POST("/interview/:session_id/start", d.Interview.Start)
	auth.GET("/interview/:session_id/next", d.Interview.NextQuestion)
	auth.POST("/interview/:session_id/answer", d.Interview.SubmitAnswer)
	auth.POST("/interview/:session_id/cancel", d.Interview.Cancel)
	auth.DELETE("/interview/:session_id", d.Interview.Delete)

	auth.POST("/interview/:session_id/turn", d.Voice.ProcessTurn)
	auth.GET("/interview/:session_id/turns", d.Voice.ListTurns)

	// WebSocket
	auth.GET("/ws/interview/:session_id", d.WS.SessionWS)
}
