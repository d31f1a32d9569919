package http

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/avelin/quickmeet/internal/api/ws"
)

func SetupRouter(authController *AuthController, roomController *RoomController, wsController *ws.Controller, allowedOrigins []string) *gin.Engine {
	router := gin.Default()

	config := cors.DefaultConfig()
	config.AllowOrigins = allowedOrigins
	config.AllowCredentials = true
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	router.Use(cors.New(config))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	auth := api.Group("/auth")
	auth.POST("/signup", authController.Signup)
	auth.POST("/login", authController.Login)

	rooms := api.Group("/room")
	rooms.Use(authController.RequireAuth)
	rooms.POST("/create", roomController.CreateRoom)
	rooms.POST("/join", roomController.JoinRoom)

	router.GET("/ws", wsController.Handle)

	return router
}
