package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/playmatrix/backend/internal/api/handlers"
	"github.com/playmatrix/backend/internal/config"
	"github.com/playmatrix/backend/internal/crash"
	"github.com/playmatrix/backend/internal/game"
	"github.com/playmatrix/backend/internal/guard"
	"github.com/playmatrix/backend/internal/rooms"
	"github.com/playmatrix/backend/internal/sessions"
	"github.com/playmatrix/backend/internal/ws"
)

// Services bundles the wired domain services for route setup.
type Services struct {
	Sessions *sessions.Service
	Rooms    *rooms.Service
	Crash    *crash.Service
	Guard    *guard.Guard
	Feed     *ws.Feed
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, db *sqlx.DB, svcs *Services, cfg *config.Config) {
	// CORS middleware for the web client
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Header("Pragma", "no-cache")
			c.Header("Expires", "0")
			c.Next()
		})
		log.Println("[DEV MODE] Aggressive no-cache headers enabled for all routes")
	}

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)
		v1.POST("/auth/bootstrap", handlers.Bootstrap(db, cfg))

		// Public round feed; carries only what every player may see.
		v1.GET("/crash/ws", svcs.Feed.Handler())

		authed := v1.Group("")
		authed.Use(handlers.AuthMiddleware(cfg))
		{
			authed.GET("/me", handlers.GetMe(db))

			// Single-subject games
			for _, kind := range []game.Kind{game.KindBlackjack, game.KindMines} {
				grp := authed.Group("/" + string(kind))
				grp.POST("/start", handlers.StartGame(svcs.Sessions, svcs.Guard, kind))
				grp.POST("/action", handlers.GameAction(svcs.Sessions, svcs.Guard, kind))
				grp.GET("/state", handlers.GameState(svcs.Sessions, kind))
			}
			// Voluntary cashout exists only for the reveal game.
			authed.POST("/mines/cashout", handlers.GameCashout(svcs.Sessions, svcs.Guard, game.KindMines))

			// Shared crash round
			cr := authed.Group("/crash")
			{
				cr.GET("/state", handlers.CrashState(svcs.Crash))
				cr.POST("/bet", handlers.CrashBet(svcs.Crash, svcs.Guard))
				cr.POST("/cashout", handlers.CrashCashout(svcs.Crash, svcs.Guard))
				cr.GET("/verify/:roundId", handlers.CrashVerify(svcs.Crash))
			}

			// Two-party rooms
			for _, kind := range []game.Kind{game.KindConquest, game.KindPisti} {
				grp := authed.Group("/" + string(kind))
				grp.GET("/rooms", handlers.ListRooms(svcs.Rooms, kind))
				grp.POST("/create", handlers.CreateRoom(svcs.Rooms, kind))
				grp.POST("/join", handlers.JoinRoom(svcs.Rooms))
				grp.POST("/leave", handlers.LeaveRoom(svcs.Rooms))
				grp.POST("/heartbeat", handlers.RoomHeartbeat(svcs.Rooms))
				grp.GET("/state/:roomId", handlers.RoomState(svcs.Rooms))
			}
			authed.POST("/conquest/click", handlers.ConquestClick(svcs.Rooms, svcs.Guard))
			authed.POST("/pisti/play", handlers.PistiPlay(svcs.Rooms, svcs.Guard))
			authed.POST("/pisti/settle", handlers.RoomSettle(svcs.Rooms))
		}
	}
}
