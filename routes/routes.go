package routes

import (
	"context"
	"net/http"
	"strconv"

	"livequiz/handlers"
	"livequiz/metrics"
	"livequiz/middleware"
	"livequiz/models"
	"livequiz/pkg/errors"
	"livequiz/pkg/logger"
	"livequiz/services"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Subscriber resolves who is opening a room channel.
type Subscriber interface {
	Subscriber(ctx context.Context, code string, participantID uint) (*models.Game, string, error)
}

type Options struct {
	JWTSecret      string
	AllowedOrigins []string
	Metrics        *metrics.Metrics
}

func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = true
	}

	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients send no Origin.
			return origin == "" || allowed["*"] || allowed[origin]
		},
	}
}

func SetupRoutes(
	router *gin.Engine,
	gameHandler *handlers.GameHandler,
	hub *services.Hub,
	subscriber Subscriber,
	opts Options,
) {
	hostOnly := middleware.HostAuth(opts.JWTSecret)

	api := router.Group("/api")
	{
		rooms := api.Group("/rooms")
		{
			rooms.GET("", gameHandler.ListRooms)
			rooms.POST("", hostOnly, gameHandler.CreateRoom)

			room := rooms.Group("/:code")
			{
				room.GET("", gameHandler.GetRoom)
				room.GET("/state", gameHandler.GetRoomState)
				room.GET("/leaderboard", gameHandler.GetLeaderboard)
				room.POST("/join", gameHandler.JoinRoom)
				room.POST("/answers", gameHandler.SubmitAnswer)

				room.POST("/start", hostOnly, gameHandler.StartGame)
				room.POST("/next", hostOnly, gameHandler.NextQuestion)
				room.POST("/finish", hostOnly, gameHandler.FinishGame)

				room.GET("/board", gameHandler.GetBoard)
				room.POST("/board/reserve", gameHandler.ReserveCell)
				room.POST("/board/select", gameHandler.SelectQuestion)

				room.GET("/grid/:participantID", gameHandler.GetPlayerGrid)
				room.POST("/words", gameHandler.SubmitWord)
			}
		}
	}

	// Participant 0 subscribes as the host.
	upgrader := newUpgrader(opts.AllowedOrigins)
	router.GET("/ws/:code/:participantID", func(c *gin.Context) {
		participantID, err := strconv.ParseUint(c.Param("participantID"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, handlers.ErrorResponse{
				Error: "invalid participant id",
				Code:  errors.ErrCodeValidationFailed,
			})
			return
		}

		game, displayName, err := subscriber.Subscriber(c.Request.Context(), c.Param("code"), uint(participantID))
		if err != nil {
			c.JSON(errors.HTTPStatus(err), handlers.ErrorResponse{
				Error: errors.MessageOf(err),
				Code:  errors.CodeOf(err),
			})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already written the error response.
			logger.Warn("WebSocket upgrade failed", "room", game.RoomCode, "participant", participantID, "error", err)
			return
		}

		hub.Serve(conn, game.RoomCode, uint(participantID), displayName)
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}
}
