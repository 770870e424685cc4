package handlers

import (
	"context"
	"net/http"

	"livequiz/models"
	"livequiz/services"

	"github.com/gin-gonic/gin"
)

// GameService is the part of services.GameService the HTTP surface uses.
type GameService interface {
	CreateRoom(ctx context.Context, req *services.CreateRoomRequest) (*services.CreateRoomResult, error)
	ListRooms(ctx context.Context) ([]services.RoomSummary, error)
	GetRoom(ctx context.Context, code string) (*services.RoomDetail, error)
	GetRoomState(ctx context.Context, code string) (*services.RoomSnapshot, error)
	Join(ctx context.Context, code string, req *services.JoinRequest) (*services.JoinResult, error)
	Start(ctx context.Context, code string) (*models.Game, error)
	Next(ctx context.Context, code string) (*services.NextResult, error)
	Finish(ctx context.Context, code string) (*services.FinishResult, error)
	SubmitAnswer(ctx context.Context, code string, req *services.SubmitAnswerRequest) (*services.AnswerResult, error)
	Leaderboard(ctx context.Context, code string) ([]services.LeaderboardEntry, error)
	GetBoard(ctx context.Context, code string) (*services.BoardView, error)
	ReserveCell(ctx context.Context, code string, req *services.ReserveCellRequest) (*services.DrawResult, error)
	SelectQuestion(ctx context.Context, code string, req *services.SelectQuestionRequest) (*services.DrawResult, error)
	GetPlayerGrid(ctx context.Context, code string, participantID uint) (*services.GridView, error)
	SubmitWord(ctx context.Context, code string, req *services.SubmitWordRequest) (*services.WordSubmission, error)
}

type GameHandler struct {
	gameService GameService
}

func NewGameHandler(gameService GameService) *GameHandler {
	return &GameHandler{gameService: gameService}
}

func (h *GameHandler) CreateRoom(c *gin.Context) {
	var req services.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.gameService.CreateRoom(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *GameHandler) ListRooms(c *gin.Context) {
	rooms, err := h.gameService.ListRooms(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (h *GameHandler) GetRoom(c *gin.Context) {
	room, err := h.gameService.GetRoom(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

// GetRoomState is the polling fallback for clients that missed broadcasts.
func (h *GameHandler) GetRoomState(c *gin.Context) {
	state, err := h.gameService.GetRoomState(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

func (h *GameHandler) JoinRoom(c *gin.Context) {
	var req services.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.gameService.Join(c.Request.Context(), c.Param("code"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Rejoined {
		status = http.StatusOK
	}
	c.JSON(status, result)
}

func (h *GameHandler) StartGame(c *gin.Context) {
	game, err := h.gameService.Start(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, game)
}

func (h *GameHandler) NextQuestion(c *gin.Context) {
	result, err := h.gameService.Next(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *GameHandler) FinishGame(c *gin.Context) {
	result, err := h.gameService.Finish(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *GameHandler) SubmitAnswer(c *gin.Context) {
	var req services.SubmitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.gameService.SubmitAnswer(c.Request.Context(), c.Param("code"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *GameHandler) GetLeaderboard(c *gin.Context) {
	leaderboard, err := h.gameService.Leaderboard(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"leaderboard": leaderboard})
}
