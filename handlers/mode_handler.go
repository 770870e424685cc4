package handlers

import (
	"net/http"

	"livequiz/services"

	"github.com/gin-gonic/gin"
)

// Board-select

func (h *GameHandler) GetBoard(c *gin.Context) {
	board, err := h.gameService.GetBoard(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, board)
}

func (h *GameHandler) ReserveCell(c *gin.Context) {
	var req services.ReserveCellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.gameService.ReserveCell(c.Request.Context(), c.Param("code"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *GameHandler) SelectQuestion(c *gin.Context) {
	var req services.SelectQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.gameService.SelectQuestion(c.Request.Context(), c.Param("code"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Word-search

func (h *GameHandler) GetPlayerGrid(c *gin.Context) {
	participantID, ok := participantParam(c)
	if !ok {
		return
	}

	grid, err := h.gameService.GetPlayerGrid(c.Request.Context(), c.Param("code"), participantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, grid)
}

func (h *GameHandler) SubmitWord(c *gin.Context) {
	var req services.SubmitWordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.gameService.SubmitWord(c.Request.Context(), c.Param("code"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
