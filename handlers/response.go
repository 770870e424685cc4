package handlers

import (
	"net/http"
	"strconv"

	"livequiz/pkg/errors"
	"livequiz/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondError(c *gin.Context, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "path", c.Request.URL.Path, "error", err)
		c.Error(err)
	}
	c.JSON(status, ErrorResponse{
		Error: errors.MessageOf(err),
		Code:  errors.CodeOf(err),
	})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: err.Error(),
		Code:  errors.ErrCodeValidationFailed,
	})
}

func participantParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("participantID"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "invalid participant id",
			Code:  errors.ErrCodeValidationFailed,
		})
		return 0, false
	}
	return uint(id), true
}
