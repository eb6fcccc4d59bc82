// README: Base handler utilities (JSON helpers, error mapping, paging params).
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fleetdesk/internal/domain"
	"fleetdesk/internal/http/middleware"
	"fleetdesk/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

const maxListLimit = 500

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeDomainError maps error categories to status codes. Anything
// uncategorised is logged by the logging middleware and hidden from the client.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrPreconditionFailed):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// bindJSON decodes the request body into v and answers 400 on failure.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json: "+err.Error())
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON for endpoints whose body may be empty.
func bindOptionalJSON(c *gin.Context, v any) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	return bindJSON(c, v)
}

func pathID(c *gin.Context, name string) types.ID {
	return types.ID(c.Param(name))
}

func actor(c *gin.Context) string {
	return middleware.CallerUID(c)
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrBadRequest, name)
	}
	return n, nil
}

func queryLimit(c *gin.Context) (int, error) {
	n, err := queryInt(c, "limit")
	if err != nil {
		return 0, err
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}

func queryFloat(c *gin.Context, name string) (float64, bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s must be a number", domain.ErrBadRequest, name)
	}
	return f, true, nil
}
