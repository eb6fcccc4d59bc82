// README: Handler tests for error mapping and request binding.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"fleetdesk/internal/domain"
)

func TestWriteDomainError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		err     error
		want    int
		message string
	}{
		{fmt.Errorf("%w: order O1", domain.ErrOrderNotFound), http.StatusNotFound, "order not found: order O1"},
		{fmt.Errorf("%w: quantity", domain.ErrBadRequest), http.StatusBadRequest, "bad request: quantity"},
		{domain.ErrInsufficientStock, http.StatusUnprocessableEntity, "insufficient stock"},
		{domain.ErrAlreadyAssigned, http.StatusConflict, "order already assigned to another driver"},
		{domain.ErrDuplicate, http.StatusConflict, "already exists"},
		{errors.New("connection reset by peer"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		writeDomainError(c, tc.err)
		if w.Code != tc.want {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.want, w.Code)
		}
		var body errorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Error != tc.message {
			t.Errorf("%v: expected message %q, got %q", tc.err, tc.message, body.Error)
		}
	}
}

func TestBindOptionalJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var v struct {
		Reason string `json:"reason"`
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	if !bindOptionalJSON(c, &v) {
		t.Fatal("empty body should be accepted")
	}

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	if bindOptionalJSON(c, &v) || w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: expected 400, got %d", w.Code)
	}
}

func TestQueryLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	for raw, want := range map[string]int{"": 0, "25": 25, "100000": maxListLimit} {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/?limit="+raw, nil)
		got, err := queryLimit(c)
		if err != nil || got != want {
			t.Errorf("limit=%q: got %d (%v), want %d", raw, got, err, want)
		}
	}
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?limit=-1", nil)
	if _, err := queryLimit(c); !errors.Is(err, domain.ErrBadRequest) {
		t.Fatalf("negative limit: expected ErrBadRequest, got %v", err)
	}
}
