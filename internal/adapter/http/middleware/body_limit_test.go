package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"age-verification-gateway/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func echoRouter(limit int64) *gin.Engine {
	r := gin.New()
	r.Use(MaxBodySize(limit))
	r.POST("/echo", func(c *gin.Context) {
		b, err := io.ReadAll(c.Request.Body)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.String(http.StatusRequestEntityTooLarge, "cut at %d", tooLarge.Limit)
			return
		}
		c.String(http.StatusOK, string(b))
	})
	r.GET("/echo", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestMaxBodySize(t *testing.T) {
	tests := []struct {
		name     string
		limit    int64
		body     string
		wantCode int
	}{
		{"within limit", 1024, `{"amount":"100"}`, http.StatusOK},
		{"exactly at limit", 5, "12345", http.StatusOK},
		{"empty", 16, "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			echoRouter(tt.limit).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.body, w.Body.String())
		})
	}
}

func TestMaxBodySize_DeclaredLengthRejectedUpFront(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(strings.Repeat("A", 100)))

	echoRouter(16).ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, apperror.CodePayloadTooLarge, errorCode(t, w))
}

func TestMaxBodySize_UndeclaredLengthIsCapped(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", io.NopCloser(strings.NewReader(strings.Repeat("A", 100))))
	req.ContentLength = -1

	echoRouter(16).ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "cut at 16", w.Body.String())
}

func TestMaxBodySize_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	echoRouter(16).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/echo", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
