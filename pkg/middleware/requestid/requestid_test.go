package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func performRequest(header string) (*httptest.ResponseRecorder, string) {
	gin.SetMode(gin.TestMode)
	var captured string
	r := gin.New()
	r.Use(Middleware())
	r.GET("/", func(c *gin.Context) {
		captured = Value(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("X-Request-ID", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w, captured
}

func TestRequestIDGenerated(t *testing.T) {
	w, captured := performRequest("")
	require.NotEmpty(t, captured)
	_, err := uuid.Parse(captured)
	require.NoError(t, err)
	require.Equal(t, captured, w.Header().Get("X-Request-ID"))
}

func TestRequestIDInboundPreserved(t *testing.T) {
	w, captured := performRequest("gateway-7")
	require.Equal(t, "gateway-7", captured)
	require.Equal(t, "gateway-7", w.Header().Get("X-Request-ID"))
}
