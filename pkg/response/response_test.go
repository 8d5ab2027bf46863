package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	appErrors "github.com/bams-platform/bams-api/pkg/errors"
	"github.com/bams-platform/bams-api/pkg/middleware/requestid"
)

func serve(t *testing.T, handler gin.HandlerFunc) map[string]interface{} {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.GET("/", handler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestJSONCarriesRequestID(t *testing.T) {
	body := serve(t, func(c *gin.Context) {
		JSON(c, http.StatusOK, gin.H{"ok": true}, nil)
	})
	meta, ok := body["meta"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "req-42", meta["request_id"])
}

func TestJSONKeepsCallerMeta(t *testing.T) {
	body := serve(t, func(c *gin.Context) {
		JSON(c, http.StatusOK, nil, nil, map[string]interface{}{"cache_hit": true})
	})
	meta, ok := body["meta"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, true, meta["cache_hit"])
	require.Equal(t, "req-42", meta["request_id"])
}

func TestErrorCarriesRequestID(t *testing.T) {
	body := serve(t, func(c *gin.Context) {
		Error(c, appErrors.ErrNotFound)
	})
	errBody, ok := body["error"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "NOT_FOUND", errBody["code"])
	meta, ok := body["meta"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "req-42", meta["request_id"])
}
