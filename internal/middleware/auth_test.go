package middleware

import (
	"kmms_simulator/internal/util"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "middleware-test-secret-0123456789abcdef"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", SessionMiddleware(secret), func(c *gin.Context) {
		c.String(http.StatusOK, util.GetSessionIDFromContext(c))
	})
	return r
}

func TestSessionMiddleware_TokenSources(t *testing.T) {
	token, err := util.GenerateSessionToken("sess-42", secret, time.Hour)
	require.NoError(t, err)
	r := newRouter()

	requests := map[string]func(*http.Request){
		"bearer": func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) },
		"header": func(req *http.Request) { req.Header.Set(SessionHeader, token) },
		"query": func(req *http.Request) {
			q := req.URL.Query()
			q.Set("token", token)
			req.URL.RawQuery = q.Encode()
		},
	}

	for name, decorate := range requests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			decorate(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "sess-42", w.Body.String())
		})
	}
}

func TestSessionMiddleware_Rejects(t *testing.T) {
	r := newRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	forged, err := util.GenerateSessionToken("sess-42", "another-secret-0123456789abcdefghij", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
