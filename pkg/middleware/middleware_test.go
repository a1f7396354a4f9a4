package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/logistics-platform/booking-dashboard/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestSessionResolution(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		wantToken  string
		wantPrefix string
		wantExact  string
	}{
		{
			name:      "explicit session header",
			headers:   map[string]string{HeaderSessionID: "abc", HeaderAuthorization: "Bearer tkn"},
			wantToken: "tkn",
			wantExact: "abc",
		},
		{
			name:       "token digest",
			headers:    map[string]string{HeaderAuthorization: "bearer tkn"},
			wantToken:  "tkn",
			wantPrefix: "tok-",
		},
		{
			name:      "anonymous",
			headers:   map[string]string{},
			wantExact: AnonymousSession,
		},
		{
			name:      "non bearer scheme",
			headers:   map[string]string{HeaderAuthorization: "Basic Zm9vOmJhcg=="},
			wantExact: AnonymousSession,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(Session())

			var gotSession, gotToken string
			router.GET("/", func(c *gin.Context) {
				gotSession = GetSessionID(c)
				gotToken = GetBearerToken(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			router.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.wantToken, gotToken)
			if tt.wantExact != "" {
				assert.Equal(t, tt.wantExact, gotSession)
			} else {
				assert.Contains(t, gotSession, tt.wantPrefix)
				assert.NotContains(t, gotSession, "tkn")
			}
		})
	}
}

func TestErrorHandlerRendersAppError(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), ErrorHandler(testLogger()))
	router.GET("/boom", func(c *gin.Context) {
		_ = c.Error(apperrors.ErrValidation("bad filter"))
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, apperrors.CodeValidationError, body.Code)
	assert.Equal(t, "bad filter", body.Message)
	assert.NotEmpty(t, body.RequestID)
	assert.Equal(t, "/boom", body.Path)
}

func TestRecoveryReturnsInternalError(t *testing.T) {
	router := gin.New()
	router.Use(Recovery(testLogger()))
	router.GET("/panic", func(c *gin.Context) {
		panic("unexpected")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), apperrors.CodeInternalError)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc.def", BearerToken("Bearer abc.def"))
	assert.Equal(t, "abc", BearerToken("  BEARER   abc "))
	assert.Equal(t, "", BearerToken("Bearer"))
	assert.Equal(t, "", BearerToken(""))
}

func TestSetupCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		method     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{
			name:       "preflight from allowed origin",
			origins:    []string{"http://localhost:3000"},
			method:     http.MethodOptions,
			origin:     "http://localhost:3000",
			wantStatus: http.StatusNoContent,
			wantAllow:  "http://localhost:3000",
		},
		{
			name:       "request from allowed origin",
			origins:    []string{"http://localhost:3000"},
			method:     http.MethodGet,
			origin:     "http://localhost:3000",
			wantStatus: http.StatusOK,
			wantAllow:  "http://localhost:3000",
		},
		{
			name:       "unknown origin",
			origins:    []string{"http://localhost:3000"},
			method:     http.MethodGet,
			origin:     "https://elsewhere.example.com",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "cors disabled",
			method:     http.MethodGet,
			origin:     "http://localhost:3000",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			config := DefaultConfig("booking-dashboard", testLogger())
			config.AllowedOrigins = tt.origins
			Setup(router, config)
			router.GET("/dashboards/admin", func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, "/dashboards/admin", nil)
			req.Header.Set("Origin", tt.origin)
			if tt.method == http.MethodOptions {
				req.Header.Set("Access-Control-Request-Method", http.MethodGet)
				req.Header.Set("Access-Control-Request-Headers", HeaderSessionID)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantAllow, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
