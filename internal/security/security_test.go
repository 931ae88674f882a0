package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(sm *SecurityMiddleware) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sm.SecurityHeaders)
	r.Use(sm.ValidateContentType)
	r.POST("/assess", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/applicants/:id/gamification", sm.RequireApplicantID, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	return r
}

func TestValidateApplicantID(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())

	valid := []string{"applicant-1", "a", "user_42", "APP.2024.001"}
	for _, id := range valid {
		assert.NoError(t, sm.ValidateApplicantID(id), "expected %q to be valid", id)
	}

	invalid := []string{
		"",
		"-leading-dash",
		"trailing-dash-",
		"double--dash",
		"dot..dot",
		"has space",
		"null\x00byte",
		strings.Repeat("a", 80),
	}
	for _, id := range invalid {
		assert.Error(t, sm.ValidateApplicantID(id), "expected %q to be rejected", id)
	}
}

func TestRequireApplicantIDMiddleware(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())
	r := newTestRouter(sm)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/applicants/applicant-1/gamification", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/applicants/bad--id/gamification", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSecurityHeaders(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())
	r := newTestRouter(sm)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/assess", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))
}

func TestValidateContentType(t *testing.T) {
	sm := NewSecurityMiddleware(DefaultSecurityConfig())
	r := newTestRouter(sm)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/assess", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/xml")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	// GET requests are not content-type checked
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/applicants/applicant-1/gamification", nil)
	req.Header.Set("Content-Type", "text/xml")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
