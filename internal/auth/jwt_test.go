package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grocery-delivery/internal/domain"
)

func TestIssueAndVerify(t *testing.T) {
	svc := NewJWTService("test-secret")
	tok, err := svc.Issue("U1", RoleAdmin)
	require.NoError(t, err)

	id, err := svc.Verify("Bearer " + tok)
	require.NoError(t, err)
	assert.Equal(t, "U1", id.UserID)
	assert.True(t, id.IsAdmin())
}

func TestVerifyRejects(t *testing.T) {
	svc := NewJWTService("test-secret")
	other := NewJWTService("other-secret")
	foreign, err := other.Issue("U1", "")
	require.NoError(t, err)

	expired := NewJWTService("test-secret")
	expired.now = func() time.Time { return time.Now().Add(-30 * 24 * time.Hour) }
	old, err := expired.Issue("U1", "")
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"wrong secret": foreign,
		"expired":      old,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Verify(tok)
			var aerr domain.AuthenticationError
			assert.True(t, errors.As(err, &aerr), "got %v", err)
		})
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewJWTService("test-secret")
	r := gin.New()
	r.GET("/me", RequireUser(svc), func(c *gin.Context) {
		id, _ := FromContext(c)
		c.String(http.StatusOK, id.UserID)
	})
	r.GET("/admin", RequireUser(svc), RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	customer, _ := svc.Issue("U1", "customer")
	admin, _ := svc.Issue("A1", RoleAdmin)

	tests := []struct {
		path, token string
		want        int
	}{
		{"/me", "", http.StatusUnauthorized},
		{"/me", customer, http.StatusOK},
		{"/admin", customer, http.StatusForbidden},
		{"/admin", admin, http.StatusNoContent},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if tt.token != "" {
			req.Header.Set("Authorization", "Bearer "+tt.token)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equalf(t, tt.want, w.Code, "%s with %q", tt.path, tt.token)
	}
}
