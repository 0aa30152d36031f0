package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestAuth(t *testing.T, password string) *AuthService {
	t.Helper()
	a := &AuthService{
		secret:      []byte("test-secret"),
		apiFailures: make(map[string]*apiFailure),
	}
	if password != "" {
		hash, err := a.HashPassword(password)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		a.passwordHash = hash
	}
	return a
}

func authRouter(a *AuthService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/trigger", a.RequireAPIAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestAuthDisabledPassesThrough(t *testing.T) {
	r := authRouter(newTestAuth(t, ""))

	req := httptest.NewRequest(http.MethodPost, "/api/trigger", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("unconfigured auth must be open, got %d", w.Code)
	}
}

func TestAuthRejectsMissingToken(t *testing.T) {
	r := authRouter(newTestAuth(t, "hunter2"))

	req := httptest.NewRequest(http.MethodPost, "/api/trigger", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", w.Code)
	}
}

func TestAuthAcceptsValidToken(t *testing.T) {
	a := newTestAuth(t, "hunter2")
	r := authRouter(a)

	token, err := a.GenerateToken("operator")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/trigger", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("valid token: expected 200, got %d (body %s)", w.Code, w.Body.String())
	}
}

func TestAuthLockoutAfterRepeatedFailures(t *testing.T) {
	a := newTestAuth(t, "hunter2")
	r := authRouter(a)

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/trigger", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		last = httptest.NewRecorder()
		r.ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("third failure must lock out, got %d", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Fatal("lockout response must carry Retry-After")
	}
}

func TestCheckPassword(t *testing.T) {
	a := newTestAuth(t, "hunter2")
	if !a.CheckPassword("hunter2") {
		t.Fatal("correct password rejected")
	}
	if a.CheckPassword("wrong") {
		t.Fatal("wrong password accepted")
	}
}
