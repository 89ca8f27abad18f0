package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"exam_platform_backend/internal/config"
	"exam_platform_backend/internal/model"
	"exam_platform_backend/internal/util"

	"github.com/gin-gonic/gin"
)

const testSecret = "test-secret-test-secret-test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeGuard serves accounts from memory in place of the user service.
type fakeGuard struct {
	users map[uint]*model.User
}

func (g *fakeGuard) ActiveUser(id uint) (*model.User, error) {
	user, ok := g.users[id]
	if !ok {
		return nil, util.ErrUserNotFound
	}
	return user, nil
}

func guardWith(users ...*model.User) *fakeGuard {
	g := &fakeGuard{users: make(map[uint]*model.User, len(users))}
	for _, u := range users {
		g.users[u.ID] = u
	}
	return g
}

func testCfg() *config.Config {
	cfg := &config.Config{}
	cfg.JWT.Secret = testSecret
	cfg.JWT.ExpireTime = time.Hour
	return cfg
}

func account(id uint, role model.UserRole, active bool) *model.User {
	user := &model.User{
		Email:    "user@exam.test",
		FullName: "User",
		Role:     role,
		IsActive: active,
	}
	user.ID = id
	return user
}

func token(t *testing.T, user *model.User) string {
	t.Helper()
	signed, err := util.GenerateJWT(user, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	return signed
}

// protected mounts the middleware in front of a handler echoing the claims.
func protected(cfg *config.Config, guard UserGuard, extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	handlers := append([]gin.HandlerFunc{AuthMiddleware(cfg, guard)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		claims := util.GetUserFromContext(c)
		c.JSON(http.StatusOK, gin.H{"user_id": claims.UserID, "role": claims.Role})
	})
	router.GET("/guarded", handlers...)
	return router
}

func get(router *gin.Engine, target, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareAcceptsBearerToken(t *testing.T) {
	student := account(1, model.Student, true)
	router := protected(testCfg(), guardWith(student))

	w := get(router, "/guarded", "Bearer "+token(t, student))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestAuthMiddlewareAcceptsQueryToken(t *testing.T) {
	// Websocket upgrades cannot carry headers, the token rides the query.
	student := account(1, model.Student, true)
	router := protected(testCfg(), guardWith(student))

	w := get(router, "/guarded?token="+token(t, student), "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestAuthMiddlewareRejections(t *testing.T) {
	student := account(1, model.Student, true)
	disabled := account(2, model.Student, false)
	router := protected(testCfg(), guardWith(student, disabled))

	foreign, err := util.GenerateJWT(student, "another-secret-another-secret-123", time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	ghost := account(99, model.Student, true)

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"malformed token", "Bearer not-a-token", http.StatusUnauthorized},
		{"foreign signature", "Bearer " + foreign, http.StatusUnauthorized},
		{"deleted account", "Bearer " + token(t, ghost), http.StatusUnauthorized},
		{"disabled account", "Bearer " + token(t, disabled), http.StatusForbidden},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := get(router, "/guarded", c.header)
			if w.Code != c.want {
				t.Errorf("status = %d, want %d", w.Code, c.want)
			}
		})
	}
}

func TestAuthMiddlewarePrefersStoredRole(t *testing.T) {
	// Token minted as student, account promoted since: the stored role wins.
	asStudent := account(1, model.Student, true)
	router := protected(testCfg(), guardWith(account(1, model.Invigilator, true)),
		RoleMiddleware(model.Invigilator))

	w := get(router, "/guarded", "Bearer "+token(t, asStudent))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestRoleMiddleware(t *testing.T) {
	cfg := testCfg()
	student := account(1, model.Student, true)
	staff := account(2, model.Invigilator, true)
	admin := account(3, model.Admin, true)
	guard := guardWith(student, staff, admin)

	router := protected(cfg, guard, RoleMiddleware(model.Invigilator))

	cases := []struct {
		name string
		user *model.User
		want int
	}{
		{"matching role", staff, http.StatusOK},
		{"admin passes every gate", admin, http.StatusOK},
		{"student denied", student, http.StatusForbidden},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := get(router, "/guarded", "Bearer "+token(t, c.user))
			if w.Code != c.want {
				t.Errorf("status = %d, want %d", w.Code, c.want)
			}
		})
	}
}

func TestRoleMiddlewareWithoutClaims(t *testing.T) {
	router := gin.New()
	router.GET("/guarded", RoleMiddleware(model.Student), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := get(router, "/guarded", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
