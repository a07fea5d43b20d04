package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"csesa-backend/internal/core/auth"
	"csesa-backend/internal/domain"
	"csesa-backend/internal/feature/access"
	resp "csesa-backend/internal/transport/http/response"
)

func init() { gin.SetMode(gin.TestMode) }

func testJWTer() *auth.JWTer {
	return &auth.JWTer{Secret: []byte("0123456789abcdef0123"), Issuer: "csesa-test", TTL: time.Minute}
}

func do(r *gin.Engine, method, path, token string) (*httptest.ResponseRecorder, resp.Resp) {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out resp.Resp
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func whoami(c *gin.Context) {
	p := PrincipalOf(c)
	if p == nil {
		c.JSON(http.StatusOK, resp.OK(gin.H{"anon": true}))
		return
	}
	c.JSON(http.StatusOK, resp.OK(gin.H{"uid": c.GetString(KeyUserID), "role": c.GetString(KeyRole)}))
}

func TestAuthJWT(t *testing.T) {
	j := testJWTer()
	r := gin.New()
	r.GET("/any", AuthJWT(j, nil, ""), whoami)
	r.GET("/pres", AuthJWT(j, nil, domain.RolePresident), whoami)

	_, out := do(r, http.MethodGet, "/any", "")
	assert.Equal(t, resp.CodeUnauthorized, out.Code)
	_, out = do(r, http.MethodGet, "/any", "garbage")
	assert.Equal(t, resp.CodeUnauthorized, out.Code)

	member, err := j.IssuePair(auth.Subject{UID: "u1", Role: string(domain.RoleAssociate)})
	require.NoError(t, err)
	_, out = do(r, http.MethodGet, "/any", member.Access)
	assert.Equal(t, resp.CodeOK, out.Code)
	assert.Equal(t, map[string]any{"uid": "u1", "role": "ASSOCIATE"}, out.Data)

	// refresh token 不能当 access 用
	_, out = do(r, http.MethodGet, "/any", member.Refresh)
	assert.Equal(t, resp.CodeUnauthorized, out.Code)

	_, out = do(r, http.MethodGet, "/pres", member.Access)
	assert.Equal(t, resp.CodeForbidden, out.Code)

	admin, err := j.IssuePair(auth.Subject{UID: "u2", Role: string(domain.RoleCoordinator), Admin: true})
	require.NoError(t, err)
	_, out = do(r, http.MethodGet, "/pres", admin.Access)
	assert.Equal(t, resp.CodeOK, out.Code)
}

func TestAuthJWT_LoaderRejectsDisabledAccount(t *testing.T) {
	j := testJWTer()
	load := func(_ context.Context, uid string) (*access.Principal, *domain.User, error) {
		if uid == "gone" {
			return nil, nil, domain.NewError(domain.KindInvalidToken, "account is disabled or no longer exists")
		}
		u := &domain.User{ID: uid, Role: domain.RolePresident, IsActive: true}
		return &access.Principal{UserID: uid, Role: u.Role}, u, nil
	}
	r := gin.New()
	r.GET("/me", AuthJWT(j, load, ""), func(c *gin.Context) {
		c.JSON(http.StatusOK, resp.OK(gin.H{"id": UserOf(c).ID}))
	})

	// 角色以库里的为准，不信任 token 中的旧角色
	tok, err := j.IssuePair(auth.Subject{UID: "u1", Role: string(domain.RoleAssociate)})
	require.NoError(t, err)
	_, out := do(r, http.MethodGet, "/me", tok.Access)
	assert.Equal(t, resp.CodeOK, out.Code)
	assert.Equal(t, map[string]any{"id": "u1"}, out.Data)

	tok, err = j.IssuePair(auth.Subject{UID: "gone"})
	require.NoError(t, err)
	_, out = do(r, http.MethodGet, "/me", tok.Access)
	assert.Equal(t, resp.CodeUnauthorized, out.Code)
	assert.Equal(t, map[string]any{"kind": "invalid_token"}, out.Data)
}

func TestOptionalAuth(t *testing.T) {
	j := testJWTer()
	r := gin.New()
	r.GET("/x", OptionalAuth(j, nil), whoami)

	_, out := do(r, http.MethodGet, "/x", "")
	assert.Equal(t, resp.CodeOK, out.Code)
	assert.Equal(t, map[string]any{"anon": true}, out.Data)

	// 带了无效 token 不降级为匿名
	_, out = do(r, http.MethodGet, "/x", "garbage")
	assert.Equal(t, resp.CodeUnauthorized, out.Code)

	tok, err := j.IssuePair(auth.Subject{UID: "u1", Role: string(domain.RoleCoordinator)})
	require.NoError(t, err)
	_, out = do(r, http.MethodGet, "/x", tok.Access)
	assert.Equal(t, map[string]any{"uid": "u1", "role": "COORDINATOR"}, out.Data)
}

func TestRateLimitPerIP(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitPerIP(0.001, 2, time.Minute))
	r.GET("/x", func(c *gin.Context) { c.JSON(http.StatusOK, resp.OK(nil)) })

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var out resp.Resp
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
		return out.Code
	}
	assert.Equal(t, resp.CodeOK, hit("10.0.0.1"))
	assert.Equal(t, resp.CodeOK, hit("10.0.0.1"))
	assert.Equal(t, resp.CodeTooMany, hit("10.0.0.1"))
	// 其他 IP 不受影响
	assert.Equal(t, resp.CodeOK, hit("10.0.0.2"))
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zap.NewNop()))
	r.GET("/boom", func(*gin.Context) { panic("kaboom") })

	w, out := do(r, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, resp.CodeServerError, out.Code)
	assert.Equal(t, "internal error", out.Msg)
	assert.NotEmpty(t, w.Header().Get(KeyRequestID))
}

func TestRequestIDPropagates(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(KeyRequestID)) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(KeyRequestID, "rid-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "rid-1", w.Body.String())
	assert.Equal(t, "rid-1", w.Header().Get(KeyRequestID))
}
