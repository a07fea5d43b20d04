package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"csesa-backend/internal/core/auth"
	"csesa-backend/internal/core/cache"
	"csesa-backend/internal/domain"
	"csesa-backend/internal/feature/content"
	"csesa-backend/internal/feature/identity"
	"csesa-backend/internal/feature/oauth"
	"csesa-backend/internal/feature/taxonomy"
	"csesa-backend/internal/repo"
	"csesa-backend/internal/service"
	"csesa-backend/internal/testutil"
	"csesa-backend/internal/transport/http/handler"
	resp "csesa-backend/internal/transport/http/response"
	"csesa-backend/internal/transport/http/router"
)

func init() { gin.SetMode(gin.TestMode) }

// fakeGoogle: ID token 形如 "id:<email>"，授权码即邮箱
type fakeGoogle struct{}

func (fakeGoogle) AuthURL(state, redirectURI string) string {
	return "https://accounts.example/auth?state=" + state + "&redirect_uri=" + redirectURI
}

func (fakeGoogle) Exchange(_ context.Context, code, _ string) (string, error) {
	if code == "bad" {
		return "", domain.NewError(domain.KindInvalidToken, "authorization code rejected")
	}
	return "id:" + code, nil
}

func (fakeGoogle) Verify(_ context.Context, raw string) (*oauth.Claims, error) {
	email, ok := strings.CutPrefix(raw, "id:")
	if !ok {
		return nil, domain.ErrInvalidToken
	}
	return &oauth.Claims{Email: email, EmailVerified: true, Name: "Test Member"}, nil
}

type env struct {
	api   *gin.Engine
	admin *gin.Engine
	web   domain.Domain
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	users, roles, domains := repo.NewUserRepo(db), repo.NewRoleRepo(db), repo.NewDomainRepo(db)
	_, err := taxonomy.Seed(ctx, roles, domains)
	require.NoError(t, err)
	ds, err := domains.List(ctx)
	require.NoError(t, err)
	var web domain.Domain
	for _, d := range ds {
		if d.Slug == "web-development" {
			web = d
		}
	}
	require.NotEmpty(t, web.ID)

	reg := taxonomy.NewRegistry(roles, cache.NewWithClient(rdb), time.Minute)
	id := identity.New(users, domains, reg, fakeGoogle{}, "org.edu", zap.NewNop())
	us := service.NewUserService(users, domains, reg, zap.NewNop())
	j := &auth.JWTer{
		Secret:     []byte("0123456789abcdef0123"),
		Issuer:     "csesa-test",
		TTL:        time.Minute,
		RefreshTTL: time.Hour,
		Revoker:    auth.NewRedisRevoker(rdb),
	}

	api := router.NewAPIEngine(zap.NewNop(), router.APIDeps{
		DB:     db,
		JWT:    j,
		Load:   id.Principal,
		Auth:   handler.NewAuthHandler(id, j),
		Member: handler.NewMemberHandler(id, us),
		Modules: []router.APIModule{&content.Module{
			DB: db, Domains: domains, PublicProjects: true, PublicEvents: false,
		}},
	})
	admin := router.NewAdminEngine(zap.NewNop(), handler.NewAdminHandler(us), j, id.Principal)
	return &env{api: api, admin: admin, web: web}
}

func call(r *gin.Engine, method, path, token string, body any) resp.Resp {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out resp.Resp
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func data(out resp.Resp) map[string]any {
	m, _ := out.Data.(map[string]any)
	return m
}

func kind(out resp.Resp) string {
	k, _ := data(out)["kind"].(string)
	return k
}

// signIn 用 Google ID token 登录，返回 access / refresh / user
func (e *env) signIn(t *testing.T, email string) (string, string, map[string]any) {
	t.Helper()
	out := call(e.api, http.MethodPost, "/api/v1/auth/google/token", "", map[string]string{"id_token": "id:" + email})
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)
	d := data(out)
	return d["access"].(string), d["refresh"].(string), d["user"].(map[string]any)
}

func (e *env) invite(t *testing.T, token, email string, role domain.RoleTag) resp.Resp {
	t.Helper()
	return call(e.api, http.MethodPost, "/api/v1/invite", token, map[string]string{
		"email": email, "role": string(role), "domainId": e.web.ID,
	})
}

func TestFirstSignInBootstrapsPresident(t *testing.T) {
	e := newEnv(t)

	pres, _, u := e.signIn(t, "head@org.edu")
	assert.Equal(t, "PRESIDENT", u["role"])
	assert.Equal(t, true, u["isActive"])

	out := call(e.api, http.MethodPost, "/api/v1/auth/google/token", "", map[string]string{"id_token": "id:member@org.edu"})
	assert.Equal(t, resp.CodeForbidden, out.Code)
	assert.Equal(t, "account_not_provisioned", kind(out))

	out = call(e.api, http.MethodPost, "/api/v1/auth/google/token", "", map[string]string{"id_token": "id:someone@gmail.com"})
	assert.Equal(t, resp.CodeForbidden, out.Code)
	assert.Equal(t, "forbidden_domain", kind(out))

	out = call(e.api, http.MethodPost, "/api/v1/auth/google/token", "", map[string]string{"id_token": "forged"})
	assert.Equal(t, resp.CodeUnauthorized, out.Code)
	assert.Equal(t, "invalid_token", kind(out))

	out = call(e.api, http.MethodGet, "/api/v1/profile", pres, nil)
	require.Equal(t, resp.CodeOK, out.Code)
	assert.Equal(t, "head@org.edu", data(out)["email"])
}

func TestInviteThenSignIn(t *testing.T) {
	e := newEnv(t)
	pres, _, _ := e.signIn(t, "head@org.edu")

	assert.Equal(t, resp.CodeUnauthorized, e.invite(t, "", "member@org.edu", domain.RoleAssociate).Code)

	out := e.invite(t, pres, "Member@Org.edu", domain.RoleAssociate)
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)
	assert.Equal(t, "member@org.edu", data(out)["email"])
	assert.Equal(t, false, data(out)["isActive"])

	out = e.invite(t, pres, "member@org.edu", domain.RoleAssociate)
	assert.Equal(t, resp.CodeConflict, out.Code)
	assert.Equal(t, "duplicate_account", kind(out))

	member, _, u := e.signIn(t, "member@org.edu")
	assert.Equal(t, "ASSOCIATE", u["role"])
	assert.Equal(t, true, u["isActive"])
	assert.Equal(t, e.web.ID, u["domainId"])

	// 普通成员不能邀请
	out = e.invite(t, member, "other@org.edu", domain.RoleAssociate)
	assert.Equal(t, resp.CodeForbidden, out.Code)
	assert.Equal(t, "permission_denied", kind(out))
}

func TestGoogleCallback(t *testing.T) {
	e := newEnv(t)

	out := call(e.api, http.MethodGet, "/api/v1/auth/google?state=abc&redirect_uri=http://app/cb", "", nil)
	require.Equal(t, resp.CodeOK, out.Code)
	assert.Contains(t, data(out)["auth_url"], "state=abc")

	state := `{"redirect_uri":"http://app/cb","from":"/dashboard"}`
	out = call(e.api, http.MethodPost, "/api/v1/auth/google/callback", "", map[string]string{"code": "head@org.edu", "state": state})
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)
	assert.Equal(t, "/dashboard", data(out)["redirect_uri"])
	assert.NotEmpty(t, data(out)["access"])

	out = call(e.api, http.MethodPost, "/api/v1/auth/google/callback", "", map[string]string{"code": "head@org.edu", "state": "{not json"})
	assert.Equal(t, resp.CodeBadRequest, out.Code)

	out = call(e.api, http.MethodPost, "/api/v1/auth/google/callback", "", map[string]string{"code": ""})
	assert.Equal(t, resp.CodeBadRequest, out.Code)

	out = call(e.api, http.MethodPost, "/api/v1/auth/google/callback", "", map[string]string{"code": "bad"})
	assert.Equal(t, resp.CodeUnauthorized, out.Code)
}

func TestRefreshAndLogout(t *testing.T) {
	e := newEnv(t)
	access, refresh, _ := e.signIn(t, "head@org.edu")

	out := call(e.api, http.MethodPost, "/api/v1/auth/token/refresh", "", map[string]string{"refresh": refresh})
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)
	fresh := data(out)["access"].(string)
	assert.Equal(t, resp.CodeOK, call(e.api, http.MethodGet, "/api/v1/profile", fresh, nil).Code)

	// access token 不能拿来刷新
	out = call(e.api, http.MethodPost, "/api/v1/auth/token/refresh", "", map[string]string{"refresh": access})
	assert.Equal(t, resp.CodeUnauthorized, out.Code)

	require.Equal(t, resp.CodeOK, call(e.api, http.MethodPost, "/api/v1/auth/logout", "", map[string]string{"refresh": refresh}).Code)
	out = call(e.api, http.MethodPost, "/api/v1/auth/token/refresh", "", map[string]string{"refresh": refresh})
	assert.Equal(t, resp.CodeUnauthorized, out.Code)
	assert.Equal(t, "refresh token revoked", out.Msg)
}

func TestPasswordRegisterAndLogin(t *testing.T) {
	e := newEnv(t)

	out := call(e.api, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": "reg@org.edu", "password": "correct-horse", "domainId": e.web.ID,
	})
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)
	assert.Equal(t, "ASSOCIATE", data(out)["role"])
	assert.NotContains(t, data(out), "passwordHash")

	out = call(e.api, http.MethodPost, "/api/v1/auth/token", "", map[string]string{"email": "reg@org.edu", "password": "correct-horse"})
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)
	assert.NotEmpty(t, data(out)["access"])

	out = call(e.api, http.MethodPost, "/api/v1/auth/token", "", map[string]string{"email": "reg@org.edu", "password": "wrong-horse"})
	assert.Equal(t, resp.CodeUnauthorized, out.Code)
	assert.Equal(t, "invalid_credentials", kind(out))

	// 已有账号后首登不再引导总统
	out = call(e.api, http.MethodPost, "/api/v1/auth/google/token", "", map[string]string{"id_token": "id:head@org.edu"})
	assert.Equal(t, "account_not_provisioned", kind(out))
}

func TestProfileUpdate(t *testing.T) {
	e := newEnv(t)
	pres, _, _ := e.signIn(t, "head@org.edu")

	assert.Equal(t, resp.CodeUnauthorized, call(e.api, http.MethodGet, "/api/v1/profile", "", nil).Code)

	out := call(e.api, http.MethodPatch, "/api/v1/profile", pres, map[string]any{
		"githubLink": "https://github.com/head", "skills": []string{"go", "sql"},
	})
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)
	assert.Equal(t, "https://github.com/head", data(out)["githubLink"])
	assert.Equal(t, true, data(out)["isOnboarded"])

	out = call(e.api, http.MethodPatch, "/api/v1/profile", pres, map[string]any{"githubLink": "not a url"})
	assert.Equal(t, resp.CodeBadRequest, out.Code)
}

func TestContentGuard(t *testing.T) {
	e := newEnv(t)
	pres, _, presUser := e.signIn(t, "head@org.edu")
	require.Equal(t, resp.CodeOK, e.invite(t, pres, "member@org.edu", domain.RoleAssociate).Code)
	member, _, _ := e.signIn(t, "member@org.edu")

	project := map[string]any{"name": "Portal", "descriptionShort": "Society site", "domainIds": []string{e.web.ID}}

	out := call(e.api, http.MethodPost, "/api/v1/projects", "", project)
	assert.Equal(t, resp.CodeUnauthorized, out.Code)
	out = call(e.api, http.MethodPost, "/api/v1/projects", member, project)
	assert.Equal(t, resp.CodeForbidden, out.Code)

	out = call(e.api, http.MethodPost, "/api/v1/projects", pres, project)
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)
	pid := data(out)["id"].(string)
	assert.Equal(t, presUser["id"], data(out)["createdBy"])
	assert.Equal(t, "in_progress", data(out)["status"])

	// 项目公开可读，活动需登录
	assert.Equal(t, resp.CodeOK, call(e.api, http.MethodGet, "/api/v1/projects/"+pid, "", nil).Code)
	assert.Equal(t, resp.CodeUnauthorized, call(e.api, http.MethodGet, "/api/v1/events", "", nil).Code)
	assert.Equal(t, resp.CodeOK, call(e.api, http.MethodGet, "/api/v1/events", member, nil).Code)

	denied := call(e.api, http.MethodDelete, "/api/v1/projects/"+pid, member, nil)
	missing := call(e.api, http.MethodDelete, "/api/v1/projects/nope", member, nil)
	assert.Equal(t, resp.CodeForbidden, denied.Code)
	assert.Equal(t, denied, missing)
	assert.Equal(t, resp.CodeNotFound, call(e.api, http.MethodDelete, "/api/v1/projects/nope", pres, nil).Code)
	assert.Equal(t, resp.CodeOK, call(e.api, http.MethodDelete, "/api/v1/projects/"+pid, pres, nil).Code)
}

func TestProjectPatchKeepsOmittedFields(t *testing.T) {
	e := newEnv(t)
	pres, _, _ := e.signIn(t, "head@org.edu")

	out := call(e.api, http.MethodPost, "/api/v1/projects", pres, map[string]any{
		"name": "Portal", "descriptionShort": "Society site", "status": "completed",
		"githubLink": "https://github.com/org/portal", "domainIds": []string{e.web.ID},
	})
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)
	pid := data(out)["id"].(string)

	out = call(e.api, http.MethodPatch, "/api/v1/projects/"+pid, pres, map[string]string{"name": "Portal v2"})
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)
	assert.Equal(t, "Portal v2", data(out)["name"])
	assert.Equal(t, "completed", data(out)["status"])
	assert.Equal(t, "Society site", data(out)["descriptionShort"])
	assert.Equal(t, []any{e.web.ID}, data(out)["domainIds"])

	out = call(e.api, http.MethodPatch, "/api/v1/projects/"+pid, pres, map[string]string{"githubLink": ""})
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)
	assert.Equal(t, "", data(out)["githubLink"])
	assert.Equal(t, "completed", data(out)["status"])

	out = call(e.api, http.MethodPatch, "/api/v1/projects/"+pid, pres, map[string]string{"status": "abandoned"})
	assert.Equal(t, resp.CodeBadRequest, out.Code)
}

func TestAdminGrantsTakeEffect(t *testing.T) {
	e := newEnv(t)
	pres, _, _ := e.signIn(t, "head@org.edu")
	require.Equal(t, resp.CodeOK, e.invite(t, pres, "member@org.edu", domain.RoleAssociate).Code)
	member, _, _ := e.signIn(t, "member@org.edu")

	assert.Equal(t, resp.CodeUnauthorized, call(e.admin, http.MethodGet, "/admin/v1/users", "", nil).Code)
	assert.Equal(t, resp.CodeForbidden, call(e.admin, http.MethodGet, "/admin/v1/users", member, nil).Code)

	out := call(e.admin, http.MethodGet, "/admin/v1/users", pres, nil)
	require.Equal(t, resp.CodeOK, out.Code)
	assert.EqualValues(t, 2, data(out)["total"])

	event := map[string]any{"name": "Hack Night", "location": "LT-1", "date": "2030-01-02T18:00:00Z"}
	assert.Equal(t, resp.CodeForbidden, call(e.api, http.MethodPost, "/api/v1/events", member, event).Code)

	out = call(e.admin, http.MethodPut, "/admin/v1/roles/ASSOCIATE", pres, map[string]bool{"canManageEvents": true})
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)
	assert.Equal(t, true, data(out)["canManageEvents"])

	out = call(e.api, http.MethodPost, "/api/v1/events", member, event)
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)

	out = call(e.api, http.MethodGet, "/api/v1/roles", "", nil)
	require.Equal(t, resp.CodeOK, out.Code)
	roles := out.Data.([]any)
	require.Len(t, roles, 4)
	assert.Equal(t, "PRESIDENT", roles[0].(map[string]any)["tag"])
}

func TestHealthAndMetrics(t *testing.T) {
	e := newEnv(t)
	for _, path := range []string{"/health", "/metrics"} {
		w := httptest.NewRecorder()
		e.api.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
