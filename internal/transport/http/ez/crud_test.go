package ez

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"csesa-backend/internal/domain"
	"csesa-backend/internal/feature/access"
	"csesa-backend/internal/testutil"
	mdw "csesa-backend/internal/transport/http/middleware"
	resp "csesa-backend/internal/transport/http/response"
)

func init() { gin.SetMode(gin.TestMode) }

type note struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedByID string    `gorm:"size:36;index" json:"createdById"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`
}

var principals = map[string]*access.Principal{
	"pres":  {UserID: "pres", Role: domain.RolePresident},
	"head":  {UserID: "head", Role: domain.RoleDomainHead, Capabilities: domain.CapabilitySet{ManageProjects: true}},
	"alice": {UserID: "alice", Role: domain.RoleAssociate},
	"bob":   {UserID: "bob", Role: domain.RoleAssociate},
}

// 测试里用 X-User 头模拟已登录成员
func fakeAuth(c *gin.Context) {
	if p, ok := principals[c.GetHeader("X-User")]; ok {
		c.Set(mdw.KeyPrincipal, p)
		c.Set(mdw.KeyUserID, p.UserID)
	}
	c.Next()
}

func newCrud(t *testing.T, public bool) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	require.NoError(t, db.AutoMigrate(&note{}))
	r := gin.New()
	g := r.Group("/api", fakeAuth)
	Crud(CrudConfig[note]{
		DB:         db,
		Group:      g,
		Path:       "/notes",
		New:        func() *note { return &note{} },
		Kind:       access.KindProjects,
		PublicRead: public,
		OrderBy:    "created_at DESC",
	})
	return r, db
}

func call(r *gin.Engine, method, path, user string, body any) resp.Resp {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out resp.Resp
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func seedNote(t *testing.T, db *gorm.DB, id, owner string) {
	t.Helper()
	require.NoError(t, db.WithContext(context.Background()).Create(&note{ID: id, CreatedByID: owner, Title: "seed"}).Error)
}

func TestCrud_CreateRequiresCapability(t *testing.T) {
	r, _ := newCrud(t, true)

	out := call(r, http.MethodPost, "/api/notes", "", map[string]string{"title": "x"})
	assert.Equal(t, resp.CodeUnauthorized, out.Code)
	assert.Equal(t, "authentication required", out.Msg)

	out = call(r, http.MethodPost, "/api/notes", "alice", map[string]string{"title": "x"})
	assert.Equal(t, resp.CodeForbidden, out.Code)

	out = call(r, http.MethodPost, "/api/notes", "head", map[string]string{"id": "client-id", "title": "x"})
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)
	data := out.Data.(map[string]any)
	assert.NotEqual(t, "client-id", data["id"])
	assert.Equal(t, "head", data["createdById"])
}

func TestCrud_ReadVisibility(t *testing.T) {
	r, db := newCrud(t, false)
	seedNote(t, db, "n1", "alice")

	assert.Equal(t, resp.CodeUnauthorized, call(r, http.MethodGet, "/api/notes", "", nil).Code)
	assert.Equal(t, resp.CodeUnauthorized, call(r, http.MethodGet, "/api/notes/n1", "", nil).Code)
	assert.Equal(t, resp.CodeOK, call(r, http.MethodGet, "/api/notes/n1", "bob", nil).Code)
	assert.Equal(t, resp.CodeNotFound, call(r, http.MethodGet, "/api/notes/zzz", "bob", nil).Code)

	pub, db2 := newCrud(t, true)
	seedNote(t, db2, "n1", "alice")
	out := call(pub, http.MethodGet, "/api/notes", "", nil)
	require.Equal(t, resp.CodeOK, out.Code)
	assert.EqualValues(t, 1, out.Data.(map[string]any)["total"])
}

func TestCrud_OwnerMayUpdate(t *testing.T) {
	r, db := newCrud(t, true)
	seedNote(t, db, "n1", "alice")

	out := call(r, http.MethodPatch, "/api/notes/n1", "alice", map[string]string{"title": "mine", "createdById": "bob"})
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)
	data := out.Data.(map[string]any)
	assert.Equal(t, "mine", data["title"])
	assert.Equal(t, "alice", data["createdById"])

	assert.Equal(t, resp.CodeForbidden, call(r, http.MethodPut, "/api/notes/n1", "bob", map[string]string{"title": "x"}).Code)
	assert.Equal(t, resp.CodeForbidden, call(r, http.MethodDelete, "/api/notes/n1", "bob", nil).Code)
	assert.Equal(t, resp.CodeOK, call(r, http.MethodDelete, "/api/notes/n1", "alice", nil).Code)
}

func TestCrud_PatchMergesOntoStoredRow(t *testing.T) {
	r, db := newCrud(t, true)
	require.NoError(t, db.Create(&note{ID: "n1", CreatedByID: "alice", Title: "seed", Body: "draft"}).Error)

	// 只改 body：title 保持，空串照样写入
	out := call(r, http.MethodPatch, "/api/notes/n1", "alice", map[string]string{"body": ""})
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)
	data := out.Data.(map[string]any)
	assert.Equal(t, "seed", data["title"])
	assert.Equal(t, "", data["body"])

	var stored note
	require.NoError(t, db.First(&stored, "id = ?", "n1").Error)
	assert.Equal(t, "seed", stored.Title)
	assert.Empty(t, stored.Body)
	created := stored.CreatedAt

	out = call(r, http.MethodPatch, "/api/notes/n1", "alice", map[string]string{"createdAt": "2000-01-01T00:00:00Z"})
	require.Equal(t, resp.CodeOK, out.Code, out.Msg)
	require.NoError(t, db.First(&stored, "id = ?", "n1").Error)
	assert.True(t, created.Equal(stored.CreatedAt))
}

func TestCrud_DenialHidesExistence(t *testing.T) {
	r, db := newCrud(t, true)
	seedNote(t, db, "n1", "alice")

	// 无权限时存在与否的回应一致
	exists := call(r, http.MethodDelete, "/api/notes/n1", "bob", nil)
	missing := call(r, http.MethodDelete, "/api/notes/nope", "bob", nil)
	assert.Equal(t, resp.CodeForbidden, exists.Code)
	assert.Equal(t, exists, missing)

	assert.Equal(t, resp.CodeUnauthorized, call(r, http.MethodDelete, "/api/notes/nope", "", nil).Code)
	assert.Equal(t, resp.CodeNotFound, call(r, http.MethodDelete, "/api/notes/nope", "pres", nil).Code)
}

func TestCrud_ListMine(t *testing.T) {
	r, db := newCrud(t, true)
	seedNote(t, db, "n1", "alice")
	seedNote(t, db, "n2", "bob")
	seedNote(t, db, "n3", "alice")

	out := call(r, http.MethodGet, "/api/notes?mine=1", "alice", nil)
	require.Equal(t, resp.CodeOK, out.Code)
	assert.EqualValues(t, 2, out.Data.(map[string]any)["total"])

	assert.Equal(t, resp.CodeUnauthorized, call(r, http.MethodGet, "/api/notes?mine=1", "", nil).Code)

	out = call(r, http.MethodGet, "/api/notes?size=1&page=2", "", nil)
	require.Equal(t, resp.CodeOK, out.Code)
	data := out.Data.(map[string]any)
	assert.EqualValues(t, 3, data["total"])
	assert.Len(t, data["list"], 1)
}

func TestToSnake(t *testing.T) {
	cases := map[string]string{
		"ID":          "id",
		"CreatedByID": "created_by_id",
		"CreatedAt":   "created_at",
		"HTTPServer":  "http_server",
		"name":        "name",
	}
	for in, want := range cases {
		assert.Equal(t, want, toSnake(in), in)
	}
}
