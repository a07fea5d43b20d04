package handler

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"csesa-backend/internal/domain"
	"csesa-backend/internal/feature/identity"
	"csesa-backend/internal/service"
	httpez "csesa-backend/internal/transport/http/ez"
	mdw "csesa-backend/internal/transport/http/middleware"
)

// MemberHandler 登录成员可用的接口：个人资料、成员目录、方向与角色、邀请
type MemberHandler struct {
	id    *identity.Service
	users *service.UserService
}

func NewMemberHandler(id *identity.Service, users *service.UserService) *MemberHandler {
	return &MemberHandler{id: id, users: users}
}

type ListQ struct {
	Offset int    `form:"offset,default=0"`
	Limit  int    `form:"limit,default=20"`
	Q      string `form:"q"` // 按 email/姓名模糊搜
}

type ListOut struct {
	Total int64         `json:"total"`
	Items []domain.User `json:"items"`
}

type DomainIn struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
}

func current(c *gin.Context) (*domain.User, error) {
	u := mdw.UserOf(c)
	if u == nil {
		return nil, httpez.Unauthorized("authentication required")
	}
	return u, nil
}

// GET /profile
func (h *MemberHandler) Profile(c *gin.Context, _ *gorm.DB, _ *struct{}) (*domain.User, error) {
	return current(c)
}

// PATCH /profile
func (h *MemberHandler) UpdateProfile(c *gin.Context, _ *gorm.DB, in *identity.ProfilePatch) (*domain.User, error) {
	u, err := current(c)
	if err != nil {
		return nil, err
	}
	return h.id.UpdateProfile(c.Request.Context(), u.ID, *in)
}

// GET /users
func (h *MemberHandler) ListUsers(c *gin.Context, _ *gorm.DB, in *ListQ) (ListOut, error) {
	items, total, err := h.users.List(c.Request.Context(), mdw.PrincipalOf(c), in.Offset, in.Limit, in.Q)
	if err != nil {
		return ListOut{}, err
	}
	return ListOut{Total: total, Items: items}, nil
}

// GET /users/:id
func (h *MemberHandler) GetUser(c *gin.Context, _ *gorm.DB, _ *struct{}) (*domain.User, error) {
	return h.users.Get(c.Request.Context(), mdw.PrincipalOf(c), c.Param("id"))
}

// POST /invite
func (h *MemberHandler) Invite(c *gin.Context, _ *gorm.DB, in *identity.InviteInput) (*domain.User, error) {
	u, err := current(c)
	if err != nil {
		return nil, err
	}
	return h.id.Invite(c.Request.Context(), u, *in)
}

// GET /domains 公开
func (h *MemberHandler) Domains(c *gin.Context, _ *gorm.DB, _ *struct{}) ([]domain.Domain, error) {
	return h.users.Domains(c.Request.Context())
}

// POST /domains
func (h *MemberHandler) CreateDomain(c *gin.Context, _ *gorm.DB, in *DomainIn) (*domain.Domain, error) {
	return h.users.CreateDomain(c.Request.Context(), mdw.PrincipalOf(c), in.Name, in.Description)
}

// GET /roles 公开
func (h *MemberHandler) Roles(c *gin.Context, _ *gorm.DB, _ *struct{}) ([]domain.Role, error) {
	return h.users.Roles(c.Request.Context())
}
