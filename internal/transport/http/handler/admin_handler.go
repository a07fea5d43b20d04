package handler

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"csesa-backend/internal/domain"
	"csesa-backend/internal/service"
	mdw "csesa-backend/internal/transport/http/middleware"
)

// AdminHandler 后台：成员管理与角色能力配置
type AdminHandler struct {
	users *service.UserService
}

func NewAdminHandler(users *service.UserService) *AdminHandler {
	return &AdminHandler{users: users}
}

type RoleChangeIn struct {
	Role     domain.RoleTag `json:"role" binding:"required"`
	DomainID string         `json:"domainId"`
}

// GET /users
func (h *AdminHandler) ListUsers(c *gin.Context, _ *gorm.DB, in *ListQ) (ListOut, error) {
	items, total, err := h.users.List(c.Request.Context(), mdw.PrincipalOf(c), in.Offset, in.Limit, in.Q)
	if err != nil {
		return ListOut{}, err
	}
	return ListOut{Total: total, Items: items}, nil
}

// POST /users/:id/ban 软删
func (h *AdminHandler) Ban(c *gin.Context, _ *gorm.DB, _ *struct{}) (gin.H, error) {
	id := c.Param("id")
	if err := h.users.Ban(c.Request.Context(), mdw.PrincipalOf(c), id); err != nil {
		return nil, err
	}
	return gin.H{"id": id}, nil
}

// PUT /users/:id/role
func (h *AdminHandler) ChangeRole(c *gin.Context, _ *gorm.DB, in *RoleChangeIn) (*domain.User, error) {
	return h.users.ChangeRole(c.Request.Context(), mdw.PrincipalOf(c), c.Param("id"), in.Role, in.DomainID)
}

// PUT /roles/:tag
func (h *AdminHandler) UpdateGrants(c *gin.Context, _ *gorm.DB, in *domain.CapabilitySet) (*domain.Role, error) {
	return h.users.UpdateRoleGrants(c.Request.Context(), mdw.PrincipalOf(c), domain.RoleTag(c.Param("tag")), *in)
}
