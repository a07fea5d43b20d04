package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"csesa-backend/internal/domain"
	httpez "csesa-backend/internal/transport/http/ez"
	"csesa-backend/internal/transport/http/handler"
)

// 把管理端接口集中在这里注册；分组已走 AuthJWT(President)，服务层再按能力判定
func MountAdminActions(admin *gin.RouterGroup, h *handler.AdminHandler) {
	ez := httpez.New(admin)

	// --- GET /admin/v1/users  成员列表 ---
	httpez.RegisterAction(ez, nil, httpez.Action[handler.ListQ, handler.ListOut]{
		Method:  http.MethodGet,
		Path:    "/users",
		Binder:  httpez.BindQuery,
		Handler: h.ListUsers,
	})

	// --- POST /admin/v1/users/:id/ban  封禁（软删） ---
	httpez.RegisterAction(ez, nil, httpez.Action[struct{}, gin.H]{
		Method:  http.MethodPost,
		Path:    "/users/:id/ban",
		Binder:  httpez.BindNone,
		Handler: h.Ban,
	})

	// --- PUT /admin/v1/users/:id/role  调整角色/方向 ---
	httpez.RegisterAction(ez, nil, httpez.Action[handler.RoleChangeIn, *domain.User]{
		Method:  http.MethodPut,
		Path:    "/users/:id/role",
		Binder:  httpez.BindJSON,
		Handler: h.ChangeRole,
	})

	// --- PUT /admin/v1/roles/:tag  角色能力 ---
	httpez.RegisterAction(ez, nil, httpez.Action[domain.CapabilitySet, *domain.Role]{
		Method:  http.MethodPut,
		Path:    "/roles/:tag",
		Binder:  httpez.BindJSON,
		Handler: h.UpdateGrants,
	})
}
