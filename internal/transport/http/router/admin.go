// internal/transport/http/router/admin.go
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"csesa-backend/internal/core/auth"
	"csesa-backend/internal/core/server"
	"csesa-backend/internal/domain"
	"csesa-backend/internal/transport/http/handler"
	mdw "csesa-backend/internal/transport/http/middleware"
)

// NewAdminEngine 后台端只监听内网地址，统一要求总统（或超级用户）
func NewAdminEngine(l *zap.Logger, h *handler.AdminHandler, jwter *auth.JWTer, load mdw.PrincipalLoader) *gin.Engine {
	r := server.NewRouter(l, server.Options{Name: "admin"})

	r.Use(
		mdw.RequestID(),
		mdw.RateLimit(200, 400),
		mdw.ConcurrencyLimit(100),
		mdw.MaxBodyBytes(1<<20),
		mdw.Timeout(10*time.Second),
		mdw.Metrics(),
	)

	// 健康检查
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })

	// 管理端 v1
	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(jwter, load, domain.RolePresident))

	// ① 自动发现（如有）
	MountAllAdmin(admin)

	// ② 用 Action 挂载管理端接口
	MountAdminActions(admin, h)

	return r
}
