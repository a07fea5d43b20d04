package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"csesa-backend/internal/core/auth"
	"csesa-backend/internal/core/server"
	"csesa-backend/internal/domain"
	"csesa-backend/internal/feature/identity"
	httpez "csesa-backend/internal/transport/http/ez"
	"csesa-backend/internal/transport/http/handler"
	mdw "csesa-backend/internal/transport/http/middleware"
)

// APIDeps 用户端引擎依赖
type APIDeps struct {
	DB          *gorm.DB
	JWT         *auth.JWTer
	Load        mdw.PrincipalLoader
	Auth        *handler.AuthHandler
	Member      *handler.MemberHandler
	CORSOrigins []string
	Modules     []APIModule // 仅挂到本引擎，不进全局注册器
}

func NewAPIEngine(l *zap.Logger, d APIDeps) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(
		mdw.RequestID(),
		mdw.RateLimitPerIP(20, 40, 10*time.Minute),
		mdw.ConcurrencyLimit(300),
		mdw.MaxBodyBytes(1<<20),
		mdw.Timeout(15*time.Second),
		mdw.Recovery(l),
		mdw.Metrics(),
		mdw.AccessLog(l),
		server.CORS(d.CORSOrigins),
	)

	// 健康检查 + 指标
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 前缀；匿名可访问，带 token 时解析出当前成员
	api := r.Group("/api/v1")
	api.Use(mdw.OptionalAuth(d.JWT, d.Load))

	mountAuth(api, d.DB, d.Auth)
	mountMember(api, d.DB, d.Member)

	// 内容模块（projects / events）走注册器
	MountAllAPI(api)
	for _, m := range d.Modules {
		m.MountAPI(api)
	}

	return r
}

func mountAuth(api *gin.RouterGroup, db *gorm.DB, h *handler.AuthHandler) {
	ez := httpez.New(api.Group("/auth"))

	httpez.RegisterAction(ez, db, httpez.Action[identity.RegisterInput, *domain.User]{
		Method: http.MethodPost, Path: "/register", Binder: httpez.BindJSON, Handler: h.Register,
	})
	httpez.RegisterAction(ez, db, httpez.Action[handler.LoginIn, handler.TokenOut]{
		Method: http.MethodPost, Path: "/token", Binder: httpez.BindJSON, Handler: h.Token,
	})
	httpez.RegisterAction(ez, db, httpez.Action[handler.RefreshIn, gin.H]{
		Method: http.MethodPost, Path: "/token/refresh", Binder: httpez.BindJSON, Handler: h.Refresh,
	})
	httpez.RegisterAction(ez, db, httpez.Action[handler.RefreshIn, gin.H]{
		Method: http.MethodPost, Path: "/logout", Binder: httpez.BindJSON, Handler: h.Logout,
	})

	// Google 登录
	httpez.RegisterAction(ez, db, httpez.Action[handler.GoogleURLQ, gin.H]{
		Method: http.MethodGet, Path: "/google", Binder: httpez.BindQuery, Handler: h.GoogleURL,
	})
	httpez.RegisterAction(ez, db, httpez.Action[handler.GoogleCallbackIn, handler.TokenOut]{
		Method: http.MethodPost, Path: "/google/callback", Binder: httpez.BindJSON, Handler: h.GoogleCallback,
	})
	httpez.RegisterAction(ez, db, httpez.Action[handler.GoogleTokenIn, handler.TokenOut]{
		Method: http.MethodPost, Path: "/google/token", Binder: httpez.BindJSON, Handler: h.GoogleToken,
	})
}

func mountMember(api *gin.RouterGroup, db *gorm.DB, h *handler.MemberHandler) {
	ez := httpez.New(api)

	httpez.RegisterAction(ez, db, httpez.Action[struct{}, *domain.User]{
		Method: http.MethodGet, Path: "/profile", Binder: httpez.BindNone, Auth: true, Handler: h.Profile,
	})
	httpez.RegisterAction(ez, db, httpez.Action[identity.ProfilePatch, *domain.User]{
		Method: http.MethodPatch, Path: "/profile", Binder: httpez.BindJSON, Auth: true, Handler: h.UpdateProfile,
	})
	httpez.RegisterAction(ez, db, httpez.Action[handler.ListQ, handler.ListOut]{
		Method: http.MethodGet, Path: "/users", Binder: httpez.BindQuery, Auth: true, Handler: h.ListUsers,
	})
	httpez.RegisterAction(ez, db, httpez.Action[struct{}, *domain.User]{
		Method: http.MethodGet, Path: "/users/:id", Binder: httpez.BindNone, Auth: true, Handler: h.GetUser,
	})
	httpez.RegisterAction(ez, db, httpez.Action[identity.InviteInput, *domain.User]{
		Method: http.MethodPost, Path: "/invite", Binder: httpez.BindJSON, Auth: true, Handler: h.Invite,
	})

	// 方向与角色：列表公开，写操作在服务层鉴权
	httpez.RegisterAction(ez, db, httpez.Action[struct{}, []domain.Domain]{
		Method: http.MethodGet, Path: "/domains", Binder: httpez.BindNone, Handler: h.Domains,
	})
	httpez.RegisterAction(ez, db, httpez.Action[handler.DomainIn, *domain.Domain]{
		Method: http.MethodPost, Path: "/domains", Binder: httpez.BindJSON, Auth: true, Handler: h.CreateDomain,
	})
	httpez.RegisterAction(ez, db, httpez.Action[struct{}, []domain.Role]{
		Method: http.MethodGet, Path: "/roles", Binder: httpez.BindNone, Handler: h.Roles,
	})
}
