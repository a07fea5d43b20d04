package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"csesa-backend/internal/core/auth"
	"csesa-backend/internal/domain"
	"csesa-backend/internal/feature/access"
	resp "csesa-backend/internal/transport/http/response"
)

const (
	KeyClaims    = "claims"
	KeyUserID    = "userId"
	KeyRole      = "role"
	KeyPrincipal = "principal"
	KeyUser      = "user"
)

// PrincipalLoader 按用户 ID 取当前账号及其能力（identity.Service.Principal）
type PrincipalLoader func(ctx context.Context, userID string) (*access.Principal, *domain.User, error)

// AuthJWT 要求携带有效 access token；requireRole 非空时还要求该角色（超级用户放行）
func AuthJWT(j *auth.JWTer, load PrincipalLoader, requireRole domain.RoleTag) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if !strings.HasPrefix(ah, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "missing token"))
			return
		}
		p, ok := authenticate(c, j, load, strings.TrimPrefix(ah, "Bearer "))
		if !ok {
			return
		}
		if requireRole != "" && p.Role != requireRole && !p.Superuser {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeForbidden, "forbidden"))
			return
		}
		c.Next()
	}
}

// OptionalAuth 无 Authorization 头按匿名放行；携带了但无效仍返回 401
func OptionalAuth(j *auth.JWTer, load PrincipalLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		ah := c.GetHeader("Authorization")
		if ah == "" {
			c.Next()
			return
		}
		if !strings.HasPrefix(ah, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "invalid token"))
			return
		}
		if _, ok := authenticate(c, j, load, strings.TrimPrefix(ah, "Bearer ")); !ok {
			return
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, j *auth.JWTer, load PrincipalLoader, raw string) (*access.Principal, bool) {
	claims, err := j.ParseAccess(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "invalid token"))
		return nil, false
	}
	c.Set(KeyClaims, claims)

	var p *access.Principal
	if load != nil {
		var u *domain.User
		p, u, err = load(c.Request.Context(), claims.UID)
		if err != nil {
			if r, ok := resp.FromDomain(err); ok {
				c.AbortWithStatusJSON(http.StatusOK, r)
			} else {
				c.AbortWithStatusJSON(http.StatusOK, resp.Error(resp.CodeServerError, "load account failed"))
			}
			return nil, false
		}
		c.Set(KeyUser, u)
	} else {
		p = &access.Principal{UserID: claims.UID, Role: domain.RoleTag(claims.Role), Superuser: claims.Admin}
	}
	c.Set(KeyUserID, p.UserID)
	c.Set(KeyRole, string(p.Role))
	c.Set(KeyPrincipal, p)
	return p, true
}

// PrincipalOf 匿名请求返回 nil
func PrincipalOf(c *gin.Context) *access.Principal {
	if v, ok := c.Get(KeyPrincipal); ok {
		if p, ok := v.(*access.Principal); ok {
			return p
		}
	}
	return nil
}

// UserOf 当前登录账号（仅在配置了 PrincipalLoader 时存在）
func UserOf(c *gin.Context) *domain.User {
	if v, ok := c.Get(KeyUser); ok {
		if u, ok := v.(*domain.User); ok {
			return u
		}
	}
	return nil
}
