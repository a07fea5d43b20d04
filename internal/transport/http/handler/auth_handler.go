package handler

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"csesa-backend/internal/core/auth"
	"csesa-backend/internal/domain"
	"csesa-backend/internal/feature/identity"
	httpez "csesa-backend/internal/transport/http/ez"
)

// AuthHandler 登录相关：Google 登录、密码登录、刷新与登出
type AuthHandler struct {
	id  *identity.Service
	jwt *auth.JWTer
}

func NewAuthHandler(id *identity.Service, j *auth.JWTer) *AuthHandler {
	return &AuthHandler{id: id, jwt: j}
}

type TokenOut struct {
	Access      string       `json:"access"`
	Refresh     string       `json:"refresh"`
	User        *domain.User `json:"user"`
	RedirectURI string       `json:"redirect_uri,omitempty"`
}

type LoginIn struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshIn struct {
	Refresh string `json:"refresh" binding:"required"`
}

type GoogleURLQ struct {
	RedirectURI string `form:"redirect_uri"`
	State       string `form:"state"`
}

type GoogleCallbackIn struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

type GoogleTokenIn struct {
	IDToken string `json:"id_token" binding:"required"`
}

// oauthState 前端塞进 state 的 JSON：回调地址 + 登录后要跳回的页面
type oauthState struct {
	RedirectURI string `json:"redirect_uri"`
	From        string `json:"from"`
}

func (h *AuthHandler) issue(u *domain.User) (TokenOut, error) {
	pair, err := h.jwt.IssuePair(auth.Subject{UID: u.ID, Role: string(u.Role), Admin: u.IsSuperuser})
	if err != nil {
		return TokenOut{}, httpez.Internal("issue token failed", err)
	}
	return TokenOut{Access: pair.Access, Refresh: pair.Refresh, User: u}, nil
}

// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context, _ *gorm.DB, in *identity.RegisterInput) (*domain.User, error) {
	return h.id.Register(c.Request.Context(), *in)
}

// POST /auth/token
func (h *AuthHandler) Token(c *gin.Context, _ *gorm.DB, in *LoginIn) (TokenOut, error) {
	u, err := h.id.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		return TokenOut{}, err
	}
	return h.issue(u)
}

// POST /auth/token/refresh 账号被停用后 refresh 同样失效
func (h *AuthHandler) Refresh(c *gin.Context, _ *gorm.DB, in *RefreshIn) (gin.H, error) {
	access, claims, err := h.jwt.Refresh(c.Request.Context(), in.Refresh)
	if err != nil {
		return nil, tokenErr(err)
	}
	if _, _, err := h.id.Principal(c.Request.Context(), claims.UID); err != nil {
		return nil, err
	}
	return gin.H{"access": access}, nil
}

// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context, _ *gorm.DB, in *RefreshIn) (gin.H, error) {
	if err := h.jwt.Revoke(c.Request.Context(), in.Refresh); err != nil {
		return nil, tokenErr(err)
	}
	return gin.H{"revoked": true}, nil
}

// GET /auth/google
func (h *AuthHandler) GoogleURL(_ *gin.Context, _ *gorm.DB, in *GoogleURLQ) (gin.H, error) {
	url, err := h.id.AuthURL(in.State, in.RedirectURI)
	if err != nil {
		return nil, err
	}
	return gin.H{"auth_url": url}, nil
}

// POST /auth/google/callback
func (h *AuthHandler) GoogleCallback(c *gin.Context, _ *gorm.DB, in *GoogleCallbackIn) (TokenOut, error) {
	if strings.TrimSpace(in.Code) == "" {
		return TokenOut{}, httpez.BadRequest("authorization code is required")
	}
	var st oauthState
	if s := strings.TrimSpace(in.State); s != "" {
		if err := json.Unmarshal([]byte(s), &st); err != nil {
			return TokenOut{}, httpez.BadRequest("malformed state")
		}
	}
	u, err := h.id.ResolveCode(c.Request.Context(), in.Code, st.RedirectURI)
	if err != nil {
		return TokenOut{}, err
	}
	out, err := h.issue(u)
	if err != nil {
		return TokenOut{}, err
	}
	out.RedirectURI = st.From
	return out, nil
}

// POST /auth/google/token 前端已拿到 ID token 时直接换本地 token
func (h *AuthHandler) GoogleToken(c *gin.Context, _ *gorm.DB, in *GoogleTokenIn) (TokenOut, error) {
	u, err := h.id.ResolveOrCreate(c.Request.Context(), in.IDToken)
	if err != nil {
		return TokenOut{}, err
	}
	return h.issue(u)
}

func tokenErr(err error) error {
	switch {
	case errors.Is(err, auth.ErrRevoked):
		return httpez.Unauthorized("refresh token revoked")
	case auth.IsTokenError(err):
		return httpez.Unauthorized("invalid refresh token")
	}
	return httpez.Internal("token check failed", err)
}
