package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"csesa-backend/pkg/utils"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrRevoked      = errors.New("token revoked")
	ErrWrongType    = errors.New("wrong token type")
)

type Claims struct {
	UID   string `json:"uid"`
	Role  string `json:"role"`          // 角色 tag，如 PRESIDENT
	Admin bool   `json:"adm,omitempty"` // 超级用户/后台权限
	Type  string `json:"typ"`           // access / refresh
	jwt.RegisteredClaims
}

// Pair 一次签发的 access + refresh，refresh 以 jti 独立吊销
type Pair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Subject 签发时需要的最小身份信息
type Subject struct {
	UID   string
	Role  string
	Admin bool
}

type JWTer struct {
	Secret     []byte
	Issuer     string
	TTL        time.Duration
	RefreshTTL time.Duration
	Revoker    Revoker // 可为空：不支持吊销
}

func (j *JWTer) IssuePair(s Subject) (Pair, error) {
	access, err := j.sign(s, TypeAccess, j.TTL)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := j.sign(s, TypeRefresh, j.refreshTTL())
	if err != nil {
		return Pair{}, err
	}
	return Pair{Access: access, Refresh: refresh}, nil
}

func (j *JWTer) sign(s Subject, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UID:   s.UID,
		Role:  s.Role,
		Admin: s.Admin,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        utils.NewID(),
			Subject:   s.UID,
			Issuer:    j.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

func (j *JWTer) refreshTTL() time.Duration {
	if j.RefreshTTL > 0 {
		return j.RefreshTTL
	}
	return 7 * 24 * time.Hour
}

func (j *JWTer) Parse(tokenStr string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected alg")
		}
		return j.Secret, nil
	}, jwt.WithIssuer(j.Issuer), jwt.WithLeeway(60*time.Second))

	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid {
		return c, nil
	}
	return nil, ErrInvalidToken
}

// ParseAccess 只接受 access token；缺省 typ 的旧 token 视为 access
func (j *JWTer) ParseAccess(tokenStr string) (*Claims, error) {
	c, err := j.Parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if c.Type != "" && c.Type != TypeAccess {
		return nil, ErrWrongType
	}
	return c, nil
}

// Refresh 用 refresh token 换新的 access token
func (j *JWTer) Refresh(ctx context.Context, refresh string) (string, *Claims, error) {
	c, err := j.Parse(refresh)
	if err != nil {
		return "", nil, err
	}
	if c.Type != TypeRefresh {
		return "", nil, ErrWrongType
	}
	if j.Revoker != nil {
		revoked, err := j.Revoker.IsRevoked(ctx, c.ID)
		if err != nil {
			return "", nil, err
		}
		if revoked {
			return "", nil, ErrRevoked
		}
	}
	access, err := j.sign(Subject{UID: c.UID, Role: c.Role, Admin: c.Admin}, TypeAccess, j.TTL)
	if err != nil {
		return "", nil, err
	}
	return access, c, nil
}

// Revoke 吊销 refresh token（登出）
func (j *JWTer) Revoke(ctx context.Context, refresh string) error {
	c, err := j.Parse(refresh)
	if err != nil {
		return err
	}
	if c.Type != TypeRefresh {
		return ErrWrongType
	}
	if j.Revoker == nil {
		return nil
	}
	ttl := time.Until(c.ExpiresAt.Time)
	return j.Revoker.Revoke(ctx, c.ID, ttl)
}

// IsTokenError 是否为 token 本身的问题（格式、签名、过期、类型、吊销），区别于存储故障
func IsTokenError(err error) bool {
	for _, target := range []error{
		ErrInvalidToken, ErrRevoked, ErrWrongType,
		jwt.ErrTokenMalformed, jwt.ErrTokenUnverifiable, jwt.ErrTokenSignatureInvalid,
		jwt.ErrTokenExpired, jwt.ErrTokenNotValidYet, jwt.ErrTokenUsedBeforeIssued,
		jwt.ErrTokenInvalidIssuer, jwt.ErrTokenInvalidClaims,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
