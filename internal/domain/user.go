package domain

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
)

// UnusablePasswordPrefix 邀请/OAuth 账号的密码占位；bcrypt 哈希不会以 '!' 开头
const UnusablePasswordPrefix = "!"

type User struct {
	ID            string         `gorm:"primaryKey;size:36" json:"id"`
	Email         string         `gorm:"uniqueIndex;size:191;not null" json:"email"`
	FirstName     string         `gorm:"size:150" json:"firstName"`
	LastName      string         `gorm:"size:150" json:"lastName"`
	PasswordHash  string         `gorm:"size:191;not null" json:"-"`
	Role          RoleTag        `gorm:"size:32;index" json:"role"`
	DomainID      *string        `gorm:"size:36;index" json:"domainId"`
	IsOnboarded   bool           `gorm:"not null" json:"isOnboarded"`
	IsActive      bool           `gorm:"not null" json:"isActive"`
	IsStaff       bool           `gorm:"not null" json:"isStaff"`
	IsSuperuser   bool           `gorm:"not null" json:"isSuperuser"`
	Branch        string         `gorm:"size:20" json:"branch"`
	AdmissionYear string         `gorm:"size:4" json:"admissionYear"`
	Skills        []string       `gorm:"serializer:json" json:"skills"`
	GithubLink    string         `gorm:"size:500" json:"githubLink"`
	LinkedinLink  string         `gorm:"size:500" json:"linkedinLink"`
	InstagramLink string         `gorm:"size:500" json:"instagramLink"`
	Picture       string         `gorm:"size:500" json:"picture"`
	LastLoginAt   *time.Time     `json:"lastLoginAt"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) Name() string { return strings.TrimSpace(u.FirstName + " " + u.LastName) }

func (u *User) HasUsablePassword() bool {
	return u.PasswordHash != "" && !strings.HasPrefix(u.PasswordHash, UnusablePasswordPrefix)
}

// IsTop 超级用户在能力判定上等同最高角色（覆盖角色数据尚未初始化的引导账号）
func (u *User) IsTop() bool { return u.IsSuperuser || u.Role.IsTop() }

// Validate enforces the record invariants: a login email and a domain for every non-top role.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return Validation("email is required")
	}
	if u.Role != "" && !u.Role.Valid() {
		return Validation("unknown role " + string(u.Role))
	}
	if u.Role != "" && !u.Role.IsTop() && (u.DomainID == nil || *u.DomainID == "") {
		return Validation("domain is required for all roles except President")
	}
	return nil
}

// SplitName 按第一个空格拆分显示名
func SplitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	parts := strings.SplitN(full, " ", 2)
	first = parts[0]
	if len(parts) > 1 {
		last = strings.TrimSpace(parts[1])
	}
	return first, last
}

// NormalizeEmail 邮箱是唯一登录键，统一小写比较
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// SystemState 持久化的一次性标记（如 bootstrap 已完成）
type SystemState struct {
	Key       string    `gorm:"primaryKey;size:64"`
	Value     string    `gorm:"size:191"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (SystemState) TableName() string { return "system_state" }

const StateBootstrap = "bootstrap"

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, offset, limit int, q string) ([]User, int64, error)
	Update(ctx context.Context, u *User) error
	Count(ctx context.Context) (int64, error)
	SoftDelete(ctx context.Context, id string) error
	// Bootstrap 原子地创建首个管理员；已完成或库非空时返回 ErrBootstrapClosed
	Bootstrap(ctx context.Context, u *User) error
	MarkBootstrapped(ctx context.Context) error
}
