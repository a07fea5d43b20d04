package domain

import (
	"context"
	"strings"
	"time"
)

// RoleTag 角色标识（封闭枚举）；能力授予由 Role 表数据驱动
type RoleTag string

const (
	RolePresident   RoleTag = "PRESIDENT"
	RoleDomainHead  RoleTag = "DOMAIN_HEAD"
	RoleCoordinator RoleTag = "COORDINATOR"
	RoleAssociate   RoleTag = "ASSOCIATE"
)

// AllRoles in tier order, top first.
var AllRoles = []RoleTag{RolePresident, RoleDomainHead, RoleCoordinator, RoleAssociate}

// ParseRoleTag accepts the tag or its display name ("Domain Head", "domain_head").
func ParseRoleTag(s string) (RoleTag, bool) {
	t := strings.ToUpper(strings.TrimSpace(s))
	t = strings.ReplaceAll(t, " ", "_")
	t = strings.ReplaceAll(t, "-", "_")
	for _, r := range AllRoles {
		if string(r) == t {
			return r, true
		}
	}
	return "", false
}

func (r RoleTag) Valid() bool { return r.Tier() < len(AllRoles) }

// Tier 0 为最高
func (r RoleTag) Tier() int {
	for i, t := range AllRoles {
		if t == r {
			return i
		}
	}
	return len(AllRoles)
}

func (r RoleTag) IsTop() bool { return r == RolePresident }

func (r RoleTag) DisplayName() string {
	switch r {
	case RolePresident:
		return "President"
	case RoleDomainHead:
		return "Domain Head"
	case RoleCoordinator:
		return "Coordinator"
	case RoleAssociate:
		return "Associate"
	}
	return string(r)
}

// Capability is a single grant a role may hold.
type Capability string

const (
	CapManageEvents   Capability = "manage_events"
	CapManageProjects Capability = "manage_projects"
)

type CapabilitySet struct {
	ManageEvents   bool `json:"canManageEvents"`
	ManageProjects bool `json:"canManageProjects"`
}

func (s CapabilitySet) Has(c Capability) bool {
	switch c {
	case CapManageEvents:
		return s.ManageEvents
	case CapManageProjects:
		return s.ManageProjects
	}
	return false
}

func (s CapabilitySet) Any() bool { return s.ManageEvents || s.ManageProjects }

// Role 持久化的角色授予
type Role struct {
	Tag               RoleTag   `gorm:"primaryKey;size:32" json:"tag"`
	Name              string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	CanManageEvents   bool      `gorm:"not null" json:"canManageEvents"`
	CanManageProjects bool      `gorm:"not null" json:"canManageProjects"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func (Role) TableName() string { return "roles" }

func (r Role) Capabilities() CapabilitySet {
	return CapabilitySet{ManageEvents: r.CanManageEvents, ManageProjects: r.CanManageProjects}
}

// Domain 组织内的方向（如 Web Development），非总统角色必填
type Domain struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Slug        string    `gorm:"size:120;uniqueIndex;not null" json:"slug"`
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Domain) TableName() string { return "domains" }

type RoleRepository interface {
	List(ctx context.Context) ([]Role, error)
	Get(ctx context.Context, tag RoleTag) (*Role, error)
	Upsert(ctx context.Context, r *Role) error
}

type DomainRepository interface {
	List(ctx context.Context) ([]Domain, error)
	Get(ctx context.Context, id string) (*Domain, error)
	Create(ctx context.Context, d *Domain) error
}
