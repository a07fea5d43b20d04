// Package taxonomy resolves role tags to capability grants.
//
// Grants live in the roles table so they can be changed at runtime; tags without a row fall back
// to the built-in defaults below.
package taxonomy

import (
	"context"
	"time"

	"csesa-backend/internal/core/cache"
	"csesa-backend/internal/domain"
)

const cacheKey = "taxonomy:roles"

var defaults = map[domain.RoleTag]domain.CapabilitySet{
	domain.RolePresident:   {ManageEvents: true, ManageProjects: true},
	domain.RoleDomainHead:  {ManageEvents: true, ManageProjects: true},
	domain.RoleCoordinator: {},
	domain.RoleAssociate:   {},
}

// Defaults returns a copy of the built-in grants.
func Defaults() map[domain.RoleTag]domain.CapabilitySet {
	out := make(map[domain.RoleTag]domain.CapabilitySet, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	return out
}

type Registry struct {
	roles domain.RoleRepository
	cache *cache.Cache
	ttl   time.Duration
}

// NewRegistry c 可为 nil（不缓存）
func NewRegistry(roles domain.RoleRepository, c *cache.Cache, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Registry{roles: roles, cache: c, ttl: ttl}
}

func (r *Registry) load(ctx context.Context) ([]domain.Role, error) {
	if r.cache == nil {
		return r.roles.List(ctx)
	}
	rows, err := cache.GetOrLoadJSON(r.cache, ctx, cacheKey, r.ttl, func(ctx context.Context) (*[]domain.Role, error) {
		rs, err := r.roles.List(ctx)
		if err != nil {
			return nil, err
		}
		return &rs, nil
	})
	if err != nil {
		return nil, err
	}
	if rows == nil {
		return nil, nil
	}
	return *rows, nil
}

// Grants 当前全部角色的能力表
func (r *Registry) Grants(ctx context.Context) (map[domain.RoleTag]domain.CapabilitySet, error) {
	rows, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	out := Defaults()
	for _, row := range rows {
		if row.Tag.Valid() {
			out[row.Tag] = row.Capabilities()
		}
	}
	return out, nil
}

func (r *Registry) For(ctx context.Context, tag domain.RoleTag) (domain.CapabilitySet, error) {
	g, err := r.Grants(ctx)
	if err != nil {
		return domain.CapabilitySet{}, err
	}
	return g[tag], nil
}

// List 每个角色一行，按层级排序
func (r *Registry) List(ctx context.Context) ([]domain.Role, error) {
	g, err := r.Grants(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Role, 0, len(domain.AllRoles))
	for _, tag := range domain.AllRoles {
		set := g[tag]
		out = append(out, domain.Role{
			Tag:               tag,
			Name:              tag.DisplayName(),
			CanManageEvents:   set.ManageEvents,
			CanManageProjects: set.ManageProjects,
		})
	}
	return out, nil
}

// Update 覆盖某角色的授予并使缓存失效
func (r *Registry) Update(ctx context.Context, tag domain.RoleTag, set domain.CapabilitySet) (*domain.Role, error) {
	if !tag.Valid() {
		return nil, domain.Validation("unknown role " + string(tag))
	}
	role := &domain.Role{
		Tag:               tag,
		Name:              tag.DisplayName(),
		CanManageEvents:   set.ManageEvents,
		CanManageProjects: set.ManageProjects,
	}
	if err := r.roles.Upsert(ctx, role); err != nil {
		return nil, err
	}
	if err := r.Invalidate(ctx); err != nil {
		return nil, err
	}
	return role, nil
}

// Invalidate 丢弃缓存的能力表，下次读取回源
func (r *Registry) Invalidate(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	return r.cache.Invalidate(ctx, cacheKey)
}
