package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"csesa-backend/internal/domain"
	"csesa-backend/internal/feature/access"
	"csesa-backend/internal/feature/taxonomy"
)

type UserService struct {
	users   domain.UserRepository
	domains domain.DomainRepository
	roles   *taxonomy.Registry
	log     *zap.Logger
}

func NewUserService(users domain.UserRepository, domains domain.DomainRepository, roles *taxonomy.Registry, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{users: users, domains: domains, roles: roles, log: log}
}

func (s *UserService) List(ctx context.Context, p *access.Principal, offset, limit int, q string) ([]domain.User, int64, error) {
	if err := access.Authorize(p, access.OpList, access.Resource{Kind: access.KindIdentity}); err != nil {
		return nil, 0, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.users.List(ctx, offset, limit, q)
}

func (s *UserService) Get(ctx context.Context, p *access.Principal, id string) (*domain.User, error) {
	if err := access.Authorize(p, access.OpRead, access.Resource{Kind: access.KindIdentity}); err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

// Ban 软删除账号；不能封禁自己
func (s *UserService) Ban(ctx context.Context, p *access.Principal, id string) error {
	if err := access.Authorize(p, access.OpDelete, access.Resource{Kind: access.KindIdentity}); err != nil {
		return err
	}
	if p.UserID == id {
		return domain.Validation("you cannot ban yourself")
	}
	if err := s.users.SoftDelete(ctx, id); err != nil {
		return err
	}
	s.log.Info("user banned", zap.String("by", p.UserID), zap.String("user_id", id))
	return nil
}

// ChangeRole 角色调整；非总统角色必须带方向
func (s *UserService) ChangeRole(ctx context.Context, p *access.Principal, id string, role domain.RoleTag, domainID string) (*domain.User, error) {
	if err := access.Authorize(p, access.OpUpdate, access.Resource{Kind: access.KindIdentity}); err != nil {
		return nil, err
	}
	tag, ok := domain.ParseRoleTag(string(role))
	if !ok {
		return nil, domain.Validation("a valid role is required")
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrNotFound
	}
	if p.UserID == id && !tag.IsTop() {
		return nil, domain.Validation("you cannot demote yourself")
	}
	if domainID = strings.TrimSpace(domainID); domainID != "" {
		d, err := s.domains.Get(ctx, domainID)
		if err != nil {
			return nil, err
		}
		if d == nil {
			return nil, domain.Validation("unknown domain " + domainID)
		}
		u.DomainID = &d.ID
	}
	u.Role = tag
	// 超级用户标记随最高角色走，降级时一并收回
	if !tag.IsTop() {
		u.IsSuperuser = false
		u.IsStaff = false
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info("role changed", zap.String("by", p.UserID), zap.String("user_id", id), zap.String("role", string(tag)))
	return u, nil
}

func (s *UserService) Roles(ctx context.Context) ([]domain.Role, error) { return s.roles.List(ctx) }

// UpdateRoleGrants 修改角色能力，生效于下一次请求
func (s *UserService) UpdateRoleGrants(ctx context.Context, p *access.Principal, tag domain.RoleTag, set domain.CapabilitySet) (*domain.Role, error) {
	if err := access.Authorize(p, access.OpUpdate, access.Resource{Kind: access.KindTaxonomy}); err != nil {
		return nil, err
	}
	t, ok := domain.ParseRoleTag(string(tag))
	if !ok {
		return nil, domain.Validation("unknown role " + string(tag))
	}
	r, err := s.roles.Update(ctx, t, set)
	if err != nil {
		return nil, err
	}
	s.log.Info("role grants updated", zap.String("by", p.UserID), zap.String("role", string(t)),
		zap.Bool("events", set.ManageEvents), zap.Bool("projects", set.ManageProjects))
	return r, nil
}

func (s *UserService) Domains(ctx context.Context) ([]domain.Domain, error) {
	return s.domains.List(ctx)
}

func (s *UserService) CreateDomain(ctx context.Context, p *access.Principal, name, description string) (*domain.Domain, error) {
	if err := access.Authorize(p, access.OpCreate, access.Resource{Kind: access.KindTaxonomy}); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Validation("name is required")
	}
	d := &domain.Domain{Name: name, Description: strings.TrimSpace(description)}
	if err := s.domains.Create(ctx, d); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, domain.Validation("domain " + name + " already exists")
		}
		return nil, err
	}
	return d, nil
}
