package identity

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"csesa-backend/internal/domain"
	"csesa-backend/pkg/utils"
)

type InviteInput struct {
	Email     string         `json:"email" binding:"required"`
	Role      domain.RoleTag `json:"role" binding:"required"`
	DomainID  string         `json:"domainId"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
}

// CanInvite 总统可邀请任意角色；方向负责人不能邀请总统或同级
func CanInvite(requester *domain.User, target domain.RoleTag) bool {
	if requester == nil || !requester.IsActive {
		return false
	}
	if requester.IsTop() {
		return true
	}
	if requester.Role != domain.RoleDomainHead {
		return false
	}
	return target != domain.RolePresident && target != domain.RoleDomainHead
}

// Invite pre-provisions a passwordless, inactive account that is activated by its first
// Google sign-in.
func (s *Service) Invite(ctx context.Context, requester *domain.User, in InviteInput) (*domain.User, error) {
	if requester == nil || !(requester.IsTop() || requester.Role == domain.RoleDomainHead) {
		return nil, domain.ErrPermissionDenied
	}
	email := domain.NormalizeEmail(in.Email)
	if err := s.checkEmail(email); err != nil {
		return nil, err
	}
	role, ok := domain.ParseRoleTag(string(in.Role))
	if !ok {
		return nil, domain.Validation("a valid role is required")
	}
	if !CanInvite(requester, role) {
		return nil, domain.NewError(domain.KindPermissionDenied, "you cannot invite a "+role.DisplayName())
	}
	if !CheckOrgDomain(email, s.allowed) {
		return nil, domain.NewError(domain.KindForbiddenDomain, "only "+s.allowed+" accounts can be invited")
	}

	domainID := in.DomainID
	if domainID == "" && !role.IsTop() && requester.DomainID != nil {
		domainID = *requester.DomainID
	}
	did, err := s.resolveDomain(ctx, role, domainID)
	if err != nil {
		return nil, err
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicateAccount
	}

	branch, year := ParseInstitutionalEmail(email)
	u := &domain.User{
		Email:         email,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		PasswordHash:  utils.UnusablePassword(),
		Role:          role,
		DomainID:      did,
		IsOnboarded:   false,
		IsActive:      false,
		Branch:        branch,
		AdmissionYear: year,
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, domain.ErrDuplicateAccount
		}
		return nil, err
	}
	s.log.Info("member invited",
		zap.String("by", requester.ID), zap.String("email", email), zap.String("role", string(role)))
	return u, nil
}
