package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"csesa-backend/internal/domain"
	"csesa-backend/pkg/utils"
)

type RegisterInput struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"firstName" validate:"max=150"`
	LastName  string `json:"lastName" validate:"max=150"`
	DomainID  string `json:"domainId" validate:"required"`
}

// Register creates an active associate with a password login.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Email = domain.NormalizeEmail(in.Email)
	if err := s.check(in); err != nil {
		return nil, err
	}
	if !CheckOrgDomain(in.Email, s.allowed) {
		return nil, domain.NewError(domain.KindForbiddenDomain, "only "+s.allowed+" accounts can register")
	}
	did, err := s.resolveDomain(ctx, domain.RoleAssociate, in.DomainID)
	if err != nil {
		return nil, err
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	branch, year := ParseInstitutionalEmail(in.Email)
	u := &domain.User{
		Email:         in.Email,
		FirstName:     strings.TrimSpace(in.FirstName),
		LastName:      strings.TrimSpace(in.LastName),
		PasswordHash:  hash,
		Role:          domain.RoleAssociate,
		DomainID:      did,
		IsActive:      true,
		Branch:        branch,
		AdmissionYear: year,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, domain.ErrDuplicateAccount
		}
		return nil, err
	}
	return u, nil
}

// Login 密码登录；未激活或无可用密码的账号一律视为凭证错误
func (s *Service) Login(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive || !u.HasUsablePassword() || !utils.CheckPassword(password, u.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	now := s.now()
	u.LastLoginAt = &now
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

type ProfilePatch struct {
	FirstName     *string  `json:"firstName" validate:"omitempty,max=150"`
	LastName      *string  `json:"lastName" validate:"omitempty,max=150"`
	Skills        []string `json:"skills" validate:"omitempty,max=50,dive,max=100"`
	GithubLink    *string  `json:"githubLink" validate:"omitempty,url"`
	LinkedinLink  *string  `json:"linkedinLink" validate:"omitempty,url"`
	InstagramLink *string  `json:"instagramLink" validate:"omitempty,url"`
	Picture       *string  `json:"picture" validate:"omitempty,url"`
}

// UpdateProfile applies the non-nil fields and marks onboarding complete.
func (s *Service) UpdateProfile(ctx context.Context, userID string, p ProfilePatch) (*domain.User, error) {
	if err := s.check(p); err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrNotFound
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	set(&u.FirstName, p.FirstName)
	set(&u.LastName, p.LastName)
	set(&u.GithubLink, p.GithubLink)
	set(&u.LinkedinLink, p.LinkedinLink)
	set(&u.InstagramLink, p.InstagramLink)
	set(&u.Picture, p.Picture)
	if p.Skills != nil {
		u.Skills = p.Skills
	}
	u.IsOnboarded = true
	if err := s.users.Update(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

type PresidentInput struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// CreatePresident provisions a president from the command line and closes the sign-in
// bootstrap path.
func (s *Service) CreatePresident(ctx context.Context, in PresidentInput) (*domain.User, error) {
	in.Email = domain.NormalizeEmail(in.Email)
	if err := s.check(in); err != nil {
		return nil, err
	}
	existing, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicateAccount
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	branch, year := ParseInstitutionalEmail(in.Email)
	u := &domain.User{
		Email:         in.Email,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		PasswordHash:  hash,
		Role:          domain.RolePresident,
		IsOnboarded:   true,
		IsActive:      true,
		IsStaff:       true,
		IsSuperuser:   true,
		Branch:        branch,
		AdmissionYear: year,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, domain.ErrDuplicateAccount
		}
		return nil, err
	}
	if err := s.users.MarkBootstrapped(ctx); err != nil {
		return nil, err
	}
	s.log.Info("president created", zap.String("user_id", u.ID), zap.String("email", u.Email))
	return u, nil
}

// hashPassword validator 的 max 按字符计数，字节上限在这里兜住
func hashPassword(pw string) (string, error) {
	hash, err := utils.HashPassword(pw)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", domain.Validation(fmt.Sprintf("password must be at most %d bytes", utils.MaxPasswordBytes))
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}
