// Package identity resolves Google sign-ins to member accounts and owns the account lifecycle:
// bootstrap of the first president, invites, password registration and profile updates.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"csesa-backend/internal/domain"
	"csesa-backend/internal/feature/access"
	"csesa-backend/internal/feature/oauth"
	"csesa-backend/pkg/utils"
)

// Provider 外部身份提供方（Google）
type Provider interface {
	AuthURL(state, redirectURI string) string
	Exchange(ctx context.Context, code, redirectURI string) (string, error)
	Verify(ctx context.Context, rawIDToken string) (*oauth.Claims, error)
}

// Grants resolves a role tag to its capability grants (taxonomy.Registry).
type Grants interface {
	For(ctx context.Context, tag domain.RoleTag) (domain.CapabilitySet, error)
}

type Service struct {
	users    domain.UserRepository
	domains  domain.DomainRepository
	grants   Grants
	provider Provider
	allowed  string
	log      *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

func New(users domain.UserRepository, domains domain.DomainRepository, grants Grants,
	provider Provider, allowedDomain string, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		users:    users,
		domains:  domains,
		grants:   grants,
		provider: provider,
		allowed:  allowedDomain,
		log:      log,
		validate: newValidator(),
		now:      time.Now,
	}
}

func (s *Service) AllowedDomain() string { return s.allowed }

func (s *Service) AuthURL(state, redirectURI string) (string, error) {
	if s.provider == nil {
		return "", domain.NewError(domain.KindProviderUnavailable, "google sign-in is not configured")
	}
	return s.provider.AuthURL(state, redirectURI), nil
}

// ResolveCode exchanges an authorization code and resolves the resulting ID token.
func (s *Service) ResolveCode(ctx context.Context, code, redirectURI string) (*domain.User, error) {
	if s.provider == nil {
		return nil, domain.NewError(domain.KindProviderUnavailable, "google sign-in is not configured")
	}
	raw, err := s.provider.Exchange(ctx, code, redirectURI)
	if err != nil {
		observe(outcomeOf(err))
		return nil, err
	}
	return s.ResolveOrCreate(ctx, raw)
}

// ResolveOrCreate maps a verified Google ID token to a member account.
//
// Known emails get empty profile fields backfilled and invited accounts activated. An unknown
// email is only accepted while the store is empty; it becomes the first president.
func (s *Service) ResolveOrCreate(ctx context.Context, rawIDToken string) (*domain.User, error) {
	u, outcome, err := s.resolve(ctx, rawIDToken)
	if err != nil {
		observe(outcomeOf(err))
		return nil, err
	}
	observe(outcome)
	return u, nil
}

func (s *Service) resolve(ctx context.Context, raw string) (*domain.User, string, error) {
	if s.provider == nil {
		return nil, "", domain.NewError(domain.KindProviderUnavailable, "google sign-in is not configured")
	}
	c, err := s.provider.Verify(ctx, raw)
	if err != nil {
		if domain.KindOf(err) == "" {
			err = domain.Wrap(domain.KindInvalidToken, "invalid token", err)
		}
		return nil, "", err
	}
	email := domain.NormalizeEmail(c.Email)
	if email == "" || !c.EmailVerified {
		return nil, "", domain.ErrMissingEmail
	}
	if !CheckOrgDomain(email, s.allowed) {
		return nil, "", domain.NewError(domain.KindForbiddenDomain,
			fmt.Sprintf("only %s accounts are allowed", s.allowed))
	}

	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", err
	}
	if u != nil {
		return s.refresh(ctx, u, c)
	}

	u, err = s.bootstrap(ctx, email, c)
	switch {
	case err == nil:
		s.log.Info("bootstrap president created", zap.String("user_id", u.ID), zap.String("email", email))
		return u, outcomeBootstrap, nil
	case errors.Is(err, domain.ErrBootstrapClosed), errors.Is(err, domain.ErrDuplicateKey):
		// 并发首登或已有成员：按查找重试
		existing, ferr := s.users.FindByEmail(ctx, email)
		if ferr != nil {
			return nil, "", ferr
		}
		if existing != nil {
			return s.refresh(ctx, existing, c)
		}
		return nil, "", domain.ErrAccountNotProvisioned
	default:
		return nil, "", err
	}
}

// refresh 只回填空字段，不覆盖已有值
func (s *Service) refresh(ctx context.Context, u *domain.User, c *oauth.Claims) (*domain.User, string, error) {
	outcome := outcomeExisting
	first, last := claimNames(c)
	if u.FirstName == "" {
		u.FirstName = first
	}
	if u.LastName == "" {
		u.LastName = last
	}
	if u.Picture == "" {
		u.Picture = c.Picture
	}
	if u.Branch == "" && u.AdmissionYear == "" {
		u.Branch, u.AdmissionYear = ParseInstitutionalEmail(u.Email)
	}
	if !u.IsActive {
		u.IsActive = true
		outcome = outcomeActivated
	}
	now := s.now()
	u.LastLoginAt = &now
	if err := s.users.Update(ctx, u); err != nil {
		return nil, "", err
	}
	return u, outcome, nil
}

func (s *Service) bootstrap(ctx context.Context, email string, c *oauth.Claims) (*domain.User, error) {
	first, last := claimNames(c)
	branch, year := ParseInstitutionalEmail(email)
	now := s.now()
	u := &domain.User{
		Email:         email,
		FirstName:     first,
		LastName:      last,
		PasswordHash:  utils.UnusablePassword(),
		Role:          domain.RolePresident,
		IsOnboarded:   true,
		IsActive:      true,
		IsStaff:       true,
		IsSuperuser:   true,
		Branch:        branch,
		AdmissionYear: year,
		Picture:       c.Picture,
		LastLoginAt:   &now,
	}
	if err := s.users.Bootstrap(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func claimNames(c *oauth.Claims) (first, last string) {
	first, last = c.GivenName, c.FamilyName
	if first == "" && last == "" {
		return domain.SplitName(c.Name)
	}
	return first, last
}

func outcomeOf(err error) string {
	if k := domain.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}

// Principal loads the caller's account and its current grants. Disabled or deleted accounts
// are rejected as an invalid token.
func (s *Service) Principal(ctx context.Context, userID string) (*access.Principal, *domain.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if u == nil || !u.IsActive {
		return nil, nil, domain.NewError(domain.KindInvalidToken, "account is disabled or no longer exists")
	}
	p, err := s.PrincipalOf(ctx, u)
	if err != nil {
		return nil, nil, err
	}
	return p, u, nil
}

func (s *Service) PrincipalOf(ctx context.Context, u *domain.User) (*access.Principal, error) {
	caps, err := s.grants.For(ctx, u.Role)
	if err != nil {
		return nil, err
	}
	return &access.Principal{
		UserID:       u.ID,
		Role:         u.Role,
		Capabilities: caps,
		Superuser:    u.IsSuperuser,
	}, nil
}
