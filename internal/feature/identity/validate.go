package identity

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"csesa-backend/internal/domain"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 错误信息使用 json 字段名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Service) check(in any) error {
	err := s.validate.Struct(in)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		f := ve[0]
		if f.Tag() == "required" {
			return domain.Validation(f.Field() + " is required")
		}
		return domain.Validation(fmt.Sprintf("%s is invalid (%s)", f.Field(), f.Tag()))
	}
	return domain.Validation(err.Error())
}

func (s *Service) checkEmail(email string) error {
	if err := s.validate.Var(email, "required,email"); err != nil {
		return domain.Validation("a valid email is required")
	}
	return nil
}

// resolveDomain 非总统角色必须属于一个已存在的方向
func (s *Service) resolveDomain(ctx context.Context, role domain.RoleTag, id string) (*string, error) {
	id = strings.TrimSpace(id)
	if role.IsTop() {
		if id == "" {
			return nil, nil
		}
	} else if id == "" {
		return nil, domain.Validation("domain is required for all roles except President")
	}
	d, err := s.domains.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, domain.Validation("unknown domain " + id)
	}
	return &d.ID, nil
}
