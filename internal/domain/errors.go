package domain

import "errors"

// Kind 错误分类：调用方按 Kind 决定重试/提示，而不是解析 msg
type Kind string

const (
	KindInvalidToken          Kind = "invalid_token"
	KindMissingEmail          Kind = "missing_email"
	KindForbiddenDomain       Kind = "forbidden_domain"
	KindAccountNotProvisioned Kind = "account_not_provisioned"
	KindDuplicateAccount      Kind = "duplicate_account"
	KindPermissionDenied      Kind = "permission_denied"
	KindProviderUnavailable   Kind = "provider_unavailable"
	KindValidation            Kind = "validation_error"
	KindInvalidCredentials    Kind = "invalid_credentials"
	KindNotFound              Kind = "not_found"
)

// Error is the error type for every identity/authorization failure surfaced to callers.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind only, so errors.Is(err, ErrForbiddenDomain) holds for any message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrInvalidToken          = &Error{Kind: KindInvalidToken, Msg: "invalid token"}
	ErrMissingEmail          = &Error{Kind: KindMissingEmail, Msg: "email not provided by identity provider"}
	ErrForbiddenDomain       = &Error{Kind: KindForbiddenDomain, Msg: "email domain not allowed"}
	ErrAccountNotProvisioned = &Error{Kind: KindAccountNotProvisioned, Msg: "account not provisioned; ask an administrator for an invite"}
	ErrDuplicateAccount      = &Error{Kind: KindDuplicateAccount, Msg: "account already exists"}
	ErrPermissionDenied      = &Error{Kind: KindPermissionDenied, Msg: "permission denied"}
	ErrProviderUnavailable   = &Error{Kind: KindProviderUnavailable, Msg: "identity provider unavailable"}
	ErrValidation            = &Error{Kind: KindValidation, Msg: "validation error"}
	ErrInvalidCredentials    = &Error{Kind: KindInvalidCredentials, Msg: "invalid credentials"}
	ErrNotFound              = &Error{Kind: KindNotFound, Msg: "not found"}
)

// 存储层哨兵错误（不直接暴露给调用方）
var (
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrBootstrapClosed = errors.New("bootstrap already completed")
)

func NewError(kind Kind, msg string) error { return &Error{Kind: kind, Msg: msg} }

func Wrap(kind Kind, msg string, err error) error { return &Error{Kind: kind, Msg: msg, Err: err} }

func Validation(msg string) error { return &Error{Kind: KindValidation, Msg: msg} }

// KindOf returns the taxonomy kind of err, or "" when err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
