package response

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"csesa-backend/internal/domain"
)

func TestFromDomain(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{domain.ErrInvalidToken, CodeUnauthorized},
		{domain.ErrMissingEmail, CodeBadRequest},
		{domain.ErrForbiddenDomain, CodeForbidden},
		{domain.ErrAccountNotProvisioned, CodeForbidden},
		{domain.ErrDuplicateAccount, CodeConflict},
		{domain.ErrPermissionDenied, CodeForbidden},
		{domain.ErrProviderUnavailable, CodeUnavailable},
		{domain.Validation("name is required"), CodeBadRequest},
		{fmt.Errorf("wrapped: %w", domain.ErrNotFound), CodeNotFound},
	}
	for _, tc := range cases {
		r, ok := FromDomain(tc.err)
		assert.True(t, ok)
		assert.Equal(t, tc.code, r.Code, tc.err.Error())
		assert.Equal(t, KindData{Kind: domain.KindOf(tc.err)}, r.Data)
	}

	_, ok := FromDomain(errors.New("plain"))
	assert.False(t, ok)
}

func TestNewNeverNullData(t *testing.T) {
	r := OK(nil)
	assert.Equal(t, struct{}{}, r.Data)
	assert.Equal(t, "OK", r.Msg)
	assert.Equal(t, "Conflict", Error(CodeConflict, "").Msg)
	assert.Equal(t, "custom", Error(CodeConflict, "custom").Msg)
}
