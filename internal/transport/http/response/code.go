package response

import "csesa-backend/internal/domain"

// 常见业务 系统级错误码（直接基于 HTTP 语义）
const (
	CodeOK           = 0
	CodeBadRequest   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeTooMany      = 429
	CodeServerError  = 500
	CodeUnavailable  = 503
	CodeTimeout      = 504
)

// CodeMsgMap 用于集中管理 code - msg
var CodeMsgMap = map[int]string{
	CodeOK:           "OK",
	CodeBadRequest:   "Bad Request",
	CodeUnauthorized: "Unauthorized",
	CodeForbidden:    "Forbidden",
	CodeNotFound:     "Not Found",
	CodeConflict:     "Conflict",
	CodeTooMany:      "Too Many Requests",
	CodeServerError:  "Internal Server Error",
	CodeUnavailable:  "Service Unavailable",
	CodeTimeout:      "Gateway Timeout",
}

// KindCodes 领域错误类别 → 业务码
var KindCodes = map[domain.Kind]int{
	domain.KindInvalidToken:          CodeUnauthorized,
	domain.KindMissingEmail:          CodeBadRequest,
	domain.KindForbiddenDomain:       CodeForbidden,
	domain.KindAccountNotProvisioned: CodeForbidden,
	domain.KindDuplicateAccount:      CodeConflict,
	domain.KindPermissionDenied:      CodeForbidden,
	domain.KindProviderUnavailable:   CodeUnavailable,
	domain.KindValidation:            CodeBadRequest,
	domain.KindInvalidCredentials:    CodeUnauthorized,
	domain.KindNotFound:              CodeNotFound,
}
