package identity

import (
	"regexp"
	"strings"
)

// 学号邮箱本地部分：专业字母 + 两位入学年 + 可选字母 + 4~5 位序号，如 cs21b1001
var rollNo = regexp.MustCompile(`^([a-z]+)(\d{2})[a-z]?\d{4,5}$`)

// ParseInstitutionalEmail derives branch and admission year from a roll-number address.
// Addresses that do not follow the pattern yield empty values rather than an error.
func ParseInstitutionalEmail(email string) (branch, year string) {
	local := strings.ToLower(strings.TrimSpace(email))
	if i := strings.LastIndex(local, "@"); i >= 0 {
		local = local[:i]
	}
	m := rollNo.FindStringSubmatch(local)
	if m == nil {
		return "", ""
	}
	return strings.ToUpper(m[1]), "20" + m[2]
}

// CheckOrgDomain 邮箱 @ 之后部分与允许域名大小写不敏感地完全相等
func CheckOrgDomain(email, allowed string) bool {
	allowed = strings.ToLower(strings.TrimSpace(allowed))
	if allowed == "" {
		return false
	}
	i := strings.LastIndex(email, "@")
	if i < 0 || i == len(email)-1 {
		return false
	}
	return strings.ToLower(strings.TrimSpace(email[i+1:])) == allowed
}
