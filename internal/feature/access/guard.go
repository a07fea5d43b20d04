// Package access decides whether a caller may perform an operation on a resource.
//
// Authorize is a pure function: everything it needs (role grants included) is carried in the
// Principal, so the same three inputs always produce the same answer.
package access

import "csesa-backend/internal/domain"

type Operation string

const (
	OpList   Operation = "list"
	OpRead   Operation = "read"
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

func (o Operation) Mutating() bool {
	return o == OpCreate || o == OpUpdate || o == OpDelete
}

func (o Operation) Valid() bool {
	return o == OpList || o == OpRead || o.Mutating()
}

type Kind string

const (
	KindEvents   Kind = "events"
	KindProjects Kind = "projects"
	KindIdentity Kind = "identity"
	KindTaxonomy Kind = "taxonomy"
)

// capability 对应资源类型所需的能力；identity/taxonomy 无可授予能力，只有最高角色可改
func (k Kind) capability() (domain.Capability, bool) {
	switch k {
	case KindEvents:
		return domain.CapManageEvents, true
	case KindProjects:
		return domain.CapManageProjects, true
	}
	return "", false
}

type Principal struct {
	UserID       string
	Role         domain.RoleTag
	Capabilities domain.CapabilitySet
	Superuser    bool
}

func (p *Principal) top() bool { return p.Superuser || p.Role.IsTop() }

// Resource OwnerID 为空表示集合级操作或无主对象
type Resource struct {
	Kind       Kind
	OwnerID    string
	PublicRead bool
}

// Authorize returns nil when p may perform op on res, domain.ErrPermissionDenied otherwise.
// p is nil for anonymous callers.
func Authorize(p *Principal, op Operation, res Resource) error {
	// 未知操作一律拒绝，不按读处理
	if !op.Valid() {
		return domain.ErrPermissionDenied
	}
	if !op.Mutating() {
		if res.PublicRead || p != nil {
			return nil
		}
		return domain.ErrPermissionDenied
	}
	if p == nil {
		return domain.ErrPermissionDenied
	}
	if p.top() {
		return nil
	}
	if c, ok := res.Kind.capability(); ok && p.Capabilities.Has(c) {
		return nil
	}
	// 创建没有既有所有者
	if op != OpCreate && res.OwnerID != "" && res.OwnerID == p.UserID {
		return nil
	}
	return domain.ErrPermissionDenied
}

func Allowed(p *Principal, op Operation, res Resource) bool {
	return Authorize(p, op, res) == nil
}
