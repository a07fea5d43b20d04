package content

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"csesa-backend/internal/domain"
	"csesa-backend/internal/feature/access"
	httpez "csesa-backend/internal/transport/http/ez"
)

// DomainLookup 校验项目引用的方向是否存在
type DomainLookup interface {
	Get(ctx context.Context, id string) (*domain.Domain, error)
}

// Module 挂载 /projects 与 /events
type Module struct {
	DB             *gorm.DB
	Domains        DomainLookup
	PublicProjects bool
	PublicEvents   bool
}

func (m *Module) Priority() int { return 50 }

func (m *Module) MountAPI(api *gin.RouterGroup) {
	httpez.Crud[domain.Project](httpez.CrudConfig[domain.Project]{
		DB:         m.DB,
		Group:      api,
		Path:       "/projects",
		New:        func() *domain.Project { return &domain.Project{} },
		Kind:       access.KindProjects,
		PublicRead: m.PublicProjects,
		OrderBy:    "created_at DESC",
		Hooks: httpez.CrudHooks[domain.Project]{
			BeforeCreate: m.beforeProject,
			BeforeUpdate: m.beforeProject,
			ScopeList:    scopeProjects,
		},
	})
	httpez.Crud[domain.Event](httpez.CrudConfig[domain.Event]{
		DB:         m.DB,
		Group:      api,
		Path:       "/events",
		New:        func() *domain.Event { return &domain.Event{} },
		Kind:       access.KindEvents,
		PublicRead: m.PublicEvents,
		OrderBy:    "date DESC",
		Hooks: httpez.CrudHooks[domain.Event]{
			BeforeCreate: func(_ *gin.Context, e *domain.Event) error { return PrepareEvent(e) },
			BeforeUpdate: func(_ *gin.Context, e *domain.Event) error { return PrepareEvent(e) },
			ScopeList:    scopeEvents,
		},
	})
}

func (m *Module) beforeProject(c *gin.Context, p *domain.Project) error {
	if err := PrepareProject(p); err != nil {
		return err
	}
	if m.Domains == nil {
		return nil
	}
	for _, id := range p.DomainIDs {
		d, err := m.Domains.Get(c.Request.Context(), id)
		if err != nil {
			return err
		}
		if d == nil {
			return domain.Validation("unknown domain " + id)
		}
	}
	return nil
}

// scopeProjects ?status=completed&domain=<id>
func scopeProjects(c *gin.Context, q *gorm.DB) *gorm.DB {
	if s := domain.ProjectStatus(c.Query("status")); s.Valid() {
		q = q.Where("status = ?", s)
	}
	if d := strings.TrimSpace(c.Query("domain")); d != "" {
		// domain_ids 以 JSON 数组存储
		q = q.Where("domain_ids LIKE ?", `%"`+d+`"%`)
	}
	return q
}

// scopeEvents ?upcoming=true&tag=workshop
func scopeEvents(c *gin.Context, q *gorm.DB) *gorm.DB {
	if up, _ := strconv.ParseBool(c.Query("upcoming")); up {
		q = q.Where("date >= ?", time.Now().Truncate(24*time.Hour))
	}
	if t := strings.TrimSpace(c.Query("tag")); t != "" {
		q = q.Where("tags LIKE ?", `%"`+t+`"%`)
	}
	return q
}
