package taxonomy

import (
	"context"
	"fmt"

	"csesa-backend/internal/domain"
)

var defaultDomains = []domain.Domain{
	{Name: "Web Development", Description: "Frontend and backend web technologies"},
	{Name: "System Programming", Description: "Low-level programming and system design"},
	{Name: "Graphical Programming", Description: "Graphics, UI/UX, and visual programming"},
	{Name: "AI/ML", Description: "Artificial Intelligence and Machine Learning"},
	{Name: "Competitive Programming", Description: "Algorithmic problem solving and contests"},
}

// SeedResult 记录本次新建了哪些条目
type SeedResult struct {
	Roles   []domain.RoleTag
	Domains []string
}

// Seed 初始化默认角色与方向；已存在的不覆盖
func Seed(ctx context.Context, roles domain.RoleRepository, domains domain.DomainRepository) (SeedResult, error) {
	var res SeedResult
	for _, tag := range domain.AllRoles {
		existing, err := roles.Get(ctx, tag)
		if err != nil {
			return res, fmt.Errorf("seed role %s: %w", tag, err)
		}
		if existing != nil {
			continue
		}
		set := defaults[tag]
		if err := roles.Upsert(ctx, &domain.Role{
			Tag:               tag,
			Name:              tag.DisplayName(),
			CanManageEvents:   set.ManageEvents,
			CanManageProjects: set.ManageProjects,
		}); err != nil {
			return res, fmt.Errorf("seed role %s: %w", tag, err)
		}
		res.Roles = append(res.Roles, tag)
	}

	existing, err := domains.List(ctx)
	if err != nil {
		return res, fmt.Errorf("seed domains: %w", err)
	}
	have := make(map[string]bool, len(existing))
	for _, d := range existing {
		have[d.Name] = true
	}
	for _, d := range defaultDomains {
		if have[d.Name] {
			continue
		}
		d := d
		if err := domains.Create(ctx, &d); err != nil {
			return res, fmt.Errorf("seed domain %s: %w", d.Name, err)
		}
		res.Domains = append(res.Domains, d.Name)
	}
	return res, nil
}
