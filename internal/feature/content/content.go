// Package content holds the project and event collections.
package content

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"csesa-backend/internal/domain"
)

var (
	// 长描述允许常见排版标签，其余字段只保留纯文本
	rich  = bluemonday.UGCPolicy()
	plain = bluemonday.StrictPolicy()
)

func clean(s string) string { return strings.TrimSpace(plain.Sanitize(s)) }

// cleanList 去空、去重、保持顺序
func cleanList(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = clean(v)
		if v == "" || seen[strings.ToLower(v)] {
			continue
		}
		seen[strings.ToLower(v)] = true
		out = append(out, v)
	}
	return out
}

func PrepareProject(p *domain.Project) error {
	p.Name = clean(p.Name)
	p.DescriptionShort = clean(p.DescriptionShort)
	p.DescriptionLong = strings.TrimSpace(rich.Sanitize(p.DescriptionLong))
	p.TechStack = cleanList(p.TechStack)
	p.DomainIDs = cleanList(p.DomainIDs)
	p.TeamMemberIDs = cleanList(p.TeamMemberIDs)
	if p.Status == "" {
		p.Status = domain.ProjectInProgress
	}
	switch {
	case p.Name == "":
		return domain.Validation("name is required")
	case p.DescriptionShort == "":
		return domain.Validation("descriptionShort is required")
	case !p.Status.Valid():
		return domain.Validation("status must be in_progress or completed")
	}
	return nil
}

func PrepareEvent(e *domain.Event) error {
	e.Name = clean(e.Name)
	e.Location = clean(e.Location)
	e.Description = strings.TrimSpace(rich.Sanitize(e.Description))
	e.Tags = cleanList(e.Tags)
	switch {
	case e.Name == "":
		return domain.Validation("name is required")
	case e.Location == "":
		return domain.Validation("location is required")
	case e.Date.IsZero():
		return domain.Validation("date is required")
	}
	return nil
}
