package domain

import "time"

type ProjectStatus string

const (
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectCompleted  ProjectStatus = "completed"
)

func (s ProjectStatus) Valid() bool { return s == ProjectInProgress || s == ProjectCompleted }

type Project struct {
	ID               string        `gorm:"primaryKey;size:36" json:"id"`
	Name             string        `gorm:"size:255;not null" json:"name" binding:"required,max=255"`
	DescriptionShort string        `gorm:"type:text;not null" json:"descriptionShort" binding:"required"`
	DescriptionLong  string        `gorm:"type:text" json:"descriptionLong"`
	TechStack        []string      `gorm:"serializer:json" json:"techStack"`
	GithubLink       string        `gorm:"size:500" json:"githubLink" binding:"omitempty,url"`
	DeploymentLink   string        `gorm:"size:500" json:"deploymentLink" binding:"omitempty,url"`
	Status           ProjectStatus `gorm:"size:20;not null" json:"status"`
	Image            string        `gorm:"size:500" json:"image"`
	DomainIDs        []string      `gorm:"serializer:json" json:"domainIds"`
	TeamMemberIDs    []string      `gorm:"serializer:json" json:"teamMemberIds"`
	CreatedByID      string        `gorm:"size:36;index;not null" json:"createdBy"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

func (Project) TableName() string { return "projects" }

type Event struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name" binding:"required,max=255"`
	Date        time.Time `gorm:"index;not null" json:"date" binding:"required"`
	Location    string    `gorm:"size:255;not null" json:"location" binding:"required,max=255"`
	Description string    `gorm:"type:text" json:"description"`
	Tags        []string  `gorm:"serializer:json" json:"tags"`
	CreatedByID string    `gorm:"size:36;index;not null" json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Event) TableName() string { return "events" }
