package repo

import (
	"context"
	"errors"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"csesa-backend/internal/domain"
	"csesa-backend/pkg/utils"
)

type RoleRepo struct{ db *gorm.DB }

func NewRoleRepo(db *gorm.DB) *RoleRepo { return &RoleRepo{db: db} }

func (r *RoleRepo) List(ctx context.Context) ([]domain.Role, error) {
	var roles []domain.Role
	if err := r.db.WithContext(ctx).Order("tag").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *RoleRepo) Get(ctx context.Context, tag domain.RoleTag) (*domain.Role, error) {
	var role domain.Role
	err := r.db.WithContext(ctx).First(&role, "tag = ?", tag).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// Upsert 以 tag 为键覆盖能力授予
func (r *RoleRepo) Upsert(ctx context.Context, role *domain.Role) error {
	if role.Name == "" {
		role.Name = role.Tag.DisplayName()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tag"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "can_manage_events", "can_manage_projects", "updated_at"}),
	}).Create(role).Error
}

type DomainRepo struct{ db *gorm.DB }

func NewDomainRepo(db *gorm.DB) *DomainRepo { return &DomainRepo{db: db} }

func (r *DomainRepo) List(ctx context.Context) ([]domain.Domain, error) {
	var ds []domain.Domain
	if err := r.db.WithContext(ctx).Order("name").Find(&ds).Error; err != nil {
		return nil, err
	}
	return ds, nil
}

func (r *DomainRepo) Get(ctx context.Context, id string) (*domain.Domain, error) {
	var d domain.Domain
	err := r.db.WithContext(ctx).First(&d, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *DomainRepo) Create(ctx context.Context, d *domain.Domain) error {
	if d.ID == "" {
		d.ID = utils.NewID()
	}
	if d.Slug == "" {
		d.Slug = slug.Make(d.Name)
	}
	return translate(r.db.WithContext(ctx).Create(d).Error)
}

// Models 需要 AutoMigrate 的全部表
func Models() []any {
	return []any{
		&domain.SystemState{},
		&domain.Role{},
		&domain.Domain{},
		&domain.User{},
		&domain.Project{},
		&domain.Event{},
	}
}
