package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"csesa-backend/internal/domain"
	"csesa-backend/pkg/utils"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = utils.NewID()
	}
	u.Email = domain.NormalizeEmail(u.Email)
	return translate(r.db.WithContext(ctx).Create(u).Error)
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).First(&u, "email = ?", domain.NormalizeEmail(email)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) List(ctx context.Context, offset, limit int, q string) ([]domain.User, int64, error) {
	var users []domain.User
	tx := r.db.WithContext(ctx).Model(&domain.User{})
	if s := strings.TrimSpace(q); s != "" {
		like := "%" + s + "%"
		tx = tx.Where("email LIKE ? OR first_name LIKE ? OR last_name LIKE ?", like, like, like)
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := tx.Offset(offset).Limit(limit).Order("created_at desc").Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Count 未删除的账号数
func (r *UserRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.User{}).Count(&n).Error
	return n, err
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	return translate(r.db.WithContext(ctx).Save(u).Error)
}

func (r *UserRepo) SoftDelete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Bootstrap 在同一事务里先写入 bootstrap 标记（主键唯一，天然串行化并发首登），
// 再确认库为空后创建首个管理员。
func (r *UserRepo) Bootstrap(ctx context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = utils.NewID()
	}
	u.Email = domain.NormalizeEmail(u.Email)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		marker := domain.SystemState{Key: domain.StateBootstrap, Value: u.Email}
		if err := translate(tx.Create(&marker).Error); err != nil {
			if errors.Is(err, domain.ErrDuplicateKey) {
				return domain.ErrBootstrapClosed
			}
			return err
		}
		var n int64
		if err := tx.Unscoped().Model(&domain.User{}).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			// 存量数据（无标记）同样视为已引导；回滚让标记不落库
			return domain.ErrBootstrapClosed
		}
		return translate(tx.Create(u).Error)
	})
}

// MarkBootstrapped 幂等：CLI 创建首个管理员后关闭 OAuth 引导路径
func (r *UserRepo) MarkBootstrapped(ctx context.Context) error {
	err := translate(r.db.WithContext(ctx).Create(&domain.SystemState{Key: domain.StateBootstrap, Value: "cli"}).Error)
	if errors.Is(err, domain.ErrDuplicateKey) {
		return nil
	}
	return err
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDupKey(err) {
		return errors.Join(domain.ErrDuplicateKey, err)
	}
	return err
}

func isDupKey(err error) bool {
	// 不完全依赖 gorm.ErrDuplicatedKey：未开启 TranslateError 的连接也能识别
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique violation") ||
		strings.Contains(msg, "duplicate key")
}
