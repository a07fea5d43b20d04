package ez

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"csesa-backend/internal/feature/access"
	mdw "csesa-backend/internal/transport/http/middleware"
	resp "csesa-backend/internal/transport/http/response"
	"csesa-backend/pkg/utils"
)

// Hook
type CrudHooks[T any] struct {
	BeforeCreate func(c *gin.Context, m *T) error
	BeforeUpdate func(c *gin.Context, m *T) error
	ScopeList    func(c *gin.Context, q *gorm.DB) *gorm.DB // 自定义筛选/排序
	AfterGet     func(c *gin.Context, m *T)
}

type CrudConfig[T any] struct {
	DB    *gorm.DB
	Group *gin.RouterGroup // 需已挂 OptionalAuth/AuthJWT（能拿 principal）
	Path  string
	New   func() *T

	Hooks CrudHooks[T]

	AllowCreate bool
	AllowList   bool
	AllowGet    bool
	AllowUpdate bool
	AllowDelete bool

	IDField    string // 默认 "ID"
	OwnerField string // 默认优先 "CreatedByID"，其次 "OwnerID"/"UserID"

	AutoID bool          // 默认 true
	IDGen  func() string // 默认 utils.NewID

	// 列表排序（列名按模型字段自动转 snake_case），为空则按 ID DESC
	OrderBy string // 例如 "CreatedAt DESC"

	// 权限：资源类型 + 匿名可读开关；Authorize 为空时用 access.Authorize
	Kind       access.Kind
	PublicRead bool
	Authorize  func(p *access.Principal, op access.Operation, res access.Resource) error
}

// 反射 & 工具
func (c *CrudConfig[T]) idFieldCandidates() []string {
	if c.IDField != "" {
		return []string{c.IDField, "ID", "Id"}
	}
	return []string{"ID", "Id"}
}

func (c *CrudConfig[T]) ownerFieldCandidates() []string {
	if c.OwnerField != "" {
		return []string{c.OwnerField, "CreatedByID", "OwnerID", "UserID"}
	}
	return []string{"CreatedByID", "OwnerID", "UserID"}
}

func getStringFieldPtr(obj any, candidates []string) (*string, bool) {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Ptr {
		return nil, false
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return nil, false
	}
	t := v.Type()
	// 按候选顺序匹配，靠前的优先
	for _, cand := range candidates {
		f, ok := t.FieldByName(cand)
		if !ok || f.PkgPath != "" || len(f.Index) != 1 {
			continue
		}
		fv := v.Field(f.Index[0])
		if fv.Kind() == reflect.String && fv.CanSet() {
			return fv.Addr().Interface().(*string), true
		}
	}
	return nil, false
}

func readStringField(obj any, candidates []string) (string, bool) {
	p, ok := getStringFieldPtr(obj, candidates)
	if !ok {
		return "", false
	}
	return *p, true
}

func writeStringField(obj any, candidates []string, val string) bool {
	p, ok := getStringFieldPtr(obj, candidates)
	if !ok {
		return false
	}
	*p = val
	return true
}

// copyField 把 src 的同名导出字段拷回 dst（两者同类型的结构体指针）
func copyField(dst, src any, name string) {
	dv, sv := reflect.ValueOf(dst).Elem(), reflect.ValueOf(src).Elem()
	if dv.Kind() != reflect.Struct {
		return
	}
	if f := dv.FieldByName(name); f.IsValid() && f.CanSet() {
		f.Set(sv.FieldByName(name))
	}
}

func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// toSnake 连续大写视为缩写：ID -> id，CreatedByID -> created_by_id
func toSnake(s string) string {
	rs := []rune(s)
	var b strings.Builder
	for i, r := range rs {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(rs[i-1]) ||
				(unicode.IsUpper(rs[i-1]) && i+1 < len(rs) && unicode.IsLower(rs[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CRUD 注册（无需模型实现任何接口）
//
// 所有操作先过权限判定再查库：无读权限的调用方拿不到“是否存在”的信息；
// 更新/删除时不存在的记录按无主对象判定。
func Crud[T any](cfg CrudConfig[T]) {
	// 默认放开所有操作
	if !cfg.AllowCreate && !cfg.AllowGet && !cfg.AllowList && !cfg.AllowUpdate && !cfg.AllowDelete {
		cfg.AllowCreate, cfg.AllowList, cfg.AllowGet, cfg.AllowUpdate, cfg.AllowDelete = true, true, true, true, true
	}
	// 默认 AutoID/IDGen
	if !cfg.AutoID && cfg.IDGen == nil {
		cfg.AutoID = true
	}
	if cfg.IDGen == nil {
		cfg.IDGen = utils.NewID
	}
	if cfg.Authorize == nil {
		cfg.Authorize = access.Authorize
	}

	idFieldNames := cfg.idFieldCandidates()
	ownerFieldNames := cfg.ownerFieldCandidates()
	idCol := toSnake(idFieldNames[0])

	guard := func(c *gin.Context, op access.Operation, owner string) (*access.Principal, bool) {
		p := mdw.PrincipalOf(c)
		res := access.Resource{Kind: cfg.Kind, OwnerID: owner, PublicRead: cfg.PublicRead}
		if err := cfg.Authorize(p, op, res); err != nil {
			if p == nil {
				c.JSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "authentication required"))
			} else {
				Fail(c, err)
			}
			return nil, false
		}
		return p, true
	}

	// load 取记录；不存在返回 nil
	load := func(c *gin.Context, id string) (*T, error) {
		m := cfg.New()
		err := cfg.DB.WithContext(c).Where(clause.Eq{Column: clause.Column{Name: idCol}, Value: id}).First(m).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return m, nil
	}

	// Create
	if cfg.AllowCreate {
		cfg.Group.POST(cfg.Path, func(c *gin.Context) {
			p, ok := guard(c, access.OpCreate, "")
			if !ok {
				return
			}
			m := cfg.New()
			if err := c.ShouldBindJSON(m); err != nil {
				c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, err.Error()))
				return
			}
			// 自动生成 ID（若开启）；客户端传入的 ID 不采用
			if cfg.AutoID {
				if !writeStringField(m, idFieldNames, cfg.IDGen()) {
					c.JSON(http.StatusOK, resp.Error(resp.CodeServerError, "id field not found"))
					return
				}
			}
			// 写 Owner
			if !writeStringField(m, ownerFieldNames, p.UserID) {
				c.JSON(http.StatusOK, resp.Error(resp.CodeServerError, "owner field not found"))
				return
			}

			if cfg.Hooks.BeforeCreate != nil {
				if err := cfg.Hooks.BeforeCreate(c, m); err != nil {
					Fail(c, err)
					return
				}
			}
			if err := cfg.DB.WithContext(c).Create(m).Error; err != nil {
				Fail(c, err)
				return
			}
			if cfg.Hooks.AfterGet != nil {
				cfg.Hooks.AfterGet(c, m)
			}
			c.JSON(http.StatusOK, resp.OK(m))
		})
	}

	// List（?mine=1 只看自己创建的）
	if cfg.AllowList {
		cfg.Group.GET(cfg.Path, func(c *gin.Context) {
			p, ok := guard(c, access.OpList, "")
			if !ok {
				return
			}
			page := atoiDefault(c.Query("page"), 1)
			size := atoiDefault(c.Query("size"), 20)
			if size <= 0 || size > 100 {
				size = 20
			}
			offset := (page - 1) * size

			q := cfg.DB.WithContext(c).Model(cfg.New())
			if mine, _ := strconv.ParseBool(c.Query("mine")); mine {
				if p == nil {
					c.JSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "authentication required"))
					return
				}
				// 用结构体 Where 自动映射列名，避免手写 created_by_id
				ownerFilter := cfg.New()
				if !writeStringField(ownerFilter, ownerFieldNames, p.UserID) {
					c.JSON(http.StatusOK, resp.Error(resp.CodeServerError, "owner field not found"))
					return
				}
				q = q.Where(ownerFilter)
			}
			if cfg.Hooks.ScopeList != nil {
				q = cfg.Hooks.ScopeList(c, q)
			}

			var total int64
			if err := q.Count(&total).Error; err != nil {
				Fail(c, err)
				return
			}

			var items []T
			// 动态排序：优先按配置 OrderBy，否则按 ID DESC
			if cfg.OrderBy != "" {
				q = q.Order(cfg.OrderBy)
			} else {
				q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: idCol}, Desc: true})
			}
			if err := q.Limit(size).Offset(offset).Find(&items).Error; err != nil {
				Fail(c, err)
				return
			}
			if cfg.Hooks.AfterGet != nil {
				for i := range items {
					cfg.Hooks.AfterGet(c, &items[i])
				}
			}
			if items == nil {
				items = []T{}
			}
			c.JSON(http.StatusOK, resp.OK(gin.H{
				"list": items, "total": total, "page": page, "size": size,
			}))
		})
	}

	// Get
	if cfg.AllowGet {
		cfg.Group.GET(cfg.Path+"/:id", func(c *gin.Context) {
			if _, ok := guard(c, access.OpRead, ""); !ok {
				return
			}
			m, err := load(c, c.Param("id"))
			if err != nil {
				Fail(c, err)
				return
			}
			if m == nil {
				c.JSON(http.StatusOK, resp.Error(resp.CodeNotFound, "not found"))
				return
			}
			if cfg.Hooks.AfterGet != nil {
				cfg.Hooks.AfterGet(c, m)
			}
			c.JSON(http.StatusOK, resp.OK(m))
		})
	}

	// loadForWrite 先判权限再暴露是否存在
	loadForWrite := func(c *gin.Context, op access.Operation) (*T, string, bool) {
		if mdw.PrincipalOf(c) == nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeUnauthorized, "authentication required"))
			return nil, "", false
		}
		id := c.Param("id")
		existing, err := load(c, id)
		if err != nil {
			Fail(c, err)
			return nil, "", false
		}
		owner := ""
		if existing != nil {
			owner, _ = readStringField(existing, ownerFieldNames)
		}
		if _, ok := guard(c, op, owner); !ok {
			return nil, "", false
		}
		if existing == nil {
			c.JSON(http.StatusOK, resp.Error(resp.CodeNotFound, "not found"))
			return nil, "", false
		}
		return existing, owner, true
	}

	// Update
	if cfg.AllowUpdate {
		update := func(c *gin.Context) {
			m, owner, ok := loadForWrite(c, access.OpUpdate)
			if !ok {
				return
			}
			id := c.Param("id")
			before := *m

			// 请求体合并到已有记录上：未出现的字段保持原值，显式给出的零值照常写入
			if err := c.ShouldBindJSON(m); err != nil {
				c.JSON(http.StatusOK, resp.Error(resp.CodeBadRequest, err.Error()))
				return
			}
			// 强制保持 ID/Owner/创建时间
			_ = writeStringField(m, idFieldNames, id)
			_ = writeStringField(m, ownerFieldNames, owner)
			copyField(m, &before, "CreatedAt")

			if cfg.Hooks.BeforeUpdate != nil {
				if err := cfg.Hooks.BeforeUpdate(c, m); err != nil {
					Fail(c, err)
					return
				}
			}
			if err := cfg.DB.WithContext(c).Model(cfg.New()).
				Where(clause.Eq{Column: clause.Column{Name: idCol}, Value: id}).Select("*").Updates(m).Error; err != nil {
				Fail(c, err)
				return
			}
			m, err := load(c, id)
			if err != nil {
				Fail(c, err)
				return
			}
			if m == nil {
				c.JSON(http.StatusOK, resp.Error(resp.CodeNotFound, "not found"))
				return
			}
			if cfg.Hooks.AfterGet != nil {
				cfg.Hooks.AfterGet(c, m)
			}
			c.JSON(http.StatusOK, resp.OK(m))
		}
		cfg.Group.PUT(cfg.Path+"/:id", update)
		cfg.Group.PATCH(cfg.Path+"/:id", update)
	}

	// Delete
	if cfg.AllowDelete {
		cfg.Group.DELETE(cfg.Path+"/:id", func(c *gin.Context) {
			if _, _, ok := loadForWrite(c, access.OpDelete); !ok {
				return
			}
			id := c.Param("id")
			res := cfg.DB.WithContext(c).Where(clause.Eq{Column: clause.Column{Name: idCol}, Value: id}).Delete(cfg.New())
			if res.Error != nil {
				Fail(c, res.Error)
				return
			}
			if res.RowsAffected == 0 {
				c.JSON(http.StatusOK, resp.Error(resp.CodeNotFound, "not found"))
				return
			}
			c.JSON(http.StatusOK, resp.OK(gin.H{"id": id}))
		})
	}
}
