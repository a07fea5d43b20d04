// Package app assembles the process-wide dependencies shared by the API server and the admin
// command: storage, cache, token issuer and the member services.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"csesa-backend/internal/core/auth"
	"csesa-backend/internal/core/cache"
	"csesa-backend/internal/core/config"
	"csesa-backend/internal/core/database"
	"csesa-backend/internal/core/logger"
	"csesa-backend/internal/feature/identity"
	"csesa-backend/internal/feature/oauth"
	"csesa-backend/internal/feature/taxonomy"
	"csesa-backend/internal/repo"
	"csesa-backend/internal/service"
)

type App struct {
	Cfg      *config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Cache    *cache.Cache // 未配置 redis 时为 nil
	JWT      *auth.JWTer
	Users    *repo.UserRepo
	Roles    *repo.RoleRepo
	Domains  *repo.DomainRepo
	Registry *taxonomy.Registry
	Identity *identity.Service
	UserSvc  *service.UserService
}

// NewLogger 配置了文件时写文件并切割，否则输出到控制台
func NewLogger(cfg *config.Config) (*zap.Logger, func()) {
	if cfg.Log.File != "" {
		return logger.NewWithRotate(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File,
			cfg.Log.MaxSizeMB, cfg.Log.MaxBackups, cfg.Log.MaxAgeDays, cfg.Log.Compress)
	}
	return logger.New(cfg.Log.Level, cfg.Log.JSON)
}

func OpenDB(cfg *config.Config) (*gorm.DB, error) {
	return database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                cfg.DB.DSN,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
	})
}

// Build 连接数据库与 redis 并组装服务；失败时已打开的连接会被关闭
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := OpenDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	a := &App{Cfg: cfg, Log: log, DB: db}
	if cfg.DB.AutoMigrate {
		if err := database.AutoMigrate(db, repo.Models()...); err != nil {
			a.Close()
			return nil, err
		}
		log.Info("automigrate done")
	}

	var revoker auth.Revoker
	if cfg.Redis.Addr != "" {
		a.Cache = cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := a.Cache.Ping(pctx)
		cancel()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		revoker = auth.NewRedisRevoker(a.Cache.RDB)
	} else {
		log.Warn("redis not configured: role grants are read from the database on every request and logout cannot revoke tokens")
	}

	a.JWT = &auth.JWTer{
		Secret:     []byte(cfg.JWT.Secret),
		Issuer:     cfg.JWT.Issuer,
		TTL:        time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute,
		RefreshTTL: time.Duration(cfg.JWT.RefreshTokenTTLHrs) * time.Hour,
		Revoker:    revoker,
	}

	a.Users = repo.NewUserRepo(db)
	a.Roles = repo.NewRoleRepo(db)
	a.Domains = repo.NewDomainRepo(db)
	a.Registry = taxonomy.NewRegistry(a.Roles, a.Cache, time.Duration(cfg.Redis.TaxonomyTTLSec)*time.Second)

	// 接口变量只在配置了 client id 时赋值，保证未配置时为真正的 nil
	var provider identity.Provider
	if cfg.OAuth.ClientID != "" {
		provider = oauth.NewGoogle(oauth.Config{
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			RedirectURL:  cfg.OAuth.RedirectURL,
			Issuer:       cfg.OAuth.Issuer,
			JWKSURL:      cfg.OAuth.JWKSURL,
			Timeout:      time.Duration(cfg.OAuth.TimeoutSec) * time.Second,
		})
	} else {
		log.Warn("oauth.clientID is empty: google sign-in disabled")
	}

	a.Identity = identity.New(a.Users, a.Domains, a.Registry, provider, cfg.Org.AllowedDomain, log)
	a.UserSvc = service.NewUserService(a.Users, a.Domains, a.Registry, log)
	return a, nil
}

func (a *App) Close() {
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}
