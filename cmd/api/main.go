package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"csesa-backend/internal/app"
	"csesa-backend/internal/core/config"
	"csesa-backend/internal/core/logger"
	"csesa-backend/internal/core/server"
	"csesa-backend/internal/feature/content"
	"csesa-backend/internal/transport/http/handler"
	"csesa-backend/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := app.NewLogger(cfg)
	defer cleanup()

	// 标准库 log 与 gin 的输出统一进 zap
	defer logger.RedirectStdLog(log, zapcore.InfoLevel)()
	gin.DefaultWriter = logger.ToWriter(log, zapcore.DebugLevel)
	gin.DefaultErrorWriter = logger.ToWriter(log, zapcore.ErrorLevel)
	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 数据库 / redis / 服务（失败直接 Fatal）
	a, err := app.Build(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("startup failed", zap.Error(err))
	}
	defer a.Close()
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))
	if n, err := a.Users.Count(context.Background()); err == nil && n == 0 {
		log.Warn("no members yet: the first Google sign-in from the org domain becomes president")
	}

	// 内容模块
	router.Register(&content.Module{
		DB:             a.DB,
		Domains:        a.Domains,
		PublicProjects: cfg.Content.PublicProjects,
		PublicEvents:   cfg.Content.PublicEvents,
	})

	// 路由（用户端）
	r := router.NewAPIEngine(log, router.APIDeps{
		DB:          a.DB,
		JWT:         a.JWT,
		Load:        a.Identity.Principal,
		Auth:        handler.NewAuthHandler(a.Identity, a.JWT),
		Member:      handler.NewMemberHandler(a.Identity, a.UserSvc),
		CORSOrigins: cfg.App.HTTP.CORSOrigins,
	})

	// HTTP Server
	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	// 启动日志
	host4human := cfg.App.HTTP.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.HTTP.Port)
	log.Info("member api starting",
		zap.String("addr", addr),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("api_v1", baseURL+"/api/v1"),
		zap.String("org_domain", cfg.Org.AllowedDomain),
	)

	// 异步启动
	go func() {
		if err := server.StartHTTP(srv, log); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("member api start FAILED", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info("member api stopped gracefully")
}
