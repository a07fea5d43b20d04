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

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"csesa-backend/internal/app"
	"csesa-backend/internal/core/config"
	"csesa-backend/internal/core/server"
	"csesa-backend/internal/transport/http/handler"
	"csesa-backend/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "csesa-admin",
		Short:         "CSESA back-office",
		Long:          "Back-office HTTP server and maintenance commands for the CSESA member backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "Path to config file")

	cmd.AddCommand(
		newServeCommand(&configPath),
		newCreatePresidentCommand(&configPath),
		newSeedCommand(&configPath),
	)
	return cmd
}

// withApp 加载配置并组装依赖，执行完后释放
func withApp(configPath string, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.LoadE(configPath)
	if err != nil {
		return err
	}
	log, cleanup := app.NewLogger(cfg)
	defer cleanup()

	ctx := context.Background()
	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the back-office HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(*configPath, serve)
		},
	}
}

func serve(_ context.Context, a *app.App) error {
	cfg, log := a.Cfg, a.Log

	adminH := handler.NewAdminHandler(a.UserSvc)
	r := router.NewAdminEngine(log, adminH, a.JWT, a.Identity.Principal)

	addr := server.Addr(cfg.App.Admin.Host, cfg.App.Admin.Port)
	srv := server.BuildServer(addr, r, 5*time.Second, 10*time.Second, 60*time.Second)

	// 启动前打印可点击地址
	host4human := cfg.App.Admin.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.Admin.Port)
	log.Info("admin api starting",
		zap.String("addr", addr),
		zap.String("open", baseURL),
		zap.String("health", baseURL+"/health"),
		zap.String("admin_v1", baseURL+"/admin/v1"),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- server.StartHTTP(srv, log) }()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("admin api start FAILED", zap.Error(err))
			return err
		}
		return nil
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info("admin api stopped gracefully")
	return nil
}
