package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"license-server/internal/config"
	"license-server/internal/database"
	"license-server/internal/logging"
	"license-server/internal/router"
	"license-server/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var envFile string

var rootCmd = &cobra.Command{
	Use:   "license-server",
	Short: "License 验证与使用统计服务",
	RunE:  runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动 HTTP 服务（默认）",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "可选的 .env 文件路径")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	zlog, err := logging.New(cfg.IsProduction())
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer zlog.Sync()

	// 初始化数据库
	db, err := database.Open(cfg.Database, cfg.IsProduction())
	if err != nil {
		return err
	}
	defer database.Close(db)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Bootstrap(ctx, db, cfg, zlog); err != nil {
		return err
	}

	sheetSync, err := service.NewSheetSyncService(ctx, cfg.Sheet, zlog)
	if err != nil {
		return fmt.Errorf("init sheet sync: %w", err)
	}
	var licenseOpts []service.Option
	if sheetSync != nil {
		licenseOpts = append(licenseOpts, service.WithPublisher(sheetSync))
	}

	licenses := service.NewLicenseService(db, zlog, licenseOpts...)
	app := router.SetupRouter(cfg, router.Services{
		Licenses: licenses,
		Usage:    service.NewUsageService(db, zlog),
		Admins:   service.NewAdminService(db, zlog),
	}, zlog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(cfg.Addr())
	}()
	zlog.Info("license server started",
		zap.String("addr", cfg.Addr()),
		zap.String("env", cfg.Server.Env),
		zap.String("db", cfg.Database.Path),
		zap.Bool("admin_token_guard", cfg.Admin.TokenSecret != ""),
		zap.Bool("sheet_sync", sheetSync != nil),
	)

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	zlog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownErr := app.ShutdownWithContext(shutdownCtx)

	// 关闭数据库前等待未完成的表格同步
	if err := licenses.WaitPublished(shutdownCtx); err != nil {
		zlog.Warn("pending sheet sync abandoned", zap.Error(err))
	}
	if shutdownErr != nil {
		return fmt.Errorf("shutdown: %w", shutdownErr)
	}
	return nil
}
