package main

import (
	"context"
	"fmt"
	"os"

	"license-server/internal/config"
	"license-server/internal/database"
	"license-server/internal/logging"
	"license-server/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app 子命令共享的配置、日志与数据库
type app struct {
	envFile   string
	cfg       *config.Config
	log       *zap.Logger
	db        *gorm.DB
	sheetOpts []option.ClientOption
}

// newRootCmd sheetOpts 透传给 Google Sheets 客户端
func newRootCmd(sheetOpts ...option.ClientOption) *cobra.Command {
	a := &app{sheetOpts: sheetOpts}
	rootCmd := &cobra.Command{
		Use:           "licensectl",
		Short:         "License 服务管理工具",
		Long:          "直接操作 License 数据库：签发、列表、同步与使用统计",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "可选的 .env 文件路径")

	rootCmd.AddCommand(newLicenseCmd(a), newUsageCmd(a))
	return rootCmd
}

func (a *app) open() error {
	var err error
	a.cfg, err = config.Load(a.envFile)
	if err != nil {
		return err
	}
	a.log, err = logging.New(true)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.db, err = database.Open(a.cfg.Database, true)
	if err != nil {
		return err
	}
	return nil
}

func (a *app) close() {
	if a.db != nil {
		database.Close(a.db)
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

// sheetSync 未启用同步时返回 nil, nil
func (a *app) sheetSync(ctx context.Context) (*service.SheetSyncService, error) {
	sheetSync, err := service.NewSheetSyncService(ctx, a.cfg.Sheet, a.log, a.sheetOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to init sheet sync: %w", err)
	}
	return sheetSync, nil
}
