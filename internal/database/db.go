package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"license-server/internal/config"
	"license-server/internal/model"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const (
	DemoLicenseKey  = "DEMO-TRIAL-2024-ABCD"
	demoLicenseDays = 7
)

// Open 打开 SQLite 数据库并完成表迁移
func Open(cfg config.DatabaseConfig, production bool) (*gorm.DB, error) {
	// 创建数据目录
	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	level := logger.Warn
	if production {
		level = logger.Silent
	}
	gormLogger := logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger:  gormLogger,
		NowFunc: utcNow,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := Migrate(db); err != nil {
		Close(db)
		return nil, err
	}
	return db, nil
}

// utcNow 所有时间统一以 UTC 存储
func utcNow() time.Time {
	return time.Now().UTC()
}

// Migrate 自动迁移 licenses / usage_logs / admins 三张表
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.License{}, &model.UsageLog{}, &model.Admin{}); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	return nil
}

// Close 释放数据库连接
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Bootstrap 创建默认管理员，可选创建演示 License。重复执行无副作用
func Bootstrap(ctx context.Context, db *gorm.DB, cfg *config.Config, zlog *zap.Logger) error {
	if err := ensureAdmin(ctx, db, cfg.Admin.Username, cfg.Admin.Password); err != nil {
		return err
	}
	zlog.Info("default admin ready", zap.String("username", cfg.Admin.Username))

	if cfg.Database.SeedDemoLicense {
		if err := ensureDemoLicense(ctx, db, time.Now()); err != nil {
			return err
		}
		zlog.Info("demo license ready", zap.String("license_key", DemoLicenseKey))
	}
	return nil
}

func ensureAdmin(ctx context.Context, db *gorm.DB, username, password string) error {
	// 检查是否已存在管理员账户
	var count int64
	if err := db.WithContext(ctx).Model(&model.Admin{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	admin := &model.Admin{Username: username, PasswordHash: string(hash)}
	err = db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "username"}}, DoNothing: true}).
		Create(admin).Error
	if err != nil {
		return fmt.Errorf("create default admin: %w", err)
	}
	return nil
}

func ensureDemoLicense(ctx context.Context, db *gorm.DB, now time.Time) error {
	expiry := now.AddDate(0, 0, demoLicenseDays).UTC()
	demo := &model.License{
		LicenseKey:   DemoLicenseKey,
		UserName:     "演示用户",
		UserEmail:    "demo@example.com",
		DailyLimit:   5,
		MonthlyLimit: 50,
		ExpiryDate:   &expiry,
		IsActive:     true,
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "license_key"}}, DoNothing: true}).
		Create(demo).Error
	if err != nil {
		return fmt.Errorf("create demo license: %w", err)
	}
	return nil
}
