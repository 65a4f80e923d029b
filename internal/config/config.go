package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config 服务运行配置，全部来自环境变量（可选 .env 文件）
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Admin    AdminConfig
	Sheet    SheetConfig
}

type ServerConfig struct {
	Port        int    `envconfig:"PORT" default:"3001"`
	FrontendURL string `envconfig:"FRONTEND_URL" default:"*"`
	Env         string `envconfig:"NODE_ENV" default:"development"`
	StaticDir   string `envconfig:"STATIC_DIR" default:"public"`
}

type DatabaseConfig struct {
	Path            string `envconfig:"DB_PATH" default:"licenses.db"`
	SeedDemoLicense bool   `envconfig:"SEED_DEMO_LICENSE" default:"true"`
}

type AdminConfig struct {
	Username    string        `envconfig:"ADMIN_USERNAME" default:"admin"`
	Password    string        `envconfig:"ADMIN_PASSWORD" default:"admin123"`
	TokenSecret string        `envconfig:"ADMIN_TOKEN_SECRET"`
	TokenTTL    time.Duration `envconfig:"ADMIN_TOKEN_TTL" default:"24h"`
}

// SheetConfig Google Sheets 同步配置
type SheetConfig struct {
	Enabled       bool   `envconfig:"SHEET_SYNC_ENABLED" default:"false"`
	Credentials   string `envconfig:"SHEET_CREDENTIALS" default:"credentials.json"` // 置空则使用应用默认凭证
	SpreadsheetID string `envconfig:"SHEET_SPREADSHEET_ID"`
	SheetName     string `envconfig:"SHEET_NAME" default:"Licenses"`
}

// Load 先加载 .env（不存在则忽略），再从环境变量解析配置
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// IsProduction 是否为生产模式
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Addr 监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("DB_PATH must not be empty")
	}
	if c.Admin.Username == "" || c.Admin.Password == "" {
		return errors.New("admin username and password must not be empty")
	}
	if c.Sheet.Enabled && c.Sheet.SpreadsheetID == "" {
		return errors.New("SHEET_SPREADSHEET_ID is required when sheet sync is enabled")
	}
	return nil
}
