package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"license-server/internal/config"
	"license-server/internal/model"

	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetSyncService 把签发的 License 同步到 Google Sheet，A 列为密钥
type SheetSyncService struct {
	service       *sheets.Service
	spreadsheetID string
	sheetName     string
	log           *zap.Logger
}

// NewSheetSyncService 未启用同步时返回 nil, nil。
// Credentials 为空时使用应用默认凭证或 opts 中的授权配置
func NewSheetSyncService(ctx context.Context, cfg config.SheetConfig, log *zap.Logger, opts ...option.ClientOption) (*SheetSyncService, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	if cfg.Credentials != "" {
		// 读取凭证文件
		b, err := os.ReadFile(cfg.Credentials)
		if err != nil {
			return nil, fmt.Errorf("read sheet credentials: %w", err)
		}

		// 使用服务账号授权
		creds, err := google.CredentialsFromJSON(ctx, b, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("load sheet credentials: %w", err)
		}
		opts = append([]option.ClientOption{option.WithCredentials(creds)}, opts...)
	}

	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}

	return &SheetSyncService{
		service:       srv,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		log:           log.Named("sheetsync"),
	}, nil
}

// PublishLicense 按密钥查找所在行，存在则覆盖，否则追加
func (s *SheetSyncService) PublishLicense(ctx context.Context, license *model.License) error {
	if s == nil {
		return nil
	}

	keys, err := s.readKeys(ctx)
	if err != nil {
		return err
	}

	values := [][]interface{}{licenseRow(license)}
	if row := findKeyRow(keys, license.LicenseKey); row > 0 {
		// 更新现有行
		_, err = s.service.Spreadsheets.Values.
			Update(s.spreadsheetID, s.rowRange(row), &sheets.ValueRange{Values: values}).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
	} else {
		// 追加新行
		_, err = s.service.Spreadsheets.Values.
			Append(s.spreadsheetID, s.sheetName+"!A2:H", &sheets.ValueRange{Values: values}).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
	}
	if err != nil {
		return fmt.Errorf("write sheet row: %w", err)
	}

	s.log.Info("license synced to sheet", zap.Uint("id", license.ID))
	return nil
}

// BatchPublish 批量同步：表中已有的密钥覆盖所在行，其余追加到末尾，重复执行结果不变
func (s *SheetSyncService) BatchPublish(ctx context.Context, licenses []model.License) error {
	if s == nil || len(licenses) == 0 {
		return nil
	}

	keys, err := s.readKeys(ctx)
	if err != nil {
		return err
	}
	existing := make(map[string]int, len(keys))
	for i, row := range keys {
		if len(row) == 0 {
			continue
		}
		if key, ok := row[0].(string); ok && key != "" {
			if _, dup := existing[key]; !dup {
				existing[key] = i + 2
			}
		}
	}

	var updates []*sheets.ValueRange
	var appends [][]interface{}
	pending := make(map[string]int) // 待追加密钥在 appends 中的下标
	for i := range licenses {
		l := &licenses[i]
		row := licenseRow(l)
		if n, ok := existing[l.LicenseKey]; ok {
			updates = append(updates, &sheets.ValueRange{
				Range:  s.rowRange(n),
				Values: [][]interface{}{row},
			})
			continue
		}
		if idx, ok := pending[l.LicenseKey]; ok {
			appends[idx] = row
			continue
		}
		pending[l.LicenseKey] = len(appends)
		appends = append(appends, row)
	}

	if len(updates) > 0 {
		_, err := s.service.Spreadsheets.Values.
			BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateValuesRequest{
				ValueInputOption: "USER_ENTERED",
				Data:             updates,
			}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("batch update sheet rows: %w", err)
		}
	}
	if len(appends) > 0 {
		_, err := s.service.Spreadsheets.Values.
			Append(s.spreadsheetID, s.sheetName+"!A2:H", &sheets.ValueRange{Values: appends}).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("batch append sheet rows: %w", err)
		}
	}

	s.log.Info("licenses batch synced to sheet",
		zap.Int("updated", len(updates)),
		zap.Int("appended", len(appends)))
	return nil
}

// readKeys 读取 A 列密钥（从第 2 行开始）
func (s *SheetSyncService) readKeys(ctx context.Context) ([][]interface{}, error) {
	resp, err := s.service.Spreadsheets.Values.
		Get(s.spreadsheetID, fmt.Sprintf("%s!A2:A", s.sheetName)).
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read sheet keys: %w", err)
	}
	return resp.Values, nil
}

func (s *SheetSyncService) rowRange(row int) string {
	return fmt.Sprintf("%s!A%d:H%d", s.sheetName, row, row)
}

// licenseRow 表格列：密钥、用户名、邮箱、日限额、月限额、到期时间、启用、创建时间
func licenseRow(l *model.License) []interface{} {
	expiry := ""
	if l.ExpiryDate != nil {
		expiry = l.ExpiryDate.Format(time.RFC3339)
	}
	return []interface{}{
		l.LicenseKey,
		l.UserName,
		l.UserEmail,
		l.DailyLimit,
		l.MonthlyLimit,
		expiry,
		strconv.FormatBool(l.IsActive),
		l.CreatedAt.Format(time.RFC3339),
	}
}

// findKeyRow 返回密钥所在的表格行号（从 A2 开始），未找到返回 0
func findKeyRow(values [][]interface{}, key string) int {
	for i, row := range values {
		if len(row) > 0 && row[0] == key {
			return i + 2
		}
	}
	return 0
}
