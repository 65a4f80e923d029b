package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"license-server/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

// LicensePublisher 接收新签发的 License
type LicensePublisher interface {
	PublishLicense(ctx context.Context, license *model.License) error
}

// ClientInfo 请求来源信息，写入使用记录
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// LicenseService 负责 License 的验证、签发与列表
type LicenseService struct {
	db   *gorm.DB
	log  *zap.Logger
	opts options

	publishing sync.WaitGroup // 进行中的异步推送
}

func NewLicenseService(db *gorm.DB, log *zap.Logger, opts ...Option) *LicenseService {
	return &LicenseService{
		db:   db,
		log:  log.Named("license"),
		opts: buildOptions(opts),
	}
}

// Validate 验证密钥：存在、启用、未过期。
// 不存在或已停用记录 invalid_attempt；已过期不记录；成功记录 login_success
func (s *LicenseService) Validate(ctx context.Context, licenseKey string, client ClientInfo) (*model.ValidationResult, error) {
	if licenseKey == "" {
		validationsTotal.WithLabelValues(resultInvalidInput).Inc()
		return nil, fmt.Errorf("%w: licenseKey is required", ErrInvalidInput)
	}

	license, err := findActiveLicense(ctx, s.db, licenseKey)
	if err != nil {
		validationsTotal.WithLabelValues(resultError).Inc()
		s.log.Error("query license failed", zap.Error(err))
		return nil, fmt.Errorf("%w: query license", ErrInternal)
	}

	if license == nil {
		// 不区分"密钥不存在"与"已停用"
		if err := s.appendLog(ctx, licenseKey, model.ActionInvalidAttempt, client); err != nil {
			validationsTotal.WithLabelValues(resultError).Inc()
			return nil, err
		}
		validationsTotal.WithLabelValues(resultInvalid).Inc()
		return nil, ErrInvalidLicense
	}

	if license.Expired(s.opts.now()) {
		validationsTotal.WithLabelValues(resultExpired).Inc()
		return nil, ErrLicenseExpired
	}

	if err := s.appendLog(ctx, licenseKey, model.ActionLoginSuccess, client); err != nil {
		validationsTotal.WithLabelValues(resultError).Inc()
		return nil, err
	}

	validationsTotal.WithLabelValues(resultOK).Inc()
	return &model.ValidationResult{
		Name:         license.UserName,
		Email:        license.UserEmail,
		ExpiryDate:   license.ExpiryDate,
		DailyLimit:   license.DailyLimit,
		MonthlyLimit: license.MonthlyLimit,
	}, nil
}

// Create 签发新 License。密钥冲突由唯一索引拦截，按内部错误返回，不重试
func (s *LicenseService) Create(ctx context.Context, in model.CreateLicenseInput) (*model.License, error) {
	if err := validateInput(in); err != nil {
		licensesIssuedTotal.WithLabelValues(resultInvalidInput).Inc()
		return nil, err
	}

	expiry, err := parseExpiry(in.ExpiryDate, s.opts.loc)
	if err != nil {
		licensesIssuedTotal.WithLabelValues(resultInvalidInput).Inc()
		return nil, fmt.Errorf("%w: expiryDate: %v", ErrInvalidInput, err)
	}

	license := &model.License{
		LicenseKey:   GenerateLicenseKey(),
		UserName:     in.UserName,
		UserEmail:    in.UserEmail,
		DailyLimit:   intOrDefault(in.DailyLimit, model.DefaultDailyLimit),
		MonthlyLimit: intOrDefault(in.MonthlyLimit, model.DefaultMonthlyLimit),
		ExpiryDate:   expiry,
		IsActive:     true,
		CreatedAt:    s.opts.now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(license).Error; err != nil {
		licensesIssuedTotal.WithLabelValues(resultError).Inc()
		s.log.Error("create license failed", zap.Error(err))
		return nil, fmt.Errorf("%w: create license", ErrInternal)
	}
	licensesIssuedTotal.WithLabelValues(resultOK).Inc()
	s.log.Info("license created",
		zap.Uint("id", license.ID),
		zap.String("user_email", license.UserEmail))

	if s.opts.publisher != nil {
		published := *license
		s.publishing.Add(1)
		go func() {
			defer s.publishing.Done()
			ctx, cancel := context.WithTimeout(context.Background(), s.opts.publishTimeout)
			defer cancel()
			if err := s.opts.publisher.PublishLicense(ctx, &published); err != nil {
				s.log.Warn("publish license failed", zap.Uint("id", published.ID), zap.Error(err))
			}
		}()
	}
	return license, nil
}

// WaitPublished 等待进行中的异步推送结束，ctx 先到期则返回 ctx.Err()
func (s *LicenseService) WaitPublished(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.publishing.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// List 分页列出 License，按创建时间倒序
func (s *LicenseService) List(ctx context.Context, page, limit int) (*model.LicensePage, error) {
	page, limit = normalizePage(page, limit)

	db := s.db.WithContext(ctx).Model(&model.License{})

	// 获取总数
	var total int64
	if err := db.Count(&total).Error; err != nil {
		s.log.Error("count licenses failed", zap.Error(err))
		return nil, fmt.Errorf("%w: count licenses", ErrInternal)
	}

	// 获取分页数据
	licenses := make([]model.License, 0, limit)
	offset := (page - 1) * limit
	if err := db.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&licenses).Error; err != nil {
		s.log.Error("list licenses failed", zap.Error(err))
		return nil, fmt.Errorf("%w: list licenses", ErrInternal)
	}

	return &model.LicensePage{
		Licenses:   licenses,
		Pagination: model.NewPagination(page, limit, total),
	}, nil
}

// All 返回全部 License，供批量同步使用
func (s *LicenseService) All(ctx context.Context) ([]model.License, error) {
	var licenses []model.License
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&licenses).Error; err != nil {
		return nil, fmt.Errorf("%w: list licenses", ErrInternal)
	}
	return licenses, nil
}

func (s *LicenseService) appendLog(ctx context.Context, licenseKey, action string, client ClientInfo) error {
	entry := &model.UsageLog{
		LicenseKey: licenseKey,
		Action:     action,
		Timestamp:  s.opts.now().UTC(),
		IPAddress:  client.IPAddress,
		UserAgent:  client.UserAgent,
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		s.log.Error("write usage log failed", zap.String("action", action), zap.Error(err))
		return fmt.Errorf("%w: write usage log", ErrInternal)
	}
	return nil
}

// findActiveLicense 查询启用状态的 License，不存在时返回 nil, nil
func findActiveLicense(ctx context.Context, db *gorm.DB, licenseKey string) (*model.License, error) {
	var license model.License
	err := db.WithContext(ctx).
		Where("license_key = ? AND is_active = ?", licenseKey, true).
		First(&license).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &license, nil
}

var expiryLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// parseExpiry 支持 RFC 3339、本地时间和纯日期；纯日期表示当天结束
func parseExpiry(value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		t = t.UTC()
		return &t, nil
	}
	for _, layout := range expiryLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	day, err := time.ParseInLocation(time.DateOnly, value, loc)
	if err != nil {
		return nil, fmt.Errorf("unsupported date %q", value)
	}
	end := day.AddDate(0, 0, 1).Add(-time.Nanosecond).UTC()
	return &end, nil
}

func intOrDefault(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}
