package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"license-server/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UsageService 记录使用事件并做聚合统计
type UsageService struct {
	db   *gorm.DB
	log  *zap.Logger
	opts options
}

func NewUsageService(db *gorm.DB, log *zap.Logger, opts ...Option) *UsageService {
	return &UsageService{
		db:   db,
		log:  log.Named("usage"),
		opts: buildOptions(opts),
	}
}

// Record 为启用中的 License 追加一条使用记录，不检查有效期。
// 检查与写入是两条独立语句
func (s *UsageService) Record(ctx context.Context, in model.RecordUsageInput) error {
	if err := validateInput(in); err != nil {
		usageEventsTotal.WithLabelValues(resultInvalidInput).Inc()
		return err
	}

	license, err := findActiveLicense(ctx, s.db, in.LicenseKey)
	if err != nil {
		usageEventsTotal.WithLabelValues(resultError).Inc()
		s.log.Error("query license failed", zap.Error(err))
		return fmt.Errorf("%w: query license", ErrInternal)
	}
	if license == nil {
		usageEventsTotal.WithLabelValues(resultForbidden).Inc()
		return ErrForbidden
	}

	entry := &model.UsageLog{
		LicenseKey: in.LicenseKey,
		Action:     in.Action,
		Timestamp:  s.opts.now().UTC(),
		IPAddress:  in.IPAddress,
		UserAgent:  in.UserAgent,
	}
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		usageEventsTotal.WithLabelValues(resultError).Inc()
		s.log.Error("record usage failed", zap.String("action", in.Action), zap.Error(err))
		return fmt.Errorf("%w: record usage", ErrInternal)
	}
	usageEventsTotal.WithLabelValues(resultOK).Inc()
	return nil
}

// DailyUsage 今日（本地自然日）report_generated 次数，不校验 License
func (s *UsageService) DailyUsage(ctx context.Context, licenseKey string) (int64, error) {
	if licenseKey == "" {
		return 0, fmt.Errorf("%w: licenseKey is required", ErrInvalidInput)
	}

	start := startOfDay(s.opts.now(), s.opts.loc)
	end := start.AddDate(0, 0, 1)

	var count int64
	err := s.db.WithContext(ctx).Model(&model.UsageLog{}).
		Where("license_key = ? AND action = ?", licenseKey, model.ActionReportGenerated).
		Where("timestamp >= ? AND timestamp < ?", start.UTC(), end.UTC()).
		Count(&count).Error
	if err != nil {
		s.log.Error("count daily usage failed", zap.Error(err))
		return 0, fmt.Errorf("%w: count daily usage", ErrInternal)
	}
	return count, nil
}

// Stats 按 (日期, 动作) 分组计数，日期倒序。筛选条件均可选，AND 组合；
// 不带条件时统计全部记录
func (s *UsageService) Stats(ctx context.Context, filter model.StatsFilter) ([]model.UsageStat, error) {
	db := s.db.WithContext(ctx).Model(&model.UsageLog{}).Select("timestamp", "action")

	if filter.LicenseKey != "" {
		db = db.Where("license_key = ?", filter.LicenseKey)
	}
	if filter.StartDate != "" {
		start, err := time.ParseInLocation(time.DateOnly, filter.StartDate, s.opts.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: startDate must be YYYY-MM-DD", ErrInvalidInput)
		}
		db = db.Where("timestamp >= ?", start.UTC())
	}
	if filter.EndDate != "" {
		end, err := time.ParseInLocation(time.DateOnly, filter.EndDate, s.opts.loc)
		if err != nil {
			return nil, fmt.Errorf("%w: endDate must be YYYY-MM-DD", ErrInvalidInput)
		}
		db = db.Where("timestamp < ?", end.AddDate(0, 0, 1).UTC())
	}

	rows, err := db.Rows()
	if err != nil {
		s.log.Error("query usage stats failed", zap.Error(err))
		return nil, fmt.Errorf("%w: query usage stats", ErrInternal)
	}
	defer rows.Close()

	// 自然日按服务时区划分，因此在这里分组而不是用 SQL 的 DATE()
	type bucket struct{ date, action string }
	counts := make(map[bucket]int64)
	for rows.Next() {
		var entry model.UsageLog
		if err := s.db.ScanRows(rows, &entry); err != nil {
			s.log.Error("scan usage row failed", zap.Error(err))
			return nil, fmt.Errorf("%w: scan usage stats", ErrInternal)
		}
		counts[bucket{entry.Timestamp.In(s.opts.loc).Format(time.DateOnly), entry.Action}]++
	}
	if err := rows.Err(); err != nil {
		s.log.Error("iterate usage rows failed", zap.Error(err))
		return nil, fmt.Errorf("%w: query usage stats", ErrInternal)
	}

	stats := make([]model.UsageStat, 0, len(counts))
	for b, n := range counts {
		stats = append(stats, model.UsageStat{Date: b.date, Action: b.action, Count: n})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Date != stats[j].Date {
			return stats[i].Date > stats[j].Date
		}
		return stats[i].Action < stats[j].Action
	})
	return stats, nil
}
