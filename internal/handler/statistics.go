package handler

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"license-server/internal/model"
	"license-server/internal/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// StatisticsHandler 管理端使用统计
type StatisticsHandler struct {
	usage *service.UsageService
	log   *zap.Logger
}

func NewStatisticsHandler(usage *service.UsageService, log *zap.Logger) *StatisticsHandler {
	return &StatisticsHandler{usage: usage, log: log.Named("handler.statistics")}
}

// HandleUsageStats GET /api/admin/usage-stats?licenseKey=&startDate=&endDate=
func (h *StatisticsHandler) HandleUsageStats(c *fiber.Ctx) error {
	stats, err := h.usage.Stats(c.UserContext(), statsFilter(c))
	if err != nil {
		return statsError(c, err)
	}
	return c.JSON(fiber.Map{"stats": stats})
}

// HandleExportUsageStats GET /api/admin/usage-stats/export，筛选条件同上
func (h *StatisticsHandler) HandleExportUsageStats(c *fiber.Ctx) error {
	stats, err := h.usage.Stats(c.UserContext(), statsFilter(c))
	if err != nil {
		return statsError(c, err)
	}

	var buf bytes.Buffer
	if err := service.WriteStatsWorkbook(&buf, stats); err != nil {
		h.log.Error("write stats workbook failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "导出失败"})
	}

	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition,
		fmt.Sprintf("attachment; filename=\"usage_stats_%s.xlsx\"", time.Now().Format("20060102_150405")))
	return c.Send(buf.Bytes())
}

func statsFilter(c *fiber.Ctx) model.StatsFilter {
	return model.StatsFilter{
		LicenseKey: c.Query("licenseKey"),
		StartDate:  c.Query("startDate"),
		EndDate:    c.Query("endDate"),
	}
}

func statsError(c *fiber.Ctx, err error) error {
	if errors.Is(err, service.ErrInvalidInput) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "日期格式错误",
			"errors": []fiber.Map{
				{"field": "startDate/endDate", "message": "日期格式应为 YYYY-MM-DD"},
			},
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "查询失败"})
}
