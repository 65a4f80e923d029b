package handler

import (
	"errors"

	"license-server/internal/model"
	"license-server/internal/service"

	"github.com/gofiber/fiber/v2"
)

// LicenseHandler 客户端调用的验证与使用统计接口
type LicenseHandler struct {
	licenses *service.LicenseService
	usage    *service.UsageService
}

func NewLicenseHandler(licenses *service.LicenseService, usage *service.UsageService) *LicenseHandler {
	return &LicenseHandler{licenses: licenses, usage: usage}
}

// HandleValidateLicense POST /api/validate-license
func (h *LicenseHandler) HandleValidateLicense(c *fiber.Ctx) error {
	input := new(model.ValidateLicenseInput)
	// 解析失败按空密钥处理
	_ = c.BodyParser(input)

	result, err := h.licenses.Validate(c.UserContext(), input.LicenseKey, clientInfo(c))
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"valid":   false,
			"message": "License密钥不能为空",
		})
	case errors.Is(err, service.ErrInvalidLicense):
		return c.JSON(fiber.Map{
			"valid":   false,
			"message": "License密钥无效",
		})
	case errors.Is(err, service.ErrLicenseExpired):
		return c.JSON(fiber.Map{
			"valid":   false,
			"message": "License已过期",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"valid":   false,
			"message": "服务器内部错误",
		})
	}

	return c.JSON(fiber.Map{
		"valid": true,
		"userInfo": fiber.Map{
			"name":       result.Name,
			"email":      result.Email,
			"expiryDate": result.ExpiryDate,
		},
		"limits": fiber.Map{
			"dailyReports":   result.DailyLimit,
			"monthlyReports": result.MonthlyLimit,
		},
	})
}

// HandleRecordUsage POST /api/usage-stats
func (h *LicenseHandler) HandleRecordUsage(c *fiber.Ctx) error {
	input := new(model.RecordUsageInput)
	_ = c.BodyParser(input)
	client := clientInfo(c)
	input.IPAddress = client.IPAddress
	input.UserAgent = client.UserAgent

	err := h.usage.Record(c.UserContext(), *input)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"success": true})
	case errors.Is(err, service.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "参数不完整",
		})
	case errors.Is(err, service.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"success": false,
			"message": "License无效",
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "记录失败",
		})
	}
}

// HandleDailyUsage POST /api/daily-usage
func (h *LicenseHandler) HandleDailyUsage(c *fiber.Ctx) error {
	input := new(model.DailyUsageInput)
	_ = c.BodyParser(input)

	count, err := h.usage.DailyUsage(c.UserContext(), input.LicenseKey)
	switch {
	case err == nil:
		return c.JSON(fiber.Map{"dailyUsage": count})
	case errors.Is(err, service.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "参数不完整"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "查询失败"})
	}
}

func clientInfo(c *fiber.Ctx) service.ClientInfo {
	return service.ClientInfo{
		IPAddress: c.IP(),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
}
