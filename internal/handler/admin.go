package handler

import (
	"errors"
	"time"

	"license-server/internal/model"
	"license-server/internal/service"
	"license-server/internal/util"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// AdminHandler 管理端：登录、签发与列表
type AdminHandler struct {
	admins      *service.AdminService
	licenses    *service.LicenseService
	tokenSecret string
	tokenTTL    time.Duration
	log         *zap.Logger
}

// NewAdminHandler tokenSecret 为空时登录不签发令牌
func NewAdminHandler(admins *service.AdminService, licenses *service.LicenseService, tokenSecret string, tokenTTL time.Duration, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		admins:      admins,
		licenses:    licenses,
		tokenSecret: tokenSecret,
		tokenTTL:    tokenTTL,
		log:         log.Named("handler.admin"),
	}
}

// HandleLogin POST /api/admin/login
func (h *AdminHandler) HandleLogin(c *fiber.Ctx) error {
	input := new(model.LoginInput)
	_ = c.BodyParser(input)

	identity, err := h.admins.Login(c.UserContext(), *input)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "用户名和密码不能为空"})
	case errors.Is(err, service.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "用户名或密码错误"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "服务器错误"})
	}

	resp := fiber.Map{
		"success": true,
		"message": "登录成功",
		"admin":   fiber.Map{"username": identity.Username},
	}
	if h.tokenSecret != "" {
		// 生成JWT令牌
		token, err := util.GenerateToken(h.tokenSecret, identity.Username, h.tokenTTL)
		if err != nil {
			h.log.Error("generate admin token failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "服务器错误"})
		}
		resp["token"] = token
	}
	return c.JSON(resp)
}

// HandleCreateLicense POST /api/admin/create-license
func (h *AdminHandler) HandleCreateLicense(c *fiber.Ctx) error {
	input := new(model.CreateLicenseInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "无效的输入数据",
		})
	}

	license, err := h.licenses.Create(c.UserContext(), *input)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidInput):
		msg := "参数格式错误"
		if input.UserName == "" || input.UserEmail == "" {
			msg = "用户名和邮箱不能为空"
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": msg,
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "创建License失败",
		})
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"licenseKey": license.LicenseKey,
		"message":    "License创建成功",
	})
}

// HandleListLicenses GET /api/admin/licenses?page=&limit=
func (h *AdminHandler) HandleListLicenses(c *fiber.Ctx) error {
	page, err := h.licenses.List(c.UserContext(), c.QueryInt("page"), c.QueryInt("limit"))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "查询失败"})
	}
	return c.JSON(page)
}
