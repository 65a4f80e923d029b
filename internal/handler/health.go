package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Version 服务版本，构建时可用 -ldflags 覆盖
var Version = "1.0.0"

// HandleHealth GET /health
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		"version":   Version,
	})
}

// HandleNotFound 未匹配的路由
func HandleNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"success": false,
		"message": "接口不存在",
	})
}
