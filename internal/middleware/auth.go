package middleware

import (
	"strings"

	"license-server/internal/util"

	"github.com/gofiber/fiber/v2"
)

// LocalAdminUsername 认证通过后存放管理员用户名的 Locals 键
const LocalAdminUsername = "adminUsername"

// AdminAuth 校验管理员 Bearer 令牌。secret 为空时不做校验
func AdminAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return c.Next()
		}

		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "未提供认证令牌",
			})
		}

		// 获取 Bearer token
		tokenParts := strings.SplitN(authHeader, " ", 2)
		if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "无效的认证格式",
			})
		}

		// 验证令牌
		claims, err := util.ParseToken(secret, strings.TrimSpace(tokenParts[1]))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "无效的认证令牌",
			})
		}

		c.Locals(LocalAdminUsername, claims.Username)
		return c.Next()
	}
}
