package router

import (
	"errors"
	"path/filepath"

	"license-server/internal/config"
	"license-server/internal/handler"
	"license-server/internal/middleware"
	"license-server/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services 路由依赖的业务服务
type Services struct {
	Licenses *service.LicenseService
	Usage    *service.UsageService
	Admins   *service.AdminService
}

// SetupRouter 创建 Fiber 应用并注册全部路由
func SetupRouter(cfg *config.Config, svc Services, log *zap.Logger) *fiber.App {
	log = log.Named("http")

	app := fiber.New(fiber.Config{
		AppName:      "license-server",
		ErrorHandler: errorHandler(log),
	})

	// 中间件
	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	if !cfg.IsProduction() {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	app.Use(cors.New(cors.Config{AllowOrigins: cfg.Server.FrontendURL}))

	licenseHandler := handler.NewLicenseHandler(svc.Licenses, svc.Usage)
	adminHandler := handler.NewAdminHandler(svc.Admins, svc.Licenses, cfg.Admin.TokenSecret, cfg.Admin.TokenTTL, log)
	statsHandler := handler.NewStatisticsHandler(svc.Usage, log)

	// 客户端接口
	api := app.Group("/api")
	api.Post("/validate-license", licenseHandler.HandleValidateLicense)
	api.Post("/usage-stats", licenseHandler.HandleRecordUsage)
	api.Post("/daily-usage", licenseHandler.HandleDailyUsage)

	// 管理端接口，除登录外按需校验令牌
	auth := middleware.AdminAuth(cfg.Admin.TokenSecret)
	admin := api.Group("/admin")
	admin.Post("/login", adminHandler.HandleLogin)
	admin.Post("/create-license", auth, adminHandler.HandleCreateLicense)
	admin.Get("/licenses", auth, adminHandler.HandleListLicenses)
	admin.Get("/usage-stats", auth, statsHandler.HandleUsageStats)
	admin.Get("/usage-stats/export", auth, statsHandler.HandleExportUsageStats)

	app.Get("/health", handler.HandleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// 管理页面
	app.Get("/admin", func(c *fiber.Ctx) error {
		return c.SendFile(filepath.Join(cfg.Server.StaticDir, "admin.html"))
	})
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/admin")
	})
	app.Static("/", cfg.Server.StaticDir)

	// 404处理
	app.Use(handler.HandleNotFound)

	return app
}

func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) && fe.Code == fiber.StatusNotFound {
			return handler.HandleNotFound(c)
		}
		if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
			return c.Status(fe.Code).JSON(fiber.Map{
				"success": false,
				"message": fe.Message,
			})
		}

		log.Error("unhandled error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Any("request_id", c.Locals(requestid.ConfigDefault.ContextKey)),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "服务器内部错误",
		})
	}
}
