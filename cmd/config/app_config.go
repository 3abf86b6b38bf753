package config

import (
	"Fasting-Tracker/internal/api/handlers"
	"Fasting-Tracker/internal/api/routes"
	"Fasting-Tracker/internal/middleware"
	"Fasting-Tracker/internal/utils"
	"fmt"
	"os"
	"reflect"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"go.uber.org/zap"
)

func NewApp(services *Services, log *zap.Logger) (*fiber.App, error) {
	utils.InitValidator()
	registerFormTypes()
	app := fiber.New(fiber.Config{
		EnablePrintRoutes: true,
	})
	middlewares := middleware.NewMiddleware()
	validator := utils.Validate

	// setting up logging and limiter
	if err := os.MkdirAll("./logs", os.ModePerm); err != nil {
		return nil, fmt.Errorf("error creating logs directory: %w", err)
	}
	file, err := os.OpenFile(
		"./logs/app.log",
		os.O_RDWR|os.O_CREATE|os.O_APPEND,
		0666,
	)
	if err != nil {
		return nil, fmt.Errorf("error opening log file: %w", err)
	}
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Asia/Shanghai",
		Output:     file,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        10,
		Expiration: 1 * time.Second,
	}))

	// Handler
	fastingHandler := handlers.NewFastingHandler(services.FastingService, validator)
	mealHandler := handlers.NewMealHandler(services.MealService, validator)
	authHandler := handlers.NewAuthHandler(services.AccountService, validator)
	syncHandler := handlers.NewSyncHandler(services.FastingService, services.MealService, services.SyncService)

	// routes
	routesConfig := routes.Config{
		App:            app,
		FastingHandler: fastingHandler,
		MealHandler:    mealHandler,
		AuthHandler:    authHandler,
		SyncHandler:    syncHandler,
		Middleware:     middlewares,
		JWTService:     services.JWTService,
	}
	routesConfig.Setup()

	app.Hooks().OnShutdown(func() error {
		log.Info("waiting for in-flight meal analyses")
		services.MealService.Wait()
		return file.Close()
	})
	return app, nil
}

// registerFormTypes lets multipart meal forms carry RFC 3339 timestamps.
func registerFormTypes() {
	fiber.SetParserDecoder(fiber.ParserConfig{
		IgnoreUnknownKeys: true,
		ZeroEmpty:         true,
		ParserType: []fiber.ParserType{{
			Customtype: time.Time{},
			Converter: func(value string) reflect.Value {
				if t, err := time.Parse(time.RFC3339, value); err == nil {
					return reflect.ValueOf(t)
				}
				return reflect.Value{}
			},
		}},
	})
}

func Port() string {
	if port := utils.GetConfig("APP_PORT"); port != "" {
		return port
	}
	return "8080"
}
