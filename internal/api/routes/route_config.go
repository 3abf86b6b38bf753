package routes

import (
	"Fasting-Tracker/domain"
	"Fasting-Tracker/internal/api/handlers"
	"Fasting-Tracker/internal/api/presenters"
	"Fasting-Tracker/internal/middleware"
	"Fasting-Tracker/pkg/jwt"

	"github.com/gofiber/fiber/v2"
)

type Config struct {
	App            *fiber.App
	FastingHandler handlers.FastingHandler
	MealHandler    handlers.MealHandler
	AuthHandler    handlers.AuthHandler
	SyncHandler    handlers.SyncHandler
	Middleware     middleware.Middleware
	JWTService     jwt.JWTService
}

func (c *Config) Setup() {
	c.App.Use(c.Middleware.CORSMiddleware())
	c.GuestRoute()
	c.Auth()
	c.Fasting()
	c.Meals()
	c.Sync()
}

func (c *Config) GuestRoute() {
	c.App.Get("/api/health", func(ctx *fiber.Ctx) error {
		return presenters.SuccessResponse(ctx, nil, fiber.StatusOK, domain.MessageSuccessHealth)
	})
}

func (c *Config) Auth() {
	auth := c.App.Group("/api/auth")
	{
		auth.Post("/register", c.AuthHandler.Register)
		auth.Post("/login", c.AuthHandler.Login)
		auth.Post("/logout", c.AuthHandler.Logout)
		auth.Post("/delete", c.Middleware.AuthMiddleware(c.JWTService), c.AuthHandler.DeleteAccount)
	}
}

// Fasting registers the stage table ahead of the group so it needs no owner.
func (c *Config) Fasting() {
	c.App.Get("/api/v1/fasting/stages", c.FastingHandler.GetStages)

	fasting := c.App.Group("/api/v1/fasting",
		c.Middleware.OptionalAuthMiddleware(c.JWTService),
		c.Middleware.OwnerMiddleware(),
	)
	fasting.Get("/current", c.FastingHandler.GetCurrent)
	fasting.Get("/history", c.FastingHandler.GetHistory)
	fasting.Post("/start", c.FastingHandler.StartFast)
	fasting.Post("/pause", c.FastingHandler.PauseFast)
	fasting.Post("/resume", c.FastingHandler.ResumeFast)
	fasting.Post("/complete", c.FastingHandler.CompleteFast)
	fasting.Post("/end-eating", c.FastingHandler.EndEatingWindow)
	fasting.Post("/backfill", c.FastingHandler.BackfillFast)
	fasting.Put("/:id", c.FastingHandler.EditFast)
}

func (c *Config) Meals() {
	c.App.Post("/api/v1/meals/analyze", c.MealHandler.AnalyzeMeal)

	meals := c.App.Group("/api/v1/meals",
		c.Middleware.OptionalAuthMiddleware(c.JWTService),
		c.Middleware.OwnerMiddleware(),
	)
	meals.Post("", c.MealHandler.LogMeal)
	meals.Get("", c.MealHandler.GetMeals)
	meals.Get("/:id", c.MealHandler.GetMealDetails)
	meals.Delete("/:id", c.MealHandler.DeleteMeal)
	meals.Post("/:id/analyze", c.MealHandler.ReanalyzeMeal)
}

func (c *Config) Sync() {
	c.App.Post("/api/v1/sync", c.Middleware.AuthMiddleware(c.JWTService), c.SyncHandler.Sync)
}
