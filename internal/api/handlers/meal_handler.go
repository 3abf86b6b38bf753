package handlers

import (
	"Fasting-Tracker/domain"
	"Fasting-Tracker/internal/api/presenters"
	"Fasting-Tracker/internal/middleware"
	"Fasting-Tracker/pkg/meal"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type (
	MealHandler interface {
		LogMeal(c *fiber.Ctx) error
		GetMeals(c *fiber.Ctx) error
		GetMealDetails(c *fiber.Ctx) error
		DeleteMeal(c *fiber.Ctx) error
		ReanalyzeMeal(c *fiber.Ctx) error
		AnalyzeMeal(c *fiber.Ctx) error
	}

	mealHandler struct {
		mealService meal.MealService
		validator   *validator.Validate
	}
)

func NewMealHandler(mealService meal.MealService, validator *validator.Validate) MealHandler {
	return &mealHandler{
		mealService: mealService,
		validator:   validator,
	}
}

// LogMeal accepts JSON or multipart form data; the form may carry an
// "image" file.
func (h *mealHandler) LogMeal(c *fiber.Ctx) error {
	owner, err := middleware.GetOwner(c)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedOwnerMissing, err)
	}
	req := new(domain.LogMealRequest)

	if err := c.BodyParser(req); err != nil {
		return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedBodyRequest, invalidInput(err))
	}
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if image, err := c.FormFile("image"); err == nil {
			req.Image = image
		}
	}

	if err := h.validator.Struct(req); err != nil {
		return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedLogMeal, invalidInput(err))
	}

	res, err := h.mealService.LogMeal(c.Context(), owner, *req)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedLogMeal, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusCreated, domain.MessageSuccessLogMeal)
}

func (h *mealHandler) GetMeals(c *fiber.Ctx) error {
	owner, err := middleware.GetOwner(c)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedOwnerMissing, err)
	}

	res, err := h.mealService.ListMeals(c.Context(), owner)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedGetMeals, err)
	}
	return presenters.SuccessResponse(c, fiber.Map{"meals": res}, fiber.StatusOK, domain.MessageSuccessGetMeals)
}

func (h *mealHandler) GetMealDetails(c *fiber.Ctx) error {
	owner, err := middleware.GetOwner(c)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedOwnerMissing, err)
	}
	mealID := c.Params("id")

	res, err := h.mealService.GetMeal(c.Context(), owner, mealID)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedGetMeals, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageSuccessGetMeals)
}

func (h *mealHandler) DeleteMeal(c *fiber.Ctx) error {
	owner, err := middleware.GetOwner(c)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedOwnerMissing, err)
	}
	mealID := c.Params("id")

	res, err := h.mealService.DeleteMeal(c.Context(), owner, mealID)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedDeleteMeal, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageSuccessDeleteMeal)
}

func (h *mealHandler) ReanalyzeMeal(c *fiber.Ctx) error {
	owner, err := middleware.GetOwner(c)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedOwnerMissing, err)
	}
	mealID := c.Params("id")

	res, err := h.mealService.Reanalyze(c.Context(), owner, mealID)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedReanalyze, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusAccepted, domain.MessageSuccessReanalyze)
}

// AnalyzeMeal runs the pipeline synchronously without storing a record. An
// analysis failure is still a 200 carrying {error:true, message}.
func (h *mealHandler) AnalyzeMeal(c *fiber.Ctx) error {
	req := new(domain.AnalyzeMealRequest)

	if err := c.BodyParser(req); err != nil {
		return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedBodyRequest, invalidInput(err))
	}

	if err := h.validator.Struct(req); err != nil {
		return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedAnalyzeMeal, invalidInput(err))
	}

	res := h.mealService.AnalyzeDirect(c.Context(), *req)
	if res.Error {
		return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageFailedAnalyzeMeal)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageSuccessAnalyzeMeal)
}
