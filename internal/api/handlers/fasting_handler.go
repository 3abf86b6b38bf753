package handlers

import (
	"Fasting-Tracker/domain"
	"Fasting-Tracker/internal/api/presenters"
	"Fasting-Tracker/internal/middleware"
	"Fasting-Tracker/pkg/fasting"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type (
	FastingHandler interface {
		GetCurrent(c *fiber.Ctx) error
		GetHistory(c *fiber.Ctx) error
		StartFast(c *fiber.Ctx) error
		PauseFast(c *fiber.Ctx) error
		ResumeFast(c *fiber.Ctx) error
		CompleteFast(c *fiber.Ctx) error
		EndEatingWindow(c *fiber.Ctx) error
		BackfillFast(c *fiber.Ctx) error
		EditFast(c *fiber.Ctx) error
		GetStages(c *fiber.Ctx) error
	}

	fastingHandler struct {
		fastingService fasting.FastingService
		validator      *validator.Validate
	}
)

func NewFastingHandler(fastingService fasting.FastingService, validator *validator.Validate) FastingHandler {
	return &fastingHandler{
		fastingService: fastingService,
		validator:      validator,
	}
}

func (h *fastingHandler) GetCurrent(c *fiber.Ctx) error {
	owner, err := middleware.GetOwner(c)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedOwnerMissing, err)
	}

	res, err := h.fastingService.Current(c.Context(), owner)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedGetCurrentFast, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageSuccessGetCurrentFast)
}

func (h *fastingHandler) GetHistory(c *fiber.Ctx) error {
	owner, err := middleware.GetOwner(c)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedOwnerMissing, err)
	}

	res, err := h.fastingService.History(c.Context(), owner)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedGetFastHistory, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageSuccessGetFastHistory)
}

func (h *fastingHandler) StartFast(c *fiber.Ctx) error {
	owner, err := middleware.GetOwner(c)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedOwnerMissing, err)
	}
	req := new(domain.StartFastRequest)

	if err := c.BodyParser(req); err != nil {
		return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedBodyRequest, invalidInput(err))
	}

	if err := h.validator.Struct(req); err != nil {
		return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedStartFast, invalidInput(err))
	}

	res, err := h.fastingService.Start(c.Context(), owner, *req)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedStartFast, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusCreated, domain.MessageSuccessStartFast)
}

func (h *fastingHandler) PauseFast(c *fiber.Ctx) error {
	owner, err := middleware.GetOwner(c)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedOwnerMissing, err)
	}

	res, err := h.fastingService.Pause(c.Context(), owner)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedPauseFast, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageSuccessPauseFast)
}

func (h *fastingHandler) ResumeFast(c *fiber.Ctx) error {
	owner, err := middleware.GetOwner(c)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedOwnerMissing, err)
	}

	res, err := h.fastingService.Resume(c.Context(), owner)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedResumeFast, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageSuccessResumeFast)
}

func (h *fastingHandler) CompleteFast(c *fiber.Ctx) error {
	owner, err := middleware.GetOwner(c)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedOwnerMissing, err)
	}

	res, err := h.fastingService.CompleteFast(c.Context(), owner)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedCompleteFast, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageSuccessCompleteFast)
}

func (h *fastingHandler) EndEatingWindow(c *fiber.Ctx) error {
	owner, err := middleware.GetOwner(c)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedOwnerMissing, err)
	}

	res, err := h.fastingService.EndEatingWindow(c.Context(), owner)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedEndEatingWindow, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageSuccessEndEatingWindow)
}

func (h *fastingHandler) BackfillFast(c *fiber.Ctx) error {
	owner, err := middleware.GetOwner(c)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedOwnerMissing, err)
	}
	req := new(domain.BackfillFastRequest)

	if err := c.BodyParser(req); err != nil {
		return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedBodyRequest, invalidInput(err))
	}

	if err := h.validator.Struct(req); err != nil {
		return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedBackfillFast, invalidInput(err))
	}

	res, err := h.fastingService.Backfill(c.Context(), owner, *req)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedBackfillFast, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusCreated, domain.MessageSuccessBackfillFast)
}

func (h *fastingHandler) EditFast(c *fiber.Ctx) error {
	owner, err := middleware.GetOwner(c)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedOwnerMissing, err)
	}
	sessionID := c.Params("id")
	req := new(domain.EditFastRequest)

	if err := c.BodyParser(req); err != nil {
		return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedBodyRequest, invalidInput(err))
	}

	if err := h.validator.Struct(req); err != nil {
		return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedEditFast, invalidInput(err))
	}

	res, err := h.fastingService.EditSession(c.Context(), owner, sessionID, *req)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedEditFast, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageSuccessEditFast)
}

// GetStages returns the phase table; ?elapsed_hours=N also classifies N.
func (h *fastingHandler) GetStages(c *fiber.Ctx) error {
	var elapsed *float64
	if raw := c.Query("elapsed_hours"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedGetStages, invalidInput(err))
		}
		elapsed = &v
	}

	res, err := h.fastingService.Stages(elapsed)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedGetStages, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageSuccessGetStages)
}

func invalidInput(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
}
