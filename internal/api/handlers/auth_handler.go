package handlers

import (
	"Fasting-Tracker/domain"
	"Fasting-Tracker/internal/api/presenters"
	"Fasting-Tracker/internal/middleware"
	"Fasting-Tracker/pkg/account"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

type (
	AuthHandler interface {
		Register(c *fiber.Ctx) error
		Login(c *fiber.Ctx) error
		Logout(c *fiber.Ctx) error
		DeleteAccount(c *fiber.Ctx) error
	}

	authHandler struct {
		accountService account.AccountService
		validator      *validator.Validate
	}
)

func NewAuthHandler(accountService account.AccountService, validator *validator.Validate) AuthHandler {
	return &authHandler{
		accountService: accountService,
		validator:      validator,
	}
}

func (h *authHandler) Register(c *fiber.Ctx) error {
	return presenters.ErrorResponse(c, fiber.StatusNotImplemented, domain.MessageRegisterStub, domain.ErrNotImplemented)
}

func (h *authHandler) Login(c *fiber.Ctx) error {
	return presenters.ErrorResponse(c, fiber.StatusNotImplemented, domain.MessageLoginStub, domain.ErrNotImplemented)
}

func (h *authHandler) Logout(c *fiber.Ctx) error {
	return presenters.ErrorResponse(c, fiber.StatusNotImplemented, domain.MessageLogoutStub, domain.ErrNotImplemented)
}

func (h *authHandler) DeleteAccount(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return presenters.ErrorResponse(c, fiber.StatusUnauthorized, domain.MessageFailedGetToken, domain.ErrUnauthenticated)
	}
	req := new(domain.DeleteAccountRequest)

	if err := c.BodyParser(req); err != nil {
		return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedBodyRequest, invalidInput(err))
	}

	if err := h.validator.Struct(req); err != nil {
		return presenters.ErrorResponse(c, fiber.StatusBadRequest, domain.MessageFailedDeleteAccount, invalidInput(err))
	}

	res, err := h.accountService.DeleteAccount(c.Context(), *identity, *req)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedDeleteAccount, err)
	}
	return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageSuccessDeleteAccount)
}
