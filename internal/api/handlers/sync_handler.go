package handlers

import (
	"Fasting-Tracker/domain"
	"Fasting-Tracker/internal/api/presenters"
	"Fasting-Tracker/internal/middleware"
	"Fasting-Tracker/pkg/fasting"
	"Fasting-Tracker/pkg/meal"
	"Fasting-Tracker/pkg/syncer"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type (
	SyncHandler interface {
		Sync(c *fiber.Ctx) error
	}

	syncHandler struct {
		fastingService fasting.FastingService
		mealService    meal.MealService
		syncService    syncer.SyncService
	}
)

func NewSyncHandler(fastingService fasting.FastingService, mealService meal.MealService, syncService syncer.SyncService) SyncHandler {
	return &syncHandler{
		fastingService: fastingService,
		mealService:    mealService,
		syncService:    syncService,
	}
}

// Sync uploads the caller's local state. When the request also carries an
// X-Client-ID, the anonymous state kept under that client is first folded
// into the user's own stores, so the device and the remote copy agree and
// the user never ends up with two active sessions.
func (h *syncHandler) Sync(c *fiber.Ctx) error {
	identity := middleware.GetIdentity(c)
	if identity == nil {
		return presenters.ErrorResponse(c, fiber.StatusUnauthorized, domain.MessageFailedGetToken, domain.ErrUnauthenticated)
	}
	user := domain.Owner{Key: identity.ID, Identity: identity}

	if clientID := strings.TrimSpace(c.Get(middleware.ClientIDHeader)); clientID != "" {
		anon := domain.Owner{Key: domain.AnonymousOwnerPrefix + clientID}
		if _, err := h.fastingService.Adopt(c.Context(), anon, user); err != nil {
			return presenters.FailedResponse(c, domain.MessageFailedSync, err)
		}
		if _, err := h.mealService.Adopt(c.Context(), anon, user); err != nil {
			return presenters.FailedResponse(c, domain.MessageFailedSync, err)
		}
	}

	sessions, err := h.fastingService.Sessions(c.Context(), user)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedSync, err)
	}
	meals, err := h.mealService.Meals(c.Context(), user)
	if err != nil {
		return presenters.FailedResponse(c, domain.MessageFailedSync, err)
	}

	res := h.syncService.Sync(c.Context(), identity, syncer.Snapshot{Sessions: sessions, Meals: meals})
	if res.State == domain.SyncStateFailed {
		return c.Status(fiber.StatusBadGateway).JSON(presenters.Response{
			Success:   false,
			Message:   domain.MessageFailedSync,
			Data:      res,
			ErrorCode: domain.CodeProviderFailure,
		})
	}
	return presenters.SuccessResponse(c, res, fiber.StatusOK, domain.MessageSuccessSync)
}
