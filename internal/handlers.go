package internal

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DrGermanius/withdraw/internal/model"
)

const headerIdempotencyKey = "Idempotency-Key"

type Handlers struct {
	Service   IService
	validator *RequestValidator
	logger    *zap.SugaredLogger
}

func NewHandlers(service IService, validator *RequestValidator, logger *zap.SugaredLogger) *Handlers {
	return &Handlers{Service: service, validator: validator, logger: logger}
}

// Routes mounts the API on app; auth guards every account route.
func (h *Handlers) Routes(app *fiber.App, auth fiber.Handler) {
	app.Get("/healthz", h.Health)

	acc := app.Group("/account/:accountId", auth)
	acc.Post("/balance/withdraw", h.CreateWithdraw)
	acc.Get("/balance/withdraw/:withdrawId", h.GetWithdraw)
}

func (h *Handlers) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "time": time.Now().UTC()})
}

func (h *Handlers) CreateWithdraw(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("accountId"))
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"status": "error", "message": "invalid account id"})
	}

	var i WithdrawInput
	if err = c.BodyParser(&i); err != nil {
		h.logger.Errorf("Error on withdraw request: %s", err.Error())
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": "incorrect request format"})
	}

	req, err := h.validator.Build(accountID, i, c.Get(headerIdempotencyKey))
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"status": "error", "message": "validation failed", "errors": verr.Fields})
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"status": "error", "message": err.Error()})
	}

	res, err := h.Service.RequestWithdraw(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, ErrRequestInProgress) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"status": "error", "message": err.Error()})
		}
		h.logger.Errorw("withdraw request failed", "account", accountID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"status": "error", "message": "withdrawal could not be processed, try again"})
	}

	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *Handlers) GetWithdraw(c *fiber.Ctx) error {
	accountID, err := uuid.Parse(c.Params("accountId"))
	if err != nil {
		return c.SendStatus(fiber.StatusNotFound)
	}
	id, err := uuid.Parse(c.Params("withdrawId"))
	if err != nil {
		return c.SendStatus(fiber.StatusNotFound)
	}

	w, err := h.Service.GetWithdrawal(c.UserContext(), accountID, id)
	if err != nil {
		if errors.Is(err, ErrWithdrawalNotFound) {
			return c.SendStatus(fiber.StatusNotFound)
		}
		h.logger.Errorw("withdraw lookup failed", "withdraw", id, "error", err)
		return c.SendStatus(fiber.StatusInternalServerError)
	}

	return c.Status(fiber.StatusOK).JSON(model.OutputOf(w))
}
