package handlers

import (
	"relay/internal/app"
	travelController "relay/internal/controllers/travel"
	"relay/internal/logger"
	. "relay/internal/models"

	"github.com/gofiber/fiber/v2"
)

type TravelHandler struct {
	Handler
	controller *travelController.TravelController
}

func NewTravelHandler(app app.App, router fiber.Router) *TravelHandler {
	log := logger.New("handlers").File("travel_handler")
	return &TravelHandler{
		controller: app.TravelController,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *TravelHandler) Register() {
	travel := h.router.Group("/travel")
	travel.Post("/expense-reports", h.submitExpenseReports)
	travel.Post("/time-entries", h.submitTravelTimes)
}

func (h *TravelHandler) submitExpenseReports(c *fiber.Ctx) error {
	log := h.log.Function("submitExpenseReports")

	request, err := h.parseRequest(c)
	if err != nil {
		log.Er("failed to parse expense report request", err)
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"message": err.Error()})
	}

	result, err := h.controller.SubmitExpenseReports(c.Context(), request)
	if err != nil {
		log.Er("failed to submit expense reports", err)
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"message": "failed to submit expense reports", "result": result})
	}

	return c.JSON(fiber.Map{"message": "success", "result": result})
}

func (h *TravelHandler) submitTravelTimes(c *fiber.Ctx) error {
	log := h.log.Function("submitTravelTimes")

	request, err := h.parseRequest(c)
	if err != nil {
		log.Er("failed to parse travel time request", err)
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"message": err.Error()})
	}

	result, err := h.controller.SubmitTravelTimes(c.Context(), request)
	if err != nil {
		log.Er("failed to submit travel times", err)
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"message": "failed to submit travel times", "result": result})
	}

	return c.JSON(fiber.Map{"message": "success", "result": result})
}

func (h *TravelHandler) parseRequest(c *fiber.Ctx) (*TravelRequest, error) {
	var request TravelRequest
	if err := c.BodyParser(&request); err != nil {
		return nil, err
	}
	if err := request.Validate(); err != nil {
		return nil, err
	}
	return &request, nil
}
