package character

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/", func(c *fiber.Ctx) error {
		var req CreateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		created, err := svc.Create(c.Context(), req.Element)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		found, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "character not found")
		}
		return c.JSON(found)
	})

	r.Patch("/:id/progress", authMiddleware, func(c *fiber.Ctx) error {
		var req ProgressRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		updated, err := svc.UpdateProgress(c.Context(), c.Params("id"), req.DistanceDeltaM, req.QiDelta)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "character not found")
		}
		return c.JSON(updated)
	})
}
