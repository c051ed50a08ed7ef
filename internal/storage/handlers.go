package storage

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Post("/upload", authMiddleware, func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "file required")
		}
		kind := c.FormValue("kind")
		if kind == "" {
			kind = "photo"
		}
		userID, _ := c.Locals("user_id").(string)

		f, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		defer f.Close()

		objectPath := "uploads/" + userID + "/" + uuid.NewString() + "-" + fh.Filename
		obj, err := svc.Upload(c.Context(), userID, objectPath, f, fh.Header.Get("Content-Type"), kind)
		switch {
		case errors.Is(err, ErrInvalidPath):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		case errors.Is(err, ErrTooLarge):
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, err.Error())
		case err != nil:
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(obj)
	})
}
