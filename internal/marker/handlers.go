package marker

import (
	"errors"
	"io"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the marker API. authMiddleware is expected to be
// optional: markers are public, a signed-in user is only recorded.
func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		markers, err := svc.List(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(markers)
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		m, err := svc.Get(c.Context(), c.Params("id"))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(m)
	})

	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req NewMarker
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if userID, ok := c.Locals("user_id").(string); ok {
			req.CreatedBy = userID
		}
		m, err := svc.CreateMarker(c.Context(), req, photosFromForm(c))
		if err != nil {
			return toFiberError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(m)
	})

	r.Post("/:id/reviews", authMiddleware, func(c *fiber.Ctx) error {
		var body struct {
			Name string `json:"name" form:"name"`
			Text string `json:"text" form:"text"`
		}
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		m, err := svc.AddReview(c.Context(), c.Params("id"), body.Name, body.Text)
		if err != nil {
			return toFiberError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(m)
	})

	r.Post("/:id/photos", authMiddleware, func(c *fiber.Ctx) error {
		m, err := svc.AddPhotos(c.Context(), c.Params("id"), photosFromForm(c))
		if err != nil {
			return toFiberError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(m)
	})
}

func photosFromForm(c *fiber.Ctx) []PhotoUpload {
	form, err := c.MultipartForm()
	if err != nil {
		return nil
	}
	headers := form.File["photos"]
	photos := make([]PhotoUpload, 0, len(headers))
	for _, fh := range headers {
		photos = append(photos, PhotoUpload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Open:        openerFor(fh),
		})
	}
	return photos
}

func openerFor(fh *multipart.FileHeader) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) { return fh.Open() }
}

func toFiberError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrTitleRequired), errors.Is(err, ErrReviewTextRequired),
		errors.Is(err, ErrPhotosRequired), errors.Is(err, ErrOutOfBounds):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
