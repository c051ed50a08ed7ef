package mapview

import (
	"errors"

	"backend-nlmap/internal/geocode"
	"backend-nlmap/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Post("/sessions", func(c *fiber.Ctx) error {
		sess, err := svc.CreateSession(c.Context())
		if err != nil {
			return toFiberError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(sess)
	})

	r.Get("/sessions/:id", func(c *fiber.Ctx) error {
		sess, err := svc.Session(c.Context(), c.Params("id"))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(sess)
	})

	r.Post("/sessions/:id/placing", func(c *fiber.Ctx) error {
		sess, err := svc.TogglePlacing(c.Context(), c.Params("id"))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(sess)
	})

	r.Post("/sessions/:id/click", func(c *fiber.Ctx) error {
		var req ClickRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		sess, err := svc.Click(c.Context(), c.Params("id"), geo.LatLng{Lat: req.Lat, Lng: req.Lng})
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(sess)
	})

	r.Post("/sessions/:id/select", func(c *fiber.Ctx) error {
		var place geocode.Place
		if err := c.BodyParser(&place); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		if !geo.NLBounds.Contains(geo.LatLng{Lat: place.Lat, Lng: place.Lng}) {
			return fiber.NewError(fiber.StatusBadRequest, ErrOutOfBounds.Error())
		}
		sess, err := svc.SelectPlace(c.Context(), c.Params("id"), place)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(sess)
	})

	r.Post("/sessions/:id/search", func(c *fiber.Ctx) error {
		var req SearchRequest
		if err := c.BodyParser(&req); err != nil || req.Query == "" {
			return fiber.NewError(fiber.StatusBadRequest, "query required")
		}
		sess, err := svc.Search(c.Context(), c.Params("id"), req.Query)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(sess)
	})

	r.Put("/sessions/:id/view", func(c *fiber.Ctx) error {
		var req MoveRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		sess, err := svc.Move(c.Context(), c.Params("id"), geo.LatLng{Lat: req.Lat, Lng: req.Lng}, req.Zoom)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(sess)
	})

	r.Post("/sessions/:id/reset", func(c *fiber.Ctx) error {
		sess, err := svc.Reset(c.Context(), c.Params("id"))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(sess)
	})

	r.Delete("/sessions/:id/draft", func(c *fiber.Ctx) error {
		sess, err := svc.CancelDraft(c.Context(), c.Params("id"))
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(sess)
	})

	r.Get("/clusters", func(c *fiber.Ctx) error {
		zoom := ClampZoom(c.QueryInt("zoom", geo.DefaultZoom))
		var within *geo.Bounds
		if c.Query("south") != "" {
			b := geo.Bounds{
				South: c.QueryFloat("south"),
				West:  c.QueryFloat("west"),
				North: c.QueryFloat("north"),
				East:  c.QueryFloat("east"),
			}
			if !b.Valid() {
				return fiber.NewError(fiber.StatusBadRequest, "invalid bounds")
			}
			within = &b
		}
		clusters, err := svc.Clusters(c.Context(), zoom, within)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(clusters)
	})
}

func toFiberError(err error) error {
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, geocode.ErrNoMatch):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrOutOfBounds):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrGeocoder):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
