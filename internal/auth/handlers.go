package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	r.Post("/register", func(c *fiber.Ctx) error {
		var req RegisterRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		user, tokens, err := svc.Register(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user, "tokens": tokens})
	})

	r.Post("/login", func(c *fiber.Ctx) error {
		var req LoginRequest
		if err := c.BodyParser(&req); err != nil || req.Email == "" || req.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "email and password required")
		}
		_, resp, err := svc.Login(c.Context(), req)
		if errors.Is(err, ErrInvalidCredentials) {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(resp)
	})

	r.Post("/refresh", func(c *fiber.Ctx) error {
		var req RefreshRequest
		if err := c.BodyParser(&req); err != nil || req.RefreshToken == "" {
			return fiber.NewError(fiber.StatusBadRequest, "refresh_token required")
		}

		userID, err := svc.ValidateRefreshToken(c.Context(), req.RefreshToken)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}

		resp, err := svc.GenerateTokens(c.Context(), userID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(resp)
	})

	r.Get("/jwt/verify", func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		userID, err := svc.ValidateAccessToken(token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		return c.JSON(fiber.Map{"user_id": userID})
	})

	r.Get("/me", JWTMiddleware(string(svc.secret)), func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		user, err := svc.Profile(c.Context(), userID)
		if errors.Is(err, ErrUserNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(user)
	})
}

func RegisterFederatedRoutes(r fiber.Router, fed *Federated) {
	r.Get("/google/login", func(c *fiber.Ctx) error {
		url, err := fed.LoginURL(c.Context())
		if err != nil {
			return federatedError(err)
		}
		return c.Redirect(url, fiber.StatusFound)
	})

	r.Get("/google/callback", func(c *fiber.Ctx) error {
		if msg := c.Query("error"); msg != "" {
			return fiber.NewError(fiber.StatusUnauthorized, msg)
		}
		if c.Query("state") == "" || c.Query("code") == "" {
			return fiber.NewError(fiber.StatusBadRequest, "state and code required")
		}
		result, err := fed.Callback(c.Context(), c.Query("state"), c.Query("code"))
		if err != nil {
			return federatedError(err)
		}
		return c.JSON(result)
	})

	r.Post("/federated/complete", func(c *fiber.Ctx) error {
		var req CompleteProfileRequest
		if err := c.BodyParser(&req); err != nil || req.PendingToken == "" {
			return fiber.NewError(fiber.StatusBadRequest, "pending_token required")
		}
		user, tokens, err := fed.Complete(c.Context(), req)
		if err != nil {
			return federatedError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user, "tokens": tokens})
	})
}

func federatedError(err error) error {
	switch {
	case errors.Is(err, ErrFederatedOff):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrUsernameRequired):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrPendingInvalid):
		return fiber.NewError(fiber.StatusGone, err.Error())
	case errors.Is(err, ErrEmailUnverified):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrEmailInUse):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, ErrProvider):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}
