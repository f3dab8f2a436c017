package handlers

import (
	"github.com/coaltail/rhythmlink-backend/internal/service"
	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var input service.RegisterInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	token, err := h.authService.Register(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(token)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input service.LoginInput
	if err := parseBody(c, &input); err != nil {
		return err
	}

	token, err := h.authService.Login(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.JSON(token)
}
