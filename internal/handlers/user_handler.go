package handlers

import (
	"github.com/coaltail/rhythmlink-backend/internal/service"
	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	userService *service.UserService
}

func NewUserHandler(userService *service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// editProfileRequest is the JSON body, or the "userData" multipart field.
type editProfileRequest struct {
	Username         *string  `json:"username"`
	Password         *string  `json:"password"`
	Address          *string  `json:"address"`
	MainInstrument   *string  `json:"main_instrument"`
	GenresOfInterest []string `json:"genres_of_interest"`
}

func (h *UserHandler) GetCurrentUser(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	user, err := h.userService.GetUser(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req editProfileRequest
	input := service.EditProfileInput{}
	if form, ferr := c.MultipartForm(); ferr == nil && form != nil {
		if err := multipartJSON(c, "userData", &req); err != nil {
			return err
		}
		image, closeImage, err := optionalFile(c, "mainImage")
		if err != nil {
			return err
		}
		defer closeImage()
		input.Image = image
	} else if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}

	input.Username = req.Username
	input.Password = req.Password
	input.Address = req.Address
	input.MainInstrument = req.MainInstrument
	input.GenresOfInterest = req.GenresOfInterest

	token, err := h.userService.EditProfile(c.UserContext(), userID, input)
	if err != nil {
		return err
	}
	return c.JSON(token)
}
