package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/coaltail/rhythmlink-backend/internal/apperr"
	"github.com/coaltail/rhythmlink-backend/internal/httpx"
	"github.com/coaltail/rhythmlink-backend/internal/models"
	"github.com/coaltail/rhythmlink-backend/internal/service"
	"github.com/gofiber/fiber/v2"
)

type GroupHandler struct {
	groupService *service.GroupService
}

func NewGroupHandler(groupService *service.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

// CreateGroupRequest travels as JSON in the "groupData" multipart field.
type CreateGroupRequest struct {
	Name   string   `json:"name"`
	Genres []string `json:"genres"`
}

func (h *GroupHandler) CreateGroup(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req CreateGroupRequest
	if err := multipartJSON(c, "groupData", &req); err != nil {
		return err
	}
	image, closeImage, err := optionalFile(c, "mainImage")
	if err != nil {
		return err
	}
	defer closeImage()

	group, err := h.groupService.CreateGroup(c.UserContext(), service.CreateGroupInput{
		OwnerID: userID,
		Name:    req.Name,
		Genres:  req.Genres,
		Image:   image,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(group)
}

func (h *GroupHandler) GetGroup(c *fiber.Ctx) error {
	groupID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return err
	}
	group, err := h.groupService.GetGroup(c.UserContext(), groupID)
	if err != nil {
		return err
	}
	return c.JSON(group)
}

func (h *GroupHandler) GetMyGroups(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	groups, err := h.groupService.GetUserGroups(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(groups)
}

func (h *GroupHandler) SearchGroups(c *fiber.Ctx) error {
	size, err := queryPositiveInt(c, "pageSize")
	if err != nil {
		return err
	}
	number, err := queryPositiveInt(c, "pageNumber")
	if err != nil {
		return err
	}

	page, err := h.groupService.SearchGroups(c.UserContext(), service.GroupSearch{
		Name:       c.Query("name"),
		Genres:     listParam(c.Query("genres")),
		PageSize:   size,
		PageNumber: number,
	})
	if err != nil {
		return err
	}
	return c.JSON(page)
}

func (h *GroupHandler) RecommendGroups(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	limit, err := queryPositiveInt(c, "limit")
	if err != nil {
		return err
	}
	groups, err := h.groupService.RecommendGroups(c.UserContext(), userID, limit)
	if err != nil {
		return err
	}
	return c.JSON(groups)
}

func (h *GroupHandler) GetGroupMembers(c *fiber.Ctx) error {
	groupID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return err
	}
	members, err := h.groupService.GetGroupMembers(c.UserContext(), groupID)
	if err != nil {
		return err
	}
	return c.JSON(members)
}

func (h *GroupHandler) RequestToJoin(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	groupID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return err
	}
	req, err := h.groupService.RequestToJoin(c.UserContext(), groupID, userID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(req)
}

func (h *GroupHandler) ListJoinRequests(c *fiber.Ctx) error {
	ownerID, err := currentUser(c)
	if err != nil {
		return err
	}
	groupID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return err
	}
	reqs, err := h.groupService.ListJoinRequests(c.UserContext(), groupID, ownerID)
	if err != nil {
		return err
	}
	return c.JSON(reqs)
}

func (h *GroupHandler) AcceptJoinRequest(c *fiber.Ctx) error {
	return h.resolve(c, h.groupService.AcceptJoinRequest)
}

func (h *GroupHandler) DenyJoinRequest(c *fiber.Ctx) error {
	return h.resolve(c, h.groupService.DenyJoinRequest)
}

type resolveFunc func(ctx context.Context, groupID, userID, ownerID uint) (*models.JoinRequestResponse, error)

func (h *GroupHandler) resolve(c *fiber.Ctx, fn resolveFunc) error {
	ownerID, err := currentUser(c)
	if err != nil {
		return err
	}
	groupID, err := httpx.ParamUint(c, "id")
	if err != nil {
		return err
	}
	userID, err := httpx.ParamUint(c, "userId")
	if err != nil {
		return err
	}
	req, err := fn(c.UserContext(), groupID, userID, ownerID)
	if err != nil {
		return err
	}
	return c.JSON(req)
}

// queryPositiveInt returns 0 when the parameter is absent.
func queryPositiveInt(c *fiber.Ctx, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, apperr.Validation("invalid query parameter", apperr.FieldError{Field: name, Message: "must be a positive integer"})
	}
	return n, nil
}
