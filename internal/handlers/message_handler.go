package handlers

import (
	"github.com/coaltail/rhythmlink-backend/internal/httpx"
	"github.com/coaltail/rhythmlink-backend/internal/service"
	"github.com/gofiber/fiber/v2"
)

type MessageHandler struct {
	messageService *service.MessageService
}

func NewMessageHandler(messageService *service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

type SendMessageRequest struct {
	Content     string `json:"content"`
	SendAsGroup bool   `json:"send_as_group"`
}

// SendToGroup opens (or reuses) the caller's thread with a group and posts into it.
func (h *MessageHandler) SendToGroup(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	groupID, err := httpx.ParamUint(c, "groupId")
	if err != nil {
		return err
	}

	var req SendMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	msg, err := h.messageService.SendAsUser(c.UserContext(), userID, groupID, req.Content)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (h *MessageHandler) Reply(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	threadID, err := httpx.ParamUint(c, "threadId")
	if err != nil {
		return err
	}

	var req SendMessageRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	msg, err := h.messageService.SendAsThreadParticipant(c.UserContext(), threadID, userID, req.Content, req.SendAsGroup)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func (h *MessageHandler) GetThreadMessages(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	threadID, err := httpx.ParamUint(c, "threadId")
	if err != nil {
		return err
	}

	messages, err := h.messageService.ListThreadMessages(c.UserContext(), threadID, userID)
	if err != nil {
		return err
	}
	return c.JSON(messages)
}

func (h *MessageHandler) MarkRead(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	threadID, err := httpx.ParamUint(c, "threadId")
	if err != nil {
		return err
	}

	if err := h.messageService.MarkThreadRead(c.UserContext(), threadID, userID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *MessageHandler) GetMyThreads(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	threads, err := h.messageService.ListUserThreads(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(threads)
}

func (h *MessageHandler) GetGroupThreads(c *fiber.Ctx) error {
	userID, err := currentUser(c)
	if err != nil {
		return err
	}
	groupID, err := httpx.ParamUint(c, "groupId")
	if err != nil {
		return err
	}
	threads, err := h.messageService.ListGroupThreads(c.UserContext(), groupID, userID)
	if err != nil {
		return err
	}
	return c.JSON(threads)
}
