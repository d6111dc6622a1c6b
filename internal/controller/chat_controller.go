package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/constant"
	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/dto"
	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/pkg/serverutils"
	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/service"
)

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	SendMessage(ctx *fiber.Ctx) error
	PollMessages(ctx *fiber.Ctx) error
	EndSession(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
}

func NewChatController(chatService service.IChatService) IChatController {
	return &chatController{
		chatService: chatService,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/chat/v1")
	h.Post("message", c.SendMessage)
	h.Get("messages", c.PollMessages)
	h.Post("end", c.EndSession)
}

func (c *chatController) SendMessage(ctx *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.ErrInvalidInput("malformed request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}
	if len(req.Message) > constant.MaxMessageLength {
		return serverutils.ErrInvalidInput("message too long")
	}

	res, err := c.chatService.SendMessage(ctx.Context(), &req, ctx.IP())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send message", res))
}

func (c *chatController) PollMessages(ctx *fiber.Ctx) error {
	sessionId, err := uuid.Parse(ctx.Query("sessionId"))
	if err != nil {
		return serverutils.ErrInvalidInput("sessionId must be a valid id")
	}

	visitorId := ctx.Query("visitorId")
	if visitorId == "" {
		return serverutils.ErrInvalidInput("visitorId is required")
	}

	var after *time.Time
	if raw := ctx.Query("after"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return serverutils.ErrInvalidInput("after must be RFC3339")
		}
		after = &t
	}

	res, err := c.chatService.GetMessages(ctx.Context(), sessionId, visitorId, after)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success poll messages", res))
}

// EndSession always acks: closure errors are swallowed so the widget can shut
// down without friction.
func (c *chatController) EndSession(ctx *fiber.Ctx) error {
	var req dto.EndSessionRequest
	if err := ctx.BodyParser(&req); err != nil {
		return serverutils.ErrInvalidInput("malformed request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	_ = c.chatService.EndSession(ctx.Context(), &req)

	return ctx.JSON(serverutils.SuccessResponse[any]("Session closed", nil))
}
