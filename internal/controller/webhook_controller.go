package controller

import (
	"crypto/subtle"
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/pkg/logger"
	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/pkg/serverutils"
	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/service"
	"github.com/huppermotors-crypto/parts-inventory-sub001/pkg/operator"
)

// webhookSecretHeader is the header Telegram echoes back when the webhook was
// registered with a secret token.
const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

type IWebhookController interface {
	RegisterRoutes(r fiber.Router)
	HandleOperatorUpdate(ctx *fiber.Ctx) error
}

type webhookController struct {
	chatService service.IChatService
	secret      string
	log         logger.ILogger
}

func NewWebhookController(chatService service.IChatService, secret string, log logger.ILogger) IWebhookController {
	return &webhookController{
		chatService: chatService,
		secret:      secret,
		log:         log,
	}
}

func (c *webhookController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/webhook/v1")
	h.Post("operator", c.HandleOperatorUpdate)
}

// HandleOperatorUpdate accepts inbound operator-channel updates. A wrong
// secret is a hard 403; after that, anything unparseable is acked with 200 so
// the transport stops retrying, but produces no state change.
func (c *webhookController) HandleOperatorUpdate(ctx *fiber.Ctx) error {
	if c.secret == "" || subtle.ConstantTimeCompare([]byte(ctx.Get(webhookSecretHeader)), []byte(c.secret)) != 1 {
		return serverutils.ErrUnauthorized("forbidden")
	}

	var update operator.Update
	if err := json.Unmarshal(ctx.Body(), &update); err != nil {
		c.log.Warn("webhook", "unparseable operator update", map[string]interface{}{"error": err.Error()})
		return ctx.SendStatus(fiber.StatusOK)
	}

	reply, ok := operator.ParseUpdate(&update)
	if !ok {
		return ctx.SendStatus(fiber.StatusOK)
	}

	if err := c.chatService.HandleOperatorReply(ctx.Context(), reply); err != nil {
		// Still 200: the channel must not retry, we log and move on.
		c.log.Error("webhook", "failed to process operator reply", map[string]interface{}{
			"session_id": reply.SessionId,
			"error":      err.Error(),
		})
	}

	return ctx.SendStatus(fiber.StatusOK)
}
