package operator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"
)

// TelegramNotifier delivers notifications through a Telegram bot to a single
// configured operator chat.
type TelegramNotifier struct {
	BotToken string
	ChatId   string
	Client   *http.Client
}

var _ Notifier = &TelegramNotifier{}

func NewTelegramNotifier(botToken, chatId string, timeout time.Duration) *TelegramNotifier {
	return &TelegramNotifier{
		BotToken: botToken,
		ChatId:   chatId,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

type sendMessageRequest struct {
	ChatId string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	Ok          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *TelegramNotifier) Notify(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatId: t.ChatId,
		Text:   Format(n),
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.BotToken)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var tgResp sendMessageResponse
	if err := json.Unmarshal(bodyBytes, &tgResp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if !tgResp.Ok {
		return fmt.Errorf("telegram error: %s", tgResp.Description)
	}

	return nil
}

// --- Inbound webhook types ---

// Update mirrors the subset of the Telegram update payload the webhook needs.
type Update struct {
	UpdateId int64          `json:"update_id"`
	Message  *UpdateMessage `json:"message"`
}

type UpdateMessage struct {
	MessageId      int64          `json:"message_id"`
	Text           string         `json:"text"`
	Chat           *UpdateChat    `json:"chat"`
	ReplyToMessage *UpdateMessage `json:"reply_to_message"`
}

type UpdateChat struct {
	Id int64 `json:"id"`
}

var sessionLinePattern = regexp.MustCompile(`Session:\s*([A-Za-z0-9-]+)`)

// InboundReply is an operator message successfully tied back to a session.
type InboundReply struct {
	SessionId string
	Text      string
	ChatId    string
}

// ParseUpdate accepts only replies that quote a previously sent notification:
// the session id is read from the quoted parent text. Anything else returns
// ok=false and must cause no state change.
func ParseUpdate(u *Update) (InboundReply, bool) {
	if u == nil || u.Message == nil || u.Message.Text == "" {
		return InboundReply{}, false
	}
	if u.Message.ReplyToMessage == nil {
		return InboundReply{}, false
	}

	m := sessionLinePattern.FindStringSubmatch(u.Message.ReplyToMessage.Text)
	if m == nil {
		return InboundReply{}, false
	}

	reply := InboundReply{
		SessionId: m[1],
		Text:      u.Message.Text,
	}
	if u.Message.Chat != nil {
		reply.ChatId = fmt.Sprintf("%d", u.Message.Chat.Id)
	}
	return reply, true
}
