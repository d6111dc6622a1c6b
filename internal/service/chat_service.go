package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/constant"
	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/dto"
	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/entity"
	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/pkg/logger"
	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/pkg/serverutils"
	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/repository/memory"
	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/repository/specification"
	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/repository/unitofwork"
	"github.com/huppermotors-crypto/parts-inventory-sub001/pkg/events"
	"github.com/huppermotors-crypto/parts-inventory-sub001/pkg/guard"
	"github.com/huppermotors-crypto/parts-inventory-sub001/pkg/llm"
	"github.com/huppermotors-crypto/parts-inventory-sub001/pkg/operator"
	"github.com/huppermotors-crypto/parts-inventory-sub001/pkg/ratelimit"
	"github.com/huppermotors-crypto/parts-inventory-sub001/pkg/transfer"
)

// IChatService is the conversation orchestrator: it admits messages through
// the rate limiter and content guard, branches on session status, talks to
// the AI backend, and flips sessions to the human operator when needed.
type IChatService interface {
	SendMessage(ctx context.Context, request *dto.SendMessageRequest, ip string) (*dto.SendMessageResponse, error)
	GetMessages(ctx context.Context, sessionId uuid.UUID, visitorId string, after *time.Time) (*dto.PollMessagesResponse, error)
	EndSession(ctx context.Context, request *dto.EndSessionRequest) error
	HandleOperatorReply(ctx context.Context, reply operator.InboundReply) error
}

type chatService struct {
	uowFactory  unitofwork.RepositoryFactory
	llmProvider llm.LLMProvider // nil when the AI backend is not configured
	limiter     *ratelimit.Service
	failures    *memory.FailureRepository
	publisher   message.Publisher
	log         logger.ILogger
	aiTimeout   time.Duration
	now         func() time.Time
}

func NewChatService(
	uowFactory unitofwork.RepositoryFactory,
	llmProvider llm.LLMProvider,
	limiter *ratelimit.Service,
	failures *memory.FailureRepository,
	publisher message.Publisher,
	log logger.ILogger,
	aiTimeout time.Duration,
) IChatService {
	return &chatService{
		uowFactory:  uowFactory,
		llmProvider: llmProvider,
		limiter:     limiter,
		failures:    failures,
		publisher:   publisher,
		log:         log,
		aiTimeout:   aiTimeout,
		now:         time.Now,
	}
}

// SendMessage processes one inbound visitor message end to end.
func (cs *chatService) SendMessage(ctx context.Context, request *dto.SendMessageRequest, ip string) (*dto.SendMessageResponse, error) {
	switch cs.limiter.Check(request.VisitorId, ip) {
	case ratelimit.RejectedGlobal:
		return nil, serverutils.ErrBusy("system busy, please retry shortly")
	case ratelimit.RejectedIP, ratelimit.RejectedBanned, ratelimit.RejectedVisitor:
		return nil, serverutils.ErrRateLimited("too many messages, please slow down")
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	session, err := cs.resolveSession(ctx, uow, request)
	if err != nil {
		return nil, err
	}

	now := cs.now()
	visitorMessage := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: session.Id,
		Role:          constant.ChatMessageRoleVisitor,
		Content:       request.Message,
		CreatedAt:     now,
	}
	// The visitor message is persisted even when the guard blocks it, so the
	// full exchange stays on record for audit.
	if err := uow.ChatMessageRepository().Create(ctx, visitorMessage); err != nil {
		return nil, err
	}

	if verdict := guard.CheckInput(request.Message); verdict.Blocked {
		reply, err := cs.persistAssistantReply(ctx, uow, session.Id, constant.ReplyDeflection, now.Add(time.Millisecond))
		if err != nil {
			return nil, err
		}
		if err := uow.Commit(); err != nil {
			return nil, err
		}
		cs.log.Warn("chat", "input blocked by content guard", map[string]interface{}{
			"session_id": session.Id.String(),
			"family":     verdict.Family,
			"rule":       verdict.Rule,
		})
		cs.publishAnalytics(events.TypeInputBlocked, session.Id.String(), map[string]interface{}{
			"family": verdict.Family,
			"rule":   verdict.Rule,
		})
		return &dto.SendMessageResponse{SessionId: session.Id, Reply: toMessageDTO(reply)}, nil
	}

	if session.Status == constant.ChatSessionStatusEscalated {
		if err := uow.ChatSessionRepository().Touch(ctx, session.Id); err != nil {
			return nil, err
		}
		if err := uow.Commit(); err != nil {
			return nil, err
		}
		// Forward verbatim; the visitor picks up the operator's answer by
		// polling.
		cs.publishNotification(operator.Notification{
			SessionId: session.Id.String(),
			Kind:      "forward",
			Summary:   request.Message,
			Subject:   subjectLine(session),
		})
		cs.publishAnalytics(events.TypeMessageHandled, session.Id.String(), map[string]interface{}{"path": "forward"})
		return &dto.SendMessageResponse{SessionId: session.Id, Reply: nil}, nil
	}

	replyText, escalation, err := cs.generateReply(ctx, uow, session, request.Message)
	if err != nil {
		return nil, err
	}

	reply, err := cs.persistAssistantReply(ctx, uow, session.Id, replyText, now.Add(time.Millisecond))
	if err != nil {
		return nil, err
	}
	if err := uow.ChatSessionRepository().Touch(ctx, session.Id); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	if escalation != nil {
		cs.applyEscalation(ctx, session, escalation)
	}
	cs.publishAnalytics(events.TypeMessageHandled, session.Id.String(), map[string]interface{}{"path": "assistant"})

	return &dto.SendMessageResponse{SessionId: session.Id, Reply: toMessageDTO(reply)}, nil
}

// escalationIntent describes a pending active→escalated transition decided
// while generating the reply. It is applied after the reply is committed.
type escalationIntent struct {
	silent  bool
	summary string
}

// generateReply runs the AI path for an active session and returns the text
// to persist plus an optional escalation to apply.
func (cs *chatService) generateReply(ctx context.Context, uow unitofwork.UnitOfWork, session *entity.ChatSession, visitorText string) (string, *escalationIntent, error) {
	if cs.llmProvider == nil {
		return constant.ReplyServiceUnavailable, nil, nil
	}

	history, err := cs.loadHistory(ctx, uow, session, visitorText)
	if err != nil {
		return "", nil, err
	}

	aiCtx, cancel := context.WithTimeout(ctx, cs.aiTimeout)
	defer cancel()

	raw, err := cs.llmProvider.Chat(aiCtx, history)
	if err != nil {
		count := cs.failures.Increment(session.Id.String())
		cs.log.Error("chat", "ai backend failure", map[string]interface{}{
			"session_id": session.Id.String(),
			"failures":   count,
			"error":      err.Error(),
		})
		if count >= constant.FailureThreshold {
			return constant.ReplyPleaseHold, &escalationIntent{
				summary: fmt.Sprintf("Assistant failed %d times in a row, customer is waiting.", count),
			}, nil
		}
		return constant.ReplyPleaseHold, nil, nil
	}

	cs.failures.Reset(session.Id.String())

	parsed := transfer.Parse(raw)
	switch parsed.Kind {
	case transfer.Explicit:
		// The model's own phrasing around the marker is discarded.
		return constant.ReplyConnectingManager, &escalationIntent{
			summary: "Assistant requested a hand-off to a manager.",
		}, nil
	case transfer.Silent:
		return parsed.CleanedText, &escalationIntent{silent: true}, nil
	}

	if verdict := guard.ValidateOutput(parsed.CleanedText, session.SubjectPrice); verdict.Rejected {
		cs.log.Warn("chat", "ai reply rejected by output guard", map[string]interface{}{
			"session_id": session.Id.String(),
			"reason":     verdict.Reason,
			"rule":       verdict.Rule,
		})
		cs.publishAnalytics(events.TypeOutputRejected, session.Id.String(), map[string]interface{}{
			"reason": verdict.Reason,
			"rule":   verdict.Rule,
		})
		return constant.ReplyClarification, nil, nil
	}

	return parsed.CleanedText, nil, nil
}

// applyEscalation flips the session to escalated. The compare-and-set keeps
// concurrent requests from double-notifying: only the request that wins the
// transition sends the hand-off. Silent transfers notify nobody at all.
func (cs *chatService) applyEscalation(ctx context.Context, session *entity.ChatSession, intent *escalationIntent) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)
	flipped, err := uow.ChatSessionRepository().UpdateStatus(ctx, session.Id,
		constant.ChatSessionStatusActive, constant.ChatSessionStatusEscalated)
	if err != nil {
		cs.log.Error("chat", "failed to escalate session", map[string]interface{}{
			"session_id": session.Id.String(),
			"error":      err.Error(),
		})
		return
	}
	if !flipped {
		return
	}

	cs.failures.Reset(session.Id.String())
	cs.publishAnalytics(events.TypeSessionEscalated, session.Id.String(), map[string]interface{}{
		"silent": intent.silent,
	})

	if intent.silent {
		return
	}

	cs.publishNotification(operator.Notification{
		SessionId: session.Id.String(),
		Kind:      "escalated",
		Summary:   intent.summary,
		Subject:   subjectLine(session),
		Excerpt:   cs.recentExcerpt(ctx, uow, session.Id),
	})
}

// GetMessages returns the ordered message list for polling. Ownership is
// checked before any content is returned.
func (cs *chatService) GetMessages(ctx context.Context, sessionId uuid.UUID, visitorId string, after *time.Time) (*dto.PollMessagesResponse, error) {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: sessionId},
		specification.OwnedByVisitor{VisitorID: visitorId},
	)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, serverutils.ErrNotFound("session not found")
	}

	specs := []specification.Specification{
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: false},
	}
	if after != nil {
		specs = append(specs, specification.CreatedAfter{After: *after})
	}

	messages, err := uow.ChatMessageRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}

	resp := &dto.PollMessagesResponse{
		SessionId: session.Id,
		Status:    session.Status,
		Messages:  make([]*dto.MessageDTO, 0, len(messages)),
	}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, toMessageDTO(m))
	}
	return resp, nil
}

// EndSession closes the session and hands the operator a final summary.
// Closed is terminal; a session that is already closed just acks.
func (cs *chatService) EndSession(ctx context.Context, request *dto.EndSessionRequest) error {
	uow := cs.uowFactory.NewUnitOfWork(ctx)

	session, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.ByID{ID: request.SessionId},
		specification.OwnedByVisitor{VisitorID: request.VisitorId},
	)
	if err != nil {
		return err
	}
	if session == nil {
		return serverutils.ErrNotFound("session not found")
	}
	if session.IsClosed() {
		return nil
	}

	flipped, err := uow.ChatSessionRepository().UpdateStatus(ctx, session.Id,
		session.Status, constant.ChatSessionStatusClosed)
	if err != nil {
		return err
	}
	if !flipped {
		return nil
	}

	cs.failures.Reset(session.Id.String())
	cs.publishNotification(operator.Notification{
		SessionId: session.Id.String(),
		Kind:      "closed",
		Summary:   "Customer closed the chat.",
		Subject:   subjectLine(session),
		Excerpt:   cs.recentExcerpt(ctx, uow, session.Id),
	})
	cs.publishAnalytics(events.TypeSessionClosed, session.Id.String(), nil)
	return nil
}

// HandleOperatorReply reattaches an operator-channel reply to its session.
// Unknown or closed sessions produce no state change; the transport already
// got its 200.
func (cs *chatService) HandleOperatorReply(ctx context.Context, reply operator.InboundReply) error {
	sessionId, err := uuid.Parse(reply.SessionId)
	if err != nil {
		cs.log.Warn("chat", "operator reply with unparseable session id", map[string]interface{}{
			"raw": reply.SessionId,
		})
		return nil
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.ChatSessionRepository().FindOne(ctx, specification.ByID{ID: sessionId})
	if err != nil {
		return err
	}
	if session == nil {
		cs.log.Warn("chat", "operator reply for unknown session", map[string]interface{}{
			"session_id": reply.SessionId,
		})
		return nil
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	operatorMessage := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: session.Id,
		Role:          constant.ChatMessageRoleOperator,
		Content:       reply.Text,
		CreatedAt:     cs.now(),
	}
	if err := uow.ChatMessageRepository().Create(ctx, operatorMessage); err != nil {
		return err
	}

	// Remember the channel's own thread id for future routing.
	if reply.ChatId != "" && (session.OperatorChatId == nil || *session.OperatorChatId != reply.ChatId) {
		chatId := reply.ChatId
		session.OperatorChatId = &chatId
		if err := uow.ChatSessionRepository().Update(ctx, session); err != nil {
			return err
		}
	} else if err := uow.ChatSessionRepository().Touch(ctx, session.Id); err != nil {
		return err
	}

	return uow.Commit()
}

// --- helpers ---

// resolveSession reuses the supplied session id when it is still open, and
// creates a fresh session otherwise. A closed session never reopens.
func (cs *chatService) resolveSession(ctx context.Context, uow unitofwork.UnitOfWork, request *dto.SendMessageRequest) (*entity.ChatSession, error) {
	if request.SessionId != nil {
		session, err := uow.ChatSessionRepository().FindOne(ctx,
			specification.ByID{ID: *request.SessionId},
			specification.OwnedByVisitor{VisitorID: request.VisitorId},
		)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, serverutils.ErrNotFound("session not found")
		}
		if !session.IsClosed() {
			return session, nil
		}
	}

	now := cs.now()
	session := &entity.ChatSession{
		Id:        uuid.New(),
		VisitorId: request.VisitorId,
		Status:    constant.ChatSessionStatusActive,
		CreatedAt: now,
	}
	if sc := request.SubjectContext; sc != nil {
		if sc.SKU != "" {
			sku := sc.SKU
			session.SubjectSKU = &sku
		}
		title := sc.Title
		session.SubjectTitle = &title
		price := sc.Price
		session.SubjectPrice = &price
	}
	if err := uow.ChatSessionRepository().Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// loadHistory builds the bounded model input: system prompt, subject context,
// then the last messages of the conversation ending with the current one.
func (cs *chatService) loadHistory(ctx context.Context, uow unitofwork.UnitOfWork, session *entity.ChatSession, visitorText string) ([]llm.Message, error) {
	recent, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: session.Id},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Limit{Count: constant.HistoryLimit},
	)
	if err != nil {
		return nil, err
	}

	history := make([]llm.Message, 0, len(recent)+3)
	history = append(history, llm.Message{Role: "system", Content: constant.AssistantSystemPromptV1})
	if line := subjectLine(session); line != "" {
		history = append(history, llm.Message{
			Role:    "system",
			Content: "Product context: " + line,
		})
	}

	// Query was descending; replay oldest first.
	for i := len(recent) - 1; i >= 0; i-- {
		role := "user"
		if recent[i].Role == constant.ChatMessageRoleAssistant {
			role = "assistant"
		}
		history = append(history, llm.Message{Role: role, Content: recent[i].Content})
	}

	// The visitor message may not be visible to this transaction-scoped query
	// yet; make sure the model always sees it last.
	if len(history) == 2 || history[len(history)-1].Content != visitorText {
		history = append(history, llm.Message{Role: "user", Content: visitorText})
	}

	return history, nil
}

func (cs *chatService) persistAssistantReply(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID, text string, at time.Time) (*entity.ChatMessage, error) {
	reply := &entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: sessionId,
		Role:          constant.ChatMessageRoleAssistant,
		Content:       text,
		CreatedAt:     at,
	}
	if err := uow.ChatMessageRepository().Create(ctx, reply); err != nil {
		return nil, err
	}
	return reply, nil
}

func (cs *chatService) recentExcerpt(ctx context.Context, uow unitofwork.UnitOfWork, sessionId uuid.UUID) []string {
	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Limit{Count: constant.ExcerptLimit},
	)
	if err != nil {
		cs.log.Warn("chat", "failed to load excerpt", map[string]interface{}{
			"session_id": sessionId.String(),
			"error":      err.Error(),
		})
		return nil
	}

	excerpt := make([]string, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		text := messages[i].Content
		if len(text) > 160 {
			text = text[:157] + "..."
		}
		excerpt = append(excerpt, fmt.Sprintf("%s: %s", messages[i].Role, text))
	}
	return excerpt
}

// publishNotification hands the notification to the in-process bus. The
// subscriber delivers it with its own timeout; the visitor-facing request
// never waits on the operator channel.
func (cs *chatService) publishNotification(n operator.Notification) {
	payload, err := json.Marshal(n)
	if err != nil {
		cs.log.Error("chat", "failed to marshal notification", map[string]interface{}{"error": err.Error()})
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := cs.publisher.Publish(events.TopicOperatorNotify, msg); err != nil {
		cs.log.Error("chat", "failed to publish notification", map[string]interface{}{
			"session_id": n.SessionId,
			"error":      err.Error(),
		})
	}
}

func (cs *chatService) publishAnalytics(eventType, sessionId string, extra map[string]interface{}) {
	event := events.NewChatEvent(eventType, sessionId, extra)
	payload, err := json.Marshal(map[string]interface{}{
		"type":        event.EventType(),
		"payload":     event.Payload(),
		"occurred_at": event.Timestamp(),
	})
	if err != nil {
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	if err := cs.publisher.Publish(events.TopicChatAnalytics, msg); err != nil {
		cs.log.Warn("chat", "failed to publish analytics event", map[string]interface{}{
			"type":  eventType,
			"error": err.Error(),
		})
	}
}

func subjectLine(session *entity.ChatSession) string {
	if session.SubjectTitle == nil {
		return ""
	}
	line := *session.SubjectTitle
	if session.SubjectSKU != nil {
		line += fmt.Sprintf(" (SKU %s)", *session.SubjectSKU)
	}
	if session.SubjectPrice != nil {
		line += fmt.Sprintf(", price $%.2f", *session.SubjectPrice)
	}
	return strings.TrimSpace(line)
}

func toMessageDTO(m *entity.ChatMessage) *dto.MessageDTO {
	return &dto.MessageDTO{
		Id:        m.Id,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}
