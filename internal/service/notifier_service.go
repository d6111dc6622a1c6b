package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/pkg/logger"
	"github.com/huppermotors-crypto/parts-inventory-sub001/pkg/events"
	pktNats "github.com/huppermotors-crypto/parts-inventory-sub001/pkg/nats"
	"github.com/huppermotors-crypto/parts-inventory-sub001/pkg/operator"
)

// INotifierService drains the in-process bus: operator notifications go out
// through the configured channel, analytics events go to NATS. Everything
// here is fire-and-forget relative to the HTTP requests that produced it.
type INotifierService interface {
	Consume(ctx context.Context) error
}

type notifierService struct {
	subscriber message.Subscriber
	notifier   operator.Notifier
	analytics  *pktNats.Publisher // nil when NATS is not configured
	log        logger.ILogger
	timeout    time.Duration
}

func NewNotifierService(
	subscriber message.Subscriber,
	notifier operator.Notifier,
	analytics *pktNats.Publisher,
	log logger.ILogger,
	timeout time.Duration,
) INotifierService {
	return &notifierService{
		subscriber: subscriber,
		notifier:   notifier,
		analytics:  analytics,
		log:        log,
		timeout:    timeout,
	}
}

func (ns *notifierService) Consume(ctx context.Context) error {
	notifyCh, err := ns.subscriber.Subscribe(ctx, events.TopicOperatorNotify)
	if err != nil {
		return err
	}
	analyticsCh, err := ns.subscriber.Subscribe(ctx, events.TopicChatAnalytics)
	if err != nil {
		return err
	}

	for {
		select {
		case msg, ok := <-notifyCh:
			if !ok {
				return nil
			}
			ns.deliverNotification(msg)
			msg.Ack()
		case msg, ok := <-analyticsCh:
			if !ok {
				return nil
			}
			ns.forwardAnalytics(msg)
			msg.Ack()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// deliverNotification sends one notification with its own deadline. Failures
// are logged and swallowed: the visitor-facing request already returned.
func (ns *notifierService) deliverNotification(msg *message.Message) {
	var n operator.Notification
	if err := json.Unmarshal(msg.Payload, &n); err != nil {
		ns.log.Error("notifier", "bad notification payload", map[string]interface{}{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ns.timeout)
	defer cancel()

	if err := ns.notifier.Notify(ctx, n); err != nil {
		ns.log.Error("notifier", "failed to deliver operator notification", map[string]interface{}{
			"session_id": n.SessionId,
			"kind":       n.Kind,
			"error":      err.Error(),
		})
		return
	}

	ns.log.Info("notifier", "operator notification delivered", map[string]interface{}{
		"session_id": n.SessionId,
		"kind":       n.Kind,
	})
}

func (ns *notifierService) forwardAnalytics(msg *message.Message) {
	if ns.analytics == nil {
		return
	}

	var raw struct {
		Type       string                 `json:"type"`
		Payload    map[string]interface{} `json:"payload"`
		OccurredAt time.Time              `json:"occurred_at"`
	}
	if err := json.Unmarshal(msg.Payload, &raw); err != nil {
		ns.log.Warn("notifier", "bad analytics payload", map[string]interface{}{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ns.timeout)
	defer cancel()

	event := events.BaseEvent{Type: raw.Type, Data: raw.Payload, OccurredAt: raw.OccurredAt}
	if err := ns.analytics.Publish(ctx, event); err != nil {
		ns.log.Warn("notifier", "failed to forward analytics event", map[string]interface{}{
			"type":  raw.Type,
			"error": err.Error(),
		})
	}
}
