package widget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const (
	defaultPollInterval = 3 * time.Second
	defaultReadDelay    = 700 * time.Millisecond

	// Typing delay scales with reply length but stays bounded so long
	// answers never feel frozen.
	typingPerRune  = 18 * time.Millisecond
	typingDelayMin = 400 * time.Millisecond
	typingDelayMax = 3 * time.Second
)

// SubjectContext mirrors the server-side subject payload.
type SubjectContext struct {
	SKU   string  `json:"sku,omitempty"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

type sendRequest struct {
	SessionId      *string         `json:"sessionId,omitempty"`
	VisitorId      string          `json:"visitorId"`
	Message        string          `json:"message"`
	SubjectContext *SubjectContext `json:"subjectContext,omitempty"`
}

type sendResponse struct {
	SessionId string   `json:"sessionId"`
	Reply     *Message `json:"reply"`
}

type pollResponse struct {
	SessionId string    `json:"sessionId"`
	Status    string    `json:"status"`
	Messages  []Message `json:"messages"`
}

type endRequest struct {
	SessionId string `json:"sessionId"`
	VisitorId string `json:"visitorId"`
}

// The API wraps every payload in a success envelope.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Client is the visitor-side sync loop. It keeps a local message list
// consistent with server state via polling, with optimistic echo for
// just-sent messages and cosmetic read/typing delays.
type Client struct {
	baseURL   string
	visitorID string
	subject   *SubjectContext
	http      *http.Client

	pollInterval time.Duration
	readDelay    time.Duration
	sleep        func(time.Duration)

	mu        sync.Mutex
	sessionID string
	status    string
	messages  []Message
	inFlight  bool

	cancelPoll context.CancelFunc

	// OnUpdate fires with a snapshot of the message list whenever it
	// changes. Called outside the client's lock.
	OnUpdate func(messages []Message)
}

type Option func(*Client)

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

func WithReadDelay(d time.Duration) Option {
	return func(c *Client) { c.readDelay = d }
}

// WithSleep replaces the delay function, used by tests to skip the
// cosmetic pauses.
func WithSleep(fn func(time.Duration)) Option {
	return func(c *Client) { c.sleep = fn }
}

func WithSubject(s *SubjectContext) Option {
	return func(c *Client) { c.subject = s }
}

func NewClient(baseURL, visitorID string, options ...Option) *Client {
	c := &Client{
		baseURL:      baseURL,
		visitorID:    visitorID,
		http:         &http.Client{Timeout: 30 * time.Second},
		pollInterval: defaultPollInterval,
		readDelay:    defaultReadDelay,
		sleep:        time.Sleep,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Messages returns a copy of the held list.
func (c *Client) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Client) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Send shows the message immediately, waits out the read delay, posts
// it, and reveals the reply after a length-proportional typing delay.
// Only one send may be in flight; a second call while sending returns
// an error instead of queuing.
func (c *Client) Send(ctx context.Context, text string) (*Message, error) {
	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, fmt.Errorf("send already in flight")
	}
	c.inFlight = true
	optimistic := Message{Role: "visitor", Content: text, CreatedAt: time.Now()}
	c.messages = append(c.messages, optimistic)
	snapshot := append([]Message(nil), c.messages...)
	sessionID := c.sessionID
	c.mu.Unlock()

	c.notify(snapshot)

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	c.sleep(c.readDelay)

	req := sendRequest{
		VisitorId:      c.visitorID,
		Message:        text,
		SubjectContext: c.subject,
	}
	if sessionID != "" {
		req.SessionId = &sessionID
	}

	var res envelope[sendResponse]
	if err := c.post(ctx, "/api/chat/v1/message", req, &res); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.sessionID = res.Data.SessionId
	c.mu.Unlock()

	// Escalated sessions answer through the polling path only.
	if res.Data.Reply == nil {
		return nil, nil
	}

	c.sleep(typingDelay(res.Data.Reply.Content))

	c.mu.Lock()
	c.messages = append(c.messages, *res.Data.Reply)
	snapshot = append([]Message(nil), c.messages...)
	c.mu.Unlock()

	c.notify(snapshot)
	return res.Data.Reply, nil
}

// StartPolling launches the fixed-interval poll loop. Calling it again
// cancels the previous loop first, so a new session never inherits an
// orphaned timer.
func (c *Client) StartPolling(ctx context.Context) {
	c.StopPolling()

	pollCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelPoll = cancel
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				c.PollOnce(pollCtx)
			}
		}
	}()
}

// StopPolling cancels the poll loop if one is running.
func (c *Client) StopPolling() {
	c.mu.Lock()
	cancel := c.cancelPoll
	c.cancelPoll = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// PollOnce fetches the server's message list and merges it in. Skipped
// while a send is in flight so the optimistic echo is never clobbered.
func (c *Client) PollOnce(ctx context.Context) error {
	c.mu.Lock()
	if c.inFlight || c.sessionID == "" {
		c.mu.Unlock()
		return nil
	}
	sessionID := c.sessionID
	c.mu.Unlock()

	q := url.Values{}
	q.Set("sessionId", sessionID)
	q.Set("visitorId", c.visitorID)

	var res envelope[pollResponse]
	if err := c.get(ctx, "/api/chat/v1/messages?"+q.Encode(), &res); err != nil {
		return err
	}

	c.mu.Lock()
	// Re-check: a send may have started while the request was out.
	if c.inFlight {
		c.mu.Unlock()
		return nil
	}
	merged := Merge(c.messages, res.Data.Messages)
	changed := len(merged) != len(c.messages)
	c.messages = merged
	c.status = res.Data.Status
	snapshot := append([]Message(nil), c.messages...)
	c.mu.Unlock()

	if changed {
		c.notify(snapshot)
	}
	return nil
}

// Close ends the session server-side and stops polling. The server
// always acks session-end, so the only errors here are transport ones.
func (c *Client) Close(ctx context.Context) error {
	c.StopPolling()

	c.mu.Lock()
	sessionID := c.sessionID
	c.mu.Unlock()
	if sessionID == "" {
		return nil
	}

	var res envelope[any]
	return c.post(ctx, "/api/chat/v1/end", endRequest{
		SessionId: sessionID,
		VisitorId: c.visitorID,
	}, &res)
}

func (c *Client) notify(snapshot []Message) {
	if c.OnUpdate != nil {
		c.OnUpdate(snapshot)
	}
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Message != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, errBody.Message)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func typingDelay(reply string) time.Duration {
	d := time.Duration(len([]rune(reply))) * typingPerRune
	if d < typingDelayMin {
		return typingDelayMin
	}
	if d > typingDelayMax {
		return typingDelayMax
	}
	return d
}
